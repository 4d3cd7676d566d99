//----------------------------------------------------------------------
// This file is part of wifisup.
// Copyright (C) 2024-present Bernd Fix   >Y<
//
// wifisup is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License,
// or (at your option) any later version.
//
// wifisup is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.
//
// SPDX-License-Identifier: AGPL3.0-or-later
//----------------------------------------------------------------------

package wifisup

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config of the connectivity firmware
type Config struct {
	SSID     string        `yaml:"ssid"`
	Passwd   string        `yaml:"passwd"`
	Host     string        `yaml:"host"`     // DHCP hostname
	IP       string        `yaml:"ip"`       // requested (or static) address
	Port     uint16        `yaml:"port"`     // status filesystem (9p)
	Sockets  int           `yaml:"sockets"`  // socket pool capacity
	Backoff  time.Duration `yaml:"backoff"`  // delay after failed connect
	Settle   time.Duration `yaml:"settle"`   // delay after lost association
	DHCPWait time.Duration `yaml:"dhcpWait"` // wait for a lease before static fallback
	LogLevel string        `yaml:"logLevel"` // debug, info, warn, error
}

// DefaultConfig returns a configuration without credentials. Address,
// port and DHCP wait depend on the device.
func DefaultConfig() *Config {
	return &Config{
		Host:     "wifisup",
		IP:       defaultIP,
		Port:     defaultPort,
		Sockets:  DefaultSockets,
		Backoff:  DefaultBackoff,
		Settle:   DefaultSettleDelay,
		DHCPWait: defaultDHCPWait,
		LogLevel: "info",
	}
}

// ParseConfig reads a YAML configuration on top of the defaults.
func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, &ConfigError{Field: "file", Reason: "unreadable", Err: err}
	}
	return cfg, nil
}

// LoadConfig from a YAML file
func LoadConfig(fname string) (*Config, error) {
	data, err := os.ReadFile(fname)
	if err != nil {
		return nil, &ConfigError{Field: "file", Reason: "unreadable", Err: err}
	}
	return ParseConfig(data)
}

// Override settings with (non-empty) build-time values.
func (c *Config) Override(ssid, passwd, host, ip, port string) error {
	set := func(dst *string, val string) {
		if len(val) > 0 {
			*dst = val
		}
	}
	set(&c.SSID, ssid)
	set(&c.Passwd, passwd)
	set(&c.Host, host)
	set(&c.IP, ip)
	if len(port) > 0 {
		p, err := strconv.ParseUint(port, 10, 16)
		if err != nil {
			return &ConfigError{Field: "port", Reason: fmt.Sprintf("invalid value %q", port), Err: err}
		}
		c.Port = uint16(p)
	}
	return nil
}

// Credentials of the configured network
func (c *Config) Credentials() (Credentials, error) {
	return NewCredentials(c.SSID, c.Passwd)
}

// Level of logging
func (c *Config) Level() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}
