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
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfig(t *testing.T) {
	cfg, err := ParseConfig([]byte(`
ssid: TestNet
passwd: secret123
ip: 192.168.1.50
backoff: 3s
logLevel: debug
`))
	require.NoError(t, err)
	assert.Equal(t, "TestNet", cfg.SSID)
	assert.Equal(t, "192.168.1.50", cfg.IP)
	assert.Equal(t, 3*time.Second, cfg.Backoff)
	assert.Equal(t, slog.LevelDebug, cfg.Level())

	// defaults for missing keys
	assert.Equal(t, DefaultSettleDelay, cfg.Settle)
	assert.Equal(t, DefaultSockets, cfg.Sockets)
	assert.Equal(t, uint16(defaultPort), cfg.Port)
	assert.Equal(t, defaultDHCPWait, cfg.DHCPWait)

	creds, err := cfg.Credentials()
	require.NoError(t, err)
	assert.Equal(t, "TestNet", creds.SSID())
}

func TestParseConfigInvalid(t *testing.T) {
	_, err := ParseConfig([]byte("ssid: [unterminated"))
	var cerr *ConfigError
	assert.ErrorAs(t, err, &cerr)
}

func TestLoadConfig(t *testing.T) {
	fname := filepath.Join(t.TempDir(), "wifi.yaml")
	require.NoError(t, os.WriteFile(fname, []byte("ssid: FileNet\nport: 5640\n"), 0600))

	cfg, err := LoadConfig(fname)
	require.NoError(t, err)
	assert.Equal(t, "FileNet", cfg.SSID)
	assert.Equal(t, uint16(5640), cfg.Port)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	var cerr *ConfigError
	assert.ErrorAs(t, err, &cerr)
}

func TestConfigOverride(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SSID = "FileNet"
	require.NoError(t, cfg.Override("", "secret123", "pico", "", "5640"))
	assert.Equal(t, "FileNet", cfg.SSID)
	assert.Equal(t, "secret123", cfg.Passwd)
	assert.Equal(t, "pico", cfg.Host)
	assert.Equal(t, uint16(5640), cfg.Port)

	err := cfg.Override("", "", "", "", "99999")
	var cerr *ConfigError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "port", cerr.Field)
}

func TestConfigMissingCredentials(t *testing.T) {
	_, err := DefaultConfig().Credentials()
	var cerr *ConfigError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "ssid", cerr.Field)
	assert.Equal(t, slog.LevelInfo, (&Config{LogLevel: "loud"}).Level())
}
