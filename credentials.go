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
)

// Length limits of the radio client configuration buffers.
const (
	MaxSSIDLen   = 32
	MaxPasswdLen = 64
)

// ConfigError is returned for credentials that can't be applied to the
// radio. It is fatal: the operator has to fix the build configuration.
type ConfigError struct {
	Field  string // offending field ("ssid", "passwd", ...)
	Reason string
	Err    error // underlying error (if any)
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	s := fmt.Sprintf("config: %s %s", e.Field, e.Reason)
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

// Unwrap returns the underlying error.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

//----------------------------------------------------------------------

// Credentials of the access point to associate with. Values are
// immutable once created.
type Credentials struct {
	ssid   string
	passwd string
}

// NewCredentials checks the given network identifier and secret against
// the buffer limits of the radio configuration.
func NewCredentials(ssid, passwd string) (Credentials, error) {
	c := Credentials{ssid: ssid, passwd: passwd}
	return c, c.Validate()
}

// SSID of the network
func (c Credentials) SSID() string {
	return c.ssid
}

// Passwd of the network (empty for open networks)
func (c Credentials) Passwd() string {
	return c.passwd
}

// Open returns true if no passphrase is set.
func (c Credentials) Open() bool {
	return len(c.passwd) == 0
}

// Validate credentials
func (c Credentials) Validate() error {
	switch {
	case len(c.ssid) == 0:
		return &ConfigError{Field: "ssid", Reason: "missing"}
	case len(c.ssid) > MaxSSIDLen:
		return &ConfigError{Field: "ssid", Reason: fmt.Sprintf("exceeds %d bytes", MaxSSIDLen)}
	case len(c.passwd) > MaxPasswdLen:
		return &ConfigError{Field: "passwd", Reason: fmt.Sprintf("exceeds %d bytes", MaxPasswdLen)}
	}
	return nil
}

// String hides the secret.
func (c Credentials) String() string {
	return fmt.Sprintf("%s (passlen=%d)", c.ssid, len(c.passwd))
}
