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
	"context"
	"errors"
)

// Radio errors
var (
	ErrRadioStart  = errors.New("radio start failed")
	ErrNotStarted  = errors.New("radio not started")
	ErrNoConfig    = errors.New("radio not configured")
	ErrAuthFailure = errors.New("authentication failed")
)

// Radio is the controller of a wireless interface in station mode.
// Start, Connect and WaitFor suspend the caller until the hardware
// reports a result.
type Radio interface {
	// IsStarted returns true if the radio is up.
	IsStarted() (bool, error)

	// SetConfig applies the client configuration. Applying the same
	// credentials twice has no further effect.
	SetConfig(creds Credentials) error

	// Start the radio and wait until it reports started or failed.
	Start(ctx context.Context) error

	// Connect to the configured network and wait until associated
	// or failed.
	Connect(ctx context.Context) error

	// State of the link
	State() LinkState

	// WaitFor blocks until the given link event occurs.
	WaitFor(ctx context.Context, ev LinkEvent) error
}

// Station is implemented by radios that know the access point they
// are associated with.
type Station interface {
	// Station returns BSSID and signal strength (dBm); ok is false
	// while not associated.
	Station() (bssid [6]byte, rssi int, ok bool)
}
