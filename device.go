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

import "net"

// Device is a hardware abstraction
type Device interface {
	// LED on or off (if applicable)
	LED(on bool)

	// Radio controller of the wireless interface. The radio is owned
	// by the association supervisor.
	Radio() Radio

	// NIC is the data plane of the wireless interface.
	NIC() NIC

	// HardwareAddr of the interface (valid after the radio started)
	HardwareAddr() ([6]byte, error)

	// MTU of the interface
	MTU() int

	// Seed for the network stack
	Seed() uint64

	// Bind the stack to the receive path of the interface.
	Bind(stack *Stack)

	// Listen on a TCP port for status clients.
	Listen(stack *Stack, port uint16) (net.Listener, error)
}
