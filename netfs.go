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
	"net"
	"strings"
)

const readme = `Network status of the device:
  /net/state    link state (disconnected, started, connected)
  /net/ssid     network the device associates with
  /net/station  access point and signal strength (if known)
  /net/addr     address lease of the stack
  /net/sockets  used and total socket slots
  /net/stats    supervisor and driver counters
`

type nsFile struct {
	path string
	impl File
}

// NewNetNamespace builds a read-only filesystem that exposes the link
// and stack state. Stack and driver are optional.
func NewNetNamespace(sup *Supervisor, stack *Stack, drv *Driver) (*Namespace, error) {
	ns := NewNamespace("sys", "sys")
	line := func(format string, args ...any) ([]byte, error) {
		return []byte(fmt.Sprintf(format+"\n", args...)), nil
	}
	files := []nsFile{
		{"/readme", NewTextFile(readme)},
		{"/net/ssid", NewTextFile(sup.SSID() + "\n")},
		{"/net/state", NewFuncFile(func() ([]byte, error) {
			return line("%s", sup.State())
		})},
		{"/net/addr", NewFuncFile(func() ([]byte, error) {
			if stack == nil {
				return line("none")
			}
			l := stack.Lease()
			if !l.Addr.IsValid() {
				return line("none")
			}
			kind := "dhcp"
			if l.Static {
				kind = "static"
			}
			return line("%s/%d %s gw=%s dns=%s", l.Addr, l.CIDRBits, kind, l.Gateway, l.DNS)
		})},
		{"/net/sockets", NewFuncFile(func() ([]byte, error) {
			if stack == nil {
				return line("0 0")
			}
			used, capacity := stack.Sockets()
			return line("%d %d", used, capacity)
		})},
		{"/net/stats", NewFuncFile(func() ([]byte, error) {
			return []byte(formatStats(sup, drv)), nil
		})},
	}
	if st, ok := sup.radio.(Station); ok {
		files = append(files, nsFile{"/net/station", NewFuncFile(func() ([]byte, error) {
			bssid, rssi, ok := st.Station()
			if !ok {
				return line("none")
			}
			return line("%s at %d dBm", net.HardwareAddr(bssid[:]), rssi)
		})})
	}
	if err := ns.NewDir("/net", 0555); err != nil {
		return nil, err
	}
	for _, f := range files {
		if err := ns.NewFile(f.path, 0444, f.impl); err != nil {
			return nil, err
		}
	}
	return ns, nil
}

func formatStats(sup *Supervisor, drv *Driver) string {
	buf := new(strings.Builder)
	st := sup.Stats()
	fmt.Fprintf(buf, "starts %d\n", st.Starts)
	fmt.Fprintf(buf, "attempts %d\n", st.Attempts)
	fmt.Fprintf(buf, "failures %d\n", st.Failures)
	fmt.Fprintf(buf, "connects %d\n", st.Connects)
	fmt.Fprintf(buf, "disconnects %d\n", st.Disconnects)
	if drv != nil {
		ds := drv.Stats()
		fmt.Fprintf(buf, "rx %d\n", ds.Received)
		fmt.Fprintf(buf, "tx %d\n", ds.Sent)
		fmt.Fprintf(buf, "dropped %d\n", ds.Dropped)
	}
	return buf.String()
}
