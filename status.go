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
	"sync/atomic"
	"time"
)

// status codes (number of LED blinks)
const (
	StatUNK    = iota // unknown status (init)
	StatOK            // connected and serving
	StatDEV           // device failure
	StatCONF          // invalid build configuration
	StatSTART         // radio start failed
	StatWPA2          // association failed
	StatLINK          // association lost
	StatDHCP1         // DHCP request failed
	StatDHCP2         // no DHCP reply
	StatIP            // invalid IP address
	StatLISTEN        // failed to create listener
	StatSRV           // can't serve status filesystem
	StatPORT          // invalid port specified
	StatEXCP          // exception (panic) occured
)

// Status handler.
// Show current status depending on hardware device.
type Status struct {
	dev    Device       // reference to device
	curr   atomic.Int32 // current state
	repeat atomic.Int32 // current repeat counter
}

// NewStatus creates a new status display and starts blinking.
func NewStatus(dev Device) *Status {
	state := &Status{dev: dev}
	state.curr.Store(StatUNK)
	go state.blink()
	return state
}

// blink LED <state> times every five seconds; long blinks count five.
func (state *Status) blink() {
	for {
		time.Sleep(5 * time.Second)
		num := state.curr.Load()
		for num > 5 {
			state.pulse(time.Second, 300*time.Millisecond)
			num -= 5
		}
		for range num {
			state.pulse(150*time.Millisecond, 150*time.Millisecond)
		}
		if state.repeat.Add(-1) == 0 {
			state.curr.Store(StatOK)
		}
	}
}

func (state *Status) pulse(on, off time.Duration) {
	state.dev.LED(true)
	time.Sleep(on)
	state.dev.LED(false)
	time.Sleep(off)
}

// Set status and repeat <num> times (0 = until changed).
func (state *Status) Set(flag, num int) {
	if state != nil {
		state.curr.Store(int32(flag))
		state.repeat.Store(int32(num))
	}
}

// Get current state and repeat counter
func (state *Status) Get() (int, int) {
	if state == nil {
		return StatUNK, 0
	}
	return int(state.curr.Load()), int(state.repeat.Load())
}

// Trap critical failures (panic). Must be deferred.
func (state *Status) Trap(t time.Duration) {
	s, _ := state.Get()
	if r := recover(); r != nil {
		fmt.Printf("EXCP: %v\n", r)
		if s == StatOK {
			state.Set(StatEXCP, 0)
		}
	} else if s == StatOK {
		state.Set(StatUNK, 0)
	}
	time.Sleep(t)
}
