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
	"slices"
	"sync"
)

// LinkState of the radio interface
type LinkState int32

// link states
const (
	LinkDisconnected LinkState = iota // not associated (initial)
	LinkStarted                       // radio started, not (yet) associated
	LinkConnected                     // associated to access point
)

// String returns a human-readable link state.
func (s LinkState) String() string {
	switch s {
	case LinkDisconnected:
		return "disconnected"
	case LinkStarted:
		return "started"
	case LinkConnected:
		return "connected"
	}
	return "unknown"
}

// LinkEvent is published on link state transitions.
type LinkEvent int

// link events
const (
	EventStarted      LinkEvent = iota + 1 // radio started
	EventConnected                         // association established
	EventDisconnected                      // association lost
	EventStopped                           // radio stopped
)

// String returns the event name.
func (ev LinkEvent) String() string {
	switch ev {
	case EventStarted:
		return "started"
	case EventConnected:
		return "connected"
	case EventDisconnected:
		return "disconnected"
	case EventStopped:
		return "stopped"
	}
	return "unknown"
}

// events caused by a transition from old to new state.
func linkEvents(old, new LinkState) (evs []LinkEvent) {
	if old == new {
		return
	}
	if old == LinkConnected {
		evs = append(evs, EventDisconnected)
	}
	switch new {
	case LinkStarted:
		if old == LinkDisconnected {
			evs = append(evs, EventStarted)
		}
	case LinkConnected:
		evs = append(evs, EventConnected)
	case LinkDisconnected:
		evs = append(evs, EventStopped)
	}
	return
}

// reached returns true if state s is the outcome of event ev.
func reached(s LinkState, ev LinkEvent) bool {
	switch ev {
	case EventStarted:
		return s != LinkDisconnected
	case EventConnected:
		return s == LinkConnected
	case EventDisconnected:
		return s != LinkConnected
	case EventStopped:
		return s == LinkDisconnected
	}
	return false
}

//----------------------------------------------------------------------

// Link holds the state of a radio interface. It is owned and mutated by
// the radio implementation; everyone else only queries the state or
// waits for events. The zero value is a disconnected link.
type Link struct {
	mu      sync.Mutex
	state   LinkState
	waiters []*linkWaiter
}

type linkWaiter struct {
	ev LinkEvent
	ch chan struct{}
}

// State returns the current link state.
func (l *Link) State() LinkState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Set a new link state and wake up waiters for the resulting events.
func (l *Link) Set(s LinkState) {
	l.mu.Lock()
	defer l.mu.Unlock()
	evs := linkEvents(l.state, s)
	l.state = s
	if len(evs) == 0 {
		return
	}
	l.waiters = slices.DeleteFunc(l.waiters, func(w *linkWaiter) bool {
		if slices.Contains(evs, w.ev) {
			close(w.ch)
			return true
		}
		return false
	})
}

// Wait blocks until the given event occurs or the context is done.
// If the link already is in the state the event leads to, Wait
// returns immediately.
func (l *Link) Wait(ctx context.Context, ev LinkEvent) error {
	w := &linkWaiter{ev: ev, ch: make(chan struct{})}
	l.mu.Lock()
	if reached(l.state, ev) {
		l.mu.Unlock()
		return nil
	}
	l.waiters = append(l.waiters, w)
	l.mu.Unlock()

	select {
	case <-w.ch:
		return nil
	case <-ctx.Done():
		l.mu.Lock()
		l.waiters = slices.DeleteFunc(l.waiters, func(x *linkWaiter) bool { return x == w })
		l.mu.Unlock()
		return ctx.Err()
	}
}
