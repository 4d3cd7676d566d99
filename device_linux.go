//go:build !rp2350

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
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// host defaults: the simulated NIC never sees a DHCP server and ports
// below 1024 are privileged.
const (
	defaultIP       = "127.0.0.1"
	defaultPort     = 5640
	defaultDHCPWait = time.Second
)

// LinuxDevice (for testing purposes): a simulated radio that joins
// any network and a NIC without traffic.
type LinuxDevice struct {
	radio *SimRadio
	nic   *simNIC
}

// InitDevice returns the simulated device.
func InitDevice(_ *slog.Logger) Device {
	return &LinuxDevice{
		radio: NewSimRadio(),
		nic:   new(simNIC),
	}
}

// DeviceLogger logs to stderr.
func DeviceLogger(level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// LED on or off (not applicable)
func (dev *LinuxDevice) LED(on bool) {}

// Radio of the device
func (dev *LinuxDevice) Radio() Radio {
	return dev.radio
}

// Sim returns the simulated radio.
func (dev *LinuxDevice) Sim() *SimRadio {
	return dev.radio
}

// NIC of the device
func (dev *LinuxDevice) NIC() NIC {
	return dev.nic
}

// HardwareAddr is a locally administered address.
func (dev *LinuxDevice) HardwareAddr() ([6]byte, error) {
	return [6]byte{0x02, 0x00, 0x00, 0x00, 0x00, 0x01}, nil
}

// MTU of the device
func (dev *LinuxDevice) MTU() int {
	return DefaultMTU
}

// Seed returns a random seed.
func (dev *LinuxDevice) Seed() uint64 {
	return rand.Uint64()
}

// Bind stack to receive path
func (dev *LinuxDevice) Bind(stack *Stack) {
	dev.nic.mu.Lock()
	dev.nic.recv = stack.RecvEth
	dev.nic.mu.Unlock()
}

// Listen returns a TCP listener of the host on the given port. The
// stack is not involved.
func (dev *LinuxDevice) Listen(_ *Stack, port uint16) (net.Listener, error) {
	cfg := new(net.ListenConfig)
	return cfg.Listen(context.Background(), "tcp", fmt.Sprintf(":%d", port))
}

//----------------------------------------------------------------------

// simNIC discards outgoing frames and never receives any.
type simNIC struct {
	mu   sync.Mutex
	recv func([]byte) error
	sent atomic.Uint64
}

func (n *simNIC) PollOne() (bool, error) {
	return false, nil
}

func (n *simNIC) SendEth(pkt []byte) error {
	n.sent.Add(1)
	return nil
}

//----------------------------------------------------------------------

// SimRadio is a radio that associates with every network. Link loss
// is simulated with Drop.
type SimRadio struct {
	Link

	mu      sync.Mutex
	creds   *Credentials
	started bool
}

// NewSimRadio creates a stopped simulated radio.
func NewSimRadio() *SimRadio {
	return new(SimRadio)
}

// IsStarted returns true if the radio is up.
func (r *SimRadio) IsStarted() (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.started, nil
}

// SetConfig stores the client configuration.
func (r *SimRadio) SetConfig(creds Credentials) error {
	if err := creds.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	r.creds = &creds
	r.mu.Unlock()
	return nil
}

// Start the radio
func (r *SimRadio) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.creds == nil {
		return ErrNoConfig
	}
	r.started = true
	r.Set(LinkStarted)
	return nil
}

// Connect to the configured network
func (r *SimRadio) Connect(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.started {
		return ErrNotStarted
	}
	r.Set(LinkConnected)
	return nil
}

// WaitFor a link event
func (r *SimRadio) WaitFor(ctx context.Context, ev LinkEvent) error {
	return r.Wait(ctx, ev)
}

// simulated access point
var simBSSID = [6]byte{0x02, 0x00, 0x00, 0x00, 0x00, 0xfe}

const simRSSI = -42

// Station returns the simulated access point while associated.
func (r *SimRadio) Station() (bssid [6]byte, rssi int, ok bool) {
	if r.State() != LinkConnected {
		return
	}
	return simBSSID, simRSSI, true
}

// Drop the association (if any).
func (r *SimRadio) Drop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.State() == LinkConnected {
		r.Set(LinkStarted)
	}
}
