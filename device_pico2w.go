//go:build rp2350

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
	"log/slog"
	"machine"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/soypat/cyw43439"
)

// consecutive NIC errors before the association is considered lost
const maxNICErrors = 8

// device defaults: DHCP only, standard 9p port
const (
	defaultIP       = ""
	defaultPort     = 564
	defaultDHCPWait = DefaultDHCPWait
)

// Raspberry Pico2 W  [RP2350]
type Pico2WDevice struct {
	ref   *cyw43439.Device // reference to device
	radio *picoRadio
	nic   *picoNIC
}

// InitDevice accesses the CYW43439 chip. The chip itself is brought
// up by the radio start.
func InitDevice(logger *slog.Logger) Device {
	dev := new(Pico2WDevice)
	dev.ref = cyw43439.NewPicoWDevice()
	dev.radio = &picoRadio{dev: dev.ref, log: logger}
	dev.nic = &picoNIC{dev: dev.ref, radio: dev.radio}
	return dev
}

// DeviceLogger logs to the serial console.
func DeviceLogger(level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(machine.Serial, &slog.HandlerOptions{Level: level}))
}

// LED on or off (if applicable)
func (dev *Pico2WDevice) LED(on bool) {
	if dev.radio.started.Load() {
		dev.ref.GPIOSet(0, on)
	}
}

// Radio of the device
func (dev *Pico2WDevice) Radio() Radio {
	return dev.radio
}

// NIC of the device
func (dev *Pico2WDevice) NIC() NIC {
	return dev.nic
}

// HardwareAddr of the chip
func (dev *Pico2WDevice) HardwareAddr() ([6]byte, error) {
	if !dev.radio.started.Load() {
		return [6]byte{}, ErrNotStarted
	}
	return dev.ref.HardwareAddr6()
}

// MTU of the chip
func (dev *Pico2WDevice) MTU() int {
	return cyw43439.MTU
}

// Seed from boot time
func (dev *Pico2WDevice) Seed() uint64 {
	return uint64(time.Now().UnixNano())
}

// Bind stack to receive path
func (dev *Pico2WDevice) Bind(stack *Stack) {
	dev.ref.RecvEthHandle(stack.RecvEth)
}

// Listen on a TCP port of the stack; one connection at a time.
func (dev *Pico2WDevice) Listen(stack *Stack, port uint16) (net.Listener, error) {
	return stack.Listen(port, 1)
}

//----------------------------------------------------------------------

// picoRadio controls the CYW43439 in station mode.
type picoRadio struct {
	Link

	dev     *cyw43439.Device
	log     *slog.Logger
	started atomic.Bool

	mu    sync.Mutex
	creds *Credentials
}

func (r *picoRadio) IsStarted() (bool, error) {
	return r.started.Load(), nil
}

func (r *picoRadio) SetConfig(creds Credentials) error {
	if err := creds.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	r.creds = &creds
	r.mu.Unlock()
	return nil
}

// Start initializes the chip. Blocks until the firmware is loaded.
func (r *picoRadio) Start(ctx context.Context) error {
	wificfg := cyw43439.DefaultWifiConfig()
	wificfg.Logger = r.log
	t0 := time.Now()
	if err := r.dev.Init(wificfg); err != nil {
		return errors.Join(ErrRadioStart, err)
	}
	r.log.Info("cyw43439:Init", slog.Duration("duration", time.Since(t0)))
	r.started.Store(true)
	r.Set(LinkStarted)
	return nil
}

// Connect joins the configured network.
func (r *picoRadio) Connect(ctx context.Context) error {
	r.mu.Lock()
	creds := r.creds
	r.mu.Unlock()
	if creds == nil {
		return ErrNoConfig
	}
	if !r.started.Load() {
		return ErrNotStarted
	}
	if creds.Open() {
		r.log.Info("joining open network", slog.String("ssid", creds.SSID()))
	} else {
		r.log.Info("joining WPA secure network", slog.String("ssid", creds.SSID()), slog.Int("passlen", len(creds.Passwd())))
	}
	if err := r.dev.JoinWPA2(creds.SSID(), creds.Passwd()); err != nil {
		return err
	}
	r.Set(LinkConnected)
	return nil
}

func (r *picoRadio) WaitFor(ctx context.Context, ev LinkEvent) error {
	return r.Wait(ctx, ev)
}

// lost is called by the NIC if the data plane stopped working.
func (r *picoRadio) lost() {
	if r.State() == LinkConnected {
		r.Set(LinkStarted)
	}
}

//----------------------------------------------------------------------

// picoNIC is the data plane of the chip. Persistent errors are
// reported to the radio as loss of association.
type picoNIC struct {
	dev    *cyw43439.Device
	radio  *picoRadio
	errors int
}

func (n *picoNIC) PollOne() (bool, error) {
	got, err := n.dev.PollOne()
	n.track(err)
	return got, err
}

func (n *picoNIC) SendEth(pkt []byte) error {
	err := n.dev.SendEth(pkt)
	n.track(err)
	return err
}

func (n *picoNIC) track(err error) {
	if err == nil {
		n.errors = 0
		return
	}
	if n.errors++; n.errors == maxNICErrors {
		n.radio.lost()
	}
}
