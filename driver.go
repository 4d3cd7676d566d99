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
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Driver errors
var (
	ErrDriverActive = errors.New("stack already driven")
)

// NIC is the data plane of a network interface.
type NIC interface {
	// PollOne processes at most one incoming frame (handed to the
	// receive handler of the stack); returns true if a frame was read.
	PollOne() (bool, error)

	// SendEth transmits an ethernet frame.
	SendEth(pkt []byte) error
}

// PacketStack produces outgoing frames.
type PacketStack interface {
	// HandleEth writes the next pending frame into dst and returns its
	// length (0 if nothing is pending).
	HandleEth(dst []byte) (int, error)
}

// driver defaults
const (
	DefaultIdleDelay = 51 * time.Millisecond
	DefaultMTU       = 1500

	queueSize                = 3 // max. number of frames queued before sending
	maxRetriesBeforeDropping = 3
)

// stacks with a running driver
var driven sync.Map

// DriverConfig for a stack driver. Zero values select defaults.
type DriverConfig struct {
	MTU       int
	IdleDelay time.Duration // suspend time if neither Rx nor Tx has work
	Logger    *slog.Logger
	Clock     Clock
}

// Driver moves frames between a NIC and a packet stack.
type Driver struct {
	nic   NIC
	stack PacketStack
	cfg   DriverConfig
	log   *slog.Logger
	clk   Clock
	wake  chan struct{}

	sent, dropped, polled atomic.Uint64
}

// DriverStats counts processed frames.
type DriverStats struct {
	Received uint64 // frames polled from the NIC
	Sent     uint64 // frames sent
	Dropped  uint64 // frames dropped after retries
}

// Stats returns a snapshot of the frame counters.
func (d *Driver) Stats() DriverStats {
	return DriverStats{
		Received: d.polled.Load(),
		Sent:     d.sent.Load(),
		Dropped:  d.dropped.Load(),
	}
}

// NewDriver for the given NIC and stack.
func NewDriver(nic NIC, stack PacketStack, cfg DriverConfig) *Driver {
	if cfg.MTU <= 0 {
		cfg.MTU = DefaultMTU
	}
	if cfg.IdleDelay <= 0 {
		cfg.IdleDelay = DefaultIdleDelay
	}
	d := &Driver{
		nic:   nic,
		stack: stack,
		cfg:   cfg,
		log:   cfg.Logger,
		clk:   cfg.Clock,
		wake:  make(chan struct{}, 1),
	}
	if d.log == nil {
		d.log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if d.clk == nil {
		d.clk = SystemClock{}
	}
	if s, ok := stack.(*Stack); ok {
		s.setNotify(d.Wake)
	}
	return d
}

// Wake a suspended driver (new work in the stack).
func (d *Driver) Wake() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// Run the driver loop. It only returns if the context is done or if
// the stack is already driven by another driver.
func (d *Driver) Run(ctx context.Context) error {
	if _, busy := driven.LoadOrStore(d.stack, d); busy {
		return ErrDriverActive
	}
	defer driven.Delete(d.stack)

	mtu := d.cfg.MTU
	var (
		queue   [queueSize][]byte
		lenBuf  [queueSize]int
		retries [queueSize]int
	)
	for i := range queue {
		queue[i] = make([]byte, mtu)
	}
	markSent := func(i int) {
		lenBuf[i] = 0
		retries[i] = 0
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		// poll for an incoming frame
		stallRx := true
		gotPacket, err := d.nic.PollOne()
		if err != nil {
			d.log.Debug("poll error", slog.String("err", err.Error()))
		}
		if gotPacket {
			d.polled.Add(1)
			stallRx = false
		}

		// collect frames to be sent
		for i := range queue {
			if retries[i] != 0 {
				continue // queued for retransmission
			}
			n, err := d.stack.HandleEth(queue[i])
			if err != nil {
				d.log.Debug("stack error", slog.Int("n", n), slog.String("err", err.Error()))
				lenBuf[i] = 0
				continue
			}
			lenBuf[i] = n
			if n == 0 {
				break
			}
		}
		if lenBuf == [queueSize]int{} {
			if stallRx {
				// nothing to do: suspend until timeout or wake-up
				select {
				case <-d.clk.After(d.cfg.IdleDelay):
				case <-d.wake:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			continue
		}

		// send queued frames
		for i := range queue {
			n := lenBuf[i]
			if n <= 0 {
				continue
			}
			if err := d.nic.SendEth(queue[i][:n]); err != nil {
				retries[i]++
				if retries[i] > maxRetriesBeforeDropping {
					markSent(i)
					d.dropped.Add(1)
					d.log.Warn("dropped outgoing packet", slog.String("err", err.Error()))
				}
				continue
			}
			markSent(i)
			d.sent.Add(1)
		}
	}
}
