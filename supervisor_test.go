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
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// virtual clock: timers fire immediately and advance the time.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.sleeps = append(c.sleeps, d)
	ch := make(chan time.Time, 1)
	ch <- c.now
	c.mu.Unlock()
	return ch
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

//----------------------------------------------------------------------

type radioCall struct {
	op string
	at time.Time
}

// scripted radio; all operations run on the supervisor goroutine.
type fakeRadio struct {
	Link

	clk     *fakeClock
	calls   []radioCall
	started bool
	creds   []Credentials

	startFails   int           // number of failing starts
	connectFails int           // number of failing connects
	connectTime  time.Duration // time a connect attempt takes
	dropAfter    time.Duration // disassociate this long after WaitFor (0 = never)
	configErr    error

	// stop decides after each call whether the test is done.
	stop   func(r *fakeRadio) bool
	cancel context.CancelFunc
}

func (r *fakeRadio) record(op string) {
	r.calls = append(r.calls, radioCall{op: op, at: r.clk.Now()})
	if r.stop != nil && r.stop(r) {
		r.cancel()
	}
}

func (r *fakeRadio) count(op string) (n int) {
	for _, c := range r.calls {
		if c.op == op {
			n++
		}
	}
	return
}

func (r *fakeRadio) ops() (list []string) {
	for _, c := range r.calls {
		list = append(list, c.op)
	}
	return
}

func (r *fakeRadio) IsStarted() (bool, error) {
	r.record("started?")
	return r.started, nil
}

func (r *fakeRadio) SetConfig(creds Credentials) error {
	r.creds = append(r.creds, creds)
	r.record("config")
	return r.configErr
}

func (r *fakeRadio) Start(ctx context.Context) error {
	if r.startFails > 0 {
		r.startFails--
		r.record("start-fail")
		return ErrRadioStart
	}
	r.started = true
	r.Set(LinkStarted)
	r.record("start")
	return nil
}

func (r *fakeRadio) Connect(ctx context.Context) error {
	r.record("connect")
	r.clk.advance(r.connectTime)
	if r.connectFails > 0 {
		r.connectFails--
		r.record("connect-fail")
		return ErrAuthFailure
	}
	r.Set(LinkConnected)
	r.record("connected")
	return nil
}

func (r *fakeRadio) WaitFor(ctx context.Context, ev LinkEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if ev != EventDisconnected || r.dropAfter == 0 {
		return r.Wait(ctx, ev)
	}
	r.clk.advance(r.dropAfter)
	r.Set(LinkStarted)
	r.record("disassoc")
	return ctx.Err()
}

func newTestSupervisor(t *testing.T, r *fakeRadio, creds Credentials) (*Supervisor, *bytes.Buffer, context.Context) {
	t.Helper()
	buf := new(bytes.Buffer)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	r.cancel = cancel
	sup, err := NewSupervisor(r, creds, SupervisorConfig{
		Logger: slog.New(slog.NewTextHandler(buf, nil)),
		Clock:  r.clk,
	})
	require.NoError(t, err)
	return sup, buf, ctx
}

func testCreds(t *testing.T) Credentials {
	t.Helper()
	creds, err := NewCredentials("TestNet", "secret123")
	require.NoError(t, err)
	return creds
}

// time of the n-th (0-based) occurrence of op
func callTime(t *testing.T, r *fakeRadio, op string, n int) time.Time {
	t.Helper()
	for _, c := range r.calls {
		if c.op == op {
			if n == 0 {
				return c.at
			}
			n--
		}
	}
	t.Fatalf("no call %q", op)
	return time.Time{}
}

//----------------------------------------------------------------------

func TestSupervisorRetriesUntilConnected(t *testing.T) {
	r := &fakeRadio{
		clk:          newFakeClock(),
		connectFails: 2,
		connectTime:  2 * time.Second,
		stop:         func(r *fakeRadio) bool { return r.count("connected") == 1 },
	}
	sup, buf, ctx := newTestSupervisor(t, r, testCreds(t))

	err := sup.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, LinkConnected, r.State())

	out := buf.String()
	assert.Equal(t, 2, strings.Count(out, `msg="failed to connect to wifi"`))
	assert.Equal(t, 1, strings.Count(out, "msg=connected"))
	assert.Equal(t, 3, r.count("connect"))

	// the backoff counts from the failure, not from the attempt
	for i := range 2 {
		failed := callTime(t, r, "connect-fail", i)
		next := callTime(t, r, "connect", i+1)
		assert.GreaterOrEqual(t, next.Sub(failed), DefaultBackoff)
	}
	// radio is configured and started once
	assert.Equal(t, 1, r.count("start"))
	assert.Equal(t, 1, r.count("config"))

	st := sup.Stats()
	assert.Equal(t, SupervisorStats{Attempts: 3, Failures: 2, Connects: 1, Starts: 1}, st)
}

func TestSupervisorSettlesAfterDisassociation(t *testing.T) {
	r := &fakeRadio{
		clk:       newFakeClock(),
		dropAfter: 100 * time.Millisecond,
		stop:      func(r *fakeRadio) bool { return r.count("connect") == 2 },
	}
	sup, _, ctx := newTestSupervisor(t, r, testCreds(t))

	err := sup.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	lost := callTime(t, r, "disassoc", 0)
	assert.Equal(t, 100*time.Millisecond, lost.Sub(callTime(t, r, "connected", 0)))

	// nothing happens within the settle delay
	for _, c := range r.calls {
		if c.at.After(lost) {
			assert.GreaterOrEqual(t, c.at.Sub(lost), DefaultSettleDelay, c.op)
		}
	}
	assert.GreaterOrEqual(t, callTime(t, r, "connect", 1).Sub(lost), DefaultSettleDelay)

	// radio is still started: no second configuration or start
	assert.Equal(t, []string{
		"started?", "config", "start", "connect", "connected",
		"disassoc", "started?", "connect", "connected",
	}, r.ops())
	assert.Equal(t, uint32(1), sup.Stats().Disconnects)
}

func TestSupervisorSkipsStartIfStarted(t *testing.T) {
	r := &fakeRadio{
		clk:     newFakeClock(),
		started: true,
		stop:    func(r *fakeRadio) bool { return r.count("connected") == 1 },
	}
	sup, _, ctx := newTestSupervisor(t, r, testCreds(t))

	assert.ErrorIs(t, sup.Run(ctx), context.Canceled)
	assert.Equal(t, []string{"started?", "connect", "connected"}, r.ops())
	assert.Empty(t, r.creds)
}

func TestSupervisorRetriesStartWithoutBackoff(t *testing.T) {
	r := &fakeRadio{
		clk:        newFakeClock(),
		startFails: 2,
		stop:       func(r *fakeRadio) bool { return r.count("connected") == 1 },
	}
	sup, buf, ctx := newTestSupervisor(t, r, testCreds(t))

	assert.ErrorIs(t, sup.Run(ctx), context.Canceled)
	assert.Equal(t, []string{
		"started?", "config", "start-fail",
		"started?", "config", "start-fail",
		"started?", "config", "start", "connect", "connected",
	}, r.ops())
	assert.Empty(t, r.clk.sleeps)
	assert.Equal(t, 2, strings.Count(buf.String(), `msg="wifi start failed"`))

	// applying the same configuration again is harmless
	for _, c := range r.creds {
		assert.Equal(t, r.creds[0], c)
	}
}

func TestSupervisorStartRetryDelay(t *testing.T) {
	r := &fakeRadio{
		clk:        newFakeClock(),
		startFails: 1,
		stop:       func(r *fakeRadio) bool { return r.count("connected") == 1 },
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r.cancel = cancel
	sup, err := NewSupervisor(r, testCreds(t), SupervisorConfig{
		StartRetryDelay: time.Second,
		Clock:           r.clk,
	})
	require.NoError(t, err)

	assert.ErrorIs(t, sup.Run(ctx), context.Canceled)
	assert.Equal(t, []time.Duration{time.Second}, r.clk.sleeps)
}

func TestSupervisorRejectsOversizedCredentials(t *testing.T) {
	r := &fakeRadio{clk: newFakeClock()}
	creds := Credentials{ssid: strings.Repeat("x", MaxSSIDLen+1), passwd: "secret123"}

	sup, err := NewSupervisor(r, creds, SupervisorConfig{})
	assert.Nil(t, sup)
	var cerr *ConfigError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "ssid", cerr.Field)
	assert.Empty(t, r.calls)
}

func TestSupervisorConfigErrorIsFatal(t *testing.T) {
	r := &fakeRadio{
		clk:       newFakeClock(),
		configErr: errors.New("buffer too small"),
	}
	sup, _, ctx := newTestSupervisor(t, r, testCreds(t))

	err := sup.Run(ctx)
	var cerr *ConfigError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, []string{"started?", "config"}, r.ops())
	assert.Zero(t, r.count("start"))
}

func TestSupervisorOnConnect(t *testing.T) {
	r := &fakeRadio{
		clk:  newFakeClock(),
		stop: func(r *fakeRadio) bool { return r.count("connected") == 1 },
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r.cancel = cancel
	var calls int
	sup, err := NewSupervisor(r, testCreds(t), SupervisorConfig{
		Clock:     r.clk,
		OnConnect: func() { calls++ },
	})
	require.NoError(t, err)

	assert.ErrorIs(t, sup.Run(ctx), context.Canceled)
	assert.Equal(t, 1, calls)
	assert.Equal(t, "TestNet", sup.SSID())
	assert.Equal(t, LinkConnected, sup.State())
}
