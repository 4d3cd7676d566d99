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
	"sync/atomic"
	"time"
)

// Default supervisor timing
const (
	DefaultBackoff     = 5000 * time.Millisecond // wait after failed association
	DefaultSettleDelay = 5000 * time.Millisecond // wait after lost association
)

// SupervisorConfig for the association supervisor. Zero values
// select the defaults.
type SupervisorConfig struct {
	Backoff     time.Duration // delay after a failed connect
	SettleDelay time.Duration // delay after a disassociation

	// StartRetryDelay is the delay after a failed radio start. Zero
	// only yields before the next attempt.
	StartRetryDelay time.Duration

	Logger *slog.Logger
	Clock  Clock
	Status *Status

	// OnConnect is called after each successful association.
	OnConnect func()
}

// SupervisorStats counts supervisor activity.
type SupervisorStats struct {
	Attempts    uint32 // connect commands issued
	Failures    uint32 // failed connects
	Connects    uint32 // successful connects
	Disconnects uint32 // lost associations
	Starts      uint32 // radio start commands issued
}

// Supervisor keeps the radio associated to the configured network.
type Supervisor struct {
	radio Radio
	creds Credentials
	cfg   SupervisorConfig
	log   *slog.Logger
	clk   Clock

	attempts    atomic.Uint32
	failures    atomic.Uint32
	connects    atomic.Uint32
	disconnects atomic.Uint32
	starts      atomic.Uint32
}

// NewSupervisor creates a supervisor owning the given radio. Invalid
// credentials are rejected with a *ConfigError.
func NewSupervisor(radio Radio, creds Credentials, cfg SupervisorConfig) (*Supervisor, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = DefaultBackoff
	}
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = DefaultSettleDelay
	}
	s := &Supervisor{
		radio: radio,
		creds: creds,
		cfg:   cfg,
		log:   cfg.Logger,
		clk:   cfg.Clock,
	}
	if s.log == nil {
		s.log = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
			Level: slog.Level(127),
		}))
	}
	if s.clk == nil {
		s.clk = SystemClock{}
	}
	return s, nil
}

// SSID of the supervised network
func (s *Supervisor) SSID() string {
	return s.creds.SSID()
}

// State of the supervised link
func (s *Supervisor) State() LinkState {
	return s.radio.State()
}

// Stats returns a snapshot of the counters.
func (s *Supervisor) Stats() SupervisorStats {
	return SupervisorStats{
		Attempts:    s.attempts.Load(),
		Failures:    s.failures.Load(),
		Connects:    s.connects.Load(),
		Disconnects: s.disconnects.Load(),
		Starts:      s.starts.Load(),
	}
}

// Run the supervisor loop. It only returns on a configuration error
// or if the context is done.
func (s *Supervisor) Run(ctx context.Context) error {
	for {
		if err := s.step(ctx); err != nil {
			var cerr *ConfigError
			if errors.As(err, &cerr) {
				s.log.Error("invalid radio configuration", slog.String("err", err.Error()))
				s.cfg.Status.Set(StatCONF, 0)
			}
			return err
		}
	}
}

// step is one pass through the loop.
func (s *Supervisor) step(ctx context.Context) error {
	if s.radio.State() == LinkConnected {
		if err := s.radio.WaitFor(ctx, EventDisconnected); err != nil {
			return err
		}
		s.disconnects.Add(1)
		s.cfg.Status.Set(StatLINK, 0)
		s.log.Warn("wifi association lost", slog.Duration("settle", s.cfg.SettleDelay))
		if err := sleep(ctx, s.clk, s.cfg.SettleDelay); err != nil {
			return err
		}
	}

	// configure and start the radio unless already running
	if started, err := s.radio.IsStarted(); err != nil || !started {
		s.log.Info("attempting to connect", slog.String("ssid", s.creds.SSID()))
		if err := s.radio.SetConfig(s.creds); err != nil {
			var cerr *ConfigError
			if !errors.As(err, &cerr) {
				err = &ConfigError{Field: "client", Reason: "rejected", Err: err}
			}
			return err
		}
		s.starts.Add(1)
		if err := s.radio.Start(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.log.Error("wifi start failed", slog.String("err", err.Error()))
			s.cfg.Status.Set(StatSTART, 0)
			return sleep(ctx, s.clk, s.cfg.StartRetryDelay)
		}
	}

	s.attempts.Add(1)
	if err := s.radio.Connect(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.failures.Add(1)
		s.cfg.Status.Set(StatWPA2, 0)
		s.log.Error("failed to connect to wifi", slog.String("err", err.Error()))
		return sleep(ctx, s.clk, s.cfg.Backoff)
	}
	s.connects.Add(1)
	s.cfg.Status.Set(StatOK, 0)
	s.log.Info("connected", slog.String("ssid", s.creds.SSID()))
	if s.cfg.OnConnect != nil {
		s.cfg.OnConnect()
	}
	return nil
}
