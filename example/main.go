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

package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"time"

	"github.com/bfix/wifisup"
	"golang.org/x/sync/errgroup"
)

// WiFi credentials and 9p port (set at build time)
var (
	SSID   string
	Passwd string
	Host   string
	IP     string
	Port   string
)

// keep the device associated and serve its network status via 9p
func main() {
	fname := flag.String("config", "", "YAML configuration file")
	flag.Parse()

	cfg := wifisup.DefaultConfig()
	var cfgErr error
	if len(*fname) > 0 {
		if c, err := wifisup.LoadConfig(*fname); err != nil {
			cfgErr = err
		} else {
			cfg = c
		}
	}
	logger := wifisup.DeviceLogger(cfg.Level())

	// access device
	dev := wifisup.InitDevice(logger)
	state := wifisup.NewStatus(dev)
	defer state.Trap(30 * time.Second)

	if cfgErr == nil {
		cfgErr = cfg.Override(SSID, Passwd, Host, IP, Port)
	}
	if cfgErr != nil {
		logger.Error("configuration failed", slog.String("err", cfgErr.Error()))
		state.Set(configCode(cfgErr), 0)
		return
	}
	// there is no shutdown
	if err := run(context.Background(), dev, cfg, state, logger); err != nil {
		logger.Error("terminated", slog.String("err", err.Error()))
	}
}

// configCode is the status code for a configuration error.
func configCode(err error) int {
	var cerr *wifisup.ConfigError
	if errors.As(err, &cerr) && cerr.Field == "port" {
		return wifisup.StatPORT
	}
	return wifisup.StatCONF
}

// run the supervisor and the status server side by side. Failures on
// the status side are retried and never stop the supervisor.
func run(ctx context.Context, dev wifisup.Device, cfg *wifisup.Config,
	state *wifisup.Status, logger *slog.Logger) error {

	creds, err := cfg.Credentials()
	if err != nil {
		logger.Error("invalid credentials", slog.String("err", err.Error()))
		state.Set(wifisup.StatCONF, 0)
		return err
	}
	sup, err := wifisup.NewSupervisor(dev.Radio(), creds, wifisup.SupervisorConfig{
		Backoff:     cfg.Backoff,
		SettleDelay: cfg.Settle,
		Logger:      logger,
		Status:      state,
	})
	if err != nil {
		state.Set(wifisup.StatCONF, 0)
		return err
	}

	var g errgroup.Group
	g.Go(func() error {
		return sup.Run(ctx)
	})
	g.Go(func() error {
		serve(ctx, &g, dev, cfg, sup, state, logger)
		return nil
	})
	return g.Wait()
}

// serve sets up the stack once the radio is up, keeps the stack driver
// running and serves the status filesystem. Returns only if the
// context is done.
func serve(ctx context.Context, g *errgroup.Group, dev wifisup.Device, cfg *wifisup.Config,
	sup *wifisup.Supervisor, state *wifisup.Status, logger *slog.Logger) {

	// report a failure and wait before the next try
	pause := func(code int, msg string, err error) bool {
		logger.Error(msg, slog.Any("err", err))
		state.Set(code, 0)
		select {
		case <-time.After(cfg.Backoff):
			return true
		case <-ctx.Done():
			return false
		}
	}

	// the hardware address is known after the radio started
	radio := dev.Radio()
	var stack *wifisup.Stack
	for stack == nil {
		if radio.WaitFor(ctx, wifisup.EventStarted) != nil {
			return
		}
		mac, err := dev.HardwareAddr()
		if err != nil {
			if !pause(wifisup.StatDEV, "no hardware address", err) {
				return
			}
			continue
		}
		if stack, err = wifisup.NewStack(wifisup.StackConfig{
			MAC:         mac,
			MTU:         dev.MTU(),
			Hostname:    cfg.Host,
			RequestedIP: cfg.IP,
			Sockets:     cfg.Sockets,
			DHCPWait:    cfg.DHCPWait,
			Seed:        dev.Seed(),
			Logger:      logger,
		}); err != nil {
			if !pause(wifisup.StatIP, "stack setup failed", err) {
				return
			}
		}
	}
	dev.Bind(stack)
	drv := wifisup.NewDriver(dev.NIC(), stack, wifisup.DriverConfig{
		MTU:    dev.MTU(),
		Logger: logger,
	})
	g.Go(func() error {
		return drv.Run(ctx)
	})

	// acquire an address while associated
	for {
		if radio.WaitFor(ctx, wifisup.EventConnected) != nil {
			return
		}
		_, err := stack.Acquire(ctx)
		if err == nil {
			break
		}
		code := wifisup.StatDHCP1
		if errors.Is(err, wifisup.ErrNoDHCP) {
			code = wifisup.StatDHCP2
		}
		if ctx.Err() != nil || !pause(code, "address acquisition failed", err) {
			return
		}
	}

	// serve status filesystem
	ns, err := wifisup.NewNetNamespace(sup, stack, drv)
	if err != nil {
		logger.Error("status filesystem failed", slog.String("err", err.Error()))
		state.Set(wifisup.StatSRV, 0)
		return
	}
	for {
		lst, err := dev.Listen(stack, cfg.Port)
		if err != nil {
			if !pause(wifisup.StatLISTEN, "listen failed", err) {
				return
			}
			continue
		}
		logger.Info("serving status", slog.String("addr", stack.Addr().String()), slog.Int("port", int(cfg.Port)))
		stop := context.AfterFunc(ctx, func() { lst.Close() })
		err = ns.Serve(lst)
		stop()
		lst.Close()
		if ctx.Err() != nil || !pause(wifisup.StatSRV, "status server failed", err) {
			return
		}
	}

	// srv tcp!<host>!564 wifi
	// mount /srv/wifi /n/wifi
	// cat /n/wifi/net/state
	// unmount /n/wifi
	// rm /srv/wifi
}
