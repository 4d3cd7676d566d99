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
	"math"
	"net"
	"net/netip"
	"sync"
	"sync/atomic"
	"time"

	"github.com/soypat/seqs/eth/dhcp"
	"github.com/soypat/seqs/stacks"
	"golang.org/x/sync/semaphore"
)

// Stack errors
var (
	ErrNoSockets   = errors.New("no free socket")
	ErrInvalidIP   = errors.New("invalid ip address")
	ErrDHCPRequest = errors.New("DHCP request failed")
	ErrNoDHCP      = errors.New("no DHCP reply")
	ErrStackConfig = errors.New("invalid stack configuration")
)

// stack defaults
const (
	DefaultSockets  = 3               // socket pool capacity
	DefaultDHCPWait = 8 * time.Second // wait for a DHCP lease
	dhcpPollDelay   = time.Second / 2
)

// StackConfig for the network stack
type StackConfig struct {
	MAC [6]byte
	MTU int

	// Hostname sent with DHCP requests.
	Hostname string

	// RequestedIP for DHCP; used as static address if DHCP fails.
	RequestedIP string

	// Sockets is the fixed capacity of the socket pool.
	Sockets int

	// DHCPWait is the time to wait for a lease before falling back
	// to the requested address.
	DHCPWait time.Duration

	// Seed for random protocol values (DHCP transaction id)
	Seed uint64

	Logger *slog.Logger
	Clock  Clock
}

// Lease of an acquired address
type Lease struct {
	Addr     netip.Addr
	CIDRBits uint8
	Gateway  netip.Addr
	DNS      netip.Addr
	Server   netip.Addr
	Duration time.Duration
	Static   bool
}

// Stack is a network stack bound to a radio interface.
type Stack struct {
	ps      *stacks.PortStack
	dhcp    *stacks.DHCPClient
	pending bool // DHCP request started and not aborted
	cfg     StackConfig
	reqAddr netip.Addr
	log     *slog.Logger
	clk     Clock

	slots *semaphore.Weighted
	used  atomic.Int32

	mu     sync.Mutex
	lease  Lease
	notify func()
}

// NewStack creates a network stack with a fixed socket pool.
func NewStack(cfg StackConfig) (*Stack, error) {
	if cfg.Sockets <= 0 {
		cfg.Sockets = DefaultSockets
	}
	if cfg.MTU <= 0 {
		cfg.MTU = DefaultMTU
	}
	if cfg.MTU > math.MaxUint16 || cfg.Sockets > math.MaxUint16 {
		return nil, ErrStackConfig
	}
	if cfg.DHCPWait <= 0 {
		cfg.DHCPWait = DefaultDHCPWait
	}
	s := &Stack{
		cfg:   cfg,
		log:   cfg.Logger,
		clk:   cfg.Clock,
		slots: semaphore.NewWeighted(int64(cfg.Sockets)),
	}
	if s.log == nil {
		s.log = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
			Level: slog.Level(127),
		}))
	}
	if s.clk == nil {
		s.clk = SystemClock{}
	}
	if cfg.RequestedIP != "" {
		addr, err := netip.ParseAddr(cfg.RequestedIP)
		if err != nil {
			return nil, ErrInvalidIP
		}
		s.reqAddr = addr
	}
	s.ps = stacks.NewPortStack(stacks.PortStackConfig{
		MAC:             cfg.MAC,
		MaxOpenPortsUDP: 1, // DHCP client
		MaxOpenPortsTCP: cfg.Sockets,
		MTU:             uint16(cfg.MTU),
		Logger:          s.log,
	})
	return s, nil
}

// PortStack returns the underlying stack.
func (s *Stack) PortStack() *stacks.PortStack {
	return s.ps
}

// MTU of the stack
func (s *Stack) MTU() int {
	return s.cfg.MTU
}

// RecvEth hands an incoming frame to the stack.
func (s *Stack) RecvEth(pkt []byte) error {
	return s.ps.RecvEth(pkt)
}

// HandleEth writes the next outgoing frame to dst.
func (s *Stack) HandleEth(dst []byte) (int, error) {
	return s.ps.HandleEth(dst)
}

// Lease returns the current address lease (invalid address if none).
func (s *Stack) Lease() Lease {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lease
}

// Addr returns the current address of the stack.
func (s *Stack) Addr() netip.Addr {
	return s.Lease().Addr
}

func (s *Stack) setNotify(fcn func()) {
	s.mu.Lock()
	s.notify = fcn
	s.mu.Unlock()
}

// kick the driver (new work pending)
func (s *Stack) kick() {
	s.mu.Lock()
	fcn := s.notify
	s.mu.Unlock()
	if fcn != nil {
		fcn()
	}
}

// Acquire an address with DHCP. Falls back to the requested address
// (if any) when no DHCP server answers. A previous request is aborted
// first. Needs a running driver; not safe for concurrent use.
func (s *Stack) Acquire(ctx context.Context) (Lease, error) {
	if s.dhcp == nil {
		s.dhcp = stacks.NewDHCPClient(s.ps, dhcp.DefaultClientPort)
	}
	s.abortDHCP()
	client := s.dhcp
	err := client.BeginRequest(stacks.DHCPRequestConfig{
		RequestedAddr: s.reqAddr,
		Xid:           uint32(s.cfg.Seed^s.cfg.Seed>>32) | 1, // never zero
		Hostname:      s.cfg.Hostname,
	})
	if err != nil {
		return Lease{}, errors.Join(ErrDHCPRequest, err)
	}
	s.pending = true
	s.kick()
	polls := max(1, int(s.cfg.DHCPWait/dhcpPollDelay))
	for i := 0; client.State() != dhcp.StateBound; i++ {
		if i >= polls {
			s.abortDHCP()
			if !s.reqAddr.IsValid() {
				return Lease{}, ErrNoDHCP
			}
			s.log.Info("DHCP did not complete, assigning static IP", slog.String("ip", s.reqAddr.String()))
			return s.setLease(Lease{Addr: s.reqAddr, Static: true}), nil
		}
		s.log.Debug("DHCP ongoing...")
		if err := sleep(ctx, s.clk, dhcpPollDelay); err != nil {
			s.abortDHCP()
			return Lease{}, err
		}
	}
	lease := Lease{
		Addr:     client.Offer(),
		CIDRBits: uint8(client.CIDRBits()),
		Gateway:  client.Gateway(),
		Server:   client.DHCPServer(),
		Duration: client.IPLeaseTime(),
	}
	if dns := client.DNSServers(); len(dns) > 0 {
		lease.DNS = dns[0]
	}
	s.log.Info("DHCP complete",
		slog.String("ourIP", lease.Addr.String()),
		slog.Uint64("cidrbits", uint64(lease.CIDRBits)),
		slog.String("gateway", lease.Gateway.String()),
		slog.String("dns", lease.DNS.String()),
		slog.Duration("lease", lease.Duration),
	)
	return s.setLease(lease), nil
}

// abortDHCP releases a started request (and its port).
func (s *Stack) abortDHCP() {
	if s.pending {
		s.dhcp.Abort()
		s.pending = false
	}
}

// address must be set after DHCP completes
func (s *Stack) setLease(l Lease) Lease {
	s.ps.SetAddr(l.Addr)
	s.mu.Lock()
	s.lease = l
	s.mu.Unlock()
	return l
}

//----------------------------------------------------------------------

// Socket is a slot in the socket pool of the stack.
type Socket struct {
	stack *Stack
	n     int64
	once  sync.Once
}

// Close returns the slot(s) to the pool.
func (sock *Socket) Close() error {
	sock.once.Do(func() {
		sock.stack.used.Add(-int32(sock.n))
		sock.stack.slots.Release(sock.n)
	})
	return nil
}

// OpenSocket reserves a slot in the socket pool. Fails with
// ErrNoSockets if all slots are taken.
func (s *Stack) OpenSocket() (*Socket, error) {
	return s.reserve(1)
}

func (s *Stack) reserve(n int64) (*Socket, error) {
	if !s.slots.TryAcquire(n) {
		return nil, ErrNoSockets
	}
	s.used.Add(int32(n))
	s.kick()
	return &Socket{stack: s, n: n}, nil
}

// Sockets returns the number of used slots and the pool capacity.
func (s *Stack) Sockets() (used, capacity int) {
	return int(s.used.Load()), s.cfg.Sockets
}

//----------------------------------------------------------------------

// Listener is a TCP listener holding slots of the socket pool.
type Listener struct {
	*stacks.TCPListener
	sock *Socket
}

// Close the listener and release its slots.
func (l *Listener) Close() error {
	err := l.TCPListener.Close()
	l.sock.Close()
	return err
}

// Listen on a TCP port; each of the conns connections takes a slot
// from the socket pool.
func (s *Stack) Listen(port uint16, conns int) (net.Listener, error) {
	if conns <= 0 || conns > s.cfg.Sockets {
		return nil, ErrNoSockets
	}
	sock, err := s.reserve(int64(conns))
	if err != nil {
		return nil, err
	}
	lst, err := stacks.NewTCPListener(s.ps, stacks.TCPListenerConfig{
		MaxConnections: uint16(conns),
		ConnTxBufSize:  512,
		ConnRxBufSize:  512,
	})
	if err == nil {
		err = lst.StartListening(port)
	}
	if err != nil {
		sock.Close()
		return nil, err
	}
	return &Listener{TCPListener: lst, sock: sock}, nil
}
