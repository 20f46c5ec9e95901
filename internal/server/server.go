// Package server implements the benchmark server: an offer broadcaster
// plus TCP and UDP responders that stream requested byte counts back to
// clients.
package server

import (
	"context"
	"sync"

	"github.com/Shaq015/SpeedTestHackathon/internal/config"
	"github.com/Shaq015/SpeedTestHackathon/internal/monitor"
	"github.com/Shaq015/SpeedTestHackathon/internal/protocol"
	"github.com/Shaq015/SpeedTestHackathon/internal/util"
)

// Server owns the three long-lived loops and their sockets. Construction
// takes the full configuration; Start binds and launches everything, and
// Wait blocks until the loops drain after context cancellation.
type Server struct {
	cfg *config.Config

	tcp *tcpResponder
	udp *udpResponder
	bro *broadcaster
	mon *monitor.Monitor

	wg       sync.WaitGroup
	errMu    sync.Mutex
	firstErr error
}

func New(cfg *config.Config) *Server {
	return &Server{cfg: cfg}
}

// Start binds both responders on their configured ports (0 picks an
// ephemeral one), starts the broadcaster advertising the actual bound
// ports, and starts the monitor when enabled. It returns once every loop
// is running.
func (s *Server) Start(ctx context.Context) error {
	tcp, err := newTCPResponder(s.cfg)
	if err != nil {
		return err
	}
	udp, err := newUDPResponder(s.cfg)
	if err != nil {
		tcp.close()
		return err
	}
	s.tcp, s.udp = tcp, udp

	offer := protocol.EncodeOffer(&protocol.Offer{
		UDPPort: udp.port,
		TCPPort: tcp.port,
	})
	bro, err := newBroadcaster(ctx, s.cfg, offer)
	if err != nil {
		tcp.close()
		udp.close()
		return err
	}
	s.bro = bro

	if s.cfg.Monitor.Enabled {
		s.mon = monitor.New(s.cfg.Monitor)
		if err := s.mon.Start(ctx); err != nil {
			tcp.close()
			udp.close()
			bro.close()
			return err
		}
		util.LogInfo("monitor listening on %s", s.mon.Addr())
	}

	util.LogSuccess("Server started, listening on IP address %s", util.LocalIP())
	util.LogInfo("data ports: tcp %d, udp %d; offering to %s:%d every %s",
		tcp.port, udp.port, s.cfg.BroadcastAddr, s.cfg.OfferPort, s.cfg.BroadcastInterval.Std())

	s.spawn(func() error { return s.tcp.serve(ctx) })
	s.spawn(func() error { return s.udp.serve(ctx) })
	s.spawn(func() error { s.bro.run(ctx); return nil })
	util.StartActivityReporter(ctx)

	return nil
}

// Wait blocks until every loop has exited and reports the first real
// failure, if any. Context cancellation is a clean exit, not a failure.
func (s *Server) Wait() error {
	s.wg.Wait()
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.firstErr
}

// Run starts the server and blocks until ctx is cancelled and all loops
// have drained.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	return s.Wait()
}

// TCPPort reports the TCP responder's actual bound port. Valid after Start.
func (s *Server) TCPPort() uint16 { return s.tcp.port }

// UDPPort reports the UDP responder's actual bound port. Valid after Start.
func (s *Server) UDPPort() uint16 { return s.udp.port }

func (s *Server) spawn(fn func() error) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := fn(); err != nil {
			s.errMu.Lock()
			if s.firstErr == nil {
				s.firstErr = err
			}
			s.errMu.Unlock()
		}
	}()
}
