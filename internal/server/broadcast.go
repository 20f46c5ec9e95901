package server

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/Shaq015/SpeedTestHackathon/internal/config"
	"github.com/Shaq015/SpeedTestHackathon/internal/util"
)

// broadcaster periodically emits the server's encoded offer datagram to
// the configured broadcast (or multicast) address.
type broadcaster struct {
	conn     *net.UDPConn
	target   *net.UDPAddr
	offer    []byte
	interval time.Duration
}

// newBroadcaster opens the broadcast-capable socket and resolves the
// offer target. The offer bytes are fixed for the server's lifetime since
// the advertised ports never change after bind.
func newBroadcaster(ctx context.Context, cfg *config.Config, offer []byte) (*broadcaster, error) {
	ip := net.ParseIP(cfg.BroadcastAddr)
	if ip == nil {
		return nil, fmt.Errorf("broadcast_addr %q is not an IP address", cfg.BroadcastAddr)
	}

	lc := util.BroadcastListenConfig()
	pc, err := lc.ListenPacket(ctx, "udp4", ":0")
	if err != nil {
		return nil, fmt.Errorf("open broadcast socket: %w", err)
	}

	return &broadcaster{
		conn:     pc.(*net.UDPConn),
		target:   &net.UDPAddr{IP: ip, Port: cfg.OfferPort},
		offer:    offer,
		interval: cfg.BroadcastInterval.Std(),
	}, nil
}

// run emits one offer immediately and then one per tick until ctx is
// cancelled. A send failure is logged and retried on the next tick, never
// fatal to the server.
func (b *broadcaster) run(ctx context.Context) {
	defer b.conn.Close()

	b.send()

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			b.send()
		case <-ctx.Done():
			return
		}
	}
}

func (b *broadcaster) send() {
	if _, err := b.conn.WriteToUDP(b.offer, b.target); err != nil {
		util.LogWarning("offer broadcast to %s: %v", b.target, err)
	}
}

func (b *broadcaster) close() {
	b.conn.Close()
}
