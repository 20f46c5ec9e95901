// Package client implements offer discovery and the per-connection
// measurement workers of the benchmark client.
package client

import (
	"context"
	"fmt"
	"net"

	"golang.org/x/net/ipv4"

	"github.com/Shaq015/SpeedTestHackathon/internal/config"
	"github.com/Shaq015/SpeedTestHackathon/internal/protocol"
	"github.com/Shaq015/SpeedTestHackathon/internal/util"
)

// Discovery is what one valid offer teaches a client.
type Discovery struct {
	ServerHost string // sender's IP, without port
	TCPPort    uint16
	UDPPort    uint16
}

// Listen binds the well-known offer port and blocks until one datagram
// decodes as an offer or ctx ends. Malformed datagrams are discarded and
// listening continues; the first valid offer wins.
//
// The socket is opened with address reuse so several client processes on
// one machine can wait for offers at once. There is no internal timeout:
// callers bound the wait through ctx.
func Listen(ctx context.Context, cfg *config.Config) (*Discovery, error) {
	lc := util.SharedListenConfig()
	pc, err := lc.ListenPacket(ctx, "udp4", fmt.Sprintf(":%d", cfg.OfferPort))
	if err != nil {
		return nil, fmt.Errorf("bind offer port %d: %w", cfg.OfferPort, err)
	}
	defer pc.Close()

	joinMulticast(pc, cfg.BroadcastAddr)

	stop := context.AfterFunc(ctx, func() { pc.Close() })
	defer stop()

	buf := make([]byte, 64)
	for {
		n, addr, err := pc.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("offer listen: %w", err)
		}

		offer, err := protocol.DecodeOffer(buf[:n])
		if err != nil {
			util.LogDebug("discarding datagram from %s: %v", addr, err)
			continue
		}

		host, _, err := net.SplitHostPort(addr.String())
		if err != nil {
			continue
		}
		return &Discovery{
			ServerHost: host,
			TCPPort:    offer.TCPPort,
			UDPPort:    offer.UDPPort,
		}, nil
	}
}

// joinMulticast subscribes the socket to the offer group when the
// configured address is multicast, for networks that filter broadcast.
// Plain broadcast discovery needs no membership and skips this.
func joinMulticast(pc net.PacketConn, addr string) {
	ip := net.ParseIP(addr)
	if ip == nil || !ip.IsMulticast() {
		return
	}
	p := ipv4.NewPacketConn(pc)
	if err := p.JoinGroup(nil, &net.UDPAddr{IP: ip}); err != nil {
		util.LogWarning("join multicast group %s: %v", addr, err)
	}
}
