package server

import (
	"bytes"
	"context"
	"fmt"
	"net"

	"github.com/Shaq015/SpeedTestHackathon/internal/config"
	"github.com/Shaq015/SpeedTestHackathon/internal/protocol"
	"github.com/Shaq015/SpeedTestHackathon/internal/util"
)

// udpResponder answers each binary request datagram with a burst of
// sequenced payload segments.
type udpResponder struct {
	cfg  *config.Config
	conn *net.UDPConn
	port uint16
}

// newUDPResponder binds the configured UDP port (0 picks an ephemeral one).
func newUDPResponder(cfg *config.Config) (*udpResponder, error) {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: cfg.UDPPort})
	if err != nil {
		return nil, fmt.Errorf("bind udp responder: %w", err)
	}
	return &udpResponder{
		cfg:  cfg,
		conn: conn,
		port: uint16(conn.LocalAddr().(*net.UDPAddr).Port),
	}, nil
}

// serve reads requests until ctx is cancelled. Each valid request gets
// its own sender goroutine so simultaneous clients never block each
// other; malformed datagrams are dropped and the loop continues.
func (u *udpResponder) serve(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { u.conn.Close() })
	defer stop()
	defer u.conn.Close()

	buf := make([]byte, 2048)
	for {
		n, addr, err := u.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return fmt.Errorf("udp read: %w", err)
			}
		}

		req, err := protocol.DecodeRequest(buf[:n])
		if err != nil {
			util.LogDebug("dropping datagram from %s: %v", addr, err)
			continue
		}

		go u.send(addr, req.FileSize)
	}
}

// send streams one transfer's segments to addr. Indices are 1-based and
// the final segment is cut to exactly fill the remaining byte count.
// Delivery is best-effort: there is no retransmission, so the client can
// observe loss.
func (u *udpResponder) send(addr *net.UDPAddr, fileSize uint64) {
	util.Activity.HandlerStarted()
	defer util.Activity.HandlerFinished()

	id := util.ConnID(u.conn.LocalAddr(), addr)
	segSize := uint64(u.cfg.SegmentPayloadSize)
	total := protocol.SegmentCount(fileSize, segSize)
	util.LogDebug("[%08x] udp request for %d bytes (%d segments) from %s", id, fileSize, total, addr)

	data := bytes.Repeat([]byte{'Y'}, int(segSize))
	remaining := fileSize
	for i := uint64(1); i <= total; i++ {
		n := segSize
		if remaining < n {
			n = remaining
		}
		pkt := protocol.EncodePayload(&protocol.Payload{
			TotalSegments:  total,
			CurrentSegment: i,
			Data:           data[:n],
		})
		if _, err := u.conn.WriteToUDP(pkt, addr); err != nil {
			util.LogWarning("[%08x] udp segment %d/%d write: %v", id, i, total, err)
			return
		}
		remaining -= n
	}

	util.Activity.UDPTransferDone(fileSize)
	util.LogDebug("[%08x] udp transfer of %d bytes complete", id, fileSize)
}

func (u *udpResponder) close() {
	u.conn.Close()
}
