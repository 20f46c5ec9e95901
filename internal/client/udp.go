package client

import (
	"fmt"
	"net"
	"time"

	"github.com/Shaq015/SpeedTestHackathon/internal/config"
	"github.com/Shaq015/SpeedTestHackathon/internal/protocol"
	"github.com/Shaq015/SpeedTestHackathon/internal/stats"
	"github.com/Shaq015/SpeedTestHackathon/internal/util"
)

// runUDP performs one UDP transfer. Distinct segment indices are tracked so
// retransmitted datagrams never inflate the byte or segment counts; the
// transfer ends once every declared segment arrived or the line stayed
// quiet for the inactivity window.
func runUDP(cfg *config.Config, addr string, index int, fileSize uint64, agg *stats.Aggregator) {
	res := stats.ConnectionResult{Transport: stats.UDP, Index: index}
	start := time.Now()
	defer func() {
		res.Elapsed = time.Since(start)
		agg.Add(res)
	}()

	raddr, err := net.ResolveUDPAddr("udp4", addr)
	if err != nil {
		res.Err = fmt.Errorf("resolve %s: %w", addr, err)
		return
	}
	conn, err := net.DialUDP("udp4", nil, raddr)
	if err != nil {
		res.Err = fmt.Errorf("dial %s: %w", addr, err)
		return
	}
	defer conn.Close()
	util.LogDebug("[%08x] udp transfer %d: requesting %d bytes", util.ConnID(conn.LocalAddr(), conn.RemoteAddr()), index, fileSize)

	// Segments arrive back to back; a large receive buffer keeps bursts
	// from overflowing the kernel default.
	_ = conn.SetReadBuffer(4 * 1024 * 1024)

	if _, err := conn.Write(protocol.EncodeRequest(&protocol.Request{FileSize: fileSize})); err != nil {
		res.Err = fmt.Errorf("send request: %w", err)
		return
	}

	seen := make(map[uint64]struct{})
	var expected uint64
	buf := make([]byte, 65536)

	for {
		conn.SetReadDeadline(time.Now().Add(cfg.UDPTimeout.Std()))
		n, err := conn.Read(buf)
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				break // quiet line, the transfer is over
			}
			res.Err = fmt.Errorf("read segment: %w", err)
			break
		}

		pkt, err := protocol.DecodePayload(buf[:n])
		if err != nil {
			continue // stray or malformed datagram
		}
		if expected == 0 {
			expected = pkt.TotalSegments
		}
		if _, dup := seen[pkt.CurrentSegment]; dup {
			continue
		}
		seen[pkt.CurrentSegment] = struct{}{}
		res.BytesTransferred += uint64(len(pkt.Data))

		if expected > 0 && uint64(len(seen)) >= expected {
			break
		}
	}

	res.SegmentsReceived = uint64(len(seen))
	res.SegmentsExpected = expected
}
