package client

import (
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/Shaq015/SpeedTestHackathon/internal/config"
	"github.com/Shaq015/SpeedTestHackathon/internal/stats"
	"github.com/Shaq015/SpeedTestHackathon/internal/util"
)

// runTCP performs one TCP transfer and always delivers exactly one result
// to the aggregator, even on failure.
func runTCP(cfg *config.Config, addr string, index int, fileSize uint64, agg *stats.Aggregator) {
	res := stats.ConnectionResult{Transport: stats.TCP, Index: index}
	start := time.Now()
	defer func() {
		res.Elapsed = time.Since(start)
		agg.Add(res)
	}()

	conn, err := net.DialTimeout("tcp4", addr, cfg.SocketTimeout.Std())
	if err != nil {
		res.Err = fmt.Errorf("dial %s: %w", addr, err)
		return
	}
	defer conn.Close()
	util.LogDebug("[%08x] tcp transfer %d: requesting %d bytes", util.ConnID(conn.LocalAddr(), conn.RemoteAddr()), index, fileSize)

	conn.SetWriteDeadline(time.Now().Add(cfg.SocketTimeout.Std()))
	if _, err := fmt.Fprintf(conn, "%d\n", fileSize); err != nil {
		res.Err = fmt.Errorf("send request: %w", err)
		return
	}

	// The deadline is refreshed per read, so it bounds stalls rather
	// than the whole transfer.
	buf := make([]byte, cfg.TCPBufferSize)
	for {
		conn.SetReadDeadline(time.Now().Add(cfg.SocketTimeout.Std()))
		n, err := conn.Read(buf)
		res.BytesTransferred += uint64(n)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			res.Err = fmt.Errorf("read payload: %w", err)
			return
		}
	}
}
