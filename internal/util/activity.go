package util

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/pterm/pterm"
)

// ──────────────────────────────────────────────────────────────────────────────
// Global server activity counters
// ──────────────────────────────────────────────────────────────────────────────

// Activity is the process-wide transfer counter block. The server's
// responders feed it; the periodic reporter and the monitor endpoints
// read it.
var Activity = &activity{}

type activity struct {
	TCPTransfers   atomic.Int64 // completed TCP transfers since process start
	UDPTransfers   atomic.Int64 // completed UDP transfers since process start
	TCPBytes       atomic.Int64 // cumulative bytes streamed over TCP
	UDPBytes       atomic.Int64 // cumulative bytes streamed over UDP (segment data only)
	ActiveHandlers atomic.Int64 // currently running transfer handlers
}

func (a *activity) HandlerStarted()  { a.ActiveHandlers.Add(1) }
func (a *activity) HandlerFinished() { a.ActiveHandlers.Add(-1) }

func (a *activity) TCPTransferDone(bytes uint64) {
	a.TCPTransfers.Add(1)
	a.TCPBytes.Add(int64(bytes))
}

func (a *activity) UDPTransferDone(bytes uint64) {
	a.UDPTransfers.Add(1)
	a.UDPBytes.Add(int64(bytes))
}

// ──────────────────────────────────────────────────────────────────────────────
// Periodic reporter
// ──────────────────────────────────────────────────────────────────────────────

// StartActivityReporter launches a goroutine that logs server activity
// every 10 seconds while transfers are happening. It stops when ctx is
// cancelled.
func StartActivityReporter(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()

		var prevTCP, prevUDP, prevTCPBytes, prevUDPBytes int64
		for {
			select {
			case <-ticker.C:
				tcp := Activity.TCPTransfers.Load()
				udp := Activity.UDPTransfers.Load()
				tcpBytes := Activity.TCPBytes.Load()
				udpBytes := Activity.UDPBytes.Load()

				tcpRate := float64(tcpBytes-prevTCPBytes) / 10.0
				udpRate := float64(udpBytes-prevUDPBytes) / 10.0

				if tcp != prevTCP || udp != prevUDP {
					pterm.DefaultLogger.Info(fmt.Sprintf(
						"served %d tcp / %d udp transfers | TCP: %s/s | UDP: %s/s | active: %d",
						tcp-prevTCP, udp-prevUDP,
						FormatBytes(tcpRate), FormatBytes(udpRate),
						Activity.ActiveHandlers.Load(),
					))
				}

				prevTCP = tcp
				prevUDP = udp
				prevTCPBytes = tcpBytes
				prevUDPBytes = udpBytes

			case <-ctx.Done():
				return
			}
		}
	}()
}

// byteUnits defines the units for formatting byte counts in a human-readable way.
var byteUnits = []string{"B", "KiB", "MiB", "GiB", "TiB", "PiB"}

// FormatBytes formats a byte count into a human-readable string with fixed
// width (exactly 8 chars), for example: "99.0   B", " 1.5 KiB", "98.9 GiB".
func FormatBytes(b float64) string {
	unitIdx := 0

	// to prevent "100.0 KiB", which is 9 chars
	for b > 99 && unitIdx < 5 {
		b /= 1024
		unitIdx++
	}

	return fmt.Sprintf("%4.1f %3s", b, byteUnits[unitIdx])
}
