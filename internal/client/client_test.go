package client_test

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/Shaq015/SpeedTestHackathon/internal/client"
	"github.com/Shaq015/SpeedTestHackathon/internal/config"
	"github.com/Shaq015/SpeedTestHackathon/internal/protocol"
	"github.com/Shaq015/SpeedTestHackathon/internal/server"
	"github.com/Shaq015/SpeedTestHackathon/internal/stats"
)

// freeUDPPort grabs an ephemeral UDP port and releases it so the caller
// can bind it again.
func freeUDPPort(t *testing.T) int {
	t.Helper()
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("reserve udp port: %v", err)
	}
	port := conn.LocalAddr().(*net.UDPAddr).Port
	conn.Close()
	return port
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.OfferPort = freeUDPPort(t)
	cfg.BroadcastAddr = "127.0.0.1"
	cfg.BroadcastInterval = config.Duration(50 * time.Millisecond)
	cfg.UDPTimeout = config.Duration(300 * time.Millisecond)
	return cfg
}

// startFakeUDPResponder answers the first well-formed request on its
// socket with the given segment schedule, in order.
func startFakeUDPResponder(t *testing.T, schedule []*protocol.Payload) *net.UDPAddr {
	t.Helper()
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("bind fake responder: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	go func() {
		buf := make([]byte, 2048)
		n, addr, err := conn.ReadFromUDP(buf)
		if err != nil {
			return
		}
		if _, err := protocol.DecodeRequest(buf[:n]); err != nil {
			return
		}
		for _, seg := range schedule {
			conn.WriteToUDP(protocol.EncodePayload(seg), addr)
		}
	}()

	return conn.LocalAddr().(*net.UDPAddr)
}

func segment(total, current uint64, size int) *protocol.Payload {
	data := make([]byte, size)
	for i := range data {
		data[i] = 'Y'
	}
	return &protocol.Payload{TotalSegments: total, CurrentSegment: current, Data: data}
}

func udpResult(t *testing.T, report *stats.Report) stats.ConnectionResult {
	t.Helper()
	for _, res := range report.Results {
		if res.Transport == stats.UDP {
			return res
		}
	}
	t.Fatal("report holds no UDP result")
	return stats.ConnectionResult{}
}

// ───────────────────────────────────────────────

func TestRunEndToEnd(t *testing.T) {
	cfg := testConfig(t)
	cfg.UDPTimeout = config.Duration(time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	srv := server.New(cfg)
	if err := srv.Start(ctx); err != nil {
		t.Fatalf("start server: %v", err)
	}
	t.Cleanup(func() {
		cancel()
		if err := srv.Wait(); err != nil {
			t.Errorf("server shutdown: %v", err)
		}
	})

	runCtx, runCancel := context.WithTimeout(ctx, 15*time.Second)
	defer runCancel()

	const fileSize = 1_000_000
	report, err := client.Run(runCtx, cfg, client.Params{FileSize: fileSize, TCPConns: 2, UDPConns: 1})
	if err != nil {
		t.Fatalf("client run: %v", err)
	}

	if got := len(report.Results); got != 3 {
		t.Fatalf("got %d results, want 3", got)
	}
	if failed := report.Failed(); failed != 0 {
		t.Fatalf("%d transfers failed: %+v", failed, report.Results)
	}

	var tcpCount int
	for _, res := range report.Results {
		if res.Transport != stats.TCP {
			continue
		}
		tcpCount++
		if res.BytesTransferred != fileSize {
			t.Errorf("tcp transfer %d moved %d bytes, want %d", res.Index, res.BytesTransferred, fileSize)
		}
		if res.Elapsed <= 0 {
			t.Errorf("tcp transfer %d has non-positive elapsed time", res.Index)
		}
	}
	if tcpCount != 2 {
		t.Fatalf("got %d TCP results, want 2", tcpCount)
	}

	udp := udpResult(t, report)
	wantSegments := protocol.SegmentCount(fileSize, uint64(cfg.SegmentPayloadSize))
	if udp.SegmentsExpected != wantSegments {
		t.Errorf("udp expected %d segments, want %d", udp.SegmentsExpected, wantSegments)
	}
	if udp.SegmentsReceived == 0 {
		t.Error("udp transfer received no segments")
	}
	if udp.SegmentsReceived > udp.SegmentsExpected {
		t.Errorf("received %d segments, more than the %d declared", udp.SegmentsReceived, udp.SegmentsExpected)
	}
}

func TestUDPWorkerIgnoresDuplicates(t *testing.T) {
	cfg := testConfig(t)

	// Indices 1 and 3 arrive twice, everything out of order. Each
	// distinct segment must count exactly once.
	schedule := []*protocol.Payload{
		segment(5, 3, 100),
		segment(5, 1, 100),
		segment(5, 1, 100),
		segment(5, 5, 37),
		segment(5, 2, 100),
		segment(5, 4, 100),
		segment(5, 3, 100),
	}
	addr := startFakeUDPResponder(t, schedule)

	disc := &client.Discovery{ServerHost: "127.0.0.1", UDPPort: uint16(addr.Port)}
	report := client.RunAgainst(cfg, disc, client.Params{FileSize: 437, UDPConns: 1})

	udp := udpResult(t, report)
	if udp.Err != nil {
		t.Fatalf("transfer failed: %v", udp.Err)
	}
	if udp.SegmentsReceived != 5 || udp.SegmentsExpected != 5 {
		t.Fatalf("got %d/%d segments, want 5/5", udp.SegmentsReceived, udp.SegmentsExpected)
	}
	if udp.BytesTransferred != 437 {
		t.Errorf("counted %d bytes, want 437", udp.BytesTransferred)
	}
	if rate := udp.SuccessRate(); rate != 1.0 {
		t.Errorf("success rate = %v, want 1.0", rate)
	}
}

func TestUDPWorkerReportsLoss(t *testing.T) {
	cfg := testConfig(t)

	schedule := []*protocol.Payload{
		segment(8, 1, 100),
		segment(8, 2, 100),
		segment(8, 5, 100),
	}
	addr := startFakeUDPResponder(t, schedule)

	disc := &client.Discovery{ServerHost: "127.0.0.1", UDPPort: uint16(addr.Port)}
	report := client.RunAgainst(cfg, disc, client.Params{FileSize: 800, UDPConns: 1})

	udp := udpResult(t, report)
	if udp.Err != nil {
		t.Fatalf("transfer failed: %v", udp.Err)
	}
	if udp.SegmentsReceived != 3 || udp.SegmentsExpected != 8 {
		t.Fatalf("got %d/%d segments, want 3/8", udp.SegmentsReceived, udp.SegmentsExpected)
	}
	if rate := udp.SuccessRate(); rate != 0.375 {
		t.Errorf("success rate = %v, want 0.375", rate)
	}
	if udp.BytesTransferred != 300 {
		t.Errorf("counted %d bytes, want 300", udp.BytesTransferred)
	}
}

func TestRunAgainstReportsConnectionFailure(t *testing.T) {
	cfg := testConfig(t)
	cfg.SocketTimeout = config.Duration(500 * time.Millisecond)

	// Nothing listens on this port, so the dial must fail and still
	// produce a result.
	disc := &client.Discovery{ServerHost: "127.0.0.1", TCPPort: uint16(freeUDPPort(t))}
	report := client.RunAgainst(cfg, disc, client.Params{FileSize: 1000, TCPConns: 1})

	if got := len(report.Results); got != 1 {
		t.Fatalf("got %d results, want 1", got)
	}
	if report.Results[0].Err == nil {
		t.Fatal("expected a connection failure, got success")
	}
	if report.Failed() != 1 {
		t.Errorf("Failed() = %d, want 1", report.Failed())
	}
}

// ───────────────────────────────────────────────

// sendOffersUntil pushes rounds of malformed datagrams followed by one
// valid offer at target until done closes. Each round goes out through a
// fresh source socket: the kernel picks one receiver per source tuple
// when several listeners share the port, so a fixed sender would feed
// only one of them.
func sendOffersUntil(t *testing.T, target string, done <-chan struct{}) {
	t.Helper()

	tooShort := []byte{0x01, 0x02}
	badCookie := make([]byte, protocol.OfferSize)
	wrongType := protocol.EncodeRequest(&protocol.Request{FileSize: 7})
	valid := protocol.EncodeOffer(&protocol.Offer{UDPPort: 2222, TCPPort: 3333})

	go func() {
		ticker := time.NewTicker(20 * time.Millisecond)
		defer ticker.Stop()
		for {
			if conn, err := net.Dial("udp4", target); err == nil {
				conn.Write(tooShort)
				conn.Write(badCookie)
				conn.Write(wrongType)
				conn.Write(valid)
				conn.Close()
			}
			select {
			case <-done:
				return
			case <-ticker.C:
			}
		}
	}()
}

func TestListenSkipsMalformedDatagrams(t *testing.T) {
	cfg := testConfig(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan struct{})
	defer close(done)
	sendOffersUntil(t, fmt.Sprintf("127.0.0.1:%d", cfg.OfferPort), done)

	disc, err := client.Listen(ctx, cfg)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	if disc.ServerHost != "127.0.0.1" {
		t.Errorf("server host = %q, want 127.0.0.1", disc.ServerHost)
	}
	if disc.UDPPort != 2222 || disc.TCPPort != 3333 {
		t.Errorf("ports = %d/%d, want 2222/3333", disc.UDPPort, disc.TCPPort)
	}
}

func TestListenersShareOfferPort(t *testing.T) {
	cfg := testConfig(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan struct{})
	defer close(done)
	sendOffersUntil(t, fmt.Sprintf("127.0.0.1:%d", cfg.OfferPort), done)

	// Both listeners bind the same offer port, like two client processes
	// on one machine waiting for the same server.
	type outcome struct {
		disc *client.Discovery
		err  error
	}
	results := make(chan outcome, 2)
	for n := 0; n < 2; n++ {
		go func() {
			d, err := client.Listen(ctx, cfg)
			results <- outcome{d, err}
		}()
	}

	for n := 0; n < 2; n++ {
		out := <-results
		if out.err != nil {
			t.Fatalf("listen: %v", out.err)
		}
		if out.disc.UDPPort != 2222 || out.disc.TCPPort != 3333 {
			t.Errorf("ports = %d/%d, want 2222/3333", out.disc.UDPPort, out.disc.TCPPort)
		}
	}
}

func TestListenHonorsContext(t *testing.T) {
	cfg := testConfig(t)

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	_, err := client.Listen(ctx, cfg)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want context.DeadlineExceeded", err)
	}
}
