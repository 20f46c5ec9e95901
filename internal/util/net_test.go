package util_test

import (
	"context"
	"net"
	"testing"

	"github.com/Shaq015/SpeedTestHackathon/internal/util"
)

// TestLocalIP verifies that a usable address string comes back whether or
// not the machine has a route out.
func TestLocalIP(t *testing.T) {
	ip := util.LocalIP()
	if net.ParseIP(ip) == nil {
		t.Fatalf("LocalIP returned %q, not a valid IP", ip)
	}
}

// TestConnID verifies that the hash is stable for one address pair and
// differs between pairs.
func TestConnID(t *testing.T) {
	a := &net.TCPAddr{IP: net.IPv4(192, 168, 1, 10), Port: 13119}
	b := &net.TCPAddr{IP: net.IPv4(192, 168, 1, 20), Port: 50001}
	c := &net.TCPAddr{IP: net.IPv4(192, 168, 1, 20), Port: 50002}

	if util.ConnID(a, b) != util.ConnID(a, b) {
		t.Error("ConnID is not stable for the same address pair")
	}
	if util.ConnID(a, b) == util.ConnID(a, c) {
		t.Error("ConnID collides for different remote ports")
	}
}

// TestSharedListenConfig verifies that two sockets can bind the same UDP
// port at once, which is what lets several offer listeners coexist on one
// machine.
func TestSharedListenConfig(t *testing.T) {
	lc := util.SharedListenConfig()

	first, err := lc.ListenPacket(context.Background(), "udp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("first bind failed: %v", err)
	}
	defer first.Close()

	addr := first.LocalAddr().String()
	second, err := lc.ListenPacket(context.Background(), "udp4", addr)
	if err != nil {
		t.Fatalf("second bind on %s failed: %v", addr, err)
	}
	defer second.Close()
}

// TestBroadcastListenConfig verifies that the broadcast socket option is
// accepted at bind time.
func TestBroadcastListenConfig(t *testing.T) {
	lc := util.BroadcastListenConfig()

	pc, err := lc.ListenPacket(context.Background(), "udp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("bind failed: %v", err)
	}
	pc.Close()
}
