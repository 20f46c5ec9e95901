package util

import (
	"hash/fnv"
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

// LocalIP returns the machine's outbound LAN address, discovered by
// opening a throwaway UDP association (no packet is sent). Falls back to
// the loopback address when the machine has no route.
func LocalIP() string {
	conn, err := net.Dial("udp4", "8.8.8.8:80")
	if err != nil {
		return "127.0.0.1"
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).IP.String()
}

// ConnID computes a 4-byte hash from a connection's address pair. It tags
// the server's per-transfer log lines so concurrent handlers can be told
// apart; it does not need to be reversible.
func ConnID(local, remote net.Addr) uint32 {
	h := fnv.New32a()
	h.Write([]byte(local.String()))
	h.Write([]byte(remote.String()))
	return h.Sum32()
}

// BroadcastListenConfig returns a ListenConfig whose sockets may send to
// broadcast addresses such as 255.255.255.255.
func BroadcastListenConfig() net.ListenConfig {
	return net.ListenConfig{Control: setSockoptInts(unix.SO_BROADCAST)}
}

// SharedListenConfig returns a ListenConfig that allows several processes
// on one machine to bind the same UDP port, so multiple offer listeners
// can coexist.
func SharedListenConfig() net.ListenConfig {
	return net.ListenConfig{Control: setSockoptInts(unix.SO_REUSEADDR, unix.SO_REUSEPORT)}
}

// setSockoptInts builds a ListenConfig control function that enables the
// given SOL_SOCKET options on the socket before bind.
func setSockoptInts(opts ...int) func(network, address string, c syscall.RawConn) error {
	return func(network, address string, c syscall.RawConn) error {
		var opErr error
		err := c.Control(func(fd uintptr) {
			for _, opt := range opts {
				if opErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, opt, 1); opErr != nil {
					return
				}
			}
		})
		if err != nil {
			return err
		}
		return opErr
	}
}
