package server

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/Shaq015/SpeedTestHackathon/internal/config"
	"github.com/Shaq015/SpeedTestHackathon/internal/util"
)

// tcpResponder accepts TCP connections and answers each one's request
// line with exactly the requested byte count.
type tcpResponder struct {
	cfg  *config.Config
	ln   net.Listener
	port uint16
}

// newTCPResponder binds the configured TCP port (0 picks an ephemeral one).
func newTCPResponder(cfg *config.Config) (*tcpResponder, error) {
	ln, err := net.Listen("tcp4", fmt.Sprintf(":%d", cfg.TCPPort))
	if err != nil {
		return nil, fmt.Errorf("bind tcp responder: %w", err)
	}
	return &tcpResponder{
		cfg:  cfg,
		ln:   ln,
		port: uint16(ln.Addr().(*net.TCPAddr).Port),
	}, nil
}

// serve accepts until ctx is cancelled. One goroutine per connection;
// handler failures never stop the accept loop.
func (t *tcpResponder) serve(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { t.ln.Close() })
	defer stop()
	defer t.ln.Close()

	for {
		conn, err := t.ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return fmt.Errorf("tcp accept: %w", err)
			}
		}
		go t.handle(conn)
	}
}

// handle reads one newline-terminated decimal byte count and streams that
// many payload bytes back, then closes the connection.
func (t *tcpResponder) handle(conn net.Conn) {
	defer conn.Close()
	util.Activity.HandlerStarted()
	defer util.Activity.HandlerFinished()

	id := util.ConnID(conn.LocalAddr(), conn.RemoteAddr())

	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		util.LogWarning("[%08x] tcp request read: %v", id, err)
		return
	}
	size, err := strconv.ParseUint(strings.TrimSpace(line), 10, 64)
	if err != nil {
		util.LogWarning("[%08x] tcp request is not a byte count: %v", id, err)
		return
	}
	util.LogDebug("[%08x] tcp request for %d bytes from %s", id, size, conn.RemoteAddr())

	chunk := bytes.Repeat([]byte{'X'}, t.cfg.TCPBufferSize)
	remaining := size
	for remaining > 0 {
		n := uint64(len(chunk))
		if remaining < n {
			n = remaining
		}
		if _, err := conn.Write(chunk[:n]); err != nil {
			util.LogWarning("[%08x] tcp payload write: %v", id, err)
			return
		}
		remaining -= n
	}

	util.Activity.TCPTransferDone(size)
	util.LogDebug("[%08x] tcp transfer of %d bytes complete", id, size)
}

func (t *tcpResponder) close() {
	t.ln.Close()
}
