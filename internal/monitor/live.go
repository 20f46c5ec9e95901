package monitor

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Shaq015/SpeedTestHackathon/internal/util"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Snapshot is one point-in-time view of the activity counters, as pushed
// over the live feed.
type Snapshot struct {
	TCPTransfers   int64 `json:"tcp_transfers"`
	UDPTransfers   int64 `json:"udp_transfers"`
	TCPBytes       int64 `json:"tcp_bytes"`
	UDPBytes       int64 `json:"udp_bytes"`
	ActiveHandlers int64 `json:"active_handlers"`
}

func snapshot() Snapshot {
	return Snapshot{
		TCPTransfers:   util.Activity.TCPTransfers.Load(),
		UDPTransfers:   util.Activity.UDPTransfers.Load(),
		TCPBytes:       util.Activity.TCPBytes.Load(),
		UDPBytes:       util.Activity.UDPBytes.Load(),
		ActiveHandlers: util.Activity.ActiveHandlers.Load(),
	}
}

// handleLive upgrades the connection and pushes a counter snapshot every
// second until the peer goes away.
func (m *Monitor) handleLive(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		util.LogDebug("live feed upgrade from %s: %v", r.RemoteAddr, err)
		return
	}
	defer conn.Close()
	util.LogDebug("live feed subscriber %s connected", r.RemoteAddr)

	// Reads are drained only to notice the peer closing.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteJSON(snapshot()); err != nil {
			return
		}
		select {
		case <-gone:
			return
		case <-ticker.C:
		}
	}
}
