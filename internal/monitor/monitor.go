// Package monitor exposes the server's activity counters over HTTP:
// Prometheus metrics, a health endpoint, and a live websocket feed.
package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Shaq015/SpeedTestHackathon/internal/config"
	"github.com/Shaq015/SpeedTestHackathon/internal/util"
)

// Monitor serves the observability endpoints on its own listener, apart
// from the benchmark data path.
type Monitor struct {
	cfg     config.MonitorConfig
	reg     *prometheus.Registry
	srv     *http.Server
	ln      net.Listener
	started time.Time
}

func New(cfg config.MonitorConfig) *Monitor {
	m := &Monitor{
		cfg:     cfg,
		reg:     prometheus.NewRegistry(),
		started: time.Now(),
	}
	m.register()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", m.handleHealth)
	mux.HandleFunc("/live", m.handleLive)

	// The websocket upgrade hijacks its connection, so these timeouts
	// only bound the plain HTTP endpoints.
	m.srv = &http.Server{
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return m
}

// register wires the process-wide activity counters into a private
// registry. CounterFunc keeps the hot path free of metric updates: the
// atomics are read only when something scrapes.
func (m *Monitor) register() {
	m.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "speedtest_tcp_transfers_total",
			Help: "Completed TCP transfers since process start.",
		}, func() float64 { return float64(util.Activity.TCPTransfers.Load()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "speedtest_udp_transfers_total",
			Help: "Completed UDP transfers since process start.",
		}, func() float64 { return float64(util.Activity.UDPTransfers.Load()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "speedtest_tcp_bytes_sent_total",
			Help: "Cumulative payload bytes streamed over TCP.",
		}, func() float64 { return float64(util.Activity.TCPBytes.Load()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "speedtest_udp_bytes_sent_total",
			Help: "Cumulative segment data bytes streamed over UDP.",
		}, func() float64 { return float64(util.Activity.UDPBytes.Load()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "speedtest_active_handlers",
			Help: "Transfer handlers currently running.",
		}, func() float64 { return float64(util.Activity.ActiveHandlers.Load()) }),
	)
}

// Start binds the configured address and serves until ctx is cancelled.
func (m *Monitor) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", m.cfg.Listen)
	if err != nil {
		return fmt.Errorf("bind monitor address %s: %w", m.cfg.Listen, err)
	}
	m.ln = ln

	context.AfterFunc(ctx, func() {
		shutCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := m.srv.Shutdown(shutCtx); err != nil {
			m.srv.Close()
		}
	})

	go func() {
		if err := m.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			util.LogError("monitor server: %v", err)
		}
	}()
	return nil
}

// Addr reports the actual listen address. Valid after Start.
func (m *Monitor) Addr() string { return m.ln.Addr().String() }

func (m *Monitor) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(struct {
		Status         string `json:"status"`
		Uptime         string `json:"uptime"`
		ActiveHandlers int64  `json:"active_handlers"`
	}{
		Status:         "ok",
		Uptime:         time.Since(m.started).Round(time.Second).String(),
		ActiveHandlers: util.Activity.ActiveHandlers.Load(),
	})
}
