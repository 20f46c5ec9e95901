// Speedtest is the CLI entry point of the LAN throughput benchmark.
//
// One binary serves both roles: a server that advertises itself over UDP
// broadcast and streams test data on demand, and a client that discovers
// servers and measures TCP and UDP throughput against them.
//
// It can be launched interactively (no flags) or non-interactively via CLI
// flags (-mode, -config, -size, -tcp, -udp).
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/pterm/pterm"

	"github.com/Shaq015/SpeedTestHackathon/internal/client"
	"github.com/Shaq015/SpeedTestHackathon/internal/config"
	"github.com/Shaq015/SpeedTestHackathon/internal/server"
	"github.com/Shaq015/SpeedTestHackathon/internal/util"
)

var version = "dev"

// offerWindow bounds one discovery attempt. A quiet window just means no
// server is offering yet, so the client listens again.
var offerWindow = 10 * time.Second

func main() {
	// Root context, cancelled on Ctrl+C.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	// CLI flags.
	mode := flag.String("mode", "", "Mode: server or client")
	configPath := flag.String("config", "", "Path to a YAML config file")
	size := flag.Uint64("size", 0, "File size to request in bytes (client only)")
	tcpConns := flag.Int("tcp", 0, "Number of TCP connections (client only)")
	udpConns := flag.Int("udp", 0, "Number of UDP connections (client only)")
	debugMode := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	if *debugMode {
		util.EnableDebug()
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		util.LogError("%v", err)
		os.Exit(1)
	}

	pterm.Info.Println(fmt.Sprintf("SpeedTest v%s", version))
	pterm.Println()

	switch config.Role(*mode) {
	case "":
		// No -mode flag → interactive mode.
		runInteractive(ctx, cfg)

	case config.RoleServer:
		runServer(ctx, cfg)

	case config.RoleClient:
		p := client.Params{
			FileSize: cfg.Client.FileSize,
			TCPConns: cfg.Client.TCPConns,
			UDPConns: cfg.Client.UDPConns,
		}
		if *size > 0 {
			p.FileSize = *size
		}
		if *tcpConns > 0 {
			p.TCPConns = *tcpConns
		}
		if *udpConns > 0 {
			p.UDPConns = *udpConns
		}
		runClient(ctx, cfg, p)

	default:
		util.LogError("invalid -mode: must be 'server' or 'client'")
		os.Exit(1)
	}
}

// ---------------------------------------------------------------------------
// Run modes
// ---------------------------------------------------------------------------

// runInteractive falls back to interactive prompts when no -mode flag is
// provided.
func runInteractive(ctx context.Context, cfg *config.Config) {
	mode, _ := pterm.DefaultInteractiveSelect.
		WithOptions([]string{"Server: stream test data to clients", "Client: discover a server and measure"}).
		WithDefaultText("Select a mode").
		Show()

	pterm.Println()

	if strings.HasPrefix(mode, "Server") {
		runServer(ctx, cfg)
		return
	}

	p := client.Params{
		FileSize: askSize("File size to request, in bytes", cfg.Client.FileSize),
		TCPConns: askCount("Number of TCP connections", cfg.Client.TCPConns),
		UDPConns: askCount("Number of UDP connections", cfg.Client.UDPConns),
	}
	runClient(ctx, cfg, p)
}

// runServer blocks until the context is cancelled and the server has
// drained its loops.
func runServer(ctx context.Context, cfg *config.Config) {
	srv := server.New(cfg)
	if err := srv.Run(ctx); err != nil {
		util.LogError("server failed: %v", err)
		os.Exit(1)
	}
	util.LogInfo("server stopped")
}

// runClient repeats the benchmark cycle until interrupted: wait for an
// offer, run every transfer, print the report, start over.
func runClient(ctx context.Context, cfg *config.Config, p client.Params) {
	if p.TCPConns <= 0 && p.UDPConns <= 0 {
		util.LogError("nothing to measure: both connection counts are zero")
		os.Exit(1)
	}

	util.LogInfo("client started, listening for offer requests")
	for {
		if !runCycle(ctx, cfg, p) {
			return
		}
	}
}

// runCycle performs one discovery window plus benchmark pass and reports
// whether the loop should keep going.
func runCycle(ctx context.Context, cfg *config.Config, p client.Params) bool {
	runCtx, cancel := context.WithTimeout(ctx, offerWindow)
	report, err := client.Run(runCtx, cfg, p)
	cancel()
	if err != nil {
		if ctx.Err() != nil {
			util.LogInfo("client stopped")
			return false
		}
		if errors.Is(err, context.DeadlineExceeded) {
			util.LogInfo("no offer received, listening for offer requests")
			return true
		}
		util.LogError("benchmark run failed: %v", err)
		os.Exit(1)
	}

	report.Render()
	util.LogSuccess("All transfers complete, listening to offer requests")
	return true
}

// ---------------------------------------------------------------------------
// Helper Functions
// ---------------------------------------------------------------------------

// askSize prompts for a byte count until a valid one is entered. An empty
// answer keeps def.
func askSize(prompt string, def uint64) uint64 {
	for {
		raw, _ := pterm.DefaultInteractiveTextInput.
			WithDefaultText(fmt.Sprintf("%s [%d]", prompt, def)).
			Show()

		raw = strings.TrimSpace(raw)
		if raw == "" {
			pterm.Println()
			return def
		}

		v, err := strconv.ParseUint(raw, 10, 64)
		if err == nil {
			pterm.Println()
			return v
		}

		util.LogWarning("invalid size: must be a non-negative integer")
		pterm.Println()
	}
}

// askCount prompts for a connection count until a valid one is entered.
// An empty answer keeps def.
func askCount(prompt string, def int) int {
	for {
		raw, _ := pterm.DefaultInteractiveTextInput.
			WithDefaultText(fmt.Sprintf("%s [%d]", prompt, def)).
			Show()

		raw = strings.TrimSpace(raw)
		if raw == "" {
			pterm.Println()
			return def
		}

		n, err := strconv.Atoi(raw)
		if err == nil && n >= 0 && n <= 1024 {
			pterm.Println()
			return n
		}

		util.LogWarning("invalid count: must be 0 ~ 1024")
		pterm.Println()
	}
}
