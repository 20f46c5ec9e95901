package client

import (
	"context"
	"net"
	"strconv"
	"sync"

	"github.com/Shaq015/SpeedTestHackathon/internal/config"
	"github.com/Shaq015/SpeedTestHackathon/internal/stats"
	"github.com/Shaq015/SpeedTestHackathon/internal/util"
)

// Params are the validated inputs of one client run.
type Params struct {
	FileSize uint64
	TCPConns int
	UDPConns int
}

// Run waits for one offer, bounded by ctx, then benchmarks against the
// server it names.
func Run(ctx context.Context, cfg *config.Config, p Params) (*stats.Report, error) {
	disc, err := Listen(ctx, cfg)
	if err != nil {
		return nil, err
	}
	util.LogInfo("received offer from %s: udp port %d, tcp port %d",
		disc.ServerHost, disc.UDPPort, disc.TCPPort)
	return RunAgainst(cfg, disc, p), nil
}

// RunAgainst launches one worker per requested connection against an
// already-discovered server, joins them all, and returns the report.
// Offers arriving while transfers are in flight are simply never read.
func RunAgainst(cfg *config.Config, disc *Discovery, p Params) *stats.Report {
	agg := stats.NewAggregator()
	tcpAddr := net.JoinHostPort(disc.ServerHost, strconv.Itoa(int(disc.TCPPort)))
	udpAddr := net.JoinHostPort(disc.ServerHost, strconv.Itoa(int(disc.UDPPort)))

	var wg sync.WaitGroup
	for i := 0; i < p.TCPConns; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			runTCP(cfg, tcpAddr, i+1, p.FileSize, agg)
		}()
	}
	for i := 0; i < p.UDPConns; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			runUDP(cfg, udpAddr, i+1, p.FileSize, agg)
		}()
	}
	wg.Wait()

	return agg.Report()
}
