// Package stats collects per-connection measurements from concurrent
// workers and derives the final report of one client run.
package stats

import (
	"sync"
	"time"
)

// Transport identifies which protocol a connection ran over.
type Transport string

const (
	TCP Transport = "TCP"
	UDP Transport = "UDP"
)

// ConnectionResult is the measurement of one connection. Exactly one
// worker produces it and the aggregator consumes it exactly once.
type ConnectionResult struct {
	Transport        Transport
	Index            int // 1-based connection number within its transport
	BytesTransferred uint64
	Elapsed          time.Duration
	SegmentsReceived uint64 // UDP only: distinct segment indices seen
	SegmentsExpected uint64 // UDP only: total declared by the server
	Err              error  // set when the worker failed partway
}

// Throughput returns the connection's speed in bits per second.
func (r *ConnectionResult) Throughput() float64 {
	sec := r.Elapsed.Seconds()
	if sec <= 0 {
		return 0
	}
	return float64(r.BytesTransferred) * 8 / sec
}

// SuccessRate returns received/expected for UDP transfers, in [0, 1].
// A transfer that never saw a segment reports 0.
func (r *ConnectionResult) SuccessRate() float64 {
	if r.SegmentsExpected == 0 {
		return 0
	}
	return float64(r.SegmentsReceived) / float64(r.SegmentsExpected)
}

// Aggregator collects results from concurrent workers. Add is safe for
// concurrent use; Report is meant to be called after the caller has
// joined all workers.
type Aggregator struct {
	mu      sync.Mutex
	results []ConnectionResult
}

func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// Add records one worker's result.
func (a *Aggregator) Add(r ConnectionResult) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.results = append(a.results, r)
}

// Report snapshots the collected results in arrival order.
func (a *Aggregator) Report() *Report {
	a.mu.Lock()
	defer a.mu.Unlock()
	results := make([]ConnectionResult, len(a.results))
	copy(results, a.results)
	return &Report{Results: results}
}

// Report holds every connection's result for one run.
type Report struct {
	Results []ConnectionResult
}

// TotalBytes sums the bytes received across all connections.
func (r *Report) TotalBytes() uint64 {
	var total uint64
	for i := range r.Results {
		total += r.Results[i].BytesTransferred
	}
	return total
}

// Failed counts the connections that ended with an error.
func (r *Report) Failed() int {
	n := 0
	for i := range r.Results {
		if r.Results[i].Err != nil {
			n++
		}
	}
	return n
}
