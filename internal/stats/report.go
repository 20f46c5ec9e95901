package stats

import (
	"fmt"
	"sort"

	"github.com/pterm/pterm"

	"github.com/Shaq015/SpeedTestHackathon/internal/util"
)

// Render prints the per-connection lines and a summary table. Lines keep
// the classic phrasing so operators can diff runs against older tools.
func (r *Report) Render() {
	ordered := make([]ConnectionResult, len(r.Results))
	copy(ordered, r.Results)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Transport != ordered[j].Transport {
			return ordered[i].Transport == TCP
		}
		return ordered[i].Index < ordered[j].Index
	})

	rows := pterm.TableData{{"Transport", "#", "Bytes", "Time", "Speed", "Delivery"}}
	for i := range ordered {
		res := &ordered[i]

		if res.Err != nil {
			util.LogWarning("%s transfer #%d failed: %v", res.Transport, res.Index, res.Err)
		} else if res.Transport == UDP {
			util.LogInfo("UDP transfer #%d finished, total time: %.3f seconds, total speed: %.1f bits/second, percentage of packets received successfully: %.1f%%",
				res.Index, res.Elapsed.Seconds(), res.Throughput(), res.SuccessRate()*100)
		} else {
			util.LogInfo("TCP transfer #%d finished, total time: %.3f seconds, total speed: %.1f bits/second",
				res.Index, res.Elapsed.Seconds(), res.Throughput())
		}

		rows = append(rows, []string{
			string(res.Transport),
			fmt.Sprintf("%d", res.Index),
			fmt.Sprintf("%d", res.BytesTransferred),
			fmt.Sprintf("%.3fs", res.Elapsed.Seconds()),
			formatBits(res.Throughput()),
			formatDelivery(res),
		})
	}

	pterm.Println()
	_ = pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
	pterm.Println()
}

// formatBits formats a bits-per-second rate with a sensible unit.
func formatBits(bps float64) string {
	units := []string{"bit/s", "Kbit/s", "Mbit/s", "Gbit/s"}
	idx := 0
	for bps >= 1000 && idx < len(units)-1 {
		bps /= 1000
		idx++
	}
	return fmt.Sprintf("%.1f %s", bps, units[idx])
}

// formatDelivery renders the UDP delivery column; TCP rows show a dash.
func formatDelivery(res *ConnectionResult) string {
	if res.Transport != UDP {
		return "-"
	}
	return fmt.Sprintf("%d/%d (%.1f%%)", res.SegmentsReceived, res.SegmentsExpected, res.SuccessRate()*100)
}
