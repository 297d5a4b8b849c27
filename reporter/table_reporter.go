package reporter

import (
	"fmt"
	"time"

	"github.com/pterm/pterm"

	"github.com/denveloper/memkeys/stats"
)

// TableReporter redraws a ranked table on every tick using pterm. Column
// set mirrors original_source/src/util/stats.cpp's printStats: key,
// count, elapsed, rate, size, bandwidth.
type TableReporter struct {
	// Limit caps how many rows are drawn; 0 means unlimited.
	Limit int
}

// Render implements Renderer.
func (t TableReporter) Render(leaders []stats.Stat) {
	now := time.Now()
	rows := [][]string{{"Key", "Count", "Elapsed", "Rate", "Size", "BW"}}

	n := len(leaders)
	if t.Limit > 0 && t.Limit < n {
		n = t.Limit
	}
	for i := 0; i < n; i++ {
		s := leaders[i]
		rows = append(rows, []string{
			string(s.Key),
			fmt.Sprintf("%d", s.Count),
			fmt.Sprintf("%.0fs", s.Elapsed(now)),
			fmt.Sprintf("%.2f", s.RequestRate(now)),
			fmt.Sprintf("%d", s.Size),
			fmt.Sprintf("%.2f", s.Bandwidth(now)),
		})
	}

	pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
}
