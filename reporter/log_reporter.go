package reporter

import (
	"time"

	log "github.com/golang/glog"

	"github.com/denveloper/memkeys/stats"
)

// LogReporter writes each leaderboard snapshot as a sequence of glog info
// lines, one per key. It is a direct generalization of the teacher's
// model/reporter.go logHotKeyReporter: that type logged a
// map[string]uint64 of hot-key scores; this one logs the richer Stat
// columns original_source/src/util/stats.cpp's printStats prints.
type LogReporter struct{}

// Render implements Renderer.
func (LogReporter) Render(leaders []stats.Stat) {
	now := time.Now()
	log.Infof("report: %d keys", len(leaders))
	for _, s := range leaders {
		log.Infof("report: %-40s count=%-8d size=%-8d rate=%-8.2f bw=%-10.2f",
			s.Key, s.Count, s.Size, s.RequestRate(now), s.Bandwidth(now))
	}
}
