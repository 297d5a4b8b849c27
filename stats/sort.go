package stats

import (
	"sort"
	"time"
)

// Mode selects the metric a leaderboard is ranked by.
type Mode int

const (
	Calls Mode = iota
	Size
	ReqRate
	Bandwidth
)

// ParseMode accepts the CLI spellings from spec.md §6's sort_mode option.
func ParseMode(s string) (Mode, bool) {
	switch s {
	case "calls":
		return Calls, true
	case "size":
		return Size, true
	case "reqrate":
		return ReqRate, true
	case "bw":
		return Bandwidth, true
	default:
		return Calls, false
	}
}

// Order is ascending or descending.
type Order int

const (
	Desc Order = iota
	Asc
)

// ParseOrder accepts the CLI spellings from spec.md §6's sort_order option.
func ParseOrder(s string) (Order, bool) {
	switch s {
	case "desc":
		return Desc, true
	case "asc":
		return Asc, true
	default:
		return Desc, false
	}
}

// metric extracts the comparable float value for mode at instant now.
func metric(mode Mode, s *Stat, now time.Time) float64 {
	switch mode {
	case Size:
		return float64(s.Size)
	case ReqRate:
		return s.RequestRate(now)
	case Bandwidth:
		return s.Bandwidth(now)
	default: // Calls
		return float64(s.Count)
	}
}

// sortLeaders ranks a snapshot by mode, descending by default, stable with
// a key_hash-ascending tiebreak for determinism, then reverses the result
// if order is Asc. now is the single instant all derived metrics in this
// ranking are computed against, so the ranking is internally consistent.
func sortLeaders(snapshot []*Stat, mode Mode, order Order, now time.Time) []*Stat {
	sort.SliceStable(snapshot, func(i, j int) bool {
		mi, mj := metric(mode, snapshot[i], now), metric(mode, snapshot[j], now)
		if mi != mj {
			return mi > mj // descending by metric
		}
		return snapshot[i].KeyHash < snapshot[j].KeyHash
	})
	if order == Asc {
		reverse(snapshot)
	}
	return snapshot
}

func reverse(s []*Stat) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
