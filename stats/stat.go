// Package stats owns the keyed statistics table: the Stat type, the
// aggregator that mutates it under a writer-exclusive lock, and the
// leaderboard query used to rank keys.
//
// The shape of increment/getLeaders/prune is carried over directly from
// original_source/src/util/stats.cpp's Stats class; this package is the
// direct Go translation of that C++ class's contract (spec.md §4.6), not
// an adaptation of anything in the teacher's model package — the teacher
// solves a different problem (rolling-window hot-key scoring across
// mcrouter connections) with a different shape entirely.
package stats

import (
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/denveloper/memkeys/clock"
)

// Stat is a single key's running aggregate since it was first observed.
type Stat struct {
	Key       []byte
	KeyHash   uint64
	Count     uint64
	Size      uint32
	FirstSeen time.Time
	LastSeen  time.Time
}

// HashKey computes the stable 64-bit hash used as the StatCollection's
// primary (and only) index.
func HashKey(key []byte) uint64 {
	return xxhash.Sum64(key)
}

// newStat constructs the first Stat for a key: count=1, first_seen ==
// last_seen == now.
func newStat(key []byte, size uint32, now time.Time) *Stat {
	return &Stat{
		Key:       append([]byte(nil), key...),
		KeyHash:   HashKey(key),
		Count:     1,
		Size:      size,
		FirstSeen: now,
		LastSeen:  now,
	}
}

// touch applies one more observation to an existing Stat: overwrite size,
// bump count, advance last_seen. Never decreases Count or LastSeen.
func (s *Stat) touch(key []byte, size uint32, now time.Time) {
	s.Key = append(s.Key[:0], key...)
	s.Size = size
	s.Count++
	s.LastSeen = now
}

// Elapsed returns max(1, now-first_seen) in seconds.
func (s *Stat) Elapsed(now time.Time) float64 {
	return clock.ElapsedSeconds(s.FirstSeen, now)
}

// RequestRate is count / elapsed.
func (s *Stat) RequestRate(now time.Time) float64 {
	return float64(s.Count) / s.Elapsed(now)
}

// Bandwidth is (count * size) / elapsed.
func (s *Stat) Bandwidth(now time.Time) float64 {
	return float64(s.Count) * float64(s.Size) / s.Elapsed(now)
}

// clone returns an independent copy of s so a leaderboard snapshot can
// never be mutated by later writes to the live collection.
func (s *Stat) clone() *Stat {
	cp := *s
	cp.Key = append([]byte(nil), s.Key...)
	return &cp
}
