package stats

import (
	"math"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/golang/glog"

	"github.com/denveloper/memkeys/backoff"
	"github.com/denveloper/memkeys/clock"
	"github.com/denveloper/memkeys/lifecycle"
	"github.com/denveloper/memkeys/queue"
)

const defaultReapInterval = 5 * time.Second

// Aggregator owns the StatCollection and the collector/reaper goroutine
// pair described in spec.md §4.6. Construction wires it to an event
// Queue; Start spawns both goroutines, Shutdown waits for both to exit
// (together, on one WaitGroup, in no fixed order) and verifies the final
// Stopping->Terminated transition.
type Aggregator struct {
	queue            *queue.Queue
	discardThreshold atomic.Uint64 // math.Float64bits, so the reloader can swap it lock-free
	reapInterval     time.Duration

	mu         sync.RWMutex
	collection map[uint64]*Stat
	approxSize atomic.Int32

	state lifecycle.Guard
	wg    sync.WaitGroup
}

// Option customizes an Aggregator at construction time.
type Option func(*Aggregator)

// WithReapInterval overrides the default 5s reap cadence; tests use this
// to avoid a real 5-second sleep.
func WithReapInterval(d time.Duration) Option {
	return func(a *Aggregator) { a.reapInterval = d }
}

// New builds an Aggregator reading events from q. discardThreshold is the
// minimum request_rate a key must sustain to survive a reap cycle; 0
// disables pruning entirely.
func New(q *queue.Queue, discardThreshold float64, opts ...Option) *Aggregator {
	a := &Aggregator{
		queue:        q,
		reapInterval: defaultReapInterval,
		collection:   make(map[uint64]*Stat),
	}
	a.SetDiscardThreshold(discardThreshold)
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// SetDiscardThreshold updates the reap threshold without a restart; the
// config reloader uses this to apply an operator's live tuning of
// discard_threshold.
func (a *Aggregator) SetDiscardThreshold(v float64) {
	a.discardThreshold.Store(math.Float64bits(v))
}

func (a *Aggregator) getDiscardThreshold() float64 {
	return math.Float64frombits(a.discardThreshold.Load())
}

// Start transitions New->Running and launches the collector and reaper
// goroutines. Calling Start a second time is a no-op logged as a warning.
func (a *Aggregator) Start() {
	if !a.state.CheckAndSet(lifecycle.New, lifecycle.Running) {
		log.Warning("stats: aggregator already started")
		return
	}
	log.Info("stats: starting aggregator")
	a.wg.Add(2)
	go a.reap()
	go a.collect()
}

// Shutdown transitions Running->Stopping, waits for both the reaper and the
// collector to exit (one WaitGroup; the order in which they finish is not
// fixed), and verifies the final Stopping->Terminated transition.
// Calling Shutdown before Start, or twice, is a no-op logged as a warning.
func (a *Aggregator) Shutdown() {
	if !a.state.CheckAndSet(lifecycle.Running, lifecycle.Stopping) {
		log.Warning("stats: aggregator not running, ignoring shutdown")
		return
	}
	log.Info("stats: stopping aggregator")
	a.wg.Wait()
	if a.state.CheckAndSet(lifecycle.Stopping, lifecycle.Terminated) {
		log.Info("stats: aggregator successfully shut down")
	} else {
		log.Error("stats: aggregator failed to reach terminated state")
	}
}

// Increment applies one observation to the collection under the write
// lock. A new Stat is inserted on first sight of key_hash; otherwise the
// existing entry is mutated in place (size overwritten, count
// incremented, last_seen advanced) per the "mutate in place under the
// lock" contract in spec.md's design notes.
func (a *Aggregator) Increment(key []byte, size uint32) {
	now := clock.Now()
	hash := HashKey(key)

	a.mu.Lock()
	if existing, ok := a.collection[hash]; ok {
		existing.touch(key, size, now)
	} else {
		a.collection[hash] = newStat(key, size, now)
		a.approxSize.Add(1)
	}
	a.mu.Unlock()
}

// GetLeaders takes a lock-protected snapshot of every Stat, sorts it by
// mode/order, and returns an independent copy: mutating the live
// collection afterward cannot affect the returned slice.
func (a *Aggregator) GetLeaders(mode Mode, order Order) []Stat {
	now := clock.Now()

	a.mu.RLock()
	snapshot := make([]*Stat, 0, len(a.collection))
	for _, s := range a.collection {
		snapshot = append(snapshot, s.clone())
	}
	a.mu.RUnlock()

	sortLeaders(snapshot, mode, order, now)

	out := make([]Stat, len(snapshot))
	for i, s := range snapshot {
		out[i] = *s
	}
	return out
}

// StatCount reports the approximate current size of the collection,
// readable without the lock per spec.md §4.6.
func (a *Aggregator) StatCount() uint32 {
	return uint32(a.approxSize.Load())
}

func (a *Aggregator) collect() {
	defer a.wg.Done()
	log.Info("stats: collector starting")

	b := backoff.New()
	for a.state.IsRunning() {
		ev, ok := a.queue.Consume()
		if !ok {
			delay := b.NextDelay()
			time.Sleep(delay)
			continue
		}
		a.Increment(ev.Key, ev.Size)
		b.Reset()
	}
	log.Info("stats: collector stopped")
}

func (a *Aggregator) reap() {
	defer a.wg.Done()
	log.Infof("stats: reaper starting with threshold %.2f", a.getDiscardThreshold())

	idle := 100 * time.Millisecond
	if a.reapInterval < idle {
		idle = a.reapInterval
	}
	ticker := time.NewTicker(a.reapInterval)
	defer ticker.Stop()
	for a.state.IsRunning() {
		select {
		case <-ticker.C:
			if threshold := a.getDiscardThreshold(); threshold > 0 {
				a.prune(threshold)
			}
		default:
			time.Sleep(idle)
		}
	}
	log.Info("stats: reaper stopped")
}

// prune drops every entry whose request_rate has fallen below threshold.
// Rather than deleting in place, it rebuilds the collection from the
// survivors: Go map bucket arrays never shrink on delete, and
// original_source/src/util/stats.cpp's prune() rehashes the collection
// down to its surviving size for the same reason.
func (a *Aggregator) prune(threshold float64) {
	now := clock.Now()

	a.mu.Lock()
	sizePre := len(a.collection)
	survivors := make(map[uint64]*Stat, sizePre)
	for hash, s := range a.collection {
		if s.RequestRate(now) >= threshold {
			survivors[hash] = s
		}
	}
	a.collection = survivors
	sizePost := len(a.collection)
	a.approxSize.Store(int32(sizePost))
	a.mu.Unlock()

	log.Infof("stats: collection size %d -> %d", sizePre, sizePost)
}
