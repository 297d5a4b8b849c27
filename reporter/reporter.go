// Package reporter implements the timer-driven leaderboard renderer that
// spec.md §2 calls out as an external collaborator. This module still
// ships two concrete renderers so the binary runs end to end: a table
// reporter built on pterm, and a plain log-line reporter for when stdout
// isn't a terminal. Neither is "the" terminal UI the spec keeps out of
// scope — both are thin, redraw-on-tick views with no interactivity.
package reporter

import (
	"sync"
	"time"

	log "github.com/golang/glog"

	"github.com/denveloper/memkeys/lifecycle"
	"github.com/denveloper/memkeys/stats"
)

// Source is the leaderboard query the runner polls on a timer. *stats.Aggregator
// satisfies this directly.
type Source interface {
	GetLeaders(mode stats.Mode, order stats.Order) []stats.Stat
}

// Renderer draws one leaderboard snapshot.
type Renderer interface {
	Render(leaders []stats.Stat)
}

// Runner wakes on Interval, pulls a leaderboard from Source, and hands it
// to Renderer. It follows the same ticker-driven goroutine shape as the
// teacher's model/reporter.go NewMemcachedHotKeyReporter/
// NewlogHotKeyReporter constructors.
//
// Mode/Order are the initial sort settings, read once at Start; after
// that, SetMode is the only supported way to change them; loop reads the
// live values through mu the same way stats.Aggregator guards
// discardThreshold, since the config reloader calls SetMode from a
// separate goroutine while loop runs concurrently.
type Runner struct {
	Source   Source
	Renderer Renderer
	Interval time.Duration
	Mode     stats.Mode
	Order    stats.Order

	state lifecycle.Guard
	done  chan struct{}

	mu    sync.RWMutex
	mode  stats.Mode
	order stats.Order
}

// Start spawns the reporting goroutine. Calling Start twice is a no-op
// logged as a warning.
func (r *Runner) Start() {
	if !r.state.CheckAndSet(lifecycle.New, lifecycle.Running) {
		log.Warning("reporter: runner already started")
		return
	}
	if r.Interval <= 0 {
		r.Interval = time.Second
	}
	r.mu.Lock()
	r.mode, r.order = r.Mode, r.Order
	r.mu.Unlock()
	r.done = make(chan struct{})
	go r.loop()
}

// Shutdown stops the reporting goroutine and waits for it to exit.
func (r *Runner) Shutdown() {
	if !r.state.CheckAndSet(lifecycle.Running, lifecycle.Stopping) {
		log.Warning("reporter: runner not running, ignoring shutdown")
		return
	}
	<-r.done
	if r.state.CheckAndSet(lifecycle.Stopping, lifecycle.Terminated) {
		log.Info("reporter: runner successfully shut down")
	} else {
		log.Error("reporter: runner failed to reach terminated state")
	}
}

// SetMode lets the config reloader push a new sort mode/order onto a
// running reporter without a restart.
func (r *Runner) SetMode(mode stats.Mode, order stats.Order) {
	r.mu.Lock()
	r.mode, r.order = mode, order
	r.mu.Unlock()
}

func (r *Runner) modeOrder() (stats.Mode, stats.Order) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.mode, r.order
}

func (r *Runner) loop() {
	defer close(r.done)
	ticker := time.NewTicker(r.Interval)
	defer ticker.Stop()

	for r.state.IsRunning() {
		select {
		case <-ticker.C:
			mode, order := r.modeOrder()
			r.Renderer.Render(r.Source.GetLeaders(mode, order))
		default:
			time.Sleep(50 * time.Millisecond)
		}
	}
}
