// Package config implements the runtime config reloader described in
// SPEC_FULL.md §4.7: a small JSON file of mutable leaderboard tunables
// (discard_threshold, sort_mode, sort_order, refresh_interval) that can
// change without a process restart.
//
// The read-validate-lock-compare-swap shape is lifted directly from the
// teacher's model/consul.go (ReadEvery/readSecretsOnceFromFile/
// parseSecrets), generalized from a single secret string to this small
// tunables struct. fsnotify drives reloads promptly; the teacher's ticker
// is kept as a fallback poll for filesystems where fsnotify delivery is
// unreliable.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	log "github.com/golang/glog"
)

// Runtime holds the tunables a reloader can change on the fly.
type Runtime struct {
	DiscardThreshold float64       `json:"discard_threshold"`
	SortMode         string        `json:"sort_mode"`
	SortOrder        string        `json:"sort_order"`
	RefreshInterval  time.Duration `json:"-"`
	RefreshSeconds   float64       `json:"refresh_interval"`
}

// Reloader watches a file for changes and keeps the most recently parsed
// Runtime value available via Get.
type Reloader struct {
	path         string
	pollFallback time.Duration

	mu      sync.RWMutex
	current Runtime

	changed chan Runtime
}

// NewReloader reads path once synchronously (surfacing a read/parse error
// to the caller, since a bad initial config is a setup-time problem) and
// returns a Reloader ready to Watch in the background.
func NewReloader(path string, pollFallback time.Duration) (*Reloader, error) {
	if pollFallback <= 0 {
		pollFallback = 10 * time.Second
	}
	r := &Reloader{path: path, pollFallback: pollFallback, changed: make(chan Runtime, 1)}
	if err := r.reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Get returns the most recently loaded Runtime snapshot.
func (r *Reloader) Get() Runtime {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// Changed exposes a channel that receives a new Runtime value every time
// reload picks up a change. It is buffered by one and never blocks a
// send: a slow reader just sees the latest value next time it checks.
func (r *Reloader) Changed() <-chan Runtime {
	return r.changed
}

// Watch runs until stop is closed, reloading on fsnotify events and
// falling back to a periodic poll in case events are dropped or
// unsupported on this filesystem.
func (r *Reloader) Watch(stop <-chan struct{}) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Warningf("config: fsnotify unavailable, falling back to polling only: %v", err)
		r.pollLoop(stop, nil)
		return
	}
	defer watcher.Close()

	if err := watcher.Add(r.path); err != nil {
		log.Warningf("config: failed to watch %s, falling back to polling only: %v", r.path, err)
	}

	r.pollLoop(stop, watcher.Events)
}

func (r *Reloader) pollLoop(stop <-chan struct{}, events <-chan fsnotify.Event) {
	ticker := time.NewTicker(r.pollFallback)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			r.reloadAndNotify()
		case _, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			r.reloadAndNotify()
		}
	}
}

func (r *Reloader) reloadAndNotify() {
	before := r.Get()
	if err := r.reload(); err != nil {
		log.Errorf("config: reload of %s failed, keeping previous values: %v", r.path, err)
		return
	}
	after := r.Get()
	if after != before {
		select {
		case r.changed <- after:
		default:
			// drain the stale value and push the fresh one
			select {
			case <-r.changed:
			default:
			}
			r.changed <- after
		}
	}
}

func (r *Reloader) reload() error {
	raw, err := os.ReadFile(r.path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", r.path, err)
	}
	parsed, err := parse(raw)
	if err != nil {
		return fmt.Errorf("config: parse %s: %w", r.path, err)
	}
	r.mu.Lock()
	r.current = parsed
	r.mu.Unlock()
	return nil
}

func parse(raw []byte) (Runtime, error) {
	var rt Runtime
	if err := json.Unmarshal(raw, &rt); err != nil {
		return Runtime{}, err
	}
	rt.RefreshInterval = time.Duration(rt.RefreshSeconds * float64(time.Second))
	return rt, nil
}
