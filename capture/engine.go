// Package capture owns the packet source: it opens a live interface,
// filters to the configured memcache port, decodes link/IP/TCP headers,
// runs the protocol decoder over each TCP payload, and publishes the
// resulting events onto the shared queue.
//
// The goroutine/lifecycle shape (Start spawns one goroutine, Shutdown
// flips the lifecycle guard and joins it) mirrors the teacher's
// model/reporter.go ticker goroutines and original_source's Stats::start/
// shutdown; the packet-handling loop itself has no teacher analogue (the
// teacher eavesdrops as a TCP server, never touches link layers) and is
// grounded instead on other_examples/srebuff-cmdbx__main.go's
// gopacket-over-a-live-source pattern.
package capture

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"

	log "github.com/golang/glog"

	"github.com/denveloper/memkeys/lifecycle"
	"github.com/denveloper/memkeys/protocol"
	"github.com/denveloper/memkeys/queue"
)

// ErrUnsupportedLinkType is returned from Start when the interface's link
// layer isn't one this engine can demux.
var ErrUnsupportedLinkType = errors.New("capture: unsupported link type")

// maxConsecutiveReadErrors bounds how many back-to-back non-timeout
// ReadPacketData errors the loop tolerates before treating the packet
// source as dead and escalating to fatal, per spec.md §4.5/§7's error
// taxonomy. A single flaky read is routine; a run of them means the
// interface or capture handle itself is gone.
const maxConsecutiveReadErrors = 10

// Config controls how the capture engine opens and filters its packet
// source.
type Config struct {
	Interface     string
	Port          uint16
	Snaplen       int32
	ReadTimeout   time.Duration
	CountRequests bool
}

func (c Config) withDefaults() Config {
	if c.Snaplen <= 0 {
		c.Snaplen = 65535
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = time.Second
	}
	if c.Port == 0 {
		c.Port = 11211
	}
	return c
}

// Engine is the capture side of the pipeline.
type Engine struct {
	cfg   Config
	queue *queue.Queue

	handle *pcap.Handle
	state  lifecycle.Guard
	done   chan struct{}

	decodeErrors uint64

	// failure carries the fatal error that ended loop before Shutdown was
	// ever called, so the controller (cmd/memkeys's main) can notice a
	// dead packet source and tear the rest of the pipeline down instead of
	// sitting on a capture engine that silently stopped producing events.
	failure chan error
}

// New builds an Engine publishing events onto q.
func New(cfg Config, q *queue.Queue) *Engine {
	return &Engine{
		cfg:     cfg.withDefaults(),
		queue:   q,
		done:    make(chan struct{}),
		failure: make(chan error, 1),
	}
}

// Failures reports fatal packet-source errors: a send means the capture
// goroutine has already exited on its own. The caller should still call
// Shutdown to drive the lifecycle guard to Terminated and release the
// handle.
func (e *Engine) Failures() <-chan error {
	return e.failure
}

// Start opens the packet source and filters it to the configured port,
// then spawns the capture goroutine. Source-open failure is fatal and
// reported to the caller before Start returns, per spec.md §4.5/§7.
// Calling Start twice is a no-op logged as a warning.
func (e *Engine) Start() error {
	if !e.state.CheckAndSet(lifecycle.New, lifecycle.Running) {
		log.Warning("capture: engine already started")
		return nil
	}

	handle, err := pcap.OpenLive(e.cfg.Interface, e.cfg.Snaplen, true, e.cfg.ReadTimeout)
	if err != nil {
		log.Errorf("capture: failed to open interface %s: %v", e.cfg.Interface, err)
		return fmt.Errorf("capture: open %s: %w", e.cfg.Interface, err)
	}

	if handle.LinkType() != layers.LinkTypeEthernet {
		handle.Close()
		log.Errorf("capture: link type %v not supported", handle.LinkType())
		return fmt.Errorf("%w: %v", ErrUnsupportedLinkType, handle.LinkType())
	}

	filter := fmt.Sprintf("tcp port %d", e.cfg.Port)
	if err := handle.SetBPFFilter(filter); err != nil {
		handle.Close()
		log.Errorf("capture: failed to set filter %q: %v", filter, err)
		return fmt.Errorf("capture: set filter: %w", err)
	}

	e.handle = handle
	log.Infof("capture: listening on %s for port %d", e.cfg.Interface, e.cfg.Port)
	go e.loop()
	return nil
}

// Shutdown signals the capture goroutine to stop and waits for it to
// exit. Because the packet source was opened with a bounded read
// timeout, the goroutine notices the state change within one timeout
// tick even with zero inbound packets.
func (e *Engine) Shutdown() {
	if !e.state.CheckAndSet(lifecycle.Running, lifecycle.Stopping) {
		log.Warning("capture: engine not running, ignoring shutdown")
		return
	}
	<-e.done
	if e.state.CheckAndSet(lifecycle.Stopping, lifecycle.Terminated) {
		log.Info("capture: engine successfully shut down")
	} else {
		log.Error("capture: engine failed to reach terminated state")
	}
}

// DecodeErrors reports how many packets failed TCP/IP decoding; counted,
// never fatal, per spec.md §7.
func (e *Engine) DecodeErrors() uint64 {
	return e.decodeErrors
}

func (e *Engine) loop() {
	defer close(e.done)
	defer e.handle.Close()

	var eth layers.Ethernet
	var ip4 layers.IPv4
	var ip6 layers.IPv6
	var tcp layers.TCP
	decoded := make([]gopacket.LayerType, 0, 4)

	parser := gopacket.NewDecodingLayerParser(layers.LayerTypeEthernet, &eth, &ip4, &ip6, &tcp)
	parser.IgnoreUnsupported = true

	var consecutiveReadErrors int
	for e.state.IsRunning() {
		data, _, err := e.handle.ReadPacketData()
		if err == pcap.NextErrorTimeoutExpired {
			consecutiveReadErrors = 0
			continue
		}
		if err != nil {
			consecutiveReadErrors++
			log.V(2).Infof("capture: read error (%d consecutive): %v", consecutiveReadErrors, err)
			if isFatalReadStreak(consecutiveReadErrors) {
				log.Errorf("capture: %d consecutive read errors on %s, treating packet source as dead: %v",
					consecutiveReadErrors, e.cfg.Interface, err)
				select {
				case e.failure <- fmt.Errorf("capture: exceeded %d consecutive read errors: %w", maxConsecutiveReadErrors, err):
				default:
				}
				return
			}
			continue
		}
		consecutiveReadErrors = 0

		if perr := parser.DecodeLayers(data, &decoded); perr != nil {
			e.decodeErrors++
			log.V(2).Infof("capture: decode error: %v", perr)
			continue
		}
		if !containsTCP(decoded) || len(tcp.Payload) == 0 {
			continue
		}

		dir := protocol.ClassifyDirection(uint16(tcp.SrcPort), uint16(tcp.DstPort), e.cfg.Port)
		for _, ev := range protocol.Decode(tcp.Payload, dir, protocol.Options{CountRequests: e.cfg.CountRequests}) {
			e.queue.Produce(ev)
		}
	}
}

// isFatalReadStreak reports whether consecutive non-timeout read errors
// have reached the threshold at which the packet source is treated as
// dead rather than transiently flaky.
func isFatalReadStreak(consecutive int) bool {
	return consecutive >= maxConsecutiveReadErrors
}

func containsTCP(decoded []gopacket.LayerType) bool {
	for _, lt := range decoded {
		if lt == layers.LayerTypeTCP {
			return true
		}
	}
	return false
}
