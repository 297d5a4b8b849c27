// Command memkeys passively observes memcache ASCII traffic on a network
// interface and prints a continuously refreshed top-keys leaderboard.
//
// Flag wiring follows the teacher's mc_hotkeys.go main(): a flat set of
// flag.* declarations, no CLI framework, since the teacher never reached
// for one and this binary's flag surface is smaller than the teacher's.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/golang/glog"

	"github.com/denveloper/memkeys/capture"
	"github.com/denveloper/memkeys/config"
	"github.com/denveloper/memkeys/queue"
	"github.com/denveloper/memkeys/reporter"
	"github.com/denveloper/memkeys/stats"
)

var (
	iface            = flag.String("interface", "", "packet source device name (required)")
	port             = flag.Uint("port", 11211, "TCP port for memcache traffic")
	discardThreshold = flag.Float64("discard_threshold", 0, "requests/sec below which a key is reaped; 0 disables")
	refreshInterval  = flag.Duration("refresh_interval", time.Second, "duration between UI refreshes")
	sortMode         = flag.String("sort_mode", "calls", "initial leaderboard mode: calls|size|reqrate|bw")
	sortOrder        = flag.String("sort_order", "desc", "asc|desc")
	queueCapacity    = flag.Int("queue_capacity", 4096, "capacity of the capture->collector event queue")
	snaplen          = flag.Int("snaplen", 65535, "pcap capture snapshot length")
	readTimeout      = flag.Duration("read_timeout", time.Second, "pcap read timeout controlling shutdown latency")
	countRequests    = flag.Bool("count_requests", false, "count GET/GETS requests in addition to VALUE responses")
	configFile       = flag.String("config_file", "", "optional JSON file of hot-reloadable overrides")
	logReporterFlag  = flag.Bool("log_reporter", false, "use the plain log-line reporter instead of the pterm table")
	topN             = flag.Int("top_n", 20, "number of rows the table reporter draws")
)

func main() {
	flag.Parse()
	defer log.Flush()

	if *iface == "" {
		log.Error("memkeys: -interface is required")
		fmt.Fprintln(os.Stderr, "memkeys: -interface is required")
		os.Exit(1)
	}

	mode, ok := stats.ParseMode(*sortMode)
	if !ok {
		log.Errorf("memkeys: invalid -sort_mode %q", *sortMode)
		os.Exit(1)
	}
	order, ok := stats.ParseOrder(*sortOrder)
	if !ok {
		log.Errorf("memkeys: invalid -sort_order %q", *sortOrder)
		os.Exit(1)
	}

	q := queue.New(*queueCapacity)
	aggregator := stats.New(q, *discardThreshold)

	engine := capture.New(capture.Config{
		Interface:     *iface,
		Port:          uint16(*port),
		Snaplen:       int32(*snaplen),
		ReadTimeout:   *readTimeout,
		CountRequests: *countRequests,
	}, q)

	var renderer reporter.Renderer = reporter.LogReporter{}
	if !*logReporterFlag {
		renderer = reporter.TableReporter{Limit: *topN}
	}
	report := &reporter.Runner{
		Source:   aggregator,
		Renderer: renderer,
		Interval: *refreshInterval,
		Mode:     mode,
		Order:    order,
	}

	var reloader *config.Reloader
	stopReload := make(chan struct{})
	if *configFile != "" {
		var err error
		reloader, err = config.NewReloader(*configFile, 10*time.Second)
		if err != nil {
			log.Errorf("memkeys: failed to load %s: %v", *configFile, err)
			os.Exit(1)
		}
		go reloader.Watch(stopReload)
		go applyRuntimeOverrides(reloader, aggregator, report)
	}

	if err := engine.Start(); err != nil {
		log.Errorf("memkeys: failed to start capture: %v", err)
		os.Exit(1)
	}
	aggregator.Start()
	report.Start()

	log.Infof("memkeys: observing %s:%d", *iface, *port)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sig:
		log.Info("memkeys: shutting down")
	case err := <-engine.Failures():
		log.Errorf("memkeys: capture engine failed fatally, shutting down: %v", err)
	}

	close(stopReload)
	engine.Shutdown()
	aggregator.Shutdown()
	report.Shutdown()
}

// applyRuntimeOverrides bridges the config reloader's change notifications
// onto the live aggregator/reporter, so an operator's edits to
// discard_threshold/sort_mode/sort_order take effect without a restart.
// refresh_interval is parsed by the reloader but not applied here: the
// reporter keeps the interval it was started with.
func applyRuntimeOverrides(reloader *config.Reloader, aggregator *stats.Aggregator, report *reporter.Runner) {
	for update := range reloader.Changed() {
		aggregator.SetDiscardThreshold(update.DiscardThreshold)
		if mode, ok := stats.ParseMode(update.SortMode); ok {
			if order, ok := stats.ParseOrder(update.SortOrder); ok {
				report.SetMode(mode, order)
			}
		}
		log.Infof("memkeys: applied config reload: %+v", update)
	}
}
