package capture

import (
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"github.com/denveloper/memkeys/queue"
)

func TestConfigDefaults(t *testing.T) {
	cfg := Config{Interface: "eth0"}.withDefaults()
	if cfg.Snaplen != 65535 {
		t.Fatalf("expected default snaplen 65535, got %d", cfg.Snaplen)
	}
	if cfg.ReadTimeout != time.Second {
		t.Fatalf("expected default read timeout 1s, got %v", cfg.ReadTimeout)
	}
	if cfg.Port != 11211 {
		t.Fatalf("expected default port 11211, got %d", cfg.Port)
	}
}

func TestConfigDefaultsPreservesExplicitValues(t *testing.T) {
	cfg := Config{Interface: "eth0", Port: 12000, Snaplen: 128, ReadTimeout: 2 * time.Second}.withDefaults()
	if cfg.Port != 12000 || cfg.Snaplen != 128 || cfg.ReadTimeout != 2*time.Second {
		t.Fatalf("withDefaults must not override explicit values, got %+v", cfg)
	}
}

func TestContainsTCP(t *testing.T) {
	present := []gopacket.LayerType{layers.LayerTypeEthernet, layers.LayerTypeIPv4, layers.LayerTypeTCP}
	if !containsTCP(present) {
		t.Fatalf("expected containsTCP to find TCP in %v", present)
	}
	absent := []gopacket.LayerType{layers.LayerTypeEthernet, layers.LayerTypeIPv4}
	if containsTCP(absent) {
		t.Fatalf("expected containsTCP to report false for %v", absent)
	}
}

func TestNewEngineStartsInNewState(t *testing.T) {
	e := New(Config{Interface: "lo"}, queue.New(8))
	if e.state.Current().String() != "NEW" {
		t.Fatalf("fresh engine should be in NEW state, got %v", e.state.Current())
	}
}

func TestNewEngineHasEmptyFailuresChannel(t *testing.T) {
	e := New(Config{Interface: "lo"}, queue.New(8))
	select {
	case err := <-e.Failures():
		t.Fatalf("expected no failure on a fresh engine, got %v", err)
	default:
	}
}

func TestIsFatalReadStreak(t *testing.T) {
	if isFatalReadStreak(maxConsecutiveReadErrors - 1) {
		t.Fatalf("streak below threshold must not be fatal")
	}
	if !isFatalReadStreak(maxConsecutiveReadErrors) {
		t.Fatalf("streak at threshold must be fatal")
	}
	if !isFatalReadStreak(maxConsecutiveReadErrors + 1) {
		t.Fatalf("streak above threshold must be fatal")
	}
}
