package stats

import (
	"testing"
	"time"

	"github.com/denveloper/memkeys/queue"
)

func TestIncrementNewKey(t *testing.T) {
	a := New(queue.New(8), 0)
	a.Increment([]byte("foo"), 3)

	if a.StatCount() != 1 {
		t.Fatalf("expected 1 stat, got %d", a.StatCount())
	}
	leaders := a.GetLeaders(Calls, Desc)
	if len(leaders) != 1 {
		t.Fatalf("expected 1 leader, got %d", len(leaders))
	}
	stat := leaders[0]
	if string(stat.Key) != "foo" || stat.Count != 1 || stat.Size != 3 {
		t.Fatalf("unexpected stat: %+v", stat)
	}
}

func TestIncrementRepeatedKeyMostRecentSizeWins(t *testing.T) {
	a := New(queue.New(8), 0)
	for i := 0; i < 100; i++ {
		size := uint32(10)
		if i%2 == 1 {
			size = 20
		}
		a.Increment([]byte("hot"), size)
	}
	leaders := a.GetLeaders(Calls, Desc)
	if len(leaders) != 1 {
		t.Fatalf("expected 1 stat, got %d", len(leaders))
	}
	if leaders[0].Count != 100 {
		t.Fatalf("expected count 100, got %d", leaders[0].Count)
	}
	if leaders[0].Size != 20 {
		t.Fatalf("expected most recent size 20, got %d", leaders[0].Size)
	}
}

func TestMonotonicCounters(t *testing.T) {
	a := New(queue.New(8), 0)
	a.Increment([]byte("k"), 1)
	first := a.GetLeaders(Calls, Desc)[0]

	time.Sleep(5 * time.Millisecond)
	a.Increment([]byte("k"), 2)
	second := a.GetLeaders(Calls, Desc)[0]

	if second.Count <= first.Count-1 || second.Count != first.Count+1 {
		t.Fatalf("count should increase by 1, got %d -> %d", first.Count, second.Count)
	}
	if second.LastSeen.Before(first.LastSeen) {
		t.Fatalf("last_seen must never go backwards")
	}
	if !second.FirstSeen.Equal(first.FirstSeen) {
		t.Fatalf("first_seen must never change once set")
	}
}

func TestMultiKeyResponseSizeOrdering(t *testing.T) {
	a := New(queue.New(8), 0)
	a.Increment([]byte("a"), 1)
	a.Increment([]byte("b"), 2)

	leaders := a.GetLeaders(Size, Desc)
	if len(leaders) != 2 || string(leaders[0].Key) != "b" || string(leaders[1].Key) != "a" {
		t.Fatalf("expected b before a by size desc, got %+v", leaders)
	}
}

func TestGetLeadersDescAndAscAreReverses(t *testing.T) {
	a := New(queue.New(8), 0)
	for i := 0; i < 3; i++ {
		a.Increment([]byte{byte('x' + i)}, 0)
	}
	for i := 0; i <= 1; i++ {
		a.Increment([]byte("x"), 0) // extra calls to "x" to break ties
	}

	desc := a.GetLeaders(Calls, Desc)
	asc := a.GetLeaders(Calls, Asc)
	if len(desc) != len(asc) {
		t.Fatalf("desc/asc length mismatch")
	}
	for i := range desc {
		if desc[i].KeyHash != asc[len(asc)-1-i].KeyHash {
			t.Fatalf("asc should be the exact reverse of desc")
		}
	}
	for i := 1; i < len(desc); i++ {
		if desc[i-1].Count < desc[i].Count {
			t.Fatalf("desc leaderboard not non-increasing at %d", i)
		}
	}
}

func TestSnapshotIsolation(t *testing.T) {
	a := New(queue.New(8), 0)
	a.Increment([]byte("foo"), 1)

	leaders := a.GetLeaders(Calls, Desc)
	snapshotCount := leaders[0].Count

	a.Increment([]byte("foo"), 99)

	if leaders[0].Count != snapshotCount {
		t.Fatalf("mutating the collection after GetLeaders must not change the returned snapshot")
	}
	if leaders[0].Size == 99 {
		t.Fatalf("snapshot size should not reflect a later mutation")
	}
}

func TestReapEvictsBelowThreshold(t *testing.T) {
	a := New(queue.New(8), 1000.0, WithReapInterval(20*time.Millisecond))
	a.Start()
	defer a.Shutdown()

	a.Increment([]byte("cold"), 1)
	time.Sleep(80 * time.Millisecond)

	if a.StatCount() != 0 {
		t.Fatalf("expected cold key to be reaped, stat_count=%d", a.StatCount())
	}
}

func TestReapSurvivorsAllMeetThreshold(t *testing.T) {
	a := New(queue.New(8), 0.5, WithReapInterval(20*time.Millisecond))

	for i := 0; i < 1000; i++ {
		a.Increment([]byte("warm"), 1)
	}
	a.Increment([]byte("cold"), 1)

	a.Start()
	defer a.Shutdown()
	time.Sleep(80 * time.Millisecond)

	leaders := a.GetLeaders(Calls, Desc)
	for _, s := range leaders {
		if s.RequestRate(time.Now()) < 0.5 {
			t.Fatalf("surviving stat %q has rate below threshold", s.Key)
		}
	}
}

func TestShutdownWithoutStartIsNoop(t *testing.T) {
	a := New(queue.New(1), 0)
	a.Shutdown() // must not panic or hang
}

func TestDoubleStartIsNoop(t *testing.T) {
	a := New(queue.New(1), 0)
	a.Start()
	a.Start() // should just log a warning
	a.Shutdown()
}

func TestShutdownBoundedWithNoTraffic(t *testing.T) {
	a := New(queue.New(1), 0)
	a.Start()

	done := make(chan struct{})
	go func() {
		a.Shutdown()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("shutdown did not complete within the bounded window")
	}
}
