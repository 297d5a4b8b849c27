package queue

import "testing"

func TestProduceConsumeFIFO(t *testing.T) {
	q := New(4)
	if !q.Produce(Event{Key: []byte("a"), Size: 1}) {
		t.Fatalf("produce into empty queue should succeed")
	}
	if !q.Produce(Event{Key: []byte("b"), Size: 2}) {
		t.Fatalf("produce should succeed while below capacity")
	}

	first, ok := q.Consume()
	if !ok || string(first.Key) != "a" {
		t.Fatalf("expected FIFO order, got %+v ok=%v", first, ok)
	}
	second, ok := q.Consume()
	if !ok || string(second.Key) != "b" {
		t.Fatalf("expected FIFO order, got %+v ok=%v", second, ok)
	}
}

func TestConsumeEmptyReturnsFalse(t *testing.T) {
	q := New(2)
	if _, ok := q.Consume(); ok {
		t.Fatalf("consume on empty queue must return false")
	}
}

func TestProduceDropsWhenFull(t *testing.T) {
	q := New(2)
	if !q.Produce(Event{Key: []byte("a")}) || !q.Produce(Event{Key: []byte("b")}) {
		t.Fatalf("first two produces should succeed")
	}
	if q.Produce(Event{Key: []byte("c")}) {
		t.Fatalf("produce on a full queue should be dropped, not accepted")
	}
	if q.Dropped() != 1 {
		t.Fatalf("expected 1 dropped event, got %d", q.Dropped())
	}
	if q.Len() != 2 {
		t.Fatalf("queue length should remain at capacity, got %d", q.Len())
	}
}

func TestWrapAround(t *testing.T) {
	q := New(2)
	q.Produce(Event{Key: []byte("a")})
	q.Produce(Event{Key: []byte("b")})
	q.Consume()
	q.Produce(Event{Key: []byte("c")})

	first, _ := q.Consume()
	second, _ := q.Consume()
	if string(first.Key) != "b" || string(second.Key) != "c" {
		t.Fatalf("expected wraparound FIFO order b,c; got %s,%s", first.Key, second.Key)
	}
	if _, ok := q.Consume(); ok {
		t.Fatalf("queue should be empty after draining")
	}
}
