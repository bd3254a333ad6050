package collector

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/chromedp/cdproto/network"

	"github.com/tomasbasham/devtoolsd/internal/wire"
)

// memStore is a minimal store.Store fake that records appended payloads in
// memory, enough to assert what a collector wrote without a real database.
type memStore struct {
	mu     sync.Mutex
	events []wire.Event
	nextID int64
}

func (m *memStore) Append(eventType wire.EventType, payload any, ts time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.events = append(m.events, wire.Event{ID: m.nextID, Type: eventType, TimestampMS: ts.UnixMilli()})
	return m.nextID, nil
}

func (m *memStore) Query(ctx context.Context, filter wire.Filter) (<-chan wire.Event, error) {
	ch := make(chan wire.Event)
	close(ch)
	return ch, nil
}

func (m *memStore) Count(filter wire.Filter) (uint64, error) { return 0, nil }
func (m *memStore) Delete() error                             { return nil }
func (m *memStore) Close() error                              { return nil }

func (m *memStore) snapshot() []wire.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]wire.Event(nil), m.events...)
}

func TestBoundedLRUEvictsOldest(t *testing.T) {
	b := newBoundedLRU(2)

	b.put(network.RequestID("a"), 1)
	b.put(network.RequestID("b"), 2)
	evictedKey, _, evicted := b.put(network.RequestID("c"), 3)

	if !evicted || evictedKey != network.RequestID("a") {
		t.Fatalf("expected eviction of %q, got evicted=%v key=%q", "a", evicted, evictedKey)
	}
	if _, ok := b.take(network.RequestID("a")); ok {
		t.Fatalf("expected %q to have been evicted", "a")
	}
	if _, ok := b.take(network.RequestID("b")); !ok {
		t.Fatalf("expected %q to still be present", "b")
	}
}

func TestNetworkCollectorEvictionEmitsError(t *testing.T) {
	ms := &memStore{}
	c := newNetworkCollector(ms, 1)

	c.onRequest(&network.EventRequestWillBeSent{RequestID: "r1", Request: &network.Request{Method: "GET", URL: "https://a.test"}})
	c.onRequest(&network.EventRequestWillBeSent{RequestID: "r2", Request: &network.Request{Method: "GET", URL: "https://b.test"}})

	events := ms.snapshot()
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1 eviction error", len(events))
	}
	if events[0].Type != wire.EventError {
		t.Fatalf("event type = %v, want %v", events[0].Type, wire.EventError)
	}
}

func TestNetworkCollectorCorrelatesRequestAndFinished(t *testing.T) {
	ms := &memStore{}
	c := newNetworkCollector(ms, 10)

	c.onRequest(&network.EventRequestWillBeSent{RequestID: "r1", Request: &network.Request{Method: "GET", URL: "https://a.test"}})
	c.onFinished(&network.EventLoadingFinished{RequestID: "r1", EncodedDataLength: 42})

	events := ms.snapshot()
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if events[0].Type != wire.EventNetwork {
		t.Fatalf("event type = %v, want %v", events[0].Type, wire.EventNetwork)
	}
}

// flakyStore fails every Append until told to recover.
type flakyStore struct {
	memStore
	mu   sync.Mutex
	down bool
}

func (f *flakyStore) Append(eventType wire.EventType, payload any, ts time.Time) (int64, error) {
	f.mu.Lock()
	down := f.down
	f.mu.Unlock()
	if down {
		return 0, wire.Errorf(wire.CodeStorageUnavailable, nil, "store unavailable")
	}
	return f.memStore.Append(eventType, payload, ts)
}

func TestDegradingStoreBuffersAndDropsOldestWhileDown(t *testing.T) {
	f := &flakyStore{}
	f.down = true
	d := newDegradingStore(f, 2)

	d.Append(wire.EventConsole, wire.ConsoleEvent{Text: "1"}, time.Now())
	d.Append(wire.EventConsole, wire.ConsoleEvent{Text: "2"}, time.Now())
	d.Append(wire.EventConsole, wire.ConsoleEvent{Text: "3"}, time.Now())

	if len(d.buffer) != 2 {
		t.Fatalf("buffer len = %d, want 2", len(d.buffer))
	}
	if d.buffer[0].payload.(wire.ConsoleEvent).Text != "2" {
		t.Fatalf("expected oldest entry dropped, buffer head = %+v", d.buffer[0])
	}
}

func TestDegradingStoreEmitsOneStorageDegradedEventOnResume(t *testing.T) {
	f := &flakyStore{}
	f.down = true
	d := newDegradingStore(f, 10)

	d.Append(wire.EventConsole, wire.ConsoleEvent{Text: "1"}, time.Now())
	d.Append(wire.EventConsole, wire.ConsoleEvent{Text: "2"}, time.Now())

	f.mu.Lock()
	f.down = false
	f.mu.Unlock()

	d.Append(wire.EventConsole, wire.ConsoleEvent{Text: "3"}, time.Now())

	events := f.snapshot()
	degraded := 0
	for _, ev := range events {
		if ev.Type == wire.EventError {
			degraded++
		}
	}
	if degraded != 1 {
		t.Fatalf("got %d StorageDegraded events, want exactly 1", degraded)
	}
	// 1 StorageDegraded + 2 flushed buffered events + the current write.
	if len(events) != 4 {
		t.Fatalf("got %d events after resume, want 4", len(events))
	}
}

func TestExtensionCollectorIngest(t *testing.T) {
	ms := &memStore{}
	c := newExtensionCollector(ms)

	if _, err := c.Ingest(wire.EventClick, wire.ClickEvent{CSS: "#go"}); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if len(ms.snapshot()) != 1 {
		t.Fatalf("expected 1 event after Ingest")
	}
}
