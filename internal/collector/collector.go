// Package collector turns raw CDP events into the wire-level records the
// event store persists (spec section 4.3). Each collector subscribes to a
// fixed set of CDP event names on a session's transport and writes decoded
// records through store.Store.Append; the extension collector instead
// accepts events pushed directly from the gateway's HTTP/WS handlers.
package collector

import (
	"container/list"
	"fmt"
	"sync"
	"time"

	cdplog "github.com/chromedp/cdproto/log"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/runtime"

	"github.com/tomasbasham/devtoolsd/internal/cdp"
	"github.com/tomasbasham/devtoolsd/internal/store"
	"github.com/tomasbasham/devtoolsd/internal/wire"
)

// Options bounds the collectors' in-memory state, per spec section 5's
// backpressure requirements.
type Options struct {
	// MaxInFlightRequests caps the network collector's pending-request
	// correlation table. The oldest unmatched request is evicted, and one
	// error event is appended, when the cap is exceeded.
	MaxInFlightRequests int

	// MaxQueueDepth caps the shared degradingStore's in-memory backlog (events
	// buffered while the store is unavailable, oldest dropped first) and the
	// trace collector's frame buffer.
	MaxQueueDepth int
}

// Set is the full complement of collectors attached to one session.
type Set struct {
	Network   *NetworkCollector
	Console   *ConsoleCollector
	Extension *ExtensionCollector
	Trace     *TraceCollector
}

// Attach wires every collector to transport and wr, subscribing to the CDP
// events each one needs. The extension collector requires no subscription;
// it is driven by internal/gateway calling Ingest directly.
//
// Every collector writes through a shared degradingStore wrapping wr, so the
// store-degradation contract (spec section 4.1: buffer up to
// MaxQueueDepth, drop oldest-first, one StorageDegraded error event on
// resume) applies uniformly regardless of which collector is writing.
func Attach(transport *cdp.Transport, wr store.Store, opts Options) *Set {
	if opts.MaxInFlightRequests <= 0 {
		opts.MaxInFlightRequests = 5000
	}
	if opts.MaxQueueDepth <= 0 {
		opts.MaxQueueDepth = 10000
	}

	guarded := newDegradingStore(wr, opts.MaxQueueDepth)

	s := &Set{
		Network:   newNetworkCollector(guarded, opts.MaxInFlightRequests),
		Console:   newConsoleCollector(guarded),
		Extension: newExtensionCollector(guarded),
		Trace:     newTraceCollector(transport, guarded, opts.MaxQueueDepth),
	}

	transport.Subscribe("Network.requestWillBeSent", func(ev any) {
		s.Network.onRequest(ev.(*network.EventRequestWillBeSent))
	})
	transport.Subscribe("Network.responseReceived", func(ev any) {
		s.Network.onResponse(ev.(*network.EventResponseReceived))
	})
	transport.Subscribe("Network.loadingFinished", func(ev any) {
		s.Network.onFinished(ev.(*network.EventLoadingFinished))
	})
	transport.Subscribe("Network.loadingFailed", func(ev any) {
		s.Network.onFailed(ev.(*network.EventLoadingFailed))
	})
	transport.Subscribe("Runtime.consoleAPICalled", func(ev any) {
		s.Console.onConsoleAPI(ev.(*runtime.EventConsoleAPICalled))
	})
	transport.Subscribe("Log.entryAdded", func(ev any) {
		s.Console.onLogEntry(ev.(*cdplog.EventEntryAdded))
	})
	transport.Subscribe("Tracing.dataCollected", func(ev any) {
		s.Trace.onDataCollected(ev)
	})

	return s
}

// Detach stops any collector that owns background state (currently only the
// trace collector, which may be mid-capture).
func (s *Set) Detach() {
	if s.Trace != nil {
		s.Trace.stopIfActive()
	}
}

// boundedLRU is a small fixed-capacity map + doubly-linked list used to cap
// the network collector's correlation table. It is not a generic cache: it
// exists solely to give the network collector a deterministic, cheap eviction policy under
// sustained request volume (spec section 5's backpressure requirement).
type boundedLRU struct {
	mu       sync.Mutex
	capacity int
	order    *list.List
	items    map[network.RequestID]*list.Element
}

func newBoundedLRU(capacity int) *boundedLRU {
	return &boundedLRU{
		capacity: capacity,
		order:    list.New(),
		items:    make(map[network.RequestID]*list.Element),
	}
}

// put inserts value under key, evicting the oldest entry if the cap is
// exceeded. evictedKey and evictedVal are the entry removed to make room;
// evicted reports whether one was.
func (b *boundedLRU) put(key network.RequestID, value any) (evictedKey network.RequestID, evictedVal any, evicted bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if e, ok := b.items[key]; ok {
		e.Value.(*lruNode).value = value
		b.order.MoveToBack(e)
		return "", nil, false
	}

	node := &lruNode{key: key, value: value}
	e := b.order.PushBack(node)
	b.items[key] = e

	if b.order.Len() > b.capacity {
		oldest := b.order.Front()
		on := oldest.Value.(*lruNode)
		b.order.Remove(oldest)
		delete(b.items, on.key)
		return on.key, on.value, true
	}
	return "", nil, false
}

func (b *boundedLRU) take(key network.RequestID) (any, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.items[key]
	if !ok {
		return nil, false
	}
	b.order.Remove(e)
	delete(b.items, key)
	return e.Value.(*lruNode).value, true
}

type lruNode struct {
	key   network.RequestID
	value any
}

func nowMS() int64 {
	return time.Now().UnixMilli()
}

// networkEvicted reports a dropped-correlation error event, per spec section
// 5's requirement that backpressure be observable rather than silent.
func networkEvicted(wr store.Store, requestID network.RequestID) {
	wr.Append(wire.EventError, wire.ConsoleEvent{
		Level: "warn",
		Text:  "network collector: evicted unmatched request " + string(requestID),
	}, time.Now())
}

// bufferedEvent is one Append call held in memory while the underlying
// store is unavailable.
type bufferedEvent struct {
	eventType wire.EventType
	payload   any
	ts        time.Time
}

// degradingStore wraps a store.Store so every collector observes the same
// store-degradation contract (spec section 4.1): while the underlying store
// refuses writes, events are buffered up to capacity events, the oldest
// buffered event is dropped to make room for a new one, and the first
// successful write after an outage is preceded by exactly one
// StorageDegraded error event before the buffer is flushed (testable
// property 6).
type degradingStore struct {
	store.Store
	capacity int

	mu       sync.Mutex
	buffer   []bufferedEvent
	degraded bool
	dropped  int
}

func newDegradingStore(wr store.Store, capacity int) *degradingStore {
	return &degradingStore{Store: wr, capacity: capacity}
}

func (d *degradingStore) Append(eventType wire.EventType, payload any, ts time.Time) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.degraded {
		id, err := d.Store.Append(eventType, payload, ts)
		if err == nil {
			return id, nil
		}
		d.degraded = true
		d.enqueueLocked(eventType, payload, ts)
		return 0, nil
	}

	// Queue behind the older buffered events so the flush keeps submission
	// order, then retry the store with the StorageDegraded marker first.
	d.enqueueLocked(eventType, payload, ts)
	if _, err := d.Store.Append(wire.EventError, wire.ConsoleEvent{
		Level: "error",
		Kind:  "StorageDegraded",
		Text:  fmt.Sprintf("event store was unavailable; dropped %d buffered events", d.dropped),
	}, time.Now()); err != nil {
		return 0, nil
	}
	d.degraded = false
	d.dropped = 0
	var id int64
	for _, be := range d.buffer {
		id, _ = d.Store.Append(be.eventType, be.payload, be.ts)
	}
	d.buffer = nil
	return id, nil
}

// enqueueLocked appends to the buffer, dropping the oldest entry first once
// capacity is reached. Caller holds d.mu.
func (d *degradingStore) enqueueLocked(eventType wire.EventType, payload any, ts time.Time) {
	if d.capacity > 0 && len(d.buffer) >= d.capacity {
		d.buffer = d.buffer[1:]
		d.dropped++
	}
	d.buffer = append(d.buffer, bufferedEvent{eventType: eventType, payload: payload, ts: ts})
}
