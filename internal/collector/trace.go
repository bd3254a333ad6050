package collector

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/chromedp/cdproto/tracing"

	"github.com/tomasbasham/devtoolsd/internal/cdp"
	"github.com/tomasbasham/devtoolsd/internal/store"
	"github.com/tomasbasham/devtoolsd/internal/wire"
)

// TraceCollector drives Tracing.start/Tracing.end on demand and streams
// Tracing.dataCollected frames to a newline-delimited JSON file on disk,
// the same convention internal/analyze reads back for Core Web Vitals.
type TraceCollector struct {
	transport *cdp.Transport
	wr        store.Store
	maxQueue  int

	mu       sync.Mutex
	active   bool
	traceID  string
	path     string
	file     *os.File
	writer   *bufio.Writer
	count    int
}

func newTraceCollector(transport *cdp.Transport, wr store.Store, maxQueue int) *TraceCollector {
	return &TraceCollector{transport: transport, wr: wr, maxQueue: maxQueue}
}

// Start begins a trace, writing frames to path. Returns an error if a trace
// is already active; spec section 4.3 allows at most one trace per session.
func (t *TraceCollector) Start(traceID, path string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.active {
		return fmt.Errorf("collector: a trace is already active for this session")
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("collector: failed to create trace file %q: %w", path, err)
	}

	t.active = true
	t.traceID = traceID
	t.path = path
	t.file = f
	t.writer = bufio.NewWriter(f)
	t.count = 0

	if err := tracing.Start().WithTransferMode(tracing.TransferModeReportEvents).Do(t.transport.Context()); err != nil {
		t.active = false
		f.Close()
		return fmt.Errorf("collector: Tracing.start failed: %w", err)
	}

	t.wr.Append(wire.EventTrace, wire.Trace{
		TraceID:   traceID,
		StartTS:   time.Now(),
		Status:    wire.TraceActive,
		Path:      path,
	}, time.Now())

	return nil
}

// Stop ends the active trace, flushing remaining frames to disk.
func (t *TraceCollector) Stop() (wire.Trace, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.active {
		return wire.Trace{}, fmt.Errorf("collector: no trace is active for this session")
	}

	if err := tracing.End().Do(t.transport.Context()); err != nil {
		return wire.Trace{}, fmt.Errorf("collector: Tracing.end failed: %w", err)
	}

	t.writer.Flush()
	t.file.Close()

	now := time.Now()
	result := wire.Trace{
		TraceID:    t.traceID,
		EventCount: t.count,
		Status:     wire.TraceComplete,
		Path:       t.path,
		EndTS:      &now,
	}
	t.wr.Append(wire.EventTrace, result, now)

	t.active = false
	return result, nil
}

// Active reports whether a trace is currently being captured.
func (t *TraceCollector) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active
}

func (t *TraceCollector) stopIfActive() {
	t.mu.Lock()
	active := t.active
	t.mu.Unlock()
	if active {
		t.Stop()
	}
}

// onDataCollected writes each trace event carried by a Tracing.dataCollected
// frame as one line of NDJSON. Once a trace has written maxQueue events,
// further events are dropped rather than buffered.
func (t *TraceCollector) onDataCollected(ev any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.active || t.writer == nil {
		return
	}

	var lines [][]byte
	if dc, ok := ev.(*tracing.EventDataCollected); ok {
		for _, v := range dc.Value {
			lines = append(lines, v)
		}
	} else if data, err := json.Marshal(ev); err == nil {
		lines = append(lines, data)
	}

	for _, data := range lines {
		if t.maxQueue > 0 && t.count >= t.maxQueue {
			return
		}
		t.writer.Write(data)
		t.writer.WriteByte('\n')
		t.count++
	}
}
