package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/tomasbasham/devtoolsd/internal/analyze"
	"github.com/tomasbasham/devtoolsd/internal/export"
	"github.com/tomasbasham/devtoolsd/internal/session"
	"github.com/tomasbasham/devtoolsd/internal/wire"
)

type historyParams struct {
	Last   string `json:"last"` // duration string, e.g. "10m"
	Type   string `json:"type"`
	Domain string `json:"domain"`
	Status int    `json:"status"`
	Level  string `json:"level"`
	Limit  int    `json:"limit"`
	Offset int    `json:"offset"`
}

func (p historyParams) filter(types ...wire.EventType) (wire.Filter, error) {
	f := wire.Filter{
		Types:  types,
		Domain: p.Domain,
		Status: p.Status,
		Level:  p.Level,
		Limit:  p.Limit,
		Offset: p.Offset,
	}
	if p.Type != "" {
		f.Types = []wire.EventType{wire.EventType(p.Type)}
	}
	if p.Last != "" {
		d, err := time.ParseDuration(p.Last)
		if err != nil {
			return f, wire.Errorf(wire.CodeInvalidParams, err, "invalid --last duration %q", p.Last)
		}
		f.Since = time.Now().Add(-d)
	}
	return f, nil
}

func queryEvents(ctx context.Context, sess *session.Session, f wire.Filter) ([]wire.Event, error) {
	ch, err := sess.Store.Query(ctx, f)
	if err != nil {
		return nil, wire.Errorf(wire.CodeStorageUnavailable, err, "history query failed")
	}
	var events []wire.Event
	for ev := range ch {
		events = append(events, ev)
	}
	return events, nil
}

func handleHistoryEvents(ctx context.Context, sess *session.Session, raw json.RawMessage) (any, error) {
	var p historyParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, wire.Errorf(wire.CodeInvalidParams, err, "invalid history params")
	}
	f, err := p.filter()
	if err != nil {
		return nil, err
	}
	events, err := queryEvents(ctx, sess, f)
	if err != nil {
		return nil, err
	}
	return map[string]any{"events": events}, nil
}

func handleHistoryNetwork(ctx context.Context, sess *session.Session, raw json.RawMessage) (any, error) {
	var p historyParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, wire.Errorf(wire.CodeInvalidParams, err, "invalid history params")
	}
	f, err := p.filter(wire.EventNetwork)
	if err != nil {
		return nil, err
	}
	events, err := queryEvents(ctx, sess, f)
	if err != nil {
		return nil, err
	}
	return map[string]any{"events": events}, nil
}

type exportParams struct {
	historyParams
	Format  string `json:"format"`
	Archive bool   `json:"archive"`
}

type exportResult struct {
	Script     string `json:"script"`
	ArchiveURL string `json:"archive_url,omitempty"`
}

// handleHistoryExport implements spec section 4.8's history.export
// operation: stream a session's events in chronological order and convert
// them to a reproducible script via internal/export. The only supported
// format is "playwright", matching spec.md §4.8's default.
func handleHistoryExport(ctx context.Context, sess *session.Session, raw json.RawMessage) (any, error) {
	var p exportParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, wire.Errorf(wire.CodeInvalidParams, err, "invalid history.export params")
	}
	if p.Format != "" && p.Format != "playwright" {
		return nil, wire.Errorf(wire.CodeInvalidParams, nil, "unsupported export format %q", p.Format)
	}

	f, err := p.filter()
	if err != nil {
		return nil, err
	}
	events, err := queryEvents(ctx, sess, f)
	if err != nil {
		return nil, err
	}

	script, err := export.ToPlaywright(events)
	if err != nil {
		return nil, wire.Errorf(wire.CodeInternal, err, "failed to export events")
	}

	res := exportResult{Script: script}
	if p.Archive {
		url, archErr := archive(ctx, "exports/"+uuid.NewString()+".spec.js", []byte(script), "application/javascript")
		if archErr != nil {
			return nil, wire.Errorf(wire.CodeStorageUnavailable, archErr, "failed to archive export")
		}
		res.ArchiveURL = url
	}
	return res, nil
}

type analyzeParams struct {
	Trace string `json:"trace"`
}

// handleAnalyze implements spec section 4.8's analyze(trace.ndjson)
// operation: parse a newline-delimited trace file produced by the trace
// collector and compute Core Web Vitals via internal/analyze.
func handleAnalyze(ctx context.Context, sess *session.Session, raw json.RawMessage) (any, error) {
	var p analyzeParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, wire.Errorf(wire.CodeInvalidParams, err, "invalid analyze params")
	}
	if p.Trace == "" {
		return nil, wire.Errorf(wire.CodeInvalidParams, nil, "trace path is required")
	}

	data, err := os.ReadFile(p.Trace)
	if err != nil {
		return nil, wire.Errorf(wire.CodeStorageUnavailable, err, "failed to read trace file %q", p.Trace)
	}

	metrics, err := analyze.Analyze(bytes.NewReader(data))
	if err != nil {
		return nil, wire.Errorf(wire.CodeInternal, err, "failed to analyze trace")
	}
	return map[string]any{"metrics": metrics}, nil
}

func handleHistoryConsole(ctx context.Context, sess *session.Session, raw json.RawMessage) (any, error) {
	var p historyParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, wire.Errorf(wire.CodeInvalidParams, err, "invalid history params")
	}
	f, err := p.filter(wire.EventConsole, wire.EventError)
	if err != nil {
		return nil, err
	}
	events, err := queryEvents(ctx, sess, f)
	if err != nil {
		return nil, err
	}
	return map[string]any{"events": events}, nil
}
