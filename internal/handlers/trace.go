package handlers

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/chromedp/cdproto/page"
	"github.com/google/uuid"

	"github.com/tomasbasham/devtoolsd/internal/session"
	"github.com/tomasbasham/devtoolsd/internal/wire"
)

type traceParams struct {
	URL     string `json:"url"`
	Out     string `json:"out"`
	Archive bool   `json:"archive"`
}

type traceResult struct {
	TraceID    string `json:"trace_id"`
	Path       string `json:"path"`
	EventCount int    `json:"event_count"`
	ArchiveURL string `json:"archive_url,omitempty"`
}

// handleTrace implements spec section 4.8's trace(url, out) operation: start
// a trace, navigate, await load, stop the trace, and move the recorded
// NDJSON artifact to the caller's requested path.
func handleTrace(ctx context.Context, sess *session.Session, raw json.RawMessage) (any, error) {
	var p traceParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, wire.Errorf(wire.CodeInvalidParams, err, "invalid trace params")
	}
	if p.URL == "" || p.Out == "" {
		return nil, wire.Errorf(wire.CodeInvalidParams, nil, "url and out are required")
	}

	return busyOp(ctx, sess, func() (any, error) {
		traceID := uuid.NewString()
		tmpDir := filepath.Join(sess.Dir, "traces")
		if err := os.MkdirAll(tmpDir, 0o755); err != nil {
			return nil, wire.Errorf(wire.CodeStorageUnavailable, err, "failed to create traces directory")
		}
		tmpPath := filepath.Join(tmpDir, traceID+".ndjson")

		if err := sess.Collectors.Trace.Start(traceID, tmpPath); err != nil {
			return nil, wire.Errorf(wire.CodeInvalidParams, err, "trace already active")
		}

		tctx := sess.Transport.Context()
		_, _, errText, navErr := page.Navigate(p.URL).Do(tctx)
		if navErr == nil && errText != "" {
			navErr = wire.Errorf(wire.CodeProtocolError, nil, "navigation failed: %s", errText)
		}
		if navErr == nil {
			navErr = awaitReady(ctx, sess, "load")
		}

		result, stopErr := sess.Collectors.Trace.Stop()
		if navErr != nil {
			return nil, navErr
		}
		if stopErr != nil {
			return nil, wire.Errorf(wire.CodeProtocolError, stopErr, "failed to stop trace")
		}

		if err := os.MkdirAll(filepath.Dir(p.Out), 0o755); err != nil {
			return nil, wire.Errorf(wire.CodeStorageUnavailable, err, "failed to create output directory")
		}
		if err := os.Rename(tmpPath, p.Out); err != nil {
			return nil, wire.Errorf(wire.CodeStorageUnavailable, err, "failed to move trace artifact to %q", p.Out)
		}

		sess.Refs.Invalidate()

		res := traceResult{TraceID: traceID, Path: p.Out, EventCount: result.EventCount}
		if p.Archive {
			data, readErr := os.ReadFile(p.Out)
			if readErr != nil {
				return nil, wire.Errorf(wire.CodeStorageUnavailable, readErr, "failed to read trace artifact for archival")
			}
			url, archErr := archive(ctx, "traces/"+traceID+".ndjson", data, "application/x-ndjson")
			if archErr != nil {
				return nil, wire.Errorf(wire.CodeStorageUnavailable, archErr, "failed to archive trace artifact")
			}
			res.ArchiveURL = url
		}
		return res, nil
	})
}
