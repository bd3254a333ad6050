package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/google/uuid"

	"github.com/tomasbasham/devtoolsd/internal/session"
	"github.com/tomasbasham/devtoolsd/internal/wire"
)

type screenshotParams struct {
	Selector string `json:"selector"`
	Ref      string `json:"ref"`
	FullPage bool   `json:"full_page"`
	Format   string `json:"format"`
	Quality  int    `json:"quality"`
}

type screenshotResult struct {
	Path string `json:"path"`
}

// handleScreenshot implements spec section 4.8's screenshot operation.
func handleScreenshot(ctx context.Context, sess *session.Session, raw json.RawMessage) (any, error) {
	var p screenshotParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, wire.Errorf(wire.CodeInvalidParams, err, "invalid screenshot params")
	}

	format := p.Format
	if format == "" {
		format = "png"
	}
	quality := p.Quality
	if quality <= 0 {
		quality = 90
	}
	if quality > 100 {
		quality = 100
	}

	tctx := sess.Transport.Context()
	cmd := page.CaptureScreenshot().WithFormat(page.CaptureScreenshotFormat(format))
	if format == "jpeg" || format == "webp" {
		cmd = cmd.WithQuality(int64(quality))
	}

	if p.Selector != "" || p.Ref != "" {
		selector, err := (targetParams{Selector: p.Selector, Ref: p.Ref}).resolve(sess)
		if err != nil {
			return nil, err
		}
		nodeID, err := resolveNodeID(tctx, selector)
		if err != nil {
			return nil, err
		}
		_, _, bounds, err := centerOf(tctx, nodeID)
		if err != nil {
			return nil, err
		}
		cmd = cmd.WithClip(&page.Viewport{
			X: bounds.X, Y: bounds.Y, Width: bounds.W, Height: bounds.H, Scale: 1,
		})
	} else if p.FullPage {
		cmd = cmd.WithCaptureBeyondViewport(true)
	}

	data, err := cmd.Do(tctx)
	if err != nil {
		return nil, wire.Errorf(wire.CodeProtocolError, err, "CaptureScreenshot failed")
	}

	dir := filepath.Join(sess.Dir, "screenshots")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, wire.Errorf(wire.CodeStorageUnavailable, err, "failed to create screenshots directory")
	}
	name := fmt.Sprintf("%s.%s", uuid.NewString(), format)
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, wire.Errorf(wire.CodeStorageUnavailable, err, "failed to write screenshot")
	}

	sess.Store.Append(wire.EventScreenshot, map[string]string{"path": path, "format": format}, time.Now())
	return screenshotResult{Path: path}, nil
}
