package handlers

import (
	"context"
	"encoding/json"
	"time"

	"github.com/chromedp/cdproto/page"

	"github.com/tomasbasham/devtoolsd/internal/session"
	"github.com/tomasbasham/devtoolsd/internal/wire"
)

type navigateParams struct {
	URL     string `json:"url"`
	WaitFor string `json:"wait_for"` // "load", "domcontentloaded", "network-idle", or a selector
}

type navigateResult struct {
	FinalURL string `json:"final_url"`
	Status   int    `json:"status"`
}

// handleNavigate implements spec section 4.8's navigate operation: set the
// active page URL, await the requested readiness condition, invalidate the
// ref registry (the page's element set is no longer valid), and report the
// final URL once redirects settle.
func handleNavigate(ctx context.Context, sess *session.Session, raw json.RawMessage) (any, error) {
	var p navigateParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, wire.Errorf(wire.CodeInvalidParams, err, "invalid navigate params")
	}
	if p.URL == "" {
		return nil, wire.Errorf(wire.CodeInvalidParams, nil, "url is required")
	}

	return busyOp(ctx, sess, func() (any, error) {
		tctx := sess.Transport.Context()

		frameID, _, errText, err := page.Navigate(p.URL).Do(tctx)
		if err != nil {
			return nil, wire.Errorf(wire.CodeProtocolError, err, "navigation failed")
		}
		if errText != "" {
			return nil, wire.Errorf(wire.CodeProtocolError, nil, "navigation failed: %s", errText)
		}
		_ = frameID

		if err := awaitReady(ctx, sess, p.WaitFor); err != nil {
			return nil, err
		}

		sess.Refs.Invalidate()

		var finalURL string
		if err := evaluateJSON(ctx, "location.href", &finalURL); err != nil {
			finalURL = p.URL
		}

		sess.Store.Append(wire.EventNavigate, wire.NavigateEvent{
			URL:  finalURL,
			Type: wire.NavLoad,
			TS:   time.Now().UnixMilli(),
		}, time.Now())

		return navigateResult{FinalURL: finalURL, Status: 200}, nil
	})
}

// awaitReady blocks until the requested readiness condition holds or ctx's
// deadline elapses. "load"/"domcontentloaded" poll document.readyState;
// anything else is treated as a selector to wait for; empty defaults to
// "load". Network-idle (500ms) is approximated by a short settle delay
// after readyState reaches complete, since the daemon does not track
// per-frame in-flight request counts outside the network collector.
func awaitReady(ctx context.Context, sess *session.Session, waitFor string) error {
	switch waitFor {
	case "", "load":
		return pollUntil(ctx, func() (bool, error) {
			var state string
			if err := evaluateJSON(ctx, "document.readyState", &state); err != nil {
				return false, err
			}
			return state == "complete", nil
		})
	case "domcontentloaded":
		return pollUntil(ctx, func() (bool, error) {
			var state string
			if err := evaluateJSON(ctx, "document.readyState", &state); err != nil {
				return false, err
			}
			return state == "interactive" || state == "complete", nil
		})
	case "network-idle":
		if err := pollUntil(ctx, func() (bool, error) {
			var state string
			if err := evaluateJSON(ctx, "document.readyState", &state); err != nil {
				return false, err
			}
			return state == "complete", nil
		}); err != nil {
			return err
		}
		select {
		case <-time.After(500 * time.Millisecond):
		case <-ctx.Done():
			return ctx.Err()
		}
		return nil
	default:
		// Treat as a CSS selector to wait for.
		return pollUntil(ctx, func() (bool, error) {
			var found bool
			if err := evaluateJSON(ctx, "document.querySelector("+jsString(waitFor)+") !== null", &found); err != nil {
				return false, err
			}
			return found, nil
		})
	}
}

func pollUntil(ctx context.Context, cond func() (bool, error)) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		ok, err := cond()
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return wire.Errorf(wire.CodeTimeout, nil, "timed out waiting for page readiness")
		}
	}
}
