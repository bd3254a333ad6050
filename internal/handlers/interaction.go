package handlers

import (
	"context"
	"encoding/json"
	"time"

	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/input"

	"github.com/tomasbasham/devtoolsd/internal/session"
	"github.com/tomasbasham/devtoolsd/internal/wire"
)

type clickParams struct {
	targetParams
}

func handleClick(ctx context.Context, sess *session.Session, raw json.RawMessage) (any, error) {
	var p clickParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, wire.Errorf(wire.CodeInvalidParams, err, "invalid click params")
	}
	selector, err := p.resolve(sess)
	if err != nil {
		return nil, err
	}

	tctx := sess.Transport.Context()
	nodeID, err := resolveNodeID(tctx, selector)
	if err != nil {
		return nil, err
	}
	if err := scrollIntoViewIfNeeded(tctx, nodeID); err != nil {
		return nil, err
	}
	x, y, bounds, err := centerOf(tctx, nodeID)
	if err != nil {
		return nil, err
	}
	if err := dispatchClick(tctx, x, y); err != nil {
		return nil, err
	}

	sess.Store.Append(wire.EventClick, wire.ClickEvent{
		CSS:  selector,
		Rect: [4]float64{bounds.X, bounds.Y, bounds.W, bounds.H},
		TS:   time.Now().UnixMilli(),
	}, time.Now())

	return map[string]any{"x": x, "y": y}, nil
}

type hoverParams struct {
	targetParams
}

func handleHover(ctx context.Context, sess *session.Session, raw json.RawMessage) (any, error) {
	var p hoverParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, wire.Errorf(wire.CodeInvalidParams, err, "invalid hover params")
	}
	selector, err := p.resolve(sess)
	if err != nil {
		return nil, err
	}

	tctx := sess.Transport.Context()
	nodeID, err := resolveNodeID(tctx, selector)
	if err != nil {
		return nil, err
	}
	if err := scrollIntoViewIfNeeded(tctx, nodeID); err != nil {
		return nil, err
	}
	x, y, _, err := centerOf(tctx, nodeID)
	if err != nil {
		return nil, err
	}
	if err := dispatchMouseMove(tctx, x, y); err != nil {
		return nil, err
	}

	sess.Store.Append(wire.EventHover, wire.ClickEvent{CSS: selector, TS: time.Now().UnixMilli()}, time.Now())
	return map[string]any{"x": x, "y": y}, nil
}

type scrollParams struct {
	targetParams
	DeltaX float64 `json:"delta_x"`
	DeltaY float64 `json:"delta_y"`
}

func handleScroll(ctx context.Context, sess *session.Session, raw json.RawMessage) (any, error) {
	var p scrollParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, wire.Errorf(wire.CodeInvalidParams, err, "invalid scroll params")
	}

	tctx := sess.Transport.Context()
	var x, y float64 = 0, 0

	if p.Selector != "" || p.Ref != "" {
		selector, err := p.resolve(sess)
		if err != nil {
			return nil, err
		}
		nodeID, err := resolveNodeID(tctx, selector)
		if err != nil {
			return nil, err
		}
		x, y, _, err = centerOf(tctx, nodeID)
		if err != nil {
			return nil, err
		}
	}

	if err := dispatchScroll(tctx, x, y, p.DeltaX, p.DeltaY); err != nil {
		return nil, err
	}

	sess.Store.Append(wire.EventScroll, map[string]float64{"delta_x": p.DeltaX, "delta_y": p.DeltaY}, time.Now())
	return map[string]string{"status": "ok"}, nil
}

type fillParams struct {
	targetParams
	Value string `json:"value"`
}

func handleFill(ctx context.Context, sess *session.Session, raw json.RawMessage) (any, error) {
	var p fillParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, wire.Errorf(wire.CodeInvalidParams, err, "invalid fill params")
	}
	selector, err := p.resolve(sess)
	if err != nil {
		return nil, err
	}

	tctx := sess.Transport.Context()
	if err := setElementValue(tctx, selector, p.Value); err != nil {
		return nil, err
	}

	sess.Store.Append(wire.EventInput, map[string]string{"selector": selector, "value": p.Value}, time.Now())
	return map[string]string{"status": "ok"}, nil
}

type typeParams struct {
	targetParams
	Text     string `json:"text"`
	DelayMS  int    `json:"delay_ms"`
}

func handleType(ctx context.Context, sess *session.Session, raw json.RawMessage) (any, error) {
	var p typeParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, wire.Errorf(wire.CodeInvalidParams, err, "invalid type params")
	}
	selector, err := p.resolve(sess)
	if err != nil {
		return nil, err
	}

	tctx := sess.Transport.Context()
	nodeID, err := resolveNodeID(tctx, selector)
	if err != nil {
		return nil, err
	}
	if err := scrollIntoViewIfNeeded(tctx, nodeID); err != nil {
		return nil, err
	}
	if err := dom.Focus().WithNodeID(nodeID).Do(tctx); err != nil {
		return nil, wire.Errorf(wire.CodeProtocolError, err, "Focus failed")
	}

	for _, r := range p.Text {
		if err := dispatchChar(tctx, r); err != nil {
			return nil, err
		}
		if p.DelayMS > 0 {
			select {
			case <-time.After(time.Duration(p.DelayMS) * time.Millisecond):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}

	sess.Store.Append(wire.EventKeypress, map[string]string{"selector": selector, "text": p.Text}, time.Now())
	return map[string]string{"status": "ok"}, nil
}

type selectParams struct {
	targetParams
	Label string `json:"label"`
	Value string `json:"value"`
	Index *int   `json:"index"`
}

func handleSelect(ctx context.Context, sess *session.Session, raw json.RawMessage) (any, error) {
	var p selectParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, wire.Errorf(wire.CodeInvalidParams, err, "invalid select params")
	}
	selector, err := p.resolve(sess)
	if err != nil {
		return nil, err
	}

	tctx := sess.Transport.Context()
	ok, err := selectOption(tctx, selector, p.Label, p.Value, p.Index)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, wire.Errorf(wire.CodeOptionNotFound, nil, "no matching option in %q", selector)
	}

	sess.Store.Append(wire.EventSelect, map[string]string{"selector": selector}, time.Now())
	return map[string]string{"status": "ok"}, nil
}

type pressParams struct {
	Key string `json:"key"`
}

func handlePress(ctx context.Context, sess *session.Session, raw json.RawMessage) (any, error) {
	var p pressParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, wire.Errorf(wire.CodeInvalidParams, err, "invalid press params")
	}
	if p.Key == "" {
		return nil, wire.Errorf(wire.CodeInvalidParams, nil, "key is required")
	}

	tctx := sess.Transport.Context()
	if err := dispatchNamedKey(tctx, p.Key); err != nil {
		return nil, err
	}

	sess.Store.Append(wire.EventKeypress, map[string]string{"key": p.Key}, time.Now())
	return map[string]string{"status": "ok"}, nil
}

func dispatchChar(ctx context.Context, r rune) error {
	s := string(r)
	if err := input.DispatchKeyEvent(input.KeyChar).WithText(s).Do(ctx); err != nil {
		return wire.Errorf(wire.CodeProtocolError, err, "DispatchKeyEvent(char) failed")
	}
	return nil
}
