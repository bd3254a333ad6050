package handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/runtime"

	"github.com/tomasbasham/devtoolsd/internal/wire"
)

// resolveNodeID finds selector's DOM node in the document currently loaded
// in the page transport is bound to. Returns ELEMENT_NOT_FOUND if the
// selector matches nothing.
func resolveNodeID(ctx context.Context, selector string) (dom.NodeID, error) {
	doc, err := dom.GetDocument().Do(ctx)
	if err != nil {
		return 0, wire.Errorf(wire.CodeProtocolError, err, "failed to fetch document")
	}
	nodeID, err := dom.QuerySelector(doc.NodeID, selector).Do(ctx)
	if err != nil {
		return 0, wire.Errorf(wire.CodeProtocolError, err, "QuerySelector failed for %q", selector)
	}
	if nodeID == 0 {
		return 0, wire.Errorf(wire.CodeElementNotFound, nil, "no element matches %q", selector)
	}
	return nodeID, nil
}

// scrollIntoViewIfNeeded brings the node into the viewport, matching spec
// section 4.8's "ensure in-viewport via DOM scrollIntoView" requirement.
func scrollIntoViewIfNeeded(ctx context.Context, nodeID dom.NodeID) error {
	if err := dom.ScrollIntoViewIfNeeded().WithNodeID(nodeID).Do(ctx); err != nil {
		return wire.Errorf(wire.CodeProtocolError, err, "scrollIntoViewIfNeeded failed")
	}
	return nil
}

// centerOf returns the center point of nodeID's content box, in viewport
// coordinates, and its full bounds as [x, y, w, h].
func centerOf(ctx context.Context, nodeID dom.NodeID) (x, y float64, bounds wire.Rect, err error) {
	box, err := dom.GetBoxModel().WithNodeID(nodeID).Do(ctx)
	if err != nil {
		return 0, 0, wire.Rect{}, wire.Errorf(wire.CodeProtocolError, err, "GetBoxModel failed")
	}
	quad := box.Content
	if len(quad) < 8 {
		return 0, 0, wire.Rect{}, wire.Errorf(wire.CodeElementNotVisible, nil, "element has no box model")
	}

	minX, maxX, minY, maxY := quad[0], quad[0], quad[1], quad[1]
	for i := 0; i < 8; i += 2 {
		if quad[i] < minX {
			minX = quad[i]
		}
		if quad[i] > maxX {
			maxX = quad[i]
		}
		if quad[i+1] < minY {
			minY = quad[i+1]
		}
		if quad[i+1] > maxY {
			maxY = quad[i+1]
		}
	}

	w, h := maxX-minX, maxY-minY
	if w <= 0 || h <= 0 {
		return 0, 0, wire.Rect{}, wire.Errorf(wire.CodeElementNotVisible, nil, "element has a zero bounding box")
	}

	return minX + w/2, minY + h/2, wire.Rect{X: minX, Y: minY, W: w, H: h}, nil
}

// dispatchClick sends a left-button mousePressed/mouseReleased pair at
// (x, y), matching spec section 4.8's "dispatch CDP Input.dispatch* events".
func dispatchClick(ctx context.Context, x, y float64) error {
	for _, typ := range []input.MouseType{input.MousePressed, input.MouseReleased} {
		err := input.DispatchMouseEvent(typ, x, y).
			WithButton(input.Left).
			WithClickCount(1).
			Do(ctx)
		if err != nil {
			return wire.Errorf(wire.CodeProtocolError, err, "DispatchMouseEvent(%s) failed", typ)
		}
	}
	return nil
}

func dispatchMouseMove(ctx context.Context, x, y float64) error {
	if err := input.DispatchMouseEvent(input.MouseMoved, x, y).Do(ctx); err != nil {
		return wire.Errorf(wire.CodeProtocolError, err, "DispatchMouseEvent(mouseMoved) failed")
	}
	return nil
}

func dispatchScroll(ctx context.Context, x, y, deltaX, deltaY float64) error {
	if err := input.DispatchMouseEvent(input.MouseWheel, x, y).
		WithDeltaX(deltaX).
		WithDeltaY(deltaY).
		Do(ctx); err != nil {
		return wire.Errorf(wire.CodeProtocolError, err, "DispatchMouseEvent(mouseWheel) failed")
	}
	return nil
}

// evaluateJSON runs expr and unmarshals its JSON-serialised return value
// into out. Used for the small in-page scripts (value get/set, enumeration)
// that are far simpler to express as JS than as a sequence of CDP DOM calls.
func evaluateJSON(ctx context.Context, expr string, out any) error {
	res, exc, err := runtime.Evaluate(expr).WithReturnByValue(true).Do(ctx)
	if err != nil {
		return wire.Errorf(wire.CodeProtocolError, err, "Runtime.evaluate failed")
	}
	if exc != nil {
		return wire.Errorf(wire.CodeProtocolError, nil, "in-page script threw: %s", exc.Text)
	}
	if out == nil || res == nil || len(res.Value) == 0 {
		return nil
	}
	return json.Unmarshal(res.Value, out)
}

// jsString quotes s for interpolation into a JS expression.
func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func setElementValue(ctx context.Context, selector, value string) error {
	expr := fmt.Sprintf(`(function(){
		var el = document.querySelector(%s);
		if (!el) return false;
		var proto = Object.getPrototypeOf(el);
		var setter = Object.getOwnPropertyDescriptor(proto, 'value');
		if (setter && setter.set) { setter.set.call(el, %s); } else { el.value = %s; }
		el.dispatchEvent(new Event('input', {bubbles: true}));
		el.dispatchEvent(new Event('change', {bubbles: true}));
		return true;
	})()`, jsString(selector), jsString(value), jsString(value))

	var ok bool
	if err := evaluateJSON(ctx, expr, &ok); err != nil {
		return err
	}
	if !ok {
		return wire.Errorf(wire.CodeElementNotFound, nil, "no element matches %q", selector)
	}
	return nil
}
