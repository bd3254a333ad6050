package handlers

import (
	"context"
	"encoding/json"

	"github.com/tomasbasham/devtoolsd/internal/session"
	"github.com/tomasbasham/devtoolsd/internal/wire"
)

type describeParams struct {
	Filters       []string `json:"filters"`
	Limit         int      `json:"limit"`
	WithBounds    bool     `json:"with_bounds"`
	WithSelectors bool     `json:"with_selectors"`
}

type describeEntry struct {
	Ref      string     `json:"ref"`
	Role     string     `json:"role"`
	Label    string      `json:"label,omitempty"`
	Text     string      `json:"text,omitempty"`
	Selector string      `json:"selector,omitempty"`
	Bounds   *wire.Rect `json:"bounds,omitempty"`
}

// rawDescribeElement is what the in-page enumeration script returns for one
// element, before ref ids are assigned.
type rawDescribeElement struct {
	Category string  `json:"category"`
	Role     string  `json:"role"`
	Label    string  `json:"label"`
	Text     string  `json:"text"`
	Selector string  `json:"selector"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	W        float64 `json:"w"`
	H        float64 `json:"h"`
}

// describeScript enumerates candidate elements by category, building a
// unique CSS selector for each: the element's id when it has one, otherwise
// a positional :nth-of-type path anchored at the nearest ancestor with an id.
const describeScript = `(function(){
	function uniqueSelector(el) {
		if (el.id) return '#' + CSS.escape(el.id);
		var path = [];
		var node = el;
		while (node && node.nodeType === 1 && path.length < 8) {
			var selector = node.tagName.toLowerCase();
			if (node.id) { selector = '#' + CSS.escape(node.id); path.unshift(selector); break; }
			var sibling = node, index = 1;
			while ((sibling = sibling.previousElementSibling)) {
				if (sibling.tagName === node.tagName) index++;
			}
			selector += ':nth-of-type(' + index + ')';
			path.unshift(selector);
			node = node.parentElement;
		}
		return path.join(' > ');
	}

	function label(el) {
		return (el.getAttribute('aria-label') || el.getAttribute('alt') ||
			el.getAttribute('title') || el.innerText || el.value || '').trim().slice(0, 120);
	}

	function role(el) {
		return el.getAttribute('role') || el.tagName.toLowerCase();
	}

	var groups = {
		interactive: 'button, [role="button"], a[href], input[type="button"], input[type="submit"], input[type="checkbox"], input[type="radio"], summary',
		form:        'input:not([type="button"]):not([type="submit"]):not([type="checkbox"]):not([type="radio"]), textarea, select',
		navigation:  'nav a, a[href]',
		media:       'img, video, audio, canvas, svg',
		text:        'h1, h2, h3, h4, h5, h6, p, label, span',
		container:   'main, section, article, table, form, [role="dialog"], [role="region"]',
	};

	var seen = new Set();
	var out = [];
	Object.keys(groups).forEach(function(category) {
		document.querySelectorAll(groups[category]).forEach(function(el) {
			if (seen.has(el)) return;
			var r = el.getBoundingClientRect();
			if (r.width <= 0 || r.height <= 0) return;
			seen.add(el);
			out.push({
				category: category,
				role: role(el),
				label: label(el),
				text: (el.innerText || '').trim().slice(0, 200),
				selector: uniqueSelector(el),
				x: r.x, y: r.y, w: r.width, h: r.height,
			});
		});
	});
	return out;
})()`

// handleDescribe implements spec section 4.8's describe operation: enumerate
// the page's interactable/form/navigation/media/text/container elements,
// assign each a stable ref id via the session's ref registry, and return a
// truncated summary.
func handleDescribe(ctx context.Context, sess *session.Session, raw json.RawMessage) (any, error) {
	var p describeParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, wire.Errorf(wire.CodeInvalidParams, err, "invalid describe params")
	}
	limit := p.Limit
	if limit <= 0 {
		limit = 100
	}

	var filterSet map[string]bool
	if len(p.Filters) > 0 {
		filterSet = make(map[string]bool, len(p.Filters))
		for _, f := range p.Filters {
			filterSet[f] = true
		}
	}

	tctx := sess.Transport.Context()
	var raws []rawDescribeElement
	if err := evaluateJSON(tctx, describeScript, &raws); err != nil {
		return nil, err
	}

	results := make([]describeEntry, 0, limit)
	for _, el := range raws {
		if el.Selector == "" {
			continue // empty selector from enumeration is never published
		}
		if filterSet != nil && !filterSet[el.Category] {
			continue
		}
		if len(results) >= limit {
			break
		}

		category := wire.RefCategory(el.Category)
		bounds := wire.Rect{X: el.X, Y: el.Y, W: el.W, H: el.H}
		refID := sess.Refs.Publish(category, wire.RefEntry{
			Selector: el.Selector,
			Category: category,
			Bounds:   &bounds,
			Label:    el.Label,
			Role:     el.Role,
			Text:     el.Text,
		})

		entry := describeEntry{Ref: refID, Role: el.Role, Label: el.Label, Text: el.Text}
		if p.WithSelectors {
			entry.Selector = el.Selector
		}
		if p.WithBounds {
			entry.Bounds = &bounds
		}
		results = append(results, entry)
	}

	return map[string]any{"elements": results}, nil
}
