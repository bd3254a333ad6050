package handlers

import (
	"context"
	"encoding/json"

	"github.com/chromedp/cdproto/accessibility"

	"github.com/tomasbasham/devtoolsd/internal/session"
	"github.com/tomasbasham/devtoolsd/internal/wire"
)

type a11yParams struct {
	Depth        int  `json:"depth"`
	Interactable bool `json:"interactable"`
}

// a11yNode is the rendered accessibility tree shape returned to the client:
// a pruned, depth-limited copy of CDP's AX node tree.
type a11yNode struct {
	Role     string     `json:"role"`
	Name     string     `json:"name,omitempty"`
	Children []a11yNode `json:"children,omitempty"`
}

var interactableRoles = map[string]bool{
	"button": true, "link": true, "textbox": true, "checkbox": true,
	"radio": true, "combobox": true, "menuitem": true, "tab": true,
	"switch": true, "slider": true, "searchbox": true, "listbox": true,
	"option": true, "spinbutton": true,
}

// handleA11y implements spec section 4.8's a11y operation: fetch the page's
// full accessibility tree via CDP and render it depth-limited, optionally
// pruned to interactable nodes.
func handleA11y(ctx context.Context, sess *session.Session, raw json.RawMessage) (any, error) {
	var p a11yParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, wire.Errorf(wire.CodeInvalidParams, err, "invalid a11y params")
	}
	depth := p.Depth
	if depth <= 0 {
		depth = 10
	}

	tctx := sess.Transport.Context()
	nodes, err := accessibility.GetFullAXTree().Do(tctx)
	if err != nil {
		return nil, wire.Errorf(wire.CodeProtocolError, err, "Accessibility.getFullAXTree failed")
	}
	if len(nodes) == 0 {
		return map[string]any{"tree": nil}, nil
	}

	byID := make(map[accessibility.AXNodeID]*accessibility.AXNode, len(nodes))
	var root *accessibility.AXNode
	for _, n := range nodes {
		byID[n.NodeID] = n
		if n.ParentID == "" {
			root = n
		}
	}
	if root == nil {
		root = nodes[0]
	}

	tree := renderAXNode(root, byID, depth, p.Interactable)
	return map[string]any{"tree": tree}, nil
}

func renderAXNode(n *accessibility.AXNode, byID map[accessibility.AXNodeID]*accessibility.AXNode, depth int, interactableOnly bool) *a11yNode {
	if n == nil || n.Ignored {
		return nil
	}

	role := axValueString(n.Role)
	if interactableOnly && depth <= 0 {
		// leaf cutoff still applies; role filtering happens per-node below
	}

	var children []a11yNode
	if depth > 0 {
		for _, childID := range n.ChildIds {
			child := byID[childID]
			rendered := renderAXNode(child, byID, depth-1, interactableOnly)
			if rendered == nil {
				continue
			}
			children = append(children, *rendered)
		}
	}

	if interactableOnly && !interactableRoles[role] && len(children) == 0 {
		return nil
	}

	return &a11yNode{
		Role:     role,
		Name:     axValueString(n.Name),
		Children: children,
	}
}

func axValueString(v *accessibility.AXValue) string {
	if v == nil || len(v.Value) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(v.Value, &s); err == nil {
		return s
	}
	return string(v.Value)
}
