package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/chromedp/cdproto/input"

	"github.com/tomasbasham/devtoolsd/internal/wire"
)

// namedKey describes one non-printable key's CDP DispatchKeyEvent fields.
type namedKey struct {
	key string
	vk  int64
}

// namedKeys covers spec section 4.8's press(key) examples: Enter, Tab,
// Escape, and the common navigation/editing keys an automation client
// reasonably expects, keyed by their DOM KeyboardEvent.key names.
var namedKeys = map[string]namedKey{
	"Enter":      {"Enter", 13},
	"Tab":        {"Tab", 9},
	"Escape":     {"Escape", 27},
	"Backspace":  {"Backspace", 8},
	"Delete":     {"Delete", 46},
	"ArrowUp":    {"ArrowUp", 38},
	"ArrowDown":  {"ArrowDown", 40},
	"ArrowLeft":  {"ArrowLeft", 37},
	"ArrowRight": {"ArrowRight", 39},
	"Home":       {"Home", 36},
	"End":        {"End", 35},
	"PageUp":     {"PageUp", 33},
	"PageDown":   {"PageDown", 34},
	"Space":      {"Space", 32},
}

// dispatchNamedKey sends a keyDown/keyUp pair for a named key, optionally
// combined with modifiers joined by "+" (e.g. "Control+a"), per spec
// section 4.8's press(key) contract.
func dispatchNamedKey(ctx context.Context, keySpec string) error {
	parts := strings.Split(keySpec, "+")
	keyName := parts[len(parts)-1]

	var mods input.Modifier
	for _, m := range parts[:len(parts)-1] {
		switch strings.ToLower(m) {
		case "control", "ctrl":
			mods |= input.ModifierCtrl
		case "alt":
			mods |= input.ModifierAlt
		case "shift":
			mods |= input.ModifierShift
		case "meta", "cmd", "command":
			mods |= input.ModifierCommand
		}
	}

	if nk, ok := namedKeys[keyName]; ok {
		for _, typ := range []input.KeyType{input.KeyDown, input.KeyUp} {
			err := input.DispatchKeyEvent(typ).
				WithModifiers(mods).
				WithKey(nk.key).
				WithWindowsVirtualKeyCode(nk.vk).
				WithNativeVirtualKeyCode(nk.vk).
				Do(ctx)
			if err != nil {
				return wire.Errorf(wire.CodeProtocolError, err, "DispatchKeyEvent(%s) failed", keyName)
			}
		}
		return nil
	}

	if len(keyName) == 1 {
		for _, typ := range []input.KeyType{input.KeyDown, input.KeyUp} {
			err := input.DispatchKeyEvent(typ).
				WithModifiers(mods).
				WithKey(keyName).
				WithText(keyName).
				Do(ctx)
			if err != nil {
				return wire.Errorf(wire.CodeProtocolError, err, "DispatchKeyEvent(%s) failed", keyName)
			}
		}
		return nil
	}

	return wire.Errorf(wire.CodeInvalidParams, nil, "unrecognised key %q", keySpec)
}

// selectOption chooses an option from a <select> identified by selector,
// matching by value, label, or zero-based index (in that precedence,
// mirroring how most of this codebase's lineage resolves overlapping
// optional filters). Returns false when nothing matches.
func selectOption(ctx context.Context, selector, label, value string, index *int) (bool, error) {
	indexJS := "null"
	if index != nil {
		indexJS = fmt.Sprintf("%d", *index)
	}

	expr := fmt.Sprintf(`(function(){
		var el = document.querySelector(%s);
		if (!el || el.tagName !== 'SELECT') return false;
		var label = %s, value = %s, index = %s;
		var opts = el.options;
		var match = -1;
		if (value) {
			for (var i = 0; i < opts.length; i++) { if (opts[i].value === value) { match = i; break; } }
		} else if (label) {
			for (var i = 0; i < opts.length; i++) { if (opts[i].text === label) { match = i; break; } }
		} else if (index !== null) {
			match = index;
		}
		if (match < 0 || match >= opts.length) return false;
		el.selectedIndex = match;
		el.dispatchEvent(new Event('change', {bubbles: true}));
		return true;
	})()`, jsString(selector), jsString(label), jsString(value), indexJS)

	var ok bool
	if err := evaluateJSON(ctx, expr, &ok); err != nil {
		return false, err
	}
	return ok, nil
}
