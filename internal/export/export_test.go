package export

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/tomasbasham/devtoolsd/internal/wire"
)

func mustJSON(t *testing.T, v any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}

func TestToPlaywrightEmitsExpectedStatements(t *testing.T) {
	events := []wire.Event{
		{Type: wire.EventNavigate, Data: mustJSON(t, wire.NavigateEvent{URL: "https://example.test/"})},
		{Type: wire.EventClick, Data: mustJSON(t, wire.ClickEvent{CSS: "#submit"})},
		{Type: wire.EventInput, Data: mustJSON(t, map[string]string{"selector": "#email", "value": "a@b.test"})},
		{Type: wire.EventNetwork, Data: mustJSON(t, wire.NetworkEvent{URL: "https://example.test/api"})},
	}

	script, err := ToPlaywright(events)
	if err != nil {
		t.Fatalf("ToPlaywright: %v", err)
	}

	for _, want := range []string{
		"page.goto(\"https://example.test/\")",
		"page.click(\"#submit\")",
		"page.fill(\"#email\", \"a@b.test\")",
	} {
		if !strings.Contains(script, want) {
			t.Errorf("expected script to contain %q, got:\n%s", want, script)
		}
	}
	if strings.Contains(script, "example.test/api") {
		t.Errorf("network events should not be translated, got:\n%s", script)
	}
}

func TestToPlaywrightSkipsEmptySelector(t *testing.T) {
	events := []wire.Event{
		{Type: wire.EventClick, Data: mustJSON(t, wire.ClickEvent{})},
	}
	script, err := ToPlaywright(events)
	if err != nil {
		t.Fatalf("ToPlaywright: %v", err)
	}
	if strings.Contains(script, "page.click") {
		t.Errorf("expected no click statement for empty selector, got:\n%s", script)
	}
}
