// Package export converts a session's recorded event stream into a
// reproducible script. It is pure and deterministic: given the same events
// in the same order, it always produces the same output.
package export

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tomasbasham/devtoolsd/internal/wire"
)

// ToPlaywright walks events in chronological order and emits one
// Playwright page.* statement per interaction event, wrapped in a minimal
// Node.js test scaffold.
func ToPlaywright(events []wire.Event) (string, error) {
	var b strings.Builder
	b.WriteString("const { test, expect } = require('@playwright/test');\n\n")
	b.WriteString("test('recorded session', async ({ page }) => {\n")

	for _, ev := range events {
		line, err := playwrightLine(ev)
		if err != nil {
			return "", fmt.Errorf("export: %w", err)
		}
		if line == "" {
			continue
		}
		b.WriteString("  ")
		b.WriteString(line)
		b.WriteString("\n")
	}

	b.WriteString("});\n")
	return b.String(), nil
}

// playwrightLine renders one event as a Playwright statement, or returns ""
// for event types this converter does not translate (network, console,
// trace, error, etc).
func playwrightLine(ev wire.Event) (string, error) {
	switch ev.Type {
	case wire.EventNavigate:
		var data wire.NavigateEvent
		if err := json.Unmarshal(ev.Data, &data); err != nil {
			return "", err
		}
		return fmt.Sprintf("await page.goto(%s);", quote(data.URL)), nil

	case wire.EventClick:
		var data wire.ClickEvent
		if err := json.Unmarshal(ev.Data, &data); err != nil {
			return "", err
		}
		if data.CSS == "" {
			return "", nil
		}
		return fmt.Sprintf("await page.click(%s);", quote(data.CSS)), nil

	case wire.EventInput:
		var data struct {
			Selector string `json:"selector"`
			Value    string `json:"value"`
		}
		if err := json.Unmarshal(ev.Data, &data); err != nil {
			return "", err
		}
		if data.Selector == "" {
			return "", nil
		}
		return fmt.Sprintf("await page.fill(%s, %s);", quote(data.Selector), quote(data.Value)), nil

	case wire.EventSelect:
		var data struct {
			Selector string `json:"selector"`
		}
		if err := json.Unmarshal(ev.Data, &data); err != nil {
			return "", err
		}
		if data.Selector == "" {
			return "", nil
		}
		return fmt.Sprintf("await page.selectOption(%s, {});", quote(data.Selector)), nil

	case wire.EventKeypress:
		var data struct {
			Selector string `json:"selector"`
			Key      string `json:"key"`
			Text     string `json:"text"`
		}
		if err := json.Unmarshal(ev.Data, &data); err != nil {
			return "", err
		}
		if data.Key != "" {
			return fmt.Sprintf("await page.keyboard.press(%s);", quote(data.Key)), nil
		}
		if data.Text != "" {
			return fmt.Sprintf("await page.keyboard.type(%s);", quote(data.Text)), nil
		}
		return "", nil

	default:
		return "", nil
	}
}

// quote renders s as a double-quoted JS string literal.
func quote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
