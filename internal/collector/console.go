package collector

import (
	cdplog "github.com/chromedp/cdproto/log"
	"github.com/chromedp/cdproto/runtime"

	"github.com/tomasbasham/devtoolsd/internal/store"
	"github.com/tomasbasham/devtoolsd/internal/wire"
)

// ConsoleCollector turns Runtime.consoleAPICalled and Log.entryAdded events
// into wire.ConsoleEvent records.
type ConsoleCollector struct {
	wr store.Store
}

func newConsoleCollector(wr store.Store) *ConsoleCollector {
	return &ConsoleCollector{wr: wr}
}

func (c *ConsoleCollector) onConsoleAPI(ev *runtime.EventConsoleAPICalled) {
	text := ""
	for i, arg := range ev.Args {
		if i > 0 {
			text += " "
		}
		if arg.Value != nil {
			text += string(arg.Value)
		} else if arg.Description != "" {
			text += arg.Description
		}
	}

	eventType := wire.EventConsole
	if ev.Type == runtime.APITypeError {
		eventType = wire.EventError
	}

	c.wr.Append(eventType, wire.ConsoleEvent{
		Level: string(ev.Type),
		Text:  text,
	}, ev.Timestamp.Time())
}

func (c *ConsoleCollector) onLogEntry(ev *cdplog.EventEntryAdded) {
	eventType := wire.EventConsole
	if ev.Entry.Level == cdplog.LevelError {
		eventType = wire.EventError
	}

	c.wr.Append(eventType, wire.ConsoleEvent{
		Level:  string(ev.Entry.Level),
		Text:   ev.Entry.Text,
		Source: string(ev.Entry.Source),
		URL:    ev.Entry.URL,
	}, ev.Entry.Timestamp.Time())
}
