package collector

import (
	"time"

	"github.com/tomasbasham/devtoolsd/internal/store"
	"github.com/tomasbasham/devtoolsd/internal/wire"
)

// ExtensionCollector accepts events pushed by the browser extension over
// the gateway's HTTP/WS routes. Unlike the other collectors it never
// subscribes to the transport; the gateway calls Ingest directly with an
// already-decoded event type and payload.
type ExtensionCollector struct {
	wr store.Store
}

func newExtensionCollector(wr store.Store) *ExtensionCollector {
	return &ExtensionCollector{wr: wr}
}

// Ingest appends one extension-originated event (click, input, navigate,
// dialog, etc.) to the session's event log.
func (c *ExtensionCollector) Ingest(eventType wire.EventType, payload any) (int64, error) {
	return c.wr.Append(eventType, payload, time.Now())
}
