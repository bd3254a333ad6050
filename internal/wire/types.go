// Package wire defines the data types shared across the daemon's transports:
// the local RPC socket, the extension HTTP/WebSocket gateway, and the event
// store. Nothing in this package touches I/O.
package wire

import "time"

// SessionKind distinguishes a throwaway session from one bound to a
// persistent OS profile directory.
type SessionKind string

const (
	SessionEphemeral   SessionKind = "ephemeral"
	SessionUserProfile SessionKind = "user-profile"
)

// SessionStatus is the session's position in its lifecycle state machine.
type SessionStatus string

const (
	SessionLaunching SessionStatus = "launching"
	SessionActive    SessionStatus = "active"
	SessionBusy      SessionStatus = "busy"
	SessionDetached  SessionStatus = "detached"
	SessionDestroyed SessionStatus = "destroyed"
)

// EventType enumerates the kinds of records the event store accepts.
type EventType string

const (
	EventClick      EventType = "click"
	EventInput      EventType = "input"
	EventSelect     EventType = "select"
	EventHover      EventType = "hover"
	EventScroll     EventType = "scroll"
	EventKeypress   EventType = "keypress"
	EventScreenshot EventType = "screenshot"
	EventSnapshot   EventType = "snapshot"
	EventDialog     EventType = "dialog"
	EventNavigate   EventType = "navigate"
	EventNetwork    EventType = "network"
	EventConsole    EventType = "console"
	EventError      EventType = "error"
	EventTrace      EventType = "trace"
)

// Event is a single append-only record in a session's event log.
type Event struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id"`
	Type      EventType `json:"event_type"`
	Data      []byte    `json:"data"`
	TimestampMS int64   `json:"timestamp_ms"`
}

// Filter narrows a store query. A zero-value Filter matches every event.
type Filter struct {
	Types      []EventType
	Since      time.Time
	Until      time.Time
	Domain     string // network events only
	Status     int    // network events only, 0 = any
	Level      string // console events only
	Limit      int
	Offset     int
}

// RecordingStatus is the lifecycle state of a screen recording.
type RecordingStatus string

const (
	RecordingActive   RecordingStatus = "active"
	RecordingComplete RecordingStatus = "complete"
)

// Recording is the metadata record for a frame-capture session.
type Recording struct {
	RecordingID string          `json:"recording_id"`
	SessionID   string          `json:"session_id"`
	FPS         int             `json:"fps"`
	Quality     int             `json:"quality"`
	DPR         float64         `json:"dpr"`
	StartTS     time.Time       `json:"start_ts"`
	EndTS       *time.Time      `json:"end_ts,omitempty"`
	FrameCount  int             `json:"frame_count"`
	Status      RecordingStatus `json:"status"`
}

// TraceStatus is the lifecycle state of a CDP trace.
type TraceStatus string

const (
	TraceActive   TraceStatus = "active"
	TraceComplete TraceStatus = "complete"
)

// Trace is the metadata record for a performance trace.
type Trace struct {
	TraceID    string      `json:"trace_id"`
	SessionID  string      `json:"session_id"`
	StartTS    time.Time   `json:"start_ts"`
	EndTS      *time.Time  `json:"end_ts,omitempty"`
	EventCount int         `json:"event_count"`
	Status     TraceStatus `json:"status"`
	Path       string      `json:"path"`
}

// RefCategory groups a ref entry for prefix assignment (i, f, n, m, t, c).
type RefCategory string

const (
	CategoryInteractive RefCategory = "interactive"
	CategoryForm        RefCategory = "form"
	CategoryNavigation  RefCategory = "navigation"
	CategoryMedia       RefCategory = "media"
	CategoryText        RefCategory = "text"
	CategoryContainer   RefCategory = "container"
)

// CategoryPrefix maps a category to its ref-id letter prefix.
var CategoryPrefix = map[RefCategory]string{
	CategoryInteractive: "i",
	CategoryForm:        "f",
	CategoryNavigation:  "n",
	CategoryMedia:       "m",
	CategoryText:        "t",
	CategoryContainer:   "c",
}

// PrefixCategory is the inverse of CategoryPrefix.
var PrefixCategory = map[string]RefCategory{
	"i": CategoryInteractive,
	"f": CategoryForm,
	"n": CategoryNavigation,
	"m": CategoryMedia,
	"t": CategoryText,
	"c": CategoryContainer,
}

// RefEntry is one resolvable element handle within a session's current page
// generation.
type RefEntry struct {
	RefID          string      `json:"ref"`
	SessionID      string      `json:"-"`
	PageGeneration uint64      `json:"-"`
	Selector       string      `json:"selector,omitempty"`
	Category       RefCategory `json:"-"`
	Bounds         *Rect       `json:"bounds,omitempty"`
	Label          string      `json:"label,omitempty"`
	Role           string      `json:"role,omitempty"`
	Text           string      `json:"text,omitempty"`
}

// Rect is a pixel-space bounding box, [x, y, w, h].
type Rect struct {
	X, Y, W, H float64
}

// ClickEvent is the wire payload captured for a user click, either observed
// by a collector or synthesised by the click handler.
type ClickEvent struct {
	AriaRole string    `json:"aria_role,omitempty"`
	AriaName string    `json:"aria_name,omitempty"`
	CSS      string    `json:"css"`
	XPath    string    `json:"xpath,omitempty"`
	Rect     [4]float64 `json:"rect"`
	URL      string    `json:"url"`
	TS       int64     `json:"ts"`
}

// NavigateType distinguishes how a navigation was triggered.
type NavigateType string

const (
	NavLoad          NavigateType = "load"
	NavPushState     NavigateType = "pushState"
	NavPopState      NavigateType = "popState"
	NavReplaceState  NavigateType = "replaceState"
	NavPageLoad      NavigateType = "page_load"
)

// NavigateEvent is the wire payload for a page navigation.
type NavigateEvent struct {
	URL  string       `json:"url"`
	From string       `json:"from,omitempty"`
	Type NavigateType `json:"type"`
	TS   int64        `json:"ts"`
}

// NetworkTiming breaks down a request's lifecycle, all durations in
// milliseconds.
type NetworkTiming struct {
	Start   float64 `json:"start"`
	DNS     float64 `json:"dns"`
	Connect float64 `json:"connect"`
	TTFB    float64 `json:"ttfb"`
	Total   float64 `json:"total"`
}

// NetworkEvent is the wire payload for one correlated request/response pair.
type NetworkEvent struct {
	URL       string        `json:"url"`
	Method    string        `json:"method"`
	Status    int           `json:"status"`
	MimeType  string        `json:"mime"`
	Size      int64         `json:"size"`
	Timing    NetworkTiming `json:"timing"`
	Initiator string        `json:"initiator,omitempty"`
}

// ConsoleEvent is the wire payload for a console/exception entry. Kind
// distinguishes the daemon's own synthetic error events (e.g.
// "StorageDegraded") from a genuine page console.error; it is empty for
// ordinary console/exception records.
type ConsoleEvent struct {
	Level  string `json:"level"`
	Text   string `json:"text"`
	Source string `json:"source,omitempty"`
	URL    string `json:"url,omitempty"`
	Kind   string `json:"kind,omitempty"`
}
