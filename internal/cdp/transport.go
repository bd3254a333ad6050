// Package cdp owns the daemon's single persistent CDP connection per
// browser (spec section 4.2). It generalises the teacher's one-shot
// chromedp.Run/chromedp.ListenTarget capture into a reusable transport that
// many handlers share across the lifetime of a session: a call surface
// built on cdproto's generated, typed command structs (exactly how the
// teacher's capture.go and every CDP-driven example in this codebase's
// lineage issue commands), plus a string-keyed Subscribe/dispatch fan-out
// generalising the teacher's chromedp.ListenTarget switch.
package cdp

import (
	"context"
	"errors"
	"fmt"
	"sync"

	cdplog "github.com/chromedp/cdproto/log"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/cdproto/tracing"
	"github.com/chromedp/chromedp"
)

// Sentinel errors surfaced to the session pool and dispatcher, matching
// spec section 4.2/4.6.
var (
	ErrConnectionClosed = errors.New("cdp: connection closed")
	ErrTargetGone       = errors.New("cdp: target gone")
)

// Handler receives one decoded CDP event. Handlers for a given event name
// are invoked sequentially, in registration order, preserving arrival order
// per spec section 5.
type Handler func(event any)

// Transport is one persistent, full-duplex connection to a single browser
// target, built on top of chromedp's allocator/context machinery (the same
// machinery the teacher uses for a single capture, reused here for the
// lifetime of a session). Handlers issue commands directly against
// Context() using cdproto's generated per-domain packages (e.g.
// page.Navigate(url).Do(ctx)); Transport itself only owns lifecycle and
// event fan-out.
type Transport struct {
	allocCtx    context.Context
	cancelAlloc context.CancelFunc
	tabCtx      context.Context
	cancelTab   context.CancelFunc

	mu       sync.Mutex
	handlers map[string][]Handler
	closed   bool
}

// Options configures a new Transport.
type Options struct {
	Port        int
	UserDataDir string
	Headless    bool
}

// New launches a browser pinned to opts.Port and returns a Transport bound
// to its first page target. The allocator options mirror the teacher's
// chromedp.DefaultExecAllocatorOptions + chromedp.Flag("headless", ...)
// pattern, generalised to a caller-chosen port and profile directory
// instead of a throwaway temp profile.
func New(ctx context.Context, opts Options) (*Transport, error) {
	allocOpts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("remote-debugging-port", fmt.Sprintf("%d", opts.Port)),
	)
	if opts.UserDataDir != "" {
		allocOpts = append(allocOpts, chromedp.UserDataDir(opts.UserDataDir))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)

	// Suppress chromedp's internal error output for CDP events it cannot
	// unmarshal due to protocol version skew; the affected events are
	// simply dropped, as in the teacher's capture.go.
	tabCtx, cancelTab := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(string, ...any) {}),
		chromedp.WithErrorf(func(string, ...any) {}),
		chromedp.WithDebugf(func(string, ...any) {}),
	)

	t := &Transport{
		allocCtx:    allocCtx,
		cancelAlloc: cancelAlloc,
		tabCtx:      tabCtx,
		cancelTab:   cancelTab,
		handlers:    make(map[string][]Handler),
	}

	// The first Run call allocates the browser process and establishes the
	// CDP connection; subsequent commands are issued directly against
	// tabCtx by callers holding a *Transport.
	if err := chromedp.Run(tabCtx); err != nil {
		t.Close()
		return nil, fmt.Errorf("cdp: failed to start browser: %w", err)
	}

	chromedp.ListenTarget(tabCtx, t.dispatch)

	return t, nil
}

// dispatch is the single reader-task callback installed once per transport.
// It fans out to every handler registered for the event's CDP method name,
// in registration order, sequentially - matching spec section 4.2's
// ordering guarantee.
func (t *Transport) dispatch(ev any) {
	name := eventName(ev)
	if name == "" {
		return
	}

	t.mu.Lock()
	handlers := append([]Handler(nil), t.handlers[name]...)
	t.mu.Unlock()

	for _, h := range handlers {
		h(ev)
	}
}

// Subscribe registers handler for the named CDP event (e.g.
// "Network.requestWillBeSent"). Multiple handlers may share one event name;
// unsubscribe is not exposed directly since collectors live for the
// session's whole lifetime and detach by tearing down the Transport.
func (t *Transport) Subscribe(eventName string, handler Handler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handlers[eventName] = append(t.handlers[eventName], handler)
}

// TargetID returns the CDP target id of the transport's current page.
func (t *Transport) TargetID() target.ID {
	c := chromedp.FromContext(t.tabCtx)
	if c == nil || c.Target == nil {
		return ""
	}
	return c.Target.TargetID
}

// Context returns the tab context commands are issued against, e.g.
// page.Navigate(url).Do(transport.Context()).
func (t *Transport) Context() context.Context { return t.tabCtx }

// Err reports whether the underlying browser process or tab context has
// ended, in which case the owning session should transition to detached.
func (t *Transport) Err() error {
	select {
	case <-t.tabCtx.Done():
		return ErrTargetGone
	default:
		return nil
	}
}

// Closed reports whether Close has been called.
func (t *Transport) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// Close drains the connection and kills the browser process.
func (t *Transport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()

	t.cancelTab()
	t.cancelAlloc()
	return nil
}

// eventName maps a decoded cdproto event value to its dotted CDP method
// name (e.g. "Network.requestWillBeSent"), the key Subscribe callers use.
// cdproto's generated event types are one-to-one with CDP method names, so
// a static table keyed by Go type name is exact and needs no reflection
// beyond the type switch below.
func eventName(ev any) string {
	switch ev.(type) {
	case *network.EventRequestWillBeSent:
		return "Network.requestWillBeSent"
	case *network.EventResponseReceived:
		return "Network.responseReceived"
	case *network.EventLoadingFinished:
		return "Network.loadingFinished"
	case *network.EventLoadingFailed:
		return "Network.loadingFailed"
	case *runtime.EventConsoleAPICalled:
		return "Runtime.consoleAPICalled"
	case *runtime.EventExceptionThrown:
		return "Runtime.exceptionThrown"
	case *cdplog.EventEntryAdded:
		return "Log.entryAdded"
	case *page.EventLifecycleEvent:
		return "Page.lifecycleEvent"
	case *page.EventLoadEventFired:
		return "Page.loadEventFired"
	case *page.EventDOMContentEventFired:
		return "Page.domContentEventFired"
	case *page.EventFrameNavigated:
		return "Page.frameNavigated"
	case *tracing.EventDataCollected:
		return "Tracing.dataCollected"
	case *target.EventTargetCrashed:
		return "Target.targetCrashed"
	default:
		return ""
	}
}
