// Package handlers implements the command surface (spec section 4.8): one
// function per operation, adapted to rpc.Handler by rpc.HandlerFunc, registered into
// the C6 method table under internal/rpc. Handlers issue CDP commands
// directly via cdproto's generated per-domain packages against
// session.Session.Transport.Context(), exactly as the teacher's capture.go
// does for a single capture.
package handlers

import (
	"context"
	"encoding/json"

	"github.com/tomasbasham/devtoolsd/internal/rpc"
	"github.com/tomasbasham/devtoolsd/internal/session"
)

// Register installs every command handler into d's method table.
func Register(d *rpc.Dispatcher) {
	d.Register("navigate", rpc.HandlerFunc(handleNavigate))
	d.Register("click", rpc.HandlerFunc(handleClick))
	d.Register("hover", rpc.HandlerFunc(handleHover))
	d.Register("scroll", rpc.HandlerFunc(handleScroll))
	d.Register("fill", rpc.HandlerFunc(handleFill))
	d.Register("type", rpc.HandlerFunc(handleType))
	d.Register("select", rpc.HandlerFunc(handleSelect))
	d.Register("press", rpc.HandlerFunc(handlePress))
	d.Register("screenshot", rpc.HandlerFunc(handleScreenshot))
	d.Register("describe", rpc.HandlerFunc(handleDescribe))
	d.Register("a11y", rpc.HandlerFunc(handleA11y))
	d.Register("trace", rpc.HandlerFunc(handleTrace))
	d.Register("history.events", rpc.HandlerFunc(handleHistoryEvents))
	d.Register("history.network", rpc.HandlerFunc(handleHistoryNetwork))
	d.Register("history.console", rpc.HandlerFunc(handleHistoryConsole))
	d.Register("history.export", rpc.HandlerFunc(handleHistoryExport))
	d.Register("analyze", rpc.HandlerFunc(handleAnalyze))
}

// decodeParams unmarshals raw into v, treating an empty payload as a
// zero-value v rather than an error (many methods accept no parameters).
func decodeParams(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, v)
}

// targetParams is embedded by every handler whose operation resolves an
// element, carrying the selector/ref precedence pair from spec section 4.6.
type targetParams struct {
	Selector string `json:"selector"`
	Ref      string `json:"ref"`
}

func (p targetParams) resolve(sess *session.Session) (string, error) {
	return rpc.ResolveTarget(p.Selector, p.Ref, sess.Refs)
}

// busyOp runs fn while holding sess's exclusive busy lock, for operations
// that mutate global browser state per spec section 5. Concurrent callers
// queue rather than fail; ctx cancellation (the dispatcher's per-request
// deadline) unblocks a queued caller with its own error.
func busyOp(ctx context.Context, sess *session.Session, fn func() (any, error)) (any, error) {
	if err := sess.AcquireBusy(ctx); err != nil {
		return nil, err
	}
	defer sess.ReleaseBusy()
	return fn()
}
