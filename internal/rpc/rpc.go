// Package rpc implements the local control-socket dispatcher (spec section
// 4.6): newline-delimited JSON request/response framing over a Unix domain
// socket, method lookup, session resolution, and per-request timeouts. The
// method table is populated by internal/handlers' registration function,
// deliberately mirroring the teacher's http.ServeMux route-registration
// style in internal/server/server.go, generalised from an HTTP mux to a
// socket-framed one.
package rpc

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/tomasbasham/devtoolsd/internal/session"
	"github.com/tomasbasham/devtoolsd/internal/wire"
)

// Request is one framed line read from the socket.
type Request struct {
	ID     json.RawMessage `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

// Response is one framed line written back to the caller.
type Response struct {
	ID     json.RawMessage `json:"id"`
	Result any             `json:"result,omitempty"`
	Error  *ErrorBody       `json:"error,omitempty"`
}

// ErrorBody is the wire shape of an RPC error, per spec section 4.6.
type ErrorBody struct {
	Code    wire.Code `json:"code"`
	Message string    `json:"message"`
}

// commonParams is the subset of every method's params this package inspects
// to resolve a target session, per spec section 4.6's acquisition rule.
type commonParams struct {
	SessionID   string `json:"session_id"`
	UserProfile bool   `json:"user_profile"`
}

// Handler is one registered RPC method. Implementations receive the
// resolved session and the method's raw params.
type Handler interface {
	Handle(ctx context.Context, sess *session.Session, params json.RawMessage) (any, error)
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc func(ctx context.Context, sess *session.Session, params json.RawMessage) (any, error)

func (f HandlerFunc) Handle(ctx context.Context, sess *session.Session, params json.RawMessage) (any, error) {
	return f(ctx, sess, params)
}

// RawHandler is a method that is dispatched without the session-resolution
// rule: spec section 4.6's server.info and the daemon's session.info
// introspection method are the only two, since both must answer even when
// no session exists rather than silently acquiring an ephemeral one.
type RawHandler func(ctx context.Context, params json.RawMessage) (any, error)

// Dispatcher owns the method table and the session pool used to resolve
// requests into a target session.
type Dispatcher struct {
	pool    *session.Pool
	timeout time.Duration

	mu         sync.RWMutex
	methods    map[string]Handler
	rawMethods map[string]RawHandler
}

// New returns a Dispatcher bound to pool, with the given default per-request
// timeout (spec section 5; 30s if zero).
func New(pool *session.Pool, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Dispatcher{
		pool:       pool,
		timeout:    timeout,
		methods:    make(map[string]Handler),
		rawMethods: make(map[string]RawHandler),
	}
}

// Register adds method to the dispatch table. Re-registering a method
// overwrites the previous handler, matching the teacher's mux semantics.
func (d *Dispatcher) Register(method string, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.methods[method] = h
}

// RegisterNoSession adds a method that bypasses session resolution
// entirely, for introspection methods that must answer even when no
// session exists (server.info, session.info; spec section 4.6).
func (d *Dispatcher) RegisterNoSession(method string, fn RawHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rawMethods[method] = fn
}

// ListenAndServe accepts connections on a Unix domain socket at path until
// ctx is cancelled. Each connection is served by its own goroutine; each
// line on the connection is one framed request.
func (d *Dispatcher) ListenAndServe(ctx context.Context, path string) error {
	os.Remove(path)
	l, err := net.Listen("unix", path)
	if err != nil {
		return fmt.Errorf("rpc: failed to listen on %q: %w", path, err)
	}

	go func() {
		<-ctx.Done()
		l.Close()
	}()

	for {
		conn, err := l.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return fmt.Errorf("rpc: accept failed: %w", err)
			}
		}
		go d.serveConn(ctx, conn)
	}
}

func (d *Dispatcher) serveConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	enc := json.NewEncoder(conn)

	var writeMu sync.Mutex
	write := func(resp Response) {
		writeMu.Lock()
		defer writeMu.Unlock()
		enc.Encode(resp)
	}

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			write(Response{Error: &ErrorBody{Code: wire.CodeInvalidParams, Message: "malformed request frame"}})
			continue
		}

		go d.handle(ctx, req, write)
	}
}

func (d *Dispatcher) handle(ctx context.Context, req Request, write func(Response)) {
	d.mu.RLock()
	raw, rawOK := d.rawMethods[req.Method]
	h, ok := d.methods[req.Method]
	d.mu.RUnlock()

	if rawOK {
		callCtx, cancel := context.WithTimeout(ctx, d.timeout)
		defer cancel()
		result, err := raw(callCtx, req.Params)
		if err != nil {
			write(Response{ID: req.ID, Error: toErrorBody(err)})
			return
		}
		write(Response{ID: req.ID, Result: result})
		return
	}
	if !ok {
		write(Response{ID: req.ID, Error: &ErrorBody{Code: wire.CodeMethodNotFound, Message: req.Method}})
		return
	}

	sess, err := d.resolveSession(ctx, req.Params)
	if err != nil {
		write(Response{ID: req.ID, Error: toErrorBody(err)})
		return
	}

	callCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	result, err := h.Handle(callCtx, sess, req.Params)
	if err != nil {
		if callCtx.Err() != nil {
			write(Response{ID: req.ID, Error: &ErrorBody{Code: wire.CodeTimeout, Message: "handler exceeded its deadline"}})
			return
		}
		write(Response{ID: req.ID, Error: toErrorBody(err)})
		return
	}

	if sess != nil {
		sess.Touch()
	}
	write(Response{ID: req.ID, Result: result})
}

// resolveSession implements spec section 4.6's acquisition rule: prefer an
// explicit session_id, else acquire (creating if absent) the persistent
// user-profile session when user_profile=true, else acquire a fresh
// ephemeral session.
func (d *Dispatcher) resolveSession(ctx context.Context, params json.RawMessage) (*session.Session, error) {
	var p commonParams
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, wire.Errorf(wire.CodeInvalidParams, err, "failed to parse params")
		}
	}

	if p.SessionID != "" {
		sess := d.pool.Lookup(p.SessionID)
		if sess == nil || sess.Status() == wire.SessionDestroyed {
			return nil, wire.Errorf(wire.CodeSessionGone, nil, "session %s is gone", p.SessionID)
		}
		return sess, nil
	}

	if p.UserProfile {
		return d.pool.AcquireUserProfile(ctx)
	}

	return d.pool.Acquire(ctx, wire.SessionEphemeral, "")
}

func toErrorBody(err error) *ErrorBody {
	var werr *wire.Error
	if e, ok := err.(*wire.Error); ok {
		werr = e
	}
	if werr != nil {
		return &ErrorBody{Code: werr.Code, Message: werr.Message}
	}
	return &ErrorBody{Code: wire.CodeInternal, Message: err.Error()}
}
