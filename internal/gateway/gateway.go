// Package gateway is the loopback HTTP/WebSocket surface the browser
// extension talks to (spec section 4.7). It reuses the teacher's
// ServeMux + writeJSON/writeError idiom from internal/server/server.go
// verbatim in style, generalised from two capture-operation routes to the
// ten /api routes below, plus a gorilla/websocket upgrade on /ws for high-rate
// event streams.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/tomasbasham/devtoolsd/internal/session"
	"github.com/tomasbasham/devtoolsd/internal/wire"
)

// Gateway holds the dependencies shared across extension-facing handlers.
type Gateway struct {
	pool *session.Pool
	mux  *http.ServeMux

	wsMaxQueue int
}

// New wires a Gateway against pool. wsMaxQueue bounds each WebSocket
// client's outbound buffer (spec section 4.7's backpressure policy;
// defaults to 1000).
func New(pool *session.Pool, wsMaxQueue int) *Gateway {
	if wsMaxQueue <= 0 {
		wsMaxQueue = 1000
	}
	g := &Gateway{pool: pool, wsMaxQueue: wsMaxQueue}

	g.mux = http.NewServeMux()
	g.mux.HandleFunc("GET /api/health", g.handleHealth)
	g.mux.HandleFunc("GET /api/session", g.handleSession)
	g.mux.HandleFunc("POST /api/events", g.handleEvents)
	g.mux.HandleFunc("POST /api/screenshots", g.handleScreenshots)
	g.mux.HandleFunc("POST /api/recording/start", g.handleRecordingStart)
	g.mux.HandleFunc("POST /api/recording/stop", g.handleRecordingStop)
	g.mux.HandleFunc("POST /api/recording/frame", g.handleRecordingFrame)
	g.mux.HandleFunc("POST /api/trace/start", g.handleTraceStart)
	g.mux.HandleFunc("POST /api/trace/stop", g.handleTraceStop)
	g.mux.HandleFunc("GET /api/trace/status", g.handleTraceStatus)
	g.mux.HandleFunc("GET /ws", g.handleWS)

	return g
}

// ListenAndServe starts the HTTP server on addr, mirroring the teacher's
// timeout configuration in internal/server/server.go. It returns once ctx
// is cancelled and the server has drained its in-flight requests.
func (g *Gateway) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      g.mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleSession returns the user-profile session's id (spec section 4.7),
// so the extension can discover which session to attribute events to
// without the CLI handing it one explicitly. Ephemeral sessions are never
// reported; with no user-profile session it answers 404.
func (g *Gateway) handleSession(w http.ResponseWriter, r *http.Request) {
	sess := g.pool.SoleUserProfile()
	if sess == nil {
		writeError(w, http.StatusNotFound, "no active session")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"session_id": sess.ID})
}

// sessionFor authenticates a request by matching its session_id query
// parameter to a known session; an unknown session id is a 404, per spec
// section 4.7's endpoint table.
func (g *Gateway) sessionFor(r *http.Request) (*session.Session, bool) {
	id := r.URL.Query().Get("session_id")
	if id == "" {
		return nil, false
	}
	sess := g.pool.Lookup(id)
	if sess == nil || sess.Status() == wire.SessionDestroyed {
		return nil, false
	}
	return sess, true
}

type eventRequest struct {
	Type wire.EventType  `json:"event_type"`
	Data json.RawMessage `json:"data"`
}

func (g *Gateway) handleEvents(w http.ResponseWriter, r *http.Request) {
	sess, ok := g.sessionFor(r)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown session")
		return
	}

	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	var payload any = json.RawMessage(req.Data)
	id, err := sess.Collectors.Extension.Ingest(req.Type, payload)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	sess.Touch()
	writeJSON(w, http.StatusAccepted, map[string]int64{"id": id})
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
