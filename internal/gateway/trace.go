package gateway

import (
	"net/http"
	"path/filepath"

	"github.com/google/uuid"
)

func (g *Gateway) handleTraceStart(w http.ResponseWriter, r *http.Request) {
	sess, ok := g.sessionFor(r)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown session")
		return
	}

	id := uuid.NewString()
	path := filepath.Join(sess.Dir, "traces", id+".ndjson")
	if err := sess.Collectors.Trace.Start(id, path); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}

	sess.Touch()
	writeJSON(w, http.StatusCreated, map[string]string{"trace_id": id, "path": path})
}

func (g *Gateway) handleTraceStop(w http.ResponseWriter, r *http.Request) {
	sess, ok := g.sessionFor(r)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown session")
		return
	}

	result, err := sess.Collectors.Trace.Stop()
	if err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}

	sess.Touch()
	writeJSON(w, http.StatusOK, result)
}

func (g *Gateway) handleTraceStatus(w http.ResponseWriter, r *http.Request) {
	sess, ok := g.sessionFor(r)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown session")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"active": sess.Collectors.Trace.Active()})
}
