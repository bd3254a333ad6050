package gateway

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tomasbasham/devtoolsd/internal/wire"
)

// recordings tracks active recordings keyed by recording id, since a
// recording's frame count and status live only in memory between start and
// stop (the event store only ever sees the start/stop summary records).
type recordingState struct {
	mu     sync.Mutex
	active map[string]*wire.Recording
	dirs   map[string]string
}

var recordings = &recordingState{
	active: make(map[string]*wire.Recording),
	dirs:   make(map[string]string),
}

type recordingStartRequest struct {
	FPS     int     `json:"fps"`
	Quality int     `json:"quality"`
	DPR     float64 `json:"dpr"`
}

func (g *Gateway) handleRecordingStart(w http.ResponseWriter, r *http.Request) {
	sess, ok := g.sessionFor(r)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown session")
		return
	}

	var req recordingStartRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id := uuid.NewString()
	dir := filepath.Join(sess.Dir, "recordings", id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	rec := &wire.Recording{
		RecordingID: id,
		SessionID:   sess.ID,
		FPS:         req.FPS,
		Quality:     req.Quality,
		DPR:         req.DPR,
		StartTS:     time.Now(),
		Status:      wire.RecordingActive,
	}

	recordings.mu.Lock()
	recordings.active[id] = rec
	recordings.dirs[id] = dir
	recordings.mu.Unlock()

	sess.Store.Append(wire.EventSnapshot, rec, rec.StartTS)
	sess.Touch()
	writeJSON(w, http.StatusCreated, rec)
}

type recordingStopRequest struct {
	RecordingID string `json:"recording_id"`
}

func (g *Gateway) handleRecordingStop(w http.ResponseWriter, r *http.Request) {
	sess, ok := g.sessionFor(r)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown session")
		return
	}

	var req recordingStopRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	recordings.mu.Lock()
	rec, ok := recordings.active[req.RecordingID]
	if ok {
		delete(recordings.active, req.RecordingID)
	}
	recordings.mu.Unlock()

	if !ok {
		writeError(w, http.StatusNotFound, "unknown recording id")
		return
	}

	now := time.Now()
	rec.EndTS = &now
	rec.Status = wire.RecordingComplete

	sess.Store.Append(wire.EventSnapshot, rec, now)
	sess.Touch()
	writeJSON(w, http.StatusOK, rec)
}

type recordingFrameRequest struct {
	RecordingID string `json:"recording_id"`
	ImageBase64 string `json:"image_base64"`
}

func (g *Gateway) handleRecordingFrame(w http.ResponseWriter, r *http.Request) {
	sess, ok := g.sessionFor(r)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown session")
		return
	}

	var req recordingFrameRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	recordings.mu.Lock()
	rec, ok := recordings.active[req.RecordingID]
	dir := recordings.dirs[req.RecordingID]
	if ok {
		rec.FrameCount++
	}
	frameNum := 0
	if ok {
		frameNum = rec.FrameCount
	}
	recordings.mu.Unlock()

	if !ok {
		writeError(w, http.StatusNotFound, "unknown recording id")
		return
	}

	data, err := base64.StdEncoding.DecodeString(req.ImageBase64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid base64 frame data")
		return
	}

	path := filepath.Join(dir, frameName(frameNum))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	sess.Touch()
	writeJSON(w, http.StatusAccepted, map[string]int{"frame": frameNum})
}

func frameName(n int) string {
	return fmt.Sprintf("%07d.png", n)
}
