package gateway

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/tomasbasham/devtoolsd/internal/wire"
)

type screenshotRequest struct {
	ImageBase64 string `json:"image_base64"`
	Format      string `json:"format"`
}

// handleScreenshots stores a base64-encoded image pushed by the extension
// (e.g. a full-page capture taken by content-script code the daemon cannot
// reach via CDP), under the session's screenshots/ directory.
func (g *Gateway) handleScreenshots(w http.ResponseWriter, r *http.Request) {
	sess, ok := g.sessionFor(r)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown session")
		return
	}

	var req screenshotRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.ImageBase64 == "" {
		writeError(w, http.StatusBadRequest, "image_base64 is required")
		return
	}
	format := req.Format
	if format == "" {
		format = "png"
	}

	data, err := base64.StdEncoding.DecodeString(req.ImageBase64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid base64 image data")
		return
	}

	dir := filepath.Join(sess.Dir, "screenshots")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	name := fmt.Sprintf("%s.%s", uuid.NewString(), format)
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	id, err := sess.Store.Append(wire.EventScreenshot, map[string]string{"path": path}, time.Now())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	sess.Touch()
	writeJSON(w, http.StatusCreated, map[string]any{"id": id, "path": path})
}
