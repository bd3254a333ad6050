package handlers

import (
	"bytes"
	"context"

	"github.com/tomasbasham/devtoolsd/internal/storage"
)

// uploader is the artifact-archival backend wired in by internal/daemon: a
// GCSUploader when storage.gcs_bucket is configured, otherwise a
// LocalUploader (spec section 4.8's expansion, §9 does not forbid it). Nil
// means archival is unavailable and --archive is a no-op.
var uploader storage.Uploader

// Configure installs the daemon's archival uploader. Called once during
// daemon startup; nil disables archival.
func Configure(u storage.Uploader) {
	uploader = u
}

// archive uploads content under objectName through the configured uploader
// and returns its signed URL. A nil uploader is not an error: callers treat
// an empty URL as "archival skipped".
func archive(ctx context.Context, objectName string, content []byte, contentType string) (string, error) {
	if uploader == nil {
		return "", nil
	}
	result, err := uploader.Upload(ctx, &storage.UploadRequest{
		ObjectName:  objectName,
		Content:     bytes.NewReader(content),
		ContentType: contentType,
	})
	if err != nil {
		return "", err
	}
	return result.SignedURL, nil
}
