package gateway

import (
	"net/http/httptest"
	"testing"

	"github.com/tomasbasham/devtoolsd/internal/config"
	"github.com/tomasbasham/devtoolsd/internal/session"
)

func TestHealth(t *testing.T) {
	pool := session.New(config.Default(), t.TempDir(), t.TempDir())
	g := New(pool, 0)

	srv := httptest.NewServer(g.mux)
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL + "/api/health")
	if err != nil {
		t.Fatalf("GET /api/health: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}

func TestSessionUnknownReturns404(t *testing.T) {
	pool := session.New(config.Default(), t.TempDir(), t.TempDir())
	g := New(pool, 0)

	srv := httptest.NewServer(g.mux)
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL + "/api/trace/status?session_id=does-not-exist")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 404 {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestSessionEndpointWithNoActiveSession(t *testing.T) {
	pool := session.New(config.Default(), t.TempDir(), t.TempDir())
	g := New(pool, 0)

	srv := httptest.NewServer(g.mux)
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL + "/api/session")
	if err != nil {
		t.Fatalf("GET /api/session: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 404 {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}
