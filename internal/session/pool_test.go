package session

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/tomasbasham/devtoolsd/internal/config"
	"github.com/tomasbasham/devtoolsd/internal/store"
)

func TestUserProfilePointerUnsetByDefault(t *testing.T) {
	p := New(config.Default(), t.TempDir(), t.TempDir())

	id, ok, err := p.UserProfilePointer()
	if err != nil {
		t.Fatalf("UserProfilePointer: %v", err)
	}
	if ok || id != "" {
		t.Fatalf("UserProfilePointer() = (%q, %v), want (\"\", false)", id, ok)
	}
}

func TestUserProfilePointerReflectsSavedPointer(t *testing.T) {
	configDir := t.TempDir()
	p := New(config.Default(), configDir, t.TempDir())

	if err := config.SaveSessionPointer(configDir, config.SessionPointer{SessionID: "sess-1"}); err != nil {
		t.Fatalf("SaveSessionPointer: %v", err)
	}

	id, ok, err := p.UserProfilePointer()
	if err != nil {
		t.Fatalf("UserProfilePointer: %v", err)
	}
	if !ok || id != "sess-1" {
		t.Fatalf("UserProfilePointer() = (%q, %v), want (\"sess-1\", true)", id, ok)
	}
}

func TestRecoverOrphansMarksSessionsDetached(t *testing.T) {
	root := t.TempDir()
	p := New(config.Default(), t.TempDir(), root)

	dir := filepath.Join(root, "orphan-1")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	s, err := store.Open(dir, "orphan-1")
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	s.Close()

	if err := p.RecoverOrphans(); err != nil {
		t.Fatalf("RecoverOrphans: %v", err)
	}

	sess := p.Lookup("orphan-1")
	if sess == nil {
		t.Fatalf("Lookup(orphan-1) = nil, want recovered session")
	}
	if sess.Status() != "detached" {
		t.Fatalf("Status() = %q, want detached", sess.Status())
	}
}
