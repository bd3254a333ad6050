package ref

import (
	"fmt"
	"sync"
	"testing"

	"github.com/tomasbasham/devtoolsd/internal/wire"
)

func TestPublishAndResolve(t *testing.T) {
	r := NewRegistry()

	id := r.Publish(wire.CategoryInteractive, Entry{Selector: "#go", Role: "button"})

	got, ok := r.Resolve(id)
	if !ok {
		t.Fatalf("Resolve(%q) not found", id)
	}
	if got.Selector != "#go" {
		t.Fatalf("Selector = %q, want #go", got.Selector)
	}
}

func TestInvalidateExpiresRefs(t *testing.T) {
	r := NewRegistry()
	id := r.Publish(wire.CategoryInteractive, Entry{Selector: "#go"})

	r.Invalidate()

	if _, ok := r.Resolve(id); ok {
		t.Fatalf("Resolve(%q) succeeded after Invalidate", id)
	}
}

func TestPublishIncrementsPerCategory(t *testing.T) {
	r := NewRegistry()
	a := r.Publish(wire.CategoryInteractive, Entry{})
	b := r.Publish(wire.CategoryInteractive, Entry{})
	if a == b {
		t.Fatalf("expected distinct ref ids, got %q twice", a)
	}
}

// TestConcurrentPublishAndResolve exercises Publish racing Resolve from many
// goroutines (run with -race); a Publish that mutates the live table in
// place would trip the race detector here.
func TestConcurrentPublishAndResolve(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			r.Publish(wire.CategoryInteractive, Entry{Selector: fmt.Sprintf("#go%d", i)})
		}(i)
		go func() {
			defer wg.Done()
			r.Resolve("i0")
		}()
	}
	wg.Wait()
}

func TestCategoryFromPrefix(t *testing.T) {
	r := NewRegistry()
	id := r.Publish(wire.CategoryInteractive, Entry{})
	cat, ok := Category(id)
	if !ok || cat != wire.CategoryInteractive {
		t.Fatalf("Category(%q) = %v, %v", id, cat, ok)
	}
}
