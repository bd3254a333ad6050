package store

import (
	"context"
	"testing"
	"time"

	"github.com/tomasbasham/devtoolsd/internal/wire"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open(t.TempDir(), "sess-1")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func drain(t *testing.T, ch <-chan wire.Event) []wire.Event {
	t.Helper()
	var out []wire.Event
	for ev := range ch {
		out = append(out, ev)
	}
	return out
}

// Event monotonicity: appends yield strictly increasing ids, query returns
// them in ascending order.
func TestAppendMonotonicAndOrdered(t *testing.T) {
	s := openTestStore(t)

	var ids []int64
	for i := 0; i < 5; i++ {
		id, err := s.Append(wire.EventClick, map[string]int{"i": i}, time.Now())
		if err != nil {
			t.Fatalf("Append: %v", err)
		}
		ids = append(ids, id)
	}

	for i := 1; i < len(ids); i++ {
		if ids[i] <= ids[i-1] {
			t.Fatalf("ids not strictly increasing: %v", ids)
		}
	}

	ch, err := s.Query(context.Background(), wire.Filter{})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	events := drain(t, ch)
	if len(events) != 5 {
		t.Fatalf("got %d events, want 5", len(events))
	}
	for i := 1; i < len(events); i++ {
		if events[i].ID <= events[i-1].ID {
			t.Fatalf("query not ascending: %+v", events)
		}
	}
}

func TestQueryFilterByType(t *testing.T) {
	s := openTestStore(t)

	if _, err := s.Append(wire.EventClick, map[string]string{}, time.Now()); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Append(wire.EventInput, map[string]string{}, time.Now()); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Append(wire.EventClick, map[string]string{}, time.Now()); err != nil {
		t.Fatal(err)
	}

	ch, err := s.Query(context.Background(), wire.Filter{Types: []wire.EventType{wire.EventClick}})
	if err != nil {
		t.Fatal(err)
	}
	events := drain(t, ch)
	if len(events) != 2 {
		t.Fatalf("got %d click events, want 2", len(events))
	}
}

func TestQueryNetworkDomainFilter(t *testing.T) {
	s := openTestStore(t)

	s.Append(wire.EventNetwork, wire.NetworkEvent{URL: "https://api.example.com/x", Status: 200}, time.Now())
	s.Append(wire.EventNetwork, wire.NetworkEvent{URL: "https://other.test/y", Status: 200}, time.Now())

	ch, err := s.Query(context.Background(), wire.Filter{Domain: "api.example.com"})
	if err != nil {
		t.Fatal(err)
	}
	events := drain(t, ch)
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
}

func TestCount(t *testing.T) {
	s := openTestStore(t)
	for i := 0; i < 3; i++ {
		s.Append(wire.EventClick, map[string]int{}, time.Now())
	}
	n, err := s.Count(wire.Filter{Types: []wire.EventType{wire.EventClick}})
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Fatalf("Count = %d, want 3", n)
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	s.Append(wire.EventClick, map[string]int{}, time.Now())

	if err := s.Delete(); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Delete(); err != nil {
		t.Fatalf("second Delete: %v", err)
	}

	n, err := s.Count(wire.Filter{})
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Fatalf("Count after delete = %d, want 0", n)
	}
}
