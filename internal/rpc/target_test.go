package rpc

import (
	"testing"

	"github.com/tomasbasham/devtoolsd/internal/ref"
	"github.com/tomasbasham/devtoolsd/internal/wire"
)

func TestResolveTargetPrefersSelector(t *testing.T) {
	refs := ref.NewRegistry()
	got, err := ResolveTarget("#go", "", refs)
	if err != nil {
		t.Fatalf("ResolveTarget: %v", err)
	}
	if got != "#go" {
		t.Fatalf("got %q, want #go", got)
	}
}

func TestResolveTargetFallsBackToRef(t *testing.T) {
	refs := ref.NewRegistry()
	id := refs.Publish(wire.CategoryInteractive, ref.Entry{Selector: "#submit"})

	got, err := ResolveTarget("", id, refs)
	if err != nil {
		t.Fatalf("ResolveTarget: %v", err)
	}
	if got != "#submit" {
		t.Fatalf("got %q, want #submit", got)
	}
}

func TestResolveTargetRequiresOne(t *testing.T) {
	refs := ref.NewRegistry()
	_, err := ResolveTarget("", "", refs)
	if werr, ok := err.(*wire.Error); !ok || werr.Code != wire.CodeInvalidParams {
		t.Fatalf("err = %v, want INVALID_PARAMS", err)
	}
}

func TestResolveTargetExpiredRef(t *testing.T) {
	refs := ref.NewRegistry()
	id := refs.Publish(wire.CategoryInteractive, ref.Entry{Selector: "#submit"})
	refs.Invalidate()

	_, err := ResolveTarget("", id, refs)
	if werr, ok := err.(*wire.Error); !ok || werr.Code != wire.CodeRefExpired {
		t.Fatalf("err = %v, want REF_EXPIRED", err)
	}
}

func TestResolveTargetInvalidPrefix(t *testing.T) {
	refs := ref.NewRegistry()
	_, err := ResolveTarget("", "zz9", refs)
	if werr, ok := err.(*wire.Error); !ok || werr.Code != wire.CodeRefInvalid {
		t.Fatalf("err = %v, want REF_INVALID", err)
	}
}
