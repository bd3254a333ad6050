package cmd

import (
	"testing"

	"github.com/tomasbasham/devtoolsd/internal/wire"
)

func TestTargetOptionsParams(t *testing.T) {
	tgt := targetOptions{Selector: "#go", Ref: "i0"}
	params := tgt.params()
	if params["selector"] != "#go" {
		t.Fatalf("selector = %v, want #go", params["selector"])
	}
	if params["ref"] != "i0" {
		t.Fatalf("ref = %v, want i0", params["ref"])
	}
}

func TestHistoryFilterOptionsParams(t *testing.T) {
	f := historyFilterOptions{Last: "10m", Type: "network", Limit: 5}
	params := f.params()
	if params["last"] != "10m" {
		t.Fatalf("last = %v, want 10m", params["last"])
	}
	if params["type"] != "network" {
		t.Fatalf("type = %v, want network", params["type"])
	}
	if params["limit"] != 5 {
		t.Fatalf("limit = %v, want 5", params["limit"])
	}
}

func TestNewExitErrorExitCode(t *testing.T) {
	err := newExitError(wire.CodeInvalidParams, "bad params")
	if err.ExitCode() != 2 {
		t.Fatalf("ExitCode() = %d, want 2", err.ExitCode())
	}
}
