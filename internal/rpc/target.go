package rpc

import (
	"github.com/tomasbasham/devtoolsd/internal/ref"
	"github.com/tomasbasham/devtoolsd/internal/wire"
)

// ResolveTarget implements spec section 4.6's cross-cutting interaction
// helper: given an optional CSS selector and an optional ref id, it prefers
// a non-empty selector, else resolves ref against the session's registry,
// else fails INVALID_PARAMS.
func ResolveTarget(selector, refID string, refs *ref.Registry) (string, error) {
	if selector != "" {
		return selector, nil
	}
	if refID == "" {
		return "", wire.Errorf(wire.CodeInvalidParams, nil, "one of selector or ref is required")
	}

	if _, ok := ref.Category(refID); !ok {
		return "", wire.Errorf(wire.CodeRefInvalid, nil, "ref %q has an unrecognised prefix", refID)
	}

	entry, ok := refs.Resolve(refID)
	if !ok {
		return "", wire.Errorf(wire.CodeRefExpired, nil, "ref %q is no longer valid", refID)
	}
	return entry.Selector, nil
}
