package handlers

import (
	"context"
	"encoding/json"

	"github.com/tomasbasham/devtoolsd/internal/rpc"
	"github.com/tomasbasham/devtoolsd/internal/session"
	"github.com/tomasbasham/devtoolsd/internal/wire"
)

// RegisterIntrospection installs the two methods spec section 4.6 exempts
// from session resolution: server.info, which just reports the daemon's
// version and capability list, and session.info, which reports a session's
// existence and status without ever creating one (spec's open question on
// session-info --user-profile).
func RegisterIntrospection(d *rpc.Dispatcher, pool *session.Pool, version string) {
	d.RegisterNoSession("server.info", func(ctx context.Context, raw json.RawMessage) (any, error) {
		return map[string]any{
			"version": version,
			"capabilities": []string{
				"navigate", "click", "hover", "scroll", "fill", "type", "select", "press",
				"screenshot", "describe", "a11y", "trace", "history", "analyze",
			},
		}, nil
	})

	d.RegisterNoSession("session.info", func(ctx context.Context, raw json.RawMessage) (any, error) {
		var p struct {
			SessionID   string `json:"session_id"`
			UserProfile bool   `json:"user_profile"`
		}
		if err := decodeParams(raw, &p); err != nil {
			return nil, wire.Errorf(wire.CodeInvalidParams, err, "invalid session.info params")
		}

		id := p.SessionID
		if p.UserProfile {
			ptrID, ok, err := pool.UserProfilePointer()
			if err != nil {
				return nil, wire.Errorf(wire.CodeStorageUnavailable, err, "failed to read session pointer")
			}
			if !ok {
				return map[string]any{"exists": false}, nil
			}
			id = ptrID
		}
		if id == "" {
			return map[string]any{"exists": false}, nil
		}

		sess := pool.Lookup(id)
		if sess == nil {
			return map[string]any{"exists": false, "session_id": id}, nil
		}
		return map[string]any{
			"exists":     true,
			"session_id": sess.ID,
			"status":     sess.Status(),
		}, nil
	})
}
