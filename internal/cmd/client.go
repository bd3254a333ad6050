package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/tomasbasham/devtoolsd/internal/config"
	"github.com/tomasbasham/devtoolsd/internal/wire"
)

// socketPath returns the daemon's control-socket path under the user's
// config directory, per spec section 6's persisted state layout.
func socketPath() (string, error) {
	dir, err := config.Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "devtoolsd.sock"), nil
}

// rpcRequest/rpcResponse mirror internal/rpc's wire envelope (spec section
// 4.6). They are re-declared here, rather than imported, so that dtctl does
// not pull in internal/session's chromedp dependency graph just to talk to
// a socket.
type rpcRequest struct {
	ID     int64           `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

type rpcResponse struct {
	ID     int64           `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *rpcErrorBody   `json:"error,omitempty"`
}

type rpcErrorBody struct {
	Code    wire.Code `json:"code"`
	Message string    `json:"message"`
}

var requestCounter int64

// exitError is returned by a leaf command's RunE to carry the process exit
// code cli-runtime should terminate with, per spec section 6.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) ExitCode() int { return e.code }

func newExitError(code wire.Code, msg string) *exitError {
	return &exitError{code: code.ExitCode(), err: fmt.Errorf("%s", msg)}
}

// callMethod dials the daemon's socket, sends one framed request carrying
// params merged with o's target-selection flags, and returns the raw
// result payload.
func callMethod(o *DevtoolsOptions, method string, params map[string]any) (json.RawMessage, error) {
	if params == nil {
		params = map[string]any{}
	}
	if o.SessionID != "" {
		params["session_id"] = o.SessionID
	}
	if o.UserProfile {
		params["user_profile"] = true
	}

	path, err := socketPath()
	if err != nil {
		return nil, &exitError{code: 1, err: fmt.Errorf("dtctl: %w", err)}
	}

	conn, err := net.Dial("unix", path)
	if err != nil {
		return nil, &exitError{code: 3, err: fmt.Errorf("dtctl: devtoolsd is not running (dial %s: %w)", path, err)}
	}
	defer conn.Close()
	if o.Timeout > 0 {
		conn.SetDeadline(time.Now().Add(o.Timeout))
	}

	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return nil, &exitError{code: 2, err: fmt.Errorf("dtctl: failed to marshal params: %w", err)}
	}

	req := rpcRequest{
		ID:     atomic.AddInt64(&requestCounter, 1),
		Method: method,
		Params: paramsJSON,
	}

	enc := json.NewEncoder(conn)
	if err := enc.Encode(req); err != nil {
		return nil, &exitError{code: 1, err: fmt.Errorf("dtctl: failed to send request: %w", err)}
	}

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, &exitError{code: 1, err: fmt.Errorf("dtctl: failed to read response: %w", err)}
		}
		return nil, &exitError{code: 1, err: fmt.Errorf("dtctl: connection closed before a response arrived")}
	}

	var resp rpcResponse
	if err := json.Unmarshal(scanner.Bytes(), &resp); err != nil {
		return nil, &exitError{code: 1, err: fmt.Errorf("dtctl: malformed response: %w", err)}
	}
	if resp.Error != nil {
		return nil, newExitError(resp.Error.Code, fmt.Sprintf("%s: %s", resp.Error.Code, resp.Error.Message))
	}
	return resp.Result, nil
}

// printResult renders result either as raw JSON (--json) or, when render is
// non-nil, as formatted text. Every structured output includes "ok: bool"
// per spec section 7; --json mode wraps the raw result accordingly.
func printResult(o *DevtoolsOptions, result json.RawMessage, render func([]byte) string) {
	if o.JSON {
		fmt.Fprintf(o.Out, `{"ok":true,"result":%s}`+"\n", string(result))
		return
	}
	if render != nil {
		fmt.Fprintln(o.Out, render(result))
		return
	}
	fmt.Fprintln(o.Out, string(result))
}
