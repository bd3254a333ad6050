package wire

import "fmt"

// Code is a stable error classification surfaced over the RPC socket and the
// extension gateway. Values match spec section 7 exactly.
type Code string

const (
	CodeInvalidParams      Code = "INVALID_PARAMS"
	CodeMethodNotFound     Code = "METHOD_NOT_FOUND"
	CodeSessionGone        Code = "SESSION_GONE"
	CodeTargetGone         Code = "TARGET_GONE"
	CodeTimeout            Code = "TIMEOUT"
	CodeProtocolError      Code = "PROTOCOL_ERROR"
	CodeElementNotFound    Code = "ELEMENT_NOT_FOUND"
	CodeElementNotVisible  Code = "ELEMENT_NOT_VISIBLE"
	CodeOptionNotFound     Code = "OPTION_NOT_FOUND"
	CodeRefExpired         Code = "REF_EXPIRED"
	CodeRefInvalid         Code = "REF_INVALID"
	CodeSessionLaunchFailed Code = "SESSION_LAUNCH_FAILED"
	CodeStorageUnavailable Code = "STORAGE_UNAVAILABLE"
	CodeInternal           Code = "INTERNAL"
)

// Error is a typed error carrying an RPC-facing code. Handlers return it
// directly; internal plumbing wraps lower-level errors with fmt.Errorf and
// %w the way the rest of this codebase does, then a final classification
// pass at the dispatcher boundary turns *Error into a response code.
type Error struct {
	Code    Code
	Message string
	Wrapped error
}

func (e *Error) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Wrapped)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Wrapped }

// Errorf builds an *Error with a formatted message, optionally wrapping err.
func Errorf(code Code, err error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Wrapped: err}
}

// ExitCode maps an error code to the CLI exit codes from spec section 6.
func (c Code) ExitCode() int {
	switch c {
	case "":
		return 0
	case CodeInvalidParams:
		return 2
	case CodeSessionGone, CodeTargetGone:
		return 3
	case CodeTimeout:
		return 4
	case CodeRefExpired:
		return 5
	default:
		return 1
	}
}
