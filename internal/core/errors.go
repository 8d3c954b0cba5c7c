package core

import (
	"fmt"
)

// UserInputError means the user's library does not contain enough data
// for the requested operation. It is surfaced as a friendly message and
// never triggers a crash report.
type UserInputError struct {
	Msg string
}

func (e *UserInputError) Error() string {
	return e.Msg
}

// NewUserInputError formats a user-facing input error.
func NewUserInputError(format string, args ...any) *UserInputError {
	return &UserInputError{Msg: fmt.Sprintf(format, args...)}
}

// OperationError means a flow could not complete. It wraps the cause and
// carries the flow context for diagnostics; the CLI boundary sends a
// crash report for it.
type OperationError struct {
	Msg  string
	Flow FlowContext
	Err  error
}

func (e *OperationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s (command=%s user=%s): %v", e.Msg, e.Flow.Command, e.Flow.Username, e.Err)
	}
	return fmt.Sprintf("%s (command=%s user=%s)", e.Msg, e.Flow.Command, e.Flow.Username)
}

func (e *OperationError) Unwrap() error {
	return e.Err
}

// NewOperationError wraps cause with flow context. cause may be nil for
// assertion-style failures.
func NewOperationError(msg string, flow FlowContext, cause error) *OperationError {
	return &OperationError{Msg: msg, Flow: flow, Err: cause}
}
