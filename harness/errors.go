package harness

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes harness failures.
type ErrorCode string

const (
	// ErrCodeConfig indicates a malformed settings mapping or an invalid
	// minimum alert level.
	ErrCodeConfig ErrorCode = "CONFIG_INVALID"

	// ErrCodeStyles indicates invalid styles input or a path that resolves
	// outside the rules tree.
	ErrCodeStyles ErrorCode = "STYLES_INVALID"

	// ErrCodeLifecycle indicates an operation on an unopened or closed sandbox.
	ErrCodeLifecycle ErrorCode = "LIFECYCLE"

	// ErrCodeExecution indicates the engine was missing, crashed, or timed
	// out for reasons unrelated to findings.
	ErrCodeExecution ErrorCode = "ENGINE_EXECUTION"

	// ErrCodeParse indicates malformed engine output.
	ErrCodeParse ErrorCode = "OUTPUT_PARSE"
)

// ExecReason refines ErrCodeExecution failures.
type ExecReason string

const (
	// ReasonMissingBinary means the engine executable could not be resolved.
	ReasonMissingBinary ExecReason = "missing_binary"

	// ReasonTimeout means the invocation exceeded its wall-clock budget.
	ReasonTimeout ExecReason = "timeout"

	// ReasonCanceled means the caller's context was canceled mid-invocation.
	ReasonCanceled ExecReason = "canceled"

	// ReasonExitStatus means the engine reported a non-findings failure.
	ReasonExitStatus ExecReason = "exit_status"

	// ReasonSetup means a filesystem step around the invocation failed; no
	// engine process produced this error.
	ReasonSetup ExecReason = "setup"
)

// Error is a classified harness failure.
//
// Error includes structured fields for debugging:
//   - Stderr carries the engine's error stream for execution failures.
//   - Payload carries the raw engine output for parse failures.
//   - Reason and ExitCode refine execution failures.
type Error struct {
	// Code identifies the failure category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Reason refines execution failures.
	Reason ExecReason

	// ExitCode is the engine's exit status (execution failures only).
	ExitCode int

	// Stderr is the captured engine error stream, if any.
	Stderr string

	// Payload is the raw engine output that failed to parse.
	Payload string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Reason != "" {
		msg = fmt.Sprintf("%s: %s (reason=%s)", e.Code, e.Message, e.Reason)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Stderr != "" {
		msg += "\nengine stderr:\n" + e.Stderr
	}
	if e.Payload != "" {
		msg += "\nraw output:\n" + e.Payload
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// IsConfigError reports whether err is a settings-mapping failure.
// Uses errors.As to handle wrapped errors.
func IsConfigError(err error) bool { return hasCode(err, ErrCodeConfig) }

// IsStylesError reports whether err is a styles materialization failure.
func IsStylesError(err error) bool { return hasCode(err, ErrCodeStyles) }

// IsLifecycleError reports whether err is an operation on an unopened or
// closed sandbox.
func IsLifecycleError(err error) bool { return hasCode(err, ErrCodeLifecycle) }

// IsExecutionError reports whether err is an engine execution failure.
func IsExecutionError(err error) bool { return hasCode(err, ErrCodeExecution) }

// IsParseError reports whether err is a malformed-output failure.
func IsParseError(err error) bool { return hasCode(err, ErrCodeParse) }

func hasCode(err error, code ErrorCode) bool {
	var he *Error
	if errors.As(err, &he) {
		return he.Code == code
	}
	return false
}

func newConfigError(format string, args ...any) *Error {
	return &Error{Code: ErrCodeConfig, Message: fmt.Sprintf(format, args...)}
}

func newStylesError(format string, args ...any) *Error {
	return &Error{Code: ErrCodeStyles, Message: fmt.Sprintf(format, args...)}
}

func newLifecycleError(op string, state sandboxState) *Error {
	return &Error{
		Code:    ErrCodeLifecycle,
		Message: fmt.Sprintf("%s requires an active sandbox (state=%s)", op, state),
	}
}

func newExecutionError(reason ExecReason, msg string, err error) *Error {
	return &Error{Code: ErrCodeExecution, Message: msg, Reason: reason, Err: err}
}

func newParseError(payload []byte, err error) *Error {
	return &Error{
		Code:    ErrCodeParse,
		Message: "engine output is not valid JSON",
		Payload: string(payload),
		Err:     err,
	}
}
