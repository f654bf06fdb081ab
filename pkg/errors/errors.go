// Package errors defines the error taxonomy shared by every build stage and
// the query path, plus a stage-tagged wrapper used to report fatal failures.
package errors

import (
	"errors"
	"fmt"
)

var (
	ErrConfiguration     = errors.New("configuration error")
	ErrStorage           = errors.New("storage error")
	ErrResourceExhausted = errors.New("resource exhausted")
	ErrAlreadyFinalized  = errors.New("shard already finalized")
	ErrCorruptShard      = errors.New("corrupt shard file")
	ErrInvalidInput      = errors.New("invalid input")
)

// Exit codes reported by the command-line driver.
const (
	ExitOK            = 0
	ExitFailure       = 1
	ExitConfiguration = 2
	ExitStorage       = 3
)

// AppError tags a sentinel with the pipeline stage that raised it. Cause,
// when set, is the underlying failure and stays reachable through errors.Is
// and errors.As alongside the sentinel.
type AppError struct {
	Err     error
	Stage   string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	msg := e.Message
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	if e.Stage == "" {
		return fmt.Sprintf("%s: %s", e.Err.Error(), msg)
	}
	return fmt.Sprintf("%s: %s: %s", e.Stage, e.Err.Error(), msg)
}

func (e *AppError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}

func New(sentinel error, stage string, message string) *AppError {
	return &AppError{
		Err:     sentinel,
		Stage:   stage,
		Message: message,
	}
}

func Newf(sentinel error, stage string, format string, args ...any) *AppError {
	return &AppError{
		Err:     sentinel,
		Stage:   stage,
		Message: fmt.Sprintf(format, args...),
	}
}

// Storage wraps an I/O failure so that it satisfies errors.Is(err, ErrStorage).
func Storage(stage string, op string, err error) error {
	return &AppError{
		Err:     ErrStorage,
		Stage:   stage,
		Message: op,
		Cause:   err,
	}
}

// StageOf returns the stage recorded on the outermost AppError, or "".
func StageOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Stage
	}
	return ""
}

func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, ErrConfiguration):
		return ExitConfiguration
	case errors.Is(err, ErrStorage), errors.Is(err, ErrCorruptShard):
		return ExitStorage
	default:
		return ExitFailure
	}
}
