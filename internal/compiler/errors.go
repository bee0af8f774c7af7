// Package compiler compiles LaTeX source to PDF inside ephemeral, locked-down
// containers and guarantees every container is removed afterwards.
package compiler

import (
	"errors"
	"fmt"
	"time"
)

// ErrImageUnavailable indicates the compiler image is absent and could not be pulled
var ErrImageUnavailable = errors.New("compiler image unavailable")

// CompilationError represents a failed compilation. LogOutput holds a
// bounded tail of the tool's diagnostics for operators and must not be
// shown to end users.
type CompilationError struct {
	JobID     string
	Message   string
	ExitCode  int64
	LogOutput string
	Cause     error
}

func (e *CompilationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("compilation error (job %s): %s: %v", e.JobID, e.Message, e.Cause)
	}
	return fmt.Sprintf("compilation error (job %s): %s", e.JobID, e.Message)
}

func (e *CompilationError) Unwrap() error {
	return e.Cause
}

// TimeoutError indicates a compilation job exceeded its deadline
type TimeoutError struct {
	JobID   string
	Timeout time.Duration
	Cause   error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("compilation timed out (job %s) after %s", e.JobID, e.Timeout.Round(time.Millisecond))
}

func (e *TimeoutError) Unwrap() error {
	return e.Cause
}

// StateError reports an illegal job state transition
type StateError struct {
	JobID string
	From  State
	To    State
}

func (e *StateError) Error() string {
	return fmt.Sprintf("job %s: illegal state transition %s -> %s", e.JobID, e.From, e.To)
}
