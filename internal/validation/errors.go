// Package validation scans resume content for typesetting injection before
// any of it reaches a LaTeX source file.
package validation

import "fmt"

// Error represents a general validation error
type Error struct {
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("validation error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// InjectionError reports a resume field that matched an injection rule. It
// deliberately carries the field path and rule name only, never the
// offending text, so it is safe to surface to clients and logs.
type InjectionError struct {
	Field string
	Rule  string
}

func (e *InjectionError) Error() string {
	return fmt.Sprintf("potential typesetting injection in field %s (rule: %s)", e.Field, e.Rule)
}
