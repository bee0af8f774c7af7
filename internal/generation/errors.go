// Package generation turns a template id and a resume into a PDF stream. It
// is the only entry point callers use and the only place pipeline failures
// are mapped to the public error taxonomy.
package generation

import (
	"errors"
	"fmt"

	"github.com/jonathan/resume-renderer/internal/types"
)

// Kind classifies a generation failure
type Kind string

const (
	KindTemplateNotFound     Kind = "TEMPLATE_NOT_FOUND"
	KindTemplateAccessDenied Kind = "TEMPLATE_ACCESS_DENIED"
	KindInjectionDetected    Kind = "INJECTION_DETECTED"
	KindRenderingError       Kind = "RENDERING_ERROR"
	KindCompilationFailed    Kind = "COMPILATION_FAILED"
	KindCompilationTimeout   Kind = "COMPILATION_TIMEOUT"
)

// Sentinels for errors.Is. They match any *Error of the same kind.
var (
	ErrTemplateNotFound     = &Error{Kind: KindTemplateNotFound}
	ErrTemplateAccessDenied = &Error{Kind: KindTemplateAccessDenied}
	ErrInjectionDetected    = &Error{Kind: KindInjectionDetected}
	ErrRenderingError       = &Error{Kind: KindRenderingError}
	ErrCompilationFailed    = &Error{Kind: KindCompilationFailed}
	ErrCompilationTimeout   = &Error{Kind: KindCompilationTimeout}
)

// Error is a classified generation failure. Error() is for operators and
// may include internal causes; PublicMessage() is safe to return to clients.
// None of these failures are retried here.
type Error struct {
	Kind       Kind
	TemplateID string

	// RequiredTier and ActualTier are set for KindTemplateAccessDenied
	RequiredTier types.Tier
	ActualTier   types.Tier

	// Field and Rule are set for KindInjectionDetected
	Field string
	Rule  string

	Cause error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("generation failed: %s", e.Kind)
	if e.TemplateID != "" {
		msg += fmt.Sprintf(" (template %q)", e.TemplateID)
	}
	if e.Kind == KindTemplateAccessDenied {
		msg += fmt.Sprintf(": requires %s, caller has %s", e.RequiredTier, e.ActualTier)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches on kind only, so errors.Is(err, ErrCompilationTimeout) works
// for any timeout regardless of template or cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// PublicMessage returns a client-safe description. It never includes
// compiler diagnostics, internal paths or the rejected content.
func (e *Error) PublicMessage() string {
	switch e.Kind {
	case KindTemplateNotFound:
		return fmt.Sprintf("Template %q does not exist.", e.TemplateID)
	case KindTemplateAccessDenied:
		return fmt.Sprintf("Template %q requires a %s subscription; your plan is %s.", e.TemplateID, e.RequiredTier, e.ActualTier)
	case KindInjectionDetected:
		if e.Field != "" {
			return fmt.Sprintf("The field %s contains content that is not allowed.", e.Field)
		}
		return "The resume contains content that is not allowed."
	case KindCompilationTimeout:
		return "PDF generation took too long. Please try again later."
	default:
		return "PDF generation failed due to an internal error."
	}
}

// KindOf returns the kind of the first *Error in err's chain
func KindOf(err error) (Kind, bool) {
	var genErr *Error
	if errors.As(err, &genErr) {
		return genErr.Kind, true
	}
	return "", false
}
