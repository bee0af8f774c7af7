// Package rendering turns a validated resume into LaTeX source using cached
// template groups and translation bundles.
package rendering

import (
	"errors"
	"fmt"
)

// ErrMissingEntryPoint indicates a template group without a "resume" template
var ErrMissingEntryPoint = errors.New("template group has no entry point")

// ErrBundleNotFound indicates that not even the default locale has a translation bundle
var ErrBundleNotFound = errors.New("translation bundle not found")

// TemplateError represents an error loading, parsing or executing a LaTeX template
type TemplateError struct {
	Path    string
	Message string
	Cause   error
}

func (e *TemplateError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("template error: %s (%s): %v", e.Message, e.Path, e.Cause)
	}
	return fmt.Sprintf("template error: %s (%s)", e.Message, e.Path)
}

func (e *TemplateError) Unwrap() error {
	return e.Cause
}

// RenderError represents a general rendering failure
type RenderError struct {
	Message string
	Cause   error
}

func (e *RenderError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("render error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("render error: %s", e.Message)
}

func (e *RenderError) Unwrap() error {
	return e.Cause
}
