// Package templates loads template descriptors from ordered sources and
// exposes the merged template catalog.
package templates

import (
	"errors"
	"fmt"
)

// Sentinel errors for template and source operations.
var (
	// ErrTemplateNotFound indicates no source defines the requested template id.
	ErrTemplateNotFound = errors.New("template not found")

	// ErrFileNotFound indicates no source contains the requested file.
	ErrFileNotFound = errors.New("template file not found")

	// ErrInvalidSource indicates a malformed source specification.
	ErrInvalidSource = errors.New("invalid template source")

	// ErrInvalidPath indicates a path that is not a clean, relative, slash-separated path.
	ErrInvalidPath = errors.New("invalid template path")
)

// DescriptorError represents a descriptor that could not be loaded
type DescriptorError struct {
	Source  string
	Path    string
	Message string
	Cause   error
}

func (e *DescriptorError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("descriptor %s (%s): %s: %v", e.Path, e.Source, e.Message, e.Cause)
	}
	return fmt.Sprintf("descriptor %s (%s): %s", e.Path, e.Source, e.Message)
}

func (e *DescriptorError) Unwrap() error {
	return e.Cause
}
