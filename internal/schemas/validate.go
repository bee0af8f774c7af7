// Package schemas validates input documents against the embedded JSON Schemas
// and decodes them into domain types.
package schemas

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"github.com/jonathan/resume-renderer/internal/types"
	"github.com/jonathan/resume-renderer/schemas"
)

// ValidationError represents a schema validation error with field paths
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a single validation error at a specific field
type FieldError struct {
	Field   string
	Message string
}

func (ve *ValidationError) Error() string {
	var sb strings.Builder
	sb.WriteString("validation failed:\n")
	for i, err := range ve.Errors {
		sb.WriteString(fmt.Sprintf("  %d. %s: %s\n", i+1, err.Field, err.Message))
	}
	return sb.String()
}

// SchemaLoadError represents errors loading or parsing the schema itself
type SchemaLoadError struct {
	Path    string
	Message string
	Cause   error
}

func (e *SchemaLoadError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("failed to load schema %s: %s: %v", e.Path, e.Message, e.Cause)
	}
	return fmt.Sprintf("failed to load schema %s: %s", e.Path, e.Message)
}

func (e *SchemaLoadError) Unwrap() error {
	return e.Cause
}

// DocumentError represents a document that is not well-formed JSON
type DocumentError struct {
	Path  string
	Cause error
}

func (e *DocumentError) Error() string {
	return fmt.Sprintf("failed to parse document %s: %v", e.Path, e.Cause)
}

func (e *DocumentError) Unwrap() error {
	return e.Cause
}

var resumeSchema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schemas.Resume))
})

// ValidateResume validates a JSON resume document against the embedded schema
func ValidateResume(data []byte) error {
	schema, err := resumeSchema()
	if err != nil {
		return &SchemaLoadError{Path: "resume.schema.json", Message: "embedded schema does not compile", Cause: err}
	}
	return validate(schema, "(resume)", data)
}

// ValidateBytes validates document content against schema content
func ValidateBytes(schemaContent, document []byte) error {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schemaContent))
	if err != nil {
		return &SchemaLoadError{Path: "(bytes schema)", Message: "schema validation failed during load", Cause: err}
	}
	return validate(schema, "(document)", document)
}

// LoadResume reads, validates and decodes a resume JSON file
func LoadResume(path string) (*types.Resume, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read resume file %s: %w", path, err)
	}
	return DecodeResume(path, data)
}

// DecodeResume validates and decodes resume JSON. name is used in errors.
func DecodeResume(name string, data []byte) (*types.Resume, error) {
	schema, err := resumeSchema()
	if err != nil {
		return nil, &SchemaLoadError{Path: "resume.schema.json", Message: "embedded schema does not compile", Cause: err}
	}
	if err := validate(schema, name, data); err != nil {
		return nil, err
	}

	var resume types.Resume
	if err := json.Unmarshal(data, &resume); err != nil {
		return nil, &DocumentError{Path: name, Cause: err}
	}
	return &resume, nil
}

func validate(schema *gojsonschema.Schema, name string, data []byte) error {
	if !json.Valid(data) {
		var v any
		return &DocumentError{Path: name, Cause: json.Unmarshal(data, &v)}
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return &DocumentError{Path: name, Cause: err}
	}
	if result.Valid() {
		return nil
	}

	validationErr := &ValidationError{
		Errors: make([]FieldError, 0, len(result.Errors())),
	}
	for _, desc := range result.Errors() {
		field := desc.Field()
		if field == "" {
			field = "(root)"
		}
		validationErr.Errors = append(validationErr.Errors, FieldError{
			Field:   field,
			Message: desc.Description(),
		})
	}
	return validationErr
}
