// Package schemas embeds the JSON Schemas for renderer input documents.
package schemas

import _ "embed"

// Resume is the JSON Schema for resume input documents
//
//go:embed resume.schema.json
var Resume []byte
