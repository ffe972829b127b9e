// Package validation checks inbound payloads against JSON schemas.
package validation

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// AskRequestSchema describes the body of POST /v1/ask and the variables of an
// answer-question job. Either text or audio_path must be present.
const AskRequestSchema = `{
	"type": "object",
	"properties": {
		"text":       {"type": "string", "maxLength": 4000},
		"audio_path": {"type": "string", "minLength": 1},
		"image_path": {"type": "string", "minLength": 1},
		"location":   {"type": "string", "maxLength": 200}
	},
	"anyOf": [
		{"required": ["text"]},
		{"required": ["audio_path"]}
	]
}`

// ReadingsSchema describes the variables of an analyze-conditions job.
const ReadingsSchema = `{
	"type": "object",
	"properties": {
		"weather": {"type": ["object", "null"]},
		"soil":    {"type": ["object", "null"]},
		"plant":   {"type": ["object", "null"]}
	}
}`

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Validator holds a compiled schema and is safe for concurrent use.
type Validator struct {
	schema *gojsonschema.Schema
}

func NewValidator(schemaJSON string) (*Validator, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schemaJSON))
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &Validator{schema: schema}, nil
}

// MustValidator panics on an invalid schema; for package-level schemas only.
func MustValidator(schemaJSON string) *Validator {
	v, err := NewValidator(schemaJSON)
	if err != nil {
		panic(err)
	}
	return v
}

// Validate checks a decoded document (map, struct or raw JSON bytes).
func (v *Validator) Validate(document interface{}) (*ValidationResult, error) {
	var loader gojsonschema.JSONLoader
	switch doc := document.(type) {
	case []byte:
		loader = gojsonschema.NewBytesLoader(doc)
	case string:
		loader = gojsonschema.NewStringLoader(doc)
	default:
		loader = gojsonschema.NewGoLoader(doc)
	}

	result, err := v.schema.Validate(loader)
	if err != nil {
		return nil, fmt.Errorf("validation error: %w", err)
	}

	out := &ValidationResult{Valid: result.Valid()}
	for _, desc := range result.Errors() {
		out.Errors = append(out.Errors, ValidationError{
			Field:   desc.Field(),
			Message: desc.Description(),
			Code:    strings.ToUpper(desc.Type()),
		})
	}
	return out, nil
}

// GetErrorMessages returns a simple list of error messages
func (vr *ValidationResult) GetErrorMessages() []string {
	messages := make([]string, len(vr.Errors))
	for i, err := range vr.Errors {
		messages[i] = fmt.Sprintf("%s: %s", err.Field, err.Message)
	}
	return messages
}

// HasErrors checks if validation has errors for specific field
func (vr *ValidationResult) HasErrors(field string) bool {
	for _, err := range vr.Errors {
		if err.Field == field {
			return true
		}
	}
	return false
}
