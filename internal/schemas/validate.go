// Package schemas provides JSON Schema validation for the files the CLI reads.
package schemas

import (
	"errors"
	"fmt"
	"strings"

	embedded "github.com/chrisschopp/anylogic-export/schemas"
	"github.com/xeipuuv/gojsonschema"
)

// ValidationError represents a schema validation error with field paths
type ValidationError struct {
	Source string
	Errors []FieldError
}

// FieldError represents a single validation error at a specific field
type FieldError struct {
	Field   string
	Message string
}

func (ve *ValidationError) Error() string {
	var sb strings.Builder
	if ve.Source != "" {
		sb.WriteString(fmt.Sprintf("validation of %s failed:\n", ve.Source))
	} else {
		sb.WriteString("validation failed:\n")
	}
	for i, err := range ve.Errors {
		sb.WriteString(fmt.Sprintf("  %d. %s: %s\n", i+1, err.Field, err.Message))
	}
	return sb.String()
}

// SchemaLoadError represents errors loading or parsing the schema itself
type SchemaLoadError struct {
	Name    string
	Message string
	Cause   error
}

func (e *SchemaLoadError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("failed to load schema %s: %s: %v", e.Name, e.Message, e.Cause)
	}
	return fmt.Sprintf("failed to load schema %s: %s", e.Name, e.Message)
}

func (e *SchemaLoadError) Unwrap() error {
	return e.Cause
}

// ValidateSource validates doc against the named embedded schema and names
// source in the resulting ValidationError.
func ValidateSource(schemaName, source string, doc []byte) error {
	err := ValidateBytes(schemaName, doc)
	var ve *ValidationError
	if errors.As(err, &ve) {
		ve.Source = source
	}
	return err
}

// ValidateBytes validates a JSON document against the named embedded schema.
func ValidateBytes(schemaName string, doc []byte) error {
	schema, err := embedded.Load(schemaName)
	if err != nil {
		return &SchemaLoadError{
			Name:    schemaName,
			Message: "not available (embedded: " + strings.Join(embedded.Names(), ", ") + ")",
			Cause:   err,
		}
	}
	return validate(schemaName, gojsonschema.NewBytesLoader(schema), gojsonschema.NewBytesLoader(doc))
}

func validate(name string, schemaLoader, documentLoader gojsonschema.JSONLoader) error {
	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return &SchemaLoadError{
			Name:    name,
			Message: "schema validation failed during load",
			Cause:   err,
		}
	}

	if result.Valid() {
		return nil
	}

	// Build structured error
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
