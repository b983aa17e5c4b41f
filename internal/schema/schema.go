// Package schema compiles per-action validation descriptors and checks
// request payloads against them. Descriptors are CUE struct sources, e.g.
//
//	{ id: string, quantity?: int & >=1 }
//
// Compilation happens once at catalog assembly; validation runs per request
// and reports field-level errors instead of failing on the first problem.
package schema

import (
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
)

// FieldError is one field-level validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e FieldError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// CompileError means a schema descriptor itself is malformed. This is a
// configuration mistake and is surfaced at assembly time, never per request.
type CompileError struct {
	Name    string // owning action or service name
	Message string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("schema for %q: %s", e.Name, e.Message)
}

// Schema is a compiled validation descriptor. Safe for concurrent use:
// cue.Value is immutable and the shared cue.Context is internally locked.
type Schema struct {
	name   string
	cuectx *cue.Context
	value  cue.Value
}

// Compile parses a CUE descriptor source. The name is used only for error
// reporting (typically "service.action").
func Compile(name, source string) (*Schema, error) {
	src := strings.TrimSpace(source)
	if src == "" {
		return nil, &CompileError{Name: name, Message: "empty schema source"}
	}

	cuectx := cuecontext.New()
	v := cuectx.CompileString(src)
	if err := v.Err(); err != nil {
		return nil, &CompileError{Name: name, Message: cueerrors.Details(err, nil)}
	}
	if k := v.IncompleteKind(); k != cue.StructKind {
		return nil, &CompileError{Name: name, Message: fmt.Sprintf("schema must be a struct, got %s", k)}
	}

	return &Schema{name: name, cuectx: cuectx, value: v}, nil
}

// Name returns the descriptor's owner name.
func (s *Schema) Name() string { return s.name }

// Validate unifies the payload with the compiled descriptor and returns all
// field errors found. A nil or empty slice means the payload is valid.
func (s *Schema) Validate(payload map[string]any) []FieldError {
	if payload == nil {
		payload = map[string]any{}
	}

	encoded := s.cuectx.Encode(payload)
	if err := encoded.Err(); err != nil {
		return []FieldError{{Message: fmt.Sprintf("payload not encodable: %v", err)}}
	}

	unified := s.value.Unify(encoded)
	err := unified.Validate(cue.Concrete(true), cue.Final())
	if err == nil {
		return nil
	}

	var fields []FieldError
	for _, e := range cueerrors.Errors(err) {
		fields = append(fields, FieldError{
			Field:   strings.Join(e.Path(), "."),
			Message: e.Error(),
		})
	}
	return fields
}
