// Package tools is the tool registry and dispatcher, plus the built-in
// workspace and instruction tools.
package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/invopop/jsonschema"

	"github.com/starford/workspaces-mcp/internal/apperr"
)

// Tool is a named, schema-validated operation.
type Tool struct {
	Name        string
	Description string
	InputSchema json.RawMessage

	decode  func(args json.RawMessage) (any, error)
	execute func(ctx context.Context, args any) (string, error)
}

// Define builds a Tool whose arguments are decoded into T. The input schema
// is reflected from T; a T implementing validation.Validatable has its
// Validate method run after decoding.
func Define[T any](name, description string, handler func(ctx context.Context, args T) (string, error)) Tool {
	return Tool{
		Name:        name,
		Description: description,
		InputSchema: schemaFor[T](),
		decode: func(raw json.RawMessage) (any, error) {
			return decodeArgs[T](raw)
		},
		execute: func(ctx context.Context, args any) (string, error) {
			return handler(ctx, args.(T))
		},
	}
}

func schemaFor[T any]() json.RawMessage {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	schema := reflector.ReflectFromType(reflect.TypeOf((*T)(nil)).Elem())
	schema.Version = ""
	data, err := json.Marshal(schema)
	if err != nil {
		panic(fmt.Sprintf("tools: schema for %T: %v", *new(T), err))
	}
	return data
}

// decodeArgs decodes raw strictly into T: unknown fields, type mismatches
// and trailing data fail, then Validate runs.
func decodeArgs[T any](raw json.RawMessage) (T, error) {
	var args T
	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		raw = json.RawMessage("{}")
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&args); err != nil {
		return args, apperr.Wrap(apperr.KindSchemaValidationFailed, err, "invalid arguments")
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return args, apperr.New(apperr.KindSchemaValidationFailed, "invalid arguments: trailing data after object")
	}

	if v, ok := any(args).(validation.Validatable); ok {
		if err := v.Validate(); err != nil {
			return args, apperr.Wrap(apperr.KindSchemaValidationFailed, err, "invalid arguments")
		}
	}
	return args, nil
}
