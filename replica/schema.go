package replica

import (
	"fmt"
	"reflect"

	"github.com/go-playground/validator/v10"
)

// Schema validates a decoded payload value for one event kind.
// Implementations are free to be as strict or as permissive as the
// application needs; Validate returning a non-nil error fails the
// submitting commit synchronously with a ValidationError.
type Schema interface {
	Validate(payload any) error
}

// sharedValidator is safe for concurrent use across all StructSchema
// instances - go-playground/validator documents Validate as
// goroutine-safe once struct-level caching has warmed up.
var sharedValidator = validator.New(validator.WithRequiredStructEnabled())

// StructSchema validates a payload by requiring it to be exactly a
// particular struct type, then running that struct through
// go-playground/validator's `validate:"..."` struct tags.
type StructSchema struct {
	// Shape is a zero-value instance of the expected payload struct
	// type, e.g. IncrementPayload{}. Payloads of any other concrete
	// type are rejected without running field validation.
	Shape any
}

// NewStructSchema returns a Schema requiring payloads to be of the
// same concrete type as shape and to pass its validate tags.
func NewStructSchema(shape any) StructSchema {
	return StructSchema{Shape: shape}
}

func (s StructSchema) Validate(payload any) error {
	want := reflect.TypeOf(s.Shape)
	got := reflect.TypeOf(payload)
	if want != got {
		return fmt.Errorf("expected payload of type %v, got %v", want, got)
	}
	if err := sharedValidator.Struct(payload); err != nil {
		return fmt.Errorf("payload failed validation: %w", err)
	}
	return nil
}

// AnySchema accepts every payload without inspection. Useful for
// event kinds whose materializer does its own interpretation of an
// untyped payload (e.g. map[string]any).
type AnySchema struct{}

func (AnySchema) Validate(any) error { return nil }
