package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// FieldWriter applies one field write to a destination entity.
//
// Implementations must be idempotent: writing the same (field, value) pair
// twice leaves the entity in the same observable state. Writes to the same
// entity from concurrent runs must be serialized by the implementation or
// by wrapping it in a SerializedWriter.
type FieldWriter interface {
	WriteField(ctx context.Context, entityID, fieldName string, value any) error
}

// FieldReader reads back the stored fields of an entity. Values are the
// canonical JSON encoding produced by EncodeFieldValue.
type FieldReader interface {
	ReadFields(ctx context.Context, entityID string) (map[string]string, error)
}

// FieldStore is a FieldWriter that can be read back and probed
type FieldStore interface {
	FieldWriter
	FieldReader
	// Name identifies the store implementation in logs and health output
	Name() string
	// Ping checks that the store is reachable
	Ping(ctx context.Context) error
}

// ValidateFieldWrite checks the identifying parts of a write
func ValidateFieldWrite(entityID, fieldName string) error {
	if strings.TrimSpace(entityID) == "" {
		return ErrEmptyEntityID
	}
	if strings.TrimSpace(fieldName) == "" {
		return ErrEmptyFieldName
	}
	return nil
}

// EncodeFieldValue renders a field value as canonical JSON text. Equal
// values always encode to equal text, which is what makes repeated writes
// idempotent at the storage layer.
func EncodeFieldValue(value any) (string, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFieldValueEncoding, err)
	}
	return string(data), nil
}
