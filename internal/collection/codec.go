package collection

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Codec converts a collection to its stored form and back.
//
// Decode never fails: an absent, malformed or schema-violating value decodes to an empty
// collection. OnCorrupt, when set, is told why a non-empty value was discarded.
type Codec[T any] struct {
	schema    *jsonschema.Schema
	OnCorrupt func(err error)
}

// NewCodec builds a codec that validates stored values against the given JSON schema.
// An empty schema disables validation beyond JSON well-formedness.
func NewCodec[T any](name, schema string) (*Codec[T], error) {
	codec := &Codec[T]{}
	if schema == "" {
		return codec, nil
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, bytes.NewReader([]byte(schema))); err != nil {
		return nil, fmt.Errorf("add schema %s: %w", name, err)
	}
	compiled, err := compiler.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", name, err)
	}
	codec.schema = compiled
	return codec, nil
}

// MustCodec is NewCodec for compile-time constant schemas.
func MustCodec[T any](name, schema string) *Codec[T] {
	codec, err := NewCodec[T](name, schema)
	if err != nil {
		panic(err)
	}
	return codec
}

// Encode serialises records. A nil slice encodes as an empty array.
func (c *Codec[T]) Encode(records []T) ([]byte, error) {
	if records == nil {
		records = []T{}
	}
	return json.Marshal(records)
}

// Decode parses a stored value, returning an empty collection for anything unusable.
func (c *Codec[T]) Decode(raw []byte) []T {
	records, err := c.decode(raw)
	if err != nil {
		if c.OnCorrupt != nil {
			c.OnCorrupt(err)
		}
		return []T{}
	}
	return records
}

func (c *Codec[T]) decode(raw []byte) ([]T, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return []T{}, nil
	}

	if c.schema != nil {
		decoder := json.NewDecoder(bytes.NewReader(trimmed))
		decoder.UseNumber()
		var document interface{}
		if err := decoder.Decode(&document); err != nil {
			return nil, fmt.Errorf("parse stored collection: %w", err)
		}
		if err := c.schema.Validate(document); err != nil {
			return nil, fmt.Errorf("stored collection violates schema: %w", err)
		}
	}

	var records []T
	if err := json.Unmarshal(trimmed, &records); err != nil {
		return nil, fmt.Errorf("decode stored collection: %w", err)
	}
	if records == nil {
		records = []T{}
	}
	return records, nil
}
