package slicesync

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

// Codec bridges in-memory slice states and the document state field.
// Nil members fall back to DefaultCodec.
type Codec struct {
	Encode func(state any) (json.RawMessage, error)
	Decode func(raw json.RawMessage) (any, error)
	Equal  func(a, b any) bool
}

// DefaultCodec encodes with encoding/json, decodes into generic JSON values
// (map[string]any, []any, float64, ...) and compares states by their JSON
// encoding, so a typed state and its decoded generic form compare equal.
func DefaultCodec() Codec {
	return Codec{
		Encode: encodeJSON,
		Decode: func(raw json.RawMessage) (any, error) {
			var v any
			if err := json.Unmarshal(raw, &v); err != nil {
				return nil, fmt.Errorf("decode state: %w", err)
			}
			return v, nil
		},
		Equal: jsonEqual,
	}
}

// JSONCodec returns a codec for states of type T. Decoded states are T
// values and equality uses go-cmp, treating nil and empty slices and maps
// as equal. T must not have unexported fields unless it defines an Equal
// method; states that are not T are compared by JSON encoding.
func JSONCodec[T any]() Codec {
	return Codec{
		Encode: encodeJSON,
		Decode: func(raw json.RawMessage) (any, error) {
			var v T
			if err := json.Unmarshal(raw, &v); err != nil {
				return nil, fmt.Errorf("decode state: %w", err)
			}
			return v, nil
		},
		Equal: func(a, b any) bool {
			ta, okA := a.(T)
			tb, okB := b.(T)
			if okA && okB {
				return cmp.Equal(ta, tb, cmpopts.EquateEmpty())
			}
			return jsonEqual(a, b)
		},
	}
}

func (c Codec) withDefaults() Codec {
	d := DefaultCodec()
	if c.Encode == nil {
		c.Encode = d.Encode
	}
	if c.Decode == nil {
		c.Decode = d.Decode
	}
	if c.Equal == nil {
		c.Equal = d.Equal
	}
	return c
}

func (c Codec) isZero() bool {
	return c.Encode == nil && c.Decode == nil && c.Equal == nil
}

func encodeJSON(state any) (json.RawMessage, error) {
	b, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("encode state: %w", err)
	}
	return b, nil
}

// jsonEqual compares the canonical JSON encodings of a and b. Values that
// cannot be encoded are never equal to anything.
func jsonEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ea, err := canonicalJSON(a)
	if err != nil {
		return false
	}
	eb, err := canonicalJSON(b)
	if err != nil {
		return false
	}
	return bytes.Equal(ea, eb)
}

// canonicalJSON re-encodes v through a generic value so map keys are sorted
// and struct field order does not matter.
func canonicalJSON(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	return json.Marshal(generic)
}
