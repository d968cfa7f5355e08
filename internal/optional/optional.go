// Package optional provides a value that is either present or absent.
//
// Telemetry fields are independently optional: a platform may not support a
// metric, or a single read may fail. Using an explicit presence flag instead of
// a zero sentinel keeps "absent" distinct from "measured as zero", which matters
// when averaging.
package optional

import (
	"bytes"
	"encoding/json"
)

var jsonNull = []byte("null")

// Value holds either a present T or nothing. The zero Value is absent.
type Value[T any] struct {
	value T
	ok    bool
}

// Of returns a present Value holding v.
func Of[T any](v T) Value[T] {
	return Value[T]{value: v, ok: true}
}

// None returns an absent Value.
func None[T any]() Value[T] {
	return Value[T]{}
}

// FromPtr returns a present Value if p is non-nil.
func FromPtr[T any](p *T) Value[T] {
	if p == nil {
		return None[T]()
	}
	return Of(*p)
}

// Get returns the held value and whether it is present.
func (v Value[T]) Get() (T, bool) {
	return v.value, v.ok
}

// IsPresent reports whether a value is held.
func (v Value[T]) IsPresent() bool {
	return v.ok
}

// OrElse returns the held value, or fallback if absent.
func (v Value[T]) OrElse(fallback T) T {
	if !v.ok {
		return fallback
	}
	return v.value
}

// MarshalJSON encodes an absent value as null.
func (v Value[T]) MarshalJSON() ([]byte, error) {
	if !v.ok {
		return jsonNull, nil
	}
	return json.Marshal(v.value)
}

// UnmarshalJSON decodes null as absent.
func (v *Value[T]) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), jsonNull) {
		*v = None[T]()
		return nil
	}

	var value T
	if err := json.Unmarshal(data, &value); err != nil {
		return err
	}
	*v = Of(value)

	return nil
}
