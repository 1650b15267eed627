// Copyright 2024 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package compressmap

import (
	"encoding/binary"
	"reflect"

	"github.com/cockroachdb/errors"
)

// ValueCodec converts LazyMap values to and from the bytes kept in a Storage.
type ValueCodec[V any] interface {
	// Encode appends the encoding of v to dst and returns the extended slice.
	Encode(dst []byte, v V) ([]byte, error)
	// Decode returns the value encoded in b. The returned value must not
	// retain b, which is only valid for the duration of the call.
	Decode(b []byte) (V, error)
}

// BytesCodec stores byte slices verbatim.
type BytesCodec struct{}

var _ ValueCodec[[]byte] = BytesCodec{}

// Encode implements ValueCodec.
func (BytesCodec) Encode(dst []byte, v []byte) ([]byte, error) {
	return append(dst, v...), nil
}

// Decode implements ValueCodec.
func (BytesCodec) Decode(b []byte) ([]byte, error) {
	return append([]byte(nil), b...), nil
}

// StringCodec stores strings verbatim.
type StringCodec struct{}

var _ ValueCodec[string] = StringCodec{}

// Encode implements ValueCodec.
func (StringCodec) Encode(dst []byte, v string) ([]byte, error) {
	return append(dst, v...), nil
}

// Decode implements ValueCodec.
func (StringCodec) Decode(b []byte) (string, error) {
	return string(b), nil
}

// Uint64Codec stores uint64 values as 8 little-endian bytes.
type Uint64Codec struct{}

var _ ValueCodec[uint64] = Uint64Codec{}

// Encode implements ValueCodec.
func (Uint64Codec) Encode(dst []byte, v uint64) ([]byte, error) {
	return binary.LittleEndian.AppendUint64(dst, v), nil
}

// Decode implements ValueCodec.
func (Uint64Codec) Decode(b []byte) (uint64, error) {
	if len(b) != 8 {
		return 0, errors.Errorf("compressmap: uint64 value has %d bytes", errors.Safe(len(b)))
	}
	return binary.LittleEndian.Uint64(b), nil
}

// FixedCodec stores values of a fixed-size type (a fixed-size number, or an
// array or struct containing only fixed-size values) in little-endian binary
// layout.
type FixedCodec[T any] struct {
	size int
}

// NewFixedCodec returns a codec for T. It returns an error if T does not have
// a fixed-size binary layout.
func NewFixedCodec[T any]() (FixedCodec[T], error) {
	var zero T
	if !isFixedSize(reflect.TypeFor[T]()) {
		return FixedCodec[T]{}, errors.Errorf("compressmap: %T does not have a fixed size", zero)
	}
	size := binary.Size(zero)
	if size <= 0 {
		return FixedCodec[T]{}, errors.Errorf("compressmap: %T has an empty encoding", zero)
	}
	return FixedCodec[T]{size: size}, nil
}

// isFixedSize returns true if values of t always have the same binary
// encoding size. binary.Size reports the size of a slice value from its
// length, so it cannot tell a fixed layout from a variable one on its own.
func isFixedSize(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Bool,
		reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		return true
	case reflect.Array:
		return isFixedSize(t.Elem())
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			if !isFixedSize(t.Field(i).Type) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Size returns the encoded size of a value.
func (c FixedCodec[T]) Size() int {
	return c.size
}

// Encode implements ValueCodec.
func (c FixedCodec[T]) Encode(dst []byte, v T) ([]byte, error) {
	return binary.Append(dst, binary.LittleEndian, v)
}

// Decode implements ValueCodec.
func (c FixedCodec[T]) Decode(b []byte) (T, error) {
	var v T
	if len(b) != c.size {
		return v, errors.Errorf("compressmap: %T value has %d bytes, expected %d",
			v, errors.Safe(len(b)), errors.Safe(c.size))
	}
	_, err := binary.Decode(b, binary.LittleEndian, &v)
	return v, err
}
