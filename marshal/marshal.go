//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Copyright (C) 2025 Aaron Mathis aaron.mathis@gmail.com
//
// This file is part of GoUDAF.
//
// GoUDAF is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// GoUDAF is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with GoUDAF. If not, see https://www.gnu.org/licenses/.

// Package marshal converts values between Arrow and the script VM.
//
// Arrow arrays become JS arrays (nulls become null), and JS values returned by
// user code become Arrow scalars of a declared type. Every function that takes
// a *goja.Runtime or a goja.Value must run under script.Do.
package marshal

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/apache/arrow/go/v12/arrow"
	"github.com/apache/arrow/go/v12/arrow/array"
	"github.com/apache/arrow/go/v12/arrow/memory"
	"github.com/apache/arrow/go/v12/arrow/scalar"
	"github.com/dop251/goja"
)

var (
	// ErrUnsupportedType is returned for Arrow types with no JS mapping.
	ErrUnsupportedType = errors.New("unsupported type")
	// ErrTypeMismatch is returned when a value does not fit its declared type.
	ErrTypeMismatch = errors.New("type mismatch")
)

// ConversionError reports a failed Arrow <-> JS conversion.
type ConversionError struct {
	Op  string // "to_native", "from_native", "to_array"
	Err error
}

// Error returns the error string for ConversionError.
func (e *ConversionError) Error() string {
	return fmt.Sprintf("marshal %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for ConversionError.
func (e *ConversionError) Unwrap() error {
	return e.Err
}

// ToNative converts arr into a JS array. When expected is not nil the array
// must be of exactly that type.
func ToNative(vm *goja.Runtime, arr arrow.Array, expected arrow.DataType) (goja.Value, error) {
	if expected != nil && !arrow.TypeEqual(arr.DataType(), expected) {
		return nil, &ConversionError{
			Op:  "to_native",
			Err: fmt.Errorf("%w: expected %s, got %s", ErrTypeMismatch, expected, arr.DataType()),
		}
	}

	items := make([]interface{}, arr.Len())
	for i := range items {
		if arr.IsNull(i) {
			items[i] = nil
			continue
		}
		v, err := nativeValue(vm, arr, i)
		if err != nil {
			return nil, &ConversionError{Op: "to_native", Err: err}
		}
		items[i] = v
	}
	return vm.NewArray(items...), nil
}

func nativeValue(vm *goja.Runtime, col arrow.Array, i int) (interface{}, error) {
	switch arr := col.(type) {
	case *array.Boolean:
		return arr.Value(i), nil
	case *array.Int8:
		return arr.Value(i), nil
	case *array.Int16:
		return arr.Value(i), nil
	case *array.Int32:
		return arr.Value(i), nil
	case *array.Int64:
		return arr.Value(i), nil
	case *array.Uint8:
		return arr.Value(i), nil
	case *array.Uint16:
		return arr.Value(i), nil
	case *array.Uint32:
		return arr.Value(i), nil
	case *array.Uint64:
		return arr.Value(i), nil
	case *array.Float32:
		return arr.Value(i), nil
	case *array.Float64:
		return arr.Value(i), nil
	case *array.String:
		return arr.Value(i), nil
	case *array.Binary:
		// Value aliases the Arrow buffer; the VM gets its own copy.
		b := append([]byte(nil), arr.Value(i)...)
		return vm.NewArrayBuffer(b), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, col.DataType())
	}
}

// FromNative converts a JS value to a scalar of type dt. null and undefined
// become a null scalar.
func FromNative(v goja.Value, dt arrow.DataType) (scalar.Scalar, error) {
	sc, err := fromNative(v, dt)
	if err != nil {
		return nil, &ConversionError{Op: "from_native", Err: err}
	}
	return sc, nil
}

// FromNativeSequence converts a JS array to one scalar per entry of types.
// The array length must equal len(types).
func FromNativeSequence(v goja.Value, types []arrow.DataType) ([]scalar.Scalar, error) {
	obj, ok := v.(*goja.Object)
	if !ok || obj.ClassName() != "Array" {
		return nil, &ConversionError{
			Op:  "from_native",
			Err: fmt.Errorf("%w: expected an array of %d values, got %s", ErrTypeMismatch, len(types), describe(v)),
		}
	}

	n := obj.Get("length").ToInteger()
	if n != int64(len(types)) {
		return nil, &ConversionError{
			Op:  "from_native",
			Err: fmt.Errorf("%w: expected %d values, got %d", ErrTypeMismatch, len(types), n),
		}
	}

	out := make([]scalar.Scalar, len(types))
	for i, dt := range types {
		sc, err := fromNative(obj.Get(strconv.Itoa(i)), dt)
		if err != nil {
			return nil, &ConversionError{Op: "from_native", Err: fmt.Errorf("element %d: %w", i, err)}
		}
		out[i] = sc
	}
	return out, nil
}

func fromNative(v goja.Value, dt arrow.DataType) (scalar.Scalar, error) {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return scalar.MakeNullScalar(dt), nil
	}
	exported := v.Export()

	switch dt.ID() {
	case arrow.BOOL:
		b, ok := exported.(bool)
		if !ok {
			return nil, mismatch(dt, v)
		}
		return scalar.NewBooleanScalar(b), nil
	case arrow.INT8:
		n, err := toInt(exported, math.MinInt8, math.MaxInt8, dt, v)
		if err != nil {
			return nil, err
		}
		return scalar.NewInt8Scalar(int8(n)), nil
	case arrow.INT16:
		n, err := toInt(exported, math.MinInt16, math.MaxInt16, dt, v)
		if err != nil {
			return nil, err
		}
		return scalar.NewInt16Scalar(int16(n)), nil
	case arrow.INT32:
		n, err := toInt(exported, math.MinInt32, math.MaxInt32, dt, v)
		if err != nil {
			return nil, err
		}
		return scalar.NewInt32Scalar(int32(n)), nil
	case arrow.INT64:
		n, err := toInt(exported, math.MinInt64, math.MaxInt64, dt, v)
		if err != nil {
			return nil, err
		}
		return scalar.NewInt64Scalar(n), nil
	case arrow.UINT8:
		n, err := toUint(exported, math.MaxUint8, dt, v)
		if err != nil {
			return nil, err
		}
		return scalar.NewUint8Scalar(uint8(n)), nil
	case arrow.UINT16:
		n, err := toUint(exported, math.MaxUint16, dt, v)
		if err != nil {
			return nil, err
		}
		return scalar.NewUint16Scalar(uint16(n)), nil
	case arrow.UINT32:
		n, err := toUint(exported, math.MaxUint32, dt, v)
		if err != nil {
			return nil, err
		}
		return scalar.NewUint32Scalar(uint32(n)), nil
	case arrow.UINT64:
		n, err := toUint(exported, math.MaxUint64, dt, v)
		if err != nil {
			return nil, err
		}
		return scalar.NewUint64Scalar(n), nil
	case arrow.FLOAT32:
		f, ok := toFloat(exported)
		if !ok {
			return nil, mismatch(dt, v)
		}
		return scalar.NewFloat32Scalar(float32(f)), nil
	case arrow.FLOAT64:
		f, ok := toFloat(exported)
		if !ok {
			return nil, mismatch(dt, v)
		}
		return scalar.NewFloat64Scalar(f), nil
	case arrow.STRING:
		s, ok := exported.(string)
		if !ok {
			return nil, mismatch(dt, v)
		}
		return scalar.NewStringScalar(s), nil
	case arrow.BINARY:
		switch b := exported.(type) {
		case goja.ArrayBuffer:
			return scalar.NewBinaryScalar(memory.NewBufferBytes(append([]byte(nil), b.Bytes()...)), dt), nil
		case string:
			return scalar.NewBinaryScalar(memory.NewBufferBytes([]byte(b)), dt), nil
		default:
			return nil, mismatch(dt, v)
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, dt)
	}
}

func toInt(exported interface{}, min, max int64, dt arrow.DataType, v goja.Value) (int64, error) {
	var n int64
	switch x := exported.(type) {
	case int64:
		n = x
	case float64:
		if x != math.Trunc(x) || x < math.MinInt64 || x >= math.MaxInt64 {
			return 0, mismatch(dt, v)
		}
		n = int64(x)
	default:
		return 0, mismatch(dt, v)
	}
	if n < min || n > max {
		return 0, fmt.Errorf("%w: %d out of range for %s", ErrTypeMismatch, n, dt)
	}
	return n, nil
}

func toUint(exported interface{}, max uint64, dt arrow.DataType, v goja.Value) (uint64, error) {
	var n uint64
	switch x := exported.(type) {
	case int64:
		if x < 0 {
			return 0, fmt.Errorf("%w: %d out of range for %s", ErrTypeMismatch, x, dt)
		}
		n = uint64(x)
	case float64:
		if x != math.Trunc(x) || x < 0 || x >= math.MaxUint64 {
			return 0, mismatch(dt, v)
		}
		n = uint64(x)
	default:
		return 0, mismatch(dt, v)
	}
	if n > max {
		return 0, fmt.Errorf("%w: %d out of range for %s", ErrTypeMismatch, n, dt)
	}
	return n, nil
}

func toFloat(exported interface{}) (float64, bool) {
	switch x := exported.(type) {
	case int64:
		return float64(x), true
	case float64:
		return x, true
	default:
		return 0, false
	}
}

func mismatch(dt arrow.DataType, v goja.Value) error {
	return fmt.Errorf("%w: cannot convert %s to %s", ErrTypeMismatch, describe(v), dt)
}

func describe(v goja.Value) string {
	if v == nil {
		return "undefined"
	}
	if obj, ok := v.(*goja.Object); ok {
		return obj.ClassName()
	}
	return fmt.Sprintf("%q", v.String())
}
