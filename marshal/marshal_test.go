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

package marshal

import (
	"errors"
	"testing"

	"github.com/apache/arrow/go/v12/arrow"
	"github.com/apache/arrow/go/v12/arrow/array"
	"github.com/apache/arrow/go/v12/arrow/memory"
	"github.com/apache/arrow/go/v12/arrow/scalar"
	"github.com/dop251/goja"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These tests own a private VM and never share it across goroutines, so they
// do not need the interpreter lock.

func TestToNative_Int64WithNulls(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	b := array.NewInt64Builder(mem)
	defer b.Release()
	b.AppendValues([]int64{1, 0, 3}, []bool{true, false, true})
	arr := b.NewArray()
	defer arr.Release()

	vm := goja.New()
	v, err := ToNative(vm, arr, arrow.PrimitiveTypes.Int64)
	require.NoError(t, err)

	require.NoError(t, vm.Set("xs", v))
	res, err := vm.RunString(`xs.length + ":" + xs[0] + ":" + xs[1] + ":" + xs[2]`)
	require.NoError(t, err)
	assert.Equal(t, "3:1:null:3", res.String())
}

func TestToNative_Types(t *testing.T) {
	mem := memory.NewGoAllocator()
	vm := goja.New()

	tests := []struct {
		name   string
		build  func() arrow.Array
		script string
		want   string
	}{
		{
			name: "bool",
			build: func() arrow.Array {
				b := array.NewBooleanBuilder(mem)
				defer b.Release()
				b.AppendValues([]bool{true, false}, nil)
				return b.NewArray()
			},
			script: `typeof xs[0] + ":" + xs[0] + ":" + xs[1]`,
			want:   "boolean:true:false",
		},
		{
			name: "float64",
			build: func() arrow.Array {
				b := array.NewFloat64Builder(mem)
				defer b.Release()
				b.AppendValues([]float64{1.5, 2.25}, nil)
				return b.NewArray()
			},
			script: `String(xs[0] + xs[1])`,
			want:   "3.75",
		},
		{
			name: "uint32",
			build: func() arrow.Array {
				b := array.NewUint32Builder(mem)
				defer b.Release()
				b.AppendValues([]uint32{7, 8}, nil)
				return b.NewArray()
			},
			script: `String(xs[0] * xs[1])`,
			want:   "56",
		},
		{
			name: "string",
			build: func() arrow.Array {
				b := array.NewStringBuilder(mem)
				defer b.Release()
				b.AppendValues([]string{"a", "b"}, nil)
				return b.NewArray()
			},
			script: `xs.join("-")`,
			want:   "a-b",
		},
		{
			name: "binary",
			build: func() arrow.Array {
				b := array.NewBinaryBuilder(mem, arrow.BinaryTypes.Binary)
				defer b.Release()
				b.Append([]byte{1, 2, 3})
				return b.NewArray()
			},
			script: `String(xs[0] instanceof ArrayBuffer) + ":" + xs[0].byteLength`,
			want:   "true:3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			arr := tt.build()
			defer arr.Release()

			v, err := ToNative(vm, arr, nil)
			require.NoError(t, err)
			require.NoError(t, vm.Set("xs", v))

			res, err := vm.RunString(tt.script)
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.String())
		})
	}
}

func TestToNative_TypeMismatch(t *testing.T) {
	mem := memory.NewGoAllocator()
	b := array.NewStringBuilder(mem)
	defer b.Release()
	b.Append("x")
	arr := b.NewArray()
	defer arr.Release()

	_, err := ToNative(goja.New(), arr, arrow.PrimitiveTypes.Int64)
	require.Error(t, err)

	var convErr *ConversionError
	require.True(t, errors.As(err, &convErr))
	assert.Equal(t, "to_native", convErr.Op)
	assert.ErrorIs(t, err, ErrTypeMismatch)
}

func TestToNative_UnsupportedType(t *testing.T) {
	mem := memory.NewGoAllocator()
	b := array.NewDate32Builder(mem)
	defer b.Release()
	b.Append(arrow.Date32(1))
	arr := b.NewArray()
	defer arr.Release()

	_, err := ToNative(goja.New(), arr, nil)
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestFromNative(t *testing.T) {
	vm := goja.New()

	tests := []struct {
		name    string
		script  string
		dt      arrow.DataType
		want    scalar.Scalar
		wantErr error
	}{
		{"int64", `15`, arrow.PrimitiveTypes.Int64, scalar.NewInt64Scalar(15), nil},
		{"int64 from integral float", `3.0 * 5`, arrow.PrimitiveTypes.Int64, scalar.NewInt64Scalar(15), nil},
		{"int64 rejects fraction", `1.5`, arrow.PrimitiveTypes.Int64, nil, ErrTypeMismatch},
		{"int8 overflow", `300`, arrow.PrimitiveTypes.Int8, nil, ErrTypeMismatch},
		{"uint16", `65535`, arrow.PrimitiveTypes.Uint16, scalar.NewUint16Scalar(65535), nil},
		{"uint rejects negative", `-1`, arrow.PrimitiveTypes.Uint32, nil, ErrTypeMismatch},
		{"float64", `0.5`, arrow.PrimitiveTypes.Float64, scalar.NewFloat64Scalar(0.5), nil},
		{"float32 from int", `2`, arrow.PrimitiveTypes.Float32, scalar.NewFloat32Scalar(2), nil},
		{"bool", `true`, arrow.FixedWidthTypes.Boolean, scalar.NewBooleanScalar(true), nil},
		{"string", `"abc"`, arrow.BinaryTypes.String, scalar.NewStringScalar("abc"), nil},
		{"string rejects number", `1`, arrow.BinaryTypes.String, nil, ErrTypeMismatch},
		{"null", `null`, arrow.PrimitiveTypes.Int64, scalar.MakeNullScalar(arrow.PrimitiveTypes.Int64), nil},
		{"undefined", `undefined`, arrow.BinaryTypes.String, scalar.MakeNullScalar(arrow.BinaryTypes.String), nil},
		{"unsupported", `1`, arrow.FixedWidthTypes.Date32, nil, ErrUnsupportedType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := vm.RunString(tt.script)
			require.NoError(t, err)

			got, err := FromNative(v, tt.dt)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.True(t, scalar.Equals(tt.want, got), "want %s, got %s", tt.want, got)
		})
	}
}

func TestFromNative_Binary(t *testing.T) {
	vm := goja.New()
	v, err := vm.RunString(`new Uint8Array([104, 105]).buffer`)
	require.NoError(t, err)

	got, err := FromNative(v, arrow.BinaryTypes.Binary)
	require.NoError(t, err)
	bin, ok := got.(*scalar.Binary)
	require.True(t, ok)
	assert.Equal(t, []byte("hi"), bin.Data())
}

func TestFromNativeSequence(t *testing.T) {
	vm := goja.New()
	types := []arrow.DataType{arrow.PrimitiveTypes.Int64, arrow.PrimitiveTypes.Float64}

	t.Run("matching", func(t *testing.T) {
		v, err := vm.RunString(`[4, 2.5]`)
		require.NoError(t, err)

		got, err := FromNativeSequence(v, types)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.True(t, scalar.Equals(scalar.NewInt64Scalar(4), got[0]))
		assert.True(t, scalar.Equals(scalar.NewFloat64Scalar(2.5), got[1]))
	})

	t.Run("wrong length", func(t *testing.T) {
		v, err := vm.RunString(`[4]`)
		require.NoError(t, err)

		_, err = FromNativeSequence(v, types)
		assert.ErrorIs(t, err, ErrTypeMismatch)
	})

	t.Run("not an array", func(t *testing.T) {
		v, err := vm.RunString(`42`)
		require.NoError(t, err)

		_, err = FromNativeSequence(v, types)
		assert.ErrorIs(t, err, ErrTypeMismatch)
	})

	t.Run("bad element", func(t *testing.T) {
		v, err := vm.RunString(`["x", 1]`)
		require.NoError(t, err)

		_, err = FromNativeSequence(v, types)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "element 0")
	})
}

func TestToArray(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	t.Run("rows", func(t *testing.T) {
		arr, err := ToArray(mem, []scalar.Scalar{
			scalar.NewInt64Scalar(6),
			scalar.MakeNullScalar(arrow.PrimitiveTypes.Int64),
			scalar.NewInt64Scalar(9),
		}, arrow.PrimitiveTypes.Int64)
		require.NoError(t, err)
		defer arr.Release()

		ints := arr.(*array.Int64)
		require.Equal(t, 3, ints.Len())
		assert.Equal(t, int64(6), ints.Value(0))
		assert.True(t, ints.IsNull(1))
		assert.Equal(t, int64(9), ints.Value(2))
	})

	t.Run("single row", func(t *testing.T) {
		arr, err := ToArray(mem, []scalar.Scalar{scalar.NewInt64Scalar(15)}, arrow.PrimitiveTypes.Int64)
		require.NoError(t, err)
		defer arr.Release()
		assert.Equal(t, int64(15), arr.(*array.Int64).Value(0))
	})

	t.Run("empty", func(t *testing.T) {
		arr, err := ToArray(mem, nil, arrow.PrimitiveTypes.Int64)
		require.NoError(t, err)
		defer arr.Release()
		assert.Equal(t, 0, arr.Len())
	})

	t.Run("type mismatch", func(t *testing.T) {
		_, err := ToArray(mem, []scalar.Scalar{scalar.NewStringScalar("x")}, arrow.PrimitiveTypes.Int64)
		assert.ErrorIs(t, err, ErrTypeMismatch)
	})
}
