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
	"fmt"

	"github.com/apache/arrow/go/v12/arrow"
	"github.com/apache/arrow/go/v12/arrow/array"
	"github.com/apache/arrow/go/v12/arrow/memory"
	"github.com/apache/arrow/go/v12/arrow/scalar"
)

// ToArray builds an array of type dt holding one row per scalar. It is the
// engine-side half of state transport: the scalars from several State calls
// become the columns handed to MergeBatch. The caller releases the result.
func ToArray(mem memory.Allocator, scalars []scalar.Scalar, dt arrow.DataType) (arrow.Array, error) {
	if len(scalars) == 0 {
		return array.MakeArrayOfNull(mem, dt, 0), nil
	}

	parts := make([]arrow.Array, 0, len(scalars))
	defer func() {
		for _, p := range parts {
			p.Release()
		}
	}()

	for i, sc := range scalars {
		if !arrow.TypeEqual(sc.DataType(), dt) {
			return nil, &ConversionError{
				Op:  "to_array",
				Err: fmt.Errorf("%w: row %d is %s, expected %s", ErrTypeMismatch, i, sc.DataType(), dt),
			}
		}
		part, err := scalar.MakeArrayFromScalar(sc, 1, mem)
		if err != nil {
			return nil, &ConversionError{Op: "to_array", Err: fmt.Errorf("row %d: %w", i, err)}
		}
		parts = append(parts, part)
	}

	if len(parts) == 1 {
		parts[0].Retain()
		return parts[0], nil
	}

	out, err := array.Concatenate(parts, mem)
	if err != nil {
		return nil, &ConversionError{Op: "to_array", Err: err}
	}
	return out, nil
}
