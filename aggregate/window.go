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

package aggregate

import (
	"fmt"

	"github.com/apache/arrow/go/v12/arrow"
	"github.com/apache/arrow/go/v12/arrow/array"
	"github.com/apache/arrow/go/v12/arrow/memory"
	"github.com/apache/arrow/go/v12/arrow/scalar"

	"github.com/aaronlmathis/goudaf/core"
	"github.com/aaronlmathis/goudaf/marshal"
	"github.com/aaronlmathis/goudaf/udaf"
)

// SlidingWindow evaluates udf over a trailing frame of size rows ending at
// every row of values. Row i aggregates values[max(0, i-size+1) .. i].
//
// When the accumulator supports retraction a single accumulator slides over
// the input, adding the entering row and retracting the leaving one.
// Otherwise every frame is aggregated from scratch.
func SlidingWindow(udf *udaf.AggregateUDF, values arrow.Array, size int, mem memory.Allocator) (arrow.Array, error) {
	if size <= 0 {
		return nil, fmt.Errorf("window size must be positive, got %d", size)
	}
	if mem == nil {
		mem = memory.NewGoAllocator()
	}

	acc, err := udf.CreateAccumulator()
	if err != nil {
		return nil, err
	}

	var results []scalar.Scalar
	if acc.SupportsRetractBatch() {
		results, err = slideRetracting(acc, values, size)
	} else {
		results, err = slideRecomputing(udf, values, size)
	}
	if err != nil {
		return nil, err
	}
	return marshal.ToArray(mem, results, udf.ReturnType())
}

func slideRetracting(acc core.Accumulator, values arrow.Array, size int) ([]scalar.Scalar, error) {
	n := values.Len()
	results := make([]scalar.Scalar, 0, n)
	for i := 0; i < n; i++ {
		if err := applySlice(acc.UpdateBatch, values, i, i+1); err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		if leaving := i - size; leaving >= 0 {
			if err := applySlice(acc.RetractBatch, values, leaving, leaving+1); err != nil {
				return nil, fmt.Errorf("row %d: %w", i, err)
			}
		}
		v, err := acc.Evaluate()
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		results = append(results, v)
	}
	return results, nil
}

func slideRecomputing(udf *udaf.AggregateUDF, values arrow.Array, size int) ([]scalar.Scalar, error) {
	n := values.Len()
	results := make([]scalar.Scalar, 0, n)
	for i := 0; i < n; i++ {
		acc, err := udf.CreateAccumulator()
		if err != nil {
			return nil, err
		}
		lo := i - size + 1
		if lo < 0 {
			lo = 0
		}
		if err := applySlice(acc.UpdateBatch, values, lo, i+1); err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		v, err := acc.Evaluate()
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		results = append(results, v)
	}
	return results, nil
}

func applySlice(fn func([]arrow.Array) error, values arrow.Array, i, j int) error {
	slice := array.NewSlice(values, int64(i), int64(j))
	defer slice.Release()
	return fn([]arrow.Array{slice})
}
