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
	"context"
	"testing"

	"github.com/apache/arrow/go/v12/arrow"
	"github.com/apache/arrow/go/v12/arrow/array"
	"github.com/apache/arrow/go/v12/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaronlmathis/goudaf/core"
	"github.com/aaronlmathis/goudaf/script"
	"github.com/aaronlmathis/goudaf/udaf"
)

const sumJS = `
var Sum = class {
  constructor() { this.total = 0 }
  update(xs) { for (const x of xs) { if (x !== null) this.total += x } }
  merge(states) { for (const s of states) { if (s !== null) this.total += s } }
  state() { return [this.total] }
  evaluate() { return this.total }
};

var RetractSum = class extends Sum {
  retract_batch(xs) { for (const x of xs) { if (x !== null) this.total -= x } }
  supports_retract_batch() { return true }
};

var Mean = class {
  constructor() { this.sum = 0; this.count = 0 }
  update(xs) { for (const x of xs) { if (x !== null) { this.sum += x; this.count++ } } }
  merge(states) { throw new Error("unreachable") }
  state() { return [this.sum, this.count] }
  evaluate() { return this.count === 0 ? null : this.sum / this.count }
};
`

func newUDF(t *testing.T, name, ctorName string, ret arrow.DataType, states ...arrow.DataType) *udaf.AggregateUDF {
	t.Helper()
	rt := script.NewRuntime()
	require.NoError(t, rt.Load("sum.js", sumJS))
	ctor, err := rt.Constructor(ctorName)
	require.NoError(t, err)

	udf, err := udaf.New(name, ctor, arrow.PrimitiveTypes.Int64, ret, states, "immutable")
	require.NoError(t, err)
	return udf
}

var salesSchema = arrow.NewSchema([]arrow.Field{
	{Name: "region", Type: arrow.BinaryTypes.String, Nullable: true},
	{Name: "amount", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
}, nil)

func salesRecord(mem memory.Allocator, regions []string, amounts []int64) arrow.Record {
	b := array.NewRecordBuilder(mem, salesSchema)
	defer b.Release()
	b.Field(0).(*array.StringBuilder).AppendValues(regions, nil)
	b.Field(1).(*array.Int64Builder).AppendValues(amounts, nil)
	return b.NewRecord()
}

func salesRecords(t *testing.T, mem memory.Allocator) []arrow.Record {
	t.Helper()
	recs := []arrow.Record{
		salesRecord(mem, []string{"east", "west", "east"}, []int64{1, 2, 3}),
		salesRecord(mem, []string{"north", "east"}, []int64{10, 4}),
		salesRecord(mem, []string{"west", "west"}, []int64{5, 6}),
		salesRecord(mem, []string{"north"}, []int64{20}),
	}
	t.Cleanup(func() {
		for _, r := range recs {
			r.Release()
		}
	})
	return recs
}

func resultMap(t *testing.T, rec arrow.Record) map[string]int64 {
	t.Helper()
	keys := rec.Column(0).(*array.String)
	vals := rec.Column(1).(*array.Int64)
	out := make(map[string]int64, keys.Len())
	for i := 0; i < keys.Len(); i++ {
		out[keys.Value(i)] = vals.Value(i)
	}
	return out
}

func TestGroupBy_SerialAndParallelAgree(t *testing.T) {
	mem := memory.NewGoAllocator()

	udf := newUDF(t, "total", "Sum", arrow.PrimitiveTypes.Int64, arrow.PrimitiveTypes.Int64)
	records := salesRecords(t, mem)
	expected := map[string]int64{"east": 8, "west": 13, "north": 30}

	for _, partitions := range []int{1, 2, 4, 8} {
		gb := NewGroupBy("region", "amount", udf, WithPartitions(partitions), WithAllocator(mem))
		out, err := gb.Process(context.Background(), records)
		require.NoError(t, err, "partitions=%d", partitions)

		assert.Equal(t, expected, resultMap(t, out), "partitions=%d", partitions)
		assert.Equal(t, "region", out.Schema().Field(0).Name)
		assert.Equal(t, "total", out.Schema().Field(1).Name)

		keys := out.Column(0).(*array.String)
		assert.Equal(t, "east", keys.Value(0))
		assert.Equal(t, "north", keys.Value(1))
		assert.Equal(t, "west", keys.Value(2))
		out.Release()
	}
}

func TestGroupBy_MultiStateNeedsSinglePartition(t *testing.T) {
	mem := memory.NewGoAllocator()
	udf := newUDF(t, "mean", "Mean", arrow.PrimitiveTypes.Float64,
		arrow.PrimitiveTypes.Float64, arrow.PrimitiveTypes.Int64)
	records := salesRecords(t, mem)

	out, err := NewGroupBy("region", "amount", udf).Process(context.Background(), records)
	require.NoError(t, err)
	defer out.Release()
	means := out.Column(1).(*array.Float64)
	assert.InDelta(t, 8.0/3.0, means.Value(0), 1e-9)

	_, err = NewGroupBy("region", "amount", udf, WithPartitions(2)).Process(context.Background(), records)
	assert.ErrorIs(t, err, core.ErrUnsupportedMergeShape)
}

func TestGroupBy_Errors(t *testing.T) {
	mem := memory.NewGoAllocator()
	udf := newUDF(t, "total", "Sum", arrow.PrimitiveTypes.Int64, arrow.PrimitiveTypes.Int64)
	records := salesRecords(t, mem)

	_, err := NewGroupBy("region", "amount", udf).Process(context.Background(), nil)
	assert.Error(t, err)

	_, err = NewGroupBy("missing", "amount", udf).Process(context.Background(), records)
	assert.ErrorContains(t, err, "missing")

	// region is a string column, the function takes int64.
	_, err = NewGroupBy("amount", "region", udf).Process(context.Background(), records)
	require.Error(t, err)
	assert.True(t, udaf.IsExecutionError(err))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewGroupBy("region", "amount", udf, WithPartitions(2)).Process(ctx, records)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSlidingWindow_RetractAndRecomputeAgree(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	b := array.NewInt64Builder(mem)
	b.AppendValues([]int64{1, 2, 3, 4, 5, 6}, []bool{true, true, false, true, true, true})
	values := b.NewArray()
	b.Release()
	defer values.Release()

	expected := []int64{1, 3, 3, 6, 9, 15}

	for _, ctor := range []string{"RetractSum", "Sum"} {
		t.Run(ctor, func(t *testing.T) {
			udf := newUDF(t, "rolling", ctor, arrow.PrimitiveTypes.Int64, arrow.PrimitiveTypes.Int64)
			out, err := SlidingWindow(udf, values, 3, mem)
			require.NoError(t, err)
			defer out.Release()

			assert.Equal(t, expected, out.(*array.Int64).Int64Values())
		})
	}

	udf := newUDF(t, "rolling", "Sum", arrow.PrimitiveTypes.Int64, arrow.PrimitiveTypes.Int64)
	_, err := SlidingWindow(udf, values, 0, mem)
	assert.Error(t, err)
}

func TestCatalog(t *testing.T) {
	c := NewCatalog()
	total := newUDF(t, "Total", "Sum", arrow.PrimitiveTypes.Int64, arrow.PrimitiveTypes.Int64)
	mean := newUDF(t, "mean", "Mean", arrow.PrimitiveTypes.Float64,
		arrow.PrimitiveTypes.Float64, arrow.PrimitiveTypes.Int64)

	require.NoError(t, c.Register(total))
	require.NoError(t, c.Register(mean))
	assert.Error(t, c.Register(total))
	assert.Error(t, c.Register(nil))

	got, ok := c.Lookup("TOTAL")
	require.True(t, ok)
	assert.Same(t, total, got)

	_, ok = c.Lookup("median")
	assert.False(t, ok)

	assert.Equal(t, []string{"Total", "mean"}, c.Names())
}
