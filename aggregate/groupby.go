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
	"fmt"
	"sort"
	"time"

	"github.com/apache/arrow/go/v12/arrow"
	"github.com/apache/arrow/go/v12/arrow/array"
	"github.com/apache/arrow/go/v12/arrow/compute"
	"github.com/apache/arrow/go/v12/arrow/memory"
	"github.com/apache/arrow/go/v12/arrow/scalar"
	"golang.org/x/sync/errgroup"

	"github.com/aaronlmathis/goudaf/core"
	"github.com/aaronlmathis/goudaf/logging"
	"github.com/aaronlmathis/goudaf/marshal"
	"github.com/aaronlmathis/goudaf/udaf"
)

// GroupBy runs one aggregate function over a value column, grouped by a key
// column. Input records are split into partitions that aggregate in parallel,
// each with its own accumulator per group; partial states are then merged
// per group into a final accumulator.
type GroupBy struct {
	keyColumn   string
	valueColumn string
	udf         *udaf.AggregateUDF
	opts        *GroupByOptions
}

// GroupByOptions configures a GroupBy.
type GroupByOptions struct {
	Partitions int              // Number of parallel partial aggregations
	Allocator  memory.Allocator // Allocator for intermediate and result arrays
	Logger     logging.Logger
}

// GroupByOption represents a configuration function for GroupByOptions.
type GroupByOption func(*GroupByOptions)

// WithPartitions sets how many partitions aggregate in parallel.
func WithPartitions(n int) GroupByOption {
	return func(opts *GroupByOptions) {
		opts.Partitions = n
	}
}

// WithAllocator sets the Arrow allocator.
func WithAllocator(mem memory.Allocator) GroupByOption {
	return func(opts *GroupByOptions) {
		opts.Allocator = mem
	}
}

// WithLogger sets the logger.
func WithLogger(logger logging.Logger) GroupByOption {
	return func(opts *GroupByOptions) {
		opts.Logger = logger
	}
}

// NewGroupBy creates a GroupBy aggregating valueColumn per distinct value of
// keyColumn with udf.
func NewGroupBy(keyColumn, valueColumn string, udf *udaf.AggregateUDF, options ...GroupByOption) *GroupBy {
	opts := &GroupByOptions{}
	for _, option := range options {
		option(opts)
	}
	return &GroupBy{
		keyColumn:   keyColumn,
		valueColumn: valueColumn,
		udf:         udf,
		opts:        opts.withDefaults(),
	}
}

func (opts *GroupByOptions) withDefaults() *GroupByOptions {
	result := *opts
	if result.Partitions <= 0 {
		result.Partitions = 1
	}
	if result.Allocator == nil {
		result.Allocator = memory.NewGoAllocator()
	}
	result.Logger = logging.OrNoOp(result.Logger)
	return &result
}

// partial is one group's accumulator inside one partition.
type partial struct {
	key scalar.Scalar
	acc core.Accumulator
}

// Process aggregates records and returns a record with two columns: the group
// key and the aggregate result, named after the key column and the function.
// Rows are ordered by the key's string form. The caller releases the result.
func (g *GroupBy) Process(ctx context.Context, records []arrow.Record) (arrow.Record, error) {
	start := time.Now()

	keyType, err := g.resolveKeyType(records)
	if err != nil {
		return nil, err
	}

	partitions := make([][]arrow.Record, g.opts.Partitions)
	for i, rec := range records {
		p := i % len(partitions)
		partitions[p] = append(partitions[p], rec)
	}

	results := make([]map[string]*partial, len(partitions))
	eg, egCtx := errgroup.WithContext(ctx)
	for p := range partitions {
		p := p
		eg.Go(func() error {
			groups, err := g.aggregatePartition(egCtx, partitions[p])
			if err != nil {
				return fmt.Errorf("partition %d: %w", p, err)
			}
			results[p] = groups
			g.opts.Logger.Debug("partition aggregated", "udaf", g.udf.Name(), "partition", p,
				"records", len(partitions[p]), "groups", len(groups))
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	out, err := g.finalize(keyType, results)
	if err != nil {
		return nil, err
	}
	g.opts.Logger.Info("group by completed", "udaf", g.udf.Name(), "groups", out.NumRows(),
		"partitions", len(partitions), "duration", time.Since(start))
	return out, nil
}

func (g *GroupBy) resolveKeyType(records []arrow.Record) (arrow.DataType, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("group by requires at least one record")
	}
	schema := records[0].Schema()
	keyFields, ok := schema.FieldsByName(g.keyColumn)
	if !ok {
		return nil, fmt.Errorf("key column %q not found in schema", g.keyColumn)
	}
	if _, ok := schema.FieldsByName(g.valueColumn); !ok {
		return nil, fmt.Errorf("value column %q not found in schema", g.valueColumn)
	}
	for i, rec := range records[1:] {
		if !rec.Schema().Equal(schema) {
			return nil, fmt.Errorf("record %d schema does not match the first record", i+1)
		}
	}
	return keyFields[0].Type, nil
}

// aggregatePartition feeds every record of one partition into per-group
// accumulators.
func (g *GroupBy) aggregatePartition(ctx context.Context, records []arrow.Record) (map[string]*partial, error) {
	groups := make(map[string]*partial)
	ctx = compute.WithAllocator(ctx, g.opts.Allocator)

	for _, rec := range records {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		keyCol := rec.Column(rec.Schema().FieldIndices(g.keyColumn)[0])
		valCol := rec.Column(rec.Schema().FieldIndices(g.valueColumn)[0])

		rows, order, err := g.bucketRows(keyCol, groups)
		if err != nil {
			return nil, err
		}

		for _, key := range order {
			if err := g.updateGroup(ctx, groups[key], valCol, rows[key]); err != nil {
				return nil, fmt.Errorf("group %s: %w", key, err)
			}
		}
	}
	return groups, nil
}

// bucketRows maps each group key in keyCol to its row indices, creating an
// accumulator for keys seen for the first time.
func (g *GroupBy) bucketRows(keyCol arrow.Array, groups map[string]*partial) (map[string][]int32, []string, error) {
	rows := make(map[string][]int32)
	var order []string

	for i := 0; i < keyCol.Len(); i++ {
		key, err := scalar.GetScalar(keyCol, i)
		if err != nil {
			return nil, nil, fmt.Errorf("read key at row %d: %w", i, err)
		}
		groupKey := buildGroupKey(key)

		if _, exists := groups[groupKey]; !exists {
			acc, err := g.udf.CreateAccumulator()
			if err != nil {
				return nil, nil, err
			}
			groups[groupKey] = &partial{key: key, acc: acc}
		}
		if _, seen := rows[groupKey]; !seen {
			order = append(order, groupKey)
		}
		rows[groupKey] = append(rows[groupKey], int32(i))
	}
	return rows, order, nil
}

func (g *GroupBy) updateGroup(ctx context.Context, grp *partial, valCol arrow.Array, rows []int32) error {
	b := array.NewInt32Builder(g.opts.Allocator)
	defer b.Release()
	b.AppendValues(rows, nil)
	indices := b.NewArray()
	defer indices.Release()

	values, err := compute.TakeArray(ctx, valCol, indices)
	if err != nil {
		return fmt.Errorf("select rows: %w", err)
	}
	defer values.Release()

	return grp.acc.UpdateBatch([]arrow.Array{values})
}

// finalize merges partial results per group and builds the output record.
// With a single partition the partial accumulators are evaluated directly.
func (g *GroupBy) finalize(keyType arrow.DataType, results []map[string]*partial) (arrow.Record, error) {
	keys := make(map[string]scalar.Scalar)
	for _, groups := range results {
		for k, p := range groups {
			keys[k] = p.key
		}
	}
	ordered := make([]string, 0, len(keys))
	for k := range keys {
		ordered = append(ordered, k)
	}
	sort.Strings(ordered)

	keyScalars := make([]scalar.Scalar, 0, len(ordered))
	values := make([]scalar.Scalar, 0, len(ordered))
	for _, k := range ordered {
		var (
			v   scalar.Scalar
			err error
		)
		if len(results) == 1 {
			v, err = results[0][k].acc.Evaluate()
		} else {
			v, err = g.mergeGroup(k, results)
		}
		if err != nil {
			return nil, fmt.Errorf("group %s: %w", k, err)
		}
		keyScalars = append(keyScalars, keys[k])
		values = append(values, v)
	}

	keyArr, err := marshal.ToArray(g.opts.Allocator, keyScalars, keyType)
	if err != nil {
		return nil, err
	}
	defer keyArr.Release()
	valArr, err := marshal.ToArray(g.opts.Allocator, values, g.udf.ReturnType())
	if err != nil {
		return nil, err
	}
	defer valArr.Release()

	schema := arrow.NewSchema([]arrow.Field{
		{Name: g.keyColumn, Type: keyType, Nullable: true},
		{Name: g.udf.Name(), Type: g.udf.ReturnType(), Nullable: true},
	}, nil)
	return array.NewRecord(schema, []arrow.Array{keyArr, valArr}, int64(len(ordered))), nil
}

// mergeGroup collects every partition's state for one group into a single
// state column and merges it into a fresh accumulator.
func (g *GroupBy) mergeGroup(groupKey string, results []map[string]*partial) (scalar.Scalar, error) {
	stateTypes := g.udf.StateTypes()
	if len(stateTypes) != 1 {
		return nil, &core.ExecutionError{
			Op:  "merge_batch",
			Err: fmt.Errorf("%w: function declares %d state columns", core.ErrUnsupportedMergeShape, len(stateTypes)),
		}
	}

	var states []scalar.Scalar
	for _, groups := range results {
		p, ok := groups[groupKey]
		if !ok {
			continue
		}
		state, err := p.acc.State()
		if err != nil {
			return nil, err
		}
		states = append(states, state[0])
	}

	column, err := marshal.ToArray(g.opts.Allocator, states, stateTypes[0])
	if err != nil {
		return nil, err
	}
	defer column.Release()

	final, err := g.udf.CreateAccumulator()
	if err != nil {
		return nil, err
	}
	if err := final.MergeBatch([]arrow.Array{column}); err != nil {
		return nil, err
	}
	return final.Evaluate()
}

// buildGroupKey renders a key scalar as a map key. Nulls get a key no real
// value can produce.
func buildGroupKey(key scalar.Scalar) string {
	if !key.IsValid() {
		return "\x00null"
	}
	return key.String()
}
