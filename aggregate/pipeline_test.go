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
	"errors"
	"io"
	"testing"

	"github.com/apache/arrow/go/v12/arrow"
	"github.com/apache/arrow/go/v12/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaronlmathis/goudaf/filter"
)

type sliceSource struct {
	records []arrow.Record
	err     error
	closed  bool
}

func (s *sliceSource) Next(context.Context) (arrow.Record, error) {
	if len(s.records) == 0 {
		if s.err != nil {
			return nil, s.err
		}
		return nil, io.EOF
	}
	rec := s.records[0]
	s.records = s.records[1:]
	rec.Retain()
	return rec, nil
}

func (s *sliceSource) Close() error {
	s.closed = true
	return nil
}

type collectSink struct {
	records []arrow.Record
	closed  bool
}

func (c *collectSink) Write(_ context.Context, rec arrow.Record) error {
	rec.Retain()
	c.records = append(c.records, rec)
	return nil
}

func (c *collectSink) Close() error {
	c.closed = true
	return nil
}

func TestPipeline_Execute(t *testing.T) {
	mem := memory.NewGoAllocator()
	udf := newUDF(t, "total", "Sum", arrow.PrimitiveTypes.Int64, arrow.PrimitiveTypes.Int64)

	source := &sliceSource{records: salesRecords(t, mem)}
	sink := &collectSink{}
	pipeline, err := NewPipeline().
		From(source).
		Where(filter.GreaterThan("amount", 2)).
		Where(filter.Not(filter.Equals("region", "north"))).
		GroupBy("region", "amount", udf, WithPartitions(2), WithAllocator(mem)).
		To(sink).
		Build()
	require.NoError(t, err)

	require.NoError(t, pipeline.Execute(context.Background()))
	assert.True(t, source.closed)
	assert.True(t, sink.closed)

	require.Len(t, sink.records, 1)
	defer sink.records[0].Release()
	assert.Equal(t, map[string]int64{"east": 7, "west": 11}, resultMap(t, sink.records[0]))
}

func TestPipeline_EmptyAfterFiltering(t *testing.T) {
	mem := memory.NewGoAllocator()
	udf := newUDF(t, "total", "Sum", arrow.PrimitiveTypes.Int64, arrow.PrimitiveTypes.Int64)

	sink := &collectSink{}
	pipeline, err := NewPipeline().
		From(&sliceSource{records: salesRecords(t, mem)}).
		Where(filter.GreaterThan("amount", 1000)).
		GroupBy("region", "amount", udf).
		To(sink).
		Build()
	require.NoError(t, err)

	require.NoError(t, pipeline.Execute(context.Background()))
	assert.Empty(t, sink.records)
	assert.True(t, sink.closed)
}

func TestPipeline_Errors(t *testing.T) {
	mem := memory.NewGoAllocator()
	udf := newUDF(t, "total", "Sum", arrow.PrimitiveTypes.Int64, arrow.PrimitiveTypes.Int64)

	_, err := NewPipeline().GroupBy("region", "amount", udf).To(&collectSink{}).Build()
	assert.ErrorContains(t, err, "source")
	_, err = NewPipeline().From(&sliceSource{}).To(&collectSink{}).Build()
	assert.ErrorContains(t, err, "aggregation")
	_, err = NewPipeline().From(&sliceSource{}).GroupBy("region", "amount", udf).Build()
	assert.ErrorContains(t, err, "sink")

	broken := errors.New("disk on fire")
	source := &sliceSource{records: salesRecords(t, mem)[:1], err: broken}
	sink := &collectSink{}
	pipeline, err := NewPipeline().From(source).GroupBy("region", "amount", udf).To(sink).Build()
	require.NoError(t, err)

	err = pipeline.Execute(context.Background())
	assert.ErrorIs(t, err, broken)
	assert.True(t, source.closed)
	assert.True(t, sink.closed)
	assert.Empty(t, sink.records)
}
