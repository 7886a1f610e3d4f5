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
	"fmt"
	"io"

	"github.com/apache/arrow/go/v12/arrow"
	"github.com/apache/arrow/go/v12/arrow/memory"

	"github.com/aaronlmathis/goudaf/filter"
	"github.com/aaronlmathis/goudaf/udaf"
)

// BatchSource yields record batches until it returns io.EOF. Callers release
// every batch they receive.
type BatchSource interface {
	Next(ctx context.Context) (arrow.Record, error)
	Close() error
}

// BatchSink consumes record batches.
type BatchSink interface {
	Write(ctx context.Context, rec arrow.Record) error
	Close() error
}

// PipelineBuilder provides a fluent API for constructing an aggregation
// pipeline: read batches, drop filtered rows, aggregate per group, write the
// result.
//
//	pipeline, err := aggregate.NewPipeline().
//		From(parquetReader).
//		Where(filter.NotNull("amount")).
//		GroupBy("region", "amount", mySum, aggregate.WithPartitions(4)).
//		To(parquetWriter).
//		Build()
//	if err != nil { log.Fatal(err) }
//	if err := pipeline.Execute(ctx); err != nil { log.Fatal(err) }
type PipelineBuilder struct {
	pipeline *Pipeline
}

// NewPipeline creates a new PipelineBuilder.
func NewPipeline() *PipelineBuilder {
	return &PipelineBuilder{pipeline: &Pipeline{}}
}

// From sets the batch source.
func (pb *PipelineBuilder) From(source BatchSource) *PipelineBuilder {
	pb.pipeline.source = source
	return pb
}

// Where adds a row filter. Rows must pass every filter to be aggregated.
func (pb *PipelineBuilder) Where(f filter.Filter) *PipelineBuilder {
	pb.pipeline.filters = append(pb.pipeline.filters, f)
	return pb
}

// GroupBy sets the aggregation run over the filtered batches.
func (pb *PipelineBuilder) GroupBy(keyColumn, valueColumn string, udf *udaf.AggregateUDF, options ...GroupByOption) *PipelineBuilder {
	pb.pipeline.groupBy = NewGroupBy(keyColumn, valueColumn, udf, options...)
	return pb
}

// To sets the sink receiving the aggregated record.
func (pb *PipelineBuilder) To(sink BatchSink) *PipelineBuilder {
	pb.pipeline.sink = sink
	return pb
}

// Build validates and constructs the Pipeline from the builder.
func (pb *PipelineBuilder) Build() (*Pipeline, error) {
	if pb.pipeline.source == nil {
		return nil, fmt.Errorf("pipeline requires a batch source")
	}
	if pb.pipeline.groupBy == nil {
		return nil, fmt.Errorf("pipeline requires an aggregation")
	}
	if pb.pipeline.sink == nil {
		return nil, fmt.Errorf("pipeline requires a batch sink")
	}
	return pb.pipeline, nil
}

// Pipeline runs one grouped aggregation from a source to a sink.
type Pipeline struct {
	source  BatchSource
	filters []filter.Filter
	groupBy *GroupBy
	sink    BatchSink
}

// Execute drains the source, aggregates and writes the result. Source and
// sink are closed when Execute returns. An empty source writes nothing.
func (p *Pipeline) Execute(ctx context.Context) (err error) {
	defer func() {
		p.source.Close()
		if cerr := p.sink.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close sink: %w", cerr)
		}
	}()

	batches, err := p.collect(ctx)
	defer func() {
		for _, b := range batches {
			b.Release()
		}
	}()
	if err != nil {
		return err
	}

	logger := p.groupBy.opts.Logger
	if len(batches) == 0 {
		logger.Warn("pipeline source produced no rows", "udaf", p.groupBy.udf.Name())
		return nil
	}

	result, err := p.groupBy.Process(ctx, batches)
	if err != nil {
		return err
	}
	defer result.Release()

	if err := p.sink.Write(ctx, result); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	logger.Info("pipeline completed", "udaf", p.groupBy.udf.Name(), "batches", len(batches), "groups", result.NumRows())
	return nil
}

// collect reads every batch from the source and applies the filters.
// Batches left empty by filtering are dropped.
func (p *Pipeline) collect(ctx context.Context) ([]arrow.Record, error) {
	var batches []arrow.Record
	for {
		select {
		case <-ctx.Done():
			return batches, ctx.Err()
		default:
		}

		rec, err := p.source.Next(ctx)
		if errors.Is(err, io.EOF) {
			return batches, nil
		}
		if err != nil {
			return batches, fmt.Errorf("read batch %d: %w", len(batches), err)
		}

		filtered, err := p.applyFilters(ctx, rec, p.groupBy.opts.Allocator)
		rec.Release()
		if err != nil {
			return batches, err
		}
		if filtered.NumRows() == 0 {
			filtered.Release()
			continue
		}
		batches = append(batches, filtered)
	}
}

func (p *Pipeline) applyFilters(ctx context.Context, rec arrow.Record, mem memory.Allocator) (arrow.Record, error) {
	rec.Retain()
	current := rec
	for _, f := range p.filters {
		next, err := filter.Apply(ctx, current, f, mem)
		current.Release()
		if err != nil {
			return nil, err
		}
		current = next
	}
	return current, nil
}
