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


package readers

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/apache/arrow/go/v12/arrow"
	"github.com/apache/arrow/go/v12/arrow/csv"
	"github.com/apache/arrow/go/v12/arrow/memory"
)

// CSVReaderError wraps structured error information for the CSV reader.
type CSVReaderError struct {
	Op  string
	Err error
}

func (e *CSVReaderError) Error() string {
	return fmt.Sprintf("csv reader %s: %v", e.Op, e.Err)
}

func (e *CSVReaderError) Unwrap() error {
	return e.Err
}

// CSVReaderStats holds statistics about the CSV reader's performance.
type CSVReaderStats struct {
	RowsRead        int64
	BatchesRead     int64
	ReadDuration    time.Duration
	LastReadTime    time.Time
	NullValueCounts map[string]int64
}

// CSVReaderOptions configures the CSV reader.
type CSVReaderOptions struct {
	Comma      rune
	Comment    rune
	HasHeaders bool
	BatchSize  int      // Rows per record batch
	NullValues []string // Cell contents read as null
	Allocator  memory.Allocator
}

// ReaderOptionCSV allows functional customization of CSVReader.
type ReaderOptionCSV func(*CSVReaderOptions)

func WithCSVComma(r rune) ReaderOptionCSV {
	return func(o *CSVReaderOptions) { o.Comma = r }
}

func WithCSVComment(r rune) ReaderOptionCSV {
	return func(o *CSVReaderOptions) { o.Comment = r }
}

func WithCSVHasHeaders(hasHeaders bool) ReaderOptionCSV {
	return func(o *CSVReaderOptions) { o.HasHeaders = hasHeaders }
}

func WithCSVBatchSize(n int) ReaderOptionCSV {
	return func(o *CSVReaderOptions) { o.BatchSize = n }
}

func WithCSVNullValues(values ...string) ReaderOptionCSV {
	return func(o *CSVReaderOptions) { o.NullValues = append([]string(nil), values...) }
}

func WithCSVAllocator(mem memory.Allocator) ReaderOptionCSV {
	return func(o *CSVReaderOptions) { o.Allocator = mem }
}

// CSVReader decodes delimited text into Arrow record batches of a fixed schema.
type CSVReader struct {
	reader *csv.Reader
	closer io.Closer
	schema *arrow.Schema
	stats  CSVReaderStats
	opts   CSVReaderOptions
}

// NewCSVReader creates a CSVReader parsing r against schema. Columns are
// matched by position.
func NewCSVReader(r io.ReadCloser, schema *arrow.Schema, options ...ReaderOptionCSV) (*CSVReader, error) {
	if schema == nil {
		return nil, &CSVReaderError{Op: "schema", Err: fmt.Errorf("schema is required")}
	}

	opts := CSVReaderOptions{
		Comma:      ',',
		HasHeaders: true,
		BatchSize:  1000,
		NullValues: []string{"", "NULL", "null"},
	}
	for _, opt := range options {
		opt(&opts)
	}
	if opts.Allocator == nil {
		opts.Allocator = memory.NewGoAllocator()
	}

	csvOpts := []csv.Option{
		csv.WithComma(opts.Comma),
		csv.WithHeader(opts.HasHeaders),
		csv.WithChunk(opts.BatchSize),
		csv.WithAllocator(opts.Allocator),
		csv.WithNullReader(true, opts.NullValues...),
	}
	if opts.Comment != 0 {
		csvOpts = append(csvOpts, csv.WithComment(opts.Comment))
	}

	return &CSVReader{
		reader: csv.NewReader(r, schema, csvOpts...),
		closer: r,
		schema: schema,
		opts:   opts,
		stats:  CSVReaderStats{NullValueCounts: make(map[string]int64)},
	}, nil
}

// Next returns the next record batch or io.EOF. The caller releases the
// returned record.
func (c *CSVReader) Next(ctx context.Context) (arrow.Record, error) {
	start := time.Now()
	defer func() {
		c.stats.ReadDuration += time.Since(start)
		c.stats.LastReadTime = time.Now()
	}()

	select {
	case <-ctx.Done():
		return nil, &CSVReaderError{Op: "read", Err: ctx.Err()}
	default:
	}

	if !c.reader.Next() {
		if err := c.reader.Err(); err != nil && err != io.EOF {
			return nil, &CSVReaderError{Op: "read_record", Err: err}
		}
		return nil, io.EOF
	}

	rec := c.reader.Record()
	rec.Retain()

	c.stats.BatchesRead++
	c.stats.RowsRead += rec.NumRows()
	for i, field := range rec.Schema().Fields() {
		if n := rec.Column(i).NullN(); n > 0 {
			c.stats.NullValueCounts[field.Name] += int64(n)
		}
	}
	return rec, nil
}

// Schema returns the schema rows are decoded into.
func (c *CSVReader) Schema() *arrow.Schema {
	return c.schema
}

// Close releases the decoder and closes the underlying reader.
func (c *CSVReader) Close() error {
	if c.reader != nil {
		c.reader.Release()
		c.reader = nil
	}
	if c.closer != nil {
		err := c.closer.Close()
		c.closer = nil
		return err
	}
	return nil
}

// Stats returns CSV reader performance stats.
func (c *CSVReader) Stats() CSVReaderStats {
	return c.stats
}
