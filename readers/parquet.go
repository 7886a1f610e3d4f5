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


// Package readers provides batch sources that feed Arrow records into
// aggregate functions.
package readers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/apache/arrow/go/v12/arrow"
	"github.com/apache/arrow/go/v12/arrow/memory"
	"github.com/apache/arrow/go/v12/parquet"
	"github.com/apache/arrow/go/v12/parquet/file"
	"github.com/apache/arrow/go/v12/parquet/pqarrow"
)

// ParquetReaderError provides structured error information for parquet reader operations
type ParquetReaderError struct {
	Op  string // Operation that failed (e.g., "open_file", "create_reader", "next")
	Err error  // Underlying error
}

func (e *ParquetReaderError) Error() string {
	return fmt.Sprintf("parquet reader %s: %v", e.Op, e.Err)
}

func (e *ParquetReaderError) Unwrap() error {
	return e.Err
}

// ParquetReader streams a Parquet file as Arrow record batches.
// Supports optional column projection and safe resource management.
type ParquetReader struct {
	closer       io.Closer
	recordReader pqarrow.RecordReader
	schema       *arrow.Schema
	stats        ReaderStats
	opts         *ParquetReaderOptions
}

// ReaderStats holds statistics about the Parquet reader's performance
type ReaderStats struct {
	RowsRead        int64
	BatchesRead     int64
	TotalRows       int64
	ReadDuration    time.Duration
	LastReadTime    time.Time
	NullValueCounts map[string]int64
}

// ParquetReaderOptions configures the Parquet reader
type ParquetReaderOptions struct {
	BatchSize int64            // Rows per record batch
	Columns   []string         // Optional column projection
	Allocator memory.Allocator // Allocator for decoded batches
}

// ReaderOption represents a configuration function
type ReaderOption func(*ParquetReaderOptions)

// WithBatchSize sets the number of rows per record batch.
func WithBatchSize(size int64) ReaderOption {
	return func(opts *ParquetReaderOptions) {
		opts.BatchSize = size
	}
}

// WithColumns projects the file onto the named columns, in that order.
func WithColumns(columns ...string) ReaderOption {
	return func(opts *ParquetReaderOptions) {
		opts.Columns = make([]string, len(columns))
		copy(opts.Columns, columns)
	}
}

// WithAllocator sets the Arrow allocator used for decoded batches.
func WithAllocator(mem memory.Allocator) ReaderOption {
	return func(opts *ParquetReaderOptions) {
		opts.Allocator = mem
	}
}

// NewParquetReader opens a Parquet file and prepares an Arrow RecordReader
func NewParquetReader(filename string, options ...ReaderOption) (*ParquetReader, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, &ParquetReaderError{Op: "open_file", Err: err}
	}
	reader, err := createParquetReader(f, applyReaderOptions(options))
	if err != nil {
		f.Close()
		return nil, err
	}
	reader.closer = f
	return reader, nil
}

// NewParquetReaderFromBytes reads a Parquet file held in memory.
func NewParquetReaderFromBytes(data []byte, options ...ReaderOption) (*ParquetReader, error) {
	return createParquetReader(bytes.NewReader(data), applyReaderOptions(options))
}

func applyReaderOptions(options []ReaderOption) *ParquetReaderOptions {
	opts := &ParquetReaderOptions{}
	for _, option := range options {
		option(opts)
	}
	return opts.withDefaults()
}

// createParquetReader handles Arrow reader creation, schema retrieval
// and optional column projection.
func createParquetReader(src parquet.ReaderAtSeeker, opts *ParquetReaderOptions) (*ParquetReader, error) {
	parquetReader, err := file.NewParquetReader(src)
	if err != nil {
		return nil, &ParquetReaderError{Op: "create_reader", Err: err}
	}

	arrowReader, err := pqarrow.NewFileReader(parquetReader, pqarrow.ArrowReadProperties{BatchSize: opts.BatchSize}, opts.Allocator)
	if err != nil {
		return nil, &ParquetReaderError{Op: "create_arrow_reader", Err: err}
	}

	schema, err := arrowReader.Schema()
	if err != nil {
		return nil, &ParquetReaderError{Op: "get_schema", Err: err}
	}

	colIndices, err := projectColumns(schema, opts.Columns)
	if err != nil {
		return nil, &ParquetReaderError{Op: "column_projection", Err: err}
	}

	recordReader, err := arrowReader.GetRecordReader(context.Background(), colIndices, nil)
	if err != nil {
		return nil, &ParquetReaderError{Op: "create_record_reader", Err: err}
	}

	return &ParquetReader{
		recordReader: recordReader,
		schema:       recordReader.Schema(),
		stats: ReaderStats{
			TotalRows:       parquetReader.NumRows(),
			NullValueCounts: make(map[string]int64),
		},
		opts: opts,
	}, nil
}

func projectColumns(schema *arrow.Schema, columns []string) ([]int, error) {
	if len(columns) == 0 {
		return nil, nil
	}
	indices := make([]int, 0, len(columns))
	for _, name := range columns {
		idx := schema.FieldIndices(name)
		if len(idx) == 0 {
			return nil, fmt.Errorf("column %q not found in schema", name)
		}
		indices = append(indices, idx[0])
	}
	return indices, nil
}

// Next returns the next record batch, or io.EOF once the file is exhausted.
// The caller owns the returned record and must release it.
func (p *ParquetReader) Next(ctx context.Context) (arrow.Record, error) {
	startTime := time.Now()
	defer func() {
		p.stats.ReadDuration += time.Since(startTime)
		p.stats.LastReadTime = time.Now()
	}()

	select {
	case <-ctx.Done():
		return nil, &ParquetReaderError{Op: "next", Err: ctx.Err()}
	default:
	}

	if p.recordReader == nil {
		return nil, &ParquetReaderError{Op: "next", Err: fmt.Errorf("reader is closed")}
	}

	rec, err := p.recordReader.Read()
	if errors.Is(err, io.EOF) || (err == nil && (rec == nil || rec.NumRows() == 0)) {
		return nil, io.EOF
	}
	if err != nil {
		return nil, &ParquetReaderError{Op: "load_batch", Err: err}
	}

	// The record reader releases its current batch on the next Read.
	rec.Retain()
	p.updateStats(rec)
	return rec, nil
}

// ReadAll drains the reader. The caller releases every returned record.
func (p *ParquetReader) ReadAll(ctx context.Context) ([]arrow.Record, error) {
	var records []arrow.Record
	for {
		rec, err := p.Next(ctx)
		if err == io.EOF {
			return records, nil
		}
		if err != nil {
			for _, r := range records {
				r.Release()
			}
			return nil, err
		}
		records = append(records, rec)
	}
}

func (p *ParquetReader) updateStats(rec arrow.Record) {
	p.stats.BatchesRead++
	p.stats.RowsRead += rec.NumRows()
	for i, field := range rec.Schema().Fields() {
		if n := rec.Column(i).NullN(); n > 0 {
			p.stats.NullValueCounts[field.Name] += int64(n)
		}
	}
}

// Close releases resources and closes the underlying file
func (p *ParquetReader) Close() error {
	if p.recordReader != nil {
		p.recordReader.Release()
		p.recordReader = nil
	}
	if p.closer != nil {
		err := p.closer.Close()
		p.closer = nil
		return err
	}
	return nil
}

// Schema returns the Arrow schema of the records produced by Next,
// after projection.
func (p *ParquetReader) Schema() *arrow.Schema {
	return p.schema
}

// Stats returns statistics about the Parquet reader's performance.
func (p *ParquetReader) Stats() ReaderStats {
	return p.stats
}

func (opts *ParquetReaderOptions) withDefaults() *ParquetReaderOptions {
	result := &ParquetReaderOptions{}
	if opts != nil {
		*result = *opts
	}
	if result.BatchSize <= 0 {
		result.BatchSize = 1000
	}
	if result.Allocator == nil {
		result.Allocator = memory.NewGoAllocator()
	}
	return result
}
