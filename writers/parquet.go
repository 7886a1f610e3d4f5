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


// Package writers provides sinks for Arrow record batches produced by
// aggregate functions.
package writers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/apache/arrow/go/v12/arrow"
	"github.com/apache/arrow/go/v12/parquet"
	"github.com/apache/arrow/go/v12/parquet/compress"
	"github.com/apache/arrow/go/v12/parquet/pqarrow"
)

// ParquetWriterError wraps Parquet-specific write errors with context about the operation.
type ParquetWriterError struct {
	Op  string // Operation that failed (e.g., "open_file", "write_batch", "close_writer")
	Err error  // Underlying error
}

// Error returns the error string for ParquetWriterError.
func (e *ParquetWriterError) Error() string {
	return fmt.Sprintf("parquet writer %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for ParquetWriterError.
func (e *ParquetWriterError) Unwrap() error {
	return e.Err
}

// ParquetWriter writes Arrow record batches sharing one schema to a Parquet file.
type ParquetWriter struct {
	dest   io.Closer
	writer *pqarrow.FileWriter
	schema *arrow.Schema
	closed bool
	stats  WriterStats
	opts   *ParquetWriterOptions
}

// ParquetWriterOptions configures the Parquet writer.
type ParquetWriterOptions struct {
	Compression  compress.Compression // Compression algorithm
	RowGroupSize int64                // Maximum rows per row group
	Metadata     map[string]string    // File metadata
}

// WriterStats holds statistics about the Parquet writer's performance.
type WriterStats struct {
	RowsWritten    int64
	BatchesWritten int64
	WriteDuration  time.Duration
	LastWriteTime  time.Time
}

// WriterOption represents a configuration function for ParquetWriterOptions.
type WriterOption func(*ParquetWriterOptions)

// WithCompression sets the Parquet compression algorithm.
func WithCompression(compression compress.Compression) WriterOption {
	return func(opts *ParquetWriterOptions) {
		opts.Compression = compression
	}
}

// WithRowGroupSize sets the row group size for the Parquet file.
func WithRowGroupSize(size int64) WriterOption {
	return func(opts *ParquetWriterOptions) {
		opts.RowGroupSize = size
	}
}

// WithMetadata sets user metadata for the Parquet file.
func WithMetadata(metadata map[string]string) WriterOption {
	return func(opts *ParquetWriterOptions) {
		if opts.Metadata == nil {
			opts.Metadata = make(map[string]string)
		}
		for k, v := range metadata {
			opts.Metadata[k] = v
		}
	}
}

// NewParquetWriter creates filename, and any missing parent directories, and
// prepares it to receive records with the given schema.
func NewParquetWriter(filename string, schema *arrow.Schema, options ...WriterOption) (*ParquetWriter, error) {
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return nil, &ParquetWriterError{Op: "create_directory", Err: err}
	}
	f, err := os.Create(filename)
	if err != nil {
		return nil, &ParquetWriterError{Op: "open_file", Err: err}
	}

	writer, err := NewParquetStreamWriter(f, schema, options...)
	if err != nil {
		f.Close()
		return nil, err
	}
	return writer, nil
}

// NewParquetStreamWriter writes a Parquet file to w, which is closed when the
// writer is closed.
func NewParquetStreamWriter(w io.WriteCloser, schema *arrow.Schema, options ...WriterOption) (*ParquetWriter, error) {
	if schema == nil {
		return nil, &ParquetWriterError{Op: "schema", Err: fmt.Errorf("schema is required")}
	}

	opts := collectWriterOptions(options)

	props := parquet.NewWriterProperties(
		parquet.WithCompression(opts.Compression),
		parquet.WithMaxRowGroupLength(opts.RowGroupSize),
	)
	writer, err := pqarrow.NewFileWriter(withMetadata(schema, opts.Metadata), w, props, pqarrow.DefaultWriterProps())
	if err != nil {
		return nil, &ParquetWriterError{Op: "create_writer", Err: err}
	}
	return &ParquetWriter{
		dest:   w,
		writer: writer,
		schema: schema,
		opts:   opts,
	}, nil
}

// withMetadata attaches file metadata to the schema handed to the file writer.
func withMetadata(schema *arrow.Schema, metadata map[string]string) *arrow.Schema {
	if len(metadata) == 0 {
		return schema
	}
	keys := make([]string, 0, len(metadata))
	for k := range metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	values := make([]string, len(keys))
	for i, k := range keys {
		values[i] = metadata[k]
	}
	md := arrow.NewMetadata(keys, values)
	return arrow.NewSchema(schema.Fields(), &md)
}

// Write appends one record batch. Its schema must match the writer's.
func (p *ParquetWriter) Write(ctx context.Context, record arrow.Record) error {
	if p.closed {
		return &ParquetWriterError{Op: "write", Err: fmt.Errorf("parquet writer is closed")}
	}
	select {
	case <-ctx.Done():
		return &ParquetWriterError{Op: "write", Err: ctx.Err()}
	default:
	}
	if !record.Schema().Equal(p.schema) {
		return &ParquetWriterError{
			Op:  "validate",
			Err: fmt.Errorf("record schema %s does not match writer schema %s", record.Schema(), p.schema),
		}
	}

	start := time.Now()
	if err := p.writer.Write(record); err != nil {
		return &ParquetWriterError{Op: "write_batch", Err: err}
	}

	p.stats.RowsWritten += record.NumRows()
	p.stats.BatchesWritten++
	p.stats.WriteDuration += time.Since(start)
	p.stats.LastWriteTime = time.Now()
	return nil
}

// Close writes the footer and closes the destination. Closing twice is a no-op.
func (p *ParquetWriter) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true

	if err := p.writer.Close(); err != nil {
		return &ParquetWriterError{Op: "close_writer", Err: err}
	}
	// The file writer may already have closed dest.
	if err := p.dest.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
		return &ParquetWriterError{Op: "close_destination", Err: err}
	}
	return nil
}

// Stats returns the current statistics of the Parquet writer.
func (p *ParquetWriter) Stats() WriterStats {
	return p.stats
}

func collectWriterOptions(options []WriterOption) *ParquetWriterOptions {
	opts := &ParquetWriterOptions{
		Compression:  compress.Codecs.Snappy,
		RowGroupSize: 10000,
	}
	for _, option := range options {
		option(opts)
	}
	if opts.RowGroupSize <= 0 {
		opts.RowGroupSize = 10000
	}
	return opts
}
