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


package writers

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/apache/arrow/go/v12/arrow"
	"github.com/apache/arrow/go/v12/arrow/csv"
)

// CSVWriterError wraps CSV-specific write errors with context.
type CSVWriterError struct {
	Op  string
	Err error
}

func (e *CSVWriterError) Error() string {
	return fmt.Sprintf("csv writer %s: %v", e.Op, e.Err)
}

func (e *CSVWriterError) Unwrap() error {
	return e.Err
}

// CSVWriterStats holds CSV write performance statistics.
type CSVWriterStats struct {
	RowsWritten   int64
	FlushCount    int64
	WriteDuration time.Duration
	LastWriteTime time.Time
}

// CSVWriterOptions configures CSV output.
type CSVWriterOptions struct {
	Comma       rune
	UseCRLF     bool
	WriteHeader bool
	NullValue   string // Text written for null cells
}

// WriterOptionCSV is a functional option.
type WriterOptionCSV func(*CSVWriterOptions)

func WithComma(delim rune) WriterOptionCSV {
	return func(opts *CSVWriterOptions) {
		opts.Comma = delim
	}
}

func WithUseCRLF(useCRLF bool) WriterOptionCSV {
	return func(opts *CSVWriterOptions) {
		opts.UseCRLF = useCRLF
	}
}

func WithWriteHeader(writeHeader bool) WriterOptionCSV {
	return func(opts *CSVWriterOptions) {
		opts.WriteHeader = writeHeader
	}
}

func WithNullValue(null string) WriterOptionCSV {
	return func(opts *CSVWriterOptions) {
		opts.NullValue = null
	}
}

// CSVWriter encodes Arrow record batches of one schema as delimited text.
type CSVWriter struct {
	writer *csv.Writer
	closer io.Closer
	schema *arrow.Schema
	stats  CSVWriterStats
	closed bool
}

// NewCSVWriter creates a CSVWriter writing records with schema to w.
func NewCSVWriter(w io.WriteCloser, schema *arrow.Schema, options ...WriterOptionCSV) (*CSVWriter, error) {
	if schema == nil {
		return nil, &CSVWriterError{Op: "schema", Err: fmt.Errorf("schema is required")}
	}

	opts := CSVWriterOptions{
		Comma:       ',',
		WriteHeader: true,
	}
	for _, opt := range options {
		opt(&opts)
	}

	return &CSVWriter{
		writer: csv.NewWriter(w, schema,
			csv.WithComma(opts.Comma),
			csv.WithCRLF(opts.UseCRLF),
			csv.WithHeader(opts.WriteHeader),
			csv.WithNullWriter(opts.NullValue),
		),
		closer: w,
		schema: schema,
	}, nil
}

// Write encodes one record batch.
func (c *CSVWriter) Write(ctx context.Context, record arrow.Record) error {
	if c.closed {
		return &CSVWriterError{Op: "write", Err: fmt.Errorf("csv writer is closed")}
	}
	select {
	case <-ctx.Done():
		return &CSVWriterError{Op: "write", Err: ctx.Err()}
	default:
	}
	if !record.Schema().Equal(c.schema) {
		return &CSVWriterError{Op: "validate", Err: fmt.Errorf("record schema %s does not match writer schema %s", record.Schema(), c.schema)}
	}

	start := time.Now()
	if err := c.writer.Write(record); err != nil {
		return &CSVWriterError{Op: "write_record", Err: err}
	}
	c.stats.RowsWritten += record.NumRows()
	c.stats.WriteDuration += time.Since(start)
	c.stats.LastWriteTime = time.Now()
	return nil
}

// Flush forces buffered rows to the underlying writer.
func (c *CSVWriter) Flush() error {
	if err := c.writer.Flush(); err != nil {
		return &CSVWriterError{Op: "flush", Err: err}
	}
	c.stats.FlushCount++
	return nil
}

// Close flushes and closes the underlying writer. Closing twice is a no-op.
func (c *CSVWriter) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	if err := c.Flush(); err != nil {
		return err
	}
	if c.closer != nil {
		return c.closer.Close()
	}
	return nil
}

// Stats returns CSV writer statistics.
func (c *CSVWriter) Stats() CSVWriterStats {
	return c.stats
}
