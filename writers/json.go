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
	"bufio"
	"context"
	"fmt"
	"io"

	"github.com/apache/arrow/go/v12/arrow"
	"github.com/apache/arrow/go/v12/arrow/array"
)

// JSONWriter writes Arrow record batches as line-delimited JSON, one object
// per row. Output is buffered until Flush or Close.
type JSONWriter struct {
	buf    *bufio.Writer
	dest   io.WriteCloser
	rows   int64
	closed bool
}

// NewJSONWriter wraps w. Closing the writer closes w.
func NewJSONWriter(w io.WriteCloser) *JSONWriter {
	return &JSONWriter{buf: bufio.NewWriter(w), dest: w}
}

// Write encodes every row of record.
func (j *JSONWriter) Write(ctx context.Context, record arrow.Record) error {
	if j.closed {
		return fmt.Errorf("json writer is closed")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := array.RecordToJSON(record, j.buf); err != nil {
		return fmt.Errorf("encode record as JSON: %w", err)
	}
	j.rows += record.NumRows()
	return nil
}

// RowsWritten reports how many rows have been written.
func (j *JSONWriter) RowsWritten() int64 {
	return j.rows
}

// Flush pushes buffered rows to the destination.
func (j *JSONWriter) Flush() error {
	return j.buf.Flush()
}

// Close flushes and closes the destination. Closing twice is a no-op.
func (j *JSONWriter) Close() error {
	if j.closed {
		return nil
	}
	j.closed = true
	if err := j.buf.Flush(); err != nil {
		j.dest.Close()
		return err
	}
	return j.dest.Close()
}
