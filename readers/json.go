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

	"github.com/apache/arrow/go/v12/arrow"
	"github.com/apache/arrow/go/v12/arrow/array"
	"github.com/apache/arrow/go/v12/arrow/memory"
)

// JSONReader decodes line-delimited JSON objects into Arrow record batches.
type JSONReader struct {
	reader *array.JSONReader
	closer io.Closer
	rows   int64
}

// NewJSONReader creates a JSON lines reader producing batches of batchSize
// rows with the given schema. Keys missing from an object read as null.
func NewJSONReader(r io.ReadCloser, schema *arrow.Schema, batchSize int, mem memory.Allocator) *JSONReader {
	if batchSize <= 0 {
		batchSize = 1000
	}
	if mem == nil {
		mem = memory.NewGoAllocator()
	}
	return &JSONReader{
		reader: array.NewJSONReader(r, schema, array.WithChunk(batchSize), array.WithAllocator(mem)),
		closer: r,
	}
}

// Next returns the next record batch or io.EOF. The caller releases the
// returned record.
func (j *JSONReader) Next(ctx context.Context) (arrow.Record, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if !j.reader.Next() {
		if err := j.reader.Err(); err != nil && err != io.EOF {
			return nil, fmt.Errorf("json reader: %w", err)
		}
		return nil, io.EOF
	}
	rec := j.reader.Record()
	rec.Retain()
	j.rows += rec.NumRows()
	return rec, nil
}

// RowsRead reports how many rows have been decoded.
func (j *JSONReader) RowsRead() int64 {
	return j.rows
}

// Close releases the decoder and closes the underlying reader.
func (j *JSONReader) Close() error {
	if j.reader != nil {
		j.reader.Release()
		j.reader = nil
	}
	if j.closer != nil {
		return j.closer.Close()
	}
	return nil
}
