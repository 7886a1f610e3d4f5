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
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/apache/arrow/go/v12/arrow"
	"github.com/apache/arrow/go/v12/arrow/array"
	"github.com/apache/arrow/go/v12/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaronlmathis/goudaf/readers"
)

type closeRecorder struct {
	bytes.Buffer
	closed bool
}

func (c *closeRecorder) Close() error {
	c.closed = true
	return nil
}

func TestCSVWriter(t *testing.T) {
	mem := memory.NewGoAllocator()
	rec := resultRecord(mem, []string{"east", "west"}, []int64{8, 0}, []bool{true, false})
	defer rec.Release()

	var out closeRecorder
	writer, err := NewCSVWriter(&out, resultSchema, WithNullValue("NA"))
	require.NoError(t, err)

	require.NoError(t, writer.Write(context.Background(), rec))
	require.NoError(t, writer.Close())
	require.NoError(t, writer.Close())
	assert.True(t, out.closed)

	assert.Equal(t, "region,total\neast,8\nwest,NA\n", out.String())
	assert.Equal(t, int64(2), writer.Stats().RowsWritten)

	err = writer.Write(context.Background(), rec)
	var csvErr *CSVWriterError
	require.ErrorAs(t, err, &csvErr)
	assert.Equal(t, "write", csvErr.Op)
}

func TestCSVWriter_Options(t *testing.T) {
	mem := memory.NewGoAllocator()
	rec := resultRecord(mem, []string{"east"}, []int64{8}, nil)
	defer rec.Release()

	var out closeRecorder
	writer, err := NewCSVWriter(&out, resultSchema, WithComma(';'), WithWriteHeader(false), WithUseCRLF(true))
	require.NoError(t, err)
	require.NoError(t, writer.Write(context.Background(), rec))
	require.NoError(t, writer.Flush())
	assert.Equal(t, "east;8\r\n", out.String())

	other := arrow.NewSchema([]arrow.Field{{Name: "n", Type: arrow.PrimitiveTypes.Int32}}, nil)
	b := array.NewRecordBuilder(mem, other)
	b.Field(0).(*array.Int32Builder).Append(1)
	mismatched := b.NewRecord()
	b.Release()
	defer mismatched.Release()

	var csvErr *CSVWriterError
	require.ErrorAs(t, writer.Write(context.Background(), mismatched), &csvErr)
	assert.Equal(t, "validate", csvErr.Op)

	_, err = NewCSVWriter(&out, nil)
	require.ErrorAs(t, err, &csvErr)
}

func TestJSONWriter_RoundTrip(t *testing.T) {
	mem := memory.NewGoAllocator()
	rec := resultRecord(mem, []string{"east", "west", "north"}, []int64{8, 0, 30}, []bool{true, false, true})
	defer rec.Release()

	var out closeRecorder
	writer := NewJSONWriter(&out)
	require.NoError(t, writer.Write(context.Background(), rec))
	require.NoError(t, writer.Flush())
	assert.Equal(t, int64(3), writer.RowsWritten())
	assert.Equal(t, 3, strings.Count(out.String(), "\n"))

	reader := readers.NewJSONReader(io.NopCloser(bytes.NewReader(out.Bytes())), resultSchema, 10, mem)
	defer reader.Close()
	back, err := reader.Next(context.Background())
	require.NoError(t, err)
	defer back.Release()

	assert.True(t, array.RecordEqual(rec, back), "got %v", back)

	require.NoError(t, writer.Close())
	assert.True(t, out.closed)
}
