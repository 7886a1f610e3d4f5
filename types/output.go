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


// Package types describes where aggregate results go: local files or S3
// objects, in CSV, JSON lines or Parquet.
package types

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/apache/arrow/go/v12/arrow"
	s3manager "github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/aaronlmathis/goudaf/readers"
	"github.com/aaronlmathis/goudaf/writers"
)

// OutputFormat represents a supported sink format.
type OutputFormat int

const (
	FormatCSV OutputFormat = iota
	FormatJSON
	FormatParquet
)

func (f OutputFormat) String() string {
	switch f {
	case FormatCSV:
		return "csv"
	case FormatJSON:
		return "json"
	case FormatParquet:
		return "parquet"
	default:
		return fmt.Sprintf("OutputFormat(%d)", int(f))
	}
}

// FormatFromPath picks the format from a file name extension.
func FormatFromPath(path string) (OutputFormat, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV, nil
	case ".json", ".jsonl", ".ndjson":
		return FormatJSON, nil
	case ".parquet", ".pq":
		return FormatParquet, nil
	default:
		return 0, fmt.Errorf("cannot infer output format from %q", path)
	}
}

// Sink consumes record batches.
type Sink interface {
	Write(ctx context.Context, rec arrow.Record) error
	Close() error
}

// OutputLocation creates a Sink for a given format and record schema.
type OutputLocation interface {
	NewSink(format OutputFormat, schema *arrow.Schema) (Sink, error)
}

// ParseLocation maps s3://bucket/key to an S3Location and anything else to a
// FileLocation.
func ParseLocation(uri string) (OutputLocation, error) {
	rest, ok := strings.CutPrefix(uri, "s3://")
	if !ok {
		return FileLocation{Path: uri}, nil
	}
	bucket, key, _ := strings.Cut(rest, "/")
	if bucket == "" || key == "" {
		return nil, fmt.Errorf("invalid S3 location %q", uri)
	}
	return S3Location{Bucket: bucket, Key: key}, nil
}

// FileLocation writes output to a local filesystem path.
type FileLocation struct {
	Path string
}

// NewSink instantiates a writer for the file location.
func (f FileLocation) NewSink(format OutputFormat, schema *arrow.Schema) (Sink, error) {
	if format == FormatParquet {
		return writers.NewParquetWriter(f.Path, schema)
	}
	file, err := os.Create(f.Path)
	if err != nil {
		return nil, err
	}
	sink, err := newStreamSink(file, format, schema)
	if err != nil {
		file.Close()
		os.Remove(f.Path)
		return nil, err
	}
	return sink, nil
}

func newStreamSink(w io.WriteCloser, format OutputFormat, schema *arrow.Schema) (Sink, error) {
	switch format {
	case FormatCSV:
		return writers.NewCSVWriter(w, schema)
	case FormatJSON:
		return writers.NewJSONWriter(w), nil
	case FormatParquet:
		return writers.NewParquetStreamWriter(w, schema)
	default:
		return nil, fmt.Errorf("unsupported output format %s", format)
	}
}

// Uploader is the part of the S3 transfer manager S3Location uses.
type Uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3manager.Uploader)) (*s3manager.UploadOutput, error)
}

// S3Location writes objects to an S3 bucket. The object is buffered in
// memory and uploaded when the sink is closed.
type S3Location struct {
	Bucket   string
	Key      string
	Uploader Uploader // Built from ClientOptions when nil

	ClientOptions []readers.S3Option
}

// NewSink creates a writer uploading to S3.
func (s S3Location) NewSink(format OutputFormat, schema *arrow.Schema) (Sink, error) {
	if s.Bucket == "" || s.Key == "" {
		return nil, fmt.Errorf("S3Location requires a bucket and a key")
	}
	if s.Uploader == nil {
		client, err := readers.NewS3Client(context.Background(), s.ClientOptions...)
		if err != nil {
			return nil, err
		}
		s.Uploader = s3manager.NewUploader(client)
	}
	return newStreamSink(&s3Object{uploader: s.Uploader, bucket: s.Bucket, key: s.Key}, format, schema)
}

// s3Object buffers an object body and uploads it on the first Close.
type s3Object struct {
	buf      bytes.Buffer
	uploader Uploader
	bucket   string
	key      string
	closed   bool
}

func (o *s3Object) Write(p []byte) (int, error) { return o.buf.Write(p) }

func (o *s3Object) Close() error {
	if o.closed {
		return nil
	}
	o.closed = true
	_, err := o.uploader.Upload(context.Background(), &s3.PutObjectInput{
		Bucket: &o.bucket,
		Key:    &o.key,
		Body:   bytes.NewReader(o.buf.Bytes()),
	})
	if err != nil {
		return fmt.Errorf("upload s3://%s/%s: %w", o.bucket, o.key, err)
	}
	return nil
}
