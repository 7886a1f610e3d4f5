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

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3ReaderError provides structured error information for S3 reader operations
type S3ReaderError struct {
	Op  string // Operation that failed (e.g., "create_aws_config", "get_object", "read_body")
	Err error  // Underlying error
}

func (e *S3ReaderError) Error() string {
	return fmt.Sprintf("s3 reader %s: %v", e.Op, e.Err)
}

func (e *S3ReaderError) Unwrap() error {
	return e.Err
}

// S3ReaderOptions configures access to the bucket holding a Parquet object.
type S3ReaderOptions struct {
	Region         string          // AWS region
	Profile        string          // AWS profile to use
	Credentials    aws.Credentials // Explicit credentials
	EndpointURL    string          // Custom S3 endpoint (for S3-compatible services)
	ForcePathStyle bool            // Use path-style addressing
	ParquetOptions []ReaderOption  // Passed through to the Parquet reader
}

// S3Option represents a configuration function for S3ReaderOptions
type S3Option func(*S3ReaderOptions)

func WithS3Region(region string) S3Option {
	return func(opts *S3ReaderOptions) {
		opts.Region = region
	}
}

func WithS3Profile(profile string) S3Option {
	return func(opts *S3ReaderOptions) {
		opts.Profile = profile
	}
}

func WithS3Credentials(creds aws.Credentials) S3Option {
	return func(opts *S3ReaderOptions) {
		opts.Credentials = creds
	}
}

func WithS3Endpoint(endpoint string) S3Option {
	return func(opts *S3ReaderOptions) {
		opts.EndpointURL = endpoint
	}
}

func WithS3PathStyle(pathStyle bool) S3Option {
	return func(opts *S3ReaderOptions) {
		opts.ForcePathStyle = pathStyle
	}
}

// WithS3ReaderOptions forwards options to the Parquet reader built over the
// downloaded object.
func WithS3ReaderOptions(options ...ReaderOption) S3Option {
	return func(opts *S3ReaderOptions) {
		opts.ParquetOptions = append(opts.ParquetOptions, options...)
	}
}

// NewS3ParquetReader downloads s3://bucket/key and serves it as Arrow record
// batches. The whole object is held in memory.
func NewS3ParquetReader(ctx context.Context, bucket, key string, options ...S3Option) (*ParquetReader, error) {
	if bucket == "" || key == "" {
		return nil, &S3ReaderError{Op: "validate_options", Err: fmt.Errorf("bucket and key are required")}
	}

	opts := collectS3Options(options)
	client, err := opts.client(ctx)
	if err != nil {
		return nil, err
	}

	obj, err := client.GetObject(ctx, &s3.GetObjectInput{Bucket: &bucket, Key: &key})
	if err != nil {
		return nil, &S3ReaderError{Op: "get_object", Err: fmt.Errorf("s3://%s/%s: %w", bucket, key, err)}
	}
	defer obj.Body.Close()

	data, err := io.ReadAll(obj.Body)
	if err != nil {
		return nil, &S3ReaderError{Op: "read_body", Err: err}
	}
	return NewParquetReaderFromBytes(data, opts.ParquetOptions...)
}

// NewS3Client builds an S3 client from the same options the reader takes,
// for callers that write results back to a bucket.
func NewS3Client(ctx context.Context, options ...S3Option) (*s3.Client, error) {
	return collectS3Options(options).client(ctx)
}

func collectS3Options(options []S3Option) S3ReaderOptions {
	var opts S3ReaderOptions
	for _, option := range options {
		option(&opts)
	}
	return opts
}

func (opts S3ReaderOptions) client(ctx context.Context) (*s3.Client, error) {
	cfg, err := opts.awsConfig(ctx)
	if err != nil {
		return nil, &S3ReaderError{Op: "create_aws_config", Err: err}
	}
	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.EndpointURL != "" {
			o.BaseEndpoint = aws.String(opts.EndpointURL)
		}
		o.UsePathStyle = opts.ForcePathStyle
	}), nil
}

// awsConfig resolves the shared AWS config. Explicit credentials win over
// the default chain.
func (opts S3ReaderOptions) awsConfig(ctx context.Context) (aws.Config, error) {
	var load []func(*config.LoadOptions) error
	if opts.Region != "" {
		load = append(load, config.WithRegion(opts.Region))
	}
	if opts.Profile != "" {
		load = append(load, config.WithSharedConfigProfile(opts.Profile))
	}
	if c := opts.Credentials; c.AccessKeyID != "" {
		static := credentials.NewStaticCredentialsProvider(c.AccessKeyID, c.SecretAccessKey, c.SessionToken)
		load = append(load, config.WithCredentialsProvider(aws.NewCredentialsCache(static)))
	}
	return config.LoadDefaultConfig(ctx, load...)
}
