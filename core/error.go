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

package core

import (
	"errors"
	"fmt"
)

// Package core defines the error handling types for the GoUDAF library.
//
// The engine only distinguishes two kinds of failure at this boundary:
// execution errors (raised while running an aggregate) and configuration
// errors (raised while registering or instantiating one).

var (
	// ErrInvalidArgument marks a registration argument the library cannot accept.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrUnsupportedMergeShape is returned when MergeBatch receives anything
	// other than exactly one state column.
	ErrUnsupportedMergeShape = errors.New("merge requires exactly one state column")
)

// ExecutionError wraps any failure that happens while an accumulator runs:
// marshaling failures and errors raised by user code alike.
type ExecutionError struct {
	Op  string // Operation that failed (e.g., "update_batch", "state", "create_accumulator")
	Err error  // Underlying error
}

// Error returns the error string for ExecutionError.
func (e *ExecutionError) Error() string {
	return fmt.Sprintf("execution error in %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for ExecutionError.
func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// ConfigError reports a registration-time problem: a bad argument or a user
// object missing a required method.
type ConfigError struct {
	Op  string
	Err error
}

// Error returns the error string for ConfigError.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error in %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for ConfigError.
func (e *ConfigError) Unwrap() error {
	return e.Err
}
