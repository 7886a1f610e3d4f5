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
	"github.com/apache/arrow/go/v12/arrow"
	"github.com/apache/arrow/go/v12/arrow/scalar"
)

// Package core defines the engine-facing contract for the GoUDAF library.
//
// GoUDAF lets aggregate functions written in an embedded scripting runtime run
// inside a columnar, Arrow-based execution engine. The engine only ever sees the
// interfaces in this package; everything scripting-specific lives behind them.
//
// This file contains the Accumulator contract and the factory the engine uses
// to obtain one accumulator per partition or group.

// Accumulator is the engine's incremental aggregation contract.
// One Accumulator is created per partition or group and is never shared between
// them. Batches are Arrow arrays; intermediate and final results are scalars.
type Accumulator interface {
	// State returns the serializable intermediate result, one scalar per
	// declared state type.
	State() ([]scalar.Scalar, error)
	// Evaluate returns the final aggregate value.
	Evaluate() (scalar.Scalar, error)
	// UpdateBatch folds one array per input column into the accumulator.
	UpdateBatch(values []arrow.Array) error
	// MergeBatch folds intermediate state produced by other accumulators.
	// Each array holds one state slot, one row per partial result.
	MergeBatch(states []arrow.Array) error
	// RetractBatch removes previously added input rows. Only valid when
	// SupportsRetractBatch reports true.
	RetractBatch(values []arrow.Array) error
	// SupportsRetractBatch reports whether RetractBatch may be called.
	// It never fails; any problem answering the question means false.
	SupportsRetractBatch() bool
	// Size returns the approximate in-memory footprint in bytes.
	Size() int
}

// AccumulatorArgs is the per-call context the engine hands to an
// AccumulatorFactory.
type AccumulatorArgs struct {
	Name       string
	InputTypes []arrow.DataType
	ReturnType arrow.DataType
}

// AccumulatorFactory produces a fresh Accumulator for one partition or group.
type AccumulatorFactory func(args AccumulatorArgs) (Accumulator, error)
