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

package udaf

import (
	"fmt"
	"unsafe"

	"github.com/apache/arrow/go/v12/arrow"
	"github.com/apache/arrow/go/v12/arrow/scalar"
	"github.com/dop251/goja"

	"github.com/aaronlmathis/goudaf/core"
	"github.com/aaronlmathis/goudaf/logging"
	"github.com/aaronlmathis/goudaf/marshal"
	"github.com/aaronlmathis/goudaf/script"
)

// Names of the methods a user accumulator object exposes.
const (
	methodUpdate         = "update"
	methodMerge          = "merge"
	methodState          = "state"
	methodEvaluate       = "evaluate"
	methodRetractBatch   = "retract_batch"
	methodSupportRetract = "supports_retract_batch"
)

var requiredMethods = []string{methodUpdate, methodMerge, methodState, methodEvaluate}

// accumulator adapts one script object to core.Accumulator. Every method
// crosses into the VM exactly once, inside script.Do.
type accumulator struct {
	obj        *script.Object // set once in newAccumulator, never replaced
	name       string
	inputTypes []arrow.DataType
	returnType arrow.DataType
	stateTypes []arrow.DataType
	logger     logging.Logger
}

var _ core.Accumulator = (*accumulator)(nil)

func newAccumulator(obj *script.Object, udf *AggregateUDF) *accumulator {
	return &accumulator{
		obj:        obj,
		name:       udf.name,
		inputTypes: udf.inputTypes,
		returnType: udf.returnType,
		stateTypes: udf.stateTypes,
		logger:     udf.logger,
	}
}

// State calls state() and converts the result to one scalar per state type.
func (a *accumulator) State() ([]scalar.Scalar, error) {
	var out []scalar.Scalar
	err := script.Do(func() error {
		v, err := a.obj.CallMethod(methodState)
		if err != nil {
			return err
		}
		out, err = marshal.FromNativeSequence(v, a.stateTypes)
		return err
	})
	if err != nil {
		return nil, &core.ExecutionError{Op: "state", Err: err}
	}
	return out, nil
}

// Evaluate calls evaluate() and converts the result to the return type.
func (a *accumulator) Evaluate() (scalar.Scalar, error) {
	var out scalar.Scalar
	err := script.Do(func() error {
		v, err := a.obj.CallMethod(methodEvaluate)
		if err != nil {
			return err
		}
		out, err = marshal.FromNative(v, a.returnType)
		return err
	})
	if err != nil {
		return nil, &core.ExecutionError{Op: "evaluate", Err: err}
	}
	return out, nil
}

// UpdateBatch passes one JS array per input column to update().
func (a *accumulator) UpdateBatch(values []arrow.Array) error {
	return a.callWithColumns("update_batch", methodUpdate, values)
}

// RetractBatch passes one JS array per input column to retract_batch().
func (a *accumulator) RetractBatch(values []arrow.Array) error {
	return a.callWithColumns("retract_batch", methodRetractBatch, values)
}

// MergeBatch passes the single state column to merge(). Accumulators with
// more than one state slot cannot be merged; that shape is rejected instead of
// silently dropping columns.
func (a *accumulator) MergeBatch(states []arrow.Array) error {
	if len(states) != 1 {
		return &core.ExecutionError{
			Op:  "merge_batch",
			Err: fmt.Errorf("%w: got %d", core.ErrUnsupportedMergeShape, len(states)),
		}
	}

	err := script.Do(func() error {
		state, err := marshal.ToNative(a.obj.VM(), states[0], a.stateTypes[0])
		if err != nil {
			return err
		}
		_, err = a.obj.CallMethod(methodMerge, state)
		return err
	})
	if err != nil {
		return &core.ExecutionError{Op: "merge_batch", Err: err}
	}
	return nil
}

// SupportsRetractBatch asks supports_retract_batch(). A missing method, a
// thrown exception or a non-boolean answer all mean false.
func (a *accumulator) SupportsRetractBatch() bool {
	supported := false
	err := script.Do(func() error {
		v, err := a.obj.CallMethod(methodSupportRetract)
		if err != nil {
			return err
		}
		b, ok := v.Export().(bool)
		if !ok {
			return fmt.Errorf("%s returned %s, not a boolean", methodSupportRetract, v)
		}
		supported = b
		return nil
	})
	if err != nil {
		a.logger.Debug("retraction support probe failed, assuming unsupported", "udaf", a.name, "error", err)
		return false
	}
	return supported
}

// Size reports the adapter's own footprint, not the script object's.
func (a *accumulator) Size() int {
	return int(unsafe.Sizeof(*a))
}

func (a *accumulator) callWithColumns(op, method string, values []arrow.Array) error {
	if len(values) != len(a.inputTypes) {
		return &core.ExecutionError{
			Op:  op,
			Err: fmt.Errorf("%w: expected %d input columns, got %d", marshal.ErrTypeMismatch, len(a.inputTypes), len(values)),
		}
	}

	err := script.Do(func() error {
		// Convert everything before calling so a bad column leaves the
		// object untouched.
		args := make([]goja.Value, len(values))
		for i, arr := range values {
			v, err := marshal.ToNative(a.obj.VM(), arr, a.inputTypes[i])
			if err != nil {
				return fmt.Errorf("column %d: %w", i, err)
			}
			args[i] = v
		}
		_, err := a.obj.CallMethod(method, args...)
		return err
	})
	if err != nil {
		return &core.ExecutionError{Op: op, Err: err}
	}
	return nil
}
