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

// Package udaf turns accumulator classes written in JavaScript into aggregate
// functions the engine can call.
//
// A user class must expose update, merge, state and evaluate, and may expose
// retract_batch and supports_retract_batch:
//
//	class MySum {
//	  constructor() { this.total = 0 }
//	  update(xs) { for (const x of xs) if (x !== null) this.total += x }
//	  merge(states) { for (const s of states) if (s !== null) this.total += s }
//	  state() { return [this.total] }
//	  evaluate() { return this.total }
//	}
//
// Register it with New, then hand the descriptor to the engine:
//
//	rt := script.NewRuntime()
//	if err := rt.Load("my_sum.js", src); err != nil { ... }
//	ctor, err := rt.Constructor("MySum")
//	udf, err := udaf.New("my_sum", ctor,
//	    arrow.PrimitiveTypes.Int64, arrow.PrimitiveTypes.Int64,
//	    []arrow.DataType{arrow.PrimitiveTypes.Int64}, "immutable")
package udaf

import (
	"errors"
	"fmt"

	"github.com/apache/arrow/go/v12/arrow"

	"github.com/aaronlmathis/goudaf/core"
	"github.com/aaronlmathis/goudaf/logging"
	"github.com/aaronlmathis/goudaf/script"
)

// AggregateUDF describes a registered aggregate function. It is immutable
// after New returns.
type AggregateUDF struct {
	name       string
	ctor       *script.Constructor
	inputTypes []arrow.DataType
	returnType arrow.DataType
	stateTypes []arrow.DataType
	volatility core.Volatility
	factory    core.AccumulatorFactory
	logger     logging.Logger
}

// Options configures New.
type Options struct {
	Logger logging.Logger
}

// Option represents a configuration function for Options.
type Option func(*Options)

// WithLogger sets the logger used for accumulator lifecycle events.
func WithLogger(logger logging.Logger) Option {
	return func(opts *Options) {
		opts.Logger = logger
	}
}

// New validates its arguments, parses volatility and binds the accumulator
// factory. Argument problems come back as *core.ConfigError.
func New(name string, ctor *script.Constructor, inputType, returnType arrow.DataType, stateTypes []arrow.DataType, volatility string, options ...Option) (*AggregateUDF, error) {
	opts := &Options{}
	for _, option := range options {
		option(opts)
	}

	if err := validate(name, ctor, inputType, returnType, stateTypes); err != nil {
		return nil, &core.ConfigError{Op: "create_udaf", Err: err}
	}

	vol, err := core.ParseVolatility(volatility)
	if err != nil {
		return nil, err
	}

	udf := &AggregateUDF{
		name:       name,
		ctor:       ctor,
		inputTypes: []arrow.DataType{inputType},
		returnType: returnType,
		stateTypes: append([]arrow.DataType(nil), stateTypes...),
		volatility: vol,
		logger:     logging.OrNoOp(opts.Logger),
	}
	udf.factory = newFactory(udf)

	if len(stateTypes) > 1 {
		udf.logger.Warn("aggregate has more than one state column; partial results cannot be merged",
			"udaf", name, "state_columns", len(stateTypes))
	}
	return udf, nil
}

func validate(name string, ctor *script.Constructor, inputType, returnType arrow.DataType, stateTypes []arrow.DataType) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: name must not be empty", core.ErrInvalidArgument)
	case ctor == nil:
		return fmt.Errorf("%w: accumulator constructor is required", core.ErrInvalidArgument)
	case inputType == nil:
		return fmt.Errorf("%w: input type is required", core.ErrInvalidArgument)
	case returnType == nil:
		return fmt.Errorf("%w: return type is required", core.ErrInvalidArgument)
	case len(stateTypes) == 0:
		return fmt.Errorf("%w: at least one state type is required", core.ErrInvalidArgument)
	}
	for i, dt := range stateTypes {
		if dt == nil {
			return fmt.Errorf("%w: state type %d is nil", core.ErrInvalidArgument, i)
		}
	}
	return nil
}

// Name returns the function name.
func (u *AggregateUDF) Name() string { return u.name }

// InputTypes returns the declared input column types.
func (u *AggregateUDF) InputTypes() []arrow.DataType {
	return append([]arrow.DataType(nil), u.inputTypes...)
}

// ReturnType returns the type Evaluate produces.
func (u *AggregateUDF) ReturnType() arrow.DataType { return u.returnType }

// StateTypes returns the declared state slot types, in order.
func (u *AggregateUDF) StateTypes() []arrow.DataType {
	return append([]arrow.DataType(nil), u.stateTypes...)
}

// Volatility returns the parsed volatility.
func (u *AggregateUDF) Volatility() core.Volatility { return u.volatility }

// Factory returns the accumulator factory the engine calls once per
// partition or group.
func (u *AggregateUDF) Factory() core.AccumulatorFactory { return u.factory }

// CreateAccumulator invokes the factory with args describing this function.
func (u *AggregateUDF) CreateAccumulator() (core.Accumulator, error) {
	return u.factory(core.AccumulatorArgs{
		Name:       u.name,
		InputTypes: u.InputTypes(),
		ReturnType: u.returnType,
	})
}

// String implements fmt.Stringer.
func (u *AggregateUDF) String() string {
	return fmt.Sprintf("AggregateUDF(%s)", u.name)
}

// IsExecutionError reports whether err is, or wraps, a *core.ExecutionError.
func IsExecutionError(err error) bool {
	var execErr *core.ExecutionError
	return errors.As(err, &execErr)
}
