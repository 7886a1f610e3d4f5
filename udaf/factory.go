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
	"errors"

	"github.com/aaronlmathis/goudaf/core"
	"github.com/aaronlmathis/goudaf/script"
)

// newFactory binds udf's constructor into a core.AccumulatorFactory. Each call
// constructs a brand new script object; objects are never reused across
// partitions. The engine's per-call args are not needed.
func newFactory(udf *AggregateUDF) core.AccumulatorFactory {
	return func(_ core.AccumulatorArgs) (core.Accumulator, error) {
		var obj *script.Object
		err := script.Do(func() error {
			var err error
			obj, err = udf.ctor.Construct()
			if err != nil {
				return &core.ExecutionError{Op: "create_accumulator", Err: err}
			}
			if err := obj.RequireMethods(requiredMethods...); err != nil {
				return &core.ConfigError{Op: "create_accumulator", Err: err}
			}
			return nil
		})
		if err != nil {
			var cfgErr *core.ConfigError
			if errors.As(err, &cfgErr) {
				udf.logger.Error("accumulator object is missing required methods", "udaf", udf.name, "error", err)
			}
			return nil, err
		}

		udf.logger.Debug("accumulator created", "udaf", udf.name, "constructor", udf.ctor.Name())
		return newAccumulator(obj, udf), nil
	}
}
