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
	"fmt"
	"strings"
)

// Package core defines the core types for the GoUDAF library.
//
// This file contains the function volatility classification and its parser.

// Volatility classifies how deterministic a function is, which decides what
// the optimizer may do with it.
type Volatility int

const (
	// Immutable functions always return the same output for the same input.
	Immutable Volatility = iota
	// Stable functions return the same output within a single query.
	Stable
	// Volatile functions may return a different output on every call.
	Volatile
)

// String returns the lowercase name of the volatility.
func (v Volatility) String() string {
	switch v {
	case Immutable:
		return "immutable"
	case Stable:
		return "stable"
	case Volatile:
		return "volatile"
	default:
		return fmt.Sprintf("volatility(%d)", int(v))
	}
}

// ParseVolatility parses "immutable", "stable" or "volatile", ignoring case and
// surrounding whitespace.
func ParseVolatility(s string) (Volatility, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "immutable":
		return Immutable, nil
	case "stable":
		return Stable, nil
	case "volatile":
		return Volatile, nil
	default:
		return 0, &ConfigError{
			Op:  "parse_volatility",
			Err: fmt.Errorf("%w: unsupported volatility type %q, must be one of 'immutable', 'stable' or 'volatile'", ErrInvalidArgument, s),
		}
	}
}
