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

// Package aggregate is a small execution harness that drives registered
// aggregate functions the way a columnar query engine does: a function
// catalog, hash grouping over Arrow records with parallel partial
// aggregation and a final merge, and sliding windows.
package aggregate

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/aaronlmathis/goudaf/udaf"
)

// Catalog holds registered aggregate functions by case-insensitive name.
// It is safe for concurrent use.
type Catalog struct {
	mu    sync.RWMutex
	funcs map[string]*udaf.AggregateUDF
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{funcs: make(map[string]*udaf.AggregateUDF)}
}

// Register adds udf. Registering a name twice is an error.
func (c *Catalog) Register(udf *udaf.AggregateUDF) error {
	if udf == nil {
		return fmt.Errorf("cannot register a nil aggregate function")
	}
	key := strings.ToLower(udf.Name())

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.funcs[key]; exists {
		return fmt.Errorf("aggregate function %q is already registered", udf.Name())
	}
	c.funcs[key] = udf
	return nil
}

// Lookup finds a function by name.
func (c *Catalog) Lookup(name string) (*udaf.AggregateUDF, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	udf, ok := c.funcs[strings.ToLower(name)]
	return udf, ok
}

// Names returns the registered names in sorted order.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.funcs))
	for _, udf := range c.funcs {
		names = append(names, udf.Name())
	}
	sort.Strings(names)
	return names
}
