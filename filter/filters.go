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


// Package filter provides reusable, composable row filters for Arrow record
// batches, applied before rows reach an aggregate function.
package filter

import (
	"context"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/apache/arrow/go/v12/arrow"
	"github.com/apache/arrow/go/v12/arrow/array"
	"github.com/apache/arrow/go/v12/arrow/compute"
	"github.com/apache/arrow/go/v12/arrow/memory"
)

// Filter determines whether a row of a record batch should be kept.
type Filter interface {
	ShouldInclude(rec arrow.Record, row int) (bool, error)
}

// FilterFunc is a function adapter for the Filter interface.
type FilterFunc func(rec arrow.Record, row int) (bool, error)

// ShouldInclude implements the Filter interface for FilterFunc.
func (f FilterFunc) ShouldInclude(rec arrow.Record, row int) (bool, error) {
	return f(rec, row)
}

// Apply returns the rows of rec that pass f. The caller releases the result,
// which may be rec itself, retained, when every row passes.
func Apply(ctx context.Context, rec arrow.Record, f Filter, mem memory.Allocator) (arrow.Record, error) {
	if mem == nil {
		mem = memory.NewGoAllocator()
	}

	b := array.NewBooleanBuilder(mem)
	defer b.Release()
	kept := 0
	for i := 0; i < int(rec.NumRows()); i++ {
		include, err := f.ShouldInclude(rec, i)
		if err != nil {
			return nil, fmt.Errorf("filter row %d: %w", i, err)
		}
		if include {
			kept++
		}
		b.Append(include)
	}
	if kept == int(rec.NumRows()) {
		rec.Retain()
		return rec, nil
	}

	mask := b.NewArray()
	defer mask.Release()
	return compute.FilterRecordBatch(compute.WithAllocator(ctx, mem), rec, mask, compute.DefaultFilterOptions())
}

// value returns the Go value of column field at row, nil for nulls.
// exists is false when the column is missing.
func value(rec arrow.Record, field string, row int) (v interface{}, exists bool) {
	indices := rec.Schema().FieldIndices(field)
	if len(indices) == 0 {
		return nil, false
	}
	col := rec.Column(indices[0])
	if col.IsNull(row) {
		return nil, true
	}

	switch arr := col.(type) {
	case *array.Boolean:
		return arr.Value(row), true
	case *array.Int8:
		return int64(arr.Value(row)), true
	case *array.Int16:
		return int64(arr.Value(row)), true
	case *array.Int32:
		return int64(arr.Value(row)), true
	case *array.Int64:
		return arr.Value(row), true
	case *array.Uint8:
		return uint64(arr.Value(row)), true
	case *array.Uint16:
		return uint64(arr.Value(row)), true
	case *array.Uint32:
		return uint64(arr.Value(row)), true
	case *array.Uint64:
		return arr.Value(row), true
	case *array.Float32:
		return float64(arr.Value(row)), true
	case *array.Float64:
		return arr.Value(row), true
	case *array.String:
		return arr.Value(row), true
	case *array.Binary:
		return arr.Value(row), true
	default:
		return fmt.Sprintf("%v", col.GetOneForMarshal(row)), true
	}
}

// NotNull creates a filter that excludes rows where the specified column is null or an empty string
func NotNull(field string) Filter {
	return FilterFunc(func(rec arrow.Record, row int) (bool, error) {
		v, exists := value(rec, field, row)
		if !exists || v == nil {
			return false, nil
		}
		if str, ok := v.(string); ok && str == "" {
			return false, nil
		}
		return true, nil
	})
}

// Equals creates a filter that includes rows where the column equals the specified value.
// Numbers compare by value regardless of their Go type.
func Equals(field string, expectedValue interface{}) Filter {
	return FilterFunc(func(rec arrow.Record, row int) (bool, error) {
		v, exists := value(rec, field, row)
		if !exists {
			return false, nil
		}
		return equal(v, expectedValue), nil
	})
}

func equal(a, b interface{}) bool {
	fa, aNum := toFloat64(a)
	fb, bNum := toFloat64(b)
	if aNum && bNum {
		return fa == fb
	}
	return reflect.DeepEqual(a, b)
}

// Contains creates a filter that includes rows where the string column contains the substring
func Contains(field, substring string) Filter {
	return stringFilter(field, func(s string) bool { return strings.Contains(s, substring) })
}

// StartsWith creates a filter that includes rows where the string column starts with the prefix
func StartsWith(field, prefix string) Filter {
	return stringFilter(field, func(s string) bool { return strings.HasPrefix(s, prefix) })
}

// EndsWith creates a filter that includes rows where the string column ends with the suffix
func EndsWith(field, suffix string) Filter {
	return stringFilter(field, func(s string) bool { return strings.HasSuffix(s, suffix) })
}

// MatchesRegex creates a filter that includes rows where the string column matches the regex pattern.
// It panics if pattern does not compile.
func MatchesRegex(field, pattern string) Filter {
	regex := regexp.MustCompile(pattern)
	return stringFilter(field, regex.MatchString)
}

func stringFilter(field string, match func(string) bool) Filter {
	return FilterFunc(func(rec arrow.Record, row int) (bool, error) {
		v, _ := value(rec, field, row)
		if str, ok := v.(string); ok {
			return match(str), nil
		}
		return false, nil
	})
}

// GreaterThan creates a filter that includes rows where the numeric column is greater than the value
func GreaterThan(field string, threshold float64) Filter {
	return numericFilter(field, func(n float64) bool { return n > threshold })
}

// LessThan creates a filter that includes rows where the numeric column is less than the value
func LessThan(field string, threshold float64) Filter {
	return numericFilter(field, func(n float64) bool { return n < threshold })
}

// Between creates a filter that includes rows where the numeric column is between min and max (inclusive)
func Between(field string, min, max float64) Filter {
	return numericFilter(field, func(n float64) bool { return n >= min && n <= max })
}

func numericFilter(field string, match func(float64) bool) Filter {
	return FilterFunc(func(rec arrow.Record, row int) (bool, error) {
		v, _ := value(rec, field, row)
		num, ok := toFloat64(v)
		if !ok {
			return false, nil
		}
		return match(num), nil
	})
}

// In creates a filter that includes rows where the column value is in the provided set
func In(field string, values ...interface{}) Filter {
	return FilterFunc(func(rec arrow.Record, row int) (bool, error) {
		v, exists := value(rec, field, row)
		if !exists || v == nil {
			return false, nil
		}
		for _, candidate := range values {
			if equal(v, candidate) {
				return true, nil
			}
		}
		return false, nil
	})
}

// And creates a filter that requires all provided filters to pass
func And(filters ...Filter) Filter {
	return FilterFunc(func(rec arrow.Record, row int) (bool, error) {
		for _, filter := range filters {
			include, err := filter.ShouldInclude(rec, row)
			if err != nil || !include {
				return false, err
			}
		}
		return true, nil
	})
}

// Or creates a filter that requires at least one of the provided filters to pass
func Or(filters ...Filter) Filter {
	return FilterFunc(func(rec arrow.Record, row int) (bool, error) {
		for _, filter := range filters {
			include, err := filter.ShouldInclude(rec, row)
			if err != nil {
				return false, err
			}
			if include {
				return true, nil
			}
		}
		return false, nil
	})
}

// Not creates a filter that negates the provided filter
func Not(filter Filter) Filter {
	return FilterFunc(func(rec arrow.Record, row int) (bool, error) {
		include, err := filter.ShouldInclude(rec, row)
		if err != nil {
			return false, err
		}
		return !include, nil
	})
}

// Custom creates a filter from a predicate over a row's column values.
// Null values appear as nil; the map is built fresh for every row.
func Custom(predicate func(row map[string]interface{}) bool) Filter {
	return FilterFunc(func(rec arrow.Record, row int) (bool, error) {
		values := make(map[string]interface{}, rec.NumCols())
		for _, field := range rec.Schema().Fields() {
			values[field.Name], _ = value(rec, field.Name, row)
		}
		return predicate(values), nil
	})
}

// toFloat64 converts numeric column values to float64
func toFloat64(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
