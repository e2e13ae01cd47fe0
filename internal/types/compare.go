// Copyright 2021 FerretDB Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package types

import (
	"math"
	"math/big"

	"golang.org/x/exp/constraints"
)

// CompareResult represents the result of a comparison.
type CompareResult int8

// Values match results of comparison functions such as bytes.Compare.
// They do not match SortType values where 1 means ascending order and -1 means descending.
const (
	Equal   CompareResult = 0  // ==
	Less    CompareResult = -1 // <
	Greater CompareResult = 1  // >

	// Incomparable is returned for values of different type classes (e.g. a number and a string),
	// and for unequal documents or arrays that have no defined order.
	Incomparable CompareResult = 2 // ≹
)

// String implements fmt.Stringer.
func (r CompareResult) String() string {
	switch r {
	case Equal:
		return "=="
	case Less:
		return "<"
	case Greater:
		return ">"
	case Incomparable:
		return "≹"
	default:
		return "CompareResult(?)"
	}
}

// SortType represents sort direction for $sort.
type SortType int8

const (
	// Ascending is used for sort in ascending order.
	Ascending SortType = 1

	// Descending is used for sort in descending order.
	Descending SortType = -1
)

// Compare compares two values without type coercion:
//
//   - numbers of any number type are compared numerically;
//   - strings are compared lexicographically (byte-wise);
//   - booleans are ordered false < true;
//   - nulls are equal to each other;
//   - documents and arrays are Equal if they are deeply equal and Incomparable otherwise.
//
// Values of different type classes are Incomparable.
func Compare(a, b any) CompareResult {
	if a == nil {
		panic("types.Compare: a is nil")
	}

	if b == nil {
		panic("types.Compare: b is nil")
	}

	switch a := a.(type) {
	case float64, int32, int64:
		if !IsNumber(b) {
			return Incomparable
		}

		return compareNumbers(a, b)

	case string:
		b, ok := b.(string)
		if !ok {
			return Incomparable
		}

		return compareOrdered(a, b)

	case bool:
		b, ok := b.(bool)
		if !ok {
			return Incomparable
		}

		switch {
		case a == b:
			return Equal
		case b:
			return Less
		default:
			return Greater
		}

	case NullType:
		if _, ok := b.(NullType); ok {
			return Equal
		}

		return Incomparable

	case *Document, *Array:
		if DeepEqual(a, b) {
			return Equal
		}

		return Incomparable
	}

	panic("not reached")
}

// compareOrdered compares values of the same type using ==, <, > operators.
func compareOrdered[T constraints.Ordered](a, b T) CompareResult {
	switch {
	case a == b:
		return Equal
	case a < b:
		return Less
	case a > b:
		return Greater
	default:
		panic("unsupported order")
	}
}

// compareNumbers compares two numbers of any number types.
//
// NaN is equal to NaN and less than any other number.
func compareNumbers(a, b any) CompareResult {
	switch a := a.(type) {
	case int32:
		switch b := b.(type) {
		case int32:
			return compareOrdered(a, b)
		case int64:
			return compareOrdered(int64(a), b)
		case float64:
			return compareIntFloat(int64(a), b)
		}

	case int64:
		switch b := b.(type) {
		case int32:
			return compareOrdered(a, int64(b))
		case int64:
			return compareOrdered(a, b)
		case float64:
			return compareIntFloat(a, b)
		}

	case float64:
		switch b := b.(type) {
		case int32:
			return -compareIntFloat(int64(b), a)
		case int64:
			return -compareIntFloat(b, a)
		case float64:
			switch aNaN, bNaN := math.IsNaN(a), math.IsNaN(b); {
			case aNaN && bNaN:
				return Equal
			case aNaN:
				return Less
			case bNaN:
				return Greater
			}

			return compareOrdered(a, b)
		}
	}

	panic("compareNumbers: not numbers")
}

// compareIntFloat compares an integer with a float without losing precision.
func compareIntFloat(i int64, f float64) CompareResult {
	if math.IsNaN(f) {
		return Greater
	}

	bigI := new(big.Float).SetInt64(i)
	bigF := new(big.Float).SetFloat64(f)

	return CompareResult(bigI.Cmp(bigF))
}

// DeepEqual returns true if values are deeply equal.
//
// Numbers are equal if they have the same numeric value regardless of their type;
// there is no other type coercion. Documents are equal if they have the same keys
// in the same order with equal values.
func DeepEqual(a, b any) bool {
	switch a := a.(type) {
	case *Document:
		b, ok := b.(*Document)
		if !ok || a.Len() != b.Len() {
			return false
		}

		for i, k := range a.keys {
			if b.keys[i] != k || !DeepEqual(a.m[k], b.m[k]) {
				return false
			}
		}

		return true

	case *Array:
		b, ok := b.(*Array)
		if !ok || a.Len() != b.Len() {
			return false
		}

		for i := range a.s {
			if !DeepEqual(a.s[i], b.s[i]) {
				return false
			}
		}

		return true

	case float64, int32, int64:
		return IsNumber(b) && compareNumbers(a, b) == Equal

	case string, bool, NullType:
		return a == b

	default:
		return false
	}
}
