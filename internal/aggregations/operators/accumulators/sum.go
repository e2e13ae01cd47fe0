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

package accumulators

import (
	"math"
	"math/big"

	"github.com/FerretDB/aggregator/internal/aggregations"
	"github.com/FerretDB/aggregator/internal/types"
	"github.com/FerretDB/aggregator/internal/util/iterator"
	"github.com/FerretDB/aggregator/internal/util/lazyerrors"
)

// sum represents $sum aggregate function.
type sum struct {
	ref aggregations.FieldRef
}

// newSum creates a new $sum aggregate function.
func newSum(ref aggregations.FieldRef) (Accumulator, error) {
	return &sum{ref: ref}, nil
}

// Accumulate implements Accumulator interface.
//
// Over whole records, or over nested field values (documents or arrays),
// it returns the number of values.
func (s *sum) Accumulate(iter iterator.Interface[int, *types.Document]) (any, error) {
	values, err := fieldValues(iter, s.ref)
	if err != nil {
		return nil, lazyerrors.Error(err)
	}

	if s.ref.IsWholeDocument() || (len(values) > 0 && isNested(values[0])) {
		return count(len(values)), nil
	}

	return sumNumbers(values...), nil
}

// isNested returns true for documents and arrays.
func isNested(v any) bool {
	switch v.(type) {
	case *types.Document, *types.Array:
		return true
	default:
		return false
	}
}

// count returns n as int32 if it fits, int64 otherwise.
func count(n int) any {
	if n <= math.MaxInt32 {
		return int32(n)
	}

	return int64(n)
}

// sumNumbers accumulates numbers and returns the result of summation.
// The result has the same type as the input, except when the result
// cannot be presented accurately. Then int32 is converted to int64,
// and int64 is converted to float64. It ignores non-number values.
// Aggregation does not return error on overflow.
func sumNumbers(vs ...any) any {
	// big.Int keeps values larger than math.MaxInt64
	intSum := big.NewInt(0)

	// 2048 bits is enough to add doubles of any magnitude without losing the small ones
	floatSum := new(big.Float).SetPrec(2048)

	var hasFloat64, hasInt64 bool
	var nan, posInf, negInf bool

	for _, v := range vs {
		switch v := v.(type) {
		case float64:
			hasFloat64 = true

			switch {
			case math.IsNaN(v):
				nan = true
				continue
			case math.IsInf(v, 1):
				posInf = true
				continue
			case math.IsInf(v, -1):
				negInf = true
				continue
			}

			floatSum.Add(floatSum, new(big.Float).SetPrec(2048).SetFloat64(v))
		case int32:
			intSum.Add(intSum, big.NewInt(int64(v)))
		case int64:
			hasInt64 = true

			intSum.Add(intSum, big.NewInt(v))
		default:
			// ignore non-number
		}
	}

	// big.Float can't hold NaN, and panics on Inf - Inf
	switch {
	case nan, posInf && negInf:
		return math.NaN()
	case posInf:
		return math.Inf(1)
	case negInf:
		return math.Inf(-1)
	}

	if hasFloat64 || !intSum.IsInt64() {
		f, _ := floatSum.Add(floatSum, new(big.Float).SetInt(intSum)).Float64()
		return f
	}

	integer := intSum.Int64()

	if !hasInt64 && integer <= math.MaxInt32 && integer >= math.MinInt32 {
		return int32(integer)
	}

	return integer
}

// check interfaces
var (
	_ Accumulator = (*sum)(nil)
)
