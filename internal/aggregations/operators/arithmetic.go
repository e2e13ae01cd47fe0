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

package operators

import (
	"fmt"
	"math"

	"github.com/FerretDB/aggregator/internal/aggerrors"
	"github.com/FerretDB/aggregator/internal/aggregations"
	"github.com/FerretDB/aggregator/internal/types"
)

// arithmetic represents a binary arithmetic operator such as $add.
type arithmetic struct {
	apply func(a, b any) (any, error)
	name  string
	left  aggregations.FieldRef
	right aggregations.FieldRef
}

// newArithmetic returns a constructor of the named binary arithmetic operator.
func newArithmetic(name string, apply func(a, b any) (any, error)) newOperatorFunc {
	return func(left, right aggregations.FieldRef) Operator {
		return &arithmetic{
			apply: apply,
			name:  name,
			left:  left,
			right: right,
		}
	}
}

// Process implements Operator interface.
func (op *arithmetic) Process(doc *types.Document) (any, bool, error) {
	a, ok := op.left.Evaluate(doc)
	if !ok {
		return nil, false, nil
	}

	b, ok := op.right.Evaluate(doc)
	if !ok {
		return nil, false, nil
	}

	_, aNull := a.(types.NullType)
	_, bNull := b.(types.NullType)

	if aNull || bNull {
		return types.Null, true, nil
	}

	if !types.IsNumber(a) || !types.IsNumber(b) {
		return nil, false, aggerrors.NewPipelineErrorMsgWithArgument(
			aggerrors.ErrTypeMismatch,
			fmt.Sprintf(
				"%s only supports numeric types, not %s and %s",
				op.name, types.TypeName(a), types.TypeName(b),
			),
			op.name,
		)
	}

	res, err := op.apply(a, b)
	if err != nil {
		return nil, false, err
	}

	return res, true, nil
}

// add returns a + b.
func add(a, b any) (any, error) {
	return integerOrFloat(a, b,
		func(x, y int64) (int64, bool) {
			s := x + y
			return s, (s > x) == (y > 0)
		},
		func(x, y float64) float64 { return x + y },
	), nil
}

// subtract returns a - b.
func subtract(a, b any) (any, error) {
	return integerOrFloat(a, b,
		func(x, y int64) (int64, bool) {
			d := x - y
			return d, (d < x) == (y > 0)
		},
		func(x, y float64) float64 { return x - y },
	), nil
}

// multiply returns a * b.
func multiply(a, b any) (any, error) {
	return integerOrFloat(a, b,
		func(x, y int64) (int64, bool) {
			if x == 0 || y == 0 {
				return 0, true
			}

			p := x * y
			if p/y != x || (x == -1 && y == math.MinInt64) || (y == -1 && x == math.MinInt64) {
				return 0, false
			}

			return p, true
		},
		func(x, y float64) float64 { return x * y },
	), nil
}

// divide returns a / b as a double.
func divide(a, b any) (any, error) {
	divisor := toFloat(b)
	if divisor == 0 {
		return nil, aggerrors.NewPipelineErrorMsgWithArgument(
			aggerrors.ErrDivideByZero,
			"can't $divide by zero",
			"$divide",
		)
	}

	return toFloat(a) / divisor, nil
}

// integerOrFloat applies integer operation if both a and b are integers and the result does not overflow,
// and float operation otherwise.
//
// The integer result is int32 if both arguments are int32 and the result fits, int64 otherwise.
func integerOrFloat(a, b any, intOp func(x, y int64) (int64, bool), floatOp func(x, y float64) float64) any {
	x, xInt := toInt(a)
	y, yInt := toInt(b)

	if xInt && yInt {
		if res, ok := intOp(x, y); ok {
			_, a32 := a.(int32)
			_, b32 := b.(int32)

			if a32 && b32 && res >= math.MinInt32 && res <= math.MaxInt32 {
				return int32(res)
			}

			return res
		}
	}

	return floatOp(toFloat(a), toFloat(b))
}

// toInt returns the integer value of int32 and int64 numbers.
func toInt(v any) (int64, bool) {
	switch v := v.(type) {
	case int32:
		return int64(v), true
	case int64:
		return v, true
	default:
		return 0, false
	}
}

// toFloat converts any number to float64.
func toFloat(v any) float64 {
	switch v := v.(type) {
	case int32:
		return float64(v)
	case int64:
		return float64(v)
	case float64:
		return v
	default:
		panic(fmt.Sprintf("toFloat: unexpected type %T", v))
	}
}

// check interfaces
var (
	_ Operator = (*arithmetic)(nil)
)
