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

// Package accumulators provides aggregate functions used by $group.
// Accumulators are different from other operators as they perform operations
// on a partition of records rather than a single record.
package accumulators

import (
	"fmt"
	"strings"

	"github.com/FerretDB/aggregator/internal/aggerrors"
	"github.com/FerretDB/aggregator/internal/aggregations"
	"github.com/FerretDB/aggregator/internal/types"
	"github.com/FerretDB/aggregator/internal/util/iterator"
	"github.com/FerretDB/aggregator/internal/util/must"
)

// newAccumulatorFunc is a type for a function that creates an accumulator
// over the referenced field or over whole records.
type newAccumulatorFunc func(ref aggregations.FieldRef) (Accumulator, error)

// Accumulator is a common interface for aggregate functions.
type Accumulator interface {
	// Accumulate consumes partition records and returns the aggregated value.
	// It always closes the iterator.
	Accumulate(iter iterator.Interface[int, *types.Document]) (any, error)
}

// Accumulators maps all aggregate functions.
var Accumulators = map[string]newAccumulatorFunc{
	// sorted alphabetically
	"$avg": newAvg,
	"$max": newMax,
	"$min": newMin,
	"$sum": newSum,
	// please keep sorted alphabetically
}

// NewAccumulator returns accumulator for the expression of the given output field.
//
// The expression is either a bare function tag ("$sum"), which operates over whole records,
// or a single-key document ({$sum: "$field"} or {$sum: 1}).
func NewAccumulator(field string, expr any) (Accumulator, error) {
	var name string
	var arg any = int32(1)

	switch expr := expr.(type) {
	case string:
		if !strings.HasPrefix(expr, "$") {
			return nil, invalidExpression(field)
		}

		name = expr

	case *types.Document:
		if expr.Len() != 1 {
			return nil, invalidExpression(field)
		}

		name = expr.Command()
		arg = must.NotFail(expr.Get(name))

	default:
		return nil, invalidExpression(field)
	}

	newAccumulator, ok := Accumulators[name]
	if !ok {
		return nil, aggerrors.NewPipelineErrorMsgWithArgument(
			aggerrors.ErrUnknownAggregateFunction,
			fmt.Sprintf("unknown aggregate function %q for field '%s'", name, field),
			name,
		)
	}

	ref, err := aggregations.NewFieldRef(arg)
	if err != nil {
		return nil, aggerrors.NewPipelineErrorMsgWithArgument(
			aggerrors.ErrInvalidAggregateExpression,
			fmt.Sprintf(
				"%s argument for field '%s' must be a field path or 1, got %s",
				name, field, types.FormatAnyValue(arg),
			),
			name,
		)
	}

	return newAccumulator(ref)
}

// invalidExpression returns an error for malformed aggregate expression of the given field.
func invalidExpression(field string) error {
	return aggerrors.NewPipelineErrorMsgWithArgument(
		aggerrors.ErrInvalidAggregateExpression,
		fmt.Sprintf("the field '%s' must be an aggregate function name or a single-function object", field),
		field,
	)
}

// requireField returns an error if the aggregate function is applied to whole records.
func requireField(name string, ref aggregations.FieldRef) error {
	if !ref.IsWholeDocument() {
		return nil
	}

	return aggerrors.NewPipelineErrorMsgWithArgument(
		aggerrors.ErrInvalidAggregateExpression,
		fmt.Sprintf("%s can't be applied to whole records", name),
		name,
	)
}

// fieldValues returns present values of the referenced field.
// Iterator is always closed.
func fieldValues(iter iterator.Interface[int, *types.Document], ref aggregations.FieldRef) ([]any, error) {
	docs, err := iterator.ConsumeValues(iter)
	if err != nil {
		return nil, err
	}

	res := make([]any, 0, len(docs))

	for _, doc := range docs {
		if v, ok := ref.Evaluate(doc); ok {
			res = append(res, v)
		}
	}

	return res, nil
}
