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

// Package operators provides aggregation expression operators used by $project.
//
// Aggregate functions used by $group are stored and described in the accumulators package.
package operators

import (
	"fmt"
	"strings"

	"github.com/FerretDB/aggregator/internal/aggerrors"
	"github.com/FerretDB/aggregator/internal/aggregations"
	"github.com/FerretDB/aggregator/internal/types"
	"github.com/FerretDB/aggregator/internal/util/must"
)

// newOperatorFunc is a type for a function that creates an operator over two operand fields.
type newOperatorFunc func(left, right aggregations.FieldRef) Operator

// Operator is a common interface for expression operators.
type Operator interface {
	// Process evaluates the operator against the document.
	// It returns false if any operand field is absent from the document.
	Process(doc *types.Document) (any, bool, error)
}

// Operators maps all supported expression operators.
var Operators = map[string]newOperatorFunc{
	// sorted alphabetically
	"$add":      newArithmetic("$add", add),
	"$divide":   newArithmetic("$divide", divide),
	"$multiply": newArithmetic("$multiply", multiply),
	"$subtract": newArithmetic("$subtract", subtract),
	// please keep sorted alphabetically
}

// IsOperator returns true if the document looks like an operator expression:
// it has a single key starting with "$".
func IsOperator(doc *types.Document) bool {
	return doc.Len() == 1 && strings.HasPrefix(doc.Command(), "$")
}

// NewOperator creates a new operator from the { <operator>: [<fieldA>, <fieldB>] } expression
// of the given output field.
func NewOperator(field string, expr *types.Document) (Operator, error) {
	if !IsOperator(expr) {
		return nil, aggerrors.NewPipelineErrorMsgWithArgument(
			aggerrors.ErrInvalidStageSpec,
			fmt.Sprintf("the computed field '%s' must specify exactly one operator", field),
			field,
		)
	}

	name := expr.Command()

	newOperator, ok := Operators[name]
	if !ok {
		return nil, aggerrors.NewPipelineErrorMsgWithArgument(
			aggerrors.ErrUnknownProjectionOperator,
			fmt.Sprintf("unknown projection operator %q", name),
			name,
		)
	}

	args, ok := must.NotFail(expr.Get(name)).(*types.Array)
	if !ok || args.Len() != 2 {
		return nil, aggerrors.NewPipelineErrorMsgWithArgument(
			aggerrors.ErrInvalidStageSpec,
			fmt.Sprintf("%s expects an array of exactly two field names", name),
			name,
		)
	}

	var operands [2]aggregations.FieldRef

	for i := range operands {
		operand, err := newOperand(must.NotFail(args.Get(i)))
		if err != nil {
			return nil, aggerrors.NewPipelineErrorMsgWithArgument(
				aggerrors.ErrInvalidStageSpec,
				fmt.Sprintf("%s operand %d must be a field name, got %s", name, i, types.FormatAnyValue(must.NotFail(args.Get(i)))),
				name,
			)
		}

		operands[i] = operand
	}

	return newOperator(operands[0], operands[1]), nil
}

// newOperand returns a reference to the field named by an operand;
// both "field" and "$field" forms are accepted.
func newOperand(v any) (aggregations.FieldRef, error) {
	s, ok := v.(string)
	if !ok {
		return aggregations.FieldRef{}, fmt.Errorf("operand is not a string")
	}

	s = strings.TrimPrefix(s, "$")
	if s == "" {
		return aggregations.FieldRef{}, fmt.Errorf("empty operand")
	}

	return aggregations.Field(s), nil
}
