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

package stages

import (
	"context"
	"fmt"

	"github.com/FerretDB/aggregator/internal/aggerrors"
	"github.com/FerretDB/aggregator/internal/aggregations"
	"github.com/FerretDB/aggregator/internal/types"
	"github.com/FerretDB/aggregator/internal/util/must"
)

// matchStage represents $match stage.
type matchStage struct {
	conditions []condition
}

// condition is a single comparison of a document field against a value.
type condition struct {
	field    string
	operator string
	value    any
}

// filterOperators maps all supported comparison operators.
var filterOperators = map[string]func(v any, present bool, value any) bool{
	// sorted alphabetically
	"$eq":  matchEq,
	"$gt":  matchOrdering(types.Greater),
	"$gte": matchOrdering(types.Greater, types.Equal),
	"$lt":  matchOrdering(types.Less),
	"$lte": matchOrdering(types.Less, types.Equal),
	"$ne": func(v any, present bool, value any) bool {
		return !matchEq(v, present, value)
	},
	// please keep sorted alphabetically
}

// newMatch creates a new $match stage.
func newMatch(d Match) (aggregations.Stage, error) {
	if err := requireSpec(d.Name(), d.Filter); err != nil {
		return nil, err
	}

	var conditions []condition

	for _, field := range d.Filter.Keys() {
		v := must.NotFail(d.Filter.Get(field))

		clause, ok := v.(*types.Document)
		if !ok {
			conditions = append(conditions, condition{field: field, operator: "$eq", value: v})
			continue
		}

		for _, op := range clause.Keys() {
			if _, ok := filterOperators[op]; !ok {
				return nil, aggerrors.NewPipelineErrorMsgWithArgument(
					aggerrors.ErrUnknownOperator,
					fmt.Sprintf("unknown operator %q for field '%s'", op, field),
					op,
				)
			}

			conditions = append(conditions, condition{
				field:    field,
				operator: op,
				value:    must.NotFail(clause.Get(op)),
			})
		}
	}

	return &matchStage{conditions: conditions}, nil
}

// Process implements Stage interface.
func (m *matchStage) Process(ctx context.Context, in []*types.Document) ([]*types.Document, error) {
	res := make([]*types.Document, 0, len(in))

	for _, doc := range in {
		if m.matches(doc) {
			res = append(res, doc)
		}
	}

	return res, nil
}

// matches returns true if the document satisfies all conditions.
func (m *matchStage) matches(doc *types.Document) bool {
	for _, c := range m.conditions {
		v, err := doc.Get(c.field)
		present := err == nil

		if !filterOperators[c.operator](v, present, c.value) {
			return false
		}
	}

	return true
}

// matchEq returns true if the field value equals the given value.
// Null value matches both null and absent field.
func matchEq(v any, present bool, value any) bool {
	if _, ok := value.(types.NullType); ok {
		if !present {
			return true
		}

		_, ok = v.(types.NullType)

		return ok
	}

	return present && types.DeepEqual(v, value)
}

// matchOrdering returns a comparison operator that is satisfied when the field value
// compares to the given value with any of the wanted results.
// Absent field and values of different types never satisfy it.
func matchOrdering(want ...types.CompareResult) func(v any, present bool, value any) bool {
	return func(v any, present bool, value any) bool {
		if !present {
			return false
		}

		res := types.Compare(v, value)
		for _, w := range want {
			if res == w {
				return true
			}
		}

		return false
	}
}

// check interfaces
var (
	_ aggregations.Stage = (*matchStage)(nil)
)
