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
	"fmt"

	"github.com/FerretDB/aggregator/internal/aggerrors"
	"github.com/FerretDB/aggregator/internal/aggregations"
	"github.com/FerretDB/aggregator/internal/types"
	"github.com/FerretDB/aggregator/internal/util/iterator"
	"github.com/FerretDB/aggregator/internal/util/lazyerrors"
)

// extremum represents $min and $max aggregate functions.
type extremum struct {
	name string
	ref  aggregations.FieldRef

	// want is the comparison result of a candidate against the current extremum
	// that makes the candidate the new extremum.
	want types.CompareResult
}

// newMin creates a new $min aggregate function.
func newMin(ref aggregations.FieldRef) (Accumulator, error) {
	if err := requireField("$min", ref); err != nil {
		return nil, err
	}

	return &extremum{name: "$min", ref: ref, want: types.Less}, nil
}

// newMax creates a new $max aggregate function.
func newMax(ref aggregations.FieldRef) (Accumulator, error) {
	if err := requireField("$max", ref); err != nil {
		return nil, err
	}

	return &extremum{name: "$max", ref: ref, want: types.Greater}, nil
}

// Accumulate implements Accumulator interface.
//
// Missing and null values are skipped.
// The first of several equal extremums is returned as is, without type conversion.
func (e *extremum) Accumulate(iter iterator.Interface[int, *types.Document]) (any, error) {
	values, err := fieldValues(iter, e.ref)
	if err != nil {
		return nil, lazyerrors.Error(err)
	}

	var res any

	for _, v := range values {
		if _, ok := v.(types.NullType); ok {
			continue
		}

		if res == nil {
			res = v
			continue
		}

		switch types.Compare(v, res) {
		case types.Incomparable:
			return nil, aggerrors.NewPipelineErrorMsgWithArgument(
				aggerrors.ErrTypeMismatch,
				fmt.Sprintf(
					"%s can't compare %s and %s values of field '%s'",
					e.name, types.TypeName(res), types.TypeName(v), e.ref.FieldName(),
				),
				e.name,
			)
		case e.want:
			res = v
		}
	}

	if res == nil {
		return nil, aggerrors.NewPipelineErrorMsgWithArgument(
			aggerrors.ErrEmptyAggregation,
			fmt.Sprintf("%s found no values of field '%s'", e.name, e.ref.FieldName()),
			e.name,
		)
	}

	return res, nil
}

// check interfaces
var (
	_ Accumulator = (*extremum)(nil)
)
