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

	"github.com/FerretDB/aggregator/internal/aggregations"
	"github.com/FerretDB/aggregator/internal/types"
	"github.com/FerretDB/aggregator/internal/util/iterator"
	"github.com/FerretDB/aggregator/internal/util/lazyerrors"
)

// avg represents $avg aggregate function.
type avg struct {
	ref aggregations.FieldRef
}

// newAvg creates a new $avg aggregate function.
func newAvg(ref aggregations.FieldRef) (Accumulator, error) {
	if err := requireField("$avg", ref); err != nil {
		return nil, err
	}

	return &avg{ref: ref}, nil
}

// Accumulate implements Accumulator interface.
//
// It returns the arithmetic mean of numeric values as a double,
// or null if there are none.
func (a *avg) Accumulate(iter iterator.Interface[int, *types.Document]) (any, error) {
	values, err := fieldValues(iter, a.ref)
	if err != nil {
		return nil, lazyerrors.Error(err)
	}

	numbers := make([]any, 0, len(values))

	for _, v := range values {
		if types.IsNumber(v) {
			numbers = append(numbers, v)
		}
	}

	if len(numbers) == 0 {
		return types.Null, nil
	}

	var total float64

	switch s := sumNumbers(numbers...).(type) {
	case float64:
		total = s
	case int32:
		total = float64(s)
	case int64:
		total = float64(s)
	}

	if math.IsNaN(total) {
		return total, nil
	}

	return total / float64(len(numbers)), nil
}

// check interfaces
var (
	_ Accumulator = (*avg)(nil)
)
