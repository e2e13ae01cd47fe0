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
	"sort"

	"github.com/FerretDB/aggregator/internal/aggerrors"
	"github.com/FerretDB/aggregator/internal/aggregations"
	"github.com/FerretDB/aggregator/internal/types"
	"github.com/FerretDB/aggregator/internal/util/must"
)

// sortStage represents $sort stage.
type sortStage struct {
	fields []sortField
}

// sortField is a single sort key in priority order.
type sortField struct {
	name  string
	order types.SortType
}

// newSort creates a new $sort stage.
func newSort(d Sort) (aggregations.Stage, error) {
	if err := requireSpec(d.Name(), d.Spec); err != nil {
		return nil, err
	}

	if d.Spec.Len() == 0 {
		return nil, aggerrors.NewPipelineErrorMsgWithArgument(
			aggerrors.ErrInvalidStageSpec,
			"$sort key specification must not be empty",
			d.Name(),
		)
	}

	fields := make([]sortField, 0, d.Spec.Len())

	for _, field := range d.Spec.Keys() {
		v := must.NotFail(d.Spec.Get(field))

		n, ok := aggregations.GetWholeNumber(v)
		if !ok || (n != 1 && n != -1) {
			return nil, aggerrors.NewPipelineErrorMsgWithArgument(
				aggerrors.ErrInvalidStageSpec,
				fmt.Sprintf("$sort direction for field '%s' must be 1 or -1, got %s", field, types.FormatAnyValue(v)),
				d.Name(),
			)
		}

		fields = append(fields, sortField{name: field, order: types.SortType(n)})
	}

	return &sortStage{fields: fields}, nil
}

// Process implements Stage interface.
//
// Sorting is stable: documents with equal keys keep their input order.
// Absent and null values sort before any other value.
func (s *sortStage) Process(ctx context.Context, in []*types.Document) ([]*types.Document, error) {
	res := make([]*types.Document, len(in))
	copy(res, in)

	var sortErr error

	sort.SliceStable(res, func(i, j int) bool {
		if sortErr != nil {
			return false
		}

		for _, f := range s.fields {
			c, err := compareForSort(res[i], res[j], f.name)
			if err != nil {
				sortErr = err
				return false
			}

			if c == types.Equal {
				continue
			}

			if f.order == types.Descending {
				return c == types.Greater
			}

			return c == types.Less
		}

		return false
	})

	if sortErr != nil {
		return nil, sortErr
	}

	return res, nil
}

// compareForSort compares values of the given field of two documents.
func compareForSort(a, b *types.Document, field string) (types.CompareResult, error) {
	av, aNull := sortValue(a, field)
	bv, bNull := sortValue(b, field)

	switch {
	case aNull && bNull:
		return types.Equal, nil
	case aNull:
		return types.Less, nil
	case bNull:
		return types.Greater, nil
	}

	c := types.Compare(av, bv)
	if c == types.Incomparable {
		return c, aggerrors.NewPipelineErrorMsgWithArgument(
			aggerrors.ErrTypeMismatch,
			fmt.Sprintf(
				"$sort can't order %s and %s values of field '%s'",
				types.TypeName(av), types.TypeName(bv), field,
			),
			field,
		)
	}

	return c, nil
}

// sortValue returns the field value and true if it is absent or null.
func sortValue(doc *types.Document, field string) (any, bool) {
	v, err := doc.Get(field)
	if err != nil {
		return nil, true
	}

	_, null := v.(types.NullType)

	return v, null
}

// check interfaces
var (
	_ aggregations.Stage = (*sortStage)(nil)
)
