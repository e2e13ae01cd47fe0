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
	"math"
	"strconv"

	"github.com/FerretDB/aggregator/internal/aggerrors"
	"github.com/FerretDB/aggregator/internal/aggregations"
	"github.com/FerretDB/aggregator/internal/aggregations/operators/accumulators"
	"github.com/FerretDB/aggregator/internal/types"
	"github.com/FerretDB/aggregator/internal/util/iterator"
	"github.com/FerretDB/aggregator/internal/util/must"
)

// groupStage represents $group stage.
//
//	{ $group: {
//		_id: <groupKey>,
//		<groupBy[0].outputField>: {accumulator0: expression0},
//		...
//		<groupBy[N].outputField>: {accumulatorN: expressionN},
//	}}
//
// The group key is written to the output under the key field name;
// whole-collection groups (_id: 1 or null) use "_id" with null value.
type groupStage struct {
	groupKey aggregations.FieldRef
	keyField string
	groupBy  []groupBy
}

// groupBy represents accumulation to apply on the group.
type groupBy struct {
	accumulator accumulators.Accumulator
	outputField string
}

// newGroup creates a new $group stage.
func newGroup(d Group) (aggregations.Stage, error) {
	if err := requireSpec(d.Name(), d.Spec); err != nil {
		return nil, err
	}

	if !d.Spec.Has("_id") {
		return nil, aggerrors.NewPipelineErrorMsgWithArgument(
			aggerrors.ErrInvalidStageSpec,
			"a group specification must include an _id",
			d.Name(),
		)
	}

	groupKey, err := newGroupKey(must.NotFail(d.Spec.Get("_id")))
	if err != nil {
		return nil, err
	}

	keyField := "_id"
	if !groupKey.IsWholeDocument() {
		keyField = groupKey.FieldName()
	}

	var groups []groupBy

	for _, field := range d.Spec.Keys() {
		if field == "_id" {
			continue
		}

		if field == keyField {
			return nil, aggerrors.NewPipelineErrorMsgWithArgument(
				aggerrors.ErrInvalidStageSpec,
				fmt.Sprintf("the field '%s' conflicts with the group key", field),
				d.Name(),
			)
		}

		accumulator, err := accumulators.NewAccumulator(field, must.NotFail(d.Spec.Get(field)))
		if err != nil {
			return nil, err
		}

		groups = append(groups, groupBy{
			accumulator: accumulator,
			outputField: field,
		})
	}

	return &groupStage{
		groupKey: groupKey,
		keyField: keyField,
		groupBy:  groups,
	}, nil
}

// newGroupKey resolves the _id value: a "$field" reference, or 1 or null for a single group.
func newGroupKey(v any) (aggregations.FieldRef, error) {
	if _, ok := v.(types.NullType); ok {
		return aggregations.WholeDocument(), nil
	}

	ref, err := aggregations.NewFieldRef(v)
	if err != nil {
		return aggregations.FieldRef{}, aggerrors.NewPipelineErrorMsgWithArgument(
			aggerrors.ErrInvalidStageSpec,
			fmt.Sprintf("group _id must be a field path, 1 or null, got %s", types.FormatAnyValue(v)),
			aggregations.StageGroup,
		)
	}

	return ref, nil
}

// Process implements Stage interface.
func (g *groupStage) Process(ctx context.Context, in []*types.Document) ([]*types.Document, error) {
	var groups groupMap

	for _, doc := range in {
		var key any = types.Null

		if !g.groupKey.IsWholeDocument() {
			if v, ok := g.groupKey.Evaluate(doc); ok {
				key = v
			}
		}

		groups.add(key, doc)
	}

	res := make([]*types.Document, 0, len(groups.groups))

	for _, group := range groups.groups {
		doc := must.NotFail(types.NewDocument(g.keyField, types.DeepCopyValue(group.groupID)))

		for _, accumulation := range g.groupBy {
			out, err := accumulation.accumulator.Accumulate(iterator.ForSlice(group.documents))
			if err != nil {
				return nil, err
			}

			must.NoError(doc.Set(accumulation.outputField, types.DeepCopyValue(out)))
		}

		res = append(res, doc)
	}

	return res, nil
}

// groupedDocuments contains group key and the documents for that group.
type groupedDocuments struct {
	groupID   any
	documents []*types.Document
}

// groupMap holds groups of documents in first-seen order.
type groupMap struct {
	groups []groupedDocuments

	// index maps a normalized key to indexes of candidate groups;
	// candidates are then checked with types.DeepEqual.
	index map[string][]int
}

// add appends the document to the group with the given key, creating it if needed.
func (m *groupMap) add(groupID any, doc *types.Document) {
	if m.index == nil {
		m.index = map[string][]int{}
	}

	k := normalizeKey(groupID)

	for _, i := range m.index[k] {
		if types.DeepEqual(m.groups[i].groupID, groupID) {
			m.groups[i].documents = append(m.groups[i].documents, doc)
			return
		}
	}

	m.index[k] = append(m.index[k], len(m.groups))
	m.groups = append(m.groups, groupedDocuments{
		groupID:   groupID,
		documents: []*types.Document{doc},
	})
}

// normalizeKey returns the partition identifier of the value, tagged with the value's type class.
//
// Numerically equal numbers of different types share an identifier;
// values of different type classes (1 and "1") never do.
// Documents and arrays share an identifier per class.
func normalizeKey(v any) string {
	switch v := v.(type) {
	case types.NullType:
		return "null"
	case bool:
		return "bool:" + strconv.FormatBool(v)
	case string:
		return "string:" + v
	case int32, int64, float64:
		if n, ok := aggregations.GetWholeNumber(v); ok {
			return "number:" + strconv.FormatInt(n, 10)
		}

		f := v.(float64)
		if math.IsNaN(f) {
			return "number:NaN"
		}

		return "number:" + strconv.FormatFloat(f, 'g', -1, 64)
	case *types.Document:
		return "object"
	case *types.Array:
		return "array"
	default:
		panic(fmt.Sprintf("normalizeKey: unexpected type %T", v))
	}
}

// check interfaces
var (
	_ aggregations.Stage = (*groupStage)(nil)
)
