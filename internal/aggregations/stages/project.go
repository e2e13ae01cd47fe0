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
	"strings"

	"github.com/FerretDB/aggregator/internal/aggerrors"
	"github.com/FerretDB/aggregator/internal/aggregations"
	"github.com/FerretDB/aggregator/internal/aggregations/operators"
	"github.com/FerretDB/aggregator/internal/types"
	"github.com/FerretDB/aggregator/internal/util/must"
)

// projectStage represents $project stage.
type projectStage struct {
	fields []projectedField
}

// projectedField is a single output field of the projection.
// Exactly one of source and operator is set.
type projectedField struct {
	operator operators.Operator
	output   string
	source   string
}

// newProject creates a new $project stage.
//
// Supported field values:
//   - 0 or false excludes the field;
//   - 1 (any other number), true or a plain string includes the field with the same name;
//   - "$<source>" includes the source field under the output name;
//   - { <operator>: [<field>, <field>] } computes the field.
func newProject(d Project) (aggregations.Stage, error) {
	if err := requireSpec(d.Name(), d.Spec); err != nil {
		return nil, err
	}

	fields := make([]projectedField, 0, d.Spec.Len())

	for _, field := range d.Spec.Keys() {
		v := must.NotFail(d.Spec.Get(field))

		switch v := v.(type) {
		case *types.Document:
			op, err := operators.NewOperator(field, v)
			if err != nil {
				return nil, err
			}

			fields = append(fields, projectedField{output: field, operator: op})

		case string:
			source := field

			if strings.HasPrefix(v, "$") {
				ref, err := aggregations.NewFieldRef(v)
				if err != nil {
					return nil, aggerrors.NewPipelineErrorMsgWithArgument(
						aggerrors.ErrInvalidStageSpec,
						fmt.Sprintf("invalid source field path %q for field '%s'", v, field),
						d.Name(),
					)
				}

				source = ref.FieldName()
			}

			fields = append(fields, projectedField{output: field, source: source})

		case bool:
			if v {
				fields = append(fields, projectedField{output: field, source: field})
			}

		case int32, int64, float64:
			if n, ok := aggregations.GetWholeNumber(v); !ok || n != 0 {
				fields = append(fields, projectedField{output: field, source: field})
			}

		default:
			return nil, aggerrors.NewPipelineErrorMsgWithArgument(
				aggerrors.ErrInvalidStageSpec,
				fmt.Sprintf("invalid projection value %s for field '%s'", types.FormatAnyValue(v), field),
				d.Name(),
			)
		}
	}

	return &projectStage{fields: fields}, nil
}

// Process implements Stage interface.
//
// Included fields absent from the source document are omitted,
// as are computed fields with an absent operand.
func (p *projectStage) Process(ctx context.Context, in []*types.Document) ([]*types.Document, error) {
	res := make([]*types.Document, len(in))

	for i, doc := range in {
		out := types.MakeDocument(len(p.fields))

		for _, f := range p.fields {
			if f.operator == nil {
				v, err := doc.Get(f.source)
				if err != nil {
					continue
				}

				must.NoError(out.Set(f.output, types.DeepCopyValue(v)))

				continue
			}

			v, ok, err := f.operator.Process(doc)
			if err != nil {
				return nil, err
			}

			if ok {
				must.NoError(out.Set(f.output, v))
			}
		}

		res[i] = out
	}

	return res, nil
}

// check interfaces
var (
	_ aggregations.Stage = (*projectStage)(nil)
)
