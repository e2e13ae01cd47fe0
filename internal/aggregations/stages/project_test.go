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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FerretDB/aggregator/internal/aggerrors"
	"github.com/FerretDB/aggregator/internal/types"
	"github.com/FerretDB/aggregator/internal/util/must"
	"github.com/FerretDB/aggregator/internal/util/testutil"
)

func TestProject(t *testing.T) {
	t.Parallel()

	in := []*types.Document{
		must.NotFail(types.NewDocument(
			"_id", int32(1),
			"price", int32(10),
			"qty", int32(3),
			"name", "pen",
			"tags", must.NotFail(types.NewArray("a", "b")),
		)),
		must.NotFail(types.NewDocument("_id", int32(2), "price", 2.5, "name", "cap")),
	}

	for name, tc := range map[string]struct {
		spec     *types.Document
		expected []*types.Document
		err      aggerrors.ErrorCode
	}{
		"Inclusion": {
			spec: must.NotFail(types.NewDocument("name", int32(1), "_id", true, "missing", int32(1))),
			expected: []*types.Document{
				must.NotFail(types.NewDocument("name", "pen", "_id", int32(1))),
				must.NotFail(types.NewDocument("name", "cap", "_id", int32(2))),
			},
		},
		"Exclusion": {
			spec: must.NotFail(types.NewDocument("_id", int32(0), "name", "name", "price", false)),
			expected: []*types.Document{
				must.NotFail(types.NewDocument("name", "pen")),
				must.NotFail(types.NewDocument("name", "cap")),
			},
		},
		"Rename": {
			spec: must.NotFail(types.NewDocument("title", "$name", "labels", "$tags")),
			expected: []*types.Document{
				must.NotFail(types.NewDocument("title", "pen", "labels", must.NotFail(types.NewArray("a", "b")))),
				must.NotFail(types.NewDocument("title", "cap")),
			},
		},
		"Computed": {
			spec: must.NotFail(types.NewDocument(
				"name", int32(1),
				"total", must.NotFail(types.NewDocument("$multiply", must.NotFail(types.NewArray("price", "qty")))),
				"half", must.NotFail(types.NewDocument("$divide", must.NotFail(types.NewArray("$price", "$price")))),
			)),
			expected: []*types.Document{
				must.NotFail(types.NewDocument("name", "pen", "total", int32(30), "half", 1.0)),
				must.NotFail(types.NewDocument("name", "cap", "half", 1.0)),
			},
		},
		"ComputedTypeMismatch": {
			spec: must.NotFail(types.NewDocument(
				"bad", must.NotFail(types.NewDocument("$add", must.NotFail(types.NewArray("price", "name")))),
			)),
			err: aggerrors.ErrTypeMismatch,
		},
	} {
		name, tc := name, tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			res, err := process(t, Project{Spec: tc.spec}, in)
			if tc.err != 0 {
				assert.True(t, aggerrors.Is(err, tc.err), "%v", err)
				return
			}

			require.NoError(t, err)
			testutil.AssertEqualDocuments(t, tc.expected, res)
		})
	}
}

func TestProjectComposition(t *testing.T) {
	t.Parallel()

	wide := Project{Spec: must.NotFail(types.NewDocument("category", int32(1), "color", int32(1), "sales", int32(1)))}
	narrow := Project{Spec: must.NotFail(types.NewDocument("sales", int32(1), "category", int32(1)))}

	direct, err := process(t, narrow, salesData())
	require.NoError(t, err)

	widened, err := process(t, wide, salesData())
	require.NoError(t, err)

	composed, err := process(t, narrow, widened)
	require.NoError(t, err)

	testutil.AssertEqualDocuments(t, direct, composed)
}

func TestProjectDoesNotShareValues(t *testing.T) {
	t.Parallel()

	nested := must.NotFail(types.NewDocument("a", int32(1)))
	in := []*types.Document{must.NotFail(types.NewDocument("n", nested))}

	res, err := process(t, Project{Spec: must.NotFail(types.NewDocument("n", int32(1)))}, in)
	require.NoError(t, err)

	out := must.NotFail(res[0].Get("n")).(*types.Document)
	must.NoError(out.Set("a", int32(2)))

	assert.Equal(t, int32(1), must.NotFail(nested.Get("a")))
}
