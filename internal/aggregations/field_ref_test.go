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

package aggregations

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FerretDB/aggregator/internal/types"
	"github.com/FerretDB/aggregator/internal/util/must"
)

func TestNewFieldRef(t *testing.T) {
	t.Parallel()

	for name, tc := range map[string]struct {
		value    any
		expected FieldRef
		err      FieldRefErrorCode
	}{
		"Field": {
			value:    "$category",
			expected: Field("category"),
		},
		"WholeInt32": {
			value:    int32(1),
			expected: WholeDocument(),
		},
		"WholeFloat": {
			value:    float64(1),
			expected: WholeDocument(),
		},
		"NoSigil": {
			value: "category",
			err:   ErrNotFieldRef,
		},
		"EmptyPath": {
			value: "$",
			err:   ErrEmptyFieldPath,
		},
		"Two": {
			value: int32(2),
			err:   ErrNotFieldRef,
		},
		"Null": {
			value: types.Null,
			err:   ErrNotFieldRef,
		},
	} {
		name, tc := name, tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			ref, err := NewFieldRef(tc.value)
			if tc.err != 0 {
				var refErr *FieldRefError
				require.ErrorAs(t, err, &refErr)
				assert.Equal(t, tc.err, refErr.Code())
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.expected, ref)
		})
	}
}

func TestFieldRefEvaluate(t *testing.T) {
	t.Parallel()

	doc := must.NotFail(types.NewDocument("sales", int32(1000), "color", types.Null))

	v, ok := Field("sales").Evaluate(doc)
	assert.True(t, ok)
	assert.Equal(t, int32(1000), v)

	v, ok = Field("color").Evaluate(doc)
	assert.True(t, ok, "null is present")
	assert.Equal(t, types.Null, v)

	_, ok = Field("missing").Evaluate(doc)
	assert.False(t, ok)

	v, ok = WholeDocument().Evaluate(doc)
	assert.True(t, ok)
	assert.Same(t, doc, v)

	assert.Equal(t, "$sales", Field("sales").String())
	assert.Equal(t, "1", WholeDocument().String())
}

func TestGetWholeNumber(t *testing.T) {
	t.Parallel()

	n, ok := GetWholeNumber(float64(-1))
	assert.True(t, ok)
	assert.Equal(t, int64(-1), n)

	_, ok = GetWholeNumber(1.5)
	assert.False(t, ok)

	_, ok = GetWholeNumber(math.Inf(1))
	assert.False(t, ok)

	_, ok = GetWholeNumber("1")
	assert.False(t, ok)
}
