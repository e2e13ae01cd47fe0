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

package docjson

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/FerretDB/aggregator/internal/types"
	"github.com/FerretDB/aggregator/internal/util/must"
	"github.com/FerretDB/aggregator/internal/util/testutil"
)

func TestUnmarshal(t *testing.T) {
	t.Parallel()

	expected := []*types.Document{
		must.NotFail(types.NewDocument(
			"name", "pen",
			"qty", int32(3),
			"big", int64(3_000_000_000),
			"price", 2.5,
			"whole", 2.0,
			"ok", true,
			"none", types.Null,
		)),
		must.NotFail(types.NewDocument(
			"z", must.NotFail(types.NewDocument("b", int32(1), "a", must.NotFail(types.NewArray("x", int32(2))))),
			"a", must.NotFail(types.NewArray()),
		)),
	}

	for name, tc := range map[string]struct {
		data string
	}{
		"Array": {
			data: `[
				{"name": "pen", "qty": 3, "big": 3000000000, "price": 2.5, "whole": 2.0, "ok": true, "none": null},
				{"z": {"b": 1, "a": ["x", 2]}, "a": []}
			]`,
		},
		"Lines": {
			data: `{"name": "pen", "qty": 3, "big": 3000000000, "price": 2.5, "whole": 2.0, "ok": true, "none": null}

{"z": {"b": 1, "a": ["x", 2]}, "a": []}
`,
		},
		"Canonical": {
			data: `[
				{"name": "pen", "qty": {"$numberInt": "3"}, "big": {"$numberLong": "3000000000"},
				 "price": {"$numberDouble": "2.5"}, "whole": {"$numberDouble": "2.0"}, "ok": true, "none": null},
				{"z": {"b": 1, "a": ["x", 2]}, "a": []}
			]`,
		},
	} {
		name, tc := name, tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			actual, err := Unmarshal([]byte(tc.data))
			require.NoError(t, err)
			testutil.AssertEqualDocuments(t, expected, actual)

			for i := range expected {
				assert.Equal(t, expected[i].Keys(), actual[i].Keys())
			}
		})
	}
}

func TestUnmarshalErrors(t *testing.T) {
	t.Parallel()

	for name, data := range map[string]string{
		"NotObject":   `[1, 2]`,
		"Invalid":     `[{"a": }]`,
		"BadLine":     "{\"a\": 1}\n{\"a\": \n",
		"ObjectID":    `[{"_id": {"$oid": "5f8f8c4b5e9d1e1b2c3d4e5f"}}]`,
		"DuplicateID": `[{"a": 1, "a": 2}]`,
	} {
		name, data := name, data
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			_, err := Unmarshal([]byte(data))
			assert.Error(t, err)
		})
	}
}

func TestUnmarshalEmpty(t *testing.T) {
	t.Parallel()

	docs, err := Unmarshal([]byte("  \n"))
	require.NoError(t, err)
	assert.Empty(t, docs)

	docs, err = Unmarshal([]byte("[]"))
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestUnmarshalEmptyKey(t *testing.T) {
	t.Parallel()

	docs, err := Unmarshal([]byte(`[{"": 1, "a": 2}]`))
	require.NoError(t, err)

	expected := []*types.Document{must.NotFail(types.NewDocument("", int32(1), "a", int32(2)))}
	testutil.AssertEqualDocuments(t, expected, docs)
}

func TestMarshal(t *testing.T) {
	t.Parallel()

	docs := []*types.Document{
		must.NotFail(types.NewDocument("b", int32(1), "a", 1.5, "n", types.Null)),
		must.NotFail(types.NewDocument("arr", must.NotFail(types.NewArray(true, "x")), "d", must.NotFail(types.NewDocument()))),
	}

	b, err := Marshal(docs)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"b":1`)
	assert.Contains(t, string(b), `"a":1.5`)
	assert.Contains(t, string(b), `"n":null`)

	actual, err := Unmarshal(b)
	require.NoError(t, err)
	testutil.AssertEqualDocuments(t, docs, actual)

	b, err = Marshal(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]\n", string(b))
}

func TestBSON(t *testing.T) {
	t.Parallel()

	d := bson.D{
		{Key: "a", Value: int32(1)},
		{Key: "b", Value: bson.D{{Key: "c", Value: bson.A{"x", nil, 2.5}}}},
		{Key: "d", Value: int64(2)},
	}

	doc, err := FromBSON(d)
	require.NoError(t, err)

	expected := must.NotFail(types.NewDocument(
		"a", int32(1),
		"b", must.NotFail(types.NewDocument("c", must.NotFail(types.NewArray("x", types.Null, 2.5)))),
		"d", int64(2),
	))
	testutil.AssertEqual(t, expected, doc)

	assert.Equal(t, d, ToBSON(doc))

	_, err = FromBSON(bson.D{{Key: "a", Value: uint(1)}})
	assert.Error(t, err)
}
