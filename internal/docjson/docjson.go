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

// Package docjson encodes and decodes documents as MongoDB Extended JSON (relaxed mode).
//
// Collections are JSON arrays of objects or JSON lines (one object per line).
// Integers that fit into int32 are decoded as int32, others as int64;
// numbers with a fraction or exponent are decoded as float64.
package docjson

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"math"
	"sort"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/FerretDB/aggregator/internal/types"
	"github.com/FerretDB/aggregator/internal/util/lazyerrors"
)

// maxLineSize is the maximum size of a single JSON line.
const maxLineSize = 16 * 1024 * 1024

// Unmarshal decodes a JSON array of objects or JSON lines into documents.
func Unmarshal(data []byte) ([]*types.Document, error) {
	data = bytes.TrimSpace(data)

	if len(data) == 0 {
		return nil, nil
	}

	if data[0] != '[' {
		return unmarshalLines(bytes.NewReader(data))
	}

	// Extended JSON reader expects a document at the top level
	wrapped := make([]byte, 0, len(data)+6)
	wrapped = append(wrapped, `{"a":`...)
	wrapped = append(wrapped, data...)
	wrapped = append(wrapped, '}')

	var raw bson.D
	if err := bson.UnmarshalExtJSON(wrapped, false, &raw); err != nil {
		return nil, lazyerrors.Error(err)
	}

	if len(raw) != 1 {
		return nil, lazyerrors.Errorf("expected array, got %d values", len(raw))
	}

	v, err := fromBSON(raw[0].Value)
	if err != nil {
		return nil, lazyerrors.Error(err)
	}

	arr, ok := v.(*types.Array)
	if !ok {
		return nil, lazyerrors.Errorf("expected array, got %s", types.TypeName(v))
	}

	res := make([]*types.Document, arr.Len())

	for i := range res {
		v, _ := arr.Get(i)

		doc, ok := v.(*types.Document)
		if !ok {
			return nil, lazyerrors.Errorf("element %d: expected object, got %s", i, types.TypeName(v))
		}

		res[i] = doc
	}

	return res, nil
}

// UnmarshalDocument decodes a single JSON object.
func UnmarshalDocument(data []byte) (*types.Document, error) {
	var raw bson.D
	if err := bson.UnmarshalExtJSON(data, false, &raw); err != nil {
		return nil, lazyerrors.Error(err)
	}

	v, err := fromBSON(raw)
	if err != nil {
		return nil, lazyerrors.Error(err)
	}

	return v.(*types.Document), nil
}

// unmarshalLines decodes JSON lines; empty lines are skipped.
func unmarshalLines(r io.Reader) ([]*types.Document, error) {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var res []*types.Document

	var n int

	for s.Scan() {
		n++

		line := bytes.TrimSpace(s.Bytes())
		if len(line) == 0 {
			continue
		}

		doc, err := UnmarshalDocument(line)
		if err != nil {
			return nil, lazyerrors.Errorf("line %d: %w", n, err)
		}

		res = append(res, doc)
	}

	if err := s.Err(); err != nil {
		return nil, lazyerrors.Error(err)
	}

	return res, nil
}

// Marshal encodes documents as a JSON array with one document per line.
func Marshal(docs []*types.Document) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString("[")

	for i, doc := range docs {
		if i > 0 {
			buf.WriteString(",")
		}

		buf.WriteString("\n  ")

		b, err := MarshalDocument(doc)
		if err != nil {
			return nil, lazyerrors.Error(err)
		}

		buf.Write(b)
	}

	if len(docs) > 0 {
		buf.WriteString("\n")
	}

	buf.WriteString("]\n")

	return buf.Bytes(), nil
}

// MarshalDocument encodes a single document as a JSON object.
func MarshalDocument(doc *types.Document) ([]byte, error) {
	b, err := bson.MarshalExtJSON(toBSON(doc), false, false)
	if err != nil {
		return nil, lazyerrors.Error(err)
	}

	return b, nil
}

// FromBSON converts bson.D to document.
// Supported values are documents, arrays, doubles, integers, strings, booleans and null;
// Go int values are converted to int32 if they fit.
func FromBSON(d bson.D) (*types.Document, error) {
	v, err := fromBSON(d)
	if err != nil {
		return nil, lazyerrors.Error(err)
	}

	return v.(*types.Document), nil
}

// ToBSON converts document to bson.D.
func ToBSON(doc *types.Document) bson.D {
	return toBSON(doc).(bson.D)
}

// fromBSON converts a value decoded by the bson package.
func fromBSON(v any) (any, error) {
	switch v := v.(type) {
	case bson.D:
		doc := types.MakeDocument(len(v))

		for _, e := range v {
			if doc.Has(e.Key) {
				return nil, fmt.Errorf("duplicate key %q", e.Key)
			}

			val, err := fromBSON(e.Value)
			if err != nil {
				return nil, fmt.Errorf("%q: %w", e.Key, err)
			}

			if err = doc.Set(e.Key, val); err != nil {
				return nil, err
			}
		}

		return doc, nil

	case bson.M:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}

		sort.Strings(keys)

		d := make(bson.D, len(keys))
		for i, k := range keys {
			d[i] = bson.E{Key: k, Value: v[k]}
		}

		return fromBSON(d)

	case bson.A:
		return fromBSONArray(v)

	case []any:
		return fromBSONArray(v)

	case nil:
		return types.Null, nil

	case float64, int32, int64, string, bool:
		return v, nil

	case int:
		if v >= math.MinInt32 && v <= math.MaxInt32 {
			return int32(v), nil
		}

		return int64(v), nil

	default:
		return nil, fmt.Errorf("unsupported type %T", v)
	}
}

// fromBSONArray converts array elements.
func fromBSONArray(vs []any) (*types.Array, error) {
	arr, err := types.NewArray()
	if err != nil {
		return nil, err
	}

	for i, e := range vs {
		val, err := fromBSON(e)
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}

		if err = arr.Append(val); err != nil {
			return nil, err
		}
	}

	return arr, nil
}

// toBSON converts a value to the form encoded by the bson package.
func toBSON(v any) any {
	switch v := v.(type) {
	case *types.Document:
		d := make(bson.D, 0, v.Len())

		for _, k := range v.Keys() {
			val, _ := v.Get(k)
			d = append(d, bson.E{Key: k, Value: toBSON(val)})
		}

		return d

	case *types.Array:
		a := make(bson.A, v.Len())

		for i := range a {
			val, _ := v.Get(i)
			a[i] = toBSON(val)
		}

		return a

	case types.NullType:
		return nil

	default:
		return v
	}
}
