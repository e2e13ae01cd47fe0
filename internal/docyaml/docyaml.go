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

// Package docyaml decodes documents from YAML, preserving mapping key order.
//
// Integers that fit into int32 are decoded as int32, others as int64.
package docyaml

import (
	"fmt"
	"math"

	"gopkg.in/yaml.v3"

	"github.com/FerretDB/aggregator/internal/types"
	"github.com/FerretDB/aggregator/internal/util/lazyerrors"
)

// Unmarshal decodes a YAML sequence of mappings into documents.
// Empty input yields no documents.
func Unmarshal(data []byte) ([]*types.Document, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, lazyerrors.Error(err)
	}

	if root.Kind == 0 || len(root.Content) == 0 {
		return nil, nil
	}

	v, err := convert(root.Content[0])
	if err != nil {
		return nil, lazyerrors.Error(err)
	}

	arr, ok := v.(*types.Array)
	if !ok {
		return nil, lazyerrors.Errorf("expected sequence, got %s", types.TypeName(v))
	}

	res := make([]*types.Document, arr.Len())

	for i := range res {
		v, _ := arr.Get(i)

		doc, ok := v.(*types.Document)
		if !ok {
			return nil, lazyerrors.Errorf("element %d: expected mapping, got %s", i, types.TypeName(v))
		}

		res[i] = doc
	}

	return res, nil
}

// convert converts YAML node to a value.
func convert(node *yaml.Node) (any, error) {
	switch node.Kind {
	case yaml.MappingNode:
		doc := types.MakeDocument(len(node.Content) / 2)

		for i := 0; i < len(node.Content); i += 2 {
			k, v := node.Content[i], node.Content[i+1]

			if k.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("line %d: mapping key must be a scalar", k.Line)
			}

			if doc.Has(k.Value) {
				return nil, fmt.Errorf("line %d: duplicate key %q", k.Line, k.Value)
			}

			val, err := convert(v)
			if err != nil {
				return nil, err
			}

			if err = doc.Set(k.Value, val); err != nil {
				return nil, fmt.Errorf("line %d: %w", k.Line, err)
			}
		}

		return doc, nil

	case yaml.SequenceNode:
		arr, err := types.NewArray()
		if err != nil {
			return nil, err
		}

		for _, n := range node.Content {
			val, err := convert(n)
			if err != nil {
				return nil, err
			}

			if err = arr.Append(val); err != nil {
				return nil, err
			}
		}

		return arr, nil

	case yaml.ScalarNode:
		return convertScalar(node)

	case yaml.AliasNode:
		return convert(node.Alias)

	case yaml.DocumentNode:
		if len(node.Content) == 0 {
			return types.Null, nil
		}

		return convert(node.Content[0])

	default:
		return nil, fmt.Errorf("line %d: unexpected node kind %d", node.Line, node.Kind)
	}
}

// convertScalar converts YAML scalar node to a value.
func convertScalar(node *yaml.Node) (any, error) {
	switch tag := node.ShortTag(); tag {
	case "!!null":
		return types.Null, nil

	case "!!bool":
		var b bool
		if err := node.Decode(&b); err != nil {
			return nil, err
		}

		return b, nil

	case "!!int":
		var i int64
		if err := node.Decode(&i); err != nil {
			return nil, err
		}

		if i >= math.MinInt32 && i <= math.MaxInt32 {
			return int32(i), nil
		}

		return i, nil

	case "!!float":
		var f float64
		if err := node.Decode(&f); err != nil {
			return nil, err
		}

		return f, nil

	case "!!str":
		return node.Value, nil

	default:
		return nil, fmt.Errorf("line %d: unsupported tag %s", node.Line, tag)
	}
}
