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

// Package types provides Go types for values flowing through aggregation pipelines.
//
// Mapping
//
// Composite types (passed by pointers)
//
//	*types.Document  Record: ordered mapping from field name to value
//	*types.Array     ordered sequence of values
//
// Scalar types (passed by values)
//
//	float64          number, 64-bit binary floating point
//	int32            number, 32-bit integer
//	int64            number, 64-bit integer
//	string           text, UTF-8
//	bool             boolean
//	types.NullType   null
//
// A field that is absent from a document is not a value; callers check for it with Document.Has.
package types

import (
	"fmt"
)

// ScalarType represents scalar type.
type ScalarType interface {
	float64 | int32 | int64 | string | bool | NullType
}

// CompositeType represents composite type - *Document or *Array.
type CompositeType interface {
	*Document | *Array
}

// Type represents any supported type (scalar or composite).
type Type interface {
	ScalarType | CompositeType
}

// NullType represents null value type.
//
// Most callers should use types.Null value instead.
type NullType struct{}

// Null represents null value.
var Null = NullType{}

// validateValue validates value.
func validateValue(value any) error {
	switch value := value.(type) {
	case *Document:
		if value == nil {
			return fmt.Errorf("types.validateValue: nil document")
		}

		return nil
	case *Array:
		if value == nil {
			return fmt.Errorf("types.validateValue: nil array")
		}

		return nil
	case float64, int32, int64, string, bool, NullType:
		return nil
	default:
		return fmt.Errorf("types.validateValue: unsupported type: %[1]T (%[1]v)", value)
	}
}

// DeepCopyValue returns a deep copy of the given value.
// Scalar values are returned as is.
func DeepCopyValue(value any) any {
	if value == nil {
		panic("types.DeepCopyValue: nil value")
	}

	switch value := value.(type) {
	case *Document:
		keys := make([]string, len(value.keys))
		copy(keys, value.keys)

		m := make(map[string]any, len(value.m))
		for k, v := range value.m {
			m[k] = DeepCopyValue(v)
		}

		return &Document{
			keys: keys,
			m:    m,
		}

	case *Array:
		s := make([]any, len(value.s))
		for i, v := range value.s {
			s[i] = DeepCopyValue(v)
		}

		return &Array{
			s: s,
		}

	case float64, int32, int64, string, bool, NullType:
		return value

	default:
		panic(fmt.Sprintf("types.DeepCopyValue: unsupported type: %[1]T (%[1]v)", value))
	}
}

// IsNumber returns true if v is one of the number types.
func IsNumber(v any) bool {
	switch v.(type) {
	case float64, int32, int64:
		return true
	default:
		return false
	}
}
