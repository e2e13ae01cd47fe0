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

package types

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// FormatAnyValue formats value for error messages and logs.
func FormatAnyValue(v any) string {
	switch v := v.(type) {
	case *Document:
		return formatDocument(v)
	case *Array:
		return formatArray(v)
	case float64:
		switch {
		case math.IsNaN(v):
			return "NaN"
		case math.IsInf(v, -1):
			return "-Infinity"
		case math.IsInf(v, +1):
			return "Infinity"
		case math.Trunc(v) == v && math.Abs(v) < 1e15:
			return strconv.FormatFloat(v, 'f', 1, 64)
		default:
			return strconv.FormatFloat(v, 'g', -1, 64)
		}
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case int64:
		return strconv.FormatInt(v, 10)
	case string:
		return strconv.Quote(v)
	case bool:
		return strconv.FormatBool(v)
	case NullType:
		return "null"
	default:
		panic(fmt.Sprintf("types.FormatAnyValue: unknown type %T", v))
	}
}

// formatDocument formats Document for error output.
func formatDocument(doc *Document) string {
	if doc.Len() == 0 {
		return "{}"
	}

	parts := make([]string, len(doc.keys))
	for i, k := range doc.keys {
		parts[i] = k + ": " + FormatAnyValue(doc.m[k])
	}

	return "{ " + strings.Join(parts, ", ") + " }"
}

// formatArray formats Array for error output.
func formatArray(array *Array) string {
	if array.Len() == 0 {
		return "[]"
	}

	parts := make([]string, len(array.s))
	for i, elem := range array.s {
		parts[i] = FormatAnyValue(elem)
	}

	return "[ " + strings.Join(parts, ", ") + " ]"
}

// TypeName returns the name of the value's type as used in error messages.
func TypeName(v any) string {
	switch v.(type) {
	case *Document:
		return "object"
	case *Array:
		return "array"
	case float64:
		return "double"
	case int32:
		return "int"
	case int64:
		return "long"
	case string:
		return "string"
	case bool:
		return "bool"
	case NullType:
		return "null"
	default:
		panic(fmt.Sprintf("types.TypeName: unknown type %T", v))
	}
}
