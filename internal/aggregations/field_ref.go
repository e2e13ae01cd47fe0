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
	"fmt"
	"strings"

	"github.com/FerretDB/aggregator/internal/types"
)

// FieldRefErrorCode represents FieldRef error code.
type FieldRefErrorCode int

const (
	_ FieldRefErrorCode = iota

	// ErrNotFieldRef indicates that the value is neither a "$field" string nor the literal 1.
	ErrNotFieldRef

	// ErrEmptyFieldPath indicates that "$" is used without a field name.
	ErrEmptyFieldPath
)

// String implements fmt.Stringer.
func (c FieldRefErrorCode) String() string {
	switch c {
	case ErrNotFieldRef:
		return "NotFieldRef"
	case ErrEmptyFieldPath:
		return "EmptyFieldPath"
	default:
		return fmt.Sprintf("FieldRefErrorCode(%d)", int(c))
	}
}

// FieldRefError describes an error that occurs while parsing a field reference.
type FieldRefError struct {
	code FieldRefErrorCode
}

// Error implements the error interface.
func (e *FieldRefError) Error() string {
	return e.code.String()
}

// Code returns the FieldRefError code.
func (e *FieldRefError) Code() FieldRefErrorCode {
	return e.code
}

// FieldRef is a reference to the value of a record's field,
// or to the whole record.
//
// Zero value references the whole record.
type FieldRef struct {
	field string
}

// Field returns a reference to the named field.
func Field(name string) FieldRef {
	if name == "" {
		panic("aggregations.Field: empty name")
	}

	return FieldRef{field: name}
}

// WholeDocument returns a reference to the whole record.
func WholeDocument() FieldRef {
	return FieldRef{}
}

// NewFieldRef resolves a field reference from its literal form:
// "$name" references field name; the number 1 references the whole record.
func NewFieldRef(v any) (FieldRef, error) {
	if s, ok := v.(string); ok {
		if !strings.HasPrefix(s, "$") {
			return FieldRef{}, &FieldRefError{code: ErrNotFieldRef}
		}

		name := strings.TrimPrefix(s, "$")
		if name == "" {
			return FieldRef{}, &FieldRefError{code: ErrEmptyFieldPath}
		}

		return Field(name), nil
	}

	if n, ok := GetWholeNumber(v); ok && n == 1 {
		return WholeDocument(), nil
	}

	return FieldRef{}, &FieldRefError{code: ErrNotFieldRef}
}

// IsWholeDocument returns true if the reference is to the whole record.
func (r FieldRef) IsWholeDocument() bool {
	return r.field == ""
}

// FieldName returns the referenced field name, or an empty string for the whole record.
func (r FieldRef) FieldName() string {
	return r.field
}

// Evaluate returns the referenced value and true, or nil and false
// if the referenced field is absent.
func (r FieldRef) Evaluate(doc *types.Document) (any, bool) {
	if r.IsWholeDocument() {
		return doc, true
	}

	v, err := doc.Get(r.field)
	if err != nil {
		return nil, false
	}

	return v, true
}

// String implements fmt.Stringer.
func (r FieldRef) String() string {
	if r.IsWholeDocument() {
		return "1"
	}

	return "$" + r.field
}
