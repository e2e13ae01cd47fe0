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

// Package testutil provides testing helpers.
package testutil

import (
	"fmt"
	"strings"
	"testing"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FerretDB/aggregator/internal/types"
)

// AssertEqual asserts that two values are equal.
func AssertEqual(t testing.TB, expected, actual any) bool {
	t.Helper()

	if types.DeepEqual(expected, actual) {
		return true
	}

	expectedS, actualS := types.FormatAnyValue(expected), types.FormatAnyValue(actual)
	diff := diffLines(t, expectedS, actualS)
	msg := fmt.Sprintf("Not equal: \nexpected: %s\nactual  : %s\n%s", expectedS, actualS, diff)

	return assert.Fail(t, msg)
}

// AssertEqualDocuments asserts that two collections contain equal documents in the same order.
// Field order is significant.
func AssertEqualDocuments(t testing.TB, expected, actual []*types.Document) bool {
	t.Helper()

	if len(expected) == len(actual) {
		equal := true

		for i := range expected {
			if !types.DeepEqual(expected[i], actual[i]) {
				equal = false
				break
			}
		}

		if equal {
			return true
		}
	}

	expectedS, actualS := formatDocuments(expected), formatDocuments(actual)
	diff := diffLines(t, expectedS, actualS)
	msg := fmt.Sprintf("Not equal: \nexpected:\n%s\nactual:\n%s\n%s", expectedS, actualS, diff)

	return assert.Fail(t, msg)
}

// formatDocuments returns a readable form of documents, one per line.
func formatDocuments(docs []*types.Document) string {
	var sb strings.Builder

	for _, doc := range docs {
		sb.WriteString(types.FormatAnyValue(doc))
		sb.WriteString("\n")
	}

	return sb.String()
}

// diffLines returns the unified difference between given texts.
func diffLines(t testing.TB, expected, actual string) string {
	t.Helper()

	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(expected),
		FromFile: "expected",
		B:        difflib.SplitLines(actual),
		ToFile:   "actual",
		Context:  1,
	})
	require.NoError(t, err)

	return diff
}
