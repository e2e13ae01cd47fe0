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

// Package aggregations provides common types for aggregation pipeline stages.
//
// Stages themselves live in the stages package; operators and accumulators
// used by them live in the operators package and its subpackages.
package aggregations

import (
	"context"

	"github.com/FerretDB/aggregator/internal/types"
)

// Stage is a common interface for all aggregation stages.
//
// Process is a pure function of its input: it returns a new slice
// and never modifies the input slice or any document in it.
type Stage interface {
	Process(ctx context.Context, in []*types.Document) ([]*types.Document, error)
}

// Stage names.
const (
	StageGroup   = "$group"
	StageMatch   = "$match"
	StageProject = "$project"
	StageSort    = "$sort"
)
