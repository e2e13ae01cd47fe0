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

package pipelinemetrics

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FerretDB/aggregator/internal/aggerrors"
)

func TestMetrics(t *testing.T) {
	t.Parallel()

	m := NewMetrics()

	m.StageDone("$match", 10, 4, time.Millisecond, nil)
	m.StageDone("$match", 5, 5, time.Millisecond, nil)
	m.StageDone("$sort", 4, 0, time.Millisecond, aggerrors.NewPipelineErrorMsg(aggerrors.ErrTypeMismatch, "oops"))
	m.StageDone("$group", 4, 0, time.Millisecond, errors.New("boom"))

	expected := map[string]map[string]int{
		"$match": {"ok": 2},
		"$sort":  {"TypeMismatch": 1},
		"$group": {"InternalError": 1},
	}
	assert.Equal(t, expected, m.GetStages())

	assert.Equal(t, 15.0, testutil.ToFloat64(m.Documents.WithLabelValues("$match", "in")))
	assert.Equal(t, 9.0, testutil.ToFloat64(m.Documents.WithLabelValues("$match", "out")))
	assert.Equal(t, 3, testutil.CollectAndCount(m.Duration))

	exp := `
		# HELP aggregator_pipeline_stages_total Total number of executed stages.
		# TYPE aggregator_pipeline_stages_total counter
		aggregator_pipeline_stages_total{result="InternalError",stage="$group"} 1
		aggregator_pipeline_stages_total{result="TypeMismatch",stage="$sort"} 1
		aggregator_pipeline_stages_total{result="ok",stage="$match"} 2
	`
	require.NoError(t, testutil.CollectAndCompare(m, strings.NewReader(exp), "aggregator_pipeline_stages_total"))
}
