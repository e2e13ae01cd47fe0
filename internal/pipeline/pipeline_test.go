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

package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/FerretDB/aggregator/internal/aggerrors"
	"github.com/FerretDB/aggregator/internal/aggregations/stages"
	"github.com/FerretDB/aggregator/internal/pipeline/pipelinemetrics"
	"github.com/FerretDB/aggregator/internal/types"
	"github.com/FerretDB/aggregator/internal/util/must"
	"github.com/FerretDB/aggregator/internal/util/testutil"
)

// salesData returns the input collection of the sales report.
func salesData() []*types.Document {
	return []*types.Document{
		must.NotFail(types.NewDocument("category", "Electronics", "color", "red", "sales", int32(1000))),
		must.NotFail(types.NewDocument("category", "Electronics", "color", "red", "sales", int32(2000))),
		must.NotFail(types.NewDocument("category", "Clothing", "color", "red", "sales", int32(1500))),
		must.NotFail(types.NewDocument("category", "Clothing", "color", "green", "sales", int32(800))),
		must.NotFail(types.NewDocument("category", "Food", "color", "red", "sales", int32(500))),
		must.NotFail(types.NewDocument("category", "Food", "color", "red", "sales", int32(1200))),
	}
}

// salesReport returns the sales report pipeline literals.
func salesReport() []*types.Document {
	return []*types.Document{
		must.NotFail(types.NewDocument("$match", must.NotFail(types.NewDocument("color", "red")))),
		must.NotFail(types.NewDocument("$group", must.NotFail(types.NewDocument(
			"_id", "$category",
			"totalSale", must.NotFail(types.NewDocument("$sum", int32(1))),
		)))),
		must.NotFail(types.NewDocument("$sort", must.NotFail(types.NewDocument("totalSale", int32(-1))))),
		must.NotFail(types.NewDocument("$project", must.NotFail(types.NewDocument(
			"category", int32(1),
			"totalSale", int32(1),
			"_id", int32(0),
		)))),
	}
}

func TestTracing(t *testing.T) {
	// not parallel because it changes the global tracer provider

	exporter := tracetest.NewInMemoryExporter()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	otel.SetTracerProvider(provider)

	t.Cleanup(func() {
		require.NoError(t, provider.Shutdown(context.Background()))
	})

	p, err := Parse(salesReport(), nil)
	require.NoError(t, err)

	_, err = p.Aggregate(testutil.Ctx(t), salesData())
	require.NoError(t, err)

	var names []string
	for _, s := range exporter.GetSpans() {
		names = append(names, s.Name)
	}

	assert.Equal(t, []string{"$match", "$group", "$sort", "$project", "Aggregate"}, names)

	exporter.Reset()

	bad := []*types.Document{
		must.NotFail(types.NewDocument("$sort", must.NotFail(types.NewDocument("v", int32(1))))),
	}
	p, err = Parse(bad, nil)
	require.NoError(t, err)

	_, err = p.Aggregate(testutil.Ctx(t), []*types.Document{
		must.NotFail(types.NewDocument("v", int32(1))),
		must.NotFail(types.NewDocument("v", "1")),
	})
	require.Error(t, err)

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
	assert.Equal(t, codes.Error, spans[1].Status.Code)
}

// salesReportDescriptors returns the sales report pipeline as typed descriptors.
func salesReportDescriptors() []stages.Descriptor {
	return []stages.Descriptor{
		stages.Match{Filter: must.NotFail(types.NewDocument("color", "red"))},
		stages.Group{Spec: must.NotFail(types.NewDocument(
			"_id", "$category",
			"totalSale", must.NotFail(types.NewDocument("$sum", int32(1))),
		))},
		stages.Sort{Spec: must.NotFail(types.NewDocument("totalSale", int32(-1)))},
		stages.Project{Spec: must.NotFail(types.NewDocument(
			"category", int32(1),
			"totalSale", int32(1),
			"_id", int32(0),
		))},
	}
}

func TestNew(t *testing.T) {
	t.Parallel()

	typed, err := New(salesReportDescriptors(), &NewOpts{Logger: testutil.Logger(t)})
	require.NoError(t, err)

	parsed, err := Parse(salesReport(), nil)
	require.NoError(t, err)

	assert.Equal(t, parsed.Stages(), typed.Stages())

	expected, err := parsed.Aggregate(testutil.Ctx(t), salesData())
	require.NoError(t, err)

	actual, err := typed.Aggregate(testutil.Ctx(t), salesData())
	require.NoError(t, err)

	testutil.AssertEqualDocuments(t, expected, actual)
	require.Len(t, actual, 3)
}

func TestNewErrors(t *testing.T) {
	t.Parallel()

	for name, tc := range map[string]struct {
		descriptors []stages.Descriptor
		code        aggerrors.ErrorCode
		stage       aggerrors.StageInfo
	}{
		"Nil": {
			descriptors: []stages.Descriptor{
				stages.Match{Filter: must.NotFail(types.NewDocument())},
				nil,
			},
			code:  aggerrors.ErrUnknownStage,
			stage: aggerrors.StageInfo{Index: 1},
		},
		"NilSpec": {
			descriptors: []stages.Descriptor{stages.Sort{}},
			code:        aggerrors.ErrInvalidStageSpec,
			stage:       aggerrors.StageInfo{Index: 0, Name: "$sort"},
		},
	} {
		name, tc := name, tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			var p *Pipeline
			var err error

			require.NotPanics(t, func() { p, err = New(tc.descriptors, nil) })
			assert.Nil(t, p)

			var pe *aggerrors.PipelineError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tc.code, pe.Code())
			require.NotNil(t, pe.Stage())
			assert.Equal(t, tc.stage, *pe.Stage())
		})
	}
}

func TestAggregate(t *testing.T) {
	t.Parallel()

	metrics := pipelinemetrics.NewMetrics()

	p, err := Parse(salesReport(), &NewOpts{
		Logger:  testutil.Logger(t),
		Metrics: metrics,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"$match", "$group", "$sort", "$project"}, p.Stages())

	in := salesData()

	res, err := p.Aggregate(testutil.Ctx(t), in)
	require.NoError(t, err)

	expected := []*types.Document{
		must.NotFail(types.NewDocument("category", "Electronics", "totalSale", int32(2))),
		must.NotFail(types.NewDocument("category", "Food", "totalSale", int32(2))),
		must.NotFail(types.NewDocument("category", "Clothing", "totalSale", int32(1))),
	}
	testutil.AssertEqualDocuments(t, expected, res)
	testutil.AssertEqualDocuments(t, salesData(), in)

	// the same pipeline may be used again
	res, err = p.Aggregate(testutil.Ctx(t), in)
	require.NoError(t, err)
	testutil.AssertEqualDocuments(t, expected, res)

	assert.Equal(t, map[string]map[string]int{
		"$group":   {"ok": 2},
		"$match":   {"ok": 2},
		"$project": {"ok": 2},
		"$sort":    {"ok": 2},
	}, metrics.GetStages())
}

func TestAggregateEmpty(t *testing.T) {
	t.Parallel()

	p, err := New(nil, nil)
	require.NoError(t, err)

	in := salesData()
	res, err := p.Aggregate(testutil.Ctx(t), in)
	require.NoError(t, err)
	assert.Equal(t, in, res)

	p, err = Parse(salesReport(), nil)
	require.NoError(t, err)

	res, err = p.Aggregate(testutil.Ctx(t), nil)
	require.NoError(t, err)
	assert.Empty(t, res)
}

func TestErrors(t *testing.T) {
	t.Parallel()

	for name, tc := range map[string]struct {
		pipeline []*types.Document
		in       []*types.Document
		code     aggerrors.ErrorCode
		arg      string
		stage    aggerrors.StageInfo
		parseErr bool
	}{
		"UnknownStage": {
			pipeline: []*types.Document{
				must.NotFail(types.NewDocument("$match", must.NotFail(types.NewDocument()))),
				must.NotFail(types.NewDocument("$unwind", "$a")),
			},
			code:     aggerrors.ErrUnknownStage,
			arg:      "$unwind",
			stage:    aggerrors.StageInfo{Index: 1},
			parseErr: true,
		},
		"UnknownOperator": {
			pipeline: []*types.Document{
				must.NotFail(types.NewDocument("$match", must.NotFail(types.NewDocument(
					"a", must.NotFail(types.NewDocument("$regex", "x")),
				)))),
			},
			code:     aggerrors.ErrUnknownOperator,
			arg:      "$regex",
			stage:    aggerrors.StageInfo{Index: 0, Name: "$match"},
			parseErr: true,
		},
		"UnknownAggregateFunction": {
			pipeline: []*types.Document{
				must.NotFail(types.NewDocument("$sort", must.NotFail(types.NewDocument("a", int32(1))))),
				must.NotFail(types.NewDocument("$group", must.NotFail(types.NewDocument(
					"_id", "$a",
					"x", must.NotFail(types.NewDocument("$stdDevPop", "$b")),
				)))),
			},
			code:     aggerrors.ErrUnknownAggregateFunction,
			arg:      "$stdDevPop",
			stage:    aggerrors.StageInfo{Index: 1, Name: "$group"},
			parseErr: true,
		},
		"UnknownProjectionOperator": {
			pipeline: []*types.Document{
				must.NotFail(types.NewDocument("$project", must.NotFail(types.NewDocument(
					"x", must.NotFail(types.NewDocument("$pow", must.NotFail(types.NewArray("a", "b")))),
				)))),
			},
			code:     aggerrors.ErrUnknownProjectionOperator,
			arg:      "$pow",
			stage:    aggerrors.StageInfo{Index: 0, Name: "$project"},
			parseErr: true,
		},
		"EmptyAggregation": {
			pipeline: []*types.Document{
				must.NotFail(types.NewDocument("$match", must.NotFail(types.NewDocument("a", int32(1))))),
				must.NotFail(types.NewDocument("$group", must.NotFail(types.NewDocument(
					"_id", int32(1),
					"x", must.NotFail(types.NewDocument("$max", "$b")),
				)))),
			},
			in: []*types.Document{
				must.NotFail(types.NewDocument("a", int32(1))),
			},
			code:  aggerrors.ErrEmptyAggregation,
			arg:   "$max",
			stage: aggerrors.StageInfo{Index: 1, Name: "$group"},
		},
		"DivideByZero": {
			pipeline: []*types.Document{
				must.NotFail(types.NewDocument("$project", must.NotFail(types.NewDocument(
					"x", must.NotFail(types.NewDocument("$divide", must.NotFail(types.NewArray("a", "b")))),
				)))),
			},
			in: []*types.Document{
				must.NotFail(types.NewDocument("a", int32(1), "b", int32(0))),
			},
			code:  aggerrors.ErrDivideByZero,
			arg:   "$divide",
			stage: aggerrors.StageInfo{Index: 0, Name: "$project"},
		},
	} {
		name, tc := name, tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			p, err := Parse(tc.pipeline, nil)
			if !tc.parseErr {
				require.NoError(t, err)

				_, err = p.Aggregate(testutil.Ctx(t), tc.in)
			}

			var pe *aggerrors.PipelineError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tc.code, pe.Code())
			assert.Equal(t, tc.arg, pe.Argument())
			require.NotNil(t, pe.Stage())
			assert.Equal(t, tc.stage, *pe.Stage())
		})
	}
}
