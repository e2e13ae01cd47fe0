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

// Package pipeline provides the aggregation pipeline runner.
//
// A pipeline is an ordered list of stages compiled once by New.
// Aggregate threads a collection through the stages in declared order;
// the first error aborts the run.
package pipeline

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/FerretDB/aggregator/internal/aggerrors"
	"github.com/FerretDB/aggregator/internal/aggregations"
	"github.com/FerretDB/aggregator/internal/aggregations/stages"
	"github.com/FerretDB/aggregator/internal/pipeline/pipelinemetrics"
	"github.com/FerretDB/aggregator/internal/types"
)

var tracer = otel.Tracer("internal/pipeline")

// NewOpts represents pipeline options.
type NewOpts struct {
	// Logger is used for debug logging; nil disables it.
	Logger *zap.Logger

	// Metrics are updated after every stage execution; may be nil.
	Metrics *pipelinemetrics.Metrics
}

// Pipeline is a compiled aggregation pipeline.
//
// It is safe for concurrent use; each Aggregate call is independent.
type Pipeline struct {
	names   []string
	stages  []aggregations.Stage
	l       *zap.Logger
	metrics *pipelinemetrics.Metrics
}

// New compiles stage descriptors into a pipeline.
//
// Errors carry the index and name of the offending stage.
func New(descriptors []stages.Descriptor, opts *NewOpts) (*Pipeline, error) {
	if opts == nil {
		opts = new(NewOpts)
	}

	p := &Pipeline{
		names:   make([]string, len(descriptors)),
		stages:  make([]aggregations.Stage, len(descriptors)),
		l:       opts.Logger,
		metrics: opts.Metrics,
	}

	if p.l == nil {
		p.l = zap.NewNop()
	}

	for i, d := range descriptors {
		if d == nil {
			err := aggerrors.NewPipelineErrorMsg(aggerrors.ErrUnknownStage, "stage descriptor is nil")
			return nil, aggerrors.WithStage(err, i, "")
		}

		s, err := stages.NewStage(d)
		if err != nil {
			return nil, aggerrors.WithStage(err, i, d.Name())
		}

		p.names[i] = d.Name()
		p.stages[i] = s
	}

	return p, nil
}

// Parse compiles { <stage name>: <body> } literals into a pipeline.
func Parse(docs []*types.Document, opts *NewOpts) (*Pipeline, error) {
	descriptors := make([]stages.Descriptor, len(docs))

	for i, doc := range docs {
		d, err := stages.ParseDescriptor(doc)
		if err != nil {
			return nil, aggerrors.WithStage(err, i, "")
		}

		descriptors[i] = d
	}

	return New(descriptors, opts)
}

// Stages returns stage names in execution order.
func (p *Pipeline) Stages() []string {
	res := make([]string, len(p.names))
	copy(res, p.names)

	return res
}

// Aggregate applies all stages to the collection and returns the result.
//
// The input slice and its documents are never modified.
// For the empty pipeline the input is returned as is.
func (p *Pipeline) Aggregate(ctx context.Context, in []*types.Document) ([]*types.Document, error) {
	ctx, span := tracer.Start(ctx, "Aggregate", trace.WithAttributes(
		attribute.Int("stages", len(p.stages)),
		attribute.Int("documents", len(in)),
	))
	defer span.End()

	docs := in

	for i, s := range p.stages {
		out, err := p.processStage(ctx, i, s, docs)
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}

		docs = out
	}

	span.SetAttributes(attribute.Int("results", len(docs)))

	return docs, nil
}

// processStage runs a single stage.
func (p *Pipeline) processStage(ctx context.Context, i int, s aggregations.Stage, in []*types.Document) ([]*types.Document, error) {
	name := p.names[i]

	ctx, span := tracer.Start(ctx, name, trace.WithAttributes(
		attribute.Int("index", i),
		attribute.Int("documents", len(in)),
	))
	defer span.End()

	start := time.Now()

	out, err := s.Process(ctx, in)
	if err != nil {
		err = aggerrors.WithStage(err, i, name)
	}

	d := time.Since(start)

	if p.metrics != nil {
		p.metrics.StageDone(name, len(in), len(out), d, err)
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		p.l.Debug(
			"Stage failed",
			zap.Int("stage", i), zap.String("name", name), zap.Int("in", len(in)),
			zap.Duration("duration", d), zap.Error(err),
		)

		return nil, err
	}

	span.SetAttributes(attribute.Int("results", len(out)))

	p.l.Debug(
		"Stage done",
		zap.Int("stage", i), zap.String("name", name), zap.Int("in", len(in)), zap.Int("out", len(out)),
		zap.Duration("duration", d),
	)

	return out, nil
}
