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

// Package aggregator provides embeddable aggregation pipeline engine.
//
// Pipelines and documents are represented as bson.D values of the MongoDB Go driver,
// or as Extended JSON.
package aggregator

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"

	"github.com/FerretDB/aggregator/internal/aggerrors"
	"github.com/FerretDB/aggregator/internal/docjson"
	"github.com/FerretDB/aggregator/internal/pipeline"
	"github.com/FerretDB/aggregator/internal/pipeline/pipelinemetrics"
	"github.com/FerretDB/aggregator/internal/types"
)

// Error is returned for invalid pipelines and for failed stages.
// Use errors.As to get it.
type Error = aggerrors.PipelineError

// StageInfo identifies the stage that caused Error.
type StageInfo = aggerrors.StageInfo

// ErrorCode identifies the kind of Error.
type ErrorCode = aggerrors.ErrorCode

// Error codes.
const (
	ErrUnknownStage               = aggerrors.ErrUnknownStage
	ErrUnknownOperator            = aggerrors.ErrUnknownOperator
	ErrUnknownAggregateFunction   = aggerrors.ErrUnknownAggregateFunction
	ErrInvalidAggregateExpression = aggerrors.ErrInvalidAggregateExpression
	ErrUnknownProjectionOperator  = aggerrors.ErrUnknownProjectionOperator
	ErrEmptyAggregation           = aggerrors.ErrEmptyAggregation
	ErrTypeMismatch               = aggerrors.ErrTypeMismatch
	ErrInvalidStageSpec           = aggerrors.ErrInvalidStageSpec
	ErrDivideByZero               = aggerrors.ErrDivideByZero
)

// Config represents Aggregator configuration.
type Config struct {
	// Logger for debug messages; nil disables logging.
	Logger *zap.Logger

	// Registerer for pipeline metrics; nil disables metrics.
	// Aggregators sharing a registerer share metrics.
	Registerer prometheus.Registerer
}

// Aggregator represents a compiled aggregation pipeline.
//
// It is safe for concurrent use.
type Aggregator struct {
	p *pipeline.Pipeline
}

// New creates a new Aggregator for the given pipeline stages,
// such as bson.D{{"$match", bson.D{{"color", "red"}}}}.
func New(stages []bson.D, config *Config) (*Aggregator, error) {
	docs, err := fromBSON(stages)
	if err != nil {
		return nil, err
	}

	return newAggregator(docs, config)
}

// NewJSON creates a new Aggregator for the pipeline stages given as Extended JSON array.
func NewJSON(stages []byte, config *Config) (*Aggregator, error) {
	docs, err := docjson.Unmarshal(stages)
	if err != nil {
		return nil, errors.New(err.Error())
	}

	return newAggregator(docs, config)
}

// newAggregator compiles stage documents.
func newAggregator(docs []*types.Document, config *Config) (*Aggregator, error) {
	if config == nil {
		config = new(Config)
	}

	opts := &pipeline.NewOpts{
		Logger: config.Logger,
	}

	if config.Registerer != nil {
		m, err := registerMetrics(config.Registerer)
		if err != nil {
			return nil, err
		}

		opts.Metrics = m
	}

	p, err := pipeline.Parse(docs, opts)
	if err != nil {
		return nil, err
	}

	return &Aggregator{p: p}, nil
}

// registerMetrics registers pipeline metrics, or returns already registered ones.
func registerMetrics(r prometheus.Registerer) (*pipelinemetrics.Metrics, error) {
	m := pipelinemetrics.NewMetrics()

	err := r.Register(m)
	if err == nil {
		return m, nil
	}

	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(*pipelinemetrics.Metrics); ok {
			return existing, nil
		}
	}

	return nil, err
}

// Aggregate runs the pipeline over documents and returns the result.
// Documents are not modified.
func (a *Aggregator) Aggregate(ctx context.Context, docs []bson.D) ([]bson.D, error) {
	in, err := fromBSON(docs)
	if err != nil {
		return nil, err
	}

	out, err := a.p.Aggregate(ctx, in)
	if err != nil {
		return nil, err
	}

	res := make([]bson.D, len(out))
	for i, doc := range out {
		res[i] = docjson.ToBSON(doc)
	}

	return res, nil
}

// AggregateJSON runs the pipeline over documents given as Extended JSON array or JSON lines,
// and returns the result as Extended JSON array.
func (a *Aggregator) AggregateJSON(ctx context.Context, docs []byte) ([]byte, error) {
	in, err := docjson.Unmarshal(docs)
	if err != nil {
		return nil, errors.New(err.Error())
	}

	out, err := a.p.Aggregate(ctx, in)
	if err != nil {
		return nil, err
	}

	return docjson.Marshal(out)
}

// fromBSON converts documents, hiding internal error details.
func fromBSON(ds []bson.D) ([]*types.Document, error) {
	res := make([]*types.Document, len(ds))

	for i, d := range ds {
		doc, err := docjson.FromBSON(d)
		if err != nil {
			// Do not expose internal error details.
			return nil, errors.New(err.Error())
		}

		res[i] = doc
	}

	return res, nil
}
