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

// Package pipelinemetrics provides aggregation pipeline metrics.
package pipelinemetrics

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/FerretDB/aggregator/internal/aggerrors"
	"github.com/FerretDB/aggregator/internal/util/must"
)

const (
	namespace = "aggregator"
	subsystem = "pipeline"
)

// Metrics represents pipeline metrics.
type Metrics struct {
	Stages    *prometheus.CounterVec
	Documents *prometheus.CounterVec
	Duration  *prometheus.HistogramVec
}

// NewMetrics creates pipeline metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		Stages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "stages_total",
				Help:      "Total number of executed stages.",
			},
			[]string{"stage", "result"},
		),
		Documents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "documents_total",
				Help:      "Total number of documents consumed and produced by stages.",
			},
			[]string{"stage", "direction"},
		),
		Duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "stage_duration_seconds",
				Help:      "Stage execution duration.",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
			},
			[]string{"stage"},
		),
	}
}

// StageDone records the execution of the stage.
// out is ignored if err is not nil.
func (m *Metrics) StageDone(stage string, in, out int, d time.Duration, err error) {
	m.Stages.WithLabelValues(stage, result(err)).Inc()
	m.Documents.WithLabelValues(stage, "in").Add(float64(in))
	m.Duration.WithLabelValues(stage).Observe(d.Seconds())

	if err == nil {
		m.Documents.WithLabelValues(stage, "out").Add(float64(out))
	}
}

// result returns the value of the result label for the error.
func result(err error) string {
	if err == nil {
		return "ok"
	}

	var pe *aggerrors.PipelineError
	if errors.As(err, &pe) {
		return pe.Code().String()
	}

	return "InternalError"
}

// Describe implements prometheus.Collector.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	m.Stages.Describe(ch)
	m.Documents.Describe(ch)
	m.Duration.Describe(ch)
}

// Collect implements prometheus.Collector.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.Stages.Collect(ch)
	m.Documents.Collect(ch)
	m.Duration.Collect(ch)
}

// GetStages returns a map with all stage execution metrics:
//
// stage (e.g. "$match") ->
// result (e.g. "TypeMismatch"; or "ok") ->
// count.
func (m *Metrics) GetStages() map[string]map[string]int {
	metrics := make(chan prometheus.Metric)
	go func() {
		m.Stages.Collect(metrics)
		close(metrics)
	}()

	res := map[string]map[string]int{}

	for metric := range metrics {
		var content dto.Metric
		must.NoError(metric.Write(&content))

		var stage, result string
		for _, label := range content.GetLabel() {
			switch label.GetName() {
			case "stage":
				stage = label.GetValue()
			case "result":
				result = label.GetValue()
			default:
				panic(fmt.Sprintf("%s is not a valid label. Allowed: [stage, result]", label.GetName()))
			}
		}

		if _, ok := res[stage]; !ok {
			res[stage] = map[string]int{}
		}

		res[stage][result] += int(content.GetCounter().GetValue())
	}

	return res
}

// check interfaces
var (
	_ prometheus.Collector = (*Metrics)(nil)
)
