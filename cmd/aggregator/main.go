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


// Package main contains the aggregator command.
//
// It reads a pipeline and input records, runs the pipeline and writes the results as JSON.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"go.uber.org/automaxprocs/maxprocs"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/FerretDB/aggregator/internal/docjson"
	"github.com/FerretDB/aggregator/internal/docyaml"
	"github.com/FerretDB/aggregator/internal/pipeline"
	"github.com/FerretDB/aggregator/internal/pipeline/pipelinemetrics"
	"github.com/FerretDB/aggregator/internal/source"
	"github.com/FerretDB/aggregator/internal/types"
	"github.com/FerretDB/aggregator/internal/util/lazyerrors"
	"github.com/FerretDB/aggregator/internal/util/logging"
	"github.com/FerretDB/aggregator/internal/util/must"
	"github.com/FerretDB/aggregator/internal/util/observability"
	"github.com/FerretDB/aggregator/internal/util/version"
)

// flags represents all command-line flags.
//
//nolint:lll // some tags are long
type flags struct {
	Version bool `default:"false" help:"Print version to stdout and exit."`

	Pipeline string `default:""  help:"Pipeline file: JSON array of stages, or YAML sequence if the extension is .yaml or .yml."`
	Input    string `default:"-" help:"Input file with JSON array or JSON lines; '-' for stdin."`
	Output   string `default:"-" help:"Output file; '-' for stdout."`

	SQLite struct {
		URL   string `default:"" help:"SQLite URI to read input records from instead of --input." name:"url"`
		Table string `default:"" help:"SQLite table with input records."`
	} `embed:"" prefix:"sqlite-"`

	Log struct {
		Level string `default:"${default_log_level}" help:"${help_log_level}" enum:"${enum_log_level}"`
		UUID  bool   `default:"false"                help:"Add instance UUID to all log messages." negatable:""`
	} `embed:"" prefix:"log-"`

	Metrics bool `default:"false" help:"Dump pipeline metrics to stderr on exit."`

	OTLPEndpoint string `default:"" help:"OTLP/HTTP endpoint for traces, for example 127.0.0.1:4318." name:"otlp-endpoint"`
}

// cli represents parsed command-line flags.
var cli flags

// Additional variables for the kong parsers.
var (
	logLevels = []string{
		zap.DebugLevel.String(),
		zap.InfoLevel.String(),
		zap.WarnLevel.String(),
		zap.ErrorLevel.String(),
	}

	kongOptions = []kong.Option{
		kong.Vars{
			"default_log_level": zap.InfoLevel.String(),
			"enum_log_level":    strings.Join(logLevels, ","),
			"help_log_level":    fmt.Sprintf("Log level: '%s'.", strings.Join(logLevels, "', '")),
		},
		kong.DefaultEnvars("AGGREGATOR"),
	}
)

func main() {
	kong.Parse(&cli, kongOptions...)

	info := version.Get()

	if cli.Version {
		fmt.Fprintln(os.Stdout, "version:", info.Version)
		fmt.Fprintln(os.Stdout, "commit:", info.Commit)
		fmt.Fprintln(os.Stdout, "dirty:", info.Dirty)
		fmt.Fprintln(os.Stdout, "go:", info.GoVersion)

		return
	}

	logger := setupLogger(&cli)

	if _, err := maxprocs.Set(maxprocs.Logger(logger.Sugar().Debugf)); err != nil {
		logger.Sugar().Warnf("Failed to set GOMAXPROCS: %s.", err)
	}

	ctx, stop := notifyAppTermination(context.Background())
	defer stop()

	shutdown, err := observability.SetupOtel(ctx, &observability.OtelOpts{
		Service:  "aggregator",
		Version:  info.Version,
		Endpoint: cli.OTLPEndpoint,
	})
	if err != nil {
		logger.Sugar().Fatalf("Failed to set up OpenTelemetry: %s.", err)
	}

	reg := prometheus.NewRegistry()

	err = run(ctx, &cli, os.Stdin, os.Stdout, reg, logger)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if e := shutdown(shutdownCtx); e != nil {
		logger.Warn("Failed to shut down OpenTelemetry", zap.Error(e))
	}

	if cli.Metrics {
		dumpMetrics(reg)
	}

	if err != nil {
		logger.Sugar().Fatalf("Aggregation failed: %s.", err)
	}
}

// setupLogger setups global zap logger and returns it.
func setupLogger(f *flags) *zap.Logger {
	level, err := zapcore.ParseLevel(f.Log.Level)
	if err != nil {
		zap.S().Fatal(err)
	}

	var id string
	if f.Log.UUID {
		id = uuid.NewString()
	}

	logging.Setup(level, id)

	return zap.L()
}

// notifyAppTermination installs a handler for SIGTERM and SIGINT signals.
func notifyAppTermination(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGTERM, os.Interrupt)
}

// dumpMetrics writes all gathered metrics to stderr in the text format.
func dumpMetrics(g prometheus.Gatherer) {
	mfs := must.NotFail(g.Gather())

	for _, mf := range mfs {
		must.NotFail(expfmt.MetricFamilyToText(os.Stderr, mf))
	}
}

// run loads the pipeline and input records, aggregates them and writes results.
func run(ctx context.Context, f *flags, stdin io.Reader, stdout io.Writer, reg prometheus.Registerer, l *zap.Logger) error {
	if f.Pipeline == "" {
		return lazyerrors.New("--pipeline is required")
	}

	stageDocs, err := loadPipeline(f.Pipeline)
	if err != nil {
		return err
	}

	metrics := pipelinemetrics.NewMetrics()
	if err = reg.Register(metrics); err != nil {
		return lazyerrors.Error(err)
	}

	p, err := pipeline.Parse(stageDocs, &pipeline.NewOpts{
		Logger:  l.Named("pipeline"),
		Metrics: metrics,
	})
	if err != nil {
		return err
	}

	l.Debug("Pipeline compiled", zap.Strings("stages", p.Stages()))

	in, err := loadInput(ctx, f, stdin, l)
	if err != nil {
		return err
	}

	out, err := p.Aggregate(ctx, in)
	if err != nil {
		return err
	}

	b, err := docjson.Marshal(out)
	if err != nil {
		return lazyerrors.Error(err)
	}

	return writeOutput(f.Output, stdout, b)
}

// loadPipeline reads stage documents from the given file.
func loadPipeline(path string) ([]*types.Document, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, lazyerrors.Error(err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return docyaml.Unmarshal(b)
	default:
		return docjson.Unmarshal(b)
	}
}

// loadInput reads input records either from SQLite table or from JSON input.
func loadInput(ctx context.Context, f *flags, stdin io.Reader, l *zap.Logger) ([]*types.Document, error) {
	if f.SQLite.URL != "" {
		if f.SQLite.Table == "" {
			return nil, lazyerrors.New("--sqlite-table is required with --sqlite-url")
		}

		db, err := source.Open(ctx, f.SQLite.URL)
		if err != nil {
			return nil, err
		}

		defer db.Close() //nolint:errcheck // read-only

		iter, err := db.Table(ctx, f.SQLite.Table)
		if err != nil {
			return nil, err
		}

		return source.ReadAll(iter, l.Named("source"))
	}

	var b []byte
	var err error

	if f.Input == "-" {
		b, err = io.ReadAll(stdin)
	} else {
		b, err = os.ReadFile(f.Input)
	}

	if err != nil {
		return nil, lazyerrors.Error(err)
	}

	return docjson.Unmarshal(b)
}

// writeOutput writes b to the given file or stdout.
func writeOutput(path string, stdout io.Writer, b []byte) error {
	var err error

	if path == "-" {
		_, err = stdout.Write(b)
	} else {
		err = os.WriteFile(path, b, 0o666)
	}

	if err != nil {
		return lazyerrors.Error(err)
	}

	return nil
}
