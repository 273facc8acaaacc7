// Package engine wires the snapshot source, aggregator, compliance evaluator,
// forecaster and query engine into report and forecast operations.
package engine

import (
	"fmt"
	"runtime"
	"time"

	"go.uber.org/zap"

	"github.com/opscart/capacity-compliance/pkg/aggregator"
	"github.com/opscart/capacity-compliance/pkg/datasource"
	"github.com/opscart/capacity-compliance/pkg/forecast"
	"github.com/opscart/capacity-compliance/pkg/metrics"
)

// Engine computes reports against one snapshot source. It keeps no state
// between requests; thresholds and horizons travel with each request.
type Engine struct {
	source     datasource.SnapshotSource
	aggregator *aggregator.Aggregator
	forecast   forecast.Options
	tolerate   bool
	workers    int
	metrics    *metrics.Recorder
	logger     *zap.Logger
	now        func() time.Time
}

// Option configures an Engine
type Option func(*Engine)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithMetrics records report and forecast outcomes
func WithMetrics(r *metrics.Recorder) Option {
	return func(e *Engine) { e.metrics = r }
}

// WithWorkers bounds per-host parallelism
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithTolerateFetchErrors turns a failed fetch into an empty report flagged DataUnavailable
func WithTolerateFetchErrors(tolerate bool) Option {
	return func(e *Engine) { e.tolerate = tolerate }
}

// WithForecastOptions overrides the negligible growth threshold and minimum samples.
// The risk horizon still comes from each request.
func WithForecastOptions(opts forecast.Options) Option {
	return func(e *Engine) { e.forecast = opts }
}

// WithClock overrides the report timestamp source
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates an engine reading from source
func New(source datasource.SnapshotSource, opts ...Option) *Engine {
	e := &Engine{
		source:   source,
		forecast: forecast.DefaultOptions(),
		workers:  runtime.GOMAXPROCS(0),
		logger:   zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}

	e.forecast.Workers = e.workers
	e.aggregator = aggregator.New(
		aggregator.WithWorkers(e.workers),
		aggregator.WithLogger(e.logger),
	)
	return e
}

// fetchFailed handles an adapter error: tolerated errors are logged and reported as no data
func (e *Engine) fetchFailed(op string, err error) error {
	if e.tolerate {
		e.logger.Warn("snapshot fetch failed, returning empty result",
			zap.String("op", op),
			zap.Error(err))
		return nil
	}
	return fmt.Errorf("%s: failed to fetch snapshots: %w", op, err)
}
