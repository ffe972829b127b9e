// Package fetch runs evidence adapters concurrently and gathers whatever they
// return. A failing, slow or panicking adapter contributes nothing and never
// aborts the fetch.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	apperrors "farm-copilot/internal/common/errors"
	"farm-copilot/internal/common/logger"
	"farm-copilot/internal/common/metrics"
	"farm-copilot/internal/models"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultConcurrencyLimit = 8
	DefaultTimeout          = 10 * time.Second
)

// Adapter is one source of evidence. Fetch must honour ctx cancellation.
type Adapter interface {
	Name() string
	Fetch(ctx context.Context, query, location string) ([]models.Record, error)
}

type Config struct {
	ConcurrencyLimit int
	Timeout          time.Duration
}

// Orchestrator is safe for concurrent use across requests.
type Orchestrator struct {
	limit   int
	timeout time.Duration
	logger  logger.Logger
	tracer  trace.Tracer

	mu      sync.Mutex
	closers []namedCloser

	closed       atomic.Bool
	shutdownOnce sync.Once
	shutdownErr  error
}

type namedCloser struct {
	name string
	fn   func() error
}

type Option func(*Orchestrator)

// WithCloser registers a pooled resource released by Shutdown.
func WithCloser(name string, fn func() error) Option {
	return func(o *Orchestrator) {
		o.closers = append(o.closers, namedCloser{name: name, fn: fn})
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(o *Orchestrator) { o.tracer = tracer }
}

func New(cfg Config, log logger.Logger, opts ...Option) *Orchestrator {
	if cfg.ConcurrencyLimit <= 0 {
		cfg.ConcurrencyLimit = DefaultConcurrencyLimit
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	o := &Orchestrator{
		limit:   cfg.ConcurrencyLimit,
		timeout: cfg.Timeout,
		logger:  log,
		tracer:  otel.Tracer("farm-copilot/fetch"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// FetchAll runs every adapter and returns their records in adapter order.
// Calls beyond the concurrency limit queue; once ctx is done, queued adapters
// are skipped and in-flight ones are abandoned.
func (o *Orchestrator) FetchAll(ctx context.Context, adapters []Adapter, query, location string) []models.Record {
	if o.closed.Load() {
		o.logger.Warn("fetch requested after shutdown", nil)
		return nil
	}

	slots := make([][]models.Record, len(adapters))

	g := new(errgroup.Group)
	g.SetLimit(o.limit)
	for i, adapter := range adapters {
		i, adapter := i, adapter
		g.Go(func() error {
			if ctx.Err() != nil {
				metrics.AdapterFetches.WithLabelValues(adapter.Name(), "skipped").Inc()
				return nil
			}
			slots[i] = o.fetchOne(ctx, adapter, query, location)
			return nil
		})
	}
	_ = g.Wait()

	var records []models.Record
	for _, slot := range slots {
		records = append(records, slot...)
	}
	return records
}

type fetchOutcome struct {
	records  []models.Record
	err      error
	panicked bool
}

func (o *Orchestrator) fetchOne(ctx context.Context, adapter Adapter, query, location string) []models.Record {
	name := adapter.Name()
	start := time.Now()
	defer func() {
		metrics.AdapterFetchDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	}()

	callCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	callCtx, span := o.tracer.Start(callCtx, "adapter.fetch", trace.WithAttributes(
		attribute.String("adapter.name", name),
	))
	defer span.End()

	done := make(chan fetchOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fetchOutcome{err: fmt.Errorf("panic: %v", r), panicked: true}
			}
		}()
		records, err := adapter.Fetch(callCtx, query, location)
		done <- fetchOutcome{records: records, err: err}
	}()

	var out fetchOutcome
	select {
	case out = <-done:
	case <-callCtx.Done():
		select {
		case out = <-done:
		default:
			out = fetchOutcome{err: callCtx.Err()}
		}
	}

	if out.err != nil {
		outcome := "error"
		switch {
		case out.panicked:
			outcome = "panic"
		case errors.Is(out.err, context.DeadlineExceeded):
			outcome = "timeout"
		case errors.Is(out.err, context.Canceled):
			outcome = "cancelled"
		}
		o.recordFailure(span, name, outcome, out.err)
		return nil
	}

	records := sanitize(out.records)
	metrics.AdapterFetches.WithLabelValues(name, "ok").Inc()
	metrics.AdapterRecords.WithLabelValues(name).Add(float64(len(records)))
	span.SetAttributes(attribute.Int("adapter.records", len(records)))
	return records
}

func (o *Orchestrator) recordFailure(span trace.Span, name, outcome string, err error) {
	failure := apperrors.NewAdapterFailureError(name, err)
	metrics.AdapterFetches.WithLabelValues(name, outcome).Inc()
	span.RecordError(err)
	span.SetStatus(codes.Error, outcome)
	o.logger.Warn("adapter fetch failed", map[string]interface{}{
		"adapter":   name,
		"outcome":   outcome,
		"errorCode": string(failure.Code),
		"error":     err.Error(),
	})
}

// sanitize drops nil records and clamps evidence hints into [0,1].
func sanitize(in []models.Record) []models.Record {
	out := make([]models.Record, 0, len(in))
	for _, rec := range in {
		switch r := rec.(type) {
		case nil:
			continue
		case models.EvidenceRecord:
			out = append(out, r.Normalized())
		case *models.EvidenceRecord:
			if r != nil {
				out = append(out, r.Normalized())
			}
		case *models.WeatherReading:
			if r != nil {
				out = append(out, *r)
			}
		case *models.SoilReading:
			if r != nil {
				out = append(out, *r)
			}
		case *models.PlantIdentification:
			if r != nil {
				out = append(out, *r)
			}
		default:
			out = append(out, rec)
		}
	}
	return out
}

// Shutdown releases registered resources. Only the first call does any work;
// later calls return the same result.
func (o *Orchestrator) Shutdown() error {
	o.shutdownOnce.Do(func() {
		o.closed.Store(true)

		o.mu.Lock()
		closers := o.closers
		o.closers = nil
		o.mu.Unlock()

		var errs []error
		for _, c := range closers {
			if err := c.fn(); err != nil {
				errs = append(errs, fmt.Errorf("close %s: %w", c.name, err))
			}
		}
		o.shutdownErr = errors.Join(errs...)
		o.logger.Info("fetch orchestrator shut down", map[string]interface{}{
			"resources": len(closers),
		})
	})
	return o.shutdownErr
}
