package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"TrendSentinel/internal/collector"
	"TrendSentinel/internal/logging"
	"TrendSentinel/internal/metrics"
	"TrendSentinel/internal/model"
	"TrendSentinel/internal/strategy"
)

// DefaultTransitions is how many recent signal changes a report lists.
const DefaultTransitions = 10

// ErrInvalidRequest marks requests rejected before any data is fetched.
var ErrInvalidRequest = errors.New("invalid request")

// BarProvider is the data side of a run. *collector.Provider satisfies it.
type BarProvider interface {
	Fetch(ctx context.Context, tf model.Timeframe, h model.Horizon) *collector.Result
}

// Request is one evaluation job.
type Request struct {
	Timeframe   model.Timeframe
	Horizon     model.Horizon
	Transitions int
}

// Report is the result of one run.
type Report struct {
	RunID       string             `json:"run_id"`
	GeneratedAt time.Time          `json:"generated_at"`
	Timeframe   model.Timeframe    `json:"timeframe"`
	Horizon     string             `json:"horizon"`
	Source      string             `json:"source"`
	Synthetic   bool               `json:"synthetic"`
	Warnings    []string           `json:"warnings,omitempty"`
	Summary     model.Summary      `json:"summary"`
	Table       *model.SignalTable `json:"table"`
}

// Degraded reports whether live data was requested but synthetic data served.
func (r *Report) Degraded() bool { return r.Synthetic && len(r.Warnings) > 0 }

// Pipeline runs fetch, evaluate and summarize. It keeps no per-run state, so
// one Pipeline may serve concurrent requests.
type Pipeline struct {
	provider BarProvider
	engine   *strategy.Engine
	metrics  *metrics.Metrics
	log      *logrus.Entry
}

// New creates a pipeline. m may be nil.
func New(provider BarProvider, engine *strategy.Engine, m *metrics.Metrics, logger *logrus.Logger) *Pipeline {
	return &Pipeline{
		provider: provider,
		engine:   engine,
		metrics:  m,
		log:      logging.Component(logger, "pipeline"),
	}
}

// Run executes one request. Data problems degrade to synthetic bars and come
// back as report warnings; a structurally invalid series fails the run.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Report, error) {
	if req.Timeframe.Duration() == 0 {
		return nil, fmt.Errorf("%w: unsupported timeframe %q", ErrInvalidRequest, req.Timeframe)
	}
	if err := req.Horizon.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if req.Transitions <= 0 {
		req.Transitions = DefaultTransitions
	}

	runID := uuid.NewString()
	log := p.log.WithFields(logrus.Fields{
		"run_id":    runID,
		"timeframe": req.Timeframe,
		"horizon":   req.Horizon.String(),
	})

	res := p.provider.Fetch(ctx, req.Timeframe, req.Horizon)
	for _, w := range res.Warnings {
		log.WithField("source", res.Source).Warn(w)
	}

	table, err := p.engine.Evaluate(res.Bars)
	if err != nil {
		p.metrics.EngineFailed()
		log.WithError(err).WithField("source", res.Source).Error("evaluation failed")
		return nil, fmt.Errorf("evaluate %s bars: %w", res.Source, err)
	}

	summary := strategy.Summarize(table, req.Transitions)
	p.metrics.Evaluated(summary.SignalLabel)
	log.WithFields(logrus.Fields{
		"source":    res.Source,
		"synthetic": res.Synthetic,
		"bars":      len(table.Rows),
		"signal":    summary.SignalLabel,
		"price":     summary.LastPrice,
	}).Info("evaluation complete")

	return &Report{
		RunID:       runID,
		GeneratedAt: time.Now().UTC(),
		Timeframe:   req.Timeframe,
		Horizon:     req.Horizon.String(),
		Source:      res.Source,
		Synthetic:   res.Synthetic,
		Warnings:    res.Warnings,
		Summary:     summary,
		Table:       table,
	}, nil
}
