package collector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/sirupsen/logrus"

	"TrendSentinel/internal/logging"
	"TrendSentinel/internal/metrics"
	"TrendSentinel/internal/model"
	"TrendSentinel/internal/recorder"
)

// Result is a provider answer. Provenance travels next to the bars, never
// inside them.
type Result struct {
	Bars      []model.OHLCV
	Source    string
	Synthetic bool
	// Attempts is the number of live source calls made.
	Attempts int
	Warnings []string
}

// Degraded reports whether the bars are synthetic stand-ins for live data.
func (r *Result) Degraded() bool { return r.Synthetic && len(r.Warnings) > 0 }

// RetryPolicy bounds retries of transport failures.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultRetryPolicy allows three attempts with backoff from 500ms.
var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts:    3,
	InitialBackoff: 500 * time.Millisecond,
	MaxBackoff:     5 * time.Second,
}

func (p RetryPolicy) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if p.InitialBackoff > 0 {
		b.InitialInterval = p.InitialBackoff
	}
	if p.MaxBackoff > 0 {
		b.MaxInterval = p.MaxBackoff
	}
	return b
}

// ProviderConfig wires a Provider. Live may be nil, in which case every
// request is served by Fallback.
type ProviderConfig struct {
	Live     Source
	Fallback *SyntheticSource
	Offline  bool
	Retry    RetryPolicy
	// AttemptTimeout bounds each live call.
	AttemptTimeout time.Duration
	// Archive receives every successful live series. Optional.
	Archive recorder.Recorder
	Metrics *metrics.Metrics
	Logger  *logrus.Logger
}

// Provider turns a timeframe and horizon into a well-formed bar series.
// It never fails: live failures degrade to synthetic data with a warning.
type Provider struct {
	live           Source
	fallback       *SyntheticSource
	offline        bool
	retry          RetryPolicy
	attemptTimeout time.Duration
	archive        recorder.Recorder
	metrics        *metrics.Metrics
	log            *logrus.Entry
}

// NewProvider creates a Provider, filling unset fields with defaults.
func NewProvider(cfg ProviderConfig) *Provider {
	if cfg.Fallback == nil {
		cfg.Fallback = NewSyntheticSource(0, 0)
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry.MaxAttempts = DefaultRetryPolicy.MaxAttempts
	}
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = 15 * time.Second
	}
	return &Provider{
		live:           cfg.Live,
		fallback:       cfg.Fallback,
		offline:        cfg.Offline,
		retry:          cfg.Retry,
		attemptTimeout: cfg.AttemptTimeout,
		archive:        cfg.Archive,
		metrics:        cfg.Metrics,
		log:            logging.Component(cfg.Logger, "provider"),
	}
}

// LiveName returns the configured live source name, or "synthetic".
func (p *Provider) LiveName() string {
	if p.offline || p.live == nil {
		return p.fallback.Name()
	}
	return p.live.Name()
}

// Fetch returns bars for tf over h. Bars always satisfy the OHLC invariant
// and have strictly increasing timestamps. The one exception is a request
// that fails validation (unknown timeframe or an empty horizon): it returns
// no bars and a warning, and no source is consulted.
func (p *Provider) Fetch(ctx context.Context, tf model.Timeframe, h model.Horizon) *Result {
	count := h.BarCount(tf)
	if err := h.Validate(); err != nil || tf.Duration() == 0 {
		msg := fmt.Sprintf("invalid request %s over %s", tf, h)
		p.log.Warn(msg)
		return &Result{Source: p.fallback.Name(), Synthetic: true, Warnings: []string{msg}}
	}

	if p.offline || p.live == nil {
		return &Result{
			Bars:      p.fallback.Generate(tf, count),
			Source:    p.fallback.Name(),
			Synthetic: true,
		}
	}

	start := time.Now()
	bars, attempts, err := p.fetchLive(ctx, tf, h)
	p.metrics.ObserveFetch(p.live.Name(), time.Since(start))
	if err != nil {
		return p.degrade(tf, count, attempts, err)
	}

	if p.archive != nil {
		if aerr := p.archive.RecordBars(ctx, p.live.Name(), tf, bars); aerr != nil {
			p.log.WithError(aerr).Warn("archiving bars failed")
		}
	}
	p.log.WithFields(logrus.Fields{
		"source":    p.live.Name(),
		"timeframe": tf,
		"bars":      len(bars),
		"attempts":  attempts,
	}).Info("live bars fetched")
	return &Result{Bars: bars, Source: p.live.Name(), Attempts: attempts}
}

func (p *Provider) fetchLive(ctx context.Context, tf model.Timeframe, h model.Horizon) ([]model.OHLCV, int, error) {
	attempts := 0
	op := func() ([]model.OHLCV, error) {
		attempts++
		actx, cancel := context.WithTimeout(ctx, p.attemptTimeout)
		defer cancel()

		bars, err := p.live.Fetch(actx, tf, h)
		if err == nil {
			bars, _ = Sanitize(bars)
			if len(bars) == 0 {
				err = validationErr(p.live.Name(), errors.New("no valid bars after normalization"))
			}
		}
		if err != nil {
			kind := KindOf(err)
			p.metrics.FetchAttempt(p.live.Name(), string(kind))
			if kind != KindTransport {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		p.metrics.FetchAttempt(p.live.Name(), "ok")
		return bars, nil
	}

	notify := func(err error, wait time.Duration) {
		p.log.WithError(err).WithFields(logrus.Fields{
			"attempt": attempts,
			"wait":    wait,
		}).Warn("live fetch failed, retrying")
	}

	bars, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(p.retry.newBackOff()),
		backoff.WithMaxTries(uint(p.retry.MaxAttempts)),
		backoff.WithNotify(notify),
	)
	return bars, attempts, err
}

func (p *Provider) degrade(tf model.Timeframe, count, attempts int, cause error) *Result {
	kind := KindOf(cause)
	var msg string
	switch kind {
	case KindTransport:
		msg = fmt.Sprintf("%s unreachable after %d attempt(s), using synthetic data: %v", p.live.Name(), attempts, cause)
	case KindRateLimit:
		msg = fmt.Sprintf("%s rate limited, using synthetic data: %v", p.live.Name(), cause)
	default:
		msg = fmt.Sprintf("%s returned unusable data, using synthetic data: %v", p.live.Name(), cause)
	}
	p.metrics.Fallback(string(kind))
	p.log.WithError(cause).WithFields(logrus.Fields{
		"source":   p.live.Name(),
		"kind":     kind,
		"attempts": attempts,
	}).Warn("falling back to synthetic data")

	return &Result{
		Bars:      p.fallback.Generate(tf, count),
		Source:    p.fallback.Name(),
		Synthetic: true,
		Attempts:  attempts,
		Warnings:  []string{msg},
	}
}
