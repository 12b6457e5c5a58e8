package scheduler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"TrendSentinel/internal/logging"
	"TrendSentinel/internal/model"
	"TrendSentinel/internal/notifier"
	"TrendSentinel/internal/pipeline"
)

// Runner executes one evaluation. *pipeline.Pipeline satisfies it.
type Runner interface {
	Run(ctx context.Context, req pipeline.Request) (*pipeline.Report, error)
}

// Scheduler re-runs the evaluation on a cron spec and notifies on signal
// changes and degraded data.
type Scheduler struct {
	Cron     *cron.Cron
	Runner   Runner
	Notifier notifier.Notifier
	Symbol   string
	Request  pipeline.Request
	Ctx      context.Context

	log *logrus.Entry

	mu           sync.Mutex
	lastNotified time.Time // bar time of the last transition sent
}

// NewScheduler creates a new Scheduler.
func NewScheduler(ctx context.Context, runner Runner, n notifier.Notifier, symbol string, req pipeline.Request, logger *logrus.Logger) *Scheduler {
	log := logging.Component(logger, "scheduler")
	return &Scheduler{
		Cron: cron.New(
			cron.WithSeconds(),
			cron.WithLocation(time.UTC),
			cron.WithChain(cron.SkipIfStillRunning(cron.PrintfLogger(log))),
		),
		Runner:   runner,
		Notifier: n,
		Symbol:   symbol,
		Request:  req,
		Ctx:      ctx,
		log:      log,
	}
}

// Register adds the watch task on spec (six fields, seconds first).
func (s *Scheduler) Register(spec string) error {
	if _, err := s.Cron.AddFunc(spec, s.watchTask); err != nil {
		return fmt.Errorf("register watch task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.log.Info("scheduler started")
}

// Stop stops the cron scheduler and waits for a running task to finish.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.log.Info("scheduler stopped")
}

// RunNow executes the watch task immediately.
func (s *Scheduler) RunNow() {
	s.watchTask()
}

func (s *Scheduler) watchTask() {
	s.log.Info("running watch task")
	report, err := s.Runner.Run(s.Ctx, s.Request)
	if err != nil {
		s.log.WithError(err).Error("watch run failed")
		s.trySend(notifier.FormatError(s.Symbol, s.Request.Timeframe, err))
		return
	}

	if report.Degraded() {
		s.trySend(notifier.FormatDegradedNotice(s.Symbol, report))
		return
	}

	last := report.Table.Last()
	if last.Entry == 0 {
		s.log.WithField("signal", last.Signal).Debug("no transition on last bar")
		return
	}
	if !s.markNotified(last.Time) {
		return
	}
	s.trySend(notifier.FormatSignalReport(s.Symbol, report))
}

// markNotified reports whether barTime has not been announced yet and records it.
func (s *Scheduler) markNotified(barTime time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !barTime.After(s.lastNotified) {
		return false
	}
	s.lastNotified = barTime
	return true
}

// HandleCommand processes a chat command and returns a reply.
func (s *Scheduler) HandleCommand(ctx context.Context, command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return ""
	}
	switch fields[0] {
	case "/signal":
		req := s.Request
		if len(fields) > 1 {
			tf, err := model.ParseTimeframe(fields[1])
			if err != nil {
				return err.Error()
			}
			req.Timeframe = tf
		}
		report, err := s.Runner.Run(ctx, req)
		if err != nil {
			return notifier.FormatError(s.Symbol, req.Timeframe, err)
		}
		return notifier.FormatSignalReport(s.Symbol, report)
	default:
		return "Available commands:\n• /signal [1h|4h|1d]"
	}
}

func (s *Scheduler) trySend(text string) {
	if err := s.Notifier.Notify(s.Ctx, text); err != nil {
		s.log.WithError(err).Error("send notification failed")
	}
}
