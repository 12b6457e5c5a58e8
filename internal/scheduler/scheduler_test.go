package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TrendSentinel/internal/logging"
	"TrendSentinel/internal/model"
	"TrendSentinel/internal/pipeline"
)

type recordingNotifier struct {
	mu   sync.Mutex
	msgs []string
}

func (r *recordingNotifier) Notify(_ context.Context, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, text)
	return nil
}

func (r *recordingNotifier) messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.msgs...)
}

type stubRunner struct {
	report *pipeline.Report
	err    error
	reqs   []pipeline.Request
}

func (s *stubRunner) Run(_ context.Context, req pipeline.Request) (*pipeline.Report, error) {
	s.reqs = append(s.reqs, req)
	return s.report, s.err
}

func reportWithLastEntry(entry int, synthetic bool, warnings ...string) *pipeline.Report {
	t0 := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	rows := []model.SignalRow{
		{OHLCV: model.OHLCV{Time: t0, Close: 100}},
		{OHLCV: model.OHLCV{Time: t0.Add(time.Hour), Close: 101}, Signal: model.Signal(entry), Entry: entry},
	}
	table := &model.SignalTable{Rows: rows, WarmupBars: 144}
	return &pipeline.Report{
		Timeframe: model.Timeframe1h,
		Source:    "binance",
		Synthetic: synthetic,
		Warnings:  warnings,
		Table:     table,
		Summary:   model.Summary{Time: rows[1].Time, Signal: rows[1].Signal, SignalLabel: rows[1].Signal.String(), Transitions: table.Transitions(10)},
	}
}

func newTestScheduler(runner Runner, n *recordingNotifier) *Scheduler {
	req := pipeline.Request{Timeframe: model.Timeframe1h, Horizon: model.Days(30)}
	return NewScheduler(context.Background(), runner, n, "BTCUSDT", req, logging.Discard())
}

func TestWatchTask_NotifiesTransitionOnce(t *testing.T) {
	n := &recordingNotifier{}
	s := newTestScheduler(&stubRunner{report: reportWithLastEntry(1, false)}, n)

	s.RunNow()
	s.RunNow()

	msgs := n.messages()
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], "Signal: <b>BUY</b>")
}

func TestWatchTask_QuietWithoutTransition(t *testing.T) {
	n := &recordingNotifier{}
	s := newTestScheduler(&stubRunner{report: reportWithLastEntry(0, false)}, n)

	s.RunNow()

	assert.Empty(t, n.messages())
}

func TestWatchTask_DegradedData(t *testing.T) {
	n := &recordingNotifier{}
	s := newTestScheduler(&stubRunner{report: reportWithLastEntry(1, true, "binance unreachable")}, n)

	s.RunNow()

	msgs := n.messages()
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], "live data unavailable")
}

func TestWatchTask_RunError(t *testing.T) {
	n := &recordingNotifier{}
	s := newTestScheduler(&stubRunner{err: errors.New("invalid input series: series is empty")}, n)

	s.RunNow()

	msgs := n.messages()
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], "evaluation failed")
}

func TestHandleCommand(t *testing.T) {
	runner := &stubRunner{report: reportWithLastEntry(-1, false)}
	s := newTestScheduler(runner, &recordingNotifier{})

	reply := s.HandleCommand(context.Background(), "/signal 4h")
	assert.Contains(t, reply, "SELL")
	require.Len(t, runner.reqs, 1)
	assert.Equal(t, model.Timeframe4h, runner.reqs[0].Timeframe)
	assert.Equal(t, model.Days(30), runner.reqs[0].Horizon)

	assert.Contains(t, s.HandleCommand(context.Background(), "/signal 5m"), "unsupported timeframe")
	assert.Contains(t, s.HandleCommand(context.Background(), "/help"), "/signal")
	assert.Empty(t, s.HandleCommand(context.Background(), "   "))
}

func TestRegister(t *testing.T) {
	s := newTestScheduler(&stubRunner{}, &recordingNotifier{})
	assert.NoError(t, s.Register("0 1 * * * *"))
	assert.Error(t, s.Register("every hour"))
	assert.Len(t, s.Cron.Entries(), 1)
}
