package notifier

import (
	"fmt"
	"html"
	"regexp"
	"strings"

	"TrendSentinel/internal/model"
	"TrendSentinel/internal/pipeline"
)

const timeLayout = "2006-01-02 15:04"

func signalIcon(s model.Signal) string {
	switch s {
	case model.SignalBuy:
		return "🟢"
	case model.SignalSell:
		return "🔴"
	default:
		return "⚪"
	}
}

// FormatSignalReport formats a run report into a Telegram message.
func FormatSignalReport(symbol string, r *pipeline.Report) string {
	var b strings.Builder
	s := r.Summary

	b.WriteString(fmt.Sprintf("📊 <b>%s %s</b> | %s UTC\n\n", html.EscapeString(symbol), r.Timeframe, s.Time.UTC().Format(timeLayout)))
	b.WriteString(fmt.Sprintf("%s Signal: <b>%s</b>\n", signalIcon(s.Signal), s.SignalLabel))
	b.WriteString(fmt.Sprintf("Price: %.2f\n", s.LastPrice))

	dev := 0.0
	if s.EMATrend > 0 {
		dev = (s.LastPrice - s.EMATrend) / s.EMATrend * 100
	}
	b.WriteString(fmt.Sprintf("EMA trend: %.2f (%+.1f%%)\n", s.EMATrend, dev))
	b.WriteString(fmt.Sprintf("RSI: %.1f\n", s.RSI))

	last := r.Table.Last()
	b.WriteString(fmt.Sprintf("MACD: %.2f / %.2f (hist %+.2f)\n", last.MACDLine, last.MACDSignal, last.MACDHistogram))

	if len(r.Table.Rows) < r.Table.WarmupBars {
		b.WriteString(fmt.Sprintf("\n⚠️ only %d bars, indicators need %d to settle\n", len(r.Table.Rows), r.Table.WarmupBars))
	}

	if len(s.Transitions) > 0 {
		b.WriteString("\n<b>Recent signal changes:</b>\n")
		for _, t := range s.Transitions {
			b.WriteString(fmt.Sprintf("  %s %s → %s @ %.2f\n",
				t.Time.UTC().Format(timeLayout), transitionFrom(t), t.Signal, t.Close))
		}
	}

	b.WriteString(fmt.Sprintf("\nSource: %s", r.Source))
	if r.Synthetic {
		b.WriteString(" (synthetic)")
	}
	b.WriteString("\n")
	for _, w := range r.Warnings {
		b.WriteString(fmt.Sprintf("⚠️ %s\n", html.EscapeString(w)))
	}
	return b.String()
}

// transitionFrom recovers the previous signal from the row's entry.
func transitionFrom(row model.SignalRow) model.Signal {
	return row.Signal - model.Signal(row.Entry)
}

// FormatDegradedNotice tells the operator that live data was unavailable.
func FormatDegradedNotice(symbol string, r *pipeline.Report) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("⚠️ <b>%s %s: live data unavailable</b>\n\n", html.EscapeString(symbol), r.Timeframe))
	for _, w := range r.Warnings {
		b.WriteString(html.EscapeString(w))
		b.WriteString("\n")
	}
	b.WriteString("\nSignals were computed on synthetic bars and must not be traded.")
	return b.String()
}

// FormatError reports a failed run.
func FormatError(symbol string, tf model.Timeframe, err error) string {
	return fmt.Sprintf("❌ <b>%s %s evaluation failed</b>\n%s", html.EscapeString(symbol), tf, html.EscapeString(err.Error()))
}

var tagPattern = regexp.MustCompile(`<[^>]+>`)

// StripHTML removes markup for plain-text sinks.
func StripHTML(text string) string {
	return html.UnescapeString(tagPattern.ReplaceAllString(text, ""))
}
