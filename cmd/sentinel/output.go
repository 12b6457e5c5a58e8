package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"TrendSentinel/internal/pipeline"
)

const rowTimeLayout = "2006-01-02 15:04"

func writeJSON(w io.Writer, report *pipeline.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

// writeTable prints the last rows of the table, the summary and any warnings.
func writeTable(w io.Writer, symbol string, report *pipeline.Report, rows int) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "timestamp\topen\thigh\tlow\tclose\tvolume\tema_trend\tmacd_line\tmacd_signal_line\tmacd_histogram\trsi\tsignal\tentry\t")

	all := report.Table.Rows
	start := 0
	if rows > 0 && len(all) > rows {
		start = len(all) - rows
	}
	for _, r := range all[start:] {
		fmt.Fprintf(tw, "%s\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t%.4f\t%.4f\t%.4f\t%.2f\t%s\t%+d\t\n",
			r.Time.UTC().Format(rowTimeLayout), r.Open, r.High, r.Low, r.Close, r.Volume,
			r.EMATrend, r.MACDLine, r.MACDSignal, r.MACDHistogram, r.RSI, r.Signal, r.Entry)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	s := report.Summary
	fmt.Fprintf(w, "\n%s %s  %d bars from %s", symbol, report.Timeframe, len(all), report.Source)
	if report.Synthetic {
		fmt.Fprint(w, " (synthetic)")
	}
	fmt.Fprintf(w, "\nlatest %s: %s  price %.2f  ema_trend %.2f  rsi %.2f\n",
		s.Time.UTC().Format(rowTimeLayout), s.SignalLabel, s.LastPrice, s.EMATrend, s.RSI)
	if len(all) < report.Table.WarmupBars {
		fmt.Fprintf(w, "note: fewer than %d bars, indicator values are still warming up\n", report.Table.WarmupBars)
	}
	if len(s.Transitions) > 0 {
		fmt.Fprintln(w, "recent signal changes:")
		for _, t := range s.Transitions {
			fmt.Fprintf(w, "  %s  %-4s  %+d  %.2f\n", t.Time.UTC().Format(rowTimeLayout), t.Signal, t.Entry, t.Close)
		}
	}
	for _, warn := range report.Warnings {
		fmt.Fprintf(w, "WARNING: %s\n", warn)
	}
	return nil
}
