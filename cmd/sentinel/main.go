package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"

	"TrendSentinel/internal/collector"
	"TrendSentinel/internal/config"
	"TrendSentinel/internal/logging"
	"TrendSentinel/internal/metrics"
	"TrendSentinel/internal/model"
	"TrendSentinel/internal/notifier"
	"TrendSentinel/internal/pipeline"
	"TrendSentinel/internal/recorder"
	"TrendSentinel/internal/scheduler"
	"TrendSentinel/internal/server"
	"TrendSentinel/internal/strategy"
)

type options struct {
	configPath string
	mode       string
	timeframe  string
	days       int
	bars       int
	offline    bool
	format     string
	rows       int
}

func parseFlags(args []string) (*options, error) {
	opts := &options{}
	fsFlags := flag.NewFlagSet("sentinel", flag.ContinueOnError)
	defaultPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		defaultPath = v
	}
	fsFlags.StringVar(&opts.configPath, "config", defaultPath, "path to the YAML config")
	fsFlags.StringVar(&opts.mode, "mode", "snapshot", "snapshot, serve or watch")
	fsFlags.StringVar(&opts.timeframe, "timeframe", "", "bar width: 1h, 4h or 1d (default from config)")
	fsFlags.IntVar(&opts.days, "days", 0, "history in days")
	fsFlags.IntVar(&opts.bars, "bars", 0, "history in bars (overrides -days)")
	fsFlags.BoolVar(&opts.offline, "offline", false, "use synthetic data, never call the network")
	fsFlags.StringVar(&opts.format, "format", "table", "snapshot output: table or json")
	fsFlags.IntVar(&opts.rows, "rows", 20, "snapshot table rows to print, 0 for all")
	if err := fsFlags.Parse(args); err != nil {
		return nil, err
	}
	switch opts.mode {
	case "snapshot", "serve", "watch":
	default:
		return nil, fmt.Errorf("unknown mode %q", opts.mode)
	}
	if opts.format != "table" && opts.format != "json" {
		return nil, fmt.Errorf("unknown format %q", opts.format)
	}
	if opts.days < 0 || opts.bars < 0 || opts.rows < 0 {
		return nil, errors.New("-days, -bars and -rows must not be negative")
	}
	return opts, nil
}

func main() {
	// Credentials may live in a local .env; its absence is normal.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
	}

	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "sentinel: %v\n", err)
		os.Exit(1)
	}
}

func run(opts *options) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if opts.offline {
		cfg.DataSource.Offline = true
	}
	if opts.timeframe != "" {
		cfg.Market.Timeframe = opts.timeframe
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	log := logger.WithField("component", "main")
	log.Info("TrendSentinel starting...")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(reg)

	// Init recorder
	var rec recorder.Recorder
	if cfg.Database.SQLitePath != "" {
		sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath, logger)
		if err != nil {
			log.WithError(err).Warn("init sqlite recorder failed, using noop")
			rec = recorder.NewNoopRecorder()
		} else {
			rec = sr
		}
	} else {
		rec = recorder.NewNoopRecorder()
	}
	defer rec.Close()

	provider, closeCache, err := buildProvider(ctx, cfg, rec, m, logger)
	if err != nil {
		return err
	}
	defer closeCache()
	log.WithField("source", provider.LiveName()).Info("data source ready")

	engine, err := strategy.NewEngine(cfg.Strategy)
	if err != nil {
		return fmt.Errorf("init engine: %w", err)
	}
	p := pipeline.New(provider, engine, m, logger)

	req := pipeline.Request{Timeframe: cfg.Timeframe(), Horizon: cfg.Horizon()}
	switch {
	case opts.bars > 0:
		req.Horizon = model.Bars(opts.bars)
	case opts.days > 0:
		req.Horizon = model.Days(opts.days)
	}

	switch opts.mode {
	case "serve":
		h := server.NewHandler(p, req, logger)
		return server.New(cfg.Server.Addr, server.NewRouter(h, reg), logger).Run(ctx)
	case "watch":
		return watch(ctx, cfg, p, req, logger)
	default:
		report, err := p.Run(ctx, req)
		if err != nil {
			return err
		}
		if opts.format == "json" {
			return writeJSON(os.Stdout, report)
		}
		return writeTable(os.Stdout, cfg.Market.Symbol, report, opts.rows)
	}
}

// buildProvider assembles live source, optional cache and synthetic fallback.
func buildProvider(ctx context.Context, cfg *config.Config, rec recorder.Recorder, m *metrics.Metrics, logger *logrus.Logger) (*collector.Provider, func(), error) {
	ds := cfg.DataSource
	httpOpts := collector.HTTPOptions{
		BaseURL:     ds.BaseURL,
		APIKey:      ds.APIKey,
		ProxyURL:    cfg.Proxy,
		Timeout:     ds.Timeout,
		MinInterval: ds.MinInterval,
	}

	var live collector.Source
	archive := rec
	switch ds.Provider {
	case "binance":
		live = collector.NewBinanceSource(cfg.Market.Symbol, httpOpts)
	case "coingecko":
		live = collector.NewCoinGeckoSource(ds.CoinID, ds.VsCurrency, httpOpts)
	case "replay":
		live = collector.NewReplaySource(rec, ds.ReplayOrigin)
		archive = nil
	case "synthetic":
		archive = nil
	}

	closeCache := func() {}
	if live != nil && cfg.Cache.Enabled {
		var store collector.CacheStore = collector.NewMemoryStore()
		if cfg.Cache.RedisURL != "" {
			rs, err := collector.NewRedisStore(ctx, cfg.Cache.RedisURL)
			if err != nil {
				return nil, nil, fmt.Errorf("init redis cache: %w", err)
			}
			store = rs
			closeCache = func() { rs.Close() }
		}
		live = collector.NewCachedSource(live, store, cfg.Cache.TTL, logger, m)
	}

	return collector.NewProvider(collector.ProviderConfig{
		Live:     live,
		Fallback: collector.NewSyntheticSource(cfg.Synthetic.BasePrice, cfg.Synthetic.Seed),
		Offline:  ds.Offline,
		Retry: collector.RetryPolicy{
			MaxAttempts:    ds.MaxAttempts,
			InitialBackoff: ds.InitialBackoff,
			MaxBackoff:     ds.MaxBackoff,
		},
		AttemptTimeout: ds.Timeout,
		Archive:        archive,
		Metrics:        m,
		Logger:         logger,
	}), closeCache, nil
}

func watch(ctx context.Context, cfg *config.Config, p *pipeline.Pipeline, req pipeline.Request, logger *logrus.Logger) error {
	log := logger.WithField("component", "main")

	var n notifier.Notifier = notifier.NewLogNotifier(logger)
	var tn *notifier.TelegramNotifier
	if cfg.Telegram.BotToken != "" {
		tn = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy, logger)
		n = tn
	}

	sched := scheduler.NewScheduler(ctx, p, n, cfg.Market.Symbol, req, logger)
	if err := sched.Register(cfg.Schedule.WatchCron); err != nil {
		return err
	}
	sched.Start()
	defer sched.Stop()

	if tn != nil {
		go tn.StartPolling(ctx, sched.HandleCommand)
		log.Info("telegram polling started")
	}

	// Optional: run immediately on start
	if os.Getenv("RUN_ON_START") == "true" {
		log.Info("RUN_ON_START enabled, executing watch task now")
		go sched.RunNow()
	}

	log.WithField("cron", cfg.Schedule.WatchCron).Info("TrendSentinel is watching. Press Ctrl+C to stop.")
	<-ctx.Done()
	log.Info("shutdown signal received, stopping...")
	return nil
}
