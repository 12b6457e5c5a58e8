package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"TrendSentinel/internal/model"
	"TrendSentinel/internal/strategy"
)

const (
	MinDays = 30
	MaxDays = 365
)

// Config holds all application configuration.
type Config struct {
	Market struct {
		Symbol    string `yaml:"symbol"`
		Timeframe string `yaml:"timeframe"`
		Days      int    `yaml:"days"`
		Bars      int    `yaml:"bars"`
	} `yaml:"market"`
	DataSource struct {
		Provider       string        `yaml:"provider"` // binance, coingecko, replay or synthetic
		BaseURL        string        `yaml:"base_url"`
		APIKey         string        `yaml:"api_key"`
		CoinID         string        `yaml:"coin_id"`
		VsCurrency     string        `yaml:"vs_currency"`
		ReplayOrigin   string        `yaml:"replay_origin"`
		Offline        bool          `yaml:"offline"`
		Timeout        time.Duration `yaml:"timeout"`
		MaxAttempts    int           `yaml:"max_attempts"`
		InitialBackoff time.Duration `yaml:"initial_backoff"`
		MaxBackoff     time.Duration `yaml:"max_backoff"`
		MinInterval    time.Duration `yaml:"min_interval"`
	} `yaml:"data_source"`
	Synthetic struct {
		BasePrice float64 `yaml:"base_price"`
		Seed      uint64  `yaml:"seed"`
	} `yaml:"synthetic"`
	Cache struct {
		Enabled  bool          `yaml:"enabled"`
		TTL      time.Duration `yaml:"ttl"`
		RedisURL string        `yaml:"redis_url"`
	} `yaml:"cache"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	Schedule struct {
		WatchCron string `yaml:"watch_cron"`
	} `yaml:"schedule"`
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	Strategy strategy.Params `yaml:"strategy"`
	Proxy    string          `yaml:"proxy"`
}

// Load reads config from a YAML file, then applies environment variable overrides.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("DATA_PROVIDER"); v != "" {
		cfg.DataSource.Provider = v
	}
	if v := os.Getenv("MARKET_SYMBOL"); v != "" {
		cfg.Market.Symbol = v
	}
	if v := os.Getenv("MARKET_TIMEFRAME"); v != "" {
		cfg.Market.Timeframe = v
	}
	if v := os.Getenv("OFFLINE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.DataSource.Offline = b
		}
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Telegram.ChatID = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Proxy = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Cache.RedisURL = v
	}
	if v := os.Getenv("CRON_WATCH"); v != "" {
		cfg.Schedule.WatchCron = v
	}
	if v := os.Getenv("SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}

	// Defaults
	if cfg.Market.Symbol == "" {
		cfg.Market.Symbol = "BTCUSDT"
	}
	if cfg.Market.Timeframe == "" {
		cfg.Market.Timeframe = string(model.Timeframe1d)
	}
	if cfg.Market.Days == 0 && cfg.Market.Bars == 0 {
		cfg.Market.Days = 90
	}
	if cfg.DataSource.Provider == "" {
		cfg.DataSource.Provider = "binance"
	}
	if cfg.DataSource.CoinID == "" {
		cfg.DataSource.CoinID = "bitcoin"
	}
	if cfg.DataSource.VsCurrency == "" {
		cfg.DataSource.VsCurrency = "usd"
	}
	if cfg.DataSource.ReplayOrigin == "" {
		cfg.DataSource.ReplayOrigin = "binance"
	}
	if cfg.DataSource.Timeout == 0 {
		cfg.DataSource.Timeout = 10 * time.Second
	}
	if cfg.DataSource.MaxAttempts == 0 {
		cfg.DataSource.MaxAttempts = 3
	}
	if cfg.DataSource.InitialBackoff == 0 {
		cfg.DataSource.InitialBackoff = 500 * time.Millisecond
	}
	if cfg.DataSource.MaxBackoff == 0 {
		cfg.DataSource.MaxBackoff = 5 * time.Second
	}
	// Credentials come from the provider-specific variable when none is configured.
	if cfg.DataSource.APIKey == "" {
		switch cfg.DataSource.Provider {
		case "binance":
			cfg.DataSource.APIKey = os.Getenv("BINANCE_API_KEY")
		case "coingecko":
			cfg.DataSource.APIKey = os.Getenv("COINGECKO_API_KEY")
		}
	}
	if cfg.Synthetic.BasePrice == 0 {
		cfg.Synthetic.BasePrice = 40000
	}
	if cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = time.Minute
	}
	if cfg.Database.SQLitePath == "" {
		cfg.Database.SQLitePath = "data/trend_sentinel.db"
	}
	if cfg.Schedule.WatchCron == "" {
		cfg.Schedule.WatchCron = "0 1 * * * *"
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	def := strategy.DefaultParams
	if cfg.Strategy.TrendPeriod == 0 {
		cfg.Strategy.TrendPeriod = def.TrendPeriod
	}
	if cfg.Strategy.MACDFast == 0 {
		cfg.Strategy.MACDFast = def.MACDFast
	}
	if cfg.Strategy.MACDSlow == 0 {
		cfg.Strategy.MACDSlow = def.MACDSlow
	}
	if cfg.Strategy.MACDSignal == 0 {
		cfg.Strategy.MACDSignal = def.MACDSignal
	}
	if cfg.Strategy.RSIPeriod == 0 {
		cfg.Strategy.RSIPeriod = def.RSIPeriod
	}
	if cfg.Strategy.RSIThreshold == 0 {
		cfg.Strategy.RSIThreshold = def.RSIThreshold
	}

	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if _, err := model.ParseTimeframe(c.Market.Timeframe); err != nil {
		return fmt.Errorf("market.timeframe: %w", err)
	}
	if c.Market.Bars < 0 {
		return fmt.Errorf("market.bars must not be negative")
	}
	if c.Market.Bars == 0 && (c.Market.Days < MinDays || c.Market.Days > MaxDays) {
		return fmt.Errorf("market.days must be within [%d, %d], got %d", MinDays, MaxDays, c.Market.Days)
	}
	switch c.DataSource.Provider {
	case "binance", "coingecko", "replay", "synthetic":
	default:
		return fmt.Errorf("data_source.provider %q is not one of binance, coingecko, replay, synthetic", c.DataSource.Provider)
	}
	if c.DataSource.MaxAttempts < 1 {
		return fmt.Errorf("data_source.max_attempts must be at least 1")
	}
	if c.DataSource.Timeout < 0 || c.DataSource.MinInterval < 0 {
		return fmt.Errorf("data_source durations must not be negative")
	}
	if c.Cache.Enabled && c.Cache.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be positive when the cache is enabled")
	}
	if (c.Telegram.BotToken == "") != (c.Telegram.ChatID == "") {
		return fmt.Errorf("telegram.bot_token and telegram.chat_id must be set together")
	}
	if err := c.Strategy.Validate(); err != nil {
		return fmt.Errorf("strategy: %w", err)
	}
	return nil
}

// Timeframe returns the configured bar width. Call after Validate.
func (c *Config) Timeframe() model.Timeframe {
	tf, _ := model.ParseTimeframe(c.Market.Timeframe)
	return tf
}

// Horizon returns the configured history length; bars win over days.
func (c *Config) Horizon() model.Horizon {
	if c.Market.Bars > 0 {
		return model.Bars(c.Market.Bars)
	}
	return model.Days(c.Market.Days)
}
