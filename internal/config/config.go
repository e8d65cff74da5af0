package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

const (
	PriceSourceYahoo   = "yahoo"
	PriceSourceBinance = "binance"

	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"
)

type Config struct {
	MonitorInterval       time.Duration `env:"MONITOR_INTERVAL,default=30s"`
	MonitorFreshness      time.Duration `env:"MONITOR_FRESHNESS"`
	CacheRetention        time.Duration `env:"CACHE_RETENTION,default=10m"`
	UpstreamMaxConcurrent int           `env:"UPSTREAM_MAX_CONCURRENT,default=4"`
	UpstreamTimeout       time.Duration `env:"UPSTREAM_TIMEOUT,default=10s"`

	PriceSource        string        `env:"PRICE_SOURCE,default=yahoo"`
	YahooBaseURL       string        `env:"YAHOO_BASE_URL,default=https://query1.finance.yahoo.com"`
	BinanceWSURL       string        `env:"BINANCE_WS_URL,default=wss://stream.binance.com:9443/ws"`
	StreamMaxStaleness time.Duration `env:"STREAM_MAX_STALENESS,default=2m"`
	StreamIdleTimeout  time.Duration `env:"STREAM_IDLE_TIMEOUT,default=10m"`

	DBDriver          string        `env:"DB_DRIVER,default=postgres"`
	DBSQLitePath      string        `env:"DB_SQLITE_PATH,default=pricewatch.db"`
	DBHost            string        `env:"DB_HOST,default=localhost"`
	DBPort            int           `env:"DB_PORT,default=5432"`
	DBUser            string        `env:"DB_USER,default=pricewatch"`
	DBPassword        string        `env:"DB_PASSWORD"`
	DBName            string        `env:"DB_NAME,default=pricewatch"`
	DBSSLMode         string        `env:"DB_SSLMODE,default=disable"`
	DBMaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS,default=10"`
	DBMaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS,default=25"`
	DBConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME,default=30m"`

	TelegramBotToken    string `env:"TELEGRAM_BOT_TOKEN"`
	TelegramPollTimeout int    `env:"TELEGRAM_POLL_TIMEOUT,default=60"`

	RedisAddr    string `env:"REDIS_ADDR"`
	RedisChannel string `env:"REDIS_CHANNEL,default=pricewatch.alerts.triggered"`

	MetricsAddr string `env:"METRICS_ADDR"`
	LogLevel    string `env:"LOG_LEVEL,default=info"`
}

func Load(ctx context.Context) (Config, error) {
	return load(ctx, envconfig.OsLookuper())
}

func load(ctx context.Context, lookuper envconfig.Lookuper) (Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: lookuper}); err != nil {
		return Config{}, err
	}
	if cfg.MonitorFreshness == 0 {
		cfg.MonitorFreshness = cfg.MonitorInterval
	}
	cfg.PriceSource = strings.ToLower(strings.TrimSpace(cfg.PriceSource))
	cfg.DBDriver = strings.ToLower(strings.TrimSpace(cfg.DBDriver))
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if c.MonitorInterval <= 0 {
		errs = append(errs, errors.New("MONITOR_INTERVAL must be positive"))
	}
	if c.MonitorFreshness <= 0 {
		errs = append(errs, errors.New("MONITOR_FRESHNESS must be positive"))
	}
	if c.CacheRetention < c.MonitorFreshness {
		errs = append(errs, errors.New("CACHE_RETENTION must not be shorter than MONITOR_FRESHNESS"))
	}
	if c.UpstreamMaxConcurrent <= 0 {
		errs = append(errs, errors.New("UPSTREAM_MAX_CONCURRENT must be positive"))
	}
	if c.UpstreamTimeout <= 0 {
		errs = append(errs, errors.New("UPSTREAM_TIMEOUT must be positive"))
	}
	if c.StreamIdleTimeout < 0 {
		errs = append(errs, errors.New("STREAM_IDLE_TIMEOUT must not be negative"))
	}
	switch c.PriceSource {
	case PriceSourceYahoo, PriceSourceBinance:
	default:
		errs = append(errs, fmt.Errorf("unknown PRICE_SOURCE %q", c.PriceSource))
	}
	switch c.DBDriver {
	case DBDriverPostgres, DBDriverSQLite:
	default:
		errs = append(errs, fmt.Errorf("unknown DB_DRIVER %q", c.DBDriver))
	}
	return errors.Join(errs...)
}
