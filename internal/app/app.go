package app

import (
	"context"
	"errors"

	"github.com/NasaVasa/pricewatch/internal/config"
	"github.com/NasaVasa/pricewatch/internal/delivery/telegram"
	"github.com/NasaVasa/pricewatch/internal/domain"
	"github.com/NasaVasa/pricewatch/internal/infra/binance"
	"github.com/NasaVasa/pricewatch/internal/infra/db"
	"github.com/NasaVasa/pricewatch/internal/infra/log"
	"github.com/NasaVasa/pricewatch/internal/infra/metrics"
	"github.com/NasaVasa/pricewatch/internal/infra/redisbus"
	"github.com/NasaVasa/pricewatch/internal/infra/yahoo"
	"github.com/NasaVasa/pricewatch/internal/pricecache"
	"github.com/NasaVasa/pricewatch/internal/usecase"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type App struct {
	monitor  *usecase.Monitor
	stream   *binance.Source
	bot      *telegram.Bot
	metrics  *metrics.Server
	logger   *zap.Logger
	cleanups []func() error
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	logger, err := log.NewLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	a := &App{logger: logger}

	dbConn, err := db.Open(cfg, logger)
	if err != nil {
		return nil, err
	}
	a.cleanups = append(a.cleanups, func() error {
		sqlDB, err := dbConn.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	})

	userRepo := db.NewUserRepository(dbConn)
	alertRepo := db.NewAlertRepository(dbConn)

	var source domain.PriceSource
	switch cfg.PriceSource {
	case config.PriceSourceBinance:
		a.stream = binance.NewSource(cfg.BinanceWSURL, cfg.StreamMaxStaleness, cfg.StreamIdleTimeout, cfg.UpstreamTimeout, logger)
		source = a.stream
	default:
		source = yahoo.NewSource(cfg.YahooBaseURL, cfg.UpstreamTimeout, cfg.UpstreamMaxConcurrent, logger)
	}
	cache := pricecache.New(source, pricecache.Options{
		Retention:     cfg.CacheRetention,
		MaxConcurrent: cfg.UpstreamMaxConcurrent,
	}, logger)

	var notifiers []usecase.TriggerNotifier
	var botAPI *tgbotapi.BotAPI
	if cfg.TelegramBotToken != "" {
		botAPI, err = telegram.NewAPI(cfg.TelegramBotToken)
		if err != nil {
			a.Shutdown()
			return nil, err
		}
		notifiers = append(notifiers, telegram.NewNotifier(botAPI, userRepo, logger))
	}
	if cfg.RedisAddr != "" {
		client := redisbus.NewClient(cfg.RedisAddr)
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Warn("redis not reachable yet, trigger events will retry per publish", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		}
		a.cleanups = append(a.cleanups, client.Close)
		notifiers = append(notifiers, redisbus.NewPublisher(client, cfg.RedisChannel, logger))
	}

	a.monitor = usecase.NewMonitor(alertRepo, cache, usecase.MonitorConfig{
		Interval:   cfg.MonitorInterval,
		Freshness:  cfg.MonitorFreshness,
		CronLogger: log.CronLogger{Logger: logger},
	}, logger, notifiers...)

	if botAPI != nil {
		userUC := usecase.NewUserUsecase(userRepo)
		alertUC := usecase.NewAlertUsecase(userRepo, alertRepo)
		quoteUC := usecase.NewQuoteUsecase(cache, cfg.MonitorFreshness)
		handlers := telegram.NewHandlers(userUC, alertUC, quoteUC, a.monitor, logger)
		a.bot = telegram.NewBot(botAPI, handlers, cfg.TelegramPollTimeout)
	} else {
		logger.Info("TELEGRAM_BOT_TOKEN not set, running without bot")
	}

	if cfg.MetricsAddr != "" {
		a.metrics = metrics.NewServer(cfg.MetricsAddr, nil, logger)
	}

	return a, nil
}

func (a *App) Run(ctx context.Context) error {
	a.logger.Info("pricewatch service starting")
	g, ctx := errgroup.WithContext(ctx)

	if a.stream != nil {
		g.Go(func() error { return a.stream.Run(ctx) })
	}
	if a.metrics != nil {
		g.Go(func() error { return a.metrics.Run(ctx) })
	}
	if a.bot != nil {
		g.Go(func() error { return a.bot.Start(ctx) })
	}
	g.Go(func() error { return a.monitor.Run(ctx) })

	a.logger.Info("pricewatch service started")
	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (a *App) Shutdown() {
	a.logger.Info("pricewatch service shutting down")
	for i := len(a.cleanups) - 1; i >= 0; i-- {
		if err := a.cleanups[i](); err != nil {
			a.logger.Warn("cleanup failed", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}
