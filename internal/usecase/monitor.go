package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/NasaVasa/pricewatch/internal/domain"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// AlertStore is the slice of the alert repository the monitor depends on.
type AlertStore interface {
	ListActive(ctx context.Context) ([]domain.Alert, error)
	ListActiveBySymbol(ctx context.Context, symbol string) ([]domain.Alert, error)
	// MarkTriggered applies active -> triggered and reports whether it did.
	// An alert that is already inactive or gone yields false, nil.
	MarkTriggered(ctx context.Context, alertID uint, at time.Time) (bool, error)
}

type PriceResolver interface {
	GetOrFetch(ctx context.Context, symbols []string, maxAge time.Duration) map[string]domain.Quote
}

// TriggerNotifier is told about every committed trigger. Errors are logged
// and never undo the transition.
type TriggerNotifier interface {
	AlertTriggered(ctx context.Context, alert domain.Alert, quote domain.Quote) error
}

type MonitorConfig struct {
	Interval time.Duration
	// Freshness is the oldest cached quote a cycle accepts.
	Freshness  time.Duration
	CronLogger cron.Logger
}

type CycleReport struct {
	CycleID   string
	Active    int
	Symbols   int
	Resolved  int
	Evaluated int
	Triggered int
	Conflicts int
	Skipped   int

	// Evaluations holds one outcome per priced alert, in symbol order.
	Evaluations []domain.Evaluation
}

type Monitor struct {
	store     AlertStore
	prices    PriceResolver
	notifiers []TriggerNotifier
	cfg       MonitorConfig
	logger    *zap.Logger
	now       func() time.Time
}

func NewMonitor(store AlertStore, prices PriceResolver, cfg MonitorConfig, logger *zap.Logger, notifiers ...TriggerNotifier) *Monitor {
	if cfg.Freshness <= 0 {
		cfg.Freshness = cfg.Interval
	}
	if cfg.CronLogger == nil {
		cfg.CronLogger = cron.DiscardLogger
	}
	return &Monitor{
		store:     store,
		prices:    prices,
		notifiers: notifiers,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// Run executes a cycle immediately and then one per interval until ctx is
// cancelled. It returns after any in-flight cycle has finished.
func (m *Monitor) Run(ctx context.Context) error {
	m.logger.Info("monitor starting", zap.Duration("interval", m.cfg.Interval), zap.Duration("freshness", m.cfg.Freshness))
	m.runLogged(ctx)

	scheduler := cron.New(
		cron.WithLogger(m.cfg.CronLogger),
		cron.WithChain(cron.Recover(m.cfg.CronLogger), cron.SkipIfStillRunning(m.cfg.CronLogger)),
	)
	if _, err := scheduler.AddFunc("@every "+m.cfg.Interval.String(), func() { m.runLogged(ctx) }); err != nil {
		return fmt.Errorf("schedule monitor: %w", err)
	}
	scheduler.Start()

	<-ctx.Done()
	<-scheduler.Stop().Done()
	m.logger.Info("monitor stopped")
	return nil
}

// RunCycle evaluates every active alert once.
func (m *Monitor) RunCycle(ctx context.Context) (CycleReport, error) {
	report := CycleReport{CycleID: uuid.NewString()}
	alerts, err := m.store.ListActive(ctx)
	if err != nil {
		return report, fmt.Errorf("list active alerts: %w", err)
	}
	return m.process(ctx, report, alerts)
}

// CheckSymbol runs an on-demand pass over the active alerts of one symbol.
func (m *Monitor) CheckSymbol(ctx context.Context, symbol string) (CycleReport, error) {
	report := CycleReport{CycleID: uuid.NewString()}
	alerts, err := m.store.ListActiveBySymbol(ctx, domain.NormalizeSymbol(symbol))
	if err != nil {
		return report, fmt.Errorf("list active alerts for %s: %w", symbol, err)
	}
	return m.process(ctx, report, alerts)
}

func (m *Monitor) process(ctx context.Context, report CycleReport, alerts []domain.Alert) (CycleReport, error) {
	report.Active = len(alerts)
	if len(alerts) == 0 {
		return report, nil
	}
	logger := m.logger.With(zap.String("cycle_id", report.CycleID))

	bySymbol := make(map[string][]domain.Alert)
	for _, alert := range alerts {
		bySymbol[alert.Symbol] = append(bySymbol[alert.Symbol], alert)
	}
	symbols := make([]string, 0, len(bySymbol))
	for symbol := range bySymbol {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	report.Symbols = len(symbols)

	// Every alert on a symbol is judged against the same quote.
	quotes := m.prices.GetOrFetch(ctx, symbols, m.cfg.Freshness)
	report.Resolved = len(quotes)

	evaluated := make(map[uint]domain.Alert, len(alerts))
	for _, symbol := range symbols {
		symbolAlerts := bySymbol[symbol]
		quote, ok := quotes[symbol]
		if !ok {
			report.Skipped += len(symbolAlerts)
			alertsSkippedTotal.Add(float64(len(symbolAlerts)))
			logger.Debug("no price, alerts deferred", zap.String("symbol", symbol), zap.Int("alerts", len(symbolAlerts)))
			continue
		}
		for _, alert := range symbolAlerts {
			evaluated[alert.ID] = alert
			report.Evaluations = append(report.Evaluations, domain.Evaluation{
				AlertID:   alert.ID,
				Triggered: Evaluate(quote.Price, alert.TargetPrice, alert.Direction),
			})
		}
	}
	report.Evaluated = len(report.Evaluations)

	if err := ctx.Err(); err != nil {
		return report, err
	}

	// Commits are never abandoned half-way on stop.
	commitCtx := context.WithoutCancel(ctx)
	for _, evaluation := range report.Evaluations {
		if !evaluation.Triggered {
			continue
		}
		at := m.now().UTC()
		applied, err := m.store.MarkTriggered(commitCtx, evaluation.AlertID, at)
		if err != nil {
			return report, fmt.Errorf("mark alert %d triggered: %w", evaluation.AlertID, err)
		}
		if !applied {
			report.Conflicts++
			alertsConflictTotal.Inc()
			logger.Info("alert no longer active, trigger skipped", zap.Uint("alert_id", evaluation.AlertID))
			continue
		}

		report.Triggered++
		alertsTriggeredTotal.Inc()
		triggered := evaluated[evaluation.AlertID]
		quote := quotes[triggered.Symbol]
		triggered.Active = false
		triggered.TriggeredAt = &at
		logger.Info(
			"alert triggered",
			zap.Uint("alert_id", triggered.ID),
			zap.Uint("user_id", triggered.UserID),
			zap.String("symbol", triggered.Symbol),
			zap.String("direction", string(triggered.Direction)),
			zap.String("target_price", triggered.TargetPrice.String()),
			zap.String("price", quote.Price.String()),
		)
		m.notify(commitCtx, logger, triggered, quote)
	}

	return report, nil
}

func (m *Monitor) notify(ctx context.Context, logger *zap.Logger, alert domain.Alert, quote domain.Quote) {
	for _, notifier := range m.notifiers {
		if err := notifier.AlertTriggered(ctx, alert, quote); err != nil {
			logger.Warn("failed to deliver trigger notification", zap.Uint("alert_id", alert.ID), zap.Error(err))
		}
	}
}

func (m *Monitor) runLogged(ctx context.Context) {
	start := time.Now()
	report, err := m.RunCycle(ctx)
	monitorCycleDuration.Observe(time.Since(start).Seconds())

	fields := []zap.Field{
		zap.String("cycle_id", report.CycleID),
		zap.Int("active", report.Active),
		zap.Int("symbols", report.Symbols),
		zap.Int("resolved", report.Resolved),
		zap.Int("triggered", report.Triggered),
		zap.Int("conflicts", report.Conflicts),
		zap.Int("skipped", report.Skipped),
		zap.Duration("duration", time.Since(start)),
	}
	switch {
	case err == nil:
		monitorCyclesTotal.WithLabelValues("ok").Inc()
		m.logger.Debug("cycle complete", fields...)
	case errors.Is(err, context.Canceled):
		monitorCyclesTotal.WithLabelValues("interrupted").Inc()
		m.logger.Info("cycle interrupted", fields...)
	default:
		monitorCyclesTotal.WithLabelValues("error").Inc()
		m.logger.Error("cycle failed", append(fields, zap.Error(err))...)
	}
}
