package usecase

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	monitorCyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pricewatch_monitor_cycles_total",
		Help: "Monitoring cycles by outcome",
	}, []string{"outcome"})
	monitorCycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pricewatch_monitor_cycle_duration_seconds",
		Help:    "Wall time of one monitoring cycle",
		Buckets: prometheus.DefBuckets,
	})
	alertsTriggeredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pricewatch_alerts_triggered_total",
		Help: "Alerts transitioned to triggered",
	})
	alertsConflictTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pricewatch_alerts_trigger_conflicts_total",
		Help: "Trigger intents rejected because the alert was no longer active",
	})
	alertsSkippedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pricewatch_alerts_skipped_total",
		Help: "Alert evaluations skipped because no price was available",
	})
)
