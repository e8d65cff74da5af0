package pricecache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pricewatch_price_cache_hits_total",
		Help: "Symbol lookups served from a fresh cached quote",
	})
	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pricewatch_price_cache_misses_total",
		Help: "Symbol lookups that needed an upstream fetch",
	})
	upstreamFetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pricewatch_price_upstream_fetches_total",
		Help: "Upstream price fetches issued by the cache, by result",
	}, []string{"source", "result"})
	cacheEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pricewatch_price_cache_entries",
		Help: "Quotes currently retained by the cache",
	})
)
