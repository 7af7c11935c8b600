package cachestore

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "shortener",
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Number of resolve lookups served from the cache.",
	})

	cacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "shortener",
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Number of resolve lookups that fell through to the store.",
	})
)
