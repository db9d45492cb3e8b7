// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package metrics provides Prometheus metrics for lookups.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "termsource"

// Recorder holds the lookup metrics. A nil *Recorder records nothing.
type Recorder struct {
	// ProviderCalls counts adapter calls by outcome ("ok" or an error kind).
	ProviderCalls *prometheus.CounterVec

	// ProviderDuration measures adapter call duration.
	ProviderDuration *prometheus.HistogramVec

	// CacheEvents counts cache reads by state and background refreshes.
	CacheEvents *prometheus.CounterVec

	// Lookups counts lookups; degraded ones carry degraded="true".
	Lookups *prometheus.CounterVec

	// LookupDuration measures end-to-end lookup duration.
	LookupDuration prometheus.Histogram
}

// New registers the metrics on reg.
func New(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		ProviderCalls: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "provider_calls_total",
				Help:      "Total number of provider adapter calls",
			},
			[]string{"provider", "outcome"},
		),
		ProviderDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "provider_call_duration_seconds",
				Help:      "Duration of provider adapter calls in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"provider"},
		),
		CacheEvents: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_events_total",
				Help:      "Cache reads by state and background refreshes by outcome",
			},
			[]string{"provider", "event"},
		),
		Lookups: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "lookups_total",
				Help:      "Total number of lookups",
			},
			[]string{"degraded"},
		),
		LookupDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "lookup_duration_seconds",
				Help:      "Duration of lookups in seconds",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
		),
	}
}

// RecordProviderCall records one adapter call.
func (r *Recorder) RecordProviderCall(provider, outcome string, d time.Duration) {
	if r == nil {
		return
	}
	r.ProviderCalls.WithLabelValues(provider, outcome).Inc()
	r.ProviderDuration.WithLabelValues(provider).Observe(d.Seconds())
}

// RecordCache records a cache event such as "fresh", "stale", "miss",
// "refresh_ok" or "refresh_failed".
func (r *Recorder) RecordCache(provider, event string) {
	if r == nil {
		return
	}
	r.CacheEvents.WithLabelValues(provider, event).Inc()
}

// RecordLookup records a finished lookup.
func (r *Recorder) RecordLookup(degraded bool, d time.Duration) {
	if r == nil {
		return
	}
	label := "false"
	if degraded {
		label = "true"
	}
	r.Lookups.WithLabelValues(label).Inc()
	r.LookupDuration.Observe(d.Seconds())
}
