// Package metrics holds the Prometheus counters for fetching and caching.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Download results.
const (
	ResultStored    = "stored"
	ResultDuplicate = "duplicate"
	ResultFailed    = "failed"
)

// Page results.
const (
	PageOK    = "ok"
	PageError = "error"
)

// Metrics groups the counters. A nil *Metrics is valid and records nothing.
type Metrics struct {
	FetchPages     *prometheus.CounterVec
	FetchItems     *prometheus.CounterVec
	CacheDownloads *prometheus.CounterVec
}

// New creates the counters and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		FetchPages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tiertrain",
			Name:      "fetch_pages_total",
			Help:      "Listing pages requested, by source and result.",
		}, []string{"source", "result"}),
		FetchItems: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tiertrain",
			Name:      "fetch_items_total",
			Help:      "Content items accepted from listings, by source.",
		}, []string{"source"}),
		CacheDownloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tiertrain",
			Name:      "cache_downloads_total",
			Help:      "Cache download attempts, by result.",
		}, []string{"result"}),
	}
	if reg != nil {
		reg.MustRegister(m.FetchPages, m.FetchItems, m.CacheDownloads)
	}
	return m
}

// Page records one listing page.
func (m *Metrics) Page(source, result string) {
	if m == nil {
		return
	}
	m.FetchPages.WithLabelValues(source, result).Inc()
}

// Items records accepted items.
func (m *Metrics) Items(source string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.FetchItems.WithLabelValues(source).Add(float64(n))
}

// Download records one cache download outcome.
func (m *Metrics) Download(result string) {
	if m == nil {
		return
	}
	m.CacheDownloads.WithLabelValues(result).Inc()
}
