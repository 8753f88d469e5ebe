// Package metrics provides Prometheus metrics for the collection engine.
// Scrape these at /metrics for Grafana dashboards and alerting.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP Metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cardscan_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cardscan_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Collection Store Metrics
	CollectionFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cardscan_collection_fetches_total",
			Help: "Collection fetches by result",
		},
		[]string{"result"}, // "success", "discarded", "error"
	)

	CollectionMutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cardscan_collection_mutations_total",
			Help: "Collection mutations by operation and result",
		},
		[]string{"op", "result"}, // op: "add", "remove"; result: "success", "error"
	)

	CollectionCardsTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cardscan_collection_cards_total",
			Help: "Total number of cards in the collection mirror",
		},
	)

	CollectionValueEUR = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cardscan_collection_value_eur",
			Help: "Total estimated value of the collection mirror in EUR",
		},
	)

	// Catalog Metrics
	CatalogFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cardscan_catalog_fetches_total",
			Help: "Catalog fetches by endpoint and result",
		},
		[]string{"endpoint", "result"}, // endpoint: "priced", "plain", "expansions"
	)

	CatalogCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cardscan_catalog_cache_hits_total",
			Help: "Catalog snapshots served from cache after a failed fetch",
		},
	)

	CatalogCardsTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cardscan_catalog_cards_total",
			Help: "Number of cards in the last loaded catalog snapshot",
		},
	)

	// Sync Worker Metrics
	SyncRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cardscan_sync_runs_total",
			Help: "Background sync runs by result",
		},
		[]string{"result"},
	)

	SyncLastSuccessTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cardscan_sync_last_success_timestamp_seconds",
			Help: "Unix time of the last successful background sync",
		},
	)
)
