// Package metrics registers the prometheus collectors for the API and importer.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "risingfruit_http_requests_total",
		Help: "HTTP requests by route pattern and status code",
	}, []string{"route", "method", "status"})
	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "risingfruit_http_request_duration_seconds",
		Help:    "HTTP request latency by route pattern",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"route"})
	CacheLookupsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "risingfruit_response_cache_lookups_total",
		Help: "Response cache lookups by result (hit or miss)",
	}, []string{"result"})
	ImportRowsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "risingfruit_import_rows_total",
		Help: "Rows committed by the importer per table",
	}, []string{"table"})
	ImportSkippedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "risingfruit_import_skipped_total",
		Help: "Source values dropped by the importer (row or type_id token)",
	}, []string{"kind"})
)

func init() {
	prometheus.MustRegister(HTTPRequestsTotal)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(CacheLookupsTotal)
	prometheus.MustRegister(ImportRowsTotal)
	prometheus.MustRegister(ImportSkippedTotal)
}

// Handler exposes the default registry for scraping.
func Handler() http.Handler { return promhttp.Handler() }
