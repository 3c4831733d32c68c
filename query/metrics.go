package query

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("github.com/o0olele/quadnav/query")

var (
	// pathRequestsTotal counts FindPath calls by result
	pathRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quadnav_path_requests_total",
		Help: "Total path requests by result",
	}, []string{"result"})

	// pathCacheTotal counts cache lookups by outcome
	pathCacheTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quadnav_path_cache_total",
		Help: "Path cache lookups by outcome",
	}, []string{"outcome"})

	// pathSearchDuration tracks search latency on cache misses
	pathSearchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "quadnav_path_search_duration_seconds",
		Help:    "Path search duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.00001, 2, 16), // 10µs to ~330ms
	})

	// pathExpandedNodes tracks how many nodes a search closed
	pathExpandedNodes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "quadnav_path_expanded_nodes",
		Help:    "Number of nodes expanded per search",
		Buckets: []float64{1, 10, 100, 1000, 10000, 100000},
	})
)

const (
	resultFound      = "found"
	resultNotFound   = "not_found"
	resultUnresolved = "unresolved"

	outcomeHit       = "hit"
	outcomeMiss      = "miss"
	outcomeEviction  = "eviction"
	outcomeShared    = "shared"
	outcomeDiscarded = "discarded"
)
