package build

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	fetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wikigraph_fetches_total",
		Help: "Total number of page fetches dispatched, labelled by outcome.",
	}, []string{"outcome"})

	coalescedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wikigraph_coalesced_requests_total",
		Help: "Total number of requests merged into an already in-flight fetch.",
	})

	inFlightGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "wikigraph_fetches_in_flight",
		Help: "Number of fetches currently executing.",
	})

	queueDepthGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "wikigraph_fetch_queue_depth",
		Help: "Number of fetches waiting for a worker slot.",
	})

	fetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "wikigraph_fetch_duration_seconds",
		Help:    "End-to-end duration of one page fetch and parse.",
		Buckets: prometheus.DefBuckets,
	})

	expansionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wikigraph_expansions_total",
		Help: "Total number of expansion operations, labelled by kind.",
	}, []string{"kind"})
)
