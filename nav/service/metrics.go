package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
)

const resultError = "error"

var (
	pathQueryTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gridpath_path_queries_total",
		Help: "Total path queries by outcome",
	}, []string{"result"})

	pathQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gridpath_path_query_duration_seconds",
		Help:    "Path query latency",
		Buckets: prometheus.ExponentialBuckets(0.00001, 2, 16), // 10us to ~330ms
	}, []string{"result"})

	pathExpandedNodes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "gridpath_path_expanded_nodes",
		Help:    "Nodes expanded per path query",
		Buckets: prometheus.ExponentialBuckets(1, 4, 10),
	})

	tracer = otel.Tracer("github.com/wricardo/gridpath/nav/service")
)
