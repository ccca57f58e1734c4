package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	refreshTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cfsub",
		Name:      "refresh_total",
		Help:      "Ranking cycles by outcome.",
	}, []string{"outcome"})

	candidatesGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "cfsub",
		Name:      "candidates",
		Help:      "Candidates persisted by the last successful ranking cycle.",
	})

	probeLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "cfsub",
		Name:      "probe_latency_milliseconds",
		Help:      "TCP connect latency of reachable candidates.",
		Buckets:   []float64{10, 25, 50, 100, 200, 400, 800, 1600},
	})

	probeUnreachable = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "cfsub",
		Name:      "probe_unreachable_total",
		Help:      "Probes that failed or timed out.",
	})

	nodesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cfsub",
		Name:      "subscription_nodes_total",
		Help:      "Subscription entries emitted by scheme and outcome.",
	}, []string{"scheme", "outcome"})
)
