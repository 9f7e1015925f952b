package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics definitions
var (
	GraphUnits = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "guardrail_graph_units_total",
		Help: "Number of units in the most recently built dependency graph.",
	})

	GraphEdges = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "guardrail_graph_edges_total",
		Help: "Number of logical edges in the most recently built dependency graph.",
	})

	RuleEvaluationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "guardrail_rule_evaluations_total",
		Help: "Total number of rule evaluations by rule kind and outcome status.",
	}, []string{"kind", "status"})

	RuleViolationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "guardrail_rule_violations_total",
		Help: "Total number of violations produced by rule kind.",
	}, []string{"kind"})

	RuleEvaluationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "guardrail_rule_evaluation_seconds",
		Help:    "Time spent evaluating a single rule.",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})

	RunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "guardrail_run_seconds",
		Help:    "Time spent on a full check run, from fact ingestion to report.",
		Buckets: prometheus.DefBuckets,
	})

	WatcherEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "guardrail_watcher_events_total",
		Help: "Total number of file system events received by the watcher.",
	})

	PatternCacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "guardrail_pattern_cache_misses_total",
		Help: "Total number of predicate patterns compiled because they were not cached.",
	})
)
