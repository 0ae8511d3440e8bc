package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Counts how many detection cycles completed, by outcome.
var CyclesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "detector_cycles_total",
	Help: "Total number of detection cycles, labeled by outcome",
}, []string{"outcome"})

// Counts verdicts decided by the deterministic rule layer, by reason.
var RuleVerdicts = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "detector_rule_verdicts_total",
	Help: "Total number of authoritative rule-filter verdicts, labeled by reason",
}, []string{"reason"})

// Observes the classifier decision-function score distribution.
var ClassifierScore = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "detector_classifier_score",
	Help:    "Decision function score per classified document",
	Buckets: prometheus.LinearBuckets(-4, 1, 9),
})

// Measures how long one classification takes, artifact fetch included.
var ClassifierLatency = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "detector_classifier_latency_seconds",
	Help:    "Time taken to load artifacts and score a document",
	Buckets: prometheus.ExponentialBuckets(0.01, 2, 10),
})

// Counts corpus entries removed by the near-duplicate pruner.
var DuplicatesPruned = promauto.NewCounter(prometheus.CounterOpts{
	Name: "detector_duplicates_pruned_total",
	Help: "Total number of near-duplicate corpus entries deleted",
})

// Counts model artifact publishes.
var ArtifactPublishes = promauto.NewCounter(prometheus.CounterOpts{
	Name: "detector_artifact_publishes_total",
	Help: "Total number of model artifact triples published",
})

// Scraper metrics
var (
	ScrapeRequests = promauto.NewCounter(prometheus.CounterOpts{
		Name: "detector_scrape_requests_total",
		Help: "Total number of secondary scrape fetches",
	})

	ScrapeLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "detector_scrape_latency_seconds",
		Help:    "Time taken to fetch a scraped page",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 8),
	})
)

// Counts notification sends that had to be parked on the retry queue.
var NotificationFailures = promauto.NewCounter(prometheus.CounterOpts{
	Name: "detector_notification_failures_total",
	Help: "Total number of notification posts moved to the retry queue",
})

// Current state of circuit breakers (0=closed, 1=half-open, 2=open).
var CircuitBreakerState = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "detector_circuit_breaker_state",
		Help: "Current state of circuit breakers (0=closed, 1=half-open, 2=open)",
	},
	[]string{"service"},
)
