package generation

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	aiRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webintel_ai_requests_total",
			Help: "Total number of requests to the AI API.",
		},
		[]string{"model", "status"},
	)
	aiRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "webintel_ai_request_duration_seconds",
			Help:    "Histogram of AI API request durations.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"model"},
	)
	aiPromptTokens = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "webintel_ai_prompt_tokens",
			Help:    "Histogram of prompt token counts.",
			Buckets: prometheus.LinearBuckets(500, 500, 20),
		},
		[]string{"model"},
	)
	aiCompletionTokens = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "webintel_ai_completion_tokens",
			Help:    "Histogram of completion token counts.",
			Buckets: prometheus.LinearBuckets(200, 200, 20),
		},
		[]string{"model"},
	)
	routingDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webintel_routing_decisions_total",
			Help: "Total number of routing decisions, partitioned by tier and truncation.",
		},
		[]string{"tier", "truncated"},
	)
	tierEscalations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webintel_tier_escalations_total",
			Help: "Total number of tier escalations, partitioned by reason.",
		},
		[]string{"from_tier", "reason"},
	)
	itemsExtracted = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "webintel_items_extracted",
			Help:    "Histogram of Q&A item counts per successful generation.",
			Buckets: prometheus.LinearBuckets(10, 10, 20),
		},
	)
)

func observeRequest(modelName, status string, duration time.Duration) {
	aiRequestsTotal.WithLabelValues(modelName, status).Inc()
	aiRequestDuration.WithLabelValues(modelName).Observe(duration.Seconds())
}

func observeUsage(modelName string, promptTokens, completionTokens int) {
	aiPromptTokens.WithLabelValues(modelName).Observe(float64(promptTokens))
	aiCompletionTokens.WithLabelValues(modelName).Observe(float64(completionTokens))
}

func observeRouting(tier string, truncated bool) {
	label := "false"
	if truncated {
		label = "true"
	}
	routingDecisions.WithLabelValues(tier, label).Inc()
}

func observeEscalation(fromTier, reason string) {
	tierEscalations.WithLabelValues(fromTier, reason).Inc()
}

func observeItems(count int) {
	itemsExtracted.Observe(float64(count))
}
