package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SocialLinkAttempts counts link attempts by provider and outcome (linked|conflict|invalid_provider|error).
	SocialLinkAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "regprofile_social_link_attempts_total",
			Help: "Total number of social profile link attempts",
		},
		[]string{"provider", "outcome"},
	)

	// SocialLinkRaceLosses counts link attempts rejected by the storage uniqueness constraint.
	SocialLinkRaceLosses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "regprofile_social_link_race_losses_total",
			Help: "Link attempts that passed the pre-check but lost the race at the storage layer",
		},
		[]string{"provider"},
	)

	// OAuthExchanges counts provider exchanges by stage result (ok|token_failed|profile_failed).
	OAuthExchanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "regprofile_oauth_exchanges_total",
			Help: "Total number of OAuth code exchanges",
		},
		[]string{"provider", "result"},
	)

	// DraftOperations counts draft store calls by operation and result.
	DraftOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "regprofile_draft_operations_total",
			Help: "Total number of draft store operations",
		},
		[]string{"operation", "result"},
	)

	// DraftsPurged counts rows removed by the maintenance sweep.
	DraftsPurged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "regprofile_drafts_purged_total",
			Help: "Expired or applied drafts physically removed by the sweep",
		},
	)

	// APILatency measures HTTP request latencies per route group and route template.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "regprofile_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "group", "route", "status"},
	)
)
