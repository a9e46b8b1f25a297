package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MessagesIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "promo_messages_ingested_total",
		Help: "The total number of ingested messages",
	}, []string{"source"})

	MessagesDiscarded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "promo_messages_discarded_total",
		Help: "Messages that produced no offer, by reason",
	}, []string{"reason"})

	OffersMatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "promo_offers_matched_total",
		Help: "Structured offers extracted from messages",
	}, []string{"product"})

	AlertsEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "promo_alerts_emitted_total",
		Help: "Alerts emitted by the decision engine, by emit reason",
	}, []string{"product", "reason"})

	AlertsSuppressed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "promo_alerts_suppressed_total",
		Help: "Offers suppressed by the cooldown policy",
	}, []string{"product"})

	SeenDuplicates = promauto.NewCounter(prometheus.CounterOpts{
		Name: "promo_seen_duplicates_total",
		Help: "Messages dropped by the (chat, message) duplicate guard",
	})

	TrackedKeys = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "promo_tracked_keys",
		Help: "Number of (product, brand, source) keys currently tracked",
	})

	DispatchFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "promo_dispatch_failures_total",
		Help: "Alert deliveries that failed after retries",
	})

	DispatchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "promo_dispatch_duration_seconds",
		Help:    "Duration of alert deliveries including retries",
		Buckets: prometheus.DefBuckets,
	})
)
