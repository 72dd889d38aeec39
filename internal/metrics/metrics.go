// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// MessagesSent counts committed direct messages.
	MessagesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "social_messages_sent_total",
		Help: "Total direct messages persisted",
	})

	// MessagesMarkedRead counts messages flipped from unread to read.
	MessagesMarkedRead = promauto.NewCounter(prometheus.CounterOpts{
		Name: "social_messages_marked_read_total",
		Help: "Total messages marked as read",
	})

	// FriendLinksRepaired counts reconcile fixes by kind (reverse_added, dangling_pruned).
	FriendLinksRepaired = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "social_friend_links_repaired_total",
		Help: "Friend links repaired by the reconcile pass",
	}, []string{"kind"})

	// ActivityRecords counts server-side activity records by sink (kafka, db, skipped, failed).
	ActivityRecords = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "social_activity_records_total",
		Help: "User activity records by destination",
	}, []string{"sink"})

	// KafkaDeliveries counts producer delivery reports by topic and result (ok, failed, timeout).
	KafkaDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "social_kafka_deliveries_total",
		Help: "Kafka produce attempts by delivery result",
	}, []string{"topic", "result"})

	// KafkaConsumed counts consumed records by topic and result (committed, retried).
	KafkaConsumed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "social_kafka_consumed_total",
		Help: "Kafka records handled by the consumer",
	}, []string{"topic", "result"})

	// FeedSnapshotDuration tracks how long it takes to rebuild a feed snapshot.
	FeedSnapshotDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "social_feed_snapshot_duration_seconds",
		Help:    "Time to load one live feed snapshot",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12), // 0.5ms to ~1s
	})

	// LiveFeeds is the number of open message feeds.
	LiveFeeds = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "social_live_feeds",
		Help: "Currently open live message feeds",
	})
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
