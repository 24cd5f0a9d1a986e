package monitoring

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
)

var (
	waitingLine = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "waitroom_line_length",
			Help: "Current waiting line length per scope",
		},
		[]string{"scope"},
	)

	liveViewers = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "waitroom_live_viewers",
			Help: "Members with a fresh heartbeat per scope",
		},
		[]string{"scope"},
	)

	queueOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waitroom_operations_total",
			Help: "Total waiting-room operations",
		},
		[]string{"operation", "scope", "status"},
	)

	holdDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "waitroom_hold_duration_seconds",
			Help:    "How long holders kept the seat-selection slot",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		},
		[]string{"scope"},
	)
)

type Monitor struct{}

func NewMonitor() *Monitor {
	return &Monitor{}
}

// Track a waiting-room operation outcome.
func (m *Monitor) TrackQueueOperation(operation, scope, status string) {
	queueOperations.WithLabelValues(operation, scope, status).Inc()
}

// Track how long a completed holder kept the slot.
func (m *Monitor) TrackHoldDuration(scope string, duration time.Duration) {
	holdDuration.WithLabelValues(scope).Observe(duration.Seconds())
}

// StartCollector periodically scans the store and refreshes the line
// length and live viewer gauges for every scope. Runs until ctx is done.
func (m *Monitor) StartCollector(ctx context.Context, client *redis.Client, presenceStale time.Duration) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.collect(ctx, client, presenceStale)
		case <-ctx.Done():
			return
		}
	}
}

func (m *Monitor) collect(ctx context.Context, client *redis.Client, presenceStale time.Duration) {
	lineKeys, _ := client.Keys(ctx, "wait:line:*").Result()
	for _, key := range lineKeys {
		scope := strings.TrimPrefix(key, "wait:line:")
		length, _ := client.ZCard(ctx, key).Result()
		waitingLine.WithLabelValues(scope).Set(float64(length))
	}

	liveSince := time.Now().Add(-presenceStale).UnixMilli()
	presenceKeys, _ := client.Keys(ctx, "wait:presence:*").Result()
	for _, key := range presenceKeys {
		scope := strings.TrimPrefix(key, "wait:presence:")
		live, _ := client.ZCount(ctx, key, strconv.FormatInt(liveSince, 10), "+inf").Result()
		liveViewers.WithLabelValues(scope).Set(float64(live))
	}
}
