// Package metrics provides Prometheus instrumentation for the platform.
package metrics

import (
	"context"
	"database/sql"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wagervault",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, path pattern, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes request latency by method and path.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "wagervault",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// DiceGamesTotal counts dice game lifecycle events.
	DiceGamesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wagervault",
			Name:      "dice_games_total",
			Help:      "Total dice game operations by kind (created, started, completed, cancelled).",
		},
		[]string{"kind"},
	)

	// BetsTotal counts arbitrated bet lifecycle events.
	BetsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wagervault",
			Name:      "bets_total",
			Help:      "Total arbitrated bet operations by kind (created, activated, decided, cancelled).",
		},
		[]string{"kind"},
	)

	// SettlementsTotal counts completed settlements by wager type.
	SettlementsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wagervault",
			Name:      "settlements_total",
			Help:      "Total settled wagers by type (dice, two_party, multi_party).",
		},
		[]string{"type"},
	)

	// EscrowVolume accumulates credits moved into escrow.
	EscrowVolume = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wagervault",
			Name:      "escrow_volume_credits_total",
			Help:      "Total credits locked into escrow by wager type.",
		},
		[]string{"type"},
	)

	// PlatformFeesTotal accumulates platform fees retained at settlement.
	PlatformFeesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "wagervault",
		Name:      "platform_fees_credits_total",
		Help:      "Total platform fees retained, in credits.",
	})

	// ArbiterDecisionsTotal counts recorded arbiter rulings.
	ArbiterDecisionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "wagervault",
		Name:      "arbiter_decisions_total",
		Help:      "Total arbiter rulings recorded.",
	})

	// WebhookDeliveriesTotal counts webhook delivery attempts by result.
	WebhookDeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wagervault",
			Name:      "webhook_deliveries_total",
			Help:      "Total webhook deliveries by result.",
		},
		[]string{"result"},
	)

	// ActiveWebSocketClients tracks connected WebSocket clients.
	ActiveWebSocketClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "wagervault",
			Name:      "active_websocket_clients",
			Help:      "Number of currently connected WebSocket clients.",
		},
	)

	// SettlementDuration observes time from activation to settlement.
	SettlementDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "wagervault",
		Name:      "settlement_duration_seconds",
		Help:      "Time from session activation to settlement in seconds.",
		Buckets:   []float64{10, 30, 60, 120, 300, 600, 1800, 3600, 86400},
	})

	// DBOpenConnections tracks open database connections.
	DBOpenConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "wagervault", Name: "db_open_connections",
		Help: "Number of open database connections.",
	})
	// DBIdleConnections tracks idle database connections.
	DBIdleConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "wagervault", Name: "db_idle_connections",
		Help: "Number of idle database connections.",
	})
	// DBInUseConnections tracks in-use database connections.
	DBInUseConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "wagervault", Name: "db_in_use_connections",
		Help: "Number of in-use database connections.",
	})
	// GoroutineCount tracks the current number of goroutines.
	GoroutineCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "wagervault", Name: "goroutines",
		Help: "Current number of goroutines.",
	})
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		DiceGamesTotal,
		BetsTotal,
		SettlementsTotal,
		EscrowVolume,
		PlatformFeesTotal,
		ArbiterDecisionsTotal,
		WebhookDeliveriesTotal,
		ActiveWebSocketClients,
		SettlementDuration,
		DBOpenConnections,
		DBIdleConnections,
		DBInUseConnections,
		GoroutineCount,
	)
}

// StartDBStatsCollector periodically samples sql.DBStats and runtime goroutine
// count into Prometheus gauges. Call in a goroutine; exits when ctx is done.
func StartDBStatsCollector(ctx context.Context, db *sql.DB, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := db.Stats()
			DBOpenConnections.Set(float64(stats.OpenConnections))
			DBIdleConnections.Set(float64(stats.Idle))
			DBInUseConnections.Set(float64(stats.InUse))
			GoroutineCount.Set(float64(runtime.NumGoroutine()))
		}
	}
}

// Middleware returns a gin middleware that records request metrics.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		timer := prometheus.NewTimer(HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(), // route pattern, not raw path (avoids cardinality explosion)
		))

		c.Next()

		timer.ObserveDuration()
		HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			statusBucket(c.Writer.Status()),
		).Inc()
	}
}

// Handler returns the Prometheus metrics HTTP handler for the /metrics endpoint.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// statusBucket groups HTTP status codes into buckets (2xx, 3xx, 4xx, 5xx).
func statusBucket(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
