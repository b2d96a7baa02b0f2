package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	Online         prometheus.Gauge
	QueueEntries   *prometheus.CounterVec
	DrainDuration  prometheus.Histogram
	StockMovements *prometheus.CounterVec
	OrdersTotal    *prometheus.CounterVec
}

// New builds the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"path"},
		),
		Online: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pos_terminal_online",
			Help: "1 while the remote store is reachable",
		}),
		QueueEntries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pos_sync_queue_entries_total",
				Help: "Queue entries by lifecycle event (enqueued, synced, failed, discarded)",
			},
			[]string{"event", "table"},
		),
		DrainDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pos_sync_drain_duration_seconds",
			Help:    "Duration of queue drains",
			Buckets: prometheus.DefBuckets,
		}),
		StockMovements: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pos_stock_movements_total",
				Help: "Stock movements issued, by type, path and outcome",
			},
			[]string{"type", "path", "outcome"},
		),
		OrdersTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pos_orders_total",
				Help: "Order lifecycle transitions",
			},
			[]string{"status", "path"},
		),
	}
	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.Online,
		m.QueueEntries,
		m.DrainDuration,
		m.StockMovements,
		m.OrdersTotal,
	)
	return m
}

// NewNop returns collectors registered on a throwaway registry.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}

func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		duration := time.Since(start)

		path := c.FullPath()
		if path == "" {
			path = "undefined"
		}

		m.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		m.HTTPRequestDuration.WithLabelValues(path).Observe(duration.Seconds())
	}
}

func PathLabel(offline bool) string {
	if offline {
		return "offline"
	}
	return "online"
}
