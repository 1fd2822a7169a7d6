package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_widget_http_requests_total",
			Help: "Total number of HTTP requests processed by the chat widget.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chat_widget_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	wsActiveConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_widget_ws_active_connections",
			Help: "Number of active websocket connections.",
		},
	)
	wsEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_widget_ws_events_total",
			Help: "Total number of websocket events.",
		},
		[]string{"event"},
	)
	storeCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_widget_store_calls_total",
			Help: "Store calls issued by live views, by operation and outcome.",
		},
		[]string{"op", "outcome"},
	)
	storeCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chat_widget_store_call_duration_seconds",
			Help:    "Store call latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)
	changeEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_widget_change_events_total",
			Help: "Change events received by live views, by type and disposition.",
		},
		[]string{"type", "disposition"},
	)
	amqpPublishErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_widget_amqp_publish_errors_total",
			Help: "Total number of AMQP publish errors.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		wsActiveConnections,
		wsEventsTotal,
		storeCallsTotal,
		storeCallDuration,
		changeEventsTotal,
		amqpPublishErrorsTotal,
	)
}

func HTTPMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		status := c.Writer.Status()

		httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

func IncWSActive() {
	wsActiveConnections.Inc()
}

func DecWSActive() {
	wsActiveConnections.Dec()
}

func IncWSEvent(event string) {
	wsEventsTotal.WithLabelValues(event).Inc()
}

// ObserveStoreCall records one store call. A nil err counts as "ok".
func ObserveStoreCall(op string, err error, took time.Duration) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	storeCallsTotal.WithLabelValues(op, outcome).Inc()
	storeCallDuration.WithLabelValues(op).Observe(took.Seconds())
}

// IncChangeEvent counts a change event as "applied" or "skipped".
func IncChangeEvent(changeType, disposition string) {
	changeEventsTotal.WithLabelValues(changeType, disposition).Inc()
}

func IncAMQPPublishError() {
	amqpPublishErrorsTotal.Inc()
}
