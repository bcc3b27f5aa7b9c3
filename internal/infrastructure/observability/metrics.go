package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all application metrics. A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Lifecycle metrics
	LifecycleTransitions *prometheus.CounterVec

	// Outbox metrics
	OutboxEnqueued *prometheus.CounterVec
	OutboxClaimed  *prometheus.CounterVec
	OutboxPurged   prometheus.Counter

	// Publish metrics
	NotificationsPublished *prometheus.CounterVec
	PublishDuration        *prometheus.HistogramVec

	// Scheduler metrics
	TickDuration *prometheus.HistogramVec
	TicksSkipped *prometheus.CounterVec

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Circuit breaker metrics
	CircuitBreakerState    *prometheus.GaugeVec
	CircuitBreakerRequests *prometheus.CounterVec
}

// NewMetrics creates and registers all metrics against the given registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := prometheus.WrapRegistererWith(nil, reg)

	m := &Metrics{
		LifecycleTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "lifecycle_transitions_total",
				Help:      "Event status transitions attempted by the lifecycle scheduler",
			},
			[]string{"to", "result"},
		),
		OutboxEnqueued: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "outbox_enqueued_total",
				Help:      "Outbox tasks written",
			},
			[]string{"type"},
		),
		OutboxClaimed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "outbox_claimed_total",
				Help:      "Outbox tasks claimed for dispatch",
			},
			[]string{"type"},
		),
		OutboxPurged: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "outbox_purged_total",
				Help:      "Outbox tasks deleted by the janitor",
			},
		),
		NotificationsPublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notifications_published_total",
				Help:      "Publish attempts by outcome",
			},
			[]string{"type", "result"},
		),
		PublishDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "publish_duration_seconds",
				Help:      "Time from publish call to broker acknowledgement",
				Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
			},
			[]string{"type"},
		),
		TickDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "scheduler_tick_duration_seconds",
				Help:      "Duration of one scheduler tick",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"job"},
		),
		TicksSkipped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "scheduler_ticks_skipped_total",
				Help:      "Ticks refused because the previous one was still running",
			},
			[]string{"job"},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "circuit_breaker_state",
				Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open)",
			},
			[]string{"name"},
		),
		CircuitBreakerRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "circuit_breaker_requests_total",
				Help:      "Total number of circuit breaker requests",
			},
			[]string{"name", "result"},
		),
	}

	factory.MustRegister(
		m.LifecycleTransitions,
		m.OutboxEnqueued,
		m.OutboxClaimed,
		m.OutboxPurged,
		m.NotificationsPublished,
		m.PublishDuration,
		m.TickDuration,
		m.TicksSkipped,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.CircuitBreakerState,
		m.CircuitBreakerRequests,
	)

	return m
}

func (m *Metrics) ObserveTick(job string, d time.Duration) {
	if m == nil {
		return
	}
	m.TickDuration.WithLabelValues(job).Observe(d.Seconds())
}

func (m *Metrics) TickSkipped(job string) {
	if m == nil {
		return
	}
	m.TicksSkipped.WithLabelValues(job).Inc()
}

func (m *Metrics) Transition(to, result string) {
	if m == nil {
		return
	}
	m.LifecycleTransitions.WithLabelValues(to, result).Inc()
}

func (m *Metrics) Enqueued(taskType string) {
	if m == nil {
		return
	}
	m.OutboxEnqueued.WithLabelValues(taskType).Inc()
}

func (m *Metrics) Claimed(taskType string, n int) {
	if m == nil {
		return
	}
	m.OutboxClaimed.WithLabelValues(taskType).Add(float64(n))
}

func (m *Metrics) Published(taskType, result string, d time.Duration) {
	if m == nil {
		return
	}
	m.NotificationsPublished.WithLabelValues(taskType, result).Inc()
	m.PublishDuration.WithLabelValues(taskType).Observe(d.Seconds())
}

func (m *Metrics) Purged(n int64) {
	if m == nil {
		return
	}
	m.OutboxPurged.Add(float64(n))
}

// ObserveHTTP records one served request under its route pattern.
func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// BreakerState records a gobreaker state as 0=closed, 1=half-open, 2=open.
func (m *Metrics) BreakerState(name string, state int) {
	if m == nil {
		return
	}
	m.CircuitBreakerState.WithLabelValues(name).Set(float64(state))
}

func (m *Metrics) BreakerRequest(name, result string) {
	if m == nil {
		return
	}
	m.CircuitBreakerRequests.WithLabelValues(name, result).Inc()
}
