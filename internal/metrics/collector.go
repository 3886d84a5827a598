package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/technosupport/kindyguard/internal/coordinator"
	"github.com/technosupport/kindyguard/internal/feed"
)

// Collector owns a private registry and implements coordinator.Recorder.
type Collector struct {
	registry *prometheus.Registry

	alertsRaised     *prometheus.CounterVec
	alertsSuppressed prometheus.Counter
	alertsDismissed  prometheus.Counter

	feedEvents   *prometheus.CounterVec
	feedRejected *prometheus.CounterVec

	overrideActive    prometheus.Gauge
	overrideRemaining prometheus.Gauge

	activeToasts     prometheus.Gauge
	stateSubscribers prometheus.Gauge

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{registry: reg}

	c.alertsRaised = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "kindyguard_alerts_raised_total",
		Help: "Alerts that entered the active slot, by level",
	}, []string{"level"})
	reg.MustRegister(c.alertsRaised)

	c.alertsSuppressed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "kindyguard_alerts_suppressed_total",
		Help: "High alerts downgraded to log-only by the override window",
	})
	reg.MustRegister(c.alertsSuppressed)

	c.alertsDismissed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "kindyguard_alerts_dismissed_total",
		Help: "Alerts explicitly dismissed from the active slot",
	})
	reg.MustRegister(c.alertsDismissed)

	c.feedEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "kindyguard_feed_events_total",
		Help: "Detection events applied to the coordinator, by type",
	}, []string{"type"})
	reg.MustRegister(c.feedEvents)

	c.feedRejected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "kindyguard_feed_rejected_total",
		Help: "Feed payloads dropped before the coordinator, by reason",
	}, []string{"reason"})
	reg.MustRegister(c.feedRejected)

	c.overrideActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "kindyguard_override_active",
		Help: "1 while an override window is open",
	})
	reg.MustRegister(c.overrideActive)

	c.overrideRemaining = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "kindyguard_override_remaining_minutes",
		Help: "Minutes left on the open override window",
	})
	reg.MustRegister(c.overrideRemaining)

	c.activeToasts = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "kindyguard_active_toasts",
		Help: "Toasts currently queued",
	})
	reg.MustRegister(c.activeToasts)

	c.stateSubscribers = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "kindyguard_state_subscribers",
		Help: "Connected snapshot subscribers",
	})
	reg.MustRegister(c.stateSubscribers)

	c.httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "kindyguard_http_requests_total",
		Help: "HTTP requests, by method, route and status",
	}, []string{"method", "route", "status"})
	reg.MustRegister(c.httpRequests)

	c.httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "kindyguard_http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})
	reg.MustRegister(c.httpDuration)

	return c
}

// Handler exposes the registry at /metrics.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// --- coordinator.Recorder ---

func (c *Collector) AlertRaised(level coordinator.AlertLevel) {
	c.alertsRaised.WithLabelValues(string(level)).Inc()
}

func (c *Collector) AlertSuppressed() { c.alertsSuppressed.Inc() }
func (c *Collector) AlertDismissed()  { c.alertsDismissed.Inc() }

func (c *Collector) OverrideState(active bool, remainingMinutes int) {
	if active {
		c.overrideActive.Set(1)
	} else {
		c.overrideActive.Set(0)
	}
	c.overrideRemaining.Set(float64(remainingMinutes))
}

func (c *Collector) FeedOutcome(eventType feed.EventType) {
	c.feedEvents.WithLabelValues(string(eventType)).Inc()
}

func (c *Collector) ToastCount(n int)      { c.activeToasts.Set(float64(n)) }
func (c *Collector) SubscriberCount(n int) { c.stateSubscribers.Set(float64(n)) }

// FeedRejected is called by the feed subscriber, outside the Recorder interface.
func (c *Collector) FeedRejected(reason string) {
	c.feedRejected.WithLabelValues(reason).Inc()
}

// HTTPRequest records one served request.
func (c *Collector) HTTPRequest(method, route, status string, seconds float64) {
	c.httpRequests.WithLabelValues(method, route, status).Inc()
	c.httpDuration.WithLabelValues(method, route).Observe(seconds)
}
