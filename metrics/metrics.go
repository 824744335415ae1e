package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// CollectorConfig holds configuration for the metrics Collector.
type CollectorConfig struct {
	Namespace      string   `yaml:"namespace" json:"namespace"`
	Subsystem      string   `yaml:"subsystem" json:"subsystem"`
	MetricsPath    string   `yaml:"metricsPath" json:"metricsPath"`
	EnabledMetrics []string `yaml:"enabledMetrics" json:"enabledMetrics"`
}

// DefaultCollectorConfig returns the default configuration.
func DefaultCollectorConfig() CollectorConfig {
	return CollectorConfig{
		Namespace:      "console",
		Subsystem:      "billing",
		MetricsPath:    "/metrics",
		EnabledMetrics: []string{"webhook", "sync", "ledger", "alerts", "notify", "http"},
	}
}

func metricsEnabled(enabledList []string, name string) bool {
	for _, e := range enabledList {
		if e == name {
			return true
		}
	}
	return false
}

// Collector wraps Prometheus metrics for the billing core.
// It owns its registry so tests and embedded uses never collide with the
// default global registry.
type Collector struct {
	name     string
	config   CollectorConfig
	registry *prometheus.Registry

	WebhookEvents          *prometheus.CounterVec
	WebhookUnverified      prometheus.Counter
	SubscriptionSyncs      *prometheus.CounterVec
	LedgerEntries          *prometheus.CounterVec
	AlertsTriggered        *prometheus.CounterVec
	AlertSweepDuration     prometheus.Histogram
	NotificationDeliveries *prometheus.CounterVec
	HTTPRequestsTotal      *prometheus.CounterVec
	HTTPRequestDuration    *prometheus.HistogramVec
}

// NewCollector creates a Collector with its own Prometheus registry.
func NewCollector(name string) *Collector {
	return NewCollectorWithConfig(name, DefaultCollectorConfig())
}

// NewCollectorWithConfig creates a Collector with the given config.
func NewCollectorWithConfig(name string, cfg CollectorConfig) *Collector {
	reg := prometheus.NewRegistry()
	enabled := cfg.EnabledMetrics
	ns := cfg.Namespace
	sub := cfg.Subsystem

	c := &Collector{
		name:     name,
		config:   cfg,
		registry: reg,
	}

	if metricsEnabled(enabled, "webhook") {
		c.WebhookEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: sub,
			Name:      "webhook_events_total",
			Help:      "Total number of processor webhook events received",
		}, []string{"event_type", "outcome"})

		c.WebhookUnverified = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: sub,
			Name:      "webhook_unverified_total",
			Help:      "Total number of webhook payloads accepted without signature verification",
		})

		reg.MustRegister(c.WebhookEvents)
		reg.MustRegister(c.WebhookUnverified)
	}

	if metricsEnabled(enabled, "sync") {
		c.SubscriptionSyncs = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: sub,
			Name:      "subscription_syncs_total",
			Help:      "Total number of subscription state synchronizations",
		}, []string{"source", "status"})

		reg.MustRegister(c.SubscriptionSyncs)
	}

	if metricsEnabled(enabled, "ledger") {
		c.LedgerEntries = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: sub,
			Name:      "ledger_entries_total",
			Help:      "Total number of credit ledger entries appended",
		}, []string{"entry_type"})

		reg.MustRegister(c.LedgerEntries)
	}

	if metricsEnabled(enabled, "alerts") {
		c.AlertsTriggered = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: sub,
			Name:      "alerts_triggered_total",
			Help:      "Total number of budget alerts triggered",
		}, []string{"channel"})

		c.AlertSweepDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: ns,
			Subsystem: sub,
			Name:      "alert_sweep_duration_seconds",
			Help:      "Duration of periodic alert sweeps in seconds",
			Buckets:   prometheus.DefBuckets,
		})

		reg.MustRegister(c.AlertsTriggered)
		reg.MustRegister(c.AlertSweepDuration)
	}

	if metricsEnabled(enabled, "notify") {
		c.NotificationDeliveries = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: sub,
			Name:      "notification_deliveries_total",
			Help:      "Total number of alert notification delivery attempts",
		}, []string{"channel", "outcome"})

		reg.MustRegister(c.NotificationDeliveries)
	}

	if metricsEnabled(enabled, "http") {
		c.HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: sub,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "path", "status_code"})

		c.HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Subsystem: sub,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"})

		reg.MustRegister(c.HTTPRequestsTotal)
		reg.MustRegister(c.HTTPRequestDuration)
	}

	return c
}

// MetricsPath returns the configured metrics endpoint path.
func (c *Collector) MetricsPath() string { return c.config.MetricsPath }

// Name returns the collector name.
func (c *Collector) Name() string {
	return c.name
}

// Handler returns an HTTP handler that serves Prometheus metrics.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// RecordWebhookEvent increments the webhook event counter.
func (c *Collector) RecordWebhookEvent(eventType, outcome string) {
	if c.WebhookEvents != nil {
		c.WebhookEvents.WithLabelValues(eventType, outcome).Inc()
	}
}

// RecordWebhookUnverified counts a webhook payload accepted without a
// signature check.
func (c *Collector) RecordWebhookUnverified() {
	if c.WebhookUnverified != nil {
		c.WebhookUnverified.Inc()
	}
}

// RecordSubscriptionSync increments the subscription sync counter.
func (c *Collector) RecordSubscriptionSync(source, status string) {
	if c.SubscriptionSyncs != nil {
		c.SubscriptionSyncs.WithLabelValues(source, status).Inc()
	}
}

// RecordLedgerEntry increments the ledger entry counter.
func (c *Collector) RecordLedgerEntry(entryType string) {
	if c.LedgerEntries != nil {
		c.LedgerEntries.WithLabelValues(entryType).Inc()
	}
}

// RecordAlertTriggered increments the triggered alert counter.
func (c *Collector) RecordAlertTriggered(channel string) {
	if c.AlertsTriggered != nil {
		c.AlertsTriggered.WithLabelValues(channel).Inc()
	}
}

// RecordAlertSweep records the duration of a periodic alert sweep.
func (c *Collector) RecordAlertSweep(duration time.Duration) {
	if c.AlertSweepDuration != nil {
		c.AlertSweepDuration.Observe(duration.Seconds())
	}
}

// RecordNotificationDelivery increments the notification delivery counter.
func (c *Collector) RecordNotificationDelivery(channel, outcome string) {
	if c.NotificationDeliveries != nil {
		c.NotificationDeliveries.WithLabelValues(channel, outcome).Inc()
	}
}

// RecordHTTPRequest records an HTTP request metric.
func (c *Collector) RecordHTTPRequest(method, path string, statusCode int, duration time.Duration) {
	if c.HTTPRequestsTotal != nil {
		c.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(statusCode)).Inc()
	}
	if c.HTTPRequestDuration != nil {
		c.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	}
}
