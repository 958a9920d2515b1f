// Package metrics defines the prometheus collectors for the checkout
// platform and the handler that exposes them.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"beneplan/internal/types"
)

// Registry holds every collector the platform records into. One instance is
// created at startup and shared across the HTTP chassis and the domain
// components.
type Registry struct {
	registry *prometheus.Registry

	httpDuration *prometheus.HistogramVec
	httpRequests *prometheus.CounterVec

	checkoutOutcomes *prometheus.CounterVec
	webhookEvents    *prometheus.CounterVec
	sweepResults     *prometheus.CounterVec
	catalogSyncOps   *prometheus.CounterVec
}

// NewRegistry creates a Registry with all collectors registered, plus the
// standard Go runtime and process collectors.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	r := &Registry{
		registry: reg,
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency by method, path, and status.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP request count by method, path, and status.",
		}, []string{"method", "path", "status"}),
		checkoutOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "checkout_outcomes_total",
			Help: "Checkout completions by payment outcome.",
		}, []string{"outcome"}),
		webhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "webhook_events_total",
			Help: "Inbound payment webhook events by processing result.",
		}, []string{"result"}),
		sweepResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sweep_subscriptions_total",
			Help: "Subscriptions settled by the reconciliation sweep, by result.",
		}, []string{"result"}),
		catalogSyncOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "catalog_sync_ops_total",
			Help: "Plan catalog sync operations by kind.",
		}, []string{"op"}),
	}

	reg.MustRegister(
		r.httpDuration,
		r.httpRequests,
		r.checkoutOutcomes,
		r.webhookEvents,
		r.sweepResults,
		r.catalogSyncOps,
	)
	return r
}

// Handler serves the /metrics endpoint.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// RecordRequest implements the chassis MetricsCollector interface.
func (r *Registry) RecordRequest(method, endpoint, status string, duration time.Duration) {
	labels := prometheus.Labels{"method": method, "path": endpoint, "status": status}
	r.httpDuration.With(labels).Observe(duration.Seconds())
	r.httpRequests.With(labels).Inc()
}

// RecordCheckoutOutcome counts one completed checkout by its payment outcome.
func (r *Registry) RecordCheckoutOutcome(outcome types.PaymentOutcome) {
	r.checkoutOutcomes.WithLabelValues(string(outcome)).Inc()
}

// RecordWebhookEvent counts one inbound webhook by processing result
// (processed, skipped, rejected).
func (r *Registry) RecordWebhookEvent(result string) {
	r.webhookEvents.WithLabelValues(result).Inc()
}

// RecordSweep counts the settled subscriptions of one sweep run.
func (r *Registry) RecordSweep(report *types.SweepReport) {
	r.sweepResults.WithLabelValues("activated").Add(float64(report.Activated))
	r.sweepResults.WithLabelValues("canceled").Add(float64(report.Canceled))
	r.sweepResults.WithLabelValues("still_pending").Add(float64(report.StillPending))
	r.sweepResults.WithLabelValues("error").Add(float64(report.Errors))
}

// RecordCatalogSync counts the write operations of one catalog sync run.
func (r *Registry) RecordCatalogSync(report *types.CatalogSyncReport) {
	r.catalogSyncOps.WithLabelValues("inserted").Add(float64(report.Inserted))
	r.catalogSyncOps.WithLabelValues("updated").Add(float64(report.Updated))
	r.catalogSyncOps.WithLabelValues("deactivated").Add(float64(report.Deactivated))
	r.catalogSyncOps.WithLabelValues("error").Add(float64(report.Errors))
}
