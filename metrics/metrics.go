// Package metrics declares the prometheus collectors of the marketplace.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "farmgate"

var (
	HTTPRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "http", Name: "requests_total",
		Help: "HTTP requests by method, route and status.",
	}, []string{"method", "route", "status"})

	HTTPDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace, Subsystem: "http", Name: "request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	OrdersPlaced = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "orders", Name: "placed_total",
		Help: "Orders created, by payment method.",
	}, []string{"method"})

	StockOps = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "stock", Name: "operations_total",
		Help: "Stock ledger operations by kind and outcome.",
	}, []string{"op", "outcome"})

	WebhookEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "webhooks", Name: "events_total",
		Help: "Provider webhook events by provider and outcome.",
	}, []string{"provider", "outcome"})

	PaymentIntents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "payments", Name: "intents_total",
		Help: "Payment intent creations by provider and outcome.",
	}, []string{"provider", "outcome"})

	Deliveries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "delivery", Name: "transitions_total",
		Help: "Delivery lifecycle transitions by status.",
	}, []string{"status"})
)

func init() {
	prometheus.MustRegister(HTTPRequests, HTTPDuration, OrdersPlaced, StockOps, WebhookEvents, PaymentIntents, Deliveries)
}

// Handler serves the default registry.
func Handler() http.Handler { return promhttp.Handler() }
