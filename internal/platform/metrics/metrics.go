// Copyright (c) 2026 OpenG7. All rights reserved.

/*
Package metrics declares the platform's Prometheus collectors.

Collectors are registered once at package init through promauto on the
default registry; the /metrics endpoint exposes them via [Handler]. Domain
packages record observations through the exported helpers instead of holding
collector references themselves.
*/
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// # Collectors

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "openg7_http_requests_total",
		Help: "HTTP requests by method, route pattern, and status class",
	}, []string{"method", "route", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "openg7_http_request_duration_seconds",
		Help:    "HTTP request latency in seconds",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~16s
	}, []string{"method", "route"})

	streamClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "openg7_feed_stream_clients",
		Help: "Currently connected feed stream (SSE) clients",
	})

	streamBroadcastsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "openg7_feed_stream_broadcasts_total",
		Help: "Feed events broadcast to stream clients",
	})

	alertDispatchFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "openg7_alert_dispatch_failures_total",
		Help: "Alert delivery failures by channel",
	}, []string{"channel"})

	sessionValidations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "openg7_session_validations_total",
		Help: "Session validation outcomes by result",
	}, []string{"result"})
)

// # Recording Helpers

// ObserveHTTPRequest records one completed HTTP request.
func ObserveHTTPRequest(method, route string, status int, elapsed time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, statusClass(status)).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// StreamClientConnected adjusts the connected-clients gauge by delta.
func StreamClientConnected(delta int) {
	streamClients.Add(float64(delta))
}

// StreamBroadcast counts one broadcast sweep.
func StreamBroadcast() {
	streamBroadcastsTotal.Inc()
}

// AlertDispatchFailure counts one delivery failure on the given channel.
func AlertDispatchFailure(channel string) {
	alertDispatchFailures.WithLabelValues(channel).Inc()
}

// SessionValidation counts one session validation outcome ("valid" or the
// rejection reason).
func SessionValidation(result string) {
	sessionValidations.WithLabelValues(result).Inc()
}

// Handler returns the /metrics scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
