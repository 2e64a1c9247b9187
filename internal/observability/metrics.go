// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"wildlife-governance/internal/core/domain"
	"wildlife-governance/internal/core/ports"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Governance metrics
	EventsPublished   *prometheus.CounterVec
	DonationsReceived prometheus.Counter
	DonatedAmount     prometheus.Counter
	TokensMinted      prometheus.Counter
	VotesCast         *prometheus.CounterVec
	VotingResolutions *prometheus.CounterVec
	ScreeningResults  *prometheus.CounterVec
	LedgerCorruption  prometheus.Counter

	// HTTP metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates a Metrics instance registered on reg.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "wildlife_dao"
	}
	factory := promauto.With(reg)

	return &Metrics{
		EventsPublished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "published_total",
			Help:      "Total number of governance events delivered by type",
		}, []string{"type"}),
		DonationsReceived: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "exchange",
			Name:      "donations_total",
			Help:      "Total number of donations converted into tokens",
		}),
		DonatedAmount: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "exchange",
			Name:      "donated_amount_total",
			Help:      "Gross currency amount donated",
		}),
		TokensMinted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "tokens_minted_total",
			Help:      "Tokens minted through donations",
		}),
		VotesCast: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "voting",
			Name:      "votes_total",
			Help:      "Total number of votes cast by side",
		}, []string{"support"}),
		VotingResolutions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "voting",
			Name:      "resolutions_total",
			Help:      "Total number of resolved votes by outcome",
		}, []string{"outcome"}),
		ScreeningResults: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "screening",
			Name:      "results_total",
			Help:      "Total number of screening results by status",
		}, []string{"status"}),
		LedgerCorruption: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "corruption_detected_total",
			Help:      "Number of failed supply invariant checks",
		}),

		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by route and status",
		}, []string{"method", "route", "status"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

var _ ports.EventSubscriber = (*Metrics)(nil)

func (m *Metrics) Name() string { return "metrics" }

// Handle updates the governance counters from a committed event.
func (m *Metrics) Handle(_ context.Context, ev domain.Event) error {
	m.EventsPublished.WithLabelValues(string(ev.Type)).Inc()

	switch ev.Type {
	case domain.EventDonationReceived:
		m.DonationsReceived.Inc()
		if data, ok := ev.Data.(map[string]interface{}); ok {
			m.DonatedAmount.Add(asFloat(data["usd_amount"]))
			m.TokensMinted.Add(asFloat(data["tokens_minted"]))
		}
	case domain.EventVoteCast:
		support := "unknown"
		if data, ok := ev.Data.(map[string]interface{}); ok {
			if s, ok := data["support"].(bool); ok {
				support = strconv.FormatBool(s)
			}
		}
		m.VotesCast.WithLabelValues(support).Inc()
	case domain.EventVotingResolved:
		if data, ok := ev.Data.(domain.VotingResolved); ok {
			outcome := "rejected"
			if data.Passed {
				outcome = "approved"
			}
			m.VotingResolutions.WithLabelValues(outcome).Inc()
		}
	case domain.EventProjectScreened:
		if result, ok := ev.Data.(*domain.ScreeningResult); ok && result != nil {
			m.ScreeningResults.WithLabelValues(string(result.Status)).Inc()
		}
	}
	return nil
}

// RecordLedgerCorruption counts a failed supply check.
func (m *Metrics) RecordLedgerCorruption(error) {
	m.LedgerCorruption.Inc()
}

// ObserveRequest records one served HTTP request.
func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func asFloat(v interface{}) float64 {
	switch n := v.(type) {
	case int64:
		return float64(n)
	case int:
		return float64(n)
	case float64:
		return n
	case json.Number:
		f, _ := n.Float64()
		return f
	}
	return 0
}
