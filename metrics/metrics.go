// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "voteverse"

// Metrics holds the server's collectors on a private registry so tests can
// build as many instances as they like. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	registry *prometheus.Registry

	VotesAccepted   *prometheus.CounterVec
	VotesRejected   *prometheus.CounterVec
	CastDuration    prometheus.Histogram
	LiveSubscribers prometheus.Gauge
	PublishFailures *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		VotesAccepted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "votes_accepted_total",
				Help:      "Total number of votes recorded in the ledger",
			},
			[]string{"election_id"},
		),
		VotesRejected: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "votes_rejected_total",
				Help:      "Total number of rejected vote attempts by reason",
			},
			[]string{"reason"},
		),
		CastDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "vote_cast_duration_seconds",
				Help:      "Histogram of vote casting latency",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~2s
			},
		),
		LiveSubscribers: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "live_subscribers",
				Help:      "Current number of live result subscribers",
			},
		),
		PublishFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "live_publish_failures_total",
				Help:      "Total number of failed tally update publications by sink",
			},
			[]string{"sink"},
		),
	}
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) VoteAccepted(electionID string, took time.Duration) {
	if m == nil {
		return
	}
	m.VotesAccepted.WithLabelValues(electionID).Inc()
	m.CastDuration.Observe(took.Seconds())
}

func (m *Metrics) VoteRejected(reason string) {
	if m == nil {
		return
	}
	if reason == "" {
		reason = "internal"
	}
	m.VotesRejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) SubscriberJoined() {
	if m == nil {
		return
	}
	m.LiveSubscribers.Inc()
}

func (m *Metrics) SubscriberLeft() {
	if m == nil {
		return
	}
	m.LiveSubscribers.Dec()
}

func (m *Metrics) PublishFailed(sink string) {
	if m == nil {
		return
	}
	m.PublishFailures.WithLabelValues(sink).Inc()
}
