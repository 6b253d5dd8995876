// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestVoteCounters(t *testing.T) {
	m := New()

	m.VoteAccepted("e1", 5*time.Millisecond)
	m.VoteAccepted("e1", 7*time.Millisecond)
	m.VoteAccepted("e2", time.Millisecond)
	m.VoteRejected("already_voted")
	m.VoteRejected("")

	if got := testutil.ToFloat64(m.VotesAccepted.WithLabelValues("e1")); got != 2 {
		t.Errorf("votes_accepted_total{e1} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.VotesRejected.WithLabelValues("already_voted")); got != 1 {
		t.Errorf("votes_rejected_total{already_voted} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.VotesRejected.WithLabelValues("internal")); got != 1 {
		t.Errorf("votes_rejected_total{internal} = %v, want 1", got)
	}
}

func TestSubscriberGauge(t *testing.T) {
	m := New()

	m.SubscriberJoined()
	m.SubscriberJoined()
	m.SubscriberLeft()

	if got := testutil.ToFloat64(m.LiveSubscribers); got != 1 {
		t.Errorf("live_subscribers = %v, want 1", got)
	}
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics

	// Must not panic
	m.VoteAccepted("e1", time.Millisecond)
	m.VoteRejected("x")
	m.SubscriberJoined()
	m.SubscriberLeft()
	m.PublishFailed("redis")
}

func TestHandler(t *testing.T) {
	m := New()
	m.PublishFailed("kafka")

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	body, _ := io.ReadAll(rr.Body)
	if !strings.Contains(string(body), `voteverse_live_publish_failures_total{sink="kafka"} 1`) {
		t.Errorf("metrics output missing publish failure counter:\n%s", body)
	}
}
