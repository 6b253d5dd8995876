// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package live

import (
	"context"
	"errors"
	"testing"

	"github.com/voteverse/server/metrics"
	"github.com/voteverse/server/models"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
)

type stubPublisher struct {
	calls int
	err   error
}

func (s *stubPublisher) Publish(context.Context, models.TallyUpdate) error {
	s.calls++
	return s.err
}

func TestFanout(t *testing.T) {
	m := metrics.New()
	broken := &stubPublisher{err: errors.New("broker down")}
	healthy := &stubPublisher{}

	f := NewFanout(m, Sink{Name: "kafka", Publisher: broken}, Sink{Name: "hub", Publisher: healthy})

	err := f.Publish(context.Background(), update("a", 1))
	if err == nil {
		t.Fatal("expected joined error from failing sink")
	}
	if healthy.calls != 1 {
		t.Errorf("healthy sink calls = %d, want 1", healthy.calls)
	}
	if got := promtest.ToFloat64(m.PublishFailures.WithLabelValues("kafka")); got != 1 {
		t.Errorf("live_publish_failures_total{kafka} = %v, want 1", got)
	}

	names := f.Sinks()
	if len(names) != 2 || names[0] != "kafka" || names[1] != "hub" {
		t.Errorf("Sinks() = %v", names)
	}
}

func TestFanout_HubDelivery(t *testing.T) {
	hub := NewHub(nil)
	sub := hub.Subscribe("a")
	defer sub.Close()

	f := NewFanout(nil, Sink{Name: "hub", Publisher: hub})
	if err := f.Publish(context.Background(), update("a", 5)); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if got := receive(t, sub); got.NewTally != 5 {
		t.Errorf("NewTally = %d, want 5", got.NewTally)
	}
}
