// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package live

import (
	"context"
	"errors"
	"fmt"

	"github.com/voteverse/server/metrics"
	"github.com/voteverse/server/models"
)

// Sink is a named destination for tally updates
type Sink struct {
	Name      string
	Publisher Publisher
}

// Fanout publishes every update to all of its sinks. A failing sink does not
// stop the others; failures are counted per sink and returned joined.
type Fanout struct {
	sinks   []Sink
	metrics *metrics.Metrics
}

func NewFanout(m *metrics.Metrics, sinks ...Sink) *Fanout {
	return &Fanout{sinks: sinks, metrics: m}
}

func (f *Fanout) Publish(ctx context.Context, update models.TallyUpdate) error {
	var errs []error
	for _, s := range f.sinks {
		if err := s.Publisher.Publish(ctx, update); err != nil {
			f.metrics.PublishFailed(s.Name)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name, err))
		}
	}
	return errors.Join(errs...)
}

// Sinks returns the names of the configured sinks in publish order
func (f *Fanout) Sinks() []string {
	names := make([]string, len(f.sinks))
	for i, s := range f.sinks {
		names[i] = s.Name
	}
	return names
}
