// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package voting

import (
	"context"
	"sync"
	"time"

	"github.com/voteverse/server/metrics"
	"github.com/voteverse/server/models"
)

// Publisher receives a tally update after every accepted vote
type Publisher interface {
	Publish(ctx context.Context, update models.TallyUpdate) error
}

const (
	defaultWriteTimeout   = 10 * time.Second
	defaultPublishTimeout = 5 * time.Second
)

// Service runs election lifecycle changes, vote casting and result
// aggregation on top of a Store. It holds no election state of its own.
type Service struct {
	store     *Store
	publisher Publisher
	metrics   *metrics.Metrics

	// now is the clock used for open/closed decisions and timestamps
	now func() time.Time

	writeTimeout   time.Duration
	publishTimeout time.Duration

	// in-flight live publications
	publishing sync.WaitGroup
}

// NewService wires a Service. publisher and m may be nil.
func NewService(store *Store, publisher Publisher, m *metrics.Metrics) *Service {
	return &Service{
		store:          store,
		publisher:      publisher,
		metrics:        m,
		now:            func() time.Time { return time.Now().UTC() },
		writeTimeout:   defaultWriteTimeout,
		publishTimeout: defaultPublishTimeout,
	}
}

// SetClock replaces the service clock
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

func (s *Service) Store() *Store {
	return s.store
}

// Now returns the service clock's current time
func (s *Service) Now() time.Time {
	return s.now()
}

// Wait blocks until all in-flight tally publications have finished
func (s *Service) Wait() {
	s.publishing.Wait()
}
