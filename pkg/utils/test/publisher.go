package testutils

import (
	"context"

	"github.com/tonearmlabs/tonearm/pkg/eventstream"
)

// MockPublisher records published events so suites can assert on the
// ingest event hook without a broker.
type MockPublisher struct {
	// Events holds every published event in order.
	Events []*eventstream.ItemIngestedEvent

	// FailWith, when set, is returned by PublishItemIngested after
	// recording the event.
	FailWith error

	// Closed reports whether Close was called.
	Closed bool
}

// NewMockPublisher creates an empty recording publisher.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

// PublishItemIngested records the event, then fails if FailWith is set.
func (m *MockPublisher) PublishItemIngested(_ context.Context, event *eventstream.ItemIngestedEvent) error {
	if event == nil {
		return eventstream.ErrNilEvent
	}
	m.Events = append(m.Events, event)
	return m.FailWith
}

// Close marks the publisher closed.
func (m *MockPublisher) Close() error {
	m.Closed = true
	return nil
}
