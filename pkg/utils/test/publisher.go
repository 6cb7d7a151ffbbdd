package testutils

import (
	"context"
	"errors"
	"sync"

	"github.com/papercomputeco/cortex/pkg/eventstream"
)

// MockPublisher records published scan events in memory.
type MockPublisher struct {
	mu     sync.Mutex
	events []*eventstream.ScanIngestedEvent
	closed bool

	// FailPublish causes PublishScan to return an error.
	FailPublish bool
}

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (m *MockPublisher) PublishScan(_ context.Context, event *eventstream.ScanIngestedEvent) error {
	if event == nil {
		return eventstream.ErrNilScanEvent
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailPublish {
		return errors.New("mock publish failure")
	}
	m.events = append(m.events, event)
	return nil
}

// Events returns the published events in order.
func (m *MockPublisher) Events() []*eventstream.ScanIngestedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*eventstream.ScanIngestedEvent(nil), m.events...)
}

func (m *MockPublisher) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *MockPublisher) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
