package nop

import (
	"context"

	"github.com/papercomputeco/cortex/pkg/eventstream"
)

// Publisher is a no-op eventstream publisher used for tests and disabled mode.
type Publisher struct{}

// NewPublisher creates a new no-op eventstream publisher.
func NewPublisher() *Publisher {
	return &Publisher{}
}

// PublishScan validates input and otherwise does nothing.
func (p *Publisher) PublishScan(_ context.Context, event *eventstream.ScanIngestedEvent) error {
	if event == nil {
		return eventstream.ErrNilScanEvent
	}

	return nil
}

// Close is a no-op.
func (p *Publisher) Close() error {
	return nil
}
