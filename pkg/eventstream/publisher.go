package eventstream

import "context"

// Publisher publishes scan events to an event stream backend.
type Publisher interface {
	PublishScan(ctx context.Context, event *ScanIngestedEvent) error
	Close() error
}
