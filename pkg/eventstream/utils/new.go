package eventstreamutils

import (
	"fmt"
	"log/slog"

	"github.com/papercomputeco/cortex/pkg/eventstream"
	"github.com/papercomputeco/cortex/pkg/eventstream/kafka"
	"github.com/papercomputeco/cortex/pkg/eventstream/nop"
)

type NewPublisherOpts struct {
	ProviderType string
	Brokers      string
	Topic        string
	Logger       *slog.Logger
}

// NewPublisher returns the configured publisher, the no-op publisher for
// provider "none" or "".
func NewPublisher(o *NewPublisherOpts) (eventstream.Publisher, error) {
	switch o.ProviderType {
	case "", "none":
		return nop.NewPublisher(), nil
	case "kafka":
		p, err := kafka.NewPublisher(kafka.Config{
			Brokers: kafka.ParseBrokers(o.Brokers),
			Topic:   o.Topic,
		}, o.Logger)
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unsupported event provider: %s", o.ProviderType)
	}
}
