// Package eventstreamutils is the eventstream utility package.
package eventstreamutils

import (
	"fmt"
	"log/slog"

	"github.com/tonearmlabs/tonearm/pkg/eventstream"
	"github.com/tonearmlabs/tonearm/pkg/eventstream/kafka"
	"github.com/tonearmlabs/tonearm/pkg/eventstream/nop"
)

// NewPublisherOpts selects and configures an eventstream backend.
type NewPublisherOpts struct {
	ProviderType string
	Brokers      []string
	Topic        string
	Logger       *slog.Logger
}

// NewPublisher builds the configured publisher. "none" (or empty) selects
// the no-op publisher.
func NewPublisher(o *NewPublisherOpts) (eventstream.Publisher, error) {
	switch o.ProviderType {
	case "", "none":
		return nop.NewPublisher(), nil
	case "kafka":
		return kafka.NewPublisher(kafka.Config{
			Brokers: o.Brokers,
			Topic:   o.Topic,
		}, o.Logger)
	default:
		return nil, fmt.Errorf("unsupported eventstream provider: %s", o.ProviderType)
	}
}
