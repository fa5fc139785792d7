// Package kafka publishes ingest events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/tonearmlabs/tonearm/pkg/eventstream"
)

// DefaultTopic is the topic ingest events are written to when none is
// configured.
const DefaultTopic = "tonearm.items"

// Publisher writes item events to Kafka as JSON, keyed by item id so one
// item's events land in one partition.
type Publisher struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// Config holds Kafka publisher settings.
type Config struct {
	// Brokers is the bootstrap broker list.
	Brokers []string

	// Topic is the destination topic. Defaults to DefaultTopic.
	Topic string
}

// NewPublisher creates a Kafka-backed eventstream publisher.
func NewPublisher(cfg Config, logger *slog.Logger) (*Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka publisher requires at least one broker")
	}

	topic := cfg.Topic
	if topic == "" {
		topic = DefaultTopic
	}

	writer := &kafkago.Writer{
		Addr:     kafkago.TCP(cfg.Brokers...),
		Topic:    topic,
		Balancer: &kafkago.Hash{},
	}

	return &Publisher{
		writer: writer,
		logger: logger,
	}, nil
}

// PublishItemIngested writes one event to the topic.
func (p *Publisher) PublishItemIngested(ctx context.Context, event *eventstream.ItemIngestedEvent) error {
	if event == nil {
		return eventstream.ErrNilEvent
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding item event: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafkago.Message{
		Key:   []byte(strconv.FormatInt(event.ItemID, 10)),
		Value: payload,
	})
	if err != nil {
		return fmt.Errorf("publishing item event: %w", err)
	}

	p.logger.Debug("item event published",
		"item_id", event.ItemID,
		"event_id", event.EventID,
	)
	return nil
}

// Close flushes and closes the writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
