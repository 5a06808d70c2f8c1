package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/fcc-block-geocoder/internal/domain"
)

// Writer publishes geocoding outcomes to a Kafka topic.
// It implements domain.Publisher.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the given topic.
func NewWriter(brokers []string, topic string, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Writer{writer: w, logger: logger}
}

// Publish serializes and sends a batch of outcomes in a single WriteMessages call.
func (w *Writer) Publish(ctx context.Context, outcomes []domain.Outcome) error {
	if len(outcomes) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(outcomes))
	for i := range outcomes {
		msg, err := serializeToMessage(outcomes[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish %d outcomes: %w", len(msgs), err)
	}
	w.logger.Debug("outcomes published", "count", len(msgs), "topic", w.writer.Topic)
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// message is the wire shape of a published outcome.
type message struct {
	FIPS      *string         `json:"fips"`
	Latitude  string          `json:"latitude"`
	Longitude string          `json:"longitude"`
	Status    string          `json:"status"`
	Class     string          `json:"class"`
	Response  json.RawMessage `json:"response,omitempty"`
}

// serializeToMessage marshals an Outcome into a Kafka message keyed by its
// coordinate, so repeated lookups of one point land on one partition.
func serializeToMessage(o domain.Outcome) (kafkago.Message, error) {
	data, err := json.Marshal(message{
		FIPS:      o.FIPS,
		Latitude:  o.Latitude,
		Longitude: o.Longitude,
		Status:    string(o.Status),
		Class:     string(o.Class()),
		Response:  o.RawResponse,
	})
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize outcome: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(o.Latitude + "," + o.Longitude),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "status", Value: []byte(o.Status)},
			{Key: "class", Value: []byte(o.Class())},
		},
	}, nil
}
