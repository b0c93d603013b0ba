package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"sbt-registry/internal/platform/kafka/producer"
)

// KafkaPublisher publishes lifecycle events to a Kafka topic. Events are keyed
// by credential ID so per-credential ordering survives partitioning, and are
// produced synchronously so emission order equals operation completion order.
type KafkaPublisher struct {
	producer *producer.Producer
	topic    string
	logger   *slog.Logger
}

func NewKafkaPublisher(p *producer.Producer, topic string, logger *slog.Logger) *KafkaPublisher {
	return &KafkaPublisher{producer: p, topic: topic, logger: logger}
}

func (k *KafkaPublisher) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal lifecycle event: %w", err)
	}

	msg := &producer.Message{
		Topic: k.topic,
		Key:   []byte(event.CredentialID.String()),
		Value: payload,
		Headers: map[string]string{
			"kind":     string(event.Kind),
			"event_id": event.ID,
		},
	}

	if err := k.producer.Produce(ctx, msg); err != nil {
		return fmt.Errorf("publish %s for credential %s: %w", event.Kind, event.CredentialID, err)
	}

	k.logger.DebugContext(ctx, "lifecycle event published",
		"kind", event.Kind,
		"credential_id", event.CredentialID.String(),
	)
	return nil
}
