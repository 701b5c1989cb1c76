// Package events delivers domain events to NATS. Use cases never touch this
// package directly: they append to the transactional outbox, and the poller
// here drains it. Publishing is therefore at-least-once and decoupled from
// request latency.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/ficore-africa/vas-backend/internal/application/ports"
	domainEvents "github.com/ficore-africa/vas-backend/internal/domain/events"
)

// subjectPrefix namespaces every subject, e.g. "ficore.wallet.credited".
const subjectPrefix = "ficore."

// Config holds the NATS connection settings.
type Config struct {
	URL        string
	ClientName string
}

// Connect establishes the NATS connection with reconnect enabled.
func Connect(cfg Config, logger *slog.Logger) (*nats.Conn, error) {
	conn, err := nats.Connect(cfg.URL,
		nats.Name(cfg.ClientName),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}
	return conn, nil
}

// Compile-time check
var _ ports.EventPublisher = (*NATSPublisher)(nil)

// NATSPublisher publishes domain events to NATS subjects derived from the
// event type.
type NATSPublisher struct {
	conn   *nats.Conn
	logger *slog.Logger
}

// NewNATSPublisher creates a NATSPublisher.
func NewNATSPublisher(conn *nats.Conn, logger *slog.Logger) *NATSPublisher {
	return &NATSPublisher{conn: conn, logger: logger}
}

// envelope mirrors the outbox payload shape so direct publishes and
// poller-drained publishes look the same to consumers.
type envelope struct {
	EventID     string      `json:"event_id"`
	EventType   string      `json:"event_type"`
	OccurredAt  time.Time   `json:"occurred_at"`
	AggregateID string      `json:"aggregate_id"`
	Data        interface{} `json:"data"`
}

// Publish delivers one event.
func (p *NATSPublisher) Publish(ctx context.Context, event domainEvents.DomainEvent) error {
	payload, err := json.Marshal(envelope{
		EventID:     event.EventID().String(),
		EventType:   event.EventType(),
		OccurredAt:  event.OccurredAt(),
		AggregateID: event.AggregateID().String(),
		Data:        event,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal event %s: %w", event.EventType(), err)
	}
	return p.PublishRaw(ctx, event.EventType(), payload)
}

// PublishBatch delivers several events. Delivery is per-event; a failure
// stops the batch so the caller can retry from the failed event.
func (p *NATSPublisher) PublishBatch(ctx context.Context, batch []domainEvents.DomainEvent) error {
	for _, event := range batch {
		if err := p.Publish(ctx, event); err != nil {
			return err
		}
	}
	return nil
}

// PublishRaw publishes an already-serialized payload. The outbox poller uses
// this path since outbox rows carry the serialized envelope.
func (p *NATSPublisher) PublishRaw(_ context.Context, eventType string, payload []byte) error {
	subject := subjectPrefix + eventType
	if err := p.conn.Publish(subject, payload); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}
	return nil
}
