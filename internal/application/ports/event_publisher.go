// Package ports - event emission contracts.
//
// Use cases never publish to the broker directly. They append events to the
// outbox inside the Unit of Work; the poller drains the outbox and publishes
// to NATS. This keeps "business mutation happened" and "event will be
// delivered" in the same atomic step.
package ports

import (
	"context"

	"github.com/ficore-africa/vas-backend/internal/domain/events"
)

// EventPublisher delivers domain events to the message broker.
// At-least-once delivery; consumers must be idempotent.
type EventPublisher interface {
	Publish(ctx context.Context, event events.DomainEvent) error
	PublishBatch(ctx context.Context, batch []events.DomainEvent) error
}

// StoredEvent is an outbox row awaiting publication.
type StoredEvent struct {
	ID        string
	Type      string
	Aggregate string
	Payload   []byte
}

// OutboxRepository implements the Transactional Outbox pattern: events are
// saved in the same transaction as the business change, and a separate
// poller publishes and marks them.
type OutboxRepository interface {
	// Save serializes the event into the outbox. Must run inside the same
	// Unit of Work as the business operation.
	Save(ctx context.Context, event events.DomainEvent) error

	// SaveBatch stores several events atomically.
	SaveBatch(ctx context.Context, batch []events.DomainEvent) error

	// FindUnpublished returns events not yet delivered, oldest first.
	FindUnpublished(ctx context.Context, limit int) ([]StoredEvent, error)

	// MarkPublished records successful delivery.
	MarkPublished(ctx context.Context, eventID string) error

	// MarkFailed records a delivery that gave up after retries.
	MarkFailed(ctx context.Context, eventID string, reason string) error
}
