// Package postgres - transactional outbox storage.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ficore-africa/vas-backend/internal/application/ports"
	"github.com/ficore-africa/vas-backend/internal/domain/events"
)

// Compile-time check
var _ ports.OutboxRepository = (*OutboxRepository)(nil)

// OutboxRepository persists domain events in the same transaction as the
// business change. The poller drains unpublished rows into NATS.
type OutboxRepository struct {
	pool *pgxpool.Pool
}

// NewOutboxRepository creates an OutboxRepository.
func NewOutboxRepository(pool *pgxpool.Pool) *OutboxRepository {
	return &OutboxRepository{pool: pool}
}

func (r *OutboxRepository) getQuerier(ctx context.Context) querier {
	if tx := extractTx(ctx); tx != nil {
		return tx
	}
	return r.pool
}

// eventEnvelope is the stored payload shape: base fields plus the concrete
// event struct under data.
type eventEnvelope struct {
	EventID     string      `json:"event_id"`
	EventType   string      `json:"event_type"`
	OccurredAt  time.Time   `json:"occurred_at"`
	AggregateID string      `json:"aggregate_id"`
	Data        interface{} `json:"data"`
}

func marshalEvent(event events.DomainEvent) ([]byte, error) {
	return json.Marshal(eventEnvelope{
		EventID:     event.EventID().String(),
		EventType:   event.EventType(),
		OccurredAt:  event.OccurredAt(),
		AggregateID: event.AggregateID().String(),
		Data:        event,
	})
}

// Save stores one event.
func (r *OutboxRepository) Save(ctx context.Context, event events.DomainEvent) error {
	q := r.getQuerier(ctx)

	payload, err := marshalEvent(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	query := `
		INSERT INTO outbox_events (id, event_type, aggregate_id, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err = q.Exec(ctx, query,
		event.EventID(), event.EventType(), event.AggregateID(), payload, event.OccurredAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert outbox event: %w", err)
	}
	return nil
}

// SaveBatch stores several events. Callers run it inside a Unit of Work so
// the batch is atomic with the business change.
func (r *OutboxRepository) SaveBatch(ctx context.Context, batch []events.DomainEvent) error {
	for _, event := range batch {
		if err := r.Save(ctx, event); err != nil {
			return err
		}
	}
	return nil
}

// FindUnpublished returns undelivered events, oldest first. SKIP LOCKED
// keeps concurrent pollers off each other's rows.
func (r *OutboxRepository) FindUnpublished(ctx context.Context, limit int) ([]ports.StoredEvent, error) {
	q := r.getQuerier(ctx)
	query := `
		SELECT id, event_type, aggregate_id, payload
		FROM outbox_events
		WHERE published_at IS NULL AND failed_at IS NULL
		ORDER BY created_at ASC
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`
	rows, err := q.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to find unpublished events: %w", err)
	}
	defer rows.Close()

	var out []ports.StoredEvent
	for rows.Next() {
		var e ports.StoredEvent
		if err := rows.Scan(&e.ID, &e.Type, &e.Aggregate, &e.Payload); err != nil {
			return nil, fmt.Errorf("failed to scan outbox event: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// MarkPublished records successful delivery.
func (r *OutboxRepository) MarkPublished(ctx context.Context, eventID string) error {
	q := r.getQuerier(ctx)
	_, err := q.Exec(ctx,
		`UPDATE outbox_events SET published_at = $2 WHERE id = $1`,
		eventID, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to mark event published: %w", err)
	}
	return nil
}

// MarkFailed records a delivery that gave up after retries.
func (r *OutboxRepository) MarkFailed(ctx context.Context, eventID string, reason string) error {
	q := r.getQuerier(ctx)
	_, err := q.Exec(ctx,
		`UPDATE outbox_events SET failed_at = $2, failure_reason = $3 WHERE id = $1`,
		eventID, time.Now(), reason,
	)
	if err != nil {
		return fmt.Errorf("failed to mark event failed: %w", err)
	}
	return nil
}
