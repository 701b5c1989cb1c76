package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/ficore-africa/vas-backend/internal/application/ports"
)

const (
	defaultPollInterval = time.Second
	defaultBatchSize    = 50

	// publishAttempts bounds retries per event within one drain cycle.
	// Exhaustion marks the row failed so a poison event cannot wedge the
	// queue; failed rows are an operator concern.
	publishAttempts = 3
)

// OutboxPoller drains unpublished outbox rows into NATS. Several pollers can
// run concurrently: the repository locks rows with SKIP LOCKED.
type OutboxPoller struct {
	outbox    ports.OutboxRepository
	publisher *NATSPublisher
	uow       ports.UnitOfWork
	logger    *slog.Logger

	interval  time.Duration
	batchSize int
}

// NewOutboxPoller creates an OutboxPoller with default cadence.
func NewOutboxPoller(
	outbox ports.OutboxRepository,
	publisher *NATSPublisher,
	uow ports.UnitOfWork,
	logger *slog.Logger,
) *OutboxPoller {
	return &OutboxPoller{
		outbox:    outbox,
		publisher: publisher,
		uow:       uow,
		logger:    logger,
		interval:  defaultPollInterval,
		batchSize: defaultBatchSize,
	}
}

// Run polls until the context is cancelled.
func (p *OutboxPoller) Run(ctx context.Context) {
	p.logger.InfoContext(ctx, "outbox poller started", "interval", p.interval.String())
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.InfoContext(ctx, "outbox poller stopped")
			return
		case <-ticker.C:
			if err := p.drain(ctx); err != nil {
				p.logger.ErrorContext(ctx, "outbox drain failed", "error", err)
			}
		}
	}
}

// drain claims a batch inside one transaction so the row locks hold while
// publishing, then marks each row published or failed.
func (p *OutboxPoller) drain(ctx context.Context) error {
	return p.uow.Execute(ctx, func(txCtx context.Context) error {
		batch, err := p.outbox.FindUnpublished(txCtx, p.batchSize)
		if err != nil {
			return err
		}

		for _, stored := range batch {
			err := retry.Do(
				func() error {
					return p.publisher.PublishRaw(txCtx, stored.Type, stored.Payload)
				},
				retry.Context(txCtx),
				retry.Attempts(publishAttempts),
				retry.Delay(100*time.Millisecond),
				retry.LastErrorOnly(true),
			)
			if err != nil {
				p.logger.ErrorContext(txCtx, "event publish exhausted retries",
					"event_id", stored.ID,
					"event_type", stored.Type,
					"error", err,
				)
				if markErr := p.outbox.MarkFailed(txCtx, stored.ID, err.Error()); markErr != nil {
					return markErr
				}
				continue
			}
			if err := p.outbox.MarkPublished(txCtx, stored.ID); err != nil {
				return err
			}
		}
		return nil
	})
}
