// Package postgres - TaskRepository, the durable settlement queue.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/google/uuid"

	"github.com/ficore-africa/vas-backend/internal/application/ports"
	"github.com/ficore-africa/vas-backend/internal/domain/entities"
)

// Compile-time check
var _ ports.TaskRepository = (*TaskRepository)(nil)

// taskLease is how long a claimed task belongs to one worker before the
// sweep returns it to the queue.
const taskLease = 30 * time.Second

// TaskRepository stores settlement tasks. ClaimNext uses
// FOR UPDATE SKIP LOCKED so concurrent workers never pick the same task and
// never block each other.
type TaskRepository struct {
	pool *pgxpool.Pool
}

// NewTaskRepository creates a TaskRepository.
func NewTaskRepository(pool *pgxpool.Pool) *TaskRepository {
	return &TaskRepository{pool: pool}
}

func (r *TaskRepository) getQuerier(ctx context.Context) querier {
	if tx := extractTx(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const taskColumns = `
	id, kind, payload, reference, status, attempts, last_error,
	next_run_at, lease_expires_at, created_at, updated_at
`

// Save inserts a task. The unique index on reference makes the enqueue
// idempotent: a retry of the same settlement keeps a single task.
func (r *TaskRepository) Save(ctx context.Context, task *entities.TransactionTask) error {
	q := r.getQuerier(ctx)
	query := `
		INSERT INTO transaction_tasks (` + taskColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (reference) DO NOTHING
	`
	_, err := q.Exec(ctx, query,
		task.ID(), string(task.Kind()), []byte(task.Payload()), task.Reference(),
		string(task.Status()), task.Attempts(), task.LastError(),
		task.NextRunAt(), task.LeaseExpiresAt(), task.CreatedAt(), task.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert task: %w", err)
	}
	return nil
}

// ClaimNext atomically takes the oldest due PENDING task: select with
// SKIP LOCKED, flip to PROCESSING with a lease, return it. Nil when the
// queue is empty.
func (r *TaskRepository) ClaimNext(ctx context.Context, now time.Time, lease time.Duration) (*entities.TransactionTask, error) {
	if lease <= 0 {
		lease = taskLease
	}
	q := r.getQuerier(ctx)
	query := `
		UPDATE transaction_tasks SET
			status = 'PROCESSING',
			lease_expires_at = $2,
			updated_at = $1
		WHERE id = (
			SELECT id FROM transaction_tasks
			WHERE status = 'PENDING' AND next_run_at <= $1
			ORDER BY next_run_at ASC
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		RETURNING ` + taskColumns + `
	`
	task, err := r.scanTask(q.QueryRow(ctx, query, now, now.Add(lease)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to claim task: %w", err)
	}
	return task, nil
}

// Update persists a task state transition.
func (r *TaskRepository) Update(ctx context.Context, task *entities.TransactionTask) error {
	q := r.getQuerier(ctx)
	query := `
		UPDATE transaction_tasks SET
			status = $2, attempts = $3, last_error = $4,
			next_run_at = $5, lease_expires_at = $6, updated_at = $7
		WHERE id = $1
	`
	result, err := q.Exec(ctx, query,
		task.ID(), string(task.Status()), task.Attempts(), task.LastError(),
		task.NextRunAt(), task.LeaseExpiresAt(), task.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("task %s not found", task.ID())
	}
	return nil
}

// ReleaseExpiredLeases returns crashed workers' tasks to the queue without
// counting an attempt.
func (r *TaskRepository) ReleaseExpiredLeases(ctx context.Context, now time.Time) (int, error) {
	q := r.getQuerier(ctx)
	query := `
		UPDATE transaction_tasks SET
			status = 'PENDING',
			lease_expires_at = NULL,
			next_run_at = $1,
			updated_at = $1
		WHERE status = 'PROCESSING' AND lease_expires_at < $1
	`
	result, err := q.Exec(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("failed to release expired leases: %w", err)
	}
	return int(result.RowsAffected()), nil
}

func (r *TaskRepository) scanTask(row pgx.Row) (*entities.TransactionTask, error) {
	var (
		id                   uuid.UUID
		kindStr              string
		payload              []byte
		reference            string
		statusStr            string
		attempts             int
		lastError            string
		nextRunAt            time.Time
		leaseExpiresAt       *time.Time
		createdAt, updatedAt time.Time
	)
	err := row.Scan(&id, &kindStr, &payload, &reference, &statusStr, &attempts,
		&lastError, &nextRunAt, &leaseExpiresAt, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	return entities.ReconstructTask(
		id, entities.TaskKind(kindStr), json.RawMessage(payload), reference,
		entities.TaskStatus(statusStr), attempts, lastError,
		nextRunAt, leaseExpiresAt, createdAt, updatedAt,
	), nil
}
