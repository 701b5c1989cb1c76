// Package entities - TransactionTask is a durable work item for
// post-provider-success settlement. A crash after the provider vends still
// completes the user-visible side effects because the task survives.
package entities

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/ficore-africa/vas-backend/internal/domain/errors"
)

// TaskKind identifies the work a task carries.
type TaskKind string

const (
	// TaskKindSettleVas settles a successful vend: commit reservation,
	// promote ledger row, accounting and referral fan-out, notification.
	TaskKindSettleVas TaskKind = "SETTLE_VAS"
)

// TaskStatus represents the queue state of a task.
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "PENDING"
	TaskStatusProcessing TaskStatus = "PROCESSING"
	TaskStatusDone       TaskStatus = "DONE"
	TaskStatusFailed     TaskStatus = "FAILED"
)

// Retry policy: exponential backoff 2^n * base, capped; FAILED after
// MaxTaskAttempts with an operator alert.
const (
	MaxTaskAttempts = 5
	taskBackoffBase = 30 * time.Second
	taskBackoffCap  = 10 * time.Minute
)

// SettlementPayload is the JSON body of a SETTLE_VAS task. Reference equals
// the transaction requestID; one id per user intention.
type SettlementPayload struct {
	TransactionID        uuid.UUID `json:"transaction_id"`
	ReservationID        uuid.UUID `json:"reservation_id"`
	UserID               uuid.UUID `json:"user_id"`
	Reference            string    `json:"reference"`
	Provider             string    `json:"provider"`
	TransactionReference string    `json:"transaction_reference"`
	DeliveredProduct     string    `json:"delivered_product,omitempty"`
	DeliveredAmount      string    `json:"delivered_amount,omitempty"`
	ProviderCommission   string    `json:"provider_commission,omitempty"`
}

// TransactionTask is one durable settlement work item.
type TransactionTask struct {
	id             uuid.UUID
	kind           TaskKind
	payload        json.RawMessage
	reference      string // idempotency key, mirrors the payload reference
	status         TaskStatus
	attempts       int
	lastError      string
	nextRunAt      time.Time
	leaseExpiresAt *time.Time
	createdAt      time.Time
	updatedAt      time.Time
}

// NewSettlementTask creates a PENDING SETTLE_VAS task due immediately.
func NewSettlementTask(payload SettlementPayload) (*TransactionTask, error) {
	if payload.Reference == "" {
		return nil, errors.ValidationError{Field: "reference", Message: "task reference is required"}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	return &TransactionTask{
		id:        uuid.New(),
		kind:      TaskKindSettleVas,
		payload:   raw,
		reference: payload.Reference,
		status:    TaskStatusPending,
		nextRunAt: now,
		createdAt: now,
		updatedAt: now,
	}, nil
}

// ReconstructTask rebuilds a task from stored data.
func ReconstructTask(
	id uuid.UUID,
	kind TaskKind,
	payload json.RawMessage,
	reference string,
	status TaskStatus,
	attempts int,
	lastError string,
	nextRunAt time.Time,
	leaseExpiresAt *time.Time,
	createdAt, updatedAt time.Time,
) *TransactionTask {
	return &TransactionTask{
		id:             id,
		kind:           kind,
		payload:        payload,
		reference:      reference,
		status:         status,
		attempts:       attempts,
		lastError:      lastError,
		nextRunAt:      nextRunAt,
		leaseExpiresAt: leaseExpiresAt,
		createdAt:      createdAt,
		updatedAt:      updatedAt,
	}
}

// Getters

func (t *TransactionTask) ID() uuid.UUID              { return t.id }
func (t *TransactionTask) Kind() TaskKind             { return t.kind }
func (t *TransactionTask) Payload() json.RawMessage   { return t.payload }
func (t *TransactionTask) Reference() string          { return t.reference }
func (t *TransactionTask) Status() TaskStatus         { return t.status }
func (t *TransactionTask) Attempts() int              { return t.attempts }
func (t *TransactionTask) LastError() string          { return t.lastError }
func (t *TransactionTask) NextRunAt() time.Time       { return t.nextRunAt }
func (t *TransactionTask) LeaseExpiresAt() *time.Time { return t.leaseExpiresAt }
func (t *TransactionTask) CreatedAt() time.Time       { return t.createdAt }
func (t *TransactionTask) UpdatedAt() time.Time       { return t.updatedAt }

// SettlementPayload decodes the task payload.
func (t *TransactionTask) SettlementPayload() (SettlementPayload, error) {
	var p SettlementPayload
	if err := json.Unmarshal(t.payload, &p); err != nil {
		return SettlementPayload{}, err
	}
	return p, nil
}

// Claim transitions PENDING -> PROCESSING with a lease. The repository makes
// the claim atomic; this records the entity-side state.
func (t *TransactionTask) Claim(now time.Time, lease time.Duration) {
	t.status = TaskStatusProcessing
	expires := now.Add(lease)
	t.leaseExpiresAt = &expires
	t.updatedAt = now
}

// MarkDone finalizes a successfully settled task.
func (t *TransactionTask) MarkDone(now time.Time) {
	t.status = TaskStatusDone
	t.leaseExpiresAt = nil
	t.updatedAt = now
}

// RecordFailure counts an attempt. While attempts remain it reschedules the
// task with exponential backoff; at MaxTaskAttempts the task goes FAILED and
// the caller must raise the operator alert. Returns true when exhausted.
func (t *TransactionTask) RecordFailure(now time.Time, cause string) bool {
	t.attempts++
	t.lastError = cause
	t.leaseExpiresAt = nil
	t.updatedAt = now

	if t.attempts >= MaxTaskAttempts {
		t.status = TaskStatusFailed
		return true
	}

	backoff := taskBackoffBase << uint(t.attempts)
	if backoff > taskBackoffCap {
		backoff = taskBackoffCap
	}
	t.status = TaskStatusPending
	t.nextRunAt = now.Add(backoff)
	return false
}

// ReturnToQueue puts an expired-lease task back to PENDING without counting
// an attempt. Used by the 30-second lease sweep.
func (t *TransactionTask) ReturnToQueue(now time.Time) {
	t.status = TaskStatusPending
	t.leaseExpiresAt = nil
	t.nextRunAt = now
	t.updatedAt = now
}
