// Package ports defines the interfaces the application layer depends on.
// Infrastructure provides the implementations.
//
// Pattern: Repository Pattern + Ports & Adapters (Hexagonal Architecture)
package ports

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ficore-africa/vas-backend/internal/domain/entities"
	"github.com/ficore-africa/vas-backend/internal/domain/valueobjects"
)

// UserRepository is the read-mostly view of the identity module. The core
// writes only the referral and credit fields it owns at funding/settlement
// hooks.
type UserRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*entities.User, error)

	// FindByEmail resolves webhook payloads that carry only a customer
	// email. Email is unique.
	FindByEmail(ctx context.Context, email string) (*entities.User, error)

	// Save persists the referral/credit fields the core mutates.
	Save(ctx context.Context, user *entities.User) error
}

// WalletRepository stores wallets. Save enforces optimistic locking on the
// version column and returns ConcurrencyError when the write loses the race.
type WalletRepository interface {
	Save(ctx context.Context, wallet *entities.Wallet) error

	FindByUserID(ctx context.Context, userID uuid.UUID) (*entities.Wallet, error)

	// FindByAccountReference resolves funding webhooks by the reserved
	// account reference (FICORE<userId> convention).
	FindByAccountReference(ctx context.Context, reference string) (*entities.Wallet, error)

	ExistsByUserID(ctx context.Context, userID uuid.UUID) (bool, error)
}

// ReservationRepository stores purchase holds.
type ReservationRepository interface {
	Save(ctx context.Context, reservation *entities.Reservation) error

	FindByID(ctx context.Context, id uuid.UUID) (*entities.Reservation, error)

	// SumHeldByUser returns the total of live HELD reservations for a
	// wallet. Used by invariant checks and the available-balance audit.
	SumHeldByUser(ctx context.Context, userID uuid.UUID) (valueobjects.Money, error)

	// FindStaleHeld returns HELD reservations created before the cutoff.
	// The sweeper releases them.
	FindStaleHeld(ctx context.Context, cutoff time.Time, limit int) ([]*entities.Reservation, error)
}

// TransactionFilter narrows ledger listings.
type TransactionFilter struct {
	UserID *uuid.UUID
	Type   *entities.VasType
	Status *entities.VasStatus
}

// TransactionRepository is the append-only VAS ledger. The unique indexes on
// (user_id, request_id) and transaction_reference enforce idempotency at the
// storage layer; Update refuses terminal rows.
type TransactionRepository interface {
	// Create inserts a new ledger row. Returns ErrDuplicateRequest when the
	// request ID or transaction reference already exists.
	Create(ctx context.Context, tx *entities.VasTransaction) error

	// Update persists status and settlement fields. Allowed only while the
	// stored row is non-terminal (PENDING or FAILED/"in-progress").
	Update(ctx context.Context, tx *entities.VasTransaction) error

	// UpdateFlags persists the side flags (reconciliation, provider
	// confirmation, settlement failure) without touching status. Side flags
	// are the one legal write to a terminal row.
	UpdateFlags(ctx context.Context, tx *entities.VasTransaction) error

	FindByID(ctx context.Context, id uuid.UUID) (*entities.VasTransaction, error)
	FindByRequestID(ctx context.Context, requestID string) (*entities.VasTransaction, error)
	FindByReference(ctx context.Context, reference string) (*entities.VasTransaction, error)

	// FindRecentSuccess is the duplicate-click guard: a SUCCESS row for the
	// same (user, type, amount, phone) inside the window.
	FindRecentSuccess(ctx context.Context, userID uuid.UUID, vasType entities.VasType, amount valueobjects.Money, phoneNumber string, window time.Duration) (*entities.VasTransaction, error)

	// FindPendingDuplicate finds an in-flight row for the same intention.
	FindPendingDuplicate(ctx context.Context, userID uuid.UUID, vasType entities.VasType, amount valueobjects.Money, phoneNumber string, window time.Duration) (*entities.VasTransaction, error)

	List(ctx context.Context, filter TransactionFilter, offset, limit int) ([]*entities.VasTransaction, error)
	Count(ctx context.Context, filter TransactionFilter) (int, error)
}

// TaskRepository is the durable settlement queue.
type TaskRepository interface {
	// Save inserts a new task. Idempotent on the task reference: enqueueing
	// the same reference twice keeps a single task.
	Save(ctx context.Context, task *entities.TransactionTask) error

	// ClaimNext atomically picks one due PENDING task and moves it to
	// PROCESSING with a lease. Returns nil when the queue is empty.
	ClaimNext(ctx context.Context, now time.Time, lease time.Duration) (*entities.TransactionTask, error)

	// Update persists a task state transition (done, backoff, failed).
	Update(ctx context.Context, task *entities.TransactionTask) error

	// ReleaseExpiredLeases returns PROCESSING tasks with an expired lease to
	// PENDING. Returns how many were released.
	ReleaseExpiredLeases(ctx context.Context, now time.Time) (int, error)
}

// AccountingRepository stores the corporate accounting side tables.
type AccountingRepository interface {
	SaveRevenueEntry(ctx context.Context, entry *entities.CorporateRevenueEntry) error
	SaveMismatchLog(ctx context.Context, log *entities.PlanMismatchLog) error
	SaveReferralPayout(ctx context.Context, payout *entities.ReferralPayout) error
	SaveAdminAction(ctx context.Context, action *entities.AdminAction) error
}
