// Package entities - Wallet is the balance of record for a user.
// It enforces the reservation invariants around every balance operation.
package entities

import (
	"time"

	"github.com/google/uuid"

	"github.com/ficore-africa/vas-backend/internal/domain/errors"
	"github.com/ficore-africa/vas-backend/internal/domain/valueobjects"
)

// WalletStatus represents the operational status of a wallet.
type WalletStatus string

const (
	WalletStatusActive    WalletStatus = "ACTIVE"
	WalletStatusSuspended WalletStatus = "SUSPENDED"
)

// IsValid checks if the wallet status is valid.
func (s WalletStatus) IsValid() bool {
	return s == WalletStatusActive || s == WalletStatusSuspended
}

// PIN lockout policy.
const (
	MaxPinAttempts  = 5
	PinLockDuration = 15 * time.Minute
)

// ReservedAccount is a bank account number issued by the funding provider.
// Deposits to it map automatically to this wallet.
type ReservedAccount struct {
	BankName      string
	BankCode      string
	AccountNumber string
	AccountName   string
}

// Wallet represents a user's closed-loop Naira wallet.
//
// Invariants:
// - availableBalance = balance - reserved >= 0 at every commit boundary
// - reserved equals the sum of HELD reservations at rest
// - version increments on every mutation (optimistic locking)
type Wallet struct {
	id               uuid.UUID
	userID           uuid.UUID
	status           WalletStatus
	balance          valueobjects.Money // total funds on deposit
	reserved         valueobjects.Money // sum of live HELD reservations
	version          int64              // optimistic locking version
	accountReference string             // funding-provider reference, FICORE<userId>
	accounts         []ReservedAccount

	// Spending-PIN state
	pinHash        string // hex SHA-256(pin || salt); empty until set up
	pinSalt        string // hex-encoded random 32 bytes
	pinAttempts    int
	pinLockedUntil *time.Time

	createdAt time.Time
	updatedAt time.Time
}

// NewWallet creates a wallet for a user. New wallets start ACTIVE with zero
// balance and no PIN; the reserved account is attached once the funding
// provider issues one.
func NewWallet(userID uuid.UUID, accountReference string) (*Wallet, error) {
	if userID == uuid.Nil {
		return nil, errors.ValidationError{Field: "userID", Message: "user ID is required"}
	}

	now := time.Now()
	return &Wallet{
		id:               uuid.New(),
		userID:           userID,
		status:           WalletStatusActive,
		balance:          valueobjects.Zero(),
		reserved:         valueobjects.Zero(),
		version:          0,
		accountReference: accountReference,
		createdAt:        now,
		updatedAt:        now,
	}, nil
}

// ReconstructWallet rebuilds a Wallet from stored data.
// Used by the repository to hydrate entities from the database.
func ReconstructWallet(
	id, userID uuid.UUID,
	status WalletStatus,
	balance, reserved valueobjects.Money,
	version int64,
	accountReference string,
	accounts []ReservedAccount,
	pinHash, pinSalt string,
	pinAttempts int,
	pinLockedUntil *time.Time,
	createdAt, updatedAt time.Time,
) *Wallet {
	return &Wallet{
		id:               id,
		userID:           userID,
		status:           status,
		balance:          balance,
		reserved:         reserved,
		version:          version,
		accountReference: accountReference,
		accounts:         accounts,
		pinHash:          pinHash,
		pinSalt:          pinSalt,
		pinAttempts:      pinAttempts,
		pinLockedUntil:   pinLockedUntil,
		createdAt:        createdAt,
		updatedAt:        updatedAt,
	}
}

// Getters

func (w *Wallet) ID() uuid.UUID                 { return w.id }
func (w *Wallet) UserID() uuid.UUID             { return w.userID }
func (w *Wallet) Status() WalletStatus          { return w.status }
func (w *Wallet) Balance() valueobjects.Money   { return w.balance }
func (w *Wallet) Reserved() valueobjects.Money  { return w.reserved }
func (w *Wallet) Version() int64                { return w.version }
func (w *Wallet) AccountReference() string      { return w.accountReference }
func (w *Wallet) Accounts() []ReservedAccount   { return w.accounts }
func (w *Wallet) PinHash() string               { return w.pinHash }
func (w *Wallet) PinSalt() string               { return w.pinSalt }
func (w *Wallet) PinAttempts() int              { return w.pinAttempts }
func (w *Wallet) PinLockedUntil() *time.Time    { return w.pinLockedUntil }
func (w *Wallet) CreatedAt() time.Time          { return w.createdAt }
func (w *Wallet) UpdatedAt() time.Time          { return w.updatedAt }

// AvailableBalance is the amount the user can spend right now:
// total balance minus live reservations.
func (w *Wallet) AvailableBalance() valueobjects.Money {
	return w.balance.Sub(w.reserved)
}

// IsActive returns true if the wallet can perform spending operations.
func (w *Wallet) IsActive() bool {
	return w.status == WalletStatusActive
}

// CanDebit checks whether the wallet may be debited.
func (w *Wallet) CanDebit() error {
	if w.status != WalletStatusActive {
		return errors.ErrWalletSuspended
	}
	return nil
}

// AttachAccounts records the reserved bank accounts issued by the funding
// provider and the account reference deposits are matched on.
func (w *Wallet) AttachAccounts(reference string, accounts []ReservedAccount) {
	w.accountReference = reference
	w.accounts = accounts
	w.touch()
}

// Credit adds funds to the wallet. Credits are accepted even when the wallet
// is suspended; money owed to the user is never bounced.
func (w *Wallet) Credit(amount valueobjects.Money) error {
	if !amount.IsPositive() {
		return errors.NewBusinessRuleViolation(
			"INVALID_CREDIT_AMOUNT",
			"credit amount must be positive",
			map[string]interface{}{"amount": amount.String()},
		)
	}
	w.balance = w.balance.Add(amount)
	w.touch()
	return nil
}

// Debit removes funds directly from the balance (admin deductions).
// Spending flows go through Hold/CommitHold instead.
func (w *Wallet) Debit(amount valueobjects.Money) error {
	if err := w.CanDebit(); err != nil {
		return err
	}
	if !amount.IsPositive() {
		return errors.NewBusinessRuleViolation(
			"INVALID_DEBIT_AMOUNT",
			"debit amount must be positive",
			map[string]interface{}{"amount": amount.String()},
		)
	}
	if w.AvailableBalance().LessThan(amount) {
		return errors.ErrInsufficientFunds
	}
	w.balance = w.balance.Sub(amount)
	w.touch()
	return nil
}

// Hold reserves funds for an in-flight purchase so the same balance cannot
// back two purchases. The balance itself is untouched.
func (w *Wallet) Hold(amount valueobjects.Money) error {
	if err := w.CanDebit(); err != nil {
		return err
	}
	if !amount.IsPositive() {
		return errors.NewBusinessRuleViolation(
			"INVALID_HOLD_AMOUNT",
			"hold amount must be positive",
			map[string]interface{}{"amount": amount.String()},
		)
	}
	if w.AvailableBalance().LessThan(amount) {
		return errors.ErrInsufficientFunds
	}
	w.reserved = w.reserved.Add(amount)
	w.touch()
	return nil
}

// CommitHold finalizes a reservation: the held amount leaves both the
// reservation pool and the balance in one step.
func (w *Wallet) CommitHold(amount valueobjects.Money) error {
	if w.reserved.LessThan(amount) {
		return errors.ErrInsufficientHold
	}
	w.reserved = w.reserved.Sub(amount)
	w.balance = w.balance.Sub(amount)
	w.touch()
	return nil
}

// ReleaseHold returns a held amount to the spendable pool. Balance unchanged.
func (w *Wallet) ReleaseHold(amount valueobjects.Money) error {
	if w.reserved.LessThan(amount) {
		return errors.ErrInsufficientHold
	}
	w.reserved = w.reserved.Sub(amount)
	w.touch()
	return nil
}

// Status management

// Suspend temporarily disables spending on the wallet.
func (w *Wallet) Suspend() {
	w.status = WalletStatusSuspended
	w.touch()
}

// Activate re-enables a suspended wallet.
func (w *Wallet) Activate() {
	w.status = WalletStatusActive
	w.touch()
}

// PIN management

// HasPin reports whether a spending PIN has been set up.
func (w *Wallet) HasPin() bool {
	return w.pinHash != ""
}

// IsPinLocked reports whether PIN validation is currently locked out.
func (w *Wallet) IsPinLocked(now time.Time) bool {
	return w.pinLockedUntil != nil && now.Before(*w.pinLockedUntil)
}

// SetPin stores a new PIN hash and salt and clears the attempt counter.
func (w *Wallet) SetPin(hash, salt string) {
	w.pinHash = hash
	w.pinSalt = salt
	w.pinAttempts = 0
	w.pinLockedUntil = nil
	w.touch()
}

// RecordPinFailure increments the attempt counter and locks the PIN for
// PinLockDuration once MaxPinAttempts consecutive failures are reached.
// Returns true if this failure triggered the lockout.
func (w *Wallet) RecordPinFailure(now time.Time) bool {
	w.pinAttempts++
	if w.pinAttempts >= MaxPinAttempts {
		lockedUntil := now.Add(PinLockDuration)
		w.pinLockedUntil = &lockedUntil
		w.pinAttempts = 0
		w.touch()
		return true
	}
	w.touch()
	return false
}

// ResetPinAttempts clears the failure counter after a successful validation.
func (w *Wallet) ResetPinAttempts() {
	w.pinAttempts = 0
	w.pinLockedUntil = nil
	w.touch()
}

// ClearPin removes the PIN entirely (admin reset).
func (w *Wallet) ClearPin() {
	w.pinHash = ""
	w.pinSalt = ""
	w.pinAttempts = 0
	w.pinLockedUntil = nil
	w.touch()
}

func (w *Wallet) touch() {
	w.version++
	w.updatedAt = time.Now()
}
