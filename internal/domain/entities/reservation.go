// Package entities - Reservation holds funds while a provider call is in
// flight. Lifecycle: HELD -> COMMITTED (debit applied) or HELD -> RELEASED
// (no debit). Terminal states are immutable.
package entities

import (
	"time"

	"github.com/google/uuid"

	"github.com/ficore-africa/vas-backend/internal/domain/errors"
	"github.com/ficore-africa/vas-backend/internal/domain/valueobjects"
)

// ReservationState represents the lifecycle state of a reservation.
type ReservationState string

const (
	ReservationHeld      ReservationState = "HELD"
	ReservationCommitted ReservationState = "COMMITTED"
	ReservationReleased  ReservationState = "RELEASED"
)

// IsTerminal returns true for resolved states.
func (s ReservationState) IsTerminal() bool {
	return s == ReservationCommitted || s == ReservationReleased
}

// StaleReservationAge is how long a HELD reservation may live before the
// background sweep releases it. Covers orchestrator crashes between
// reserve and resolution.
const StaleReservationAge = 10 * time.Minute

// Reservation is a hold against a wallet for one purchase.
type Reservation struct {
	id            uuid.UUID
	userID        uuid.UUID
	amount        valueobjects.Money
	transactionID uuid.UUID // the VasTransaction this hold backs
	state         ReservationState
	createdAt     time.Time
	resolvedAt    *time.Time
}

// NewReservation creates a HELD reservation.
func NewReservation(userID uuid.UUID, amount valueobjects.Money, transactionID uuid.UUID) (*Reservation, error) {
	if !amount.IsPositive() {
		return nil, errors.NewBusinessRuleViolation(
			"INVALID_RESERVATION_AMOUNT",
			"reservation amount must be positive",
			map[string]interface{}{"amount": amount.String()},
		)
	}
	return &Reservation{
		id:            uuid.New(),
		userID:        userID,
		amount:        amount,
		transactionID: transactionID,
		state:         ReservationHeld,
		createdAt:     time.Now(),
	}, nil
}

// ReconstructReservation rebuilds a Reservation from stored data.
func ReconstructReservation(
	id, userID uuid.UUID,
	amount valueobjects.Money,
	transactionID uuid.UUID,
	state ReservationState,
	createdAt time.Time,
	resolvedAt *time.Time,
) *Reservation {
	return &Reservation{
		id:            id,
		userID:        userID,
		amount:        amount,
		transactionID: transactionID,
		state:         state,
		createdAt:     createdAt,
		resolvedAt:    resolvedAt,
	}
}

// Getters

func (r *Reservation) ID() uuid.UUID            { return r.id }
func (r *Reservation) UserID() uuid.UUID        { return r.userID }
func (r *Reservation) Amount() valueobjects.Money { return r.amount }
func (r *Reservation) TransactionID() uuid.UUID { return r.transactionID }
func (r *Reservation) State() ReservationState  { return r.state }
func (r *Reservation) CreatedAt() time.Time     { return r.createdAt }
func (r *Reservation) ResolvedAt() *time.Time   { return r.resolvedAt }

// IsStale reports whether a HELD reservation is old enough to be swept.
func (r *Reservation) IsStale(now time.Time) bool {
	return r.state == ReservationHeld && now.Sub(r.createdAt) >= StaleReservationAge
}

// Commit marks the reservation COMMITTED. Idempotent: committing an already
// committed reservation is a no-op; committing a released one is an error.
func (r *Reservation) Commit() error {
	switch r.state {
	case ReservationCommitted:
		return nil
	case ReservationReleased:
		return errors.ErrReservationResolved
	}
	r.state = ReservationCommitted
	now := time.Now()
	r.resolvedAt = &now
	return nil
}

// Release marks the reservation RELEASED. Idempotent on RELEASED; releasing
// a committed reservation is an error because the debit already happened.
func (r *Reservation) Release() error {
	switch r.state {
	case ReservationReleased:
		return nil
	case ReservationCommitted:
		return errors.ErrReservationResolved
	}
	r.state = ReservationReleased
	now := time.Now()
	r.resolvedAt = &now
	return nil
}
