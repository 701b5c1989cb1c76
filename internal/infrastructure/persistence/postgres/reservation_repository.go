// Package postgres - ReservationRepository.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ficore-africa/vas-backend/internal/application/ports"
	"github.com/ficore-africa/vas-backend/internal/domain/entities"
	domainErrors "github.com/ficore-africa/vas-backend/internal/domain/errors"
	"github.com/ficore-africa/vas-backend/internal/domain/valueobjects"
)

// Compile-time check
var _ ports.ReservationRepository = (*ReservationRepository)(nil)

// ReservationRepository stores purchase holds. Terminal rows are immutable:
// the state-transition UPDATE only matches HELD rows, so a racing commit and
// release cannot both apply.
type ReservationRepository struct {
	pool *pgxpool.Pool
}

// NewReservationRepository creates a ReservationRepository.
func NewReservationRepository(pool *pgxpool.Pool) *ReservationRepository {
	return &ReservationRepository{pool: pool}
}

func (r *ReservationRepository) getQuerier(ctx context.Context) querier {
	if tx := extractTx(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const reservationColumns = `
	id, user_id, amount_kobo, transaction_id, state, created_at, resolved_at
`

// Save inserts a HELD reservation or applies its one state transition.
func (r *ReservationRepository) Save(ctx context.Context, reservation *entities.Reservation) error {
	q := r.getQuerier(ctx)

	if reservation.State() == entities.ReservationHeld {
		query := `
			INSERT INTO reservations (` + reservationColumns + `)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (id) DO NOTHING
		`
		_, err := q.Exec(ctx, query,
			reservation.ID(), reservation.UserID(), reservation.Amount().Kobo(),
			reservation.TransactionID(), string(reservation.State()),
			reservation.CreatedAt(), reservation.ResolvedAt(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert reservation: %w", err)
		}
		return nil
	}

	// HELD -> COMMITTED/RELEASED. Zero rows means another writer resolved it
	// first; the caller re-reads to find out how.
	query := `
		UPDATE reservations SET state = $2, resolved_at = $3
		WHERE id = $1 AND state = 'HELD'
	`
	result, err := q.Exec(ctx, query,
		reservation.ID(), string(reservation.State()), reservation.ResolvedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to resolve reservation: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domainErrors.NewConcurrencyError(
			"Reservation", reservation.ID().String(),
			"reservation was resolved by another transaction",
		)
	}
	return nil
}

// FindByID loads a reservation.
func (r *ReservationRepository) FindByID(ctx context.Context, id uuid.UUID) (*entities.Reservation, error) {
	q := r.getQuerier(ctx)
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = $1`
	return r.scanReservation(q.QueryRow(ctx, query, id))
}

// SumHeldByUser totals the live holds on a wallet.
func (r *ReservationRepository) SumHeldByUser(ctx context.Context, userID uuid.UUID) (valueobjects.Money, error) {
	q := r.getQuerier(ctx)
	var total int64
	err := q.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount_kobo), 0) FROM reservations WHERE user_id = $1 AND state = 'HELD'`,
		userID,
	).Scan(&total)
	if err != nil {
		return valueobjects.Zero(), fmt.Errorf("failed to sum held reservations: %w", err)
	}
	return valueobjects.FromKobo(total), nil
}

// FindStaleHeld lists HELD reservations created before the cutoff, oldest
// first, for the sweeper.
func (r *ReservationRepository) FindStaleHeld(ctx context.Context, cutoff time.Time, limit int) ([]*entities.Reservation, error) {
	q := r.getQuerier(ctx)
	query := `
		SELECT ` + reservationColumns + `
		FROM reservations
		WHERE state = 'HELD' AND created_at < $1
		ORDER BY created_at ASC
		LIMIT $2
	`
	rows, err := q.Query(ctx, query, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to find stale reservations: %w", err)
	}
	defer rows.Close()

	var out []*entities.Reservation
	for rows.Next() {
		reservation, err := r.scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, reservation)
	}
	return out, rows.Err()
}

func (r *ReservationRepository) scanReservation(row pgx.Row) (*entities.Reservation, error) {
	var (
		id, userID    uuid.UUID
		amountKobo    int64
		transactionID uuid.UUID
		stateStr      string
		createdAt     time.Time
		resolvedAt    *time.Time
	)
	err := row.Scan(&id, &userID, &amountKobo, &transactionID, &stateStr, &createdAt, &resolvedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrReservationNotFound
		}
		return nil, fmt.Errorf("failed to scan reservation: %w", err)
	}
	return entities.ReconstructReservation(
		id, userID, valueobjects.FromKobo(amountKobo), transactionID,
		entities.ReservationState(stateStr), createdAt, resolvedAt,
	), nil
}
