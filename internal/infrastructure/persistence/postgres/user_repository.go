// Package postgres - UserRepository, the read-mostly identity view.
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
var _ ports.UserRepository = (*UserRepository)(nil)

// UserRepository reads the users table owned by the identity module. Save
// writes only the columns the wallet core owns: referral state, credits and
// the withdrawable balance.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a UserRepository.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func (r *UserRepository) getQuerier(ctx context.Context) querier {
	if tx := extractTx(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const userColumns = `
	id, email, is_admin, is_subscribed, subscription_plan, subscription_end_date,
	ficore_credit_balance, referred_by, first_deposit_at, vas_share_expiry_date,
	withdrawable_balance_kobo, created_at, updated_at
`

// FindByID loads a user.
func (r *UserRepository) FindByID(ctx context.Context, id uuid.UUID) (*entities.User, error) {
	q := r.getQuerier(ctx)
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.scanUser(q.QueryRow(ctx, query, id))
}

// FindByEmail resolves webhook payloads by customer email.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*entities.User, error) {
	q := r.getQuerier(ctx)
	query := `SELECT ` + userColumns + ` FROM users WHERE LOWER(email) = LOWER($1)`
	return r.scanUser(q.QueryRow(ctx, query, email))
}

// Save persists the core-owned fields.
func (r *UserRepository) Save(ctx context.Context, user *entities.User) error {
	q := r.getQuerier(ctx)
	query := `
		UPDATE users SET
			ficore_credit_balance = $2,
			first_deposit_at = $3,
			vas_share_expiry_date = $4,
			withdrawable_balance_kobo = $5,
			updated_at = $6
		WHERE id = $1
	`
	result, err := q.Exec(ctx, query,
		user.ID(), user.FicoreCreditBalance(), user.FirstDepositAt(),
		user.VasShareExpiryDate(), user.WithdrawableBalance().Kobo(), user.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domainErrors.ErrEntityNotFound
	}
	return nil
}

func (r *UserRepository) scanUser(row pgx.Row) (*entities.User, error) {
	var (
		id                   uuid.UUID
		email                string
		isAdmin              bool
		isSubscribed         bool
		subscriptionPlan     *string
		subscriptionEndDate  *time.Time
		creditBalance        int64
		referredBy           *uuid.UUID
		firstDepositAt       *time.Time
		vasShareExpiryDate   *time.Time
		withdrawableKobo     int64
		createdAt, updatedAt time.Time
	)
	err := row.Scan(
		&id, &email, &isAdmin, &isSubscribed, &subscriptionPlan, &subscriptionEndDate,
		&creditBalance, &referredBy, &firstDepositAt, &vasShareExpiryDate,
		&withdrawableKobo, &createdAt, &updatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrEntityNotFound
		}
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}

	plan := ""
	if subscriptionPlan != nil {
		plan = *subscriptionPlan
	}

	return entities.ReconstructUser(
		id, email, isAdmin, isSubscribed, plan, subscriptionEndDate,
		creditBalance, referredBy, firstDepositAt, vasShareExpiryDate,
		valueobjects.FromKobo(withdrawableKobo), createdAt, updatedAt,
	), nil
}
