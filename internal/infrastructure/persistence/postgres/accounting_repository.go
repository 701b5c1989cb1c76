// Package postgres - AccountingRepository for the append-only side tables.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ficore-africa/vas-backend/internal/application/ports"
	"github.com/ficore-africa/vas-backend/internal/domain/entities"
)

// Compile-time check
var _ ports.AccountingRepository = (*AccountingRepository)(nil)

// AccountingRepository writes corporate revenue, mismatch logs, referral
// payouts and admin audit rows. All append-only; no updates, no deletes.
type AccountingRepository struct {
	pool *pgxpool.Pool
}

// NewAccountingRepository creates an AccountingRepository.
func NewAccountingRepository(pool *pgxpool.Pool) *AccountingRepository {
	return &AccountingRepository{pool: pool}
}

func (r *AccountingRepository) getQuerier(ctx context.Context) querier {
	if tx := extractTx(ctx); tx != nil {
		return tx
	}
	return r.pool
}

// SaveRevenueEntry appends one corporate revenue row.
func (r *AccountingRepository) SaveRevenueEntry(ctx context.Context, entry *entities.CorporateRevenueEntry) error {
	q := r.getQuerier(ctx)
	query := `
		INSERT INTO corporate_revenue (id, entry_type, amount_kobo, reference, user_id, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := q.Exec(ctx, query,
		entry.ID(), string(entry.Type()), entry.Amount().Kobo(),
		entry.Reference(), entry.UserID(), entry.Description(), entry.CreatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert revenue entry: %w", err)
	}
	return nil
}

// SaveMismatchLog appends a delivered-product mismatch row.
func (r *AccountingRepository) SaveMismatchLog(ctx context.Context, log *entities.PlanMismatchLog) error {
	q := r.getQuerier(ctx)
	query := `
		INSERT INTO plan_mismatch_logs (
			id, transaction_id, requested_plan, delivered_plan,
			requested_amount_kobo, delivered_amount_kobo, severity, refund_eligible, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := q.Exec(ctx, query,
		log.ID(), log.TransactionID(), log.RequestedPlan(), log.DeliveredPlan(),
		log.RequestedAmount().Kobo(), log.DeliveredAmount().Kobo(),
		string(log.Severity()), log.RefundEligible(), log.CreatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert mismatch log: %w", err)
	}
	return nil
}

// SaveReferralPayout appends a referral payout row.
func (r *AccountingRepository) SaveReferralPayout(ctx context.Context, payout *entities.ReferralPayout) error {
	q := r.getQuerier(ctx)
	query := `
		INSERT INTO referral_payouts (id, referrer_id, referred_user_id, reference, amount_kobo, payout_type, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := q.Exec(ctx, query,
		payout.ID(), payout.ReferrerID(), payout.ReferredUserID(),
		payout.Reference(), payout.Amount().Kobo(), string(payout.Type()), payout.CreatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert referral payout: %w", err)
	}
	return nil
}

// SaveAdminAction appends an admin audit row.
func (r *AccountingRepository) SaveAdminAction(ctx context.Context, action *entities.AdminAction) error {
	q := r.getQuerier(ctx)
	query := `
		INSERT INTO admin_actions (id, admin_id, action, target_user, reference, note, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := q.Exec(ctx, query,
		action.ID(), action.AdminID(), action.Action(), action.TargetUser(),
		action.Reference(), action.Note(), action.CreatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert admin action: %w", err)
	}
	return nil
}
