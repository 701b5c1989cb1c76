// Package postgres - TransactionRepository, the VAS ledger.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/ficore-africa/vas-backend/internal/application/ports"
	"github.com/ficore-africa/vas-backend/internal/domain/entities"
	domainErrors "github.com/ficore-africa/vas-backend/internal/domain/errors"
	"github.com/ficore-africa/vas-backend/internal/domain/valueobjects"
)

// Compile-time check
var _ ports.TransactionRepository = (*TransactionRepository)(nil)

// TransactionRepository stores ledger rows. The unique indexes on request_id
// and transaction_reference make idempotency a database guarantee rather
// than an application promise. Status updates carry a terminal guard in the
// WHERE clause: SQL refuses to resurrect a finished row.
type TransactionRepository struct {
	pool *pgxpool.Pool
}

// NewTransactionRepository creates a TransactionRepository.
func NewTransactionRepository(pool *pgxpool.Pool) *TransactionRepository {
	return &TransactionRepository{pool: pool}
}

func (r *TransactionRepository) getQuerier(ctx context.Context) querier {
	if tx := extractTx(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const txColumns = `
	id, user_id, type, subtype, amount_kobo, selling_price_kobo, total_amount_kobo,
	status, failure_reason, provider, network, phone_number, data_plan_id, data_plan_name,
	request_id, transaction_reference, provider_cost_kobo, provider_commission_kobo,
	provider_commission_rate, gateway_fee_kobo, net_margin_kobo, is_premium_user,
	needs_reconciliation, provider_confirmed, settlement_failed, metadata,
	created_at, completed_at, expires_at
`

// Create inserts a ledger row.
func (r *TransactionRepository) Create(ctx context.Context, tx *entities.VasTransaction) error {
	q := r.getQuerier(ctx)

	metadata, err := json.Marshal(tx.Metadata())
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	query := `
		INSERT INTO vas_transactions (` + txColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
		        $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29)
	`
	_, err = q.Exec(ctx, query,
		tx.ID(), tx.UserID(), string(tx.Type()), tx.Subtype(),
		tx.Amount().Kobo(), tx.SellingPrice().Kobo(), tx.TotalAmount().Kobo(),
		string(tx.Status()), tx.FailureReason(), string(tx.Provider()),
		tx.Network(), tx.PhoneNumber(), tx.DataPlanID(), tx.DataPlanName(),
		tx.RequestID(), nullableString(tx.TransactionReference()),
		tx.ProviderCost().Kobo(), tx.ProviderCommission().Kobo(),
		tx.ProviderCommissionRate().String(),
		tx.GatewayFee().Kobo(), tx.NetMargin().Kobo(), tx.IsPremiumUser(),
		tx.NeedsReconciliation(), tx.ProviderConfirmed(), tx.SettlementFailed(),
		metadata, tx.CreatedAt(), tx.CompletedAt(), tx.ExpiresAt(),
	)
	if err != nil {
		if isUniqueViolation(err, "") {
			return fmt.Errorf("%w: %s", domainErrors.ErrDuplicateRequest, tx.RequestID())
		}
		return fmt.Errorf("failed to insert transaction: %w", err)
	}
	return nil
}

// Update persists status and settlement fields. The WHERE clause only
// matches non-terminal rows; updating a terminal row returns
// ErrTransactionTerminal.
func (r *TransactionRepository) Update(ctx context.Context, tx *entities.VasTransaction) error {
	q := r.getQuerier(ctx)

	metadata, err := json.Marshal(tx.Metadata())
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	query := `
		UPDATE vas_transactions SET
			status = $2, failure_reason = $3, provider = $4,
			transaction_reference = $5,
			provider_cost_kobo = $6, provider_commission_kobo = $7,
			provider_commission_rate = $8, gateway_fee_kobo = $9, net_margin_kobo = $10,
			needs_reconciliation = $11, provider_confirmed = $12, settlement_failed = $13,
			metadata = $14, completed_at = $15
		WHERE id = $1
		  AND (status = 'PENDING' OR (status = 'FAILED' AND failure_reason = $16))
	`
	result, err := q.Exec(ctx, query,
		tx.ID(), string(tx.Status()), tx.FailureReason(), string(tx.Provider()),
		nullableString(tx.TransactionReference()),
		tx.ProviderCost().Kobo(), tx.ProviderCommission().Kobo(),
		tx.ProviderCommissionRate().String(),
		tx.GatewayFee().Kobo(), tx.NetMargin().Kobo(),
		tx.NeedsReconciliation(), tx.ProviderConfirmed(), tx.SettlementFailed(),
		metadata, tx.CompletedAt(),
		entities.FailureReasonInProgress,
	)
	if err != nil {
		if isUniqueViolation(err, "") {
			return fmt.Errorf("%w: %s", domainErrors.ErrDuplicateRequest, tx.TransactionReference())
		}
		return fmt.Errorf("failed to update transaction: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domainErrors.ErrTransactionTerminal
	}
	return nil
}

// UpdateFlags persists the side flags only. Side flags are the one legal
// write to a terminal row.
func (r *TransactionRepository) UpdateFlags(ctx context.Context, tx *entities.VasTransaction) error {
	q := r.getQuerier(ctx)
	query := `
		UPDATE vas_transactions SET
			needs_reconciliation = $2, provider_confirmed = $3, settlement_failed = $4
		WHERE id = $1
	`
	result, err := q.Exec(ctx, query,
		tx.ID(), tx.NeedsReconciliation(), tx.ProviderConfirmed(), tx.SettlementFailed(),
	)
	if err != nil {
		return fmt.Errorf("failed to update transaction flags: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domainErrors.ErrTransactionNotFound
	}
	return nil
}

// FindByID loads a ledger row.
func (r *TransactionRepository) FindByID(ctx context.Context, id uuid.UUID) (*entities.VasTransaction, error) {
	q := r.getQuerier(ctx)
	query := `SELECT ` + txColumns + ` FROM vas_transactions WHERE id = $1`
	return r.scanTransaction(q.QueryRow(ctx, query, id))
}

// FindByRequestID resolves the internal request id.
func (r *TransactionRepository) FindByRequestID(ctx context.Context, requestID string) (*entities.VasTransaction, error) {
	q := r.getQuerier(ctx)
	query := `SELECT ` + txColumns + ` FROM vas_transactions WHERE request_id = $1`
	return r.scanTransaction(q.QueryRow(ctx, query, requestID))
}

// FindByReference resolves the provider-side transaction reference.
func (r *TransactionRepository) FindByReference(ctx context.Context, reference string) (*entities.VasTransaction, error) {
	q := r.getQuerier(ctx)
	query := `SELECT ` + txColumns + ` FROM vas_transactions WHERE transaction_reference = $1`
	return r.scanTransaction(q.QueryRow(ctx, query, reference))
}

// FindRecentSuccess is the duplicate-click guard.
func (r *TransactionRepository) FindRecentSuccess(ctx context.Context, userID uuid.UUID, vasType entities.VasType, amount valueobjects.Money, phoneNumber string, window time.Duration) (*entities.VasTransaction, error) {
	return r.findRecent(ctx, userID, vasType, amount, phoneNumber, window, "SUCCESS")
}

// FindPendingDuplicate finds an in-flight row for the same intention.
func (r *TransactionRepository) FindPendingDuplicate(ctx context.Context, userID uuid.UUID, vasType entities.VasType, amount valueobjects.Money, phoneNumber string, window time.Duration) (*entities.VasTransaction, error) {
	return r.findRecent(ctx, userID, vasType, amount, phoneNumber, window, "PENDING")
}

func (r *TransactionRepository) findRecent(ctx context.Context, userID uuid.UUID, vasType entities.VasType, amount valueobjects.Money, phoneNumber string, window time.Duration, status string) (*entities.VasTransaction, error) {
	q := r.getQuerier(ctx)
	query := `
		SELECT ` + txColumns + `
		FROM vas_transactions
		WHERE user_id = $1 AND type = $2 AND amount_kobo = $3
		  AND phone_number = $4 AND status = $5 AND created_at > $6
		ORDER BY created_at DESC
		LIMIT 1
	`
	cutoff := time.Now().Add(-window)
	tx, err := r.scanTransaction(q.QueryRow(ctx, query,
		userID, string(vasType), amount.Kobo(), phoneNumber, status, cutoff))
	if err != nil {
		if errors.Is(err, domainErrors.ErrTransactionNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return tx, nil
}

// List pages through the ledger with optional filters, newest first.
func (r *TransactionRepository) List(ctx context.Context, filter ports.TransactionFilter, offset, limit int) ([]*entities.VasTransaction, error) {
	q := r.getQuerier(ctx)

	query := `SELECT ` + txColumns + ` FROM vas_transactions WHERE 1=1`
	args := []interface{}{}
	argNum := 1

	if filter.UserID != nil {
		query += fmt.Sprintf(" AND user_id = $%d", argNum)
		args = append(args, *filter.UserID)
		argNum++
	}
	if filter.Type != nil {
		query += fmt.Sprintf(" AND type = $%d", argNum)
		args = append(args, string(*filter.Type))
		argNum++
	}
	if filter.Status != nil {
		query += fmt.Sprintf(" AND status = $%d", argNum)
		args = append(args, string(*filter.Status))
		argNum++
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC OFFSET $%d LIMIT $%d", argNum, argNum+1)
	args = append(args, offset, limit)

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var out []*entities.VasTransaction
	for rows.Next() {
		tx, err := r.scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

// Count returns the filtered total for pagination.
func (r *TransactionRepository) Count(ctx context.Context, filter ports.TransactionFilter) (int, error) {
	q := r.getQuerier(ctx)

	query := `SELECT COUNT(*) FROM vas_transactions WHERE 1=1`
	args := []interface{}{}
	argNum := 1

	if filter.UserID != nil {
		query += fmt.Sprintf(" AND user_id = $%d", argNum)
		args = append(args, *filter.UserID)
		argNum++
	}
	if filter.Type != nil {
		query += fmt.Sprintf(" AND type = $%d", argNum)
		args = append(args, string(*filter.Type))
		argNum++
	}
	if filter.Status != nil {
		query += fmt.Sprintf(" AND status = $%d", argNum)
		args = append(args, string(*filter.Status))
		argNum++
	}

	var count int
	if err := q.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	return count, nil
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (r *TransactionRepository) scanTransaction(row pgx.Row) (*entities.VasTransaction, error) {
	var (
		id, userID                         uuid.UUID
		typeStr, subtype                   string
		amountKobo, sellingKobo, totalKobo int64
		statusStr, failureReason           string
		providerStr                        string
		network, phoneNumber               string
		dataPlanID, dataPlanName           string
		requestID                          string
		transactionReference               *string
		costKobo, commissionKobo           int64
		rateStr                            string
		gatewayKobo, marginKobo            int64
		isPremium                          bool
		needsRecon, confirmed, settleFail  bool
		metadataJSON                       []byte
		createdAt                          time.Time
		completedAt, expiresAt             *time.Time
	)

	err := row.Scan(
		&id, &userID, &typeStr, &subtype, &amountKobo, &sellingKobo, &totalKobo,
		&statusStr, &failureReason, &providerStr, &network, &phoneNumber,
		&dataPlanID, &dataPlanName, &requestID, &transactionReference,
		&costKobo, &commissionKobo, &rateStr, &gatewayKobo, &marginKobo, &isPremium,
		&needsRecon, &confirmed, &settleFail, &metadataJSON,
		&createdAt, &completedAt, &expiresAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrTransactionNotFound
		}
		return nil, fmt.Errorf("failed to scan transaction: %w", err)
	}

	rate, err := decimal.NewFromString(rateStr)
	if err != nil {
		return nil, fmt.Errorf("invalid commission rate in database: %w", err)
	}

	var metadata map[string]interface{}
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &metadata); err != nil {
			return nil, fmt.Errorf("invalid metadata payload in database: %w", err)
		}
	}

	reference := ""
	if transactionReference != nil {
		reference = *transactionReference
	}

	return entities.ReconstructVasTransaction(
		id, userID,
		entities.VasType(typeStr), subtype,
		valueobjects.FromKobo(amountKobo), valueobjects.FromKobo(sellingKobo), valueobjects.FromKobo(totalKobo),
		entities.VasStatus(statusStr), failureReason,
		entities.Provider(providerStr),
		network, phoneNumber, dataPlanID, dataPlanName,
		requestID, reference,
		valueobjects.FromKobo(costKobo), valueobjects.FromKobo(commissionKobo),
		rate,
		valueobjects.FromKobo(gatewayKobo), valueobjects.FromKobo(marginKobo),
		isPremium, needsRecon, confirmed, settleFail,
		metadata, createdAt, completedAt, expiresAt,
	), nil
}
