// Package postgres - WalletRepository with optimistic locking.
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

	"github.com/ficore-africa/vas-backend/internal/application/ports"
	"github.com/ficore-africa/vas-backend/internal/domain/entities"
	domainErrors "github.com/ficore-africa/vas-backend/internal/domain/errors"
	"github.com/ficore-africa/vas-backend/internal/domain/valueobjects"
)

// Compile-time check
var _ ports.WalletRepository = (*WalletRepository)(nil)

// WalletRepository stores wallets. Kobo amounts live in BIGINT columns; the
// reserved bank accounts are a JSONB blob because they are read as a unit
// and never queried individually.
type WalletRepository struct {
	pool *pgxpool.Pool
}

// NewWalletRepository creates a WalletRepository.
func NewWalletRepository(pool *pgxpool.Pool) *WalletRepository {
	return &WalletRepository{pool: pool}
}

func (r *WalletRepository) getQuerier(ctx context.Context) querier {
	if tx := extractTx(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const walletColumns = `
	id, user_id, status, balance_kobo, reserved_kobo, version,
	account_reference, accounts, pin_hash, pin_salt, pin_attempts,
	pin_locked_until, created_at, updated_at
`

// Save inserts a fresh wallet or updates an existing one with a version
// guard. A lost race returns ConcurrencyError; the caller re-reads and
// retries the whole cycle.
func (r *WalletRepository) Save(ctx context.Context, wallet *entities.Wallet) error {
	q := r.getQuerier(ctx)
	if wallet.Version() == 0 {
		return r.insert(ctx, q, wallet)
	}
	return r.update(ctx, q, wallet)
}

func (r *WalletRepository) insert(ctx context.Context, q querier, wallet *entities.Wallet) error {
	accounts, err := json.Marshal(accountRows(wallet.Accounts()))
	if err != nil {
		return fmt.Errorf("failed to marshal accounts: %w", err)
	}

	query := `
		INSERT INTO wallets (` + walletColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err = q.Exec(ctx, query,
		wallet.ID(), wallet.UserID(), string(wallet.Status()),
		wallet.Balance().Kobo(), wallet.Reserved().Kobo(), wallet.Version(),
		wallet.AccountReference(), accounts,
		wallet.PinHash(), wallet.PinSalt(), wallet.PinAttempts(),
		wallet.PinLockedUntil(), wallet.CreatedAt(), wallet.UpdatedAt(),
	)
	if err != nil {
		if isUniqueViolation(err, "wallets_user_id_key") {
			return domainErrors.NewDomainError(
				"WALLET_ALREADY_EXISTS",
				fmt.Sprintf("wallet already exists for user %s", wallet.UserID()),
				domainErrors.ErrWalletAlreadySetup,
			)
		}
		if isForeignKeyViolation(err) {
			return domainErrors.NewDomainError("USER_NOT_FOUND", "user not found", err)
		}
		return fmt.Errorf("failed to insert wallet: %w", err)
	}
	return nil
}

func (r *WalletRepository) update(ctx context.Context, q querier, wallet *entities.Wallet) error {
	accounts, err := json.Marshal(accountRows(wallet.Accounts()))
	if err != nil {
		return fmt.Errorf("failed to marshal accounts: %w", err)
	}

	// The entity bumped its version on mutation, so the row must still hold
	// version-1 for this write to win.
	query := `
		UPDATE wallets SET
			status = $2, balance_kobo = $3, reserved_kobo = $4, version = $5,
			account_reference = $6, accounts = $7, pin_hash = $8, pin_salt = $9,
			pin_attempts = $10, pin_locked_until = $11, updated_at = $12
		WHERE id = $1 AND version = $13
	`
	expectedVersion := wallet.Version() - 1

	result, err := q.Exec(ctx, query,
		wallet.ID(), string(wallet.Status()),
		wallet.Balance().Kobo(), wallet.Reserved().Kobo(), wallet.Version(),
		wallet.AccountReference(), accounts,
		wallet.PinHash(), wallet.PinSalt(), wallet.PinAttempts(),
		wallet.PinLockedUntil(), wallet.UpdatedAt(),
		expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to update wallet: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domainErrors.NewConcurrencyError(
			"Wallet", wallet.ID().String(),
			fmt.Sprintf("wallet was modified by another transaction (expected version: %d)", expectedVersion),
		)
	}
	return nil
}

// FindByUserID loads a user's wallet.
func (r *WalletRepository) FindByUserID(ctx context.Context, userID uuid.UUID) (*entities.Wallet, error) {
	q := r.getQuerier(ctx)
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE user_id = $1`
	return r.scanWallet(q.QueryRow(ctx, query, userID))
}

// FindByAccountReference resolves a funding webhook's reserved-account
// reference to its wallet.
func (r *WalletRepository) FindByAccountReference(ctx context.Context, reference string) (*entities.Wallet, error) {
	q := r.getQuerier(ctx)
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE account_reference = $1`
	return r.scanWallet(q.QueryRow(ctx, query, reference))
}

// ExistsByUserID checks wallet existence without hydrating the row.
func (r *WalletRepository) ExistsByUserID(ctx context.Context, userID uuid.UUID) (bool, error) {
	q := r.getQuerier(ctx)
	var exists bool
	err := q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM wallets WHERE user_id = $1)`, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check wallet existence: %w", err)
	}
	return exists, nil
}

// accountRow is the JSONB shape of one reserved bank account.
type accountRow struct {
	BankName      string `json:"bank_name"`
	BankCode      string `json:"bank_code"`
	AccountNumber string `json:"account_number"`
	AccountName   string `json:"account_name"`
}

func accountRows(accounts []entities.ReservedAccount) []accountRow {
	rows := make([]accountRow, 0, len(accounts))
	for _, a := range accounts {
		rows = append(rows, accountRow(a))
	}
	return rows
}

func (r *WalletRepository) scanWallet(row pgx.Row) (*entities.Wallet, error) {
	var (
		id, userID           uuid.UUID
		statusStr            string
		balanceKobo          int64
		reservedKobo         int64
		version              int64
		accountReference     string
		accountsJSON         []byte
		pinHash, pinSalt     string
		pinAttempts          int
		pinLockedUntil       *time.Time
		createdAt, updatedAt time.Time
	)

	err := row.Scan(
		&id, &userID, &statusStr, &balanceKobo, &reservedKobo, &version,
		&accountReference, &accountsJSON, &pinHash, &pinSalt, &pinAttempts,
		&pinLockedUntil, &createdAt, &updatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrWalletNotFound
		}
		return nil, fmt.Errorf("failed to scan wallet: %w", err)
	}

	var rows []accountRow
	if len(accountsJSON) > 0 {
		if err := json.Unmarshal(accountsJSON, &rows); err != nil {
			return nil, fmt.Errorf("invalid accounts payload in database: %w", err)
		}
	}
	accounts := make([]entities.ReservedAccount, 0, len(rows))
	for _, a := range rows {
		accounts = append(accounts, entities.ReservedAccount(a))
	}

	return entities.ReconstructWallet(
		id, userID,
		entities.WalletStatus(statusStr),
		valueobjects.FromKobo(balanceKobo), valueobjects.FromKobo(reservedKobo),
		version, accountReference, accounts,
		pinHash, pinSalt, pinAttempts, pinLockedUntil,
		createdAt, updatedAt,
	), nil
}
