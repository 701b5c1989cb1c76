// Package wallet holds the wallet-facing use cases: account creation,
// balance reads, PIN management, admin adjustments, transaction listings and
// the stale-reservation sweep.
package wallet

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/ficore-africa/vas-backend/internal/application/dtos"
	"github.com/ficore-africa/vas-backend/internal/application/ports"
	"github.com/ficore-africa/vas-backend/internal/domain/entities"
	"github.com/ficore-africa/vas-backend/internal/domain/errors"
)

// AccountReference builds the funding-provider reference for a user. Deposit
// webhooks are matched back to the wallet on this value.
func AccountReference(userID uuid.UUID) string {
	return "FICORE" + strings.ReplaceAll(userID.String(), "-", "")
}

// CreateWalletUseCase provisions a wallet and its reserved bank accounts.
type CreateWalletUseCase struct {
	walletRepo  ports.WalletRepository
	uow         ports.UnitOfWork
	provisioner ports.AccountProvisioner
	logger      *slog.Logger
}

// NewCreateWalletUseCase wires wallet provisioning.
func NewCreateWalletUseCase(
	walletRepo ports.WalletRepository,
	uow ports.UnitOfWork,
	provisioner ports.AccountProvisioner,
	logger *slog.Logger,
) *CreateWalletUseCase {
	return &CreateWalletUseCase{
		walletRepo:  walletRepo,
		uow:         uow,
		provisioner: provisioner,
		logger:      logger.With("usecase", "create_wallet"),
	}
}

// Execute creates the wallet row first, then asks the funding provider for
// reserved accounts. A provider outage still leaves a usable wallet; the
// accounts attach on the next call, keyed to the same reference.
func (uc *CreateWalletUseCase) Execute(ctx context.Context, cmd dtos.CreateWalletCommand) (*dtos.WalletDTO, error) {
	if cmd.UserID == uuid.Nil {
		return nil, errors.ValidationError{Field: "user_id", Message: "user ID is required"}
	}

	reference := AccountReference(cmd.UserID)

	wallet, err := uc.walletRepo.FindByUserID(ctx, cmd.UserID)
	switch {
	case err == nil:
		if len(wallet.Accounts()) > 0 {
			// Fully provisioned already; creation is idempotent.
			dto := dtos.WalletToDTO(wallet)
			return &dto, nil
		}
	case errors.IsNotFound(err):
		wallet, err = entities.NewWallet(cmd.UserID, reference)
		if err != nil {
			return nil, err
		}
		if err := uc.uow.Execute(ctx, func(txCtx context.Context) error {
			return uc.walletRepo.Save(txCtx, wallet)
		}); err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	accounts, err := uc.provisioner.CreateReservedAccounts(ctx, cmd.UserID, reference, cmd.AccountName, cmd.Email)
	if err != nil {
		uc.logger.WarnContext(ctx, "reserved account provisioning failed, wallet created without accounts",
			"user_id", cmd.UserID, "error", err)
		dto := dtos.WalletToDTO(wallet)
		return &dto, fmt.Errorf("wallet created, account provisioning pending: %w", err)
	}

	err = uc.uow.ExecuteWithRetry(ctx, 3, func(txCtx context.Context) error {
		fresh, err := uc.walletRepo.FindByUserID(txCtx, cmd.UserID)
		if err != nil {
			return err
		}
		fresh.AttachAccounts(reference, accounts)
		if err := uc.walletRepo.Save(txCtx, fresh); err != nil {
			return err
		}
		wallet = fresh
		return nil
	})
	if err != nil {
		return nil, err
	}

	dto := dtos.WalletToDTO(wallet)
	return &dto, nil
}
