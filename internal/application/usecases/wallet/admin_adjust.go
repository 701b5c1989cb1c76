package wallet

import (
	"context"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ficore-africa/vas-backend/internal/application/dtos"
	"github.com/ficore-africa/vas-backend/internal/application/ports"
	"github.com/ficore-africa/vas-backend/internal/domain/entities"
	"github.com/ficore-africa/vas-backend/internal/domain/errors"
	"github.com/ficore-africa/vas-backend/internal/domain/events"
	"github.com/ficore-africa/vas-backend/internal/domain/valueobjects"
)

// AdminAdjustUseCase applies manual refunds and deductions. Idempotent on the
// caller-supplied reference: replaying a reference returns the original row
// without moving money again.
type AdminAdjustUseCase struct {
	walletRepo   ports.WalletRepository
	txRepo       ports.TransactionRepository
	accounting   ports.AccountingRepository
	uow          ports.UnitOfWork
	outbox       ports.OutboxRepository
	balanceCache ports.BalanceCache
	logger       *slog.Logger
}

// NewAdminAdjustUseCase wires admin adjustments.
func NewAdminAdjustUseCase(
	walletRepo ports.WalletRepository,
	txRepo ports.TransactionRepository,
	accounting ports.AccountingRepository,
	uow ports.UnitOfWork,
	outbox ports.OutboxRepository,
	balanceCache ports.BalanceCache,
	logger *slog.Logger,
) *AdminAdjustUseCase {
	return &AdminAdjustUseCase{
		walletRepo:   walletRepo,
		txRepo:       txRepo,
		accounting:   accounting,
		uow:          uow,
		outbox:       outbox,
		balanceCache: balanceCache,
		logger:       logger.With("usecase", "admin_adjust"),
	}
}

// Execute applies the adjustment.
func (uc *AdminAdjustUseCase) Execute(ctx context.Context, cmd dtos.AdminAdjustCommand) (*dtos.TransactionDTO, error) {
	reference := strings.TrimSpace(cmd.Reference)
	if reference == "" {
		return nil, errors.ValidationError{Field: "reference", Message: "idempotency reference is required"}
	}
	if strings.TrimSpace(cmd.Reason) == "" {
		return nil, errors.ValidationError{Field: "reason", Message: "a reason is required for audit"}
	}
	amount, err := valueobjects.Parse(cmd.Amount)
	if err != nil {
		return nil, errors.ValidationError{Field: "amount", Message: err.Error()}
	}
	if !amount.IsPositive() {
		return nil, errors.ValidationError{Field: "amount", Message: "amount must be positive"}
	}

	// Replay check outside the write transaction: the unique index on the
	// reference closes the race for concurrent firsts.
	if prior, err := uc.txRepo.FindByRequestID(ctx, reference); err == nil && prior != nil {
		dto := dtos.TransactionToDTO(prior)
		return &dto, nil
	}

	vasType := entities.VasTypeAdminRefund
	action := "REFUND"
	if cmd.Deduct {
		vasType = entities.VasTypeAdminDeduction
		action = "DEDUCTION"
	}

	var result *entities.VasTransaction
	err = uc.uow.ExecuteWithRetry(ctx, 3, func(txCtx context.Context) error {
		wallet, err := uc.walletRepo.FindByUserID(txCtx, cmd.UserID)
		if err != nil {
			return err
		}

		tx, err := entities.NewVasTransaction(cmd.UserID, vasType, amount, reference)
		if err != nil {
			return err
		}

		var evt events.DomainEvent
		if cmd.Deduct {
			if err := wallet.Debit(amount); err != nil {
				return err
			}
			evt = events.NewWalletDebited(wallet.ID(), cmd.UserID, amount, reference, wallet.Balance())
		} else {
			if err := wallet.Credit(amount); err != nil {
				return err
			}
			evt = events.NewWalletCredited(wallet.ID(), cmd.UserID, amount, reference, wallet.Balance())
		}

		if err := tx.MarkSuccess(reference); err != nil {
			return err
		}
		tx.SetMetadata("admin_id", cmd.AdminID.String())
		tx.SetMetadata("reason", cmd.Reason)

		if err := uc.txRepo.Create(txCtx, tx); err != nil {
			return err
		}
		if err := uc.walletRepo.Save(txCtx, wallet); err != nil {
			return err
		}

		audit := entities.NewAdminAction(cmd.AdminID, action, cmd.UserID, reference, cmd.Reason)
		if err := uc.accounting.SaveAdminAction(txCtx, audit); err != nil {
			return err
		}

		result = tx
		return uc.outbox.SaveBatch(txCtx, []events.DomainEvent{
			evt,
			events.NewUserNotification(cmd.UserID, "adjustment",
				fmt.Sprintf("Wallet %s", strings.ToLower(action)),
				fmt.Sprintf("An adjustment of %s was applied to your wallet: %s", amount, cmd.Reason),
				map[string]interface{}{"reference": reference}),
		})
	})
	if err != nil {
		// A duplicate insert means a concurrent request with this reference
		// won the race; serve its row.
		if stdErrors.Is(err, errors.ErrDuplicateRequest) {
			if prior, findErr := uc.txRepo.FindByRequestID(ctx, reference); findErr == nil && prior != nil {
				dto := dtos.TransactionToDTO(prior)
				return &dto, nil
			}
		}
		return nil, err
	}

	_ = uc.balanceCache.Invalidate(ctx, cmd.UserID)
	dto := dtos.TransactionToDTO(result)
	return &dto, nil
}
