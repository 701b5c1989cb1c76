package purchase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ficore-africa/vas-backend/internal/application/ports"
	"github.com/ficore-africa/vas-backend/internal/application/pricing"
	"github.com/ficore-africa/vas-backend/internal/domain/entities"
	"github.com/ficore-africa/vas-backend/internal/domain/events"
	"github.com/ficore-africa/vas-backend/internal/domain/valueobjects"
)

// SettleTransactionUseCase runs the durable tail of a purchase: commit the
// hold, promote the ledger row, write the accounting rows and referral share,
// and emit events. The worker feeds it claimed tasks.
//
// Two phases, each atomic, each idempotent:
//
//	phase 1: reservation COMMITTED + wallet debit (skipped if already done)
//	phase 2: everything else, all-or-nothing; a retry after a phase-2 crash
//	         reruns it cleanly because nothing of phase 2 was committed
type SettleTransactionUseCase struct {
	walletRepo      ports.WalletRepository
	reservationRepo ports.ReservationRepository
	txRepo          ports.TransactionRepository
	userRepo        ports.UserRepository
	accountingRepo  ports.AccountingRepository
	uow             ports.UnitOfWork
	outbox          ports.OutboxRepository
	balanceCache    ports.BalanceCache
	logger          *slog.Logger
}

// NewSettleTransactionUseCase wires the settlement pipeline.
func NewSettleTransactionUseCase(
	walletRepo ports.WalletRepository,
	reservationRepo ports.ReservationRepository,
	txRepo ports.TransactionRepository,
	userRepo ports.UserRepository,
	accountingRepo ports.AccountingRepository,
	uow ports.UnitOfWork,
	outbox ports.OutboxRepository,
	balanceCache ports.BalanceCache,
	logger *slog.Logger,
) *SettleTransactionUseCase {
	return &SettleTransactionUseCase{
		walletRepo:      walletRepo,
		reservationRepo: reservationRepo,
		txRepo:          txRepo,
		userRepo:        userRepo,
		accountingRepo:  accountingRepo,
		uow:             uow,
		outbox:          outbox,
		balanceCache:    balanceCache,
		logger:          logger.With("usecase", "settle_transaction"),
	}
}

// Execute settles one claimed task. Any returned error sends the task back
// through the backoff schedule.
func (uc *SettleTransactionUseCase) Execute(ctx context.Context, task *entities.TransactionTask) error {
	payload, err := task.SettlementPayload()
	if err != nil {
		return fmt.Errorf("decode settlement payload: %w", err)
	}

	newBalance, err := uc.commitReservation(ctx, payload)
	if err != nil {
		return fmt.Errorf("commit reservation: %w", err)
	}
	_ = uc.balanceCache.Invalidate(ctx, payload.UserID)

	if err := uc.finalize(ctx, payload, newBalance); err != nil {
		return fmt.Errorf("finalize settlement: %w", err)
	}
	return nil
}

// commitReservation is phase 1. Idempotent: a COMMITTED reservation means a
// prior run already debited the wallet in the same transaction.
func (uc *SettleTransactionUseCase) commitReservation(ctx context.Context, payload entities.SettlementPayload) (valueobjects.Money, error) {
	var newBalance valueobjects.Money
	err := uc.uow.ExecuteWithRetry(ctx, conflictRetries, func(txCtx context.Context) error {
		reservation, err := uc.reservationRepo.FindByID(txCtx, payload.ReservationID)
		if err != nil {
			return err
		}
		wallet, err := uc.walletRepo.FindByUserID(txCtx, payload.UserID)
		if err != nil {
			return err
		}

		if reservation.State() != entities.ReservationHeld {
			// Already committed by a prior attempt; released would mean the
			// abort path ran against a vended purchase, which Commit rejects
			// below and we surface loudly.
			if err := reservation.Commit(); err != nil {
				return err
			}
			newBalance = wallet.Balance()
			return nil
		}

		if err := wallet.CommitHold(reservation.Amount()); err != nil {
			return err
		}
		if err := reservation.Commit(); err != nil {
			return err
		}
		if err := uc.reservationRepo.Save(txCtx, reservation); err != nil {
			return err
		}
		if err := uc.walletRepo.Save(txCtx, wallet); err != nil {
			return err
		}
		newBalance = wallet.Balance()
		return nil
	})
	return newBalance, err
}

// finalize is phase 2: ledger promotion, delivery check, economics, referral
// fan-out and events in one transaction.
func (uc *SettleTransactionUseCase) finalize(ctx context.Context, payload entities.SettlementPayload, newBalance valueobjects.Money) error {
	return uc.uow.ExecuteWithRetry(ctx, conflictRetries, func(txCtx context.Context) error {
		tx, err := uc.txRepo.FindByID(txCtx, payload.TransactionID)
		if err != nil {
			return err
		}
		if tx.Status() == entities.VasStatusSuccess {
			// A prior run finished phase 2 but crashed before marking the
			// task done. Nothing left to do.
			return nil
		}

		batch := make([]events.DomainEvent, 0, 8)

		// Delivered-product check. Mismatch flags, never fails: the user was
		// served something and reversal is a human decision.
		if tx.Type() == entities.VasTypeData {
			delivered, hasAmount := parseDeliveredAmount(payload.DeliveredAmount)
			if ok, detail := checkDelivery(tx.DataPlanName(), tx.Amount(), payload.DeliveredProduct, delivered, hasAmount); !ok {
				tx.FlagReconciliation()
				mismatch := entities.NewPlanMismatchLog(
					tx.ID(), tx.DataPlanName(), payload.DeliveredProduct,
					tx.Amount(), delivered, true,
				)
				if err := uc.accountingRepo.SaveMismatchLog(txCtx, mismatch); err != nil {
					return err
				}
				batch = append(batch, events.NewAdminNotification(tx.ID(),
					"data plan delivery mismatch",
					detail,
					map[string]interface{}{
						"transaction_id": tx.ID().String(),
						"reference":      tx.RequestID(),
						"provider":       payload.Provider,
					}))
				uc.logger.WarnContext(txCtx, "delivered product diverges from request",
					"reference", tx.RequestID(), "detail", detail)
			}
		}

		econ := pricing.ComputeVasEconomics(entities.Provider(payload.Provider), tx.Type(), tx.Amount())
		tx.SetEconomics(econ.ProviderCost, econ.ProviderCommission, econ.Rate, econ.GatewayFee, econ.NetMargin)

		if err := tx.MarkSuccess(payload.TransactionReference); err != nil {
			return err
		}
		if err := uc.txRepo.Update(txCtx, tx); err != nil {
			return err
		}

		userID := tx.UserID()
		revenue := entities.NewRevenueEntry(
			entities.RevenueVasCommission, econ.NetMargin, tx.RequestID(),
			fmt.Sprintf("%s commission on %s", payload.Provider, tx.Type()), &userID,
		)
		if err := uc.accountingRepo.SaveRevenueEntry(txCtx, revenue); err != nil {
			return err
		}
		batch = append(batch,
			events.NewRevenueRecorded(revenue.ID(), string(revenue.Type()), revenue.Amount(), revenue.Reference()),
			events.NewLedgerExpenseRecorded(userID, tx.TotalAmount(), tx.Subtype(), tx.RequestID(),
				fmt.Sprintf("%s %s purchase for %s", tx.Network(), tx.Subtype(), tx.PhoneNumber())),
			events.NewWalletDebited(payload.ReservationID, userID, tx.TotalAmount(), tx.RequestID(), newBalance),
		)

		referralEvents, err := uc.payReferralShare(txCtx, tx)
		if err != nil {
			return err
		}
		batch = append(batch, referralEvents...)

		batch = append(batch,
			events.NewUserNotification(userID, "purchase",
				"Purchase successful",
				fmt.Sprintf("Your %s %s purchase of %s for %s is complete.",
					tx.Network(), tx.Subtype(), tx.TotalAmount(), tx.PhoneNumber()),
				map[string]interface{}{"reference": tx.RequestID()}),
			events.NewPurchaseSettled(tx.ID(), userID, tx.RequestID(), tx.TotalAmount(), payload.Provider),
		)

		return uc.outbox.SaveBatch(txCtx, batch)
	})
}

// payReferralShare credits the 1% VAS share when the buyer was referred and
// the referrer's 90-day window is still open.
func (uc *SettleTransactionUseCase) payReferralShare(ctx context.Context, tx *entities.VasTransaction) ([]events.DomainEvent, error) {
	buyer, err := uc.userRepo.FindByID(ctx, tx.UserID())
	if err != nil {
		return nil, err
	}
	if buyer.ReferredBy() == nil {
		return nil, nil
	}
	referrer, err := uc.userRepo.FindByID(ctx, *buyer.ReferredBy())
	if err != nil {
		return nil, err
	}
	now := time.Now()
	if !referrer.VasShareActive(now) {
		return nil, nil
	}

	share := pricing.ReferralShare(tx.Amount())
	if !share.IsPositive() {
		return nil, nil
	}

	referrer.CreditWithdrawable(share)
	if err := uc.userRepo.Save(ctx, referrer); err != nil {
		return nil, err
	}

	payout := entities.NewReferralPayout(referrer.ID(), buyer.ID(), tx.RequestID(), share)
	if err := uc.accountingRepo.SaveReferralPayout(ctx, payout); err != nil {
		return nil, err
	}

	referrerID := referrer.ID()
	cost := entities.NewRevenueEntry(
		entities.RevenueReferralPayout, share.Neg(), tx.RequestID(),
		"referral VAS share payout", &referrerID,
	)
	if err := uc.accountingRepo.SaveRevenueEntry(ctx, cost); err != nil {
		return nil, err
	}

	return []events.DomainEvent{
		events.NewReferralPayoutRecorded(payout.ID(), referrer.ID(), buyer.ID(), share, tx.RequestID()),
		events.NewLedgerIncomeRecorded(referrer.ID(), share, "referral", tx.RequestID(),
			"1% VAS share from a referred user's purchase"),
		events.NewRevenueRecorded(cost.ID(), string(cost.Type()), cost.Amount(), cost.Reference()),
	}, nil
}

// HandleExhaustion records that settlement gave up after the retry budget.
// The user was served by the provider; the row stays SUCCESS-bound but is
// flagged, and the on-call gets paged.
func (uc *SettleTransactionUseCase) HandleExhaustion(ctx context.Context, task *entities.TransactionTask, cause string) error {
	payload, err := task.SettlementPayload()
	if err != nil {
		return err
	}
	return uc.uow.Execute(ctx, func(txCtx context.Context) error {
		tx, err := uc.txRepo.FindByID(txCtx, payload.TransactionID)
		if err != nil {
			return err
		}
		tx.FlagSettlementFailure()
		if err := uc.txRepo.UpdateFlags(txCtx, tx); err != nil {
			return err
		}
		return uc.outbox.Save(txCtx, events.NewOperatorAlert(tx.ID(),
			"settlement_worker",
			fmt.Sprintf("settlement exhausted %d attempts: %s", entities.MaxTaskAttempts, cause),
			payload.Reference))
	})
}

// parseDeliveredAmount decodes the optional delivered amount from the task
// payload.
func parseDeliveredAmount(s string) (valueobjects.Money, bool) {
	if s == "" {
		return valueobjects.Zero(), false
	}
	m, err := valueobjects.Parse(s)
	if err != nil {
		return valueobjects.Zero(), false
	}
	return m, true
}
