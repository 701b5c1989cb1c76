package wallet

import (
	"context"
	"log/slog"
	"time"

	"github.com/ficore-africa/vas-backend/internal/application/ports"
	"github.com/ficore-africa/vas-backend/internal/domain/entities"
	"github.com/ficore-africa/vas-backend/internal/domain/errors"
)

const sweepBatchSize = 100

// ReleaseStaleReservationsUseCase frees holds whose purchase never resolved:
// a crash between reserve and provider response leaves a HELD reservation
// and a FAILED/"in-progress" ledger row. After ten minutes the money goes
// back to the user and the row is finalized.
type ReleaseStaleReservationsUseCase struct {
	walletRepo      ports.WalletRepository
	reservationRepo ports.ReservationRepository
	txRepo          ports.TransactionRepository
	uow             ports.UnitOfWork
	balanceCache    ports.BalanceCache
	logger          *slog.Logger
}

// NewReleaseStaleReservationsUseCase wires the sweeper.
func NewReleaseStaleReservationsUseCase(
	walletRepo ports.WalletRepository,
	reservationRepo ports.ReservationRepository,
	txRepo ports.TransactionRepository,
	uow ports.UnitOfWork,
	balanceCache ports.BalanceCache,
	logger *slog.Logger,
) *ReleaseStaleReservationsUseCase {
	return &ReleaseStaleReservationsUseCase{
		walletRepo:      walletRepo,
		reservationRepo: reservationRepo,
		txRepo:          txRepo,
		uow:             uow,
		balanceCache:    balanceCache,
		logger:          logger.With("usecase", "reservation_sweep"),
	}
}

// Execute releases one batch of stale holds. Returns how many were released;
// per-reservation failures are logged and skipped so one bad row cannot
// wedge the sweep.
func (uc *ReleaseStaleReservationsUseCase) Execute(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-entities.StaleReservationAge)
	stale, err := uc.reservationRepo.FindStaleHeld(ctx, cutoff, sweepBatchSize)
	if err != nil {
		return 0, err
	}

	released := 0
	for _, candidate := range stale {
		if err := uc.releaseOne(ctx, candidate); err != nil {
			uc.logger.ErrorContext(ctx, "failed to release stale reservation",
				"reservation_id", candidate.ID(), "user_id", candidate.UserID(), "error", err)
			continue
		}
		released++
		_ = uc.balanceCache.Invalidate(ctx, candidate.UserID())
		uc.logger.InfoContext(ctx, "released stale reservation",
			"reservation_id", candidate.ID(), "user_id", candidate.UserID(),
			"amount", candidate.Amount().String())
	}
	return released, nil
}

func (uc *ReleaseStaleReservationsUseCase) releaseOne(ctx context.Context, candidate *entities.Reservation) error {
	return uc.uow.ExecuteWithRetry(ctx, 3, func(txCtx context.Context) error {
		// Reload under the transaction; a settlement racing the sweep may
		// have committed it since the listing.
		reservation, err := uc.reservationRepo.FindByID(txCtx, candidate.ID())
		if err != nil {
			return err
		}
		if reservation.State() != entities.ReservationHeld {
			return nil
		}

		// Only orphaned holds are released: the ledger row is missing or
		// still FAILED/"in-progress". A PENDING row has a live settlement
		// task behind it whose retry schedule outlasts the stale cutoff;
		// releasing under it would refund a vend that already delivered.
		tx, err := uc.txRepo.FindByID(txCtx, reservation.TransactionID())
		if err != nil && !errors.IsNotFound(err) {
			return err
		}
		if tx != nil && tx.Status() != entities.VasStatusFailed {
			return nil
		}

		wallet, err := uc.walletRepo.FindByUserID(txCtx, reservation.UserID())
		if err != nil {
			return err
		}
		if err := wallet.ReleaseHold(reservation.Amount()); err != nil {
			return err
		}
		if err := reservation.Release(); err != nil {
			return err
		}
		if err := uc.reservationRepo.Save(txCtx, reservation); err != nil {
			return err
		}
		if err := uc.walletRepo.Save(txCtx, wallet); err != nil {
			return err
		}

		if tx != nil && !tx.IsTerminal() {
			if err := tx.MarkFailed("reservation expired without settlement"); err != nil {
				return err
			}
			return uc.txRepo.Update(txCtx, tx)
		}
		return nil
	})
}
