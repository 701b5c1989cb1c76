// Package purchase - the end-to-end purchase pipeline.
//
// Ordering is deliberate and crash-honest:
//
//  1. ledger row first (FAILED, reason "in-progress")
//  2. reservation second (funds held, balance untouched)
//  3. provider vend third (outside any database transaction)
//  4. on success: enqueue settlement; the debit happens in the worker
//  5. on failure: release the hold, finalize the row FAILED
//
// A crash at any point leaves either a FAILED row, a stale hold the sweeper
// releases, or a durable task the worker finishes. No state needs a human to
// reconstruct what happened.
package purchase

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ficore-africa/vas-backend/internal/application/dtos"
	"github.com/ficore-africa/vas-backend/internal/application/ports"
	"github.com/ficore-africa/vas-backend/internal/application/routing"
	"github.com/ficore-africa/vas-backend/internal/domain/entities"
	"github.com/ficore-africa/vas-backend/internal/domain/errors"
	"github.com/ficore-africa/vas-backend/internal/domain/valueobjects"
)

const (
	// duplicateWindow guards against double-clicks and client retries.
	duplicateWindow = 5 * time.Minute
	// conflictRetries bounds optimistic-concurrency retries.
	conflictRetries = 3
)

// purchaseIntent is the normalized input shared by airtime and data flows.
type purchaseIntent struct {
	userID       uuid.UUID
	vasType      entities.VasType
	network      string
	phoneNumber  string
	amount       valueobjects.Money
	planType     string
	dataPlanID   string
	dataPlanName string
	subtype      string
}

// orchestrator wires the purchase pipeline. Both use cases embed it.
type orchestrator struct {
	walletRepo      ports.WalletRepository
	reservationRepo ports.ReservationRepository
	txRepo          ports.TransactionRepository
	taskRepo        ports.TaskRepository
	userRepo        ports.UserRepository
	uow             ports.UnitOfWork
	outbox          ports.OutboxRepository
	monnify         ports.BillPayGateway
	peyflex         ports.VendorGateway
	balanceCache    ports.BalanceCache
	logger          *slog.Logger
}

func newOrchestrator(
	walletRepo ports.WalletRepository,
	reservationRepo ports.ReservationRepository,
	txRepo ports.TransactionRepository,
	taskRepo ports.TaskRepository,
	userRepo ports.UserRepository,
	uow ports.UnitOfWork,
	outbox ports.OutboxRepository,
	monnify ports.BillPayGateway,
	peyflex ports.VendorGateway,
	balanceCache ports.BalanceCache,
	logger *slog.Logger,
) orchestrator {
	return orchestrator{
		walletRepo:      walletRepo,
		reservationRepo: reservationRepo,
		txRepo:          txRepo,
		taskRepo:        taskRepo,
		userRepo:        userRepo,
		uow:             uow,
		outbox:          outbox,
		monnify:         monnify,
		peyflex:         peyflex,
		balanceCache:    balanceCache,
		logger:          logger,
	}
}

// newRequestID builds the one id that names this user intention everywhere:
// ledger requestId, provider vendReference, task payload reference.
func newRequestID(vasType entities.VasType, userID uuid.UUID) string {
	var buf [4]byte
	_, _ = rand.Read(buf[:])
	return fmt.Sprintf("FICORE_%s_%s_%d_%s",
		vasType, userID, time.Now().Unix(), hex.EncodeToString(buf[:]))
}

// execute runs the shared pipeline for a validated intent. provider is the
// routed primary; airtimeFallback enables the single permitted cross-provider
// retry.
func (o *orchestrator) execute(ctx context.Context, intent purchaseIntent, provider entities.Provider, airtimeFallback bool) (*dtos.PurchaseResultDTO, error) {
	// Duplicate-click guard: an identical SUCCESS inside the window.
	if prior, err := o.txRepo.FindRecentSuccess(ctx, intent.userID, intent.vasType, intent.amount, intent.phoneNumber, duplicateWindow); err != nil {
		return nil, fmt.Errorf("duplicate guard: %w", err)
	} else if prior != nil {
		return nil, errors.NewDomainError("RECENT_DUPLICATE",
			fmt.Sprintf("an identical purchase succeeded at %s (reference %s)",
				prior.CreatedAt().Format(time.RFC3339), prior.RequestID()),
			errors.ErrRecentDuplicate)
	}

	// In-flight guard: an identical PENDING inside the window.
	if pending, err := o.txRepo.FindPendingDuplicate(ctx, intent.userID, intent.vasType, intent.amount, intent.phoneNumber, duplicateWindow); err != nil {
		return nil, fmt.Errorf("in-flight guard: %w", err)
	} else if pending != nil {
		return nil, errors.NewDomainError("PURCHASE_IN_FLIGHT",
			fmt.Sprintf("an identical purchase is in progress (reference %s)", pending.RequestID()),
			errors.ErrPurchaseInFlight)
	}

	premium := false
	if user, err := o.userRepo.FindByID(ctx, intent.userID); err == nil {
		premium = user.IsPremium(time.Now())
	}

	requestID := newRequestID(intent.vasType, intent.userID)

	// Ledger row + reservation in one transaction, retried on conflicts.
	tx, err := entities.NewVasTransaction(intent.userID, intent.vasType, intent.amount, requestID)
	if err != nil {
		return nil, err
	}
	tx.SetPurchaseDetails(intent.network, intent.phoneNumber, intent.dataPlanID, intent.dataPlanName, intent.subtype, premium)
	tx.SetProvider(provider)

	var reservation *entities.Reservation
	var available valueobjects.Money
	err = o.uow.ExecuteWithRetry(ctx, conflictRetries, func(txCtx context.Context) error {
		wallet, err := o.walletRepo.FindByUserID(txCtx, intent.userID)
		if err != nil {
			return err
		}
		if wallet.AvailableBalance().LessThan(intent.amount) {
			return errors.NewDomainError("INSUFFICIENT_FUNDS",
				fmt.Sprintf("available balance %s is below %s", wallet.AvailableBalance(), intent.amount),
				errors.ErrInsufficientFunds)
		}
		if err := wallet.Hold(intent.amount); err != nil {
			return err
		}

		r, err := entities.NewReservation(intent.userID, intent.amount, tx.ID())
		if err != nil {
			return err
		}
		if err := o.txRepo.Create(txCtx, tx); err != nil {
			return err
		}
		if err := o.reservationRepo.Save(txCtx, r); err != nil {
			return err
		}
		if err := o.walletRepo.Save(txCtx, wallet); err != nil {
			return err
		}
		reservation = r
		available = wallet.AvailableBalance()
		return nil
	})
	if err != nil {
		return nil, err
	}
	_ = o.balanceCache.Invalidate(ctx, intent.userID)

	// Provider call. Never inside a database transaction, never retried
	// blindly: the vendReference makes a repeat with the same id safe, and
	// that is the only repeat we ever issue.
	result, vendErr := o.vend(ctx, provider, intent, requestID)
	if vendErr != nil && airtimeFallback && intent.vasType == entities.VasTypeAirtime {
		fallback := routing.AirtimeFallback()
		o.logger.WarnContext(ctx, "airtime vend failed on primary, retrying on fallback",
			"provider", provider, "fallback", fallback, "request_id", requestID, "error", vendErr)
		result, vendErr = o.vend(ctx, fallback, intent, requestID)
		if vendErr == nil {
			provider = fallback
			tx.SetProvider(fallback)
		}
	}

	if vendErr != nil {
		if err := o.abort(ctx, tx, reservation, intent.userID, vendErr); err != nil {
			o.logger.ErrorContext(ctx, "failed to abort purchase after vend failure",
				"request_id", requestID, "error", err)
		}
		return nil, o.decorateVendError(vendErr, intent)
	}

	// Success: durable settlement task. The debit happens there, so a crash
	// between here and the worker still serves the user exactly once.
	if err := o.enqueueSettlement(ctx, tx, reservation, result, provider); err != nil {
		// The provider delivered; losing the task would mean giving away
		// service. This write is retried by the uow helper and is the one
		// step we log loudly on.
		o.logger.ErrorContext(ctx, "failed to enqueue settlement after provider success",
			"request_id", requestID, "error", err)
		return nil, fmt.Errorf("enqueue settlement: %w", err)
	}

	return &dtos.PurchaseResultDTO{
		TransactionID:    tx.ID().String(),
		RequestID:        requestID,
		ProcessingStatus: "QUEUED",
		Amount:           intent.amount.String(),
		TotalAmount:      intent.amount.String(), // face value, no margin
		Network:          intent.network,
		PhoneNumber:      intent.phoneNumber,
		Provider:         string(provider),
		AvailableBalance: available.String(),
	}, nil
}

// vend dispatches to the routed gateway.
func (o *orchestrator) vend(ctx context.Context, provider entities.Provider, intent purchaseIntent, requestID string) (ports.VendResult, error) {
	req := ports.VendRequest{
		Reference:   requestID,
		Network:     intent.network,
		PhoneNumber: intent.phoneNumber,
		Amount:      intent.amount,
		ProductCode: intent.dataPlanID,
		PlanType:    intent.planType,
		IsAirtime:   intent.vasType == entities.VasTypeAirtime,
	}

	switch provider {
	case entities.ProviderMonnify:
		return o.monnify.Vend(ctx, req)
	case entities.ProviderPeyflex:
		return o.peyflex.Vend(ctx, req)
	default:
		return ports.VendResult{}, fmt.Errorf("no gateway for provider %s", provider)
	}
}

// abort releases the hold and finalizes the ledger row after a vend failure.
func (o *orchestrator) abort(ctx context.Context, tx *entities.VasTransaction, reservation *entities.Reservation, userID uuid.UUID, cause error) error {
	err := o.uow.ExecuteWithRetry(ctx, conflictRetries, func(txCtx context.Context) error {
		r, err := o.reservationRepo.FindByID(txCtx, reservation.ID())
		if err != nil {
			return err
		}
		if r.State() == entities.ReservationHeld {
			wallet, err := o.walletRepo.FindByUserID(txCtx, userID)
			if err != nil {
				return err
			}
			if err := wallet.ReleaseHold(r.Amount()); err != nil {
				return err
			}
			if err := r.Release(); err != nil {
				return err
			}
			if err := o.reservationRepo.Save(txCtx, r); err != nil {
				return err
			}
			if err := o.walletRepo.Save(txCtx, wallet); err != nil {
				return err
			}
		}

		stored, err := o.txRepo.FindByID(txCtx, tx.ID())
		if err != nil {
			return err
		}
		if !stored.IsTerminal() {
			if err := stored.MarkFailed(cause.Error()); err != nil {
				return err
			}
			if err := o.txRepo.Update(txCtx, stored); err != nil {
				return err
			}
		}
		return nil
	})
	if err == nil {
		_ = o.balanceCache.Invalidate(ctx, userID)
	}
	return err
}

// enqueueSettlement stores the task and moves the row to PENDING in one
// transaction. Idempotent on the task reference.
func (o *orchestrator) enqueueSettlement(ctx context.Context, tx *entities.VasTransaction, reservation *entities.Reservation, result ports.VendResult, provider entities.Provider) error {
	task, err := entities.NewSettlementTask(entities.SettlementPayload{
		TransactionID:        tx.ID(),
		ReservationID:        reservation.ID(),
		UserID:               tx.UserID(),
		Reference:            tx.RequestID(),
		Provider:             string(provider),
		TransactionReference: result.TransactionReference,
		DeliveredProduct:     result.ProductName,
		DeliveredAmount:      result.VendAmount.String(),
		ProviderCommission:   result.Commission.String(),
	})
	if err != nil {
		return err
	}

	return o.uow.ExecuteWithRetry(ctx, conflictRetries, func(txCtx context.Context) error {
		stored, err := o.txRepo.FindByID(txCtx, tx.ID())
		if err != nil {
			return err
		}
		if err := stored.MarkPending(); err != nil {
			return err
		}
		stored.SetProvider(provider)
		stored.SetMetadata("vend_result", result.Raw)
		if err := o.txRepo.Update(txCtx, stored); err != nil {
			return err
		}
		return o.taskRepo.Save(txCtx, task)
	})
}

// decorateVendError turns a data-provider failure into the typed
// ProviderUnavailable carrying actionable alternatives. Airtime errors pass
// through untouched (the fallback already ran).
func (o *orchestrator) decorateVendError(vendErr error, intent purchaseIntent) error {
	pe, ok := errors.IsProviderError(vendErr)
	if !ok || intent.vasType != entities.VasTypeData {
		return vendErr
	}
	if pe.Kind == errors.ProviderRejected {
		// Bad input is the caller's to fix; alternatives will not help.
		return vendErr
	}
	return &errors.ProviderError{
		Provider:     pe.Provider,
		Kind:         errors.ProviderUnavailable,
		Reason:       fmt.Sprintf("%s plans for %s are temporarily unavailable", intent.planType, intent.network),
		Alternatives: routing.AlternativePlanTypes(intent.network, intent.planType),
		Err:          vendErr,
	}
}
