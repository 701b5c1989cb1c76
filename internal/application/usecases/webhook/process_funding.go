package webhook

import (
	"context"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ficore-africa/vas-backend/internal/application/ports"
	"github.com/ficore-africa/vas-backend/internal/application/pricing"
	"github.com/ficore-africa/vas-backend/internal/domain/entities"
	"github.com/ficore-africa/vas-backend/internal/domain/errors"
	"github.com/ficore-africa/vas-backend/internal/domain/events"
	"github.com/ficore-africa/vas-backend/internal/domain/valueobjects"
)

// Outcome tells the handler how the event was absorbed. All outcomes ack
// with 200; the provider retries only transport failures.
type Outcome string

const (
	OutcomeCredited         Outcome = "CREDITED"
	OutcomeDuplicate        Outcome = "DUPLICATE"
	OutcomeVasConfirmation  Outcome = "VAS_CONFIRMATION"
	OutcomeIgnored          Outcome = "IGNORED"
	OutcomeUserUnresolved   Outcome = "USER_UNRESOLVED"
)

// ProcessFundingUseCase turns verified provider webhooks into wallet credits,
// fee splits and referral fan-out.
type ProcessFundingUseCase struct {
	walletRepo   ports.WalletRepository
	userRepo     ports.UserRepository
	txRepo       ports.TransactionRepository
	accounting   ports.AccountingRepository
	uow          ports.UnitOfWork
	outbox       ports.OutboxRepository
	balanceCache ports.BalanceCache
	secret       string
	logger       *slog.Logger
}

// NewProcessFundingUseCase wires the funding pipeline. secret is the shared
// webhook HMAC secret.
func NewProcessFundingUseCase(
	walletRepo ports.WalletRepository,
	userRepo ports.UserRepository,
	txRepo ports.TransactionRepository,
	accounting ports.AccountingRepository,
	uow ports.UnitOfWork,
	outbox ports.OutboxRepository,
	balanceCache ports.BalanceCache,
	secret string,
	logger *slog.Logger,
) *ProcessFundingUseCase {
	return &ProcessFundingUseCase{
		walletRepo:   walletRepo,
		userRepo:     userRepo,
		txRepo:       txRepo,
		accounting:   accounting,
		uow:          uow,
		outbox:       outbox,
		balanceCache: balanceCache,
		secret:       secret,
		logger:       logger.With("usecase", "process_funding"),
	}
}

// Execute verifies and absorbs one webhook delivery. The raw body bytes are
// required because the signature covers them exactly.
func (uc *ProcessFundingUseCase) Execute(ctx context.Context, body []byte, signature string) (Outcome, error) {
	if !VerifySignature(uc.secret, body, signature) {
		return "", errors.ErrWebhookSignatureInvalid
	}

	event, err := parseFundingEvent(body)
	if err != nil {
		return "", err
	}

	log := uc.logger.With("reference", event.TransactionReference)

	if !event.isPaid() {
		log.InfoContext(ctx, "ignoring non-paid webhook event", "status", event.PaymentStatus)
		return OutcomeIgnored, nil
	}

	// Replay guard: the provider redelivers webhooks freely. A terminal row
	// means the money already landed; a non-terminal one is a half-processed
	// delivery that gets finished below instead of duplicated.
	var prior *entities.VasTransaction
	if existing, err := uc.txRepo.FindByReference(ctx, event.TransactionReference); err == nil && existing != nil {
		if existing.IsTerminal() {
			log.InfoContext(ctx, "duplicate webhook delivery ignored")
			return OutcomeDuplicate, nil
		}
		prior = existing
	} else if err != nil && !errors.IsNotFound(err) {
		return "", err
	}

	// A reference carrying our own request-id prefix is the provider echoing
	// one of our vends, not new money.
	if strings.HasPrefix(event.PaymentReference, "FICORE_") {
		if confirmed, err := uc.confirmVas(ctx, event.PaymentReference); err != nil {
			return "", err
		} else if confirmed {
			return OutcomeVasConfirmation, nil
		}
	}

	user, wallet, err := uc.resolveUser(ctx, event)
	if err != nil {
		if stdErrors.Is(err, errors.ErrWebhookUserUnresolved) {
			// Acked, never retried: redelivery would fail identically. The
			// alert puts a human on it with the full payload.
			log.WarnContext(ctx, "funding webhook could not be matched to a user",
				"account_reference", event.AccountReference, "email", event.CustomerEmail)
			alertErr := uc.uow.Execute(ctx, func(txCtx context.Context) error {
				return uc.outbox.Save(txCtx, events.NewAdminNotification(
					uuid.New(),
					"unmatched funding webhook",
					fmt.Sprintf("deposit of %s (reference %s) has no matching user", event.AmountPaid, event.TransactionReference),
					event.Raw))
			})
			if alertErr != nil {
				log.ErrorContext(ctx, "failed to record unmatched-webhook alert", "error", alertErr)
			}
			return OutcomeUserUnresolved, nil
		}
		return "", err
	}

	if err := uc.credit(ctx, event, user, wallet, prior); err != nil {
		if stdErrors.Is(err, errors.ErrDuplicateRequest) {
			return OutcomeDuplicate, nil
		}
		return "", err
	}

	_ = uc.balanceCache.Invalidate(ctx, user.ID())
	log.InfoContext(ctx, "wallet funded", "user_id", user.ID(), "amount", event.AmountPaid.String())
	return OutcomeCredited, nil
}

// confirmVas flags the matching vend as provider-confirmed. A vend still
// PENDING is settled here as well: the activity webhook is the provider's
// word that it delivered. Returns false when the reference is unknown, in
// which case the event falls through to normal funding resolution.
func (uc *ProcessFundingUseCase) confirmVas(ctx context.Context, reference string) (bool, error) {
	tx, err := uc.txRepo.FindByRequestID(ctx, reference)
	if err != nil || tx == nil {
		if errors.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	tx.ConfirmByProvider()
	err = uc.uow.Execute(ctx, func(txCtx context.Context) error {
		if tx.Status() == entities.VasStatusPending {
			if err := tx.MarkSuccess(""); err != nil {
				return err
			}
			return uc.txRepo.Update(txCtx, tx)
		}
		return uc.txRepo.UpdateFlags(txCtx, tx)
	})
	return err == nil, err
}

// resolveUser matches the webhook to a user: reserved-account reference
// first, then customer email, then a pending KYC-verification ledger row
// carrying the payment reference.
func (uc *ProcessFundingUseCase) resolveUser(ctx context.Context, event *fundingEvent) (*entities.User, *entities.Wallet, error) {
	if strings.HasPrefix(event.AccountReference, "FICORE") {
		wallet, err := uc.walletRepo.FindByAccountReference(ctx, event.AccountReference)
		if err == nil {
			user, err := uc.userRepo.FindByID(ctx, wallet.UserID())
			if err != nil {
				return nil, nil, err
			}
			return user, wallet, nil
		}
		if !errors.IsNotFound(err) {
			return nil, nil, err
		}
	}

	if event.CustomerEmail != "" {
		user, err := uc.userRepo.FindByEmail(ctx, event.CustomerEmail)
		if err == nil {
			wallet, err := uc.walletRepo.FindByUserID(ctx, user.ID())
			if err != nil {
				return nil, nil, err
			}
			return user, wallet, nil
		}
		if !errors.IsNotFound(err) {
			return nil, nil, err
		}
	}

	// A deposit paying for a still-pending KYC verification identifies the
	// payer through the ledger even when neither handle above matches.
	for _, ref := range []string{event.PaymentReference, event.TransactionReference} {
		if ref == "" {
			continue
		}
		tx, err := uc.txRepo.FindByRequestID(ctx, ref)
		if err != nil {
			if errors.IsNotFound(err) {
				continue
			}
			return nil, nil, err
		}
		if tx.Type() != entities.VasTypeKYCVerification || tx.Status() != entities.VasStatusPending {
			continue
		}
		user, err := uc.userRepo.FindByID(ctx, tx.UserID())
		if err != nil {
			return nil, nil, err
		}
		wallet, err := uc.walletRepo.FindByUserID(ctx, user.ID())
		if err != nil {
			return nil, nil, err
		}
		return user, wallet, nil
	}

	return nil, nil, errors.ErrWebhookUserUnresolved
}

// credit applies the deposit atomically: fee split, wallet credit, funding
// ledger row, revenue entries, first-deposit referral hooks and events. A
// non-terminal prior row from an interrupted delivery is promoted to SUCCESS
// instead of creating a second one.
func (uc *ProcessFundingUseCase) credit(ctx context.Context, event *fundingEvent, user *entities.User, wallet *entities.Wallet, prior *entities.VasTransaction) error {
	now := time.Now()
	premium := user.IsPremium(now)
	split := pricing.ComputeFundingSplit(event.AmountPaid, premium)

	if !split.AmountToCredit.IsPositive() {
		return errors.NewBusinessRuleViolation(
			"DEPOSIT_BELOW_FEE",
			"deposit does not cover the service fee",
			map[string]interface{}{"amount_paid": event.AmountPaid.String()},
		)
	}

	return uc.uow.ExecuteWithRetry(ctx, 3, func(txCtx context.Context) error {
		fresh, err := uc.walletRepo.FindByUserID(txCtx, wallet.UserID())
		if err != nil {
			return err
		}
		if err := fresh.Credit(split.AmountToCredit); err != nil {
			return err
		}

		tx := prior
		if tx == nil {
			created, err := entities.NewFundingTransaction(user.ID(), split.AmountToCredit, event.TransactionReference)
			if err != nil {
				return err
			}
			tx = created
		}
		tx.SetMetadata("amount_paid", event.AmountPaid.String())
		tx.SetMetadata("deposit_fee", split.DepositFee.String())
		tx.SetMetadata("payment_reference", event.PaymentReference)
		tx.SetMetadata("webhook", event.Raw)

		if prior != nil {
			if err := tx.MarkSuccess(event.TransactionReference); err != nil {
				return err
			}
			if err := uc.txRepo.Update(txCtx, tx); err != nil {
				return err
			}
		} else if err := uc.txRepo.Create(txCtx, tx); err != nil {
			return err
		}

		var batch []events.DomainEvent

		userID := user.ID()
		if split.DepositFee.IsPositive() {
			feeEntry := entities.NewRevenueEntry(entities.RevenueDepositFee, split.DepositFee,
				event.TransactionReference, "deposit service fee", &userID)
			if err := uc.accounting.SaveRevenueEntry(txCtx, feeEntry); err != nil {
				return err
			}
			batch = append(batch, events.NewRevenueRecorded(feeEntry.ID(), string(feeEntry.Type()), feeEntry.Amount(), feeEntry.Reference()))
		}
		if split.GatewayFee.IsPositive() {
			costEntry := entities.NewRevenueEntry(entities.RevenueGatewayCost, split.GatewayFee.Neg(),
				event.TransactionReference, "payment gateway charge", &userID)
			if err := uc.accounting.SaveRevenueEntry(txCtx, costEntry); err != nil {
				return err
			}
			batch = append(batch, events.NewRevenueRecorded(costEntry.ID(), string(costEntry.Type()), costEntry.Amount(), costEntry.Reference()))
		}

		referralEvents, err := uc.firstDepositHooks(txCtx, user, fresh, split.DepositFee, event.TransactionReference, now)
		if err != nil {
			return err
		}

		// Save the wallet after the hooks so a first-deposit fee refund
		// lands in the same write.
		if err := uc.walletRepo.Save(txCtx, fresh); err != nil {
			return err
		}

		batch = append(batch,
			events.NewWalletCredited(fresh.ID(), userID, split.AmountToCredit, event.TransactionReference, fresh.Balance()),
			events.NewUserNotification(userID, "funding",
				"Wallet funded",
				fmt.Sprintf("Your deposit of %s has been credited.", split.AmountToCredit),
				map[string]interface{}{"reference": event.TransactionReference}))
		batch = append(batch, referralEvents...)

		return uc.outbox.SaveBatch(txCtx, batch)
	})
}

// firstDepositHooks runs once per user, on their first successful deposit.
// When a pending referral exists, the deposit fee goes back to the new user
// along with the FiCore Credit welcome bonus, and the referrer's 90-day
// VAS-share window opens. The wallet is mutated here and saved by the caller.
func (uc *ProcessFundingUseCase) firstDepositHooks(
	ctx context.Context,
	user *entities.User,
	wallet *entities.Wallet,
	depositFee valueobjects.Money,
	reference string,
	now time.Time,
) ([]events.DomainEvent, error) {
	if user.HasDeposited() {
		return nil, nil
	}
	user.RecordFirstDeposit(now)
	if user.ReferredBy() == nil {
		return nil, uc.userRepo.Save(ctx, user)
	}

	referrer, err := uc.userRepo.FindByID(ctx, *user.ReferredBy())
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, uc.userRepo.Save(ctx, user)
		}
		return nil, err
	}

	userID := user.ID()
	var hookEvents []events.DomainEvent
	if depositFee.IsPositive() {
		if err := wallet.Credit(depositFee); err != nil {
			return nil, err
		}
		refund := entities.NewRevenueEntry(entities.RevenueDepositFee, depositFee.Neg(),
			reference, "first-deposit fee refund", &userID)
		if err := uc.accounting.SaveRevenueEntry(ctx, refund); err != nil {
			return nil, err
		}
		hookEvents = append(hookEvents,
			events.NewRevenueRecorded(refund.ID(), string(refund.Type()), refund.Amount(), refund.Reference()))
	}
	user.GrantCredits(entities.FirstDepositCreditBonus)
	if err := uc.userRepo.Save(ctx, user); err != nil {
		return nil, err
	}

	referrer.ActivateVasShare(now)
	if err := uc.userRepo.Save(ctx, referrer); err != nil {
		return nil, err
	}

	uc.logger.InfoContext(ctx, "referral first-deposit hooks applied",
		"referrer_id", referrer.ID(), "referred_user_id", userID)

	hookEvents = append(hookEvents,
		events.NewUserNotification(userID, "referral",
			"Welcome bonus applied",
			fmt.Sprintf("Your deposit fee was refunded and %d FiCore Credits added for joining through a referral.", entities.FirstDepositCreditBonus),
			map[string]interface{}{"reference": reference}),
		events.NewUserNotification(referrer.ID(), "referral",
			"Referral activated",
			"Your referral made their first deposit. Your 90-day VAS share is now active.",
			map[string]interface{}{"reference": reference}))
	return hookEvents, nil
}
