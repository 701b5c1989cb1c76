package wallet

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"log/slog"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/ficore-africa/vas-backend/internal/application/dtos"
	"github.com/ficore-africa/vas-backend/internal/application/ports"
	"github.com/ficore-africa/vas-backend/internal/domain/entities"
	"github.com/ficore-africa/vas-backend/internal/domain/errors"
	"github.com/ficore-africa/vas-backend/internal/domain/events"
)

var pinFormat = regexp.MustCompile(`^\d{4}$`)

// weakPins are trivially guessable 4-digit sequences rejected at setup.
var weakPins = map[string]bool{
	"0000": true, "1111": true, "2222": true, "3333": true, "4444": true,
	"5555": true, "6666": true, "7777": true, "8888": true, "9999": true,
	"1234": true, "4321": true, "0123": true, "3210": true,
	"2580": true, "0852": true, "1122": true, "1212": true, "2000": true,
}

func hashPin(pin, salt string) string {
	sum := sha256.Sum256([]byte(pin + salt))
	return hex.EncodeToString(sum[:])
}

func newPinSalt() string {
	var buf [32]byte
	_, _ = rand.Read(buf[:])
	return hex.EncodeToString(buf[:])
}

func validatePinFormat(pin string) error {
	if !pinFormat.MatchString(pin) {
		return errors.ErrPinBadFormat
	}
	if weakPins[pin] {
		return errors.ErrPinTooWeak
	}
	return nil
}

// PinUseCase manages the spending PIN: setup, validation with lockout,
// change, and the audited admin reset.
type PinUseCase struct {
	walletRepo ports.WalletRepository
	accounting ports.AccountingRepository
	uow        ports.UnitOfWork
	outbox     ports.OutboxRepository
	logger     *slog.Logger
}

// NewPinUseCase wires PIN management.
func NewPinUseCase(
	walletRepo ports.WalletRepository,
	accounting ports.AccountingRepository,
	uow ports.UnitOfWork,
	outbox ports.OutboxRepository,
	logger *slog.Logger,
) *PinUseCase {
	return &PinUseCase{
		walletRepo: walletRepo,
		accounting: accounting,
		uow:        uow,
		outbox:     outbox,
		logger:     logger.With("usecase", "pin"),
	}
}

// Setup sets the PIN for the first time.
func (uc *PinUseCase) Setup(ctx context.Context, cmd dtos.PinCommand) error {
	if err := validatePinFormat(cmd.Pin); err != nil {
		return err
	}
	return uc.uow.ExecuteWithRetry(ctx, 3, func(txCtx context.Context) error {
		wallet, err := uc.walletRepo.FindByUserID(txCtx, cmd.UserID)
		if err != nil {
			return err
		}
		if wallet.HasPin() {
			return errors.ErrPinAlreadySet
		}
		salt := newPinSalt()
		wallet.SetPin(hashPin(cmd.Pin, salt), salt)
		return uc.walletRepo.Save(txCtx, wallet)
	})
}

// Validate checks a PIN. Failures count toward the lockout; the attempt
// counter write goes through the same optimistic-locking path as any other
// wallet mutation so concurrent guesses cannot skip counts.
func (uc *PinUseCase) Validate(ctx context.Context, cmd dtos.PinCommand) error {
	return uc.uow.ExecuteWithRetry(ctx, 3, func(txCtx context.Context) error {
		wallet, err := uc.walletRepo.FindByUserID(txCtx, cmd.UserID)
		if err != nil {
			return err
		}
		return uc.validateOnWallet(txCtx, wallet, cmd.Pin)
	})
}

func (uc *PinUseCase) validateOnWallet(ctx context.Context, wallet *entities.Wallet, pin string) error {
	now := time.Now()
	if !wallet.HasPin() {
		return errors.ErrPinNotSet
	}
	if wallet.IsPinLocked(now) {
		return errors.ErrPinLocked
	}

	expected := []byte(wallet.PinHash())
	actual := []byte(hashPin(pin, wallet.PinSalt()))
	if subtle.ConstantTimeCompare(expected, actual) == 1 {
		if wallet.PinAttempts() > 0 {
			wallet.ResetPinAttempts()
			return uc.walletRepo.Save(ctx, wallet)
		}
		return nil
	}

	locked := wallet.RecordPinFailure(now)
	if err := uc.walletRepo.Save(ctx, wallet); err != nil {
		return err
	}
	if locked {
		uc.logger.WarnContext(ctx, "spending PIN locked after repeated failures",
			"user_id", wallet.UserID())
		return errors.ErrPinLocked
	}
	return errors.ErrPinInvalid
}

// Change validates the current PIN and replaces it.
func (uc *PinUseCase) Change(ctx context.Context, cmd dtos.PinCommand) error {
	if err := validatePinFormat(cmd.NewPin); err != nil {
		return err
	}
	return uc.uow.ExecuteWithRetry(ctx, 3, func(txCtx context.Context) error {
		wallet, err := uc.walletRepo.FindByUserID(txCtx, cmd.UserID)
		if err != nil {
			return err
		}
		if err := uc.validateOnWallet(txCtx, wallet, cmd.Pin); err != nil {
			return err
		}
		salt := newPinSalt()
		wallet.SetPin(hashPin(cmd.NewPin, salt), salt)
		return uc.walletRepo.Save(txCtx, wallet)
	})
}

// AdminReset clears a user's PIN. The action is audited and the user is
// notified; the next spend forces a fresh setup.
func (uc *PinUseCase) AdminReset(ctx context.Context, adminID, userID uuid.UUID, note string) error {
	return uc.uow.ExecuteWithRetry(ctx, 3, func(txCtx context.Context) error {
		wallet, err := uc.walletRepo.FindByUserID(txCtx, userID)
		if err != nil {
			return err
		}
		wallet.ClearPin()
		if err := uc.walletRepo.Save(txCtx, wallet); err != nil {
			return err
		}
		audit := entities.NewAdminAction(adminID, "PIN_RESET", userID, "", note)
		if err := uc.accounting.SaveAdminAction(txCtx, audit); err != nil {
			return err
		}
		return uc.outbox.Save(txCtx, events.NewUserNotification(userID, "pin",
			"Spending PIN reset",
			"Your spending PIN was reset by support. Set a new PIN before your next purchase.",
			nil))
	})
}
