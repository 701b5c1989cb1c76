package wallet

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ficore-africa/vas-backend/internal/application/dtos"
	"github.com/ficore-africa/vas-backend/internal/application/ports"
)

// balanceCacheTTL is shorter than the client's 3-second polling cadence so a
// mutation is visible within one poll even if invalidation is missed.
const balanceCacheTTL = 3 * time.Second

// GetBalanceUseCase serves balance reads. The authoritative read hits the
// database; the polling read goes through the cache.
type GetBalanceUseCase struct {
	walletRepo   ports.WalletRepository
	balanceCache ports.BalanceCache
	logger       *slog.Logger
}

// NewGetBalanceUseCase wires balance reads.
func NewGetBalanceUseCase(walletRepo ports.WalletRepository, balanceCache ports.BalanceCache, logger *slog.Logger) *GetBalanceUseCase {
	return &GetBalanceUseCase{
		walletRepo:   walletRepo,
		balanceCache: balanceCache,
		logger:       logger.With("usecase", "get_balance"),
	}
}

// Wallet returns the full wallet view, always fresh.
func (uc *GetBalanceUseCase) Wallet(ctx context.Context, userID uuid.UUID) (*dtos.WalletDTO, error) {
	wallet, err := uc.walletRepo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	dto := dtos.WalletToDTO(wallet)
	return &dto, nil
}

// Balance returns the authoritative balances from the database.
func (uc *GetBalanceUseCase) Balance(ctx context.Context, userID uuid.UUID) (*dtos.BalanceDTO, error) {
	wallet, err := uc.walletRepo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	dto := dtos.BalanceToDTO(wallet)
	return &dto, nil
}

// CurrentBalance serves the high-frequency polling endpoint through the
// cache. A cache outage falls back to the database rather than erroring.
func (uc *GetBalanceUseCase) CurrentBalance(ctx context.Context, userID uuid.UUID) (*dtos.BalanceDTO, error) {
	if cached, err := uc.balanceCache.Get(ctx, userID); err == nil && cached != nil {
		dto := dtos.CachedBalanceToDTO(*cached)
		return &dto, nil
	} else if err != nil {
		uc.logger.WarnContext(ctx, "balance cache read failed, serving from database",
			"user_id", userID, "error", err)
	}

	wallet, err := uc.walletRepo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	entry := ports.CachedBalance{
		Balance:   wallet.Balance(),
		Reserved:  wallet.Reserved(),
		Available: wallet.AvailableBalance(),
		FetchedAt: time.Now(),
	}
	if err := uc.balanceCache.Set(ctx, userID, entry, balanceCacheTTL); err != nil {
		uc.logger.WarnContext(ctx, "balance cache write failed", "user_id", userID, "error", err)
	}

	dto := dtos.BalanceToDTO(wallet)
	return &dto, nil
}
