package wallet

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/ficore-africa/vas-backend/internal/application/dtos"
	"github.com/ficore-africa/vas-backend/internal/application/ports"
	"github.com/ficore-africa/vas-backend/internal/domain/entities"
)

const (
	defaultPerPage = 20
	maxPerPage     = 100
)

// ListTransactionsUseCase serves the paginated ledger view.
type ListTransactionsUseCase struct {
	txRepo ports.TransactionRepository
	logger *slog.Logger
}

// NewListTransactionsUseCase wires ledger listings.
func NewListTransactionsUseCase(txRepo ports.TransactionRepository, logger *slog.Logger) *ListTransactionsUseCase {
	return &ListTransactionsUseCase{txRepo: txRepo, logger: logger.With("usecase", "list_transactions")}
}

// Execute lists a user's transactions, newest first. Optional type and
// status filters narrow the page.
func (uc *ListTransactionsUseCase) Execute(ctx context.Context, userID uuid.UUID, vasType *entities.VasType, status *entities.VasStatus, page, perPage int) (*dtos.TransactionPageDTO, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = defaultPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}

	filter := ports.TransactionFilter{UserID: &userID, Type: vasType, Status: status}

	total, err := uc.txRepo.Count(ctx, filter)
	if err != nil {
		return nil, err
	}
	txs, err := uc.txRepo.List(ctx, filter, (page-1)*perPage, perPage)
	if err != nil {
		return nil, err
	}

	return &dtos.TransactionPageDTO{
		Transactions: dtos.TransactionsToDTOs(txs),
		Total:        total,
		Page:         page,
		PerPage:      perPage,
	}, nil
}

// SyncTransactionsUseCase reconciles a client-side snapshot against the
// authoritative ledger. The mobile app keeps an offline copy and calls this
// after reconnecting.
type SyncTransactionsUseCase struct {
	txRepo ports.TransactionRepository
	logger *slog.Logger
}

// NewSyncTransactionsUseCase wires the sync endpoint.
func NewSyncTransactionsUseCase(txRepo ports.TransactionRepository, logger *slog.Logger) *SyncTransactionsUseCase {
	return &SyncTransactionsUseCase{txRepo: txRepo, logger: logger.With("usecase", "sync_transactions")}
}

// Execute resolves each client reference to its authoritative row. Unknown
// references are reported back so the client can drop phantom entries.
func (uc *SyncTransactionsUseCase) Execute(ctx context.Context, cmd dtos.SyncTransactionsCommand) (*dtos.SyncResultDTO, error) {
	result := &dtos.SyncResultDTO{
		Known:   make([]dtos.TransactionDTO, 0, len(cmd.References)),
		Missing: make([]string, 0),
	}

	for _, ref := range cmd.References {
		tx, err := uc.txRepo.FindByRequestID(ctx, ref)
		if err != nil || tx == nil {
			tx, err = uc.txRepo.FindByReference(ctx, ref)
		}
		if err != nil || tx == nil {
			result.Missing = append(result.Missing, ref)
			continue
		}
		// References are scoped to the requesting user; a foreign reference
		// is indistinguishable from an unknown one.
		if tx.UserID() != cmd.UserID {
			result.Missing = append(result.Missing, ref)
			continue
		}
		result.Known = append(result.Known, dtos.TransactionToDTO(tx))
	}
	return result, nil
}
