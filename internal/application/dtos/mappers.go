package dtos

import (
	"github.com/ficore-africa/vas-backend/internal/application/ports"
	"github.com/ficore-africa/vas-backend/internal/domain/entities"
)

// WalletToDTO maps a wallet entity to its API view.
func WalletToDTO(w *entities.Wallet) WalletDTO {
	accounts := make([]ReservedAccountDTO, 0, len(w.Accounts()))
	for _, a := range w.Accounts() {
		accounts = append(accounts, ReservedAccountDTO{
			BankName:      a.BankName,
			BankCode:      a.BankCode,
			AccountNumber: a.AccountNumber,
			AccountName:   a.AccountName,
		})
	}
	return WalletDTO{
		ID:               w.ID().String(),
		UserID:           w.UserID().String(),
		Status:           string(w.Status()),
		Balance:          w.Balance().String(),
		Reserved:         w.Reserved().String(),
		Available:        w.AvailableBalance().String(),
		AccountReference: w.AccountReference(),
		Accounts:         accounts,
		HasPin:           w.HasPin(),
		CreatedAt:        w.CreatedAt(),
		UpdatedAt:        w.UpdatedAt(),
	}
}

// BalanceToDTO maps the wallet balances to the polling view.
func BalanceToDTO(w *entities.Wallet) BalanceDTO {
	return BalanceDTO{
		Balance:   w.Balance().String(),
		Reserved:  w.Reserved().String(),
		Available: w.AvailableBalance().String(),
		UpdatedAt: w.UpdatedAt(),
	}
}

// CachedBalanceToDTO maps a cache hit to the polling view.
func CachedBalanceToDTO(b ports.CachedBalance) BalanceDTO {
	return BalanceDTO{
		Balance:   b.Balance.String(),
		Reserved:  b.Reserved.String(),
		Available: b.Available.String(),
		UpdatedAt: b.FetchedAt,
	}
}

// TransactionToDTO maps a ledger row to its API view.
func TransactionToDTO(t *entities.VasTransaction) TransactionDTO {
	return TransactionDTO{
		ID:                   t.ID().String(),
		Type:                 string(t.Type()),
		Subtype:              t.Subtype(),
		Amount:               t.Amount().String(),
		SellingPrice:         t.SellingPrice().String(),
		TotalAmount:          t.TotalAmount().String(),
		Status:               string(t.Status()),
		FailureReason:        t.FailureReason(),
		Provider:             string(t.Provider()),
		Network:              t.Network(),
		PhoneNumber:          t.PhoneNumber(),
		DataPlanID:           t.DataPlanID(),
		DataPlanName:         t.DataPlanName(),
		RequestID:            t.RequestID(),
		TransactionReference: t.TransactionReference(),
		NeedsReconciliation:  t.NeedsReconciliation(),
		CreatedAt:            t.CreatedAt(),
		CompletedAt:          t.CompletedAt(),
	}
}

// TransactionsToDTOs maps a slice of ledger rows.
func TransactionsToDTOs(txs []*entities.VasTransaction) []TransactionDTO {
	out := make([]TransactionDTO, 0, len(txs))
	for _, t := range txs {
		out = append(out, TransactionToDTO(t))
	}
	return out
}

// DataPlanToDTO maps a normalized provider plan.
func DataPlanToDTO(p ports.DataPlan) DataPlanDTO {
	return DataPlanDTO{
		ID:       p.ID,
		Name:     p.Name,
		Network:  p.Network,
		PlanType: p.PlanType,
		Amount:   p.Amount.String(),
		Validity: p.Validity,
	}
}

// DataPlansToDTOs maps a plan list.
func DataPlansToDTOs(plans []ports.DataPlan) []DataPlanDTO {
	out := make([]DataPlanDTO, 0, len(plans))
	for _, p := range plans {
		out = append(out, DataPlanToDTO(p))
	}
	return out
}
