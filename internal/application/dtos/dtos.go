// Package dtos defines the boundary types between the HTTP layer and the
// use cases. Amounts cross the boundary as decimal major-unit strings;
// conversion to kobo happens once, inside the use case.
package dtos

import (
	"time"

	"github.com/google/uuid"
)

// ===== Commands =====

// BuyAirtimeCommand is a user's airtime purchase intent.
type BuyAirtimeCommand struct {
	UserID      uuid.UUID
	PhoneNumber string
	Network     string
	Amount      string // decimal Naira, e.g. "200.00"
}

// BuyDataCommand is a user's data purchase intent. PlanType is the
// user-visible family label and is authoritative for provider choice.
type BuyDataCommand struct {
	UserID       uuid.UUID
	PhoneNumber  string
	Network      string
	DataPlanID   string
	DataPlanName string
	PlanType     string
	Amount       string
}

// CreateWalletCommand provisions reserved bank accounts for a user.
type CreateWalletCommand struct {
	UserID      uuid.UUID
	AccountName string
	Email       string
}

// PinCommand carries a PIN operation.
type PinCommand struct {
	UserID uuid.UUID
	Pin    string
	NewPin string // change only
}

// AdminAdjustCommand is an admin refund or deduction. Reference is the
// caller-supplied idempotency key: replays return the prior transaction.
type AdminAdjustCommand struct {
	AdminID   uuid.UUID
	UserID    uuid.UUID
	Amount    string
	Reference string
	Reason    string
	Deduct    bool
}

// SyncTransactionsCommand reconciles a client snapshot against the ledger.
type SyncTransactionsCommand struct {
	UserID     uuid.UUID
	References []string
}

// ===== DTOs =====

// BalanceDTO is the wallet balance view.
type BalanceDTO struct {
	Balance   string    `json:"balance"`
	Reserved  string    `json:"reserved"`
	Available string    `json:"available"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ReservedAccountDTO is one provisioned bank account.
type ReservedAccountDTO struct {
	BankName      string `json:"bank_name"`
	BankCode      string `json:"bank_code"`
	AccountNumber string `json:"account_number"`
	AccountName   string `json:"account_name"`
}

// WalletDTO is the full wallet view.
type WalletDTO struct {
	ID               string               `json:"id"`
	UserID           string               `json:"user_id"`
	Status           string               `json:"status"`
	Balance          string               `json:"balance"`
	Reserved         string               `json:"reserved"`
	Available        string               `json:"available"`
	AccountReference string               `json:"account_reference"`
	Accounts         []ReservedAccountDTO `json:"accounts"`
	HasPin           bool                 `json:"has_pin"`
	CreatedAt        time.Time            `json:"created_at"`
	UpdatedAt        time.Time            `json:"updated_at"`
}

// PurchaseResultDTO is the synchronous reply to a purchase: the vend
// succeeded and settlement is queued. The debit shows as reserved until the
// settlement worker commits it.
type PurchaseResultDTO struct {
	TransactionID    string `json:"transaction_id"`
	RequestID        string `json:"request_id"`
	ProcessingStatus string `json:"processing_status"` // QUEUED
	Amount           string `json:"amount"`
	TotalAmount      string `json:"total_amount"`
	Network          string `json:"network"`
	PhoneNumber      string `json:"phone_number"`
	Provider         string `json:"provider"`
	AvailableBalance string `json:"available_balance"`
}

// TransactionDTO is one ledger row.
type TransactionDTO struct {
	ID                   string     `json:"id"`
	Type                 string     `json:"type"`
	Subtype              string     `json:"subtype,omitempty"`
	Amount               string     `json:"amount"`
	SellingPrice         string     `json:"selling_price"`
	TotalAmount          string     `json:"total_amount"`
	Status               string     `json:"status"`
	FailureReason        string     `json:"failure_reason,omitempty"`
	Provider             string     `json:"provider"`
	Network              string     `json:"network,omitempty"`
	PhoneNumber          string     `json:"phone_number,omitempty"`
	DataPlanID           string     `json:"data_plan_id,omitempty"`
	DataPlanName         string     `json:"data_plan_name,omitempty"`
	RequestID            string     `json:"request_id"`
	TransactionReference string     `json:"transaction_reference,omitempty"`
	NeedsReconciliation  bool       `json:"needs_reconciliation"`
	CreatedAt            time.Time  `json:"created_at"`
	CompletedAt          *time.Time `json:"completed_at,omitempty"`
}

// TransactionPageDTO is a paginated ledger view.
type TransactionPageDTO struct {
	Transactions []TransactionDTO `json:"transactions"`
	Total        int              `json:"total"`
	Page         int              `json:"page"`
	PerPage      int              `json:"per_page"`
}

// SyncResultDTO tells the client which of its references the backend knows,
// with authoritative statuses.
type SyncResultDTO struct {
	Known   []TransactionDTO `json:"known"`
	Missing []string         `json:"missing"`
}

// DataPlanDTO is a purchasable plan for the catalog endpoints.
type DataPlanDTO struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Network  string `json:"network"`
	PlanType string `json:"plan_type"`
	Amount   string `json:"amount"`
	Validity string `json:"validity,omitempty"`
}
