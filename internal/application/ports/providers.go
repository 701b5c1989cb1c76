// Package ports - outbound provider contracts.
//
// Monnify is the multi-step bill-pay provider (auth, billers, products,
// customer validation, vend, requery). Peyflex is the single-step alternate
// family. Both gateways translate transport failures into typed
// ProviderError values; orchestration never inspects raw HTTP.
package ports

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ficore-africa/vas-backend/internal/domain/entities"
	"github.com/ficore-africa/vas-backend/internal/domain/valueobjects"
)

// VendRequest describes one fulfillment attempt. Reference doubles as the
// provider-side vendReference; repeating a vend with the same reference is
// safe, any other repeat is not.
type VendRequest struct {
	Reference   string
	Network     string
	PhoneNumber string
	Amount      valueobjects.Money
	ProductCode string // provider plan code; empty for airtime
	PlanType    string
	IsAirtime   bool
}

// VendResult is a successful provider response.
type VendResult struct {
	TransactionReference string
	VendReference        string
	ProductName          string
	VendAmount           valueobjects.Money
	Commission           valueobjects.Money
	Raw                  map[string]interface{}
}

// Biller is a bill-pay category member (e.g. a network operator).
type Biller struct {
	Code     string
	Name     string
	Category string
}

// BillerProduct is one product under a biller.
type BillerProduct struct {
	Code   string
	Name   string
	Amount valueobjects.Money
}

// CustomerValidation is the pre-vend validation handshake result.
type CustomerValidation struct {
	ValidationReference  string
	RequireValidationRef bool
}

// DataPlan is a purchasable data bundle, normalized across providers.
type DataPlan struct {
	ID       string
	Name     string
	Network  string
	PlanType string
	Amount   valueobjects.Money
	Validity string
}

// BillPayGateway is the Monnify client contract.
type BillPayGateway interface {
	// Vend fulfills airtime or data. Handles the auth handshake, customer
	// validation when required, and a single requery after IN_PROGRESS.
	Vend(ctx context.Context, req VendRequest) (VendResult, error)

	// Billers lists billers for a category ("AIRTIME", "DATA_BUNDLE").
	Billers(ctx context.Context, category string) ([]Biller, error)

	// BillerProducts lists the products under a biller.
	BillerProducts(ctx context.Context, billerCode string) ([]BillerProduct, error)

	// DataPlans returns the normalized plan list for a network.
	DataPlans(ctx context.Context, network string) ([]DataPlan, error)
}

// VendorGateway is the Peyflex client contract.
type VendorGateway interface {
	Vend(ctx context.Context, req VendRequest) (VendResult, error)
	DataPlans(ctx context.Context, network string) ([]DataPlan, error)
}

// AccountProvisioner issues reserved bank accounts with the funding
// provider. Deposits to those accounts arrive as funding webhooks.
type AccountProvisioner interface {
	CreateReservedAccounts(ctx context.Context, userID uuid.UUID, accountReference, accountName, email string) ([]entities.ReservedAccount, error)
}

// TokenCache stores short-lived provider bearer tokens. Process-external
// (redis) so API and worker share one token and re-auth storms are avoided.
type TokenCache interface {
	Get(ctx context.Context, key string) (string, error) // "" when absent
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// CachedBalance is the lightweight polling view of a wallet.
type CachedBalance struct {
	Balance   valueobjects.Money
	Reserved  valueobjects.Money
	Available valueobjects.Money
	FetchedAt time.Time
}

// BalanceCache backs GET /wallet/balance/current (3-second client cadence)
// so polling does not hammer the wallet table. Invalidated on every wallet
// mutation.
type BalanceCache interface {
	Get(ctx context.Context, userID uuid.UUID) (*CachedBalance, error) // nil on miss
	Set(ctx context.Context, userID uuid.UUID, balance CachedBalance, ttl time.Duration) error
	Invalidate(ctx context.Context, userID uuid.UUID) error
}
