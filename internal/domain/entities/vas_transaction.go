// Package entities - VasTransaction is the append-only ledger row for every
// wallet movement: funding, airtime, data, KYC fees, admin adjustments.
//
// State machine:
//
//	created as FAILED/"in-progress" (purchases) or SUCCESS (funding)
//	FAILED/"in-progress" -> SUCCESS | FAILED(reason)
//	PENDING -> SUCCESS | FAILED(reason)
//
// Rows in a terminal state are never mutated; the repository enforces the
// same rule at the storage layer.
package entities

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ficore-africa/vas-backend/internal/domain/errors"
	"github.com/ficore-africa/vas-backend/internal/domain/valueobjects"
)

// VasType represents the kind of wallet movement.
type VasType string

const (
	VasTypeWalletFunding   VasType = "WALLET_FUNDING"
	VasTypeAirtime         VasType = "AIRTIME"
	VasTypeData            VasType = "DATA"
	VasTypeKYCVerification VasType = "KYC_VERIFICATION"
	VasTypeAdminRefund     VasType = "ADMIN_REFUND"
	VasTypeAdminDeduction  VasType = "ADMIN_DEDUCTION"
)

// IsValid checks if the transaction type is valid.
func (t VasType) IsValid() bool {
	switch t {
	case VasTypeWalletFunding, VasTypeAirtime, VasTypeData,
		VasTypeKYCVerification, VasTypeAdminRefund, VasTypeAdminDeduction:
		return true
	default:
		return false
	}
}

// VasStatus represents the current state of a transaction.
type VasStatus string

const (
	VasStatusFailed  VasStatus = "FAILED"
	VasStatusPending VasStatus = "PENDING"
	VasStatusSuccess VasStatus = "SUCCESS"
)

// IsValid checks if the status is valid.
func (s VasStatus) IsValid() bool {
	return s == VasStatusFailed || s == VasStatusPending || s == VasStatusSuccess
}

// Provider identifies which system fulfilled a transaction.
type Provider string

const (
	ProviderMonnify  Provider = "MONNIFY"
	ProviderPeyflex  Provider = "PEYFLEX"
	ProviderInternal Provider = "INTERNAL"
)

// FailureReasonInProgress marks the honest placeholder written before any
// provider call. A crash leaves a FAILED row with this reason rather than a
// silent PENDING.
const FailureReasonInProgress = "in-progress"

// VasTransaction is one row of the transaction ledger.
type VasTransaction struct {
	id      uuid.UUID
	userID  uuid.UUID
	vasType VasType
	subtype string

	// Pricing. Airtime and data sell at face value: sellingPrice and
	// totalAmount equal amount, margin comes from provider commission only.
	amount       valueobjects.Money // face value
	sellingPrice valueobjects.Money
	totalAmount  valueobjects.Money // amount debited from the wallet

	status        VasStatus
	failureReason string

	provider     Provider
	network      string
	phoneNumber  string
	dataPlanID   string
	dataPlanName string

	// requestID is the idempotency key for the whole intention: provider
	// vendReference, ledger reference and task payload all carry it.
	requestID            string
	transactionReference string

	// Economics
	providerCost           valueobjects.Money
	providerCommission     valueobjects.Money
	providerCommissionRate decimal.Decimal
	gatewayFee             valueobjects.Money
	netMargin              valueobjects.Money
	isPremiumUser          bool

	// Side flags. A mismatch or settlement failure never reverses a
	// SUCCESS; it is flagged for humans instead.
	needsReconciliation bool
	providerConfirmed   bool
	settlementFailed    bool

	metadata map[string]interface{} // raw provider payload

	createdAt   time.Time
	completedAt *time.Time
	expiresAt   *time.Time
}

// NewVasTransaction creates a purchase ledger row in the create-FAILED-first
// convention: status FAILED with reason "in-progress", promoted only after a
// durable settlement step.
func NewVasTransaction(
	userID uuid.UUID,
	vasType VasType,
	amount valueobjects.Money,
	requestID string,
) (*VasTransaction, error) {
	if !vasType.IsValid() {
		return nil, errors.ValidationError{Field: "type", Message: "invalid transaction type"}
	}
	if requestID == "" {
		return nil, errors.ValidationError{Field: "requestId", Message: "request ID is required"}
	}
	if !amount.IsPositive() {
		return nil, errors.NewBusinessRuleViolation(
			"INVALID_AMOUNT",
			"transaction amount must be positive",
			map[string]interface{}{"amount": amount.String()},
		)
	}

	return &VasTransaction{
		id:            uuid.New(),
		userID:        userID,
		vasType:       vasType,
		amount:        amount,
		sellingPrice:  amount,
		totalAmount:   amount,
		status:        VasStatusFailed,
		failureReason: FailureReasonInProgress,
		provider:      ProviderInternal,
		requestID:     requestID,
		metadata:      make(map[string]interface{}),
		createdAt:     time.Now(),
	}, nil
}

// NewFundingTransaction creates a SUCCESS wallet-funding row. Funding rows
// are written only after the webhook is verified, so they are born terminal.
func NewFundingTransaction(
	userID uuid.UUID,
	amountCredited valueobjects.Money,
	reference string,
) (*VasTransaction, error) {
	if reference == "" {
		return nil, errors.ValidationError{Field: "reference", Message: "transaction reference is required"}
	}
	if !amountCredited.IsPositive() {
		return nil, errors.NewBusinessRuleViolation(
			"INVALID_AMOUNT",
			"credited amount must be positive",
			map[string]interface{}{"amount": amountCredited.String()},
		)
	}

	now := time.Now()
	return &VasTransaction{
		id:                   uuid.New(),
		userID:               userID,
		vasType:              VasTypeWalletFunding,
		amount:               amountCredited,
		sellingPrice:         amountCredited,
		totalAmount:          amountCredited,
		status:               VasStatusSuccess,
		provider:             ProviderInternal,
		requestID:            reference,
		transactionReference: reference,
		metadata:             make(map[string]interface{}),
		createdAt:            now,
		completedAt:          &now,
	}, nil
}

// ReconstructVasTransaction rebuilds a transaction from stored data.
func ReconstructVasTransaction(
	id, userID uuid.UUID,
	vasType VasType,
	subtype string,
	amount, sellingPrice, totalAmount valueobjects.Money,
	status VasStatus,
	failureReason string,
	provider Provider,
	network, phoneNumber, dataPlanID, dataPlanName string,
	requestID, transactionReference string,
	providerCost, providerCommission valueobjects.Money,
	providerCommissionRate decimal.Decimal,
	gatewayFee, netMargin valueobjects.Money,
	isPremiumUser, needsReconciliation, providerConfirmed, settlementFailed bool,
	metadata map[string]interface{},
	createdAt time.Time,
	completedAt, expiresAt *time.Time,
) *VasTransaction {
	if metadata == nil {
		metadata = make(map[string]interface{})
	}
	return &VasTransaction{
		id:                     id,
		userID:                 userID,
		vasType:                vasType,
		subtype:                subtype,
		amount:                 amount,
		sellingPrice:           sellingPrice,
		totalAmount:            totalAmount,
		status:                 status,
		failureReason:          failureReason,
		provider:               provider,
		network:                network,
		phoneNumber:            phoneNumber,
		dataPlanID:             dataPlanID,
		dataPlanName:           dataPlanName,
		requestID:              requestID,
		transactionReference:   transactionReference,
		providerCost:           providerCost,
		providerCommission:     providerCommission,
		providerCommissionRate: providerCommissionRate,
		gatewayFee:             gatewayFee,
		netMargin:              netMargin,
		isPremiumUser:          isPremiumUser,
		needsReconciliation:    needsReconciliation,
		providerConfirmed:      providerConfirmed,
		settlementFailed:       settlementFailed,
		metadata:               metadata,
		createdAt:              createdAt,
		completedAt:            completedAt,
		expiresAt:              expiresAt,
	}
}

// Getters

func (t *VasTransaction) ID() uuid.UUID                 { return t.id }
func (t *VasTransaction) UserID() uuid.UUID             { return t.userID }
func (t *VasTransaction) Type() VasType                 { return t.vasType }
func (t *VasTransaction) Subtype() string               { return t.subtype }
func (t *VasTransaction) Amount() valueobjects.Money    { return t.amount }
func (t *VasTransaction) SellingPrice() valueobjects.Money { return t.sellingPrice }
func (t *VasTransaction) TotalAmount() valueobjects.Money  { return t.totalAmount }
func (t *VasTransaction) Status() VasStatus             { return t.status }
func (t *VasTransaction) FailureReason() string         { return t.failureReason }
func (t *VasTransaction) Provider() Provider            { return t.provider }
func (t *VasTransaction) Network() string               { return t.network }
func (t *VasTransaction) PhoneNumber() string           { return t.phoneNumber }
func (t *VasTransaction) DataPlanID() string            { return t.dataPlanID }
func (t *VasTransaction) DataPlanName() string          { return t.dataPlanName }
func (t *VasTransaction) RequestID() string             { return t.requestID }
func (t *VasTransaction) TransactionReference() string  { return t.transactionReference }
func (t *VasTransaction) ProviderCost() valueobjects.Money       { return t.providerCost }
func (t *VasTransaction) ProviderCommission() valueobjects.Money { return t.providerCommission }
func (t *VasTransaction) ProviderCommissionRate() decimal.Decimal { return t.providerCommissionRate }
func (t *VasTransaction) GatewayFee() valueobjects.Money { return t.gatewayFee }
func (t *VasTransaction) NetMargin() valueobjects.Money  { return t.netMargin }
func (t *VasTransaction) IsPremiumUser() bool            { return t.isPremiumUser }
func (t *VasTransaction) NeedsReconciliation() bool      { return t.needsReconciliation }
func (t *VasTransaction) ProviderConfirmed() bool        { return t.providerConfirmed }
func (t *VasTransaction) SettlementFailed() bool         { return t.settlementFailed }
func (t *VasTransaction) Metadata() map[string]interface{} { return t.metadata }
func (t *VasTransaction) CreatedAt() time.Time           { return t.createdAt }
func (t *VasTransaction) CompletedAt() *time.Time        { return t.completedAt }
func (t *VasTransaction) ExpiresAt() *time.Time          { return t.expiresAt }

// IsTerminal reports whether the row may no longer change status.
// A FAILED row with the "in-progress" reason is the one non-terminal FAILED
// shape; it exists so a crash leaves an honest record.
func (t *VasTransaction) IsTerminal() bool {
	switch t.status {
	case VasStatusSuccess:
		return true
	case VasStatusFailed:
		return t.failureReason != FailureReasonInProgress
	default:
		return false
	}
}

// SetPurchaseDetails fills the VAS-specific fields at creation time.
func (t *VasTransaction) SetPurchaseDetails(network, phoneNumber, dataPlanID, dataPlanName, subtype string, isPremium bool) {
	t.network = network
	t.phoneNumber = phoneNumber
	t.dataPlanID = dataPlanID
	t.dataPlanName = dataPlanName
	t.subtype = subtype
	t.isPremiumUser = isPremium
}

// SetProvider records which provider is fulfilling the purchase.
func (t *VasTransaction) SetProvider(p Provider) {
	t.provider = p
}

// SetEconomics records the commission split computed at settlement.
func (t *VasTransaction) SetEconomics(cost, commission valueobjects.Money, rate decimal.Decimal, gatewayFee, netMargin valueobjects.Money) {
	t.providerCost = cost
	t.providerCommission = commission
	t.providerCommissionRate = rate
	t.gatewayFee = gatewayFee
	t.netMargin = netMargin
}

// SetMetadata stores the raw provider payload.
func (t *VasTransaction) SetMetadata(key string, value interface{}) {
	t.metadata[key] = value
}

// MarkPending moves an in-progress row to PENDING (provider accepted, awaiting
// settlement).
func (t *VasTransaction) MarkPending() error {
	if t.IsTerminal() {
		return errors.ErrTransactionTerminal
	}
	t.status = VasStatusPending
	t.failureReason = ""
	return nil
}

// MarkSuccess promotes the row to SUCCESS with the provider reference.
func (t *VasTransaction) MarkSuccess(transactionReference string) error {
	if t.IsTerminal() {
		return errors.ErrTransactionTerminal
	}
	t.status = VasStatusSuccess
	t.failureReason = ""
	if transactionReference != "" {
		t.transactionReference = transactionReference
	} else if t.transactionReference == "" {
		t.transactionReference = t.requestID
	}
	now := time.Now()
	t.completedAt = &now
	return nil
}

// MarkFailed finalizes the row as FAILED with a real reason.
func (t *VasTransaction) MarkFailed(reason string) error {
	if t.IsTerminal() {
		return errors.ErrTransactionTerminal
	}
	if reason == "" || reason == FailureReasonInProgress {
		reason = "unknown failure"
	}
	t.status = VasStatusFailed
	t.failureReason = reason
	now := time.Now()
	t.completedAt = &now
	return nil
}

// FlagReconciliation marks a delivered-product mismatch. The transaction
// stays SUCCESS; human review decides compensation.
func (t *VasTransaction) FlagReconciliation() {
	t.needsReconciliation = true
}

// ConfirmByProvider records a provider activity webhook for this row.
func (t *VasTransaction) ConfirmByProvider() {
	t.providerConfirmed = true
}

// FlagSettlementFailure marks that post-provider settlement exhausted its
// retries. The user was served; the row stays SUCCESS.
func (t *VasTransaction) FlagSettlementFailure() {
	t.settlementFailed = true
}
