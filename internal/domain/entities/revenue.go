// Package entities - corporate accounting rows emitted by the core:
// revenue entries, plan-mismatch logs, referral payouts and admin audit rows.
// All are append-only; cross-references are by id or ledger reference.
package entities

import (
	"time"

	"github.com/google/uuid"

	"github.com/ficore-africa/vas-backend/internal/domain/valueobjects"
)

// RevenueType classifies a corporate revenue entry.
type RevenueType string

const (
	RevenueVasCommission  RevenueType = "VAS_COMMISSION"
	RevenueDepositFee     RevenueType = "DEPOSIT_FEE"
	RevenueGatewayCost    RevenueType = "GATEWAY_COST"     // negative amounts
	RevenueReferralPayout RevenueType = "REFERRAL_PAYOUT"  // negative amounts
)

// CorporateRevenueEntry is one economic event the business earns or incurs.
// Amounts are signed: costs and payouts are negative.
type CorporateRevenueEntry struct {
	id          uuid.UUID
	entryType   RevenueType
	amount      valueobjects.Money
	reference   string // links back to the VasTransaction by ledger reference
	userID      *uuid.UUID
	description string
	createdAt   time.Time
}

// NewRevenueEntry creates a corporate revenue row.
func NewRevenueEntry(entryType RevenueType, amount valueobjects.Money, reference, description string, userID *uuid.UUID) *CorporateRevenueEntry {
	return &CorporateRevenueEntry{
		id:          uuid.New(),
		entryType:   entryType,
		amount:      amount,
		reference:   reference,
		userID:      userID,
		description: description,
		createdAt:   time.Now(),
	}
}

// ReconstructRevenueEntry rebuilds a row from stored data.
func ReconstructRevenueEntry(
	id uuid.UUID,
	entryType RevenueType,
	amount valueobjects.Money,
	reference string,
	userID *uuid.UUID,
	description string,
	createdAt time.Time,
) *CorporateRevenueEntry {
	return &CorporateRevenueEntry{
		id:          id,
		entryType:   entryType,
		amount:      amount,
		reference:   reference,
		userID:      userID,
		description: description,
		createdAt:   createdAt,
	}
}

func (e *CorporateRevenueEntry) ID() uuid.UUID              { return e.id }
func (e *CorporateRevenueEntry) Type() RevenueType          { return e.entryType }
func (e *CorporateRevenueEntry) Amount() valueobjects.Money { return e.amount }
func (e *CorporateRevenueEntry) Reference() string          { return e.reference }
func (e *CorporateRevenueEntry) UserID() *uuid.UUID         { return e.userID }
func (e *CorporateRevenueEntry) Description() string        { return e.description }
func (e *CorporateRevenueEntry) CreatedAt() time.Time       { return e.createdAt }

// MismatchSeverity grades a delivered-product divergence.
type MismatchSeverity string

const (
	MismatchSeverityHigh MismatchSeverity = "HIGH"
)

// PlanMismatchLog records a delivered product that diverges from the request.
// The transaction stays SUCCESS; this row feeds the human review queue.
type PlanMismatchLog struct {
	id              uuid.UUID
	transactionID   uuid.UUID
	requestedPlan   string
	deliveredPlan   string
	requestedAmount valueobjects.Money
	deliveredAmount valueobjects.Money
	severity        MismatchSeverity
	refundEligible  bool
	createdAt       time.Time
}

// NewPlanMismatchLog creates a mismatch record.
func NewPlanMismatchLog(
	transactionID uuid.UUID,
	requestedPlan, deliveredPlan string,
	requestedAmount, deliveredAmount valueobjects.Money,
	refundEligible bool,
) *PlanMismatchLog {
	return &PlanMismatchLog{
		id:              uuid.New(),
		transactionID:   transactionID,
		requestedPlan:   requestedPlan,
		deliveredPlan:   deliveredPlan,
		requestedAmount: requestedAmount,
		deliveredAmount: deliveredAmount,
		severity:        MismatchSeverityHigh,
		refundEligible:  refundEligible,
		createdAt:       time.Now(),
	}
}

func (l *PlanMismatchLog) ID() uuid.UUID                        { return l.id }
func (l *PlanMismatchLog) TransactionID() uuid.UUID             { return l.transactionID }
func (l *PlanMismatchLog) RequestedPlan() string                { return l.requestedPlan }
func (l *PlanMismatchLog) DeliveredPlan() string                { return l.deliveredPlan }
func (l *PlanMismatchLog) RequestedAmount() valueobjects.Money  { return l.requestedAmount }
func (l *PlanMismatchLog) DeliveredAmount() valueobjects.Money  { return l.deliveredAmount }
func (l *PlanMismatchLog) Severity() MismatchSeverity           { return l.severity }
func (l *PlanMismatchLog) RefundEligible() bool                 { return l.refundEligible }
func (l *PlanMismatchLog) CreatedAt() time.Time                 { return l.createdAt }

// PayoutType classifies referral payouts.
type PayoutType string

const (
	// PayoutWithdrawable credits the referrer's withdrawable balance.
	PayoutWithdrawable PayoutType = "WITHDRAWABLE"
)

// ReferralPayout is the 1% VAS share written for an active referrer.
type ReferralPayout struct {
	id             uuid.UUID
	referrerID     uuid.UUID
	referredUserID uuid.UUID
	reference      string // source transaction ledger reference
	amount         valueobjects.Money
	payoutType     PayoutType
	createdAt      time.Time
}

// NewReferralPayout creates a WITHDRAWABLE payout row.
func NewReferralPayout(referrerID, referredUserID uuid.UUID, reference string, amount valueobjects.Money) *ReferralPayout {
	return &ReferralPayout{
		id:             uuid.New(),
		referrerID:     referrerID,
		referredUserID: referredUserID,
		reference:      reference,
		amount:         amount,
		payoutType:     PayoutWithdrawable,
		createdAt:      time.Now(),
	}
}

func (p *ReferralPayout) ID() uuid.UUID             { return p.id }
func (p *ReferralPayout) ReferrerID() uuid.UUID     { return p.referrerID }
func (p *ReferralPayout) ReferredUserID() uuid.UUID { return p.referredUserID }
func (p *ReferralPayout) Reference() string         { return p.reference }
func (p *ReferralPayout) Amount() valueobjects.Money { return p.amount }
func (p *ReferralPayout) Type() PayoutType          { return p.payoutType }
func (p *ReferralPayout) CreatedAt() time.Time      { return p.createdAt }

// AdminAction is an audit row for privileged operations (PIN resets,
// refunds, deductions).
type AdminAction struct {
	id         uuid.UUID
	adminID    uuid.UUID
	action     string
	targetUser uuid.UUID
	reference  string
	note       string
	createdAt  time.Time
}

// NewAdminAction creates an audit row.
func NewAdminAction(adminID uuid.UUID, action string, targetUser uuid.UUID, reference, note string) *AdminAction {
	return &AdminAction{
		id:         uuid.New(),
		adminID:    adminID,
		action:     action,
		targetUser: targetUser,
		reference:  reference,
		note:       note,
		createdAt:  time.Now(),
	}
}

func (a *AdminAction) ID() uuid.UUID         { return a.id }
func (a *AdminAction) AdminID() uuid.UUID    { return a.adminID }
func (a *AdminAction) Action() string        { return a.action }
func (a *AdminAction) TargetUser() uuid.UUID { return a.targetUser }
func (a *AdminAction) Reference() string     { return a.reference }
func (a *AdminAction) Note() string          { return a.note }
func (a *AdminAction) CreatedAt() time.Time  { return a.createdAt }
