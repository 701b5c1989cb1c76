// Package events defines domain events that represent significant business
// occurrences. Events are immutable facts about what happened in the past.
//
// The core never mutates external state directly: bookkeeping, corporate
// revenue, referral accounting and notifications all consume these events.
// Events are written to the outbox inside the same database transaction as
// the business mutation and published to NATS by the poller.
package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/ficore-africa/vas-backend/internal/domain/valueobjects"
)

// DomainEvent is the base interface for all domain events.
type DomainEvent interface {
	EventID() uuid.UUID
	EventType() string
	OccurredAt() time.Time
	AggregateID() uuid.UUID // ID of the entity that raised this event
}

// BaseEvent provides common fields for all events.
type BaseEvent struct {
	eventID     uuid.UUID
	eventType   string
	occurredAt  time.Time
	aggregateID uuid.UUID
}

func newBaseEvent(eventType string, aggregateID uuid.UUID) BaseEvent {
	return BaseEvent{
		eventID:     uuid.New(),
		eventType:   eventType,
		occurredAt:  time.Now(),
		aggregateID: aggregateID,
	}
}

func (e BaseEvent) EventID() uuid.UUID     { return e.eventID }
func (e BaseEvent) EventType() string      { return e.eventType }
func (e BaseEvent) OccurredAt() time.Time  { return e.occurredAt }
func (e BaseEvent) AggregateID() uuid.UUID { return e.aggregateID }

// Event types. The type doubles as the NATS subject suffix.
const (
	EventTypeWalletCredited      = "wallet.credited"
	EventTypeWalletDebited       = "wallet.debited"
	EventTypeLedgerExpense       = "ledger.expense"
	EventTypeLedgerIncome        = "ledger.income"
	EventTypeRevenueRecorded     = "revenue.recorded"
	EventTypeReferralPayout      = "referral.payout"
	EventTypeUserNotification    = "notify.user"
	EventTypeAdminNotification   = "notify.admin"
	EventTypeOperatorAlert       = "ops.alert"
	EventTypePurchaseSettled     = "purchase.settled"
)

// ===== Wallet Events =====

// WalletCredited is raised when funds land in a wallet.
type WalletCredited struct {
	BaseEvent
	UserID     uuid.UUID
	Amount     valueobjects.Money
	Reference  string
	NewBalance valueobjects.Money
}

func NewWalletCredited(walletID, userID uuid.UUID, amount valueobjects.Money, reference string, newBalance valueobjects.Money) *WalletCredited {
	return &WalletCredited{
		BaseEvent:  newBaseEvent(EventTypeWalletCredited, walletID),
		UserID:     userID,
		Amount:     amount,
		Reference:  reference,
		NewBalance: newBalance,
	}
}

// WalletDebited is raised when a reservation commits or an admin deduction
// applies.
type WalletDebited struct {
	BaseEvent
	UserID     uuid.UUID
	Amount     valueobjects.Money
	Reference  string
	NewBalance valueobjects.Money
}

func NewWalletDebited(walletID, userID uuid.UUID, amount valueobjects.Money, reference string, newBalance valueobjects.Money) *WalletDebited {
	return &WalletDebited{
		BaseEvent:  newBaseEvent(EventTypeWalletDebited, walletID),
		UserID:     userID,
		Amount:     amount,
		Reference:  reference,
		NewBalance: newBalance,
	}
}

// ===== Bookkeeping Events (consumed by the external income/expense module) =====

// LedgerExpenseRecorded instructs the bookkeeping module to create an
// expense row for the user. The core never writes ledger rows itself.
type LedgerExpenseRecorded struct {
	BaseEvent
	UserID      uuid.UUID
	Amount      valueobjects.Money
	Category    string
	Reference   string
	Description string
}

func NewLedgerExpenseRecorded(userID uuid.UUID, amount valueobjects.Money, category, reference, description string) *LedgerExpenseRecorded {
	return &LedgerExpenseRecorded{
		BaseEvent:   newBaseEvent(EventTypeLedgerExpense, userID),
		UserID:      userID,
		Amount:      amount,
		Category:    category,
		Reference:   reference,
		Description: description,
	}
}

// LedgerIncomeRecorded instructs the bookkeeping module to create an income
// row (e.g. referral earnings on the referrer's books).
type LedgerIncomeRecorded struct {
	BaseEvent
	UserID      uuid.UUID
	Amount      valueobjects.Money
	Category    string
	Reference   string
	Description string
}

func NewLedgerIncomeRecorded(userID uuid.UUID, amount valueobjects.Money, category, reference, description string) *LedgerIncomeRecorded {
	return &LedgerIncomeRecorded{
		BaseEvent:   newBaseEvent(EventTypeLedgerIncome, userID),
		UserID:      userID,
		Amount:      amount,
		Category:    category,
		Reference:   reference,
		Description: description,
	}
}

// ===== Accounting Events =====

// RevenueRecorded mirrors a corporate revenue entry for downstream reporting.
type RevenueRecorded struct {
	BaseEvent
	EntryType string
	Amount    valueobjects.Money
	Reference string
}

func NewRevenueRecorded(entryID uuid.UUID, entryType string, amount valueobjects.Money, reference string) *RevenueRecorded {
	return &RevenueRecorded{
		BaseEvent: newBaseEvent(EventTypeRevenueRecorded, entryID),
		EntryType: entryType,
		Amount:    amount,
		Reference: reference,
	}
}

// ReferralPayoutRecorded is raised when the 1% VAS share is credited.
type ReferralPayoutRecorded struct {
	BaseEvent
	ReferrerID     uuid.UUID
	ReferredUserID uuid.UUID
	Amount         valueobjects.Money
	Reference      string
}

func NewReferralPayoutRecorded(payoutID, referrerID, referredUserID uuid.UUID, amount valueobjects.Money, reference string) *ReferralPayoutRecorded {
	return &ReferralPayoutRecorded{
		BaseEvent:      newBaseEvent(EventTypeReferralPayout, payoutID),
		ReferrerID:     referrerID,
		ReferredUserID: referredUserID,
		Amount:         amount,
		Reference:      reference,
	}
}

// ===== Notification Events =====

// UserNotification is delivered to the user's device/inbox by the
// notification service.
type UserNotification struct {
	BaseEvent
	UserID  uuid.UUID
	Title   string
	Body    string
	Kind    string // e.g. "funding", "purchase", "pin"
	Payload map[string]interface{}
}

func NewUserNotification(userID uuid.UUID, kind, title, body string, payload map[string]interface{}) *UserNotification {
	return &UserNotification{
		BaseEvent: newBaseEvent(EventTypeUserNotification, userID),
		UserID:    userID,
		Title:     title,
		Body:      body,
		Kind:      kind,
		Payload:   payload,
	}
}

// AdminNotification alerts the back office (mismatches, review queues).
type AdminNotification struct {
	BaseEvent
	Subject string
	Body    string
	Payload map[string]interface{}
}

func NewAdminNotification(aggregateID uuid.UUID, subject, body string, payload map[string]interface{}) *AdminNotification {
	return &AdminNotification{
		BaseEvent: newBaseEvent(EventTypeAdminNotification, aggregateID),
		Subject:   subject,
		Body:      body,
		Payload:   payload,
	}
}

// OperatorAlert pages the on-call when automation gives up (settlement
// retries exhausted).
type OperatorAlert struct {
	BaseEvent
	Component string
	Message   string
	Reference string
}

func NewOperatorAlert(aggregateID uuid.UUID, component, message, reference string) *OperatorAlert {
	return &OperatorAlert{
		BaseEvent: newBaseEvent(EventTypeOperatorAlert, aggregateID),
		Component: component,
		Message:   message,
		Reference: reference,
	}
}

// ===== Purchase Events =====

// PurchaseSettled is raised when settlement completes end to end.
type PurchaseSettled struct {
	BaseEvent
	UserID    uuid.UUID
	Reference string
	Amount    valueobjects.Money
	Provider  string
}

func NewPurchaseSettled(transactionID, userID uuid.UUID, reference string, amount valueobjects.Money, provider string) *PurchaseSettled {
	return &PurchaseSettled{
		BaseEvent: newBaseEvent(EventTypePurchaseSettled, transactionID),
		UserID:    userID,
		Reference: reference,
		Amount:    amount,
		Provider:  provider,
	}
}
