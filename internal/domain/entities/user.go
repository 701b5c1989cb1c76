// Package entities - User is read-mostly for the wallet core. The core
// consults subscription state for fee waivers and pricing, and touches the
// referral fields only at the funding and settlement hooks.
package entities

import (
	"time"

	"github.com/google/uuid"

	"github.com/ficore-africa/vas-backend/internal/domain/valueobjects"
)

// Referral program constants applied by the core hooks.
const (
	// FirstDepositCreditBonus is the FiCore Credits grant on a referred
	// user's first successful deposit.
	FirstDepositCreditBonus = 5
	// VasShareWindow is how long a referrer earns the VAS share after
	// activation.
	VasShareWindow = 90 * 24 * time.Hour
)

// User mirrors the identity module's view of a user.
type User struct {
	id                  uuid.UUID
	email               string
	isAdmin             bool
	isSubscribed        bool
	subscriptionPlan    string
	subscriptionEndDate *time.Time

	// Separate credit economy, denominated in whole credits.
	ficoreCreditBalance int64

	// Referral linkage
	referredBy         *uuid.UUID
	firstDepositAt     *time.Time
	vasShareExpiryDate *time.Time

	// Referrer-side earnings available for withdrawal.
	withdrawableBalance valueobjects.Money

	createdAt time.Time
	updatedAt time.Time
}

// ReconstructUser rebuilds a User from stored data.
func ReconstructUser(
	id uuid.UUID,
	email string,
	isAdmin, isSubscribed bool,
	subscriptionPlan string,
	subscriptionEndDate *time.Time,
	ficoreCreditBalance int64,
	referredBy *uuid.UUID,
	firstDepositAt, vasShareExpiryDate *time.Time,
	withdrawableBalance valueobjects.Money,
	createdAt, updatedAt time.Time,
) *User {
	return &User{
		id:                  id,
		email:               email,
		isAdmin:             isAdmin,
		isSubscribed:        isSubscribed,
		subscriptionPlan:    subscriptionPlan,
		subscriptionEndDate: subscriptionEndDate,
		ficoreCreditBalance: ficoreCreditBalance,
		referredBy:          referredBy,
		firstDepositAt:      firstDepositAt,
		vasShareExpiryDate:  vasShareExpiryDate,
		withdrawableBalance: withdrawableBalance,
		createdAt:           createdAt,
		updatedAt:           updatedAt,
	}
}

// Getters

func (u *User) ID() uuid.UUID                  { return u.id }
func (u *User) Email() string                  { return u.email }
func (u *User) IsAdmin() bool                  { return u.isAdmin }
func (u *User) IsSubscribed() bool             { return u.isSubscribed }
func (u *User) SubscriptionPlan() string       { return u.subscriptionPlan }
func (u *User) SubscriptionEndDate() *time.Time { return u.subscriptionEndDate }
func (u *User) FicoreCreditBalance() int64     { return u.ficoreCreditBalance }
func (u *User) ReferredBy() *uuid.UUID         { return u.referredBy }
func (u *User) FirstDepositAt() *time.Time     { return u.firstDepositAt }
func (u *User) VasShareExpiryDate() *time.Time { return u.vasShareExpiryDate }
func (u *User) WithdrawableBalance() valueobjects.Money { return u.withdrawableBalance }
func (u *User) CreatedAt() time.Time           { return u.createdAt }
func (u *User) UpdatedAt() time.Time           { return u.updatedAt }

// IsPremium reports whether the user currently enjoys fee waivers:
// admins always, subscribers while the subscription has not lapsed.
func (u *User) IsPremium(now time.Time) bool {
	if u.isAdmin {
		return true
	}
	if !u.isSubscribed {
		return false
	}
	if u.subscriptionEndDate != nil && now.After(*u.subscriptionEndDate) {
		return false
	}
	return true
}

// HasDeposited reports whether the user has completed a funding before.
func (u *User) HasDeposited() bool {
	return u.firstDepositAt != nil
}

// RecordFirstDeposit stamps the first successful funding.
func (u *User) RecordFirstDeposit(now time.Time) {
	if u.firstDepositAt == nil {
		t := now
		u.firstDepositAt = &t
		u.updatedAt = now
	}
}

// GrantCredits adds FiCore Credits (separate economy from the wallet).
func (u *User) GrantCredits(credits int64) {
	u.ficoreCreditBalance += credits
	u.updatedAt = time.Now()
}

// ActivateVasShare opens the referrer's 90-day VAS-share window.
func (u *User) ActivateVasShare(now time.Time) {
	expiry := now.Add(VasShareWindow)
	u.vasShareExpiryDate = &expiry
	u.updatedAt = now
}

// VasShareActive reports whether the referrer currently earns the VAS share.
func (u *User) VasShareActive(now time.Time) bool {
	return u.vasShareExpiryDate != nil && !now.After(*u.vasShareExpiryDate)
}

// CreditWithdrawable adds referral earnings to the withdrawable balance.
func (u *User) CreditWithdrawable(amount valueobjects.Money) {
	u.withdrawableBalance = u.withdrawableBalance.Add(amount)
	u.updatedAt = time.Now()
}
