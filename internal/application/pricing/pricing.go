// Package pricing holds the fee and commission constants and the split
// computations. Airtime and data sell at face value; the business margin is
// the provider commission. Fees apply only to funding.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/ficore-africa/vas-backend/internal/domain/entities"
	"github.com/ficore-africa/vas-backend/internal/domain/valueobjects"
)

// Purchase bounds.
var (
	AirtimeMin = valueobjects.FromNaira(100)
	AirtimeMax = valueobjects.FromNaira(5000)
)

// Commission rates per provider and product family.
var (
	monnifyRate        = decimal.RequireFromString("0.03") // 3% all products
	peyflexDataRate    = decimal.RequireFromString("0.05") // 5% on data
	peyflexAirtimeRate = decimal.RequireFromString("0.01") // 1% on airtime
)

// Funding fee constants.
var (
	// DepositFee is the flat service fee on non-premium deposits.
	DepositFee = valueobjects.FromNaira(30)
	// gatewayRate is what the funding provider charges us on amountPaid.
	gatewayRate = decimal.RequireFromString("0.016") // 1.6%
)

// ReferralShareRate is the referrer's cut of face value inside the 90-day
// window.
var ReferralShareRate = decimal.RequireFromString("0.01") // 1%

// CommissionRate returns the provider commission rate for a product family.
func CommissionRate(provider entities.Provider, vasType entities.VasType) decimal.Decimal {
	switch provider {
	case entities.ProviderMonnify:
		return monnifyRate
	case entities.ProviderPeyflex:
		if vasType == entities.VasTypeAirtime {
			return peyflexAirtimeRate
		}
		return peyflexDataRate
	default:
		return decimal.Zero
	}
}

// VasEconomics is the commission split for one successful vend.
type VasEconomics struct {
	Rate               decimal.Decimal
	ProviderCommission valueobjects.Money // amount x rate
	ProviderCost       valueobjects.Money // amount - commission
	GatewayFee         valueobjects.Money // zero on VAS
	NetMargin          valueobjects.Money // commission - gatewayFee
}

// ComputeVasEconomics derives the commission split from face value.
func ComputeVasEconomics(provider entities.Provider, vasType entities.VasType, amount valueobjects.Money) VasEconomics {
	rate := CommissionRate(provider, vasType)
	commission := amount.ApplyRate(rate)
	gatewayFee := valueobjects.Zero() // fees apply only to funding
	return VasEconomics{
		Rate:               rate,
		ProviderCommission: commission,
		ProviderCost:       amount.Sub(commission),
		GatewayFee:         gatewayFee,
		NetMargin:          commission.Sub(gatewayFee),
	}
}

// FundingSplit is the fee breakdown of one deposit.
type FundingSplit struct {
	DepositFee        valueobjects.Money
	GatewayFee        valueobjects.Money
	NetDepositRevenue valueobjects.Money // may be negative for premium users
	AmountToCredit    valueobjects.Money
}

// ComputeFundingSplit derives the deposit split. Premium, subscribed and
// admin users pay no deposit fee; the gateway still charges us, so their
// net revenue is negative and tracked as a cost.
func ComputeFundingSplit(amountPaid valueobjects.Money, premium bool) FundingSplit {
	fee := DepositFee
	if premium {
		fee = valueobjects.Zero()
	}
	gatewayFee := amountPaid.ApplyRate(gatewayRate)
	return FundingSplit{
		DepositFee:        fee,
		GatewayFee:        gatewayFee,
		NetDepositRevenue: fee.Sub(gatewayFee),
		AmountToCredit:    amountPaid.Sub(fee),
	}
}

// ReferralShare computes the 1% VAS share of a face value.
func ReferralShare(faceValue valueobjects.Money) valueobjects.Money {
	return faceValue.ApplyRate(ReferralShareRate)
}
