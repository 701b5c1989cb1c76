package purchase

import (
	"fmt"

	"github.com/ficore-africa/vas-backend/internal/application/routing"
	"github.com/ficore-africa/vas-backend/internal/domain/valueobjects"
)

// deliveryTolerance is how far the delivered amount may drift from the
// requested face value before we call it a mismatch.
var deliveryTolerance = valueobjects.FromNaira(50)

// checkDelivery compares what the provider says it delivered against what the
// user asked for. A mismatch never fails the transaction; it flags it for
// human review, because the provider has already served something.
func checkDelivery(requestedPlan string, requestedAmount valueobjects.Money, deliveredPlan string, deliveredAmount valueobjects.Money, hasDeliveredAmount bool) (ok bool, detail string) {
	nameOK := deliveredPlan == "" || requestedPlan == "" ||
		routing.SharesShapeKeyword(requestedPlan, deliveredPlan)

	amountOK := true
	if hasDeliveredAmount {
		amountOK = requestedAmount.AbsDiff(deliveredAmount).LessThan(deliveredTolerancePlusOne())
	}

	switch {
	case nameOK && amountOK:
		return true, ""
	case !nameOK && !amountOK:
		return false, fmt.Sprintf("plan %q delivered as %q and amount %s delivered as %s",
			requestedPlan, deliveredPlan, requestedAmount, deliveredAmount)
	case !nameOK:
		return false, fmt.Sprintf("plan %q delivered as %q", requestedPlan, deliveredPlan)
	default:
		return false, fmt.Sprintf("amount %s delivered as %s", requestedAmount, deliveredAmount)
	}
}

// deliveredTolerancePlusOne makes the tolerance inclusive: a drift of exactly
// the tolerance is accepted.
func deliveredTolerancePlusOne() valueobjects.Money {
	return deliveryTolerance.Add(valueobjects.FromKobo(1))
}
