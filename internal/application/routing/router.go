// Package routing maps a user's plan-type choice to a provider and product
// code. The mapping is deterministic: a data purchase never falls through to
// the other provider, because data plans are not interchangeable across
// providers. Airtime is the single product with a permitted fallback.
package routing

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ficore-africa/vas-backend/internal/domain/entities"
	"github.com/ficore-africa/vas-backend/internal/domain/errors"
)

// Networks supported by both providers.
var knownNetworks = map[string]bool{
	"mtn":     true,
	"airtel":  true,
	"glo":     true,
	"9mobile": true,
}

// Plan-type families per network. The labels are what the mobile app shows;
// the suffix decides the provider.
var planTypesByNetwork = map[string][]string{
	"mtn":     {"regular", "all-plans", "mtn_share", "mtn_gifting"},
	"airtel":  {"regular", "all-plans", "airtel_share", "airtel_gifting"},
	"glo":     {"regular", "all-plans", "glo_share", "glo_gifting"},
	"9mobile": {"regular", "all-plans", "9mobile_share", "9mobile_gifting"},
}

// IsKnownNetwork reports whether the network is supported.
func IsKnownNetwork(network string) bool {
	return knownNetworks[strings.ToLower(strings.TrimSpace(network))]
}

// KnownNetworks returns the supported network ids, sorted.
func KnownNetworks() []string {
	out := make([]string, 0, len(knownNetworks))
	for n := range knownNetworks {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// PlanTypes returns the plan-family labels for a network.
func PlanTypes(network string) ([]string, error) {
	network = strings.ToLower(strings.TrimSpace(network))
	types, ok := planTypesByNetwork[network]
	if !ok {
		return nil, errors.ErrUnknownNetwork
	}
	out := make([]string, len(types))
	copy(out, types)
	return out, nil
}

// RouteDataPlan resolves the provider for a data purchase from the
// user-visible plan type. No implicit fallback: the choice is authoritative.
//
//	regular / all-plans / bare network id -> Monnify (standard family)
//	*_share                               -> Peyflex (shared bundles)
//	*_gifting                             -> Peyflex (gifting)
func RouteDataPlan(planType, network string) (entities.Provider, error) {
	network = strings.ToLower(strings.TrimSpace(network))
	if !knownNetworks[network] {
		return "", errors.ErrUnknownNetwork
	}

	pt := strings.ToLower(strings.TrimSpace(planType))
	switch {
	case pt == "regular" || pt == "all-plans" || pt == network:
		return entities.ProviderMonnify, nil
	case strings.HasSuffix(pt, "_share"):
		return entities.ProviderPeyflex, nil
	case strings.HasSuffix(pt, "_gifting"):
		return entities.ProviderPeyflex, nil
	default:
		return "", fmt.Errorf("%w: %q", errors.ErrUnknownPlanType, planType)
	}
}

// RouteAirtime returns the primary provider and whether a fallback to the
// alternate is permitted. Airtime is fungible across providers so Monnify
// failure may retry once on Peyflex.
func RouteAirtime(network string) (primary entities.Provider, fallbackAllowed bool, err error) {
	if !IsKnownNetwork(network) {
		return "", false, errors.ErrUnknownNetwork
	}
	return entities.ProviderMonnify, true, nil
}

// AirtimeFallback is the alternate airtime provider.
func AirtimeFallback() entities.Provider {
	return entities.ProviderPeyflex
}

// AlternativePlanTypes lists the plan families a user can switch to when
// their chosen family's provider is down. Surfaced inside the
// ProviderUnavailable error so the client can render actionable choices.
func AlternativePlanTypes(network, failedPlanType string) []string {
	types, err := PlanTypes(network)
	if err != nil {
		return nil
	}
	failed := strings.ToLower(strings.TrimSpace(failedPlanType))
	out := make([]string, 0, len(types))
	for _, t := range types {
		if t == failed {
			continue
		}
		// Skip siblings routed to the same provider; they would fail the
		// same way.
		failedProvider, errA := RouteDataPlan(failed, network)
		siblingProvider, errB := RouteDataPlan(t, network)
		if errA == nil && errB == nil && failedProvider == siblingProvider {
			continue
		}
		out = append(out, t)
	}
	return out
}
