package routing

import (
	"errors"
	"testing"

	"github.com/ficore-africa/vas-backend/internal/domain/entities"
	domainErrors "github.com/ficore-africa/vas-backend/internal/domain/errors"
)

func TestRouteDataPlan(t *testing.T) {
	tests := []struct {
		name     string
		planType string
		network  string
		want     entities.Provider
		wantErr  error
	}{
		{"regular goes to monnify", "regular", "mtn", entities.ProviderMonnify, nil},
		{"all-plans goes to monnify", "all-plans", "airtel", entities.ProviderMonnify, nil},
		{"bare network id goes to monnify", "mtn", "mtn", entities.ProviderMonnify, nil},
		{"share goes to peyflex", "mtn_share", "mtn", entities.ProviderPeyflex, nil},
		{"gifting goes to peyflex", "glo_gifting", "glo", entities.ProviderPeyflex, nil},
		{"case and whitespace normalized", " MTN_SHARE ", "MTN", entities.ProviderPeyflex, nil},
		{"unknown network", "regular", "vodafone", "", domainErrors.ErrUnknownNetwork},
		{"unknown plan type", "mystery_plan", "mtn", "", domainErrors.ErrUnknownPlanType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := RouteDataPlan(tt.planType, tt.network)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("provider = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestRouteAirtime(t *testing.T) {
	primary, fallbackAllowed, err := RouteAirtime("mtn")
	if err != nil {
		t.Fatalf("RouteAirtime: %v", err)
	}
	if primary != entities.ProviderMonnify {
		t.Errorf("primary = %s, want MONNIFY", primary)
	}
	if !fallbackAllowed {
		t.Error("airtime fallback must be permitted")
	}
	if AirtimeFallback() != entities.ProviderPeyflex {
		t.Errorf("fallback = %s, want PEYFLEX", AirtimeFallback())
	}

	if _, _, err := RouteAirtime("vodafone"); !errors.Is(err, domainErrors.ErrUnknownNetwork) {
		t.Errorf("unknown network error = %v", err)
	}
}

func TestAlternativePlanTypes_SkipsSameProviderSiblings(t *testing.T) {
	// When a Peyflex family fails, siblings routed to Peyflex would fail the
	// same way; only the Monnify families remain actionable.
	alts := AlternativePlanTypes("mtn", "mtn_share")

	for _, alt := range alts {
		provider, err := RouteDataPlan(alt, "mtn")
		if err != nil {
			t.Fatalf("RouteDataPlan(%q): %v", alt, err)
		}
		if provider == entities.ProviderPeyflex {
			t.Errorf("alternative %q routes to the failed provider", alt)
		}
	}
	if len(alts) == 0 {
		t.Error("expected at least one alternative family")
	}
}

func TestPlanTypes(t *testing.T) {
	types, err := PlanTypes("mtn")
	if err != nil {
		t.Fatalf("PlanTypes: %v", err)
	}
	if len(types) != 4 {
		t.Errorf("len = %d, want 4", len(types))
	}
	if _, err := PlanTypes("vodafone"); !errors.Is(err, domainErrors.ErrUnknownNetwork) {
		t.Errorf("unknown network error = %v", err)
	}
}

func TestKnownNetworks(t *testing.T) {
	nets := KnownNetworks()
	if len(nets) != 4 {
		t.Fatalf("len = %d, want 4", len(nets))
	}
	// Sorted output keeps the API stable for clients.
	for i := 1; i < len(nets); i++ {
		if nets[i-1] >= nets[i] {
			t.Errorf("networks not sorted: %v", nets)
		}
	}
}
