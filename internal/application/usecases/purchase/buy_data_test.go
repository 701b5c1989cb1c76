package purchase

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/ficore-africa/vas-backend/internal/application/dtos"
	"github.com/ficore-africa/vas-backend/internal/application/ports"
	"github.com/ficore-africa/vas-backend/internal/domain/entities"
	domainErrors "github.com/ficore-africa/vas-backend/internal/domain/errors"
	"github.com/ficore-africa/vas-backend/internal/domain/valueobjects"
)

func dataCmd(userID uuid.UUID, planType, planID string) dtos.BuyDataCommand {
	return dtos.BuyDataCommand{
		UserID:       userID,
		PhoneNumber:  "08031234567",
		Network:      "mtn",
		Amount:       "1000",
		DataPlanID:   planID,
		DataPlanName: "MTN 1GB Monthly",
		PlanType:     planType,
	}
}

func TestBuyData_RegularRoutesToMonnify(t *testing.T) {
	userID := uuid.New()
	f := newPipelineFixture(activeWallet(userID, valueobjects.FromNaira(5000)))

	result, err := f.dataUC().Execute(context.Background(), dataCmd(userID, "regular", "MTN-DATA-1GB-30D"))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.Provider != string(entities.ProviderMonnify) {
		t.Errorf("provider = %q, want MONNIFY", result.Provider)
	}
	if len(f.peyflex.vendRequests) != 0 {
		t.Error("regular plans must not touch Peyflex")
	}
	req := f.monnify.vendRequests[0]
	if req.IsAirtime {
		t.Error("data vend must not be flagged airtime")
	}
	if req.ProductCode != "MTN-DATA-1GB-30D" {
		t.Errorf("product code = %q, want unchanged", req.ProductCode)
	}
}

func TestBuyData_ShareRoutesToPeyflex(t *testing.T) {
	userID := uuid.New()
	f := newPipelineFixture(activeWallet(userID, valueobjects.FromNaira(5000)))

	result, err := f.dataUC().Execute(context.Background(), dataCmd(userID, "mtn_share", "mtn-1gb-monthly"))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.Provider != string(entities.ProviderPeyflex) {
		t.Errorf("provider = %q, want PEYFLEX", result.Provider)
	}
	if len(f.monnify.vendRequests) != 0 {
		t.Error("share plans must not touch Monnify")
	}
}

func TestBuyData_TranslatesForeignPlanCode(t *testing.T) {
	userID := uuid.New()
	f := newPipelineFixture(activeWallet(userID, valueobjects.FromNaira(5000)))

	// Peyflex-shaped code picked from a fallback catalog, but the plan type
	// routes to Monnify: the code is translated before the vend.
	_, err := f.dataUC().Execute(context.Background(), dataCmd(userID, "regular", "mtn-1gb-monthly"))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got := f.monnify.vendRequests[0].ProductCode; got != "MTN-DATA-1GB-30D" {
		t.Errorf("product code = %q, want MTN-DATA-1GB-30D", got)
	}
}

func TestBuyData_NoCrossProviderFallback(t *testing.T) {
	userID := uuid.New()
	f := newPipelineFixture(activeWallet(userID, valueobjects.FromNaira(5000)))
	f.peyflex.vendFunc = func(_ context.Context, _ ports.VendRequest) (ports.VendResult, error) {
		return ports.VendResult{}, domainErrors.NewProviderError(
			string(entities.ProviderPeyflex), domainErrors.ProviderUnreachable, "down", nil)
	}

	_, err := f.dataUC().Execute(context.Background(), dataCmd(userID, "mtn_share", "mtn-1gb-monthly"))
	if err == nil {
		t.Fatal("expected an error when the routed provider fails")
	}
	if len(f.monnify.vendRequests) != 0 {
		t.Error("data purchases must never fall back across providers")
	}

	// The user gets actionable plan families, none on the failed provider.
	pe, ok := domainErrors.IsProviderError(err)
	if !ok {
		t.Fatalf("error = %v, want ProviderError", err)
	}
	if pe.Kind != domainErrors.ProviderUnavailable {
		t.Errorf("kind = %s, want PROVIDER_UNAVAILABLE", pe.Kind)
	}
	if len(pe.Alternatives) == 0 {
		t.Error("alternatives must list the other plan families")
	}

	// Hold released, row failed.
	if !f.wallets.wallet.Reserved().IsZero() {
		t.Error("hold must be released after the vend failure")
	}
	if f.txs.single().Status() != entities.VasStatusFailed {
		t.Error("ledger row must be FAILED")
	}
}

func TestBuyData_RejectedPassesThrough(t *testing.T) {
	userID := uuid.New()
	f := newPipelineFixture(activeWallet(userID, valueobjects.FromNaira(5000)))
	f.peyflex.vendFunc = func(_ context.Context, _ ports.VendRequest) (ports.VendResult, error) {
		return ports.VendResult{}, domainErrors.NewProviderError(
			string(entities.ProviderPeyflex), domainErrors.ProviderRejected, "invalid phone number", nil)
	}

	_, err := f.dataUC().Execute(context.Background(), dataCmd(userID, "mtn_share", "mtn-1gb-monthly"))
	pe, ok := domainErrors.IsProviderError(err)
	if !ok {
		t.Fatalf("error = %v, want ProviderError", err)
	}
	// Bad input gets no alternatives; a different family will not fix it.
	if pe.Kind != domainErrors.ProviderRejected {
		t.Errorf("kind = %s, want PROVIDER_REJECTED", pe.Kind)
	}
	if len(pe.Alternatives) != 0 {
		t.Error("rejections must not suggest alternatives")
	}
}

func TestBuyData_UnknownPlanType(t *testing.T) {
	userID := uuid.New()
	f := newPipelineFixture(activeWallet(userID, valueobjects.FromNaira(5000)))

	_, err := f.dataUC().Execute(context.Background(), dataCmd(userID, "mystery_plan", "mtn-1gb-monthly"))
	if !errors.Is(err, domainErrors.ErrUnknownPlanType) {
		t.Fatalf("error = %v, want ErrUnknownPlanType", err)
	}
}

func TestBuyData_Validation(t *testing.T) {
	f := newPipelineFixture(nil)

	_, err := f.dataUC().Execute(context.Background(), dtos.BuyDataCommand{
		UserID:      uuid.New(),
		PhoneNumber: "08031234567",
		Network:     "mtn",
		Amount:      "0",
		PlanType:    "regular",
	})
	var verrs domainErrors.ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("error = %v, want ValidationErrors", err)
	}
	// Zero amount and the missing plan id.
	if len(verrs) != 2 {
		t.Errorf("field errors = %d, want 2", len(verrs))
	}
}
