package purchase

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/google/uuid"

	"github.com/ficore-africa/vas-backend/internal/application/dtos"
	"github.com/ficore-africa/vas-backend/internal/application/ports"
	"github.com/ficore-africa/vas-backend/internal/domain/entities"
	domainErrors "github.com/ficore-africa/vas-backend/internal/domain/errors"
	"github.com/ficore-africa/vas-backend/internal/domain/valueobjects"
)

type pipelineFixture struct {
	wallets      *memWalletRepo
	reservations *memReservationRepo
	txs          *memTxRepo
	tasks        *memTaskRepo
	users        *mockUserRepo
	outbox       *mockOutbox
	monnify      *mockBillPay
	peyflex      *mockVendor
	cache        *mockBalanceCache
}

func newPipelineFixture(wallet *entities.Wallet) *pipelineFixture {
	return &pipelineFixture{
		wallets:      &memWalletRepo{wallet: wallet},
		reservations: newMemReservationRepo(),
		txs:          newMemTxRepo(),
		tasks:        &memTaskRepo{},
		users:        newMockUserRepo(),
		outbox:       &mockOutbox{},
		monnify:      &mockBillPay{},
		peyflex:      &mockVendor{},
		cache:        &mockBalanceCache{},
	}
}

func (f *pipelineFixture) airtimeUC() *BuyAirtimeUseCase {
	return NewBuyAirtimeUseCase(
		f.wallets, f.reservations, f.txs, f.tasks, f.users,
		&mockUoW{}, f.outbox, f.monnify, f.peyflex, f.cache,
		slog.Default(),
	)
}

func (f *pipelineFixture) dataUC() *BuyDataUseCase {
	return NewBuyDataUseCase(
		f.wallets, f.reservations, f.txs, f.tasks, f.users,
		&mockUoW{}, f.outbox, f.monnify, f.peyflex, f.cache,
		slog.Default(),
	)
}

func airtimeCmd(userID uuid.UUID, amount string) dtos.BuyAirtimeCommand {
	return dtos.BuyAirtimeCommand{
		UserID:      userID,
		PhoneNumber: "08031234567",
		Network:     "mtn",
		Amount:      amount,
	}
}

func TestBuyAirtime_Success(t *testing.T) {
	userID := uuid.New()
	f := newPipelineFixture(activeWallet(userID, valueobjects.FromNaira(1000)))

	result, err := f.airtimeUC().Execute(context.Background(), airtimeCmd(userID, "500"))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if result.ProcessingStatus != "QUEUED" {
		t.Errorf("status = %q, want QUEUED", result.ProcessingStatus)
	}
	if result.Provider != string(entities.ProviderMonnify) {
		t.Errorf("provider = %q, want MONNIFY", result.Provider)
	}
	if result.AvailableBalance != "500.00" {
		t.Errorf("available = %q, want 500.00", result.AvailableBalance)
	}

	// Funds are held, not debited; the worker commits later.
	wallet := f.wallets.wallet
	if got := wallet.Balance().Kobo(); got != 100000 {
		t.Errorf("balance = %d kobo, want untouched 100000", got)
	}
	if got := wallet.Reserved().Kobo(); got != 50000 {
		t.Errorf("reserved = %d kobo, want 50000", got)
	}

	tx := f.txs.single()
	if tx == nil {
		t.Fatal("no ledger row created")
	}
	if tx.Status() != entities.VasStatusPending {
		t.Errorf("ledger status = %s, want PENDING after enqueue", tx.Status())
	}

	if len(f.tasks.tasks) != 1 {
		t.Fatalf("tasks = %d, want 1", len(f.tasks.tasks))
	}
	var payload entities.SettlementPayload
	if err := json.Unmarshal(f.tasks.tasks[0].Payload(), &payload); err != nil {
		t.Fatalf("task payload: %v", err)
	}
	if payload.Reference != tx.RequestID() {
		t.Error("task payload must carry the request id")
	}
	if payload.TransactionID != tx.ID() {
		t.Error("task payload must reference the ledger row")
	}

	if len(f.monnify.vendRequests) != 1 {
		t.Fatalf("monnify vends = %d, want 1", len(f.monnify.vendRequests))
	}
	if !f.monnify.vendRequests[0].IsAirtime {
		t.Error("vend request must be flagged airtime")
	}
	if len(f.cache.invalidated) == 0 {
		t.Error("balance cache must be invalidated after the hold")
	}
}

func TestBuyAirtime_FallsBackToPeyflex(t *testing.T) {
	userID := uuid.New()
	f := newPipelineFixture(activeWallet(userID, valueobjects.FromNaira(1000)))
	f.monnify.vendFunc = func(_ context.Context, _ ports.VendRequest) (ports.VendResult, error) {
		return ports.VendResult{}, domainErrors.NewProviderError(
			string(entities.ProviderMonnify), domainErrors.ProviderUnreachable, "connect timeout", nil)
	}

	result, err := f.airtimeUC().Execute(context.Background(), airtimeCmd(userID, "200"))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.Provider != string(entities.ProviderPeyflex) {
		t.Errorf("provider = %q, want PEYFLEX after fallback", result.Provider)
	}
	if len(f.peyflex.vendRequests) != 1 {
		t.Fatalf("peyflex vends = %d, want 1", len(f.peyflex.vendRequests))
	}
	// The fallback vend reuses the same reference; the provider dedupes on it.
	if f.peyflex.vendRequests[0].Reference != f.monnify.vendRequests[0].Reference {
		t.Error("fallback must reuse the original vend reference")
	}
	if f.txs.single().Provider() != entities.ProviderPeyflex {
		t.Error("ledger row must record the provider that actually delivered")
	}
}

func TestBuyAirtime_BothProvidersFailReleasesHold(t *testing.T) {
	userID := uuid.New()
	f := newPipelineFixture(activeWallet(userID, valueobjects.FromNaira(1000)))
	vendFail := func(provider string) func(context.Context, ports.VendRequest) (ports.VendResult, error) {
		return func(_ context.Context, _ ports.VendRequest) (ports.VendResult, error) {
			return ports.VendResult{}, domainErrors.NewProviderError(
				provider, domainErrors.ProviderUnreachable, "down", nil)
		}
	}
	f.monnify.vendFunc = vendFail("MONNIFY")
	f.peyflex.vendFunc = vendFail("PEYFLEX")

	_, err := f.airtimeUC().Execute(context.Background(), airtimeCmd(userID, "200"))
	if err == nil {
		t.Fatal("expected an error when both providers fail")
	}

	wallet := f.wallets.wallet
	if !wallet.Reserved().IsZero() {
		t.Errorf("reserved = %d kobo, want 0 after release", wallet.Reserved().Kobo())
	}
	if got := wallet.Balance().Kobo(); got != 100000 {
		t.Errorf("balance = %d kobo, want untouched 100000", got)
	}

	tx := f.txs.single()
	if tx.Status() != entities.VasStatusFailed {
		t.Errorf("ledger status = %s, want FAILED", tx.Status())
	}
	if tx.FailureReason() == entities.FailureReasonInProgress {
		t.Error("failure reason must carry the vend error, not the placeholder")
	}
	if len(f.tasks.tasks) != 0 {
		t.Error("no settlement task on a failed vend")
	}

	for _, r := range f.reservations.reservations {
		if r.State() != entities.ReservationReleased {
			t.Errorf("reservation state = %s, want RELEASED", r.State())
		}
	}
}

func TestBuyAirtime_InsufficientFunds(t *testing.T) {
	userID := uuid.New()
	f := newPipelineFixture(activeWallet(userID, valueobjects.FromNaira(100)))

	_, err := f.airtimeUC().Execute(context.Background(), airtimeCmd(userID, "500"))
	if !errors.Is(err, domainErrors.ErrInsufficientFunds) {
		t.Fatalf("error = %v, want ErrInsufficientFunds", err)
	}
	if len(f.monnify.vendRequests) != 0 {
		t.Error("no vend may happen without a hold")
	}
	if len(f.tasks.tasks) != 0 {
		t.Error("no settlement task without a vend")
	}
}

func TestBuyAirtime_RecentDuplicateRejected(t *testing.T) {
	userID := uuid.New()
	f := newPipelineFixture(activeWallet(userID, valueobjects.FromNaira(1000)))

	prior, _ := entities.NewVasTransaction(userID, entities.VasTypeAirtime, valueobjects.FromNaira(500), "req-prior")
	f.txs.recentSuccessFunc = func() (*entities.VasTransaction, error) { return prior, nil }

	_, err := f.airtimeUC().Execute(context.Background(), airtimeCmd(userID, "500"))
	if !errors.Is(err, domainErrors.ErrRecentDuplicate) {
		t.Fatalf("error = %v, want ErrRecentDuplicate", err)
	}
	if len(f.monnify.vendRequests) != 0 {
		t.Error("duplicate guard must fire before any vend")
	}
}

func TestBuyAirtime_InFlightRejected(t *testing.T) {
	userID := uuid.New()
	f := newPipelineFixture(activeWallet(userID, valueobjects.FromNaira(1000)))

	pending, _ := entities.NewVasTransaction(userID, entities.VasTypeAirtime, valueobjects.FromNaira(500), "req-pending")
	f.txs.pendingDuplicateFunc = func() (*entities.VasTransaction, error) { return pending, nil }

	_, err := f.airtimeUC().Execute(context.Background(), airtimeCmd(userID, "500"))
	if !errors.Is(err, domainErrors.ErrPurchaseInFlight) {
		t.Fatalf("error = %v, want ErrPurchaseInFlight", err)
	}
}

func TestBuyAirtime_Validation(t *testing.T) {
	f := newPipelineFixture(nil)
	uc := f.airtimeUC()

	_, err := uc.Execute(context.Background(), dtos.BuyAirtimeCommand{
		UserID:      uuid.New(),
		PhoneNumber: "12345",
		Network:     "vodafone",
		Amount:      "lots",
	})
	var verrs domainErrors.ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("error = %v, want ValidationErrors", err)
	}
	if len(verrs) != 3 {
		t.Errorf("field errors = %d, want amount, phone and network", len(verrs))
	}
}

func TestBuyAirtime_AmountOutOfRange(t *testing.T) {
	userID := uuid.New()
	f := newPipelineFixture(activeWallet(userID, valueobjects.FromNaira(100_000)))
	uc := f.airtimeUC()

	for _, amount := range []string{"50", "10000"} {
		_, err := uc.Execute(context.Background(), airtimeCmd(userID, amount))
		var violation *domainErrors.BusinessRuleViolation
		if !errors.As(err, &violation) {
			t.Errorf("amount %s: error = %v, want BusinessRuleViolation", amount, err)
		}
	}
}

func TestValidatePhone(t *testing.T) {
	valid := []string{"08031234567", "+2348031234567", "07011112222", "09123456789"}
	for _, phone := range valid {
		if err := validatePhone(phone); err != nil {
			t.Errorf("validatePhone(%q) = %v, want nil", phone, err)
		}
	}
	invalid := []string{"", "12345", "0603123456", "080312345", "080312345678"}
	for _, phone := range invalid {
		if err := validatePhone(phone); err == nil {
			t.Errorf("validatePhone(%q) = nil, want error", phone)
		}
	}
}
