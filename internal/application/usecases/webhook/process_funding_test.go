package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ficore-africa/vas-backend/internal/domain/entities"
	domainErrors "github.com/ficore-africa/vas-backend/internal/domain/errors"
	"github.com/ficore-africa/vas-backend/internal/domain/events"
	"github.com/ficore-africa/vas-backend/internal/domain/valueobjects"
)

const testSecret = "whsec-funding-tests"

// signedEnvelope builds an event-envelope webhook body and its signature.
func signedEnvelope(t *testing.T, tx map[string]interface{}) ([]byte, string) {
	t.Helper()
	body, err := json.Marshal(map[string]interface{}{
		"eventType": "SUCCESSFUL_TRANSACTION",
		"eventData": tx,
	})
	if err != nil {
		t.Fatalf("marshal webhook body: %v", err)
	}
	return body, ComputeSignature(testSecret, body)
}

func depositBody(reference, accountRef, email string, amountNaira float64, status string) map[string]interface{} {
	return map[string]interface{}{
		"transactionReference": reference,
		"paymentReference":     "pay-" + reference,
		"paymentStatus":        status,
		"amountPaid":           amountNaira,
		"product": map[string]interface{}{
			"reference": accountRef,
			"type":      "RESERVED_ACCOUNT",
		},
		"customer": map[string]interface{}{
			"email": email,
			"name":  "Test Customer",
		},
	}
}

func testUser(email string, premium bool, referredBy *uuid.UUID, deposited bool) *entities.User {
	now := time.Now()
	var subEnd *time.Time
	if premium {
		e := now.Add(30 * 24 * time.Hour)
		subEnd = &e
	}
	var firstDeposit *time.Time
	if deposited {
		d := now.Add(-24 * time.Hour)
		firstDeposit = &d
	}
	return entities.ReconstructUser(
		uuid.New(), email, false, premium, "", subEnd,
		0, referredBy, firstDeposit, nil,
		valueobjects.Zero(), now, now,
	)
}

func fundedWallet(userID uuid.UUID) *entities.Wallet {
	now := time.Now()
	return entities.ReconstructWallet(
		uuid.New(), userID, entities.WalletStatusActive,
		valueobjects.Zero(), valueobjects.Zero(), 1,
		"FICORE"+userID.String(), nil,
		"", "", 0, nil,
		now, now,
	)
}

type fundingFixture struct {
	uc         *ProcessFundingUseCase
	wallets    *mockWalletRepo
	users      *mockUserRepo
	txs        *mockTxRepo
	accounting *mockAccountingRepo
	outbox     *mockOutbox
	cache      *mockBalanceCache
}

func newFundingFixture(user *entities.User, wallet *entities.Wallet, extra ...*entities.User) *fundingFixture {
	users := newMockUserRepo(extra...)
	if user != nil {
		users.users[user.ID()] = user
	}
	wallets := &mockWalletRepo{}
	if wallet != nil {
		wallets.findByUserIDFunc = func(_ context.Context, userID uuid.UUID) (*entities.Wallet, error) {
			if userID == wallet.UserID() {
				return wallet, nil
			}
			return nil, domainErrors.ErrWalletNotFound
		}
		wallets.findByAccountReferenceFunc = func(_ context.Context, reference string) (*entities.Wallet, error) {
			if reference == wallet.AccountReference() {
				return wallet, nil
			}
			return nil, domainErrors.ErrWalletNotFound
		}
	}

	f := &fundingFixture{
		wallets:    wallets,
		users:      users,
		txs:        &mockTxRepo{},
		accounting: &mockAccountingRepo{},
		outbox:     &mockOutbox{},
		cache:      &mockBalanceCache{},
	}
	f.uc = NewProcessFundingUseCase(
		f.wallets, f.users, f.txs, f.accounting,
		&mockUoW{}, f.outbox, f.cache, testSecret, slog.Default(),
	)
	return f
}

func TestProcessFunding_RejectsBadSignature(t *testing.T) {
	f := newFundingFixture(nil, nil)
	body, _ := signedEnvelope(t, depositBody("ref-1", "", "", 1000, "PAID"))

	_, err := f.uc.Execute(context.Background(), body, "deadbeef")
	if !errors.Is(err, domainErrors.ErrWebhookSignatureInvalid) {
		t.Fatalf("error = %v, want ErrWebhookSignatureInvalid", err)
	}
}

func TestProcessFunding_IgnoresNonPaid(t *testing.T) {
	f := newFundingFixture(nil, nil)
	body, sig := signedEnvelope(t, depositBody("ref-2", "", "", 1000, "FAILED"))

	outcome, err := f.uc.Execute(context.Background(), body, sig)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if outcome != OutcomeIgnored {
		t.Errorf("outcome = %s, want IGNORED", outcome)
	}
	if len(f.txs.created) != 0 {
		t.Error("non-paid event must not create ledger rows")
	}
}

func TestProcessFunding_DuplicateDelivery(t *testing.T) {
	user := testUser("dup@example.com", false, nil, true)
	wallet := fundedWallet(user.ID())
	f := newFundingFixture(user, wallet)

	prior, err := entities.NewFundingTransaction(user.ID(), valueobjects.FromNaira(100), "ref-3")
	if err != nil {
		t.Fatalf("NewFundingTransaction: %v", err)
	}
	f.txs.findByReferenceFunc = func(_ context.Context, reference string) (*entities.VasTransaction, error) {
		if reference == "ref-3" {
			return prior, nil
		}
		return nil, domainErrors.ErrTransactionNotFound
	}

	body, sig := signedEnvelope(t, depositBody("ref-3", wallet.AccountReference(), user.Email(), 100, "PAID"))
	outcome, err := f.uc.Execute(context.Background(), body, sig)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if outcome != OutcomeDuplicate {
		t.Errorf("outcome = %s, want DUPLICATE", outcome)
	}
	if !wallet.Balance().IsZero() {
		t.Error("duplicate delivery must not credit the wallet")
	}
}

func TestProcessFunding_CreditsStandardUser(t *testing.T) {
	user := testUser("fund@example.com", false, nil, true)
	wallet := fundedWallet(user.ID())
	f := newFundingFixture(user, wallet)

	// ₦10,000 in: ₦30 fee withheld, ₦9,970 credited.
	body, sig := signedEnvelope(t, depositBody("ref-4", wallet.AccountReference(), user.Email(), 10_000, "PAID"))
	outcome, err := f.uc.Execute(context.Background(), body, sig)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if outcome != OutcomeCredited {
		t.Fatalf("outcome = %s, want CREDITED", outcome)
	}
	if got := wallet.Balance().Kobo(); got != 997000 {
		t.Errorf("balance = %d kobo, want 997000", got)
	}

	if len(f.txs.created) != 1 {
		t.Fatalf("ledger rows = %d, want 1", len(f.txs.created))
	}
	row := f.txs.created[0]
	if row.Amount().Kobo() != 997000 {
		t.Errorf("ledger amount = %d kobo, want the credited amount", row.Amount().Kobo())
	}
	if row.Status() != entities.VasStatusSuccess {
		t.Errorf("ledger status = %s, want SUCCESS", row.Status())
	}

	// Fee revenue plus the gateway charge as a negative entry.
	if len(f.accounting.revenueEntries) != 2 {
		t.Fatalf("revenue entries = %d, want 2", len(f.accounting.revenueEntries))
	}
	if got := f.accounting.revenueEntries[0].Amount().Kobo(); got != 3000 {
		t.Errorf("fee entry = %d kobo, want 3000", got)
	}
	if got := f.accounting.revenueEntries[1].Amount().Kobo(); got != -16000 {
		t.Errorf("gateway entry = %d kobo, want -16000", got)
	}

	var credited *events.WalletCredited
	for _, ev := range f.outbox.saved {
		if wc, ok := ev.(*events.WalletCredited); ok {
			credited = wc
		}
	}
	if credited == nil {
		t.Error("expected a WalletCredited event in the outbox")
	}
	if len(f.cache.invalidated) != 1 || f.cache.invalidated[0] != user.ID() {
		t.Error("balance cache must be invalidated for the credited user")
	}
}

func TestProcessFunding_PremiumSkipsDepositFee(t *testing.T) {
	user := testUser("premium@example.com", true, nil, true)
	wallet := fundedWallet(user.ID())
	f := newFundingFixture(user, wallet)

	body, sig := signedEnvelope(t, depositBody("ref-5", wallet.AccountReference(), user.Email(), 10_000, "PAID"))
	if _, err := f.uc.Execute(context.Background(), body, sig); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got := wallet.Balance().Kobo(); got != 1_000_000 {
		t.Errorf("balance = %d kobo, want the full deposit", got)
	}
	// Only the gateway charge remains on the books.
	if len(f.accounting.revenueEntries) != 1 {
		t.Fatalf("revenue entries = %d, want 1", len(f.accounting.revenueEntries))
	}
	if f.accounting.revenueEntries[0].Amount().IsPositive() {
		t.Error("the only entry should be the negative gateway charge")
	}
}

func TestProcessFunding_ResolvesByEmailFallback(t *testing.T) {
	user := testUser("email-only@example.com", false, nil, true)
	wallet := fundedWallet(user.ID())
	f := newFundingFixture(user, wallet)

	// Account reference does not carry our prefix; email is the only handle.
	body, sig := signedEnvelope(t, depositBody("ref-6", "EXT-123", user.Email(), 1000, "PAID"))
	outcome, err := f.uc.Execute(context.Background(), body, sig)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if outcome != OutcomeCredited {
		t.Errorf("outcome = %s, want CREDITED", outcome)
	}
	if wallet.Balance().IsZero() {
		t.Error("wallet should be credited via the email match")
	}
}

func TestProcessFunding_UnmatchedUserAlertsAndAcks(t *testing.T) {
	f := newFundingFixture(nil, nil)

	body, sig := signedEnvelope(t, depositBody("ref-7", "EXT-999", "nobody@example.com", 1000, "PAID"))
	outcome, err := f.uc.Execute(context.Background(), body, sig)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if outcome != OutcomeUserUnresolved {
		t.Fatalf("outcome = %s, want USER_UNRESOLVED", outcome)
	}
	if len(f.outbox.saved) != 1 {
		t.Fatalf("outbox events = %d, want 1 admin alert", len(f.outbox.saved))
	}
	if _, ok := f.outbox.saved[0].(*events.AdminNotification); !ok {
		t.Errorf("event type = %T, want *events.AdminNotification", f.outbox.saved[0])
	}
}

func TestProcessFunding_VasEchoConfirmsVend(t *testing.T) {
	user := testUser("vend@example.com", false, nil, true)
	f := newFundingFixture(user, fundedWallet(user.ID()))

	vend, err := entities.NewFundingTransaction(user.ID(), valueobjects.FromNaira(500), "FICORE_req123")
	if err != nil {
		t.Fatalf("NewFundingTransaction: %v", err)
	}
	tx := depositBody("ref-8", "", user.Email(), 500, "PAID")
	tx["paymentReference"] = "FICORE_req123"
	f.txs.findByRequestIDFunc = func(_ context.Context, requestID string) (*entities.VasTransaction, error) {
		if requestID == "FICORE_req123" {
			return vend, nil
		}
		return nil, domainErrors.ErrTransactionNotFound
	}

	body, sig := signedEnvelope(t, tx)
	outcome, err := f.uc.Execute(context.Background(), body, sig)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if outcome != OutcomeVasConfirmation {
		t.Fatalf("outcome = %s, want VAS_CONFIRMATION", outcome)
	}
	if !vend.ProviderConfirmed() {
		t.Error("vend must be flagged provider-confirmed")
	}
	if len(f.txs.flagged) != 1 {
		t.Errorf("UpdateFlags calls = %d, want 1", len(f.txs.flagged))
	}
	if len(f.txs.created) != 0 {
		t.Error("a vend echo must not create a funding row")
	}
}

func TestProcessFunding_FirstDepositReferralHooks(t *testing.T) {
	referrer := testUser("referrer@example.com", false, nil, true)
	referrerID := referrer.ID()
	user := testUser("referred@example.com", false, &referrerID, false)
	wallet := fundedWallet(user.ID())
	f := newFundingFixture(user, wallet, referrer)

	// ₦1,000 first deposit: ₦970 credited, then the ₦30 fee comes back.
	body, sig := signedEnvelope(t, depositBody("ref-9", wallet.AccountReference(), user.Email(), 1000, "PAID"))
	if _, err := f.uc.Execute(context.Background(), body, sig); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if !user.HasDeposited() {
		t.Error("first deposit must be stamped on the user")
	}
	if got := wallet.Balance().Kobo(); got != 100000 {
		t.Errorf("balance = %d kobo, want 100000 with the fee refunded", got)
	}
	if got := user.FicoreCreditBalance(); got != entities.FirstDepositCreditBonus {
		t.Errorf("new user credits = %d, want %d", got, entities.FirstDepositCreditBonus)
	}
	if got := referrer.FicoreCreditBalance(); got != 0 {
		t.Errorf("referrer credits = %d, want 0; the bonus belongs to the new user", got)
	}
	if !referrer.VasShareActive(time.Now()) {
		t.Error("referrer VAS-share window must be open")
	}
	if len(f.users.saved) != 2 {
		t.Errorf("user saves = %d, want 2 (referred and referrer)", len(f.users.saved))
	}

	// The fee is charged and then handed back on the books.
	var refunds int
	for _, entry := range f.accounting.revenueEntries {
		if entry.Type() == entities.RevenueDepositFee && entry.Amount().Kobo() == -3000 {
			refunds++
		}
	}
	if refunds != 1 {
		t.Errorf("fee refund entries = %d, want 1", refunds)
	}

	var referralNotices int
	for _, ev := range f.outbox.saved {
		if n, ok := ev.(*events.UserNotification); ok && n.Kind == "referral" {
			referralNotices++
		}
	}
	if referralNotices != 2 {
		t.Errorf("referral notifications = %d, want one per side", referralNotices)
	}
}

func TestProcessFunding_FirstDepositWithoutReferral(t *testing.T) {
	user := testUser("solo@example.com", false, nil, false)
	wallet := fundedWallet(user.ID())
	f := newFundingFixture(user, wallet)

	body, sig := signedEnvelope(t, depositBody("ref-12", wallet.AccountReference(), user.Email(), 1000, "PAID"))
	if _, err := f.uc.Execute(context.Background(), body, sig); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if !user.HasDeposited() {
		t.Error("first deposit must be stamped on the user")
	}
	// No referral, no refund, no bonus: the fee stays withheld.
	if got := wallet.Balance().Kobo(); got != 97000 {
		t.Errorf("balance = %d kobo, want 97000", got)
	}
	if user.FicoreCreditBalance() != 0 {
		t.Errorf("credits = %d, want 0 without a referral", user.FicoreCreditBalance())
	}
}

func TestProcessFunding_SecondDepositSkipsReferralHooks(t *testing.T) {
	referrer := testUser("referrer2@example.com", false, nil, true)
	referrerID := referrer.ID()
	user := testUser("repeat@example.com", false, &referrerID, true)
	wallet := fundedWallet(user.ID())
	f := newFundingFixture(user, wallet, referrer)

	body, sig := signedEnvelope(t, depositBody("ref-10", wallet.AccountReference(), user.Email(), 5000, "PAID"))
	if _, err := f.uc.Execute(context.Background(), body, sig); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if referrer.FicoreCreditBalance() != 0 {
		t.Error("repeat deposits must not grant referral credits")
	}
	if len(f.users.saved) != 0 {
		t.Errorf("user saves = %d, want 0 on repeat deposits", len(f.users.saved))
	}
}

func TestProcessFunding_DepositBelowFee(t *testing.T) {
	user := testUser("tiny@example.com", false, nil, true)
	wallet := fundedWallet(user.ID())
	f := newFundingFixture(user, wallet)

	// ₦30 deposit exactly consumes the fee; nothing is creditable.
	body, sig := signedEnvelope(t, depositBody("ref-11", wallet.AccountReference(), user.Email(), 30, "PAID"))
	_, err := f.uc.Execute(context.Background(), body, sig)

	var violation *domainErrors.BusinessRuleViolation
	if !errors.As(err, &violation) {
		t.Fatalf("error = %v, want BusinessRuleViolation", err)
	}
	if !wallet.Balance().IsZero() {
		t.Error("wallet must stay untouched")
	}
}

func TestProcessFunding_PromotesStalledFundingRow(t *testing.T) {
	user := testUser("stalled@example.com", false, nil, true)
	wallet := fundedWallet(user.ID())
	f := newFundingFixture(user, wallet)

	// An earlier delivery died after writing the row but before crediting.
	prior, err := entities.NewVasTransaction(user.ID(), entities.VasTypeWalletFunding, valueobjects.FromNaira(970), "ref-13")
	if err != nil {
		t.Fatalf("NewVasTransaction: %v", err)
	}
	if err := prior.MarkPending(); err != nil {
		t.Fatalf("MarkPending: %v", err)
	}
	f.txs.findByReferenceFunc = func(_ context.Context, reference string) (*entities.VasTransaction, error) {
		if reference == "ref-13" {
			return prior, nil
		}
		return nil, domainErrors.ErrTransactionNotFound
	}

	body, sig := signedEnvelope(t, depositBody("ref-13", wallet.AccountReference(), user.Email(), 1000, "PAID"))
	outcome, err := f.uc.Execute(context.Background(), body, sig)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if outcome != OutcomeCredited {
		t.Fatalf("outcome = %s, want CREDITED", outcome)
	}
	if got := wallet.Balance().Kobo(); got != 97000 {
		t.Errorf("balance = %d kobo, want 97000", got)
	}
	if prior.Status() != entities.VasStatusSuccess {
		t.Errorf("prior row status = %s, want SUCCESS", prior.Status())
	}
	if len(f.txs.created) != 0 {
		t.Error("the stalled row must be promoted, not duplicated")
	}
	if len(f.txs.updated) != 1 {
		t.Errorf("ledger updates = %d, want 1", len(f.txs.updated))
	}
}

func TestProcessFunding_VasEchoSettlesPendingVend(t *testing.T) {
	user := testUser("pending-vend@example.com", false, nil, true)
	f := newFundingFixture(user, fundedWallet(user.ID()))

	vend, err := entities.NewVasTransaction(user.ID(), entities.VasTypeData, valueobjects.FromNaira(500), "FICORE_req456")
	if err != nil {
		t.Fatalf("NewVasTransaction: %v", err)
	}
	if err := vend.MarkPending(); err != nil {
		t.Fatalf("MarkPending: %v", err)
	}
	tx := depositBody("ref-14", "", user.Email(), 500, "PAID")
	tx["paymentReference"] = "FICORE_req456"
	f.txs.findByRequestIDFunc = func(_ context.Context, requestID string) (*entities.VasTransaction, error) {
		if requestID == "FICORE_req456" {
			return vend, nil
		}
		return nil, domainErrors.ErrTransactionNotFound
	}

	body, sig := signedEnvelope(t, tx)
	outcome, err := f.uc.Execute(context.Background(), body, sig)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if outcome != OutcomeVasConfirmation {
		t.Fatalf("outcome = %s, want VAS_CONFIRMATION", outcome)
	}
	if vend.Status() != entities.VasStatusSuccess {
		t.Errorf("vend status = %s, want SUCCESS after the provider echo", vend.Status())
	}
	if !vend.ProviderConfirmed() {
		t.Error("vend must be flagged provider-confirmed")
	}
	if len(f.txs.updated) != 1 {
		t.Errorf("ledger updates = %d, want 1", len(f.txs.updated))
	}
	if len(f.txs.created) != 0 {
		t.Error("a vend echo must not create a funding row")
	}
}

func TestProcessFunding_ResolvesByPendingKycReference(t *testing.T) {
	user := testUser("kyc@example.com", false, nil, true)
	wallet := fundedWallet(user.ID())
	f := newFundingFixture(user, wallet)

	kyc, err := entities.NewVasTransaction(user.ID(), entities.VasTypeKYCVerification, valueobjects.FromNaira(500), "pay-ref-15")
	if err != nil {
		t.Fatalf("NewVasTransaction: %v", err)
	}
	if err := kyc.MarkPending(); err != nil {
		t.Fatalf("MarkPending: %v", err)
	}
	f.txs.findByRequestIDFunc = func(_ context.Context, requestID string) (*entities.VasTransaction, error) {
		if requestID == "pay-ref-15" {
			return kyc, nil
		}
		return nil, domainErrors.ErrTransactionNotFound
	}

	// Neither the account reference nor the email matches anyone; only the
	// pending KYC row ties the payment back to the user.
	body, sig := signedEnvelope(t, depositBody("ref-15", "EXT-55", "someone-else@example.com", 1000, "PAID"))
	outcome, err := f.uc.Execute(context.Background(), body, sig)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if outcome != OutcomeCredited {
		t.Fatalf("outcome = %s, want CREDITED", outcome)
	}
	if got := wallet.Balance().Kobo(); got != 97000 {
		t.Errorf("balance = %d kobo, want 97000", got)
	}
}

func TestProcessFunding_MissingStatusFallsBackToEventType(t *testing.T) {
	user := testUser("no-status@example.com", false, nil, true)
	wallet := fundedWallet(user.ID())
	f := newFundingFixture(user, wallet)

	// Some deliveries drop paymentStatus; the envelope event type stands in.
	body, sig := signedEnvelope(t, depositBody("ref-16", wallet.AccountReference(), user.Email(), 1000, ""))
	outcome, err := f.uc.Execute(context.Background(), body, sig)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if outcome != OutcomeCredited {
		t.Fatalf("outcome = %s, want CREDITED", outcome)
	}
	if got := wallet.Balance().Kobo(); got != 97000 {
		t.Errorf("balance = %d kobo, want 97000", got)
	}
}
