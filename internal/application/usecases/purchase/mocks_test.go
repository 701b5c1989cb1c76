package purchase

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ficore-africa/vas-backend/internal/application/ports"
	"github.com/ficore-africa/vas-backend/internal/domain/entities"
	domainErrors "github.com/ficore-africa/vas-backend/internal/domain/errors"
	"github.com/ficore-africa/vas-backend/internal/domain/events"
	"github.com/ficore-africa/vas-backend/internal/domain/valueobjects"
)

// In-memory fakes for the pipeline tests. The pipeline re-reads state inside
// transactions (abort, enqueue), so these hold real state instead of canned
// returns.

type memWalletRepo struct {
	wallet *entities.Wallet
	saves  int
}

func (m *memWalletRepo) Save(_ context.Context, wallet *entities.Wallet) error {
	m.wallet = wallet
	m.saves++
	return nil
}

func (m *memWalletRepo) FindByUserID(_ context.Context, userID uuid.UUID) (*entities.Wallet, error) {
	if m.wallet != nil && m.wallet.UserID() == userID {
		return m.wallet, nil
	}
	return nil, domainErrors.ErrWalletNotFound
}

func (m *memWalletRepo) FindByAccountReference(_ context.Context, reference string) (*entities.Wallet, error) {
	if m.wallet != nil && m.wallet.AccountReference() == reference {
		return m.wallet, nil
	}
	return nil, domainErrors.ErrWalletNotFound
}

func (m *memWalletRepo) ExistsByUserID(_ context.Context, userID uuid.UUID) (bool, error) {
	return m.wallet != nil && m.wallet.UserID() == userID, nil
}

type memReservationRepo struct {
	reservations map[uuid.UUID]*entities.Reservation
}

func newMemReservationRepo() *memReservationRepo {
	return &memReservationRepo{reservations: make(map[uuid.UUID]*entities.Reservation)}
}

func (m *memReservationRepo) Save(_ context.Context, r *entities.Reservation) error {
	m.reservations[r.ID()] = r
	return nil
}

func (m *memReservationRepo) FindByID(_ context.Context, id uuid.UUID) (*entities.Reservation, error) {
	if r, ok := m.reservations[id]; ok {
		return r, nil
	}
	return nil, domainErrors.ErrReservationNotFound
}

func (m *memReservationRepo) SumHeldByUser(_ context.Context, _ uuid.UUID) (valueobjects.Money, error) {
	total := valueobjects.Zero()
	for _, r := range m.reservations {
		if r.State() == entities.ReservationHeld {
			total = total.Add(r.Amount())
		}
	}
	return total, nil
}

func (m *memReservationRepo) FindStaleHeld(_ context.Context, cutoff time.Time, _ int) ([]*entities.Reservation, error) {
	var stale []*entities.Reservation
	for _, r := range m.reservations {
		if r.State() == entities.ReservationHeld && r.CreatedAt().Before(cutoff) {
			stale = append(stale, r)
		}
	}
	return stale, nil
}

type memTxRepo struct {
	txs map[uuid.UUID]*entities.VasTransaction

	recentSuccessFunc    func() (*entities.VasTransaction, error)
	pendingDuplicateFunc func() (*entities.VasTransaction, error)
}

func newMemTxRepo() *memTxRepo {
	return &memTxRepo{txs: make(map[uuid.UUID]*entities.VasTransaction)}
}

func (m *memTxRepo) Create(_ context.Context, tx *entities.VasTransaction) error {
	for _, existing := range m.txs {
		if existing.RequestID() == tx.RequestID() {
			return domainErrors.ErrDuplicateRequest
		}
	}
	m.txs[tx.ID()] = tx
	return nil
}

func (m *memTxRepo) Update(_ context.Context, tx *entities.VasTransaction) error {
	m.txs[tx.ID()] = tx
	return nil
}

func (m *memTxRepo) UpdateFlags(_ context.Context, tx *entities.VasTransaction) error {
	m.txs[tx.ID()] = tx
	return nil
}

func (m *memTxRepo) FindByID(_ context.Context, id uuid.UUID) (*entities.VasTransaction, error) {
	if tx, ok := m.txs[id]; ok {
		return tx, nil
	}
	return nil, domainErrors.ErrTransactionNotFound
}

func (m *memTxRepo) FindByRequestID(_ context.Context, requestID string) (*entities.VasTransaction, error) {
	for _, tx := range m.txs {
		if tx.RequestID() == requestID {
			return tx, nil
		}
	}
	return nil, domainErrors.ErrTransactionNotFound
}

func (m *memTxRepo) FindByReference(_ context.Context, reference string) (*entities.VasTransaction, error) {
	for _, tx := range m.txs {
		if tx.TransactionReference() == reference {
			return tx, nil
		}
	}
	return nil, domainErrors.ErrTransactionNotFound
}

func (m *memTxRepo) FindRecentSuccess(_ context.Context, _ uuid.UUID, _ entities.VasType, _ valueobjects.Money, _ string, _ time.Duration) (*entities.VasTransaction, error) {
	if m.recentSuccessFunc != nil {
		return m.recentSuccessFunc()
	}
	return nil, nil
}

func (m *memTxRepo) FindPendingDuplicate(_ context.Context, _ uuid.UUID, _ entities.VasType, _ valueobjects.Money, _ string, _ time.Duration) (*entities.VasTransaction, error) {
	if m.pendingDuplicateFunc != nil {
		return m.pendingDuplicateFunc()
	}
	return nil, nil
}

func (m *memTxRepo) List(_ context.Context, _ ports.TransactionFilter, _, _ int) ([]*entities.VasTransaction, error) {
	return nil, nil
}

func (m *memTxRepo) Count(_ context.Context, _ ports.TransactionFilter) (int, error) {
	return 0, nil
}

// single returns the only stored transaction; pipeline tests create exactly one.
func (m *memTxRepo) single() *entities.VasTransaction {
	for _, tx := range m.txs {
		return tx
	}
	return nil
}

type memTaskRepo struct {
	tasks []*entities.TransactionTask
}

func (m *memTaskRepo) Save(_ context.Context, task *entities.TransactionTask) error {
	for _, existing := range m.tasks {
		if existing.Reference() == task.Reference() {
			return nil
		}
	}
	m.tasks = append(m.tasks, task)
	return nil
}

func (m *memTaskRepo) ClaimNext(_ context.Context, _ time.Time, _ time.Duration) (*entities.TransactionTask, error) {
	return nil, nil
}

func (m *memTaskRepo) Update(_ context.Context, task *entities.TransactionTask) error {
	for i, existing := range m.tasks {
		if existing.Reference() == task.Reference() {
			m.tasks[i] = task
		}
	}
	return nil
}

func (m *memTaskRepo) ReleaseExpiredLeases(_ context.Context, _ time.Time) (int, error) {
	return 0, nil
}

type mockUserRepo struct {
	users map[uuid.UUID]*entities.User
	saved []*entities.User
}

func newMockUserRepo(users ...*entities.User) *mockUserRepo {
	m := &mockUserRepo{users: make(map[uuid.UUID]*entities.User)}
	for _, u := range users {
		m.users[u.ID()] = u
	}
	return m
}

func (m *mockUserRepo) FindByID(_ context.Context, id uuid.UUID) (*entities.User, error) {
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, domainErrors.ErrEntityNotFound
}

func (m *mockUserRepo) FindByEmail(_ context.Context, email string) (*entities.User, error) {
	for _, u := range m.users {
		if u.Email() == email {
			return u, nil
		}
	}
	return nil, domainErrors.ErrEntityNotFound
}

func (m *mockUserRepo) Save(_ context.Context, user *entities.User) error {
	m.saved = append(m.saved, user)
	return nil
}

type mockAccountingRepo struct {
	revenueEntries []*entities.CorporateRevenueEntry
	mismatchLogs   []*entities.PlanMismatchLog
	payouts        []*entities.ReferralPayout
	adminActions   []*entities.AdminAction
}

func (m *mockAccountingRepo) SaveRevenueEntry(_ context.Context, entry *entities.CorporateRevenueEntry) error {
	m.revenueEntries = append(m.revenueEntries, entry)
	return nil
}

func (m *mockAccountingRepo) SaveMismatchLog(_ context.Context, log *entities.PlanMismatchLog) error {
	m.mismatchLogs = append(m.mismatchLogs, log)
	return nil
}

func (m *mockAccountingRepo) SaveReferralPayout(_ context.Context, payout *entities.ReferralPayout) error {
	m.payouts = append(m.payouts, payout)
	return nil
}

func (m *mockAccountingRepo) SaveAdminAction(_ context.Context, action *entities.AdminAction) error {
	m.adminActions = append(m.adminActions, action)
	return nil
}

type mockOutbox struct {
	saved []events.DomainEvent
}

func (m *mockOutbox) Save(_ context.Context, event events.DomainEvent) error {
	m.saved = append(m.saved, event)
	return nil
}

func (m *mockOutbox) SaveBatch(_ context.Context, batch []events.DomainEvent) error {
	m.saved = append(m.saved, batch...)
	return nil
}

func (m *mockOutbox) FindUnpublished(_ context.Context, _ int) ([]ports.StoredEvent, error) {
	return nil, nil
}

func (m *mockOutbox) MarkPublished(_ context.Context, _ string) error { return nil }

func (m *mockOutbox) MarkFailed(_ context.Context, _, _ string) error { return nil }

type mockUoW struct{}

func (m *mockUoW) Execute(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

func (m *mockUoW) ExecuteWithRetry(ctx context.Context, _ int, fn func(context.Context) error) error {
	return fn(ctx)
}

type mockBalanceCache struct {
	invalidated []uuid.UUID
}

func (m *mockBalanceCache) Get(_ context.Context, _ uuid.UUID) (*ports.CachedBalance, error) {
	return nil, nil
}

func (m *mockBalanceCache) Set(_ context.Context, _ uuid.UUID, _ ports.CachedBalance, _ time.Duration) error {
	return nil
}

func (m *mockBalanceCache) Invalidate(_ context.Context, userID uuid.UUID) error {
	m.invalidated = append(m.invalidated, userID)
	return nil
}

// mockBillPay is the Monnify gateway stand-in.
type mockBillPay struct {
	vendFunc      func(ctx context.Context, req ports.VendRequest) (ports.VendResult, error)
	dataPlansFunc func(ctx context.Context, network string) ([]ports.DataPlan, error)

	vendRequests []ports.VendRequest
}

func (m *mockBillPay) Vend(ctx context.Context, req ports.VendRequest) (ports.VendResult, error) {
	m.vendRequests = append(m.vendRequests, req)
	if m.vendFunc != nil {
		return m.vendFunc(ctx, req)
	}
	return okVendResult(req), nil
}

func (m *mockBillPay) Billers(_ context.Context, _ string) ([]ports.Biller, error) {
	return nil, nil
}

func (m *mockBillPay) BillerProducts(_ context.Context, _ string) ([]ports.BillerProduct, error) {
	return nil, nil
}

func (m *mockBillPay) DataPlans(ctx context.Context, network string) ([]ports.DataPlan, error) {
	if m.dataPlansFunc != nil {
		return m.dataPlansFunc(ctx, network)
	}
	return nil, nil
}

// mockVendor is the Peyflex gateway stand-in.
type mockVendor struct {
	vendFunc      func(ctx context.Context, req ports.VendRequest) (ports.VendResult, error)
	dataPlansFunc func(ctx context.Context, network string) ([]ports.DataPlan, error)

	vendRequests []ports.VendRequest
}

func (m *mockVendor) Vend(ctx context.Context, req ports.VendRequest) (ports.VendResult, error) {
	m.vendRequests = append(m.vendRequests, req)
	if m.vendFunc != nil {
		return m.vendFunc(ctx, req)
	}
	return okVendResult(req), nil
}

func (m *mockVendor) DataPlans(ctx context.Context, network string) ([]ports.DataPlan, error) {
	if m.dataPlansFunc != nil {
		return m.dataPlansFunc(ctx, network)
	}
	return nil, nil
}

func okVendResult(req ports.VendRequest) ports.VendResult {
	return ports.VendResult{
		TransactionReference: "PROV-" + req.Reference,
		VendReference:        req.Reference,
		ProductName:          "test product",
		VendAmount:           req.Amount,
		Commission:           valueobjects.Zero(),
		Raw:                  map[string]interface{}{"status": "SUCCESS"},
	}
}

func activeWallet(userID uuid.UUID, balance valueobjects.Money) *entities.Wallet {
	now := time.Now()
	return entities.ReconstructWallet(
		uuid.New(), userID, entities.WalletStatusActive,
		balance, valueobjects.Zero(), 1,
		"FICORE"+userID.String(), nil,
		"", "", 0, nil,
		now, now,
	)
}
