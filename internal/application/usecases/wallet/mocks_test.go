package wallet

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

// Shared func-field mocks for the wallet use case tests.

type mockWalletRepo struct {
	saveFunc                   func(ctx context.Context, wallet *entities.Wallet) error
	findByUserIDFunc           func(ctx context.Context, userID uuid.UUID) (*entities.Wallet, error)
	findByAccountReferenceFunc func(ctx context.Context, reference string) (*entities.Wallet, error)
	existsByUserIDFunc         func(ctx context.Context, userID uuid.UUID) (bool, error)
}

func (m *mockWalletRepo) Save(ctx context.Context, wallet *entities.Wallet) error {
	if m.saveFunc != nil {
		return m.saveFunc(ctx, wallet)
	}
	return nil
}

func (m *mockWalletRepo) FindByUserID(ctx context.Context, userID uuid.UUID) (*entities.Wallet, error) {
	if m.findByUserIDFunc != nil {
		return m.findByUserIDFunc(ctx, userID)
	}
	return nil, domainErrors.ErrWalletNotFound
}

func (m *mockWalletRepo) FindByAccountReference(ctx context.Context, reference string) (*entities.Wallet, error) {
	if m.findByAccountReferenceFunc != nil {
		return m.findByAccountReferenceFunc(ctx, reference)
	}
	return nil, domainErrors.ErrWalletNotFound
}

func (m *mockWalletRepo) ExistsByUserID(ctx context.Context, userID uuid.UUID) (bool, error) {
	if m.existsByUserIDFunc != nil {
		return m.existsByUserIDFunc(ctx, userID)
	}
	return false, nil
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

type mockTxRepo struct {
	created []*entities.VasTransaction
	updated []*entities.VasTransaction

	createFunc          func(ctx context.Context, tx *entities.VasTransaction) error
	findByIDFunc        func(ctx context.Context, id uuid.UUID) (*entities.VasTransaction, error)
	findByRequestIDFunc func(ctx context.Context, requestID string) (*entities.VasTransaction, error)
	findByReferenceFunc func(ctx context.Context, reference string) (*entities.VasTransaction, error)
	listFunc            func(ctx context.Context, filter ports.TransactionFilter, offset, limit int) ([]*entities.VasTransaction, error)
	countFunc           func(ctx context.Context, filter ports.TransactionFilter) (int, error)
}

func (m *mockTxRepo) Create(ctx context.Context, tx *entities.VasTransaction) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, tx)
	}
	m.created = append(m.created, tx)
	return nil
}

func (m *mockTxRepo) Update(_ context.Context, tx *entities.VasTransaction) error {
	m.updated = append(m.updated, tx)
	return nil
}

func (m *mockTxRepo) UpdateFlags(_ context.Context, _ *entities.VasTransaction) error { return nil }

func (m *mockTxRepo) FindByID(ctx context.Context, id uuid.UUID) (*entities.VasTransaction, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return nil, domainErrors.ErrTransactionNotFound
}

func (m *mockTxRepo) FindByRequestID(ctx context.Context, requestID string) (*entities.VasTransaction, error) {
	if m.findByRequestIDFunc != nil {
		return m.findByRequestIDFunc(ctx, requestID)
	}
	return nil, domainErrors.ErrTransactionNotFound
}

func (m *mockTxRepo) FindByReference(ctx context.Context, reference string) (*entities.VasTransaction, error) {
	if m.findByReferenceFunc != nil {
		return m.findByReferenceFunc(ctx, reference)
	}
	return nil, domainErrors.ErrTransactionNotFound
}

func (m *mockTxRepo) FindRecentSuccess(_ context.Context, _ uuid.UUID, _ entities.VasType, _ valueobjects.Money, _ string, _ time.Duration) (*entities.VasTransaction, error) {
	return nil, domainErrors.ErrTransactionNotFound
}

func (m *mockTxRepo) FindPendingDuplicate(_ context.Context, _ uuid.UUID, _ entities.VasType, _ valueobjects.Money, _ string, _ time.Duration) (*entities.VasTransaction, error) {
	return nil, domainErrors.ErrTransactionNotFound
}

func (m *mockTxRepo) List(ctx context.Context, filter ports.TransactionFilter, offset, limit int) ([]*entities.VasTransaction, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, filter, offset, limit)
	}
	return nil, nil
}

func (m *mockTxRepo) Count(ctx context.Context, filter ports.TransactionFilter) (int, error) {
	if m.countFunc != nil {
		return m.countFunc(ctx, filter)
	}
	return 0, nil
}

type mockReservationRepo struct {
	reservations map[uuid.UUID]*entities.Reservation

	findStaleHeldFunc func(ctx context.Context, cutoff time.Time, limit int) ([]*entities.Reservation, error)
}

func newMockReservationRepo(reservations ...*entities.Reservation) *mockReservationRepo {
	m := &mockReservationRepo{reservations: make(map[uuid.UUID]*entities.Reservation)}
	for _, r := range reservations {
		m.reservations[r.ID()] = r
	}
	return m
}

func (m *mockReservationRepo) Save(_ context.Context, r *entities.Reservation) error {
	m.reservations[r.ID()] = r
	return nil
}

func (m *mockReservationRepo) FindByID(_ context.Context, id uuid.UUID) (*entities.Reservation, error) {
	if r, ok := m.reservations[id]; ok {
		return r, nil
	}
	return nil, domainErrors.ErrReservationNotFound
}

func (m *mockReservationRepo) SumHeldByUser(_ context.Context, _ uuid.UUID) (valueobjects.Money, error) {
	return valueobjects.Zero(), nil
}

func (m *mockReservationRepo) FindStaleHeld(ctx context.Context, cutoff time.Time, limit int) ([]*entities.Reservation, error) {
	if m.findStaleHeldFunc != nil {
		return m.findStaleHeldFunc(ctx, cutoff, limit)
	}
	return nil, nil
}

type mockProvisioner struct {
	createFunc func(ctx context.Context, userID uuid.UUID, accountReference, accountName, email string) ([]entities.ReservedAccount, error)
	calls      int
}

func (m *mockProvisioner) CreateReservedAccounts(ctx context.Context, userID uuid.UUID, accountReference, accountName, email string) ([]entities.ReservedAccount, error) {
	m.calls++
	if m.createFunc != nil {
		return m.createFunc(ctx, userID, accountReference, accountName, email)
	}
	return []entities.ReservedAccount{
		{BankName: "Wema Bank", BankCode: "035", AccountNumber: "7812345678", AccountName: accountName},
		{BankName: "Sterling Bank", BankCode: "232", AccountNumber: "8812345678", AccountName: accountName},
	}, nil
}

// mockUoW runs the closure directly; the transaction boundary is a no-op.
type mockUoW struct{}

func (m *mockUoW) Execute(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

func (m *mockUoW) ExecuteWithRetry(ctx context.Context, _ int, fn func(context.Context) error) error {
	return fn(ctx)
}

type mockBalanceCache struct {
	entries     map[uuid.UUID]*ports.CachedBalance
	invalidated []uuid.UUID
}

func newMockBalanceCache() *mockBalanceCache {
	return &mockBalanceCache{entries: make(map[uuid.UUID]*ports.CachedBalance)}
}

func (m *mockBalanceCache) Get(_ context.Context, userID uuid.UUID) (*ports.CachedBalance, error) {
	return m.entries[userID], nil
}

func (m *mockBalanceCache) Set(_ context.Context, userID uuid.UUID, balance ports.CachedBalance, _ time.Duration) error {
	m.entries[userID] = &balance
	return nil
}

func (m *mockBalanceCache) Invalidate(_ context.Context, userID uuid.UUID) error {
	m.invalidated = append(m.invalidated, userID)
	delete(m.entries, userID)
	return nil
}

// activeWallet builds a funded ACTIVE wallet for a user.
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
