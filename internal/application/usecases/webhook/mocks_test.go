package webhook

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

// Func-field mocks for the funding pipeline tests.

type mockWalletRepo struct {
	saveFunc                   func(ctx context.Context, wallet *entities.Wallet) error
	findByUserIDFunc           func(ctx context.Context, userID uuid.UUID) (*entities.Wallet, error)
	findByAccountReferenceFunc func(ctx context.Context, reference string) (*entities.Wallet, error)
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

func (m *mockWalletRepo) ExistsByUserID(_ context.Context, _ uuid.UUID) (bool, error) {
	return true, nil
}

type mockUserRepo struct {
	users map[uuid.UUID]*entities.User
	saved []*entities.User

	findByEmailFunc func(ctx context.Context, email string) (*entities.User, error)
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

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*entities.User, error) {
	if m.findByEmailFunc != nil {
		return m.findByEmailFunc(ctx, email)
	}
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

type mockTxRepo struct {
	created []*entities.VasTransaction
	updated []*entities.VasTransaction
	flagged []*entities.VasTransaction

	createFunc          func(ctx context.Context, tx *entities.VasTransaction) error
	findByRequestIDFunc func(ctx context.Context, requestID string) (*entities.VasTransaction, error)
	findByReferenceFunc func(ctx context.Context, reference string) (*entities.VasTransaction, error)
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

func (m *mockTxRepo) UpdateFlags(_ context.Context, tx *entities.VasTransaction) error {
	m.flagged = append(m.flagged, tx)
	return nil
}

func (m *mockTxRepo) FindByID(_ context.Context, _ uuid.UUID) (*entities.VasTransaction, error) {
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

func (m *mockTxRepo) List(_ context.Context, _ ports.TransactionFilter, _, _ int) ([]*entities.VasTransaction, error) {
	return nil, nil
}

func (m *mockTxRepo) Count(_ context.Context, _ ports.TransactionFilter) (int, error) {
	return 0, nil
}

type mockAccountingRepo struct {
	revenueEntries []*entities.CorporateRevenueEntry
	payouts        []*entities.ReferralPayout
}

func (m *mockAccountingRepo) SaveRevenueEntry(_ context.Context, entry *entities.CorporateRevenueEntry) error {
	m.revenueEntries = append(m.revenueEntries, entry)
	return nil
}

func (m *mockAccountingRepo) SaveMismatchLog(_ context.Context, _ *entities.PlanMismatchLog) error {
	return nil
}

func (m *mockAccountingRepo) SaveReferralPayout(_ context.Context, payout *entities.ReferralPayout) error {
	m.payouts = append(m.payouts, payout)
	return nil
}

func (m *mockAccountingRepo) SaveAdminAction(_ context.Context, _ *entities.AdminAction) error {
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
