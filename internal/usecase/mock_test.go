//go:build !integration

// File: internal/usecase/mock_test.go
package usecase_test

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"webnovel-billing/internal/domain"
	"webnovel-billing/internal/domain/model"
	"webnovel-billing/internal/domain/ports/adapter"
	"webnovel-billing/internal/domain/ports/repository"
)

// =============================
// Adapters
// =============================

// ---- Mock PaymentGateway ----

type MockPaymentGateway struct {
	NameVal string

	CreatePaymentFunc  func(ctx context.Context, amountCents int64, currency, orderRef string) (*adapter.CheckoutIntent, error)
	VerifyCallbackFunc func(rawBody []byte, signature string) bool
	QueryStatusFunc    func(ctx context.Context, externalID string) (adapter.ProviderStatus, error)
}

var _ adapter.PaymentGateway = (*MockPaymentGateway)(nil)

func (m *MockPaymentGateway) Name() string {
	if m.NameVal == "" {
		return "mockpay"
	}
	return m.NameVal
}

func (m *MockPaymentGateway) CreatePayment(ctx context.Context, amountCents int64, currency, orderRef string) (*adapter.CheckoutIntent, error) {
	if m.CreatePaymentFunc != nil {
		return m.CreatePaymentFunc(ctx, amountCents, currency, orderRef)
	}
	ref := "EXT-" + uuid.NewString()
	return &adapter.CheckoutIntent{ExternalID: ref, RedirectURL: "https://pay.example/" + ref}, nil
}

func (m *MockPaymentGateway) VerifyCallback(rawBody []byte, signature string) bool {
	if m.VerifyCallbackFunc != nil {
		return m.VerifyCallbackFunc(rawBody, signature)
	}
	return true
}

func (m *MockPaymentGateway) QueryStatus(ctx context.Context, externalID string) (adapter.ProviderStatus, error) {
	if m.QueryStatusFunc != nil {
		return m.QueryStatusFunc(ctx, externalID)
	}
	return adapter.ProviderStatusPaid, nil
}

// =============================
// Repositories
// =============================

// ---- Mock UserRepository ----

type MockUserRepo struct {
	mu   sync.Mutex
	byID map[string]*model.User

	SaveFunc               func(ctx context.Context, tx repository.Tx, u *model.User) error
	FindByIDFunc           func(ctx context.Context, tx repository.Tx, id string) (*model.User, error)
	AddCoinsFunc           func(ctx context.Context, tx repository.Tx, userID string, delta int64) (bool, error)
	SetMembershipFunc      func(ctx context.Context, tx repository.Tx, userID string, tier model.MembershipTier, expiresAt *time.Time) error
	DowngradeExpiredFunc   func(ctx context.Context, tx repository.Tx, now time.Time) ([]string, error)
	DowngradeIfExpiredFunc func(ctx context.Context, tx repository.Tx, userID string, now time.Time) (bool, error)
}

var _ repository.UserRepository = (*MockUserRepo)(nil)

func NewMockUserRepo() *MockUserRepo {
	return &MockUserRepo{byID: map[string]*model.User{}}
}

func (r *MockUserRepo) Save(ctx context.Context, tx repository.Tx, u *model.User) error {
	if r.SaveFunc != nil {
		return r.SaveFunc(ctx, tx, u)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *u
	if cp.ID == "" {
		cp.ID = uuid.NewString()
	}
	r.byID[cp.ID] = &cp
	return nil
}

func (r *MockUserRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.User, error) {
	if r.FindByIDFunc != nil {
		return r.FindByIDFunc(ctx, tx, id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *MockUserRepo) AddCoins(ctx context.Context, tx repository.Tx, userID string, delta int64) (bool, error) {
	if r.AddCoinsFunc != nil {
		return r.AddCoinsFunc(ctx, tx, userID, delta)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[userID]
	if !ok {
		return false, nil
	}
	if u.Coins+delta < 0 {
		return false, nil
	}
	u.Coins += delta
	u.UpdatedAt = time.Now()
	return true, nil
}

func (r *MockUserRepo) SetMembership(ctx context.Context, tx repository.Tx, userID string, tier model.MembershipTier, expiresAt *time.Time) error {
	if r.SetMembershipFunc != nil {
		return r.SetMembershipFunc(ctx, tx, userID, tier, expiresAt)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[userID]
	if !ok {
		return domain.ErrNotFound
	}
	u.MembershipTier = tier
	if expiresAt != nil {
		cp := *expiresAt
		u.MembershipExpiresAt = &cp
	} else {
		u.MembershipExpiresAt = nil
	}
	u.UpdatedAt = time.Now()
	return nil
}

func (r *MockUserRepo) DowngradeExpired(ctx context.Context, tx repository.Tx, now time.Time) ([]string, error) {
	if r.DowngradeExpiredFunc != nil {
		return r.DowngradeExpiredFunc(ctx, tx, now)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []string
	for id, u := range r.byID {
		if u.MembershipTier == model.TierPremium && u.MembershipExpiresAt != nil && !u.MembershipExpiresAt.After(now) {
			u.MembershipTier = model.TierBasic
			u.MembershipExpiresAt = nil
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (r *MockUserRepo) DowngradeIfExpired(ctx context.Context, tx repository.Tx, userID string, now time.Time) (bool, error) {
	if r.DowngradeIfExpiredFunc != nil {
		return r.DowngradeIfExpiredFunc(ctx, tx, userID, now)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[userID]
	if !ok {
		return false, nil
	}
	if u.MembershipTier == model.TierPremium && u.MembershipExpiresAt != nil && !u.MembershipExpiresAt.After(now) {
		u.MembershipTier = model.TierBasic
		u.MembershipExpiresAt = nil
		return true, nil
	}
	return false, nil
}

// ---- Mock PurchaseRepository ----

type MockPurchaseRepo struct {
	mu   sync.Mutex
	byID map[string]*model.Purchase

	SaveFunc         func(ctx context.Context, tx repository.Tx, p *model.Purchase) error
	UpdateStatusFunc func(ctx context.Context, tx repository.Tx, id string, status model.PurchaseStatus, reason string, paidAt *time.Time) error
}

var _ repository.PurchaseRepository = (*MockPurchaseRepo)(nil)

func NewMockPurchaseRepo() *MockPurchaseRepo {
	return &MockPurchaseRepo{byID: map[string]*model.Purchase{}}
}

func (r *MockPurchaseRepo) Save(ctx context.Context, tx repository.Tx, p *model.Purchase) error {
	if r.SaveFunc != nil {
		return r.SaveFunc(ctx, tx, p)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	// mirror the partial unique indexes the real table enforces
	for _, other := range r.byID {
		if other.ID == p.ID {
			continue
		}
		if other.UserID == p.UserID && other.Status == model.PurchaseStatusPending && p.Status == model.PurchaseStatusPending {
			return domain.ErrConflict
		}
		if p.ExternalRef != nil && other.ExternalRef != nil &&
			other.Provider == p.Provider && *other.ExternalRef == *p.ExternalRef {
			return domain.ErrConflict
		}
	}
	cp := *p
	r.byID[p.ID] = &cp
	return nil
}

func (r *MockPurchaseRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Purchase, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *MockPurchaseRepo) FindByExternalRef(ctx context.Context, tx repository.Tx, provider, externalRef string) (*model.Purchase, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.byID {
		if p.Provider == provider && p.ExternalRef != nil && *p.ExternalRef == externalRef {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *MockPurchaseRepo) FindPendingByUser(ctx context.Context, tx repository.Tx, userID string) (*model.Purchase, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.byID {
		if p.UserID == userID && p.Status == model.PurchaseStatusPending {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *MockPurchaseRepo) UpdateStatus(ctx context.Context, tx repository.Tx, id string, status model.PurchaseStatus, reason string, paidAt *time.Time) error {
	if r.UpdateStatusFunc != nil {
		return r.UpdateStatusFunc(ctx, tx, id, status, reason, paidAt)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	p.Status = status
	switch status {
	case model.PurchaseStatusFailed:
		p.FailReason = reason
	case model.PurchaseStatusRefunded:
		p.RefundReason = reason
	}
	if paidAt != nil {
		cp := *paidAt
		p.PaidAt = &cp
	}
	p.UpdatedAt = time.Now()
	return nil
}

func (r *MockPurchaseRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.Purchase, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Purchase
	for _, p := range r.byID {
		if p.UserID == userID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *MockPurchaseRepo) ListPendingOlderThan(ctx context.Context, tx repository.Tx, cutoff time.Time, limit int) ([]*model.Purchase, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Purchase
	for _, p := range r.byID {
		if p.Status == model.PurchaseStatusPending && p.CreatedAt.Before(cutoff) {
			cp := *p
			out = append(out, &cp)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

// ---- Mock PackageRepository ----

type MockPackageRepo struct {
	mu   sync.Mutex
	byID map[string]*model.Package
}

var _ repository.PackageRepository = (*MockPackageRepo)(nil)

func NewMockPackageRepo() *MockPackageRepo {
	return &MockPackageRepo{byID: map[string]*model.Package{}}
}

func (r *MockPackageRepo) Save(ctx context.Context, tx repository.Tx, pkg *model.Package) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *pkg
	r.byID[pkg.ID] = &cp
	return nil
}

func (r *MockPackageRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Package, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *MockPackageRepo) ListActive(ctx context.Context, tx repository.Tx) ([]*model.Package, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Package
	for _, p := range r.byID {
		if p.Active {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *MockPackageRepo) Deactivate(ctx context.Context, tx repository.Tx, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	p.Active = false
	return nil
}

// ---- Mock NotificationRepository ----

type MockNotificationRepo struct {
	mu    sync.Mutex
	Saved []model.Notification
}

var _ repository.NotificationRepository = (*MockNotificationRepo)(nil)

func NewMockNotificationRepo() *MockNotificationRepo {
	return &MockNotificationRepo{}
}

func (r *MockNotificationRepo) Save(ctx context.Context, tx repository.Tx, n *model.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Saved = append(r.Saved, *n)
	return nil
}

func (r *MockNotificationRepo) ListUnreadByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Notification
	for i := range r.Saved {
		if r.Saved[i].UserID == userID && r.Saved[i].ReadAt == nil {
			cp := r.Saved[i]
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *MockNotificationRepo) MarkRead(ctx context.Context, tx repository.Tx, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.Saved {
		if r.Saved[i].ID == id {
			now := time.Now()
			r.Saved[i].ReadAt = &now
			return nil
		}
	}
	return domain.ErrNotFound
}

// Kinds returns the saved notification kinds in order, for assertions.
func (r *MockNotificationRepo) Kinds() []model.NotificationKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	kinds := make([]model.NotificationKind, len(r.Saved))
	for i, n := range r.Saved {
		kinds[i] = n.Kind
	}
	return kinds
}

// =============================
// Transaction manager
// =============================

// txToken is the non-nil transaction handle the mock manager hands to
// callbacks; the mock repositories ignore it, the use cases only check that
// an enclosing transaction exists.
type txToken struct{}

type MockTxManager struct {
	WithTxFunc   func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
	LockUserFunc func(ctx context.Context, tx repository.Tx, userID string) error
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

func NewMockTxManager() *MockTxManager {
	return &MockTxManager{}
}

// WithTx executes the callback immediately with a txToken handle. Assign
// WithTxFunc to simulate commit or rollback failures or to serialize
// callbacks.
func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	return fn(ctx, txToken{})
}

func (m *MockTxManager) LockUser(ctx context.Context, tx repository.Tx, userID string) error {
	if m.LockUserFunc != nil {
		return m.LockUserFunc(ctx, tx, userID)
	}
	return nil
}

// =============================
// Locker
// =============================

type MockLocker struct {
	mu   sync.Mutex
	held map[string]string
}

func NewMockLocker() *MockLocker {
	return &MockLocker{held: map[string]string{}}
}

func (l *MockLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, taken := l.held[key]; taken {
		return "", false
	}
	token := uuid.NewString()
	l.held[key] = token
	return token, true
}

func (l *MockLocker) Unlock(ctx context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] != token {
		return errors.New("unlock token mismatch")
	}
	delete(l.held, key)
	return nil
}

// newTestLogger creates a silent zerolog.Logger for use in tests.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}
