package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"payloom/internal/core/domain"
	"payloom/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// fakeTx is a no-op pgx.Tx for in-memory fakes.
type fakeTx struct{ pgx.Tx }

func (t *fakeTx) Rollback(_ context.Context) error { return nil }
func (t *fakeTx) Commit(_ context.Context) error   { return nil }

type fakeTransactor struct{}

func (f *fakeTransactor) Begin(_ context.Context) (pgx.Tx, error) { return &fakeTx{}, nil }

// --- orders ---

type fakeOrderRepo struct {
	mu     sync.Mutex
	orders map[uuid.UUID]*domain.Order
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{orders: make(map[uuid.UUID]*domain.Order)}
}

func (r *fakeOrderRepo) put(o *domain.Order) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *o
	r.orders[o.ID] = &cp
}

func (r *fakeOrderRepo) Create(_ context.Context, o *domain.Order) error {
	r.put(o)
	return nil
}

func (r *fakeOrderRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, nil
	}
	cp := *o
	return &cp, nil
}

func (r *fakeOrderRepo) GetByIDForUpdate(ctx context.Context, _ pgx.Tx, id uuid.UUID) (*domain.Order, error) {
	return r.GetByID(ctx, id)
}

func (r *fakeOrderRepo) MarkPaid(_ context.Context, _ pgx.Tx, id uuid.UUID, fee, payout int64, paidAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o := r.orders[id]
	o.Status = domain.OrderStatusPaid
	o.EscrowStatus = domain.OrderEscrowHeld
	o.PlatformFee = fee
	o.SellerPayout = payout
	o.PaidAt = &paidAt
	return nil
}

func (r *fakeOrderRepo) MarkCompleted(_ context.Context, _ pgx.Tx, id uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o := r.orders[id]
	o.Status = domain.OrderStatusCompleted
	o.EscrowStatus = domain.OrderEscrowReleased
	if o.ShippedAt == nil {
		o.ShippedAt = &at
	}
	if o.DeliveredAt == nil {
		o.DeliveredAt = &at
	}
	o.CompletedAt = &at
	return nil
}

func (r *fakeOrderRepo) MarkRefunded(_ context.Context, _ pgx.Tx, id uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o := r.orders[id]
	o.Status = domain.OrderStatusRefunded
	o.EscrowStatus = domain.OrderEscrowRefunded
	o.RefundedAt = &at
	return nil
}

func (r *fakeOrderRepo) SetStatus(_ context.Context, id uuid.UUID, status domain.OrderStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[id].Status = status
	return nil
}

func (r *fakeOrderRepo) SetVerificationStatus(_ context.Context, id uuid.UUID, status domain.VerificationStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[id].VerificationStatus = status
	return nil
}

func (r *fakeOrderRepo) MarkShipped(_ context.Context, id uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[id].ShippedAt = &at
	return nil
}

// --- escrow wallets ---

type fakeWalletRepo struct {
	mu      sync.Mutex
	wallets map[uuid.UUID]*domain.EscrowWallet
}

func newFakeWalletRepo() *fakeWalletRepo {
	return &fakeWalletRepo{wallets: make(map[uuid.UUID]*domain.EscrowWallet)}
}

func (r *fakeWalletRepo) Create(_ context.Context, _ pgx.Tx, w *domain.EscrowWallet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.wallets {
		if existing.OrderID == w.OrderID {
			return ports.ErrConflict
		}
	}
	cp := *w
	r.wallets[w.ID] = &cp
	return nil
}

func (r *fakeWalletRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.EscrowWallet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.wallets[id]
	if !ok {
		return nil, nil
	}
	cp := *w
	return &cp, nil
}

func (r *fakeWalletRepo) GetByOrderID(_ context.Context, orderID uuid.UUID) (*domain.EscrowWallet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, w := range r.wallets {
		if w.OrderID == orderID {
			cp := *w
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeWalletRepo) GetByRef(_ context.Context, ref string) (*domain.EscrowWallet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, w := range r.wallets {
		if w.WalletRef == ref {
			cp := *w
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeWalletRepo) MarkReleased(_ context.Context, _ pgx.Tx, id uuid.UUID, actor domain.ReleaseActor, at time.Time) (bool, error) {
	return r.transition(id, domain.EscrowStatusReleased, actor, at), nil
}

func (r *fakeWalletRepo) MarkRefunded(_ context.Context, _ pgx.Tx, id uuid.UUID, actor domain.ReleaseActor, at time.Time) (bool, error) {
	return r.transition(id, domain.EscrowStatusRefunded, actor, at), nil
}

func (r *fakeWalletRepo) transition(id uuid.UUID, to domain.EscrowStatus, actor domain.ReleaseActor, at time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.wallets[id]
	if !ok || w.Status != domain.EscrowStatusLocked {
		return false
	}
	w.Status = to
	w.ReleasedAt = &at
	w.ReleasedBy = &actor
	return true
}

func (r *fakeWalletRepo) ListExpiredLocked(_ context.Context, now time.Time, limit int) ([]domain.EscrowWallet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.EscrowWallet
	for _, w := range r.wallets {
		if w.Status == domain.EscrowStatusLocked && !w.AutoReleaseAt.After(now) {
			out = append(out, *w)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

// --- ledger ---

type fakeLedgerRepo struct {
	mu      sync.Mutex
	entries []domain.LedgerEntry
}

func (r *fakeLedgerRepo) Record(_ context.Context, _ pgx.Tx, e *domain.LedgerEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, *e)
	return nil
}

func (r *fakeLedgerRepo) ListByOrder(_ context.Context, orderID uuid.UUID) ([]domain.LedgerEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.LedgerEntry
	for _, e := range r.entries {
		if e.OrderID == orderID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *fakeLedgerRepo) AccountBalance(_ context.Context, account domain.Account) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var balance int64
	for _, e := range r.entries {
		if e.CreditAccount == account {
			balance += e.Amount
		}
		if e.DebitAccount == account {
			balance -= e.Amount
		}
	}
	return balance, nil
}

// --- platform accounts ---

type fakeAccountRepo struct {
	mu       sync.Mutex
	balances map[domain.Account]int64
}

func newFakeAccountRepo() *fakeAccountRepo {
	return &fakeAccountRepo{balances: make(map[domain.Account]int64)}
}

func (r *fakeAccountRepo) Adjust(_ context.Context, _ pgx.Tx, account domain.Account, delta int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.balances[account] += delta
	return nil
}

func (r *fakeAccountRepo) Get(_ context.Context, account domain.Account) (*domain.PlatformAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return &domain.PlatformAccount{Account: account, Balance: r.balances[account]}, nil
}

func (r *fakeAccountRepo) List(_ context.Context) ([]domain.PlatformAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.PlatformAccount, 0, len(r.balances))
	for acct, bal := range r.balances {
		out = append(out, domain.PlatformAccount{Account: acct, Balance: bal})
	}
	return out, nil
}

// --- seller wallets ---

type fakeSellerWalletRepo struct {
	mu      sync.Mutex
	wallets map[uuid.UUID]*domain.SellerWallet
}

func newFakeSellerWalletRepo() *fakeSellerWalletRepo {
	return &fakeSellerWalletRepo{wallets: make(map[uuid.UUID]*domain.SellerWallet)}
}

func (r *fakeSellerWalletRepo) GetBySellerID(_ context.Context, sellerID uuid.UUID) (*domain.SellerWallet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.wallets[sellerID]
	if !ok {
		return nil, nil
	}
	cp := *w
	return &cp, nil
}

func (r *fakeSellerWalletRepo) GetBySellerIDForUpdate(ctx context.Context, _ pgx.Tx, sellerID uuid.UUID) (*domain.SellerWallet, error) {
	return r.GetBySellerID(ctx, sellerID)
}

func (r *fakeSellerWalletRepo) AdjustBySeller(_ context.Context, _ pgx.Tx, sellerID uuid.UUID, currency string, availableDelta, pendingDelta, earnedDelta int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.wallets[sellerID]
	if !ok {
		w = &domain.SellerWallet{ID: uuid.New(), SellerID: sellerID, Currency: currency}
		r.wallets[sellerID] = w
	}
	w.AvailableBalance += availableDelta
	w.PendingBalance += pendingDelta
	w.TotalEarned += earnedDelta
	return nil
}

// --- deposits ---

type fakeDepositRepo struct {
	mu       sync.Mutex
	deposits map[uuid.UUID]*domain.EscrowDeposit
	checks   []domain.VerificationCheck
}

func newFakeDepositRepo() *fakeDepositRepo {
	return &fakeDepositRepo{deposits: make(map[uuid.UUID]*domain.EscrowDeposit)}
}

func (r *fakeDepositRepo) Create(_ context.Context, d *domain.EscrowDeposit) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.deposits {
		if existing.OrderID == d.OrderID {
			return ports.ErrConflict
		}
	}
	cp := *d
	r.deposits[d.ID] = &cp
	return nil
}

func (r *fakeDepositRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.EscrowDeposit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.deposits[id]
	if !ok {
		return nil, nil
	}
	cp := *d
	return &cp, nil
}

func (r *fakeDepositRepo) GetByOrderID(_ context.Context, orderID uuid.UUID) (*domain.EscrowDeposit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.deposits {
		if d.OrderID == orderID {
			cp := *d
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeDepositRepo) FindByCode(_ context.Context, code string) (*domain.EscrowDeposit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var earliest *domain.EscrowDeposit
	for _, d := range r.deposits {
		if strings.EqualFold(d.TransactionCode, code) {
			if earliest == nil || d.CreatedAt.Before(earliest.CreatedAt) {
				earliest = d
			}
		}
	}
	if earliest == nil {
		return nil, nil
	}
	cp := *earliest
	return &cp, nil
}

func (r *fakeDepositRepo) SetStatus(_ context.Context, id uuid.UUID, status domain.DepositStatus, reviewedBy *uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d := r.deposits[id]
	d.Status = status
	d.ReviewedBy = reviewedBy
	if reviewedBy != nil {
		now := time.Now().UTC()
		d.ReviewedAt = &now
	}
	return nil
}

func (r *fakeDepositRepo) RecordCheck(_ context.Context, check *domain.VerificationCheck) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checks = append(r.checks, *check)
	return nil
}

func (r *fakeDepositRepo) ListChecks(_ context.Context, depositID uuid.UUID) ([]domain.VerificationCheck, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.VerificationCheck
	for _, c := range r.checks {
		if c.DepositID == depositID {
			out = append(out, c)
		}
	}
	return out, nil
}

// --- disputes ---

type fakeDisputeRepo struct {
	mu       sync.Mutex
	disputes map[uuid.UUID]*domain.Dispute
}

func newFakeDisputeRepo() *fakeDisputeRepo {
	return &fakeDisputeRepo{disputes: make(map[uuid.UUID]*domain.Dispute)}
}

func (r *fakeDisputeRepo) Create(_ context.Context, d *domain.Dispute) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.disputes {
		if existing.OrderID == d.OrderID {
			return ports.ErrConflict
		}
	}
	cp := *d
	r.disputes[d.ID] = &cp
	return nil
}

func (r *fakeDisputeRepo) GetOpenByOrder(_ context.Context, orderID uuid.UUID) (*domain.Dispute, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.disputes {
		if d.OrderID == orderID && d.Status == domain.DisputeOpen {
			cp := *d
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeDisputeRepo) Resolve(_ context.Context, _ pgx.Tx, id uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d := r.disputes[id]
	d.Status = domain.DisputeResolved
	d.ResolvedAt = &at
	return nil
}

// --- payment events ---

type fakeEventRepo struct {
	mu     sync.Mutex
	events map[string]*domain.PaymentEvent
}

func newFakeEventRepo() *fakeEventRepo {
	return &fakeEventRepo{events: make(map[string]*domain.PaymentEvent)}
}

func (r *fakeEventRepo) Create(_ context.Context, _ pgx.Tx, e *domain.PaymentEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.events[e.ProviderRef]; ok {
		return ports.ErrConflict
	}
	cp := *e
	r.events[e.ProviderRef] = &cp
	return nil
}

func (r *fakeEventRepo) GetByProviderRef(_ context.Context, ref string) (*domain.PaymentEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.events[ref]
	if !ok {
		return nil, nil
	}
	cp := *e
	return &cp, nil
}

// --- notifications ---

type fakeNotificationRepo struct {
	mu   sync.Mutex
	rows []domain.Notification
}

func (r *fakeNotificationRepo) Create(_ context.Context, n *domain.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows = append(r.rows, *n)
	return nil
}

func (r *fakeNotificationRepo) ListByUser(_ context.Context, userID uuid.UUID, limit int) ([]domain.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Notification
	for _, n := range r.rows {
		if n.UserID == userID {
			out = append(out, n)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

// --- provider ref cache ---

type fakeRefCache struct {
	mu   sync.Mutex
	seen map[string]bool
}

func newFakeRefCache() *fakeRefCache {
	return &fakeRefCache{seen: make(map[string]bool)}
}

func (c *fakeRefCache) Seen(_ context.Context, ref string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seen[ref], nil
}

func (c *fakeRefCache) MarkSeen(_ context.Context, ref string, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seen[ref] = true
	return nil
}
