package integration

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"payloom/internal/core/domain"
	"payloom/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// In-memory repo implementations backing the integration tests. They mimic
// the PostgreSQL behavior the services rely on: uniqueness constraints
// surface as ports.ErrConflict, conditional updates report whether a row
// transitioned, and balance CHECK constraints reject negative results.

// --- Orders ---

type inMemoryOrderRepo struct {
	mu     sync.RWMutex
	orders map[uuid.UUID]*domain.Order
}

func newInMemoryOrderRepo() *inMemoryOrderRepo {
	return &inMemoryOrderRepo{orders: make(map[uuid.UUID]*domain.Order)}
}

func (r *inMemoryOrderRepo) Create(ctx context.Context, order *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o := *order
	r.orders[order.ID] = &o
	return nil
}

func (r *inMemoryOrderRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, nil
	}
	cp := *o
	return &cp, nil
}

func (r *inMemoryOrderRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Order, error) {
	return r.GetByID(ctx, id)
}

func (r *inMemoryOrderRepo) MarkPaid(ctx context.Context, tx pgx.Tx, id uuid.UUID, fee, payout int64, paidAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return fmt.Errorf("order not found")
	}
	o.Status = domain.OrderStatusPaid
	o.EscrowStatus = domain.OrderEscrowHeld
	o.PlatformFee = fee
	o.SellerPayout = payout
	o.PaidAt = &paidAt
	o.UpdatedAt = paidAt
	return nil
}

func (r *inMemoryOrderRepo) MarkCompleted(ctx context.Context, tx pgx.Tx, id uuid.UUID, completedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return fmt.Errorf("order not found")
	}
	o.Status = domain.OrderStatusCompleted
	o.EscrowStatus = domain.OrderEscrowReleased
	if o.ShippedAt == nil {
		o.ShippedAt = &completedAt
	}
	if o.DeliveredAt == nil {
		o.DeliveredAt = &completedAt
	}
	o.CompletedAt = &completedAt
	o.UpdatedAt = completedAt
	return nil
}

func (r *inMemoryOrderRepo) MarkRefunded(ctx context.Context, tx pgx.Tx, id uuid.UUID, refundedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return fmt.Errorf("order not found")
	}
	o.Status = domain.OrderStatusRefunded
	o.EscrowStatus = domain.OrderEscrowRefunded
	o.RefundedAt = &refundedAt
	o.UpdatedAt = refundedAt
	return nil
}

func (r *inMemoryOrderRepo) SetStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return fmt.Errorf("order not found")
	}
	o.Status = status
	return nil
}

func (r *inMemoryOrderRepo) SetVerificationStatus(ctx context.Context, id uuid.UUID, status domain.VerificationStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return fmt.Errorf("order not found")
	}
	o.VerificationStatus = status
	return nil
}

func (r *inMemoryOrderRepo) MarkShipped(ctx context.Context, id uuid.UUID, shippedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return fmt.Errorf("order not found")
	}
	o.ShippedAt = &shippedAt
	return nil
}

// --- Escrow wallets ---

type inMemoryWalletRepo struct {
	mu      sync.RWMutex
	wallets map[uuid.UUID]*domain.EscrowWallet
	byOrder map[uuid.UUID]uuid.UUID
}

func newInMemoryWalletRepo() *inMemoryWalletRepo {
	return &inMemoryWalletRepo{
		wallets: make(map[uuid.UUID]*domain.EscrowWallet),
		byOrder: make(map[uuid.UUID]uuid.UUID),
	}
}

func (r *inMemoryWalletRepo) Create(ctx context.Context, tx pgx.Tx, wallet *domain.EscrowWallet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byOrder[wallet.OrderID]; exists {
		return fmt.Errorf("insert wallet: %w", ports.ErrConflict)
	}
	w := *wallet
	r.wallets[wallet.ID] = &w
	r.byOrder[wallet.OrderID] = wallet.ID
	return nil
}

func (r *inMemoryWalletRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.EscrowWallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.wallets[id]
	if !ok {
		return nil, nil
	}
	cp := *w
	return &cp, nil
}

func (r *inMemoryWalletRepo) GetByOrderID(ctx context.Context, orderID uuid.UUID) (*domain.EscrowWallet, error) {
	r.mu.RLock()
	id, ok := r.byOrder[orderID]
	r.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return r.GetByID(ctx, id)
}

func (r *inMemoryWalletRepo) GetByRef(ctx context.Context, walletRef string) (*domain.EscrowWallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, w := range r.wallets {
		if w.WalletRef == walletRef {
			cp := *w
			return &cp, nil
		}
	}
	return nil, nil
}

// MarkReleased performs the compare-and-set the SQL conditional UPDATE
// provides: only one caller observes the locked -> released transition.
func (r *inMemoryWalletRepo) MarkReleased(ctx context.Context, tx pgx.Tx, id uuid.UUID, actor domain.ReleaseActor, at time.Time) (bool, error) {
	return r.transition(id, domain.EscrowStatusReleased, actor, at)
}

func (r *inMemoryWalletRepo) MarkRefunded(ctx context.Context, tx pgx.Tx, id uuid.UUID, actor domain.ReleaseActor, at time.Time) (bool, error) {
	return r.transition(id, domain.EscrowStatusRefunded, actor, at)
}

func (r *inMemoryWalletRepo) transition(id uuid.UUID, to domain.EscrowStatus, actor domain.ReleaseActor, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.wallets[id]
	if !ok || w.Status != domain.EscrowStatusLocked {
		return false, nil
	}
	w.Status = to
	w.ReleasedAt = &at
	w.ReleasedBy = &actor
	return true, nil
}

func (r *inMemoryWalletRepo) ListExpiredLocked(ctx context.Context, now time.Time, limit int) ([]domain.EscrowWallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.EscrowWallet
	for _, w := range r.wallets {
		if w.Status == domain.EscrowStatusLocked && w.AutoReleaseAt.Before(now) {
			result = append(result, *w)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].AutoReleaseAt.Before(result[j].AutoReleaseAt) })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// expire backdates a wallet's auto-release deadline so sweep tests do not
// have to wait out a real window.
func (r *inMemoryWalletRepo) expire(orderID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.byOrder[orderID]; ok {
		r.wallets[id].AutoReleaseAt = time.Now().UTC().Add(-time.Hour)
	}
}

// --- Ledger ---

type inMemoryLedgerRepo struct {
	mu      sync.RWMutex
	entries []domain.LedgerEntry
	byRef   map[string]struct{}
}

func newInMemoryLedgerRepo() *inMemoryLedgerRepo {
	return &inMemoryLedgerRepo{byRef: make(map[string]struct{})}
}

func (r *inMemoryLedgerRepo) Record(ctx context.Context, tx pgx.Tx, entry *domain.LedgerEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byRef[entry.EntryRef]; exists {
		return fmt.Errorf("insert ledger entry: %w", ports.ErrConflict)
	}
	r.byRef[entry.EntryRef] = struct{}{}
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *inMemoryLedgerRepo) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]domain.LedgerEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.LedgerEntry
	for _, e := range r.entries {
		if e.OrderID == orderID {
			result = append(result, e)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (r *inMemoryLedgerRepo) AccountBalance(ctx context.Context, account domain.Account) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
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

// --- Platform accounts ---

type inMemoryAccountRepo struct {
	mu       sync.RWMutex
	balances map[domain.Account]int64
}

// Only the internal accounts carry cached balances, mirroring the seeded
// platform_accounts rows. buyer/seller/external are ledger-only.
func newInMemoryAccountRepo() *inMemoryAccountRepo {
	return &inMemoryAccountRepo{balances: map[domain.Account]int64{
		domain.AccountEscrowPool:    0,
		domain.AccountPlatformFees:  0,
		domain.AccountPayoutPending: 0,
	}}
}

func (r *inMemoryAccountRepo) Adjust(ctx context.Context, tx pgx.Tx, account domain.Account, delta int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.balances[account]; !ok {
		return fmt.Errorf("platform account %s not seeded", account)
	}
	r.balances[account] += delta
	return nil
}

func (r *inMemoryAccountRepo) Get(ctx context.Context, account domain.Account) (*domain.PlatformAccount, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.balances[account]
	if !ok {
		return nil, nil
	}
	return &domain.PlatformAccount{Account: account, Balance: b, UpdatedAt: time.Now().UTC()}, nil
}

func (r *inMemoryAccountRepo) List(ctx context.Context) ([]domain.PlatformAccount, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	accounts := make([]domain.PlatformAccount, 0, len(r.balances))
	for a, b := range r.balances {
		accounts = append(accounts, domain.PlatformAccount{Account: a, Balance: b, UpdatedAt: time.Now().UTC()})
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].Account < accounts[j].Account })
	return accounts, nil
}

// --- Seller wallets ---

type inMemorySellerWalletRepo struct {
	mu      sync.RWMutex
	wallets map[uuid.UUID]*domain.SellerWallet
}

func newInMemorySellerWalletRepo() *inMemorySellerWalletRepo {
	return &inMemorySellerWalletRepo{wallets: make(map[uuid.UUID]*domain.SellerWallet)}
}

func (r *inMemorySellerWalletRepo) GetBySellerID(ctx context.Context, sellerID uuid.UUID) (*domain.SellerWallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.wallets[sellerID]
	if !ok {
		return nil, nil
	}
	cp := *w
	return &cp, nil
}

func (r *inMemorySellerWalletRepo) GetBySellerIDForUpdate(ctx context.Context, tx pgx.Tx, sellerID uuid.UUID) (*domain.SellerWallet, error) {
	return r.GetBySellerID(ctx, sellerID)
}

// AdjustBySeller mimics the upsert plus the non-negative balance CHECK
// constraints of the real table.
func (r *inMemorySellerWalletRepo) AdjustBySeller(ctx context.Context, tx pgx.Tx, sellerID uuid.UUID, currency string, availableDelta, pendingDelta, earnedDelta int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.wallets[sellerID]
	if !ok {
		now := time.Now().UTC()
		w = &domain.SellerWallet{ID: uuid.New(), SellerID: sellerID, Currency: currency, CreatedAt: now}
		r.wallets[sellerID] = w
	}
	if w.AvailableBalance+availableDelta < 0 || w.PendingBalance+pendingDelta < 0 {
		return fmt.Errorf("adjust seller wallet: balance check violation")
	}
	w.AvailableBalance += availableDelta
	w.PendingBalance += pendingDelta
	w.TotalEarned += earnedDelta
	w.UpdatedAt = time.Now().UTC()
	return nil
}

// --- Deposits ---

type inMemoryDepositRepo struct {
	mu       sync.RWMutex
	deposits map[uuid.UUID]*domain.EscrowDeposit
	byOrder  map[uuid.UUID]uuid.UUID
	checks   map[uuid.UUID][]domain.VerificationCheck
}

func newInMemoryDepositRepo() *inMemoryDepositRepo {
	return &inMemoryDepositRepo{
		deposits: make(map[uuid.UUID]*domain.EscrowDeposit),
		byOrder:  make(map[uuid.UUID]uuid.UUID),
		checks:   make(map[uuid.UUID][]domain.VerificationCheck),
	}
}

func (r *inMemoryDepositRepo) Create(ctx context.Context, deposit *domain.EscrowDeposit) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byOrder[deposit.OrderID]; exists {
		return fmt.Errorf("insert deposit: %w", ports.ErrConflict)
	}
	d := *deposit
	r.deposits[deposit.ID] = &d
	r.byOrder[deposit.OrderID] = deposit.ID
	return nil
}

func (r *inMemoryDepositRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.EscrowDeposit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.deposits[id]
	if !ok {
		return nil, nil
	}
	cp := *d
	return &cp, nil
}

func (r *inMemoryDepositRepo) GetByOrderID(ctx context.Context, orderID uuid.UUID) (*domain.EscrowDeposit, error) {
	r.mu.RLock()
	id, ok := r.byOrder[orderID]
	r.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return r.GetByID(ctx, id)
}

func (r *inMemoryDepositRepo) FindByCode(ctx context.Context, code string) (*domain.EscrowDeposit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var earliest *domain.EscrowDeposit
	for _, d := range r.deposits {
		if d.TransactionCode != code {
			continue
		}
		if earliest == nil || d.CreatedAt.Before(earliest.CreatedAt) {
			earliest = d
		}
	}
	if earliest == nil {
		return nil, nil
	}
	cp := *earliest
	return &cp, nil
}

func (r *inMemoryDepositRepo) SetStatus(ctx context.Context, id uuid.UUID, status domain.DepositStatus, reviewedBy *uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.deposits[id]
	if !ok {
		return fmt.Errorf("deposit not found")
	}
	d.Status = status
	if reviewedBy != nil {
		now := time.Now().UTC()
		d.ReviewedAt = &now
		d.ReviewedBy = reviewedBy
	}
	return nil
}

func (r *inMemoryDepositRepo) RecordCheck(ctx context.Context, check *domain.VerificationCheck) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checks[check.DepositID] = append(r.checks[check.DepositID], *check)
	return nil
}

func (r *inMemoryDepositRepo) ListChecks(ctx context.Context, depositID uuid.UUID) ([]domain.VerificationCheck, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]domain.VerificationCheck(nil), r.checks[depositID]...), nil
}

// --- Disputes ---

type inMemoryDisputeRepo struct {
	mu       sync.RWMutex
	disputes map[uuid.UUID]*domain.Dispute
	byOrder  map[uuid.UUID]uuid.UUID
}

func newInMemoryDisputeRepo() *inMemoryDisputeRepo {
	return &inMemoryDisputeRepo{
		disputes: make(map[uuid.UUID]*domain.Dispute),
		byOrder:  make(map[uuid.UUID]uuid.UUID),
	}
}

func (r *inMemoryDisputeRepo) Create(ctx context.Context, dispute *domain.Dispute) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byOrder[dispute.OrderID]; exists {
		return fmt.Errorf("insert dispute: %w", ports.ErrConflict)
	}
	d := *dispute
	r.disputes[dispute.ID] = &d
	r.byOrder[dispute.OrderID] = dispute.ID
	return nil
}

func (r *inMemoryDisputeRepo) GetOpenByOrder(ctx context.Context, orderID uuid.UUID) (*domain.Dispute, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byOrder[orderID]
	if !ok {
		return nil, nil
	}
	d := r.disputes[id]
	if d.Status != domain.DisputeOpen {
		return nil, nil
	}
	cp := *d
	return &cp, nil
}

func (r *inMemoryDisputeRepo) Resolve(ctx context.Context, tx pgx.Tx, id uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.disputes[id]
	if !ok {
		return fmt.Errorf("dispute not found")
	}
	d.Status = domain.DisputeResolved
	d.ResolvedAt = &at
	return nil
}

// --- Notifications ---

type inMemoryNotificationRepo struct {
	mu            sync.RWMutex
	notifications []domain.Notification
}

func newInMemoryNotificationRepo() *inMemoryNotificationRepo {
	return &inMemoryNotificationRepo{}
}

func (r *inMemoryNotificationRepo) Create(ctx context.Context, n *domain.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifications = append(r.notifications, *n)
	return nil
}

func (r *inMemoryNotificationRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]domain.Notification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.Notification
	for i := len(r.notifications) - 1; i >= 0; i-- {
		if r.notifications[i].UserID == userID {
			result = append(result, r.notifications[i])
			if limit > 0 && len(result) == limit {
				break
			}
		}
	}
	return result, nil
}

// --- Payment events ---

type inMemoryEventRepo struct {
	mu     sync.RWMutex
	events map[string]*domain.PaymentEvent
}

func newInMemoryEventRepo() *inMemoryEventRepo {
	return &inMemoryEventRepo{events: make(map[string]*domain.PaymentEvent)}
}

func (r *inMemoryEventRepo) Create(ctx context.Context, tx pgx.Tx, event *domain.PaymentEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.events[event.ProviderRef]; exists {
		return fmt.Errorf("insert payment event: %w", ports.ErrConflict)
	}
	e := *event
	r.events[event.ProviderRef] = &e
	return nil
}

func (r *inMemoryEventRepo) GetByProviderRef(ctx context.Context, providerRef string) (*domain.PaymentEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.events[providerRef]
	if !ok {
		return nil, nil
	}
	cp := *e
	return &cp, nil
}

// --- Operators ---

type inMemoryOperatorRepo struct {
	mu        sync.RWMutex
	operators map[string]*domain.Operator
}

func newInMemoryOperatorRepo() *inMemoryOperatorRepo {
	return &inMemoryOperatorRepo{operators: make(map[string]*domain.Operator)}
}

func (r *inMemoryOperatorRepo) Create(ctx context.Context, op *domain.Operator) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.operators[op.Username]; exists {
		return fmt.Errorf("insert operator: %w", ports.ErrConflict)
	}
	o := *op
	r.operators[op.Username] = &o
	return nil
}

func (r *inMemoryOperatorRepo) GetByUsername(ctx context.Context, username string) (*domain.Operator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.operators[username]
	if !ok {
		return nil, nil
	}
	cp := *o
	return &cp, nil
}

// --- Transactor (no-op tx) ---

type inMemoryTransactor struct{}

func newInMemoryTransactor() *inMemoryTransactor {
	return &inMemoryTransactor{}
}

func (t *inMemoryTransactor) Begin(ctx context.Context) (pgx.Tx, error) {
	return &noopTx{}, nil
}

// noopTx is a no-op pgx.Tx implementation for in-memory testing.
type noopTx struct{}

func (t *noopTx) Begin(ctx context.Context) (pgx.Tx, error) { return t, nil }
func (t *noopTx) Commit(ctx context.Context) error          { return nil }
func (t *noopTx) Rollback(ctx context.Context) error        { return nil }
func (t *noopTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (t *noopTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (t *noopTx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }
func (t *noopTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (t *noopTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), nil
}
func (t *noopTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}
func (t *noopTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return nil
}
func (t *noopTx) Conn() *pgx.Conn { return nil }
