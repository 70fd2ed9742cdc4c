package ports

import (
	"context"
	"errors"
	"time"

	"payloom/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ErrConflict is returned by repositories when a storage-layer uniqueness
// constraint rejects a write. The constraint, not a preceding select, is the
// authoritative duplicate signal.
var ErrConflict = errors.New("storage conflict: row already exists")

// OrderRepository defines persistence operations for orders.
// Methods accepting pgx.Tx run inside the atomic escrow transaction scope.
type OrderRepository interface {
	Create(ctx context.Context, order *domain.Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Order, error)
	// MarkPaid sets status=paid, escrow_status=held and the computed fee/payout.
	MarkPaid(ctx context.Context, tx pgx.Tx, id uuid.UUID, fee, payout int64, paidAt time.Time) error
	// MarkCompleted sets status=completed and backfills shipped/delivered/
	// completed timestamps that are still null.
	MarkCompleted(ctx context.Context, tx pgx.Tx, id uuid.UUID, completedAt time.Time) error
	MarkRefunded(ctx context.Context, tx pgx.Tx, id uuid.UUID, refundedAt time.Time) error
	SetStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus) error
	SetVerificationStatus(ctx context.Context, id uuid.UUID, status domain.VerificationStatus) error
	MarkShipped(ctx context.Context, id uuid.UUID, shippedAt time.Time) error
}

// EscrowWalletRepository defines persistence operations for escrow wallets.
type EscrowWalletRepository interface {
	// Create inserts a locked wallet. A uniqueness constraint on order_id
	// rejects a second wallet; that surfaces as ErrConflict.
	Create(ctx context.Context, tx pgx.Tx, wallet *domain.EscrowWallet) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.EscrowWallet, error)
	GetByOrderID(ctx context.Context, orderID uuid.UUID) (*domain.EscrowWallet, error)
	GetByRef(ctx context.Context, walletRef string) (*domain.EscrowWallet, error)
	// MarkReleased performs UPDATE ... WHERE status='locked' and reports
	// whether a row transitioned. false means someone else resolved it first.
	MarkReleased(ctx context.Context, tx pgx.Tx, id uuid.UUID, actor domain.ReleaseActor, at time.Time) (bool, error)
	MarkRefunded(ctx context.Context, tx pgx.Tx, id uuid.UUID, actor domain.ReleaseActor, at time.Time) (bool, error)
	// ListExpiredLocked returns locked wallets whose auto-release deadline has
	// passed, oldest first.
	ListExpiredLocked(ctx context.Context, now time.Time, limit int) ([]domain.EscrowWallet, error)
}

// LedgerRepository appends immutable double-entry records. No update or
// delete methods exist by design.
type LedgerRepository interface {
	Record(ctx context.Context, tx pgx.Tx, entry *domain.LedgerEntry) error
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]domain.LedgerEntry, error)
	// AccountBalance derives an account balance from the ledger:
	// sum(credits) - sum(debits). Used to reconcile the cached balances.
	AccountBalance(ctx context.Context, account domain.Account) (int64, error)
}

// PlatformAccountRepository maintains the cached aggregate balances.
type PlatformAccountRepository interface {
	// Adjust atomically applies balance = balance + delta. Callers pair every
	// call with the ledger entry that justifies it, in the same transaction.
	Adjust(ctx context.Context, tx pgx.Tx, account domain.Account, delta int64) error
	Get(ctx context.Context, account domain.Account) (*domain.PlatformAccount, error)
	List(ctx context.Context) ([]domain.PlatformAccount, error)
}

// SellerWalletRepository defines persistence for seller payout wallets.
type SellerWalletRepository interface {
	GetBySellerID(ctx context.Context, sellerID uuid.UUID) (*domain.SellerWallet, error)
	GetBySellerIDForUpdate(ctx context.Context, tx pgx.Tx, sellerID uuid.UUID) (*domain.SellerWallet, error)
	// AdjustBySeller applies the three balance deltas in one upsert statement,
	// creating the wallet row on first touch.
	AdjustBySeller(ctx context.Context, tx pgx.Tx, sellerID uuid.UUID, currency string, availableDelta, pendingDelta, earnedDelta int64) error
}

// DepositRepository defines persistence for manual proof-of-payment
// submissions and their verification audit log.
type DepositRepository interface {
	Create(ctx context.Context, deposit *domain.EscrowDeposit) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.EscrowDeposit, error)
	GetByOrderID(ctx context.Context, orderID uuid.UUID) (*domain.EscrowDeposit, error)
	// FindByCode returns the earliest deposit carrying the given transaction
	// code, regardless of order. Used for duplicate detection.
	FindByCode(ctx context.Context, code string) (*domain.EscrowDeposit, error)
	SetStatus(ctx context.Context, id uuid.UUID, status domain.DepositStatus, reviewedBy *uuid.UUID) error
	RecordCheck(ctx context.Context, check *domain.VerificationCheck) error
	ListChecks(ctx context.Context, depositID uuid.UUID) ([]domain.VerificationCheck, error)
}

// DisputeRepository defines persistence for disputes. One dispute per order,
// enforced by a uniqueness constraint (ErrConflict on violation).
type DisputeRepository interface {
	Create(ctx context.Context, dispute *domain.Dispute) error
	GetOpenByOrder(ctx context.Context, orderID uuid.UUID) (*domain.Dispute, error)
	Resolve(ctx context.Context, tx pgx.Tx, id uuid.UUID, at time.Time) error
}

// NotificationRepository stores in-app notification records.
type NotificationRepository interface {
	Create(ctx context.Context, n *domain.Notification) error
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]domain.Notification, error)
}

// PaymentEventRepository stores normalized provider callbacks. The unique
// provider_ref constraint (ErrConflict) is the webhook idempotency barrier.
type PaymentEventRepository interface {
	Create(ctx context.Context, tx pgx.Tx, event *domain.PaymentEvent) error
	GetByProviderRef(ctx context.Context, providerRef string) (*domain.PaymentEvent, error)
}

// OperatorRepository defines persistence for admin operators.
type OperatorRepository interface {
	Create(ctx context.Context, op *domain.Operator) error
	GetByUsername(ctx context.Context, username string) (*domain.Operator, error)
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
