package ports

import (
	"context"
	"time"

	"payloom/internal/core/domain"

	"github.com/google/uuid"
)

// --- Escrow core ---

// LockRequest confirms a payment and locks funds in escrow for an order.
type LockRequest struct {
	OrderID     uuid.UUID
	GrossAmount int64  // must match the order's gross amount
	Source      string // webhook provider name or "admin_approval"
}

// ResolveRequest targets a locked wallet by order id or wallet ref.
type ResolveRequest struct {
	OrderID   uuid.UUID // zero value = use WalletRef
	WalletRef string
	Actor     domain.ReleaseActor
	Reason    string // refund only
}

// EscrowView is the wallet plus its ledger trail.
type EscrowView struct {
	Wallet  *domain.EscrowWallet `json:"wallet"`
	Entries []domain.LedgerEntry `json:"entries"`
}

// EscrowService owns the lock/release/refund state machine per order.
type EscrowService interface {
	Lock(ctx context.Context, req LockRequest) (*domain.EscrowWallet, error)
	Release(ctx context.Context, req ResolveRequest) (*domain.EscrowWallet, error)
	Refund(ctx context.Context, req ResolveRequest) (*domain.EscrowWallet, error)
	GetByOrder(ctx context.Context, orderID uuid.UUID) (*EscrowView, error)
}

// --- Payment verification ---

// DepositRequest is a buyer-submitted proof of payment.
type DepositRequest struct {
	OrderID         uuid.UUID
	TransactionCode string
	PayerPhone      string
	Method          string
	ClaimedAmount   int64
}

// DepositResult is the stored deposit plus its full verification log.
type DepositResult struct {
	Deposit *domain.EscrowDeposit      `json:"deposit"`
	Checks  []domain.VerificationCheck `json:"checks"`
}

// VerificationService routes webhook and manual confirmations through
// fraud/format checks before handing off to the escrow core.
type VerificationService interface {
	// HandleWebhook processes a normalized provider event. It is idempotent
	// per provider reference and never returns an error the webhook handler
	// should surface to the provider.
	HandleWebhook(ctx context.Context, event domain.PaymentEvent) error
	SubmitDeposit(ctx context.Context, req DepositRequest) (*DepositResult, error)
	// ApproveDeposit performs the lock-equivalent sequence via EscrowService.
	ApproveDeposit(ctx context.Context, depositID, adminID uuid.UUID) (*domain.EscrowWallet, error)
	RejectDeposit(ctx context.Context, depositID, adminID uuid.UUID, reason string) error
}

// ProviderRefCache is the Redis-layer webhook dedupe check (fast path).
// The payment_events uniqueness constraint remains authoritative.
type ProviderRefCache interface {
	Seen(ctx context.Context, providerRef string) (bool, error)
	MarkSeen(ctx context.Context, providerRef string, ttl time.Duration) error
}

// --- Auto-release ---

// AutoReleaseService sweeps expired locked wallets.
type AutoReleaseService interface {
	// Sweep releases every locked wallet past its deadline whose order is
	// fulfilled. Items fail independently; it returns the released count.
	Sweep(ctx context.Context) (int, error)
}

// --- Notifications ---

// Notifier dispatches one notification (in-app row plus optional SMS).
// Implementations are best-effort; callers fire-and-forget after commit.
type Notifier interface {
	Dispatch(ctx context.Context, n domain.Notification) error
}

// SMSSender sends one SMS message.
type SMSSender interface {
	Send(ctx context.Context, phone, message string) error
}

// --- Outbound payment provider ---

// STKPushRequest initiates a prompt-for-PIN payment on the buyer's phone.
type STKPushRequest struct {
	OrderID uuid.UUID
	Phone   string
	Amount  int64
}

// PayoutRequest sends money out to a seller. Keyed by an idempotency
// reference; implementations must never blind-retry it.
type PayoutRequest struct {
	Reference string
	Phone     string
	Amount    int64
}

// PaymentProvider is the outbound mobile-money rail.
type PaymentProvider interface {
	InitiateSTKPush(ctx context.Context, req STKPushRequest) (string, error) // returns provider ref
	SendPayout(ctx context.Context, req PayoutRequest) (string, error)      // returns provider ref
}

// --- Withdrawals ---

// WithdrawRequest moves released funds from a seller wallet out to mobile money.
type WithdrawRequest struct {
	SellerID uuid.UUID
	Amount   int64
	Phone    string
}

// WithdrawalService debits the seller wallet and triggers the provider payout.
type WithdrawalService interface {
	Withdraw(ctx context.Context, req WithdrawRequest) (*domain.LedgerEntry, error)
}

// --- Admin auth ---

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	OperatorID uuid.UUID
	Username   string
}

// TokenService handles JWT token operations for the admin surface.
type TokenService interface {
	Generate(operatorID uuid.UUID, username string) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// HashService handles operator password hashing (Argon2id).
type HashService interface {
	Hash(password string) (string, error)
	Verify(password string, hash string) (bool, error)
}

// AuthService authenticates admin operators.
type AuthService interface {
	Login(ctx context.Context, username, password string) (string, time.Time, error)
}

// --- Reconciliation ---

// AccountReconciliation compares a cached balance against the ledger-derived one.
type AccountReconciliation struct {
	Account       domain.Account `json:"account"`
	CachedBalance int64          `json:"cached_balance"`
	LedgerBalance int64          `json:"ledger_balance"`
	Drift         int64          `json:"drift"`
}

// ReconciliationService verifies platform account balances against the ledger.
type ReconciliationService interface {
	Report(ctx context.Context) ([]AccountReconciliation, error)
}
