package domain

import (
	"time"

	"github.com/google/uuid"
)

// Account names one side of a double-entry ledger movement.
type Account string

const (
	AccountBuyer         Account = "buyer"
	AccountEscrowPool    Account = "escrow_pool"
	AccountPlatformFees  Account = "platform_fees"
	AccountPayoutPending Account = "payout_pending"
	AccountSeller        Account = "seller"
	AccountExternal      Account = "external"
)

// LedgerEntryType classifies a money movement.
type LedgerEntryType string

const (
	LedgerEscrowLock      LedgerEntryType = "escrow_lock"
	LedgerEscrowRelease   LedgerEntryType = "escrow_release"
	LedgerFeeCollection   LedgerEntryType = "fee_collection"
	LedgerEscrowRefund    LedgerEntryType = "escrow_refund"
	LedgerRefundCompleted LedgerEntryType = "refund_completed"
	LedgerWithdrawal      LedgerEntryType = "withdrawal"
	LedgerPayout          LedgerEntryType = "payout"
)

// LedgerEntry is an immutable record of one money movement between two named
// accounts. Entries are append-only; they are never updated or deleted.
type LedgerEntry struct {
	ID            uuid.UUID         `json:"id"`
	EntryRef      string            `json:"entry_ref"` // unique
	OrderID       uuid.UUID         `json:"order_id"`
	Type          LedgerEntryType   `json:"type"`
	DebitAccount  Account           `json:"debit_account"`
	CreditAccount Account           `json:"credit_account"`
	Amount        int64             `json:"amount"`
	Description   string            `json:"description"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}

// PlatformAccount is a named aggregate balance derived from ledger entries.
// It is a cache, reconcilable against the ledger at any time, not a source of
// truth.
type PlatformAccount struct {
	Account   Account   `json:"account"`
	Balance   int64     `json:"balance"`
	UpdatedAt time.Time `json:"updated_at"`
}
