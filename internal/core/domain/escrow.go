package domain

import (
	"time"

	"github.com/google/uuid"
)

// EscrowStatus represents the escrow wallet state machine:
// locked -> released | refunded (terminal).
type EscrowStatus string

const (
	EscrowStatusLocked   EscrowStatus = "locked"
	EscrowStatusReleased EscrowStatus = "released"
	EscrowStatusRefunded EscrowStatus = "refunded"
)

// ReleaseActor is the closed set of actors that may resolve an escrow wallet.
// It is retained for audit, never used for authorization decisions.
type ReleaseActor string

const (
	ActorBuyerConfirmation ReleaseActor = "buyer_confirmation"
	ActorAdmin             ReleaseActor = "admin"
	ActorAutoRelease       ReleaseActor = "auto_release"
	ActorDisputeRefund     ReleaseActor = "dispute_refund"
)

// EscrowWallet is the money-holding record for one order. It is created when
// payment is confirmed, resolved exactly once, and never deleted.
type EscrowWallet struct {
	ID            uuid.UUID     `json:"id"`
	WalletRef     string        `json:"wallet_ref"` // human-readable, unique
	OrderID       uuid.UUID     `json:"order_id"`   // unique while any wallet exists
	GrossAmount   int64         `json:"gross_amount"`
	PlatformFee   int64         `json:"platform_fee"`
	NetAmount     int64         `json:"net_amount"` // always gross - fee
	Currency      string        `json:"currency"`
	Status        EscrowStatus  `json:"status"`
	AutoReleaseAt time.Time     `json:"auto_release_at"`
	ReleasedAt    *time.Time    `json:"released_at,omitempty"`
	ReleasedBy    *ReleaseActor `json:"released_by,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
}

// IsTerminal returns true once the wallet left the locked state.
func (w *EscrowWallet) IsTerminal() bool {
	return w.Status == EscrowStatusReleased || w.Status == EscrowStatusRefunded
}
