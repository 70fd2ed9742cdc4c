package domain

import (
	"time"

	"github.com/google/uuid"
)

// SellerWallet receives net payouts when escrow releases. Pending holds net
// amounts still locked in escrow; available holds released funds awaiting
// withdrawal.
type SellerWallet struct {
	ID               uuid.UUID `json:"id"`
	SellerID         uuid.UUID `json:"seller_id"`
	Currency         string    `json:"currency"`
	AvailableBalance int64     `json:"available_balance"`
	PendingBalance   int64     `json:"pending_balance"`
	TotalEarned      int64     `json:"total_earned"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}
