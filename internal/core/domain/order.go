package domain

import (
	"time"

	"github.com/google/uuid"
)

// OrderStatus represents the lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusPaid       OrderStatus = "paid"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusRefunded   OrderStatus = "refunded"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// VerificationStatus tracks the manual proof-of-payment review state.
type VerificationStatus string

const (
	VerificationNone            VerificationStatus = "none"
	VerificationPendingApproval VerificationStatus = "pending_approval"
	VerificationFlagged         VerificationStatus = "flagged"
	VerificationApproved        VerificationStatus = "approved"
	VerificationRejected        VerificationStatus = "rejected"
)

// OrderEscrowStatus mirrors the escrow wallet state on the order record.
type OrderEscrowStatus string

const (
	OrderEscrowNone                OrderEscrowStatus = "none"
	OrderEscrowPendingConfirmation OrderEscrowStatus = "pending_confirmation"
	OrderEscrowHeld                OrderEscrowStatus = "held"
	OrderEscrowReleased            OrderEscrowStatus = "released"
	OrderEscrowRefunded            OrderEscrowStatus = "refunded"
)

// Order represents one buyer-seller trade. Amounts are in minor units.
type Order struct {
	ID                 uuid.UUID          `json:"id"`
	SellerID           uuid.UUID          `json:"seller_id"`
	BuyerID            uuid.UUID          `json:"buyer_id"`
	BuyerPhone         string             `json:"buyer_phone"`
	BuyerName          string             `json:"buyer_name"`
	ItemDescription    string             `json:"item_description"`
	GrossAmount        int64              `json:"gross_amount"`
	Currency           string             `json:"currency"`
	Status             OrderStatus        `json:"status"`
	VerificationStatus VerificationStatus `json:"verification_status"`
	EscrowStatus       OrderEscrowStatus  `json:"escrow_status"`
	PlatformFee        int64              `json:"platform_fee"`
	SellerPayout       int64              `json:"seller_payout"`
	PaidAt             *time.Time         `json:"paid_at,omitempty"`
	ShippedAt          *time.Time         `json:"shipped_at,omitempty"`
	DeliveredAt        *time.Time         `json:"delivered_at,omitempty"`
	CompletedAt        *time.Time         `json:"completed_at,omitempty"`
	RefundedAt         *time.Time         `json:"refunded_at,omitempty"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

// IsFulfilled returns true once the seller has shipped or delivery is recorded.
// Auto-release only touches fulfilled orders.
func (o *Order) IsFulfilled() bool {
	return o.ShippedAt != nil || o.DeliveredAt != nil
}

// IsTerminal returns true if the order reached a final state.
func (o *Order) IsTerminal() bool {
	return o.Status == OrderStatusCompleted ||
		o.Status == OrderStatusRefunded ||
		o.Status == OrderStatusCancelled
}
