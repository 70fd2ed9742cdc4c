package domain

import (
	"time"

	"github.com/google/uuid"
)

// NotificationKind classifies in-app notifications.
type NotificationKind string

const (
	NotifyPaymentReceived NotificationKind = "payment_received"
	NotifyEscrowReleased  NotificationKind = "escrow_released"
	NotifyEscrowRefunded  NotificationKind = "escrow_refunded"
	NotifyFraudAlert      NotificationKind = "fraud_alert"
	NotifyPayoutSent      NotificationKind = "payout_sent"
)

// Notification is one in-app notification record. Dispatch is best-effort:
// failures are logged and never block the operation that produced them.
type Notification struct {
	ID        uuid.UUID        `json:"id"`
	UserID    uuid.UUID        `json:"user_id"`
	OrderID   *uuid.UUID       `json:"order_id,omitempty"`
	Kind      NotificationKind `json:"kind"`
	Title     string           `json:"title"`
	Body      string           `json:"body"`
	Phone     string           `json:"phone,omitempty"` // SMS target, empty = in-app only
	Read      bool             `json:"read"`
	CreatedAt time.Time        `json:"created_at"`
}
