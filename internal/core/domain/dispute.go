package domain

import (
	"time"

	"github.com/google/uuid"
)

// DisputeStatus is the dispute lifecycle.
type DisputeStatus string

const (
	DisputeOpen     DisputeStatus = "open"
	DisputeResolved DisputeStatus = "resolved"
)

// Dispute, when open against an order, forces the refund path instead of
// release. At most one dispute per order, enforced by a uniqueness constraint.
type Dispute struct {
	ID         uuid.UUID     `json:"id"`
	OrderID    uuid.UUID     `json:"order_id"` // unique
	OpenedBy   uuid.UUID     `json:"opened_by"`
	Reason     string        `json:"reason"`
	Status     DisputeStatus `json:"status"`
	CreatedAt  time.Time     `json:"created_at"`
	ResolvedAt *time.Time    `json:"resolved_at,omitempty"`
}
