package domain

import (
	"time"

	"github.com/google/uuid"
)

// PaymentOutcome is the normalized result of a provider callback.
type PaymentOutcome string

const (
	PaymentCompleted PaymentOutcome = "completed"
	PaymentFailed    PaymentOutcome = "failed"
)

// PaymentEvent is a normalized provider webhook, one per provider reference.
// The provider_ref uniqueness constraint is the authoritative idempotency
// signal for the automated confirmation path.
type PaymentEvent struct {
	ID          uuid.UUID      `json:"id"`
	OrderID     uuid.UUID      `json:"order_id"`
	Provider    string         `json:"provider"` // mpesa, intasend, pesapal
	ProviderRef string         `json:"provider_ref"` // unique
	Amount      int64          `json:"amount"`
	Outcome     PaymentOutcome `json:"outcome"`
	CreatedAt   time.Time      `json:"created_at"`
}
