package domain

import (
	"time"

	"github.com/google/uuid"
)

// DepositStatus tracks a buyer-submitted proof of payment through review.
type DepositStatus string

const (
	DepositSubmitted       DepositStatus = "submitted"
	DepositPendingApproval DepositStatus = "pending_approval"
	DepositFlagged         DepositStatus = "flagged"
	DepositApproved        DepositStatus = "approved"
	DepositRejected        DepositStatus = "rejected"
)

// EscrowDeposit is buyer-submitted proof of payment (transaction code, payer
// phone, claimed amount) awaiting verification. One per not-yet-confirmed
// order; superseded by the EscrowWallet once confirmed.
type EscrowDeposit struct {
	ID              uuid.UUID     `json:"id"`
	OrderID         uuid.UUID     `json:"order_id"` // unique
	TransactionCode string        `json:"transaction_code"`
	PayerPhone      string        `json:"payer_phone"`
	Method          string        `json:"method"` // mpesa, intasend, pesapal
	ClaimedAmount   int64         `json:"claimed_amount"`
	Status          DepositStatus `json:"status"`
	CreatedAt       time.Time     `json:"created_at"`
	ReviewedAt      *time.Time    `json:"reviewed_at,omitempty"`
	ReviewedBy      *uuid.UUID    `json:"reviewed_by,omitempty"`
}

// CheckType names one of the independent manual-path verification checks.
type CheckType string

const (
	CheckFormat      CheckType = "format"
	CheckDuplicate   CheckType = "duplicate"
	CheckAmountMatch CheckType = "amount_match"
)

// VerificationCheck is one recorded verification result. All checks run and
// are recorded even when an earlier one fails, so the stored log always has a
// complete picture for audit and disputes.
type VerificationCheck struct {
	ID        uuid.UUID `json:"id"`
	DepositID uuid.UUID `json:"deposit_id"`
	Check     CheckType `json:"check"`
	Passed    bool      `json:"passed"`
	Detail    string    `json:"detail"`
	CreatedAt time.Time `json:"created_at"`
}
