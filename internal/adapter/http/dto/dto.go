package dto

import (
	"payloom/internal/core/domain"
	"payloom/internal/core/ports"
)

// DepositRequest is the request body for manual proof-of-payment submission.
type DepositRequest struct {
	OrderID         string `json:"order_id" binding:"required,uuid"`
	TransactionCode string `json:"transaction_code" binding:"required,min=6,max=20"`
	PayerPhone      string `json:"payer_phone" binding:"required,msisdn"`
	Method          string `json:"method" binding:"required,oneof=mpesa intasend pesapal"`
	ClaimedAmount   int64  `json:"claimed_amount" binding:"required,gt=0"`
}

// DisputeRequest is the request body for opening a dispute.
type DisputeRequest struct {
	OpenedBy string `json:"opened_by" binding:"required,uuid"`
	Reason   string `json:"reason" binding:"required,min=3,max=500"`
}

// LoginRequest is the request body for operator login.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse is the response body for successful login.
type LoginResponse struct {
	Token  string `json:"token"`
	Expiry int64  `json:"expiry"` // Unix timestamp
}

// RejectRequest is the request body for rejecting a deposit.
type RejectRequest struct {
	Reason string `json:"reason" binding:"required,min=3,max=500"`
}

// WithdrawRequest is the request body for a seller payout.
type WithdrawRequest struct {
	Amount int64  `json:"amount" binding:"required,gt=0"`
	Phone  string `json:"phone" binding:"required,msisdn"`
}

// WalletResponse is the wire shape of an escrow wallet.
type WalletResponse struct {
	ID            string  `json:"id"`
	WalletRef     string  `json:"wallet_ref"`
	OrderID       string  `json:"order_id"`
	GrossAmount   int64   `json:"gross_amount"`
	PlatformFee   int64   `json:"platform_fee"`
	NetAmount     int64   `json:"net_amount"`
	Currency      string  `json:"currency"`
	Status        string  `json:"status"`
	AutoReleaseAt string  `json:"auto_release_at"`
	ReleasedAt    *string `json:"released_at,omitempty"`
	ReleasedBy    *string `json:"released_by,omitempty"`
}

// LedgerEntryResponse is the wire shape of one ledger entry.
type LedgerEntryResponse struct {
	EntryRef      string `json:"entry_ref"`
	Type          string `json:"type"`
	DebitAccount  string `json:"debit_account"`
	CreditAccount string `json:"credit_account"`
	Amount        int64  `json:"amount"`
	Description   string `json:"description"`
	CreatedAt     string `json:"created_at"`
}

// EscrowViewResponse wraps a wallet plus its ledger trail.
type EscrowViewResponse struct {
	Wallet  WalletResponse        `json:"wallet"`
	Entries []LedgerEntryResponse `json:"entries"`
}

// CheckResponse is one recorded verification check.
type CheckResponse struct {
	Check  string `json:"check"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// DepositResponse is the stored deposit plus its verification log.
type DepositResponse struct {
	ID              string          `json:"id"`
	OrderID         string          `json:"order_id"`
	TransactionCode string          `json:"transaction_code"`
	Status          string          `json:"status"`
	Checks          []CheckResponse `json:"checks"`
}

// WithdrawResponse returns the ledger entry that recorded the payout debit.
type WithdrawResponse struct {
	EntryRef string `json:"entry_ref"`
	Amount   int64  `json:"amount"`
	Status   string `json:"status"`
}

// ReconciliationRow compares one cached account balance against the ledger.
type ReconciliationRow struct {
	Account       string `json:"account"`
	CachedBalance int64  `json:"cached_balance"`
	LedgerBalance int64  `json:"ledger_balance"`
	Drift         int64  `json:"drift"`
}

// SweepResponse reports an auto-release sweep outcome.
type SweepResponse struct {
	Released int `json:"released"`
}

const timeLayout = "2006-01-02T15:04:05Z07:00"

// ToWalletResponse converts a domain wallet to its wire shape.
func ToWalletResponse(w *domain.EscrowWallet) WalletResponse {
	resp := WalletResponse{
		ID:            w.ID.String(),
		WalletRef:     w.WalletRef,
		OrderID:       w.OrderID.String(),
		GrossAmount:   w.GrossAmount,
		PlatformFee:   w.PlatformFee,
		NetAmount:     w.NetAmount,
		Currency:      w.Currency,
		Status:        string(w.Status),
		AutoReleaseAt: w.AutoReleaseAt.Format(timeLayout),
	}
	if w.ReleasedAt != nil {
		s := w.ReleasedAt.Format(timeLayout)
		resp.ReleasedAt = &s
	}
	if w.ReleasedBy != nil {
		s := string(*w.ReleasedBy)
		resp.ReleasedBy = &s
	}
	return resp
}

// ToEscrowViewResponse converts a wallet-plus-ledger view to its wire shape.
func ToEscrowViewResponse(view *ports.EscrowView) EscrowViewResponse {
	resp := EscrowViewResponse{
		Wallet:  ToWalletResponse(view.Wallet),
		Entries: make([]LedgerEntryResponse, 0, len(view.Entries)),
	}
	for _, e := range view.Entries {
		resp.Entries = append(resp.Entries, LedgerEntryResponse{
			EntryRef:      e.EntryRef,
			Type:          string(e.Type),
			DebitAccount:  string(e.DebitAccount),
			CreditAccount: string(e.CreditAccount),
			Amount:        e.Amount,
			Description:   e.Description,
			CreatedAt:     e.CreatedAt.Format(timeLayout),
		})
	}
	return resp
}

// ToDepositResponse converts a deposit and its check log to the wire shape.
func ToDepositResponse(result *ports.DepositResult) DepositResponse {
	resp := DepositResponse{
		ID:              result.Deposit.ID.String(),
		OrderID:         result.Deposit.OrderID.String(),
		TransactionCode: result.Deposit.TransactionCode,
		Status:          string(result.Deposit.Status),
		Checks:          make([]CheckResponse, 0, len(result.Checks)),
	}
	for _, c := range result.Checks {
		resp.Checks = append(resp.Checks, CheckResponse{
			Check:  string(c.Check),
			Passed: c.Passed,
			Detail: c.Detail,
		})
	}
	return resp
}
