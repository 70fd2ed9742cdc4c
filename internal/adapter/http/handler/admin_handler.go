package handler

import (
	"payloom/internal/adapter/http/dto"
	"payloom/internal/adapter/http/middleware"
	"payloom/internal/core/domain"
	"payloom/internal/core/ports"
	"payloom/pkg/apperror"
	"payloom/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AdminHandler handles operator-only endpoints.
type AdminHandler struct {
	verificationSvc ports.VerificationService
	escrowSvc       ports.EscrowService
	reconSvc        ports.ReconciliationService
	withdrawalSvc   ports.WithdrawalService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(
	verificationSvc ports.VerificationService,
	escrowSvc ports.EscrowService,
	reconSvc ports.ReconciliationService,
	withdrawalSvc ports.WithdrawalService,
) *AdminHandler {
	return &AdminHandler{
		verificationSvc: verificationSvc,
		escrowSvc:       escrowSvc,
		reconSvc:        reconSvc,
		withdrawalSvc:   withdrawalSvc,
	}
}

func operatorID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(middleware.CtxOperatorID)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}

// ApproveDeposit handles POST /api/v1/admin/deposits/:id/approve.
func (h *AdminHandler) ApproveDeposit(c *gin.Context) {
	adminID, ok := operatorID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	depositID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("deposit id must be a valid UUID"))
		return
	}

	wallet, err := h.verificationSvc.ApproveDeposit(c.Request.Context(), depositID, adminID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.ToWalletResponse(wallet))
}

// RejectDeposit handles POST /api/v1/admin/deposits/:id/reject.
func (h *AdminHandler) RejectDeposit(c *gin.Context) {
	adminID, ok := operatorID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	depositID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("deposit id must be a valid UUID"))
		return
	}

	var req dto.RejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	if err := h.verificationSvc.RejectDeposit(c.Request.Context(), depositID, adminID, req.Reason); err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, gin.H{"status": "rejected"})
}

// ReleaseOrder handles POST /api/v1/admin/orders/:id/release.
func (h *AdminHandler) ReleaseOrder(c *gin.Context) {
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("order id must be a valid UUID"))
		return
	}

	wallet, err := h.escrowSvc.Release(c.Request.Context(), ports.ResolveRequest{
		OrderID: orderID,
		Actor:   domain.ActorAdmin,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.ToWalletResponse(wallet))
}

// RefundOrder handles POST /api/v1/admin/orders/:id/refund.
func (h *AdminHandler) RefundOrder(c *gin.Context) {
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("order id must be a valid UUID"))
		return
	}

	var req dto.RejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	wallet, err := h.escrowSvc.Refund(c.Request.Context(), ports.ResolveRequest{
		OrderID: orderID,
		Actor:   domain.ActorAdmin,
		Reason:  req.Reason,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.ToWalletResponse(wallet))
}

// Reconciliation handles GET /api/v1/admin/reconciliation.
func (h *AdminHandler) Reconciliation(c *gin.Context) {
	report, err := h.reconSvc.Report(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	rows := make([]dto.ReconciliationRow, 0, len(report))
	for _, r := range report {
		rows = append(rows, dto.ReconciliationRow{
			Account:       string(r.Account),
			CachedBalance: r.CachedBalance,
			LedgerBalance: r.LedgerBalance,
			Drift:         r.Drift,
		})
	}

	response.OK(c, rows)
}

// Withdraw handles POST /api/v1/sellers/:id/withdraw.
func (h *AdminHandler) Withdraw(c *gin.Context) {
	sellerID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("seller id must be a valid UUID"))
		return
	}

	var req dto.WithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	entry, err := h.withdrawalSvc.Withdraw(c.Request.Context(), ports.WithdrawRequest{
		SellerID: sellerID,
		Amount:   req.Amount,
		Phone:    req.Phone,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.WithdrawResponse{
		EntryRef: entry.EntryRef,
		Amount:   entry.Amount,
		Status:   "payout_sent",
	})
}
