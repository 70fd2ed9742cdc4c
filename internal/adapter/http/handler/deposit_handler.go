package handler

import (
	"payloom/internal/adapter/http/dto"
	"payloom/internal/core/ports"
	"payloom/pkg/apperror"
	"payloom/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// DepositHandler handles manual proof-of-payment submissions.
type DepositHandler struct {
	verificationSvc ports.VerificationService
}

// NewDepositHandler creates a new DepositHandler.
func NewDepositHandler(verificationSvc ports.VerificationService) *DepositHandler {
	return &DepositHandler{verificationSvc: verificationSvc}
}

// Submit handles POST /api/v1/deposits.
func (h *DepositHandler) Submit(c *gin.Context) {
	var req dto.DepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	orderID, err := uuid.Parse(req.OrderID)
	if err != nil {
		response.Error(c, apperror.Validation("order_id must be a valid UUID"))
		return
	}

	result, err := h.verificationSvc.SubmitDeposit(c.Request.Context(), ports.DepositRequest{
		OrderID:         orderID,
		TransactionCode: req.TransactionCode,
		PayerPhone:      req.PayerPhone,
		Method:          req.Method,
		ClaimedAmount:   req.ClaimedAmount,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.ToDepositResponse(result))
}
