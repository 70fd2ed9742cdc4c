package handler

import (
	"errors"
	"time"

	"payloom/internal/adapter/http/dto"
	"payloom/internal/core/domain"
	"payloom/internal/core/ports"
	"payloom/pkg/apperror"
	"payloom/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// OrderHandler handles the buyer-facing order endpoints.
type OrderHandler struct {
	escrowSvc   ports.EscrowService
	orderRepo   ports.OrderRepository
	disputeRepo ports.DisputeRepository
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(escrowSvc ports.EscrowService, orderRepo ports.OrderRepository, disputeRepo ports.DisputeRepository) *OrderHandler {
	return &OrderHandler{escrowSvc: escrowSvc, orderRepo: orderRepo, disputeRepo: disputeRepo}
}

// Confirm handles POST /api/v1/orders/:id/confirm — the buyer confirms
// delivery, which releases the escrow.
func (h *OrderHandler) Confirm(c *gin.Context) {
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("order id must be a valid UUID"))
		return
	}

	wallet, err := h.escrowSvc.Release(c.Request.Context(), ports.ResolveRequest{
		OrderID: orderID,
		Actor:   domain.ActorBuyerConfirmation,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.ToWalletResponse(wallet))
}

// Dispute handles POST /api/v1/orders/:id/dispute. A second dispute for the
// same order is a benign outcome, not an error.
func (h *OrderHandler) Dispute(c *gin.Context) {
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("order id must be a valid UUID"))
		return
	}

	var req dto.DisputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	openedBy, err := uuid.Parse(req.OpenedBy)
	if err != nil {
		response.Error(c, apperror.Validation("opened_by must be a valid UUID"))
		return
	}

	order, err := h.orderRepo.GetByID(c.Request.Context(), orderID)
	if err != nil {
		response.Error(c, apperror.InternalError(err))
		return
	}
	if order == nil {
		response.Error(c, apperror.ErrOrderNotFound())
		return
	}

	dispute := &domain.Dispute{
		ID:        uuid.New(),
		OrderID:   orderID,
		OpenedBy:  openedBy,
		Reason:    req.Reason,
		Status:    domain.DisputeOpen,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.disputeRepo.Create(c.Request.Context(), dispute); err != nil {
		if errors.Is(err, ports.ErrConflict) {
			response.BusinessConflict(c, apperror.ErrDisputeAlreadyExists())
			return
		}
		response.Error(c, apperror.InternalError(err))
		return
	}

	response.Created(c, dispute)
}

// Escrow handles GET /api/v1/orders/:id/escrow — the wallet plus its ledger
// trail.
func (h *OrderHandler) Escrow(c *gin.Context) {
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("order id must be a valid UUID"))
		return
	}

	view, err := h.escrowSvc.GetByOrder(c.Request.Context(), orderID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.ToEscrowViewResponse(view))
}
