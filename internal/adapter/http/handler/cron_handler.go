package handler

import (
	"payloom/internal/adapter/http/dto"
	"payloom/internal/core/ports"
	"payloom/pkg/apperror"
	"payloom/pkg/response"

	"github.com/gin-gonic/gin"
)

// CronHandler exposes scheduled jobs to an external scheduler.
type CronHandler struct {
	autoReleaseSvc ports.AutoReleaseService
}

// NewCronHandler creates a new CronHandler.
func NewCronHandler(autoReleaseSvc ports.AutoReleaseService) *CronHandler {
	return &CronHandler{autoReleaseSvc: autoReleaseSvc}
}

// AutoRelease handles POST /api/v1/cron/auto-release.
func (h *CronHandler) AutoRelease(c *gin.Context) {
	released, err := h.autoReleaseSvc.Sweep(c.Request.Context())
	if err != nil {
		response.Error(c, apperror.InternalError(err))
		return
	}

	response.OK(c, dto.SweepResponse{Released: released})
}
