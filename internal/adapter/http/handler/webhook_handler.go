package handler

import (
	"net/http"

	"payloom/internal/adapter/http/dto"
	"payloom/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// WebhookHandler receives provider payment callbacks. Every endpoint ACKs
// with 200 no matter what happened internally: providers treat non-200 as a
// delivery failure and retry, and retries are handled by the dedupe path,
// not by making the provider wait.
type WebhookHandler struct {
	verificationSvc ports.VerificationService
	log             zerolog.Logger
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(verificationSvc ports.VerificationService, log zerolog.Logger) *WebhookHandler {
	return &WebhookHandler{verificationSvc: verificationSvc, log: log}
}

// Mpesa handles POST /api/v1/webhooks/mpesa.
func (h *WebhookHandler) Mpesa(c *gin.Context) {
	var cb dto.MpesaCallback
	if err := c.ShouldBindJSON(&cb); err != nil {
		h.log.Warn().Err(err).Msg("unparseable mpesa callback")
		c.JSON(http.StatusOK, gin.H{"ResultCode": 0, "ResultDesc": "Accepted"})
		return
	}

	event, err := cb.ToPaymentEvent()
	if err != nil {
		h.log.Warn().Err(err).Msg("mpesa callback rejected by mapper")
	} else if err := h.verificationSvc.HandleWebhook(c.Request.Context(), event); err != nil {
		h.log.Error().Err(err).Str("provider_ref", event.ProviderRef).Msg("mpesa webhook processing failed")
	}

	c.JSON(http.StatusOK, gin.H{"ResultCode": 0, "ResultDesc": "Accepted"})
}

// IntaSend handles POST /api/v1/webhooks/intasend.
func (h *WebhookHandler) IntaSend(c *gin.Context) {
	var payload dto.IntaSendWebhook
	if err := c.ShouldBindJSON(&payload); err != nil {
		h.log.Warn().Err(err).Msg("unparseable intasend webhook")
		c.JSON(http.StatusOK, gin.H{"status": "received"})
		return
	}

	event, err := payload.ToPaymentEvent()
	if err != nil {
		h.log.Warn().Err(err).Msg("intasend webhook rejected by mapper")
	} else if err := h.verificationSvc.HandleWebhook(c.Request.Context(), event); err != nil {
		h.log.Error().Err(err).Str("provider_ref", event.ProviderRef).Msg("intasend webhook processing failed")
	}

	c.JSON(http.StatusOK, gin.H{"status": "received"})
}

// Pesapal handles POST /api/v1/webhooks/pesapal.
func (h *WebhookHandler) Pesapal(c *gin.Context) {
	var payload dto.PesapalWebhook
	if err := c.ShouldBindJSON(&payload); err != nil {
		h.log.Warn().Err(err).Msg("unparseable pesapal webhook")
		c.JSON(http.StatusOK, gin.H{"status": "received"})
		return
	}

	event, err := payload.ToPaymentEvent()
	if err != nil {
		h.log.Warn().Err(err).Msg("pesapal webhook rejected by mapper")
	} else if err := h.verificationSvc.HandleWebhook(c.Request.Context(), event); err != nil {
		h.log.Error().Err(err).Str("provider_ref", event.ProviderRef).Msg("pesapal webhook processing failed")
	}

	c.JSON(http.StatusOK, gin.H{"status": "received"})
}
