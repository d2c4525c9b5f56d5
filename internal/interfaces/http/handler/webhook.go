package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	webhookapp "github.com/saaskit/backend/internal/application/webhook"
	"github.com/saaskit/backend/internal/domain/shared"
	"github.com/saaskit/backend/internal/interfaces/http/dto"
)

// WebhookHandler receives payment provider webhook deliveries.
// These endpoints are called by the provider and skip JWT auth; the
// signature check is the authentication.
type WebhookHandler struct {
	BaseHandler
	service *webhookapp.Service
}

// NewWebhookHandler creates a new WebhookHandler
func NewWebhookHandler(service *webhookapp.Service) *WebhookHandler {
	return &WebhookHandler{service: service}
}

// Receive handles POST /webhooks/:provider.
// The raw body is needed for signature verification, so the route runs
// behind the body limit middleware and reads the body itself.
func (h *WebhookHandler) Receive(c *gin.Context) {
	provider := c.Param("provider")

	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.Error(c, http.StatusRequestEntityTooLarge, dto.ErrCodePayloadTooLarge, "Payload too large")
			return
		}
		h.BadRequest(c, "Failed to read request body")
		return
	}

	result, err := h.service.HandleDelivery(c.Request.Context(), provider, payload, c.Request.Header)
	if err != nil {
		switch {
		case errors.Is(err, shared.ErrNotFound):
			h.NotFound(c, "Unknown webhook provider")
		case errors.Is(err, shared.ErrInvalidSignature):
			h.Error(c, http.StatusUnauthorized, dto.ErrCodeInvalidSignature, "Signature verification failed")
		case errors.Is(err, shared.ErrInvalidInput):
			h.BadRequest(c, "Invalid webhook payload")
		default:
			h.HandleError(c, err)
		}
		return
	}

	c.JSON(http.StatusOK, result)
}
