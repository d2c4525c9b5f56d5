package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	billingapp "github.com/saaskit/backend/internal/application/billing"
	"github.com/saaskit/backend/internal/domain/billing"
)

// SubscriptionHandler exposes the subscription read surface
type SubscriptionHandler struct {
	BaseHandler
	billing *billingapp.Service
}

// NewSubscriptionHandler creates a new SubscriptionHandler
func NewSubscriptionHandler(billing *billingapp.Service) *SubscriptionHandler {
	return &SubscriptionHandler{billing: billing}
}

// SubscriptionResponse is the API shape of one subscription row
type SubscriptionResponse struct {
	ID                 uuid.UUID       `json:"id"`
	SubscriptionID     string          `json:"subscription_id"`
	Status             string          `json:"status"`
	PlanID             string          `json:"plan_id,omitempty"`
	PriceID            string          `json:"price_id,omitempty"`
	Currency           string          `json:"currency,omitempty"`
	CurrentPeriodStart *time.Time      `json:"current_period_start,omitempty"`
	CurrentPeriodEnd   *time.Time      `json:"current_period_end,omitempty"`
	CancelAtPeriodEnd  bool            `json:"cancel_at_period_end"`
	CanceledAt         *time.Time      `json:"canceled_at,omitempty"`
	LastInvoiceAmount  decimal.Decimal `json:"last_invoice_amount"`
	LastInvoiceStatus  string          `json:"last_invoice_status,omitempty"`
}

// CancelRequest is the cancel request body
type CancelRequest struct {
	Reason string `json:"reason" binding:"max=500"`
}

// List handles GET /subscriptions
func (h *SubscriptionHandler) List(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	subs, err := h.billing.List(c.Request.Context(), userID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toSubscriptionResponses(subs))
}

// Me handles GET /subscriptions/me
func (h *SubscriptionHandler) Me(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	sub, err := h.billing.Current(c.Request.Context(), userID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toSubscriptionResponse(sub))
}

// Cancel handles POST /subscriptions/:id/cancel
func (h *SubscriptionHandler) Cancel(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	subscriptionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid subscription ID")
		return
	}

	var req CancelRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		h.BindError(c, err)
		return
	}

	sub, err := h.billing.Cancel(c.Request.Context(), userID, subscriptionID, req.Reason)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toSubscriptionResponse(sub))
}

func toSubscriptionResponse(sub *billing.Subscription) SubscriptionResponse {
	return SubscriptionResponse{
		ID:                 sub.ID,
		SubscriptionID:     sub.StripeSubscriptionID,
		Status:             string(sub.Status),
		PlanID:             sub.PlanID,
		PriceID:            sub.PriceID,
		Currency:           sub.Currency,
		CurrentPeriodStart: sub.CurrentPeriodStart,
		CurrentPeriodEnd:   sub.CurrentPeriodEnd,
		CancelAtPeriodEnd:  sub.CancelAtPeriodEnd,
		CanceledAt:         sub.CanceledAt,
		LastInvoiceAmount:  sub.LastInvoiceAmount,
		LastInvoiceStatus:  sub.LastInvoiceStatus,
	}
}

func toSubscriptionResponses(subs []*billing.Subscription) []SubscriptionResponse {
	out := make([]SubscriptionResponse, 0, len(subs))
	for _, sub := range subs {
		out = append(out, toSubscriptionResponse(sub))
	}
	return out
}
