package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/quickdash/order-api/internal/adapter/http/middleware"
	"github.com/quickdash/order-api/internal/logging"
	"github.com/quickdash/order-api/internal/security"
	"github.com/quickdash/order-api/internal/usecase"
)

type PaymentHandler struct {
	payments *usecase.Payments
	webhook  *security.WebhookVerifier
}

func NewPaymentHandler(payments *usecase.Payments, webhook *security.WebhookVerifier) *PaymentHandler {
	return &PaymentHandler{payments: payments, webhook: webhook}
}

type payReq struct {
	Email                     string `json:"email" binding:"required,email"`
	ConfirmUnverifiedDistance bool   `json:"confirmUnverifiedDistance"`
}

// Pay initiates the charge for a reserved order. The response either says
// the payment already completed (saved instrument) or hands back the
// redirect URL for the hosted 3-D-Secure page.
func (h *PaymentHandler) Pay(c *gin.Context) {
	var req payReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request"})
		return
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	out, err := h.payments.InitiateCharge(ctx, usecase.InitiateChargeInput{
		OrderID:                   c.Param("id"),
		CustomerID:                middleware.Subject(c),
		Email:                     req.Email,
		ConfirmUnverifiedDistance: req.ConfirmUnverifiedDistance,
	})
	if err != nil {
		writePaymentError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"completed":   out.Completed,
		"reference":   out.Reference,
		"redirectUrl": out.RedirectURL,
	})
}

// PaymentStatus lets the client poll its own attempt state while the
// redirect surface is open.
func (h *PaymentHandler) PaymentStatus(c *gin.Context) {
	state, reference := h.payments.Status(c.Param("id"))
	c.JSON(http.StatusOK, gin.H{"state": state.String(), "reference": reference})
}

// CloseSurface stops the background poll when the user dismisses the
// payment page. Not a failure; the attempt may be retried.
func (h *PaymentHandler) CloseSurface(c *gin.Context) {
	h.payments.ClosePollSurface(c.Param("id"))
	c.Status(http.StatusNoContent)
}

type callbackEvent struct {
	Event string `json:"event"`
	Data  struct {
		Reference string `json:"reference"`
		Status    string `json:"status"`
		Metadata  struct {
			OrderID string `json:"order_id"`
		} `json:"metadata"`
	} `json:"data"`
}

// Callback is the gateway's push notification: the second completion source
// racing the poll loop. Signature first, then the idempotent completion
// handler decides whether this signal still matters.
func (h *PaymentHandler) Callback(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		c.Status(http.StatusBadRequest)
		return
	}
	if err := h.webhook.Verify(body, c.GetHeader("X-Gateway-Signature")); err != nil {
		logging.From(c).Warn("webhook signature rejected", "error", err.Error())
		c.Status(http.StatusUnauthorized)
		return
	}

	var ev callbackEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		c.Status(http.StatusBadRequest)
		return
	}
	if ev.Event != "charge.success" || ev.Data.Metadata.OrderID == "" {
		// Acknowledge everything else so the gateway stops redelivering.
		c.Status(http.StatusOK)
		return
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	if _, err := h.payments.Complete(ctx, ev.Data.Reference, ev.Data.Metadata.OrderID, "callback"); err != nil {
		// Non-2xx makes the gateway redeliver; Complete is idempotent so
		// that is safe.
		c.Status(http.StatusInternalServerError)
		return
	}
	c.Status(http.StatusOK)
}

func writePaymentError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, usecase.ErrOrderNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "order_not_found"})
	case errors.Is(err, usecase.ErrNotPayable),
		errors.Is(err, usecase.ErrNoAddress):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, usecase.ErrUnverifiedDistance):
		c.JSON(http.StatusConflict, gin.H{"error": "distance_unverified_confirmation_required"})
	case errors.Is(err, usecase.ErrMembershipRequired):
		c.JSON(http.StatusForbidden, gin.H{"error": "membership_required"})
	case errors.Is(err, usecase.ErrGatewayConfig):
		// Fatal: retrying cannot help until the deployment is fixed.
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "payment_unavailable", "retryable": false})
	default:
		c.JSON(http.StatusBadGateway, gin.H{"error": "gateway_error", "retryable": true})
	}
}
