package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/quickdash/order-api/internal/adapter/http/middleware"
	"github.com/quickdash/order-api/internal/cart"
	domain "github.com/quickdash/order-api/internal/entity"
	"github.com/quickdash/order-api/internal/pricing"
	"github.com/quickdash/order-api/internal/usecase"
)

type CheckoutHandler struct {
	carts    cart.Store
	checkout *usecase.Checkout
	create   *usecase.CreateOrder
	query    usecase.OrderRepo
}

func NewCheckoutHandler(carts cart.Store, checkout *usecase.Checkout, create *usecase.CreateOrder, query usecase.OrderRepo) *CheckoutHandler {
	return &CheckoutHandler{carts: carts, checkout: checkout, create: create, query: query}
}

type addressReq struct {
	Text string   `json:"text" binding:"required"`
	Lat  *float64 `json:"lat"`
	Lng  *float64 `json:"lng"`
}

func (r addressReq) toAddress() usecase.DeliveryAddress {
	addr := usecase.DeliveryAddress{Text: r.Text}
	if r.Lat != nil && r.Lng != nil {
		addr.Coordinate = &domain.Coordinate{Lat: *r.Lat, Lng: *r.Lng}
	}
	return addr
}

type quoteReq struct {
	Address addressReq `json:"address" binding:"required"`
}

// Quote prices the current cart against an address without creating
// anything: the client shows the fee (or the radius rejection) before the
// user commits.
func (h *CheckoutHandler) Quote(c *gin.Context) {
	var req quoteReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request"})
		return
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	customerID := middleware.Subject(c)
	crt, err := h.carts.Load(ctx, customerID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cart_unavailable"})
		return
	}

	quote, err := h.checkout.Quote(ctx, customerID, crt, req.Address.toAddress())
	if err != nil {
		writeCheckoutError(c, err)
		return
	}
	c.JSON(http.StatusOK, quoteView(quote))
}

type placeOrderReq struct {
	Address addressReq `json:"address" binding:"required"`
}

// PlaceOrder runs the eligibility gate, prices delivery, and reserves the
// order (order row + snapshotted lines). No money moves here.
func (h *CheckoutHandler) PlaceOrder(c *gin.Context) {
	var req placeOrderReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request"})
		return
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	customerID := middleware.Subject(c)
	crt, err := h.carts.Load(ctx, customerID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cart_unavailable"})
		return
	}

	addr := req.Address.toAddress()
	quote, err := h.checkout.Quote(ctx, customerID, crt, addr)
	if err != nil {
		writeCheckoutError(c, err)
		return
	}

	out, err := h.create.Execute(ctx, usecase.CreateOrderInput{
		CustomerID:     customerID,
		IdempotencyKey: c.GetHeader("X-Idempotency-Key"), // prevent duplicated requests
		Cart:           crt,
		Address:        addr,
		DeliveryFee:    quote.DeliveryFeeCents,
	})
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, usecase.ErrDuplicate):
			status = http.StatusConflict
		case errors.Is(err, usecase.ErrOrderOrphaned):
			// The reservation is unusable; the client must not proceed to
			// payment. Retrying creates a fresh order.
			status = http.StatusBadGateway
		case errors.Is(err, usecase.ErrEmptyCart):
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"orderId":            out.OrderID,
		"total":              out.TotalCents,
		"status":             out.Status,
		"deliveryFee":        quote.DeliveryFeeCents,
		"distanceUnverified": quote.DistanceUnverified,
	})
}

func (h *CheckoutHandler) GetOrder(c *gin.Context) {
	ctx, cancel := reqCtx(c)
	defer cancel()

	rec, err := h.query.GetByID(ctx, c.Param("id"))
	if err != nil || rec == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}
	lines, err := h.query.GetLines(ctx, rec.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "order_unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":               rec.ID,
		"customerId":       rec.CustomerID,
		"storeId":          rec.StoreID,
		"status":           rec.Status,
		"paymentStatus":    rec.PaymentStatus,
		"paymentReference": rec.PaymentReference,
		"subtotal":         rec.SubtotalCents,
		"deliveryFee":      rec.DeliveryFeeCents,
		"total":            rec.TotalCents,
		"deliveryAddress":  rec.DeliveryAddress,
		"items":            lines,
	})
}

func quoteView(q *usecase.CheckoutQuote) gin.H {
	return gin.H{
		"storeId":            q.StoreID,
		"subtotal":           q.SubtotalCents,
		"deliveryFee":        q.DeliveryFeeCents,
		"total":              q.TotalCents,
		"distanceKm":         q.DistanceKm,
		"distanceUnverified": q.DistanceUnverified,
	}
}

func writeCheckoutError(c *gin.Context, err error) {
	var radius *pricing.RadiusError
	switch {
	case errors.As(err, &radius):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":         "outside_delivery_radius",
			"maxDistanceKm": radius.MaxDistanceKm,
			"distanceKm":    radius.DistanceKm,
		})
	case errors.Is(err, usecase.ErrEmptyCart),
		errors.Is(err, usecase.ErrNoAddress):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, usecase.ErrMembershipRequired):
		c.JSON(http.StatusForbidden, gin.H{"error": "membership_required"})
	case errors.Is(err, usecase.ErrStoreUnknown):
		c.JSON(http.StatusNotFound, gin.H{"error": "store_not_found"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
