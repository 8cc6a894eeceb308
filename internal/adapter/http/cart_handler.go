package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/quickdash/order-api/internal/adapter/http/middleware"
	"github.com/quickdash/order-api/internal/cart"
)

type CartHandler struct {
	carts cart.Store
}

func NewCartHandler(carts cart.Store) *CartHandler {
	return &CartHandler{carts: carts}
}

type cartItemReq struct {
	ItemID    string `json:"itemId" binding:"required"`
	Name      string `json:"name"`
	UnitPrice int64  `json:"unitPrice" binding:"required,gt=0"`
	Quantity  int    `json:"quantity"`
	StoreID   string `json:"storeId" binding:"required"`
	// Replace confirms the destructive store switch when the cart is
	// already bound to another store.
	Replace bool `json:"replace"`
}

func cartView(c *cart.Cart) gin.H {
	return gin.H{
		"storeId": c.StoreID,
		"items":   c.Items,
		"total":   c.SubtotalCents(),
	}
}

func (h *CartHandler) Get(c *gin.Context) {
	ctx, cancel := reqCtx(c)
	defer cancel()

	crt, err := h.carts.Load(ctx, middleware.Subject(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cart_unavailable"})
		return
	}
	c.JSON(http.StatusOK, cartView(crt))
}

func (h *CartHandler) AddItem(c *gin.Context) {
	var req cartItemReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request"})
		return
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	// Mutations go through Store.Update so two concurrent requests for the
	// same customer cannot lose each other's write.
	crt, err := h.carts.Update(ctx, middleware.Subject(c), func(crt *cart.Cart) error {
		return crt.Add(cart.Item{
			ItemID:         req.ItemID,
			Name:           req.Name,
			UnitPriceCents: req.UnitPrice,
			Quantity:       req.Quantity,
			StoreID:        req.StoreID,
		}, req.Replace)
	})
	if errors.Is(err, cart.ErrStoreMismatch) {
		// The cart is untouched; the client asks the user to confirm and
		// retries with replace=true.
		c.JSON(http.StatusConflict, gin.H{"error": "store_mismatch", "boundStoreId": crt.StoreID})
		return
	}
	if err != nil {
		if crt == nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "cart_unavailable"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, cartView(crt))
}

type cartPatchReq struct {
	Op string `json:"op" binding:"required,oneof=increment decrement"`
}

func (h *CartHandler) PatchItem(c *gin.Context) {
	var req cartPatchReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request"})
		return
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	itemID := c.Param("itemId")
	crt, err := h.carts.Update(ctx, middleware.Subject(c), func(crt *cart.Cart) error {
		if req.Op == "increment" {
			return crt.Increment(itemID)
		}
		return crt.Decrement(itemID)
	})
	if errors.Is(err, cart.ErrItemNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "item_not_found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cart_unavailable"})
		return
	}
	c.JSON(http.StatusOK, cartView(crt))
}

func (h *CartHandler) RemoveItem(c *gin.Context) {
	ctx, cancel := reqCtx(c)
	defer cancel()

	itemID := c.Param("itemId")
	crt, err := h.carts.Update(ctx, middleware.Subject(c), func(crt *cart.Cart) error {
		return crt.Remove(itemID)
	})
	if errors.Is(err, cart.ErrItemNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "item_not_found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cart_unavailable"})
		return
	}
	c.JSON(http.StatusOK, cartView(crt))
}

func (h *CartHandler) Clear(c *gin.Context) {
	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.carts.Delete(ctx, middleware.Subject(c)); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cart_unavailable"})
		return
	}
	c.Status(http.StatusNoContent)
}

func reqCtx(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), 3*time.Second)
}
