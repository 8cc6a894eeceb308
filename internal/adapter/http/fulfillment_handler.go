package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/quickdash/order-api/internal/board"
	domain "github.com/quickdash/order-api/internal/entity"
	"github.com/quickdash/order-api/internal/usecase"
)

type FulfillmentHandler struct {
	fulfillment *usecase.Fulfillment
	board       *board.Board
}

func NewFulfillmentHandler(f *usecase.Fulfillment, b *board.Board) *FulfillmentHandler {
	return &FulfillmentHandler{fulfillment: f, board: b}
}

// Board serves the authoritative lane view straight from the database.
// The dashboard loads this once, then keeps itself current via Lanes and
// the change feed behind it.
func (h *FulfillmentHandler) Board(c *gin.Context) {
	storeID := c.Query("storeId")
	if storeID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "storeId required"})
		return
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	orders, err := h.fulfillment.Board(ctx, storeID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "board_unavailable"})
		return
	}

	// Seed the reconciled view so feed events merge against fresh rows.
	for _, rec := range orders {
		h.board.Put(rec)
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

// Lanes serves the feed-reconciled in-memory view.
func (h *FulfillmentHandler) Lanes(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"lanes": h.board.Lanes()})
}

type advanceReq struct {
	NextStatus string `json:"nextStatus" binding:"required"`
}

func (h *FulfillmentHandler) Advance(c *gin.Context) {
	var req advanceReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request"})
		return
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	err := h.fulfillment.Advance(ctx, c.Param("id"), domain.Status(req.NextStatus))
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"status": req.NextStatus})
	case errors.Is(err, usecase.ErrStaleTransition):
		// The row moved underneath the dashboard; it must refetch the
		// board rather than patch its local copy.
		c.JSON(http.StatusConflict, gin.H{"error": "stale_transition", "refetch": true})
	case errors.Is(err, domain.ErrInvalidTransition):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, usecase.ErrOrderNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "order_not_found"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "refetch": true})
	}
}

type cancelReq struct {
	ReasonID string `json:"reasonId" binding:"required"`
}

func (h *FulfillmentHandler) Cancel(c *gin.Context) {
	var req cancelReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "reason_required"})
		return
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	err := h.fulfillment.Cancel(ctx, c.Param("id"), req.ReasonID)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"status": string(domain.StatusCancelled)})
	case errors.Is(err, usecase.ErrReasonRequired):
		c.JSON(http.StatusBadRequest, gin.H{"error": "reason_required"})
	case errors.Is(err, usecase.ErrStaleTransition):
		c.JSON(http.StatusConflict, gin.H{"error": "stale_transition", "refetch": true})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "refetch": true})
	}
}

func (h *FulfillmentHandler) Stats(c *gin.Context) {
	storeID, date := c.Query("storeId"), c.Query("date")
	if storeID == "" || date == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "storeId and date required"})
		return
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	stats, err := h.fulfillment.Stats(ctx, storeID, date)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "stats_unavailable"})
		return
	}
	c.JSON(http.StatusOK, stats)
}
