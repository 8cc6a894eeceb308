package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/quickdash/order-api/internal/adapter/http/middleware"
	"github.com/quickdash/order-api/internal/usecase"
)

type MembershipHandler struct {
	verify *usecase.VerifyMembership
}

func NewMembershipHandler(verify *usecase.VerifyMembership) *MembershipHandler {
	return &MembershipHandler{verify: verify}
}

type verifyMembershipReq struct {
	StoreID          string `json:"storeId" binding:"required"`
	MembershipNumber string `json:"membershipNumber" binding:"required"`
}

func (h *MembershipHandler) Verify(c *gin.Context) {
	var req verifyMembershipReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request"})
		return
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	err := h.verify.Execute(ctx, middleware.Subject(c), req.StoreID, req.MembershipNumber)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"verified": true})
	case errors.Is(err, usecase.ErrMembershipNotFound):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":   "membership_not_found",
			"message": "number not recognized; register with the store first",
		})
	case errors.Is(err, usecase.ErrMembershipClaimed):
		c.JSON(http.StatusConflict, gin.H{
			"error":     "membership_claimed",
			"message":   "this number is already in use by another customer",
			"retryable": false,
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "verification_failed", "retryable": true})
	}
}
