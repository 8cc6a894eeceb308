package queue

import (
	"context"

	"github.com/quickdash/order-api/internal/logging"
	"github.com/quickdash/order-api/internal/usecase"
)

// RefundHandler drives one refund command through the payment gateway.
// A gateway failure is logged and NOT returned: refunds go to an operator
// on failure rather than retrying automatically, and they must not wedge
// the queue. The cancellation the refund belongs to stays in effect
// regardless.
type RefundHandler struct {
	GW usecase.PaymentGateway
}

func NewRefundHandler(gw usecase.PaymentGateway) *RefundHandler {
	return &RefundHandler{GW: gw}
}

// HandleRefund is used with the JSON adapter (queue.JSONHandler[RefundMsg]).
func (h *RefundHandler) HandleRefund(ctx context.Context, msg usecase.RefundMsg) error {
	l := logging.FromCtx(ctx).With("order_id", msg.OrderID, "reference", msg.Reference)

	if err := h.GW.Refund(ctx, msg.Reference, msg.CancelledBy); err != nil {
		l.Error("refund failed; flagged for operator follow-up", "error", err.Error())
		return nil
	}
	l.Info("refund issued")
	return nil
}
