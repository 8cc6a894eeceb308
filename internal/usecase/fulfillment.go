package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	domain "github.com/quickdash/order-api/internal/entity"
	"github.com/quickdash/order-api/internal/logging"
)

var (
	ErrReasonRequired = errors.New("cancellation reason required")
	// ErrStaleTransition: the guarded update matched nothing, meaning the
	// row moved underneath us. Callers refetch the authoritative list
	// instead of patching local state.
	ErrStaleTransition = errors.New("order status changed concurrently")
)

var refundPublishFailures = promauto.NewCounter(prometheus.CounterOpts{
	Name: "refund_publish_failures_total",
	Help: "Refund commands that could not be enqueued after a cancellation",
})

// Fulfillment is the seller-side state machine: advance through the lane
// sequence, or cancel with a reason and trigger a refund for charged orders.
type Fulfillment struct {
	repo    OrderRepo
	refunds RefundQueue
	cache   OrderCache
}

func NewFulfillment(repo OrderRepo, refunds RefundQueue, cache OrderCache) *Fulfillment {
	return &Fulfillment{repo: repo, refunds: refunds, cache: cache}
}

// Advance moves the order to next with a guarded single-field write. A miss
// on the guard surfaces ErrStaleTransition; no local rollback is attempted.
func (f *Fulfillment) Advance(ctx context.Context, orderID string, nextStatus domain.Status) error {
	rec, err := f.repo.GetByID(ctx, orderID)
	if err != nil || rec == nil {
		return ErrOrderNotFound
	}
	cur := domain.Status(rec.Status)
	if !domain.CanAdvance(cur, nextStatus) || nextStatus == domain.StatusCancelled {
		return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, cur, nextStatus)
	}

	ok, err := f.repo.UpdateStatusIf(ctx, orderID, string(cur), string(nextStatus))
	if err != nil {
		return fmt.Errorf("advance %s: %w", orderID, err)
	}
	if !ok {
		return ErrStaleTransition
	}

	if err := f.cache.SetStatus(ctx, orderID, string(nextStatus)); err != nil {
		logging.FromCtx(ctx).Warn("status cache update failed", "order_id", orderID, "error", err.Error())
	}
	return nil
}

// Cancel persists the cancellation and, only if the authoritative row shows
// a confirmed charge, enqueues a refund. The post-cancel refetch is
// deliberate: the pre-cancel local copy may carry stale payment state.
// Refund enqueue failures are logged, never retried here, and never reverse
// the cancellation.
func (f *Fulfillment) Cancel(ctx context.Context, orderID, reasonID string) error {
	if reasonID == "" {
		return ErrReasonRequired
	}

	ok, err := f.repo.Cancel(ctx, orderID, "merchant", reasonID)
	if err != nil {
		return fmt.Errorf("cancel %s: %w", orderID, err)
	}
	if !ok {
		return ErrStaleTransition
	}

	l := logging.FromCtx(ctx).With("order_id", orderID)
	if err := f.cache.SetStatus(ctx, orderID, string(domain.StatusCancelled)); err != nil {
		l.Warn("status cache update failed", "error", err.Error())
	}

	rec, err := f.repo.GetByID(ctx, orderID)
	if err != nil || rec == nil {
		l.Error("post-cancel refetch failed; refund decision deferred to operator", "error", errString(err))
		return nil
	}
	if rec.PaymentStatus != string(domain.PaymentConfirmed) {
		return nil
	}
	if rec.PaymentReference == "" {
		l.Error("charged order cancelled without payment reference; manual refund needed")
		return nil
	}

	msg := RefundMsg{OrderID: orderID, Reference: rec.PaymentReference, CancelledBy: "merchant"}
	if err := f.refunds.PublishRefund(ctx, msg); err != nil {
		refundPublishFailures.Inc()
		l.Error("refund enqueue failed", "reference", rec.PaymentReference, "error", err.Error())
	}
	return nil
}

// Board returns the store's active orders for the dashboard lanes.
func (f *Fulfillment) Board(ctx context.Context, storeID string) ([]*OrderRecord, error) {
	return f.repo.ListActiveByStore(ctx, storeID)
}

// Stats summarizes a store's day for the dashboard header.
func (f *Fulfillment) Stats(ctx context.Context, storeID, date string) (*DailyStats, error) {
	return f.repo.DailyStats(ctx, storeID, date)
}

func errString(err error) string {
	if err == nil {
		return "order not found"
	}
	return err.Error()
}
