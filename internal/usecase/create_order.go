package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/quickdash/order-api/internal/cart"
	domain "github.com/quickdash/order-api/internal/entity"
	"github.com/quickdash/order-api/internal/logging"
)

var (
	ErrDuplicate = errors.New("duplicate idempotency key")
	// ErrOrderOrphaned: the order row exists but its lines failed to insert.
	// Payment must not proceed. The orphan is left for an operator sweep;
	// this layer never auto-deletes it.
	ErrOrderOrphaned = errors.New("order created without lines")
)

type CreateOrderInput struct {
	CustomerID     string
	IdempotencyKey string
	Cart           *cart.Cart
	Address        DeliveryAddress
	DeliveryFee    int64
}

type CreateOrderOutput struct {
	OrderID    string
	TotalCents int64
	Status     string
}

// CreateOrder reserves the order before any money moves: order row plus one
// line per cart item with prices snapshotted at order time.
type CreateOrder struct {
	repo OrderRepo
	idem IdempotencyStore
	out  OutboxRepo
}

func NewCreateOrder(repo OrderRepo, idem IdempotencyStore, out OutboxRepo) *CreateOrder {
	return &CreateOrder{repo: repo, idem: idem, out: out}
}

func (uc *CreateOrder) Execute(ctx context.Context, in CreateOrderInput) (CreateOrderOutput, error) {
	if in.Cart == nil || in.Cart.Empty() {
		return CreateOrderOutput{}, ErrEmptyCart
	}

	// Fast path: idempotency recall
	if id, ok, _ := uc.idem.Recall(ctx, in.CustomerID, in.IdempotencyKey); ok && in.IdempotencyKey != "" {
		rec, err := uc.repo.GetByID(ctx, id)
		if err != nil {
			// The order exists, we just could not read it. Surfacing the
			// transient error keeps the caller retrying; falling through
			// would hit the taken lock and misreport a duplicate.
			return CreateOrderOutput{}, fmt.Errorf("load order %s: %w", id, err)
		}
		if rec != nil {
			return CreateOrderOutput{OrderID: rec.ID, TotalCents: rec.TotalCents, Status: rec.Status}, nil
		}
	}
	if in.IdempotencyKey != "" {
		ok, err := uc.idem.TryLock(ctx, in.CustomerID, in.IdempotencyKey)
		if err != nil {
			return CreateOrderOutput{}, err
		}
		if !ok {
			return CreateOrderOutput{}, ErrDuplicate
		}
	}

	subtotal := in.Cart.SubtotalCents()
	now := time.Now().UTC()
	rec := &OrderRecord{
		ID:               uuid.NewString(),
		CustomerID:       in.CustomerID,
		StoreID:          in.Cart.StoreID,
		Status:           string(domain.StatusPending),
		PaymentStatus:    string(domain.PaymentUnconfirmed),
		SubtotalCents:    subtotal,
		DeliveryFeeCents: in.DeliveryFee,
		TotalCents:       subtotal + in.DeliveryFee,
		DeliveryAddress:  in.Address.Text,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if c := in.Address.Coordinate; c != nil {
		lat, lng := c.Lat, c.Lng
		rec.Lat, rec.Lng = &lat, &lng
	}

	if err := uc.repo.Create(ctx, rec); err != nil {
		return CreateOrderOutput{}, err
	}

	lines := make([]LineRecord, 0, len(in.Cart.Items))
	for _, it := range in.Cart.Items {
		lines = append(lines, LineRecord{
			OrderID:          rec.ID,
			ItemID:           it.ItemID,
			Name:             it.Name,
			Quantity:         it.Quantity,
			PriceAtTimeCents: it.UnitPriceCents,
		})
	}
	if err := uc.repo.InsertLines(ctx, lines); err != nil {
		// The order row is already committed. Surface the orphan instead of
		// compensating here; the outbox row below is deliberately skipped so
		// downstream consumers never see a line-less order.
		logging.FromCtx(ctx).Error("orphaned_order", "order_id", rec.ID, "error", err.Error())
		return CreateOrderOutput{}, errors.Join(ErrOrderOrphaned, err)
	}

	payload, _ := json.Marshal(map[string]string{
		"type":     "OrderCreatedV1",
		"order_id": rec.ID,
		"store_id": rec.StoreID,
	})
	if err := uc.out.InsertOrderCreated(ctx, payload); err != nil {
		logging.FromCtx(ctx).Warn("outbox insert failed", "order_id", rec.ID, "error", err.Error())
	}

	if in.IdempotencyKey != "" {
		_ = uc.idem.Remember(ctx, in.CustomerID, in.IdempotencyKey, rec.ID)
	}
	return CreateOrderOutput{OrderID: rec.ID, TotalCents: rec.TotalCents, Status: rec.Status}, nil
}
