package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/quickdash/order-api/internal/cart"
	domain "github.com/quickdash/order-api/internal/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func orderInput(key string) CreateOrderInput {
	return CreateOrderInput{
		CustomerID:     "cust-1",
		IdempotencyKey: key,
		Cart: cartWith(
			cart.Item{ItemID: "a", Name: "A", UnitPriceCents: 1200, Quantity: 2, StoreID: "store-1"},
			cart.Item{ItemID: "b", Name: "B", UnitPriceCents: 800, Quantity: 1, StoreID: "store-1"},
		),
		Address:     DeliveryAddress{Text: "12 Market Rd", Coordinate: &domain.Coordinate{Lat: 6.45, Lng: 3.39}},
		DeliveryFee: 3000,
	}
}

func TestCreateOrder_ReservesPendingUnconfirmed(t *testing.T) {
	repo := newMemOrderRepo()
	outbox := &mockOutbox{}
	uc := NewCreateOrder(repo, newMemIdem(), outbox)

	out, err := uc.Execute(context.Background(), orderInput("key-1"))
	require.NoError(t, err)
	assert.NotEmpty(t, out.OrderID)
	// 2x1200 + 800 + 3000 fee
	assert.Equal(t, int64(6200), out.TotalCents)
	assert.Equal(t, string(domain.StatusPending), out.Status)

	rec, err := repo.GetByID(context.Background(), out.OrderID)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, string(domain.PaymentUnconfirmed), rec.PaymentStatus)
	assert.Equal(t, int64(3200), rec.SubtotalCents)
	require.NotNil(t, rec.Lat)
	assert.Equal(t, 6.45, *rec.Lat)

	lines, err := repo.GetLines(context.Background(), out.OrderID)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	// price snapshotted at order time
	assert.Equal(t, int64(1200), lines[0].PriceAtTimeCents)

	assert.Len(t, outbox.payloads, 1)
}

func TestCreateOrder_EmptyCart(t *testing.T) {
	uc := NewCreateOrder(newMemOrderRepo(), newMemIdem(), &mockOutbox{})

	in := orderInput("key-1")
	in.Cart = cart.New()
	_, err := uc.Execute(context.Background(), in)
	assert.ErrorIs(t, err, ErrEmptyCart)
}

func TestCreateOrder_IdempotencyRecall(t *testing.T) {
	repo := newMemOrderRepo()
	idem := newMemIdem()
	uc := NewCreateOrder(repo, idem, &mockOutbox{})

	first, err := uc.Execute(context.Background(), orderInput("key-1"))
	require.NoError(t, err)

	// Same key again returns the stored order, no second row.
	second, err := uc.Execute(context.Background(), orderInput("key-1"))
	require.NoError(t, err)
	assert.Equal(t, first.OrderID, second.OrderID)
	assert.Len(t, repo.orders, 1)
}

func TestCreateOrder_RecallReadFailureIsNotADuplicate(t *testing.T) {
	repo := newMemOrderRepo()
	idem := newMemIdem()
	uc := NewCreateOrder(repo, idem, &mockOutbox{})

	first, err := uc.Execute(context.Background(), orderInput("key-1"))
	require.NoError(t, err)

	// The recalled order exists but the read fails transiently. The retry
	// must see the transient error, not a hard duplicate-key conflict.
	repo.getErr = errors.New("connection reset")
	_, err = uc.Execute(context.Background(), orderInput("key-1"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrDuplicate)

	repo.getErr = nil
	second, err := uc.Execute(context.Background(), orderInput("key-1"))
	require.NoError(t, err)
	assert.Equal(t, first.OrderID, second.OrderID)
	assert.Len(t, repo.orders, 1)
}

func TestCreateOrder_ConcurrentDuplicateKey(t *testing.T) {
	repo := newMemOrderRepo()
	idem := newMemIdem()
	uc := NewCreateOrder(repo, idem, &mockOutbox{})

	// Simulate a second request that won TryLock but has not Remembered yet.
	ok, err := idem.TryLock(context.Background(), "cust-1", "key-1")
	require.NoError(t, err)
	require.True(t, ok)

	_, err = uc.Execute(context.Background(), orderInput("key-1"))
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.Empty(t, repo.orders)
}

func TestCreateOrder_OrphanOnLineFailure(t *testing.T) {
	repo := newMemOrderRepo()
	repo.insertLinesErr = errors.New("connection reset")
	outbox := &mockOutbox{}
	uc := NewCreateOrder(repo, newMemIdem(), outbox)

	_, err := uc.Execute(context.Background(), orderInput("key-1"))
	require.ErrorIs(t, err, ErrOrderOrphaned)

	// The order row stays for the operator sweep; nothing is announced.
	assert.Len(t, repo.orders, 1)
	assert.Empty(t, outbox.payloads)
}

func TestCreateOrder_OutboxFailureIsNonFatal(t *testing.T) {
	repo := newMemOrderRepo()
	uc := NewCreateOrder(repo, newMemIdem(), &mockOutbox{err: errors.New("table locked")})

	out, err := uc.Execute(context.Background(), orderInput("key-1"))
	require.NoError(t, err)
	assert.NotEmpty(t, out.OrderID)
}
