package board

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	domain "github.com/quickdash/order-api/internal/entity"
	"github.com/quickdash/order-api/internal/usecase"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mapFetcher serves backfills from a fixed map and counts fetches.
type mapFetcher struct {
	mu      sync.Mutex
	orders  map[string]*usecase.OrderRecord
	err     error
	fetches int
}

func (f *mapFetcher) FetchOrder(_ context.Context, id string) (*usecase.OrderRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	if f.err != nil {
		return nil, f.err
	}
	return f.orders[id], nil
}

func rec(id string, status domain.Status, payment domain.PaymentStatus) *usecase.OrderRecord {
	return &usecase.OrderRecord{
		ID:            id,
		StoreID:       "store-1",
		Status:        string(status),
		PaymentStatus: string(payment),
		TotalCents:    6200,
		CreatedAt:     time.Now().UTC(),
	}
}

func insertEvent(id string, status domain.Status, payment domain.PaymentStatus) usecase.RowChangeMsg {
	return usecase.RowChangeMsg{
		Op: "insert", OrderID: id, StoreID: "store-1",
		Status: string(status), PaymentStatus: string(payment),
	}
}

func updateEvent(id string, status domain.Status) usecase.RowChangeMsg {
	return usecase.RowChangeMsg{Op: "update", OrderID: id, Status: string(status)}
}

func TestApply_MissedInsertBackfills(t *testing.T) {
	fetch := &mapFetcher{orders: map[string]*usecase.OrderRecord{
		"ord-1": rec("ord-1", domain.StatusNew, domain.PaymentConfirmed),
	}}
	b := New(fetch)

	b.Apply(context.Background(), insertEvent("ord-1", domain.StatusNew, domain.PaymentConfirmed))

	require.Eventually(t, func() bool {
		_, ok := b.Get("ord-1")
		return ok
	}, time.Second, 5*time.Millisecond)
}

func TestApply_InsertSkipsPresentRow(t *testing.T) {
	fetch := &mapFetcher{orders: map[string]*usecase.OrderRecord{}}
	b := New(fetch)
	b.Put(rec("ord-1", domain.StatusNew, domain.PaymentConfirmed))

	// duplicate of an optimistically-added row: no fetch
	b.Apply(context.Background(), insertEvent("ord-1", domain.StatusNew, domain.PaymentConfirmed))

	time.Sleep(20 * time.Millisecond)
	fetch.mu.Lock()
	defer fetch.mu.Unlock()
	assert.Equal(t, 0, fetch.fetches)
}

func TestApply_UnpaidReservationNotSellerWork(t *testing.T) {
	fetch := &mapFetcher{orders: map[string]*usecase.OrderRecord{
		"ord-1": rec("ord-1", domain.StatusPending, domain.PaymentUnconfirmed),
	}}
	b := New(fetch)

	b.Apply(context.Background(), insertEvent("ord-1", domain.StatusPending, domain.PaymentUnconfirmed))

	time.Sleep(20 * time.Millisecond)
	_, ok := b.Get("ord-1")
	assert.False(t, ok)

	// a confirmed pending row does qualify
	fetch.orders["ord-2"] = rec("ord-2", domain.StatusPending, domain.PaymentConfirmed)
	b.Apply(context.Background(), insertEvent("ord-2", domain.StatusPending, domain.PaymentConfirmed))
	require.Eventually(t, func() bool {
		_, ok := b.Get("ord-2")
		return ok
	}, time.Second, 5*time.Millisecond)
}

func TestApply_ScopeDateFiltersInserts(t *testing.T) {
	fetch := &mapFetcher{orders: map[string]*usecase.OrderRecord{
		"ord-1": rec("ord-1", domain.StatusNew, domain.PaymentConfirmed),
	}}
	b := New(fetch)
	b.SetScopeDate("2026-09-01")

	ev := insertEvent("ord-1", domain.StatusNew, domain.PaymentConfirmed)
	ev.BusinessDate = "2026-08-31"
	b.Apply(context.Background(), ev)

	time.Sleep(20 * time.Millisecond)
	_, ok := b.Get("ord-1")
	assert.False(t, ok)
}

func TestApply_UpdateMergesFields(t *testing.T) {
	b := New(&mapFetcher{})
	b.Put(rec("ord-1", domain.StatusNew, domain.PaymentConfirmed))

	ev := updateEvent("ord-1", domain.StatusPreparing)
	ev.TotalCents = 7000
	b.Apply(context.Background(), ev)

	got, ok := b.Get("ord-1")
	require.True(t, ok)
	assert.Equal(t, string(domain.StatusPreparing), got.Status)
	assert.Equal(t, int64(7000), got.TotalCents)
}

func TestApply_TerminalUpdateRemovesRow(t *testing.T) {
	b := New(&mapFetcher{})
	b.Put(rec("ord-1", domain.StatusPickedUp, domain.PaymentConfirmed))

	b.Apply(context.Background(), updateEvent("ord-1", domain.StatusDelivered))

	_, ok := b.Get("ord-1")
	assert.False(t, ok)
}

func TestApply_CancelIsFinal(t *testing.T) {
	fetch := &mapFetcher{orders: map[string]*usecase.OrderRecord{
		"ord-1": rec("ord-1", domain.StatusPreparing, domain.PaymentConfirmed),
	}}
	b := New(fetch)
	b.Put(rec("ord-1", domain.StatusPreparing, domain.PaymentConfirmed))

	b.Apply(context.Background(), updateEvent("ord-1", domain.StatusCancelled))
	_, ok := b.Get("ord-1")
	require.False(t, ok)

	// late, out-of-order events must not resurrect the order
	b.Apply(context.Background(), updateEvent("ord-1", domain.StatusPreparing))
	b.Apply(context.Background(), insertEvent("ord-1", domain.StatusPreparing, domain.PaymentConfirmed))
	b.Put(rec("ord-1", domain.StatusPreparing, domain.PaymentConfirmed))

	time.Sleep(20 * time.Millisecond)
	_, ok = b.Get("ord-1")
	assert.False(t, ok)
}

func TestApply_MissedInsertViaUpdateBackfills(t *testing.T) {
	fetch := &mapFetcher{orders: map[string]*usecase.OrderRecord{
		"ord-1": rec("ord-1", domain.StatusPreparing, domain.PaymentConfirmed),
	}}
	b := New(fetch)

	// update for an order the board never saw
	b.Apply(context.Background(), updateEvent("ord-1", domain.StatusPreparing))

	require.Eventually(t, func() bool {
		got, ok := b.Get("ord-1")
		return ok && got.Status == string(domain.StatusPreparing)
	}, time.Second, 5*time.Millisecond)
}

func TestApply_DeleteRemovesRow(t *testing.T) {
	b := New(&mapFetcher{})
	b.Put(rec("ord-1", domain.StatusNew, domain.PaymentConfirmed))

	b.Apply(context.Background(), usecase.RowChangeMsg{Op: "delete", OrderID: "ord-1"})

	_, ok := b.Get("ord-1")
	assert.False(t, ok)
}

func TestApply_BackfillFailureLeavesBoardConsistent(t *testing.T) {
	fetch := &mapFetcher{err: errors.New("db down")}
	b := New(fetch)

	b.Apply(context.Background(), insertEvent("ord-1", domain.StatusNew, domain.PaymentConfirmed))

	time.Sleep(20 * time.Millisecond)
	_, ok := b.Get("ord-1")
	assert.False(t, ok)
}

func TestReadsReturnDetachedSnapshots(t *testing.T) {
	fetch := &mapFetcher{orders: map[string]*usecase.OrderRecord{}}
	b := New(fetch)
	original := rec("ord-1", domain.StatusNew, domain.PaymentConfirmed)
	b.Put(original)

	// Mutating the record handed to Put must not reach the board.
	original.Status = string(domain.StatusDelivered)
	got, ok := b.Get("ord-1")
	require.True(t, ok)
	assert.Equal(t, string(domain.StatusNew), got.Status)

	// Snapshots taken before a feed merge keep their values, and writing
	// through them never reaches the board either.
	lanes := b.Lanes()
	require.Len(t, lanes[string(domain.StatusNew)], 1)
	snap := lanes[string(domain.StatusNew)][0]

	b.Apply(context.Background(), updateEvent("ord-1", domain.StatusPreparing))
	assert.Equal(t, string(domain.StatusNew), snap.Status)

	snap.TotalCents = 1
	got, ok = b.Get("ord-1")
	require.True(t, ok)
	assert.Equal(t, string(domain.StatusPreparing), got.Status)
	assert.Equal(t, int64(6200), got.TotalCents)
}

func TestLanes_GroupsAndOrders(t *testing.T) {
	b := New(&mapFetcher{})

	older := rec("ord-1", domain.StatusNew, domain.PaymentConfirmed)
	older.CreatedAt = time.Now().Add(-time.Hour)
	newer := rec("ord-2", domain.StatusNew, domain.PaymentConfirmed)
	b.Put(older)
	b.Put(newer)
	b.Put(rec("ord-3", domain.StatusPreparing, domain.PaymentConfirmed))
	// confirmed pending rows surface on the new lane
	pending := rec("ord-4", domain.StatusPending, domain.PaymentConfirmed)
	pending.CreatedAt = time.Now().Add(-2 * time.Hour)
	b.Put(pending)

	lanes := b.Lanes()
	newLane := lanes[string(domain.StatusNew)]
	require.Len(t, newLane, 3)
	assert.Equal(t, "ord-2", newLane[0].ID)
	assert.Equal(t, "ord-4", newLane[2].ID)
	require.Len(t, lanes[string(domain.StatusPreparing)], 1)
}
