// Package board keeps an in-memory view of a store's active orders and
// merges change-feed events into it. The backend row is the single source
// of truth: every merge is an idempotent, last-write-wins apply keyed by
// order id, safe against duplicated and out-of-order events.
package board

import (
	"context"
	"sort"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	domain "github.com/quickdash/order-api/internal/entity"
	"github.com/quickdash/order-api/internal/logging"
	"github.com/quickdash/order-api/internal/usecase"
	"golang.org/x/sync/singleflight"
)

var feedEvents = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "change_feed_events_total",
	Help: "Row-change events applied to the order board, by op",
}, []string{"op"})

// Fetcher loads the full order row when the feed delivers a partial event
// for an order the board has not seen.
type Fetcher interface {
	FetchOrder(ctx context.Context, id string) (*usecase.OrderRecord, error)
}

type Board struct {
	fetch Fetcher

	mu     sync.RWMutex
	orders map[string]*usecase.OrderRecord
	// tombstones record cancelled order ids. Cancellation is one-way: a
	// late status-update event must never resurrect a cancelled order.
	tombstones map[string]struct{}
	scopeDate  string

	sfg singleflight.Group
}

func New(fetch Fetcher) *Board {
	return &Board{
		fetch:      fetch,
		orders:     make(map[string]*usecase.OrderRecord),
		tombstones: make(map[string]struct{}),
	}
}

// SetScopeDate restricts insert events to one business date (YYYY-MM-DD).
// Empty means no date filter.
func (b *Board) SetScopeDate(date string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.scopeDate = date
}

// Apply merges one feed event. It never blocks on network: missed-insert
// backfills run on their own goroutine.
func (b *Board) Apply(ctx context.Context, ev usecase.RowChangeMsg) {
	feedEvents.WithLabelValues(ev.Op).Inc()

	switch ev.Op {
	case "insert":
		b.applyInsert(ctx, ev)
	case "update":
		b.applyUpdate(ctx, ev)
	case "delete":
		b.remove(ev.OrderID)
	default:
		logging.FromCtx(ctx).Warn("unknown feed op dropped", "op", ev.Op, "order_id", ev.OrderID)
	}
}

func (b *Board) applyInsert(ctx context.Context, ev usecase.RowChangeMsg) {
	b.mu.RLock()
	_, present := b.orders[ev.OrderID]
	_, dead := b.tombstones[ev.OrderID]
	scope := b.scopeDate
	b.mu.RUnlock()

	// Skip rows already added optimistically by a direct response, rows
	// outside the viewed date, and anything cancelled.
	if present || dead {
		return
	}
	if scope != "" && ev.BusinessDate != "" && ev.BusinessDate != scope {
		return
	}
	if !qualifies(ev.Status, ev.PaymentStatus) {
		return
	}
	b.backfill(ev.OrderID)
}

func (b *Board) applyUpdate(ctx context.Context, ev usecase.RowChangeMsg) {
	if ev.Status == string(domain.StatusCancelled) {
		b.mu.Lock()
		delete(b.orders, ev.OrderID)
		b.tombstones[ev.OrderID] = struct{}{}
		b.mu.Unlock()
		return
	}

	b.mu.Lock()
	if _, dead := b.tombstones[ev.OrderID]; dead {
		b.mu.Unlock()
		return
	}
	if rec, ok := b.orders[ev.OrderID]; ok {
		// Last-write-wins field merge; the authoritative store already
		// serialized these writes.
		rec.Status = ev.Status
		if ev.PaymentStatus != "" {
			rec.PaymentStatus = ev.PaymentStatus
		}
		if ev.TotalCents > 0 {
			rec.TotalCents = ev.TotalCents
		}
		if !domain.Status(rec.Status).Active() {
			delete(b.orders, ev.OrderID)
		}
		b.mu.Unlock()
		return
	}
	b.mu.Unlock()

	// Unknown row with a qualifying status: a missed insert.
	if qualifies(ev.Status, ev.PaymentStatus) {
		b.backfill(ev.OrderID)
	}
}

// backfill fetches the full row asynchronously and injects it. singleflight
// collapses concurrent backfills for the same id (duplicate feed events).
func (b *Board) backfill(orderID string) {
	go func() {
		_, _, _ = b.sfg.Do(orderID, func() (any, error) {
			rec, err := b.fetch.FetchOrder(context.Background(), orderID)
			if err != nil {
				logging.New("board").Warn("backfill fetch failed", "order_id", orderID, "error", err.Error())
				return nil, err
			}
			if rec == nil || !qualifies(rec.Status, rec.PaymentStatus) {
				return nil, nil
			}
			b.Put(rec)
			return nil, nil
		})
	}()
}

// Put inserts or replaces a row from a direct response (the optimistic-add
// path). Tombstoned ids stay gone. The record is copied on the way in so a
// caller holding the original cannot alias the board's state.
func (b *Board) Put(rec *usecase.OrderRecord) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, dead := b.tombstones[rec.ID]; dead {
		return
	}
	cp := *rec
	b.orders[rec.ID] = &cp
}

func (b *Board) remove(orderID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.orders, orderID)
}

// Get returns a snapshot of the row. Reads hand out copies: feed merges
// mutate the board's own records in place under the lock, and a caller
// encoding the result must not race with them.
func (b *Board) Get(orderID string) (*usecase.OrderRecord, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	rec, ok := b.orders[orderID]
	if !ok {
		return nil, false
	}
	cp := *rec
	return &cp, true
}

// Lanes groups current orders by status, newest first within each lane.
// Like Get, it returns detached copies.
func (b *Board) Lanes() map[string][]*usecase.OrderRecord {
	b.mu.RLock()
	defer b.mu.RUnlock()

	lanes := make(map[string][]*usecase.OrderRecord)
	for _, rec := range b.orders {
		lane := rec.Status
		if lane == string(domain.StatusPending) {
			lane = string(domain.StatusNew)
		}
		cp := *rec
		lanes[lane] = append(lanes[lane], &cp)
	}
	for _, rows := range lanes {
		sort.Slice(rows, func(i, j int) bool { return rows[i].CreatedAt.After(rows[j].CreatedAt) })
	}
	return lanes
}

// qualifies reports whether a row belongs on an active lane. Pending orders
// only count once their payment is confirmed; unpaid reservations are not
// seller work yet.
func qualifies(status, paymentStatus string) bool {
	s := domain.Status(status)
	if s == domain.StatusPending {
		return paymentStatus == string(domain.PaymentConfirmed)
	}
	return s.Active()
}
