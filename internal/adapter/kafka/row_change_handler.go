package kafka

import (
	"context"

	"github.com/quickdash/order-api/internal/board"
	"github.com/quickdash/order-api/internal/usecase"
)

// RowChangeHandler merges feed events into the in-memory board and mirrors
// the new status into the cache. The board's merge rules absorb duplicates
// and out-of-order delivery, so this handler can be re-run safely.
type RowChangeHandler struct {
	Board *board.Board
	Cache usecase.OrderCache // optional
}

func NewRowChangeHandler(b *board.Board, cache usecase.OrderCache) *RowChangeHandler {
	return &RowChangeHandler{Board: b, Cache: cache}
}

func (h *RowChangeHandler) Handle(ctx context.Context, ev usecase.RowChangeMsg) error {
	h.Board.Apply(ctx, ev)

	if h.Cache != nil && ev.Op != "delete" && ev.Status != "" {
		_ = h.Cache.SetStatus(ctx, ev.OrderID, ev.Status)
	}
	return nil
}
