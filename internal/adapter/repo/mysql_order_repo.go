package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	domain "github.com/quickdash/order-api/internal/entity"
	"github.com/quickdash/order-api/internal/usecase"
)

var ErrNotFound = errors.New("not found")

type MySQLOrderRepo struct{ db *sql.DB }

func NewMySQLOrderRepo(db *sql.DB) *MySQLOrderRepo { return &MySQLOrderRepo{db: db} }

const orderColumns = `id,customer_id,store_id,status,payment_status,payment_reference,
subtotal_cents,delivery_fee_cents,total_cents,delivery_address,lat,lng,
cancelled_by,cancel_reason_id,created_at,updated_at`

func (r *MySQLOrderRepo) Create(ctx context.Context, o *usecase.OrderRecord) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO orders (id,customer_id,store_id,status,payment_status,payment_reference,
subtotal_cents,delivery_fee_cents,total_cents,delivery_address,lat,lng,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,NOW(),NOW())
`, o.ID, o.CustomerID, o.StoreID, o.Status, o.PaymentStatus, o.PaymentReference,
		o.SubtotalCents, o.DeliveryFeeCents, o.TotalCents, o.DeliveryAddress, o.Lat, o.Lng)
	return err
}

// InsertLines writes all lines in one statement. Order creation and line
// insertion are two writes; a failure here leaves an orphaned pending order
// that the caller surfaces rather than rolls back.
func (r *MySQLOrderRepo) InsertLines(ctx context.Context, lines []usecase.LineRecord) error {
	if len(lines) == 0 {
		return errors.New("no lines to insert")
	}
	var sb strings.Builder
	sb.WriteString(`INSERT INTO order_items (order_id,item_id,name,quantity,price_at_time_cents) VALUES `)
	args := make([]any, 0, len(lines)*5)
	for i, ln := range lines {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString("(?,?,?,?,?)")
		args = append(args, ln.OrderID, ln.ItemID, ln.Name, ln.Quantity, ln.PriceAtTimeCents)
	}
	_, err := r.db.ExecContext(ctx, sb.String(), args...)
	return err
}

func (r *MySQLOrderRepo) GetByID(ctx context.Context, id string) (*usecase.OrderRecord, error) {
	row := r.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT %s FROM orders WHERE id=?`, orderColumns), id)
	return scanOrder(row)
}

func (r *MySQLOrderRepo) GetLines(ctx context.Context, orderID string) ([]usecase.LineRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT order_id,item_id,name,quantity,price_at_time_cents
FROM order_items WHERE order_id=?`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []usecase.LineRecord
	for rows.Next() {
		var ln usecase.LineRecord
		if err := rows.Scan(&ln.OrderID, &ln.ItemID, &ln.Name, &ln.Quantity, &ln.PriceAtTimeCents); err != nil {
			return nil, err
		}
		lines = append(lines, ln)
	}
	return lines, rows.Err()
}

func (r *MySQLOrderRepo) SetPaymentReference(ctx context.Context, id, reference string) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE orders SET payment_reference = ?, updated_at = NOW()
WHERE id = ?`, reference, id)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MySQLOrderRepo) UpdateStatusIf(ctx context.Context, id string, fromStatus, toStatus string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
UPDATE orders SET status = ?, updated_at = NOW()
WHERE id = ? AND status = ?`,
		toStatus, id, fromStatus)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	// rows == 0 -> nothing matched (either not found or status mismatch)
	return rows > 0, nil
}

// ConfirmPaymentIf is the durable first-writer-wins guard for the two racing
// completion sources: only a row still unconfirmed flips.
func (r *MySQLOrderRepo) ConfirmPaymentIf(ctx context.Context, id, reference string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
UPDATE orders SET payment_status = ?, payment_reference = ?, status = ?, updated_at = NOW()
WHERE id = ? AND payment_status = ?`,
		string(domain.PaymentConfirmed), reference, string(domain.StatusNew),
		id, string(domain.PaymentUnconfirmed))
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

func (r *MySQLOrderRepo) Cancel(ctx context.Context, id, cancelledBy, reasonID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
UPDATE orders SET status = ?, cancelled_by = ?, cancel_reason_id = ?, updated_at = NOW()
WHERE id = ? AND status NOT IN (?, ?)`,
		string(domain.StatusCancelled), cancelledBy, reasonID,
		id, string(domain.StatusCancelled), string(domain.StatusDelivered))
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

func (r *MySQLOrderRepo) ListActiveByStore(ctx context.Context, storeID string) ([]*usecase.OrderRecord, error) {
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(`
SELECT %s FROM orders
WHERE store_id = ? AND status IN (?,?,?,?)
ORDER BY created_at DESC`, orderColumns),
		storeID,
		string(domain.StatusNew), string(domain.StatusPreparing),
		string(domain.StatusReadyForPickup), string(domain.StatusPickedUp))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*usecase.OrderRecord
	for rows.Next() {
		rec, err := scanOrderRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *MySQLOrderRepo) DailyStats(ctx context.Context, storeID, date string) (*usecase.DailyStats, error) {
	var s usecase.DailyStats
	err := r.db.QueryRowContext(ctx, `
SELECT COUNT(*),
       COALESCE(SUM(subtotal_cents), 0),
       COALESCE(SUM(delivery_fee_cents), 0),
       COALESCE(SUM(total_cents), 0)
FROM orders
WHERE store_id = ? AND DATE(created_at) = ? AND payment_status = ?`,
		storeID, date, string(domain.PaymentConfirmed),
	).Scan(&s.OrdersCount, &s.ItemsRevenue, &s.DeliveryRevenue, &s.GrandRevenue)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

type rowScanner interface{ Scan(dest ...any) error }

func scanOrder(row *sql.Row) (*usecase.OrderRecord, error) {
	rec, err := scanOrderRows(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return rec, err
}

func scanOrderRows(s rowScanner) (*usecase.OrderRecord, error) {
	var rec usecase.OrderRecord
	var ref, cancelledBy, reason sql.NullString
	var lat, lng sql.NullFloat64
	if err := s.Scan(&rec.ID, &rec.CustomerID, &rec.StoreID, &rec.Status, &rec.PaymentStatus, &ref,
		&rec.SubtotalCents, &rec.DeliveryFeeCents, &rec.TotalCents, &rec.DeliveryAddress, &lat, &lng,
		&cancelledBy, &reason, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return nil, err
	}
	rec.PaymentReference = ref.String
	rec.CancelledBy = cancelledBy.String
	rec.CancelReasonID = reason.String
	if lat.Valid && lng.Valid {
		rec.Lat, rec.Lng = &lat.Float64, &lng.Float64
	}
	return &rec, nil
}

var _ usecase.OrderRepo = (*MySQLOrderRepo)(nil)
