package usecase

import (
	"context"
	"time"

	domain "github.com/quickdash/order-api/internal/entity"
)

// Persistence shape (kept out of domain).
type OrderRecord struct {
	ID, CustomerID, StoreID string
	Status                  string
	PaymentStatus           string
	PaymentReference        string
	SubtotalCents           int64
	DeliveryFeeCents        int64
	TotalCents              int64
	DeliveryAddress         string
	Lat, Lng                *float64
	CancelledBy             string
	CancelReasonID          string
	CreatedAt, UpdatedAt    time.Time
}

type LineRecord struct {
	OrderID, ItemID  string
	Name             string
	Quantity         int
	PriceAtTimeCents int64
}

type DailyStats struct {
	OrdersCount     int   `json:"ordersCount"`
	ItemsRevenue    int64 `json:"itemsRevenue"`
	DeliveryRevenue int64 `json:"deliveryRevenue"`
	GrandRevenue    int64 `json:"grandRevenue"`
}

type OrderRepo interface {
	Create(ctx context.Context, o *OrderRecord) error
	InsertLines(ctx context.Context, lines []LineRecord) error
	GetByID(ctx context.Context, id string) (*OrderRecord, error)
	GetLines(ctx context.Context, orderID string) ([]LineRecord, error)
	SetPaymentReference(ctx context.Context, id, reference string) error
	// UpdateStatusIf performs a guarded transition; false means nothing
	// matched (row missing or status already moved).
	UpdateStatusIf(ctx context.Context, id string, fromStatus, toStatus string) (bool, error)
	// ConfirmPaymentIf flips payment_status unconfirmed->confirmed and
	// status pending->new in one guarded write. false means another
	// completion source got there first.
	ConfirmPaymentIf(ctx context.Context, id, reference string) (bool, error)
	// Cancel marks the order cancelled unless it is already terminal.
	Cancel(ctx context.Context, id, cancelledBy, reasonID string) (bool, error)
	ListActiveByStore(ctx context.Context, storeID string) ([]*OrderRecord, error)
	DailyStats(ctx context.Context, storeID, date string) (*DailyStats, error)
}

type MembershipRepo interface {
	// Exists reports whether the customer already holds a verified
	// membership for the store.
	Exists(ctx context.Context, customerID, storeID string) (bool, error)
	// RegistryContains checks the store-owned registry for the number.
	RegistryContains(ctx context.Context, storeID, number string) (bool, error)
	// Create inserts the MembershipRecord. Duplicate-key conflicts map to
	// ErrMembershipAlreadyVerified or ErrMembershipClaimed.
	Create(ctx context.Context, rec *domain.MembershipRecord) error
}

type StoreDirectory interface {
	Get(ctx context.Context, storeID string) (*domain.StoreInfo, error)
}

type OutboxRepo interface {
	InsertOrderCreated(ctx context.Context, payload []byte) error
}

type IdempotencyStore interface {
	TryLock(ctx context.Context, scope, key string) (bool, error)
	// Unlock releases a held lock so a later caller may take it again.
	// Used when the work guarded by the lock failed and must be retried.
	Unlock(ctx context.Context, scope, key string) error
	Remember(ctx context.Context, scope, key, value string) error
	Recall(ctx context.Context, scope, key string) (string, bool, error)
}

type OrderCache interface {
	SetStatus(ctx context.Context, orderID string, status string) error
	GetStatus(ctx context.Context, orderID string) (string, error)
}

// ---- Payment gateway (JSON/HTTP, amounts in minor units) ----

type ChargeRequest struct {
	Email          string
	AmountMinor    int64
	OrderID        string
	MetadataFields map[string]string
}

type ChargeResult struct {
	Reference        string
	Status           string // "success" | "pending"
	AuthorizationURL string // set on the redirect path
}

type VerifyResult struct {
	Status string // "success" | "pending" | "failed"
}

type PaymentGateway interface {
	Initialize(ctx context.Context, req ChargeRequest) (*ChargeResult, error)
	Verify(ctx context.Context, reference string) (*VerifyResult, error)
	Refund(ctx context.Context, reference, cancelledBy string) error
}

// ---- Messages ----

// RefundMsg is published to the refund queue when a cancelled order had a
// confirmed charge.
type RefundMsg struct {
	OrderID     string `json:"order_id"`
	Reference   string `json:"reference"`
	CancelledBy string `json:"cancelled_by"`
}

// RowChangeMsg is one row-level event from the backend change feed.
type RowChangeMsg struct {
	Op            string `json:"op"` // insert | update | delete
	OrderID       string `json:"order_id"`
	StoreID       string `json:"store_id"`
	CustomerID    string `json:"customer_id"`
	Status        string `json:"status"`
	PaymentStatus string `json:"payment_status"`
	TotalCents    int64  `json:"total_cents"`
	BusinessDate  string `json:"business_date"` // YYYY-MM-DD
}

// RefundQueue is the publish side of the refund worker.
type RefundQueue interface {
	PublishRefund(ctx context.Context, msg RefundMsg) error
}
