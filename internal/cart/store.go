package cart

import "context"

// Store persists cart snapshots between requests, keyed by customer.
// Load returns a fresh empty cart when none exists.
//
// Update is the read-modify-write path for mutations: fn runs against the
// current snapshot and the result is persisted atomically with respect to
// concurrent updates of the same customer's cart. When fn errors nothing
// is written and the loaded cart is returned alongside the error, so the
// caller can still report its state.
type Store interface {
	Load(ctx context.Context, customerID string) (*Cart, error)
	Update(ctx context.Context, customerID string, fn func(*Cart) error) (*Cart, error)
	Save(ctx context.Context, customerID string, c *Cart) error
	Delete(ctx context.Context, customerID string) error
}
