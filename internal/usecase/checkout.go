package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/quickdash/order-api/internal/cart"
	domain "github.com/quickdash/order-api/internal/entity"
	"github.com/quickdash/order-api/internal/geo"
	"github.com/quickdash/order-api/internal/pricing"
)

var (
	ErrEmptyCart          = errors.New("cart is empty")
	ErrNoAddress          = errors.New("delivery address not resolved")
	ErrMembershipRequired = errors.New("store requires a verified membership")
	ErrStoreUnknown       = errors.New("store not found")
)

// DeliveryAddress is the resolved drop-off point. Resolution itself
// (geocoding, place lookup) happens outside this subsystem.
type DeliveryAddress struct {
	Text       string
	Coordinate *domain.Coordinate
}

// CheckoutQuote is the gate's verdict plus the priced delivery fee.
type CheckoutQuote struct {
	SubtotalCents      int64
	DeliveryFeeCents   int64
	TotalCents         int64
	DistanceKm         float64
	DistanceUnverified bool
	StoreID            string
}

// Checkout evaluates the eligibility gate and prices the delivery. It runs on
// every payment attempt rather than caching a previous verdict: membership
// can be revoked out-of-band, and the pricing config is admin-mutable.
type Checkout struct {
	stores  StoreDirectory
	members MembershipRepo
	tiers   pricing.Config
}

func NewCheckout(stores StoreDirectory, members MembershipRepo, tiers pricing.Config) *Checkout {
	return &Checkout{stores: stores, members: members, tiers: tiers}
}

func (c *Checkout) Quote(ctx context.Context, customerID string, crt *cart.Cart, addr DeliveryAddress) (*CheckoutQuote, error) {
	if crt == nil || crt.Empty() {
		return nil, ErrEmptyCart
	}
	if addr.Text == "" {
		return nil, ErrNoAddress
	}

	store, err := c.stores.Get(ctx, crt.StoreID)
	if err != nil {
		return nil, fmt.Errorf("lookup store %s: %w", crt.StoreID, err)
	}
	if store == nil {
		return nil, ErrStoreUnknown
	}

	if store.RequiresMembership {
		ok, err := c.members.Exists(ctx, customerID, store.ID)
		if err != nil {
			return nil, fmt.Errorf("membership check: %w", err)
		}
		if !ok {
			return nil, ErrMembershipRequired
		}
	}

	// A store with no coordinates on file must not fail checkout; the fee
	// falls back to the base rate via the unknown-distance path.
	dist, known := geo.DistanceKm(store.Coordinate, addr.Coordinate)
	quote, err := pricing.QuoteDistance(dist, known, c.tiers)
	if err != nil {
		return nil, err
	}

	subtotal := crt.SubtotalCents()
	return &CheckoutQuote{
		SubtotalCents:      subtotal,
		DeliveryFeeCents:   quote.FeeCents,
		TotalCents:         subtotal + quote.FeeCents,
		DistanceKm:         quote.DistanceKm,
		DistanceUnverified: quote.DistanceUnverified,
		StoreID:            store.ID,
	}, nil
}
