package domain

import (
	"errors"
	"time"
)

type Status string

const (
	// StatusPending is the reservation state: the order row exists but no
	// confirmed payment backs it yet. Pending orders are not seller work.
	StatusPending        Status = "pending"
	StatusNew            Status = "new"
	StatusPreparing      Status = "preparing"
	StatusReadyForPickup Status = "ready_for_pickup"
	StatusPickedUp       Status = "picked_up"
	StatusDelivered      Status = "delivered"
	StatusCancelled      Status = "cancelled"
)

type PaymentStatus string

const (
	PaymentUnconfirmed PaymentStatus = "unconfirmed"
	PaymentConfirmed   PaymentStatus = "confirmed"
	PaymentFailed      PaymentStatus = "failed"
)

var (
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// next maps each status to the status a merchant may advance it to.
// Cancellation is handled separately: reachable from any non-terminal state.
var next = map[Status]Status{
	StatusNew:            StatusPreparing,
	StatusPreparing:      StatusReadyForPickup,
	StatusReadyForPickup: StatusPickedUp,
	StatusPickedUp:       StatusDelivered,
}

func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// Active reports whether the status belongs on a fulfillment lane.
func (s Status) Active() bool {
	switch s {
	case StatusNew, StatusPreparing, StatusReadyForPickup, StatusPickedUp:
		return true
	}
	return false
}

// CanAdvance reports whether from -> to is a legal merchant transition.
func CanAdvance(from, to Status) bool {
	if to == StatusCancelled {
		return !from.Terminal()
	}
	return next[from] == to
}

type OrderLine struct {
	OrderID          string `json:"orderId"`
	ItemID           string `json:"itemId"`
	Name             string `json:"name"`
	Quantity         int    `json:"quantity"`
	PriceAtTimeCents int64  `json:"priceAtTime"`
}

type Order struct {
	ID                 string        `json:"id"`
	CustomerID         string        `json:"customerId"`
	StoreID            string        `json:"storeId"`
	Lines              []OrderLine   `json:"items"`
	SubtotalCents      int64         `json:"subtotal"`
	DeliveryFeeCents   int64         `json:"deliveryFee"`
	TotalCents         int64         `json:"total"`
	Status             Status        `json:"status"`
	PaymentStatus      PaymentStatus `json:"paymentStatus"`
	PaymentReference   string        `json:"paymentReference,omitempty"`
	DeliveryAddress    string        `json:"deliveryAddress"`
	DeliveryCoordinate *Coordinate   `json:"deliveryCoordinate,omitempty"`
	CancelledBy        string        `json:"cancelledBy,omitempty"`
	CancelReasonID     string        `json:"cancelReasonId,omitempty"`
	CreatedAt          time.Time     `json:"createdAt"`
	UpdatedAt          time.Time     `json:"updatedAt"`
}

func (o *Order) Validate() error {
	if o.TotalCents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}
