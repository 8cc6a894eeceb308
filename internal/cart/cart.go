// Package cart holds the per-customer line-item aggregate. A cart is bound
// to at most one store at a time; all mutations go through named operations
// so invariants can be asserted after each call.
package cart

import (
	"errors"
	"time"
)

var (
	// ErrStoreMismatch means the cart is bound to another store. The caller
	// must re-issue the add with Replace=true after the user confirms the
	// destructive switch.
	ErrStoreMismatch = errors.New("cart is bound to a different store")
	ErrItemNotFound  = errors.New("item not in cart")
	ErrEmptyItem     = errors.New("item missing id, store or price")
)

type Item struct {
	ItemID         string `json:"itemId"`
	Name           string `json:"name"`
	UnitPriceCents int64  `json:"unitPrice"`
	Quantity       int    `json:"quantity"`
	StoreID        string `json:"storeId"`
}

type Cart struct {
	StoreID   string    `json:"storeId"`
	Items     []Item    `json:"items"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func New() *Cart {
	return &Cart{}
}

// Add appends the item or increments an existing line. Adding from a store
// other than the bound one fails with ErrStoreMismatch unless replace is set,
// in which case the cart is cleared and rebound first.
func (c *Cart) Add(item Item, replace bool) error {
	if item.ItemID == "" || item.StoreID == "" || item.UnitPriceCents <= 0 {
		return ErrEmptyItem
	}
	if item.Quantity <= 0 {
		item.Quantity = 1
	}
	if c.StoreID != "" && c.StoreID != item.StoreID {
		if !replace {
			return ErrStoreMismatch
		}
		c.Clear()
	}
	c.StoreID = item.StoreID
	for i := range c.Items {
		if c.Items[i].ItemID == item.ItemID {
			c.Items[i].Quantity += item.Quantity
			c.touch()
			return nil
		}
	}
	c.Items = append(c.Items, item)
	c.touch()
	return nil
}

func (c *Cart) Increment(itemID string) error {
	for i := range c.Items {
		if c.Items[i].ItemID == itemID {
			c.Items[i].Quantity++
			c.touch()
			return nil
		}
	}
	return ErrItemNotFound
}

// Decrement lowers a line's quantity; at quantity 1 the line is removed.
// Removing the last line unbinds the store.
func (c *Cart) Decrement(itemID string) error {
	for i := range c.Items {
		if c.Items[i].ItemID != itemID {
			continue
		}
		if c.Items[i].Quantity > 1 {
			c.Items[i].Quantity--
		} else {
			c.Items = append(c.Items[:i], c.Items[i+1:]...)
		}
		if len(c.Items) == 0 {
			c.StoreID = ""
		}
		c.touch()
		return nil
	}
	return ErrItemNotFound
}

func (c *Cart) Remove(itemID string) error {
	for i := range c.Items {
		if c.Items[i].ItemID == itemID {
			c.Items = append(c.Items[:i], c.Items[i+1:]...)
			if len(c.Items) == 0 {
				c.StoreID = ""
			}
			c.touch()
			return nil
		}
	}
	return ErrItemNotFound
}

func (c *Cart) Clear() {
	c.Items = nil
	c.StoreID = ""
	c.touch()
}

func (c *Cart) Empty() bool { return len(c.Items) == 0 }

// SubtotalCents is always the exact sum over current lines.
func (c *Cart) SubtotalCents() int64 {
	var sum int64
	for _, it := range c.Items {
		sum += it.UnitPriceCents * int64(it.Quantity)
	}
	return sum
}

func (c *Cart) touch() { c.UpdatedAt = time.Now().UTC() }
