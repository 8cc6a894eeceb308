package domain

import "time"

// MembershipRecord binds a customer to a store membership number. Rows are
// created once verification succeeds and never mutated. Uniqueness holds on
// both (customerId, storeId) and (storeId, membershipNumber).
type MembershipRecord struct {
	CustomerID       string    `json:"customerId"`
	StoreID          string    `json:"storeId"`
	MembershipNumber string    `json:"membershipNumber"`
	CreatedAt        time.Time `json:"createdAt"`
}

// StoreInfo is the slice of the store record this subsystem reads: where the
// store is and whether it gates ordering behind a membership number.
type StoreInfo struct {
	ID                 string      `json:"id"`
	Name               string      `json:"name"`
	Coordinate         *Coordinate `json:"coordinate,omitempty"`
	RequiresMembership bool        `json:"requiresMembership"`
}
