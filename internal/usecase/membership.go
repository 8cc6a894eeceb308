package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	domain "github.com/quickdash/order-api/internal/entity"
)

var (
	// ErrMembershipNotFound: the number is not in the store's registry.
	// User-actionable: register with the store first.
	ErrMembershipNotFound = errors.New("membership number not found in store registry")
	// ErrMembershipClaimed: the number is already bound to a different
	// customer at this store. Hard stop, no retry.
	ErrMembershipClaimed = errors.New("membership number already claimed by another customer")
	// ErrMembershipAlreadyVerified: this customer already holds a record
	// for this store. A benign race; callers treat it as success.
	ErrMembershipAlreadyVerified = errors.New("membership already verified for this customer")
)

// VerifyMembership matches an entered number against the store registry and
// claims it for the customer.
type VerifyMembership struct {
	members MembershipRepo
}

func NewVerifyMembership(members MembershipRepo) *VerifyMembership {
	return &VerifyMembership{members: members}
}

func (v *VerifyMembership) Execute(ctx context.Context, customerID, storeID, number string) error {
	if number == "" {
		return ErrMembershipNotFound
	}

	ok, err := v.members.RegistryContains(ctx, storeID, number)
	if err != nil {
		return fmt.Errorf("registry lookup: %w", err)
	}
	if !ok {
		return ErrMembershipNotFound
	}

	err = v.members.Create(ctx, &domain.MembershipRecord{
		CustomerID:       customerID,
		StoreID:          storeID,
		MembershipNumber: number,
		CreatedAt:        time.Now().UTC(),
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrMembershipAlreadyVerified):
		// Two devices racing the same verification; the record exists and
		// that is all the gate needs.
		return nil
	case errors.Is(err, ErrMembershipClaimed):
		return ErrMembershipClaimed
	default:
		return fmt.Errorf("membership create: %w", err)
	}
}
