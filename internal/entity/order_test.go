package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanAdvance_LaneSequence(t *testing.T) {
	assert.True(t, CanAdvance(StatusNew, StatusPreparing))
	assert.True(t, CanAdvance(StatusPreparing, StatusReadyForPickup))
	assert.True(t, CanAdvance(StatusReadyForPickup, StatusPickedUp))
	assert.True(t, CanAdvance(StatusPickedUp, StatusDelivered))

	// no skipping, no going back
	assert.False(t, CanAdvance(StatusNew, StatusReadyForPickup))
	assert.False(t, CanAdvance(StatusPreparing, StatusNew))
	// pending leaves via payment confirmation, not merchant action
	assert.False(t, CanAdvance(StatusPending, StatusNew))
	// terminal states are dead ends
	assert.False(t, CanAdvance(StatusDelivered, StatusPreparing))
	assert.False(t, CanAdvance(StatusCancelled, StatusNew))
}

func TestCanAdvance_CancelFromAnyNonTerminal(t *testing.T) {
	for _, s := range []Status{StatusPending, StatusNew, StatusPreparing, StatusReadyForPickup, StatusPickedUp} {
		assert.True(t, CanAdvance(s, StatusCancelled), "cancel from %s", s)
	}
	assert.False(t, CanAdvance(StatusDelivered, StatusCancelled))
	assert.False(t, CanAdvance(StatusCancelled, StatusCancelled))
}

func TestStatus_ActiveAndTerminal(t *testing.T) {
	assert.False(t, StatusPending.Active())
	assert.True(t, StatusNew.Active())
	assert.True(t, StatusPickedUp.Active())
	assert.False(t, StatusDelivered.Active())
	assert.False(t, StatusCancelled.Active())

	assert.True(t, StatusDelivered.Terminal())
	assert.True(t, StatusCancelled.Terminal())
	assert.False(t, StatusPickedUp.Terminal())
}

func TestOrder_Validate(t *testing.T) {
	o := &Order{TotalCents: 100}
	assert.NoError(t, o.Validate())

	o.TotalCents = 0
	assert.ErrorIs(t, o.Validate(), ErrInvalidAmount)
}
