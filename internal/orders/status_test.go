package orders

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	allowed := [][2]Status{
		{StatusPendingPayment, StatusProcessing},
		{StatusPendingPayment, StatusCancelled},
		{StatusProcessing, StatusCompleted},
		{StatusProcessing, StatusCancelled},
	}
	for _, p := range allowed {
		assert.True(t, CanTransition(p[0], p[1]), "%s -> %s", p[0], p[1])
	}

	denied := [][2]Status{
		{StatusCompleted, StatusPendingPayment},
		{StatusCompleted, StatusCancelled},
		{StatusCancelled, StatusProcessing},
		{StatusPendingPayment, StatusCompleted},
		{StatusProcessing, StatusPendingPayment},
		{Status("shipped"), StatusCompleted},
	}
	for _, p := range denied {
		assert.False(t, CanTransition(p[0], p[1]), "%s -> %s", p[0], p[1])
	}
}

func TestCanTransitionPayment(t *testing.T) {
	assert.True(t, CanTransitionPayment(PaymentPending, PaymentCompleted))
	assert.True(t, CanTransitionPayment(PaymentPending, PaymentFailed))
	assert.True(t, CanTransitionPayment(PaymentProcessing, PaymentCompleted))
	assert.False(t, CanTransitionPayment(PaymentProcessing, PaymentPending))
	assert.False(t, CanTransitionPayment(PaymentCompleted, PaymentFailed))
	assert.False(t, CanTransitionPayment(PaymentFailed, PaymentCompleted))
}

func TestStatusValid(t *testing.T) {
	assert.True(t, StatusCancelled.Valid())
	assert.False(t, Status("PAID").Valid())
}
