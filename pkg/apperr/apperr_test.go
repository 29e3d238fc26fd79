package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_IsSentinel(t *testing.T) {
	err := InsufficientStock("Desk Lamp", 2, 3)

	assert.True(t, errors.Is(err, ErrInsufficientStock))
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, "Insufficient stock for Desk Lamp. Available: 2, Requested: 3", err.Error())
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"app error", NotFound("Order not found"), KindNotFound},
		{"wrapped app error", fmt.Errorf("place: %w", InvalidTransition("nope")), KindInvalidTransition},
		{"bare sentinel", fmt.Errorf("product 42: %w", ErrNotFound), KindNotFound},
		{"stock sentinel", ErrInsufficientStock, KindInsufficientStock},
		{"unknown", errors.New("connection reset"), KindInternal},
		{"nil", nil, KindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestMessage_HidesInternalDetail(t *testing.T) {
	cause := errors.New("dial tcp 10.0.0.1:27017: connection refused")
	err := Internal(cause, "failed to load order")

	assert.Equal(t, "Error creating order", Message(err, "Error creating order"))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "Order not found", Message(NotFound("Order not found"), "fallback"))
	assert.Equal(t, "fallback", Message(cause, "fallback"))
}
