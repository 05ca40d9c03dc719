package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTurnBudget(t *testing.T) {
	b := NewTurnBudget(2)
	assert.NoError(t, b.Increment())
	assert.Equal(t, 1, b.Remaining())
	assert.NoError(t, b.Increment())
	assert.Equal(t, 0, b.Remaining())
	assert.ErrorIs(t, b.Increment(), ErrTurnBudgetExceeded)
	assert.Equal(t, 3, b.Count())
	assert.Equal(t, 0, b.Remaining())
}

func TestTurnBudgetUnlimited(t *testing.T) {
	b := NewTurnBudget(0)
	for i := 0; i < 100; i++ {
		assert.NoError(t, b.Increment())
	}
	assert.Equal(t, -1, b.Remaining())
}
