package core

import (
	"fmt"
	"sync"
)

// TurnBudget enforces a maximum number of model turns per run.
type TurnBudget struct {
	max   int
	count int
	mu    sync.Mutex
}

// NewTurnBudget creates a new budget allowing max model turns.
// If max == 0, unlimited turns are allowed.
func NewTurnBudget(max int) *TurnBudget {
	return &TurnBudget{max: max}
}

// Increment increases the turn counter and returns an error if the limit is exceeded.
func (b *TurnBudget) Increment() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.count++
	if b.max > 0 && b.count > b.max {
		return fmt.Errorf("%w: max %d model turns", ErrTurnBudgetExceeded, b.max)
	}

	return nil
}

// Count returns the current number of turns taken.
func (b *TurnBudget) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.count
}

// Remaining returns how many turns are left before hitting the limit.
func (b *TurnBudget) Remaining() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.max == 0 {
		return -1 // unlimited
	}

	if b.count >= b.max {
		return 0
	}

	return b.max - b.count
}
