/*
Package budget tracks hard memory ceilings for the streaming engine. Two
named budgets exist, one per memory tier: CPU RAM for decoded node payloads
and GPU memory for packed buffers. A reservation is a check-and-increment
against the ceiling; refusal has no side effect and is the normal
backpressure signal - the caller defers the work to a later frame rather
than treating it as an error.
*/
package budget

import (
	"fmt"
	"sync"
)

// Name identifies a budget tier.
type Name string

// The two tiers used by the streaming engine.
const (
	CPU Name = "cpu-ram"
	GPU Name = "gpu"
)

// Tracker enforces consumed <= ceiling per named budget.
type Tracker struct {
	mtx     sync.Mutex
	budgets map[Name]*counter
}

type counter struct {
	ceiling  uint64
	consumed uint64
}

// NewTracker returns a tracker with the given ceilings.
func NewTracker(ceilings map[Name]uint64) *Tracker {
	budgets := make(map[Name]*counter, len(ceilings))
	for name, ceiling := range ceilings {
		budgets[name] = &counter{ceiling: ceiling}
	}
	return &Tracker{budgets: budgets}
}

// TryReserve atomically checks consumed + bytes <= ceiling, incrementing and
// returning true on success. On refusal nothing changes. Reserving against
// an unknown budget always fails.
func (t *Tracker) TryReserve(name Name, bytes uint64) bool {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	b, ok := t.budgets[name]
	if !ok {
		return false
	}
	if b.consumed+bytes > b.ceiling {
		return false
	}
	b.consumed += bytes
	return true
}

// Release returns bytes to the budget, flooring consumption at zero.
func (t *Tracker) Release(name Name, bytes uint64) {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	b, ok := t.budgets[name]
	if !ok {
		return
	}
	if bytes > b.consumed {
		b.consumed = 0
		return
	}
	b.consumed -= bytes
}

// Consumed returns the current consumption of a budget.
func (t *Tracker) Consumed(name Name) uint64 {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	if b, ok := t.budgets[name]; ok {
		return b.consumed
	}
	return 0
}

// Ceiling returns the ceiling of a budget.
func (t *Tracker) Ceiling(name Name) uint64 {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	if b, ok := t.budgets[name]; ok {
		return b.ceiling
	}
	return 0
}

func (t *Tracker) String() string {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	s := ""
	for name, b := range t.budgets {
		if s != "" {
			s += " "
		}
		s += fmt.Sprintf("%s:%d/%d", name, b.consumed, b.ceiling)
	}
	return s
}
