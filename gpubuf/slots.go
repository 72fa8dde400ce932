package gpubuf

/*
Slot allocation. A slot is the unit of GPU buffer space assigned to exactly
one resident node at a time. Slots are handed out from a free-index stack;
a released slot must be explicitly reissued before it can be handed out
again, and an index is never held by two nodes at once.
*/

////////////////////////////////////////////////////////////////////////////////

// SlotAllocator hands out unique slot indices in [0, cap).
type SlotAllocator struct {
	free []int
	next int
	cap  int
	held map[int]bool
}

// NewSlotAllocator returns an allocator with the given capacity.
func NewSlotAllocator(capacity int) *SlotAllocator {
	return &SlotAllocator{
		cap:  capacity,
		held: make(map[int]bool),
	}
}

// Acquire returns a free slot index, preferring reissued slots over fresh
// ones. Returns false when every slot is held.
func (a *SlotAllocator) Acquire() (int, bool) {
	if n := len(a.free); n > 0 {
		slot := a.free[n-1]
		a.free = a.free[:n-1]
		a.held[slot] = true
		return slot, true
	}
	if a.next < a.cap {
		slot := a.next
		a.next++
		a.held[slot] = true
		return slot, true
	}
	return 0, false
}

// Reissue returns a held slot to the free list. Reissuing a slot that is not
// held is a no-op.
func (a *SlotAllocator) Reissue(slot int) {
	if !a.held[slot] {
		return
	}
	delete(a.held, slot)
	a.free = append(a.free, slot)
}

// InUse returns the number of currently held slots.
func (a *SlotAllocator) InUse() int {
	return len(a.held)
}

// Cap returns the allocator capacity.
func (a *SlotAllocator) Cap() int {
	return a.cap
}
