package pool

// Ring tracks the round-robin buffer index shared by both sides.
// It is owned by a single goroutine and is not synchronized.
type Ring struct {
	n   int
	cur int
}

// NewRing creates a Ring over n slots starting at 0.
func NewRing(n int) Ring {
	if n < 1 {
		n = 1
	}
	return Ring{n: n}
}

// Current returns the index expected next.
func (r *Ring) Current() int {
	return r.cur
}

// Advance moves to the next slot and returns the slot just left.
func (r *Ring) Advance() int {
	prev := r.cur
	if r.cur++; r.cur >= r.n {
		r.cur = 0
	}
	return prev
}

// Reset goes back to slot 0.
func (r *Ring) Reset() {
	r.cur = 0
}

// Len returns the number of slots.
func (r *Ring) Len() int {
	return r.n
}
