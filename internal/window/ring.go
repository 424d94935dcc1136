// Package window provides bounded-memory windowed aggregation over trade
// streams: a fixed-capacity ring buffer, time-windowed VWAP with a
// per-timestamp memo, a multi-timeframe VWAP fan-out, and rolling volume
// totals/averages. All arithmetic uses exact decimals and all queries take
// a caller-supplied "as of" time, so results are fully deterministic.
package window

// Ring is a fixed-capacity circular buffer. Once full, each Push
// overwrites the oldest slot; this is expected behavior, not a fault.
type Ring[T any] struct {
	buf   []T
	start int // index of the oldest element
	size  int
}

// NewRing creates a ring buffer with the given capacity.
// Capacity must be positive.
func NewRing[T any](capacity int) *Ring[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &Ring[T]{buf: make([]T, capacity)}
}

// Push appends an item, overwriting the oldest once at capacity. O(1).
func (r *Ring[T]) Push(item T) {
	if r.size < len(r.buf) {
		r.buf[(r.start+r.size)%len(r.buf)] = item
		r.size++
		return
	}
	r.buf[r.start] = item
	r.start = (r.start + 1) % len(r.buf)
}

// Items returns a snapshot of all stored items, oldest first. O(C).
func (r *Ring[T]) Items() []T {
	out := make([]T, r.size)
	for i := 0; i < r.size; i++ {
		out[i] = r.buf[(r.start+i)%len(r.buf)]
	}
	return out
}

// Each calls fn for every stored item, oldest first, stopping early
// when fn returns false. Avoids the snapshot allocation of Items.
func (r *Ring[T]) Each(fn func(item T) bool) {
	for i := 0; i < r.size; i++ {
		if !fn(r.buf[(r.start+i)%len(r.buf)]) {
			return
		}
	}
}

// Len returns the number of stored items.
func (r *Ring[T]) Len() int {
	return r.size
}

// Cap returns the fixed capacity.
func (r *Ring[T]) Cap() int {
	return len(r.buf)
}

// Full reports whether the next Push will overwrite the oldest item.
func (r *Ring[T]) Full() bool {
	return r.size == len(r.buf)
}

// Clear resets the ring to empty without releasing the backing array.
func (r *Ring[T]) Clear() {
	var zero T
	for i := range r.buf {
		r.buf[i] = zero
	}
	r.start = 0
	r.size = 0
}
