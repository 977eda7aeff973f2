package ring

// Buffer is a fixed-capacity ring buffer. Pushing beyond capacity drops the
// oldest element, which makes "bounded history" structural instead of
// relying on callers to trim slices.
type Buffer[T any] struct {
	buf  []T
	head int // index of the oldest element
	n    int
}

// New creates a Buffer with the given capacity. Capacity must be positive.
func New[T any](capacity int) *Buffer[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &Buffer[T]{buf: make([]T, capacity)}
}

// Push appends v, evicting the oldest element when full.
func (b *Buffer[T]) Push(v T) {
	if b.n < len(b.buf) {
		b.buf[(b.head+b.n)%len(b.buf)] = v
		b.n++
		return
	}
	b.buf[b.head] = v
	b.head = (b.head + 1) % len(b.buf)
}

// Len returns the number of stored elements.
func (b *Buffer[T]) Len() int { return b.n }

// Cap returns the fixed capacity.
func (b *Buffer[T]) Cap() int { return len(b.buf) }

// At returns the element at index i, where 0 is the oldest. It panics on an
// out-of-range index, same as a slice.
func (b *Buffer[T]) At(i int) T {
	if i < 0 || i >= b.n {
		panic("ring: index out of range")
	}
	return b.buf[(b.head+i)%len(b.buf)]
}

// Last returns the newest element.
func (b *Buffer[T]) Last() (T, bool) {
	var zero T
	if b.n == 0 {
		return zero, false
	}
	return b.buf[(b.head+b.n-1)%len(b.buf)], true
}

// ReplaceLast overwrites the newest element in place.
func (b *Buffer[T]) ReplaceLast(v T) bool {
	if b.n == 0 {
		return false
	}
	b.buf[(b.head+b.n-1)%len(b.buf)] = v
	return true
}

// Values returns the elements oldest-first as a fresh slice.
func (b *Buffer[T]) Values() []T {
	out := make([]T, b.n)
	for i := 0; i < b.n; i++ {
		out[i] = b.buf[(b.head+i)%len(b.buf)]
	}
	return out
}

// Reset discards all elements, keeping the allocation.
func (b *Buffer[T]) Reset() {
	b.head = 0
	b.n = 0
}
