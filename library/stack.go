package library

// BoundedStack is a LIFO holding at most limit items. Pushing past the
// limit evicts the oldest item, one per push.
type BoundedStack[T any] struct {
	items []T // oldest first, top at the end
	limit int
}

// NewBoundedStack returns an empty stack. A limit <= 0 uses MaxStackSize.
func NewBoundedStack[T any](limit int) *BoundedStack[T] {
	if limit <= 0 {
		limit = MaxStackSize
	}
	return &BoundedStack[T]{limit: limit}
}

// Push puts v on top and evicts the bottom item if the stack overflows.
func (s *BoundedStack[T]) Push(v T) {
	s.items = append(s.items, v)
	if len(s.items) > s.limit {
		copy(s.items, s.items[1:])
		var zero T
		s.items[len(s.items)-1] = zero
		s.items = s.items[:len(s.items)-1]
	}
}

// Peek returns the top item.
func (s *BoundedStack[T]) Peek() (T, bool) {
	if len(s.items) == 0 {
		var zero T
		return zero, false
	}
	return s.items[len(s.items)-1], true
}

// Pop removes and returns the top item.
func (s *BoundedStack[T]) Pop() (T, bool) {
	v, ok := s.Peek()
	if ok {
		var zero T
		s.items[len(s.items)-1] = zero
		s.items = s.items[:len(s.items)-1]
	}
	return v, ok
}

// Len returns the number of items.
func (s *BoundedStack[T]) Len() int { return len(s.items) }

// Limit returns the capacity.
func (s *BoundedStack[T]) Limit() int { return s.limit }

// Items returns the items newest first.
func (s *BoundedStack[T]) Items() []T {
	out := make([]T, len(s.items))
	for i, v := range s.items {
		out[len(s.items)-1-i] = v
	}
	return out
}
