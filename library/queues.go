package library

import (
	"fmt"
	"sort"
)

// Queues keeps one FIFO of waiting user ids per book id.
type Queues struct {
	waiting map[int64][]int64
	max     int // per-book limit, 0 means unbounded
}

// NewQueues returns an empty set of queues.
func NewQueues() *Queues {
	return &Queues{waiting: make(map[int64][]int64)}
}

// Enqueue appends userID to the book's queue.
func (q *Queues) Enqueue(bookID, userID int64) error {
	if q.max > 0 && len(q.waiting[bookID]) >= q.max {
		return fmt.Errorf("queue for book %d: %w", bookID, ErrAllocation)
	}
	q.push(bookID, userID)
	return nil
}

func (q *Queues) push(bookID, userID int64) {
	q.waiting[bookID] = append(q.waiting[bookID], userID)
}

// Dequeue removes and returns the front of the book's queue.
func (q *Queues) Dequeue(bookID int64) (int64, bool) {
	w := q.waiting[bookID]
	if len(w) == 0 {
		return 0, false
	}
	front := w[0]
	if len(w) == 1 {
		delete(q.waiting, bookID)
	} else {
		q.waiting[bookID] = w[1:]
	}
	return front, true
}

// Peek returns the front of the book's queue without removing it.
func (q *Queues) Peek(bookID int64) (int64, bool) {
	w := q.waiting[bookID]
	if len(w) == 0 {
		return 0, false
	}
	return w[0], true
}

// Contains reports whether userID waits for the book. The queue is drained
// and rebuilt in order while scanning.
func (q *Queues) Contains(bookID, userID int64) bool {
	found := false
	for n := q.Len(bookID); n > 0; n-- {
		u, _ := q.Dequeue(bookID)
		if u == userID {
			found = true
		}
		q.push(bookID, u)
	}
	return found
}

// Remove drops the first occurrence of userID, keeping the order of the rest.
func (q *Queues) Remove(bookID, userID int64) bool {
	removed := false
	for n := q.Len(bookID); n > 0; n-- {
		u, _ := q.Dequeue(bookID)
		if u == userID && !removed {
			removed = true
			continue
		}
		q.push(bookID, u)
	}
	return removed
}

// Len returns the number of users waiting for the book.
func (q *Queues) Len(bookID int64) int { return len(q.waiting[bookID]) }

// Snapshot returns a copy of the book's queue, front first.
func (q *Queues) Snapshot(bookID int64) []int64 {
	w := q.waiting[bookID]
	out := make([]int64, len(w))
	copy(out, w)
	return out
}

// Drop discards the book's queue.
func (q *Queues) Drop(bookID int64) { delete(q.waiting, bookID) }

// Books returns the ids of books with a non-empty queue, ascending.
func (q *Queues) Books() []int64 {
	ids := make([]int64, 0, len(q.waiting))
	for id, w := range q.waiting {
		if len(w) > 0 {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
