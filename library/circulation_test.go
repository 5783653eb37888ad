package library

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a settable time source.
type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLibrary(t *testing.T, opts ...Option) (*Library, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)}
	l, err := New(append([]Option{WithClock(clock.Now)}, opts...)...)
	require.NoError(t, err)
	return l, clock
}

func mustBook(t *testing.T, l *Library, title string) Book {
	t.Helper()
	b, err := l.AddBook(title, "Author", "ISBN-"+title)
	require.NoError(t, err)
	return b
}

func mustUser(t *testing.T, l *Library, name string) User {
	t.Helper()
	u, err := l.AddUser(name, "ID-"+name, 30, "F")
	require.NoError(t, err)
	return u
}

// assertConsistent checks the cross-container invariants: every borrowed book
// has exactly one open record, every other book has none, borrow counts match
// open records, and queued users exist.
func assertConsistent(t *testing.T, l *Library) {
	t.Helper()
	for _, b := range l.Books() {
		open := l.ledger.OpenCount(b.ID)
		if b.Status == StatusBorrowed {
			assert.Equal(t, 1, open, "book %d borrowed", b.ID)
		} else {
			assert.Equal(t, 0, open, "book %d %s", b.ID, b.Status)
		}
		if b.Status == StatusReserved {
			assert.Positive(t, l.queues.Len(b.ID), "reserved book %d has empty queue", b.ID)
		}
		q, err := l.Queue(b.ID)
		require.NoError(t, err)
		seen := map[int64]bool{}
		for _, u := range q {
			assert.False(t, seen[u], "user %d queued twice for %d", u, b.ID)
			seen[u] = true
			_, err := l.User(u)
			assert.NoError(t, err)
		}
	}
	for _, u := range l.Users() {
		open := 0
		for _, r := range l.Ledger() {
			if r.UserID == u.ID && !r.Returned {
				open++
			}
		}
		assert.Equal(t, open, u.BorrowCount, "user %d borrow count", u.ID)
		assert.LessOrEqual(t, u.BorrowCount, BorrowLimit)
	}
}

func TestBorrowAndReturnOnTime(t *testing.T) {
	// Arrange
	l, clock := newTestLibrary(t)
	b := mustBook(t, l, "Dune")
	u := mustUser(t, l, "Alice")

	// Act
	out, err := l.Borrow(b.ID, u.ID)
	require.NoError(t, err)
	clock.Advance(5 * 24 * time.Hour)
	ret, err := l.ReturnBook(b.ID, u.ID)
	require.NoError(t, err)

	// Assert
	assert.True(t, out.Borrowed)
	assert.Equal(t, clock.t.Add(-5*24*time.Hour).Add(LoanPeriod), out.Record.DueDate)
	assert.False(t, ret.Overdue)
	assert.False(t, ret.Suspended)
	assert.Equal(t, StatusAvailable, ret.Status)

	got, _ := l.User(u.ID)
	assert.Equal(t, UserActive, got.Status)
	assert.Equal(t, 0, got.BorrowCount)
	assert.Equal(t, []int64{b.ID}, l.BrowsingHistory())
	last, err := l.LastReturn()
	require.NoError(t, err)
	assert.Equal(t, ReturnEvent{BookID: b.ID, UserID: u.ID, ReturnDate: clock.t}, last)
	assertConsistent(t, l)
}

func TestLateReturnSuspends(t *testing.T) {
	l, clock := newTestLibrary(t)
	b := mustBook(t, l, "Dune")
	u := mustUser(t, l, "Alice")
	_, err := l.Borrow(b.ID, u.ID)
	require.NoError(t, err)

	clock.Advance(LoanPeriod + 3*24*time.Hour)
	require.Len(t, l.Overdue(), 1)
	assert.Equal(t, 3, l.Overdue()[0].OverdueDays)

	ret, err := l.ReturnBook(b.ID, u.ID)
	require.NoError(t, err)
	assert.True(t, ret.Overdue)
	assert.True(t, ret.Suspended)

	got, _ := l.User(u.ID)
	assert.Equal(t, UserSuspended, got.Status)

	_, err = l.Borrow(b.ID, u.ID)
	assert.ErrorIs(t, err, ErrInvalidState)
	assertConsistent(t, l)
}

func TestBorrowUnavailableLeavesStateUnchanged(t *testing.T) {
	l, _ := newTestLibrary(t)
	b := mustBook(t, l, "Dune")
	alice := mustUser(t, l, "Alice")
	bob := mustUser(t, l, "Bob")
	_, err := l.Borrow(b.ID, alice.ID)
	require.NoError(t, err)

	out, err := l.Borrow(b.ID, bob.ID)
	require.NoError(t, err)
	assert.False(t, out.Borrowed)
	assert.Equal(t, StatusBorrowed, out.Status)
	assert.Equal(t, 1, l.ledger.Len())

	pos, err := l.JoinQueue(b.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, pos)
	_, err = l.JoinQueue(b.ID, bob.ID)
	assert.ErrorIs(t, err, ErrAlreadyQueued)
	assert.ErrorIs(t, err, ErrInvalidState)
	assertConsistent(t, l)
}

func TestJoinQueueRefusesAvailableBook(t *testing.T) {
	l, _ := newTestLibrary(t)
	b := mustBook(t, l, "Dune")
	u := mustUser(t, l, "Alice")
	_, err := l.JoinQueue(b.ID, u.ID)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestBorrowLimit(t *testing.T) {
	l, _ := newTestLibrary(t)
	u := mustUser(t, l, "Alice")
	for i := 0; i < BorrowLimit; i++ {
		b := mustBook(t, l, "Book")
		out, err := l.Borrow(b.ID, u.ID)
		require.NoError(t, err)
		require.True(t, out.Borrowed)
	}
	extra := mustBook(t, l, "Eleventh")

	_, err := l.Borrow(extra.ID, u.ID)
	assert.ErrorIs(t, err, ErrCapacityExceeded)
	got, _ := l.User(u.ID)
	assert.Equal(t, BorrowLimit, got.BorrowCount)
	assert.False(t, got.CanBorrow())
	assertConsistent(t, l)
}

func TestReserveAvailableBook(t *testing.T) {
	l, _ := newTestLibrary(t)
	b := mustBook(t, l, "Dune")
	u := mustUser(t, l, "Alice")

	out, err := l.Reserve(b.ID, u.ID)
	require.NoError(t, err)

	assert.True(t, out.ReservedNow)
	assert.Equal(t, 1, out.Position)
	got, _ := l.Book(b.ID)
	assert.Equal(t, StatusReserved, got.Status)
	assert.Zero(t, l.ledger.Len(), "reserving must not create a record")

	_, err = l.Reserve(b.ID, u.ID)
	assert.ErrorIs(t, err, ErrAlreadyQueued)

	rec, err := l.ProcessNextReservation(b.ID)
	require.NoError(t, err)
	assert.Equal(t, u.ID, rec.UserID)
	got, _ = l.Book(b.ID)
	assert.Equal(t, StatusBorrowed, got.Status)
	assertConsistent(t, l)
}

func TestReturnHandsOffToQueue(t *testing.T) {
	l, _ := newTestLibrary(t)
	b := mustBook(t, l, "Dune")
	alice := mustUser(t, l, "Alice")
	bob := mustUser(t, l, "Bob")
	carol := mustUser(t, l, "Carol")
	_, err := l.Borrow(b.ID, alice.ID)
	require.NoError(t, err)
	_, err = l.Reserve(b.ID, bob.ID)
	require.NoError(t, err)
	_, err = l.Reserve(b.ID, carol.ID)
	require.NoError(t, err)

	ret, err := l.ReturnBook(b.ID, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusReserved, ret.Status)
	assert.Equal(t, 2, ret.Waiting)

	_, err = l.Borrow(b.ID, alice.ID)
	require.NoError(t, err)
	got, _ := l.Book(b.ID)
	assert.Equal(t, StatusReserved, got.Status, "reserved book is not borrowable directly")

	rec, err := l.ProcessNextReservation(b.ID)
	require.NoError(t, err)
	assert.Equal(t, bob.ID, rec.UserID)
	q, _ := l.Queue(b.ID)
	assert.Equal(t, []int64{carol.ID}, q)

	_, err = l.ProcessNextReservation(b.ID)
	assert.ErrorIs(t, err, ErrInvalidState)
	assertConsistent(t, l)
}

func TestProcessNextReservationEmptyQueue(t *testing.T) {
	l, _ := newTestLibrary(t)
	b := mustBook(t, l, "Dune")
	_, err := l.ProcessNextReservation(b.ID)
	assert.ErrorIs(t, err, ErrQueueEmpty)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCancelReservation(t *testing.T) {
	l, _ := newTestLibrary(t)
	b := mustBook(t, l, "Dune")
	alice := mustUser(t, l, "Alice")
	bob := mustUser(t, l, "Bob")

	err := l.CancelReservation(b.ID, alice.ID)
	assert.ErrorIs(t, err, ErrQueueEmpty)

	_, err = l.Reserve(b.ID, alice.ID)
	require.NoError(t, err)

	err = l.CancelReservation(b.ID, bob.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	q, _ := l.Queue(b.ID)
	assert.Len(t, q, 1, "failed cancel must not change the queue")

	require.NoError(t, l.CancelReservation(b.ID, alice.ID))
	got, _ := l.Book(b.ID)
	assert.Equal(t, StatusAvailable, got.Status)
	assertConsistent(t, l)
}

func TestReturnWithoutRecord(t *testing.T) {
	l, _ := newTestLibrary(t)
	b := mustBook(t, l, "Dune")
	u := mustUser(t, l, "Alice")
	_, err := l.ReturnBook(b.ID, u.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = l.ReturnBook(b.ID+1, u.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUndoLastReturnRestoresLoan(t *testing.T) {
	l, _ := newTestLibrary(t)
	b := mustBook(t, l, "Dune")
	u := mustUser(t, l, "Alice")
	_, err := l.Borrow(b.ID, u.ID)
	require.NoError(t, err)
	_, err = l.ReturnBook(b.ID, u.ID)
	require.NoError(t, err)

	out, err := l.UndoLastReturn()
	require.NoError(t, err)

	assert.True(t, out.Restored)
	got, _ := l.Book(b.ID)
	assert.Equal(t, StatusBorrowed, got.Status)
	_, err = l.LastReturn()
	assert.ErrorIs(t, err, ErrNoRecentReturns)
	assertConsistent(t, l)
}

func TestUndoLastReturnBookInUse(t *testing.T) {
	l, _ := newTestLibrary(t)
	b := mustBook(t, l, "Dune")
	alice := mustUser(t, l, "Alice")
	bob := mustUser(t, l, "Bob")
	_, err := l.Borrow(b.ID, alice.ID)
	require.NoError(t, err)
	_, err = l.ReturnBook(b.ID, alice.ID)
	require.NoError(t, err)
	_, err = l.Borrow(b.ID, bob.ID)
	require.NoError(t, err)

	out, err := l.UndoLastReturn()
	require.NoError(t, err)

	assert.False(t, out.Restored)
	assert.Equal(t, StatusBorrowed, out.Status)
	assert.Equal(t, alice.ID, out.Event.UserID)
	_, err = l.LastReturn()
	assert.ErrorIs(t, err, ErrNoRecentReturns, "the event is consumed")
	assertConsistent(t, l)
}

func TestReturnHistoryEvictsOldest(t *testing.T) {
	l, _ := newTestLibrary(t, WithStackSize(2))
	u := mustUser(t, l, "Alice")
	var books []Book
	for i := 0; i < 3; i++ {
		b := mustBook(t, l, "Book")
		books = append(books, b)
		_, err := l.Borrow(b.ID, u.ID)
		require.NoError(t, err)
		_, err = l.ReturnBook(b.ID, u.ID)
		require.NoError(t, err)
	}

	hist := l.ReturnHistory()
	require.Len(t, hist, 2)
	assert.Equal(t, books[2].ID, hist[0].BookID)
	assert.Equal(t, books[1].ID, hist[1].BookID)
}

func TestAvailabilityReport(t *testing.T) {
	l, _ := newTestLibrary(t)
	b := mustBook(t, l, "Dune")
	alice := mustUser(t, l, "Alice")
	bob := mustUser(t, l, "Bob")
	out, err := l.Borrow(b.ID, alice.ID)
	require.NoError(t, err)
	_, err = l.JoinQueue(b.ID, bob.ID)
	require.NoError(t, err)

	rep, err := l.Availability(b.ID)
	require.NoError(t, err)

	require.NotNil(t, rep.Holder)
	assert.Equal(t, alice.ID, rep.Holder.ID)
	assert.Equal(t, out.Record.DueDate, rep.DueDate)
	assert.Equal(t, 1, rep.QueueLength)
	require.NotNil(t, rep.NextInLine)
	assert.Equal(t, bob.ID, rep.NextInLine.ID)
}

func TestBorrowsByUser(t *testing.T) {
	l, _ := newTestLibrary(t)
	dune := mustBook(t, l, "Dune")
	emma := mustBook(t, l, "Emma")
	u := mustUser(t, l, "Alice")
	_, err := l.Borrow(dune.ID, u.ID)
	require.NoError(t, err)
	_, err = l.Borrow(emma.ID, u.ID)
	require.NoError(t, err)
	_, err = l.ReturnBook(dune.ID, u.ID)
	require.NoError(t, err)

	views, err := l.BorrowsByUser(u.ID)
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, "Dune", views[0].BookTitle)
	assert.True(t, views[0].Record.Returned)
	assert.True(t, views[1].Valid)

	_, err = l.BorrowsByUser(99)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestProcessNextReservationDropsMissingWaiter(t *testing.T) {
	st := State{
		Version:    StateVersion,
		Books:      []Book{{ID: 1, Title: "Dune", Status: StatusReserved}},
		Queues:     map[int64][]int64{1: {5}},
		NextBookID: 2,
	}
	l, err := Import(st)
	require.NoError(t, err)

	_, err = l.ProcessNextReservation(1)
	assert.ErrorIs(t, err, ErrNotFound)

	q, _ := l.Queue(1)
	assert.Empty(t, q)
	got, _ := l.Book(1)
	assert.Equal(t, StatusAvailable, got.Status)
}

func TestUndoLastReturnReopensTheRecordItClosed(t *testing.T) {
	l, clock := newTestLibrary(t)
	b := mustBook(t, l, "Dune")
	alice := mustUser(t, l, "Alice")
	carol := mustUser(t, l, "Carol")
	for i := 0; i < 2; i++ {
		_, err := l.Borrow(b.ID, alice.ID)
		require.NoError(t, err)
		clock.Advance(24 * time.Hour)
		_, err = l.ReturnBook(b.ID, alice.ID)
		require.NoError(t, err)
	}
	first := l.Ledger()[0]

	// The newer return is consumed while carol holds a reservation.
	_, err := l.Reserve(b.ID, carol.ID)
	require.NoError(t, err)
	out, err := l.UndoLastReturn()
	require.NoError(t, err)
	require.False(t, out.Restored)
	require.NoError(t, l.CancelReservation(b.ID, carol.ID))

	out, err = l.UndoLastReturn()
	require.NoError(t, err)

	assert.True(t, out.Restored)
	assert.Equal(t, first.ReturnDate, out.Event.ReturnDate)
	recs := l.Ledger()
	require.Len(t, recs, 2)
	assert.False(t, recs[0].Returned, "the older loan is reopened")
	assert.True(t, recs[1].Returned, "the newer loan stays closed")
	assertConsistent(t, l)
}

func TestJoinQueueRefusesSuspendedUser(t *testing.T) {
	l, clock := newTestLibrary(t)
	b := mustBook(t, l, "Dune")
	alice := mustUser(t, l, "Alice")
	bob := mustUser(t, l, "Bob")
	_, err := l.Borrow(b.ID, alice.ID)
	require.NoError(t, err)
	clock.Advance(LoanPeriod + 24*time.Hour)
	ret, err := l.ReturnBook(b.ID, alice.ID)
	require.NoError(t, err)
	require.True(t, ret.Suspended)
	_, err = l.Reserve(b.ID, bob.ID)
	require.NoError(t, err)
	out, err := l.UndoLastReturn()
	require.NoError(t, err)
	require.False(t, out.Restored)

	_, err = l.JoinQueue(b.ID, alice.ID)

	assert.ErrorIs(t, err, ErrInvalidState)
	q, _ := l.Queue(b.ID)
	assert.Equal(t, []int64{bob.ID}, q)
	rec, err := l.ProcessNextReservation(b.ID)
	require.NoError(t, err)
	assert.Equal(t, bob.ID, rec.UserID)
	assertConsistent(t, l)
}

func TestProcessNextReservationWaiterAtLimit(t *testing.T) {
	l, _ := newTestLibrary(t)
	b := mustBook(t, l, "Dune")
	alice := mustUser(t, l, "Alice")
	bob := mustUser(t, l, "Bob")
	_, err := l.Borrow(b.ID, alice.ID)
	require.NoError(t, err)
	_, err = l.JoinQueue(b.ID, bob.ID)
	require.NoError(t, err)
	for i := 0; i < BorrowLimit; i++ {
		_, err := l.Borrow(mustBook(t, l, "Book").ID, bob.ID)
		require.NoError(t, err)
	}
	_, err = l.ReturnBook(b.ID, alice.ID)
	require.NoError(t, err)
	records := l.ledger.Len()

	_, err = l.ProcessNextReservation(b.ID)

	assert.ErrorIs(t, err, ErrCapacityExceeded)
	q, _ := l.Queue(b.ID)
	assert.Equal(t, []int64{bob.ID}, q, "the waiter keeps their place")
	got, _ := l.Book(b.ID)
	assert.Equal(t, StatusReserved, got.Status)
	assert.Equal(t, records, l.ledger.Len())
	assertConsistent(t, l)
}

func TestUndoLastReturnUserAtLimit(t *testing.T) {
	l, _ := newTestLibrary(t)
	b := mustBook(t, l, "Dune")
	alice := mustUser(t, l, "Alice")
	_, err := l.Borrow(b.ID, alice.ID)
	require.NoError(t, err)
	_, err = l.ReturnBook(b.ID, alice.ID)
	require.NoError(t, err)
	for i := 0; i < BorrowLimit; i++ {
		_, err := l.Borrow(mustBook(t, l, "Book").ID, alice.ID)
		require.NoError(t, err)
	}

	_, err = l.UndoLastReturn()

	assert.ErrorIs(t, err, ErrCapacityExceeded)
	ev, err := l.LastReturn()
	require.NoError(t, err, "the event stays on the stack")
	assert.Equal(t, b.ID, ev.BookID)
	got, _ := l.Book(b.ID)
	assert.Equal(t, StatusAvailable, got.Status)
	assertConsistent(t, l)
}

func TestMaxUsers(t *testing.T) {
	l, _ := newTestLibrary(t, WithMaxUsers(1))
	alice := mustUser(t, l, "Alice")

	_, err := l.AddUser("Bob", "B-1", 40, "M")

	assert.ErrorIs(t, err, ErrAllocation)
	assert.Equal(t, []User{alice}, l.Users())
	assert.Len(t, l.UndoHistory(), 1)
}

func TestUndoUserDeletedIntoFullRegistry(t *testing.T) {
	alice := User{ID: 1, Name: "Alice", Status: UserActive}
	st := State{
		Version:    StateVersion,
		Users:      []User{{ID: 2, Name: "Bob", Status: UserActive}},
		UndoStack:  []SystemAction{{Kind: UserDeleted, User: &alice}},
		NextUserID: 3,
	}
	l, err := Import(st, WithMaxUsers(1))
	require.NoError(t, err)

	_, err = l.Undo()

	assert.ErrorIs(t, err, ErrAllocation)
	assert.Equal(t, st.Users, l.Users())
	assert.Len(t, l.UndoHistory(), 1)
}

func TestMaxQueueLength(t *testing.T) {
	l, _ := newTestLibrary(t, WithMaxQueueLength(1))
	b := mustBook(t, l, "Dune")
	alice := mustUser(t, l, "Alice")
	bob := mustUser(t, l, "Bob")
	carol := mustUser(t, l, "Carol")
	_, err := l.Borrow(b.ID, alice.ID)
	require.NoError(t, err)
	_, err = l.Reserve(b.ID, bob.ID)
	require.NoError(t, err)

	_, err = l.Reserve(b.ID, carol.ID)
	assert.ErrorIs(t, err, ErrAllocation)
	got, _ := l.Book(b.ID)
	assert.Equal(t, StatusBorrowed, got.Status)

	_, err = l.ReturnBook(b.ID, alice.ID)
	require.NoError(t, err)
	_, err = l.JoinQueue(b.ID, carol.ID)
	assert.ErrorIs(t, err, ErrAllocation)
	got, _ = l.Book(b.ID)
	assert.Equal(t, StatusReserved, got.Status)
	q, _ := l.Queue(b.ID)
	assert.Equal(t, []int64{bob.ID}, q)
	assertConsistent(t, l)
}
