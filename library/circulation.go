package library

import "fmt"

// BorrowOutcome describes what Borrow did.
type BorrowOutcome struct {
	// Borrowed is true when a record was created. When false, Status holds
	// the book's current status and nothing changed; the caller may offer
	// JoinQueue.
	Borrowed bool
	Record   BorrowRecord
	Status   BookStatus
}

// ReserveOutcome describes what Reserve did.
type ReserveOutcome struct {
	// ReservedNow is true when the book was available and went straight to
	// reserved. No borrow record is created in that case.
	ReservedNow bool
	// Position is the user's 1-based place in the queue.
	Position int
}

// ReturnOutcome describes what ReturnBook did.
type ReturnOutcome struct {
	Record    BorrowRecord
	Overdue   bool
	Suspended bool
	// Waiting is the number of users queued for the book after the return.
	Waiting int
	Status  BookStatus
}

// UndoReturnOutcome describes what UndoLastReturn did.
type UndoReturnOutcome struct {
	Event ReturnEvent
	// Restored is true when the loan was reopened. When false the book is
	// held or reserved by someone else; the caller may offer JoinQueue for
	// Event.UserID.
	Restored bool
	Status   BookStatus
}

// lookup returns the stored book and user for in-place updates. Both
// pointers stay valid for the rest of the operation, which never adds or
// removes books or users.
func (l *Library) lookup(bookID, userID int64) (*Book, *User, error) {
	b, err := l.bookRef(bookID)
	if err != nil {
		return nil, nil, err
	}
	u, err := l.userRef(userID)
	if err != nil {
		return nil, nil, err
	}
	return b, u, nil
}

func (l *Library) bookRef(id int64) (*Book, error) {
	if b := l.catalog.ref(id); b != nil {
		return b, nil
	}
	return nil, fmt.Errorf("book %d: %w", id, ErrNotFound)
}

func (l *Library) userRef(id int64) (*User, error) {
	if u := l.users.ref(id); u != nil {
		return u, nil
	}
	return nil, fmt.Errorf("user %d: %w", id, ErrNotFound)
}

func checkActive(u *User) error {
	if u.Status != UserActive {
		return fmt.Errorf("user %d account is %s: %w", u.ID, u.Status, ErrInvalidState)
	}
	return nil
}

func checkCapacity(u *User) error {
	if u.BorrowCount >= BorrowLimit {
		return fmt.Errorf("user %d holds %d books: %w", u.ID, u.BorrowCount, ErrCapacityExceeded)
	}
	return nil
}

func checkEligible(u *User) error {
	if err := checkActive(u); err != nil {
		return err
	}
	return checkCapacity(u)
}

// openLoan appends a record for b and u and marks the book borrowed.
func (l *Library) openLoan(b *Book, u *User) BorrowRecord {
	now := l.now()
	rec := BorrowRecord{
		UserID:     u.ID,
		BookID:     b.ID,
		BorrowDate: now,
		DueDate:    now.Add(LoanPeriod),
	}
	l.ledger.Append(rec)
	b.Status = StatusBorrowed
	u.BorrowCount++
	return rec
}

// releaseIfIdle makes a reserved book available once nobody is queued for it.
func (l *Library) releaseIfIdle(b *Book) {
	if b.Status == StatusReserved && l.queues.Len(b.ID) == 0 {
		b.Status = StatusAvailable
	}
}

// Borrow checks the book out to the user when it is available. A borrowed or
// reserved book is left untouched and reported through the outcome.
func (l *Library) Borrow(bookID, userID int64) (BorrowOutcome, error) {
	b, u, err := l.lookup(bookID, userID)
	if err != nil {
		return BorrowOutcome{}, err
	}
	if err := checkEligible(u); err != nil {
		l.logger.Debug("borrow refused", "book_id", bookID, "user_id", userID, "err", err)
		return BorrowOutcome{}, err
	}
	if b.Status != StatusAvailable {
		return BorrowOutcome{Status: b.Status}, nil
	}
	rec := l.openLoan(b, u)
	l.browsing.Push(b.ID)
	l.logger.Info("book borrowed", "book_id", bookID, "user_id", userID, "due", rec.DueDate)
	return BorrowOutcome{Borrowed: true, Record: rec, Status: StatusBorrowed}, nil
}

// JoinQueue puts an active user at the tail of an unavailable book's queue
// and returns the 1-based position. Suspended and expired users are refused
// with ErrInvalidState, as in Borrow and Reserve.
func (l *Library) JoinQueue(bookID, userID int64) (int, error) {
	b, u, err := l.lookup(bookID, userID)
	if err != nil {
		return 0, err
	}
	if err := checkEligible(u); err != nil {
		l.logger.Debug("join queue refused", "book_id", bookID, "user_id", userID, "err", err)
		return 0, err
	}
	if b.Status == StatusAvailable {
		return 0, fmt.Errorf("book %d is available, borrow it instead: %w", bookID, ErrInvalidState)
	}
	if l.queues.Contains(bookID, userID) {
		return 0, ErrAlreadyQueued
	}
	if err := l.queues.Enqueue(bookID, userID); err != nil {
		return 0, err
	}
	pos := l.queues.Len(bookID)
	l.logger.Info("user queued", "book_id", bookID, "user_id", userID, "position", pos)
	return pos, nil
}

// Reserve queues the user for the book. Reserving an available book moves
// it straight to reserved without a borrow record; the user becomes the
// front of the queue and gets the book through ProcessNextReservation.
func (l *Library) Reserve(bookID, userID int64) (ReserveOutcome, error) {
	b, u, err := l.lookup(bookID, userID)
	if err != nil {
		return ReserveOutcome{}, err
	}
	if err := checkEligible(u); err != nil {
		l.logger.Debug("reserve refused", "book_id", bookID, "user_id", userID, "err", err)
		return ReserveOutcome{}, err
	}
	if l.queues.Contains(bookID, userID) {
		return ReserveOutcome{}, ErrAlreadyQueued
	}
	if err := l.queues.Enqueue(bookID, userID); err != nil {
		return ReserveOutcome{}, err
	}
	if b.Status == StatusAvailable {
		b.Status = StatusReserved
		l.logger.Info("book reserved", "book_id", bookID, "user_id", userID)
		return ReserveOutcome{ReservedNow: true, Position: l.queues.Len(bookID)}, nil
	}
	pos := l.queues.Len(bookID)
	l.logger.Info("user queued", "book_id", bookID, "user_id", userID, "position", pos)
	return ReserveOutcome{Position: pos}, nil
}

// CancelReservation removes the user's first entry from the book's queue.
// A reserved book whose queue empties becomes available.
func (l *Library) CancelReservation(bookID, userID int64) error {
	b, err := l.bookRef(bookID)
	if err != nil {
		return err
	}
	if l.queues.Len(bookID) == 0 {
		return fmt.Errorf("book %d: %w", bookID, ErrQueueEmpty)
	}
	if !l.queues.Remove(bookID, userID) {
		return fmt.Errorf("user %d is not queued for book %d: %w", userID, bookID, ErrNotFound)
	}
	l.releaseIfIdle(b)
	l.logger.Info("reservation cancelled", "book_id", bookID, "user_id", userID)
	return nil
}

// ReturnBook closes the user's open record for the book. A late return
// suspends the user. The book becomes reserved if anyone is queued,
// available otherwise, and the return is pushed onto the return history.
func (l *Library) ReturnBook(bookID, userID int64) (ReturnOutcome, error) {
	b, u, err := l.lookup(bookID, userID)
	if err != nil {
		return ReturnOutcome{}, err
	}
	i, ok := l.ledger.OpenFor(bookID, userID)
	if !ok {
		return ReturnOutcome{}, fmt.Errorf("user %d has not borrowed book %d: %w", userID, bookID, ErrNotFound)
	}
	now := l.now()
	rec := l.ledger.markReturned(i, now)
	out := ReturnOutcome{Record: rec, Overdue: now.After(rec.DueDate)}
	if out.Overdue && u.Status != UserSuspended {
		u.Status = UserSuspended
		out.Suspended = true
	}
	if u.BorrowCount > 0 {
		u.BorrowCount--
	}

	out.Waiting = l.queues.Len(bookID)
	if out.Waiting > 0 {
		b.Status = StatusReserved
	} else {
		b.Status = StatusAvailable
	}
	out.Status = b.Status

	l.returns.Push(ReturnEvent{BookID: bookID, UserID: userID, ReturnDate: now})
	l.logger.Info("book returned", "book_id", bookID, "user_id", userID, "overdue", out.Overdue, "status", b.Status)
	return out, nil
}

// ProcessNextReservation lends an available or reserved book to the front of
// its queue.
func (l *Library) ProcessNextReservation(bookID int64) (BorrowRecord, error) {
	b, err := l.bookRef(bookID)
	if err != nil {
		return BorrowRecord{}, err
	}
	if b.Status != StatusAvailable && b.Status != StatusReserved {
		return BorrowRecord{}, fmt.Errorf("book %d is %s: %w", bookID, b.Status, ErrInvalidState)
	}
	next, ok := l.queues.Peek(bookID)
	if !ok {
		return BorrowRecord{}, fmt.Errorf("book %d: %w", bookID, ErrQueueEmpty)
	}
	u, err := l.userRef(next)
	if err != nil {
		// A waiter that no longer exists is dropped from the queue.
		l.queues.Dequeue(bookID)
		l.releaseIfIdle(b)
		return BorrowRecord{}, err
	}
	if err := checkCapacity(u); err != nil {
		return BorrowRecord{}, err
	}
	l.queues.Dequeue(bookID)
	rec := l.openLoan(b, u)
	l.logger.Info("reservation processed", "book_id", bookID, "user_id", u.ID, "due", rec.DueDate)
	return rec, nil
}

// LastReturn returns the most recent return without removing it.
func (l *Library) LastReturn() (ReturnEvent, error) {
	ev, ok := l.returns.Peek()
	if !ok {
		return ReturnEvent{}, ErrNoRecentReturns
	}
	return ev, nil
}

// UndoLastReturn reopens the loan closed by the most recent return if the
// book is still available. If someone else holds or has reserved it, nothing
// is reopened and the outcome says so. The event is popped unless the user
// is at the borrow limit.
func (l *Library) UndoLastReturn() (UndoReturnOutcome, error) {
	ev, ok := l.returns.Peek()
	if !ok {
		return UndoReturnOutcome{}, ErrNoRecentReturns
	}
	out := UndoReturnOutcome{Event: ev}

	b, err := l.bookRef(ev.BookID)
	if err != nil {
		l.returns.Pop()
		return out, err
	}
	out.Status = b.Status
	if b.Status != StatusAvailable {
		l.returns.Pop()
		l.logger.Info("undo return skipped, book in use", "book_id", ev.BookID, "status", b.Status)
		return out, nil
	}

	i, ok := l.ledger.ReturnedAt(ev.BookID, ev.UserID, ev.ReturnDate)
	if !ok {
		l.returns.Pop()
		return out, fmt.Errorf("no returned record for book %d and user %d: %w", ev.BookID, ev.UserID, ErrNotFound)
	}
	u, err := l.userRef(ev.UserID)
	if err != nil {
		l.returns.Pop()
		return out, err
	}
	if err := checkCapacity(u); err != nil {
		return out, err
	}

	l.ledger.reopen(i)
	b.Status = StatusBorrowed
	u.BorrowCount++
	l.returns.Pop()

	out.Restored = true
	out.Status = StatusBorrowed
	l.logger.Info("return undone", "book_id", ev.BookID, "user_id", ev.UserID)
	return out, nil
}
