package library

import "time"

// AvailabilityReport is the answer to "can I get this book".
type AvailabilityReport struct {
	Book Book
	// Holder and DueDate are set when the book is borrowed.
	Holder  *User
	DueDate time.Time
	// QueueLength counts every waiting user; NextInLine is the front.
	QueueLength int
	NextInLine  *User
}

// Availability reports the book's status, current holder and queue.
func (l *Library) Availability(bookID int64) (AvailabilityReport, error) {
	b, err := l.catalog.Get(bookID)
	if err != nil {
		return AvailabilityReport{}, err
	}
	rep := AvailabilityReport{Book: b, QueueLength: l.queues.Len(bookID)}
	if b.Status == StatusBorrowed {
		if i, ok := l.ledger.Open(bookID); ok {
			rec := l.ledger.At(i)
			rep.DueDate = rec.DueDate
			if u, err := l.users.Get(rec.UserID); err == nil {
				rep.Holder = &u
			}
		}
	}
	if front, ok := l.queues.Peek(bookID); ok {
		if u, err := l.users.Get(front); err == nil {
			rep.NextInLine = &u
		}
	}
	return rep, nil
}

// RecordView is a ledger record joined with the book title and user name.
type RecordView struct {
	Record    BorrowRecord
	BookTitle string
	UserName  string
	// Valid is false when the book or the user no longer exists.
	Valid       bool
	Overdue     bool
	OverdueDays int
}

func (l *Library) view(r BorrowRecord, now time.Time) RecordView {
	v := RecordView{Record: r, Overdue: r.IsOverdue(now), OverdueDays: r.OverdueDays(now)}
	b, berr := l.catalog.Get(r.BookID)
	u, uerr := l.users.Get(r.UserID)
	if berr == nil {
		v.BookTitle = b.Title
	}
	if uerr == nil {
		v.UserName = u.Name
	}
	v.Valid = berr == nil && uerr == nil
	return v
}

// Records returns every ledger record in order.
func (l *Library) Records() []RecordView {
	now := l.now()
	out := make([]RecordView, 0, l.ledger.Len())
	for _, r := range l.ledger.records {
		out = append(out, l.view(r, now))
	}
	return out
}

// Overdue returns the unreturned records past their due date.
func (l *Library) Overdue() []RecordView {
	now := l.now()
	var out []RecordView
	for _, r := range l.ledger.records {
		if r.IsOverdue(now) {
			out = append(out, l.view(r, now))
		}
	}
	return out
}

// BorrowsByUser returns every record belonging to the user.
func (l *Library) BorrowsByUser(userID int64) ([]RecordView, error) {
	if _, err := l.users.Get(userID); err != nil {
		return nil, err
	}
	now := l.now()
	var out []RecordView
	for _, r := range l.ledger.ByUser(userID) {
		out = append(out, l.view(r, now))
	}
	return out, nil
}
