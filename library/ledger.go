package library

import "time"

// Ledger is the append-only list of borrow records. It is the source of
// truth for who holds which book. There is no delete.
type Ledger struct {
	records []BorrowRecord
}

// Len returns the number of records.
func (l *Ledger) Len() int { return len(l.records) }

// Append adds r and returns its index.
func (l *Ledger) Append(r BorrowRecord) int {
	l.records = append(l.records, r)
	return len(l.records) - 1
}

// At returns a copy of the record at i.
func (l *Ledger) At(i int) BorrowRecord { return l.records[i] }

// Open returns the index of the unreturned record for the book.
func (l *Ledger) Open(bookID int64) (int, bool) {
	for i := range l.records {
		if l.records[i].BookID == bookID && !l.records[i].Returned {
			return i, true
		}
	}
	return -1, false
}

// OpenFor returns the index of the unreturned record for the book held by the user.
func (l *Ledger) OpenFor(bookID, userID int64) (int, bool) {
	for i := range l.records {
		r := &l.records[i]
		if r.BookID == bookID && r.UserID == userID && !r.Returned {
			return i, true
		}
	}
	return -1, false
}

// LastReturned returns the index of the most recently appended returned
// record for the book and user.
func (l *Ledger) LastReturned(bookID, userID int64) (int, bool) {
	for i := len(l.records) - 1; i >= 0; i-- {
		r := &l.records[i]
		if r.BookID == bookID && r.UserID == userID && r.Returned {
			return i, true
		}
	}
	return -1, false
}

// ReturnedAt returns the index of the returned record for the book and user
// closed at the given time. Without an exact match it falls back to
// LastReturned.
func (l *Ledger) ReturnedAt(bookID, userID int64, at time.Time) (int, bool) {
	for i := len(l.records) - 1; i >= 0; i-- {
		r := &l.records[i]
		if r.BookID == bookID && r.UserID == userID && r.Returned && r.ReturnDate.Equal(at) {
			return i, true
		}
	}
	return l.LastReturned(bookID, userID)
}

// HasOpen reports whether the user holds any unreturned record.
func (l *Ledger) HasOpen(userID int64) bool {
	for i := range l.records {
		if l.records[i].UserID == userID && !l.records[i].Returned {
			return true
		}
	}
	return false
}

// OpenCount returns the number of unreturned records for the book.
func (l *Ledger) OpenCount(bookID int64) int {
	n := 0
	for i := range l.records {
		if l.records[i].BookID == bookID && !l.records[i].Returned {
			n++
		}
	}
	return n
}

func (l *Ledger) markReturned(i int, at time.Time) BorrowRecord {
	l.records[i].Returned = true
	l.records[i].ReturnDate = at
	return l.records[i]
}

func (l *Ledger) reopen(i int) BorrowRecord {
	l.records[i].Returned = false
	l.records[i].ReturnDate = time.Time{}
	return l.records[i]
}

// ByUser returns the user's records in ledger order.
func (l *Ledger) ByUser(userID int64) []BorrowRecord {
	var out []BorrowRecord
	for _, r := range l.records {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out
}

// All returns a copy of every record in ledger order.
func (l *Ledger) All() []BorrowRecord {
	out := make([]BorrowRecord, len(l.records))
	copy(out, l.records)
	return out
}
