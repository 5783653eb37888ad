package library

import (
	"fmt"
	"strings"
	"time"
)

const (
	// BorrowLimit is the maximum number of unreturned records a user may hold.
	BorrowLimit = 10
	// LoanPeriod is added to the borrow date to compute the due date.
	LoanPeriod = 14 * 24 * time.Hour
	// MaxStackSize caps the return history, browsing history and undo stack.
	MaxStackSize = 100
)

// Maximum text lengths accepted at the input boundary. Longer input is truncated.
const (
	MaxTitleLength  = 100
	MaxAuthorLength = 50
	MaxISBNLength   = 20
	MaxNameLength   = 50
	MaxUserIDLength = 20
)

// BookStatus is the circulation state of a book.
type BookStatus string

const (
	StatusAvailable BookStatus = "available"
	StatusBorrowed  BookStatus = "borrowed"
	StatusReserved  BookStatus = "reserved"
)

func (s BookStatus) String() string {
	switch s {
	case StatusAvailable:
		return "Available"
	case StatusBorrowed:
		return "Borrowed"
	case StatusReserved:
		return "Reserved"
	}
	return string(s)
}

// UserStatus is the account state of a user.
type UserStatus string

const (
	UserActive    UserStatus = "active"
	UserSuspended UserStatus = "suspended"
	UserExpired   UserStatus = "expired"
)

func (s UserStatus) String() string {
	switch s {
	case UserActive:
		return "Active"
	case UserSuspended:
		return "Suspended"
	case UserExpired:
		return "Expired"
	}
	return string(s)
}

// ParseUserStatus accepts a status name in any case.
func ParseUserStatus(s string) (UserStatus, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "active", "1":
		return UserActive, nil
	case "suspended", "2":
		return UserSuspended, nil
	case "expired", "3":
		return UserExpired, nil
	}
	return "", fmt.Errorf("unknown user status %q", s)
}

// Book is a catalog entry.
type Book struct {
	ID     int64      `json:"id"`
	Title  string     `json:"title"`
	Author string     `json:"author"`
	ISBN   string     `json:"isbn"`
	Status BookStatus `json:"status"`
}

// User is a registered library user.
type User struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	UserID      string     `json:"user_id"`
	Age         int        `json:"age"`
	Gender      string     `json:"gender"`
	Status      UserStatus `json:"status"`
	BorrowCount int        `json:"borrow_count"`
}

// CanBorrow reports whether the user may open another loan.
func (u User) CanBorrow() bool {
	return u.Status == UserActive && u.BorrowCount < BorrowLimit
}

// BorrowRecord is one loan in the ledger. Records are never deleted.
type BorrowRecord struct {
	UserID     int64     `json:"user_id"`
	BookID     int64     `json:"book_id"`
	BorrowDate time.Time `json:"borrow_date"`
	DueDate    time.Time `json:"due_date"`
	Returned   bool      `json:"returned"`
	ReturnDate time.Time `json:"return_date"`
}

// IsOverdue reports whether an open record is past its due date at now.
func (r BorrowRecord) IsOverdue(now time.Time) bool {
	return !r.Returned && now.After(r.DueDate)
}

// OverdueDays returns whole days past due, or 0.
func (r BorrowRecord) OverdueDays(now time.Time) int {
	if !r.IsOverdue(now) {
		return 0
	}
	return int(now.Sub(r.DueDate) / (24 * time.Hour))
}

// ReturnEvent is an entry in the return history.
type ReturnEvent struct {
	BookID     int64     `json:"book_id"`
	UserID     int64     `json:"user_id"`
	ReturnDate time.Time `json:"return_date"`
}

// ActionKind tags a SystemAction.
type ActionKind string

const (
	UserAdded   ActionKind = "user_added"
	UserDeleted ActionKind = "user_deleted"
	BookAdded   ActionKind = "book_added"
	BookDeleted ActionKind = "book_deleted"
)

// SystemAction is an undoable catalog or registry mutation. Book and User
// point at private copies taken when the action was recorded.
type SystemAction struct {
	Kind ActionKind `json:"kind"`
	Book *Book      `json:"book,omitempty"`
	User *User      `json:"user,omitempty"`
	At   time.Time  `json:"at"`
}

// BookEdit carries optional book field updates. Empty strings keep the
// current value.
type BookEdit struct {
	Title  string
	Author string
	ISBN   string
}

// UserEdit carries optional user field updates. Empty strings and nil
// pointers keep the current value.
type UserEdit struct {
	Name   string
	UserID string
	Age    *int
	Gender string
	Status *UserStatus
}

// clip trims s and truncates it to at most n runes.
func clip(s string, n int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
