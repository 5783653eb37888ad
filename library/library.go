package library

import (
	"errors"
	"io"
	"log/slog"
	"time"
)

// UndoPolicy decides what Undo does with the entry it just reversed.
type UndoPolicy int

const (
	// UndoKeep leaves the reversed entry on the stack.
	UndoKeep UndoPolicy = iota
	// UndoPop removes the entry once its inverse succeeded.
	UndoPop
)

// Library is the single context value holding all circulation state: the
// catalog, the user registry, reservation queues, the borrow ledger and the
// bounded history stacks. It is the only component that mutates more than
// one of them in one call. A Library is not safe for concurrent use.
type Library struct {
	catalog  *Catalog
	users    *Registry
	queues   *Queues
	ledger   *Ledger
	returns  *BoundedStack[ReturnEvent]
	browsing *BoundedStack[int64]
	undo     *BoundedStack[SystemAction]
	sections Section

	nextBookID int64

	now        func() time.Time
	logger     *slog.Logger
	undoPolicy UndoPolicy
	stackSize  int
	maxBooks   int
	maxUsers   int
	maxQueue   int
}

// Option configures a Library.
type Option func(*Library) error

var errNegativeLimit = errors.New("limit must not be negative")

// WithClock sets the time source used for borrow, due and return dates.
func WithClock(now func() time.Time) Option {
	return func(l *Library) error {
		if now == nil {
			return errors.New("clock must not be nil")
		}
		l.now = now
		return nil
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Library) error {
		if logger != nil {
			l.logger = logger
		}
		return nil
	}
}

// WithUndoPolicy sets whether Undo pops the entry it reversed.
func WithUndoPolicy(p UndoPolicy) Option {
	return func(l *Library) error {
		l.undoPolicy = p
		return nil
	}
}

// WithStackSize overrides MaxStackSize for all bounded stacks.
func WithStackSize(n int) Option {
	return func(l *Library) error {
		if n < 0 {
			return errNegativeLimit
		}
		l.stackSize = n
		return nil
	}
}

// WithMaxBooks caps the catalog size. Zero means unbounded.
func WithMaxBooks(n int) Option {
	return func(l *Library) error {
		if n < 0 {
			return errNegativeLimit
		}
		l.maxBooks = n
		return nil
	}
}

// WithMaxUsers caps the registry size. Zero means unbounded.
func WithMaxUsers(n int) Option {
	return func(l *Library) error {
		if n < 0 {
			return errNegativeLimit
		}
		l.maxUsers = n
		return nil
	}
}

// WithMaxQueueLength caps each reservation queue. Zero means unbounded.
func WithMaxQueueLength(n int) Option {
	return func(l *Library) error {
		if n < 0 {
			return errNegativeLimit
		}
		l.maxQueue = n
		return nil
	}
}

// New returns an empty library with the default section layout.
func New(opts ...Option) (*Library, error) {
	l := &Library{
		now:        time.Now,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		nextBookID: 1,
		sections:   DefaultSections(),
	}
	for _, opt := range opts {
		if err := opt(l); err != nil {
			return nil, err
		}
	}
	l.catalog = NewCatalog()
	l.catalog.max = l.maxBooks
	l.users = NewRegistry()
	l.users.max = l.maxUsers
	l.queues = NewQueues()
	l.queues.max = l.maxQueue
	l.ledger = &Ledger{}
	l.returns = NewBoundedStack[ReturnEvent](l.stackSize)
	l.browsing = NewBoundedStack[int64](l.stackSize)
	l.undo = NewBoundedStack[SystemAction](l.stackSize)
	return l, nil
}

// Now returns the library clock's current time.
func (l *Library) Now() time.Time { return l.now() }

// ------------------ Lookups ------------------

// Book returns the book with the given id.
func (l *Library) Book(id int64) (Book, error) { return l.catalog.Get(id) }

// FindBookByTitle returns the first book, in catalog pre-order, whose title contains text.
func (l *Library) FindBookByTitle(text string) (Book, error) { return l.catalog.FindByTitle(text) }

// Books returns every book in ascending id order.
func (l *Library) Books() []Book { return l.catalog.All() }

// User returns the user with the given id.
func (l *Library) User(id int64) (User, error) { return l.users.Get(id) }

// FindUserByName returns the first user whose name matches exactly.
func (l *Library) FindUserByName(name string) (User, error) { return l.users.FindByName(name) }

// Users returns every user in registration order.
func (l *Library) Users() []User { return l.users.All() }

// Ledger returns every borrow record in ledger order.
func (l *Library) Ledger() []BorrowRecord { return l.ledger.All() }

// Queue returns the user ids waiting for the book, front first.
func (l *Library) Queue(bookID int64) ([]int64, error) {
	if _, err := l.catalog.Get(bookID); err != nil {
		return nil, err
	}
	return l.queues.Snapshot(bookID), nil
}

// ReturnHistory returns recent returns, newest first.
func (l *Library) ReturnHistory() []ReturnEvent { return l.returns.Items() }

// UndoHistory returns recorded system actions, newest first.
func (l *Library) UndoHistory() []SystemAction {
	items := l.undo.Items()
	for i := range items {
		items[i] = items[i].clone()
	}
	return items
}

// BrowsingHistory returns recently borrowed book ids, newest first.
func (l *Library) BrowsingHistory() []int64 { return l.browsing.Items() }

// PopBrowsing removes and returns the most recently borrowed book id.
func (l *Library) PopBrowsing() (int64, bool) { return l.browsing.Pop() }

// Sections returns a copy of the section tree.
func (l *Library) Sections() Section { return l.sections.clone() }

// AddSection adds a section under parent.
func (l *Library) AddSection(name, parent string) error {
	if err := l.sections.AddChild(parent, name); err != nil {
		return err
	}
	l.logger.Info("section added", "name", name, "parent", parent)
	return nil
}

// OpenLoans returns the number of unreturned records.
func (l *Library) OpenLoans() int {
	n := 0
	for _, r := range l.ledger.records {
		if !r.Returned {
			n++
		}
	}
	return n
}
