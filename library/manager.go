package library

import (
	"context"
	"fmt"
	"sync"
)

// LibraryManager is a thin façade over a Library and the Database that
// persists it, keeping CLI code simple. It serializes access, counts every
// operation in Metrics and, with autosave on, writes a snapshot after each
// successful mutation.
type LibraryManager struct {
	mu       sync.Mutex
	lib      *Library
	db       *Database
	metrics  *Metrics
	opts     []Option
	autosave bool
	// saveErr holds the last autosave failure until AutosaveError reads it.
	saveErr error
}

// NewLibraryManager opens (or creates) the SQLite database at dbPath and
// restores the last saved library, or starts an empty one.
func NewLibraryManager(dbPath string, opts ...Option) (*LibraryManager, error) {
	db, err := NewDatabase(dbPath)
	if err != nil {
		return nil, err
	}
	lm := &LibraryManager{db: db, metrics: NewMetrics(), opts: opts}
	if err := lm.Load(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return lm, nil
}

// Close closes the underlying database.
func (lm *LibraryManager) Close() error { return lm.db.Close() }

// SetAutosave turns saving after every successful mutation on or off.
func (lm *LibraryManager) SetAutosave(on bool) {
	lm.mu.Lock()
	lm.autosave = on
	lm.mu.Unlock()
}

// Metrics returns the operation counters.
func (lm *LibraryManager) Metrics() *Metrics { return lm.metrics }

// View runs fn with exclusive read access to the library. fn must not keep l.
func (lm *LibraryManager) View(fn func(l *Library)) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	fn(lm.lib)
}

// mutate runs fn under the lock and records the outcome. The returned error
// is fn's alone; an autosave failure after a successful fn is kept for
// AutosaveError.
func (lm *LibraryManager) mutate(op string, fn func(l *Library) error) error {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	err := fn(lm.lib)
	lm.metrics.Observe(op, err)
	lm.metrics.Refresh(lm.lib)
	if err != nil || !lm.autosave {
		return err
	}
	if _, serr := lm.saveLocked(context.Background()); serr != nil {
		lm.lib.logger.Error("autosave failed", "op", op, "err", serr)
		lm.saveErr = fmt.Errorf("autosave after %s failed: %w", op, serr)
	}
	return nil
}

// AutosaveError returns and clears the last autosave failure.
func (lm *LibraryManager) AutosaveError() error {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	err := lm.saveErr
	lm.saveErr = nil
	return err
}

// ------------------ Persistence ------------------

// Save writes the current library and returns the revision id.
func (lm *LibraryManager) Save(ctx context.Context) (string, error) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	return lm.saveLocked(ctx)
}

func (lm *LibraryManager) saveLocked(ctx context.Context) (string, error) {
	rev, err := lm.db.Save(ctx, lm.lib.Export())
	lm.metrics.Observe("save", err)
	if err != nil {
		return "", err
	}
	lm.lib.logger.Info("library saved", "revision", rev, "books", lm.lib.catalog.Len(), "users", lm.lib.users.Len())
	return rev, nil
}

// Load replaces the in-memory library with the last saved one. With nothing
// saved yet it starts from an empty library.
func (lm *LibraryManager) Load(ctx context.Context) error {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	st, found, err := lm.db.Load(ctx)
	lm.metrics.Observe("load", err)
	if err != nil {
		return err
	}
	var lib *Library
	if found {
		lib, err = Import(st, lm.opts...)
	} else {
		lib, err = New(lm.opts...)
	}
	if err != nil {
		return err
	}
	lm.lib = lib
	lm.metrics.Refresh(lib)
	lib.logger.Info("library loaded", "found", found, "books", lib.catalog.Len(), "users", lib.users.Len())
	return nil
}

// Revisions lists saved snapshots, newest first.
func (lm *LibraryManager) Revisions(ctx context.Context) ([]Revision, error) {
	return lm.db.Revisions(ctx)
}

// ------------------ Book helpers ------------------

func (lm *LibraryManager) AddBook(title, author, isbn string) (b Book, err error) {
	err = lm.mutate("add_book", func(l *Library) error {
		b, err = l.AddBook(title, author, isbn)
		return err
	})
	return b, err
}

func (lm *LibraryManager) EditBook(id int64, e BookEdit) (b Book, err error) {
	err = lm.mutate("edit_book", func(l *Library) error {
		b, err = l.EditBook(id, e)
		return err
	})
	return b, err
}

func (lm *LibraryManager) DeleteBook(id int64) error {
	return lm.mutate("delete_book", func(l *Library) error { return l.DeleteBook(id) })
}

func (lm *LibraryManager) AddSection(name, parent string) error {
	return lm.mutate("add_section", func(l *Library) error { return l.AddSection(name, parent) })
}

// ------------------ User helpers ------------------

func (lm *LibraryManager) AddUser(name, userID string, age int, gender string) (u User, err error) {
	err = lm.mutate("add_user", func(l *Library) error {
		u, err = l.AddUser(name, userID, age, gender)
		return err
	})
	return u, err
}

func (lm *LibraryManager) EditUser(id int64, e UserEdit) (u User, err error) {
	err = lm.mutate("edit_user", func(l *Library) error {
		u, err = l.EditUser(id, e)
		return err
	})
	return u, err
}

func (lm *LibraryManager) DeleteUser(id int64) error {
	return lm.mutate("delete_user", func(l *Library) error { return l.DeleteUser(id) })
}

// Undo reverses the most recent catalog or registry action.
func (lm *LibraryManager) Undo() (a SystemAction, err error) {
	err = lm.mutate("undo", func(l *Library) error {
		a, err = l.Undo()
		return err
	})
	return a, err
}

// ------------------ Circulation ------------------

func (lm *LibraryManager) Borrow(bookID, userID int64) (out BorrowOutcome, err error) {
	err = lm.mutate("borrow", func(l *Library) error {
		out, err = l.Borrow(bookID, userID)
		return err
	})
	return out, err
}

func (lm *LibraryManager) JoinQueue(bookID, userID int64) (pos int, err error) {
	err = lm.mutate("join_queue", func(l *Library) error {
		pos, err = l.JoinQueue(bookID, userID)
		return err
	})
	return pos, err
}

func (lm *LibraryManager) Reserve(bookID, userID int64) (out ReserveOutcome, err error) {
	err = lm.mutate("reserve", func(l *Library) error {
		out, err = l.Reserve(bookID, userID)
		return err
	})
	return out, err
}

func (lm *LibraryManager) CancelReservation(bookID, userID int64) error {
	return lm.mutate("cancel_reservation", func(l *Library) error {
		return l.CancelReservation(bookID, userID)
	})
}

func (lm *LibraryManager) ReturnBook(bookID, userID int64) (out ReturnOutcome, err error) {
	err = lm.mutate("return", func(l *Library) error {
		out, err = l.ReturnBook(bookID, userID)
		return err
	})
	return out, err
}

func (lm *LibraryManager) ProcessNextReservation(bookID int64) (rec BorrowRecord, err error) {
	err = lm.mutate("process_reservation", func(l *Library) error {
		rec, err = l.ProcessNextReservation(bookID)
		return err
	})
	return rec, err
}

func (lm *LibraryManager) UndoLastReturn() (out UndoReturnOutcome, err error) {
	err = lm.mutate("undo_return", func(l *Library) error {
		out, err = l.UndoLastReturn()
		return err
	})
	return out, err
}

// PopBrowsing removes the most recent entry from the browsing history.
func (lm *LibraryManager) PopBrowsing() (id int64, ok bool) {
	_ = lm.mutate("pop_browsing", func(l *Library) error {
		id, ok = l.PopBrowsing()
		if !ok {
			return ErrNotFound
		}
		return nil
	})
	return id, ok
}

// ------------------ Utilities ------------------

// PrettyBook formats a book for lists.
func PrettyBook(b Book, holder string) string {
	return fmt.Sprintf("%-5d %-30s %-20s %-15s %-10s %-20s",
		b.ID, Truncate(b.Title, 30), Truncate(b.Author, 20), Truncate(b.ISBN, 15), b.Status, Truncate(holder, 20))
}

// PrettyUser formats a user for lists.
func PrettyUser(u User) string {
	return fmt.Sprintf("%-5d %-20s %-12s %-4d %-2s %-10s %d/%d",
		u.ID, Truncate(u.Name, 20), Truncate(u.UserID, 12), u.Age, u.Gender, u.Status, u.BorrowCount, BorrowLimit)
}

// Truncate shortens s to maxLen runes, ending in "..." when cut.
func Truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
