package library

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func newManager(t *testing.T, opts ...Option) (*LibraryManager, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lib.db")
	mgr, err := NewLibraryManager(path, opts...)
	if err != nil {
		t.Fatalf("mgr: %v", err)
	}
	t.Cleanup(func() { mgr.Close() })
	return mgr, path
}

func TestManagerSaveAndReopen(t *testing.T) {
	mgr, path := newManager(t)
	b, err := mgr.AddBook("Dune", "Frank Herbert", "978-0441013593")
	if err != nil {
		t.Fatalf("add book: %v", err)
	}
	u, err := mgr.AddUser("Alice", "A-1", 30, "F")
	if err != nil {
		t.Fatalf("add user: %v", err)
	}
	if _, err := mgr.Borrow(b.ID, u.ID); err != nil {
		t.Fatalf("borrow: %v", err)
	}
	if _, err := mgr.Save(context.Background()); err != nil {
		t.Fatalf("save: %v", err)
	}
	mgr.Close()

	again, err := NewLibraryManager(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer again.Close()

	again.View(func(l *Library) {
		got, err := l.Book(b.ID)
		if err != nil {
			t.Fatalf("get book: %v", err)
		}
		if got.Status != StatusBorrowed {
			t.Fatalf("status = %s", got.Status)
		}
		if l.OpenLoans() != 1 {
			t.Fatalf("open loans = %d", l.OpenLoans())
		}
	})
}

func TestManagerAutosave(t *testing.T) {
	mgr, path := newManager(t)
	mgr.SetAutosave(true)
	if _, err := mgr.AddBook("Emma", "Jane Austen", ""); err != nil {
		t.Fatalf("add: %v", err)
	}
	revs, err := mgr.Revisions(context.Background())
	if err != nil {
		t.Fatalf("revisions: %v", err)
	}
	if len(revs) != 1 {
		t.Fatalf("want 1 revision, got %d", len(revs))
	}

	// A failed mutation is not saved.
	if err := mgr.DeleteBook(99); !errors.Is(err, ErrNotFound) {
		t.Fatalf("delete missing: %v", err)
	}
	revs, _ = mgr.Revisions(context.Background())
	if len(revs) != 1 {
		t.Fatalf("failed delete was saved: %d revisions", len(revs))
	}

	db, err := NewDatabase(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()
	st, found, err := db.Load(context.Background())
	if err != nil || !found || len(st.Books) != 1 {
		t.Fatalf("load: found=%v err=%v books=%d", found, err, len(st.Books))
	}
}

func TestManagerAutosaveFailureKeepsResult(t *testing.T) {
	mgr, _ := newManager(t)
	mgr.SetAutosave(true)
	mgr.db.Close()

	b, err := mgr.AddBook("Emma", "Jane Austen", "")
	if err != nil {
		t.Fatalf("add book reported %v although it was applied", err)
	}
	mgr.View(func(l *Library) {
		if _, err := l.Book(b.ID); err != nil {
			t.Fatalf("book missing after add: %v", err)
		}
	})
	if err := mgr.AutosaveError(); err == nil {
		t.Fatalf("autosave failure was not reported")
	}
	if err := mgr.AutosaveError(); err != nil {
		t.Fatalf("autosave error not cleared: %v", err)
	}
}

func TestManagerReloadDiscardsUnsaved(t *testing.T) {
	mgr, _ := newManager(t)
	if _, err := mgr.AddUser("Alice", "A-1", 30, "F"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := mgr.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	mgr.View(func(l *Library) {
		if len(l.Users()) != 0 {
			t.Fatalf("unsaved user survived reload")
		}
	})
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"short", 10, "short"},
		{"exactly ten", 11, "exactly ten"},
		{"a long title here", 10, "a long ..."},
		{"abcdef", 3, "abc"},
		{"ÄÖÜäöü", 5, "ÄÖ..."},
	}
	for _, tt := range tests {
		if got := Truncate(tt.in, tt.n); got != tt.want {
			t.Fatalf("Truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}
