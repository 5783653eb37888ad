package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"library-circulation/library"
)

func TestImportBooks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "import.db")
	manager, err := library.NewLibraryManager(path)
	if err != nil {
		t.Fatalf("mgr: %v", err)
	}
	defer manager.Close()

	csvData := strings.Join([]string{
		"title,author,isbn",
		"1984,George Orwell,978-0451524935",
		`"The Art of War",Sun Tzu`,
		",Nobody,000",
		"Emma",
	}, "\n")

	var out bytes.Buffer
	if err := importBooks(context.Background(), &out, manager, strings.NewReader(csvData)); err != nil {
		t.Fatalf("import: %v", err)
	}
	if !strings.Contains(out.String(), "Successfully imported: 3 books") {
		t.Fatalf("summary:\n%s", out.String())
	}
	if !strings.Contains(out.String(), "Errors: 1") {
		t.Fatalf("summary:\n%s", out.String())
	}

	revs, err := manager.Revisions(context.Background())
	if err != nil || len(revs) != 1 || revs[0].Books != 3 {
		t.Fatalf("revisions = %+v, %v", revs, err)
	}
	manager.View(func(l *library.Library) {
		b, err := l.FindBookByTitle("Art of War")
		if err != nil {
			t.Fatalf("find: %v", err)
		}
		if b.Author != "Sun Tzu" || b.ISBN != "" {
			t.Fatalf("book = %+v", b)
		}
	})
}
