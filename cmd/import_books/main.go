package main

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"library-circulation/library"
)

func main() {
	if err := newImportCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newImportCmd() *cobra.Command {
	var (
		dbPath string
		file   string
	)
	cmd := &cobra.Command{
		Use:          "import_books",
		Short:        "Import books from a title,author,isbn CSV file into the library database",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := os.Open(file)
			if err != nil {
				return err
			}
			defer f.Close()

			manager, err := library.NewLibraryManager(dbPath)
			if err != nil {
				return fmt.Errorf("opening database: %w", err)
			}
			defer manager.Close()

			return importBooks(cmd.Context(), cmd.OutOrStdout(), manager, f)
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "library.db", "path to the SQLite snapshot database")
	cmd.Flags().StringVar(&file, "file", "books.csv", "CSV file with title,author,isbn rows")
	return cmd
}

// importBooks adds every CSV row as a book and saves one snapshot at the end.
// A first row whose first cell is "title" is treated as a header.
func importBooks(ctx context.Context, out io.Writer, manager *library.LibraryManager, r io.Reader) error {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var (
		added      []library.Book
		errorCount int
		line       int
	)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			fmt.Fprintf(out, "Line %d: ERROR - %v\n", line, err)
			errorCount++
			continue
		}
		if line == 1 && strings.EqualFold(strings.TrimSpace(rec[0]), "title") {
			continue
		}
		title := strings.TrimSpace(rec[0])
		if title == "" {
			fmt.Fprintf(out, "Line %d: ERROR - empty title\n", line)
			errorCount++
			continue
		}
		var author, isbn string
		if len(rec) > 1 {
			author = rec[1]
		}
		if len(rec) > 2 {
			isbn = rec[2]
		}
		b, err := manager.AddBook(title, author, isbn)
		if err != nil {
			fmt.Fprintf(out, "Line %d: ERROR - %v\n", line, err)
			errorCount++
			continue
		}
		added = append(added, b)
	}

	if len(added) > 0 {
		rev, err := manager.Save(ctx)
		if err != nil {
			return fmt.Errorf("saving: %w", err)
		}
		fmt.Fprintf(out, "Saved revision %s\n", rev)
	}

	fmt.Fprintf(out, "\nImport complete!\n")
	fmt.Fprintf(out, "Successfully imported: %d books\n", len(added))
	fmt.Fprintf(out, "Errors: %d\n", errorCount)

	if len(added) > 0 {
		fmt.Fprintln(out, "\nImported books:")
		tw := table.NewWriter()
		tw.SetOutputMirror(out)
		tw.AppendHeader(table.Row{"ID", "Title", "Author", "ISBN"})
		for _, b := range added {
			tw.AppendRow(table.Row{b.ID, library.Truncate(b.Title, 50), library.Truncate(b.Author, 30), b.ISBN})
		}
		tw.Render()
	}
	return nil
}
