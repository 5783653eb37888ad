package main

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"library-circulation/library"
)

func main() {
	loadEnv()
	if err := newRootCmd(os.Stdin, os.Stdout, os.Stderr).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd(in io.Reader, out, errOut io.Writer) *cobra.Command {
	cfg := defaultConfig()

	runMenu := func(cmd *cobra.Command, _ []string) error {
		mgr, err := cfg.open(errOut)
		if err != nil {
			return err
		}
		defer mgr.Close()
		lr, err := newLineReader(in, out, cfg.HistoryFile)
		if err != nil {
			return err
		}
		defer lr.Close()
		return newMenu(lr, out, mgr).run(cmd.Context())
	}

	root := &cobra.Command{
		Use:           "library-circulation",
		Short:         "Library circulation: catalog, users, loans and reservations",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runMenu,
	}
	cfg.bindFlags(root)
	root.SetIn(in)
	root.SetOut(out)
	root.SetErr(errOut)

	root.AddCommand(&cobra.Command{
		Use:   "menu",
		Short: "Start the interactive menu",
		RunE:  runMenu,
	})

	// withManager wraps a read-only report command.
	withManager := func(use, short string, fn func(cmd *cobra.Command, mgr *library.LibraryManager, args []string) error) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				mgr, err := cfg.open(errOut)
				if err != nil {
					return err
				}
				defer mgr.Close()
				return fn(cmd, mgr, args)
			},
		}
	}

	records := withManager("records [user-id]", "List borrow records, optionally for one user", listRecords)
	records.Args = cobra.MaximumNArgs(1)

	root.AddCommand(
		withManager("books", "List the catalog", func(cmd *cobra.Command, mgr *library.LibraryManager, _ []string) error {
			renderBooks(cmd.OutOrStdout(), mgr)
			return nil
		}),
		withManager("users", "List registered users", func(cmd *cobra.Command, mgr *library.LibraryManager, _ []string) error {
			renderUsers(cmd.OutOrStdout(), mgr)
			return nil
		}),
		records,
		withManager("overdue", "List overdue loans", func(cmd *cobra.Command, mgr *library.LibraryManager, _ []string) error {
			var views []library.RecordView
			mgr.View(func(l *library.Library) { views = l.Overdue() })
			renderRecords(cmd.OutOrStdout(), views)
			return nil
		}),
		withManager("stats", "Show library counters", func(cmd *cobra.Command, mgr *library.LibraryManager, _ []string) error {
			return renderStats(cmd.OutOrStdout(), mgr)
		}),
		withManager("revisions", "List saved snapshots", func(cmd *cobra.Command, mgr *library.LibraryManager, _ []string) error {
			revs, err := mgr.Revisions(cmd.Context())
			if err != nil {
				return err
			}
			tw := newTable(cmd.OutOrStdout())
			tw.AppendHeader(table.Row{"Revision", "Saved At", "Books", "Users"})
			for _, r := range revs {
				tw.AppendRow(table.Row{r.ID, r.SavedAt.Local().Format("2006-01-02 15:04:05"), r.Books, r.Users})
			}
			tw.Render()
			return nil
		}),
	)
	return root
}

// listRecords prints every borrow record, or one user's when an id is given.
func listRecords(cmd *cobra.Command, mgr *library.LibraryManager, args []string) error {
	if len(args) == 0 {
		var views []library.RecordView
		mgr.View(func(l *library.Library) { views = l.Records() })
		renderRecords(cmd.OutOrStdout(), views)
		return nil
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid user id %q", args[0])
	}
	var views []library.RecordView
	mgr.View(func(l *library.Library) { views, err = l.BorrowsByUser(id) })
	if err != nil {
		return err
	}
	renderRecords(cmd.OutOrStdout(), views)
	return nil
}

// ------------------ Tables ------------------

func newTable(w io.Writer) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleLight)
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		if width, _, err := term.GetSize(int(f.Fd())); err == nil && width > 0 {
			tw.SetAllowedRowLength(width)
		}
	}
	return tw
}

func renderBooks(w io.Writer, mgr *library.LibraryManager) {
	tw := newTable(w)
	tw.AppendHeader(table.Row{"ID", "Title", "Author", "ISBN", "Status", "Holder", "Queue"})
	mgr.View(func(l *library.Library) {
		for _, b := range l.Books() {
			holder := ""
			queue := 0
			if rep, err := l.Availability(b.ID); err == nil {
				if rep.Holder != nil {
					holder = rep.Holder.Name
				}
				queue = rep.QueueLength
			}
			tw.AppendRow(table.Row{b.ID, truncateString(b.Title, 40), truncateString(b.Author, 25), b.ISBN, b.Status, holder, queue})
		}
	})
	tw.Render()
}

func renderUsers(w io.Writer, mgr *library.LibraryManager) {
	tw := newTable(w)
	tw.AppendHeader(table.Row{"ID", "Name", "User ID", "Age", "Gender", "Status", "Borrowed"})
	mgr.View(func(l *library.Library) {
		for _, u := range l.Users() {
			tw.AppendRow(table.Row{u.ID, u.Name, u.UserID, u.Age, u.Gender, u.Status, fmt.Sprintf("%d/%d", u.BorrowCount, library.BorrowLimit)})
		}
	})
	tw.Render()
}

func renderRecords(w io.Writer, views []library.RecordView) {
	tw := newTable(w)
	tw.AppendHeader(table.Row{"Book", "Title", "User", "Name", "Borrowed", "Due", "Returned", "Overdue"})
	for _, v := range views {
		title, name := v.BookTitle, v.UserName
		if !v.Valid {
			if title == "" {
				title = "(deleted)"
			}
			if name == "" {
				name = "(deleted)"
			}
		}
		returned := "-"
		if v.Record.Returned {
			returned = v.Record.ReturnDate.Format("2006-01-02")
		}
		overdue := ""
		if v.Overdue {
			overdue = fmt.Sprintf("%d days", v.OverdueDays)
		}
		tw.AppendRow(table.Row{
			v.Record.BookID, truncateString(title, 30), v.Record.UserID, truncateString(name, 20),
			v.Record.BorrowDate.Format("2006-01-02"), v.Record.DueDate.Format("2006-01-02"), returned, overdue,
		})
	}
	tw.Render()
}

func renderStats(w io.Writer, mgr *library.LibraryManager) error {
	samples, err := mgr.Metrics().Gather()
	if err != nil {
		return err
	}
	tw := newTable(w)
	tw.AppendHeader(table.Row{"Metric", "Operation", "Result", "Value"})
	for _, s := range samples {
		tw.AppendRow(table.Row{s.Name, s.Labels["op"], s.Labels["result"], s.Value})
	}
	tw.Render()
	return nil
}

func truncateString(s string, maxLen int) string {
	return library.Truncate(s, maxLen)
}
