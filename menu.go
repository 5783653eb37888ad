package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"library-circulation/library"
)

const dateFormat = "2006-01-02"

type menu struct {
	in  lineReader
	out io.Writer
	mgr *library.LibraryManager
}

func newMenu(in lineReader, out io.Writer, mgr *library.LibraryManager) *menu {
	return &menu{in: in, out: out, mgr: mgr}
}

func (m *menu) printf(format string, args ...any) { fmt.Fprintf(m.out, format, args...) }

func (m *menu) printHelp() {
	m.printf("Available commands:\n")
	m.printf("  Books: add book, edit book, delete book, list books, search book, availability\n")
	m.printf("  Users: add user, edit user, delete user, list users, search user\n")
	m.printf("  Circulation: borrow, return, reserve, cancel reservation, queue, process reservation\n")
	m.printf("  History: last return, undo return, undo, browsing history, back\n")
	m.printf("  Reports: records, user borrows, overdue, stats, revisions\n")
	m.printf("  Sections: sections, add section\n")
	m.printf("  System: save, load, help, exit\n")
}

func (m *menu) run(ctx context.Context) error {
	m.printf("Welcome to the Library Circulation System!\n")
	m.printHelp()

	for {
		line, err := m.in.ReadLine("\n> ")
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		cmd := strings.ToLower(strings.Join(strings.Fields(line), " "))

		switch cmd {
		case "":
		case "add book":
			m.handleAddBook()
		case "edit book":
			m.handleEditBook()
		case "delete book":
			m.handleDeleteBook()
		case "list books":
			renderBooks(m.out, m.mgr)
		case "search book":
			m.handleSearchBook()
		case "availability":
			m.handleAvailability()
		case "add user":
			m.handleAddUser()
		case "edit user":
			m.handleEditUser()
		case "delete user":
			m.handleDeleteUser()
		case "list users":
			renderUsers(m.out, m.mgr)
		case "search user":
			m.handleSearchUser()
		case "borrow":
			m.handleBorrow()
		case "return":
			m.handleReturn()
		case "reserve":
			m.handleReserve()
		case "cancel reservation":
			m.handleCancelReservation()
		case "queue":
			m.handleQueue()
		case "process reservation":
			m.handleProcessReservation()
		case "last return":
			m.handleLastReturn()
		case "undo return":
			m.handleUndoReturn()
		case "undo":
			m.handleUndo()
		case "browsing history":
			m.handleBrowsingHistory()
		case "back":
			m.handleBack()
		case "records":
			var views []library.RecordView
			m.mgr.View(func(l *library.Library) { views = l.Records() })
			renderRecords(m.out, views)
		case "user borrows":
			m.handleUserBorrows()
		case "overdue":
			var views []library.RecordView
			m.mgr.View(func(l *library.Library) { views = l.Overdue() })
			if len(views) == 0 {
				m.printf("No overdue books.\n")
				continue
			}
			renderRecords(m.out, views)
		case "sections":
			m.handleSections()
		case "add section":
			m.handleAddSection()
		case "stats":
			if err := renderStats(m.out, m.mgr); err != nil {
				m.printf("Error: %v\n", err)
			}
		case "revisions":
			m.handleRevisions(ctx)
		case "save":
			if rev, err := m.mgr.Save(ctx); err != nil {
				m.printf("Error saving: %v\n", err)
			} else {
				m.printf("Saved revision %s\n", rev)
			}
		case "load":
			if err := m.mgr.Load(ctx); err != nil {
				m.printf("Error loading: %v\n", err)
			} else {
				m.printf("Library reloaded from the last save.\n")
			}
		case "help":
			m.printHelp()
		case "exit", "quit":
			m.printf("Goodbye!\n")
			return nil
		default:
			m.printf("Unknown command. Type 'help' for the list of commands.\n")
		}
		if err := m.mgr.AutosaveError(); err != nil {
			m.printf("Warning: %v. Use 'save' to retry.\n", err)
		}
	}
}

// ------------------ Input helpers ------------------

func (m *menu) ask(prompt string) (string, bool) {
	line, err := m.in.ReadLine(prompt)
	if err != nil {
		return "", false
	}
	return strings.TrimSpace(line), true
}

func (m *menu) askID(prompt string) (int64, bool) {
	s, ok := m.ask(prompt + ": ")
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		m.printf("Invalid %s: %s\n", strings.ToLower(prompt), s)
		return 0, false
	}
	return id, true
}

func (m *menu) askYes(prompt string) bool {
	s, ok := m.ask(prompt + " (y/n): ")
	return ok && strings.HasPrefix(strings.ToLower(s), "y")
}

func (m *menu) bookTitle(id int64) string {
	title := fmt.Sprintf("#%d", id)
	m.mgr.View(func(l *library.Library) {
		if b, err := l.Book(id); err == nil {
			title = b.Title
		}
	})
	return title
}

func (m *menu) userName(id int64) string {
	name := fmt.Sprintf("#%d", id)
	m.mgr.View(func(l *library.Library) {
		if u, err := l.User(id); err == nil {
			name = u.Name
		}
	})
	return name
}

// ------------------ Books ------------------

func (m *menu) handleAddBook() {
	title, ok := m.ask("Title: ")
	if !ok {
		return
	}
	author, ok := m.ask("Author: ")
	if !ok {
		return
	}
	isbn, ok := m.ask("ISBN: ")
	if !ok {
		return
	}
	if title == "" {
		m.printf("Error: title cannot be empty\n")
		return
	}
	b, err := m.mgr.AddBook(title, author, isbn)
	if err != nil {
		m.printf("Error adding book: %v\n", err)
		return
	}
	m.printf("Added book ID %d: %s\n", b.ID, b.Title)
}

func (m *menu) handleEditBook() {
	id, ok := m.askID("Book ID")
	if !ok {
		return
	}
	var e library.BookEdit
	if e.Title, ok = m.ask("New title (blank to keep): "); !ok {
		return
	}
	if e.Author, ok = m.ask("New author (blank to keep): "); !ok {
		return
	}
	if e.ISBN, ok = m.ask("New ISBN (blank to keep): "); !ok {
		return
	}
	b, err := m.mgr.EditBook(id, e)
	if err != nil {
		m.printf("Error: %v\n", err)
		return
	}
	m.printf("Updated: %s\n", library.PrettyBook(b, ""))
}

func (m *menu) handleDeleteBook() {
	id, ok := m.askID("Book ID")
	if !ok {
		return
	}
	if err := m.mgr.DeleteBook(id); err != nil {
		if errors.Is(err, library.ErrInvalidState) {
			m.printf("Cannot delete: the book is borrowed or reserved.\n")
			return
		}
		m.printf("Error: %v\n", err)
		return
	}
	m.printf("Book %d deleted. Use 'undo' to restore it.\n", id)
}

func (m *menu) handleSearchBook() {
	q, ok := m.ask("Title contains: ")
	if !ok {
		return
	}
	var (
		b   library.Book
		err error
	)
	m.mgr.View(func(l *library.Library) { b, err = l.FindBookByTitle(q) })
	if err != nil {
		m.printf("No book found matching '%s'.\n", q)
		return
	}
	m.printf("%s\n", library.PrettyBook(b, ""))
}

func (m *menu) handleAvailability() {
	id, ok := m.askID("Book ID")
	if !ok {
		return
	}
	var (
		rep library.AvailabilityReport
		err error
	)
	m.mgr.View(func(l *library.Library) { rep, err = l.Availability(id) })
	if err != nil {
		m.printf("Error: %v\n", err)
		return
	}
	m.printf("'%s' is %s.\n", rep.Book.Title, rep.Book.Status)
	if rep.Holder != nil {
		m.printf("Borrowed by %s, due %s.\n", rep.Holder.Name, rep.DueDate.Format(dateFormat))
	}
	if rep.QueueLength > 0 {
		next := "unknown user"
		if rep.NextInLine != nil {
			next = rep.NextInLine.Name
		}
		m.printf("%d user(s) waiting, next is %s.\n", rep.QueueLength, next)
	}
}

// ------------------ Users ------------------

func (m *menu) handleAddUser() {
	name, ok := m.ask("Name: ")
	if !ok {
		return
	}
	userID, ok := m.ask("User ID: ")
	if !ok {
		return
	}
	ageStr, ok := m.ask("Age: ")
	if !ok {
		return
	}
	age, err := strconv.Atoi(ageStr)
	if err != nil || age < 0 {
		m.printf("Invalid age: %s\n", ageStr)
		return
	}
	gender, ok := m.ask("Gender (M/F): ")
	if !ok {
		return
	}
	if name == "" {
		m.printf("Error: name cannot be empty\n")
		return
	}
	u, err := m.mgr.AddUser(name, userID, age, gender)
	if err != nil {
		m.printf("Error: %v\n", err)
		return
	}
	m.printf("Added user '%s' with ID %d\n", u.Name, u.ID)
}

func (m *menu) handleEditUser() {
	id, ok := m.askID("User ID")
	if !ok {
		return
	}
	var e library.UserEdit
	if e.Name, ok = m.ask("New name (blank to keep): "); !ok {
		return
	}
	if e.UserID, ok = m.ask("New user ID (blank to keep): "); !ok {
		return
	}
	ageStr, ok := m.ask("New age (blank to keep): ")
	if !ok {
		return
	}
	if ageStr != "" {
		age, err := strconv.Atoi(ageStr)
		if err != nil || age < 0 {
			m.printf("Invalid age: %s\n", ageStr)
			return
		}
		e.Age = &age
	}
	if e.Gender, ok = m.ask("New gender (blank to keep): "); !ok {
		return
	}
	stStr, ok := m.ask("New status active/suspended/expired (blank to keep): ")
	if !ok {
		return
	}
	if stStr != "" {
		st, err := library.ParseUserStatus(stStr)
		if err != nil {
			m.printf("Error: %v\n", err)
			return
		}
		e.Status = &st
	}
	u, err := m.mgr.EditUser(id, e)
	if err != nil {
		m.printf("Error: %v\n", err)
		return
	}
	m.printf("Updated: %s\n", library.PrettyUser(u))
}

func (m *menu) handleDeleteUser() {
	id, ok := m.askID("User ID")
	if !ok {
		return
	}
	if err := m.mgr.DeleteUser(id); err != nil {
		if errors.Is(err, library.ErrInvalidState) {
			m.printf("Cannot delete: the user still has borrowed books.\n")
			return
		}
		m.printf("Error: %v\n", err)
		return
	}
	m.printf("User %d deleted. Use 'undo' to restore them.\n", id)
}

func (m *menu) handleSearchUser() {
	name, ok := m.ask("Name: ")
	if !ok {
		return
	}
	var (
		u   library.User
		err error
	)
	m.mgr.View(func(l *library.Library) { u, err = l.FindUserByName(name) })
	if err != nil {
		m.printf("No user named '%s'.\n", name)
		return
	}
	m.printf("%s\n", library.PrettyUser(u))
}

// ------------------ Circulation ------------------

// askBook reads a book id or a title fragment; a fragment picks the first
// match in catalog order.
func (m *menu) askBook() (int64, bool) {
	s, ok := m.ask("Book ID or title: ")
	if !ok || s == "" {
		return 0, false
	}
	if id, err := strconv.ParseInt(s, 10, 64); err == nil {
		if id <= 0 {
			m.printf("Invalid book id: %s\n", s)
			return 0, false
		}
		return id, true
	}
	var (
		b   library.Book
		err error
	)
	m.mgr.View(func(l *library.Library) { b, err = l.FindBookByTitle(s) })
	if err != nil {
		m.printf("No book matching '%s'.\n", s)
		return 0, false
	}
	return b.ID, true
}

// askUser reads a user id or an exact name.
func (m *menu) askUser() (int64, bool) {
	s, ok := m.ask("User ID or name: ")
	if !ok || s == "" {
		return 0, false
	}
	if id, err := strconv.ParseInt(s, 10, 64); err == nil {
		if id <= 0 {
			m.printf("Invalid user id: %s\n", s)
			return 0, false
		}
		return id, true
	}
	var (
		u   library.User
		err error
	)
	m.mgr.View(func(l *library.Library) { u, err = l.FindUserByName(s) })
	if err != nil {
		m.printf("No user named '%s'.\n", s)
		return 0, false
	}
	return u.ID, true
}

func (m *menu) askBookAndUser() (int64, int64, bool) {
	bookID, ok := m.askBook()
	if !ok {
		return 0, 0, false
	}
	userID, ok := m.askUser()
	if !ok {
		return 0, 0, false
	}
	return bookID, userID, true
}

func (m *menu) handleBorrow() {
	bookID, userID, ok := m.askBookAndUser()
	if !ok {
		return
	}
	out, err := m.mgr.Borrow(bookID, userID)
	switch {
	case errors.Is(err, library.ErrCapacityExceeded):
		m.printf("User %d has reached the limit of %d books.\n", userID, library.BorrowLimit)
		return
	case errors.Is(err, library.ErrInvalidState):
		m.printf("User %d cannot borrow: the account is not active.\n", userID)
		return
	case err != nil:
		m.printf("Error borrowing book: %v\n", err)
		return
	}
	if out.Borrowed {
		m.printf("Book '%s' borrowed by %s, due %s\n", m.bookTitle(bookID), m.userName(userID), out.Record.DueDate.Format(dateFormat))
		return
	}
	m.printf("Book '%s' is currently %s.\n", m.bookTitle(bookID), out.Status)
	if !m.askYes("Join the reservation queue?") {
		return
	}
	pos, err := m.mgr.JoinQueue(bookID, userID)
	if err != nil {
		m.printf("Error: %v\n", err)
		return
	}
	m.printf("Added to the queue at position %d.\n", pos)
}

func (m *menu) handleReturn() {
	bookID, userID, ok := m.askBookAndUser()
	if !ok {
		return
	}
	out, err := m.mgr.ReturnBook(bookID, userID)
	if err != nil {
		m.printf("Error returning book: %v\n", err)
		return
	}
	m.printf("Book '%s' returned by %s\n", m.bookTitle(bookID), m.userName(userID))
	if out.Overdue {
		m.printf("The book was overdue (due %s).\n", out.Record.DueDate.Format(dateFormat))
	}
	if out.Suspended {
		m.printf("Account of %s has been suspended.\n", m.userName(userID))
	}
	if out.Waiting > 0 {
		m.printf("%d user(s) waiting; the book is reserved. Use 'process reservation' to lend it.\n", out.Waiting)
	} else {
		m.printf("Book is now available for borrowing\n")
	}
}

func (m *menu) handleReserve() {
	bookID, userID, ok := m.askBookAndUser()
	if !ok {
		return
	}
	out, err := m.mgr.Reserve(bookID, userID)
	if err != nil {
		m.printf("Error reserving book: %v\n", err)
		return
	}
	if out.ReservedNow {
		m.printf("Book '%s' is now reserved for %s.\n", m.bookTitle(bookID), m.userName(userID))
		return
	}
	m.printf("%s is number %d in the queue for '%s'.\n", m.userName(userID), out.Position, m.bookTitle(bookID))
}

func (m *menu) handleCancelReservation() {
	bookID, userID, ok := m.askBookAndUser()
	if !ok {
		return
	}
	if err := m.mgr.CancelReservation(bookID, userID); err != nil {
		m.printf("Error: %v\n", err)
		return
	}
	m.printf("Reservation cancelled.\n")
}

func (m *menu) handleQueue() {
	bookID, ok := m.askID("Book ID")
	if !ok {
		return
	}
	var (
		q   []int64
		err error
	)
	m.mgr.View(func(l *library.Library) { q, err = l.Queue(bookID) })
	if err != nil {
		m.printf("Error: %v\n", err)
		return
	}
	if len(q) == 0 {
		m.printf("No reservations for this book.\n")
		return
	}
	for i, id := range q {
		m.printf("%d. %s (ID: %d)\n", i+1, m.userName(id), id)
	}
}

func (m *menu) handleProcessReservation() {
	bookID, ok := m.askID("Book ID")
	if !ok {
		return
	}
	rec, err := m.mgr.ProcessNextReservation(bookID)
	if err != nil {
		m.printf("Error: %v\n", err)
		return
	}
	m.printf("Book '%s' lent to %s, due %s\n", m.bookTitle(bookID), m.userName(rec.UserID), rec.DueDate.Format(dateFormat))
}

// ------------------ History ------------------

func (m *menu) handleLastReturn() {
	var (
		ev  library.ReturnEvent
		err error
	)
	m.mgr.View(func(l *library.Library) { ev, err = l.LastReturn() })
	if err != nil {
		m.printf("No recent returns.\n")
		return
	}
	m.printf("Last return: '%s' by %s on %s\n", m.bookTitle(ev.BookID), m.userName(ev.UserID), ev.ReturnDate.Format(dateFormat))
}

func (m *menu) handleUndoReturn() {
	out, err := m.mgr.UndoLastReturn()
	if errors.Is(err, library.ErrNoRecentReturns) {
		m.printf("No recent returns.\n")
		return
	}
	if err != nil {
		m.printf("Error: %v\n", err)
		return
	}
	if out.Restored {
		m.printf("Return undone: '%s' is borrowed by %s again.\n", m.bookTitle(out.Event.BookID), m.userName(out.Event.UserID))
		return
	}
	m.printf("Cannot restore the loan: '%s' is now %s.\n", m.bookTitle(out.Event.BookID), out.Status)
	if !m.askYes(fmt.Sprintf("Add %s to the reservation queue?", m.userName(out.Event.UserID))) {
		return
	}
	pos, err := m.mgr.JoinQueue(out.Event.BookID, out.Event.UserID)
	if err != nil {
		m.printf("Error: %v\n", err)
		return
	}
	m.printf("Added to the queue at position %d.\n", pos)
}

func (m *menu) handleUndo() {
	a, err := m.mgr.Undo()
	if errors.Is(err, library.ErrNothingToUndo) {
		m.printf("No actions to undo.\n")
		return
	}
	if err != nil {
		m.printf("Error: %v\n", err)
		return
	}
	switch {
	case a.Book != nil:
		m.printf("Undid %s for book '%s' (ID %d).\n", a.Kind, a.Book.Title, a.Book.ID)
	case a.User != nil:
		m.printf("Undid %s for user '%s' (ID %d).\n", a.Kind, a.User.Name, a.User.ID)
	}
}

func (m *menu) handleBrowsingHistory() {
	var ids []int64
	m.mgr.View(func(l *library.Library) { ids = l.BrowsingHistory() })
	if len(ids) == 0 {
		m.printf("No browsing history.\n")
		return
	}
	m.mgr.View(func(l *library.Library) {
		for i, id := range ids {
			title := "[Deleted Book]"
			if b, err := l.Book(id); err == nil {
				title = b.Title
			}
			m.printf("%d. %s (ID: %d)\n", i+1, title, id)
		}
	})
}

func (m *menu) handleBack() {
	id, ok := m.mgr.PopBrowsing()
	if !ok {
		m.printf("No browsing history.\n")
		return
	}
	m.printf("Removed '%s' from the browsing history.\n", m.bookTitle(id))
}

// ------------------ Reports ------------------

func (m *menu) handleUserBorrows() {
	userID, ok := m.askID("User ID")
	if !ok {
		return
	}
	var (
		views []library.RecordView
		err   error
	)
	m.mgr.View(func(l *library.Library) { views, err = l.BorrowsByUser(userID) })
	if err != nil {
		m.printf("Error: %v\n", err)
		return
	}
	if len(views) == 0 {
		m.printf("%s has not borrowed any books.\n", m.userName(userID))
		return
	}
	renderRecords(m.out, views)
}

func (m *menu) handleSections() {
	var root library.Section
	m.mgr.View(func(l *library.Library) { root = l.Sections() })
	root.Walk(func(depth int, name string) {
		m.printf("%s%s\n", strings.Repeat("  ", depth), name)
	})
}

func (m *menu) handleAddSection() {
	name, ok := m.ask("Section name: ")
	if !ok {
		return
	}
	parent, ok := m.ask("Parent section: ")
	if !ok {
		return
	}
	if err := m.mgr.AddSection(name, parent); err != nil {
		m.printf("Error: %v\n", err)
		return
	}
	m.printf("Section '%s' added under '%s'.\n", name, parent)
}

func (m *menu) handleRevisions(ctx context.Context) {
	revs, err := m.mgr.Revisions(ctx)
	if err != nil {
		m.printf("Error: %v\n", err)
		return
	}
	if len(revs) == 0 {
		m.printf("Nothing saved yet.\n")
		return
	}
	for _, r := range revs {
		m.printf("%s  %s  %d books  %d users\n", r.ID, r.SavedAt.Local().Format("2006-01-02 15:04:05"), r.Books, r.Users)
	}
}
