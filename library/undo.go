package library

import "fmt"

// record pushes an action holding private copies of book and user.
func (l *Library) record(kind ActionKind, book *Book, user *User) {
	a := SystemAction{Kind: kind, At: l.now()}
	if book != nil {
		b := *book
		a.Book = &b
	}
	if user != nil {
		u := *user
		a.User = &u
	}
	l.undo.Push(a)
}

// LastAction returns the top of the system undo stack.
func (l *Library) LastAction() (SystemAction, error) {
	a, ok := l.undo.Peek()
	if !ok {
		return SystemAction{}, ErrNothingToUndo
	}
	return a.clone(), nil
}

// Undo reverses the action on top of the system undo stack:
//
//	UserAdded   -> delete the user (refused while the user has unreturned books)
//	UserDeleted -> restore the user with its original id
//	BookAdded   -> delete the book (refused unless it is available)
//	BookDeleted -> re-insert the book
//
// With UndoKeep the entry stays on the stack after a successful inverse, so
// a second call attempts the same inverse again and fails on the guard
// (e.g. ErrNotFound). With UndoPop it is removed. A failed inverse never
// pops and changes nothing. Undo does not record a new action.
func (l *Library) Undo() (SystemAction, error) {
	a, ok := l.undo.Peek()
	if !ok {
		return SystemAction{}, ErrNothingToUndo
	}
	if err := l.invert(a); err != nil {
		l.logger.Debug("undo refused", "kind", a.Kind, "err", err)
		return a.clone(), fmt.Errorf("undo %s: %w", a.Kind, err)
	}
	if l.undoPolicy == UndoPop {
		l.undo.Pop()
	}
	l.logger.Info("action undone", "kind", a.Kind)
	return a.clone(), nil
}

func (l *Library) invert(a SystemAction) error {
	switch a.Kind {
	case UserAdded:
		if a.User == nil {
			return fmt.Errorf("missing user snapshot: %w", ErrInvalidState)
		}
		return l.removeUser(a.User.ID)
	case UserDeleted:
		if a.User == nil {
			return fmt.Errorf("missing user snapshot: %w", ErrInvalidState)
		}
		return l.users.Restore(*a.User)
	case BookAdded:
		if a.Book == nil {
			return fmt.Errorf("missing book snapshot: %w", ErrInvalidState)
		}
		if err := l.catalog.Delete(a.Book.ID); err != nil {
			return err
		}
		l.queues.Drop(a.Book.ID)
		return nil
	case BookDeleted:
		if a.Book == nil {
			return fmt.Errorf("missing book snapshot: %w", ErrInvalidState)
		}
		return l.catalog.Insert(*a.Book)
	}
	return fmt.Errorf("unknown action %q: %w", a.Kind, ErrInvalidState)
}

func (a SystemAction) clone() SystemAction {
	c := a
	if a.Book != nil {
		b := *a.Book
		c.Book = &b
	}
	if a.User != nil {
		u := *a.User
		c.User = &u
	}
	return c
}
