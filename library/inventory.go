package library

import "fmt"

// ------------------ Books ------------------

// AddBook adds an available book with the next sequential id and records a
// BookAdded action.
func (l *Library) AddBook(title, author, isbn string) (Book, error) {
	b := Book{
		ID:     l.nextBookID,
		Title:  clip(title, MaxTitleLength),
		Author: clip(author, MaxAuthorLength),
		ISBN:   clip(isbn, MaxISBNLength),
		Status: StatusAvailable,
	}
	if err := l.catalog.Insert(b); err != nil {
		return Book{}, err
	}
	l.nextBookID++
	l.record(BookAdded, &b, nil)
	l.logger.Info("book added", "book_id", b.ID, "title", b.Title)
	return b, nil
}

// EditBook updates the non-empty fields of e.
func (l *Library) EditBook(id int64, e BookEdit) (Book, error) {
	b, err := l.catalog.Get(id)
	if err != nil {
		return Book{}, err
	}
	if s := clip(e.Title, MaxTitleLength); s != "" {
		b.Title = s
	}
	if s := clip(e.Author, MaxAuthorLength); s != "" {
		b.Author = s
	}
	if s := clip(e.ISBN, MaxISBNLength); s != "" {
		b.ISBN = s
	}
	if err := l.catalog.Update(b); err != nil {
		return Book{}, err
	}
	l.logger.Info("book edited", "book_id", id)
	return b, nil
}

// DeleteBook removes an available book and records a BookDeleted action.
// Its reservation queue, necessarily empty for an available book, is dropped.
func (l *Library) DeleteBook(id int64) error {
	b, err := l.catalog.Get(id)
	if err != nil {
		return err
	}
	if err := l.catalog.Delete(id); err != nil {
		l.logger.Debug("delete book refused", "book_id", id, "status", b.Status)
		return err
	}
	l.queues.Drop(id)
	l.record(BookDeleted, &b, nil)
	l.logger.Info("book deleted", "book_id", id)
	return nil
}

// ------------------ Users ------------------

// AddUser registers an active user and records a UserAdded action.
func (l *Library) AddUser(name, userID string, age int, gender string) (User, error) {
	u, err := l.users.Add(name, userID, age, gender)
	if err != nil {
		return User{}, err
	}
	l.record(UserAdded, nil, &u)
	l.logger.Info("user added", "user_id", u.ID, "name", u.Name)
	return u, nil
}

// EditUser updates the non-empty fields of e.
func (l *Library) EditUser(id int64, e UserEdit) (User, error) {
	u, err := l.users.Edit(id, e)
	if err != nil {
		return User{}, err
	}
	l.logger.Info("user edited", "user_id", id, "status", u.Status)
	return u, nil
}

// DeleteUser removes a user with no unreturned records and records a
// UserDeleted action.
func (l *Library) DeleteUser(id int64) error {
	u, err := l.users.Get(id)
	if err != nil {
		return err
	}
	if err := l.removeUser(id); err != nil {
		return err
	}
	l.record(UserDeleted, nil, &u)
	return nil
}

// removeUser deletes a user without recording an action. The user is also
// taken out of every reservation queue; a reserved book whose queue empties
// becomes available again.
func (l *Library) removeUser(id int64) error {
	if l.ledger.HasOpen(id) {
		l.logger.Debug("delete user refused", "user_id", id)
		return fmt.Errorf("user %d has unreturned books: %w", id, ErrInvalidState)
	}
	if err := l.users.Delete(id); err != nil {
		return err
	}
	for _, bookID := range l.queues.Books() {
		if !l.queues.Remove(bookID, id) || l.queues.Len(bookID) > 0 {
			continue
		}
		if b := l.catalog.ref(bookID); b != nil && b.Status == StatusReserved {
			b.Status = StatusAvailable
		}
	}
	l.logger.Info("user deleted", "user_id", id)
	return nil
}
