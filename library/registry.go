package library

import "fmt"

// Registry holds users in the order they were added. Ids come from a counter
// that is never rewound, so a deleted user's id is not handed out again.
type Registry struct {
	users  []User
	nextID int64
	max    int // 0 means unbounded
}

// NewRegistry returns an empty registry whose first id is 1.
func NewRegistry() *Registry {
	return &Registry{nextID: 1}
}

// Len returns the number of registered users.
func (r *Registry) Len() int { return len(r.users) }

// NextID returns the id the next Add will assign.
func (r *Registry) NextID() int64 { return r.nextID }

// Add appends a new active user. Text fields are truncated to their limits.
func (r *Registry) Add(name, userID string, age int, gender string) (User, error) {
	if r.max > 0 && len(r.users) >= r.max {
		return User{}, fmt.Errorf("add user: %w", ErrAllocation)
	}
	u := User{
		ID:     r.nextID,
		Name:   clip(name, MaxNameLength),
		UserID: clip(userID, MaxUserIDLength),
		Age:    age,
		Gender: clip(gender, 1),
		Status: UserActive,
	}
	r.nextID++
	r.users = append(r.users, u)
	return u, nil
}

// Restore re-inserts u with its original id at the tail. The id counter is
// advanced past u.ID if needed, never moved back.
func (r *Registry) Restore(u User) error {
	if r.index(u.ID) >= 0 {
		return fmt.Errorf("user %d: %w", u.ID, ErrDuplicateID)
	}
	if r.max > 0 && len(r.users) >= r.max {
		return fmt.Errorf("restore user %d: %w", u.ID, ErrAllocation)
	}
	r.users = append(r.users, u)
	if u.ID >= r.nextID {
		r.nextID = u.ID + 1
	}
	return nil
}

func (r *Registry) index(id int64) int {
	for i := range r.users {
		if r.users[i].ID == id {
			return i
		}
	}
	return -1
}

// Get returns a copy of the user with the given id.
func (r *Registry) Get(id int64) (User, error) {
	if i := r.index(id); i >= 0 {
		return r.users[i], nil
	}
	return User{}, fmt.Errorf("user %d: %w", id, ErrNotFound)
}

// ref returns the stored user for in-place updates, or nil. The pointer is
// valid until the next Add, Restore or Delete.
func (r *Registry) ref(id int64) *User {
	if i := r.index(id); i >= 0 {
		return &r.users[i]
	}
	return nil
}

// FindByName returns the first user whose name matches exactly.
func (r *Registry) FindByName(name string) (User, error) {
	for _, u := range r.users {
		if u.Name == name {
			return u, nil
		}
	}
	return User{}, fmt.Errorf("user %q: %w", name, ErrNotFound)
}

// Update replaces the stored fields of the user with u.ID.
func (r *Registry) Update(u User) error {
	i := r.index(u.ID)
	if i < 0 {
		return fmt.Errorf("user %d: %w", u.ID, ErrNotFound)
	}
	r.users[i] = u
	return nil
}

// Edit applies the non-empty fields of e.
func (r *Registry) Edit(id int64, e UserEdit) (User, error) {
	i := r.index(id)
	if i < 0 {
		return User{}, fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	u := r.users[i]
	if s := clip(e.Name, MaxNameLength); s != "" {
		u.Name = s
	}
	if s := clip(e.UserID, MaxUserIDLength); s != "" {
		u.UserID = s
	}
	if e.Age != nil {
		u.Age = *e.Age
	}
	if s := clip(e.Gender, 1); s != "" {
		u.Gender = s
	}
	if e.Status != nil {
		u.Status = *e.Status
	}
	r.users[i] = u
	return u, nil
}

// Delete removes the user. Callers check outstanding loans first.
func (r *Registry) Delete(id int64) error {
	i := r.index(id)
	if i < 0 {
		return fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	r.users = append(r.users[:i], r.users[i+1:]...)
	return nil
}

// All returns every user in insertion order.
func (r *Registry) All() []User {
	out := make([]User, len(r.users))
	copy(out, r.users)
	return out
}
