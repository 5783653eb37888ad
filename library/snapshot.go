package library

import (
	"fmt"
	"sort"

	jsoniter "github.com/json-iterator/go"
)

// StateVersion is written into every encoded state.
const StateVersion = 1

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// State is the complete, serializable content of a Library. Books are in
// catalog pre-order and stacks are newest first, so importing a State
// rebuilds the same tree shape and stack order.
type State struct {
	Version         int               `json:"version"`
	Books           []Book            `json:"books"`
	Users           []User            `json:"users"`
	Ledger          []BorrowRecord    `json:"ledger"`
	Queues          map[int64][]int64 `json:"queues"`
	ReturnHistory   []ReturnEvent     `json:"return_history"`
	UndoStack       []SystemAction    `json:"undo_stack"`
	BrowsingHistory []int64           `json:"browsing_history"`
	Sections        Section           `json:"sections"`
	NextBookID      int64             `json:"next_book_id"`
	NextUserID      int64             `json:"next_user_id"`
}

// Export captures the library's state by value.
func (l *Library) Export() State {
	st := State{
		Version:         StateVersion,
		Books:           l.catalog.PreOrder(),
		Users:           l.users.All(),
		Ledger:          l.ledger.All(),
		Queues:          make(map[int64][]int64),
		ReturnHistory:   l.returns.Items(),
		UndoStack:       l.UndoHistory(),
		BrowsingHistory: l.browsing.Items(),
		Sections:        l.sections.clone(),
		NextBookID:      l.nextBookID,
		NextUserID:      l.users.NextID(),
	}
	for _, id := range l.queues.Books() {
		st.Queues[id] = l.queues.Snapshot(id)
	}
	return st
}

// Import builds a library from st. Options apply as for New.
func Import(st State, opts ...Option) (*Library, error) {
	if st.Version != 0 && st.Version != StateVersion {
		return nil, fmt.Errorf("state version %d: %w", st.Version, ErrInvalidState)
	}
	l, err := New(opts...)
	if err != nil {
		return nil, err
	}
	for _, b := range st.Books {
		if err := l.catalog.Insert(b); err != nil {
			return nil, fmt.Errorf("import books: %w", err)
		}
	}
	for _, u := range st.Users {
		if err := l.users.Restore(u); err != nil {
			return nil, fmt.Errorf("import users: %w", err)
		}
	}
	if st.NextUserID > l.users.nextID {
		l.users.nextID = st.NextUserID
	}
	// States written without counters continue after the highest book id.
	for _, b := range st.Books {
		if b.ID >= l.nextBookID {
			l.nextBookID = b.ID + 1
		}
	}
	if st.NextBookID > l.nextBookID {
		l.nextBookID = st.NextBookID
	}
	for _, r := range st.Ledger {
		l.ledger.Append(r)
	}

	bookIDs := make([]int64, 0, len(st.Queues))
	for id := range st.Queues {
		bookIDs = append(bookIDs, id)
	}
	sort.Slice(bookIDs, func(i, j int) bool { return bookIDs[i] < bookIDs[j] })
	for _, id := range bookIDs {
		seen := make(map[int64]bool)
		for _, u := range st.Queues[id] {
			if seen[u] {
				return nil, fmt.Errorf("import queue for book %d: user %d queued twice: %w", id, u, ErrInvalidState)
			}
			seen[u] = true
			l.queues.push(id, u)
		}
	}

	for i := len(st.ReturnHistory) - 1; i >= 0; i-- {
		l.returns.Push(st.ReturnHistory[i])
	}
	for i := len(st.UndoStack) - 1; i >= 0; i-- {
		l.undo.Push(st.UndoStack[i].clone())
	}
	for i := len(st.BrowsingHistory) - 1; i >= 0; i-- {
		l.browsing.Push(st.BrowsingHistory[i])
	}
	if st.Sections.Name != "" {
		l.sections = st.Sections.clone()
	}
	return l, nil
}

// Encode serializes st.
func Encode(st State) ([]byte, error) {
	data, err := json.Marshal(st)
	if err != nil {
		return nil, fmt.Errorf("encode state: %w", err)
	}
	return data, nil
}

// Decode parses data produced by Encode.
func Decode(data []byte) (State, error) {
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return State{}, fmt.Errorf("decode state: %w", err)
	}
	return st, nil
}

// Bucket names used when a State is stored in parts.
const (
	bucketCatalog  = "catalog"
	bucketRegistry = "registry"
	bucketLedger   = "ledger"
	bucketQueues   = "queues"
	bucketReturns  = "returns"
	bucketUndo     = "undo"
	bucketBrowsing = "browsing"
	bucketSections = "sections"
	bucketCounters = "counters"
)

var stateBuckets = []string{
	bucketCatalog, bucketRegistry, bucketLedger, bucketQueues, bucketReturns,
	bucketUndo, bucketBrowsing, bucketSections, bucketCounters,
}

type counters struct {
	Version    int   `json:"version"`
	NextBookID int64 `json:"next_book_id"`
	NextUserID int64 `json:"next_user_id"`
}

// encodeBuckets splits st into one JSON payload per bucket.
func encodeBuckets(st State) (map[string][]byte, error) {
	parts := map[string]any{
		bucketCatalog:  st.Books,
		bucketRegistry: st.Users,
		bucketLedger:   st.Ledger,
		bucketQueues:   st.Queues,
		bucketReturns:  st.ReturnHistory,
		bucketUndo:     st.UndoStack,
		bucketBrowsing: st.BrowsingHistory,
		bucketSections: st.Sections,
		bucketCounters: counters{Version: st.Version, NextBookID: st.NextBookID, NextUserID: st.NextUserID},
	}
	out := make(map[string][]byte, len(parts))
	for _, name := range stateBuckets {
		data, err := json.Marshal(parts[name])
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", name, err)
		}
		out[name] = data
	}
	return out, nil
}

// decodeBuckets reassembles a State from bucket payloads. Missing buckets
// stay empty.
func decodeBuckets(parts map[string][]byte) (State, error) {
	var st State
	var c counters
	targets := map[string]any{
		bucketCatalog:  &st.Books,
		bucketRegistry: &st.Users,
		bucketLedger:   &st.Ledger,
		bucketQueues:   &st.Queues,
		bucketReturns:  &st.ReturnHistory,
		bucketUndo:     &st.UndoStack,
		bucketBrowsing: &st.BrowsingHistory,
		bucketSections: &st.Sections,
		bucketCounters: &c,
	}
	for name, data := range parts {
		target, ok := targets[name]
		if !ok {
			continue
		}
		if err := json.Unmarshal(data, target); err != nil {
			return State{}, fmt.Errorf("decode %s: %w", name, err)
		}
	}
	st.Version = c.Version
	st.NextBookID = c.NextBookID
	st.NextUserID = c.NextUserID
	return st, nil
}
