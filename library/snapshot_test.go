package library

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// busyLibrary builds a library touching every container.
func busyLibrary(t *testing.T) *Library {
	t.Helper()
	l, clock := newTestLibrary(t)
	for _, title := range []string{"Middlemarch", "Dune", "Emma", "Ulysses", "Beloved"} {
		mustBook(t, l, title)
	}
	alice := mustUser(t, l, "Alice")
	bob := mustUser(t, l, "Bob")
	carol := mustUser(t, l, "Carol")

	_, err := l.Borrow(1, alice.ID)
	require.NoError(t, err)
	_, err = l.Borrow(2, bob.ID)
	require.NoError(t, err)
	_, err = l.JoinQueue(1, carol.ID)
	require.NoError(t, err)
	_, err = l.JoinQueue(1, bob.ID)
	require.NoError(t, err)
	_, err = l.Reserve(3, carol.ID)
	require.NoError(t, err)
	clock.Advance(20 * 24 * time.Hour)
	_, err = l.ReturnBook(2, bob.ID)
	require.NoError(t, err)
	require.NoError(t, l.DeleteBook(5))
	require.NoError(t, l.AddSection("Maps", "Archives"))
	return l
}

func TestSnapshotRoundTrip(t *testing.T) {
	l := busyLibrary(t)
	data, err := Encode(l.Export())
	require.NoError(t, err)

	st, err := Decode(data)
	require.NoError(t, err)
	restored, err := Import(st, WithClock(l.now))
	require.NoError(t, err)
	again, err := Encode(restored.Export())
	require.NoError(t, err)

	assert.JSONEq(t, string(data), string(again))
	assert.Equal(t, data, again)
	assert.Equal(t, l.catalog.Height(), restored.catalog.Height())
	assertConsistent(t, restored)

	// Ids keep counting from where the original stopped.
	b, err := restored.AddBook("New", "Author", "")
	require.NoError(t, err)
	assert.Equal(t, int64(6), b.ID)
	u, err := restored.AddUser("Dan", "D", 20, "M")
	require.NoError(t, err)
	assert.Equal(t, int64(4), u.ID)
}

func TestBucketsRoundTrip(t *testing.T) {
	l := busyLibrary(t)
	st := l.Export()

	parts, err := encodeBuckets(st)
	require.NoError(t, err)
	assert.Len(t, parts, len(stateBuckets))

	back, err := decodeBuckets(parts)
	require.NoError(t, err)

	want, _ := Encode(st)
	got, _ := Encode(back)
	assert.Equal(t, string(want), string(got))
}

func TestImportRejectsDuplicateQueueEntries(t *testing.T) {
	st := State{
		Version: StateVersion,
		Books:   []Book{{ID: 1, Status: StatusBorrowed}},
		Users:   []User{{ID: 1, Status: UserActive}},
		Queues:  map[int64][]int64{1: {1, 1}},
	}
	_, err := Import(st)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestImportRejectsUnknownVersion(t *testing.T) {
	_, err := Import(State{Version: StateVersion + 1})
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestDecodeGarbage(t *testing.T) {
	_, err := Decode([]byte("{not json"))
	assert.Error(t, err)
}

func TestImportWithoutCountersContinuesAfterHighestID(t *testing.T) {
	st := State{
		Books: []Book{
			{ID: 4, Title: "Emma", Status: StatusAvailable},
			{ID: 2, Title: "Dune", Status: StatusAvailable},
			{ID: 7, Title: "Ulysses", Status: StatusAvailable},
		},
		Users: []User{{ID: 3, Name: "Alice", Status: UserActive}},
	}
	l, err := Import(st)
	require.NoError(t, err)

	b, err := l.AddBook("Beloved", "Toni Morrison", "")
	require.NoError(t, err)
	assert.Equal(t, int64(8), b.ID)
	u, err := l.AddUser("Bob", "B-1", 40, "M")
	require.NoError(t, err)
	assert.Equal(t, int64(4), u.ID)
	assert.Len(t, l.Books(), 4)
}
