package state

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/emrgen/mediakit/internal/document"
	"github.com/emrgen/mediakit/internal/identity"
	"github.com/emrgen/mediakit/internal/kv"
	"github.com/emrgen/mediakit/internal/tester"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingStore struct {
	kv.Store
	gets atomic.Int32
}

func (c *countingStore) Get(ctx context.Context, key string) ([]byte, error) {
	c.gets.Add(1)
	return c.Store.Get(ctx, key)
}

type failingStore struct{}

func (failingStore) Get(context.Context, string) ([]byte, error) { return nil, errors.New("boom") }
func (failingStore) Put(context.Context, string, []byte) error { return errors.New("boom") }
func (failingStore) Delete(context.Context, string) error { return errors.New("boom") }

// flakyStore fails writes to keys starting with failPrefix.
type flakyStore struct {
	kv.Store
	failPrefix string
}

func (f *flakyStore) fails(key string) bool {
	return f.failPrefix != "" && strings.HasPrefix(key, f.failPrefix)
}

func (f *flakyStore) Put(ctx context.Context, key string, value []byte) error {
	if f.fails(key) {
		return context.DeadlineExceeded
	}
	return f.Store.Put(ctx, key, value)
}

func (f *flakyStore) Delete(ctx context.Context, key string) error {
	if f.fails(key) {
		return context.DeadlineExceeded
	}
	return f.Store.Delete(ctx, key)
}

func newStore(t *testing.T) *Store {
	store, err := NewStore(kv.NewGormStore(tester.DB(t)), kv.NewMemoryStore(0))
	require.NoError(t, err)
	return store
}

func docWithTitle(title string) *document.Document {
	doc := document.New()
	doc.Components["c1"] = &document.Component{ID: "c1", Type: "hero", Data: map[string]any{"title": title}}
	doc.Sections = append(doc.Sections, &document.Section{
		ID: "s1", Type: "hero", Layout: document.LayoutFullWidth, Components: document.Flat("c1"),
	})
	return doc
}

func checksum(t *testing.T, doc *document.Document) string {
	sum, err := document.Checksum(doc)
	require.NoError(t, err)
	return sum
}

func TestStore_SaveLoad(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	user := identity.User("42")

	_, err := store.Load(ctx, user)
	assert.ErrorIs(t, err, ErrNotFound)

	doc := docWithTitle("hello")
	require.NoError(t, store.Save(ctx, user, doc))

	got, err := store.Load(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, checksum(t, doc), checksum(t, got))

	// loaded documents are copies
	got.Components["c1"].Data["title"] = "changed"
	again, err := store.Load(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, "hello", again.Components["c1"].Data["title"])

	require.NoError(t, store.Delete(ctx, user))
	_, err = store.Load(ctx, user)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_RoutesByContextKind(t *testing.T) {
	users := kv.NewMemoryStore(0)
	guests := kv.NewMemoryStore(0)
	store, err := NewStore(users, guests)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, identity.Guest("abc"), docWithTitle("guest")))
	require.NoError(t, store.Save(ctx, identity.User("abc"), docWithTitle("user")))

	assert.Equal(t, 1, guests.Len())
	assert.Equal(t, 1, users.Len())

	guest, err := store.Load(ctx, identity.Guest("abc"))
	require.NoError(t, err)
	assert.Equal(t, "guest", guest.Components["c1"].Data["title"])
}

func TestStore_ReadThroughCache(t *testing.T) {
	backend := &countingStore{Store: kv.NewMemoryStore(0)}
	store, err := NewStore(backend, backend)
	require.NoError(t, err)
	ctx := context.Background()
	ref := identity.User("1")

	data, err := document.Encode(docWithTitle("x"))
	require.NoError(t, err)
	require.NoError(t, backend.Put(ctx, stateKey(ref), data))

	for i := 0; i < 5; i++ {
		_, err = store.Load(ctx, ref)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), backend.gets.Load())

	store.Invalidate(ref)
	_, err = store.Load(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, int32(2), backend.gets.Load())
}

func TestStore_Malformed(t *testing.T) {
	backend := kv.NewMemoryStore(0)
	store, err := NewStore(backend, backend)
	require.NoError(t, err)
	ctx := context.Background()
	ref := identity.Guest("g")

	require.NoError(t, backend.Put(ctx, stateKey(ref), []byte(`{"version":"1.0","components":"nope"}`)))
	_, err = store.Load(ctx, ref)
	assert.ErrorIs(t, err, document.ErrMalformed)
}

func TestStore_BackendFailure(t *testing.T) {
	store, err := NewStore(failingStore{}, failingStore{})
	require.NoError(t, err)

	err = store.Save(context.Background(), identity.User("1"), document.New())
	assert.Error(t, err)
	_, err = store.Load(context.Background(), identity.User("1"))
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestHistory_UndoRedoRoundTrip(t *testing.T) {
	store := newStore(t)
	history := NewHistory(store, 0)
	ctx := context.Background()
	ref := identity.User("7")

	a := docWithTitle("A")
	b := docWithTitle("B")

	require.NoError(t, store.Save(ctx, ref, a))
	require.NoError(t, history.PushUndoPoint(ctx, ref))
	require.NoError(t, store.Save(ctx, ref, b))

	undone, err := history.Undo(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, checksum(t, a), checksum(t, undone))

	current, err := store.Load(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, checksum(t, a), checksum(t, current))

	redone, err := history.Redo(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, checksum(t, b), checksum(t, redone))

	// redo pushed the pre-redo state, so undo goes back to A again
	undone, err = history.Undo(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, checksum(t, a), checksum(t, undone))
}

func TestHistory_Empty(t *testing.T) {
	history := NewHistory(newStore(t), 0)
	ctx := context.Background()

	_, err := history.Undo(ctx, identity.Guest("nobody"))
	assert.ErrorIs(t, err, ErrHistoryEmpty)
	_, err = history.Redo(ctx, identity.Guest("nobody"))
	assert.ErrorIs(t, err, ErrHistoryEmpty)

	// no current document, nothing to push
	require.NoError(t, history.PushUndoPoint(ctx, identity.Guest("nobody")))
	status, err := history.Status(ctx, identity.Guest("nobody"))
	require.NoError(t, err)
	assert.Equal(t, HistoryStatus{}, status)
}

func TestHistory_Bound(t *testing.T) {
	store := newStore(t)
	history := NewHistory(store, 0)
	ctx := context.Background()
	ref := identity.User("bound")

	for i := 0; i < 60; i++ {
		require.NoError(t, store.Save(ctx, ref, docWithTitle(fmt.Sprintf("v%d", i))))
		require.NoError(t, history.PushUndoPoint(ctx, ref))
	}

	entries, err := history.Entries(ctx, ref)
	require.NoError(t, err)
	require.Len(t, entries, DefaultHistoryDepth)
	// the ten oldest points were dropped
	assert.Equal(t, "v10", entries[0].StateData.Components["c1"].Data["title"])
	assert.Equal(t, "v59", entries[len(entries)-1].StateData.Components["c1"].Data["title"])
}

func TestHistory_SkipsDuplicatePoints(t *testing.T) {
	store := newStore(t)
	history := NewHistory(store, 0)
	ctx := context.Background()
	ref := identity.User("dup")

	require.NoError(t, store.Save(ctx, ref, docWithTitle("same")))
	for i := 0; i < 3; i++ {
		require.NoError(t, history.PushUndoPoint(ctx, ref))
	}

	status, err := history.Status(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, 1, status.Undo)
}

func TestHistory_PushDoesNotClearRedo(t *testing.T) {
	store := newStore(t)
	history := NewHistory(store, 0)
	ctx := context.Background()
	ref := identity.User("redo")

	require.NoError(t, store.Save(ctx, ref, docWithTitle("A")))
	require.NoError(t, history.PushUndoPoint(ctx, ref))
	require.NoError(t, store.Save(ctx, ref, docWithTitle("B")))
	_, err := history.Undo(ctx, ref)
	require.NoError(t, err)

	require.NoError(t, store.Save(ctx, ref, docWithTitle("C")))
	require.NoError(t, history.PushUndoPoint(ctx, ref))

	status, err := history.Status(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, HistoryStatus{Undo: 1, Redo: 1}, status)
}

func TestHistory_MoveAndClear(t *testing.T) {
	store := newStore(t)
	history := NewHistory(store, 0)
	ctx := context.Background()
	guest := identity.Guest("session")
	user := identity.User("99")

	require.NoError(t, store.Save(ctx, guest, docWithTitle("A")))
	require.NoError(t, history.PushUndoPoint(ctx, guest))
	require.NoError(t, store.Save(ctx, guest, docWithTitle("B")))
	require.NoError(t, history.PushUndoPoint(ctx, guest))

	require.NoError(t, history.Move(ctx, guest, user))

	status, err := history.Status(ctx, guest)
	require.NoError(t, err)
	assert.Equal(t, HistoryStatus{}, status)

	status, err = history.Status(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, 2, status.Undo)

	require.NoError(t, history.Clear(ctx, user))
	status, err = history.Status(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, HistoryStatus{}, status)
}

func TestHistory_FailedStepKeepsState(t *testing.T) {
	backend := &flakyStore{Store: kv.NewMemoryStore(0)}
	store, err := NewStore(backend, kv.NewMemoryStore(0))
	require.NoError(t, err)
	history := NewHistory(store, 0)
	ctx := context.Background()
	ref := identity.User("flaky")

	a, b := docWithTitle("A"), docWithTitle("B")
	require.NoError(t, store.Save(ctx, ref, a))
	require.NoError(t, history.PushUndoPoint(ctx, ref))
	require.NoError(t, store.Save(ctx, ref, b))

	assertState := func(t *testing.T, want *document.Document, status HistoryStatus) {
		t.Helper()
		current, err := store.Load(ctx, ref)
		require.NoError(t, err)
		assert.Equal(t, checksum(t, want), checksum(t, current))

		got, err := history.Status(ctx, ref)
		require.NoError(t, err)
		assert.Equal(t, status, got)
	}

	tests := []struct {
		name   string
		prefix string
	}{
		{"state write", "state:"},
		{"redo stack write", "history:redo:"},
		{"undo stack write", "history:undo:"},
	}
	for _, tt := range tests {
		t.Run("undo "+tt.name, func(t *testing.T) {
			backend.failPrefix = tt.prefix
			defer func() { backend.failPrefix = "" }()

			_, err := history.Undo(ctx, ref)
			assert.ErrorIs(t, err, context.DeadlineExceeded)
			assertState(t, b, HistoryStatus{Undo: 1})
		})
	}

	undone, err := history.Undo(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, checksum(t, a), checksum(t, undone))
	assertState(t, a, HistoryStatus{Redo: 1})

	for _, tt := range tests {
		t.Run("redo "+tt.name, func(t *testing.T) {
			backend.failPrefix = tt.prefix
			defer func() { backend.failPrefix = "" }()

			_, err := history.Redo(ctx, ref)
			assert.ErrorIs(t, err, context.DeadlineExceeded)
			assertState(t, a, HistoryStatus{Redo: 1})
		})
	}

	redone, err := history.Redo(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, checksum(t, b), checksum(t, redone))
	assertState(t, b, HistoryStatus{Undo: 1})
}

func TestHistory_SnapshotRestore(t *testing.T) {
	store := newStore(t)
	history := NewHistory(store, 0)
	ctx := context.Background()
	ref := identity.Guest("snap")

	require.NoError(t, store.Save(ctx, ref, docWithTitle("A")))
	require.NoError(t, history.PushUndoPoint(ctx, ref))

	snap, err := history.Snapshot(ctx, ref)
	require.NoError(t, err)

	require.NoError(t, history.Clear(ctx, ref))
	require.NoError(t, history.Restore(ctx, ref, snap))

	status, err := history.Status(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, HistoryStatus{Undo: 1}, status)
}

func TestLocker(t *testing.T) {
	locker := NewLocker()
	ref := identity.User("1")

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		active  int
		maxSeen int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := locker.Lock(ref)
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			active++
			if active > maxSeen {
				maxSeen = active
			}
			mu.Unlock()

			mu.Lock()
			active--
			mu.Unlock()
			unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxSeen)

	unlock, err := locker.Lock(identity.User("a"))
	require.NoError(t, err)
	other, err := locker.Lock(identity.User("b"))
	require.NoError(t, err)
	other()
	unlock()

	pair, err := locker.LockPair(identity.Guest("g"), identity.User("u"))
	require.NoError(t, err)
	pair()
}
