package tracker

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	return store
}

func TestCreateUser(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.CreateUser(42, "id: 42\nusername: tester\n"))
	assert.True(t, store.UserExists(42))
	assert.False(t, store.UserExists(43))

	// idempotent
	require.NoError(t, store.CreateUser(42, "something else"))

	items, err := store.Items(42)
	require.NoError(t, err)
	assert.Empty(t, items)

	info, err := os.ReadFile(filepath.Join(store.dataDir, "42", "info.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(info), "username: tester")
}

func TestSaveItemsEmptyListWritesEmptyArray(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.CreateUser(42, ""))

	data, err := os.ReadFile(filepath.Join(store.dataDir, "42", "tracked.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"trackedItems": []`)
	assert.NotContains(t, string(data), "null")
}

func TestUserIDs(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.CreateUser(7, ""))
	require.NoError(t, store.CreateUser(3, ""))

	// stray non-numeric dirs are ignored
	require.NoError(t, os.MkdirAll(filepath.Join(store.dataDir, "not-a-user"), 0o755))

	ids, err := store.UserIDs()
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 7}, ids)
}

func TestSaveItemsSortsByName(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.CreateUser(42, ""))

	items := []TrackedItem{
		New("zeta boots", "https://www.zalando.it/zeta.html", "M"),
		New("alpha shoes", "https://www.zalando.it/alpha.html", "S"),
	}
	require.NoError(t, store.SaveItems(42, items))

	// on-disk document is the sorted envelope
	data, err := os.ReadFile(filepath.Join(store.dataDir, "42", "tracked.json"))
	require.NoError(t, err)
	var envelope TrackedItems
	require.NoError(t, json.Unmarshal(data, &envelope))
	require.Len(t, envelope.TrackedItems, 2)
	assert.Equal(t, "alpha shoes", envelope.TrackedItems[0].Name)
	assert.Equal(t, "zeta boots", envelope.TrackedItems[1].Name)

	loaded, err := store.Items(42)
	require.NoError(t, err)
	assert.Equal(t, "alpha shoes", loaded[0].Name)
}

func TestItemsReadsThroughCache(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.CreateUser(42, ""))

	items := []TrackedItem{New("alpha shoes", "https://www.zalando.it/alpha.html", "S")}
	require.NoError(t, store.SaveItems(42, items))

	// a write goes to cache and disk in the same step, so a read right after
	// must observe it
	loaded, err := store.Items(42)
	require.NoError(t, err)
	require.Len(t, loaded, 1)

	// mutating the returned slice must not leak into the cache
	loaded[0].Name = "mutated"
	again, err := store.Items(42)
	require.NoError(t, err)
	assert.Equal(t, "alpha shoes", again[0].Name)
}

func TestItemsUnknownUser(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Items(999)
	assert.Error(t, err)
}

func TestDeleteUser(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.CreateUser(42, ""))
	require.NoError(t, store.DeleteUser(42))
	assert.False(t, store.UserExists(42))
}

func TestApprovalQueue(t *testing.T) {
	q := NewApprovalQueue()
	assert.False(t, q.Contains(1))

	q.Add(UserInfo{ID: 1, FirstName: "Ada"})
	assert.True(t, q.Contains(1))

	user, ok := q.Take(1)
	require.True(t, ok)
	assert.Equal(t, "Ada", user.FirstName)
	assert.False(t, q.Contains(1))

	_, ok = q.Take(1)
	assert.False(t, ok)
}
