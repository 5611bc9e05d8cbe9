package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStores(t *testing.T) map[string]Store {
	t.Helper()

	sqliteStore, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqliteStore.Close() })

	return map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": sqliteStore,
	}
}

func TestStore_SetGetRemove(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			_, ok, err := store.Get("missing")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, store.Set("auth_token", "abc"))
			value, ok, err := store.Get("auth_token")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, "abc", value)

			require.NoError(t, store.Set("auth_token", "def"))
			value, _, err = store.Get("auth_token")
			require.NoError(t, err)
			assert.Equal(t, "def", value)

			require.NoError(t, store.Remove("auth_token"))
			_, ok, err = store.Get("auth_token")
			require.NoError(t, err)
			assert.False(t, ok)

			// Removing twice is fine
			require.NoError(t, store.Remove("auth_token"))
		})
	}
}

func TestStore_JSONHelpers(t *testing.T) {
	type sortConfig struct {
		Key       string `json:"key"`
		Direction string `json:"direction"`
	}

	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, SetJSON(store, SortKey("campaign"), sortConfig{Key: "roas", Direction: "desc"}))

			var got sortConfig
			ok, err := GetJSON(store, "campaign_sort", &got)
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, sortConfig{Key: "roas", Direction: "desc"}, got)
		})
	}
}

func TestGetJSON_CorruptValueIsTreatedAsMissing(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Set(KeyConversations, "{not json"))

	var list []map[string]any
	ok, err := GetJSON(store, KeyConversations, &list)
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")

	store, err := OpenSQLite(dir)
	require.NoError(t, err)
	require.NoError(t, store.Set(KeyAnomalyTargetDate, "2026-01-15"))
	require.NoError(t, store.Close())

	reopened, err := OpenSQLite(dir)
	require.NoError(t, err)
	defer reopened.Close()

	value, ok, err := reopened.Get(KeyAnomalyTargetDate)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "2026-01-15", value)
}

func TestKeyHelpers(t *testing.T) {
	assert.Equal(t, "product_filters", FiltersKey("product"))
	assert.Equal(t, "product_sort", SortKey("product"))
}
