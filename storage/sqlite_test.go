package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteLocalStore_RoundTripAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.db")

	store, err := NewSQLiteLocalStore(path)
	require.NoError(t, err)

	missing, err := store.Get("session")
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, store.Set("session", []byte(`{"v":1}`)))
	require.NoError(t, store.Set("session", []byte(`{"v":2}`)))
	require.NoError(t, store.Close())

	reopened, err := NewSQLiteLocalStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get("session")
	require.NoError(t, err)
	assert.Equal(t, `{"v":2}`, string(got))

	require.NoError(t, reopened.Delete("session"))
	got, err = reopened.Get("session")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRecordEncodeDecodeMerge(t *testing.T) {
	type row struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}

	rec, err := Encode(row{ID: "a", Status: "draft"})
	require.NoError(t, err)

	merged := Merge(rec, Record{"status": "published"})
	assert.Equal(t, "draft", rec["status"], "Merge must not mutate its base")

	var out row
	require.NoError(t, Decode(merged, &out))
	assert.Equal(t, row{ID: "a", Status: "published"}, out)
}
