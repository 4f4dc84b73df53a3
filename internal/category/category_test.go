package category

import (
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := sqlx.Open("sqlite3", filepath.Join(t.TempDir(), "cat.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestLookupMissReturnsNotOK(t *testing.T) {
	db := openTestDB(t)
	store, err := Open(db)
	require.NoError(t, err)

	_, ok, err := store.Lookup(42)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLookupHit(t *testing.T) {
	db := openTestDB(t)
	store, err := Open(db)
	require.NoError(t, err)

	_, err = db.Exec(`INSERT INTO categories (id, name) VALUES (?, ?)`, 7, "News")
	require.NoError(t, err)

	name, ok, err := store.Lookup(7)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "News", name)
}
