// Package category is a narrow, read-only adapter to the category
// browser: a lookup from opaque category id to a human-readable name. Per
// spec.md §1/§4.5, neither the SDE responder nor the CGI write path
// depends on this lookup or on the category browser's traversal
// algorithm -- category ids round-trip as opaque integers everywhere
// else. The catalog editor page does not use this store either; within
// this module it is only opened by the daemon, which creates its table.
package category

import (
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
)

const schema = `
CREATE TABLE IF NOT EXISTS categories (
	id   INTEGER PRIMARY KEY,
	name TEXT NOT NULL
);
`

// Store is a read-only lookup from category id to name.
type Store struct {
	db *sqlx.DB
}

// Open attaches a Store to the given sqlite handle, creating the
// categories table if it does not already exist.
func Open(db *sqlx.DB) (*Store, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("category: create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Lookup returns the name registered for catID, or ok=false if none is
// registered.
func (s *Store) Lookup(catID uint32) (name string, ok bool, err error) {
	var n sql.NullString
	err = s.db.Get(&n, `SELECT name FROM categories WHERE id = ?`, catID)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("category: lookup %d: %w", catID, err)
	}
	return n.String, n.Valid, nil
}
