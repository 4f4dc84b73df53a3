// Package servicelist implements the transactional, shadow-copy-backed
// ordered list of published services. Every handle gets a private shadow
// on first read or write; Commit validates and atomically publishes it,
// including advertising the derived SSID through the wifi binding.
package servicelist

import (
	"bytes"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"

	"github.com/sdebeacon/sdebeacon/internal/wifi"
)

const schema = `
CREATE TABLE IF NOT EXISTS services (
	position INTEGER PRIMARY KEY,
	mod_time INTEGER NOT NULL,
	cat_id   INTEGER NOT NULL,
	uri      TEXT NOT NULL,
	desc     TEXT,
	long_desc TEXT
);
`

// List owns the published copy of the service catalog and the SSID
// binding it advertises through. A single List is normally shared by
// every handle in the process; sqlite's single-writer semantics plus the
// commit mutex are the only synchronization Open handles need.
type List struct {
	db     *sqlx.DB
	ssid   wifi.Binding
	mu     sync.Mutex
	logger *logrus.Entry
}

// OpenStore opens (creating if necessary) the sqlite-backed service list
// at path, bound to the given SSID driver adapter.
func OpenStore(path string, ssid wifi.Binding, logger *logrus.Entry) (*List, error) {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	db, err := sqlx.Open("sqlite3", fmt.Sprintf("%s?_foreign_keys=on", path))
	if err != nil {
		return nil, fmt.Errorf("servicelist: open sqlite: %w", err)
	}
	// Sqlite does not profit from concurrent writers; avoid lock-contention
	// errors by serializing all access through one connection.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("servicelist: create schema: %w", err)
	}
	return &List{db: db, ssid: ssid, logger: logger.WithField("component", "servicelist")}, nil
}

// Close releases the underlying database connection. It does not affect
// any handles still open against the list.
func (l *List) Close() error {
	return l.db.Close()
}

// Open allocates a new handle against the list. The handle has no shadow
// until its first read or write (see ensureShadow).
func (l *List) Open() *Handle {
	return &Handle{list: l}
}

// RawDB exposes the list's underlying sqlite handle so sibling read-only
// adapters (e.g. the category store) can share a single database file
// without the servicelist package depending on them.
func RawDB(l *List) *sqlx.DB {
	return l.db
}

// LastModTime returns the mod_time of the most recently committed record,
// or 0 for an empty list. This is the cache-invalidation key the SDE
// responder compares its derived caches against.
func (l *List) LastModTime() (int64, error) {
	var ts sql.NullInt64
	if err := l.db.Get(&ts, `SELECT MAX(mod_time) FROM services`); err != nil {
		return 0, fmt.Errorf("servicelist: %w: %v", ErrStoreError, err)
	}
	return ts.Int64, nil
}

func (l *List) publishedRecords() ([]Record, error) {
	var rows []Record
	err := l.db.Select(&rows, `SELECT position, mod_time, cat_id, uri, desc, long_desc FROM services ORDER BY position ASC`)
	if err != nil {
		return nil, fmt.Errorf("servicelist: %w: %v", ErrStoreError, err)
	}
	return rows, nil
}

func (l *List) publishedCount() (int64, error) {
	var n int64
	if err := l.db.Get(&n, `SELECT COUNT(*) FROM services`); err != nil {
		return 0, fmt.Errorf("servicelist: %w: %v", ErrStoreError, err)
	}
	return n, nil
}

func (l *List) publishedAt(pos int64) (Record, bool, error) {
	var rows []Record
	err := l.db.Select(&rows, `SELECT position, mod_time, cat_id, uri, desc, long_desc FROM services WHERE position = ?`, pos)
	if err != nil {
		return Record{}, false, fmt.Errorf("servicelist: %w: %v", ErrStoreError, err)
	}
	if len(rows) == 0 {
		return Record{}, false, nil
	}
	return rows[0], true, nil
}

// buildSSID renders the SSID form of spec.md §6: "##" followed by
// "^<cat_id>[,<desc>]" per record in ascending position order. It returns
// ErrSsidTooLong the moment the running length would exceed
// wifi.MaxSSIDLen.
func buildSSID(records []Record) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("##")
	for _, r := range records {
		fmt.Fprintf(&buf, "^%d", r.CatID)
		if r.Desc != nil && *r.Desc != "" {
			buf.WriteByte(',')
			buf.WriteString(*r.Desc)
		}
		if buf.Len() > wifi.MaxSSIDLen {
			return nil, ErrSsidTooLong
		}
	}
	return buf.Bytes(), nil
}

// validateContiguous checks that the given records, already sorted
// ascending by Position, form the range [0, N).
func validateContiguous(records []Record) error {
	for i, r := range records {
		if r.Position != int64(i) {
			return ErrInvalidServicePos
		}
	}
	return nil
}

func sortByPosition(records []Record) {
	sort.Slice(records, func(i, j int) bool { return records[i].Position < records[j].Position })
}

var nowFunc = func() int64 { return time.Now().Unix() }
