package servicelist

import (
	"fmt"
)

// Handle is a per-caller view onto a List. Reads before the first write
// observe the published copy at the moment of that read; the first of
// Get/AddFirst/AddLast/Insert/Replace/Remove/RemoveAll clones the
// currently published list into a private shadow, after which all reads
// and writes target the shadow until Commit or Close.
type Handle struct {
	list      *List
	shadow    []Record
	hasShadow bool
	closed    bool
}

// ensureShadow clones the published list into the handle's shadow on
// first access. It is a no-op on subsequent calls.
func (h *Handle) ensureShadow() error {
	if h.hasShadow {
		return nil
	}
	records, err := h.list.publishedRecords()
	if err != nil {
		return err
	}
	h.shadow = records
	h.hasShadow = true
	return nil
}

// Count returns the number of services currently visible to this handle:
// the published count before ensure-shadow, the shadow's length after.
func (h *Handle) Count() (int, error) {
	if h.closed {
		return 0, ErrClosed
	}
	if h.hasShadow {
		return len(h.shadow), nil
	}
	n, err := h.list.publishedCount()
	return int(n), err
}

// Get returns the record at idx, or ErrIndexOutOfRange if idx is not in
// [0, Count()). Get participates in ensure-shadow: the first Get call on a
// handle clones the published list before reading.
func (h *Handle) Get(idx int) (Record, error) {
	if h.closed {
		return Record{}, ErrClosed
	}
	if err := h.ensureShadow(); err != nil {
		return Record{}, err
	}
	if idx < 0 || idx >= len(h.shadow) {
		return Record{}, ErrIndexOutOfRange
	}
	return h.shadow[idx], nil
}

func (h *Handle) validateNew(rec Record) error {
	if rec.URI == "" {
		return ErrURIRequired
	}
	return nil
}

// AddFirst inserts rec at position 0, shifting every existing record's
// position up by one.
func (h *Handle) AddFirst(rec Record) error {
	return h.Insert(rec, 0)
}

// AddLast appends rec after every existing record.
func (h *Handle) AddLast(rec Record) error {
	if h.closed {
		return ErrClosed
	}
	if err := h.ensureShadow(); err != nil {
		return err
	}
	return h.Insert(rec, len(h.shadow))
}

// Insert places rec at idx, first incrementing the positions of every
// record in [idx, N) in descending order so no two records transiently
// share a position.
func (h *Handle) Insert(rec Record, idx int) error {
	if h.closed {
		return ErrClosed
	}
	if err := h.validateNew(rec); err != nil {
		return err
	}
	if err := h.ensureShadow(); err != nil {
		return err
	}
	n := len(h.shadow)
	if idx < 0 || idx > n {
		return ErrIndexOutOfRange
	}
	for i := n - 1; i >= idx; i-- {
		h.shadow[i].Position = int64(i + 1)
	}
	rec.Position = int64(idx)
	grown := make([]Record, 0, n+1)
	grown = append(grown, h.shadow[:idx]...)
	grown = append(grown, rec)
	grown = append(grown, h.shadow[idx:]...)
	h.shadow = grown
	return nil
}

// Replace overwrites the record at idx with rec, keeping idx's position.
func (h *Handle) Replace(rec Record, idx int) error {
	if h.closed {
		return ErrClosed
	}
	if err := h.validateNew(rec); err != nil {
		return err
	}
	if err := h.ensureShadow(); err != nil {
		return err
	}
	if idx < 0 || idx >= len(h.shadow) {
		return ErrIndexOutOfRange
	}
	rec.Position = int64(idx)
	rec.ModTime = h.shadow[idx].ModTime
	h.shadow[idx] = rec
	return nil
}

// Remove deletes the record at idx, then decrements the positions of
// every record in (idx, N) in ascending order.
func (h *Handle) Remove(idx int) error {
	if h.closed {
		return ErrClosed
	}
	if err := h.ensureShadow(); err != nil {
		return err
	}
	n := len(h.shadow)
	if idx < 0 || idx >= n {
		return ErrIndexOutOfRange
	}
	h.shadow = append(h.shadow[:idx], h.shadow[idx+1:]...)
	for i := idx; i < len(h.shadow); i++ {
		h.shadow[i].Position = int64(i)
	}
	return nil
}

// RemoveAll empties the shadow.
func (h *Handle) RemoveAll() error {
	if h.closed {
		return ErrClosed
	}
	if err := h.ensureShadow(); err != nil {
		return err
	}
	h.shadow = nil
	return nil
}

// LastPublishedModTime returns the mod_time of the currently published
// list, independent of any uncommitted shadow state on this handle.
func (h *Handle) LastPublishedModTime() (int64, error) {
	if h.closed {
		return 0, ErrClosed
	}
	return h.list.LastModTime()
}

// Close discards any uncommitted shadow. The published copy is unaffected.
func (h *Handle) Close() {
	h.closed = true
	h.shadow = nil
}

// Commit validates the shadow and, on success, atomically publishes it:
//  1. build the candidate SSID in position order, aborting with
//     ErrSsidTooLong if it would exceed the hardware cap;
//  2. validate positions form [0, N), aborting with ErrInvalidServicePos;
//  3. capture the previously published SSID for rollback;
//  4. stamp every shadow record's mod_time with the commit wall-clock
//     second;
//  5. restore the previous mod_time on any record whose other fields are
//     unchanged from the published copy at the same position (no-op
//     preservation);
//  6. under the list's commit lock, publish the SSID, then replace the
//     published records; if the records replace fails, roll back the
//     SSID and report ErrStoreError.
//
// A failed Commit from step 1 or 2 leaves the shadow intact for the
// caller to edit further. A failed commit from step 6 leaves the
// published copy unchanged.
func (h *Handle) Commit() error {
	if h.closed {
		return ErrClosed
	}
	if err := h.ensureShadow(); err != nil {
		return err
	}

	sortByPosition(h.shadow)

	ssid, err := buildSSID(h.shadow)
	if err != nil {
		return err
	}
	if err := validateContiguous(h.shadow); err != nil {
		return err
	}

	h.list.mu.Lock()
	defer h.list.mu.Unlock()

	previousSSID, err := h.list.ssid.GetSSID()
	if err != nil {
		return fmt.Errorf("servicelist: %w: read previous ssid: %v", ErrStoreError, err)
	}

	now := nowFunc()
	for i := range h.shadow {
		published, found, err := h.list.publishedAt(h.shadow[i].Position)
		if err != nil {
			return err
		}
		if found && sameTuple(published, h.shadow[i]) {
			h.shadow[i].ModTime = published.ModTime
		} else {
			h.shadow[i].ModTime = now
		}
	}

	if err := h.list.ssid.SetSSID(ssid); err != nil {
		return fmt.Errorf("servicelist: %w: publish ssid: %v", ErrStoreError, err)
	}

	if err := h.list.replaceRecords(h.shadow); err != nil {
		if rollbackErr := h.list.ssid.SetSSID(previousSSID); rollbackErr != nil {
			h.list.logger.WithError(rollbackErr).Error("failed to roll back ssid after failed commit")
		}
		return fmt.Errorf("servicelist: %w: %v", ErrStoreError, err)
	}

	h.hasShadow = false
	h.shadow = nil
	return nil
}

// replaceRecords atomically replaces the published table's contents with
// records, within a single sqlite transaction.
func (l *List) replaceRecords(records []Record) error {
	tx, err := l.db.Beginx()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM services`); err != nil {
		return fmt.Errorf("clear services: %w", err)
	}
	for _, r := range records {
		_, err := tx.Exec(
			`INSERT INTO services (position, mod_time, cat_id, uri, desc, long_desc) VALUES (?, ?, ?, ?, ?, ?)`,
			r.Position, r.ModTime, r.CatID, r.URI, r.Desc, r.LongDesc,
		)
		if err != nil {
			return fmt.Errorf("insert service at position %d: %w", r.Position, err)
		}
	}
	return tx.Commit()
}
