package servicelist

// Record is a single published service entry.
//
// Position is the 0-based contiguous index that is both the primary key
// and the order in which services are advertised in the SSID. CatID is an
// opaque category identifier -- the store never interprets it. URI is
// mandatory; Desc and LongDesc are optional. ModTime is maintained by the
// store and must not be set directly by callers (see Commit).
type Record struct {
	Position int64  `db:"position"`
	CatID    uint32 `db:"cat_id"`
	URI      string `db:"uri"`
	Desc     *string `db:"desc"`
	LongDesc *string `db:"long_desc"`
	ModTime  int64  `db:"mod_time"`
}

// sameTuple reports whether two records carry identical published fields,
// ignoring Position and ModTime. Used by Commit to decide whether a
// record's mod_time should be preserved across a no-op edit.
func sameTuple(a, b Record) bool {
	if a.CatID != b.CatID || a.URI != b.URI {
		return false
	}
	if !strPtrEqual(a.Desc, b.Desc) {
		return false
	}
	return strPtrEqual(a.LongDesc, b.LongDesc)
}

func strPtrEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
