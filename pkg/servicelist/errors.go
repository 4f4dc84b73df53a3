package servicelist

import "errors"

// Error kinds per the commit and access contract. SsidTooLong and
// InvalidServicePos are reported verbatim to callers; everything else
// from the underlying store is mapped to ErrStoreError after a
// best-effort rollback.
var (
	ErrSsidTooLong       = errors.New("servicelist: ssid would exceed 32 bytes")
	ErrInvalidServicePos = errors.New("servicelist: service positions are not contiguous")
	ErrURIRequired       = errors.New("servicelist: uri is required")
	ErrIndexOutOfRange   = errors.New("servicelist: index out of range")
	ErrStoreError        = errors.New("servicelist: store operation failed")
	ErrClosed            = errors.New("servicelist: handle is closed")
)
