// Package wifi adapts the service list store to the wireless driver's SSID
// interface. This is the one external collaborator spec.md keeps narrowly
// scoped to "set_ssid(bytes, len)" / "get_ssid(buffer, cap)": the core
// never reaches into driver internals, it only calls through a Binding.
package wifi

import "errors"

// MaxSSIDLen is the hardware cap on SSID length in bytes.
const MaxSSIDLen = 32

// ErrTooLong is returned by SetSSID when data exceeds MaxSSIDLen.
var ErrTooLong = errors.New("wifi: ssid exceeds maximum length")

// ErrUnknownBinding is returned by NewBinding for an unregistered name.
var ErrUnknownBinding = errors.New("wifi: unknown binding implementation")

// Binding is the narrow interface the service list store consumes from the
// wireless driver. Implementations may be backed by a real network
// interface, or, for tests and the default configuration, an in-memory
// fake.
type Binding interface {
	// SetSSID publishes data as the new SSID. data may contain NUL bytes;
	// an SSID is not a C string. Returns ErrTooLong if len(data) exceeds
	// MaxSSIDLen, or a driver-specific error on failure.
	SetSSID(data []byte) error

	// GetSSID returns the currently advertised SSID bytes.
	GetSSID() ([]byte, error)
}
