package wifi

import "sync"

func init() {
	RegisterBinding("virtual", NewVirtualBinding)
}

// VirtualBinding is an in-memory fake of the SSID driver interface, used by
// tests and as the default binding in internal/config.
type VirtualBinding struct {
	mu   sync.Mutex
	ssid []byte
}

// NewVirtualBinding constructs a VirtualBinding. iface is accepted for
// signature compatibility with NewBindingFunc and otherwise ignored.
func NewVirtualBinding(iface string) (Binding, error) {
	return &VirtualBinding{}, nil
}

// SetSSID implements Binding.
func (v *VirtualBinding) SetSSID(data []byte) error {
	if len(data) > MaxSSIDLen {
		return ErrTooLong
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.ssid = append([]byte(nil), data...)
	return nil
}

// GetSSID implements Binding.
func (v *VirtualBinding) GetSSID() ([]byte, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]byte(nil), v.ssid...), nil
}
