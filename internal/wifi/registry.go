package wifi

// NewBindingFunc constructs a Binding for a named interface implementation.
// Implementations register themselves in an init() function, following the
// same pluggable-transport registry the teacher repository uses for its
// interchangeable CAN bus backends.
type NewBindingFunc func(iface string) (Binding, error)

var availableBindings = make(map[string]NewBindingFunc)

// ImplementedBindings lists the binding names this module ships.
var ImplementedBindings = []string{"virtual", "nl80211"}

// RegisterBinding makes a named binding implementation available to NewBinding.
func RegisterBinding(name string, ctor NewBindingFunc) {
	availableBindings[name] = ctor
}

// NewBinding constructs the named binding for the given network interface.
func NewBinding(name, iface string) (Binding, error) {
	ctor, ok := availableBindings[name]
	if !ok {
		return nil, ErrUnknownBinding
	}
	return ctor(iface)
}
