package hotkey

// Hotkey is the global Ctrl+Shift+D combination.
type Hotkey interface {
	Register() error
	Unregister()
	Keydown() <-chan struct{}
	Keyup() <-chan struct{}
}

const Combo = "Ctrl+Shift+D"
