package hotkey

// Linux evdev key codes (input-event-codes.h).
const (
	keyLCtrl  = 29
	keyRCtrl  = 97
	keyLShift = 42
	keyRShift = 54
	keyD      = 32
)

const (
	keyRelease = 0
	keyPress   = 1
	keyRepeat  = 2
)

// combo tracks modifier state across key events and reports edges of the
// full Ctrl+Shift+D chord. Autorepeat never produces a second press.
type combo struct {
	ctrl, shift, held bool
}

func (c *combo) feed(code uint16, value int32) (down, up bool) {
	pressed := value == keyPress || value == keyRepeat
	released := value == keyRelease

	switch code {
	case keyLCtrl, keyRCtrl:
		c.ctrl = pressed || (!released && c.ctrl)
	case keyLShift, keyRShift:
		c.shift = pressed || (!released && c.shift)
	case keyD:
		if value == keyPress && !c.held && c.ctrl && c.shift {
			c.held = true
			return true, false
		}
		if released && c.held {
			c.held = false
			return false, true
		}
	}
	return false, false
}
