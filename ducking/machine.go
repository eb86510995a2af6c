// Package ducking lowers the music application while trigger applications
// play sound and restores it afterwards.
package ducking

type State int

const (
	Normal State = iota
	TransitioningDown
	TransitioningUp
	Ducked
)

func (s State) String() string {
	switch s {
	case Normal:
		return "normal"
	case TransitioningDown:
		return "transitioning_down"
	case TransitioningUp:
		return "transitioning_up"
	case Ducked:
		return "ducked"
	default:
		return "unknown"
	}
}

// Action is what the caller must do after feeding the Machine.
type Action int

const (
	None Action = iota
	FadeDown
	FadeUp
	ForceNormal
)

func (a Action) String() string {
	switch a {
	case FadeDown:
		return "fade_down"
	case FadeUp:
		return "fade_up"
	case ForceNormal:
		return "force_normal"
	default:
		return "none"
	}
}

// Machine is the pure transition table. It does no I/O and is not safe for
// concurrent use; Ducker serializes access.
//
// Every action that starts a fade bumps the generation. A fade reports
// completion with the generation it was started under, so completions of
// superseded fades are ignored.
type Machine struct {
	state   State
	enabled bool
	gen     uint64
}

func NewMachine(enabled bool) *Machine {
	return &Machine{enabled: enabled}
}

func (m *Machine) State() State       { return m.state }
func (m *Machine) Enabled() bool      { return m.enabled }
func (m *Machine) Generation() uint64 { return m.gen }

// Observe feeds one debounced activity sample.
func (m *Machine) Observe(active bool) Action {
	if !m.enabled {
		return None
	}
	switch {
	case m.state == Normal && active,
		m.state == TransitioningUp && active:
		m.state = TransitioningDown
		m.gen++
		return FadeDown
	case m.state == Ducked && !active,
		m.state == TransitioningDown && !active:
		m.state = TransitioningUp
		m.gen++
		return FadeUp
	}
	return None
}

// SetEnabled returns ForceNormal when ducking is switched off and None for
// every other call, including repeats.
func (m *Machine) SetEnabled(on bool) Action {
	if on == m.enabled {
		return None
	}
	m.enabled = on
	if on {
		return None
	}
	m.state = Normal
	m.gen++
	return ForceNormal
}

// Reset returns to Normal and invalidates any running fade.
func (m *Machine) Reset() {
	m.state = Normal
	m.gen++
}

// FadeDone settles a transitioning state. It reports whether the state
// changed.
func (m *Machine) FadeDone(gen uint64) bool {
	if gen != m.gen {
		return false
	}
	switch m.state {
	case TransitioningDown:
		m.state = Ducked
		return true
	case TransitioningUp:
		m.state = Normal
		return true
	}
	return false
}
