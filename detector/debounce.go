package detector

// Debouncer turns raw per-tick activity into a stable signal. Activity is
// reported on the first active tick; inactivity only after restoreTicks
// consecutive silent ticks, so short gaps in speech do not unduck.
type Debouncer struct {
	restoreTicks int
	active       bool
	silent       int
}

func NewDebouncer(restoreTicks int) *Debouncer {
	if restoreTicks < 1 {
		restoreTicks = 1
	}
	return &Debouncer{restoreTicks: restoreTicks}
}

// Tick feeds one raw sample and returns the debounced state.
func (d *Debouncer) Tick(raw bool) bool {
	if raw {
		d.active = true
		d.silent = 0
		return true
	}
	if !d.active {
		return false
	}
	d.silent++
	if d.silent >= d.restoreTicks {
		d.active = false
		d.silent = 0
	}
	return d.active
}

func (d *Debouncer) Active() bool { return d.active }

// SetRestoreTicks changes the silence requirement without dropping state.
func (d *Debouncer) SetRestoreTicks(n int) {
	if n < 1 {
		n = 1
	}
	d.restoreTicks = n
	if d.active && d.silent >= n {
		d.active = false
		d.silent = 0
	}
}
