package tray

import (
	"sync"
	"time"
)

var (
	quitCh    = make(chan struct{})
	closeOnce sync.Once

	mu       sync.Mutex
	enabled  = true
	state    = "normal"
	errorMsg string

	toggleFn   func() bool
	reloadFn   func()
	settingsFn func()

	loginOn bool
	loginCb func(bool) error
)

func OnToggle(fn func() bool)     { toggleFn = fn }
func OnReload(fn func())          { reloadFn = fn }
func OnSettings(fn func())        { settingsFn = fn }
func SetLogin(on bool)            { loginOn = on }
func OnLogin(fn func(bool) error) { loginCb = fn }

// SetEnabled mirrors the ducking switch into the checkbox and icon.
func SetEnabled(on bool) {
	mu.Lock()
	enabled = on
	mu.Unlock()
	refresh()
}

// SetState shows a DuckState name ("normal", "ducked", ...).
func SetState(s string) {
	mu.Lock()
	state = s
	mu.Unlock()
	refresh()
}

// SetError shows msg in the tooltip with a warning badge for ten seconds.
func SetError(msg string) {
	mu.Lock()
	errorMsg = msg
	mu.Unlock()
	refresh()
	go func() {
		time.Sleep(10 * time.Second)
		mu.Lock()
		if errorMsg == msg {
			errorMsg = ""
		}
		mu.Unlock()
		refresh()
	}()
}

func Quit() {
	closeOnce.Do(func() { close(quitCh) })
}

// view is what the tray currently shows.
type view struct {
	icon    []byte
	tooltip string
	checked bool
}

func current() view {
	mu.Lock()
	defer mu.Unlock()
	return viewFor(enabled, state, errorMsg)
}

func viewFor(on bool, s, errMsg string) view {
	v := view{checked: on}
	switch {
	case errMsg != "":
		v.icon = iconError
		v.tooltip = "duck – " + errMsg
		return v
	case !on:
		v.icon = iconOff
		v.tooltip = "duck – disabled"
		return v
	}
	switch s {
	case "ducked":
		v.icon = iconDucked
	case "transitioning_down", "transitioning_up":
		v.icon = iconFading
	default:
		v.icon = iconIdle
	}
	v.tooltip = "duck – " + s
	return v
}

// Icon returns the tray image for a ducking state, for hosts that draw
// their own tray.
func Icon(on bool, s string) []byte {
	return viewFor(on, s, "").icon
}
