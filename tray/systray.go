package tray

import (
	"fyne.io/systray"
)

var (
	mEnabled  *systray.MenuItem
	mState    *systray.MenuItem
	mReload   *systray.MenuItem
	mSettings *systray.MenuItem
	mLogin    *systray.MenuItem
	mQuit     *systray.MenuItem
	ready     bool
)

// Init starts the tray and returns a channel closed when the user quits.
func Init() <-chan struct{} {
	start, _ := systray.RunWithExternalLoop(onReady, onExit)
	runLoop(start)
	return quitCh
}

func onReady() {
	v := current()
	systray.SetIcon(v.icon)
	systray.SetTooltip(v.tooltip)

	mState = systray.AddMenuItem("State: normal", "Current ducking state")
	mState.Disable()
	systray.AddSeparator()

	mEnabled = systray.AddMenuItemCheckbox("Ducking Enabled", "Lower music while other apps play", v.checked)
	mReload = systray.AddMenuItem("Reload Config", "Re-read the config file")
	if settingsFn != nil {
		mSettings = systray.AddMenuItem("Settings…", "Open the settings window")
	}
	mLogin = systray.AddMenuItemCheckbox("Start on Login", "Launch duck when you log in", loginOn)
	systray.AddSeparator()
	mQuit = systray.AddMenuItem("Quit", "Restore volume and quit duck")

	mu.Lock()
	ready = true
	mu.Unlock()
	refresh()

	go handleClicks()
}

func handleClicks() {
	var settingsCh chan struct{}
	if mSettings != nil {
		settingsCh = mSettings.ClickedCh
	}
	for {
		select {
		case <-mEnabled.ClickedCh:
			if toggleFn != nil {
				SetEnabled(toggleFn())
			}
		case <-mReload.ClickedCh:
			if reloadFn != nil {
				reloadFn()
			}
		case <-settingsCh:
			settingsFn()
		case <-mLogin.ClickedCh:
			want := !mLogin.Checked()
			if loginCb != nil {
				if err := loginCb(want); err != nil {
					SetError(err.Error())
					continue
				}
			}
			if want {
				mLogin.Check()
			} else {
				mLogin.Uncheck()
			}
		case <-mQuit.ClickedCh:
			Quit()
			return
		case <-quitCh:
			return
		}
	}
}

// refresh pushes the current view to the tray once it is up.
func refresh() {
	mu.Lock()
	up := ready
	s := state
	mu.Unlock()
	if !up {
		return
	}
	v := current()
	systray.SetIcon(v.icon)
	systray.SetTooltip(v.tooltip)
	mState.SetTitle("State: " + s)
	if v.checked {
		mEnabled.Check()
	} else {
		mEnabled.Uncheck()
	}
}

func onExit() {
	closeOnce.Do(func() { close(quitCh) })
}
