//go:build gui

package gui

import (
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/driver/desktop"

	"duck/ducking"
	"duck/tray"
)

// App hosts the daemon inside fyne: fyne owns the main thread and the tray,
// the settings window opens from the tray menu.
type App struct {
	fyneApp fyne.App
	window  fyne.Window
	desk    desktop.App
	onReady func()

	menu      *fyne.Menu
	mState    *fyne.MenuItem
	mEnabled  *fyne.MenuItem
	mSettings *fyne.MenuItem

	mu         sync.Mutex
	configPath string
	toggle     func() bool
	onQuit     func()
	enabled    bool
	state      ducking.State
}

func NewApp(onReady func()) *App {
	return &App{onReady: onReady, enabled: true}
}

// Bind connects the tray menu to the running daemon.
func (a *App) Bind(configPath string, toggle func() bool, enabled bool, state ducking.State, onQuit func()) {
	a.mu.Lock()
	a.configPath = configPath
	a.toggle = toggle
	a.onQuit = onQuit
	a.enabled = enabled
	a.state = state
	a.mu.Unlock()
	a.refresh()
}

func Run(a *App) error {
	a.fyneApp = app.NewWithID("io.duck.app")
	a.fyneApp.Settings().SetTheme(&duckTheme{})

	a.window = a.fyneApp.NewWindow("duck settings")
	a.window.SetCloseIntercept(func() { a.window.Hide() })
	a.window.Resize(fyne.NewSize(440, 560))

	if desk, ok := a.fyneApp.(desktop.App); ok {
		a.desk = desk
		a.mState = fyne.NewMenuItem("State: normal", nil)
		a.mState.Disabled = true
		a.mEnabled = fyne.NewMenuItem("Ducking Enabled", a.clickToggle)
		a.mEnabled.Checked = true
		a.mSettings = fyne.NewMenuItem("Settings…", a.showSettings)
		quit := fyne.NewMenuItem("Quit", a.clickQuit)
		quit.IsQuit = true
		a.menu = fyne.NewMenu("duck",
			a.mState,
			fyne.NewMenuItemSeparator(),
			a.mEnabled,
			a.mSettings,
			fyne.NewMenuItemSeparator(),
			quit,
		)
		desk.SetSystemTrayMenu(a.menu)
		desk.SetSystemTrayIcon(fyne.NewStaticResource("duck.png", tray.Icon(true, ducking.Normal.String())))
	}

	go a.onReady()

	// Run event loop without showing the window; the tray opens it.
	a.fyneApp.Run()
	return nil
}

func (a *App) Quit() {
	if a.fyneApp != nil {
		fyne.Do(a.fyneApp.Quit)
	}
}

func (a *App) clickToggle() {
	a.mu.Lock()
	fn := a.toggle
	a.mu.Unlock()
	if fn == nil {
		return
	}
	go func() { a.EnabledChanged(fn()) }()
}

func (a *App) clickQuit() {
	a.mu.Lock()
	fn := a.onQuit
	a.mu.Unlock()
	if fn == nil {
		a.fyneApp.Quit()
		return
	}
	// onQuit restores volume before exit; keep it off the UI thread.
	go fn()
}

func (a *App) showSettings() {
	a.mu.Lock()
	path := a.configPath
	a.mu.Unlock()

	f := newSettingsForm(a.window, path)
	if err := f.load(); err != nil {
		dialog.ShowError(err, a.window)
	}
	a.window.SetContent(f.content())
	a.window.Show()
	a.window.RequestFocus()
}

// refresh pushes enabled and state into the tray menu and icon.
func (a *App) refresh() {
	a.mu.Lock()
	on, s := a.enabled, a.state
	a.mu.Unlock()
	if a.desk == nil {
		return
	}
	fyne.Do(func() {
		a.mEnabled.Checked = on
		if on {
			a.mState.Label = "State: " + s.String()
		} else {
			a.mState.Label = "State: disabled"
		}
		a.menu.Refresh()
		a.desk.SetSystemTrayIcon(fyne.NewStaticResource("duck.png", tray.Icon(on, s.String())))
	})
}

// EventSink implementation

func (a *App) StateChanged(s ducking.State) {
	a.mu.Lock()
	a.state = s
	a.mu.Unlock()
	a.refresh()
}

func (a *App) EnabledChanged(on bool) {
	a.mu.Lock()
	a.enabled = on
	a.mu.Unlock()
	a.refresh()
}

func (a *App) Error(msg string) {
	if a.fyneApp != nil {
		a.fyneApp.SendNotification(fyne.NewNotification("duck", msg))
	}
}
