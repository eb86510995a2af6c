//go:build gui

package gui

import (
	"errors"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/widget"

	"duck/config"
)

// settingsForm edits the config document at path. The running daemon picks
// saved changes up through its file watcher.
type settingsForm struct {
	win  fyne.Window
	path string
	base *config.Config

	duck         *widget.Slider
	duckLabel    *widget.Label
	normal       *widget.Slider
	normalLabel  *widget.Label
	fade         *widget.Entry
	restore      *widget.Entry
	pause        *widget.Check
	startEnabled *widget.Check
	chime        *widget.Check
	monitored    *widget.Entry
	music        *widget.Entry
	status       *widget.Label
}

func levelSlider(label *widget.Label) *widget.Slider {
	s := widget.NewSlider(0, 1)
	s.Step = 0.01
	s.OnChanged = func(v float64) { label.SetText(percent(v)) }
	return s
}

func newSettingsForm(win fyne.Window, path string) *settingsForm {
	f := &settingsForm{
		win:          win,
		path:         path,
		duckLabel:    widget.NewLabel(""),
		normalLabel:  widget.NewLabel(""),
		fade:         widget.NewEntry(),
		restore:      widget.NewEntry(),
		pause:        widget.NewCheck("Pause the player while ducked", nil),
		startEnabled: widget.NewCheck("Duck as soon as duck starts", nil),
		chime:        widget.NewCheck("Chime when the hotkey toggles ducking", nil),
		monitored:    widget.NewMultiLineEntry(),
		music:        widget.NewMultiLineEntry(),
		status:       widget.NewLabel(""),
	}
	f.duck = levelSlider(f.duckLabel)
	f.normal = levelSlider(f.normalLabel)
	f.fade.SetPlaceHolder("seconds")
	f.restore.SetPlaceHolder("poll ticks of silence")
	f.monitored.SetMinRowsVisible(4)
	f.monitored.SetPlaceHolder("one app per line, e.g. chrome.exe")
	f.music.SetMinRowsVisible(2)
	f.status.Wrapping = fyne.TextWrapWord
	return f
}

func (f *settingsForm) content() fyne.CanvasObject {
	form := widget.NewForm(
		widget.NewFormItem("Duck level", container.NewBorder(nil, nil, nil, f.duckLabel, f.duck)),
		widget.NewFormItem("Normal level", container.NewBorder(nil, nil, nil, f.normalLabel, f.normal)),
		widget.NewFormItem("Fade duration", f.fade),
		widget.NewFormItem("Restore delay", f.restore),
		widget.NewFormItem("", f.pause),
		widget.NewFormItem("", f.startEnabled),
		widget.NewFormItem("", f.chime),
		widget.NewFormItem("Monitored apps", f.monitored),
		widget.NewFormItem("Music apps", f.music),
	)
	buttons := container.NewHBox(
		layout.NewSpacer(),
		widget.NewButton("Reset to Defaults", f.reset),
		widget.NewButton("Save", f.save),
	)
	return container.NewBorder(nil, container.NewVBox(f.status, buttons), nil, nil, container.NewVScroll(form))
}

// load fills the form from the document on disk.
func (f *settingsForm) load() error {
	cfg, err := config.Load(f.path)
	if err != nil {
		return err
	}
	f.set(cfg)
	f.status.SetText(f.path)
	return nil
}

func (f *settingsForm) set(cfg *config.Config) {
	f.base = cfg
	v := valuesFrom(cfg)
	f.duck.SetValue(v.DuckLevel)
	f.duckLabel.SetText(percent(v.DuckLevel))
	f.normal.SetValue(v.NormalLevel)
	f.normalLabel.SetText(percent(v.NormalLevel))
	f.fade.SetText(v.FadeDuration)
	f.restore.SetText(v.RestoreTicks)
	f.pause.SetChecked(v.Pause)
	f.startEnabled.SetChecked(v.StartEnabled)
	f.chime.SetChecked(v.Chime)
	f.monitored.SetText(v.Monitored)
	f.music.SetText(v.Music)
}

func (f *settingsForm) values() formValues {
	return formValues{
		DuckLevel:    f.duck.Value,
		NormalLevel:  f.normal.Value,
		FadeDuration: f.fade.Text,
		RestoreTicks: f.restore.Text,
		Pause:        f.pause.Checked,
		StartEnabled: f.startEnabled.Checked,
		Chime:        f.chime.Checked,
		Monitored:    f.monitored.Text,
		Music:        f.music.Text,
	}
}

func (f *settingsForm) save() {
	base := f.base
	if base == nil {
		base = config.Default()
	}
	cfg, err := f.values().build(base)
	if err != nil {
		dialog.ShowError(err, f.win)
		return
	}
	if err := config.Save(f.path, cfg); err != nil {
		dialog.ShowError(err, f.win)
		return
	}
	f.base = cfg
	f.status.SetText("Saved. duck applies the change on its next reload.")
}

func (f *settingsForm) reset() {
	dialog.ShowConfirm("Reset settings", "Replace every setting with its default?", func(ok bool) {
		if ok {
			f.set(config.Default())
			f.status.SetText("Defaults loaded. Save to keep them.")
		}
	}, f.win)
}

// RunSettings shows the settings window alone and returns when it closes.
func RunSettings(path string) error {
	if path == "" {
		return errors.New("gui: no config path")
	}
	a := app.NewWithID("io.duck.settings")
	a.Settings().SetTheme(&duckTheme{})
	win := a.NewWindow("duck settings")
	f := newSettingsForm(win, path)
	if err := f.load(); err != nil {
		return err
	}
	win.SetContent(f.content())
	win.Resize(fyne.NewSize(440, 560))
	win.ShowAndRun()
	return nil
}
