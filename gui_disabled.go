//go:build !gui

package main

import "duck/ducking"

// guiMode is never set without the gui tag.
var guiMode bool

func initGUI() {
	panic("duck: built without GUI support (rebuild with -tags gui)")
}

func initSettings() {
	panic("duck: built without GUI support (rebuild with -tags gui)")
}

func bindGUI(string, *ducking.Ducker) {}
func quitGUI()                        {}

// settingsHandler is nil so the tray leaves out its Settings item.
func settingsHandler(string) func() { return nil }
