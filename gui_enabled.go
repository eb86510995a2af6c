//go:build gui

package main

import (
	"flag"
	"fmt"
	"os"
	"os/exec"
	"runtime"

	"duck/ducking"
	"duck/gui"
	"duck/log"
)

var guiApp *gui.App
var guiMode bool

func initGUI() {
	guiMode = true

	// Lock this goroutine to OS thread for Fyne/GLFW
	runtime.LockOSThread()

	guiApp = gui.NewApp(func() {
		run()
	})
	addSink(guiApp)
	if err := gui.Run(guiApp); err != nil {
		panic(err)
	}
}

// initSettings runs the standalone settings window started from the tray.
func initSettings() {
	runtime.LockOSThread()

	fs := flag.NewFlagSet("settings", flag.ExitOnError)
	fs.Bool("settings", true, "")
	configPath := fs.String("config", "", "")
	fs.Parse(os.Args[1:])

	if err := gui.RunSettings(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func bindGUI(configPath string, d *ducking.Ducker) {
	if guiApp != nil {
		guiApp.Bind(configPath, d.Toggle, d.IsEnabled(), d.State(), gracefulShutdown)
	}
}

func quitGUI() {
	if guiApp != nil {
		guiApp.Quit()
	}
}

// settingsHandler opens the settings window in its own process so the
// tray loop keeps the main thread.
func settingsHandler(configPath string) func() {
	return func() {
		exe, err := os.Executable()
		if err != nil {
			log.Errorf("settings: %v", err)
			return
		}
		cmd := exec.Command(exe, "-settings", "-config", configPath)
		if err := cmd.Start(); err != nil {
			log.Errorf("settings: %v", err)
			return
		}
		go cmd.Wait()
	}
}
