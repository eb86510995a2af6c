//go:build !linux

package main

import (
	"os"
	"runtime"

	"golang.design/x/hotkey/mainthread"
)

func init() {
	runtime.LockOSThread()
}

func main() {
	// Check for -gui and -settings early (before flag.Parse in run())
	for _, arg := range os.Args[1:] {
		switch arg {
		case "-gui":
			initGUI() // takes main thread, calls run() in goroutine
			return
		case "-settings":
			initSettings()
			return
		}
	}
	mainthread.Init(run)
}
