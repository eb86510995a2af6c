//go:build !linux

package tray

import "golang.design/x/hotkey/mainthread"

// Cocoa and Win32 tray calls must run on the main thread.
func runLoop(start func()) {
	done := make(chan struct{})
	mainthread.Call(func() {
		start()
		close(done)
	})
	<-done
}
