//go:build windows

package shutdown

import (
	"os"
	"os/signal"
)

func Notify(ch chan os.Signal) {
	signal.Notify(ch, os.Interrupt)
}

// NotifyReload is a no-op: Windows has no reload signal. Use the tray.
func NotifyReload(ch chan os.Signal) {}
