//go:build !windows

package shutdown

import (
	"os"
	"os/signal"
	"syscall"
)

func Notify(ch chan os.Signal) {
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
}

// NotifyReload delivers SIGHUP, the conventional "re-read config" signal.
func NotifyReload(ch chan os.Signal) {
	signal.Notify(ch, syscall.SIGHUP)
}
