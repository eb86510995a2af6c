//go:build linux

package tray

// The linux tray talks StatusNotifierItem over D-Bus and has no thread
// affinity.
func runLoop(start func()) { start() }
