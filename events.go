package main

import (
	"sync"

	"duck/ducking"
)

// EventSink abstracts the display layer so both the Bubble Tea TUI
// and the fyne settings window receive the same ducking events.
type EventSink interface {
	StateChanged(state ducking.State)
	EnabledChanged(on bool)
	Error(msg string)
}

var (
	sinksMu sync.Mutex
	sinks   []EventSink
)

func addSink(s EventSink) {
	sinksMu.Lock()
	sinks = append(sinks, s)
	sinksMu.Unlock()
}

func emit(fn func(EventSink)) {
	sinksMu.Lock()
	cur := make([]EventSink, len(sinks))
	copy(cur, sinks)
	sinksMu.Unlock()
	for _, s := range cur {
		fn(s)
	}
}
