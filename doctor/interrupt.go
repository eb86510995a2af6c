package doctor

import (
	"fmt"
	"os"

	"duck/shutdown"
)

// setUndo records how to put back a volume the probe changed. nil clears it.
func (d *doctor) setUndo(fn func()) {
	d.mu.Lock()
	d.undo = fn
	d.mu.Unlock()
}

func (d *doctor) runUndo() {
	d.mu.Lock()
	fn := d.undo
	d.undo = nil
	d.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// setupInterruptHandler exits on Ctrl+C after restoring any probed volume.
func (d *doctor) setupInterruptHandler() {
	sigChan := make(chan os.Signal, 1)
	shutdown.Notify(sigChan)
	go func() {
		<-sigChan
		d.runUndo()
		fmt.Fprintln(d.out, "\nInterrupted")
		os.Exit(1)
	}()
}
