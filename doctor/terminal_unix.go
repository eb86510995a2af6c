//go:build !windows

package doctor

import "os/exec"

// resetTerminal undoes raw mode left behind by evdev readers or a killed
// prompt.
func resetTerminal() {
	exec.Command("stty", "sane").Run()
}
