//go:build linux

package main

import "os"

func main() {
	for _, arg := range os.Args[1:] {
		switch arg {
		case "-gui":
			initGUI()
			return
		case "-settings":
			initSettings()
			return
		}
	}
	run()
}
