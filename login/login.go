// Package login registers duck to start when the user logs in.
package login

import (
	"errors"
	"fmt"
	"os"
)

var ErrUnsupported = errors.New("login: start on login not supported on this platform")

// command is the current executable followed by args.
func command(args []string) ([]string, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("resolve executable: %w", err)
	}
	return append([]string{exe}, args...), nil
}
