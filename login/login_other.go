//go:build !darwin && !linux

package login

func Enabled() bool              { return false }
func Enable(args []string) error { return ErrUnsupported }
func Disable() error             { return nil }
