package audio

import (
	"errors"
	"strings"
)

var (
	// ErrStaleHandle is returned for a session that no longer exists. Callers
	// re-enumerate instead of retrying the same handle.
	ErrStaleHandle = errors.New("audio: stale session handle")

	ErrUnsupported = errors.New("audio: per-application sessions not supported on this platform")
)

// EnumerationError wraps a failed call into the platform audio API.
type EnumerationError struct {
	Op  string
	Err error
}

func (e *EnumerationError) Error() string { return "audio: " + e.Op + ": " + e.Err.Error() }
func (e *EnumerationError) Unwrap() error { return e.Err }

// Session is a handle to one live output stream of one process. It is only
// valid until the process stops the stream.
type Session struct {
	ID      uint32 // backend identifier (pulse sink input index)
	Process string // normalized process name
	Name    string // stream or application title
}

type Enumerator interface {
	Sessions(process string) ([]Session, error)
	All() ([]Session, error)
	Peak(s Session) (float64, error)
	Volume(s Session) (float64, error)
	SetVolume(s Session, level float64) error
	Close()
}

// NormalizeProcess lowercases a process name and drops a trailing ".exe" so
// configs written for Windows match linux binaries.
func NormalizeProcess(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	return strings.TrimSuffix(n, ".exe")
}

func MatchProcess(a, b string) bool {
	return NormalizeProcess(a) == NormalizeProcess(b)
}

func clampLevel(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
