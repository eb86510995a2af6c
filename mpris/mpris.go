// Package mpris pauses and resumes media players over the MPRIS D-Bus
// interface.
package mpris

import (
	"errors"
	"strings"
)

const (
	busPrefix   = "org.mpris.MediaPlayer2."
	objectPath  = "/org/mpris/MediaPlayer2"
	playerIface = "org.mpris.MediaPlayer2.Player"
)

var ErrUnsupported = errors.New("mpris: not available on this platform")

// matches reports whether bus name belongs to the player of app. Bus names
// look like org.mpris.MediaPlayer2.spotify or
// org.mpris.MediaPlayer2.chromium.instance1234.
func matches(busName, app string) bool {
	if !strings.HasPrefix(busName, busPrefix) {
		return false
	}
	player := strings.TrimPrefix(busName, busPrefix)
	if i := strings.IndexByte(player, '.'); i >= 0 {
		player = player[:i]
	}
	want := strings.TrimSuffix(strings.ToLower(strings.TrimSpace(app)), ".exe")
	return strings.EqualFold(player, want)
}
