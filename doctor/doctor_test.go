package doctor

import (
	"bufio"
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"duck/audio"
	"duck/config"
)

func newTestDoctor(t *testing.T, input string, f *audio.FakeEnumerator) (*doctor, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	d := &doctor{
		out:     &out,
		in:      bufio.NewReader(strings.NewReader(input)),
		newEnum: func() (audio.Enumerator, error) { return f, nil },
	}
	cfg := config.Default()
	cfg.MonitoredApps = []string{"chrome"}
	cfg.MusicApps = []string{"spotify"}
	cfg.CheckInterval = 0.01
	d.cfg = cfg
	return d, &out
}

func TestCheckConfigWritesDefaults(t *testing.T) {
	d, out := newTestDoctor(t, "", audio.NewFakeEnumerator())
	path := filepath.Join(t.TempDir(), "config.toml")

	require.True(t, d.checkConfig(path))
	assert.Contains(t, out.String(), "PASS")
	_, err := os.Stat(path)
	assert.NoError(t, err)
}

func TestCheckConfigListsInvalidFields(t *testing.T) {
	d, out := newTestDoctor(t, "", audio.NewFakeEnumerator())
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("duck_level = 0.9\nnormal_level = 0.5\n"), 0644))

	assert.False(t, d.checkConfig(path))
	assert.Contains(t, out.String(), "duck_level must not exceed normal_level")
}

func TestCheckBackendFailure(t *testing.T) {
	d, out := newTestDoctor(t, "", nil)
	d.newEnum = func() (audio.Enumerator, error) { return nil, audio.ErrUnsupported }
	assert.False(t, d.checkBackend())
	assert.Contains(t, out.String(), "FAIL")
}

func TestCheckSessionsMarksAudibleTrigger(t *testing.T) {
	f := audio.NewFakeEnumerator()
	f.Start("chrome", 1)
	f.Start("spotify", 1)
	f.SetPeak("chrome", 0.3)

	d, out := newTestDoctor(t, "\n", f)
	d.enum = f
	require.True(t, d.checkSessions())
	assert.Contains(t, out.String(), "trigger")
	assert.Contains(t, out.String(), "target")
	assert.Contains(t, out.String(), "PASS")
}

func TestCheckSessionsSilent(t *testing.T) {
	f := audio.NewFakeEnumerator()
	f.Start("chrome", 1)

	d, out := newTestDoctor(t, "\n", f)
	d.enum = f
	assert.False(t, d.checkSessions())
	assert.Contains(t, out.String(), "no monitored app")
}

func TestCheckVolumeRestores(t *testing.T) {
	f := audio.NewFakeEnumerator()
	f.Start("spotify", 0.8)

	d, out := newTestDoctor(t, "y\n", f)
	d.enum = f
	require.True(t, d.checkVolume())
	assert.Equal(t, []float64{d.cfg.DuckLevel, 0.8}, f.Writes("spotify"))
	assert.Contains(t, out.String(), "PASS")
}

func TestCheckVolumeNoMusic(t *testing.T) {
	f := audio.NewFakeEnumerator()
	d, out := newTestDoctor(t, "", f)
	d.enum = f
	assert.False(t, d.checkVolume())
	assert.Contains(t, out.String(), "none of spotify is playing")
}

func TestCheckPlayerSkippedWhenOff(t *testing.T) {
	d, out := newTestDoctor(t, "", audio.NewFakeEnumerator())
	assert.True(t, d.checkPlayer())
	assert.Contains(t, out.String(), "SKIP")
}

func TestRoleUnknown(t *testing.T) {
	d, _ := newTestDoctor(t, "", audio.NewFakeEnumerator())
	assert.Equal(t, "-", d.role("vlc"))
	assert.Equal(t, "trigger", d.role("Chrome.exe"))
}

func TestUndoRunsOnce(t *testing.T) {
	f := audio.NewFakeEnumerator()
	s := f.Start("spotify", 0.8)
	d, _ := newTestDoctor(t, "", f)
	d.enum = f

	d.setUndo(func() { f.SetVolume(s, 0.8) })
	require.NoError(t, f.SetVolume(s, 0.1))
	d.runUndo()
	d.runUndo()

	v, ok := f.VolumeOf("spotify")
	require.True(t, ok)
	assert.Equal(t, 0.8, v)
	assert.Equal(t, []float64{0.1, 0.8}, f.Writes("spotify"))
}

func TestCheckVolumeUnattended(t *testing.T) {
	f := audio.NewFakeEnumerator()
	f.Start("spotify", 0.5)

	d, out := newTestDoctor(t, "", f)
	d.enum = f
	d.unattended = true
	require.True(t, d.checkVolume())
	assert.Equal(t, []float64{d.cfg.DuckLevel, 0.5}, f.Writes("spotify"))
	assert.Contains(t, out.String(), "not confirmed")
}
