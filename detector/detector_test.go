package detector

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"duck/audio"
)

func newTestDetector(f *audio.FakeEnumerator, apps ...string) *Detector {
	return New(f, zerolog.Nop(), apps, 0.0001, 3)
}

func TestPollNoSessionsIsSilent(t *testing.T) {
	f := audio.NewFakeEnumerator()
	d := newTestDetector(f, "chrome")
	assert.False(t, d.Poll())
}

func TestPollThresholdIsExclusive(t *testing.T) {
	f := audio.NewFakeEnumerator()
	f.Start("chrome", 1)
	d := newTestDetector(f, "chrome")

	f.SetPeak("chrome", 0.0001)
	assert.False(t, d.Poll())

	f.SetPeak("chrome", 0.0002)
	assert.True(t, d.Poll())
}

func TestPollAggregatesWithOr(t *testing.T) {
	f := audio.NewFakeEnumerator()
	f.Start("chrome.exe", 1)
	f.Start("discord", 1)
	d := newTestDetector(f, "Chrome.exe", "discord")

	f.SetPeak("discord", 0.4)
	assert.True(t, d.Poll())

	states := d.States()
	require.Len(t, states, 2)
	assert.False(t, states[0].Active)
	assert.True(t, states[1].Active)
	assert.Equal(t, 0.4, states[1].Peak)
	assert.Equal(t, 1, states[1].Sessions)
}

func TestPollMaxOverSessions(t *testing.T) {
	f := audio.NewFakeEnumerator()
	f.Start("chrome", 1)
	f.Start("chrome", 1)
	d := newTestDetector(f, "chrome")
	f.SetPeak("chrome", 0.3)
	require.True(t, d.Poll())
	assert.Equal(t, 2, d.States()[0].Sessions)
}

func TestPollDebouncesRelease(t *testing.T) {
	f := audio.NewFakeEnumerator()
	f.Start("chrome", 1)
	d := newTestDetector(f, "chrome")

	f.SetPeak("chrome", 0.5)
	require.True(t, d.Poll())

	f.SetPeak("chrome", 0)
	assert.True(t, d.Poll())
	assert.True(t, d.Poll())
	assert.False(t, d.Poll())
}

func TestPollEnumerationFailureCountsAsSilent(t *testing.T) {
	f := audio.NewFakeEnumerator()
	f.Start("chrome", 1)
	f.SetPeak("chrome", 0.5)
	d := New(f, zerolog.Nop(), []string{"chrome"}, 0.0001, 1)

	require.True(t, d.Poll())
	f.Fail("chrome", errors.New("backend gone"))
	assert.False(t, d.Poll())

	f.Fail("chrome", nil)
	assert.True(t, d.Poll())
}

func TestPollLastChanged(t *testing.T) {
	f := audio.NewFakeEnumerator()
	f.Start("chrome", 1)
	d := newTestDetector(f, "chrome")
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	d.now = func() time.Time { return at }

	f.SetPeak("chrome", 0.5)
	d.Poll()
	assert.Equal(t, at, d.States()[0].LastChanged)

	d.now = func() time.Time { return at.Add(time.Second) }
	d.Poll()
	assert.Equal(t, at, d.States()[0].LastChanged, "unchanged state keeps timestamp")
}

func TestConfigureKeepsStateForRetainedApps(t *testing.T) {
	f := audio.NewFakeEnumerator()
	f.Start("chrome", 1)
	d := newTestDetector(f, "chrome")
	f.SetPeak("chrome", 0.5)
	require.True(t, d.Poll())

	f.SetPeak("chrome", 0)
	d.Configure([]string{"chrome", "zoom"}, 0.0001, 3)
	assert.True(t, d.Poll(), "retained app keeps its debounce window")

	states := d.States()
	require.Len(t, states, 2)
	assert.Equal(t, "zoom", states[1].App)
}
