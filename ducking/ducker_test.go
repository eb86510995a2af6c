package ducking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"duck/audio"
	"duck/config"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.MonitoredApps = []string{"chrome"}
	cfg.MusicApps = []string{"spotify"}
	cfg.DuckLevel = 0.15
	cfg.NormalLevel = 1.0
	cfg.FadeDuration = 0
	cfg.FadeSteps = 20
	cfg.RestoreTicks = 1
	return cfg
}

func newTestDucker(t *testing.T, cfg *config.Config) (*Ducker, *audio.FakeEnumerator) {
	t.Helper()
	f := audio.NewFakeEnumerator()
	d := New(f, cfg, zerolog.Nop())
	t.Cleanup(d.Shutdown)
	return d, f
}

// settle runs one tick and waits for any fade it started.
func settle(d *Ducker) {
	d.tick()
	d.fades.Wait()
}

func TestDuckAndRestore(t *testing.T) {
	d, f := newTestDucker(t, testConfig())
	f.Start("spotify", 1)
	f.Start("chrome", 1)

	f.SetPeak("chrome", 0.5)
	settle(d)
	assert.Equal(t, Ducked, d.State())
	v, _ := f.VolumeOf("spotify")
	assert.Equal(t, 0.15, v)

	writes := f.Writes("spotify")
	require.Len(t, writes, 20)
	prev := 1.0
	for _, w := range writes {
		assert.InDelta(t, 0.0425, prev-w, 1e-9)
		prev = w
	}

	f.SetPeak("chrome", 0)
	settle(d)
	assert.Equal(t, Normal, d.State())
	v, _ = f.VolumeOf("spotify")
	assert.Equal(t, 1.0, v)
	assert.Equal(t, 1, d.Ducks())
}

func TestStateCallbacksInOrder(t *testing.T) {
	d, f := newTestDucker(t, testConfig())
	f.Start("spotify", 1)
	f.Start("chrome", 1)

	var mu sync.Mutex
	var got []State
	d.OnStateChange(func(s State) {
		mu.Lock()
		got = append(got, s)
		mu.Unlock()
	})

	f.SetPeak("chrome", 0.5)
	settle(d)
	f.SetPeak("chrome", 0)
	settle(d)
	d.Shutdown()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []State{TransitioningDown, Ducked, TransitioningUp, Normal}, got)
}

func TestSingleTickGapDoesNotUnduck(t *testing.T) {
	cfg := testConfig()
	cfg.RestoreTicks = 3
	d, f := newTestDucker(t, cfg)
	f.Start("spotify", 1)
	f.Start("chrome", 1)

	f.SetPeak("chrome", 0.5)
	settle(d)
	require.Equal(t, Ducked, d.State())

	f.SetPeak("chrome", 0)
	settle(d)
	f.SetPeak("chrome", 0.5)
	settle(d)
	assert.Equal(t, Ducked, d.State())
	assert.Len(t, f.Writes("spotify"), 20, "no fade up was started")
}

func TestAbsentTargetCompletesAsNoOp(t *testing.T) {
	d, f := newTestDucker(t, testConfig())
	f.Start("chrome", 1)
	f.SetPeak("chrome", 0.5)

	settle(d)
	assert.Equal(t, Ducked, d.State())
	assert.Empty(t, f.Writes("spotify"))
	assert.Empty(t, f.Writes("chrome"))
}

func TestDisableMidFadeForcesNormal(t *testing.T) {
	cfg := testConfig()
	cfg.FadeDuration = 10
	d, f := newTestDucker(t, cfg)
	f.Start("spotify", 1)
	f.Start("chrome", 1)
	f.SetPeak("chrome", 0.5)

	d.tick()
	require.Equal(t, TransitioningDown, d.State())
	require.Eventually(t, func() bool { return len(f.Writes("spotify")) == 1 }, time.Second, time.Millisecond)

	d.Disable()
	assert.Equal(t, Normal, d.State())
	assert.False(t, d.IsEnabled())
	d.fades.Wait()

	writes := f.Writes("spotify")
	require.Len(t, writes, 2)
	assert.Equal(t, 1.0, writes[1])

	// activity while disabled changes nothing
	settle(d)
	assert.Equal(t, Normal, d.State())
	assert.Len(t, f.Writes("spotify"), 2)
}

func TestEnableDisableIdempotent(t *testing.T) {
	d, f := newTestDucker(t, testConfig())
	f.Start("spotify", 1)

	var mu sync.Mutex
	var toggles []bool
	d.OnEnabledChange(func(on bool) {
		mu.Lock()
		toggles = append(toggles, on)
		mu.Unlock()
	})

	d.Enable()
	d.fades.Wait()
	assert.Empty(t, f.Writes("spotify"))

	d.Disable()
	d.Disable()
	d.fades.Wait()
	assert.Empty(t, f.Writes("spotify"))

	assert.True(t, d.Toggle())
	d.Enable()
	d.Shutdown()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []bool{false, true}, toggles)
}

func TestDisableLeavesUntouchedVolume(t *testing.T) {
	d, f := newTestDucker(t, testConfig())
	f.Start("spotify", 0.7)
	f.Start("chrome", 1)
	settle(d)

	d.Disable()
	d.fades.Wait()
	assert.Equal(t, Normal, d.State())
	v, _ := f.VolumeOf("spotify")
	assert.Equal(t, 0.7, v)
	assert.Empty(t, f.Writes("spotify"))
}

func TestDisableAfterDuckRestores(t *testing.T) {
	d, f := newTestDucker(t, testConfig())
	f.Start("spotify", 1)
	f.Start("chrome", 1)
	f.SetPeak("chrome", 0.5)
	settle(d)
	require.Equal(t, Ducked, d.State())

	d.Disable()
	d.fades.Wait()
	v, _ := f.VolumeOf("spotify")
	assert.Equal(t, 1.0, v)
}

func TestDuckStartsFromCurrentVolume(t *testing.T) {
	d, f := newTestDucker(t, testConfig())
	f.Start("spotify", 0.55)
	f.Start("chrome", 1)
	f.SetPeak("chrome", 0.5)
	settle(d)
	require.Equal(t, Ducked, d.State())

	writes := f.Writes("spotify")
	require.Len(t, writes, 20)
	assert.InDelta(t, 0.55+(0.15-0.55)/20, writes[0], 1e-9)
	for i := 1; i < len(writes); i++ {
		assert.LessOrEqual(t, writes[i], writes[i-1])
	}
	assert.Equal(t, 0.15, writes[19])
}

func TestReversalContinuesFromCurrentLevel(t *testing.T) {
	d, f := newTestDucker(t, testConfig())
	f.Start("spotify", 1)
	f.Start("chrome", 1)

	third := make(chan struct{})
	release := make(chan struct{})
	n := 0
	f.OnSetVolume(func(audio.Session, float64) {
		n++
		if n == 3 {
			close(third)
			<-release
		}
	})

	f.SetPeak("chrome", 0.5)
	d.tick()
	<-third

	f.SetPeak("chrome", 0)
	d.tick()
	assert.Equal(t, TransitioningUp, d.State())
	close(release)
	d.fades.Wait()

	assert.Equal(t, Normal, d.State())
	writes := f.Writes("spotify")
	require.Len(t, writes, 3+20)
	at := 1 - 3*0.0425
	assert.InDelta(t, at, writes[2], 1e-9)
	assert.InDelta(t, at+(1-at)/20, writes[3], 1e-9)
	assert.Equal(t, 1.0, writes[len(writes)-1])
}

func TestShutdownRestoresNormal(t *testing.T) {
	d, f := newTestDucker(t, testConfig())
	f.Start("spotify", 1)
	f.Start("chrome", 1)
	f.SetPeak("chrome", 0.5)
	settle(d)
	require.Equal(t, Ducked, d.State())

	d.Shutdown()
	v, _ := f.VolumeOf("spotify")
	assert.Equal(t, 1.0, v)
	assert.Equal(t, Normal, d.State())
	assert.ErrorIs(t, d.Run(context.Background()), ErrClosed)

	d.Enable()
	d.Disable()
	assert.True(t, d.IsEnabled(), "control surface is inert after shutdown")
}

func TestShutdownLeavesUntouchedVolume(t *testing.T) {
	d, f := newTestDucker(t, testConfig())
	f.Start("spotify", 0.6)
	settle(d)
	d.Shutdown()
	assert.Empty(t, f.Writes("spotify"))
}

func TestRunLoop(t *testing.T) {
	cfg := testConfig()
	cfg.CheckInterval = 0.01
	d, f := newTestDucker(t, cfg)
	f.Start("spotify", 1)
	f.Start("chrome", 1)
	f.SetPeak("chrome", 0.5)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- d.Run(ctx) }()

	require.Eventually(t, func() bool { return d.State() == Ducked }, 2*time.Second, 5*time.Millisecond)
	states := d.Activity()
	require.Len(t, states, 1)
	assert.True(t, states[0].Active)

	cancel()
	select {
	case err := <-errc:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
}

func TestShutdownStopsRunLoop(t *testing.T) {
	cfg := testConfig()
	cfg.CheckInterval = 0.01
	d, _ := newTestDucker(t, cfg)

	errc := make(chan error, 1)
	go func() { errc <- d.Run(context.Background()) }()
	require.Eventually(t, func() bool {
		d.mu.Lock()
		defer d.mu.Unlock()
		return d.running
	}, time.Second, time.Millisecond)

	d.Shutdown()
	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Shutdown")
	}
}

type fakePlayer struct {
	mu      sync.Mutex
	events  *[]string
	playing bool
}

func (p *fakePlayer) Pause(app string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.playing {
		return false, nil
	}
	p.playing = false
	*p.events = append(*p.events, "pause "+app)
	return true, nil
}

func (p *fakePlayer) Resume(app string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.playing = true
	*p.events = append(*p.events, "resume "+app)
	return nil
}

func TestPauseWhenDucked(t *testing.T) {
	cfg := testConfig()
	cfg.PauseWhenDucked = true
	cfg.FadeSteps = 2
	d, f := newTestDucker(t, cfg)
	f.Start("spotify", 1)
	f.Start("chrome", 1)

	var events []string
	p := &fakePlayer{events: &events, playing: true}
	d.SetPlayer(p)
	f.OnSetVolume(func(_ audio.Session, v float64) {
		p.mu.Lock()
		events = append(events, "set")
		p.mu.Unlock()
	})

	f.SetPeak("chrome", 0.5)
	settle(d)
	f.SetPeak("chrome", 0)
	settle(d)

	p.mu.Lock()
	defer p.mu.Unlock()
	assert.Equal(t, []string{"set", "set", "pause spotify", "resume spotify", "set", "set"}, events)
}

func TestPauseSkippedWhenNotPlaying(t *testing.T) {
	cfg := testConfig()
	cfg.PauseWhenDucked = true
	d, f := newTestDucker(t, cfg)
	f.Start("spotify", 1)
	f.Start("chrome", 1)

	var events []string
	d.SetPlayer(&fakePlayer{events: &events})

	f.SetPeak("chrome", 0.5)
	settle(d)
	f.SetPeak("chrome", 0)
	settle(d)
	assert.Empty(t, events, "never resume what we did not pause")
}

func TestReloadRestoresOldTarget(t *testing.T) {
	d, f := newTestDucker(t, testConfig())
	f.Start("spotify", 1)
	f.Start("vlc", 1)
	f.Start("chrome", 1)
	f.SetPeak("chrome", 0.5)
	settle(d)
	require.Equal(t, Ducked, d.State())

	next := testConfig()
	next.MusicApps = []string{"vlc"}
	next.DuckLevel = 0.3
	next.RestoreTicks = 2
	require.NoError(t, d.Reload(next))
	d.fades.Wait()
	assert.Equal(t, Normal, d.State())
	v, _ := f.VolumeOf("spotify")
	assert.Equal(t, 1.0, v)

	settle(d)
	assert.Equal(t, Ducked, d.State())
	v, _ = f.VolumeOf("vlc")
	assert.Equal(t, 0.3, v)
	assert.Same(t, next, d.Config())
}

func TestReloadRejectsInvalid(t *testing.T) {
	cfg := testConfig()
	d, _ := newTestDucker(t, cfg)

	bad := testConfig()
	bad.DuckLevel = 2
	var verr *config.ValidationError
	require.True(t, errors.As(d.Reload(bad), &verr))
	assert.Same(t, cfg, d.Config())
}
