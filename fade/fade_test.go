package fade

import (
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"duck/audio"
)

func resolver(f *audio.FakeEnumerator, process string) Resolver {
	return func() ([]audio.Session, error) { return f.Sessions(process) }
}

func TestStepsEndExactlyAtTarget(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	for i := 0; i < 500; i++ {
		from, to := r.Float64(), r.Float64()
		n := 1 + r.Intn(100)
		steps := Steps(from, to, n)
		require.Len(t, steps, n)
		require.Equal(t, to, steps[n-1])
		prev := from
		for k, v := range steps {
			if to < from {
				require.LessOrEqualf(t, v, prev, "step %d not monotonic", k)
			} else {
				require.GreaterOrEqualf(t, v, prev, "step %d not monotonic", k)
			}
			prev = v
		}
	}
}

func TestStepsClamp(t *testing.T) {
	steps := Steps(0.5, 1.4, 3)
	for _, v := range steps {
		assert.LessOrEqual(t, v, 1.0)
	}
	assert.Equal(t, 1.0, steps[2])
	assert.Equal(t, []float64{0.5}, Steps(0.2, 0.5, 0))
}

func TestStepsDuckScenario(t *testing.T) {
	steps := Steps(1.0, 0.15, 20)
	require.Len(t, steps, 20)
	prev := 1.0
	for _, v := range steps {
		assert.InDelta(t, 0.0425, prev-v, 1e-9)
		prev = v
	}
	assert.Equal(t, 0.15, steps[19])
}

func TestJobWritesEveryStep(t *testing.T) {
	f := audio.NewFakeEnumerator()
	f.Start("spotify", 1)
	c := NewController(f, zerolog.Nop())

	j := c.Start(Request{Target: "spotify", Resolve: resolver(f, "spotify"), From: 1, To: 0.15, Steps: 20})
	require.NoError(t, j.Wait())

	writes := f.Writes("spotify")
	require.Len(t, writes, 20)
	assert.Equal(t, Steps(1, 0.15, 20), writes)
	assert.Equal(t, 0.15, j.Level())
	assert.Equal(t, 20, j.Applied())
}

func TestJobTakesDuration(t *testing.T) {
	f := audio.NewFakeEnumerator()
	f.Start("spotify", 1)
	c := NewController(f, zerolog.Nop())

	start := time.Now()
	j := c.Start(Request{Target: "spotify", Resolve: resolver(f, "spotify"), From: 1, To: 0, Duration: 100 * time.Millisecond, Steps: 5})
	require.NoError(t, j.Wait())
	// four waits of 20ms between five steps
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}

func TestAbsentTargetIsNoOp(t *testing.T) {
	f := audio.NewFakeEnumerator()
	c := NewController(f, zerolog.Nop())

	j := c.Start(Request{Target: "spotify", Resolve: resolver(f, "spotify"), From: 1, To: 0.1, Steps: 10})
	require.NoError(t, j.Wait())
	assert.Empty(t, f.Writes("spotify"))
	assert.Equal(t, 0, j.Applied())
	assert.Equal(t, 1.0, j.Level())
}

func TestWritesEverySession(t *testing.T) {
	f := audio.NewFakeEnumerator()
	f.Start("spotify", 1)
	f.Start("spotify", 1)
	c := NewController(f, zerolog.Nop())

	require.NoError(t, c.Set("spotify", resolver(f, "spotify"), 0.4, nil).Wait())
	assert.Equal(t, []float64{0.4, 0.4}, f.Writes("spotify"))
}

func TestStaleSessionRecovers(t *testing.T) {
	f := audio.NewFakeEnumerator()
	stale := f.Start("spotify", 1)
	f.Stop("spotify")
	f.Start("spotify", 1)
	c := NewController(f, zerolog.Nop())

	// First resolve hands out a dead handle; later steps re-resolve.
	calls := 0
	resolve := func() ([]audio.Session, error) {
		calls++
		if calls == 1 {
			return []audio.Session{stale}, nil
		}
		return f.Sessions("spotify")
	}
	j := c.Start(Request{Target: "spotify", Resolve: resolve, From: 1, To: 0.5, Steps: 2})
	require.NoError(t, j.Wait())
	assert.Equal(t, []float64{0.5}, f.Writes("spotify"))
	assert.Equal(t, 1, j.Applied())
}

func TestCancelStopsBeforeNextStep(t *testing.T) {
	f := audio.NewFakeEnumerator()
	f.Start("spotify", 1)
	c := NewController(f, zerolog.Nop())

	var once sync.Once
	var j *Job
	started := make(chan struct{})
	f.OnSetVolume(func(audio.Session, float64) {
		once.Do(func() {
			<-started
			j.Cancel()
		})
	})
	j = c.Start(Request{Target: "spotify", Resolve: resolver(f, "spotify"), From: 1, To: 0, Steps: 10})
	close(started)

	assert.ErrorIs(t, j.Wait(), ErrInterrupted)
	assert.Len(t, f.Writes("spotify"), 1)
	assert.InDelta(t, 0.9, j.Level(), 1e-9)
}

func TestSupersedeContinuesFromCurrentLevel(t *testing.T) {
	f := audio.NewFakeEnumerator()
	f.Start("spotify", 1)
	c := NewController(f, zerolog.Nop())

	// Pause the first fade after its third write, then reverse it.
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

	down := c.Start(Request{Target: "spotify", Resolve: resolver(f, "spotify"), From: 1, To: 0, Steps: 10})
	<-third
	up := c.Start(Request{Target: "spotify", Resolve: resolver(f, "spotify"), From: 0, To: 1, Steps: 7})
	close(release)

	assert.ErrorIs(t, down.Wait(), ErrInterrupted)
	require.NoError(t, up.Wait())

	assert.InDelta(t, 0.7, down.Level(), 1e-9)
	assert.InDelta(t, 0.7, up.From(), 1e-9)

	writes := f.Writes("spotify")
	require.Len(t, writes, 3+7)
	assert.InDelta(t, 0.7+0.3/7, writes[3], 1e-9, "reversal starts from the interpolated level")
	assert.Equal(t, 1.0, writes[len(writes)-1])
	for i := 4; i < len(writes); i++ {
		assert.Greater(t, writes[i], writes[i-1])
	}
}

func TestOneActiveJobPerTarget(t *testing.T) {
	f := audio.NewFakeEnumerator()
	f.Start("spotify", 1)
	c := NewController(f, zerolog.Nop())

	// Hold the first write until every job has been started.
	release := make(chan struct{})
	var once sync.Once
	f.OnSetVolume(func(audio.Session, float64) {
		once.Do(func() { <-release })
	})

	var jobs []*Job
	for i := 0; i < 5; i++ {
		jobs = append(jobs, c.Start(Request{
			Target:   "spotify",
			Resolve:  resolver(f, "spotify"),
			From:     1,
			To:       float64(i) / 10,
			Duration: 50 * time.Millisecond,
			Steps:    5,
		}))
	}
	close(release)
	c.Wait()

	for _, j := range jobs[:4] {
		assert.ErrorIs(t, j.Err(), ErrInterrupted)
	}
	require.NoError(t, jobs[4].Err())
	assert.Same(t, jobs[4], c.Current("spotify"))
	v, ok := f.VolumeOf("spotify")
	require.True(t, ok)
	assert.InDelta(t, 0.4, v, 1e-9)
}

func TestCancelAllAndWait(t *testing.T) {
	f := audio.NewFakeEnumerator()
	f.Start("spotify", 1)
	f.Start("vlc", 1)
	c := NewController(f, zerolog.Nop())

	a := c.Start(Request{Target: "spotify", Resolve: resolver(f, "spotify"), From: 1, To: 0, Duration: 10 * time.Second, Steps: 10})
	b := c.Start(Request{Target: "vlc", Resolve: resolver(f, "vlc"), From: 1, To: 0, Duration: 10 * time.Second, Steps: 10})

	require.Eventually(t, func() bool { return a.Applied() == 1 && b.Applied() == 1 }, time.Second, time.Millisecond)
	assert.True(t, c.Active("spotify"))

	done := make(chan struct{})
	go func() {
		c.CancelAll()
		c.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Wait did not return after CancelAll")
	}
	assert.ErrorIs(t, a.Err(), ErrInterrupted)
	assert.ErrorIs(t, b.Err(), ErrInterrupted)
	assert.False(t, c.Active("vlc"))
}

func TestOnDoneRunsAfterFinish(t *testing.T) {
	f := audio.NewFakeEnumerator()
	c := NewController(f, zerolog.Nop())

	got := make(chan error, 1)
	c.Start(Request{Target: "spotify", From: 1, To: 0, Steps: 3, OnDone: func(j *Job) { got <- j.Err() }})

	select {
	case err := <-got:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("OnDone not called")
	}
}

func TestSeedReplacesFrom(t *testing.T) {
	f := audio.NewFakeEnumerator()
	f.Start("spotify", 0.6)
	c := NewController(f, zerolog.Nop())

	j := c.Start(Request{
		Target:  "spotify",
		Resolve: resolver(f, "spotify"),
		From:    1,
		To:      0.2,
		Steps:   4,
		Seed:    func() (float64, bool) { return 0.6, true },
	})
	require.NoError(t, j.Wait())
	assert.Equal(t, 0.6, j.From())
	writes := f.Writes("spotify")
	require.Len(t, writes, 4)
	assert.InDelta(t, 0.5, writes[0], 1e-9)
	assert.Equal(t, 0.2, writes[3])
}

func TestSeedIgnoredWhenNotOK(t *testing.T) {
	f := audio.NewFakeEnumerator()
	f.Start("spotify", 1)
	c := NewController(f, zerolog.Nop())

	j := c.Start(Request{
		Target:  "spotify",
		Resolve: resolver(f, "spotify"),
		From:    1,
		To:      0,
		Steps:   2,
		Seed:    func() (float64, bool) { return 0.3, false },
	})
	require.NoError(t, j.Wait())
	assert.Equal(t, 1.0, j.From())
	assert.Equal(t, []float64{0.5, 0}, f.Writes("spotify"))
}

func TestPrepareRunsBeforeFirstStep(t *testing.T) {
	f := audio.NewFakeEnumerator()
	f.Start("spotify", 0.1)
	c := NewController(f, zerolog.Nop())

	var writesAtPrepare int
	j := c.Start(Request{
		Target:  "spotify",
		Resolve: resolver(f, "spotify"),
		From:    0.1,
		To:      1,
		Steps:   4,
		Prepare: func() { writesAtPrepare = len(f.Writes("spotify")) },
	})
	require.NoError(t, j.Wait())
	assert.Equal(t, 0, writesAtPrepare)
	assert.Len(t, f.Writes("spotify"), 4)
}

func TestPrepareSkippedWhenCancelledEarly(t *testing.T) {
	f := audio.NewFakeEnumerator()
	f.Start("spotify", 1)
	c := NewController(f, zerolog.Nop())

	release := make(chan struct{})
	var once sync.Once
	f.OnSetVolume(func(audio.Session, float64) { once.Do(func() { <-release }) })

	first := c.Start(Request{Target: "spotify", Resolve: resolver(f, "spotify"), From: 1, To: 0, Steps: 10})
	prepared := false
	second := c.Start(Request{Target: "spotify", Resolve: resolver(f, "spotify"), To: 1, Steps: 2, Prepare: func() { prepared = true }})
	second.Cancel()
	close(release)

	assert.ErrorIs(t, first.Wait(), ErrInterrupted)
	assert.ErrorIs(t, second.Wait(), ErrInterrupted)
	assert.False(t, prepared)
}
