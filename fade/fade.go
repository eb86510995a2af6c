// Package fade ramps session volumes in the background, one job per target.
package fade

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"duck/audio"
)

// ErrInterrupted is the result of a job cancelled before its last step.
var ErrInterrupted = errors.New("fade: interrupted")

// Resolver returns the sessions a job writes to. It is called on every step
// because sessions come and go while a fade runs.
type Resolver func() ([]audio.Session, error)

type Request struct {
	Target   string
	Resolve  Resolver
	From     float64
	To       float64
	Duration time.Duration
	Steps    int

	// Seed, if set, reads the level the ramp really starts from. It runs on
	// the job goroutine after any superseded job has stopped and replaces
	// From when it reports ok.
	Seed func() (float64, bool)

	// Prepare runs on the job goroutine before the first step, once any
	// superseded job has stopped. It is skipped if the job is cancelled
	// first.
	Prepare func()

	// OnDone runs on the job goroutine after the job finishes, whatever
	// the outcome.
	OnDone func(*Job)
}

// Steps returns the n levels of a linear ramp from from to to, excluding
// from and ending exactly at to. Values are clamped to [0,1].
func Steps(from, to float64, n int) []float64 {
	if n < 1 {
		n = 1
	}
	out := make([]float64, n)
	for i := 1; i <= n; i++ {
		out[i-1] = clamp(from + (to-from)*float64(i)/float64(n))
	}
	out[n-1] = clamp(to)
	return out
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Job is one running or finished ramp.
type Job struct {
	req   Request
	prior *Job
	enum  audio.Enumerator
	log   zerolog.Logger

	cancel     chan struct{}
	cancelOnce sync.Once
	done       chan struct{}

	mu      sync.Mutex
	from    float64
	level   float64
	applied int
	err     error
}

func (j *Job) Target() string { return j.req.Target }
func (j *Job) To() float64    { return j.req.To }

// From is the level the ramp started from. For a job that superseded
// another it is only final once the job has started stepping.
func (j *Job) From() float64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.from
}

// Level is the last level written to at least one session, or From if the
// job has written nothing.
func (j *Job) Level() float64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.applied == 0 {
		return j.from
	}
	return j.level
}

// Applied reports how many steps reached a session.
func (j *Job) Applied() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.applied
}

// Cancel stops the job before its next step. It never blocks.
func (j *Job) Cancel() {
	j.cancelOnce.Do(func() { close(j.cancel) })
}

func (j *Job) Done() <-chan struct{} { return j.done }

// Err is nil for a job that ran to completion and ErrInterrupted for one
// that was cancelled. It is only meaningful after Done is closed.
func (j *Job) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

func (j *Job) Wait() error {
	<-j.done
	return j.Err()
}

func (j *Job) cancelled() bool {
	select {
	case <-j.cancel:
		return true
	default:
		return false
	}
}

func (j *Job) run() {
	defer func() {
		close(j.done)
		if j.req.OnDone != nil {
			j.req.OnDone(j)
		}
	}()

	if j.prior != nil {
		<-j.prior.done
		j.mu.Lock()
		j.from = j.prior.Level()
		j.mu.Unlock()
		j.prior = nil
	}

	if j.req.Seed != nil && !j.cancelled() {
		if v, ok := j.req.Seed(); ok {
			j.mu.Lock()
			j.from = clamp(v)
			j.mu.Unlock()
		}
	}

	if j.req.Prepare != nil && !j.cancelled() {
		j.req.Prepare()
	}

	from := j.From()
	steps := Steps(from, j.req.To, j.req.Steps)
	interval := j.req.Duration / time.Duration(len(steps))

	j.log.Info().
		Str("target", j.req.Target).
		Float64("from", from).
		Float64("to", j.req.To).
		Dur("duration", j.req.Duration).
		Int("steps", len(steps)).
		Msg("fade_start")

	var timer *time.Timer
	for i, v := range steps {
		if i > 0 && interval > 0 {
			if timer == nil {
				timer = time.NewTimer(interval)
				defer timer.Stop()
			} else {
				timer.Reset(interval)
			}
			select {
			case <-j.cancel:
			case <-timer.C:
			}
		}
		if !j.step(v) {
			j.mu.Lock()
			j.err = ErrInterrupted
			j.mu.Unlock()
			j.log.Debug().
				Str("target", j.req.Target).
				Float64("level", j.Level()).
				Int("step", i).
				Msg("fade_cancel")
			return
		}
	}

	j.log.Info().
		Str("target", j.req.Target).
		Float64("level", j.Level()).
		Int("applied", j.Applied()).
		Msg("fade_complete")
}

// step writes v to every resolved session. It returns false if the job was
// cancelled, in which case nothing further is written.
func (j *Job) step(v float64) bool {
	if j.cancelled() {
		return false
	}
	if j.req.Resolve == nil {
		return true
	}
	sessions, err := j.req.Resolve()
	if err != nil {
		j.log.Warn().Err(err).Str("target", j.req.Target).Msg("fade_resolve_failed")
		return true
	}

	wrote := false
	for _, s := range sessions {
		if j.cancelled() {
			return false
		}
		err := j.enum.SetVolume(s, v)
		switch {
		case err == nil:
			wrote = true
		case errors.Is(err, audio.ErrStaleHandle):
			j.log.Info().Str("target", j.req.Target).Uint32("session", s.ID).Msg("stale_handle")
		default:
			j.log.Warn().Err(err).Str("target", j.req.Target).Uint32("session", s.ID).Msg("fade_set_volume_failed")
		}
	}
	if wrote {
		j.mu.Lock()
		j.level = v
		j.applied++
		j.mu.Unlock()
	}
	return true
}

// Controller keeps at most one active job per target.
type Controller struct {
	enum audio.Enumerator
	log  zerolog.Logger

	mu   sync.Mutex
	jobs map[string]*Job // latest job per target, kept after it finishes
	wg   sync.WaitGroup
}

func NewController(enum audio.Enumerator, log zerolog.Logger) *Controller {
	return &Controller{
		enum: enum,
		log:  log,
		jobs: make(map[string]*Job),
	}
}

// Start cancels any job for req.Target and launches a new one. The new job
// waits for the old one to stop and continues from the old job's last
// level, ignoring req.From. req.Seed takes precedence over both. Start does not touch the audio backend.
func (c *Controller) Start(req Request) *Job {
	if req.Steps < 1 {
		req.Steps = 1
	}
	if req.Duration < 0 {
		req.Duration = 0
	}
	j := &Job{
		req:    req,
		enum:   c.enum,
		log:    c.log,
		cancel: make(chan struct{}),
		done:   make(chan struct{}),
		from:   clamp(req.From),
	}

	c.mu.Lock()
	if prior := c.jobs[req.Target]; prior != nil {
		prior.Cancel()
		j.prior = prior
	}
	c.jobs[req.Target] = j
	c.wg.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.wg.Done()
		j.run()
	}()
	return j
}

// Set moves target to level in a single immediate step.
func (c *Controller) Set(target string, resolve Resolver, level float64, onDone func(*Job)) *Job {
	return c.Start(Request{
		Target:  target,
		Resolve: resolve,
		From:    level,
		To:      level,
		Steps:   1,
		OnDone:  onDone,
	})
}

// Current returns the latest job for target, running or finished.
func (c *Controller) Current(target string) *Job {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.jobs[target]
}

// Active reports whether target has a job that has not finished.
func (c *Controller) Active(target string) bool {
	j := c.Current(target)
	if j == nil {
		return false
	}
	select {
	case <-j.done:
		return false
	default:
		return true
	}
}

func (c *Controller) Cancel(target string) {
	if j := c.Current(target); j != nil {
		j.Cancel()
	}
}

func (c *Controller) CancelAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, j := range c.jobs {
		j.Cancel()
	}
}

// Wait blocks until every job started so far has finished.
func (c *Controller) Wait() {
	c.wg.Wait()
}
