package ducking

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"duck/audio"
	"duck/config"
	"duck/detector"
	"duck/fade"
)

// musicTarget keys the single ducked target in the fade controller.
const musicTarget = "music"

var ErrClosed = errors.New("ducking: shut down")

// Player pauses and resumes the music application. Pause reports whether
// playback was running and is now paused.
type Player interface {
	Pause(app string) (bool, error)
	Resume(app string) error
}

// Ducker owns the poll loop and is the control surface used by the tray,
// hotkey, terminal UI and signal handlers.
type Ducker struct {
	enum   audio.Enumerator
	log    zerolog.Logger
	store  *config.Store
	det    *detector.Detector
	fades  *fade.Controller
	notify *notifier

	interval chan time.Duration
	stop     chan struct{}
	loopDone chan struct{}

	// playerMu orders pause after a fade down before resume ahead of the
	// next fade up.
	playerMu sync.Mutex
	player   Player
	paused   []string

	mu       sync.Mutex
	m        *Machine
	dirty    bool // a fade has moved the music app since the last restore
	running  bool
	closed   bool
	ducks    int
	onState  []func(State)
	onEnable []func(bool)

	shutdownOnce sync.Once
}

func New(enum audio.Enumerator, cfg *config.Config, log zerolog.Logger) *Ducker {
	return &Ducker{
		enum:     enum,
		log:      log,
		store:    config.NewStore(cfg),
		det:      detector.New(enum, log, cfg.MonitoredApps, cfg.SilenceThreshold, cfg.RestoreTicks),
		fades:    fade.NewController(enum, log),
		notify:   newNotifier(),
		interval: make(chan time.Duration, 1),
		stop:     make(chan struct{}),
		loopDone: make(chan struct{}),
		m:        NewMachine(cfg.StartEnabled),
	}
}

// SetPlayer enables pause_when_ducked. Call before Run.
func (d *Ducker) SetPlayer(p Player) {
	d.playerMu.Lock()
	d.player = p
	d.playerMu.Unlock()
}

// OnStateChange registers fn for every transition. Callbacks run in order
// on a dedicated goroutine.
func (d *Ducker) OnStateChange(fn func(State)) {
	d.mu.Lock()
	d.onState = append(d.onState, fn)
	d.mu.Unlock()
}

func (d *Ducker) OnEnabledChange(fn func(bool)) {
	d.mu.Lock()
	d.onEnable = append(d.onEnable, fn)
	d.mu.Unlock()
}

func (d *Ducker) Config() *config.Config { return d.store.Load() }

func (d *Ducker) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.m.State()
}

func (d *Ducker) IsEnabled() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.m.Enabled()
}

func (d *Ducker) Activity() []detector.ActivityState {
	return d.det.States()
}

// Ducks counts completed fades down.
func (d *Ducker) Ducks() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ducks
}

// Run polls trigger apps every check_interval until ctx is done or
// Shutdown is called.
func (d *Ducker) Run(ctx context.Context) error {
	d.mu.Lock()
	if d.closed || d.running {
		d.mu.Unlock()
		return ErrClosed
	}
	d.running = true
	d.mu.Unlock()
	defer close(d.loopDone)

	t := time.NewTicker(d.store.Load().Interval())
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-d.stop:
			return nil
		case iv := <-d.interval:
			t.Reset(iv)
		case <-t.C:
			d.tick()
		}
	}
}

func (d *Ducker) tick() {
	active := d.det.Poll()

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	prev := d.m.State()
	act := d.m.Observe(active)
	d.log.Debug().
		Bool("active", active).
		Bool("enabled", d.m.Enabled()).
		Str("state", d.m.State().String()).
		Msg("tick")
	d.applyLocked(act, prev)
}

// applyLocked starts the fade for act and queues notifications. d.mu is
// held; nothing here waits on the audio backend.
func (d *Ducker) applyLocked(act Action, prev State) {
	cfg := d.store.Load()
	gen := d.m.Generation()
	resolve := d.resolver(cfg.MusicApps)

	switch act {
	case FadeDown:
		d.dirty = true
		req := fade.Request{
			Target:   musicTarget,
			Resolve:  resolve,
			From:     cfg.NormalLevel,
			To:       cfg.DuckLevel,
			Duration: cfg.Fade(),
			Steps:    cfg.FadeSteps,
			OnDone:   d.fadeDone(gen),
		}
		// From Normal the music app sits wherever the user left it.
		if prev == Normal {
			req.Seed = d.levelOf(resolve)
		}
		d.fades.Start(req)
	case FadeUp:
		d.dirty = true
		d.fades.Start(fade.Request{
			Target:   musicTarget,
			Resolve:  resolve,
			From:     cfg.DuckLevel,
			To:       cfg.NormalLevel,
			Duration: cfg.Fade(),
			Steps:    cfg.FadeSteps,
			Prepare:  d.resumePlayer,
			OnDone:   d.fadeDone(gen),
		})
	case ForceNormal:
		// Nothing has moved the volume: leave the user's level alone.
		if prev == Normal && !d.dirty && !d.fades.Active(musicTarget) {
			break
		}
		d.fades.Start(fade.Request{
			Target:  musicTarget,
			Resolve: resolve,
			From:    cfg.NormalLevel,
			To:      cfg.NormalLevel,
			Steps:   1,
			Prepare: d.resumePlayer,
		})
		d.dirty = false
	}
	d.transitionLocked(prev)
}

func (d *Ducker) transitionLocked(prev State) {
	next := d.m.State()
	if next == prev {
		return
	}
	d.log.Info().
		Str("from", prev.String()).
		Str("to", next.String()).
		Msg("state_transition")
	for _, fn := range d.onState {
		d.notify.post(func() { fn(next) })
	}
}

// levelOf reads the current volume of the first session resolve finds.
func (d *Ducker) levelOf(resolve fade.Resolver) func() (float64, bool) {
	return func() (float64, bool) {
		sessions, err := resolve()
		if err != nil || len(sessions) == 0 {
			return 0, false
		}
		v, err := d.enum.Volume(sessions[0])
		if err != nil {
			return 0, false
		}
		return v, true
	}
}

// resolver returns the sessions of the first music app that has any.
func (d *Ducker) resolver(apps []string) fade.Resolver {
	apps = append([]string(nil), apps...)
	return func() ([]audio.Session, error) {
		var firstErr error
		for _, app := range apps {
			sessions, err := d.enum.Sessions(app)
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			if len(sessions) > 0 {
				return sessions, nil
			}
		}
		return nil, firstErr
	}
}

func (d *Ducker) fadeDone(gen uint64) func(*fade.Job) {
	return func(j *fade.Job) {
		if j.Err() != nil {
			return
		}
		d.mu.Lock()
		prev := d.m.State()
		if !d.m.FadeDone(gen) {
			d.mu.Unlock()
			return
		}
		ducked := d.m.State() == Ducked
		if ducked {
			d.ducks++
		} else {
			d.dirty = false
		}
		d.transitionLocked(prev)
		pause := ducked && d.store.Load().PauseWhenDucked
		apps := d.store.Load().MusicApps
		d.mu.Unlock()

		if pause {
			d.pausePlayer(apps, gen)
		}
	}
}

func (d *Ducker) pausePlayer(apps []string, gen uint64) {
	d.playerMu.Lock()
	defer d.playerMu.Unlock()
	if d.player == nil {
		return
	}
	// A fade up may have been requested while we waited for playerMu.
	d.mu.Lock()
	stale := d.m.Generation() != gen
	d.mu.Unlock()
	if stale {
		return
	}
	for _, app := range apps {
		ok, err := d.player.Pause(app)
		if err != nil {
			d.log.Debug().Err(err).Str("app", app).Msg("player_pause_failed")
			continue
		}
		if ok {
			d.paused = append(d.paused, app)
			d.log.Info().Str("app", app).Msg("player_paused")
		}
	}
}

func (d *Ducker) resumePlayer() {
	d.playerMu.Lock()
	defer d.playerMu.Unlock()
	if d.player == nil {
		return
	}
	for _, app := range d.paused {
		if err := d.player.Resume(app); err != nil {
			d.log.Warn().Err(err).Str("app", app).Msg("player_resume_failed")
			continue
		}
		d.log.Info().Str("app", app).Msg("player_resumed")
	}
	d.paused = nil
}

func (d *Ducker) setEnabledLocked(on bool) {
	if d.closed || d.m.Enabled() == on {
		return
	}
	prev := d.m.State()
	act := d.m.SetEnabled(on)
	d.log.Info().Bool("enabled", on).Msg("ducking_enabled")
	d.applyLocked(act, prev)
	for _, fn := range d.onEnable {
		d.notify.post(func() { fn(on) })
	}
}

func (d *Ducker) setEnabled(on bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.setEnabledLocked(on)
}

// Enable turns ducking on. It is a no-op when already enabled.
func (d *Ducker) Enable() { d.setEnabled(true) }

// Disable turns ducking off, cancelling any fade and restoring the music
// app to normal_level if ducking had moved it. It is a no-op when already
// disabled.
func (d *Ducker) Disable() { d.setEnabled(false) }

// Toggle flips the enabled flag and returns the new value.
func (d *Ducker) Toggle() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.setEnabledLocked(!d.m.Enabled())
	return d.m.Enabled()
}

// Reload installs cfg. A ducked or transitioning music app is first
// restored to the old normal_level, and the machine restarts from Normal
// so the next tick applies the new settings.
func (d *Ducker) Reload(cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	old := d.store.Swap(cfg)
	d.det.Configure(cfg.MonitoredApps, cfg.SilenceThreshold, cfg.RestoreTicks)

	if prev := d.m.State(); prev != Normal {
		// A reset, like disable: jump straight to Normal at the old
		// normal_level rather than fading through TransitioningUp.
		d.m.Reset()
		d.fades.Start(fade.Request{
			Target:  musicTarget,
			Resolve: d.resolver(old.MusicApps),
			From:    old.NormalLevel,
			To:      old.NormalLevel,
			Steps:   1,
			Prepare: d.resumePlayer,
		})
		d.dirty = false
		d.transitionLocked(prev)
	}

	if iv := cfg.Interval(); iv != old.Interval() {
		select {
		case <-d.interval:
		default:
		}
		d.interval <- iv
	}
	d.log.Info().
		Float64("duck_level", cfg.DuckLevel).
		Float64("normal_level", cfg.NormalLevel).
		Strs("monitored", cfg.MonitoredApps).
		Strs("music", cfg.MusicApps).
		Msg("config_reloaded")
	return nil
}

// Shutdown stops the poll loop, cancels and waits for every fade, then puts
// the music app back to normal_level if ducking moved it. It is safe to
// call more than once.
func (d *Ducker) Shutdown() {
	d.shutdownOnce.Do(func() {
		d.mu.Lock()
		d.closed = true
		running := d.running
		d.mu.Unlock()

		close(d.stop)
		if running {
			<-d.loopDone
		}

		// An unfinished job may be a restore that never got to write.
		pending := d.fades.Active(musicTarget)
		d.fades.CancelAll()
		d.fades.Wait()

		d.mu.Lock()
		restore := pending || d.dirty || d.m.State() != Normal
		prev := d.m.State()
		d.m.Reset()
		d.dirty = false
		if prev != Normal {
			d.transitionLocked(prev)
		}
		d.mu.Unlock()

		if restore {
			cfg := d.store.Load()
			j := d.fades.Set(musicTarget, d.resolver(cfg.MusicApps), cfg.NormalLevel, nil)
			j.Wait()
			d.log.Info().Float64("level", cfg.NormalLevel).Msg("force_restore")
		}
		d.resumePlayer()
		d.notify.stop()
	})
}
