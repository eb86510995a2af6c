// Package detector decides, once per tick, whether any trigger application
// is producing sound.
package detector

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"duck/audio"
)

// ActivityState is the debounced view of one trigger application.
type ActivityState struct {
	App         string
	Active      bool
	Peak        float64 // highest session peak seen on the last tick
	Sessions    int
	LastChanged time.Time
}

type appState struct {
	deb     *Debouncer
	state   ActivityState
	failing bool
}

type Detector struct {
	enum audio.Enumerator
	log  zerolog.Logger
	now  func() time.Time

	mu        sync.Mutex
	threshold float64
	restore   int
	apps      []string
	states    map[string]*appState
}

func New(enum audio.Enumerator, log zerolog.Logger, apps []string, threshold float64, restoreTicks int) *Detector {
	d := &Detector{
		enum:   enum,
		log:    log,
		now:    time.Now,
		states: make(map[string]*appState),
	}
	d.Configure(apps, threshold, restoreTicks)
	return d
}

// Configure replaces the trigger list and thresholds. Apps that stay in the
// list keep their debounce state.
func (d *Detector) Configure(apps []string, threshold float64, restoreTicks int) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.threshold = threshold
	d.restore = restoreTicks
	d.apps = d.apps[:0]
	keep := make(map[string]*appState, len(apps))
	for _, a := range apps {
		key := audio.NormalizeProcess(a)
		if _, dup := keep[key]; dup {
			continue
		}
		st, ok := d.states[key]
		if !ok {
			st = &appState{deb: NewDebouncer(restoreTicks), state: ActivityState{App: a}}
		} else {
			st.deb.SetRestoreTicks(restoreTicks)
			st.state.Active = st.deb.Active()
		}
		keep[key] = st
		d.apps = append(d.apps, key)
	}
	d.states = keep
}

// Poll re-enumerates every trigger app and returns true if any is active
// after debouncing. Failures count as silence for this tick.
func (d *Detector) Poll() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	anyActive := false
	for _, key := range d.apps {
		st := d.states[key]
		peak, n, err := d.sample(key)
		if err != nil {
			if !st.failing {
				d.log.Warn().Err(err).Str("app", st.state.App).Msg("enumerate_failed")
			} else {
				d.log.Debug().Err(err).Str("app", st.state.App).Msg("enumerate_failed")
			}
		} else if st.failing {
			d.log.Info().Str("app", st.state.App).Msg("enumerate_recovered")
		}
		st.failing = err != nil

		active := st.deb.Tick(peak > d.threshold)
		if active != st.state.Active {
			st.state.LastChanged = now
		}
		st.state.Active = active
		st.state.Peak = peak
		st.state.Sessions = n
		if active {
			anyActive = true
		}
	}
	return anyActive
}

// sample returns the highest peak over all sessions of app.
func (d *Detector) sample(app string) (float64, int, error) {
	sessions, err := d.enum.Sessions(app)
	if err != nil {
		return 0, 0, err
	}
	var hi float64
	for _, s := range sessions {
		p, err := d.enum.Peak(s)
		if errors.Is(err, audio.ErrStaleHandle) {
			d.log.Debug().Str("app", app).Uint32("session", s.ID).Msg("stale_handle")
			continue
		}
		if err != nil {
			return 0, len(sessions), err
		}
		if p > hi {
			hi = p
		}
	}
	return hi, len(sessions), nil
}

// States returns a snapshot of every trigger app in configured order.
func (d *Detector) States() []ActivityState {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]ActivityState, 0, len(d.apps))
	for _, key := range d.apps {
		out = append(out, d.states[key].state)
	}
	return out
}
