package audio

import (
	"sync"
)

type fakeSession struct {
	s      Session
	peak   float64
	volume float64
}

// FakeEnumerator is an in-memory Enumerator with scripted sessions. Every
// volume write is recorded per process.
type FakeEnumerator struct {
	mu       sync.Mutex
	nextID   uint32
	sessions map[uint32]*fakeSession
	fail     map[string]error
	writes   map[string][]float64
	onSet    func(Session, float64)
	closed   bool
}

func NewFakeEnumerator() *FakeEnumerator {
	return &FakeEnumerator{
		nextID:   1,
		sessions: make(map[uint32]*fakeSession),
		fail:     make(map[string]error),
		writes:   make(map[string][]float64),
	}
}

// Start opens a new silent session for process at the given volume.
func (f *FakeEnumerator) Start(process string, volume float64) Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := Session{ID: f.nextID, Process: NormalizeProcess(process), Name: process}
	f.nextID++
	f.sessions[s.ID] = &fakeSession{s: s, volume: clampLevel(volume)}
	return s
}

// Stop ends every session of process. Held handles go stale.
func (f *FakeEnumerator) Stop(process string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	want := NormalizeProcess(process)
	for id, fs := range f.sessions {
		if fs.s.Process == want {
			delete(f.sessions, id)
		}
	}
}

func (f *FakeEnumerator) SetPeak(process string, peak float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	want := NormalizeProcess(process)
	for _, fs := range f.sessions {
		if fs.s.Process == want {
			fs.peak = peak
		}
	}
}

// Fail makes Sessions(process) return err until cleared with a nil err.
func (f *FakeEnumerator) Fail(process string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.fail, NormalizeProcess(process))
		return
	}
	f.fail[NormalizeProcess(process)] = err
}

// OnSetVolume registers a hook called after each successful write, outside
// the lock.
func (f *FakeEnumerator) OnSetVolume(fn func(Session, float64)) {
	f.mu.Lock()
	f.onSet = fn
	f.mu.Unlock()
}

// Writes returns a copy of every volume written to process so far.
func (f *FakeEnumerator) Writes(process string) []float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	w := f.writes[NormalizeProcess(process)]
	out := make([]float64, len(w))
	copy(out, w)
	return out
}

// VolumeOf reports the volume of the first live session of process.
func (f *FakeEnumerator) VolumeOf(process string) (float64, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	want := NormalizeProcess(process)
	var best *fakeSession
	for _, fs := range f.sessions {
		if fs.s.Process == want && (best == nil || fs.s.ID < best.s.ID) {
			best = fs
		}
	}
	if best == nil {
		return 0, false
	}
	return best.volume, true
}

func (f *FakeEnumerator) Sessions(process string) ([]Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	want := NormalizeProcess(process)
	if err, ok := f.fail[want]; ok {
		return nil, &EnumerationError{Op: "list sessions", Err: err}
	}
	var out []Session
	for id := uint32(1); id < f.nextID; id++ {
		if fs, ok := f.sessions[id]; ok && fs.s.Process == want {
			out = append(out, fs.s)
		}
	}
	return out, nil
}

func (f *FakeEnumerator) All() ([]Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Session
	for id := uint32(1); id < f.nextID; id++ {
		if fs, ok := f.sessions[id]; ok {
			out = append(out, fs.s)
		}
	}
	return out, nil
}

func (f *FakeEnumerator) Peak(s Session) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fs, ok := f.sessions[s.ID]
	if !ok {
		return 0, ErrStaleHandle
	}
	return fs.peak, nil
}

func (f *FakeEnumerator) Volume(s Session) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fs, ok := f.sessions[s.ID]
	if !ok {
		return 0, ErrStaleHandle
	}
	return fs.volume, nil
}

func (f *FakeEnumerator) SetVolume(s Session, level float64) error {
	f.mu.Lock()
	fs, ok := f.sessions[s.ID]
	if !ok {
		f.mu.Unlock()
		return ErrStaleHandle
	}
	fs.volume = clampLevel(level)
	f.writes[fs.s.Process] = append(f.writes[fs.s.Process], fs.volume)
	hook := f.onSet
	f.mu.Unlock()
	if hook != nil {
		hook(s, level)
	}
	return nil
}

func (f *FakeEnumerator) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}

func (f *FakeEnumerator) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
