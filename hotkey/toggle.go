package hotkey

import (
	"sync"
	"time"
)

// Toggler turns hotkey presses into toggle requests. Presses closer
// together than minGap are dropped so a bouncing key cannot flip ducking
// twice.
type Toggler struct {
	ch   chan struct{}
	stop chan struct{}
	once sync.Once
	now  func() time.Time
}

func NewToggler(hk Hotkey, minGap time.Duration) *Toggler {
	t := &Toggler{
		ch:   make(chan struct{}, 1),
		stop: make(chan struct{}),
		now:  time.Now,
	}
	go t.run(hk, minGap)
	return t
}

func (t *Toggler) Toggles() <-chan struct{} { return t.ch }

func (t *Toggler) Stop() {
	t.once.Do(func() { close(t.stop) })
}

func (t *Toggler) run(hk Hotkey, minGap time.Duration) {
	var last time.Time
	for {
		select {
		case <-t.stop:
			return
		case <-hk.Keyup():
			// releases carry no meaning for a toggle
		case <-hk.Keydown():
			now := t.now()
			if !last.IsZero() && now.Sub(last) < minGap {
				continue
			}
			last = now
			select {
			case t.ch <- struct{}{}:
			default:
			}
		}
	}
}
