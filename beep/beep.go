// Package beep plays the short chime that confirms a hotkey toggle.
package beep

import (
	"math"
	"sync"
	"sync/atomic"
)

const sampleRate = 44100

// note is one decaying sine burst followed by gap seconds of silence.
type note struct {
	freq   float64
	dur    float64
	gap    float64
	volume float64
	decay  float64
}

type chime []note

var (
	// rising pair
	onChime = chime{
		{freq: 900, dur: 0.07, volume: 0.4, decay: 50},
		{freq: 1200, dur: 0.12, volume: 0.4, decay: 50},
	}
	// single low tick
	offChime = chime{
		{freq: 600, dur: 0.15, volume: 0.4, decay: 40},
	}
	// low double beep
	errorChime = chime{
		{freq: 350, dur: 0.08, gap: 0.05, volume: 0.5, decay: 30},
		{freq: 350, dur: 0.08, volume: 0.5, decay: 30},
	}
)

var disabled atomic.Bool

// Disable silences every chime for the rest of the process.
func Disable() { disabled.Store(true) }

// render returns interleaved stereo samples for c.
func (c chime) render() []int16 {
	var out []int16
	for _, n := range c {
		out = append(out, n.render()...)
	}
	return out
}

func (n note) render() []int16 {
	tone := int(sampleRate * n.dur)
	silence := int(sampleRate * n.gap)
	out := make([]int16, (tone+silence)*2)
	for i := 0; i < tone; i++ {
		t := float64(i) / sampleRate
		s := int16(math.Sin(2*math.Pi*n.freq*t) * 32767 * n.volume * math.Exp(-t*n.decay))
		out[i*2] = s
		out[i*2+1] = s
	}
	return out
}

var (
	renderOnce sync.Once
	rendered   map[string][]int16
)

func samples(name string) []int16 {
	renderOnce.Do(func() {
		rendered = map[string][]int16{
			"on":    onChime.render(),
			"off":   offChime.render(),
			"error": errorChime.render(),
		}
	})
	return rendered[name]
}

// Init renders the chimes ahead of the first toggle.
func Init() { samples("on") }

func PlayOn()    { play("on") }
func PlayOff()   { play("off") }
func PlayError() { play("error") }

// Toggle plays the on or off chime.
func Toggle(on bool) {
	if on {
		PlayOn()
	} else {
		PlayOff()
	}
}

func play(name string) {
	if disabled.Load() {
		return
	}
	go output(samples(name))
}
