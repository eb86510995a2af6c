//go:build linux

package audio

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/jfreymuth/pulse"
	"github.com/jfreymuth/pulse/proto"
)

// meterRate matches pavucontrol's peak streams: the server delivers one
// peak-detected sample per frame, so a low rate is enough.
const meterRate = 25

// peakMeter records a single sink input through its sink's monitor source.
type peakMeter struct {
	stream *pulse.RecordStream
	peak   atomic.Uint32 // float32 bits, max since last take
	once   sync.Once
}

// meterStream pins a peak-detect record stream to one sink input on its
// sink's monitor.
func meterStream(monitor, input uint32) func(*proto.CreateRecordStream) {
	return func(r *proto.CreateRecordStream) {
		r.SourceIndex = monitor
		r.SourceName = ""
		r.DirectOnInputIndex = input
		r.PeakDetect = true
		r.AdjustLatency = true
		r.NoMove = true
	}
}

func newPeakMeter(c *pulse.Client, monitor, input uint32) (*peakMeter, error) {
	m := &peakMeter{}
	writer := pulse.Float32Writer(func(buf []float32) (int, error) {
		var hi float32
		for _, v := range buf {
			if v < 0 {
				v = -v
			}
			if v > hi {
				hi = v
			}
		}
		m.raise(hi)
		return len(buf), nil
	})

	stream, err := c.NewRecord(writer,
		pulse.RecordMono,
		pulse.RecordSampleRate(meterRate),
		pulse.RecordRawOption(meterStream(monitor, input)),
	)
	if err != nil {
		return nil, fmt.Errorf("pulse peak stream: %w", err)
	}
	m.stream = stream
	stream.Start()
	return m, nil
}

func (m *peakMeter) raise(v float32) {
	for {
		old := m.peak.Load()
		if math.Float32frombits(old) >= v {
			return
		}
		if m.peak.CompareAndSwap(old, math.Float32bits(v)) {
			return
		}
	}
}

func (m *peakMeter) take() float64 {
	return float64(math.Float32frombits(m.peak.Swap(0)))
}

func (m *peakMeter) close() {
	m.once.Do(func() {
		m.stream.Stop()
		m.stream.Close()
	})
}
