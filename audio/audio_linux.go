//go:build linux

package audio

import (
	"errors"
	"fmt"
	"sync"

	"github.com/jfreymuth/pulse"
	"github.com/jfreymuth/pulse/proto"
)

// Backend names the session source in logs.
const Backend = "pulse"

// pulseEnumerator maps sessions onto PulseAudio sink inputs.
type pulseEnumerator struct {
	client *pulse.Client

	mu      sync.Mutex
	inputs  map[uint32]*proto.GetSinkInputInfoReply // last listing
	meters  map[uint32]*peakMeter
	noMeter map[uint32]bool
}

func NewEnumerator() (Enumerator, error) {
	c, err := pulse.NewClient()
	if err != nil {
		return nil, &EnumerationError{Op: "connect", Err: fmt.Errorf("pulse: %w", err)}
	}
	return &pulseEnumerator{
		client:  c,
		inputs:  make(map[uint32]*proto.GetSinkInputInfoReply),
		meters:  make(map[uint32]*peakMeter),
		noMeter: make(map[uint32]bool),
	}, nil
}

func (p *pulseEnumerator) list() ([]*proto.GetSinkInputInfoReply, error) {
	var reply proto.GetSinkInputInfoListReply
	if err := p.client.RawRequest(&proto.GetSinkInputInfoList{}, &reply); err != nil {
		return nil, &EnumerationError{Op: "list sink inputs", Err: fmt.Errorf("pulse: %w", err)}
	}

	p.mu.Lock()
	seen := make(map[uint32]*proto.GetSinkInputInfoReply, len(reply))
	for _, in := range reply {
		seen[in.SinkInputIndex] = in
	}
	// Meters outlive their sink input only until the next listing.
	for id, m := range p.meters {
		if _, ok := seen[id]; !ok {
			m.close()
			delete(p.meters, id)
		}
	}
	for id := range p.noMeter {
		if _, ok := seen[id]; !ok {
			delete(p.noMeter, id)
		}
	}
	p.inputs = seen
	p.mu.Unlock()

	return reply, nil
}

func processOf(in *proto.GetSinkInputInfoReply) string {
	for _, key := range []string{"application.process.binary", "application.name"} {
		if v, ok := in.Properties[key]; ok {
			if s := v.String(); s != "" {
				return NormalizeProcess(s)
			}
		}
	}
	return ""
}

func sessionOf(in *proto.GetSinkInputInfoReply) Session {
	name := in.MediaName
	if v, ok := in.Properties["application.name"]; ok && v.String() != "" {
		name = v.String()
	}
	return Session{ID: in.SinkInputIndex, Process: processOf(in), Name: name}
}

func (p *pulseEnumerator) Sessions(process string) ([]Session, error) {
	inputs, err := p.list()
	if err != nil {
		return nil, err
	}
	want := NormalizeProcess(process)
	var out []Session
	for _, in := range inputs {
		if processOf(in) == want {
			out = append(out, sessionOf(in))
		}
	}
	return out, nil
}

func (p *pulseEnumerator) All() ([]Session, error) {
	inputs, err := p.list()
	if err != nil {
		return nil, err
	}
	out := make([]Session, 0, len(inputs))
	for _, in := range inputs {
		out = append(out, sessionOf(in))
	}
	return out, nil
}

// lookup re-lists sink inputs and returns the current info for s.
func (p *pulseEnumerator) lookup(s Session) (*proto.GetSinkInputInfoReply, error) {
	if _, err := p.list(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	in, ok := p.inputs[s.ID]
	p.mu.Unlock()
	if !ok {
		return nil, ErrStaleHandle
	}
	return in, nil
}

func (p *pulseEnumerator) Peak(s Session) (float64, error) {
	p.mu.Lock()
	in, ok := p.inputs[s.ID]
	m := p.meters[s.ID]
	failed := p.noMeter[s.ID]
	p.mu.Unlock()
	if !ok {
		return 0, ErrStaleHandle
	}
	if m != nil {
		return m.take(), nil
	}
	if !failed {
		m, err := p.openMeter(in)
		if err == nil {
			return m.take(), nil
		}
		p.mu.Lock()
		p.noMeter[s.ID] = true
		p.mu.Unlock()
	}
	if !in.Corked && !in.Muted {
		return 1, nil
	}
	return 0, nil
}

func (p *pulseEnumerator) openMeter(in *proto.GetSinkInputInfoReply) (*peakMeter, error) {
	var sink proto.GetSinkInfoReply
	if err := p.client.RawRequest(&proto.GetSinkInfo{SinkIndex: in.SinkIndex}, &sink); err != nil {
		return nil, fmt.Errorf("pulse sink info: %w", err)
	}
	m, err := newPeakMeter(p.client, sink.MonitorSourceIndex, in.SinkInputIndex)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	if old := p.meters[in.SinkInputIndex]; old != nil {
		p.mu.Unlock()
		m.close()
		return old, nil
	}
	p.meters[in.SinkInputIndex] = m
	p.mu.Unlock()
	return m, nil
}

func (p *pulseEnumerator) Volume(s Session) (float64, error) {
	in, err := p.lookup(s)
	if err != nil {
		return 0, err
	}
	if len(in.ChannelVolumes) == 0 {
		return 0, nil
	}
	var sum float64
	for _, v := range in.ChannelVolumes {
		sum += float64(v)
	}
	avg := sum / float64(len(in.ChannelVolumes))
	return clampLevel(avg / float64(uint32(proto.VolumeNorm))), nil
}

func (p *pulseEnumerator) SetVolume(s Session, level float64) error {
	in, err := p.lookup(s)
	if err != nil {
		return err
	}
	n := len(in.ChannelVolumes)
	if n == 0 {
		n = 1
	}
	vol := uint32(clampLevel(level) * float64(uint32(proto.VolumeNorm)))
	vols := make(proto.ChannelVolumes, n)
	for i := range vols {
		vols[i] = vol
	}
	err = p.client.RawRequest(&proto.SetSinkInputVolume{
		SinkInputIndex: s.ID,
		ChannelVolumes: vols,
	}, nil)
	if err == nil {
		return nil
	}
	// The stream may have ended between lookup and write.
	if _, lerr := p.lookup(s); errors.Is(lerr, ErrStaleHandle) {
		return ErrStaleHandle
	}
	return &EnumerationError{Op: "set volume", Err: fmt.Errorf("pulse: %w", err)}
}

func (p *pulseEnumerator) Close() {
	p.mu.Lock()
	for id, m := range p.meters {
		m.close()
		delete(p.meters, id)
	}
	p.mu.Unlock()
	p.client.Close()
}
