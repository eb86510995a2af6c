package ducking

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMachineDuckCycle(t *testing.T) {
	m := NewMachine(true)

	assert.Equal(t, FadeDown, m.Observe(true))
	assert.Equal(t, TransitioningDown, m.State())
	assert.Equal(t, None, m.Observe(true))

	assert.True(t, m.FadeDone(m.Generation()))
	assert.Equal(t, Ducked, m.State())
	assert.Equal(t, None, m.Observe(true))

	assert.Equal(t, FadeUp, m.Observe(false))
	assert.Equal(t, TransitioningUp, m.State())
	assert.True(t, m.FadeDone(m.Generation()))
	assert.Equal(t, Normal, m.State())
	assert.Equal(t, None, m.Observe(false))
}

func TestMachineReversal(t *testing.T) {
	m := NewMachine(true)
	m.Observe(true)
	down := m.Generation()

	assert.Equal(t, FadeUp, m.Observe(false))
	assert.Equal(t, TransitioningUp, m.State())
	assert.False(t, m.FadeDone(down), "superseded completion is ignored")
	assert.Equal(t, TransitioningUp, m.State())

	assert.Equal(t, FadeDown, m.Observe(true))
	assert.Equal(t, TransitioningDown, m.State())
}

func TestMachineDisabledIgnoresActivity(t *testing.T) {
	m := NewMachine(false)
	assert.Equal(t, None, m.Observe(true))
	assert.Equal(t, Normal, m.State())
}

func TestMachineEnableDisableIdempotent(t *testing.T) {
	m := NewMachine(true)
	gen := m.Generation()
	assert.Equal(t, None, m.SetEnabled(true))
	assert.Equal(t, gen, m.Generation())

	assert.Equal(t, ForceNormal, m.SetEnabled(false))
	gen = m.Generation()
	assert.Equal(t, None, m.SetEnabled(false))
	assert.Equal(t, gen, m.Generation())
	assert.Equal(t, Normal, m.State())
}

func TestMachineDisableMidFade(t *testing.T) {
	m := NewMachine(true)
	m.Observe(true)
	gen := m.Generation()

	assert.Equal(t, ForceNormal, m.SetEnabled(false))
	assert.Equal(t, Normal, m.State())
	assert.False(t, m.FadeDone(gen))
	assert.Equal(t, Normal, m.State())
}

func TestMachineFadeDoneOutsideTransition(t *testing.T) {
	m := NewMachine(true)
	assert.False(t, m.FadeDone(m.Generation()))
	assert.Equal(t, Normal, m.State())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "transitioning_down", TransitioningDown.String())
	assert.Equal(t, "ducked", Ducked.String())
	assert.Equal(t, "unknown", State(42).String())
}
