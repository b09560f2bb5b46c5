package sequencer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClockPulse(t *testing.T) {
	var c Clock
	assert.Equal(t, uint64(1), c.Pulse(PulseTick))
	assert.Equal(t, uint64(2), c.Pulse(PulseTick))
	assert.Equal(t, uint64(0), c.Pulse(PulseReset))
	assert.Equal(t, uint64(1), c.Pulse(PulseTick))
	assert.Equal(t, uint64(1), c.Ticks())
}

func TestPulseKindString(t *testing.T) {
	assert.Equal(t, "tick", PulseTick.String())
	assert.Equal(t, "reset", PulseReset.String())
}
