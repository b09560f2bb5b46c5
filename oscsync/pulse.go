package oscsync

import (
	"context"

	"github.com/pkg/errors"
	"github.com/scgolang/osc"
)

// MasterPort is the listening port of an oscsync master
const MasterPort = 5776

// PulsesPerBar is the number of pulses in one bar
const PulsesPerBar = 96

// Pulse holds the arguments of a /sync/pulse message
type Pulse struct {
	Tempo float32
	Count int32
}

// PulseFromMessage reads the tempo and counter of a pulse message
func PulseFromMessage(m osc.Message) (Pulse, error) {
	p := Pulse{}
	if expected, got := 2, len(m.Arguments); expected != got {
		return p, errors.Errorf("expected %d arguments, got %d", expected, got)
	}
	tempo, err := m.Arguments[0].ReadFloat32()
	if err != nil {
		return p, errors.Wrap(err, "reading tempo")
	}
	count, err := m.Arguments[1].ReadInt32()
	if err != nil {
		return p, errors.Wrap(err, "reading counter")
	}
	p.Tempo = tempo
	p.Count = count
	return p, nil
}

// PulseHandler is anything that follows an oscsync master
type PulseHandler interface {
	Pulse(Pulse) error
}

// ConnectorFunc connects a handler to an oscsync master
type ConnectorFunc func(ctx context.Context, h PulseHandler, host string) error
