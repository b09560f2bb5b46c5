package midi

import (
	"strings"
	"sync"

	"github.com/pkg/errors"

	"go-jumpsync/debug"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

// ErrPortNotFound is returned when a configured port is not present
var ErrPortNotFound = errors.New("port not found")

// AdapterConfig names the ports an Adapter opens
type AdapterConfig struct {
	Input       string // performance events; empty = none
	Clock       string // timing pulses; empty or equal to Input = shared
	Output      string // command sink; empty = virtual port
	VirtualName string

	// Driver opens the ports; nil uses the first registered driver
	Driver drivers.Driver
}

// Adapter is the transport between the engine and MIDI hardware: one
// output for commands and a merged feed of incoming events.
type Adapter struct {
	drv    drivers.Driver
	send   func(msg gomidi.Message) error
	out    drivers.Out
	events chan RawEvent
	stops  []func()
	done   chan struct{}
	once   sync.Once
}

// virtualOpener is implemented by drivers that can create virtual ports (rtmididrv)
type virtualOpener interface {
	OpenVirtualOut(name string) (drivers.Out, error)
}

// OpenAdapter opens every configured port. Any missing port is an error;
// the caller treats that as fatal.
func OpenAdapter(cfg AdapterConfig) (*Adapter, error) {
	drv := cfg.Driver
	if drv == nil {
		drv = drivers.Get()
	}
	if drv == nil {
		return nil, errors.New("no midi driver registered")
	}
	a := &Adapter{
		drv:    drv,
		events: make(chan RawEvent, 1024),
		done:   make(chan struct{}),
	}

	out, err := openOut(drv, cfg)
	if err != nil {
		return nil, err
	}
	send, err := gomidi.SendTo(out)
	if err != nil {
		return nil, errors.Wrapf(err, "open output %s", out.String())
	}
	a.out, a.send = out, send
	debug.Log("midi", "output: %s", out.String())

	clock := cfg.Clock
	if clock == cfg.Input {
		clock = ""
	}
	if cfg.Input != "" {
		if err := a.listen(cfg.Input, clock == ""); err != nil {
			a.Close()
			return nil, err
		}
	}
	if clock != "" {
		if err := a.listen(clock, true); err != nil {
			a.Close()
			return nil, err
		}
	}
	return a, nil
}

func openOut(drv drivers.Driver, cfg AdapterConfig) (drivers.Out, error) {
	if cfg.Output != "" {
		outs, err := drv.Outs()
		if err != nil {
			return nil, errors.Wrap(err, "list outputs")
		}
		for _, out := range outs {
			if strings.Contains(out.String(), cfg.Output) {
				return out, nil
			}
		}
		return nil, notFound(cfg.Output, outNames(outs))
	}

	name := cfg.VirtualName
	if name == "" {
		name = "VirtualPad"
	}
	vo, ok := drv.(virtualOpener)
	if !ok {
		return nil, errors.New("midi driver cannot open virtual ports; set an output port")
	}
	out, err := vo.OpenVirtualOut(name)
	if err != nil {
		return nil, errors.Wrapf(err, "open virtual output %s", name)
	}
	return out, nil
}

// listen forwards every message from the named port. Clock ports need
// timing messages, which the driver filters unless asked for.
func (a *Adapter) listen(name string, clock bool) error {
	ins, err := a.drv.Ins()
	if err != nil {
		return errors.Wrap(err, "list inputs")
	}
	var in drivers.In
	for _, p := range ins {
		if strings.Contains(p.String(), name) {
			in = p
			break
		}
	}
	if in == nil {
		return notFound(name, inNames(ins))
	}

	var opts []gomidi.Option
	if clock {
		opts = append(opts, gomidi.UseTimeCode())
	}

	stop, err := gomidi.ListenTo(in, func(msg gomidi.Message, timestampms int32) {
		ev, ok := EventFromBytes(msg.Bytes())
		if !ok {
			return
		}
		// block rather than drop: a lost clock pulse shifts every later position
		select {
		case a.events <- ev:
		case <-a.done:
		}
	}, opts...)
	if err != nil {
		return errors.Wrapf(err, "listen %s", name)
	}
	a.stops = append(a.stops, stop)
	debug.Log("midi", "listening: %s (clock=%v)", name, clock)
	return nil
}

// Send delivers one command
func (a *Adapter) Send(cmd Command) error {
	return a.send(gomidi.Message(cmd.Bytes()))
}

// Events is the live feed of incoming messages from all opened inputs
func (a *Adapter) Events() <-chan RawEvent {
	return a.events
}

// OutputName returns the name of the opened output port
func (a *Adapter) OutputName() string {
	return a.out.String()
}

// Close stops the listeners. The event feed is left open; readers stop on
// their own context.
func (a *Adapter) Close() error {
	a.once.Do(func() {
		close(a.done)
		for _, stop := range a.stops {
			stop()
		}
	})
	return nil
}

// CloseDriver releases the MIDI driver; call once at shutdown
func CloseDriver() {
	gomidi.CloseDriver()
}

func notFound(name string, available []string) error {
	return errors.Wrapf(ErrPortNotFound, "%s (available ports: %s)", name, strings.Join(available, ", "))
}
