// Package oscsync drives the engine clock from an oscsync master: every
// /sync/pulse message becomes one tick, and a pulse with count 0 resets.
package oscsync

import (
	"context"
	"net"
	"strconv"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/scgolang/osc"
	"github.com/scgolang/syncosc"

	"go-jumpsync/debug"
	"go-jumpsync/sequencer"
)

// Poster accepts engine events; *sequencer.Manager implements it
type Poster interface {
	Post(ev sequencer.Event)
}

// Slave turns oscsync pulses into engine pulse events
type Slave struct {
	engine Poster
	pulses atomic.Uint64
}

// NewSlave creates a slave that posts to engine
func NewSlave(engine Poster) *Slave {
	return &Slave{engine: engine}
}

// Pulse implements PulseHandler
func (s *Slave) Pulse(p Pulse) error {
	s.pulses.Add(1)
	kind := sequencer.PulseTick
	if p.Count == 0 {
		kind = sequencer.PulseReset
	}
	debug.LogEvery(PulsesPerBar, "osc", "pulse count=%d tempo=%.1f", p.Count, p.Tempo)
	s.engine.Post(sequencer.PulseEvent{Kind: kind})
	return nil
}

// Pulses returns how many pulses have been received
func (s *Slave) Pulses() uint64 {
	return s.pulses.Load()
}

// Connector returns a ConnectorFunc that listens on listen and, if
// host is not empty, registers with the master there.
func Connector(listen string) ConnectorFunc {
	return func(ctx context.Context, slave PulseHandler, host string) error {
		return Connect(ctx, slave, listen, host)
	}
}

// Connect serves pulses to slave until ctx is done. The master at host is
// asked to add this listener as a slave; an empty host skips that and
// waits for pulses from a master configured elsewhere.
func Connect(ctx context.Context, slave PulseHandler, listen, host string) error {
	conn, err := Listen(listen)
	if err != nil {
		return err
	}
	return Serve(ctx, conn, slave, host)
}

// Listen binds the pulse socket
func Listen(listen string) (*osc.UDPConn, error) {
	laddr, err := net.ResolveUDPAddr("udp", listen)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve %s", listen)
	}
	conn, err := osc.ListenUDP("udp", laddr)
	if err != nil {
		return nil, errors.Wrapf(err, "listen %s", listen)
	}
	debug.Log("osc", "listening on %s", conn.LocalAddr())
	return conn, nil
}

// Serve dispatches pulses from conn to slave until ctx is done, then
// closes conn.
func Serve(ctx context.Context, conn *osc.UDPConn, slave PulseHandler, host string) error {
	if host != "" {
		if err := register(host, conn.LocalAddr()); err != nil {
			_ = conn.Close()
			return err
		}
	}

	errc := make(chan error, 1)
	go func() {
		// one worker: pulses reach the slave in arrival order
		errc <- conn.Serve(1, osc.PatternMatching{
			syncosc.AddressPulse: osc.Method(func(m osc.Message) error {
				p, err := PulseFromMessage(m)
				if err != nil {
					debug.Log("osc", "bad pulse: %v", err)
					return nil
				}
				return slave.Pulse(p)
			}),
		})
	}()

	select {
	case <-ctx.Done():
		_ = conn.Close()
		<-errc
		return nil
	case err := <-errc:
		return errors.Wrap(err, "serve osc")
	}
}

// register sends /sync/slave/add with our port to the master
func register(host string, local net.Addr) error {
	if _, _, err := net.SplitHostPort(host); err != nil {
		host = net.JoinHostPort(host, strconv.Itoa(MasterPort))
	}
	raddr, err := net.ResolveUDPAddr("udp", host)
	if err != nil {
		return errors.Wrapf(err, "resolve master %s", host)
	}
	conn, err := osc.DialUDP("udp", nil, raddr)
	if err != nil {
		return errors.Wrapf(err, "dial master %s", host)
	}
	defer conn.Close()

	port := local.(*net.UDPAddr).Port
	if err := conn.Send(osc.Message{
		Address:   syncosc.AddressSlaveAdd,
		Arguments: osc.Arguments{osc.Int(int32(port))},
	}); err != nil {
		return errors.Wrap(err, "register with master")
	}
	debug.Log("osc", "registered with %s on port %d", host, port)
	return nil
}
