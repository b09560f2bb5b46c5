package sequencer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"

	"go-jumpsync/config"
	"go-jumpsync/debug"
	"go-jumpsync/midi"
)

// Event is anything the engine loop reacts to.
type Event interface {
	event()
}

// PulseEvent is one timing pulse
type PulseEvent struct{ Kind PulseKind }

// InputEvent is a raw message from the hardware input feed
type InputEvent struct{ midi.RawEvent }

// ToggleEvent flips a cell, as a click or a pad press does
type ToggleEvent struct{ Row, Col int }

// ActiveEvent sets or flips the dispatch gate
type ActiveEvent struct {
	On     bool
	Toggle bool
}

// JumpEvent requests one manual jump of the currently selected size
type JumpEvent struct{ Dir Direction }

// SizeEvent selects the device's jump size
type SizeEvent struct{ Size float64 }

func (PulseEvent) event()  {}
func (InputEvent) event()  {}
func (ToggleEvent) event() {}
func (ActiveEvent) event() {}
func (JumpEvent) event()   {}
func (SizeEvent) event()   {}

// ErrInvalidConfig is returned by NewManager for unusable configuration.
// The underlying cause stays reachable with errors.Is.
var ErrInvalidConfig = errors.New("invalid engine config")

// Manager owns all sequencing state and runs the single event loop.
//
// Everything that mutates the clock, the grid or the sampler happens in
// Apply, which only the loop goroutine calls. Other goroutines post events
// and read State snapshots.
type Manager struct {
	clock    Clock
	grid     *Grid
	sampler  *Sampler
	compiler *Compiler
	dispatch *Dispatcher
	cmds     CommandMap
	pads     midi.PadMap

	activationCC uint8
	encoding     config.Encoding

	inbox chan Event

	posObservers  []func(int)
	gridObservers []func(Grid)

	lastDelta Delta
	lastBatch []midi.Command
	batches   uint64

	mu    sync.RWMutex // guards snap
	snap  State
	dirty bool

	controller midi.Controller
	prevLEDs   map[[2]int]LEDState

	// Notify UI of updates
	UpdateChan chan struct{}
}

// NewManager builds the engine from a validated config. out receives
// every dispatched command.
func NewManager(cfg *config.Config, out Sender) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	cmds := CommandMap{
		Channel:       cfg.Commands.Channel,
		SizeCC:        cfg.Commands.SizeCC,
		DirectionCC:   cfg.Commands.DirectionCC,
		StepCC:        cfg.Commands.StepCC,
		ForwardValue:  cfg.Commands.ForwardValue,
		BackwardValue: cfg.Commands.BackwardValue,
	}

	var enc Encoder
	switch cfg.Encoding {
	case config.EncodingUnit:
		enc = &UnitEncoder{Map: cmds, Pad: cfg.UnitPad}
	default:
		m, err := NewMagnitudeEncoder(cmds, cfg.StepTable, cfg.StepSize)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
		enc = m
	}

	d := NewDispatcher(out, cfg.CommandDelay())
	d.CancelStale = cfg.CancelStale
	d.SetActive(cfg.StartActive)

	m := &Manager{
		grid:         NewGrid(cfg.Grid.Height, cfg.Grid.Width),
		sampler:      NewSampler(cfg.TicksPerStep, cfg.Grid.Width),
		compiler:     NewCompiler(cfg.Grid.Width, enc),
		dispatch:     d,
		cmds:         cmds,
		pads:         midi.ChannelRowMap{NoteBase: cfg.NoteBase},
		activationCC: cfg.ActivationCC,
		encoding:     cfg.Encoding,
		inbox:        make(chan Event, 1024),
		prevLEDs:     make(map[[2]int]LEDState),
		UpdateChan:   make(chan struct{}, 1),
	}
	m.grid.Observe(func(g Grid) {
		for _, fn := range m.gridObservers {
			fn(g)
		}
	})
	m.publish()
	return m, nil
}

// SetPadMap replaces the note-to-cell mapping for incoming events
func (m *Manager) SetPadMap(p midi.PadMap) {
	m.pads = p
}

// OnGridChanged registers fn to run after every grid update. Observers run
// on the loop goroutine and must not call Apply.
func (m *Manager) OnGridChanged(fn func(Grid)) {
	m.gridObservers = append(m.gridObservers, fn)
}

// OnPositionChanged registers fn to run after every new desired position
func (m *Manager) OnPositionChanged(fn func(int)) {
	m.posObservers = append(m.posObservers, fn)
}

// Dispatcher exposes the command dispatcher (for stats and cancellation)
func (m *Manager) Dispatcher() *Dispatcher {
	return m.dispatch
}

// Post queues an event for the loop. It blocks when the inbox is full.
func (m *Manager) Post(ev Event) {
	m.inbox <- ev
}

// ToggleCell flips one cell
func (m *Manager) ToggleCell(row, col int) {
	m.Post(ToggleEvent{Row: row, Col: col})
}

// SetActive sets the dispatch gate
func (m *Manager) SetActive(on bool) {
	m.Post(ActiveEvent{On: on})
}

// ManualJump triggers one jump of the currently selected size
func (m *Manager) ManualJump(dir Direction) {
	m.Post(JumpEvent{Dir: dir})
}

// ManualSize selects a jump size on the device
func (m *Manager) ManualSize(size float64) error {
	if _, ok := SizeIntensity[size]; !ok {
		return errors.Wrapf(ErrUnknownSize, "size %g", size)
	}
	m.Post(SizeEvent{Size: size})
	return nil
}

// Run drains the inbox until ctx is done, then stops the dispatcher.
func (m *Manager) Run(ctx context.Context) error {
	ledTicker := time.NewTicker(time.Second / ledFPS)
	defer ledTicker.Stop()
	defer m.dispatch.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-m.inbox:
			m.Apply(ev)
		case <-ledTicker.C:
			m.flushLEDs()
		}
	}
}

// Feed posts every raw event from src until it closes or ctx is done
func (m *Manager) Feed(ctx context.Context, src <-chan midi.RawEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-src:
			if !ok {
				return
			}
			select {
			case m.inbox <- InputEvent{ev}:
			case <-ctx.Done():
				return
			}
		}
	}
}

// Apply processes one event synchronously. State changes flow in a fixed
// order: clock, position, jump, dispatch.
func (m *Manager) Apply(ev Event) {
	switch e := ev.(type) {
	case PulseEvent:
		m.pulse(e.Kind)
	case InputEvent:
		m.input(e.RawEvent)
	case ToggleEvent:
		if !m.grid.InBounds(e.Row, e.Col) {
			return
		}
		m.grid.Toggle(e.Row, e.Col, !m.grid.On(e.Row, e.Col))
		debug.Log("grid", "toggle %d,%d -> %v", e.Row, e.Col, m.grid.On(e.Row, e.Col))
	case ActiveEvent:
		if e.Toggle {
			m.dispatch.ToggleActive()
		} else {
			m.dispatch.SetActive(e.On)
		}
	case JumpEvent:
		m.submit([]midi.Command{m.cmds.Direction(e.Dir)})
	case SizeEvent:
		cmd, err := m.cmds.Size(e.Size)
		if err != nil {
			debug.Log("engine", "manual size: %v", err)
			return
		}
		m.submit([]midi.Command{cmd})
	case ControllerEvent:
		m.attach(e.C)
	case PadPressEvent:
		m.pad(e.Pad)
	}
	m.publish()
}

func (m *Manager) pulse(kind PulseKind) {
	ticks := m.clock.Pulse(kind)
	if kind == PulseReset {
		debug.Log("clock", "reset")
	} else {
		debug.LogEvery(96, "clock", "tick %d", ticks)
	}

	b, ok := m.sampler.Sample(ticks, m.grid)
	if !ok {
		return
	}
	for _, fn := range m.posObservers {
		fn(b.Next)
	}

	d, cmds := m.compiler.Compile(b)
	m.lastDelta = d
	if d.Valid {
		debug.Log("jump", "%d->%d rows %d->%d delta %d (%d commands)", b.Prev, b.Next, b.PrevRow, b.NextRow, d.Steps, len(cmds))
	}
	m.submit(cmds)
}

// input classifies one raw event. Clock messages become pulses, the
// activation controller flips the gate, notes edit the grid.
func (m *Manager) input(ev midi.RawEvent) {
	switch ev.Kind() {
	case midi.TimingClock:
		m.pulse(PulseTick)
		return
	case midi.Start:
		m.pulse(PulseReset)
		return
	case midi.CC:
		if ev.Data1 == m.activationCC && ev.Data2 > 0 {
			m.dispatch.ToggleActive()
		}
		return
	}

	row, col, on, ok := m.pads.Pad(ev)
	if !ok || !m.grid.InBounds(row, col) {
		return
	}
	m.grid.ApplyIncoming(row, col, on)
	debug.Log("grid", "incoming %d,%d -> %v", row, col, on)
}

func (m *Manager) submit(cmds []midi.Command) {
	if len(cmds) == 0 {
		return
	}
	m.lastBatch = cmds
	if _, ok := m.dispatch.Submit(cmds); ok {
		m.batches++
	}
}

// publish refreshes the snapshot read by other goroutines
func (m *Manager) publish() {
	sent, dropped := m.dispatch.Stats()
	s := State{
		Tick:      m.clock.Ticks(),
		Position:  m.sampler.Position(),
		Started:   m.sampler.Started(),
		Active:    m.dispatch.Active(),
		Encoding:  string(m.encoding),
		Grid:      m.grid.Snapshot(),
		LastDelta: m.lastDelta,
		LastBatch: append([]midi.Command(nil), m.lastBatch...),
		Batches:   m.batches,
		Sent:      sent,
		Dropped:   dropped,
		Pending:   m.dispatch.Pending(),
	}

	m.mu.Lock()
	m.snap = s
	m.dirty = true
	m.mu.Unlock()

	select {
	case m.UpdateChan <- struct{}{}:
	default:
	}
}

// State returns the latest snapshot
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snap
}
