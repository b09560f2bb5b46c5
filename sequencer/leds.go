package sequencer

import (
	"go-jumpsync/debug"
	"go-jumpsync/midi"
)

const ledFPS = 30

// LEDState describes the state of a single LED
type LEDState struct {
	Row, Col int
	Color    [3]uint8 // RGB color - controller maps to its palette
	Channel  uint8    // 0=static, 2=pulse
}

// Control row buttons on the pad surface
const (
	padActive   = 0
	padBackward = 2
	padForward  = 3
)

// ControllerEvent attaches (or with nil, detaches) an LED/pad surface
type ControllerEvent struct{ C midi.Controller }

// PadPressEvent is a press on the attached surface
type PadPressEvent struct{ Pad midi.PadEvent }

func (ControllerEvent) event() {}
func (PadPressEvent) event()   {}

// SetController attaches a pad surface for LED mirroring
func (m *Manager) SetController(c midi.Controller) {
	m.Post(ControllerEvent{C: c})
}

// HandlePad forwards a surface press to the loop
func (m *Manager) HandlePad(p midi.PadEvent) {
	m.Post(PadPressEvent{Pad: p})
}

func (m *Manager) attach(c midi.Controller) {
	debug.Log("ctrl", "SetController called, resetting diff state")
	m.controller = c
	m.prevLEDs = make(map[[2]int]LEDState) // diff will handle clearing
	m.markLEDsDirty()
}

func (m *Manager) pad(p midi.PadEvent) {
	if p.Row == midi.ControlRow {
		switch p.Col {
		case padActive:
			m.dispatch.ToggleActive()
		case padBackward:
			m.submit([]midi.Command{m.cmds.Direction(Backward)})
		case padForward:
			m.submit([]midi.Command{m.cmds.Direction(Forward)})
		}
		return
	}
	if p.Col == midi.SceneCol {
		return
	}
	row, col := midi.PadToGrid(p.Row, p.Col, min(m.grid.Rows(), midi.LaunchpadRows))
	if !m.grid.InBounds(row, col) {
		return
	}
	m.grid.Toggle(row, col, !m.grid.On(row, col))
}

func (m *Manager) markLEDsDirty() {
	m.mu.Lock()
	m.dirty = true
	m.mu.Unlock()
}

// RenderLEDs lays the grid onto the 8x8 surface with the playhead column
// highlighted, plus the control row.
func (m *Manager) RenderLEDs() []LEDState {
	var leds []LEDState
	pos := -1
	if m.sampler.Started() {
		pos = m.sampler.Position()
	}

	rows := min(m.grid.Rows(), midi.LaunchpadRows)
	cols := min(m.grid.Cols(), midi.LaunchpadCols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			var color [3]uint8
			channel := midi.ChannelStatic
			switch {
			case m.grid.On(r, c) && c == pos:
				color, channel = midi.ColorBrightWhite, midi.ChannelPulse
			case m.grid.On(r, c):
				color = midi.ColorOrange
			case c == pos:
				color = midi.ColorDimBlue
			default:
				continue
			}
			pr, pc := midi.GridToPad(r, c, rows)
			leds = append(leds, LEDState{Row: pr, Col: pc, Color: color, Channel: channel})
		}
	}

	activeColor := midi.ColorRed
	if m.dispatch.Active() {
		activeColor = midi.ColorWhite
	}
	leds = append(leds,
		LEDState{Row: midi.ControlRow, Col: padActive, Color: activeColor, Channel: midi.ChannelStatic},
		LEDState{Row: midi.ControlRow, Col: padBackward, Color: midi.ColorDimBlue, Channel: midi.ChannelStatic},
		LEDState{Row: midi.ControlRow, Col: padForward, Color: midi.ColorDimBlue, Channel: midi.ChannelStatic},
	)
	return leds
}

// flushLEDs sends only changed LEDs to the controller (diffing + batching)
func (m *Manager) flushLEDs() {
	m.mu.Lock()
	dirty := m.dirty
	m.dirty = false
	m.mu.Unlock()

	if !dirty || m.controller == nil {
		return
	}

	newLEDs := m.RenderLEDs()
	newMap := make(map[[2]int]LEDState, len(newLEDs))

	var updates []midi.LEDUpdate

	for _, led := range newLEDs {
		key := [2]int{led.Row, led.Col}
		newMap[key] = led

		// Only send if changed
		if prev, ok := m.prevLEDs[key]; !ok || prev != led {
			updates = append(updates, midi.LEDUpdate{
				Row:     led.Row,
				Col:     led.Col,
				Color:   led.Color,
				Channel: led.Channel,
			})
		}
	}

	// Clear LEDs that are no longer present
	for key := range m.prevLEDs {
		if _, ok := newMap[key]; !ok {
			updates = append(updates, midi.LEDUpdate{Row: key[0], Col: key[1]})
		}
	}

	if len(updates) > 0 {
		debug.Log("led", "flushLEDs: batch=%d prev=%d", len(updates), len(m.prevLEDs))
		if err := m.controller.SetLEDBatch(updates); err != nil {
			debug.Log("led", "send: %v", err)
		}
	}

	m.prevLEDs = newMap
}
