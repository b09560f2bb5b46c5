package midi

// ControllerType identifies the kind of controller
type ControllerType int

const (
	ControllerUnknown ControllerType = iota
	ControllerLaunchpad
	ControllerInput
)

// PadEvent is sent when a pad/button is pressed on a grid controller.
// Row 0 is the bottom row of the device; row 8 is the top control row and
// col 8 the scene column.
type PadEvent struct {
	Row, Col int
	Velocity uint8
}

// LEDUpdate is one pad colour change
type LEDUpdate struct {
	Row, Col int
	Color    [3]uint8
	Channel  uint8
}

// Controller is a grid device that reports pad presses and can show state.
type Controller interface {
	ID() string
	Type() ControllerType

	PadEvents() <-chan PadEvent

	SetLEDBatch(updates []LEDUpdate) error

	Close() error
}

// PadMap converts a raw note event into a grid edit. ok is false for events
// the map does not understand; coordinates are not bounds-checked.
type PadMap interface {
	Pad(ev RawEvent) (row, col int, on bool, ok bool)
}

// ChannelRowMap addresses rows by MIDI channel and columns by note number
// counted from NoteBase. Velocity 0 and note-off clear the cell.
type ChannelRowMap struct {
	NoteBase uint8
}

func (m ChannelRowMap) Pad(ev RawEvent) (row, col int, on bool, ok bool) {
	switch ev.Kind() {
	case NoteOn:
		on = ev.Data2 != 0
	case NoteOff:
		on = false
	default:
		return 0, 0, false, false
	}
	return int(ev.Channel()), int(ev.Data1) - int(m.NoteBase), on, true
}

// LED colors as RGB; the controller maps them to its palette
var (
	ColorOff         = [3]uint8{0, 0, 0}
	ColorWhite       = [3]uint8{200, 200, 200}
	ColorRed         = [3]uint8{255, 0, 0}
	ColorOrange      = [3]uint8{255, 100, 0}
	ColorDimBlue     = [3]uint8{40, 60, 120}
	ColorBrightWhite = [3]uint8{255, 255, 255}
)

// Channel modes for LED updates
const (
	ChannelStatic uint8 = 0 // solid color
	ChannelFlash  uint8 = 1 // flashing A/B alternating
	ChannelPulse  uint8 = 2 // pulsing (fades)
)
