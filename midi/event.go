package midi

// MIDI status bytes
const (
	NoteOff uint8 = 0x80
	NoteOn  uint8 = 0x90
	CC      uint8 = 0xB0

	TimingClock uint8 = 0xF8
	Start       uint8 = 0xFA
	Continue    uint8 = 0xFB
	Stop        uint8 = 0xFC
)

// RawEvent is one incoming hardware message as delivered by the adapter.
type RawEvent struct {
	Status uint8
	Data1  uint8
	Data2  uint8
}

// Kind returns the status nibble for channel messages (NoteOn, CC, ...)
// and the full status byte for system messages.
func (e RawEvent) Kind() uint8 {
	if e.Status >= 0xF0 {
		return e.Status
	}
	return e.Status & 0xF0
}

// Channel returns the low nibble of the status byte (0-15).
func (e RawEvent) Channel() uint8 {
	return e.Status & 0x0F
}

// EventFromBytes builds a RawEvent from a wire message; missing data bytes are zero.
func EventFromBytes(b []byte) (RawEvent, bool) {
	if len(b) == 0 {
		return RawEvent{}, false
	}
	ev := RawEvent{Status: b[0]}
	if len(b) > 1 {
		ev.Data1 = b[1]
	}
	if len(b) > 2 {
		ev.Data2 = b[2]
	}
	return ev, true
}

// Command is an outbound hardware message. It is a value type: once built it
// is never mutated, only copied into the dispatcher and sent once.
type Command [3]uint8

// ControlChange builds a CC command on channel ch (0-15).
func ControlChange(ch, controller, value uint8) Command {
	return Command{CC | (ch & 0x0F), controller & 0x7F, value & 0x7F}
}

// Status returns the status byte
func (c Command) Status() uint8 { return c[0] }

// Controller returns data byte 1
func (c Command) Controller() uint8 { return c[1] }

// Value returns data byte 2
func (c Command) Value() uint8 { return c[2] }

// Bytes returns the wire form of the command.
func (c Command) Bytes() []byte {
	return []byte{c[0], c[1], c[2]}
}
