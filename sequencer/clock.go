package sequencer

// PulseKind distinguishes plain clock ticks from transport restarts.
type PulseKind int

const (
	PulseTick PulseKind = iota
	PulseReset
)

func (k PulseKind) String() string {
	if k == PulseReset {
		return "reset"
	}
	return "tick"
}

// Clock counts external timing pulses.
type Clock struct {
	ticks uint64
}

// Pulse applies one pulse and returns the updated tick count.
// Overflow wraps, which at 24 pulses per step is unreachable in practice.
func (c *Clock) Pulse(kind PulseKind) uint64 {
	if kind == PulseReset {
		c.ticks = 0
	} else {
		c.ticks++
	}
	return c.ticks
}

// Ticks returns the current tick count
func (c *Clock) Ticks() uint64 {
	return c.ticks
}
