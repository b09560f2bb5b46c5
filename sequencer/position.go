package sequencer

// Boundary describes one quantization boundary crossing of the playback head.
type Boundary struct {
	Prev, Next       int // desired positions before and after the crossing
	PrevRow, NextRow int // active rows in those columns, NoRow if empty
	First            bool
}

// Sampler turns tick counts into de-duplicated head positions.
type Sampler struct {
	ticksPerStep uint64
	width        int

	pos     int
	started bool
}

// NewSampler creates a sampler. Both arguments must be positive; Manager
// validates configuration before constructing one.
func NewSampler(ticksPerStep, width int) *Sampler {
	return &Sampler{ticksPerStep: uint64(ticksPerStep), width: width}
}

// Position returns the last emitted desired position
func (s *Sampler) Position() int {
	return s.pos
}

// Started reports whether any boundary has been emitted
func (s *Sampler) Started() bool {
	return s.started
}

// Desired computes the desired column for a tick count.
func (s *Sampler) Desired(ticks uint64) int {
	return int((ticks / s.ticksPerStep) % uint64(s.width))
}

// Sample computes the desired position for ticks and reports a boundary
// only when it differs from the previous one. The outgoing column is read
// from the grid before the sampler advances, so edits made while that
// column was playing are honoured.
//
// The outgoing row is read again rather than remembered from the previous
// boundary. An edit to the playing column after its correction went out
// therefore changes only the next delta, and the edited column's own
// correction is not resent until the next cycle. Deltas over any full
// cycle still sum to zero.
func (s *Sampler) Sample(ticks uint64, g *Grid) (Boundary, bool) {
	next := s.Desired(ticks)
	if s.started && next == s.pos {
		return Boundary{}, false
	}

	b := Boundary{Prev: s.pos, Next: next, PrevRow: NoRow, First: !s.started}
	if s.started {
		b.PrevRow = g.ActiveRow(s.pos)
	}

	s.pos = next
	s.started = true

	b.NextRow = g.ActiveRow(next)
	return b, true
}
