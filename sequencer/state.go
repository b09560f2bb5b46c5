package sequencer

import "go-jumpsync/midi"

// State is a read-only snapshot of the engine for rendering.
type State struct {
	Tick      uint64
	Position  int
	Started   bool // false until the first step boundary
	Active    bool
	Encoding  string
	Grid      Grid
	LastDelta Delta
	LastBatch []midi.Command
	Batches   uint64 // batches accepted by the dispatcher
	Sent      uint64 // commands sent
	Dropped   uint64 // batches dropped while inactive
	Pending   int
}

// Row returns the active row of a column in the snapshot, or NoRow
func (s *State) Row(col int) int {
	return s.Grid.ActiveRow(col)
}
