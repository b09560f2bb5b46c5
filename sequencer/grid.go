package sequencer

// NoRow marks a column with no active cell.
const NoRow = -1

// Cell is one step slot in the grid
type Cell struct {
	On bool `json:"on"`
}

// Grid is a rows x cols matrix of cells with at most one active cell per column.
//
// All mutation goes through Update. Callers are responsible for bounds
// filtering: hardware and UI input is checked with InBounds before it
// reaches the grid, so Update itself assumes valid coordinates.
type Grid struct {
	rows, cols int
	cells      [][]Cell

	observers []func(Grid)
}

// NewGrid creates a grid with the diagonal starting pattern (row == col).
func NewGrid(rows, cols int) *Grid {
	g := &Grid{rows: rows, cols: cols}
	g.cells = make([][]Cell, rows)
	for r := range g.cells {
		g.cells[r] = make([]Cell, cols)
		for c := range g.cells[r] {
			g.cells[r][c].On = r == c
		}
	}
	return g
}

// Rows returns the grid height
func (g *Grid) Rows() int { return g.rows }

// Cols returns the grid width
func (g *Grid) Cols() int { return g.cols }

// InBounds reports whether (row, col) addresses a cell.
func (g *Grid) InBounds(row, col int) bool {
	return row >= 0 && row < g.rows && col >= 0 && col < g.cols
}

// On returns the state of a single cell
func (g *Grid) On(row, col int) bool {
	return g.cells[row][col].On
}

// Observe registers fn to receive a snapshot after every update.
func (g *Grid) Observe(fn func(Grid)) {
	g.observers = append(g.observers, fn)
}

// Update is the single mutation entry point. Turning a cell on clears every
// other cell in its column; turning it off only clears that cell.
func (g *Grid) Update(row, col int, on bool) {
	if on {
		for r := range g.cells {
			g.cells[r][col].On = r == row
		}
	} else {
		g.cells[row][col].On = false
	}
	g.notify()
}

// Toggle applies a manual edit from the UI.
func (g *Grid) Toggle(row, col int, on bool) {
	g.Update(row, col, on)
}

// ApplyIncoming applies an edit that arrived as a hardware event.
func (g *Grid) ApplyIncoming(row, col int, on bool) {
	g.Update(row, col, on)
}

// ActiveRow returns the row of the active cell in col, or NoRow.
func (g *Grid) ActiveRow(col int) int {
	if col < 0 || col >= g.cols {
		return NoRow
	}
	for r := range g.cells {
		if g.cells[r][col].On {
			return r
		}
	}
	return NoRow
}

// Snapshot returns a deep copy without observers.
func (g *Grid) Snapshot() Grid {
	s := Grid{rows: g.rows, cols: g.cols, cells: make([][]Cell, g.rows)}
	for r := range g.cells {
		s.cells[r] = append([]Cell(nil), g.cells[r]...)
	}
	return s
}

// Equal compares cell contents
func (g *Grid) Equal(o *Grid) bool {
	if g.rows != o.rows || g.cols != o.cols {
		return false
	}
	for r := range g.cells {
		for c := range g.cells[r] {
			if g.cells[r][c] != o.cells[r][c] {
				return false
			}
		}
	}
	return true
}

func (g *Grid) notify() {
	if len(g.observers) == 0 {
		return
	}
	snap := g.Snapshot()
	for _, fn := range g.observers {
		fn(snap)
	}
}
