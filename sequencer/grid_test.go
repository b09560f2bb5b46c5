package sequencer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func activeCount(g *Grid, col int) int {
	n := 0
	for r := 0; r < g.Rows(); r++ {
		if g.On(r, col) {
			n++
		}
	}
	return n
}

func TestNewGridDiagonal(t *testing.T) {
	g := NewGrid(8, 8)
	for c := 0; c < 8; c++ {
		assert.Equal(t, c, g.ActiveRow(c))
	}
}

func TestNewGridNonSquare(t *testing.T) {
	g := NewGrid(4, 8)
	assert.Equal(t, 2, g.ActiveRow(2))
	assert.Equal(t, NoRow, g.ActiveRow(5), "columns past the height start empty")
}

func TestUpdateKeepsOneActivePerColumn(t *testing.T) {
	g := NewGrid(8, 8)

	g.Update(5, 3, true)
	assert.Equal(t, 5, g.ActiveRow(3))
	assert.Equal(t, 1, activeCount(g, 3))

	g.Update(1, 3, true)
	assert.Equal(t, 1, g.ActiveRow(3))
	assert.Equal(t, 1, activeCount(g, 3))

	// other columns untouched
	assert.Equal(t, 2, g.ActiveRow(2))
	assert.Equal(t, 4, g.ActiveRow(4))
}

func TestUpdateOffClearsOnlyThatCell(t *testing.T) {
	g := NewGrid(8, 8)

	g.Update(2, 3, false) // already off
	assert.Equal(t, 3, g.ActiveRow(3))

	g.Update(3, 3, false)
	assert.Equal(t, NoRow, g.ActiveRow(3))
	assert.Equal(t, 0, activeCount(g, 3))
}

func TestToggleAndApplyIncomingShareSemantics(t *testing.T) {
	a := NewGrid(8, 8)
	b := NewGrid(8, 8)

	a.Toggle(6, 0, true)
	b.ApplyIncoming(6, 0, true)
	assert.True(t, a.Equal(b))

	a.Toggle(6, 0, false)
	b.ApplyIncoming(6, 0, false)
	assert.True(t, a.Equal(b))
}

func TestActiveRowOutOfRange(t *testing.T) {
	g := NewGrid(8, 8)
	assert.Equal(t, NoRow, g.ActiveRow(-1))
	assert.Equal(t, NoRow, g.ActiveRow(8))
}

func TestInBounds(t *testing.T) {
	g := NewGrid(4, 6)
	assert.True(t, g.InBounds(0, 0))
	assert.True(t, g.InBounds(3, 5))
	assert.False(t, g.InBounds(4, 0))
	assert.False(t, g.InBounds(0, 6))
	assert.False(t, g.InBounds(-1, 2))
}

func TestObserversGetSnapshot(t *testing.T) {
	g := NewGrid(8, 8)
	var got []Grid
	g.Observe(func(s Grid) { got = append(got, s) })

	g.Update(7, 0, true)
	require.Len(t, got, 1)
	assert.Equal(t, 7, got[0].ActiveRow(0))

	// later edits do not leak into the earlier snapshot
	g.Update(4, 0, true)
	require.Len(t, got, 2)
	assert.Equal(t, 7, got[0].ActiveRow(0))
	assert.Equal(t, 4, got[1].ActiveRow(0))
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	g := NewGrid(8, 8)
	s := g.Snapshot()
	g.Update(0, 1, true)
	assert.Equal(t, 1, s.ActiveRow(1))
	assert.False(t, s.Equal(g))
}
