package tui

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-jumpsync/config"
	"go-jumpsync/midi"
	"go-jumpsync/sequencer"
	"go-jumpsync/theme"
)

func newTestModel(t *testing.T) Model {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.StartActive = true
	cfg.CommandDelayMs = 60_000 // keep everything after the first command pending
	mgr, err := sequencer.NewManager(cfg, sequencer.SenderFunc(func(midi.Command) error { return nil }))
	require.NoError(t, err)
	t.Cleanup(func() { mgr.Dispatcher().Close() })
	return NewModel(mgr, nil, theme.New(theme.MustBuiltin(theme.DefaultPalette)))
}

func press(m Model, key string) Model {
	next, _ := m.handleKey(key)
	return next.(Model)
}

func TestCancelReportsPendingCommands(t *testing.T) {
	m := newTestModel(t)
	_, ok := m.Manager.Dispatcher().Submit([]midi.Command{
		midi.ControlChange(0, 20, 127),
		midi.ControlChange(0, 21, 127),
		midi.ControlChange(0, 20, 51),
		midi.ControlChange(0, 21, 1),
	})
	require.True(t, ok)

	m = press(m, "c")
	assert.Equal(t, "cancelled 3 pending command(s)", m.status)
	assert.Zero(t, m.Manager.Dispatcher().Pending())

	m = press(m, "c")
	assert.Equal(t, "cancelled 0 pending command(s)", m.status)
}

func TestCursorWraps(t *testing.T) {
	m := newTestModel(t)

	m = press(m, "h")
	assert.Equal(t, 7, m.cursorCol)
	m = press(m, "l")
	assert.Equal(t, 0, m.cursorCol)
	m = press(m, "k")
	assert.Equal(t, 7, m.cursorRow)
	m = press(m, "down")
	assert.Equal(t, 0, m.cursorRow)
}

func TestSizeKeys(t *testing.T) {
	m := newTestModel(t)

	m = press(m, "1")
	assert.Equal(t, "size 8", m.status)
	m = press(m, "6")
	assert.Equal(t, "size 0.25", m.status)

	before := m.status
	m = press(m, "9") // beyond the table
	assert.Equal(t, before, m.status)
}

func TestHitTest(t *testing.T) {
	m := newTestModel(t)

	row, col, ok := m.hitTest(gridLeft+3*cellWidth, headerRows+markerRows+2)
	require.True(t, ok)
	assert.Equal(t, 2, row)
	assert.Equal(t, 3, col)

	_, _, ok = m.hitTest(gridLeft-1, headerRows+markerRows)
	assert.False(t, ok)
	_, _, ok = m.hitTest(gridLeft+8*cellWidth, headerRows+markerRows)
	assert.False(t, ok)
	_, _, ok = m.hitTest(gridLeft, headerRows+markerRows-1)
	assert.False(t, ok)
}

func TestViewShowsStatus(t *testing.T) {
	m := newTestModel(t)
	m = press(m, "c")
	assert.Contains(t, m.View(), "cancelled 0 pending command(s)")
}
