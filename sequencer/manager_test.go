package sequencer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-jumpsync/config"
	"go-jumpsync/midi"
)

func newTestManager(t *testing.T, edit func(*config.Config)) (*Manager, *recorder) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.StartActive = true
	cfg.CommandDelayMs = 0
	if edit != nil {
		edit(cfg)
	}
	rec := &recorder{}
	m, err := NewManager(cfg, rec)
	require.NoError(t, err)
	return m, rec
}

// tickTo sends tick pulses until the clock reads ticks
func tickTo(m *Manager, ticks uint64) {
	for m.clock.Ticks() < ticks {
		m.Apply(PulseEvent{Kind: PulseTick})
	}
}

func TestNewManagerRejectsBadConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Grid.Width = 0
	_, err := NewManager(cfg, &recorder{})
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.ErrorIs(t, err, config.ErrInvalid)
	assert.Contains(t, err.Error(), "grid width must be positive")
}

func TestNewManagerKeepsEncoderCause(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.StepTable = []float64{3}
	_, err := NewManager(cfg, &recorder{})
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.ErrorIs(t, err, ErrUnknownSize)
}

func TestScenarioNaturalTracking(t *testing.T) {
	m, rec := newTestManager(t, nil)

	tickTo(m, 24*3) // steps 0,1,2,3 on the diagonal
	time.Sleep(5 * time.Millisecond)

	assert.Empty(t, rec.sent())
	s := m.State()
	assert.Equal(t, 3, s.Position)
	assert.Equal(t, Delta{Steps: 0, Valid: true}, s.LastDelta)
	assert.Zero(t, s.Batches)
}

func TestScenarioEditAheadOfHead(t *testing.T) {
	m, rec := newTestManager(t, nil)

	tickTo(m, 24*2)
	require.Equal(t, 2, m.State().Position)

	m.Apply(ToggleEvent{Row: 5, Col: 3})
	assert.Equal(t, 5, m.grid.ActiveRow(3))

	tickTo(m, 24*3)
	require.Eventually(t, func() bool { return len(rec.sent()) == 2 }, time.Second, time.Millisecond)
	assert.Equal(t, []midi.Command{
		midi.ControlChange(0, 20, 76),
		midi.ControlChange(0, 21, 127),
	}, rec.sent())
	assert.Equal(t, Delta{Steps: 2, Valid: true}, m.State().LastDelta)
}

func TestScenarioResetMidStream(t *testing.T) {
	m, rec := newTestManager(t, nil)

	tickTo(m, 24*3)
	m.Apply(PulseEvent{Kind: PulseReset})

	s := m.State()
	assert.Zero(t, s.Tick)
	assert.Equal(t, 0, s.Position)
	assert.Equal(t, Delta{Steps: 0 - 3 - 1 + 8, Valid: true}, s.LastDelta)

	require.Eventually(t, func() bool { return len(rec.sent()) == 2 }, time.Second, time.Millisecond)
	assert.Equal(t, midi.ControlChange(0, 20, 102), rec.sent()[0])
	assert.Equal(t, midi.ControlChange(0, 21, 127), rec.sent()[1])
}

func TestEditPlayingColumnShiftsNextDelta(t *testing.T) {
	m, _ := newTestManager(t, nil)

	tickTo(m, 24*2)
	require.Equal(t, Delta{Steps: 0, Valid: true}, m.State().LastDelta)

	// column 2 is already playing at row 2
	m.Apply(ToggleEvent{Row: 6, Col: 2})
	tickTo(m, 24*3)
	assert.Equal(t, Delta{Steps: 3 - 6 - 1, Valid: true}, m.State().LastDelta)

	// one full cycle later, through the boundary out of column 2 again
	var deltas []int
	for step := uint64(4); step <= 8+3; step++ {
		tickTo(m, 24*step)
		d := m.State().LastDelta
		require.True(t, d.Valid)
		deltas = append(deltas, d.Steps)
	}
	assert.Equal(t, []int{0, 0, 0, 0, 0, 0, 6 - 1 - 1, 3 - 6 - 1}, deltas)

	sum := 0
	for _, d := range deltas {
		sum += d
	}
	assert.Zero(t, sum)
}

func TestFullCycleOnDiagonalIsSilent(t *testing.T) {
	m, rec := newTestManager(t, nil)
	tickTo(m, 24*8*2)
	time.Sleep(5 * time.Millisecond)
	assert.Empty(t, rec.sent())
}

func TestUnitEncodingScenario(t *testing.T) {
	m, rec := newTestManager(t, func(c *config.Config) { c.Encoding = config.EncodingUnit })

	tickTo(m, 24*2)
	m.Apply(ToggleEvent{Row: 5, Col: 3})
	tickTo(m, 24*3)

	require.Eventually(t, func() bool { return len(rec.sent()) == 2 }, time.Second, time.Millisecond)
	for _, c := range rec.sent() {
		assert.Equal(t, DefaultCommandMap.Step(Forward), c)
	}
}

func TestEmptyColumnSuppressesCorrection(t *testing.T) {
	m, rec := newTestManager(t, nil)

	tickTo(m, 24)
	m.Apply(ToggleEvent{Row: 2, Col: 2}) // turns the only cell in column 2 off
	tickTo(m, 24*3)
	time.Sleep(5 * time.Millisecond)

	assert.Empty(t, rec.sent())
	assert.False(t, m.State().LastDelta.Valid)
}

func TestInactiveDropsCorrections(t *testing.T) {
	m, rec := newTestManager(t, func(c *config.Config) { c.StartActive = false })

	tickTo(m, 24*2)
	m.Apply(ToggleEvent{Row: 5, Col: 3})
	tickTo(m, 24*3)
	time.Sleep(5 * time.Millisecond)

	assert.Empty(t, rec.sent())
	s := m.State()
	assert.False(t, s.Active)
	assert.Equal(t, uint64(1), s.Dropped)
}

func TestInputClockAndActivation(t *testing.T) {
	m, rec := newTestManager(t, func(c *config.Config) { c.StartActive = false })

	m.Apply(InputEvent{midi.RawEvent{Status: midi.CC, Data1: 64, Data2: 127}})
	assert.True(t, m.State().Active)
	m.Apply(InputEvent{midi.RawEvent{Status: midi.CC, Data1: 64, Data2: 0}})
	assert.True(t, m.State().Active, "release does not toggle")

	for i := 0; i < 24*2; i++ {
		m.Apply(InputEvent{midi.RawEvent{Status: midi.TimingClock}})
	}
	assert.Equal(t, uint64(48), m.State().Tick)

	m.Apply(InputEvent{midi.RawEvent{Status: midi.Start}})
	assert.Zero(t, m.State().Tick)

	// 2 -> 0 with rows 2 -> 0: 0-2-1+8 = 5
	require.Eventually(t, func() bool { return len(rec.sent()) == 4 }, time.Second, time.Millisecond)
	assert.Equal(t, Delta{Steps: 5, Valid: true}, m.State().LastDelta)
}

func TestInputNotesEditGrid(t *testing.T) {
	m, _ := newTestManager(t, nil)

	// channel = row, note - 41 = column
	m.Apply(InputEvent{midi.RawEvent{Status: midi.NoteOn | 2, Data1: 41 + 4, Data2: 100}})
	assert.Equal(t, 2, m.grid.ActiveRow(4))

	m.Apply(InputEvent{midi.RawEvent{Status: midi.NoteOff | 2, Data1: 41 + 4}})
	assert.Equal(t, NoRow, m.grid.ActiveRow(4))

	m.Apply(InputEvent{midi.RawEvent{Status: midi.NoteOn | 6, Data1: 41 + 1, Data2: 90}})
	m.Apply(InputEvent{midi.RawEvent{Status: midi.NoteOn | 6, Data1: 41 + 1, Data2: 0}})
	assert.Equal(t, NoRow, m.grid.ActiveRow(1), "velocity 0 clears")

	before := m.grid.Snapshot()
	m.Apply(InputEvent{midi.RawEvent{Status: midi.NoteOn | 2, Data1: 41 + 8, Data2: 100}})
	m.Apply(InputEvent{midi.RawEvent{Status: midi.NoteOn | 9, Data1: 41, Data2: 100}})
	m.Apply(InputEvent{midi.RawEvent{Status: midi.NoteOn, Data1: 10, Data2: 100}})
	assert.True(t, before.Equal(m.grid), "out of range notes are ignored")
}

func TestToggleOutOfBoundsIgnored(t *testing.T) {
	m, _ := newTestManager(t, nil)
	before := m.grid.Snapshot()
	m.Apply(ToggleEvent{Row: 8, Col: 0})
	m.Apply(ToggleEvent{Row: 0, Col: -1})
	assert.True(t, before.Equal(m.grid))
}

func TestObservers(t *testing.T) {
	m, _ := newTestManager(t, nil)

	var positions []int
	var grids int
	m.OnPositionChanged(func(p int) { positions = append(positions, p) })
	m.OnGridChanged(func(Grid) { grids++ })

	tickTo(m, 24*2)
	m.Apply(ToggleEvent{Row: 0, Col: 5})

	assert.Equal(t, []int{0, 1, 2}, positions)
	assert.Equal(t, 1, grids)
}

func TestManualSizeRejectsUnknown(t *testing.T) {
	m, _ := newTestManager(t, nil)
	assert.ErrorIs(t, m.ManualSize(3), ErrUnknownSize)
}

func TestRunProcessesManualCommands(t *testing.T) {
	m, rec := newTestManager(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- m.Run(ctx) }()

	require.NoError(t, m.ManualSize(4))
	m.ManualJump(Backward)

	require.Eventually(t, func() bool { return len(rec.sent()) == 2 }, time.Second, time.Millisecond)
	assert.Equal(t, []midi.Command{
		midi.ControlChange(0, 20, 102),
		midi.ControlChange(0, 21, 1),
	}, rec.sent())

	m.SetActive(false)
	require.Eventually(t, func() bool { return !m.State().Active }, time.Second, time.Millisecond)

	cancel()
	select {
	case err := <-errc:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop")
	}

	_, ok := m.Dispatcher().Submit([]midi.Command{cc(1)})
	assert.False(t, ok, "dispatcher closed with the loop")
}

func TestFeedForwardsEvents(t *testing.T) {
	m, _ := newTestManager(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	src := make(chan midi.RawEvent, 4)
	go m.Feed(ctx, src)
	src <- midi.RawEvent{Status: midi.TimingClock}
	src <- midi.RawEvent{Status: midi.TimingClock}

	require.Eventually(t, func() bool { return m.State().Tick == 2 }, time.Second, time.Millisecond)
}

type fakeController struct {
	mu      sync.Mutex
	batches [][]midi.LEDUpdate
	pads    chan midi.PadEvent
}

func (f *fakeController) ID() string                      { return "fake" }
func (f *fakeController) Type() midi.ControllerType       { return midi.ControllerLaunchpad }
func (f *fakeController) PadEvents() <-chan midi.PadEvent { return f.pads }
func (f *fakeController) Close() error                    { return nil }

func (f *fakeController) SetLEDBatch(u []midi.LEDUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, u)
	return nil
}

func (f *fakeController) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.batches)
}

func TestLEDMirror(t *testing.T) {
	m, _ := newTestManager(t, nil)
	fc := &fakeController{}

	m.Apply(ControllerEvent{C: fc})
	m.flushLEDs()
	require.Equal(t, 1, fc.count())

	byKey := map[[2]int]midi.LEDUpdate{}
	for _, u := range fc.batches[0] {
		byKey[[2]int{u.Row, u.Col}] = u
	}
	// grid row 0 is the top pad row; no playhead before the first pulse
	assert.Equal(t, midi.ColorOrange, byKey[[2]int{7, 0}].Color)
	assert.Equal(t, midi.ColorOrange, byKey[[2]int{4, 3}].Color)
	assert.Equal(t, midi.ColorWhite, byKey[[2]int{midi.ControlRow, 0}].Color, "gate open")
	_, lit := byKey[[2]int{6, 0}]
	assert.False(t, lit)

	// nothing changed
	m.flushLEDs()
	assert.Equal(t, 1, fc.count())

	m.Apply(ToggleEvent{Row: 3, Col: 3})
	m.flushLEDs()
	require.Equal(t, 2, fc.count())
	require.Len(t, fc.batches[1], 1)
	assert.Equal(t, midi.LEDUpdate{Row: 4, Col: 3}, fc.batches[1][0], "cleared cell turns off")

	m.Apply(PulseEvent{Kind: PulseTick})
	m.flushLEDs()
	require.Equal(t, 3, fc.count())
	byKey = map[[2]int]midi.LEDUpdate{}
	for _, u := range fc.batches[2] {
		byKey[[2]int{u.Row, u.Col}] = u
	}
	assert.Equal(t, midi.ColorBrightWhite, byKey[[2]int{7, 0}].Color, "active cell under the playhead")
	assert.Equal(t, midi.ColorDimBlue, byKey[[2]int{6, 0}].Color)
	assert.Len(t, fc.batches[2], 8, "only column 0 changes")
}

func TestPadPresses(t *testing.T) {
	m, rec := newTestManager(t, nil)

	m.Apply(PadPressEvent{Pad: midi.PadEvent{Row: 0, Col: 1}})
	assert.Equal(t, 7, m.grid.ActiveRow(1), "bottom pad row is the last grid row")

	m.Apply(PadPressEvent{Pad: midi.PadEvent{Row: midi.ControlRow, Col: padForward}})
	assert.Equal(t, []midi.Command{DefaultCommandMap.Direction(Forward)}, rec.sent())

	m.Apply(PadPressEvent{Pad: midi.PadEvent{Row: midi.ControlRow, Col: padActive}})
	assert.False(t, m.State().Active)

	before := m.grid.Snapshot()
	m.Apply(PadPressEvent{Pad: midi.PadEvent{Row: 3, Col: midi.SceneCol}})
	assert.True(t, before.Equal(m.grid))
}
