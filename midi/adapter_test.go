package midi

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/gomidi/midi/v2/drivers/testdrv"
)

// testdrv loops its single output back into its single input
func openLoopback(t *testing.T, cfg AdapterConfig) *Adapter {
	t.Helper()
	cfg.Driver = testdrv.New("loop")
	if cfg.Output == "" {
		cfg.Output = "loop-out"
	}
	a, err := OpenAdapter(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

func nextEvent(t *testing.T, a *Adapter) RawEvent {
	t.Helper()
	select {
	case ev := <-a.Events():
		return ev
	case <-time.After(time.Second):
		t.Fatal("no event")
		return RawEvent{}
	}
}

func TestAdapterSendLoopsBackToEvents(t *testing.T) {
	a := openLoopback(t, AdapterConfig{Input: "loop-in"})
	assert.Equal(t, "loop-out", a.OutputName())

	require.NoError(t, a.Send(ControlChange(2, 20, 64)))
	assert.Equal(t, RawEvent{Status: CC | 2, Data1: 20, Data2: 64}, nextEvent(t, a))
}

func TestAdapterSharedClockPortPassesTimingClock(t *testing.T) {
	a := openLoopback(t, AdapterConfig{Input: "loop-in", Clock: "loop-in"})
	require.Len(t, a.stops, 1)

	outs, err := a.drv.Outs()
	require.NoError(t, err)
	require.NoError(t, outs[0].Send([]byte{TimingClock}))
	require.NoError(t, outs[0].Send([]byte{Start}))

	assert.Equal(t, RawEvent{Status: TimingClock}, nextEvent(t, a))
	assert.Equal(t, RawEvent{Status: Start}, nextEvent(t, a))
}

func TestAdapterClockOnly(t *testing.T) {
	a := openLoopback(t, AdapterConfig{Clock: "loop-in"})
	require.Len(t, a.stops, 1)

	outs, err := a.drv.Outs()
	require.NoError(t, err)
	require.NoError(t, outs[0].Send([]byte{TimingClock}))
	assert.Equal(t, RawEvent{Status: TimingClock}, nextEvent(t, a))
}

func TestAdapterMissingPortListsAvailable(t *testing.T) {
	tests := []struct {
		name string
		cfg  AdapterConfig
		want string
	}{
		{"output", AdapterConfig{Output: "nope"}, "nope (available ports: loop-out)"},
		{"input", AdapterConfig{Output: "loop-out", Input: "nope"}, "nope (available ports: loop-in)"},
		{"clock", AdapterConfig{Output: "loop-out", Input: "loop-in", Clock: "nope"}, "nope (available ports: loop-in)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.cfg.Driver = testdrv.New("loop")
			_, err := OpenAdapter(tt.cfg)
			require.ErrorIs(t, err, ErrPortNotFound)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestAdapterVirtualOutputNeedsCapableDriver(t *testing.T) {
	_, err := OpenAdapter(AdapterConfig{Driver: testdrv.New("loop")})
	assert.ErrorContains(t, err, "cannot open virtual ports")
}

func TestAdapterCloseIsIdempotent(t *testing.T) {
	a := openLoopback(t, AdapterConfig{Input: "loop-in"})
	assert.NoError(t, a.Close())
	assert.NoError(t, a.Close())
}
