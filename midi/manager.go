package midi

import (
	"context"
	"strings"
	"sync"
	"time"

	"go-jumpsync/debug"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // Register MIDI driver
)

// DeviceEvent is emitted when Launchpads connect/disconnect
type DeviceEvent struct {
	Type       DeviceEventType
	Controller Controller
	ID         string
}

type DeviceEventType int

const (
	DeviceConnected DeviceEventType = iota
	DeviceDisconnected
)

// portScanTimeout bounds a single port enumeration; CoreMIDI can hang.
const portScanTimeout = 3 * time.Second

// DeviceManager enumerates ports and handles Launchpad hot-plug
type DeviceManager struct {
	controllers map[string]Controller
	mu          sync.RWMutex
	events      chan DeviceEvent
	pollRate    time.Duration
}

// NewDeviceManager creates a new device manager
func NewDeviceManager() *DeviceManager {
	return &DeviceManager{
		controllers: make(map[string]Controller),
		events:      make(chan DeviceEvent, 16),
		pollRate:    time.Second,
	}
}

// Events returns a channel of device connect/disconnect events
func (dm *DeviceManager) Events() <-chan DeviceEvent {
	return dm.events
}

// ListSources returns the names of the input ports, in driver order
func (dm *DeviceManager) ListSources() []string {
	ins, _, ok := scanPorts()
	if !ok {
		return nil
	}
	return inNames(ins)
}

// ListSinks returns the names of the output ports, in driver order
func (dm *DeviceManager) ListSinks() []string {
	_, outs, ok := scanPorts()
	if !ok {
		return nil
	}
	return outNames(outs)
}

// Run polls for Launchpads until ctx is cancelled (blocking - run in goroutine)
func (dm *DeviceManager) Run(ctx context.Context) {
	ticker := time.NewTicker(dm.pollRate)
	defer ticker.Stop()

	dm.scan()

	for {
		select {
		case <-ctx.Done():
			dm.closeAll()
			close(dm.events)
			return
		case <-ticker.C:
			dm.scan()
		}
	}
}

func (dm *DeviceManager) scan() {
	inPorts, outPorts, ok := scanPorts()
	if !ok {
		debug.Log("midi", "port scan timed out")
		return
	}

	seenIDs := make(map[string]bool)

	for _, inPort := range inPorts {
		name := inPort.String()
		if !isLaunchpad(name) {
			continue
		}
		seenIDs[name] = true

		dm.mu.RLock()
		_, exists := dm.controllers[name]
		dm.mu.RUnlock()
		if exists {
			continue
		}

		var outPort drivers.Out
		for _, op := range outPorts {
			if strings.EqualFold(op.String(), name) {
				outPort = op
				break
			}
		}

		lp, err := NewLaunchpadController(name, inPort, outPort)
		if err != nil {
			debug.Log("midi", "launchpad %s: %v", name, err)
			continue
		}

		dm.mu.Lock()
		dm.controllers[name] = lp
		dm.mu.Unlock()

		debug.Log("midi", "launchpad connected: %s", name)
		dm.events <- DeviceEvent{Type: DeviceConnected, Controller: lp, ID: name}
	}

	dm.mu.Lock()
	defer dm.mu.Unlock()
	for id, c := range dm.controllers {
		if seenIDs[id] {
			continue
		}
		c.Close()
		delete(dm.controllers, id)
		debug.Log("midi", "launchpad disconnected: %s", id)
		dm.events <- DeviceEvent{Type: DeviceDisconnected, ID: id}
	}
}

func (dm *DeviceManager) closeAll() {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	for _, c := range dm.controllers {
		c.Close()
	}
	dm.controllers = make(map[string]Controller)
}

// scanPorts enumerates ports with a timeout
func scanPorts() ([]drivers.In, []drivers.Out, bool) {
	type portsResult struct {
		ins  []drivers.In
		outs []drivers.Out
	}

	ch := make(chan portsResult, 1)
	go func() {
		ch <- portsResult{ins: gomidi.GetInPorts(), outs: gomidi.GetOutPorts()}
	}()

	select {
	case r := <-ch:
		return r.ins, r.outs, true
	case <-time.After(portScanTimeout):
		return nil, nil, false
	}
}

func inNames(ports []drivers.In) []string {
	names := make([]string, 0, len(ports))
	for _, p := range ports {
		names = append(names, p.String())
	}
	return names
}

func outNames(ports []drivers.Out) []string {
	names := make([]string, 0, len(ports))
	for _, p := range ports {
		names = append(names, p.String())
	}
	return names
}
