package sequencer

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"go-jumpsync/debug"
	"go-jumpsync/midi"
)

// Sender delivers one command to the device. Implementations must not block
// for long; the dispatcher never retries.
type Sender interface {
	Send(cmd midi.Command) error
}

// SenderFunc adapts a function to Sender
type SenderFunc func(cmd midi.Command) error

func (f SenderFunc) Send(cmd midi.Command) error { return f(cmd) }

// batch is an ordered run of commands drained with a fixed spacing.
type batch struct {
	id    uuid.UUID
	cmds  []midi.Command
	next  int
	timer *time.Timer
}

// Dispatcher rate-limits command batches onto a Sender.
//
// Within a batch commands go out in order, delay apart. Batches do not
// wait for each other: a batch submitted while another is draining starts
// immediately and the two interleave.
type Dispatcher struct {
	mu       sync.Mutex
	sendMu   sync.Mutex // serializes Send across batches
	out      Sender
	delay    time.Duration
	active   bool
	inflight map[uuid.UUID]*batch
	closed   bool

	// CancelStale makes Submit drop the unsent tail of in-flight batches.
	CancelStale bool

	sent    uint64
	dropped uint64
}

// NewDispatcher creates an inactive dispatcher.
func NewDispatcher(out Sender, delay time.Duration) *Dispatcher {
	return &Dispatcher{
		out:      out,
		delay:    delay,
		inflight: make(map[uuid.UUID]*batch),
	}
}

// SetActive sets the gate flag
func (d *Dispatcher) SetActive(on bool) {
	d.mu.Lock()
	d.active = on
	d.mu.Unlock()
	debug.Log("dispatch", "active=%v", on)
}

// ToggleActive flips the gate flag and returns the new value
func (d *Dispatcher) ToggleActive() bool {
	d.mu.Lock()
	d.active = !d.active
	on := d.active
	d.mu.Unlock()
	debug.Log("dispatch", "active=%v (toggled)", on)
	return on
}

// Active returns the gate flag
func (d *Dispatcher) Active() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.active
}

// Submit accepts a batch. It returns false, sending nothing, when the batch
// is empty, the dispatcher is inactive or closed.
func (d *Dispatcher) Submit(cmds []midi.Command) (uuid.UUID, bool) {
	if len(cmds) == 0 {
		return uuid.Nil, false
	}

	d.mu.Lock()
	if !d.active || d.closed {
		d.dropped++
		d.mu.Unlock()
		debug.Log("dispatch", "dropped batch of %d (inactive)", len(cmds))
		return uuid.Nil, false
	}
	if d.CancelStale {
		d.cancelLocked()
	}
	b := &batch{
		id:   uuid.New(),
		cmds: append([]midi.Command(nil), cmds...),
	}
	d.inflight[b.id] = b
	d.mu.Unlock()

	debug.Log("dispatch", "batch %s: %d commands", b.id, len(b.cmds))
	d.drain(b)
	return b.id, true
}

// drain sends the next command of b and schedules the one after it.
func (d *Dispatcher) drain(b *batch) {
	d.mu.Lock()
	if _, ok := d.inflight[b.id]; !ok {
		d.mu.Unlock()
		return // cancelled
	}
	cmd := b.cmds[b.next]
	b.next++
	d.mu.Unlock()

	d.sendMu.Lock()
	err := d.out.Send(cmd)
	d.sendMu.Unlock()
	if err != nil {
		debug.Log("dispatch", "send %v: %v", cmd, err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent++
	if _, ok := d.inflight[b.id]; !ok {
		return
	}
	if b.next >= len(b.cmds) {
		delete(d.inflight, b.id)
		return
	}
	b.timer = time.AfterFunc(d.delay, func() { d.drain(b) })
}

// Cancel drops every command that has not been sent yet.
func (d *Dispatcher) Cancel() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cancelLocked()
}

func (d *Dispatcher) cancelLocked() int {
	n := 0
	for id, b := range d.inflight {
		if b.timer != nil {
			b.timer.Stop()
		}
		n += len(b.cmds) - b.next
		delete(d.inflight, id)
	}
	if n > 0 {
		debug.Log("dispatch", "cancelled %d pending commands", n)
	}
	return n
}

// Pending returns the number of accepted but unsent commands
func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, b := range d.inflight {
		n += len(b.cmds) - b.next
	}
	return n
}

// Stats returns sent command and dropped batch counters
func (d *Dispatcher) Stats() (sent, dropped uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sent, d.dropped
}

// Close cancels pending work and rejects further batches.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cancelLocked()
	d.closed = true
}
