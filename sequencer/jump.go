package sequencer

import (
	"math"

	"github.com/pkg/errors"

	"go-jumpsync/debug"
	"go-jumpsync/midi"
)

// Direction of a jump
type Direction int

const (
	Forward Direction = iota
	Backward
)

func (d Direction) String() string {
	if d == Backward {
		return "backward"
	}
	return "forward"
}

// DefaultStepTable holds the jump sizes the device understands, largest first.
var DefaultStepTable = []float64{8, 4, 2, 1, 0.5, 0.25}

// SizeIntensity maps a jump size to the CC value that selects it on the device.
var SizeIntensity = map[float64]uint8{
	8:    127,
	4:    102,
	2:    76,
	1:    51,
	0.5:  25,
	0.25: 0,
}

// ErrUnknownSize is returned for jump sizes missing from SizeIntensity.
var ErrUnknownSize = errors.New("unknown jump size")

// CommandMap names the controllers and values used to talk to the device.
type CommandMap struct {
	Channel       uint8
	SizeCC        uint8
	DirectionCC   uint8
	StepCC        uint8
	ForwardValue  uint8
	BackwardValue uint8
}

// DefaultCommandMap is used when the config leaves the controller map empty
var DefaultCommandMap = CommandMap{
	Channel:       0,
	SizeCC:        20,
	DirectionCC:   21,
	StepCC:        22,
	ForwardValue:  127,
	BackwardValue: 1,
}

// Size builds the command that selects a jump size.
func (m CommandMap) Size(size float64) (midi.Command, error) {
	v, ok := SizeIntensity[size]
	if !ok {
		return midi.Command{}, errors.Wrapf(ErrUnknownSize, "size %g", size)
	}
	return midi.ControlChange(m.Channel, m.SizeCC, v), nil
}

// Direction builds the command that triggers a jump of the selected size.
func (m CommandMap) Direction(dir Direction) midi.Command {
	return midi.ControlChange(m.Channel, m.DirectionCC, m.dirValue(dir))
}

// Step builds one atomic single-step command.
func (m CommandMap) Step(dir Direction) midi.Command {
	return midi.ControlChange(m.Channel, m.StepCC, m.dirValue(dir))
}

func (m CommandMap) dirValue(dir Direction) uint8 {
	if dir == Backward {
		return m.BackwardValue
	}
	return m.ForwardValue
}

// Delta is a signed step correction. Valid is false when no correction is
// known, e.g. one of the sampled columns was empty.
type Delta struct {
	Steps int
	Valid bool
}

// Encoder turns a step delta into device commands.
type Encoder interface {
	Encode(steps int) []midi.Command
}

// MagnitudeEncoder emits size+direction pairs, peeling the largest table
// entry that still fits at each round.
type MagnitudeEncoder struct {
	Map      CommandMap
	Table    []float64 // descending, device units
	StepSize float64   // device units per grid step
}

// NewMagnitudeEncoder validates the table against SizeIntensity.
func NewMagnitudeEncoder(m CommandMap, table []float64, stepSize float64) (*MagnitudeEncoder, error) {
	if len(table) == 0 {
		table = DefaultStepTable
	}
	for i, v := range table {
		if _, ok := SizeIntensity[v]; !ok {
			return nil, errors.Wrapf(ErrUnknownSize, "step table entry %g", v)
		}
		if i > 0 && v >= table[i-1] {
			return nil, errors.Errorf("step table must be strictly descending at %g", v)
		}
	}
	if !(stepSize > 0) || math.IsInf(stepSize, 0) {
		return nil, errors.Errorf("invalid step size %g", stepSize)
	}
	return &MagnitudeEncoder{Map: m, Table: table, StepSize: stepSize}, nil
}

// Chunks returns the greedy decomposition of |steps| in device units and
// any remainder that no table entry could absorb.
func (e *MagnitudeEncoder) Chunks(steps int) (chunks []float64, rest float64) {
	rest = math.Abs(float64(steps)) * e.StepSize
	for _, size := range e.Table {
		for rest >= size {
			chunks = append(chunks, size)
			rest -= size
		}
	}
	return chunks, rest
}

func (e *MagnitudeEncoder) Encode(steps int) []midi.Command {
	if steps == 0 {
		return nil
	}
	dir := Forward
	if steps < 0 {
		dir = Backward
	}
	chunks, rest := e.Chunks(steps)
	if rest > 0 {
		debug.Log("jump", "delta %d leaves %g units unencoded", steps, rest)
	}
	cmds := make([]midi.Command, 0, len(chunks)*2)
	for _, size := range chunks {
		sizeCmd, err := e.Map.Size(size)
		if err != nil {
			// table was validated at construction
			continue
		}
		cmds = append(cmds, sizeCmd, e.Map.Direction(dir))
	}
	return cmds
}

// Decode reconstructs the signed step delta from size+direction pairs.
func (e *MagnitudeEncoder) Decode(cmds []midi.Command) (int, error) {
	byValue := make(map[uint8]float64, len(SizeIntensity))
	for size, v := range SizeIntensity {
		byValue[v] = size
	}

	var total, size float64
	haveSize := false
	for _, c := range cmds {
		switch c.Controller() {
		case e.Map.SizeCC:
			s, ok := byValue[c.Value()]
			if !ok {
				return 0, errors.Errorf("unknown size value %d", c.Value())
			}
			size, haveSize = s, true
		case e.Map.DirectionCC:
			if !haveSize {
				return 0, errors.New("direction without size")
			}
			if c.Value() == e.Map.BackwardValue {
				total -= size
			} else {
				total += size
			}
		default:
			return 0, errors.Errorf("unexpected controller %d", c.Controller())
		}
	}
	return int(math.Round(total / e.StepSize)), nil
}

// UnitEncoder emits one step command per grid step.
type UnitEncoder struct {
	Map CommandMap
	// Pad appends one extra step when the previous batch had more than one
	// command, to cover the device's latency on long bursts.
	Pad bool

	lastLen int
}

func (e *UnitEncoder) Encode(steps int) []midi.Command {
	if steps == 0 {
		e.lastLen = 0
		return nil
	}
	dir := Forward
	n := steps
	if steps < 0 {
		dir = Backward
		n = -steps
	}
	if e.Pad && e.lastLen > 1 {
		n++
	}
	cmds := make([]midi.Command, n)
	for i := range cmds {
		cmds[i] = e.Map.Step(dir)
	}
	e.lastLen = len(cmds)
	return cmds
}

// Compiler converts head boundaries into command batches.
type Compiler struct {
	width int
	enc   Encoder
}

// NewCompiler creates a compiler for a grid of the given width
func NewCompiler(width int, enc Encoder) *Compiler {
	return &Compiler{width: width, enc: enc}
}

// Delta computes the correction for a boundary. The -1 accounts for the
// device advancing one step on its own; crossing into column 0 adds width.
func (c *Compiler) Delta(b Boundary) Delta {
	if b.First || b.PrevRow == NoRow || b.NextRow == NoRow {
		return Delta{}
	}
	raw := b.NextRow - b.PrevRow - 1
	if b.Next == 0 {
		raw += c.width
	}
	return Delta{Steps: raw, Valid: true}
}

// Compile returns the delta and its encoded commands. Undefined deltas
// produce no commands.
func (c *Compiler) Compile(b Boundary) (Delta, []midi.Command) {
	d := c.Delta(b)
	if !d.Valid {
		debug.Log("jump", "suppressed: %d->%d rows %d->%d", b.Prev, b.Next, b.PrevRow, b.NextRow)
		return d, nil
	}
	return d, c.enc.Encode(d.Steps)
}

// PlanJumps computes the corrections for a whole pattern at once. Entry i
// moves the device from where it naturally lands to rows[i]; the extra last
// entry brings it to width, the start of the next cycle. Between adjacent
// columns this agrees with Compiler.Delta.
func PlanJumps(rows []int, width int) []int {
	jumps := make([]int, 0, len(rows)+1)
	at := 0
	for _, r := range append(append([]int(nil), rows...), width) {
		j := r - at
		jumps = append(jumps, j)
		at += j + 1
	}
	return jumps
}
