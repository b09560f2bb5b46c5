package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Encoding selects how a step delta becomes device commands
type Encoding string

const (
	EncodingMagnitude Encoding = "magnitude" // size + direction pairs
	EncodingUnit      Encoding = "unit"      // one command per step
)

// ClockSource selects where timing pulses come from
type ClockSource string

const (
	ClockMIDI ClockSource = "midi"
	ClockOSC  ClockSource = "osc"
)

// ErrInvalid wraps every validation failure
var ErrInvalid = errors.New("invalid config")

// GridConfig sizes the step grid
type GridConfig struct {
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

// CommandConfig maps jump commands onto MIDI control changes
type CommandConfig struct {
	Channel       uint8 `json:"channel" yaml:"channel"` // 0-15
	SizeCC        uint8 `json:"sizeCC" yaml:"sizeCC"`
	DirectionCC   uint8 `json:"directionCC" yaml:"directionCC"`
	StepCC        uint8 `json:"stepCC" yaml:"stepCC"`
	ForwardValue  uint8 `json:"forwardValue" yaml:"forwardValue"`
	BackwardValue uint8 `json:"backwardValue" yaml:"backwardValue"`
}

// PortConfig names the MIDI endpoints. An empty Output opens a virtual
// output port called VirtualName.
type PortConfig struct {
	Input       string `json:"input,omitempty" yaml:"input,omitempty"`
	Clock       string `json:"clock,omitempty" yaml:"clock,omitempty"` // defaults to Input
	Output      string `json:"output,omitempty" yaml:"output,omitempty"`
	VirtualName string `json:"virtualName,omitempty" yaml:"virtualName,omitempty"`
	Launchpad   bool   `json:"launchpad" yaml:"launchpad"` // mirror grid on a detected Launchpad
}

// ClockConfig selects the pulse source
type ClockConfig struct {
	Source    ClockSource `json:"source" yaml:"source"`
	OSCListen string      `json:"oscListen,omitempty" yaml:"oscListen,omitempty"` // host:port
	OSCMaster string      `json:"oscMaster,omitempty" yaml:"oscMaster,omitempty"` // host:port, optional
}

// Config is the main configuration structure
type Config struct {
	Grid           GridConfig    `json:"grid" yaml:"grid"`
	TicksPerStep   int           `json:"ticksPerStep" yaml:"ticksPerStep"`
	StepTable      []float64     `json:"stepTable" yaml:"stepTable"`
	StepSize       float64       `json:"stepSize" yaml:"stepSize"`
	CommandDelayMs int           `json:"commandDelayMs" yaml:"commandDelayMs"`
	Encoding       Encoding      `json:"encoding" yaml:"encoding"`
	UnitPad        bool          `json:"unitPad,omitempty" yaml:"unitPad,omitempty"`
	CancelStale    bool          `json:"cancelStale,omitempty" yaml:"cancelStale,omitempty"`
	StartActive    bool          `json:"startActive,omitempty" yaml:"startActive,omitempty"`
	ActivationCC   uint8         `json:"activationCC" yaml:"activationCC"`
	NoteBase       uint8         `json:"noteBase" yaml:"noteBase"` // note of column 0
	Commands       CommandConfig `json:"commands" yaml:"commands"`
	Ports          PortConfig    `json:"ports" yaml:"ports"`
	Clock          ClockConfig   `json:"clock" yaml:"clock"`
	Debug          bool          `json:"debug,omitempty" yaml:"debug,omitempty"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Grid:           GridConfig{Width: 8, Height: 8},
		TicksPerStep:   24,
		StepTable:      []float64{8, 4, 2, 1, 0.5, 0.25},
		StepSize:       1,
		CommandDelayMs: 10,
		Encoding:       EncodingMagnitude,
		ActivationCC:   64,
		NoteBase:       41,
		Commands: CommandConfig{
			Channel:       0,
			SizeCC:        20,
			DirectionCC:   21,
			StepCC:        22,
			ForwardValue:  127,
			BackwardValue: 1,
		},
		Ports: PortConfig{
			VirtualName: "VirtualPad",
			Launchpad:   true,
		},
		Clock: ClockConfig{
			Source:    ClockMIDI,
			OSCListen: "127.0.0.1:5777",
		},
	}
}

// ConfigDir returns the config directory path
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "go-jumpsync"), nil
}

// ConfigPath returns the full path to config.json
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads the config from the default path, or returns defaults if not found
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return DefaultConfig(), nil
	}
	return LoadFile(path)
}

// LoadFile reads a JSON or YAML config. Fields missing from the file keep
// their default values.
func LoadFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, errors.Wrapf(err, "read config %s", path)
	}

	if isYAML(path) {
		err = yaml.Unmarshal(data, cfg)
	} else {
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "parse config %s", path)
	}
	return cfg, nil
}

// Save writes the config to the default path
func (c *Config) Save() error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return c.SaveFile(path)
}

// SaveFile writes the config, as YAML when the extension asks for it
func (c *Config) SaveFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrap(err, "create config dir")
	}

	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return errors.Wrap(err, "encode config")
	}
	return os.WriteFile(path, data, 0644)
}

// CommandDelay returns the minimum spacing between dispatched commands
func (c *Config) CommandDelay() time.Duration {
	return time.Duration(c.CommandDelayMs) * time.Millisecond
}

// ClockPort returns the port clock pulses are read from
func (c *Config) ClockPort() string {
	if c.Ports.Clock != "" {
		return c.Ports.Clock
	}
	return c.Ports.Input
}

// Validate checks the values the engine depends on. A zero width would make
// position modulo undefined, so it is rejected here rather than at runtime.
func (c *Config) Validate() error {
	switch {
	case c.Grid.Width <= 0:
		return errors.Wrapf(ErrInvalid, "grid width must be positive, got %d", c.Grid.Width)
	case c.Grid.Height <= 0:
		return errors.Wrapf(ErrInvalid, "grid height must be positive, got %d", c.Grid.Height)
	case c.TicksPerStep <= 0:
		return errors.Wrapf(ErrInvalid, "ticksPerStep must be positive, got %d", c.TicksPerStep)
	case c.CommandDelayMs < 0:
		return errors.Wrapf(ErrInvalid, "commandDelayMs must not be negative, got %d", c.CommandDelayMs)
	case !(c.StepSize > 0):
		return errors.Wrapf(ErrInvalid, "stepSize must be positive, got %g", c.StepSize)
	case c.Commands.Channel > 15:
		return errors.Wrapf(ErrInvalid, "commands.channel must be 0-15, got %d", c.Commands.Channel)
	case c.Commands.ForwardValue == c.Commands.BackwardValue:
		return errors.Wrap(ErrInvalid, "forward and backward values must differ")
	case c.Commands.SizeCC == c.Commands.DirectionCC:
		return errors.Wrap(ErrInvalid, "commands.sizeCC and commands.directionCC must differ")
	}

	// data bytes are 7 bit
	for _, f := range []struct {
		name string
		v    uint8
	}{
		{"commands.sizeCC", c.Commands.SizeCC},
		{"commands.directionCC", c.Commands.DirectionCC},
		{"commands.stepCC", c.Commands.StepCC},
		{"commands.forwardValue", c.Commands.ForwardValue},
		{"commands.backwardValue", c.Commands.BackwardValue},
		{"activationCC", c.ActivationCC},
		{"noteBase", c.NoteBase},
	} {
		if f.v > 127 {
			return errors.Wrapf(ErrInvalid, "%s must be 0-127, got %d", f.name, f.v)
		}
	}

	switch c.Encoding {
	case EncodingMagnitude, EncodingUnit:
	default:
		return errors.Wrapf(ErrInvalid, "unknown encoding %q", c.Encoding)
	}

	switch c.Clock.Source {
	case ClockMIDI:
	case ClockOSC:
		if c.Clock.OSCListen == "" {
			return errors.Wrap(ErrInvalid, "clock.oscListen required for osc clock")
		}
	default:
		return errors.Wrapf(ErrInvalid, "unknown clock source %q", c.Clock.Source)
	}

	for i := 1; i < len(c.StepTable); i++ {
		if c.StepTable[i] >= c.StepTable[i-1] {
			return errors.Wrapf(ErrInvalid, "stepTable must be strictly descending at index %d", i)
		}
	}
	return nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}
