package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"

	"go-jumpsync/config"
	"go-jumpsync/debug"
	"go-jumpsync/midi"
	"go-jumpsync/oscsync"
	"go-jumpsync/sequencer"
	"go-jumpsync/theme"
	"go-jumpsync/tui"
)

func main() {
	configPath := flag.String("config", "", "config file (.json or .yaml); default ~/.config/go-jumpsync/config.json")
	debugFlag := flag.Bool("debug", false, "write debug log")
	headless := flag.Bool("headless", false, "run without the terminal UI")
	list := flag.Bool("list", false, "list MIDI ports and exit")
	palette := flag.String("palette", "", "GIMP palette file for the UI")
	flag.Parse()

	if err := run(*configPath, *debugFlag, *headless, *list, *palette); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, debugOn, headless, list bool, palettePath string) error {
	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}

	if debugOn || cfg.Debug {
		if err := debug.Enable(); err != nil {
			fmt.Fprintf(os.Stderr, "debug log: %v\n", err)
		}
		defer debug.Disable()
	}
	defer midi.CloseDriver()

	if list {
		printPorts()
		return nil
	}

	adapter, err := midi.OpenAdapter(midi.AdapterConfig{
		Input:       cfg.Ports.Input,
		Clock:       cfg.ClockPort(),
		Output:      cfg.Ports.Output,
		VirtualName: cfg.Ports.VirtualName,
	})
	if err != nil {
		return err
	}
	defer adapter.Close()

	manager, err := sequencer.NewManager(cfg, adapter)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	done := make(chan struct{})
	go func() {
		manager.Run(ctx)
		close(done)
	}()
	go manager.Feed(ctx, adapter.Events())

	if cfg.Clock.Source == config.ClockOSC {
		go func() {
			slave := oscsync.NewSlave(manager)
			if err := oscsync.Connect(ctx, slave, cfg.Clock.OSCListen, cfg.Clock.OSCMaster); err != nil {
				debug.Log("osc", "stopped: %v", err)
				fmt.Fprintf(os.Stderr, "osc clock: %v\n", err)
			}
		}()
	}

	var deviceMgr *midi.DeviceManager
	if cfg.Ports.Launchpad {
		deviceMgr = midi.NewDeviceManager()
		go deviceMgr.Run(ctx)
	}

	if headless || !isatty.IsTerminal(os.Stdout.Fd()) {
		fmt.Printf("go-jumpsync: sending to %s (ctrl+c to stop)\n", adapter.OutputName())
		if deviceMgr != nil {
			go mirrorLaunchpads(ctx, manager, deviceMgr)
		}
		<-ctx.Done()
		<-done
		return nil
	}

	th, err := loadTheme(palettePath)
	if err != nil {
		return err
	}

	m := tui.NewModel(manager, deviceMgr, th)
	m.Output = adapter.OutputName()
	m.Sizes = cfg.StepTable
	m.Quit = cancel
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())

	_, err = p.Run()
	cancel()
	<-done
	return err
}

func loadTheme(path string) (*theme.Theme, error) {
	if path == "" {
		return theme.New(theme.MustBuiltin(theme.DefaultPalette)), nil
	}
	p, err := theme.LoadGPL(path)
	if err != nil {
		return nil, err
	}
	return theme.New(p), nil
}

// mirrorLaunchpads does the device wiring the UI would otherwise do
func mirrorLaunchpads(ctx context.Context, manager *sequencer.Manager, dm *midi.DeviceManager) {
	var current string
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-dm.Events():
			if !ok {
				return
			}
			switch ev.Type {
			case midi.DeviceConnected:
				current = ev.ID
				manager.SetController(ev.Controller)
				go func(c midi.Controller) {
					for pad := range c.PadEvents() {
						manager.HandlePad(pad)
					}
				}(ev.Controller)
			case midi.DeviceDisconnected:
				if ev.ID == current {
					current = ""
					manager.SetController(nil)
				}
			}
		}
	}
}

func printPorts() {
	dm := midi.NewDeviceManager()
	fmt.Println("Inputs:")
	for i, name := range dm.ListSources() {
		fmt.Printf("  %d: %s\n", i, name)
	}
	fmt.Println("Outputs:")
	for i, name := range dm.ListSinks() {
		fmt.Printf("  %d: %s\n", i, name)
	}
}
