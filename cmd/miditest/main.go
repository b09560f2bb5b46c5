package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"time"

	"gitlab.com/gomidi/midi/v2"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"go-jumpsync/config"
	jsmidi "go-jumpsync/midi"
	"go-jumpsync/sequencer"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}
	defer midi.CloseDriver()

	var err error
	switch os.Args[1] {
	case "list":
		listPorts()
	case "monitor":
		err = monitor(arg(2))
	case "jump":
		err = jump(arg(2), arg(3))
	case "clock":
		err = clock(arg(2), arg(3))
	case "plan":
		err = plan(os.Args[2:])
	default:
		usage()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func arg(i int) string {
	if len(os.Args) > i {
		return os.Args[i]
	}
	return ""
}

func usage() {
	fmt.Println("MIDI Test Scripts")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  list                 - List all MIDI ports")
	fmt.Println("  monitor <in>         - Print incoming messages (clock included)")
	fmt.Println("  jump <out> <steps>   - Send the command batch for a signed step delta")
	fmt.Println("  clock <out> [bpm]    - Send Start then 24ppq timing clock")
	fmt.Println("  plan <row>...        - Print the jumps that play a pattern of rows")
}

func listPorts() {
	dm := jsmidi.NewDeviceManager()

	fmt.Println("=== MIDI Input Ports ===")
	fmt.Println("(waiting up to 3 seconds...)")
	ins := dm.ListSources()
	if ins == nil {
		fmt.Println("\nTIMEOUT! CoreMIDI is hung.")
		fmt.Println("Fix: sudo killall coreaudiod midiserver")
		return
	}
	for i, name := range ins {
		fmt.Printf("  %d: %s\n", i, name)
	}
	fmt.Println("\n=== MIDI Output Ports ===")
	for i, name := range dm.ListSinks() {
		fmt.Printf("  %d: %s\n", i, name)
	}
}

func monitor(port string) error {
	if port == "" {
		usage()
		return nil
	}
	a, err := jsmidi.OpenAdapter(jsmidi.AdapterConfig{Input: port})
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	fmt.Printf("Monitoring %s (ctrl+c to stop)\n", port)
	clocks := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-a.Events():
			if ev.Kind() == jsmidi.TimingClock {
				clocks++
				if clocks%24 == 0 {
					fmt.Printf("  clock x%d\n", clocks)
				}
				continue
			}
			fmt.Printf("  %02X %3d %3d  ch=%d\n", ev.Status, ev.Data1, ev.Data2, ev.Channel())
		}
	}
}

func jump(port, steps string) error {
	if port == "" || steps == "" {
		usage()
		return nil
	}
	n, err := strconv.Atoi(steps)
	if err != nil {
		return err
	}

	cfg := config.DefaultConfig()
	enc, err := sequencer.NewMagnitudeEncoder(sequencer.DefaultCommandMap, cfg.StepTable, cfg.StepSize)
	if err != nil {
		return err
	}
	cmds := enc.Encode(n)

	out, err := midi.FindOutPort(port)
	if err != nil {
		return err
	}
	send, err := midi.SendTo(out)
	if err != nil {
		return err
	}

	fmt.Printf("Jump %+d -> %d commands\n", n, len(cmds))
	for _, c := range cmds {
		fmt.Printf("  cc%d=%d\n", c.Controller(), c.Value())
		if err := send(midi.Message(c.Bytes())); err != nil {
			return err
		}
		time.Sleep(cfg.CommandDelay())
	}
	return nil
}

func clock(port, bpm string) error {
	if port == "" {
		usage()
		return nil
	}
	tempo := 120.0
	if bpm != "" {
		t, err := strconv.ParseFloat(bpm, 64)
		if err != nil {
			return err
		}
		tempo = t
	}

	out, err := midi.FindOutPort(port)
	if err != nil {
		return err
	}
	send, err := midi.SendTo(out)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	fmt.Printf("Clock %.1f bpm on %s (ctrl+c to stop)\n", tempo, port)
	if err := send(midi.Start()); err != nil {
		return err
	}
	defer send(midi.Stop())

	ticker := time.NewTicker(time.Duration(float64(time.Minute) / (tempo * 24)))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := send(midi.TimingClock()); err != nil {
				return err
			}
		}
	}
}

func plan(args []string) error {
	if len(args) == 0 {
		usage()
		return nil
	}
	rows := make([]int, len(args))
	for i, a := range args {
		r, err := strconv.Atoi(a)
		if err != nil {
			return err
		}
		rows[i] = r
	}

	cfg := config.DefaultConfig()
	enc, err := sequencer.NewMagnitudeEncoder(sequencer.DefaultCommandMap, cfg.StepTable, cfg.StepSize)
	if err != nil {
		return err
	}
	for i, j := range sequencer.PlanJumps(rows, len(rows)) {
		label := "wrap"
		if i < len(rows) {
			label = fmt.Sprintf("col %d", i)
		}
		fmt.Printf("  %-7s %+3d  %d commands\n", label, j, len(enc.Encode(j)))
	}
	return nil
}
