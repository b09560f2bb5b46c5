package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"go-jumpsync/midi"
	"go-jumpsync/sequencer"
	"go-jumpsync/theme"
	"go-jumpsync/widgets"
)

// Grid cells are two columns wide and start after the row label
const (
	gridLeft   = 4
	cellWidth  = 2
	headerRows = 3 // blank, header, blank
	markerRows = 1 // playhead marker line above the grid
)

type Model struct {
	Manager   *sequencer.Manager
	DeviceMgr *midi.DeviceManager // nil disables Launchpad mirroring
	Theme     *theme.Theme
	Output    string
	Sizes     []float64 // selectable jump sizes, keys 1..n
	Quit      func()

	quitting   bool
	cursorRow  int
	cursorCol  int
	status     string
	showHelp   bool
	controller midi.Controller // current controller (may be nil)
}

type UpdateMsg struct{}

type DeviceEventMsg midi.DeviceEvent

func NewModel(manager *sequencer.Manager, deviceMgr *midi.DeviceManager, th *theme.Theme) Model {
	return Model{
		Manager:   manager,
		DeviceMgr: deviceMgr,
		Theme:     th,
		Sizes:     sequencer.DefaultStepTable,
	}
}

func ListenForUpdates(manager *sequencer.Manager) tea.Cmd {
	return func() tea.Msg {
		<-manager.UpdateChan
		return UpdateMsg{}
	}
}

func ListenForDevices(deviceMgr *midi.DeviceManager) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-deviceMgr.Events()
		if !ok {
			return nil
		}
		return DeviceEventMsg(event)
	}
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{ListenForUpdates(m.Manager)}
	if m.DeviceMgr != nil {
		cmds = append(cmds, ListenForDevices(m.DeviceMgr))
	}
	return tea.Batch(cmds...)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg.String())

	case tea.MouseMsg:
		if msg.Action == tea.MouseActionPress && msg.Button == tea.MouseButtonLeft {
			if row, col, ok := m.hitTest(msg.X, msg.Y); ok {
				m.cursorRow, m.cursorCol = row, col
				m.Manager.ToggleCell(row, col)
			}
		}

	case UpdateMsg:
		return m, ListenForUpdates(m.Manager)

	case DeviceEventMsg:
		event := midi.DeviceEvent(msg)
		if event.Type == midi.DeviceConnected {
			m.controller = event.Controller
			m.Manager.SetController(event.Controller)

			// Listen for pad events from the controller
			go func() {
				for pad := range event.Controller.PadEvents() {
					m.Manager.HandlePad(pad)
				}
			}()
		} else if event.Type == midi.DeviceDisconnected {
			if m.controller != nil && m.controller.ID() == event.ID {
				m.controller = nil
				m.Manager.SetController(nil)
			}
		}
		return m, ListenForDevices(m.DeviceMgr)
	}

	return m, nil
}

func (m Model) handleKey(key string) (tea.Model, tea.Cmd) {
	s := m.Manager.State()
	rows, cols := s.Grid.Rows(), s.Grid.Cols()

	switch key {
	case "q", "ctrl+c":
		m.quitting = true
		if m.Quit != nil {
			m.Quit()
		}
		return m, tea.Quit

	case "h", "left":
		m.cursorCol = (m.cursorCol - 1 + cols) % cols
	case "l", "right":
		m.cursorCol = (m.cursorCol + 1) % cols
	case "k", "up":
		m.cursorRow = (m.cursorRow - 1 + rows) % rows
	case "j", "down":
		m.cursorRow = (m.cursorRow + 1) % rows

	case " ", "enter":
		m.Manager.ToggleCell(m.cursorRow, m.cursorCol)

	case "a":
		m.Manager.Post(sequencer.ActiveEvent{Toggle: true})

	case "[":
		m.Manager.ManualJump(sequencer.Backward)
		m.status = "jump backward"
	case "]":
		m.Manager.ManualJump(sequencer.Forward)
		m.status = "jump forward"

	case "c":
		n := m.Manager.Dispatcher().Cancel()
		m.status = fmt.Sprintf("cancelled %d pending command(s)", n)

	case "?":
		m.showHelp = !m.showHelp

	default:
		if len(key) == 1 && key[0] >= '1' && key[0] <= '9' {
			idx := int(key[0] - '1')
			if idx < len(m.Sizes) {
				if err := m.Manager.ManualSize(m.Sizes[idx]); err != nil {
					m.status = err.Error()
				} else {
					m.status = fmt.Sprintf("size %g", m.Sizes[idx])
				}
			}
		}
	}
	return m, nil
}

// hitTest maps a mouse position to a grid cell
func (m Model) hitTest(x, y int) (row, col int, ok bool) {
	s := m.Manager.State()
	row = y - headerRows - markerRows
	if x < gridLeft {
		return 0, 0, false
	}
	col = (x - gridLeft) / cellWidth
	if row < 0 || row >= s.Grid.Rows() || col < 0 || col >= s.Grid.Cols() {
		return 0, 0, false
	}
	return row, col, true
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	s := m.Manager.State()

	// Styles
	headerStyle := lipgloss.NewStyle().Foreground(m.Theme.Accent())
	dimStyle := lipgloss.NewStyle().Foreground(m.Theme.Muted())
	fgStyle := lipgloss.NewStyle().Foreground(m.Theme.FG())
	onStyle := lipgloss.NewStyle().Foreground(m.Theme.Success()).Bold(true)
	offStyle := lipgloss.NewStyle().Foreground(m.Theme.Warning())

	gate := offStyle.Render("IDLE")
	if s.Active {
		gate = onStyle.Render("ACTIVE")
	}

	deviceStatus := ""
	if m.controller != nil {
		deviceStatus = " LP:X"
	}

	header := headerStyle.Render(fmt.Sprintf("go-jumpsync  %s", m.Output)) + "  " + gate + headerStyle.Render(deviceStatus)

	playhead := -1
	if s.Started {
		playhead = s.Position
	}
	grid := widgets.RenderGrid(widgets.GridView{
		Rows:      s.Grid.Rows(),
		Cols:      s.Grid.Cols(),
		On:        s.Grid.On,
		Playhead:  playhead,
		CursorRow: m.cursorRow,
		CursorCol: m.cursorCol,
		Theme:     m.Theme,
	})

	delta := "-"
	if s.LastDelta.Valid {
		delta = fmt.Sprintf("%+d", s.LastDelta.Steps)
	}
	info := fgStyle.Render(fmt.Sprintf("tick %d  step %d  delta %s  %s", s.Tick, s.Position, delta, s.Encoding))
	stats := dimStyle.Render(fmt.Sprintf("batches %d  sent %d  dropped %d  pending %d", s.Batches, s.Sent, s.Dropped, s.Pending))

	var out strings.Builder
	out.WriteString("\n")
	out.WriteString(header)
	out.WriteString("\n\n")
	out.WriteString(grid)
	out.WriteString("\n\n")
	out.WriteString(info)
	out.WriteString("\n")
	out.WriteString(stats)
	if len(s.LastBatch) > 0 {
		out.WriteString("\n")
		out.WriteString(dimStyle.Render("last " + formatBatch(s.LastBatch)))
	}
	if m.status != "" {
		out.WriteString("\n")
		out.WriteString(fgStyle.Render(m.status))
	}
	out.WriteString("\n\n")

	if m.showHelp {
		out.WriteString(dimStyle.Render(m.helpText()))
	} else {
		out.WriteString(dimStyle.Render("hjkl:move  space:toggle  a:active  [ ]:jump  1-6:size  c:cancel  ?:help  q:quit"))
	}

	return out.String()
}

func (m Model) helpText() string {
	var sizes []widgets.KeyBinding
	for i, sz := range m.Sizes {
		if i >= 9 {
			break
		}
		sizes = append(sizes, widgets.KeyBinding{Key: fmt.Sprint(i + 1), Desc: fmt.Sprintf("select jump size %g", sz)})
	}
	help := widgets.RenderKeyHelp([]widgets.KeySection{
		{Title: "Grid", Keys: []widgets.KeyBinding{
			{Key: "hjkl/arrows", Desc: "move cursor"},
			{Key: "space/click", Desc: "toggle cell"},
		}},
		{Title: "Device", Keys: append([]widgets.KeyBinding{
			{Key: "a", Desc: "toggle active"},
			{Key: "[ / ]", Desc: "jump backward / forward"},
			{Key: "c", Desc: "cancel pending commands"},
		}, sizes...)},
	})
	if m.controller == nil {
		return help
	}
	legend := strings.Join([]string{
		"Launchpad",
		widgets.RenderLegendItem(midi.ColorOrange, "on", "active cell"),
		widgets.RenderLegendItem(midi.ColorDimBlue, "head", "playhead column"),
		widgets.RenderLegendItem(midi.ColorWhite, "top 1", "active gate (red when idle)"),
	}, "\n")
	return help + "\n" + legend
}

func formatBatch(cmds []midi.Command) string {
	parts := make([]string, len(cmds))
	for i, c := range cmds {
		parts[i] = fmt.Sprintf("cc%d=%d", c.Controller(), c.Value())
	}
	return strings.Join(parts, " ")
}
