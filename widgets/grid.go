package widgets

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"go-jumpsync/theme"
)

// GridView is everything RenderGrid needs to draw one frame
type GridView struct {
	Rows, Cols int
	On         func(row, col int) bool
	Playhead   int // column, or -1 before the first step
	CursorRow  int
	CursorCol  int
	Theme      *theme.Theme
}

// RenderGrid draws the grid with row 0 at the top, a marker above the
// playhead column and row numbers on the left
func RenderGrid(v GridView) string {
	sym := v.Theme.Symbols
	muted := lipgloss.NewStyle().Foreground(v.Theme.Muted())
	active := lipgloss.NewStyle().Foreground(v.Theme.Active())
	playing := lipgloss.NewStyle().Foreground(v.Theme.Success()).Bold(true)
	cursor := lipgloss.NewStyle().Foreground(v.Theme.Cursor()).Bold(true)

	var lines []string

	var head strings.Builder
	head.WriteString("    ")
	for col := 0; col < v.Cols; col++ {
		if col == v.Playhead {
			head.WriteString(playing.Render(string(sym.Playhead)))
		} else {
			head.WriteString(" ")
		}
		head.WriteString(" ")
	}
	lines = append(lines, head.String())

	for row := 0; row < v.Rows; row++ {
		var line strings.Builder
		line.WriteString(muted.Render(fmt.Sprintf("%2d  ", row)))
		for col := 0; col < v.Cols; col++ {
			on := v.On(row, col)
			here := row == v.CursorRow && col == v.CursorCol
			atHead := col == v.Playhead

			var cell string
			switch {
			case here && on && atHead:
				cell = cursor.Render(string(sym.CursorPlayhead))
			case here && on:
				cell = cursor.Render(string(sym.CursorActive))
			case here:
				cell = cursor.Render(string(sym.CursorEmpty))
			case on && atHead:
				cell = playing.Render(string(sym.CellPlayhead))
			case on:
				cell = active.Render(string(sym.CellActive))
			default:
				cell = muted.Render(string(sym.CellEmpty))
			}
			line.WriteString(cell)
			line.WriteString(" ")
		}
		lines = append(lines, line.String())
	}
	return strings.Join(lines, "\n")
}

// RenderPad renders a single colored pad
func RenderPad(color [3]uint8) string {
	style := lipgloss.NewStyle().Foreground(lipgloss.Color(theme.RGB(color).Hex()))
	return style.Render("■")
}

// RenderLegendItem renders a single legend item: "■ Name - description"
func RenderLegendItem(color [3]uint8, name, desc string) string {
	return fmt.Sprintf("  %s %s - %s", RenderPad(color), name, desc)
}

// RenderKeyHelp formats key bindings in a friendly way
func RenderKeyHelp(sections []KeySection) string {
	var lines []string
	for _, sec := range sections {
		if sec.Title != "" {
			lines = append(lines, sec.Title)
		}
		for _, k := range sec.Keys {
			lines = append(lines, fmt.Sprintf("  %-12s %s", k.Key, k.Desc))
		}
	}
	return strings.Join(lines, "\n")
}

// KeySection groups related key bindings
type KeySection struct {
	Title string
	Keys  []KeyBinding
}

// KeyBinding is a single key and its description
type KeyBinding struct {
	Key  string
	Desc string
}
