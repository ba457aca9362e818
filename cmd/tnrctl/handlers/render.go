package handlers

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"

	"github.com/imamik/tnrctl/internal/instance"
)

var (
	colorGreen  = lipgloss.Color("#22c55e")
	colorRed    = lipgloss.Color("#ef4444")
	colorYellow = lipgloss.Color("#eab308")
	colorBlue   = lipgloss.Color("#3b82f6")
	colorDim    = lipgloss.Color("#6b7280")
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorBlue)
	dimStyle     = lipgloss.NewStyle().Foreground(colorDim)
	successStyle = lipgloss.NewStyle().Foreground(colorGreen)
	failureStyle = lipgloss.NewStyle().Foreground(colorRed)
	warnStyle    = lipgloss.NewStyle().Foreground(colorYellow)
)

// style renders s with st only on a terminal so piped output stays plain.
func style(st lipgloss.Style, s string) string {
	if !isTerminal() {
		return s
	}
	return st.Render(s)
}

// statusCell pads the status to width before colouring it; escape codes
// would otherwise break the column alignment.
func statusCell(st instance.Status, width int) string {
	cell := fmt.Sprintf("%-*s", width, st)
	switch st {
	case instance.StatusRunning:
		return style(successStyle, cell)
	case instance.StatusStopped:
		return style(dimStyle, cell)
	case instance.StatusError:
		return style(failureStyle, cell)
	default:
		return style(warnStyle, cell)
	}
}

func checkMark(ok bool) string {
	if ok {
		return style(successStyle, "✓")
	}
	return style(failureStyle, "✗")
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	_, err = fmt.Fprintln(os.Stdout, string(data))
	return err
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
