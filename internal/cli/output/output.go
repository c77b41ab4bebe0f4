// Package output renders command results in text, markdown, or JSON.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/jedib0t/go-pretty/v6/table"
)

// Mode selects the output format.
type Mode string

const (
	ModeAuto     Mode = "auto"
	ModeText     Mode = "text"
	ModeMarkdown Mode = "markdown"
	ModeJSON     Mode = "json"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true)
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	dimStyle     = lipgloss.NewStyle().Faint(true)
)

// Renderer writes formatted command output.
type Renderer struct {
	out    io.Writer
	errOut io.Writer
	mode   Mode
}

// NewRenderer creates a renderer. ModeAuto resolves to text.
func NewRenderer(out, errOut io.Writer, mode Mode) *Renderer {
	if mode == "" || mode == ModeAuto {
		mode = ModeText
	}
	return &Renderer{out: out, errOut: errOut, mode: mode}
}

// Mode returns the resolved output mode.
func (r *Renderer) Mode() Mode {
	return r.mode
}

func (r *Renderer) Println(args ...any) {
	_, _ = fmt.Fprintln(r.out, args...)
}

func (r *Renderer) Printf(format string, args ...any) {
	_, _ = fmt.Fprintf(r.out, format, args...)
}

// Error writes a styled error line to the error stream.
func (r *Renderer) Error(msg string) {
	_, _ = fmt.Fprintln(r.errOut, errorStyle.Render("Error: ")+msg)
}

// JSON writes v as indented JSON regardless of mode.
func (r *Renderer) JSON(v any) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Table renders a table, as markdown when the mode asks for it.
func (r *Renderer) Table(header []string, rows [][]string) {
	t := table.NewWriter()
	t.SetOutputMirror(r.out)

	h := make(table.Row, len(header))
	for i, c := range header {
		h[i] = c
	}
	t.AppendHeader(h)

	for _, row := range rows {
		tr := make(table.Row, len(row))
		for i, c := range row {
			tr[i] = c
		}
		t.AppendRow(tr)
	}

	if r.mode == ModeMarkdown {
		t.RenderMarkdown()
		return
	}
	t.SetStyle(table.StyleLight)
	t.Render()
}

// Header formats a section header for the current mode.
func (r *Renderer) Header(level int, text string) string {
	if r.mode == ModeMarkdown {
		return strings.Repeat("#", level) + " " + text
	}
	return headerStyle.Render(text)
}

// KeyValue formats an aligned "key: value" line.
func (r *Renderer) KeyValue(key, value string) string {
	if r.mode == ModeMarkdown {
		return fmt.Sprintf("- **%s**: %s", key, value)
	}
	return fmt.Sprintf("  %s %s", dimStyle.Render(key+":"), value)
}

// Success styles a success marker in text mode.
func (r *Renderer) Success(text string) string {
	if r.mode == ModeMarkdown {
		return text
	}
	return successStyle.Render(text)
}

// Warn styles a warning marker in text mode.
func (r *Renderer) Warn(text string) string {
	if r.mode == ModeMarkdown {
		return text
	}
	return warnStyle.Render(text)
}
