// Package output renders command results as tables, JSON, CSV or markdown.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/mattn/go-isatty"
)

// Mode selects how results are rendered.
type Mode string

const (
	ModeTable    Mode = "table"
	ModeJSON     Mode = "json"
	ModeCSV      Mode = "csv"
	ModeMarkdown Mode = "markdown"
)

// Renderer writes results to out and diagnostics to errOut.
type Renderer struct {
	out    io.Writer
	errOut io.Writer
	mode   Mode
	isTTY  bool
	styles *Styles
}

// NewRenderer creates a renderer, styling output only when out is a terminal.
func NewRenderer(out, errOut io.Writer, mode Mode) *Renderer {
	tty := false
	if f, ok := out.(*os.File); ok {
		tty = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return NewRendererWithTTY(out, errOut, tty, mode)
}

// NewRendererWithTTY creates a renderer with explicit terminal detection.
func NewRendererWithTTY(out, errOut io.Writer, isTTY bool, mode Mode) *Renderer {
	if mode == "" {
		mode = ModeTable
	}
	styles := plainStyles()
	if isTTY && mode == ModeTable {
		styles = newStyles(lipgloss.NewRenderer(out))
	}
	return &Renderer{out: out, errOut: errOut, mode: mode, isTTY: isTTY, styles: styles}
}

// Mode returns the render mode.
func (r *Renderer) Mode() Mode { return r.mode }

// IsTTY reports whether output goes to a terminal.
func (r *Renderer) IsTTY() bool { return r.isTTY }

// Styles returns the styles in use.
func (r *Renderer) Styles() *Styles { return r.styles }

// Writer returns the result writer.
func (r *Renderer) Writer() io.Writer { return r.out }

// Println writes a line to the result writer.
func (r *Renderer) Println(a ...any) {
	_, _ = fmt.Fprintln(r.out, a...)
}

// Printf writes formatted text to the result writer.
func (r *Renderer) Printf(format string, a ...any) {
	_, _ = fmt.Fprintf(r.out, format, a...)
}

// Errorf writes a diagnostic line to the error writer.
func (r *Renderer) Errorf(format string, a ...any) {
	_, _ = fmt.Fprintln(r.errOut, r.styles.Error.Render(fmt.Sprintf(format, a...)))
}

// Progressf writes a progress line to the error writer so it never mixes
// with machine-readable results.
func (r *Renderer) Progressf(format string, a ...any) {
	_, _ = fmt.Fprintf(r.errOut, format, a...)
}

// Header renders a section title.
func (r *Renderer) Header(title string) {
	if r.mode == ModeMarkdown {
		r.Printf("## %s\n\n", title)
		return
	}
	r.Println(r.styles.Header.Render(title))
}

// Success styles s as a success marker.
func (r *Renderer) Success(s string) string { return r.styles.Success.Render(s) }

// Fail styles s as a failure marker.
func (r *Renderer) Fail(s string) string { return r.styles.Error.Render(s) }

// Warn styles s as a warning.
func (r *Renderer) Warn(s string) string { return r.styles.Warning.Render(s) }

// Muted styles s as secondary text.
func (r *Renderer) Muted(s string) string { return r.styles.Muted.Render(s) }

// JSON writes v as indented JSON.
func (r *Renderer) JSON(v any) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Table renders rows under headers in the renderer's mode. In JSON mode
// each row becomes an object keyed by header.
func (r *Renderer) Table(headers []string, rows [][]string) error {
	if r.mode == ModeJSON {
		objects := make([]map[string]string, len(rows))
		for i, row := range rows {
			obj := make(map[string]string, len(headers))
			for c, h := range headers {
				if c < len(row) {
					obj[h] = row[c]
				}
			}
			objects[i] = obj
		}
		return r.JSON(objects)
	}

	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	t.SetStyle(table.StyleLight)

	header := make(table.Row, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	t.AppendHeader(header)
	for _, row := range rows {
		tr := make(table.Row, len(row))
		for i, v := range row {
			tr[i] = v
		}
		t.AppendRow(tr)
	}

	switch r.mode {
	case ModeCSV:
		t.RenderCSV()
	case ModeMarkdown:
		t.RenderMarkdown()
		r.Println()
	default:
		t.Render()
	}
	return nil
}

// KeyValues renders ordered label/value pairs.
func (r *Renderer) KeyValues(pairs [][2]string) error {
	if r.mode == ModeJSON {
		obj := make(map[string]string, len(pairs))
		for _, p := range pairs {
			obj[p[0]] = p[1]
		}
		return r.JSON(obj)
	}
	if r.mode == ModeTable {
		width := 0
		for _, p := range pairs {
			width = max(width, len(p[0]))
		}
		for _, p := range pairs {
			r.Printf("%s  %s\n", r.Muted(p[0]+":"+strings.Repeat(" ", width-len(p[0]))), p[1])
		}
		return nil
	}
	rows := make([][]string, len(pairs))
	for i, p := range pairs {
		rows[i] = []string{p[0], p[1]}
	}
	return r.Table([]string{"field", "value"}, rows)
}
