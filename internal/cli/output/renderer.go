// Package output renders command results as styled text, markdown, or JSON.
//
// Commands obtain a Renderer from the command context and dispatch on
// EffectiveMode. Auto mode resolves by destination: a terminal gets styled
// text, a pipe gets markdown. Styles carry no ANSI codes when the
// destination is not a terminal, so piped output stays clean.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Mode selects the output format for a command.
type Mode string

const (
	// ModeAuto resolves to text on a terminal and markdown elsewhere.
	ModeAuto Mode = "auto"
	// ModeText is styled human-readable output.
	ModeText Mode = "text"
	// ModeMarkdown is plain markdown, suitable for scripts and agents.
	ModeMarkdown Mode = "markdown"
	// ModeJSON is machine-readable JSON.
	ModeJSON Mode = "json"
)

// Renderer writes command output in the configured mode.
type Renderer struct {
	out    io.Writer
	errOut io.Writer
	mode   Mode
	isTTY  bool
	styles *Styles
}

// NewRenderer creates a renderer for the given writers. TTY detection
// runs against out, so auto mode and style degradation follow the real
// destination.
func NewRenderer(out, errOut io.Writer, mode Mode) *Renderer {
	return NewRendererWithTTY(out, errOut, isTerminal(out), mode)
}

// NewRendererWithTTY creates a renderer with an explicit TTY state.
// Tests use this to exercise both terminal and piped behavior.
func NewRendererWithTTY(out, errOut io.Writer, isTTY bool, mode Mode) *Renderer {
	switch mode {
	case ModeText, ModeMarkdown, ModeJSON:
	default:
		mode = ModeAuto
	}
	return &Renderer{
		out:    out,
		errOut: errOut,
		mode:   mode,
		isTTY:  isTTY,
		styles: newStyles(out, isTTY),
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

// EffectiveMode resolves ModeAuto to a concrete mode.
func (r *Renderer) EffectiveMode() Mode {
	if r.mode != ModeAuto {
		return r.mode
	}
	if r.isTTY {
		return ModeText
	}
	return ModeMarkdown
}

// IsTTY reports whether output goes to a terminal.
func (r *Renderer) IsTTY() bool {
	return r.isTTY
}

// Writer returns the destination for primary output.
func (r *Renderer) Writer() io.Writer {
	return r.out
}

// ErrWriter returns the destination for diagnostics.
func (r *Renderer) ErrWriter() io.Writer {
	return r.errOut
}

// Styles returns the style set matching the output destination.
func (r *Renderer) Styles() *Styles {
	return r.styles
}

// Println writes a line to the primary output.
func (r *Renderer) Println(s string) {
	fmt.Fprintln(r.out, s)
}

// Printf writes formatted text to the primary output.
func (r *Renderer) Printf(format string, args ...any) {
	fmt.Fprintf(r.out, format, args...)
}

// Header writes a section header. Markdown mode gets a "#" header,
// everything else gets the styled form.
func (r *Renderer) Header(level int, text string) {
	if r.EffectiveMode() == ModeMarkdown {
		r.Println(FormatHeader(level, text))
		return
	}
	if level <= 1 {
		r.Println(r.styles.Header1.Render(text))
	} else {
		r.Println(r.styles.Header2.Render(text))
	}
}

// Success writes a confirmation line.
func (r *Renderer) Success(msg string) {
	r.Println(r.styles.Success.Render("✓ " + msg))
}

// Warning writes a warning line to the diagnostic output.
func (r *Renderer) Warning(msg string) {
	fmt.Fprintln(r.errOut, r.styles.Warning.Render("⚠ "+msg))
}

// Error writes an error line to the diagnostic output.
func (r *Renderer) Error(msg string) {
	fmt.Fprintln(r.errOut, r.styles.Error.Render("✗ "+msg))
}

// Muted writes a de-emphasized line.
func (r *Renderer) Muted(msg string) {
	r.Println(r.styles.Muted.Render(msg))
}

// StatusLine writes a name with a status glyph and an optional detail.
func (r *Renderer) StatusLine(name, status, detail string) {
	var icon string
	switch status {
	case "success":
		icon = r.styles.StatusSuccess.String()
	case "failed":
		icon = r.styles.StatusFailed.String()
	case "skipped":
		icon = r.styles.StatusSkipped.String()
	default:
		icon = " "
	}
	line := fmt.Sprintf("  %s %s", icon, name)
	if detail != "" {
		line += " " + r.styles.Muted.Render(detail)
	}
	r.Println(line)
}

// MetricLine writes one metric entry for list-style output.
func (r *Renderer) MetricLine(index int, name, source string, dims []string) {
	line := fmt.Sprintf("  %2d. %s", index, r.styles.MetricName.Render(name))
	line += " " + r.styles.Muted.Render("from "+source)
	if len(dims) > 0 {
		line += " " + r.styles.Muted.Render("by "+strings.Join(dims, ", "))
	}
	r.Println(line)
}

// JSON writes v as indented JSON to the primary output.
func (r *Renderer) JSON(v any) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
