// Package output renders command results for terminals, pipes and
// machines. In auto mode a terminal gets styled text and anything else gets
// Markdown; JSON is always explicit.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// OutputMode selects how results are rendered.
type OutputMode string

// Mode is shorthand for OutputMode, used when converting config strings.
type Mode = OutputMode

// Output modes.
const (
	ModeAuto     OutputMode = "auto"
	ModeText     OutputMode = "text"
	ModeMarkdown OutputMode = "markdown"
	ModeJSON     OutputMode = "json"
)

// Valid reports whether m is a known mode. The empty mode means auto.
func (m OutputMode) Valid() bool {
	switch m {
	case "", ModeAuto, ModeText, ModeMarkdown, ModeJSON:
		return true
	}
	return false
}

// Renderer writes command output in one mode.
type Renderer struct {
	out    io.Writer
	errOut io.Writer
	isTTY  bool
	mode   OutputMode
	styles *Styles
}

// NewRenderer creates a renderer, detecting whether out is a terminal.
func NewRenderer(out, errOut io.Writer, mode OutputMode) *Renderer {
	return NewRendererWithTTY(out, errOut, isTerminal(out), mode)
}

// NewRendererWithTTY creates a renderer with an explicit TTY state.
func NewRendererWithTTY(out, errOut io.Writer, isTTY bool, mode OutputMode) *Renderer {
	if mode == "" {
		mode = ModeAuto
	}
	r := &Renderer{out: out, errOut: errOut, isTTY: isTTY, mode: mode}

	lr := lipgloss.NewRenderer(out)
	if r.EffectiveMode() != ModeText || !isTTY {
		lr.SetColorProfile(termenv.Ascii)
	} else {
		lr.SetColorProfile(termenv.NewOutput(out).EnvColorProfile())
	}
	r.styles = NewStyles(lr)
	return r
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// IsTTY reports whether output goes to a terminal.
func (r *Renderer) IsTTY() bool { return r.isTTY }

// Mode returns the configured mode.
func (r *Renderer) Mode() OutputMode { return r.mode }

// EffectiveMode resolves auto: text on a terminal, Markdown otherwise.
func (r *Renderer) EffectiveMode() OutputMode {
	if r.mode != ModeAuto {
		return r.mode
	}
	if r.isTTY {
		return ModeText
	}
	return ModeMarkdown
}

// Styles returns the styles for the current output.
func (r *Renderer) Styles() *Styles { return r.styles }

// Writer returns the standard output writer.
func (r *Renderer) Writer() io.Writer { return r.out }

// ErrWriter returns the error output writer.
func (r *Renderer) ErrWriter() io.Writer { return r.errOut }

// Println writes a line to standard output.
func (r *Renderer) Println(a ...any) {
	_, _ = fmt.Fprintln(r.out, a...)
}

// Printf writes formatted output to standard output.
func (r *Renderer) Printf(format string, a ...any) {
	_, _ = fmt.Fprintf(r.out, format, a...)
}

// Header writes a header: Markdown "#" headers outside text mode.
func (r *Renderer) Header(level int, text string) {
	if r.EffectiveMode() == ModeText {
		r.Println(r.styles.Header.Render(text))
		return
	}
	r.Println(FormatHeader(level, text))
	r.Println()
}

// Success writes a success message.
func (r *Renderer) Success(msg string) {
	r.Println(r.styles.Success.Render("✓ " + msg))
}

// Warning writes a warning to error output.
func (r *Renderer) Warning(msg string) {
	_, _ = fmt.Fprintln(r.errOut, r.styles.Warning.Render("! "+msg))
}

// Error writes an error to error output.
func (r *Renderer) Error(msg string) {
	_, _ = fmt.Fprintln(r.errOut, r.styles.Error.Render("✗ "+msg))
}

// Muted writes de-emphasised text.
func (r *Renderer) Muted(msg string) {
	r.Println(r.styles.Muted.Render(msg))
}

// StatusLine writes "<icon> name detail" for a status of success, failed,
// skipped or anything else.
func (r *Renderer) StatusLine(name, status, detail string) {
	var icon string
	switch status {
	case "success":
		icon = r.styles.StatusSuccess.Render("✓")
	case "failed":
		icon = r.styles.StatusFailed.Render("✗")
	case "skipped":
		icon = r.styles.Muted.Render("-")
	default:
		icon = r.styles.Info.Render("•")
	}
	line := icon + " " + name
	if detail != "" {
		line += " " + r.styles.Muted.Render(detail)
	}
	r.Println(line)
}

// JSON writes v as indented JSON.
func (r *Renderer) JSON(v any) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
