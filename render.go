package shellmind

import (
	"fmt"
	"io"
	"sort"

	"github.com/fatih/color"
)

// Renderer renders connection activity to the operator terminal. It is
// the out-of-core bootstrap/glue collaborator mentioned in §2; C5
// depends only on this interface, never on a color library directly
// (§10.3).
type Renderer interface {
	// RenderPrompt renders the shell prompt a command ran against; the
	// server calls it once the command's result is back, just before
	// RenderResult (§4.5.3).
	RenderPrompt(prompt string)
	// RenderResult renders one Result, including any comment carried on
	// its Command.
	RenderResult(result Result, comment string)
	// SetSuspended toggles rendering off during the intro phase (§4.5.2).
	SetSuspended(suspended bool)
}

// noopRenderer discards everything; used when streaming output is
// turned off and in tests that don't assert on terminal output.
type noopRenderer struct{}

// NewNoopRenderer returns a Renderer that renders nothing.
func NewNoopRenderer() Renderer { return noopRenderer{} }

func (noopRenderer) RenderPrompt(string)            {}
func (noopRenderer) RenderResult(Result, string)    {}
func (noopRenderer) SetSuspended(bool)              {}

// colorRenderer is the operator-facing terminal renderer, adapted from
// client/common.py's colored() + log_output() and server/terminal.py's
// Terminal.render(), using fatih/color instead of termcolor/coloredlogs
// (§10.3, §11).
type colorRenderer struct {
	out        io.Writer
	suspended  bool
	promptC    *color.Color
	stdoutC    *color.Color
	stderrC    *color.Color
	commentC   *color.Color
}

// NewColorRenderer returns a Renderer that writes colorized activity to
// out.
func NewColorRenderer(out io.Writer) Renderer {
	return &colorRenderer{
		out:      out,
		promptC:  color.New(color.FgWhite),
		stdoutC:  color.New(color.FgHiBlack),
		stderrC:  color.New(color.FgRed),
		commentC: color.New(color.FgCyan),
	}
}

func (r *colorRenderer) SetSuspended(suspended bool) { r.suspended = suspended }

func (r *colorRenderer) RenderPrompt(prompt string) {
	if r.suspended || prompt == "" {
		return
	}
	fmt.Fprintln(r.out, r.promptC.Sprint(prompt))
}

func (r *colorRenderer) RenderResult(result Result, comment string) {
	if r.suspended {
		return
	}
	if comment != "" {
		fmt.Fprintln(r.out, r.commentC.Sprint(comment))
	}

	shellResult, ok := result.(ShellResult)
	if !ok {
		r.renderFileResult(result)
		return
	}

	type line struct {
		t     float64
		text  string
		color *color.Color
	}
	lines := make([]line, 0, len(shellResult.Stdout)+len(shellResult.Stderr))
	for _, l := range shellResult.Stdout {
		lines = append(lines, line{l.Time, l.Text, r.stdoutC})
	}
	for _, l := range shellResult.Stderr {
		lines = append(lines, line{l.Time, l.Text, r.stderrC})
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].t < lines[j].t })
	for _, l := range lines {
		fmt.Fprintln(r.out, l.color.Sprint(l.text))
	}
	if shellResult.ExitCode != 0 {
		fmt.Fprintln(r.out, r.stderrC.Sprintf("exited with code %d", shellResult.ExitCode))
	}
}

func (r *colorRenderer) renderFileResult(result Result) {
	switch v := result.(type) {
	case FileReadResult:
		if v.Error != nil {
			fmt.Fprintln(r.out, r.stderrC.Sprint(*v.Error))
		}
	case FileWriteResult:
		if v.Error != nil {
			fmt.Fprintln(r.out, r.stderrC.Sprint(*v.Error))
		}
	}
}
