// Package display prints test progress and the final summary.
package display

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"

	"github.com/715d/golit/pkg/lit"
)

const banner = "********************"

// Options controls what is printed.
type Options struct {
	// Quiet suppresses the header, passing tests and the timing line.
	Quiet bool

	// Succinct prints only failures as they happen.
	Succinct bool

	// Verbose prints the output of failing tests.
	Verbose bool

	// ShowAll prints the output of every test.
	ShowAll bool

	// TimeTests adds the slowest tests to the summary.
	TimeTests bool

	// Color styles result codes.
	Color bool

	// ProgressWidth enables a single line progress bar of that many columns.
	ProgressWidth int
}

// Display reports results as they arrive. It is not safe for concurrent use;
// the runner serialises calls to Update.
type Display struct {
	w    io.Writer
	opts Options

	selected   int
	discovered int
	workers    int
	completed  int

	renderer *lipgloss.Renderer
	bar      *progressBar
}

// New creates a display for a run of selected tests out of discovered ones.
func New(w io.Writer, opts Options, selected, discovered, workers int) *Display {
	d := &Display{
		w:          w,
		opts:       opts,
		selected:   selected,
		discovered: discovered,
		workers:    workers,
	}
	if opts.Color {
		d.renderer = lipgloss.NewRenderer(w)
		d.renderer.SetColorProfile(termenv.ANSI)
	}
	if opts.ProgressWidth > 0 && opts.Succinct && !opts.Quiet {
		d.bar = &progressBar{w: w, width: opts.ProgressWidth, style: d.style(lit.Fail)}
	}
	return d
}

// Header prints the "-- Testing: ..." line.
func (d *Display) Header() {
	if d.opts.Quiet {
		return
	}
	ofTotal := ""
	if d.selected != d.discovered {
		ofTotal = fmt.Sprintf(" of %d", d.discovered)
	}
	fmt.Fprintf(d.w, "-- Testing: %d%s tests, %d workers --\n", d.selected, ofTotal, d.workers)
}

// Update reports a finished test. Failures are always shown.
func (d *Display) Update(t *lit.Test) {
	d.completed++

	failed := t.Result.Code.IsFailure()
	if failed || d.opts.ShowAll || (!d.opts.Quiet && !d.opts.Succinct) {
		if d.bar != nil {
			d.bar.clear()
		}
		d.printResult(t)
	}
	if d.bar != nil {
		if failed {
			d.bar.failed = true
		}
		d.bar.update(d.completed, d.selected, t.FullName())
	}
}

func (d *Display) printResult(t *lit.Test) {
	res := t.Result
	fmt.Fprintf(d.w, "%s: %s (%d of %d)\n", d.code(res.Code), t.FullName(), d.completed, d.selected)

	failed := res.Code.IsFailure()
	if !(failed && d.opts.Verbose) && !d.opts.ShowAll {
		return
	}
	if failed {
		fmt.Fprintf(d.w, "%s TEST '%s' FAILED %s\n", banner, t.FullName(), banner)
	} else {
		fmt.Fprintf(d.w, "%s TEST '%s' RESULTS %s\n", banner, t.FullName(), banner)
	}
	fmt.Fprintln(d.w, strings.TrimSuffix(res.Output, "\n"))
	fmt.Fprintln(d.w, banner)
}

// Finish removes the progress bar, if any.
func (d *Display) Finish() {
	if d.bar != nil {
		d.bar.clear()
	}
}

func (d *Display) code(c lit.ResultCode) string {
	if d.renderer == nil {
		return c.String()
	}
	return d.style(c).Render(c.String())
}

func (d *Display) style(c lit.ResultCode) lipgloss.Style {
	if d.renderer == nil {
		return lipgloss.NewStyle()
	}
	s := d.renderer.NewStyle().Bold(true)
	switch {
	case c.IsFailure():
		return s.Foreground(lipgloss.Color("1"))
	case c == lit.Pass || c == lit.XFail:
		return s.Foreground(lipgloss.Color("2"))
	case c == lit.FlakyPass:
		return s.Foreground(lipgloss.Color("3"))
	}
	return s
}

// TerminalWidth returns the width of w when it is a terminal.
func TerminalWidth(w io.Writer) (int, bool) {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return 0, false
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil || width <= 0 {
		return 80, true
	}
	return width, true
}
