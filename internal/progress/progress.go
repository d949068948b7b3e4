// Package progress renders terminal progress feedback for long-running
// network operations (forge push/clone): a spinner shown only on an
// interactive stderr, silent otherwise, built on pterm.
package progress

import (
	"os"

	"github.com/pterm/pterm"

	"github.com/gyattvc/gyatt/internal/termcolor"
)

// Spinner wraps pterm's spinner printer, degrading to silence on a
// non-interactive stderr.
type Spinner struct {
	p        *pterm.SpinnerPrinter
	active   bool
	silenced bool
}

// Start begins a spinner with the given message. On a non-TTY stderr
// (piped output, CI, tests) it is a no-op so it never pollutes captured
// output.
func Start(message string) *Spinner {
	if !termcolor.IsTerminal(os.Stderr.Fd()) {
		return &Spinner{silenced: true}
	}
	p, _ := pterm.DefaultSpinner.WithWriter(os.Stderr).Start(message)
	return &Spinner{p: p, active: true}
}

// UpdateText changes the spinner's in-progress message.
func (s *Spinner) UpdateText(message string) {
	if s.silenced || !s.active {
		return
	}
	s.p.UpdateText(message)
}

// Success stops the spinner with a success glyph and message.
func (s *Spinner) Success(message string) {
	if s.silenced {
		return
	}
	if s.active {
		s.p.Success(message)
		s.active = false
	}
}

// Fail stops the spinner with a failure glyph and message.
func (s *Spinner) Fail(message string) {
	if s.silenced {
		return
	}
	if s.active {
		s.p.Fail(message)
		s.active = false
	}
}
