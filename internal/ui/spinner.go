// Package ui provides terminal helpers for the mobchat CLI.
package ui

import (
	"io"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
)

// Spinner wraps a terminal spinner shown while waiting for a reply.
type Spinner struct {
	s *spinner.Spinner
	w io.Writer
}

// NewSpinner creates a spinner writing to stderr with the given message.
func NewSpinner(msg string) *Spinner {
	return newSpinner(os.Stderr, msg)
}

// newSpinner creates a spinner writing to w.
func newSpinner(w io.Writer, msg string) *Spinner {
	s := spinner.New(spinner.CharSets[14], 80*time.Millisecond, spinner.WithWriter(w))
	s.Suffix = "  " + msg
	_ = s.Color("cyan")
	return &Spinner{s: s, w: w}
}

// Start begins the spinner animation.
func (sp *Spinner) Start() {
	sp.s.Start()
}

// Stop halts the spinner and clears the line.
func (sp *Spinner) Stop() {
	sp.s.Stop()
}

// Fail stops the spinner and prints msg in red.
func (sp *Spinner) Fail(msg string) {
	sp.s.Stop()
	color.New(color.FgRed).Fprintf(sp.w, "  ✗ %s\n", msg)
}
