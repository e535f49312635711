package editor

import (
	"fmt"
	"os"

	"golang.org/x/term"
)

// Terminal switches an input device into raw mode.
type Terminal interface {
	// EnterRaw disables line buffering and echo. The returned function
	// restores the previous mode.
	EnterRaw() (restore func() error, err error)
}

// TerminalError reports a failure to change the terminal mode.
type TerminalError struct {
	Op  string
	Err error
}

func (e *TerminalError) Error() string {
	return fmt.Sprintf("terminal %s: %v", e.Op, e.Err)
}

func (e *TerminalError) Unwrap() error {
	return e.Err
}

// FDTerminal toggles raw mode on a terminal file descriptor.
type FDTerminal struct {
	fd int
}

// NewFDTerminal wraps f, which must be a terminal.
func NewFDTerminal(f *os.File) *FDTerminal {
	return &FDTerminal{fd: int(f.Fd())}
}

// EnterRaw puts the terminal into raw mode.
func (t *FDTerminal) EnterRaw() (func() error, error) {
	state, err := term.MakeRaw(t.fd)
	if err != nil {
		return nil, err
	}
	return func() error {
		return term.Restore(t.fd, state)
	}, nil
}

// IsTerminal reports whether f is connected to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// NopTerminal is used when input is not a terminal (pipes and files).
type NopTerminal struct{}

// EnterRaw does nothing.
func (NopTerminal) EnterRaw() (func() error, error) {
	return func() error { return nil }, nil
}
