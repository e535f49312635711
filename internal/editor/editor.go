package editor

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/GriffinCanCode/medsh/internal/history"
	"go.uber.org/zap"
)

// Control bytes and sequences understood by the editor.
const (
	keyInterrupt = 0x03
	keyEOF       = 0x04
	keyBackspace = 0x08
	keyEscape    = 0x1b
	keyDelete    = 0x7f

	csiIntroducer = '['
	arrowUp       = 'A'
	arrowDown     = 'B'

	// ClearLine erases the current line and returns to column zero.
	ClearLine = "\x1b[2K\r"
	newline   = "\r\n"
)

// Result is a submitted line.
type Result struct {
	Line string
	// Index is the ring slot last recalled with the arrow keys, or -1 when
	// no entry was recalled.
	Index int
}

// Recalled reports whether the operator picked a history entry.
func (r Result) Recalled() bool {
	return r.Index != -1
}

// Editor reads lines from a terminal. Not safe for concurrent use.
type Editor struct {
	in      *bufio.Reader
	out     io.Writer
	term    Terminal
	maxLine int
	logger  *zap.Logger
}

// New creates an editor. maxLine bounds the edit buffer in bytes.
func New(in io.Reader, out io.Writer, t Terminal, maxLine int, logger *zap.Logger) *Editor {
	if t == nil {
		t = NopTerminal{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Editor{
		in:      bufio.NewReader(in),
		out:     out,
		term:    t,
		maxLine: maxLine,
		logger:  logger,
	}
}

// session is the state of one ReadLine call.
type session struct {
	prompt string
	ring   *history.Ring
	buf    []byte
	index  int
}

// ReadLine draws prompt and edits a line until it is submitted. ring may be
// nil, in which case the arrow keys do nothing. At end of input with an
// empty buffer ReadLine returns io.EOF.
func (e *Editor) ReadLine(prompt string, ring *history.Ring) (res Result, err error) {
	res = Result{Index: -1}

	restore, err := e.term.EnterRaw()
	if err != nil {
		return res, &TerminalError{Op: "enter raw mode", Err: err}
	}
	defer func() {
		if rerr := restore(); rerr != nil {
			e.logger.Error("failed to restore terminal mode", zap.Error(rerr))
			if err == nil {
				err = &TerminalError{Op: "restore mode", Err: rerr}
			}
		}
	}()

	s := &session{prompt: prompt, ring: ring, index: -1}
	e.redraw(s)

	for {
		b, err := e.in.ReadByte()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				return res, fmt.Errorf("failed to read input: %w", err)
			}
			if len(s.buf) == 0 {
				e.write(newline)
				return res, io.EOF
			}
			return e.submit(s), nil
		}

		switch b {
		case '\r', '\n':
			return e.submit(s), nil
		case keyEscape:
			e.escape(s)
		case keyDelete, keyBackspace:
			e.backspace(s)
		case keyInterrupt:
			e.write("^C" + newline)
			return res, nil
		case keyEOF:
			if len(s.buf) == 0 {
				e.write(newline)
				return res, io.EOF
			}
		default:
			e.insert(s, b)
		}
	}
}

func (e *Editor) submit(s *session) Result {
	e.write(newline)
	return Result{
		Line:  strings.ToValidUTF8(string(s.buf), ""),
		Index: s.index,
	}
}

func (e *Editor) insert(s *session, b byte) {
	if b < 0x20 {
		return
	}
	if e.maxLine > 0 && len(s.buf) >= e.maxLine {
		return
	}
	s.buf = append(s.buf, b)
	e.write(string(b))
}

func (e *Editor) backspace(s *session) {
	if len(s.buf) == 0 {
		return
	}
	_, size := utf8.DecodeLastRune(s.buf)
	s.buf = s.buf[:len(s.buf)-size]
	e.redraw(s)
}

// escape consumes the rest of an escape sequence. Sequences that are not CSI
// are dropped along with the byte that follows ESC.
func (e *Editor) escape(s *session) {
	next, err := e.in.ReadByte()
	if err != nil || next != csiIntroducer {
		return
	}

	final, err := e.readCSIFinal()
	if err != nil {
		return
	}

	switch final {
	case arrowUp:
		e.recall(s, history.Older)
	case arrowDown:
		e.recall(s, history.Newer)
	default:
		e.logger.Debug("ignoring control sequence", zap.String("final", string(final)))
	}
}

// readCSIFinal skips parameter and intermediate bytes up to the final byte.
func (e *Editor) readCSIFinal() (byte, error) {
	for {
		b, err := e.in.ReadByte()
		if err != nil {
			return 0, err
		}
		if b >= 0x40 && b <= 0x7e {
			return b, nil
		}
	}
}

// recall replaces the buffer with a history entry. The first step of a
// navigation session lands on the newest entry.
func (e *Editor) recall(s *session, dir history.Direction) {
	if s.ring == nil || s.ring.Len() == 0 {
		return
	}

	switch {
	case s.index == -1 && dir == history.Older:
		s.index = s.ring.Newest()
	case s.index == -1:
		return
	default:
		s.index = s.ring.Navigate(dir, s.index)
	}

	s.buf = append(s.buf[:0], history.Truncate(s.ring.At(s.index), e.maxLine)...)
	e.redraw(s)
}

func (e *Editor) redraw(s *session) {
	e.write(ClearLine + s.prompt + string(s.buf))
}

func (e *Editor) write(text string) {
	if _, err := io.WriteString(e.out, text); err != nil {
		e.logger.Debug("failed to write to terminal", zap.Error(err))
	}
}
