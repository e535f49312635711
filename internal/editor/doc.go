// Package editor implements the shell's interactive line editor.
//
// ReadLine switches the terminal to raw mode, reads one byte at a time and
// rebuilds the edit buffer as keys arrive. The cursor always sits at the end
// of the line: printable bytes append, backspace deletes the last rune, and
// the up/down arrow keys replace the whole buffer with entries recalled from
// a history ring. Every change redraws the prompt line in place.
//
// Key handling:
//   - Enter (CR or LF): submit the line
//   - Backspace (DEL or BS): delete the last rune
//   - ESC [ A / ESC [ B: recall an older / newer history entry
//   - Ctrl-C: discard the line
//   - Ctrl-D on an empty line: end of input (io.EOF)
//
// Raw mode is a scoped resource. It is restored before ReadLine returns on
// every path, and failures to enter or leave it surface as *TerminalError.
package editor
