package history

import "unicode/utf8"

// Reserved inputs that are never recorded.
const (
	RepeatCommand  = "!!"
	ListCommand    = "history"
	reservedPrefix = "!"
)

// Direction selects which way Navigate moves through a ring.
type Direction int

const (
	// Older moves toward the oldest live entry.
	Older Direction = iota
	// Newer moves toward the most recently appended entry.
	Newer
)

// Entry is one line of a history listing.
type Entry struct {
	Ordinal int
	Line    string
}

// Ring is a fixed-capacity circular buffer of command lines.
// The oldest entry is overwritten once the ring is full.
//
// A Ring is not safe for concurrent use.
type Ring struct {
	lines   []string
	start   int // oldest live entry
	end     int // next write slot
	count   int
	maxLine int
}

// NewRing creates a ring holding up to capacity lines, each truncated to
// maxLine bytes. A non-positive maxLine disables truncation.
func NewRing(capacity, maxLine int) *Ring {
	if capacity <= 0 {
		capacity = 1
	}
	return &Ring{
		lines:   make([]string, capacity),
		maxLine: maxLine,
	}
}

// Recordable reports whether Append would store line.
func Recordable(line string) bool {
	if line == "" || line == RepeatCommand || line == ListCommand {
		return false
	}
	return line[:1] != reservedPrefix
}

// Append records line and reports whether it was stored.
func (r *Ring) Append(line string) bool {
	if !Recordable(line) {
		return false
	}

	line = Truncate(line, r.maxLine)
	if line == "" {
		return false
	}

	r.lines[r.end] = line
	r.end = (r.end + 1) % len(r.lines)

	if r.count < len(r.lines) {
		r.count++
	} else {
		r.start = (r.start + 1) % len(r.lines)
	}
	return true
}

// Len returns the number of live entries.
func (r *Ring) Len() int {
	return r.count
}

// List returns a snapshot of the live entries, oldest first.
func (r *Ring) List() []Entry {
	entries := make([]Entry, 0, r.count)
	i := r.start
	for n := 0; n < r.count; n++ {
		entries = append(entries, Entry{Ordinal: n + 1, Line: r.lines[i]})
		i = (i + 1) % len(r.lines)
	}
	return entries
}

// Newest returns the slot of the most recently appended entry, or -1 when
// the ring is empty.
func (r *Ring) Newest() int {
	if r.count == 0 {
		return -1
	}
	return (r.end - 1 + len(r.lines)) % len(r.lines)
}

// Navigate moves index one step in dir, clamping at the oldest and newest
// live entries.
func (r *Ring) Navigate(dir Direction, index int) int {
	if r.count == 0 || !r.live(index) {
		return index
	}

	switch dir {
	case Older:
		if index == r.start {
			return index
		}
		return (index - 1 + len(r.lines)) % len(r.lines)
	case Newer:
		next := (index + 1) % len(r.lines)
		if next == r.end {
			return index
		}
		return next
	default:
		return index
	}
}

// At returns the line stored at a live slot, or "" for any other index.
func (r *Ring) At(index int) string {
	if !r.live(index) {
		return ""
	}
	return r.lines[index]
}

func (r *Ring) live(index int) bool {
	if index < 0 || index >= len(r.lines) || r.count == 0 {
		return false
	}
	offset := (index - r.start + len(r.lines)) % len(r.lines)
	return offset < r.count
}

// Truncate cuts s to at most limit bytes without splitting a rune.
// A non-positive limit returns s unchanged.
func Truncate(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
