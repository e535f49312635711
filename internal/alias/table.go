package alias

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

var (
	// ErrCapacityExceeded is returned when the table is full.
	ErrCapacityExceeded = errors.New("alias limit reached")
	// ErrInvalidFormat is returned for definitions that do not parse.
	ErrInvalidFormat = errors.New("invalid alias format")
	// ErrInvalidName is returned for names that cannot be stored.
	ErrInvalidName = errors.New("invalid alias name")
	// ErrTooLong is returned when a name or expansion exceeds its limit.
	ErrTooLong = errors.New("alias too long")
)

// Alias is a stored shorthand.
type Alias struct {
	Name      string
	Expansion string
}

// Limits bounds a Table.
type Limits struct {
	MaxAliases      int
	MaxNameLength   int // bytes; zero disables the check
	MaxExpansionLen int // bytes; zero disables the check
}

// Table is an ordered list of aliases. Not safe for concurrent use.
type Table struct {
	aliases []Alias
	limits  Limits
}

// NewTable creates an empty table.
func NewTable(limits Limits) *Table {
	return &Table{limits: limits}
}

// Define validates and appends an alias.
func (t *Table) Define(name, expansion string) error {
	if err := t.validate(name, expansion); err != nil {
		return err
	}
	if len(t.aliases) >= t.limits.MaxAliases {
		return fmt.Errorf("define %q: %w", name, ErrCapacityExceeded)
	}

	t.aliases = append(t.aliases, Alias{Name: name, Expansion: expansion})
	return nil
}

// Lookup returns the expansion of the first alias named name.
func (t *Table) Lookup(name string) (string, bool) {
	for _, a := range t.aliases {
		if a.Name == name {
			return a.Expansion, true
		}
	}
	return "", false
}

// Len returns the number of aliases.
func (t *Table) Len() int {
	return len(t.aliases)
}

// All returns a copy of the aliases in definition order.
func (t *Table) All() []Alias {
	out := make([]Alias, len(t.aliases))
	copy(out, t.aliases)
	return out
}

func (t *Table) validate(name, expansion string) error {
	if name == "" || expansion == "" {
		return ErrInvalidFormat
	}
	if strings.ContainsRune(name, '=') || strings.IndexFunc(name, unicode.IsSpace) >= 0 {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if strings.ContainsAny(expansion, "\r\n") {
		return fmt.Errorf("%w: expansion spans lines", ErrInvalidFormat)
	}
	if t.limits.MaxNameLength > 0 && len(name) > t.limits.MaxNameLength {
		return fmt.Errorf("%w: name exceeds %d bytes", ErrTooLong, t.limits.MaxNameLength)
	}
	if t.limits.MaxExpansionLen > 0 && len(expansion) > t.limits.MaxExpansionLen {
		return fmt.Errorf("%w: expansion exceeds %d bytes", ErrTooLong, t.limits.MaxExpansionLen)
	}
	return nil
}

// ParseDefinition splits the body of an alias definition, `name:"expansion"`.
// The name runs up to the first colon. Leading quotes of the expansion are
// skipped and it ends at the next quote, so the quotes themselves are
// optional.
func ParseDefinition(body string) (name, expansion string, err error) {
	body = strings.TrimLeft(body, ":")
	name, rest, ok := strings.Cut(body, ":")
	if !ok {
		return "", "", ErrInvalidFormat
	}

	rest = strings.TrimLeft(rest, `"`)
	expansion, _, _ = strings.Cut(rest, `"`)

	if name == "" || expansion == "" {
		return "", "", ErrInvalidFormat
	}
	return name, expansion, nil
}
