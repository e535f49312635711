package identity

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/GriffinCanCode/medsh/internal/history"
)

var (
	// ErrCapacityExceeded is returned when resolving a new name would exceed
	// the identity limit.
	ErrCapacityExceeded = errors.New("maximum identity limit reached")
	// ErrInvalidName is returned for empty, overlong or whitespace-bearing names.
	ErrInvalidName = errors.New("invalid identity name")
)

// Identity is a named context owning one history ring.
type Identity struct {
	Name    string
	History *history.Ring
}

type node struct {
	identity *Identity
	next     *node
}

// Options configures a Store.
type Options struct {
	Buckets       int // hash table width
	MaxIdentities int // distinct names allowed
	MaxNameLength int // bytes; zero disables the check
	HistorySize   int // ring capacity per identity
	MaxLineLength int // bytes kept per history line
}

// Store is a fixed-width chained hash table of identities.
//
// A Store is not safe for concurrent use.
type Store struct {
	buckets []*node
	count   int
	opts    Options
}

// NewStore creates an empty store.
func NewStore(opts Options) *Store {
	if opts.Buckets <= 0 {
		opts.Buckets = 1
	}
	return &Store{
		buckets: make([]*node, opts.Buckets),
		opts:    opts,
	}
}

// Hash returns the bucket for name using a 31-multiplier string hash.
func Hash(name string, buckets int) int {
	var h uint32
	for i := 0; i < len(name); i++ {
		h = h*31 + uint32(name[i])
	}
	return int(h % uint32(buckets))
}

// Resolve returns the identity registered under name, creating it on first
// use. Repeated calls with the same name return the same *Identity.
func (s *Store) Resolve(name string) (*Identity, error) {
	if err := s.validate(name); err != nil {
		return nil, err
	}

	bucket := Hash(name, len(s.buckets))
	for n := s.buckets[bucket]; n != nil; n = n.next {
		if n.identity.Name == name {
			return n.identity, nil
		}
	}

	if s.count >= s.opts.MaxIdentities {
		return nil, fmt.Errorf("resolve %q: %w", name, ErrCapacityExceeded)
	}

	ident := &Identity{
		Name:    name,
		History: history.NewRing(s.opts.HistorySize, s.opts.MaxLineLength),
	}
	s.buckets[bucket] = &node{identity: ident, next: s.buckets[bucket]}
	s.count++

	return ident, nil
}

// Len returns the number of identities created so far.
func (s *Store) Len() int {
	return s.count
}

// Names returns all identity names in sorted order.
func (s *Store) Names() []string {
	names := make([]string, 0, s.count)
	for _, head := range s.buckets {
		for n := head; n != nil; n = n.next {
			names = append(names, n.identity.Name)
		}
	}
	sort.Strings(names)
	return names
}

func (s *Store) validate(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty", ErrInvalidName)
	}
	if s.opts.MaxNameLength > 0 && len(name) > s.opts.MaxNameLength {
		return fmt.Errorf("%w: %q exceeds %d bytes", ErrInvalidName, name, s.opts.MaxNameLength)
	}
	if strings.IndexFunc(name, unicode.IsSpace) >= 0 {
		return fmt.Errorf("%w: %q contains whitespace", ErrInvalidName, name)
	}
	return nil
}
