package alias

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// DefaultProfileName is the alias file used when none is configured.
const DefaultProfileName = ".profile_medsh"

// maxRecordLen bounds one profile line. Longer lines are skipped whole.
const maxRecordLen = 4096

// ErrLoadFailed is returned by Flush when the last Load did not complete,
// so the table may be missing records that are still on disk.
var ErrLoadFailed = errors.New("alias profile was not loaded completely")

// Profile persists a Table as "name=expansion" lines.
type Profile struct {
	path       string
	logger     *zap.Logger
	loadFailed bool
}

// NewProfile creates a profile backed by path.
func NewProfile(path string, logger *zap.Logger) *Profile {
	if path == "" {
		path = DefaultProfileName
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Profile{path: path, logger: logger}
}

// Path returns the backing file path.
func (p *Profile) Path() string {
	return p.path
}

// Load reads every record into table. A missing file leaves the table empty.
// Malformed and over-long records are skipped; records past the table
// capacity are dropped. After a failed Load, Flush refuses to overwrite the
// file.
func (p *Profile) Load(table *Table) error {
	f, err := os.Open(p.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			p.loadFailed = false
			p.logger.Debug("alias profile not found", zap.String("path", p.path))
			return nil
		}
		p.loadFailed = true
		return fmt.Errorf("failed to open alias profile: %w", err)
	}
	defer f.Close()

	loaded, err := p.read(f, table)
	if err != nil {
		p.loadFailed = true
		return fmt.Errorf("failed to read alias profile %s: %w", p.path, err)
	}
	p.loadFailed = false

	p.logger.Debug("alias profile loaded",
		zap.String("path", p.path),
		zap.Int("aliases", loaded))
	return nil
}

func (p *Profile) read(r io.Reader, table *Table) (int, error) {
	br := bufio.NewReader(r)
	loaded := 0
	for lineNo := 1; ; lineNo++ {
		line, long, err := readRecord(br)
		if errors.Is(err, io.EOF) {
			return loaded, nil
		}
		if err != nil {
			return loaded, err
		}
		if long {
			p.logger.Warn("skipping over-long alias record", zap.Int("line", lineNo))
			continue
		}

		name, expansion, ok := parseRecord(line)
		if !ok {
			p.logger.Debug("skipping malformed alias record", zap.Int("line", lineNo))
			continue
		}

		if err := table.Define(name, expansion); err != nil {
			if errors.Is(err, ErrCapacityExceeded) {
				p.logger.Warn("alias profile exceeds capacity; remaining records ignored",
					zap.String("path", p.path),
					zap.Int("line", lineNo))
				return loaded, nil
			}
			p.logger.Warn("skipping invalid alias record",
				zap.Int("line", lineNo),
				zap.Error(err))
			continue
		}
		loaded++
	}
}

// readRecord returns the next line without its terminator. A line longer
// than maxRecordLen is consumed and reported as long. io.EOF is returned
// only once no bytes remain.
func readRecord(br *bufio.Reader) (string, bool, error) {
	var buf []byte
	long := false
	for {
		chunk, err := br.ReadSlice('\n')
		if !long {
			buf = append(buf, chunk...)
			if len(buf) > maxRecordLen+1 {
				long, buf = true, nil
			}
		}

		switch {
		case err == nil:
			return strings.TrimRight(string(buf), "\r\n"), long, nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF) && (len(buf) > 0 || long):
			return strings.TrimRight(string(buf), "\r\n"), long, nil
		default:
			return "", false, err
		}
	}
}

// parseRecord splits "name=expansion". Leading '=' bytes are skipped and the
// expansion is everything after the first remaining '='.
func parseRecord(line string) (string, string, bool) {
	line = strings.TrimLeft(line, "=")
	name, expansion, ok := strings.Cut(line, "=")
	if !ok || name == "" || expansion == "" {
		return "", "", false
	}
	return name, expansion, true
}

// Flush rewrites the profile with every alias in table. An existing file
// keeps its permissions; a new one is created 0644.
func (p *Profile) Flush(table *Table) error {
	if p.loadFailed {
		return fmt.Errorf("refusing to overwrite %s: %w", p.path, ErrLoadFailed)
	}

	mode := fs.FileMode(0o644)
	if info, err := os.Stat(p.path); err == nil {
		mode = info.Mode().Perm()
	}

	dir := filepath.Dir(p.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(p.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to open alias profile for writing: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	w := bufio.NewWriter(tmp)
	for _, a := range table.All() {
		if _, err := fmt.Fprintf(w, "%s=%s\n", a.Name, a.Expansion); err != nil {
			tmp.Close()
			return fmt.Errorf("failed to write alias profile: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write alias profile: %w", err)
	}
	if err := tmp.Chmod(mode); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to set alias profile mode: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close alias profile: %w", err)
	}
	if err := os.Rename(tmpName, p.path); err != nil {
		return fmt.Errorf("failed to replace alias profile: %w", err)
	}

	p.logger.Debug("alias profile flushed",
		zap.String("path", p.path),
		zap.Int("aliases", table.Len()))
	return nil
}
