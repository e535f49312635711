package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/medsh/internal/alias"
	"github.com/GriffinCanCode/medsh/internal/editor"
	"github.com/GriffinCanCode/medsh/internal/history"
	"github.com/GriffinCanCode/medsh/internal/identity"
	"github.com/GriffinCanCode/medsh/internal/infrastructure/monitoring"
)

// DefaultName is the shell name shown in the prompt.
const DefaultName = "medsh"

// Launcher starts external programs.
type Launcher interface {
	Launch(ctx context.Context, args []string, background bool) error
}

// LineReader reads one edited line. It returns io.EOF at end of input.
type LineReader interface {
	ReadLine(prompt string, ring *history.Ring) (editor.Result, error)
}

// Options configures a Session.
type Options struct {
	Name            string
	DefaultIdentity string

	Store    *identity.Store
	Aliases  *alias.Table
	Profile  *alias.Profile // nil disables persistence
	Launcher Launcher
	Reader   LineReader
	Out      io.Writer

	Logger  *zap.Logger
	Metrics *monitoring.Metrics // optional
}

// Session is the state of one interactive shell.
type Session struct {
	name     string
	store    *identity.Store
	aliases  *alias.Table
	profile  *alias.Profile
	launcher Launcher
	reader   LineReader
	out      io.Writer
	logger   *zap.Logger
	metrics  *monitoring.Metrics

	active *identity.Identity

	// aliasMu guards the alias table against a Close from a signal handler.
	aliasMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

// New creates a session with the default identity active.
func New(opts Options) (*Session, error) {
	if opts.Store == nil || opts.Aliases == nil {
		return nil, errors.New("shell: store and alias table are required")
	}
	if opts.Launcher == nil || opts.Reader == nil {
		return nil, errors.New("shell: launcher and reader are required")
	}
	if opts.Name == "" {
		opts.Name = DefaultName
	}
	if opts.Out == nil {
		opts.Out = io.Discard
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	s := &Session{
		name:     opts.Name,
		store:    opts.Store,
		aliases:  opts.Aliases,
		profile:  opts.Profile,
		launcher: opts.Launcher,
		reader:   opts.Reader,
		out:      opts.Out,
		logger:   opts.Logger,
		metrics:  opts.Metrics,
	}

	active, err := s.store.Resolve(opts.DefaultIdentity)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve default identity: %w", err)
	}
	s.active = active
	s.observeIdentities()
	s.observeAliases()

	return s, nil
}

// Active returns the identity whose history is in use.
func (s *Session) Active() *identity.Identity {
	return s.active
}

// Prompt returns the prompt for the active identity.
func (s *Session) Prompt() string {
	return fmt.Sprintf("%s@%s> ", s.active.Name, s.name)
}

// LoadAliases fills the alias table from the profile.
func (s *Session) LoadAliases() error {
	if s.profile == nil {
		return nil
	}
	s.aliasMu.Lock()
	defer s.aliasMu.Unlock()

	if err := s.profile.Load(s.aliases); err != nil {
		return err
	}
	s.observeAliasesLocked()
	return nil
}

// Run reads and dispatches lines until exit, end of input, context
// cancellation or a terminal failure. Aliases are flushed on every path.
func (s *Session) Run(ctx context.Context) error {
	s.logger.Info("session started",
		zap.String("identity", s.active.Name),
		zap.Int("aliases", s.aliases.Len()),
	)

	for {
		if err := ctx.Err(); err != nil {
			s.logger.Info("session cancelled", zap.Error(err))
			return s.Close()
		}

		res, err := s.reader.ReadLine(s.Prompt(), s.active.History)
		if err != nil {
			return s.finish(err)
		}

		done, err := s.Dispatch(ctx, res.Line)
		if err != nil {
			return s.finish(err)
		}
		if done {
			return s.Close()
		}
	}
}

// finish ends the loop after a read failure. End of input is a normal exit.
func (s *Session) finish(err error) error {
	if errors.Is(err, io.EOF) {
		s.logger.Debug("end of input")
		return s.Close()
	}

	s.logger.Error("terminal failure", zap.Error(err))
	return errors.Join(err, s.Close())
}

// Close flushes the alias table. It is safe to call more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		if s.profile == nil {
			return
		}
		s.aliasMu.Lock()
		defer s.aliasMu.Unlock()

		if err := s.profile.Flush(s.aliases); err != nil {
			s.logger.Error("failed to save aliases", zap.Error(err))
			s.closeErr = err
		}
	})
	return s.closeErr
}

func (s *Session) printf(format string, args ...any) {
	if _, err := fmt.Fprintf(s.out, format, args...); err != nil {
		s.logger.Debug("failed to write output", zap.Error(err))
	}
}

func (s *Session) recordCommand(kind string) {
	if s.metrics != nil {
		s.metrics.RecordCommand(kind)
	}
}

func (s *Session) observeIdentities() {
	if s.metrics != nil {
		s.metrics.SetIdentities(s.store.Len())
	}
}

func (s *Session) observeAliases() {
	s.aliasMu.Lock()
	defer s.aliasMu.Unlock()
	s.observeAliasesLocked()
}

func (s *Session) observeAliasesLocked() {
	if s.metrics != nil {
		s.metrics.SetAliases(s.aliases.Len())
	}
}
