package shell

import (
	"context"
	"errors"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/medsh/internal/alias"
	"github.com/GriffinCanCode/medsh/internal/history"
	"github.com/GriffinCanCode/medsh/internal/identity"
	"github.com/GriffinCanCode/medsh/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/medsh/internal/launcher"
)

// Builtin words and prefixes.
const (
	ExitCommand      = "exit"
	SetUserCommand   = "set user"
	AliasPrefix      = "alias definition "
	BackgroundSuffix = "&"
)

// Operator-facing messages.
const (
	msgUsage         = "Username not recognized. Correct usage: set user <username>"
	msgIdentityLimit = "Error: Maximum user limit reached."
	msgIdentitySet   = "Successfully set: %s"
	msgAliasAdded    = "Alias added: %s -> %s"
	msgAliasLimit    = "Alias limit reached. Cannot add more aliases."
	msgAliasFormat   = `Invalid alias format. Use: alias definition <name>:"<command>"`
	msgNoHistory     = "no history for %s"
	msgExecuting     = "Executing: %s"
	msgHistoryEntry  = "%d: %s"
	msgLaunchFailed  = "%s: %v"
)

// ErrIdentityFormat is returned when set user names no usable identity.
var ErrIdentityFormat = errors.New("username not recognized")

// Dispatch interprets one submitted line. It reports done when the session
// should end. A non-nil error is a terminal failure and ends the session.
func (s *Session) Dispatch(ctx context.Context, line string) (done bool, err error) {
	switch {
	case line == "":
		return false, nil
	case line == ExitCommand:
		s.recordCommand(monitoring.KindExit)
		return true, nil
	case line == history.ListCommand:
		s.recordCommand(monitoring.KindHistory)
		return s.history(ctx)
	}

	s.record(line)

	switch {
	case line == SetUserCommand || strings.HasPrefix(line, SetUserCommand+" "):
		s.recordCommand(monitoring.KindIdentity)
		s.setUser(strings.TrimPrefix(line, SetUserCommand))
		return false, nil
	case strings.HasPrefix(line, AliasPrefix):
		s.recordCommand(monitoring.KindAlias)
		s.defineAlias(strings.TrimPrefix(line, AliasPrefix))
		return false, nil
	}

	s.recordCommand(monitoring.KindPlain)
	if expansion, ok := s.lookupAlias(line); ok {
		s.logger.Debug("alias expanded", zap.String("alias", line), zap.String("expansion", expansion))
		line = expansion
	}

	args, background := ParseCommand(line)
	if len(args) == 0 {
		return false, nil
	}
	s.launch(ctx, args, background)
	return false, nil
}

func (s *Session) record(line string) {
	if s.active.History.Append(line) && s.metrics != nil {
		s.metrics.IncHistoryAppends()
	}
}

// history lists the active ring and runs the entry the operator recalls.
func (s *Session) history(ctx context.Context) (bool, error) {
	ring := s.active.History
	entries := ring.List()
	if len(entries) == 0 {
		s.printf(msgNoHistory+"\n", s.active.Name)
		return false, nil
	}

	for _, e := range entries {
		s.printf(msgHistoryEntry+"\n", e.Ordinal, e.Line)
	}

	res, err := s.reader.ReadLine(s.Prompt(), ring)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return true, nil
		}
		return false, err
	}
	if !res.Recalled() || res.Line == "" {
		return false, nil
	}

	s.printf(msgExecuting+"\n", res.Line)
	args, _ := ParseCommand(res.Line)
	if len(args) > 0 {
		s.launch(ctx, args, false)
	}
	return false, nil
}

func (s *Session) setUser(rest string) {
	name, err := identityName(rest)
	if err == nil {
		var ident *identity.Identity
		ident, err = s.store.Resolve(name)
		if err == nil {
			s.active = ident
			s.observeIdentities()
			s.logger.Debug("identity switched",
				zap.String("identity", name),
				zap.Strings("known", s.store.Names()))
			s.printf(msgIdentitySet+"\n", name)
			return
		}
	}

	s.logger.Debug("identity rejected", zap.Error(err))
	if errors.Is(err, identity.ErrCapacityExceeded) {
		s.printf(msgIdentityLimit + "\n")
		return
	}
	s.printf(msgUsage + "\n")
}

// identityName returns the first word after the set user prefix.
func identityName(rest string) (string, error) {
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return "", ErrIdentityFormat
	}
	return fields[0], nil
}

func (s *Session) defineAlias(body string) {
	name, expansion, err := alias.ParseDefinition(body)
	if err == nil {
		s.aliasMu.Lock()
		err = s.aliases.Define(name, expansion)
		s.observeAliasesLocked()
		s.aliasMu.Unlock()
	}

	switch {
	case err == nil:
		s.printf(msgAliasAdded+"\n", name, expansion)
	case errors.Is(err, alias.ErrCapacityExceeded):
		s.printf(msgAliasLimit + "\n")
	default:
		s.logger.Debug("alias rejected", zap.Error(err))
		s.printf(msgAliasFormat + "\n")
	}
}

func (s *Session) lookupAlias(line string) (string, bool) {
	s.aliasMu.Lock()
	defer s.aliasMu.Unlock()
	return s.aliases.Lookup(line)
}

func (s *Session) launch(ctx context.Context, args []string, background bool) {
	err := s.launcher.Launch(ctx, args, background)
	if s.metrics != nil {
		s.metrics.RecordLaunch(background, err)
	}
	if err == nil {
		return
	}

	s.logger.Debug("launch failed", zap.Strings("args", args), zap.Error(err))
	var le *launcher.LaunchError
	if errors.As(err, &le) {
		s.printf(msgLaunchFailed+"\n", le.Program, le.Err)
		return
	}
	s.printf(msgLaunchFailed+"\n", args[0], err)
}

// ParseCommand strips a trailing & and splits the line on spaces, dropping
// empty words.
func ParseCommand(line string) (args []string, background bool) {
	line = strings.TrimRight(line, " ")
	if strings.HasSuffix(line, BackgroundSuffix) {
		background = true
		line = strings.TrimSuffix(line, BackgroundSuffix)
	}
	args = strings.FieldsFunc(line, func(r rune) bool { return r == ' ' })
	return args, background
}
