package launcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"

	"go.uber.org/zap"
)

// ErrNoProgram is returned when Launch receives no argument words.
var ErrNoProgram = errors.New("no program given")

// LaunchError reports a child that could not be started.
type LaunchError struct {
	Program string
	Err     error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("%s: %v", e.Program, e.Err)
}

func (e *LaunchError) Unwrap() error {
	return e.Err
}

// Exec launches programs with os/exec.
type Exec struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	logger     *zap.Logger
	background sync.WaitGroup
}

// New creates a launcher wired to the process's standard streams.
func New(logger *zap.Logger) *Exec {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exec{
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		logger: logger,
	}
}

// Launch runs args[0] with the remaining words as arguments. A non-zero exit
// status is not an error; only failing to start or wait on the child is.
func (e *Exec) Launch(ctx context.Context, args []string, background bool) error {
	if len(args) == 0 {
		return ErrNoProgram
	}
	if background {
		return e.startBackground(args)
	}
	return e.runForeground(ctx, args)
}

func (e *Exec) runForeground(ctx context.Context, args []string) error {
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Stdin = e.Stdin
	cmd.Stdout = e.Stdout
	cmd.Stderr = e.Stderr

	if err := cmd.Start(); err != nil {
		return &LaunchError{Program: args[0], Err: err}
	}

	err := cmd.Wait()
	var exitErr *exec.ExitError
	switch {
	case err == nil:
		e.logger.Debug("foreground child exited", zap.Strings("args", args))
		return nil
	case errors.As(err, &exitErr):
		e.logger.Debug("foreground child exited",
			zap.Strings("args", args),
			zap.Int("exit_code", exitErr.ExitCode()))
		return nil
	default:
		return fmt.Errorf("failed to wait for %s: %w", args[0], err)
	}
}

// startBackground starts a detached child. Its stdin is not inherited so it
// cannot steal keystrokes from the line editor.
func (e *Exec) startBackground(args []string) error {
	cmd := exec.Command(args[0], args[1:]...)
	cmd.Stdout = e.Stdout
	cmd.Stderr = e.Stderr

	if err := cmd.Start(); err != nil {
		return &LaunchError{Program: args[0], Err: err}
	}

	pid := cmd.Process.Pid
	e.logger.Debug("background child started", zap.Strings("args", args), zap.Int("pid", pid))

	e.background.Add(1)
	go func() {
		defer e.background.Done()
		err := cmd.Wait()
		e.logger.Debug("background child reaped", zap.Int("pid", pid), zap.Error(err))
	}()
	return nil
}

// Wait blocks until every background child started so far has been reaped
// or ctx is done, whichever comes first.
func (e *Exec) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		e.background.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
