package shell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/GriffinCanCode/medsh/internal/alias"
	"github.com/GriffinCanCode/medsh/internal/editor"
	"github.com/GriffinCanCode/medsh/internal/history"
	"github.com/GriffinCanCode/medsh/internal/identity"
	"github.com/GriffinCanCode/medsh/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/medsh/internal/launcher"
	"github.com/GriffinCanCode/medsh/tests/helpers/testutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fixture struct {
	session  *Session
	out      *bytes.Buffer
	launcher *testutil.MockLauncher
	metrics  *monitoring.Metrics
	profile  string
}

type fixtureOption func(*identity.Options, *alias.Limits)

func withMaxIdentities(n int) fixtureOption {
	return func(o *identity.Options, _ *alias.Limits) { o.MaxIdentities = n }
}

func withMaxAliases(n int) fixtureOption {
	return func(_ *identity.Options, l *alias.Limits) { l.MaxAliases = n }
}

// newFixture builds a session that reads input through the real editor.
func newFixture(t *testing.T, input string, opts ...fixtureOption) *fixture {
	t.Helper()
	return newFixtureWithReader(t, nil, input, opts...)
}

func newFixtureWithReader(t *testing.T, reader LineReader, input string, opts ...fixtureOption) *fixture {
	t.Helper()

	storeOpts := identity.Options{
		Buckets:       100,
		MaxIdentities: 10,
		MaxNameLength: 49,
		HistorySize:   10,
		MaxLineLength: 79,
	}
	limits := alias.Limits{MaxAliases: 100, MaxNameLength: 49, MaxExpansionLen: 79}
	for _, opt := range opts {
		opt(&storeOpts, &limits)
	}

	logger := zaptest.NewLogger(t)
	out := &bytes.Buffer{}
	if reader == nil {
		reader = editor.New(strings.NewReader(input), out, editor.NopTerminal{}, 79, logger)
	}

	f := &fixture{
		out:      out,
		launcher: testutil.NewMockLauncher(t),
		metrics:  monitoring.NewMetrics(),
		profile:  filepath.Join(t.TempDir(), alias.DefaultProfileName),
	}

	s, err := New(Options{
		DefaultIdentity: "activeuser",
		Store:           identity.NewStore(storeOpts),
		Aliases:         alias.NewTable(limits),
		Profile:         alias.NewProfile(f.profile, logger),
		Launcher:        f.launcher,
		Reader:          reader,
		Out:             out,
		Logger:          logger,
		Metrics:         f.metrics,
	})
	require.NoError(t, err)
	f.session = s
	return f
}

func (f *fixture) expectLaunch(args []string, background bool) *mock.Call {
	return f.launcher.On("Launch", mock.Anything, args, background).Return(nil)
}

func (f *fixture) run(t *testing.T) {
	t.Helper()
	require.NoError(t, f.session.Run(context.Background()))
}

func TestGreetAliasRunsExpansion(t *testing.T) {
	f := newFixture(t, "alias definition greet:\"echo hi\"\ngreet\nexit\n")
	f.expectLaunch([]string{"echo", "hi"}, false).Once()

	f.run(t)

	assert.Contains(t, f.out.String(), "Alias added: greet -> echo hi\n")

	data, err := os.ReadFile(f.profile)
	require.NoError(t, err)
	assert.Equal(t, "greet=echo hi\n", string(data))
}

func TestHistoryListsLastTenLines(t *testing.T) {
	var input strings.Builder
	for i := 1; i <= 11; i++ {
		fmt.Fprintf(&input, "cmd%d\n", i)
	}
	input.WriteString("history\n\nexit\n")

	f := newFixture(t, input.String())
	f.launcher.On("Launch", mock.Anything, mock.Anything, false).Return(nil).Times(11)

	f.run(t)

	out := f.out.String()
	for i := 1; i <= 10; i++ {
		assert.Contains(t, out, fmt.Sprintf("%d: cmd%d\n", i, i+1))
	}
	assert.NotContains(t, out, ": cmd1\n")
	assert.NotContains(t, out, "Executing:")
}

func TestHistoryPickExecutesRecalledEntry(t *testing.T) {
	tests := []struct {
		name string
		keys string
		want string
	}{
		{"newest", "\x1b[A", "pwd"},
		{"older", "\x1b[A\x1b[A", "ls -l"},
		{"clamped", "\x1b[A\x1b[A\x1b[A\x1b[A\x1b[B", "pwd"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, "ls -l\npwd\nhistory\n"+tt.keys+"\nexit\n")
			f.expectLaunch([]string{"ls", "-l"}, false)
			f.expectLaunch([]string{"pwd"}, false)

			f.run(t)

			assert.Contains(t, f.out.String(), "Executing: "+tt.want+"\n")
			assert.Equal(t, 3, len(f.launcher.Calls))
		})
	}
}

func TestHistoryPickIsNotRecorded(t *testing.T) {
	f := newFixture(t, "pwd\nhistory\n\x1b[A\n")
	f.expectLaunch([]string{"pwd"}, false).Twice()

	f.run(t)

	assert.Equal(t, []string{"pwd"}, ringLines(f.session.Active().History))
}

func TestSetUserThenHistory(t *testing.T) {
	f := newFixture(t, "set user bob\nhistory\nexit\n")

	f.run(t)

	out := f.out.String()
	assert.Contains(t, out, "Successfully set: bob\n")
	assert.Contains(t, out, "no history for bob\n")
	assert.Contains(t, out, "bob@medsh> ")
	assert.Equal(t, "bob", f.session.Active().Name)
}

func TestSetUserRecordsIntoPreviousIdentity(t *testing.T) {
	f := newFixture(t, "set user bob\nset user activeuser\nexit\n")

	f.run(t)

	assert.Equal(t, []string{"set user bob"}, ringLines(f.session.Active().History))
}

func TestSetUserWithoutName(t *testing.T) {
	f := newFixture(t, "set user\nset user   \nexit\n")

	f.run(t)

	assert.Equal(t, 2, strings.Count(f.out.String(), msgUsage+"\n"))
	assert.Equal(t, "activeuser", f.session.Active().Name)
}

func TestSetUserNeedsSeparator(t *testing.T) {
	f := newFixture(t, "set userbob\nexit\n")
	f.expectLaunch([]string{"set", "userbob"}, false).Once()

	f.run(t)

	assert.NotContains(t, f.out.String(), "Successfully set")
	assert.Equal(t, "activeuser", f.session.Active().Name)
}

func TestSetUserIdentityLimit(t *testing.T) {
	f := newFixture(t, "set user bob\nset user carol\nexit\n", withMaxIdentities(2))

	f.run(t)

	out := f.out.String()
	assert.Contains(t, out, "Successfully set: bob\n")
	assert.Contains(t, out, msgIdentityLimit+"\n")
	assert.NotContains(t, out, "Successfully set: carol")
	assert.Equal(t, "bob", f.session.Active().Name)
	assert.Equal(t, 2.0, promtest.ToFloat64(f.metrics.Identities))
}

func TestBackgroundLaunch(t *testing.T) {
	f := newFixture(t, "ls &\nsleep 1&\nexit\n")
	f.expectLaunch([]string{"ls"}, true).Once()
	f.expectLaunch([]string{"sleep", "1"}, true).Once()

	f.run(t)

	assert.Equal(t, 2.0, promtest.ToFloat64(f.metrics.Launches.WithLabelValues(monitoring.ModeBackground)))
}

func TestAliasExpansionIsSinglePass(t *testing.T) {
	f := newFixture(t, "alias definition a:\"b\"\nalias definition b:\"echo x\"\na\nexit\n")
	f.expectLaunch([]string{"b"}, false).Once()

	f.run(t)
}

func TestBuiltinsPrecedeAliases(t *testing.T) {
	f := newFixture(t, "alias definition exit:\"ls\"\nexit\n")

	f.run(t)

	assert.Contains(t, f.out.String(), "Alias added: exit -> ls\n")
	f.launcher.AssertNotCalled(t, "Launch", mock.Anything, mock.Anything, mock.Anything)
}

func TestAliasLimit(t *testing.T) {
	f := newFixture(t, "alias definition a:\"x\"\nalias definition b:\"y\"\nexit\n", withMaxAliases(1))

	f.run(t)

	out := f.out.String()
	assert.Contains(t, out, "Alias added: a -> x\n")
	assert.Contains(t, out, msgAliasLimit+"\n")
}

func TestAliasInvalidFormat(t *testing.T) {
	for _, body := range []string{"noseparator", ":\"x\"", "name:", "na=me:\"x\""} {
		t.Run(body, func(t *testing.T) {
			f := newFixture(t, "alias definition "+body+"\nexit\n")

			f.run(t)

			assert.Contains(t, f.out.String(), msgAliasFormat+"\n")
		})
	}
}

func TestLaunchFailureIsReported(t *testing.T) {
	f := newFixture(t, "nosuchprog --flag\nexit\n")
	f.launcher.On("Launch", mock.Anything, []string{"nosuchprog", "--flag"}, false).
		Return(&launcher.LaunchError{Program: "nosuchprog", Err: exec.ErrNotFound}).Once()

	f.run(t)

	assert.Contains(t, f.out.String(), "nosuchprog: "+exec.ErrNotFound.Error()+"\n")
	assert.Equal(t, 1.0, promtest.ToFloat64(f.metrics.LaunchFailures.WithLabelValues(monitoring.ModeForeground)))
}

func TestEndOfInputFlushesAliases(t *testing.T) {
	f := newFixture(t, "alias definition ll:\"ls -l\"\n")

	f.run(t)

	data, err := os.ReadFile(f.profile)
	require.NoError(t, err)
	assert.Equal(t, "ll=ls -l\n", string(data))
}

func TestLoadAliasesFromProfile(t *testing.T) {
	f := newFixture(t, "ll\nexit\n")
	require.NoError(t, os.WriteFile(f.profile, []byte("ll=ls -l\n"), 0o600))
	f.expectLaunch([]string{"ls", "-l"}, false).Once()

	require.NoError(t, f.session.LoadAliases())
	f.run(t)

	assert.Equal(t, 1.0, promtest.ToFloat64(f.metrics.Aliases))
}

func TestFailedAliasLoadKeepsProfile(t *testing.T) {
	f := newFixture(t, "alias definition x:\"y\"\nexit\n")
	require.NoError(t, os.Mkdir(f.profile, 0o755))

	require.Error(t, f.session.LoadAliases())
	err := f.session.Run(context.Background())

	assert.ErrorIs(t, err, alias.ErrLoadFailed)
	info, statErr := os.Stat(f.profile)
	require.NoError(t, statErr)
	assert.True(t, info.IsDir())
}

func TestEmptyAndBlankLines(t *testing.T) {
	f := newFixture(t, "\n   \n&\nexit\n")

	f.run(t)

	f.launcher.AssertNotCalled(t, "Launch", mock.Anything, mock.Anything, mock.Anything)
}

type failingReader struct {
	err error
}

func (r failingReader) ReadLine(string, *history.Ring) (editor.Result, error) {
	return editor.Result{Index: -1}, r.err
}

func TestTerminalFailureEndsSession(t *testing.T) {
	termErr := &editor.TerminalError{Op: "enter raw mode", Err: errors.New("not a tty")}
	f := newFixtureWithReader(t, failingReader{err: termErr}, "")

	_, err := f.session.Dispatch(context.Background(), "alias definition x:\"y\"")
	require.NoError(t, err)

	err = f.session.Run(context.Background())

	var te *editor.TerminalError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "enter raw mode", te.Op)

	_, statErr := os.Stat(f.profile)
	assert.NoError(t, statErr, "aliases should be flushed before a terminal failure is returned")
}

func TestRunStopsWhenContextCancelled(t *testing.T) {
	reader := testutil.Lines("ls")
	f := newFixtureWithReader(t, reader, "")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, f.session.Run(ctx))
	assert.Empty(t, reader.Prompts)
}

func TestPromptFollowsIdentity(t *testing.T) {
	reader := testutil.Lines("set user bob")
	f := newFixtureWithReader(t, reader, "")

	f.run(t)

	assert.Equal(t, []string{"activeuser@medsh> ", "bob@medsh> "}, reader.Prompts)
}

func TestCommandMetrics(t *testing.T) {
	f := newFixture(t, "ls\nhistory\n\nset user bob\nalias definition a:\"b\"\nexit\n")
	f.expectLaunch([]string{"ls"}, false).Once()

	f.run(t)

	m := f.metrics
	assert.Equal(t, 1.0, promtest.ToFloat64(m.CommandsTotal.WithLabelValues(monitoring.KindPlain)))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.CommandsTotal.WithLabelValues(monitoring.KindHistory)))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.CommandsTotal.WithLabelValues(monitoring.KindIdentity)))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.CommandsTotal.WithLabelValues(monitoring.KindAlias)))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.CommandsTotal.WithLabelValues(monitoring.KindExit)))
	assert.Equal(t, 3.0, promtest.ToFloat64(m.HistoryAppends))
}

func TestNewRejectsInvalidDefaultIdentity(t *testing.T) {
	_, err := New(Options{
		DefaultIdentity: "has space",
		Store:           identity.NewStore(identity.Options{Buckets: 10, MaxIdentities: 1, MaxNameLength: 49, HistorySize: 10}),
		Aliases:         alias.NewTable(alias.Limits{MaxAliases: 1}),
		Launcher:        new(testutil.MockLauncher),
		Reader:          testutil.Lines(),
	})
	assert.ErrorIs(t, err, identity.ErrInvalidName)
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		line       string
		args       []string
		background bool
	}{
		{"ls", []string{"ls"}, false},
		{"ls -l  /tmp", []string{"ls", "-l", "/tmp"}, false},
		{"ls &", []string{"ls"}, true},
		{"sleep 5&", []string{"sleep", "5"}, true},
		{"ls & ", []string{"ls"}, true},
		{"&", nil, true},
		{"   ", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			args, background := ParseCommand(tt.line)
			if tt.args == nil {
				assert.Empty(t, args)
			} else {
				assert.Equal(t, tt.args, args)
			}
			assert.Equal(t, tt.background, background)
		})
	}
}

func ringLines(r *history.Ring) []string {
	var out []string
	for _, e := range r.List() {
		out = append(out, e.Line)
	}
	return out
}
