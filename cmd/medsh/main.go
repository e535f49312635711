// Command medsh is an interactive shell with per-identity command history
// and persistent aliases.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/GriffinCanCode/medsh/internal/alias"
	"github.com/GriffinCanCode/medsh/internal/editor"
	"github.com/GriffinCanCode/medsh/internal/identity"
	"github.com/GriffinCanCode/medsh/internal/infrastructure/config"
	"github.com/GriffinCanCode/medsh/internal/infrastructure/logging"
	"github.com/GriffinCanCode/medsh/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/medsh/internal/launcher"
	"github.com/GriffinCanCode/medsh/internal/shared/id"
	"github.com/GriffinCanCode/medsh/internal/shell"
)

const backgroundGrace = 500 * time.Millisecond

var (
	// Global flags
	configPath  string
	debug       bool
	profilePath string
	metricsAddr string
)

var rootCmd = &cobra.Command{
	Use:   "medsh",
	Short: "medsh - a small interactive shell",
	Long: `medsh reads commands interactively and runs them as child processes.

Each identity keeps its own history of the last commands, browsable with the
arrow keys. Builtins:

  exit                                   leave the shell
  history                                list history and pick an entry
  set user <name>                        switch identity
  alias definition <name>:"<command>"    define an alias
  <command> &                            run in the background`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context())
	},
}

func init() {
	flags := rootCmd.Flags()
	flags.StringVarP(&configPath, "config", "c", "", "config file (.toml, .yaml); defaults to $"+config.EnvConfigFile)
	flags.BoolVar(&debug, "debug", false, "enable debug logging")
	flags.StringVar(&profilePath, "profile", "", "alias file (default "+alias.DefaultProfileName+")")
	flags.StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "medsh:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	base, err := logging.New(cfg.LoggerConfig())
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = base.Close() }()

	sessionID := id.NewSessionID()
	log := base.WithSession(sessionID.String())

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	metrics := monitoring.NewMetrics()
	if cfg.Metrics.Addr != "" {
		go func() {
			if err := monitoring.Serve(ctx, cfg.Metrics.Addr, metrics, log.Logger); err != nil {
				log.Warn("metrics endpoint stopped", zap.Error(err))
			}
		}()
	}

	var terminal editor.Terminal = editor.NopTerminal{}
	var saved *term.State
	if editor.IsTerminal(os.Stdin) {
		terminal = editor.NewFDTerminal(os.Stdin)
		if saved, err = term.GetState(int(os.Stdin.Fd())); err != nil {
			log.Warn("failed to save terminal state", zap.Error(err))
		}
	}

	profile := alias.NewProfile(cfg.Shell.Profile, log.Logger)
	runner := launcher.New(log.Logger)
	defer waitBackground(runner, log.Logger)

	session, err := shell.New(shell.Options{
		Name:            cfg.Shell.Name,
		DefaultIdentity: cfg.Shell.DefaultIdentity,
		Store: identity.NewStore(identity.Options{
			Buckets:       cfg.Limits.HashBuckets,
			MaxIdentities: cfg.Limits.MaxIdentities,
			MaxNameLength: cfg.Limits.MaxNameLength,
			HistorySize:   cfg.Limits.HistorySize,
			MaxLineLength: cfg.Limits.MaxLineLength,
		}),
		Aliases: alias.NewTable(alias.Limits{
			MaxAliases:      cfg.Limits.MaxAliases,
			MaxNameLength:   cfg.Limits.MaxNameLength,
			MaxExpansionLen: cfg.Limits.MaxLineLength,
		}),
		Profile:  profile,
		Launcher: runner,
		Reader:   editor.New(os.Stdin, os.Stdout, terminal, cfg.Limits.MaxLineLength, log.Logger),
		Out:      os.Stdout,
		Logger:   log.Logger,
		Metrics:  metrics,
	})
	if err != nil {
		return err
	}

	if err := session.LoadAliases(); err != nil {
		log.Warn("failed to load aliases; the profile will not be rewritten on exit",
			zap.String("path", profile.Path()),
			zap.Error(err))
	}

	// SIGINT belongs to the foreground child; SIGTERM ends the session.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigs)

	done := make(chan error, 1)
	go func() {
		done <- session.Run(ctx)
	}()

	for {
		select {
		case err := <-done:
			return err
		case sig := <-sigs:
			if sig == os.Interrupt {
				log.Debug("interrupt ignored by shell")
				continue
			}

			log.Info("terminating", zap.String("signal", sig.String()))
			cancel()
			if saved != nil {
				if err := term.Restore(int(os.Stdin.Fd()), saved); err != nil {
					log.Warn("failed to restore terminal", zap.Error(err))
				}
			}
			fmt.Fprintln(os.Stdout)
			return session.Close()
		}
	}
}

// waitBackground gives background children a moment to finish so their
// output is not cut off. Children still running afterwards are left alone.
func waitBackground(runner *launcher.Exec, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), backgroundGrace)
	defer cancel()
	if err := runner.Wait(ctx); err != nil {
		logger.Debug("background children still running at exit", zap.Error(err))
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	if debug {
		cfg.Logging.Level = "debug"
		cfg.Logging.Development = true
	}
	if profilePath != "" {
		cfg.Shell.Profile = profilePath
	}
	if metricsAddr != "" {
		cfg.Metrics.Addr = metricsAddr
	}
	return cfg, cfg.Validate()
}
