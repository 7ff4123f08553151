package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/core-tools/hsu-webllm/pkg/artifacts"
	"github.com/core-tools/hsu-webllm/pkg/config"
	domainerrors "github.com/core-tools/hsu-webllm/pkg/errors"
	"github.com/core-tools/hsu-webllm/pkg/lifecycle"
	"github.com/core-tools/hsu-webllm/pkg/logging"
	"github.com/core-tools/hsu-webllm/pkg/portlease"
	"github.com/core-tools/hsu-webllm/pkg/process"
	"github.com/core-tools/hsu-webllm/pkg/staticserver"
)

// exitError carries a process exit code for outcomes that were already
// reported to the user.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

func exitCodeOf(err error) (int, bool) {
	var exit *exitError
	if errors.As(err, &exit) {
		return exit.code, true
	}
	return 0, false
}

// application holds the state shared by all commands.
type application struct {
	global globalOptions
	stdout io.Writer

	// Overridable in tests.
	newSource     func() process.Source
	newSignaler   func() process.Signaler
	newConfirmer  func() lifecycle.Confirmer
	workDir       func() (string, error)
	signalContext func() (context.Context, context.CancelFunc)
}

func newApplication(stdout io.Writer) *application {
	return &application{
		stdout:      stdout,
		newSource:   process.NewSystemSource,
		newSignaler: process.NewSystemSignaler,
		newConfirmer: func() lifecycle.Confirmer {
			return lifecycle.NewStdConsoleConfirmer()
		},
		workDir: os.Getwd,
		signalContext: func() (context.Context, context.CancelFunc) {
			return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		},
	}
}

// setup loads and validates configuration and builds the logger.
func (a *application) setup() (*config.Config, logging.Logger, func(), error) {
	var cfg *config.Config
	if a.global.Config != "" {
		loaded, err := config.LoadConfigFromFile(a.global.Config)
		if err != nil {
			return nil, nil, nil, err
		}
		cfg = loaded
	} else {
		cfg = config.Default()
	}
	if a.global.LogLevel != "" {
		cfg.Log.Level = a.global.LogLevel
	}

	if err := config.ValidateConfig(cfg); err != nil {
		return nil, nil, nil, err
	}

	backend, err := logging.NewZapBackend(cfg.Log)
	if err != nil {
		return nil, nil, nil, err
	}
	logger := logging.NewLogger("webllm: ", backend.LogFuncs())
	return cfg, logger, func() { _ = backend.Sync() }, nil
}

type stopCommand struct {
	Force bool `short:"f" long:"force" description:"stop without asking for confirmation"`

	app *application
}

func (c *stopCommand) Execute(args []string) error {
	cfg, logger, sync, err := c.app.setup()
	if err != nil {
		return err
	}
	defer sync()

	ctx, stop := c.app.signalContext()
	defer stop()

	report, err := c.app.runStop(ctx, cfg, c.Force, logger)
	if err != nil {
		return err
	}

	if err := report.WriteSummary(c.app.stdout); err != nil {
		return err
	}
	if !report.Success() {
		return &exitError{code: 1}
	}
	return nil
}

func (a *application) runStop(ctx context.Context, cfg *config.Config, force bool, logger logging.Logger) (*lifecycle.Report, error) {
	workDir, err := a.workDir()
	if err != nil {
		return nil, domainerrors.NewIOError("failed to determine working directory", err)
	}

	scanner := process.NewScanner(
		a.newSource(),
		process.ScannerOptions{WorkingDirectory: workDir},
		logging.WithPrefix(logger, "scanner: "),
	)
	terminator := process.NewTerminator(
		a.newSignaler(),
		process.TerminatorOptions{},
		logging.WithPrefix(logger, "terminator: "),
	)
	cleaner := artifacts.NewCleaner(workDir, logging.WithPrefix(logger, "cleaner: "))

	var confirmer lifecycle.Confirmer
	if !force {
		confirmer = a.newConfirmer()
	}

	orchestrator := lifecycle.NewOrchestrator(scanner, terminator, cleaner, confirmer, lifecycle.Options{
		Force:       force,
		GracePeriod: cfg.Stop.GracePeriod,
		SettleDelay: *cfg.Stop.SettleDelay,
		Selectors:   cfg.Stop.Selectors,
		Artifacts:   cfg.Stop.Artifacts,
	}, logger)

	return orchestrator.Run(ctx)
}

type serveCommand struct {
	Host     string `long:"host" description:"interface to listen on (default: all)"`
	Port     int    `long:"port" description:"preferred port"`
	Attempts int    `long:"attempts" description:"number of consecutive ports to try"`
	Dir      string `long:"dir" description:"directory to serve"`
	Page     string `long:"page" description:"page to announce"`

	app *application
}

// apply lets command-line options override the configuration file.
func (c *serveCommand) apply(cfg *config.ServeConfig) {
	if c.Host != "" {
		cfg.Host = c.Host
	}
	if c.Port != 0 {
		cfg.Port = c.Port
	}
	if c.Attempts != 0 {
		cfg.Attempts = c.Attempts
	}
	if c.Dir != "" {
		cfg.Dir = c.Dir
	}
	if c.Page != "" {
		cfg.Page = c.Page
	}
}

func (c *serveCommand) Execute(args []string) error {
	cfg, logger, sync, err := c.app.setup()
	if err != nil {
		return err
	}
	defer sync()

	c.apply(&cfg.Serve)
	if err := portlease.ValidateRange(cfg.Serve.Port, cfg.Serve.Attempts); err != nil {
		return err
	}

	ctx, stop := c.app.signalContext()
	defer stop()

	return c.app.runServe(ctx, cfg.Serve, logger)
}

func (a *application) runServe(ctx context.Context, cfg config.ServeConfig, logger logging.Logger) error {
	server, err := staticserver.New(staticserver.Options{Root: cfg.Dir}, logging.WithPrefix(logger, "server: "))
	if err != nil {
		return err
	}

	lease, err := portlease.Bind(cfg.Host, cfg.Port, cfg.Attempts, logging.WithPrefix(logger, "portlease: "))
	if err != nil {
		return err
	}

	fmt.Fprintf(a.stdout, "Serving %s at %s\n", cfg.Dir, staticserver.URL(lease, cfg.Page))
	fmt.Fprintln(a.stdout, "Press Ctrl+C to stop")

	return server.Serve(ctx, lease)
}
