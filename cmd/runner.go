package main

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/plexio/internal/metrics"
	"github.com/desertthunder/plexio/internal/repositories"
	"github.com/desertthunder/plexio/internal/services"
	"github.com/desertthunder/plexio/internal/shared"
	"github.com/desertthunder/plexio/internal/tasks"
	"github.com/spf13/afero"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config      *shared.Config
	configPath  string
	configSet   bool
	logger      *log.Logger
	output      io.Writer
	input       io.Reader
	fs          afero.Fs
	catalog     services.Catalog
	metrics     *metrics.Registry
	account     services.AccountOpts
	openBrowser func(string) error

	db      *sql.DB
	history *repositories.HistoryAdapter
}

// RunnerOpts contains configuration options for creating a Runner.
//
// Catalog skips the connection to the configured server; Account overrides the plex.tv endpoints
// used by login.
type RunnerOpts struct {
	Config      *shared.Config
	ConfigPath  string
	Logger      *log.Logger
	Output      io.Writer
	Input       io.Reader
	Fs          afero.Fs
	Catalog     services.Catalog
	Metrics     *metrics.Registry
	Account     services.AccountOpts
	OpenBrowser func(string) error
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	configSet := opts.Config != nil
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.ConfigPath == "" {
		opts.ConfigPath = "config.toml"
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Input == nil {
		opts.Input = os.Stdin
	}
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New()
	}
	if opts.OpenBrowser == nil {
		opts.OpenBrowser = shared.OpenBrowser
	}

	return &Runner{
		config:      opts.Config,
		configPath:  opts.ConfigPath,
		configSet:   configSet,
		logger:      opts.Logger,
		output:      opts.Output,
		input:       opts.Input,
		fs:          opts.Fs,
		catalog:     opts.Catalog,
		metrics:     opts.Metrics,
		account:     opts.Account,
		openBrowser: opts.OpenBrowser,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, loginCommand, playlistsCommand, previewCommand, importCommand, missingCommand, historyCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// SetLogger replaces the logger used by the runner and everything it builds afterwards.
func (r *Runner) SetLogger(l *log.Logger) {
	r.logger = l
}

// Close releases the history database, if it was opened.
func (r *Runner) Close() error {
	if r.db == nil {
		return nil
	}
	err := r.db.Close()
	r.db, r.history = nil, nil
	return err
}

// loadConfig reads --config unless the runner was built with an explicit config.
func (r *Runner) loadConfig(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if cmd.Bool("verbose") {
		shared.SetLogLevel(r.logger, log.DebugLevel)
	}
	if r.configSet && !cmd.IsSet("config") {
		return ctx, nil
	}

	r.configPath = cmd.String("config")
	if _, err := os.Stat(r.configPath); err != nil {
		r.logger.Debug("config file not found, using defaults", "path", r.configPath)
		r.config = shared.DefaultConfig()
		return ctx, nil
	}

	config, err := shared.LoadConfig(r.configPath)
	if err != nil {
		return ctx, err
	}
	r.config = config
	r.configSet = true
	return ctx, nil
}

// connect returns the catalog session, connecting to the configured server on first use.
//
// The session is wrapped in a circuit breaker that reports to the runner's metrics.
func (r *Runner) connect(ctx context.Context) (services.Catalog, error) {
	if r.catalog != nil {
		return r.catalog, nil
	}

	plex := r.config.Plex
	svc, err := services.NewPlexService(services.PlexOpts{
		BaseURL:           plex.ServerURL,
		Token:             plex.Token,
		ClientID:          plex.ClientID,
		Timeout:           plex.Timeout(),
		RequestsPerSecond: plex.RequestsPerSecond,
		MaxRetries:        plex.MaxRetries,
		Logger:            r.logger,
	})
	if err != nil {
		return nil, err
	}
	if err := svc.Connect(ctx); err != nil {
		return nil, err
	}
	r.logger.Info("connected", "server", svc.Name())

	r.catalog = services.NewBreakerCatalog(svc, services.BreakerOpts{
		Name:     "plex",
		Observer: r.metrics,
		Logger:   r.logger,
	})
	return r.catalog, nil
}

// openHistory opens the configured database on first use.
func (r *Runner) openHistory() (*repositories.HistoryAdapter, error) {
	if r.history != nil {
		return r.history, nil
	}
	db, err := shared.OpenDatabase(r.config.Database)
	if err != nil {
		return nil, err
	}
	r.db = db
	r.history = repositories.NewHistoryAdapter(repositories.NewImportRunRepository(db))
	return r.history, nil
}

// newEngine builds a PlaylistEngine from the config. history may be nil.
func (r *Runner) newEngine(history tasks.HistoryRecorder) *tasks.PlaylistEngine {
	return tasks.NewPlaylistEngine(tasks.EngineOpts{
		Fs:         r.fs,
		Workers:    r.config.Export.Workers,
		Section:    r.config.Plex.MoviesSection,
		MissingDir: r.config.Import.MissingDir,
		Observer:   r.metrics,
		History:    history,
		Logger:     r.logger,
	})
}

// confirm asks a yes/no question on the runner's input. Anything but y or yes is a no.
func (r *Runner) confirm(prompt string) bool {
	r.writePlain("%s [y/N]: ", prompt)
	line, err := bufio.NewReader(r.input).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	output, err := shared.MarshalJSON(data, pretty)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
