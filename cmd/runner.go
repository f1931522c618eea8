package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/treeglot/treeglot/internal/jobs"
	"github.com/treeglot/treeglot/internal/repositories"
	"github.com/treeglot/treeglot/internal/shared"
	"github.com/treeglot/treeglot/internal/translator"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	provider   translator.Translator
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
//
// Provider overrides the configured translation client; tests use it to avoid
// real provider calls.
type RunnerOpts struct {
	Config     *shared.Config
	Provider   translator.Translator
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	return &Runner{
		config:     opts.Config,
		provider:   opts.Provider,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
	}
}

// SetLogger replaces the runner's logger. Used when a TUI owns the terminal.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, runCommand, jobsCommand, serveCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// stack bundles a database handle with the repositories built on it.
type stack struct {
	db           *sql.DB
	jobs         *repositories.JobRepository
	chunks       *repositories.ChunkRepository
	translations *repositories.TranslationRepository
}

func (s *stack) Close() error {
	return s.db.Close()
}

// openStack opens the configured database, applies migrations, and builds the
// repositories.
func (r *Runner) openStack() (*stack, error) {
	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &stack{
		db:           db,
		jobs:         repositories.NewJobRepository(db),
		chunks:       repositories.NewChunkRepository(db),
		translations: repositories.NewTranslationRepository(db),
	}, nil
}

// buildCoordinator wires a coordinator on top of the stack. progress may be nil.
func (r *Runner) buildCoordinator(s *stack, progress chan<- jobs.ProgressUpdate) (*jobs.Coordinator, error) {
	provider := r.provider
	if provider == nil {
		client, err := translator.NewClient(r.config.Translator, r.httpClient, r.logger)
		if err != nil {
			return nil, err
		}
		provider = client
	}

	hub := jobs.NewSignalHub()
	worker := jobs.NewChunkWorker(
		s.jobs, s.chunks, s.translations,
		provider, hub,
		r.config.Jobs.WorkerRetries,
		progress, r.logger,
	)

	return jobs.NewCoordinator(
		s.jobs, s.chunks, s.translations,
		worker, hub,
		r.config.Jobs,
		progress, r.logger,
	), nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

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

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
