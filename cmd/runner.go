package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/finport/internal/identity"
	"github.com/desertthunder/finport/internal/mapping"
	"github.com/desertthunder/finport/internal/repositories"
	"github.com/desertthunder/finport/internal/server"
	"github.com/desertthunder/finport/internal/shared"
	"github.com/desertthunder/finport/internal/tasks"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// The database is opened lazily by [Runner.open] so that commands like preview never touch it.
type Runner struct {
	config     *shared.Config
	configPath string
	logger     *log.Logger
	output     io.Writer
	db         *sql.DB
	ownsDB     bool
	jobs       *repositories.ImportJobRepository
	txns       *repositories.TransactionRepository
	categories *repositories.CategoryRepository
	engine     *tasks.ImportEngine
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Logger     *log.Logger
	Output     io.Writer
	DB         *sql.DB // migrated database; opened from config when nil
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

	r := &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		logger:     opts.Logger,
		output:     opts.Output,
	}
	if opts.DB != nil {
		r.wire(opts.DB)
	}
	return r
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, importCommand, previewCommand, jobsCommand, transactionsCommand, categoriesCommand, tuiCommand, serveCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// SetLogger replaces the logger used by the runner and the engine.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
	if r.db != nil {
		r.engine = r.newEngine()
	}
}

// configure loads the config named by --config and applies --verbose. Runs before every command.
func (r *Runner) configure(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	path := cmd.String("config")
	r.configPath = path

	if _, err := os.Stat(path); err == nil {
		config, err := shared.LoadConfig(path)
		if err != nil {
			return ctx, err
		}
		r.config = config
	} else {
		r.logger.Debug("config file not found, using defaults", "path", path)
	}

	if cmd.Bool("verbose") {
		shared.SetLogLevel(r.logger, log.DebugLevel)
	}
	return ctx, nil
}

// open connects to the configured database and runs pending migrations.
func (r *Runner) open() error {
	if r.db != nil {
		return nil
	}

	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return err
	}
	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)

	applied, err := shared.RunMigrations(db)
	if err != nil {
		db.Close()
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	if applied > 0 {
		r.logger.Debug("applied migrations", "count", applied, "path", r.config.Database.Path)
	}

	r.ownsDB = true
	r.wire(db)
	return nil
}

func (r *Runner) wire(db *sql.DB) {
	r.db = db
	r.jobs = repositories.NewImportJobRepository(db)
	r.txns = repositories.NewTransactionRepository(db)
	r.categories = repositories.NewCategoryRepository(db)
	r.engine = r.newEngine()
}

func (r *Runner) newEngine() *tasks.ImportEngine {
	return tasks.NewImportEngine(r.jobs, r.txns, tasks.EngineOptions{
		BatchSize:        r.config.Import.BatchSize,
		Currency:         r.config.Import.Currency,
		SourceLabel:      r.config.Import.SourceLabel,
		BatchesPerSecond: r.config.Import.BatchesPerSecond,
		Logger:           r.logger,
	})
}

// Close releases the database if the runner opened it.
func (r *Runner) Close() error {
	if r.db == nil || !r.ownsDB {
		return nil
	}
	err := r.db.Close()
	r.db = nil
	return err
}

// userID resolves the owning user from --user, then the environment and config.
func (r *Runner) userID(ctx context.Context, cmd *cli.Command) (string, error) {
	id := cmd.String("user")
	if id == "" {
		id = r.config.ResolveUserID()
	}
	userID, err := identity.Static(id).UserID(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: pass --user, set %s or identity.user_id", err, shared.UserIDEnv)
	}
	return userID, nil
}

// explicitMapping reads the --date, --description and --amount flags.
func explicitMapping(cmd *cli.Command) mapping.ColumnMapping {
	return mapping.ColumnMapping{
		Date:        cmd.String("date"),
		Description: cmd.String("description"),
		Amount:      cmd.String("amount"),
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

// router builds the HTTP handler served by [Runner.Serve].
func (r *Runner) router(staleAfter time.Duration) *server.BasicRouter {
	router := server.NewBasicRouter()
	router.Use(server.Recover(r.logger), server.Logging(r.logger))
	router.Handler(server.NewAPI(r.engine, r.jobs, r.txns, staleAfter, r.logger))
	return router
}
