package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/chartx/internal/auth"
	"github.com/desertthunder/chartx/internal/charts"
	"github.com/desertthunder/chartx/internal/repositories"
	"github.com/desertthunder/chartx/internal/services"
	"github.com/desertthunder/chartx/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/time/rate"
)

const defaultAuthTimeout = 2 * time.Minute

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config      *shared.Config
	configPath  string
	httpClient  *http.Client
	logger      *log.Logger
	output      io.Writer
	provider    *auth.Provider
	newService  func(services.TokenSource) services.Service
	charts      charts.Source
	openBrowser func(string) error
	authTimeout time.Duration

	dbOnce sync.Once
	db     *sql.DB
	dbErr  error
}

// RunnerOpts contains configuration options for creating a Runner.
//
// Provider, NewService and Charts default to the Spotify and Billboard implementations.
type RunnerOpts struct {
	Config      *shared.Config
	ConfigPath  string
	HTTPClient  *http.Client
	Logger      *log.Logger
	Output      io.Writer
	Provider    *auth.Provider
	NewService  func(services.TokenSource) services.Service
	Charts      charts.Source
	OpenBrowser func(string) error
	AuthTimeout time.Duration
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
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.OpenBrowser == nil {
		opts.OpenBrowser = shared.OpenBrowser
	}
	if opts.AuthTimeout <= 0 {
		opts.AuthTimeout = defaultAuthTimeout
	}
	if opts.Provider == nil {
		opts.Provider = auth.NewProvider(opts.Config.Credentials.Spotify.RedirectURI)
	}

	r := &Runner{
		config:      opts.Config,
		configPath:  opts.ConfigPath,
		httpClient:  opts.HTTPClient,
		logger:      opts.Logger,
		output:      opts.Output,
		provider:    opts.Provider,
		newService:  opts.NewService,
		charts:      opts.Charts,
		openBrowser: opts.OpenBrowser,
		authTimeout: opts.AuthTimeout,
	}

	if r.newService == nil {
		limiter := rate.NewLimiter(rate.Inf, 1)
		if r.config.Build.RateLimit > 0 {
			limiter = rate.NewLimiter(rate.Limit(r.config.Build.RateLimit), 1)
		}
		r.newService = func(tokens services.TokenSource) services.Service {
			return services.NewSpotifyService(tokens,
				services.WithHTTPClient(r.httpClient),
				services.WithRateLimiter(limiter),
				services.WithLogger(r.logger),
			)
		}
	}
	return r
}

// SetLogger replaces the runner's logger; the TUI points it at a file.
func (r *Runner) SetLogger(l *log.Logger) {
	r.logger = l
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		serveCommand, chartCommand, buildCommand, previewCommand, historyCommand, cacheCommand, setupCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// database opens the configured database once and runs pending migrations.
func (r *Runner) database() (*sql.DB, error) {
	r.dbOnce.Do(func() {
		r.db, r.dbErr = shared.OpenDatabase(r.config.Database, r.logger)
	})
	return r.db, r.dbErr
}

// Close releases the database handle, if one was opened.
func (r *Runner) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// chartSource returns the chart source, wrapped with the database cache when enabled.
func (r *Runner) chartSource() (charts.Source, error) {
	source := r.charts
	if source == nil {
		source = charts.NewBillboardSource(r.config.Chart, r.httpClient, r.logger)
	}
	if !r.config.Chart.Cache {
		return source, nil
	}

	db, err := r.database()
	if err != nil {
		return nil, err
	}
	return charts.NewCachedSource(source, repositories.NewChartRepository(db), r.logger), nil
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
