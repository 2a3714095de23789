package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/huh/spinner"
	"github.com/charmbracelet/log"
	"github.com/desertthunder/cull/internal/auth"
	"github.com/desertthunder/cull/internal/repositories"
	"github.com/desertthunder/cull/internal/services"
	"github.com/desertthunder/cull/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config      *shared.Config
	configPath  string
	spotify     *services.SpotifyService
	spotifyURL  string
	httpClient  *http.Client
	logger      *log.Logger
	output      io.Writer
	interactive bool
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config      *shared.Config
	ConfigPath  string
	Spotify     *services.SpotifyService
	SpotifyURL  string // Overrides the Spotify API base URL
	HTTPClient  *http.Client
	Logger      *log.Logger
	Output      io.Writer
	Interactive bool // Spinners and prompts may take over the terminal
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

	return &Runner{
		config:      opts.Config,
		configPath:  opts.ConfigPath,
		spotify:     opts.Spotify,
		spotifyURL:  opts.SpotifyURL,
		httpClient:  opts.HTTPClient,
		logger:      opts.Logger,
		output:      opts.Output,
		interactive: opts.Interactive,
	}
}

// App builds the root command.
func (r *Runner) App() *cli.Command {
	return &cli.Command{
		Name:     "cull",
		Usage:    "Prune a Spotify playlist one track at a time",
		Version:  "0.3.0",
		Flags:    r.flags(),
		Before:   r.Before,
		Commands: r.register(),
	}
}

func (r *Runner) flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to configuration file",
			Value:   "config.toml",
			Sources: cli.EnvVars("CULL_CONFIG"),
		},
		&cli.BoolFlag{
			Name:  "debug",
			Usage: "Log at debug level",
		},
	}
}

// Before loads the configuration file when present and builds the Spotify service from its credentials.
func (r *Runner) Before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if cmd.Bool("debug") {
		shared.SetLogLevel(r.logger, log.DebugLevel)
	}

	if path := cmd.String("config"); path != "" {
		r.configPath = path
	}

	if _, err := os.Stat(r.configPath); err == nil {
		config, err := shared.LoadConfig(r.configPath)
		if err != nil {
			return ctx, err
		}
		r.config = config
		r.logger.Debug("loaded config", "path", r.configPath)
	}

	if r.spotify == nil && r.config.Credentials.Spotify.Configured() {
		svc, err := services.NewSpotifyService(r.config.Credentials.Spotify.Map())
		if err != nil {
			return ctx, fmt.Errorf("failed to create Spotify service: %w", err)
		}
		if r.spotifyURL != "" {
			svc.WithBaseURL(r.spotifyURL)
		}
		r.spotify = svc
	}

	return ctx, nil
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, playlistsCommand, curateCommand, historyCommand, ruleCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// SetLogger replaces the logger, e.g. with a file logger while the TUI owns the terminal.
func (r *Runner) SetLogger(l *log.Logger) {
	r.logger = l
}

func (r *Runner) requireSpotify() (*services.SpotifyService, error) {
	if r.spotify == nil {
		return nil, fmt.Errorf("%w: set credentials.spotify.client_id and client_secret in %s", shared.ErrMissingCredentials, r.configPath)
	}
	return r.spotify, nil
}

func (r *Runner) openDatabase() (*sql.DB, error) {
	db, err := shared.OpenDatabase(r.config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", r.config.Database.Path, err)
	}
	return db, nil
}

// connection is an authenticated Spotify client plus the database backing its session.
type connection struct {
	db       *sql.DB
	sessions *repositories.SessionRepository
	resolver *auth.Resolver
	account  string
	spotify  *services.SpotifyService
}

func (c *connection) Close() error {
	return c.db.Close()
}

// connect resolves a session for the configured account and authenticates the Spotify client with it.
// With login set, a missing or dead session starts the browser flow.
func (r *Runner) connect(ctx context.Context, login bool) (*connection, error) {
	svc, err := r.requireSpotify()
	if err != nil {
		return nil, err
	}

	db, err := r.openDatabase()
	if err != nil {
		return nil, err
	}

	sessions := repositories.NewSessionRepository(db)

	var fresh auth.Login
	if login {
		fresh = func(ctx context.Context) (*oauth2.Token, error) {
			return r.doOAuth(ctx, svc)
		}
	}

	account := r.config.Credentials.Spotify.AccountName()
	resolver := auth.NewResolver(sessions, fresh, r.logger)

	session, err := resolver.Resolve(ctx, account)
	if err != nil {
		db.Close()
		return nil, err
	}

	svc.SetTokenRefreshCallback(resolver.PersistToken(context.WithoutCancel(ctx), account))
	if err := svc.Authenticate(ctx, session.Token); err != nil {
		db.Close()
		return nil, err
	}

	return &connection{db: db, sessions: sessions, resolver: resolver, account: account, spotify: svc}, nil
}

// spin runs action behind a spinner when the terminal is interactive.
func (r *Runner) spin(ctx context.Context, title string, action func(context.Context) error) error {
	if !r.interactive {
		return action(ctx)
	}
	return spinner.New().Title(title).Context(ctx).ActionWithErr(action).Run()
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
