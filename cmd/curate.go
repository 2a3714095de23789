package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/desertthunder/cull/internal/artwork"
	"github.com/desertthunder/cull/internal/curation"
	"github.com/desertthunder/cull/internal/models"
	"github.com/desertthunder/cull/internal/repositories"
	"github.com/desertthunder/cull/internal/rules"
	"github.com/desertthunder/cull/internal/shared"
	"github.com/desertthunder/cull/internal/ui"
	"github.com/urfave/cli/v3"
)

const tuiLogPath = "./tmp/cull-tui.log"

// Curate runs an interactive curation session over one playlist and commits the removals on exit.
func (r *Runner) Curate(ctx context.Context, cmd *cli.Command) error {
	settings := r.config.Curation
	if cmd.IsSet("rule") {
		settings.Rule = cmd.String("rule")
	}
	if n := cmd.Int("page-size"); n > 0 {
		settings.PageSize = n
	}
	if rate := cmd.Float("commit-rate"); rate > 0 {
		settings.CommitRate = rate
	}
	settings.DryRun = settings.DryRun || cmd.Bool("dry-run")
	settings.Normalize()

	rule, err := rules.Compile(settings.Rule)
	if err != nil {
		return err
	}

	// Redirect logs to file to avoid interfering with TUI rendering
	logger, err := shared.NewFileLogger(tuiLogPath)
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.SetLogger(logger)

	conn, err := r.connect(ctx, true)
	if err != nil {
		return err
	}
	defer conn.Close()

	playlist, err := r.choosePlaylist(ctx, conn, cmd.String("playlist"))
	if err != nil {
		return err
	}

	logger = shared.WithLogger(logger, "playlist", playlist.ID)
	logger.Info("starting curation", "rule", rule.String(), "page_size", settings.PageSize, "dry_run", settings.DryRun)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	removals := curation.NewRemovalSet()
	filter := curation.NewAutoFilter(curation.FilterOpts{
		Source:   curation.NewTrackStream(conn.spotify, playlist.ID, settings.PageSize),
		Keep:     rule.WithLogger(logger).Predicate(),
		Removals: removals,
		Logger:   logger,
	})

	var finisher *curation.Finisher
	guard := curation.NewFinalizeGuard(func() error { return finisher.Finish() }, logger)

	var loop *curation.DecisionLoop
	err = r.spin(ctx, "Loading "+playlist.Name+"...", func(ctx context.Context) error {
		var err error
		loop, err = curation.NewDecisionLoop(ctx, curation.LoopOpts{
			Source:    filter,
			Removals:  removals,
			Finalizer: curation.FinalizerFunc(func() { go guard.Trigger() }),
			Logger:    logger,
		})
		return err
	})
	if err != nil {
		return err
	}

	var remover curation.Remover = conn.spotify
	if settings.DryRun {
		remover = curation.DryRunRemover{Logger: logger}
	}

	progress := make(chan curation.ProgressUpdate, 64)
	finished := make(chan struct{})
	finisher = curation.NewFinisher(ctx, curation.FinisherOpts{
		Run: &models.Run{
			ID:         shared.GenerateID(),
			Account:    conn.account,
			PlaylistID: playlist.ID,
			Rule:       rule.String(),
			DryRun:     settings.DryRun,
			StartedAt:  time.Now(),
		},
		Removals:  removals,
		Committer: curation.NewCommitter(remover, playlist.ID, settings.CommitRate, logger),
		Loop:      loop,
		Session: func() *models.Session {
			return &models.Session{Account: conn.account, Token: conn.spotify.Token()}
		},
		Sessions:  conn.resolver,
		Runs:      repositories.NewRunRepository(conn.db),
		Terminate: sync.OnceFunc(func() { close(finished) }),
		Progress:  progress,
		Logger:    logger,
	})

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer stop()
	go func() {
		<-sigCtx.Done()
		if ctx.Err() == nil && !guard.Fired() {
			logger.Warn("signal received, saving")
			guard.Trigger()
		}
	}()

	opts := ui.Options{
		Playlist: playlist.Name,
		Rule:     rule.String(),
		DryRun:   settings.DryRun,
		Loop:     loop,
		Save:     guard.Trigger,
		Progress: progress,
		Finished: finished,
		Logger:   logger,
	}
	if !cmd.Bool("no-art") {
		opts.Artwork = artwork.NewLoader(r.httpClient, settings.ArtworkWidth)
	}

	p := tea.NewProgram(ui.NewModel(ctx, opts), tea.WithAltScreen(), tea.WithContext(ctx), tea.WithoutSignalHandler())
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		logger.Error("TUI exited with error", "error", err)
	}

	guard.Trigger()

	return r.report(finisher.Report())
}

// report prints the outcome of a session. It fails when any removal failed.
func (r *Runner) report(report *curation.Report) error {
	r.writePlain("%s\n", report.Summary())
	if report == nil {
		return nil
	}

	if report.Run != nil && report.Run.Sequence > 0 {
		r.writePlain("Recorded as run #%d (cull history show %d)\n", report.Run.Sequence, report.Run.Sequence)
	}
	for _, err := range report.Errors {
		r.writePlain("⚠ %v\n", err)
	}

	if !report.Failed() {
		return nil
	}

	r.writePlainln("Tracks still in the playlist:")
	for _, id := range report.FailedIDs {
		r.writePlain("  %s\n", id)
	}
	return fmt.Errorf("%w: %d of %d removals failed, see %s", shared.ErrCommit, len(report.FailedIDs), len(report.Removals), tuiLogPath)
}

// choosePlaylist matches ref against the user's playlists by ID or name, prompting when ref is empty.
// An unmatched ref is used as a playlist ID as is.
func (r *Runner) choosePlaylist(ctx context.Context, conn *connection, ref string) (models.Playlist, error) {
	var playlists []models.Playlist
	err := r.spin(ctx, "Fetching playlists...", func(ctx context.Context) error {
		var err error
		playlists, err = conn.spotify.Playlists(ctx)
		return err
	})
	if err != nil {
		return models.Playlist{}, err
	}

	if ref != "" {
		for _, p := range playlists {
			if p.ID == ref || strings.EqualFold(p.Name, ref) {
				return p, nil
			}
		}
		return models.Playlist{ID: ref, Name: ref}, nil
	}

	if !r.interactive {
		return models.Playlist{}, fmt.Errorf("%w: --playlist", shared.ErrMissingArgument)
	}
	if len(playlists) == 0 {
		return models.Playlist{}, fmt.Errorf("%w: no playlists found", shared.ErrPlaylistNotFound)
	}

	options := make([]huh.Option[string], len(playlists))
	for i, p := range playlists {
		options[i] = huh.NewOption(fmt.Sprintf("%s (%d tracks)", p.Name, p.TrackCount), p.ID)
	}

	var id string
	form := huh.NewForm(huh.NewGroup(
		huh.NewSelect[string]().
			Height(12).
			Title("Choose a playlist to curate").
			Options(options...).
			Value(&id),
	))
	if err := form.RunWithContext(ctx); err != nil {
		return models.Playlist{}, err
	}

	for _, p := range playlists {
		if p.ID == id {
			return p, nil
		}
	}
	return models.Playlist{ID: id, Name: id}, nil
}
