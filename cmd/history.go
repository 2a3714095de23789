package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/cull/internal/formatter"
	"github.com/desertthunder/cull/internal/repositories"
	"github.com/desertthunder/cull/internal/shared"
	"github.com/urfave/cli/v3"
)

// HistoryList prints recorded runs, newest first.
func (r *Runner) HistoryList(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	runs, err := repositories.NewRunRepository(db).List(ctx, map[string]any{
		"playlist_id": cmd.String("playlist"),
		"account":     r.config.Credentials.Spotify.AccountName(),
		"limit":       cmd.Int("limit"),
	})
	if err != nil {
		return err
	}

	out, err := formatter.FormatRuns(format, runs)
	if err != nil {
		return err
	}
	return r.writePlain("%s", out)
}

// HistoryShow prints one run by ID or sequence number, or writes it to --output.
func (r *Runner) HistoryShow(ctx context.Context, cmd *cli.Command) error {
	ref := cmd.StringArg("run")
	if ref == "" {
		return fmt.Errorf("%w: run ID or number", shared.ErrMissingArgument)
	}

	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	run, err := repositories.NewRunRepository(db).Get(ctx, ref)
	if err != nil {
		return err
	}

	if cmd.String("output") != "" || cmd.Bool("save") {
		path, err := formatter.WriteExport(format, run, cmd.String("output"))
		if err != nil {
			return err
		}
		r.logger.Info("run exported", "path", path)
		return r.writePlain("✓ Run #%d written to %s\n", run.Sequence, path)
	}

	out, err := formatter.FormatRun(format, run)
	if err != nil {
		return err
	}
	return r.writePlain("%s", out)
}
