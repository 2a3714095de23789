package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/cull/internal/models"
	"github.com/desertthunder/cull/internal/rules"
	"github.com/desertthunder/cull/internal/shared"
	"github.com/urfave/cli/v3"
)

// RuleCheck compiles a keep rule and, given a playlist, evaluates it against the first page of tracks.
//
// Without an argument the configured curation.rule is checked.
func (r *Runner) RuleCheck(ctx context.Context, cmd *cli.Command) error {
	expr := cmd.StringArg("expr")
	if expr == "" {
		expr = r.config.Curation.Rule
	}
	if expr == "" {
		return fmt.Errorf("%w: pass a rule or set curation.rule in %s", shared.ErrMissingArgument, r.configPath)
	}

	rule, err := rules.Compile(expr)
	if err != nil {
		return err
	}
	r.writePlain("✓ Rule compiles: %s\n", rule)

	playlistID := cmd.String("playlist")
	if playlistID == "" {
		return nil
	}

	conn, err := r.connect(ctx, true)
	if err != nil {
		return err
	}
	defer conn.Close()

	page, err := conn.spotify.PlaylistPage(ctx, playlistID, 0, r.config.Curation.PageSize)
	if err != nil {
		return err
	}

	var kept, dropped []models.Track
	for _, t := range page.Tracks {
		keep, err := rule.Eval(t)
		if err != nil {
			r.writePlain("⚠ %s - %s: %v (kept)\n", t.Artist, t.Name, err)
			keep = true
		}
		if keep {
			kept = append(kept, t)
		} else {
			dropped = append(dropped, t)
		}
	}

	r.writePlainln("First %d of %d tracks: %d kept, %d dropped", len(page.Tracks), page.Total, len(kept), len(dropped))
	for i, t := range dropped {
		r.writePlain("%d. %s - %s (popularity %d)\n", i+1, t.Artist, t.Name, t.Popularity)
	}
	return nil
}

// RuleVars prints the track fields a rule can reference.
func (r *Runner) RuleVars(ctx context.Context, cmd *cli.Command) error {
	r.writePlainHeader("Keep rule variables")
	for _, v := range rules.Variables {
		r.writePlain("%-15s %-7s %s\n", v.Name, v.Type, v.Help)
	}
	r.writePlainln("Rules are CEL expressions; string helpers such as lowerAscii() are available.")
	r.writePlain("Example: popularity >= 40 && !explicit\n")
	return nil
}
