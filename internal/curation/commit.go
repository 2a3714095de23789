package curation

import (
	"context"
	"errors"
	"slices"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/cull/internal/models"
	"github.com/desertthunder/cull/internal/shared"
	"golang.org/x/time/rate"
)

// Remover deletes the single playlist entry holding trackID at position.
type Remover interface {
	RemoveTrack(ctx context.Context, playlistID, trackID string, position int) error
}

// RemoverFunc adapts a function to [Remover].
type RemoverFunc func(ctx context.Context, playlistID, trackID string, position int) error

func (f RemoverFunc) RemoveTrack(ctx context.Context, playlistID, trackID string, position int) error {
	return f(ctx, playlistID, trackID, position)
}

// DryRunRemover logs each removal instead of performing it.
type DryRunRemover struct {
	Logger *log.Logger
}

func (d DryRunRemover) RemoveTrack(_ context.Context, playlistID, trackID string, position int) error {
	if d.Logger != nil {
		d.Logger.Info("dry run: would remove", "playlist", playlistID, "track", trackID, "position", position)
	}
	return nil
}

// CommitResult holds the outcome of a [Committer.Commit] call.
type CommitResult struct {
	Removals  []models.Removal // Every removal attempted, in order, with its outcome set
	Failures  []*CommitError
	Committed int
}

// Err joins every per-track failure, or returns nil.
func (r *CommitResult) Err() error {
	if r == nil || len(r.Failures) == 0 {
		return nil
	}

	errs := make([]error, 0, len(r.Failures))
	for _, f := range r.Failures {
		errs = append(errs, f)
	}
	return errors.Join(errs...)
}

// FailedIDs lists the track IDs whose removal failed, in commit order.
func (r *CommitResult) FailedIDs() []string {
	if r == nil {
		return nil
	}

	ids := make([]string, 0, len(r.Failures))
	for _, f := range r.Failures {
		ids = append(ids, f.TrackID)
	}
	return ids
}

// Committer issues one removal request per track, in order, paced by a rate limiter.
type Committer struct {
	remover    Remover
	playlistID string
	limiter    *rate.Limiter
	logger     *log.Logger
	progress   chan<- ProgressUpdate
}

// NewCommitter creates a [Committer]. A perSecond of zero or less disables pacing.
func NewCommitter(remover Remover, playlistID string, perSecond float64, logger *log.Logger) *Committer {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	if logger == nil {
		logger = shared.DiscardLogger()
	}

	return &Committer{
		remover:    remover,
		playlistID: playlistID,
		limiter:    rate.NewLimiter(limit, 1),
		logger:     logger,
	}
}

// WithProgress sets the channel progress updates are sent on.
func (c *Committer) WithProgress(progress chan<- ProgressUpdate) *Committer {
	c.progress = progress
	return c
}

// Commit attempts every removal. A failure is recorded and the next removal still runs.
//
// Removal positions refer to the playlist as it was read. Each request is sent with its
// position moved down by the number of earlier entries already removed.
func (c *Committer) Commit(ctx context.Context, removals []models.Removal) *CommitResult {
	result := &CommitResult{Removals: make([]models.Removal, 0, len(removals))}
	removed := make([]int, 0, len(removals)) // sorted positions taken out so far

	for i, r := range removals {
		sendProgress(c.progress, commitUpdate(i+1, len(removals), r))

		err := c.limiter.Wait(ctx)
		if err == nil {
			shift, _ := slices.BinarySearch(removed, r.Position)
			err = c.remover.RemoveTrack(ctx, c.playlistID, r.TrackID, r.Position-shift)
		}

		if err != nil {
			c.logger.Warn("removal failed", "track", r.TrackID, "position", r.Position, "name", r.Name, "error", err)
			r.Error = err.Error()
			result.Failures = append(result.Failures, &CommitError{TrackID: r.TrackID, Err: err})
		} else {
			c.logger.Info("removed", "track", r.TrackID, "name", r.Name, "reason", r.Reason)
			r.Committed = true
			result.Committed++

			at, _ := slices.BinarySearch(removed, r.Position)
			removed = slices.Insert(removed, at, r.Position)
		}

		result.Removals = append(result.Removals, r)
	}

	return result
}
