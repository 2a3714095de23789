package curation

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/cull/internal/models"
	"github.com/desertthunder/cull/internal/shared"
)

// Predicate decides whether a track is surfaced (true) or auto-rejected (false).
// Predicates must be pure; the [AutoFilter] records rejections.
type Predicate func(models.Track) bool

// KeepAll is the default [Predicate]; it never auto-rejects.
func KeepAll(models.Track) bool { return true }

// AutoFilter wraps a [BatchSource] and splits each batch into surfaced tracks
// and auto-rejected tracks, recording the latter in a [RemovalSet].
type AutoFilter struct {
	source   BatchSource
	keep     Predicate
	removals *RemovalSet
	logger   *log.Logger
	rejected int
}

// FilterOpts configures an [AutoFilter].
type FilterOpts struct {
	Source   BatchSource
	Keep     Predicate // Defaults to [KeepAll]
	Removals *RemovalSet
	Logger   *log.Logger
}

// NewAutoFilter creates an [AutoFilter] from opts.
func NewAutoFilter(opts FilterOpts) *AutoFilter {
	if opts.Keep == nil {
		opts.Keep = KeepAll
	}
	if opts.Removals == nil {
		opts.Removals = NewRemovalSet()
	}
	if opts.Logger == nil {
		opts.Logger = shared.DiscardLogger()
	}

	return &AutoFilter{
		source:   opts.Source,
		keep:     opts.Keep,
		removals: opts.Removals,
		logger:   opts.Logger,
	}
}

// Apply evaluates the predicate once per track, in order. Rejected tracks are
// recorded immediately; kept tracks are returned in their original order.
func (f *AutoFilter) Apply(batch models.Batch) models.Batch {
	surfaced := make(models.Batch, 0, len(batch))

	for _, track := range batch {
		if f.keep(track) {
			surfaced = append(surfaced, track)
			continue
		}

		if f.removals.Record(models.NewRemoval(track, models.ReasonAuto)) {
			f.rejected++
			f.logger.Info("auto removing", "name", track.Name, "artist", track.Artist)
		}
	}

	return surfaced
}

// Next pulls the next batch from the source and filters it.
func (f *AutoFilter) Next(ctx context.Context) (models.Batch, error) {
	if f.source == nil {
		return nil, ErrExhausted
	}

	batch, err := f.source.Next(ctx)
	if err != nil {
		return nil, err
	}

	return f.Apply(batch), nil
}

// Rejected returns the number of distinct tracks auto-rejected so far.
func (f *AutoFilter) Rejected() int { return f.rejected }

// Removals returns the set rejections are recorded in.
func (f *AutoFilter) Removals() *RemovalSet { return f.removals }
