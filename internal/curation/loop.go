package curation

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/cull/internal/models"
	"github.com/desertthunder/cull/internal/shared"
)

// State is the decision loop's position in its lifecycle.
type State int

const (
	Ready             State = iota // A track is under the cursor
	AwaitingNextBatch              // The current batch is used up and the next pull has not succeeded
	Exhausted                      // The stream is drained; the session is over
)

func (s State) String() string {
	switch s {
	case Ready:
		return "ready"
	case AwaitingNextBatch:
		return "awaiting_next_batch"
	case Exhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// Finalizer is fired when the loop runs out of tracks.
type Finalizer interface {
	Trigger()
}

// FinalizerFunc adapts a function to [Finalizer].
type FinalizerFunc func()

func (f FinalizerFunc) Trigger() { f() }

// Position describes the cursor within the current batch.
type Position struct {
	Batch int // 1-based number of the batch under the cursor
	Index int // 0-based cursor within the batch
	Len   int // Length of the batch
}

// Stats counts what the loop has seen so far.
type Stats struct {
	Batches  int
	Surfaced int
	Accepted int
	Rejected int
}

// Decided returns the number of accept and reject events applied.
func (s Stats) Decided() int { return s.Accepted + s.Rejected }

// LoopOpts configures a [DecisionLoop].
type LoopOpts struct {
	Source    BatchSource // Usually an [AutoFilter]
	Removals  *RemovalSet
	Finalizer Finalizer // Fired once on exhaustion; may be nil
	Logger    *log.Logger
}

// DecisionLoop is the state machine that walks surfaced tracks one decision at a time.
//
// Inputs must be delivered one at a time. The read accessors ([DecisionLoop.Current],
// [DecisionLoop.State], [DecisionLoop.Position], [DecisionLoop.Stats]) may be called
// from other goroutines.
type DecisionLoop struct {
	source    BatchSource
	removals  *RemovalSet
	finalizer Finalizer
	logger    *log.Logger

	mu    sync.Mutex // guards state, batch, index and stats
	state State
	batch models.Batch
	index int
	stats Stats
}

// NewDecisionLoop pulls the first batch and returns a loop in the [Ready] state.
//
// If the first batch surfaces no tracks, or the stream is empty, it returns
// [shared.ErrEmptyPlaylist]. A failed first fetch returns the [*FetchError].
func NewDecisionLoop(ctx context.Context, opts LoopOpts) (*DecisionLoop, error) {
	if opts.Source == nil {
		return nil, fmt.Errorf("%w: batch source", shared.ErrMissingArgument)
	}
	if opts.Removals == nil {
		opts.Removals = NewRemovalSet()
	}
	if opts.Logger == nil {
		opts.Logger = shared.DiscardLogger()
	}

	batch, err := opts.Source.Next(ctx)
	if errors.Is(err, ErrExhausted) {
		return nil, fmt.Errorf("%w: playlist has no tracks", shared.ErrEmptyPlaylist)
	} else if err != nil {
		return nil, err
	}

	if len(batch) == 0 {
		return nil, fmt.Errorf("%w: first page surfaced no tracks", shared.ErrEmptyPlaylist)
	}

	l := &DecisionLoop{
		source:    opts.Source,
		removals:  opts.Removals,
		finalizer: opts.Finalizer,
		logger:    opts.Logger,
	}
	l.adopt(batch)
	return l, nil
}

// Accept keeps the current track and advances the cursor.
func (l *DecisionLoop) Accept(ctx context.Context) error {
	track, err := l.decide()
	if err != nil {
		return err
	}

	l.mu.Lock()
	l.stats.Accepted++
	l.mu.Unlock()

	l.logger.Debug("keeping", "name", track.Name, "artist", track.Artist)
	return l.advance(ctx)
}

// Reject records the current track for removal and advances the cursor.
func (l *DecisionLoop) Reject(ctx context.Context) error {
	track, err := l.decide()
	if err != nil {
		return err
	}

	l.removals.Record(models.NewRemoval(track, models.ReasonManual))
	l.mu.Lock()
	l.stats.Rejected++
	l.mu.Unlock()

	l.logger.Info("removing", "name", track.Name, "artist", track.Artist)
	return l.advance(ctx)
}

// Retry re-attempts the pull that left the loop in [AwaitingNextBatch].
// In [Ready] it does nothing.
func (l *DecisionLoop) Retry(ctx context.Context) error {
	switch l.State() {
	case Exhausted:
		return shared.ErrSessionOver
	case Ready:
		return nil
	default:
		return l.pull(ctx)
	}
}

// Current returns the track under the cursor. ok is false unless the loop is [Ready].
func (l *DecisionLoop) Current() (track models.Track, ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state != Ready {
		return models.Track{}, false
	}
	return l.batch[l.index], true
}

// State returns the loop's current state.
func (l *DecisionLoop) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Position returns the cursor within the current batch.
func (l *DecisionLoop) Position() Position {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Position{Batch: l.stats.Batches, Index: l.index, Len: len(l.batch)}
}

// Stats returns decision counts.
func (l *DecisionLoop) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stats
}

// Removals returns the set manual rejections are recorded in.
func (l *DecisionLoop) Removals() *RemovalSet { return l.removals }

func (l *DecisionLoop) decide() (models.Track, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch l.state {
	case Exhausted:
		return models.Track{}, shared.ErrSessionOver
	case AwaitingNextBatch:
		return models.Track{}, shared.ErrAwaitingBatch
	}
	return l.batch[l.index], nil
}

func (l *DecisionLoop) advance(ctx context.Context) error {
	l.mu.Lock()
	l.index++
	more := l.index < len(l.batch)
	if !more {
		l.state = AwaitingNextBatch
	}
	l.mu.Unlock()

	if more {
		return nil
	}
	return l.pull(ctx)
}

// pull keeps requesting batches until one surfaces a track or the stream ends.
// On failure the loop stays in [AwaitingNextBatch] with its cursor at the end of the old batch.
func (l *DecisionLoop) pull(ctx context.Context) error {
	for {
		l.logger.Debug("fetching next page", "batch", l.stats.Batches+1)

		batch, err := l.source.Next(ctx)
		if errors.Is(err, ErrExhausted) {
			l.exhaust()
			return nil
		} else if err != nil {
			l.logger.Warn("page fetch failed", "error", err)
			return err
		}

		if len(batch) > 0 {
			l.adopt(batch)
			return nil
		}
	}
}

func (l *DecisionLoop) adopt(batch models.Batch) {
	l.mu.Lock()
	l.batch = batch
	l.index = 0
	l.state = Ready
	l.stats.Batches++
	l.stats.Surfaced += len(batch)
	l.mu.Unlock()
}

func (l *DecisionLoop) exhaust() {
	l.mu.Lock()
	l.state = Exhausted
	l.batch = nil
	l.index = 0
	stats := l.stats
	l.mu.Unlock()

	l.logger.Info("playlist exhausted", "accepted", stats.Accepted, "rejected", stats.Rejected)

	if l.finalizer != nil {
		l.finalizer.Trigger()
	}
}
