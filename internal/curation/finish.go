package curation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/cull/internal/models"
	"github.com/desertthunder/cull/internal/shared"
)

// SessionPersister writes a session back to the session cache.
type SessionPersister interface {
	Persist(ctx context.Context, session *models.Session) error
}

// RunRecorder stores a finished run and its removals.
type RunRecorder interface {
	CreateRun(ctx context.Context, run *models.Run) error
}

// LoopStatus is the read-only view of a [DecisionLoop] the finisher reports on.
type LoopStatus interface {
	Stats() Stats
	State() State
}

// Report is what a finished session produced.
type Report struct {
	Run       *models.Run
	Removals  []models.Removal
	Committed int
	FailedIDs []string
	DryRun    bool
	Errors    []error // Step failures other than per-track commit failures
}

// Failed reports whether any removal failed.
func (r *Report) Failed() bool { return r != nil && len(r.FailedIDs) > 0 }

// Summary returns a one-line description of the outcome.
func (r *Report) Summary() string {
	if r == nil {
		return "nothing to report"
	}

	verb := "Removed"
	if r.DryRun {
		verb = "Would remove"
	}

	s := fmt.Sprintf("%s %d of %d tracks", verb, r.Committed, len(r.Removals))
	if n := len(r.FailedIDs); n > 0 {
		s += fmt.Sprintf(" (%d failed)", n)
	}
	return s
}

// FinisherOpts configures a [Finisher].
type FinisherOpts struct {
	Run       *models.Run // Identity of the run: ID, account, playlist, rule, start time
	Removals  *RemovalSet
	Committer *Committer
	Loop      LoopStatus // May be nil when the session ends before the first page
	Session   func() *models.Session
	Sessions  SessionPersister
	Runs      RunRecorder
	Terminate func()
	Progress  chan<- ProgressUpdate
	Logger    *log.Logger
}

// Finisher is the action wrapped by the [FinalizeGuard]: drain the removal set,
// commit it, persist the session and the run, build a [Report], and terminate.
//
// A failing step is logged and recorded on the report; later steps still run and
// terminate is always called.
type Finisher struct {
	ctx  context.Context
	opts FinisherOpts

	mu     sync.Mutex
	report *Report
}

// NewFinisher creates a [Finisher]. Cancellation of ctx does not interrupt finalization.
func NewFinisher(ctx context.Context, opts FinisherOpts) *Finisher {
	if opts.Logger == nil {
		opts.Logger = shared.DiscardLogger()
	}
	if opts.Run == nil {
		opts.Run = &models.Run{ID: shared.GenerateID(), StartedAt: time.Now()}
	}
	if opts.Committer != nil && opts.Progress != nil {
		opts.Committer.WithProgress(opts.Progress)
	}

	return &Finisher{ctx: context.WithoutCancel(ctx), opts: opts}
}

// Finish runs every finalization step and returns the joined step errors.
// Per-track commit failures are on the [Report], not in the returned error.
func (f *Finisher) Finish() error {
	ctx := f.ctx
	logger := f.opts.Logger
	report := &Report{DryRun: f.opts.Run.DryRun}

	defer func() {
		f.mu.Lock()
		f.report = report
		f.mu.Unlock()

		if f.opts.Terminate != nil {
			f.opts.Terminate()
		}
	}()

	var removals []models.Removal
	if f.opts.Removals != nil {
		removals = f.opts.Removals.Drain()
	}
	sendProgress(f.opts.Progress, drainUpdate(len(removals)))
	logger.Info("committing", "removals", len(removals), "dry_run", report.DryRun)

	if f.opts.Committer != nil {
		result := f.opts.Committer.Commit(ctx, removals)
		report.Removals = result.Removals
		report.Committed = result.Committed
		report.FailedIDs = result.FailedIDs()
	} else {
		report.Removals = removals
	}

	if f.opts.Sessions != nil && f.opts.Session != nil {
		sendProgress(f.opts.Progress, persistUpdate(1, 2, "session"))
		if session := f.opts.Session(); session != nil {
			if err := f.opts.Sessions.Persist(ctx, session); err != nil {
				logger.Error("failed to persist session", "error", err)
				report.Errors = append(report.Errors, fmt.Errorf("persist session: %w", err))
			}
		}
	}

	report.Run = f.buildRun(report)
	if f.opts.Runs != nil {
		sendProgress(f.opts.Progress, persistUpdate(2, 2, "run history"))
		if err := f.opts.Runs.CreateRun(ctx, report.Run); err != nil {
			logger.Error("failed to record run", "error", err)
			report.Errors = append(report.Errors, fmt.Errorf("record run: %w", err))
		}
	}

	logger.Info("saved", "summary", report.Summary())
	sendProgress(f.opts.Progress, doneUpdate(report))
	return errors.Join(report.Errors...)
}

// Report returns the report of a completed [Finisher.Finish], or nil.
func (f *Finisher) Report() *Report {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.report
}

func (f *Finisher) buildRun(report *Report) *models.Run {
	run := *f.opts.Run
	run.FinishedAt = time.Now()
	run.Removals = report.Removals
	run.Committed = report.Committed
	run.Failed = len(report.FailedIDs)

	for _, r := range report.Removals {
		switch r.Reason {
		case models.ReasonAuto:
			run.AutoRejected++
		case models.ReasonManual:
			run.Rejected++
		}
	}

	if f.opts.Loop != nil {
		stats := f.opts.Loop.Stats()
		run.Surfaced = stats.Surfaced
		run.Accepted = stats.Accepted
		run.Exhausted = f.opts.Loop.State() == Exhausted
	}

	return &run
}
