package curation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/cull/internal/models"
	tu "github.com/desertthunder/cull/internal/testing"
	"golang.org/x/oauth2"
)

type mockSessions struct {
	err     error
	persist []*models.Session
}

func (m *mockSessions) Persist(ctx context.Context, s *models.Session) error {
	m.persist = append(m.persist, s)
	return m.err
}

type mockRuns struct {
	err  error
	runs []*models.Run
}

func (m *mockRuns) CreateRun(ctx context.Context, run *models.Run) error {
	m.runs = append(m.runs, run)
	return m.err
}

func TestFinisher(t *testing.T) {
	session := &models.Session{Account: "default", Token: &oauth2.Token{AccessToken: "abc"}}

	t.Run("runs every step", func(t *testing.T) {
		removals := NewRemovalSet()
		removals.Record(models.Removal{TrackID: "a", Reason: models.ReasonAuto})
		removals.Record(models.Removal{TrackID: "b", Reason: models.ReasonManual})

		remover := tu.NewMockRemover(nil)
		sessions := &mockSessions{}
		runs := &mockRuns{}
		terminated := 0

		f := NewFinisher(context.Background(), FinisherOpts{
			Run:       &models.Run{ID: "run-1", PlaylistID: "pl", StartedAt: time.Now()},
			Removals:  removals,
			Committer: NewCommitter(remover, "pl", 0, nil),
			Session:   func() *models.Session { return session },
			Sessions:  sessions,
			Runs:      runs,
			Terminate: func() { terminated++ },
		})

		if err := f.Finish(); err != nil {
			t.Fatalf("Finish() error = %v", err)
		}

		if len(remover.Calls()) != 2 {
			t.Errorf("expected 2 removals, got %v", remover.Calls())
		}
		if len(sessions.persist) != 1 || sessions.persist[0] != session {
			t.Error("session should be persisted once")
		}
		if len(runs.runs) != 1 {
			t.Fatalf("expected 1 run recorded, got %d", len(runs.runs))
		}
		if terminated != 1 {
			t.Errorf("terminate called %d times, want 1", terminated)
		}

		run := runs.runs[0]
		if run.ID != "run-1" || run.AutoRejected != 1 || run.Rejected != 1 || run.Committed != 2 {
			t.Errorf("unexpected run %+v", run)
		}
		if run.FinishedAt.IsZero() {
			t.Error("FinishedAt should be set")
		}

		report := f.Report()
		if report == nil || report.Committed != 2 || report.Failed() {
			t.Errorf("unexpected report %+v", report)
		}
		if report.Summary() != "Removed 2 of 2 tracks" {
			t.Errorf("Summary() = %q", report.Summary())
		}
	})

	t.Run("step failures do not stop later steps", func(t *testing.T) {
		removals := NewRemovalSet()
		removals.Record(models.Removal{TrackID: "a"})
		removals.Record(models.Removal{TrackID: "b"})

		runs := &mockRuns{err: errors.New("database is locked")}
		terminated := false

		f := NewFinisher(context.Background(), FinisherOpts{
			Removals:  removals,
			Committer: NewCommitter(tu.NewMockRemover(map[string]error{"a": errors.New("forbidden")}), "pl", 0, nil),
			Session:   func() *models.Session { return session },
			Sessions:  &mockSessions{err: errors.New("disk full")},
			Runs:      runs,
			Terminate: func() { terminated = true },
		})

		err := f.Finish()
		if err == nil {
			t.Fatal("expected joined step errors")
		}
		if !terminated {
			t.Error("terminate must run even after failures")
		}
		if len(runs.runs) != 1 {
			t.Error("run should still be recorded after session failure")
		}

		report := f.Report()
		if !report.Failed() || len(report.Errors) != 2 {
			t.Errorf("unexpected report %+v", report)
		}
		if report.Summary() != "Removed 1 of 2 tracks (1 failed)" {
			t.Errorf("Summary() = %q", report.Summary())
		}
	})

	t.Run("canceled context does not interrupt commit", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		removals := NewRemovalSet()
		removals.Record(models.Removal{TrackID: "a"})
		remover := tu.NewMockRemover(nil)

		f := NewFinisher(ctx, FinisherOpts{Removals: removals, Committer: NewCommitter(remover, "pl", 10, nil)})
		if err := f.Finish(); err != nil {
			t.Fatalf("Finish() error = %v", err)
		}
		if len(remover.Calls()) != 1 {
			t.Errorf("expected removal despite canceled context")
		}
	})

	t.Run("dry run summary", func(t *testing.T) {
		f := NewFinisher(context.Background(), FinisherOpts{
			Run:       &models.Run{DryRun: true},
			Removals:  NewRemovalSet(),
			Committer: NewCommitter(DryRunRemover{}, "pl", 0, nil),
		})
		_ = f.Finish()

		if got := f.Report().Summary(); got != "Would remove 0 of 0 tracks" {
			t.Errorf("Summary() = %q", got)
		}
	})
}

func TestFinalizeExactlyOnce(t *testing.T) {
	ctx := context.Background()
	remover := tu.NewMockRemover(nil)
	runs := &mockRuns{}
	removals := NewRemovalSet()
	terminated := 0

	var guard *FinalizeGuard
	filter := NewAutoFilter(FilterOpts{
		Source:   NewTrackStream(tu.NewMockFetcher(tu.MakeTracks("a", 3), tu.MakeTracks("b", 2)), "pl", 3),
		Keep:     func(t models.Track) bool { return t.ID != "a-1" },
		Removals: removals,
	})
	loop, err := NewDecisionLoop(ctx, LoopOpts{
		Source:    filter,
		Removals:  removals,
		Finalizer: FinalizerFunc(func() { guard.Trigger() }),
	})
	if err != nil {
		t.Fatalf("NewDecisionLoop() error = %v", err)
	}

	finisher := NewFinisher(ctx, FinisherOpts{
		Run:       &models.Run{ID: "r"},
		Removals:  removals,
		Committer: NewCommitter(remover, "pl", 0, nil),
		Loop:      loop,
		Runs:      runs,
		Terminate: func() { terminated++ },
	})
	guard = NewFinalizeGuard(finisher.Finish, nil)

	for loop.State() == Ready {
		if err := loop.Reject(ctx); err != nil {
			t.Fatalf("Reject() error = %v", err)
		}
	}

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			guard.Trigger()
		}()
	}
	wg.Wait()
	guard.Trigger()

	if terminated != 1 || len(runs.runs) != 1 {
		t.Errorf("finalize ran terminate=%d runs=%d, want 1 each", terminated, len(runs.runs))
	}
	if len(remover.Calls()) != 5 {
		t.Errorf("expected 5 removals, got %v", remover.Calls())
	}

	run := runs.runs[0]
	if !run.Exhausted || run.AutoRejected != 1 || run.Rejected != 4 || run.Surfaced != 4 {
		t.Errorf("unexpected run %+v", run)
	}
}
