package ui

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/cull/internal/artwork"
	"github.com/desertthunder/cull/internal/curation"
	"github.com/desertthunder/cull/internal/models"
	tu "github.com/desertthunder/cull/internal/testing"
)

var (
	keyRight = tea.KeyMsg{Type: tea.KeyRight}
	keyLeft  = tea.KeyMsg{Type: tea.KeyLeft}
	keyRetry = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'r'}}
	keyQuit  = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}}
	keyHelp  = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'?'}}
)

type countingFinalizer struct{ calls atomic.Int32 }

func (c *countingFinalizer) Trigger() { c.calls.Add(1) }

func newTestLoop(t *testing.T, fetcher *tu.MockFetcher, fin curation.Finalizer) *curation.DecisionLoop {
	t.Helper()

	filter := curation.NewAutoFilter(curation.FilterOpts{Source: curation.NewTrackStream(fetcher, "pl", 2)})
	loop, err := curation.NewDecisionLoop(context.Background(), curation.LoopOpts{Source: filter, Finalizer: fin})
	if err != nil {
		t.Fatalf("NewDecisionLoop() error = %v", err)
	}
	return loop
}

// run executes cmd and any batched commands it produces, returning their messages.
func run(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}

	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, c := range batch {
			out = append(out, run(c)...)
		}
		return out
	}
	return []tea.Msg{msg}
}

// press delivers k and feeds any resulting decision back into the model.
func press(m *Model, k tea.KeyMsg) {
	_, cmd := m.Update(k)
	for _, msg := range run(cmd) {
		if d, ok := msg.(decidedMsg); ok {
			m.Update(d)
		}
	}
}

func TestModel_Decisions(t *testing.T) {
	fin := &countingFinalizer{}
	loop := newTestLoop(t, tu.NewMockFetcher(tu.MakeTracks("a", 2), tu.MakeTracks("b", 1)), fin)
	m := NewModel(context.Background(), Options{Playlist: "Road Trip", Loop: loop})

	t.Run("first track is shown", func(t *testing.T) {
		view := m.View()
		if !strings.Contains(view, "Song a 0") || !strings.Contains(view, "Road Trip") {
			t.Errorf("unexpected view:\n%s", view)
		}
	})

	t.Run("inputs are dropped while a decision is in flight", func(t *testing.T) {
		_, cmd := m.Update(keyRight)
		if !m.busy {
			t.Fatal("model should be busy after a decision key")
		}

		if _, second := m.Update(keyLeft); second != nil {
			t.Error("second input should be ignored while busy")
		}

		for _, msg := range run(cmd) {
			if d, ok := msg.(decidedMsg); ok {
				m.Update(d)
			}
		}

		if m.busy {
			t.Error("model should be idle after the decision lands")
		}
		if s := loop.Stats(); s.Accepted != 1 || s.Rejected != 0 {
			t.Errorf("unexpected stats %+v", s)
		}
	})

	t.Run("drop advances into the next page", func(t *testing.T) {
		press(m, keyLeft)

		if m.track.ID != "b-0" || m.pos.Batch != 2 {
			t.Errorf("expected b-0 on page 2, got %s on page %d", m.track.ID, m.pos.Batch)
		}
		if !strings.Contains(m.View(), "kept 1 · dropped 1") {
			t.Errorf("stats line missing:\n%s", m.View())
		}
	})

	t.Run("exhaustion moves to saving", func(t *testing.T) {
		press(m, keyRight)

		if m.Active() != SavingView {
			t.Errorf("expected saving view, got %d", m.Active())
		}
		if fin.calls.Load() != 1 {
			t.Errorf("finalizer fired %d times, want 1", fin.calls.Load())
		}

		press(m, keyRight)
		if loop.Stats().Decided() != 3 {
			t.Errorf("keys after exhaustion should do nothing, decided = %d", loop.Stats().Decided())
		}
	})
}

func TestModel_Save(t *testing.T) {
	var saves atomic.Int32
	saved := make(chan struct{}, 4)

	progress := make(chan curation.ProgressUpdate, 4)
	progress <- curation.ProgressUpdate{Phase: curation.PhaseCommit, Step: 1, Total: 2, Message: "Removing Song a 0 - Artist a"}
	progress <- curation.ProgressUpdate{Phase: curation.PhaseDone, Step: 1, Total: 1, Message: "Removed 2 of 2 tracks"}

	loop := newTestLoop(t, tu.NewMockFetcher(tu.MakeTracks("a", 2)), nil)
	m := NewModel(context.Background(), Options{
		Playlist: "Road Trip",
		Loop:     loop,
		Progress: progress,
		Save: func() {
			saves.Add(1)
			saved <- struct{}{}
		},
	})

	_, cmd := m.Update(keyQuit)
	if m.Active() != SavingView {
		t.Fatalf("expected saving view, got %d", m.Active())
	}

	select {
	case <-saved:
	case <-time.After(time.Second):
		t.Fatal("save was not triggered")
	}

	if _, again := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC}); again != nil {
		t.Error("a second save key should not wait on progress twice")
	}

	t.Run("progress is rendered until done", func(t *testing.T) {
		for cmd != nil {
			msgs := run(cmd)
			if len(msgs) != 1 {
				t.Fatalf("expected one progress message, got %d", len(msgs))
			}
			_, cmd = m.Update(msgs[0])

			if m.Active() == SavingView && !strings.Contains(m.View(), "Removing Song a 0") {
				t.Errorf("saving view should show the commit step:\n%s", m.View())
			}
		}

		if m.Active() != DoneView {
			t.Fatalf("expected done view, got %d", m.Active())
		}
		if !strings.Contains(m.View(), "Removed 2 of 2 tracks") {
			t.Errorf("done view missing summary:\n%s", m.View())
		}
	})

	time.Sleep(10 * time.Millisecond)
	if n := saves.Load(); n != 1 {
		t.Errorf("save called %d times, want 1", n)
	}

	press(m, keyLeft)
	if loop.Stats().Rejected != 0 {
		t.Error("decisions after save should be ignored")
	}
}

func TestModel_Finished(t *testing.T) {
	progress := make(chan curation.ProgressUpdate, 4)
	progress <- curation.ProgressUpdate{Phase: curation.PhaseCommit, Step: 1, Total: 2, Message: "Removing Song a 0 - Artist a"}
	progress <- curation.ProgressUpdate{Phase: curation.PhaseDone, Step: 1, Total: 1, Message: "Removed 2 of 2 tracks"}

	finished := make(chan struct{})
	close(finished)

	loop := newTestLoop(t, tu.NewMockFetcher(tu.MakeTracks("a", 2)), nil)
	m := NewModel(context.Background(), Options{
		Playlist: "Road Trip",
		Loop:     loop,
		Progress: progress,
		Finished: finished,
		DoneHold: time.Millisecond,
	})

	var done tea.Msg
	for _, msg := range run(m.Init()) {
		if f, ok := msg.(finishedMsg); ok {
			done = f
		}
	}
	if done == nil {
		t.Fatal("closing the finished channel should deliver a message")
	}

	_, cmd := m.Update(done)

	t.Run("done view stays up with the final summary", func(t *testing.T) {
		if m.Active() != DoneView {
			t.Fatalf("expected done view, got %d", m.Active())
		}
		view := m.View()
		if !strings.Contains(view, "Removed 2 of 2 tracks") || !strings.Contains(view, "press any key to exit") {
			t.Errorf("unexpected done view:\n%s", view)
		}
	})

	t.Run("quits after the hold", func(t *testing.T) {
		msgs := run(cmd)
		if len(msgs) != 1 {
			t.Fatalf("expected one message, got %d", len(msgs))
		}
		if _, ok := msgs[0].(tea.QuitMsg); !ok {
			t.Errorf("expected tea.QuitMsg, got %T", msgs[0])
		}
	})

	t.Run("any key quits", func(t *testing.T) {
		_, cmd := m.Update(keyLeft)
		if cmd == nil {
			t.Fatal("expected a quit command")
		}
		if _, ok := cmd().(tea.QuitMsg); !ok {
			t.Error("a key in the done view should quit")
		}
		if loop.Stats().Rejected != 0 {
			t.Error("keys after finishing must not reach the loop")
		}
	})
}

func TestModel_FetchFailure(t *testing.T) {
	fetcher := tu.NewMockFetcher(tu.MakeTracks("a", 2), tu.MakeTracks("b", 2))
	loop := newTestLoop(t, fetcher, nil)
	m := NewModel(context.Background(), Options{Playlist: "Road Trip", Loop: loop})

	fetcher.Err = errors.New("connection reset")
	fetcher.FailCount = 1

	press(m, keyRight)
	press(m, keyRight)

	if m.state != curation.AwaitingNextBatch {
		t.Fatalf("expected awaiting state, got %s", m.state)
	}
	var fetchErr *curation.FetchError
	if !errors.As(m.err, &fetchErr) {
		t.Errorf("expected *FetchError, got %v", m.err)
	}

	view := m.View()
	if !strings.Contains(view, "Could not fetch the next page") || !strings.Contains(view, "connection reset") {
		t.Errorf("view should explain the failure:\n%s", view)
	}

	press(m, keyRetry)

	if m.state != curation.Ready || m.track.ID != "b-0" {
		t.Errorf("retry should surface b-0, got %s in %s", m.track.ID, m.state)
	}
	if m.err != nil {
		t.Errorf("error should clear after a successful retry, got %v", m.err)
	}
}

func TestModel_Help(t *testing.T) {
	loop := newTestLoop(t, tu.NewMockFetcher(tu.MakeTracks("a", 2)), nil)
	m := NewModel(context.Background(), Options{Loop: loop})

	if strings.Contains(m.View(), "retry fetch") {
		t.Error("short help should not list retry")
	}
	m.Update(keyHelp)
	if !strings.Contains(m.View(), "retry fetch") {
		t.Errorf("full help should list retry:\n%s", m.View())
	}
}

func TestModel_Artwork(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(buf.Bytes())
	}))
	defer srv.Close()

	tracks := tu.MakeTracks("a", 2)
	for i := range tracks {
		tracks[i].Artwork = models.Artwork{URL: srv.URL + "/" + tracks[i].ID}
	}

	loop := newTestLoop(t, tu.NewMockFetcher(tracks), nil)
	m := NewModel(context.Background(), Options{Loop: loop, Artwork: artwork.NewLoader(srv.Client(), 4)})

	var art artworkMsg
	for _, msg := range run(m.Init()) {
		if a, ok := msg.(artworkMsg); ok {
			art = a
		}
	}

	t.Run("art for the current track is shown", func(t *testing.T) {
		if art.trackID != "a-0" || art.err != nil {
			t.Fatalf("unexpected artwork message %+v", art)
		}
		m.Update(art)
		if !strings.Contains(m.View(), "▀") {
			t.Errorf("view should contain rendered art:\n%s", m.View())
		}
	})

	t.Run("stale art is dropped", func(t *testing.T) {
		press(m, keyRight)
		m.Update(art)

		if m.artID == "a-0" {
			t.Error("art for a previous track should be ignored")
		}
		if loop.Position().Index != 1 {
			t.Error("artwork must not move the cursor")
		}
	})
}
