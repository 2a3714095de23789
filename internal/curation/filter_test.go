package curation

import (
	"context"
	"errors"
	"testing"

	"github.com/desertthunder/cull/internal/models"
	tu "github.com/desertthunder/cull/internal/testing"
)

func minPlays(n int64) Predicate {
	return func(t models.Track) bool { return t.PlayCount >= n }
}

func TestAutoFilter(t *testing.T) {
	t.Run("play count scenario", func(t *testing.T) {
		batch := models.Batch{
			{ID: "low", PlayCount: 5_000_000},
			{ID: "high", PlayCount: 20_000_000},
			{ID: "edge", PlayCount: 10_000_000},
		}
		removals := NewRemovalSet()
		filter := NewAutoFilter(FilterOpts{Keep: minPlays(10_000_000), Removals: removals})

		surfaced := filter.Apply(batch)

		if len(surfaced) != 2 || surfaced[0].ID != "high" || surfaced[1].ID != "edge" {
			t.Errorf("unexpected surfaced tracks: %+v", surfaced)
		}
		if removals.Len() != 1 || !removals.Contains(batch[0].Key()) {
			t.Errorf("expected only low in removal set, got %d entries", removals.Len())
		}
		if filter.Rejected() != 1 {
			t.Errorf("Rejected() = %d, want 1", filter.Rejected())
		}
	})

	t.Run("rejections are recorded with auto reason", func(t *testing.T) {
		removals := NewRemovalSet()
		filter := NewAutoFilter(FilterOpts{Keep: minPlays(1), Removals: removals})
		filter.Apply(models.Batch{{ID: "x", Name: "Song", Artist: "Band"}})

		drained := removals.Drain()
		if len(drained) != 1 {
			t.Fatalf("expected 1 removal, got %d", len(drained))
		}
		if drained[0].Reason != models.ReasonAuto || drained[0].Name != "Song" {
			t.Errorf("unexpected removal %+v", drained[0])
		}
	})

	t.Run("applying twice is idempotent", func(t *testing.T) {
		batch := models.Batch{
			{ID: "a", PlayCount: 1},
			{ID: "b", PlayCount: 100},
			{ID: "c", PlayCount: 2},
		}
		removals := NewRemovalSet()
		filter := NewAutoFilter(FilterOpts{Keep: minPlays(50), Removals: removals})

		first := filter.Apply(batch)
		second := filter.Apply(batch)

		if len(first) != len(second) {
			t.Fatalf("surfaced lengths differ: %d vs %d", len(first), len(second))
		}
		for i := range first {
			if first[i].ID != second[i].ID {
				t.Errorf("surfaced[%d] differs: %s vs %s", i, first[i].ID, second[i].ID)
			}
		}
		if removals.Len() != 2 {
			t.Errorf("removal set has %d entries, want 2", removals.Len())
		}
		if filter.Rejected() != 2 {
			t.Errorf("Rejected() = %d, want 2", filter.Rejected())
		}
	})

	t.Run("predicate evaluated once per track", func(t *testing.T) {
		calls := map[string]int{}
		keep := func(t models.Track) bool {
			calls[t.ID]++
			return t.ID != "b"
		}
		filter := NewAutoFilter(FilterOpts{Keep: keep})
		filter.Apply(models.Batch{{ID: "a"}, {ID: "b"}, {ID: "c"}})

		for id, n := range calls {
			if n != 1 {
				t.Errorf("predicate called %d times for %s", n, id)
			}
		}
	})

	t.Run("defaults keep everything", func(t *testing.T) {
		filter := NewAutoFilter(FilterOpts{})
		surfaced := filter.Apply(models.Batch(tu.MakeTracks("a", 3)))
		if len(surfaced) != 3 || filter.Removals().Len() != 0 {
			t.Errorf("KeepAll should surface every track")
		}
	})

	t.Run("Next filters pulled batches", func(t *testing.T) {
		tracks := tu.MakeTracks("a", 3)
		tracks[1].Popularity = 90
		fetcher := tu.NewMockFetcher(tracks)
		filter := NewAutoFilter(FilterOpts{
			Source: NewTrackStream(fetcher, "pl", 3),
			Keep:   func(t models.Track) bool { return t.Popularity < 50 },
		})

		batch, err := filter.Next(context.Background())
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		if len(batch) != 2 || !filter.Removals().Contains(tracks[1].Key()) {
			t.Errorf("unexpected batch %+v", batch)
		}

		if _, err := filter.Next(context.Background()); !errors.Is(err, ErrExhausted) {
			t.Errorf("expected ErrExhausted, got %v", err)
		}
	})

	t.Run("Next passes fetch errors through", func(t *testing.T) {
		fetcher := tu.NewMockFetcher(tu.MakeTracks("a", 1))
		fetcher.Err = errors.New("boom")
		fetcher.FailCount = 1
		filter := NewAutoFilter(FilterOpts{Source: NewTrackStream(fetcher, "pl", 1)})

		var fetchErr *FetchError
		if _, err := filter.Next(context.Background()); !errors.As(err, &fetchErr) {
			t.Errorf("expected *FetchError, got %v", err)
		}
	})
}
