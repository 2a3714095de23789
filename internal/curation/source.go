package curation

import (
	"context"

	"github.com/desertthunder/cull/internal/models"
)

// BatchSource yields batches of tracks on demand until it returns [ErrExhausted].
type BatchSource interface {
	Next(ctx context.Context) (models.Batch, error)
}

// PageFetcher retrieves one page of playlist items from a remote service.
type PageFetcher interface {
	PlaylistPage(ctx context.Context, playlistID string, offset, limit int) (*models.Page, error)
}

// PageFetcherFunc adapts a function to [PageFetcher].
type PageFetcherFunc func(ctx context.Context, playlistID string, offset, limit int) (*models.Page, error)

func (f PageFetcherFunc) PlaylistPage(ctx context.Context, playlistID string, offset, limit int) (*models.Page, error) {
	return f(ctx, playlistID, offset, limit)
}

// TrackStream is a lazy, finite, non-restartable sequence of batches over a paginated playlist.
//
// Each call to [TrackStream.Next] fetches exactly one page. A failed fetch leaves the offset
// untouched, so the next call requests the same page again.
type TrackStream struct {
	fetcher    PageFetcher
	playlistID string
	pageSize   int
	offset     int
	pages      int
	done       bool
}

// NewTrackStream creates a stream over playlistID requesting pageSize tracks per page.
func NewTrackStream(fetcher PageFetcher, playlistID string, pageSize int) *TrackStream {
	if pageSize <= 0 {
		pageSize = 100
	}
	return &TrackStream{fetcher: fetcher, playlistID: playlistID, pageSize: pageSize}
}

// Next fetches the next page, returning [ErrExhausted] after the last one.
func (s *TrackStream) Next(ctx context.Context) (models.Batch, error) {
	if s.done {
		return nil, ErrExhausted
	}

	page, err := s.fetcher.PlaylistPage(ctx, s.playlistID, s.offset, s.pageSize)
	if err != nil {
		return nil, &FetchError{PlaylistID: s.playlistID, Offset: s.offset, Err: err}
	}

	if page == nil || (len(page.Tracks) == 0 && !page.More) {
		s.done = true
		return nil, ErrExhausted
	}

	s.pages++
	s.offset += s.pageSize
	if !page.More {
		s.done = true
	}

	return models.Batch(page.Tracks), nil
}

// Offset returns the offset of the next page to be fetched.
func (s *TrackStream) Offset() int { return s.offset }

// Pages returns the number of pages delivered so far.
func (s *TrackStream) Pages() int { return s.pages }

// PlaylistID returns the playlist being streamed.
func (s *TrackStream) PlaylistID() string { return s.playlistID }
