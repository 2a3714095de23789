package curation

import (
	"fmt"

	"github.com/desertthunder/cull/internal/shared"
)

// ErrExhausted is returned by a [BatchSource] once its last page has been delivered.
var ErrExhausted = fmt.Errorf("track stream exhausted")

// FetchError reports a failed page fetch. The page can be requested again.
type FetchError struct {
	PlaylistID string
	Offset     int
	Err        error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%v: playlist %s at offset %d: %v", shared.ErrFetch, e.PlaylistID, e.Offset, e.Err)
}

func (e *FetchError) Unwrap() []error {
	return []error{shared.ErrFetch, e.Err}
}

// CommitError reports a failed removal of a single track.
type CommitError struct {
	TrackID string
	Err     error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("%v: track %s: %v", shared.ErrCommit, e.TrackID, e.Err)
}

func (e *CommitError) Unwrap() []error {
	return []error{shared.ErrCommit, e.Err}
}
