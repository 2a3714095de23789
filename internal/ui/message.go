package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/cull/internal/curation"
)

var (
	_ tea.Msg = decidedMsg{}
	_ tea.Msg = artworkMsg{}
	_ tea.Msg = progressMsg{}
	_ tea.Msg = finishedMsg{}
)

// decidedMsg reports the outcome of a keep, drop or retry input.
type decidedMsg struct {
	err error
}

// artworkMsg carries rendered cover art for the track with trackID.
type artworkMsg struct {
	trackID string
	art     string
	err     error
}

// progressMsg wraps a finalization [curation.ProgressUpdate].
type progressMsg curation.ProgressUpdate

// finishedMsg reports that finalization is over.
type finishedMsg struct{}
