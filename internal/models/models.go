// package models defines the data model for the playlist curator
package models

import (
	"fmt"
	"time"

	"golang.org/x/oauth2"
)

// Artwork is a cover image reference: either inline image bytes or a fetchable URL.
type Artwork struct {
	Data []byte
	URL  string
}

// Inline reports whether the artwork carries its own image bytes.
func (a Artwork) Inline() bool { return len(a.Data) > 0 }

// Empty reports whether there is nothing to display.
func (a Artwork) Empty() bool { return len(a.Data) == 0 && a.URL == "" }

// Track represents one playlist entry. Tracks are immutable once produced by a track source.
//
// A playlist may hold the same catalog track more than once; [Track.Key] tells the entries apart.
type Track struct {
	ID           string  // Catalog identifier
	Position     int     // 0-based index of the entry in the playlist
	Name         string  // Display name
	Artist       string  // First credited artist
	Album        string  // Album name
	Artwork      Artwork // Cover art
	Popularity   int     // Service popularity score (0-100)
	PlayCount    int64   // Play count; meaningful only when HasPlayCount is set
	HasPlayCount bool    // The service reported a play count
	DurationMS   int     // Duration in milliseconds
	Explicit     bool    // Explicit content flag
	AddedAt      string  // When the entry was added to the playlist
}

// Key identifies the playlist entry: the catalog ID at its position.
func (t Track) Key() string { return EntryKey(t.ID, t.Position) }

// EntryKey formats the key of the entry holding trackID at position.
func EntryKey(trackID string, position int) string {
	return fmt.Sprintf("%s@%d", trackID, position)
}

// Batch is the ordered set of tracks delivered by one page of a remote playlist.
type Batch []Track

// Page is a single page of playlist items returned by a service.
type Page struct {
	Tracks []Track
	Offset int
	Limit  int
	Total  int
	More   bool // More pages follow this one
}

// Playlist represents a playlist owned or followed by the user.
type Playlist struct {
	ID          string
	Name        string
	Description string
	TrackCount  int
	Public      bool
}

// Reason records why a track was slated for removal.
type Reason string

const (
	ReasonAuto   Reason = "auto"   // Rejected by the keep rule
	ReasonManual Reason = "manual" // Rejected by the user
)

// Removal is a playlist entry slated for removal.
type Removal struct {
	TrackID   string
	Position  int // Index of the entry in the playlist as it was read
	Name      string
	Artist    string
	Reason    Reason
	Committed bool
	Error     string
}

// NewRemoval builds a [Removal] for track.
func NewRemoval(track Track, reason Reason) Removal {
	return Removal{TrackID: track.ID, Position: track.Position, Name: track.Name, Artist: track.Artist, Reason: reason}
}

// Key identifies the removed playlist entry. See [Track.Key].
func (r Removal) Key() string { return EntryKey(r.TrackID, r.Position) }

// Session is an authenticated credential bundle for one account.
type Session struct {
	Account string
	Token   *oauth2.Token
}

// Usable reports whether the session can authorize requests, either directly or after a refresh.
func (s *Session) Usable() bool {
	if s == nil || s.Token == nil {
		return false
	}
	return s.Token.Valid() || s.Token.RefreshToken != ""
}

// Run summarizes one curation session.
type Run struct {
	ID           string
	Sequence     int
	Account      string
	PlaylistID   string
	Rule         string
	DryRun       bool
	Surfaced     int
	Accepted     int
	Rejected     int
	AutoRejected int
	Committed    int
	Failed       int
	Exhausted    bool // The whole playlist was traversed
	StartedAt    time.Time
	FinishedAt   time.Time
	Removals     []Removal
}

// Duration returns how long the session lasted.
func (r *Run) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
