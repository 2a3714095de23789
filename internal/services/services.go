// package services defines interface Service for interacting with music streaming APIs
package services

import (
	"context"

	"github.com/desertthunder/cull/internal/models"
	"golang.org/x/oauth2"
)

// Service defines the operations a curation session needs from a music provider.
type Service interface {
	// Authenticate builds an authorized client around token.
	Authenticate(ctx context.Context, token *oauth2.Token) error

	// Playlists retrieves all playlists for the authenticated user.
	Playlists(ctx context.Context) ([]models.Playlist, error)

	// PlaylistPage retrieves one page of a playlist's tracks starting at offset.
	PlaylistPage(ctx context.Context, playlistID string, offset, limit int) (*models.Page, error)

	// RemoveTrack removes the playlist entry holding trackID at position.
	RemoveTrack(ctx context.Context, playlistID, trackID string, position int) error

	// Name returns the name of the service (e.g., "Spotify")
	Name() string
}

// OAuthService extends [Service] for providers that log in through an OAuth2 browser flow.
type OAuthService interface {
	Service

	// GetAuthURL returns the URL the user visits to grant access.
	GetAuthURL(state string) string

	// OAuthConfig returns the configuration used to exchange authorization codes.
	OAuthConfig() *oauth2.Config

	// Token returns the current token, including any refresh.
	Token() *oauth2.Token

	// SetTokenRefreshCallback registers a function called with each refreshed token.
	SetTokenRefreshCallback(fn func(*oauth2.Token))
}

var _ OAuthService = (*SpotifyService)(nil)
