// Spotify Web API implementation of [Service]
//
// Requests go through [spotify.Client]; see https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/desertthunder/cull/internal/models"
	"github.com/desertthunder/cull/internal/shared"
	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"
)

const (
	defaultRedirectURI = "http://127.0.0.1:3000/callback"
	maxPageSize        = 100 // Largest page the playlist items endpoint serves
	playlistPageSize   = 50
	minArtworkWidth    = 64
)

// Scopes requested during login. Removing tracks needs the modify scopes.
var Scopes = []string{
	spotifyauth.ScopeUserReadPrivate,
	spotifyauth.ScopeUserReadEmail,
	spotifyauth.ScopePlaylistReadPrivate,
	spotifyauth.ScopePlaylistReadCollaborative,
	spotifyauth.ScopePlaylistModifyPublic,
	spotifyauth.ScopePlaylistModifyPrivate,
}

// Profile is the authenticated Spotify user.
type Profile struct {
	ID          string
	DisplayName string
	Email       string
	Product     string // premium, free, etc.
}

// SpotifyService implements [Service] for the Spotify Web API.
// Uses [oauth2] for authentication; refreshed tokens are reported through the refresh callback.
type SpotifyService struct {
	config  *oauth2.Config
	baseURL string

	mu        sync.Mutex
	client    *spotify.Client
	token     *oauth2.Token
	onRefresh func(*oauth2.Token)
}

// NewSpotifyService creates a new Spotify service with the given OAuth2 credentials.
func NewSpotifyService(credentials map[string]string) (*SpotifyService, error) {
	clientID, ok := credentials["client_id"]
	if !ok || clientID == "" {
		return nil, fmt.Errorf("%w: missing client_id", shared.ErrMissingCredentials)
	}

	clientSecret, ok := credentials["client_secret"]
	if !ok || clientSecret == "" {
		return nil, fmt.Errorf("%w: missing client_secret", shared.ErrMissingCredentials)
	}

	redirectURI, ok := credentials["redirect_uri"]
	if !ok || redirectURI == "" {
		redirectURI = defaultRedirectURI
	}

	config := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURI,
		Scopes:       Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  spotifyauth.AuthURL,
			TokenURL: spotifyauth.TokenURL,
		},
	}

	return &SpotifyService{config: config}, nil
}

// WithBaseURL points API requests at url. Must be called before [SpotifyService.Authenticate].
func (s *SpotifyService) WithBaseURL(url string) *SpotifyService {
	s.baseURL = url
	return s
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

// OAuthConfig returns the OAuth2 configuration used for login.
func (s *SpotifyService) OAuthConfig() *oauth2.Config {
	return s.config
}

// GetAuthURL returns the OAuth2 authorization URL for user login.
func (s *SpotifyService) GetAuthURL(state string) string {
	return s.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// SetTokenRefreshCallback registers fn to receive every token obtained by refresh.
func (s *SpotifyService) SetTokenRefreshCallback(fn func(*oauth2.Token)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onRefresh = fn
}

// Authenticate builds an API client around token. The client refreshes the token when it expires.
func (s *SpotifyService) Authenticate(ctx context.Context, token *oauth2.Token) error {
	if token == nil || (token.AccessToken == "" && token.RefreshToken == "") {
		return fmt.Errorf("%w: no token", shared.ErrNotAuthenticated)
	}

	source := &refreshableTokenSource{
		base:   oauth2.ReuseTokenSource(token, s.config.TokenSource(context.WithoutCancel(ctx), token)),
		last:   token.AccessToken,
		notify: s.tokenRefreshed,
	}
	httpClient := oauth2.NewClient(context.WithoutCancel(ctx), source)

	opts := []spotify.ClientOption{spotify.WithRetry(true)}
	if s.baseURL != "" {
		opts = append(opts, spotify.WithBaseURL(s.baseURL))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.client = spotify.New(httpClient, opts...)
	return nil
}

// Token returns the most recent token, refreshed or not.
func (s *SpotifyService) Token() *oauth2.Token {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// UserProfile retrieves the current authenticated user's profile.
func (s *SpotifyService) UserProfile(ctx context.Context) (*Profile, error) {
	client, err := s.api()
	if err != nil {
		return nil, err
	}

	user, err := client.CurrentUser(ctx)
	if err != nil {
		return nil, mapError(err)
	}

	return &Profile{
		ID:          user.ID,
		DisplayName: user.DisplayName,
		Email:       user.Email,
		Product:     user.Product,
	}, nil
}

// Playlists retrieves every playlist the current user owns or follows.
func (s *SpotifyService) Playlists(ctx context.Context) ([]models.Playlist, error) {
	client, err := s.api()
	if err != nil {
		return nil, err
	}

	page, err := client.CurrentUsersPlaylists(ctx, spotify.Limit(playlistPageSize))
	if err != nil {
		return nil, mapError(err)
	}

	var playlists []models.Playlist
	for {
		for _, sp := range page.Playlists {
			playlists = append(playlists, models.Playlist{
				ID:          string(sp.ID),
				Name:        sp.Name,
				Description: sp.Description,
				TrackCount:  int(sp.Tracks.Total),
				Public:      sp.IsPublic,
			})
		}

		err := client.NextPage(ctx, page)
		if errors.Is(err, spotify.ErrNoMorePages) {
			break
		} else if err != nil {
			return nil, mapError(err)
		}
	}

	return playlists, nil
}

// PlaylistPage retrieves one page of playlist items. Episodes, local files and
// unavailable tracks are dropped from the page.
func (s *SpotifyService) PlaylistPage(ctx context.Context, playlistID string, offset, limit int) (*models.Page, error) {
	client, err := s.api()
	if err != nil {
		return nil, err
	}

	if limit <= 0 || limit > maxPageSize {
		limit = maxPageSize
	}

	items, err := client.GetPlaylistItems(ctx, spotify.ID(playlistID), spotify.Limit(limit), spotify.Offset(offset))
	if err != nil {
		return nil, mapError(err)
	}

	page := &models.Page{
		Tracks: make([]models.Track, 0, len(items.Items)),
		Offset: offset,
		Limit:  limit,
		Total:  int(items.Total),
		More:   items.Next != "",
	}

	for i, item := range items.Items {
		if track, ok := toTrack(item); ok {
			track.Position = offset + i
			page.Tracks = append(page.Tracks, track)
		}
	}

	return page, nil
}

// RemoveTrack removes the single entry of trackID at position. Other copies of the
// track stay in the playlist, and the request fails if position holds a different track.
func (s *SpotifyService) RemoveTrack(ctx context.Context, playlistID, trackID string, position int) error {
	client, err := s.api()
	if err != nil {
		return err
	}

	entry := spotify.NewTrackToRemove(trackID, []int{position})
	if _, err := client.RemoveTracksFromPlaylistOpt(ctx, spotify.ID(playlistID), []spotify.TrackToRemove{entry}, ""); err != nil {
		return mapError(err)
	}
	return nil
}

func (s *SpotifyService) api() (*spotify.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client == nil {
		return nil, fmt.Errorf("%w: call Authenticate first", shared.ErrNotAuthenticated)
	}
	return s.client, nil
}

func (s *SpotifyService) tokenRefreshed(token *oauth2.Token) {
	s.mu.Lock()
	s.token = token
	fn := s.onRefresh
	s.mu.Unlock()

	if fn != nil {
		fn(token)
	}
}

func toTrack(item spotify.PlaylistItem) (models.Track, bool) {
	full := item.Track.Track
	if item.IsLocal || full == nil || full.ID == "" {
		return models.Track{}, false
	}

	track := models.Track{
		ID:         string(full.ID),
		Name:       full.Name,
		Album:      full.Album.Name,
		Popularity: int(full.Popularity),
		DurationMS: int(full.Duration),
		Explicit:   full.Explicit,
		AddedAt:    item.AddedAt,
	}

	if len(full.Artists) > 0 {
		track.Artist = full.Artists[0].Name
	}

	track.Artwork.URL = pickImage(full.Album.Images)
	return track, true
}

// pickImage returns the smallest image at least minArtworkWidth wide, or the first image.
func pickImage(images []spotify.Image) string {
	if len(images) == 0 {
		return ""
	}

	best := images[0]
	for _, img := range images[1:] {
		w := int(img.Width)
		if w >= minArtworkWidth && w < int(best.Width) {
			best = img
		}
	}
	return best.URL
}

// mapError converts client errors into shared sentinels.
func mapError(err error) error {
	var apiErr spotify.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Status {
		case http.StatusUnauthorized:
			return fmt.Errorf("%w: %v", shared.ErrTokenExpired, err)
		case http.StatusNotFound:
			return fmt.Errorf("%w: %v", shared.ErrPlaylistNotFound, err)
		case http.StatusServiceUnavailable, http.StatusBadGateway:
			return fmt.Errorf("%w: %v", shared.ErrServiceUnavailable, err)
		}
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}

	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		return fmt.Errorf("%w: %v", shared.ErrTokenExpired, err)
	}

	return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
}

// refreshableTokenSource reports each new access token produced by its base source.
type refreshableTokenSource struct {
	base   oauth2.TokenSource
	notify func(*oauth2.Token)

	mu   sync.Mutex
	last string
}

func (r *refreshableTokenSource) Token() (*oauth2.Token, error) {
	token, err := r.base.Token()
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	changed := token.AccessToken != r.last
	r.last = token.AccessToken
	r.mu.Unlock()

	if changed && r.notify != nil {
		r.notify(token)
	}
	return token, nil
}
