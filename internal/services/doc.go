// Package services defines the [Service] interface for music streaming providers and implements it for Spotify.
//
// # Spotify Implementation
//
// [SpotifyService] wraps [github.com/zmb3/spotify/v2] with an [oauth2] client that refreshes
// expired tokens using the refresh token. Each refreshed token is passed to the callback
// registered with [SpotifyService.SetTokenRefreshCallback] so the session cache stays current.
//
// Playlist items are mapped to [models.Track]. Episodes, local files and unavailable tracks
// carry no usable ID and are dropped from the page. The artwork reference is the smallest album
// image at least 64 pixels wide.
//
// # Error Handling
//
// Services use typed errors from shared package:
//   - [shared.ErrNotAuthenticated] : Authenticate() not called
//   - [shared.ErrTokenExpired] : token rejected or refresh failed, login needed
//   - [shared.ErrPlaylistNotFound] : playlist ID not found
//   - [shared.ErrServiceUnavailable] : upstream 502/503
//   - [shared.ErrAPIRequest] : any other failed request
package services
