package shared

import "fmt"

var (
	// Configuration errors
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authentication errors
	ErrAuthFailed       = fmt.Errorf("authentication failed")
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrTokenExpired     = fmt.Errorf("access token expired")
	ErrSessionNotFound  = fmt.Errorf("no cached session")
	ErrTimeout          = fmt.Errorf("operation timed out")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrPlaylistNotFound   = fmt.Errorf("playlist not found")

	// Curation errors
	ErrFetch         = fmt.Errorf("fetch failed")
	ErrEmptyPlaylist = fmt.Errorf("no tracks to curate")
	ErrCommit        = fmt.Errorf("removal failed")
	ErrSessionOver   = fmt.Errorf("curation session is over")
	ErrAwaitingBatch = fmt.Errorf("waiting for next page")
	ErrInvalidRule   = fmt.Errorf("invalid keep rule")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
