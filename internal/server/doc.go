// Package server runs the local redirect target for the Spotify OAuth login.
//
// # Callback Handler
//
// [OAuthHandler] implements the authorization code callback: it checks the state parameter,
// exchanges the code for a token, and delivers exactly one [OAuthResult]. Later callbacks are
// rejected so a replayed redirect cannot overwrite the first result.
//
// # Router
//
// [BasicRouter] wraps [http.ServeMux] with a middleware stack. [Middleware] added first runs outermost.
//
// # Lifecycle
//
// [Listen] binds the configured host and port before the browser is opened, and
// [CallbackServer.Shutdown] stops it once a token has arrived or the wait has been abandoned.
package server
