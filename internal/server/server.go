// package server contains the local HTTP callback server used by the OAuth login flow
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/cull/internal/shared"
)

// Middleware wraps an http.Handler and returns a new http.Handler with additional behavior.
type Middleware func(http.Handler) http.Handler

// Handler is an [http.Handler] that knows which paths it serves.
type Handler interface {
	http.Handler      // ServeHTTP handles the HTTP request and writes the response
	Routes() []string // Routes returns the path patterns this handler serves
}

// Router defines the interface for HTTP routing and middleware management.
type Router interface {
	Use(middleware ...Middleware)                     // Use adds middleware to the router's middleware stack
	Handle(method, path string, handler http.Handler) // Handle registers a handler for the specified method and path
	Handler(handler Handler)                          // Handler registers a custom Handler implementation
	ServeHTTP(w http.ResponseWriter, r *http.Request) // ServeHTTP implements http.Handler for the entire router
}

// Logging logs each request at debug level once it has been served.
func Logging(logger *log.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			logger.Debug("served request", "method", r.Method, "path", r.URL.Path, "elapsed", time.Since(start))
		})
	}
}

// CallbackServer is a short-lived HTTP server for a single OAuth redirect.
type CallbackServer struct {
	srv    *http.Server
	ln     net.Listener
	errs   chan error
	logger *log.Logger
}

// Listen binds addr and starts serving handler in the background.
// Binding happens before Listen returns, so the browser can be opened right away.
func Listen(addr string, handler http.Handler, logger *log.Logger) (*CallbackServer, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	if logger == nil {
		logger = shared.DiscardLogger()
	}

	s := &CallbackServer{
		srv:    &http.Server{Handler: handler, ReadHeaderTimeout: 10 * time.Second},
		ln:     ln,
		errs:   make(chan error, 1),
		logger: logger,
	}

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.errs <- err
		}
		close(s.errs)
	}()

	logger.Debug("callback server listening", "addr", ln.Addr().String())
	return s, nil
}

// Addr returns the bound address.
func (s *CallbackServer) Addr() string { return s.ln.Addr().String() }

// Errors delivers a serve failure, if any, and is closed once the server stops.
func (s *CallbackServer) Errors() <-chan error { return s.errs }

// Shutdown stops the server, waiting up to five seconds for in-flight requests.
func (s *CallbackServer) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	s.logger.Debug("callback server stopping", "addr", s.Addr())
	return s.srv.Shutdown(ctx)
}
