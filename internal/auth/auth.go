// package auth resolves an authenticated session, preferring the session cache
// and falling back to a fresh login.
package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/cull/internal/models"
	"github.com/desertthunder/cull/internal/shared"
	"golang.org/x/oauth2"
)

// SessionCache stores sessions between runs.
type SessionCache interface {
	Load(ctx context.Context, account string) (*models.Session, error)
	Save(ctx context.Context, session *models.Session) error
}

// Login performs a fresh login and returns the new token.
type Login func(ctx context.Context) (*oauth2.Token, error)

// Resolver turns an account name into a usable [models.Session].
type Resolver struct {
	cache  SessionCache
	login  Login
	logger *log.Logger
}

// NewResolver creates a [Resolver]. login may be nil, in which case a cache miss is fatal.
func NewResolver(cache SessionCache, login Login, logger *log.Logger) *Resolver {
	if logger == nil {
		logger = shared.DiscardLogger()
	}
	return &Resolver{cache: cache, login: login, logger: logger}
}

// Resolve returns the cached session for account when it is usable, and otherwise logs in
// and writes the new session back to the cache. A failed cache write is only a warning.
//
// Login failures wrap [shared.ErrAuthFailed].
func (r *Resolver) Resolve(ctx context.Context, account string) (*models.Session, error) {
	if r.cache != nil {
		session, err := r.cache.Load(ctx, account)
		switch {
		case err == nil && session.Usable():
			r.logger.Debug("using cached session", "account", account)
			return session, nil
		case err == nil:
			r.logger.Info("cached session expired", "account", account)
		case errors.Is(err, shared.ErrSessionNotFound):
			r.logger.Debug("no cached session", "account", account)
		default:
			r.logger.Warn("ignoring unreadable session cache", "account", account, "error", err)
		}
	}

	if r.login == nil {
		return nil, fmt.Errorf("%w: no usable session for %s, run the auth command", shared.ErrAuthFailed, account)
	}

	token, err := r.login(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrAuthFailed, err)
	}
	if token == nil {
		return nil, fmt.Errorf("%w: login returned no token", shared.ErrAuthFailed)
	}

	session := &models.Session{Account: account, Token: token}
	if err := r.Persist(ctx, session); err != nil {
		r.logger.Warn("failed to cache session", "account", account, "error", err)
	}

	return session, nil
}

// Persist writes session to the cache.
func (r *Resolver) Persist(ctx context.Context, session *models.Session) error {
	if r.cache == nil {
		return nil
	}
	return r.cache.Save(ctx, session)
}

// PersistToken writes token to the cache for account, logging failures. Suitable as a token refresh callback.
func (r *Resolver) PersistToken(ctx context.Context, account string) func(*oauth2.Token) {
	return func(token *oauth2.Token) {
		if err := r.Persist(ctx, &models.Session{Account: account, Token: token}); err != nil {
			r.logger.Warn("failed to cache refreshed token", "account", account, "error", err)
			return
		}
		r.logger.Debug("cached refreshed token", "account", account)
	}
}
