package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/cull/internal/auth"
	"github.com/desertthunder/cull/internal/models"
	"github.com/desertthunder/cull/internal/repositories"
	"github.com/desertthunder/cull/internal/server"
	"github.com/desertthunder/cull/internal/services"
	"github.com/desertthunder/cull/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

const authTimeout = 2 * time.Minute

// AuthLogin runs the browser flow unconditionally and caches the new session.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	svc, err := r.requireSpotify()
	if err != nil {
		return err
	}

	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	token, err := r.doOAuth(ctx, svc)
	if err != nil {
		return err
	}

	account := r.config.Credentials.Spotify.AccountName()
	sessions := repositories.NewSessionRepository(db)
	if err := sessions.Save(ctx, &models.Session{Account: account, Token: token}); err != nil {
		return fmt.Errorf("failed to cache session: %w", err)
	}

	r.writePlainln("✓ Authorization successful")
	r.writePlain("✓ Session cached for account %q in %s\n", account, r.config.Database.Path)

	if err := svc.Authenticate(ctx, token); err == nil {
		if profile, err := svc.UserProfile(ctx); err == nil {
			r.writePlain("Logged in as %s (%s)\n", profile.DisplayName, profile.ID)
		} else {
			r.logger.Warn("failed to fetch profile", "error", err)
		}
	}

	r.writePlain("\nYou can now use: cull curate\n")
	return nil
}

// AuthStatus reports whether a usable session is cached and, if so, who it belongs to.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	account := r.config.Credentials.Spotify.AccountName()
	sessions := repositories.NewSessionRepository(db)
	session, err := sessions.Load(ctx, account)
	if errors.Is(err, shared.ErrSessionNotFound) {
		r.writePlain("Account: %s\n", account)
		return r.writePlain("Session: ✗ Not logged in (run 'cull auth login')\n")
	}
	if err != nil {
		return err
	}

	r.writePlain("Account: %s\n", account)
	switch {
	case session.Token.Valid():
		r.writePlain("Session: ✓ Valid until %s\n", session.Token.Expiry.Local().Format(time.RFC1123))
	case session.Usable():
		r.writePlain("Session: ✓ Expired, will refresh on next use\n")
	default:
		return r.writePlain("Session: ✗ Expired (run 'cull auth login')\n")
	}

	if r.spotify == nil {
		return nil
	}

	resolver := auth.NewResolver(sessions, nil, r.logger)
	r.spotify.SetTokenRefreshCallback(resolver.PersistToken(context.WithoutCancel(ctx), account))
	if err := r.spotify.Authenticate(ctx, session.Token); err != nil {
		return err
	}

	profile, err := r.spotify.UserProfile(ctx)
	if err != nil {
		return r.writePlain("Spotify: ✗ %v\n", err)
	}
	r.writePlain("Spotify: ✓ %s (%s)\n", profile.DisplayName, profile.ID)
	if profile.Product != "" {
		r.writePlain("Plan: %s\n", profile.Product)
	}
	return nil
}

// AuthLogout deletes the cached session for the configured account.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	account := r.config.Credentials.Spotify.AccountName()
	if err := repositories.NewSessionRepository(db).Delete(ctx, account); err != nil {
		return err
	}

	r.logger.Info("session removed", "account", account)
	return r.writePlain("✓ Logged out of %s\n", account)
}

// doOAuth executes the OAuth2 authorization flow with a local HTTP server
func (r *Runner) doOAuth(ctx context.Context, svc services.OAuthService) (*oauth2.Token, error) {
	state, err := shared.GenerateState()
	if err != nil {
		return nil, fmt.Errorf("failed to generate state token: %w", err)
	}

	authURL := svc.GetAuthURL(state)
	handler := server.NewOAuthHandler(svc.OAuthConfig(), state)
	router := server.NewBasicRouter()
	router.Use(server.Logging(r.logger))
	router.Handler(handler)

	addr := fmt.Sprintf("%s:%d", r.config.Server.Host, r.config.Server.Port)
	cs, err := server.Listen(addr, router, r.logger)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := cs.Shutdown(ctx); err != nil {
			r.logger.Warn("error shutting down server", "error", err)
		}
	}()

	r.logger.Infof("started OAuth callback server at %v", cs.Addr())

	waitCtx, cancel := context.WithTimeout(ctx, authTimeout)
	defer cancel()

	go func() {
		if err, ok := <-cs.Errors(); ok {
			r.logger.Error("callback server failed", "error", err)
			cancel()
		}
	}()

	r.writePlain("→ Opening browser for Spotify authorization...\n")
	if err := shared.OpenBrowser(authURL); err != nil {
		r.logger.Warnf("failed to open browser automatically %v", err)
		r.writePlainln("⚠ Could not open browser automatically.")
		r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
	}

	r.writePlain("→ Waiting for authorization (%v timeout)...\n", authTimeout)

	token, err := handler.Wait(waitCtx)
	if err != nil {
		return nil, fmt.Errorf("authorization failed: %w", err)
	}
	return token, nil
}
