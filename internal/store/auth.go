// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/cosmicdeploy/cosmicdeploy-go/internal/localstate"
	"github.com/cosmicdeploy/cosmicdeploy-go/internal/model"
	"github.com/cosmicdeploy/cosmicdeploy-go/internal/service"
)

// AuthStore owns the session: the bearer token and the resolved user profile.
// It is the only component allowed to mutate the token; every other store
// reads it through Token() at call time, never a captured copy, so a logout
// immediately invalidates all subsequent calls.
//
// The session moves through three states: unauthenticated (no token),
// authenticating (token present, profile unresolved), authenticated (token
// and profile). Any failure resolving a persisted token is fatal to the
// session: the token is cleared, never retried.
type AuthStore struct {
	svc    *service.AuthService
	state  *localstate.Store
	logger *slog.Logger

	mu        sync.Mutex
	token     string
	user      *model.User
	loading   int
	lastErr   string
	listeners []func(token string)
}

// NewAuthStore creates an AuthStore. The localstate store persists the token
// across runs.
func NewAuthStore(svc *service.AuthService, state *localstate.Store, logger *slog.Logger) *AuthStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthStore{svc: svc, state: state, logger: logger}
}

// Init restores the session from a persisted token, fail-closed: an expired
// token, a rejected /users/me call, or any other resolution failure removes
// the persisted token and leaves the store unauthenticated. Only storage I/O
// errors are returned; a dead session is not an error.
func (s *AuthStore) Init(ctx context.Context) error {
	s.beginLoad()
	defer s.endLoad()

	token, err := s.state.Get(ctx, localstate.TokenKey)
	if errors.Is(err, localstate.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	if expired(token) {
		s.logger.Info("persisted token expired, clearing session")
		return s.discardToken(ctx, "session expired")
	}

	user, err := s.svc.CurrentUser(ctx, token)
	if err != nil {
		s.logger.Warn("failed to resolve persisted session", "error", err)
		return s.discardToken(ctx, err.Error())
	}

	s.mu.Lock()
	s.token = token
	s.user = user
	s.lastErr = ""
	s.mu.Unlock()
	s.notify(token)
	return nil
}

// Login exchanges credentials for a token, persists it and resolves the user
// profile. Concurrent calls are not deduplicated; the last one to finish
// wins.
func (s *AuthStore) Login(ctx context.Context, email, password string) error {
	s.beginLoad()
	defer s.endLoad()

	tok, err := s.svc.Login(ctx, email, password)
	if err != nil {
		s.setErr(err)
		return err
	}

	if err := s.state.Set(ctx, localstate.TokenKey, tok.AccessToken); err != nil {
		s.setErr(err)
		return err
	}

	user, err := s.svc.CurrentUser(ctx, tok.AccessToken)
	if err != nil {
		// The token was accepted moments ago but the profile did not
		// resolve; fail closed rather than keep a half-open session.
		if derr := s.state.Delete(ctx, localstate.TokenKey); derr != nil {
			s.logger.Error("failed to remove unusable token", "error", derr)
		}
		s.setErr(err)
		return err
	}

	s.mu.Lock()
	s.token = tok.AccessToken
	s.user = user
	s.lastErr = ""
	s.mu.Unlock()
	s.notify(tok.AccessToken)
	s.logger.Info("logged in", "email", user.Email, "admin", user.IsAdmin)
	return nil
}

// Logout clears the session. Local state clears unconditionally: a failure
// removing the persisted token is logged, never surfaced, and never leaves
// the in-memory session alive.
func (s *AuthStore) Logout(ctx context.Context) {
	s.beginLoad()
	defer s.endLoad()

	if err := s.state.Delete(ctx, localstate.TokenKey); err != nil {
		s.logger.Error("failed to remove persisted token", "error", err)
	}

	s.mu.Lock()
	s.token = ""
	s.user = nil
	s.mu.Unlock()
	s.notify("")
	s.logger.Info("logged out")
}

// Token returns the current bearer token, or "" when unauthenticated.
func (s *AuthStore) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// User returns a copy of the authenticated user, or nil.
func (s *AuthStore) User() *model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// UserID returns the authenticated user's ID and whether a session exists.
func (s *AuthStore) UserID() (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return 0, false
	}
	return s.user.ID, true
}

// IsAdmin is a pure projection of user.is_admin, recomputed on every call so
// it can never go stale against the profile.
func (s *AuthStore) IsAdmin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user != nil && s.user.IsAdmin
}

// Loading reports whether any auth operation is in flight.
func (s *AuthStore) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading > 0
}

// Err returns the last recorded error message, for display.
func (s *AuthStore) Err() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// OnChange registers a listener invoked with the new token after every
// login ("" after logout). The realtime watcher uses this to reopen or close
// the updates socket when the session changes.
func (s *AuthStore) OnChange(fn func(token string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Refresh re-announces the current session to OnChange listeners. Useful for
// a listener registered after the session was already established.
func (s *AuthStore) Refresh() {
	s.notify(s.Token())
}

// discardToken clears the persisted token and records why.
func (s *AuthStore) discardToken(ctx context.Context, reason string) error {
	if err := s.state.Delete(ctx, localstate.TokenKey); err != nil {
		return err
	}
	s.mu.Lock()
	s.token = ""
	s.user = nil
	s.lastErr = reason
	s.mu.Unlock()
	return nil
}

func (s *AuthStore) notify(token string) {
	s.mu.Lock()
	listeners := make([]func(string), len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()
	for _, fn := range listeners {
		fn(token)
	}
}

func (s *AuthStore) setErr(err error) {
	s.mu.Lock()
	s.lastErr = err.Error()
	s.mu.Unlock()
}

func (s *AuthStore) beginLoad() {
	s.mu.Lock()
	s.loading++
	s.mu.Unlock()
}

func (s *AuthStore) endLoad() {
	s.mu.Lock()
	s.loading--
	s.mu.Unlock()
}

// expired inspects the token's exp claim without verifying the signature
// (the client holds no key). Opaque or claim-less tokens are passed through
// for the backend to judge.
func expired(token string) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return exp.Before(time.Now())
}
