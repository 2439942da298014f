// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"net/url"

	"github.com/cosmicdeploy/cosmicdeploy-go/internal/api"
	"github.com/cosmicdeploy/cosmicdeploy-go/internal/model"
)

// AuthService wraps the authentication and self-service profile endpoints.
type AuthService struct {
	api *api.Client
}

// NewAuthService creates an AuthService on the given transport.
func NewAuthService(c *api.Client) *AuthService {
	return &AuthService{api: c}
}

// Login exchanges credentials for a bearer token via the OAuth2 password
// grant. The backend expects the email in the username field.
func (s *AuthService) Login(ctx context.Context, email, password string) (*model.Token, error) {
	form := url.Values{}
	form.Set("username", email)
	form.Set("password", password)
	form.Set("grant_type", "password")

	var tok model.Token
	if err := s.api.PostForm(ctx, "/token", form, &tok); err != nil {
		return nil, err
	}
	return &tok, nil
}

// CurrentUser resolves the profile behind a bearer token.
func (s *AuthService) CurrentUser(ctx context.Context, token string) (*model.User, error) {
	var u model.User
	if err := s.api.Get(ctx, "/users/me", token, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Register creates a new account. No token required.
func (s *AuthService) Register(ctx context.Context, payload model.UserCreate) (*model.User, error) {
	if err := model.Validate(payload); err != nil {
		return nil, err
	}
	var u model.User
	if err := s.api.Post(ctx, "/users/", payload, "", &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// UpdateMe updates the caller's own profile.
func (s *AuthService) UpdateMe(ctx context.Context, token string, payload model.UserUpdate) (*model.User, error) {
	if err := model.Validate(payload); err != nil {
		return nil, err
	}
	var u model.User
	if err := s.api.Put(ctx, "/users/me", payload, token, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// UpdateSettings updates the caller's account settings.
func (s *AuthService) UpdateSettings(ctx context.Context, token string, payload model.UserUpdate) (*model.User, error) {
	if err := model.Validate(payload); err != nil {
		return nil, err
	}
	var u model.User
	if err := s.api.Post(ctx, "/users/me/settings", payload, token, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// DeleteMe removes the caller's own account.
func (s *AuthService) DeleteMe(ctx context.Context, token string) error {
	return s.api.Delete(ctx, "/users/me", token)
}
