// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"

	"github.com/cosmicdeploy/cosmicdeploy-go/internal/api"
	"github.com/cosmicdeploy/cosmicdeploy-go/internal/model"
)

const adminUsersPath = "/admin/users"

// UserService wraps the admin user-management endpoints.
type UserService struct {
	api *api.Client
}

// NewUserService creates a UserService on the given transport.
func NewUserService(c *api.Client) *UserService {
	return &UserService{api: c}
}

// List returns a page of all platform users.
func (s *UserService) List(ctx context.Context, token string, skip, limit int) ([]model.User, error) {
	var users []model.User
	if err := s.api.Get(ctx, adminUsersPath+listQuery(skip, limit), token, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// Get returns one user by ID.
func (s *UserService) Get(ctx context.Context, token string, id int64) (*model.User, error) {
	var u model.User
	if err := s.api.Get(ctx, idPath(adminUsersPath, id), token, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Update applies a partial update to a user record.
func (s *UserService) Update(ctx context.Context, token string, id int64, payload model.UserUpdate) (*model.User, error) {
	if err := model.Validate(payload); err != nil {
		return nil, err
	}
	var u model.User
	if err := s.api.Patch(ctx, idPath(adminUsersPath, id), payload, token, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Delete removes a user account.
func (s *UserService) Delete(ctx context.Context, token string, id int64) error {
	return s.api.Delete(ctx, idPath(adminUsersPath, id), token)
}
