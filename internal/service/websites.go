// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"

	"github.com/cosmicdeploy/cosmicdeploy-go/internal/api"
	"github.com/cosmicdeploy/cosmicdeploy-go/internal/model"
)

const (
	websitesPath      = "/websites"
	adminWebsitesPath = "/admin/websites"
)

// WebsiteService wraps the deployment endpoints, own-scope and admin-scope.
// Action calls (start/stop/redeploy) return the backend's acknowledgment of
// the accepted transition; the final state arrives over the updates socket.
type WebsiteService struct {
	api *api.Client
}

// NewWebsiteService creates a WebsiteService on the given transport.
func NewWebsiteService(c *api.Client) *WebsiteService {
	return &WebsiteService{api: c}
}

// ListMine returns a page of the caller's own deployments.
func (s *WebsiteService) ListMine(ctx context.Context, token string, skip, limit int) ([]model.Website, error) {
	var sites []model.Website
	if err := s.api.Get(ctx, websitesPath+"/user"+listQuery(skip, limit), token, &sites); err != nil {
		return nil, err
	}
	return sites, nil
}

// Get returns one deployment by ID.
func (s *WebsiteService) Get(ctx context.Context, token string, id int64) (*model.Website, error) {
	var site model.Website
	if err := s.api.Get(ctx, idPath(websitesPath, id), token, &site); err != nil {
		return nil, err
	}
	return &site, nil
}

// Create registers a new deployment from a git repository.
func (s *WebsiteService) Create(ctx context.Context, token string, payload model.WebsiteCreate) (*model.Website, error) {
	if err := model.Validate(payload); err != nil {
		return nil, err
	}
	var site model.Website
	if err := s.api.Post(ctx, websitesPath, payload, token, &site); err != nil {
		return nil, err
	}
	return &site, nil
}

// Update applies a partial update to an owned deployment record.
func (s *WebsiteService) Update(ctx context.Context, token string, id int64, payload model.WebsiteUpdate) (*model.Website, error) {
	if err := model.Validate(payload); err != nil {
		return nil, err
	}
	var site model.Website
	if err := s.api.Patch(ctx, idPath(websitesPath, id), payload, token, &site); err != nil {
		return nil, err
	}
	return &site, nil
}

// Delete removes an owned deployment.
func (s *WebsiteService) Delete(ctx context.Context, token string, id int64) error {
	return s.api.Delete(ctx, idPath(websitesPath, id), token)
}

// Start asks the backend to start a stopped deployment.
func (s *WebsiteService) Start(ctx context.Context, token string, id int64) (*model.Website, error) {
	return s.action(ctx, token, idPath(websitesPath, id)+"/start")
}

// Stop asks the backend to stop a running deployment.
func (s *WebsiteService) Stop(ctx context.Context, token string, id int64) (*model.Website, error) {
	return s.action(ctx, token, idPath(websitesPath, id)+"/stop")
}

// Redeploy asks the backend to rebuild and restart a deployment.
func (s *WebsiteService) Redeploy(ctx context.Context, token string, id int64) (*model.Website, error) {
	return s.action(ctx, token, idPath(websitesPath, id)+"/redeploy")
}

// AdminList returns a page of every deployment on the platform. Owner is
// populated on admin-scoped responses.
func (s *WebsiteService) AdminList(ctx context.Context, token string, skip, limit int) ([]model.Website, error) {
	var sites []model.Website
	if err := s.api.Get(ctx, adminWebsitesPath+listQuery(skip, limit), token, &sites); err != nil {
		return nil, err
	}
	return sites, nil
}

// AdminUpdate applies a partial update to any deployment record.
func (s *WebsiteService) AdminUpdate(ctx context.Context, token string, id int64, payload model.WebsiteUpdate) (*model.Website, error) {
	if err := model.Validate(payload); err != nil {
		return nil, err
	}
	var site model.Website
	if err := s.api.Patch(ctx, idPath(adminWebsitesPath, id), payload, token, &site); err != nil {
		return nil, err
	}
	return &site, nil
}

// AdminDelete removes any deployment.
func (s *WebsiteService) AdminDelete(ctx context.Context, token string, id int64) error {
	return s.api.Delete(ctx, idPath(adminWebsitesPath, id), token)
}

// AdminStart starts any user's deployment.
func (s *WebsiteService) AdminStart(ctx context.Context, token string, id int64) (*model.Website, error) {
	return s.action(ctx, token, idPath(adminWebsitesPath, id)+"/start")
}

// AdminStop stops any user's deployment.
func (s *WebsiteService) AdminStop(ctx context.Context, token string, id int64) (*model.Website, error) {
	return s.action(ctx, token, idPath(adminWebsitesPath, id)+"/stop")
}

func (s *WebsiteService) action(ctx context.Context, token, path string) (*model.Website, error) {
	var site model.Website
	if err := s.api.Post(ctx, path, nil, token, &site); err != nil {
		return nil, err
	}
	return &site, nil
}
