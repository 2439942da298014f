// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"log/slog"
	"sync"

	"github.com/cosmicdeploy/cosmicdeploy-go/internal/model"
	"github.com/cosmicdeploy/cosmicdeploy-go/internal/service"
)

// WebsiteStore caches the deployment collection. Full fetches replace the
// collection (last fetch wins, no merging); mutations apply a local transform
// after the backend confirms. Start/stop/redeploy apply an optimistic status
// patch: only the Status of the matching entity is overwritten with the
// acknowledged value, because the final state arrives later over the updates
// socket.
type WebsiteStore struct {
	svc    *service.WebsiteService
	auth   *AuthStore
	logger *slog.Logger

	mu       sync.Mutex
	websites []model.Website
	current  *model.Website
	skip     int
	limit    int
	total    int
	loading  int
	lastErr  string
}

// NewWebsiteStore creates a WebsiteStore bound to the session in auth.
func NewWebsiteStore(svc *service.WebsiteService, auth *AuthStore, logger *slog.Logger) *WebsiteStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebsiteStore{svc: svc, auth: auth, logger: logger, limit: 10}
}

// SetPagination sets the window used by the next fetch.
func (s *WebsiteStore) SetPagination(skip, limit int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.skip = skip
	s.limit = limit
}

// FetchMine replaces the cached collection with the caller's own deployments.
// A no-op without a session, so call sites stay simple.
func (s *WebsiteStore) FetchMine(ctx context.Context) error {
	token := s.auth.Token()
	if token == "" {
		return nil
	}
	s.beginLoad()
	defer s.endLoad()

	skip, limit := s.pagination()
	sites, err := s.svc.ListMine(ctx, token, skip, limit)
	if err != nil {
		return s.fail(err)
	}
	s.replaceAll(sites)
	return nil
}

// FetchAll replaces the cached collection with every deployment on the
// platform. Admin-gated: a no-op (not an error) without the admin role.
func (s *WebsiteStore) FetchAll(ctx context.Context) error {
	token := s.auth.Token()
	if token == "" || !s.auth.IsAdmin() {
		return nil
	}
	s.beginLoad()
	defer s.endLoad()

	skip, limit := s.pagination()
	sites, err := s.svc.AdminList(ctx, token, skip, limit)
	if err != nil {
		return s.fail(err)
	}
	s.replaceAll(sites)
	return nil
}

// Get fetches one deployment and makes it the current selection.
func (s *WebsiteStore) Get(ctx context.Context, id int64) (*model.Website, error) {
	token := s.auth.Token()
	if token == "" {
		return nil, ErrNotAuthenticated
	}
	s.beginLoad()
	defer s.endLoad()

	site, err := s.svc.Get(ctx, token, id)
	if err != nil {
		return nil, s.fail(err)
	}

	s.mu.Lock()
	s.current = site
	s.lastErr = ""
	s.mu.Unlock()
	return site, nil
}

// Create registers a deployment and appends the returned entity to the cache,
// making it visible without an extra round trip.
func (s *WebsiteStore) Create(ctx context.Context, payload model.WebsiteCreate) (*model.Website, error) {
	token := s.auth.Token()
	if token == "" {
		return nil, ErrNotAuthenticated
	}
	s.beginLoad()
	defer s.endLoad()

	site, err := s.svc.Create(ctx, token, payload)
	if err != nil {
		return nil, s.fail(err)
	}

	s.mu.Lock()
	s.websites = append(s.websites, *site)
	s.total = len(s.websites)
	s.lastErr = ""
	s.mu.Unlock()
	return site, nil
}

// Update patches an owned deployment and replaces the cached entity in place.
func (s *WebsiteStore) Update(ctx context.Context, id int64, payload model.WebsiteUpdate) (*model.Website, error) {
	return s.update(ctx, id, payload, false)
}

// AdminUpdate patches any deployment. Requires the admin role.
func (s *WebsiteStore) AdminUpdate(ctx context.Context, id int64, payload model.WebsiteUpdate) (*model.Website, error) {
	return s.update(ctx, id, payload, true)
}

func (s *WebsiteStore) update(ctx context.Context, id int64, payload model.WebsiteUpdate, admin bool) (*model.Website, error) {
	token := s.auth.Token()
	if token == "" {
		return nil, ErrNotAuthenticated
	}
	if admin && !s.auth.IsAdmin() {
		return nil, s.fail(ErrUnauthorized)
	}
	s.beginLoad()
	defer s.endLoad()

	var (
		site *model.Website
		err  error
	)
	if admin {
		site, err = s.svc.AdminUpdate(ctx, token, id, payload)
	} else {
		site, err = s.svc.Update(ctx, token, id, payload)
	}
	if err != nil {
		return nil, s.fail(err)
	}

	s.mu.Lock()
	for i := range s.websites {
		if s.websites[i].ID == id {
			s.websites[i] = *site
			break
		}
	}
	if s.current != nil && s.current.ID == id {
		s.current = site
	}
	s.lastErr = ""
	s.mu.Unlock()
	return site, nil
}

// Delete removes an owned deployment from the backend and the cache. If the
// removed entity was the current selection, the selection clears.
func (s *WebsiteStore) Delete(ctx context.Context, id int64) error {
	return s.remove(ctx, id, false)
}

// AdminDelete removes any deployment. Requires the admin role.
func (s *WebsiteStore) AdminDelete(ctx context.Context, id int64) error {
	return s.remove(ctx, id, true)
}

func (s *WebsiteStore) remove(ctx context.Context, id int64, admin bool) error {
	token := s.auth.Token()
	if token == "" {
		return ErrNotAuthenticated
	}
	if admin && !s.auth.IsAdmin() {
		return s.fail(ErrUnauthorized)
	}
	s.beginLoad()
	defer s.endLoad()

	var err error
	if admin {
		err = s.svc.AdminDelete(ctx, token, id)
	} else {
		err = s.svc.Delete(ctx, token, id)
	}
	if err != nil {
		return s.fail(err)
	}

	s.mu.Lock()
	for i := range s.websites {
		if s.websites[i].ID == id {
			s.websites = append(s.websites[:i], s.websites[i+1:]...)
			break
		}
	}
	if s.current != nil && s.current.ID == id {
		s.current = nil
	}
	s.total = len(s.websites)
	s.lastErr = ""
	s.mu.Unlock()
	return nil
}

// Start asks the backend to start the deployment and optimistically patches
// the cached status with the acknowledged value. There is no client-side
// guard against starting an already-running site; the backend is
// authoritative and its rejection surfaces as a normal API error.
func (s *WebsiteStore) Start(ctx context.Context, id int64) error {
	return s.action(ctx, id, s.svc.Start)
}

// Stop asks the backend to stop the deployment and patches the cached status.
func (s *WebsiteStore) Stop(ctx context.Context, id int64) error {
	return s.action(ctx, id, s.svc.Stop)
}

// Redeploy asks the backend to rebuild the deployment and patches the cached
// status (normally to "deploying"; the terminal state arrives by push).
func (s *WebsiteStore) Redeploy(ctx context.Context, id int64) error {
	return s.action(ctx, id, s.svc.Redeploy)
}

// AdminStart starts any user's deployment. Requires the admin role.
func (s *WebsiteStore) AdminStart(ctx context.Context, id int64) error {
	if !s.auth.IsAdmin() {
		return s.fail(ErrUnauthorized)
	}
	return s.action(ctx, id, s.svc.AdminStart)
}

// AdminStop stops any user's deployment. Requires the admin role.
func (s *WebsiteStore) AdminStop(ctx context.Context, id int64) error {
	if !s.auth.IsAdmin() {
		return s.fail(ErrUnauthorized)
	}
	return s.action(ctx, id, s.svc.AdminStop)
}

type actionCall func(ctx context.Context, token string, id int64) (*model.Website, error)

func (s *WebsiteStore) action(ctx context.Context, id int64, call actionCall) error {
	token := s.auth.Token()
	if token == "" {
		return ErrNotAuthenticated
	}
	s.beginLoad()
	defer s.endLoad()

	site, err := call(ctx, token, id)
	if err != nil {
		return s.fail(err)
	}

	s.patchStatus(id, site.Status)
	return nil
}

// ApplyRemoteStatusUpdate patches the cached status for a backend push. The
// transport (updates socket) calls this; the store itself knows nothing about
// the wire.
func (s *WebsiteStore) ApplyRemoteStatusUpdate(id int64, status model.WebsiteStatus) {
	if !status.Valid() {
		s.logger.Warn("ignoring status push with unknown status", "website_id", id, "status", status)
		return
	}
	s.patchStatus(id, status)
}

// ApplyRemoteDeploymentLog appends a pushed log line to the cached entity.
func (s *WebsiteStore) ApplyRemoteDeploymentLog(id int64, line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.websites {
		if s.websites[i].ID == id {
			appendLog(&s.websites[i], line)
			break
		}
	}
	if s.current != nil && s.current.ID == id {
		appendLog(s.current, line)
	}
}

func appendLog(site *model.Website, line string) {
	if site.DeploymentLog == nil {
		site.DeploymentLog = &line
		return
	}
	joined := *site.DeploymentLog + "\n" + line
	site.DeploymentLog = &joined
}

// patchStatus overwrites only the Status field of the matching entity and the
// mirrored current selection.
func (s *WebsiteStore) patchStatus(id int64, status model.WebsiteStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.websites {
		if s.websites[i].ID == id {
			s.websites[i].Status = status
			break
		}
	}
	if s.current != nil && s.current.ID == id {
		s.current.Status = status
	}
	s.lastErr = ""
}

// Websites returns a copy of the cached collection.
func (s *WebsiteStore) Websites() []model.Website {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Website, len(s.websites))
	copy(out, s.websites)
	return out
}

// Current returns a copy of the current selection, or nil.
func (s *WebsiteStore) Current() *model.Website {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil
	}
	site := *s.current
	return &site
}

// Loading reports whether any store operation is in flight. The flag is
// reference counted, so overlapping calls never clear it for one another.
func (s *WebsiteStore) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading > 0
}

// Err returns the last recorded error message, for display.
func (s *WebsiteStore) Err() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Pagination returns the current fetch window and the cached total.
func (s *WebsiteStore) Pagination() (skip, limit, total int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.skip, s.limit, s.total
}

func (s *WebsiteStore) pagination() (skip, limit int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.skip, s.limit
}

func (s *WebsiteStore) replaceAll(sites []model.Website) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.websites = sites
	s.total = len(sites)
	s.lastErr = ""
}

// fail records the error for display and passes it through unchanged so the
// caller can react as well.
func (s *WebsiteStore) fail(err error) error {
	s.mu.Lock()
	s.lastErr = err.Error()
	s.mu.Unlock()
	return err
}

func (s *WebsiteStore) beginLoad() {
	s.mu.Lock()
	s.loading++
	s.mu.Unlock()
}

func (s *WebsiteStore) endLoad() {
	s.mu.Lock()
	s.loading--
	s.mu.Unlock()
}
