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

// ReviewStore caches reviews with the same replace/append/remove discipline
// as the website store, minus sockets (reviews have no pushed state). It
// additionally enforces ownership locally: a non-admin may only update or
// delete a review they authored. The backend re-checks; failing early keeps
// the cache untouched and saves the round trip.
type ReviewStore struct {
	svc    *service.ReviewService
	auth   *AuthStore
	logger *slog.Logger

	mu      sync.Mutex
	reviews []model.Review
	current *model.Review
	loading int
	lastErr string
}

// NewReviewStore creates a ReviewStore bound to the session in auth.
func NewReviewStore(svc *service.ReviewService, auth *AuthStore, logger *slog.Logger) *ReviewStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReviewStore{svc: svc, auth: auth, logger: logger}
}

// FetchPublic replaces the cache with every public review. Works without a
// session.
func (s *ReviewStore) FetchPublic(ctx context.Context) error {
	s.beginLoad()
	defer s.endLoad()

	reviews, err := s.svc.ListPublic(ctx)
	if err != nil {
		return s.fail(err)
	}
	s.replaceAll(reviews)
	return nil
}

// FetchMine replaces the cache with the caller's own reviews. A no-op
// without a session.
func (s *ReviewStore) FetchMine(ctx context.Context) error {
	token := s.auth.Token()
	if token == "" {
		return nil
	}
	s.beginLoad()
	defer s.endLoad()

	reviews, err := s.svc.ListMine(ctx, token, 0, 0)
	if err != nil {
		return s.fail(err)
	}
	s.replaceAll(reviews)
	return nil
}

// FetchAll replaces the cache with all reviews on the platform, optionally
// filtered. Requires the admin role.
func (s *ReviewStore) FetchAll(ctx context.Context, skip, limit int, filter service.AdminFilter) error {
	token := s.auth.Token()
	if token == "" {
		return ErrNotAuthenticated
	}
	if !s.auth.IsAdmin() {
		return s.fail(ErrUnauthorized)
	}
	s.beginLoad()
	defer s.endLoad()

	reviews, err := s.svc.AdminList(ctx, token, skip, limit, filter)
	if err != nil {
		return s.fail(err)
	}
	s.replaceAll(reviews)
	return nil
}

// Get fetches one review and makes it the current selection.
func (s *ReviewStore) Get(ctx context.Context, id int64) (*model.Review, error) {
	token := s.auth.Token()
	if token == "" {
		return nil, ErrNotAuthenticated
	}
	s.beginLoad()
	defer s.endLoad()

	review, err := s.svc.Get(ctx, token, id)
	if err != nil {
		return nil, s.fail(err)
	}

	s.mu.Lock()
	s.current = review
	s.lastErr = ""
	s.mu.Unlock()
	return review, nil
}

// Create posts a review and appends the returned entity to the cache.
func (s *ReviewStore) Create(ctx context.Context, payload model.ReviewCreate) (*model.Review, error) {
	token := s.auth.Token()
	if token == "" {
		return nil, ErrNotAuthenticated
	}
	s.beginLoad()
	defer s.endLoad()

	review, err := s.svc.Create(ctx, token, payload)
	if err != nil {
		return nil, s.fail(err)
	}

	s.mu.Lock()
	s.reviews = append(s.reviews, *review)
	s.lastErr = ""
	s.mu.Unlock()
	return review, nil
}

// Update replaces an owned review by id. A non-admin updating someone else's
// review fails locally with ErrUnauthorized before any network call.
func (s *ReviewStore) Update(ctx context.Context, id int64, payload model.ReviewUpdate) (*model.Review, error) {
	token := s.auth.Token()
	if token == "" {
		return nil, ErrNotAuthenticated
	}
	if err := s.checkOwnership(id); err != nil {
		return nil, s.fail(err)
	}
	s.beginLoad()
	defer s.endLoad()

	review, err := s.svc.Update(ctx, token, id, payload)
	if err != nil {
		return nil, s.fail(err)
	}

	s.mu.Lock()
	for i := range s.reviews {
		if s.reviews[i].ID == id {
			s.reviews[i] = *review
			break
		}
	}
	if s.current != nil && s.current.ID == id {
		s.current = review
	}
	s.lastErr = ""
	s.mu.Unlock()
	return review, nil
}

// Delete removes an owned review from the backend and the cache. Ownership is
// checked locally first; the cached collection is untouched on failure.
func (s *ReviewStore) Delete(ctx context.Context, id int64) error {
	token := s.auth.Token()
	if token == "" {
		return ErrNotAuthenticated
	}
	if err := s.checkOwnership(id); err != nil {
		return s.fail(err)
	}
	s.beginLoad()
	defer s.endLoad()

	if err := s.svc.Delete(ctx, token, id); err != nil {
		return s.fail(err)
	}
	s.removeLocal(id)
	return nil
}

// AdminUpdate replaces any review. Requires the admin role.
func (s *ReviewStore) AdminUpdate(ctx context.Context, id int64, payload model.ReviewUpdate) (*model.Review, error) {
	token := s.auth.Token()
	if token == "" {
		return nil, ErrNotAuthenticated
	}
	if !s.auth.IsAdmin() {
		return nil, s.fail(ErrUnauthorized)
	}
	s.beginLoad()
	defer s.endLoad()

	review, err := s.svc.AdminUpdate(ctx, token, id, payload)
	if err != nil {
		return nil, s.fail(err)
	}

	s.mu.Lock()
	for i := range s.reviews {
		if s.reviews[i].ID == id {
			s.reviews[i] = *review
			break
		}
	}
	if s.current != nil && s.current.ID == id {
		s.current = review
	}
	s.lastErr = ""
	s.mu.Unlock()
	return review, nil
}

// AdminDelete removes any review. Requires the admin role.
func (s *ReviewStore) AdminDelete(ctx context.Context, id int64) error {
	token := s.auth.Token()
	if token == "" {
		return ErrNotAuthenticated
	}
	if !s.auth.IsAdmin() {
		return s.fail(ErrUnauthorized)
	}
	s.beginLoad()
	defer s.endLoad()

	if err := s.svc.AdminDelete(ctx, token, id); err != nil {
		return s.fail(err)
	}
	s.removeLocal(id)
	return nil
}

// checkOwnership fails when the cached review exists and belongs to another
// user while the caller is not an admin. Reviews missing from the cache pass
// through; the backend is the authority of record.
func (s *ReviewStore) checkOwnership(id int64) error {
	if s.auth.IsAdmin() {
		return nil
	}
	userID, ok := s.auth.UserID()
	if !ok {
		return ErrNotAuthenticated
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.reviews {
		if s.reviews[i].ID == id {
			if s.reviews[i].UserID != userID {
				return ErrUnauthorized
			}
			return nil
		}
	}
	return nil
}

// Reviews returns a copy of the cached collection.
func (s *ReviewStore) Reviews() []model.Review {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Review, len(s.reviews))
	copy(out, s.reviews)
	return out
}

// Current returns a copy of the current selection, or nil.
func (s *ReviewStore) Current() *model.Review {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil
	}
	r := *s.current
	return &r
}

// Loading reports whether any store operation is in flight.
func (s *ReviewStore) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading > 0
}

// Err returns the last recorded error message, for display.
func (s *ReviewStore) Err() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *ReviewStore) removeLocal(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.reviews {
		if s.reviews[i].ID == id {
			s.reviews = append(s.reviews[:i], s.reviews[i+1:]...)
			break
		}
	}
	if s.current != nil && s.current.ID == id {
		s.current = nil
	}
	s.lastErr = ""
}

func (s *ReviewStore) replaceAll(reviews []model.Review) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reviews = reviews
	s.lastErr = ""
}

func (s *ReviewStore) fail(err error) error {
	s.mu.Lock()
	s.lastErr = err.Error()
	s.mu.Unlock()
	return err
}

func (s *ReviewStore) beginLoad() {
	s.mu.Lock()
	s.loading++
	s.mu.Unlock()
}

func (s *ReviewStore) endLoad() {
	s.mu.Lock()
	s.loading--
	s.mu.Unlock()
}
