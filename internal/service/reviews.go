// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"net/url"
	"strconv"

	"github.com/cosmicdeploy/cosmicdeploy-go/internal/api"
	"github.com/cosmicdeploy/cosmicdeploy-go/internal/model"
)

const (
	reviewsPath      = "/reviews"
	adminReviewsPath = "/admin/reviews"
)

// ReviewService wraps the review endpoints.
type ReviewService struct {
	api *api.Client
}

// NewReviewService creates a ReviewService on the given transport.
func NewReviewService(c *api.Client) *ReviewService {
	return &ReviewService{api: c}
}

// ListPublic returns every public review. No authentication required.
func (s *ReviewService) ListPublic(ctx context.Context) ([]model.Review, error) {
	var reviews []model.Review
	if err := s.api.Get(ctx, reviewsPath+"/public/all", "", &reviews); err != nil {
		return nil, err
	}
	return reviews, nil
}

// ListMine returns a page of the caller's own reviews.
func (s *ReviewService) ListMine(ctx context.Context, token string, skip, limit int) ([]model.Review, error) {
	var reviews []model.Review
	if err := s.api.Get(ctx, reviewsPath+"/"+listQuery(skip, limit), token, &reviews); err != nil {
		return nil, err
	}
	return reviews, nil
}

// Get returns one review by ID.
func (s *ReviewService) Get(ctx context.Context, token string, id int64) (*model.Review, error) {
	var r model.Review
	if err := s.api.Get(ctx, idPath(reviewsPath, id), token, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// Create posts a new review. The rating bound (1..5) is enforced locally
// before the request is sent.
func (s *ReviewService) Create(ctx context.Context, token string, payload model.ReviewCreate) (*model.Review, error) {
	if err := model.Validate(payload); err != nil {
		return nil, err
	}
	var r model.Review
	if err := s.api.Post(ctx, reviewsPath+"/", payload, token, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// Update replaces the content and/or rating of an owned review.
func (s *ReviewService) Update(ctx context.Context, token string, id int64, payload model.ReviewUpdate) (*model.Review, error) {
	if err := model.Validate(payload); err != nil {
		return nil, err
	}
	var r model.Review
	if err := s.api.Put(ctx, idPath(reviewsPath, id), payload, token, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// Delete removes an owned review.
func (s *ReviewService) Delete(ctx context.Context, token string, id int64) error {
	return s.api.Delete(ctx, idPath(reviewsPath, id), token)
}

// AdminFilter narrows AdminList to one website and/or one author.
type AdminFilter struct {
	WebsiteID *int64
	UserID    *int64
}

// AdminList returns a page of all reviews, optionally filtered.
func (s *ReviewService) AdminList(ctx context.Context, token string, skip, limit int, filter AdminFilter) ([]model.Review, error) {
	q := url.Values{}
	if skip < 0 {
		skip = 0
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	q.Set("skip", strconv.Itoa(skip))
	q.Set("limit", strconv.Itoa(limit))
	if filter.WebsiteID != nil {
		q.Set("website_id", strconv.FormatInt(*filter.WebsiteID, 10))
	}
	if filter.UserID != nil {
		q.Set("user_id", strconv.FormatInt(*filter.UserID, 10))
	}

	var reviews []model.Review
	if err := s.api.Get(ctx, adminReviewsPath+"?"+q.Encode(), token, &reviews); err != nil {
		return nil, err
	}
	return reviews, nil
}

// AdminUpdate applies a partial update to any review.
func (s *ReviewService) AdminUpdate(ctx context.Context, token string, id int64, payload model.ReviewUpdate) (*model.Review, error) {
	if err := model.Validate(payload); err != nil {
		return nil, err
	}
	var r model.Review
	if err := s.api.Patch(ctx, idPath(adminReviewsPath, id), payload, token, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// AdminDelete removes any review.
func (s *ReviewService) AdminDelete(ctx context.Context, token string, id int64) error {
	return s.api.Delete(ctx, idPath(adminReviewsPath, id), token)
}
