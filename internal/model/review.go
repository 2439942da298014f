// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import "time"

// Review is star-rated user feedback on a website.
type Review struct {
	ID        int64      `json:"id"`
	Content   string     `json:"content"`
	Rating    int        `json:"rating"` // 1..5 inclusive
	UserID    int64      `json:"user_id"`
	WebsiteID int64      `json:"website_id"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`

	// Denormalized fields, populated depending on which endpoint answered.
	UserEmail    *string `json:"user_email,omitempty"`
	UserFullName *string `json:"user_full_name,omitempty"`
	WebsiteName  *string `json:"website_name,omitempty"`
}

// ReviewCreate is the payload for posting a review.
type ReviewCreate struct {
	Content   string `json:"content" validate:"required"`
	Rating    int    `json:"rating" validate:"required,min=1,max=5"`
	WebsiteID int64  `json:"website_id" validate:"required"`
}

// ReviewUpdate is a partial update of a review.
type ReviewUpdate struct {
	Content *string `json:"content,omitempty"`
	Rating  *int    `json:"rating,omitempty" validate:"omitempty,min=1,max=5"`
}
