// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package model defines the domain entities exchanged with the CosmicDeploy
// backend: User, Website, Review, their create/update payloads, and the
// websocket message envelope.
package model

import "time"

// User represents a platform account.
type User struct {
	ID            int64      `json:"id"`
	Email         string     `json:"email"`
	FullName      *string    `json:"full_name"`
	IsActive      bool       `json:"is_active"`
	IsAdmin       bool       `json:"is_admin"`
	CreatedAt     time.Time  `json:"created_at"`
	PlanExpiresAt *time.Time `json:"plan_expires_at"`
}

// HasActivePlan reports whether the user's paid plan is still valid.
// A nil expiry means the account has no plan attached.
func (u *User) HasActivePlan() bool {
	return u.PlanExpiresAt != nil && u.PlanExpiresAt.After(time.Now())
}

// UserCreate is the registration payload.
type UserCreate struct {
	Email    string  `json:"email" validate:"required,email"`
	Password string  `json:"password" validate:"required,min=8"`
	FullName *string `json:"full_name,omitempty"`
}

// UserUpdate is a partial update of a user profile. Nil fields are left
// unchanged by the backend.
type UserUpdate struct {
	Email         *string    `json:"email,omitempty" validate:"omitempty,email"`
	Password      *string    `json:"password,omitempty" validate:"omitempty,min=8"`
	FullName      *string    `json:"full_name,omitempty"`
	PlanExpiresAt *time.Time `json:"plan_expires_at,omitempty"`
}

// Token is the response of the password grant exchange.
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}
