// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import "time"

// WebsiteStatus is the backend-managed runtime state of a deployment.
type WebsiteStatus string

// Website runtime states. Transitions are driven by the backend; the client
// only mirrors what the server reports (or acknowledges on an action call).
const (
	StatusStopped   WebsiteStatus = "stopped"
	StatusRunning   WebsiteStatus = "running"
	StatusDeploying WebsiteStatus = "deploying"
	StatusError     WebsiteStatus = "error"
)

// Valid reports whether s is one of the known runtime states.
func (s WebsiteStatus) Valid() bool {
	switch s {
	case StatusStopped, StatusRunning, StatusDeploying, StatusError:
		return true
	}
	return false
}

// Website is a deployment record backed by a git repository.
type Website struct {
	ID            int64         `json:"id"`
	Name          string        `json:"name"`
	GitRepo       string        `json:"git_repo"`
	Status        WebsiteStatus `json:"status"`
	Port          int           `json:"port,omitempty"`
	URL           string        `json:"url,omitempty"`
	CustomDomain  *string       `json:"custom_domain,omitempty"`
	UserID        int64         `json:"user_id"`
	Owner         *User         `json:"owner,omitempty"` // Populated only in admin-scoped responses
	PID           *int          `json:"pid,omitempty"`
	DeploymentLog *string       `json:"deployment_log,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     *time.Time    `json:"updated_at,omitempty"`
	ExpiresAt     *time.Time    `json:"expires_at,omitempty"`
}

// WebsiteCreate is the payload for registering a new deployment.
type WebsiteCreate struct {
	Name    string `json:"name" validate:"required"`
	GitRepo string `json:"git_repo" validate:"required,url"`
}

// WebsiteUpdate is a partial update of a deployment record.
type WebsiteUpdate struct {
	Name         *string `json:"name,omitempty"`
	GitRepo      *string `json:"git_repo,omitempty" validate:"omitempty,url"`
	CustomDomain *string `json:"custom_domain,omitempty"`
}
