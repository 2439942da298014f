// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package store holds the client-side caches of server-owned entities. Each
// store is the only client-side copy of its collection: full fetches replace
// it wholesale, mutations apply a local transform (append, replace-by-id,
// remove-by-id, patch-field-by-id) only after the backend confirmed the call.
package store

import "errors"

// Sentinel errors raised before any network call.
var (
	// ErrNotAuthenticated is returned when an operation that needs a
	// session runs without one.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrUnauthorized is returned when a non-admin attempts an admin-only
	// operation or a mutation on a resource they do not own. The backend
	// re-checks; this is defense in depth.
	ErrUnauthorized = errors.New("unauthorized")
)
