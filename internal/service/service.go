// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package service maps backend endpoints to typed Go calls, one thin function
// per route. Services validate payloads locally before going on the wire and
// never swallow errors; caching and authorization policy live in the stores.
package service

import (
	"fmt"
	"net/url"
	"strconv"
)

// DefaultLimit mirrors the backend's default page size.
const DefaultLimit = 100

// listQuery builds the uniform skip/limit pagination query. Every list
// endpoint takes the same two parameters; a non-positive limit applies the
// backend default client-side so callers can pass zero values.
func listQuery(skip, limit int) string {
	if skip < 0 {
		skip = 0
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	q := url.Values{}
	q.Set("skip", strconv.Itoa(skip))
	q.Set("limit", strconv.Itoa(limit))
	return "?" + q.Encode()
}

// idPath joins a base route with a numeric entity ID.
func idPath(base string, id int64) string {
	return fmt.Sprintf("%s/%d", base, id)
}
