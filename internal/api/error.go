// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"encoding/json"
	"net/http"
	"sort"
	"strings"
)

// Error is the normalized shape of every non-2xx backend response.
type Error struct {
	Message string
	Status  int
}

func (e *Error) Error() string {
	return e.Message
}

// IsNotFound reports whether err is an API error with status 404.
func IsNotFound(err error) bool {
	apiErr, ok := err.(*Error)
	return ok && apiErr.Status == http.StatusNotFound
}

// errorBody mirrors the backend's error response. detail is either a plain
// string or a map of field name to a list of validation messages.
type errorBody struct {
	Detail  json.RawMessage `json:"detail"`
	Message string          `json:"message"`
}

// extractMessage applies the detail-flattening policy: a string detail is used
// as-is; an object detail has all its values flattened into one comma-joined
// string (keys sorted so the output is deterministic); otherwise fall back to
// the message field, then to the HTTP status text.
func extractMessage(status int, isJSON bool, body []byte) string {
	if isJSON && len(body) > 0 {
		var eb errorBody
		if err := json.Unmarshal(body, &eb); err == nil {
			if msg := flattenDetail(eb.Detail); msg != "" {
				return msg
			}
			if eb.Message != "" {
				return eb.Message
			}
		}
	}
	return http.StatusText(status)
}

func flattenDetail(detail json.RawMessage) string {
	if len(detail) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(detail, &s); err == nil {
		return s
	}

	var fields map[string][]string
	if err := json.Unmarshal(detail, &fields); err == nil {
		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		var msgs []string
		for _, k := range keys {
			msgs = append(msgs, fields[k]...)
		}
		return strings.Join(msgs, ", ")
	}

	return ""
}
