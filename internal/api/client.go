// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package api implements the typed HTTP and websocket transport for the
// CosmicDeploy backend. Every helper attaches the bearer token when one is
// given, tags the request with a correlation ID, and normalizes non-2xx
// responses into *Error.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MaxErrorBodyLen caps how much of an error response body is read.
const MaxErrorBodyLen = 64 * 1024

// UserAgent header value sent on every request.
const UserAgent = "cosmicdeploy-go/1.0"

// Client issues typed requests against one backend base URL.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// New creates a Client for the given base URL. The base URL must not end with
// a slash (config.Load guarantees this).
func New(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: baseURL,
		http: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		logger: logger,
	}
}

// BaseURL returns the configured backend base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Get issues a GET request and decodes the response into out.
func (c *Client) Get(ctx context.Context, path, token string, out any) error {
	return c.request(ctx, http.MethodGet, path, nil, "", token, out)
}

// Post issues a POST request with a JSON body and decodes the response into out.
func (c *Client) Post(ctx context.Context, path string, body any, token string, out any) error {
	return c.json(ctx, http.MethodPost, path, body, token, out)
}

// Put issues a PUT request with a JSON body and decodes the response into out.
func (c *Client) Put(ctx context.Context, path string, body any, token string, out any) error {
	return c.json(ctx, http.MethodPut, path, body, token, out)
}

// Patch issues a PATCH request with a JSON body and decodes the response into out.
func (c *Client) Patch(ctx context.Context, path string, body any, token string, out any) error {
	return c.json(ctx, http.MethodPatch, path, body, token, out)
}

// Delete issues a DELETE request. The backend answers deletes with 204.
func (c *Client) Delete(ctx context.Context, path, token string) error {
	return c.request(ctx, http.MethodDelete, path, nil, "", token, nil)
}

// PostForm issues a form-encoded POST (the OAuth2 password grant endpoint
// does not accept JSON).
func (c *Client) PostForm(ctx context.Context, path string, form url.Values, out any) error {
	body := strings.NewReader(form.Encode())
	return c.request(ctx, http.MethodPost, path, body, "application/x-www-form-urlencoded", "", out)
}

// Upload issues a multipart POST with a single file field.
func (c *Client) Upload(ctx context.Context, path, field, filename string, r io.Reader, token string, out any) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, filename)
	if err != nil {
		return fmt.Errorf("creating multipart field: %w", err)
	}
	if _, err := io.Copy(fw, r); err != nil {
		return fmt.Errorf("writing multipart body: %w", err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("closing multipart body: %w", err)
	}
	return c.request(ctx, http.MethodPost, path, &buf, mw.FormDataContentType(), token, out)
}

func (c *Client) json(ctx context.Context, method, path string, body any, token string, out any) error {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		r = bytes.NewReader(data)
	}
	return c.request(ctx, method, path, r, "application/json", token, out)
}

// request builds, sends and decodes one HTTP call.
func (c *Client) request(ctx context.Context, method, path string, body io.Reader, contentType, token string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("X-Request-ID", uuid.NewString())
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	isJSON := strings.Contains(resp.Header.Get("Content-Type"), "application/json")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, MaxErrorBodyLen))
		apiErr := &Error{
			Message: extractMessage(resp.StatusCode, isJSON, data),
			Status:  resp.StatusCode,
		}
		c.logger.Debug("request failed",
			"method", method,
			"path", path,
			"status", resp.StatusCode,
			"message", apiErr.Message)
		return apiErr
	}

	// 204 carries no body by definition
	if resp.StatusCode == http.StatusNoContent || out == nil {
		return nil
	}

	if isJSON {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
		return nil
	}

	// Non-JSON responses are returned as raw text
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if s, ok := out.(*string); ok {
		*s = string(data)
		return nil
	}
	return fmt.Errorf("unexpected content type %q for %s %s", resp.Header.Get("Content-Type"), method, path)
}
