// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cosmicdeploy/cosmicdeploy-go/internal/api"
	"github.com/cosmicdeploy/cosmicdeploy-go/internal/model"
)

// recordedRequest captures what the fake backend saw.
type recordedRequest struct {
	method string
	path   string
	query  string
	form   map[string]string
	hit    bool
}

func newBackend(t *testing.T, register func(r chi.Router, rec *recordedRequest)) (*api.Client, *recordedRequest) {
	t.Helper()
	rec := &recordedRequest{}
	r := chi.NewRouter()
	register(r, rec)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return api.New(srv.URL, 5*time.Second, slog.Default()), rec
}

func jsonOK(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(body))
}

func TestAuthService_LoginSendsPasswordGrant(t *testing.T) {
	client, rec := newBackend(t, func(r chi.Router, rec *recordedRequest) {
		r.Post("/token", func(w http.ResponseWriter, req *http.Request) {
			_ = req.ParseForm()
			rec.hit = true
			rec.form = map[string]string{
				"username":   req.PostFormValue("username"),
				"password":   req.PostFormValue("password"),
				"grant_type": req.PostFormValue("grant_type"),
			}
			jsonOK(w, `{"access_token":"tok","token_type":"bearer"}`)
		})
	})

	tok, err := NewAuthService(client).Login(context.Background(), "a@b.co", "hunter22")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if tok.AccessToken != "tok" {
		t.Errorf("AccessToken = %q", tok.AccessToken)
	}
	if rec.form["username"] != "a@b.co" {
		t.Errorf("username = %q, want the email", rec.form["username"])
	}
	if rec.form["grant_type"] != "password" {
		t.Errorf("grant_type = %q", rec.form["grant_type"])
	}
}

func TestReviewService_CreateRejectsBadRatingLocally(t *testing.T) {
	client, rec := newBackend(t, func(r chi.Router, rec *recordedRequest) {
		r.Post("/reviews/", func(w http.ResponseWriter, req *http.Request) {
			rec.hit = true
			jsonOK(w, `{}`)
		})
	})
	svc := NewReviewService(client)

	for _, rating := range []int{0, 6, -1} {
		_, err := svc.Create(context.Background(), "t", model.ReviewCreate{
			Content: "x", Rating: rating, WebsiteID: 1,
		})
		if err == nil {
			t.Errorf("rating %d: expected validation error", rating)
		}
	}
	if rec.hit {
		t.Error("invalid payload reached the network")
	}
}

func TestReviewService_AdminListFilters(t *testing.T) {
	client, rec := newBackend(t, func(r chi.Router, rec *recordedRequest) {
		r.Get("/admin/reviews", func(w http.ResponseWriter, req *http.Request) {
			rec.hit = true
			rec.query = req.URL.RawQuery
			jsonOK(w, `[]`)
		})
	})

	websiteID := int64(3)
	_, err := NewReviewService(client).AdminList(context.Background(), "t", 10, 20, AdminFilter{WebsiteID: &websiteID})
	if err != nil {
		t.Fatalf("AdminList: %v", err)
	}

	q := rec.query
	for _, want := range []string{"skip=10", "limit=20", "website_id=3"} {
		if !containsParam(q, want) {
			t.Errorf("query %q missing %q", q, want)
		}
	}
	if containsParam(q, "user_id") {
		t.Errorf("query %q should not carry user_id", q)
	}
}

func containsParam(query, param string) bool {
	for _, part := range splitQuery(query) {
		if part == param || (len(part) > len(param) && part[:len(param)+1] == param+"=") {
			return true
		}
	}
	return false
}

func splitQuery(q string) []string {
	var parts []string
	start := 0
	for i := 0; i <= len(q); i++ {
		if i == len(q) || q[i] == '&' {
			if i > start {
				parts = append(parts, q[start:i])
			}
			start = i + 1
		}
	}
	return parts
}

func TestWebsiteService_PaginationDefaults(t *testing.T) {
	client, rec := newBackend(t, func(r chi.Router, rec *recordedRequest) {
		r.Get("/websites/user", func(w http.ResponseWriter, req *http.Request) {
			rec.hit = true
			rec.query = req.URL.RawQuery
			jsonOK(w, `[]`)
		})
	})

	if _, err := NewWebsiteService(client).ListMine(context.Background(), "t", -5, 0); err != nil {
		t.Fatalf("ListMine: %v", err)
	}
	if !containsParam(rec.query, "skip=0") || !containsParam(rec.query, "limit=100") {
		t.Errorf("query %q, want defaults skip=0 limit=100", rec.query)
	}
}

func TestWebsiteService_ActionsPostToActionRoutes(t *testing.T) {
	paths := map[string]bool{}
	client, _ := newBackend(t, func(r chi.Router, rec *recordedRequest) {
		handler := func(w http.ResponseWriter, req *http.Request) {
			paths[req.URL.Path] = true
			jsonOK(w, `{"id":9,"status":"deploying"}`)
		}
		r.Post("/websites/{id}/start", handler)
		r.Post("/websites/{id}/stop", handler)
		r.Post("/websites/{id}/redeploy", handler)
		r.Post("/admin/websites/{id}/start", handler)
		r.Post("/admin/websites/{id}/stop", handler)
	})
	svc := NewWebsiteService(client)
	ctx := context.Background()

	if _, err := svc.Start(ctx, "t", 9); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := svc.Stop(ctx, "t", 9); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if _, err := svc.Redeploy(ctx, "t", 9); err != nil {
		t.Fatalf("Redeploy: %v", err)
	}
	if _, err := svc.AdminStart(ctx, "t", 9); err != nil {
		t.Fatalf("AdminStart: %v", err)
	}
	if _, err := svc.AdminStop(ctx, "t", 9); err != nil {
		t.Fatalf("AdminStop: %v", err)
	}

	for _, want := range []string{
		"/websites/9/start", "/websites/9/stop", "/websites/9/redeploy",
		"/admin/websites/9/start", "/admin/websites/9/stop",
	} {
		if !paths[want] {
			t.Errorf("action route %q was not hit", want)
		}
	}
}
