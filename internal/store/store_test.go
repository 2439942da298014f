// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cosmicdeploy/cosmicdeploy-go/internal/api"
	"github.com/cosmicdeploy/cosmicdeploy-go/internal/localstate"
	"github.com/cosmicdeploy/cosmicdeploy-go/internal/model"
	"github.com/cosmicdeploy/cosmicdeploy-go/internal/service"
)

// fakeBackend is an in-memory CosmicDeploy API used by the store tests.
// Tokens are "tok:<email>"; the password for every seeded user is "secret".
type fakeBackend struct {
	mu       sync.Mutex
	users    map[string]model.User // keyed by email
	websites map[int64]*model.Website
	reviews  map[int64]*model.Review
	nextID   int64

	rejectMe bool // force 401 on /users/me
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		users:    make(map[string]model.User),
		websites: make(map[int64]*model.Website),
		reviews:  make(map[int64]*model.Review),
		nextID:   100,
	}
}

func (b *fakeBackend) seedUser(email string, admin bool) model.User {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	u := model.User{
		ID:        b.nextID,
		Email:     email,
		IsActive:  true,
		IsAdmin:   admin,
		CreatedAt: time.Now(),
	}
	b.users[email] = u
	return u
}

func (b *fakeBackend) seedWebsite(userID int64, name string, status model.WebsiteStatus) *model.Website {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	site := &model.Website{
		ID:        b.nextID,
		Name:      name,
		GitRepo:   "https://github.com/x/" + name,
		Status:    status,
		UserID:    userID,
		CreatedAt: time.Now(),
	}
	b.websites[site.ID] = site
	return site
}

func (b *fakeBackend) seedReview(userID, websiteID int64, rating int) *model.Review {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	r := &model.Review{
		ID:        b.nextID,
		Content:   "seeded",
		Rating:    rating,
		UserID:    userID,
		WebsiteID: websiteID,
		CreatedAt: time.Now(),
	}
	b.reviews[r.ID] = r
	return r
}

func (b *fakeBackend) authUser(r *http.Request) (model.User, bool) {
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer tok:") {
		return model.User{}, false
	}
	email := strings.TrimPrefix(auth, "Bearer tok:")
	b.mu.Lock()
	defer b.mu.Unlock()
	u, ok := b.users[email]
	return u, ok
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func urlID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id
}

func (b *fakeBackend) handler() http.Handler {
	r := chi.NewRouter()

	r.Post("/token", func(w http.ResponseWriter, req *http.Request) {
		_ = req.ParseForm()
		email := req.PostFormValue("username")
		b.mu.Lock()
		_, ok := b.users[email]
		b.mu.Unlock()
		if !ok || req.PostFormValue("password") != "secret" {
			writeDetail(w, http.StatusUnauthorized, "Incorrect email or password")
			return
		}
		writeJSON(w, http.StatusOK, model.Token{AccessToken: "tok:" + email, TokenType: "bearer"})
	})

	r.Get("/users/me", func(w http.ResponseWriter, req *http.Request) {
		if b.rejectMe {
			writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
			return
		}
		u, ok := b.authUser(req)
		if !ok {
			writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
			return
		}
		writeJSON(w, http.StatusOK, u)
	})

	r.Get("/websites/user", func(w http.ResponseWriter, req *http.Request) {
		u, ok := b.authUser(req)
		if !ok {
			writeDetail(w, http.StatusUnauthorized, "Not authenticated")
			return
		}
		b.mu.Lock()
		var sites []model.Website
		for _, s := range b.websites {
			if s.UserID == u.ID {
				sites = append(sites, *s)
			}
		}
		b.mu.Unlock()
		writeJSON(w, http.StatusOK, sites)
	})

	r.Post("/websites", func(w http.ResponseWriter, req *http.Request) {
		u, ok := b.authUser(req)
		if !ok {
			writeDetail(w, http.StatusUnauthorized, "Not authenticated")
			return
		}
		var payload model.WebsiteCreate
		_ = json.NewDecoder(req.Body).Decode(&payload)
		b.mu.Lock()
		b.nextID++
		site := &model.Website{
			ID:        b.nextID,
			Name:      payload.Name,
			GitRepo:   payload.GitRepo,
			Status:    model.StatusStopped,
			UserID:    u.ID,
			CreatedAt: time.Now(),
		}
		b.websites[site.ID] = site
		b.mu.Unlock()
		writeJSON(w, http.StatusCreated, site)
	})

	r.Get("/websites/{id}", func(w http.ResponseWriter, req *http.Request) {
		b.mu.Lock()
		site, ok := b.websites[urlID(req)]
		b.mu.Unlock()
		if !ok {
			writeDetail(w, http.StatusNotFound, "Website not found")
			return
		}
		writeJSON(w, http.StatusOK, site)
	})

	r.Patch("/websites/{id}", b.updateWebsite)
	r.Patch("/admin/websites/{id}", b.updateWebsite)

	r.Delete("/websites/{id}", b.deleteWebsite)
	r.Delete("/admin/websites/{id}", b.deleteWebsite)

	action := func(status model.WebsiteStatus) http.HandlerFunc {
		return func(w http.ResponseWriter, req *http.Request) {
			b.mu.Lock()
			site, ok := b.websites[urlID(req)]
			if ok {
				site.Status = status
			}
			b.mu.Unlock()
			if !ok {
				writeDetail(w, http.StatusNotFound, "Website not found")
				return
			}
			writeJSON(w, http.StatusOK, site)
		}
	}
	r.Post("/websites/{id}/start", action(model.StatusRunning))
	r.Post("/websites/{id}/stop", action(model.StatusStopped))
	r.Post("/websites/{id}/redeploy", action(model.StatusDeploying))
	r.Post("/admin/websites/{id}/start", action(model.StatusRunning))
	r.Post("/admin/websites/{id}/stop", action(model.StatusStopped))

	r.Get("/admin/websites", func(w http.ResponseWriter, req *http.Request) {
		u, ok := b.authUser(req)
		if !ok || !u.IsAdmin {
			writeDetail(w, http.StatusForbidden, "Admin privileges required")
			return
		}
		b.mu.Lock()
		var sites []model.Website
		for _, s := range b.websites {
			sites = append(sites, *s)
		}
		b.mu.Unlock()
		writeJSON(w, http.StatusOK, sites)
	})

	r.Get("/reviews/public/all", func(w http.ResponseWriter, req *http.Request) {
		b.mu.Lock()
		var reviews []model.Review
		for _, rev := range b.reviews {
			reviews = append(reviews, *rev)
		}
		b.mu.Unlock()
		writeJSON(w, http.StatusOK, reviews)
	})

	r.Get("/reviews/", func(w http.ResponseWriter, req *http.Request) {
		u, ok := b.authUser(req)
		if !ok {
			writeDetail(w, http.StatusUnauthorized, "Not authenticated")
			return
		}
		b.mu.Lock()
		var reviews []model.Review
		for _, rev := range b.reviews {
			if rev.UserID == u.ID {
				reviews = append(reviews, *rev)
			}
		}
		b.mu.Unlock()
		writeJSON(w, http.StatusOK, reviews)
	})

	r.Post("/reviews/", func(w http.ResponseWriter, req *http.Request) {
		u, ok := b.authUser(req)
		if !ok {
			writeDetail(w, http.StatusUnauthorized, "Not authenticated")
			return
		}
		var payload model.ReviewCreate
		_ = json.NewDecoder(req.Body).Decode(&payload)
		b.mu.Lock()
		b.nextID++
		rev := &model.Review{
			ID:        b.nextID,
			Content:   payload.Content,
			Rating:    payload.Rating,
			UserID:    u.ID,
			WebsiteID: payload.WebsiteID,
			CreatedAt: time.Now(),
		}
		b.reviews[rev.ID] = rev
		b.mu.Unlock()
		writeJSON(w, http.StatusCreated, rev)
	})

	r.Put("/reviews/{id}", func(w http.ResponseWriter, req *http.Request) {
		var payload model.ReviewUpdate
		_ = json.NewDecoder(req.Body).Decode(&payload)
		b.mu.Lock()
		rev, ok := b.reviews[urlID(req)]
		if ok {
			if payload.Content != nil {
				rev.Content = *payload.Content
			}
			if payload.Rating != nil {
				rev.Rating = *payload.Rating
			}
		}
		b.mu.Unlock()
		if !ok {
			writeDetail(w, http.StatusNotFound, "Review not found")
			return
		}
		writeJSON(w, http.StatusOK, rev)
	})

	r.Get("/admin/reviews", func(w http.ResponseWriter, req *http.Request) {
		u, ok := b.authUser(req)
		if !ok || !u.IsAdmin {
			writeDetail(w, http.StatusForbidden, "Admin privileges required")
			return
		}
		websiteID, _ := strconv.ParseInt(req.URL.Query().Get("website_id"), 10, 64)
		b.mu.Lock()
		var reviews []model.Review
		for _, rev := range b.reviews {
			if websiteID != 0 && rev.WebsiteID != websiteID {
				continue
			}
			reviews = append(reviews, *rev)
		}
		b.mu.Unlock()
		writeJSON(w, http.StatusOK, reviews)
	})

	r.Patch("/admin/reviews/{id}", func(w http.ResponseWriter, req *http.Request) {
		var payload model.ReviewUpdate
		_ = json.NewDecoder(req.Body).Decode(&payload)
		b.mu.Lock()
		rev, ok := b.reviews[urlID(req)]
		if ok {
			if payload.Content != nil {
				rev.Content = *payload.Content
			}
			if payload.Rating != nil {
				rev.Rating = *payload.Rating
			}
		}
		b.mu.Unlock()
		if !ok {
			writeDetail(w, http.StatusNotFound, "Review not found")
			return
		}
		writeJSON(w, http.StatusOK, rev)
	})

	deleteReview := func(w http.ResponseWriter, req *http.Request) {
		b.mu.Lock()
		delete(b.reviews, urlID(req))
		b.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}
	r.Delete("/reviews/{id}", deleteReview)
	r.Delete("/admin/reviews/{id}", deleteReview)

	return r
}

func (b *fakeBackend) updateWebsite(w http.ResponseWriter, req *http.Request) {
	var payload model.WebsiteUpdate
	_ = json.NewDecoder(req.Body).Decode(&payload)
	b.mu.Lock()
	site, ok := b.websites[urlID(req)]
	if ok {
		if payload.Name != nil {
			site.Name = *payload.Name
		}
		if payload.GitRepo != nil {
			site.GitRepo = *payload.GitRepo
		}
	}
	b.mu.Unlock()
	if !ok {
		writeDetail(w, http.StatusNotFound, "Website not found")
		return
	}
	writeJSON(w, http.StatusOK, site)
}

func (b *fakeBackend) deleteWebsite(w http.ResponseWriter, req *http.Request) {
	b.mu.Lock()
	delete(b.websites, urlID(req))
	b.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

// testEnv wires real stores against the fake backend.
type testEnv struct {
	backend  *fakeBackend
	auth     *AuthStore
	websites *WebsiteStore
	reviews  *ReviewStore
	state    *localstate.Store
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	backend := newFakeBackend()
	srv := httptest.NewServer(backend.handler())
	t.Cleanup(srv.Close)

	state, err := localstate.Open(t.TempDir() + "/state.db")
	if err != nil {
		t.Fatalf("opening localstate: %v", err)
	}
	t.Cleanup(func() { _ = state.Close() })

	client := api.New(srv.URL, 5*time.Second, slog.Default())
	auth := NewAuthStore(service.NewAuthService(client), state, slog.Default())

	return &testEnv{
		backend:  backend,
		auth:     auth,
		websites: NewWebsiteStore(service.NewWebsiteService(client), auth, slog.Default()),
		reviews:  NewReviewStore(service.NewReviewService(client), auth, slog.Default()),
		state:    state,
	}
}
