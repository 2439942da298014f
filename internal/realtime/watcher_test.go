// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"golang.org/x/net/websocket"
	"golang.org/x/time/rate"

	"github.com/cosmicdeploy/cosmicdeploy-go/internal/api"
	"github.com/cosmicdeploy/cosmicdeploy-go/internal/localstate"
	"github.com/cosmicdeploy/cosmicdeploy-go/internal/model"
	"github.com/cosmicdeploy/cosmicdeploy-go/internal/service"
	"github.com/cosmicdeploy/cosmicdeploy-go/internal/store"
)

const testSiteID = 42

// updatesBackend fakes the minimal HTTP surface a session needs plus the
// updates socket. Every accepted socket first receives the frames queued in
// pending, then heartbeats until the peer goes away.
type updatesBackend struct {
	mu      sync.Mutex
	dials   int
	tokens  []string
	pending []model.WSMessage
}

func (b *updatesBackend) queue(msgType string, data any) {
	raw, _ := json.Marshal(data)
	b.mu.Lock()
	b.pending = append(b.pending, model.WSMessage{
		Type:      msgType,
		Data:      raw,
		Timestamp: time.Now().Format(time.RFC3339),
	})
	b.mu.Unlock()
}

func (b *updatesBackend) dialCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dials
}

func (b *updatesBackend) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(model.Token{AccessToken: "tok-1", TokenType: "bearer"})
	})
	mux.HandleFunc("GET /users/me", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(model.User{ID: 7, Email: "alice@example.com", IsActive: true})
	})
	mux.HandleFunc("GET /websites/user", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode([]model.Website{{
			ID: testSiteID, Name: "alice-blog", Status: model.StatusDeploying, UserID: 7,
		}})
	})

	mux.Handle("/websites/updates", websocket.Handler(func(ws *websocket.Conn) {
		b.mu.Lock()
		b.dials++
		b.tokens = append(b.tokens, ws.Request().URL.Query().Get("token"))
		frames := b.pending
		b.mu.Unlock()

		for _, msg := range frames {
			raw, _ := json.Marshal(msg)
			if err := websocket.Message.Send(ws, string(raw)); err != nil {
				return
			}
		}

		heartbeat, _ := json.Marshal(model.WSMessage{Type: model.WSTypeHeartbeat})
		for {
			time.Sleep(20 * time.Millisecond)
			if err := websocket.Message.Send(ws, string(heartbeat)); err != nil {
				return
			}
		}
	}))

	return mux
}

type watcherEnv struct {
	backend  *updatesBackend
	auth     *store.AuthStore
	websites *store.WebsiteStore
	watcher  *Watcher
}

func newWatcherEnv(t *testing.T) *watcherEnv {
	t.Helper()

	backend := &updatesBackend{}
	srv := httptest.NewServer(backend.handler())
	t.Cleanup(srv.Close)

	state, err := localstate.Open(t.TempDir() + "/state.db")
	if err != nil {
		t.Fatalf("opening localstate: %v", err)
	}
	t.Cleanup(func() { _ = state.Close() })

	client := api.New(srv.URL, 5*time.Second, slog.Default())
	auth := store.NewAuthStore(service.NewAuthService(client), state, slog.Default())
	websites := store.NewWebsiteStore(service.NewWebsiteService(client), auth, slog.Default())

	// A generous reconnect rate keeps the tests fast.
	watcher := New(client, auth, websites, rate.Limit(100), slog.Default())
	t.Cleanup(watcher.Stop)

	return &watcherEnv{backend: backend, auth: auth, websites: websites, watcher: watcher}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestWatcherConnectsAfterLoginAndAppliesPushes(t *testing.T) {
	env := newWatcherEnv(t)
	env.backend.queue(model.WSTypeStatusUpdate, model.WSStatusUpdate{
		WebsiteID: testSiteID,
		Status:    model.StatusRunning,
	})

	ctx := context.Background()
	env.watcher.Start(ctx)

	if err := env.auth.Login(ctx, "alice@example.com", "secret"); err != nil {
		t.Fatalf("login: %v", err)
	}
	if err := env.websites.FetchMine(ctx); err != nil {
		t.Fatalf("fetch: %v", err)
	}

	waitFor(t, "socket to connect", env.watcher.Connected)
	waitFor(t, "status push to land", func() bool {
		sites := env.websites.Websites()
		return len(sites) == 1 && sites[0].Status == model.StatusRunning
	})

	env.backend.mu.Lock()
	tokens := append([]string(nil), env.backend.tokens...)
	env.backend.mu.Unlock()
	if len(tokens) == 0 || tokens[0] != "tok-1" {
		t.Errorf("socket authenticated with %v, want tok-1", tokens)
	}
}

func TestWatcherStaysOfflineWithoutSession(t *testing.T) {
	env := newWatcherEnv(t)

	env.watcher.Start(context.Background())
	time.Sleep(100 * time.Millisecond)

	if env.watcher.Connected() {
		t.Error("watcher connected without a session")
	}
	if got := env.backend.dialCount(); got != 0 {
		t.Errorf("watcher dialed %d times without a session", got)
	}
}

func TestWatcherDisconnectsOnLogout(t *testing.T) {
	env := newWatcherEnv(t)

	ctx := context.Background()
	env.watcher.Start(ctx)
	if err := env.auth.Login(ctx, "alice@example.com", "secret"); err != nil {
		t.Fatalf("login: %v", err)
	}
	waitFor(t, "socket to connect", env.watcher.Connected)

	env.auth.Logout(ctx)
	waitFor(t, "socket to close", func() bool { return !env.watcher.Connected() })

	// And it must stay closed: no session, no redial.
	dials := env.backend.dialCount()
	time.Sleep(150 * time.Millisecond)
	if env.watcher.Connected() {
		t.Error("watcher reconnected after logout")
	}
	if got := env.backend.dialCount(); got != dials {
		t.Errorf("watcher redialed after logout: %d -> %d", dials, got)
	}
}

func TestWatcherStopIsIdempotent(t *testing.T) {
	env := newWatcherEnv(t)

	env.watcher.Start(context.Background())
	env.watcher.Stop()
	env.watcher.Stop() // second call must not panic or block
}
