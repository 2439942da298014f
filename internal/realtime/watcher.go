// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package realtime keeps the website cache in sync with the backend's
// updates socket. The watcher follows the session: a socket opens after
// login, closes on logout, and is redialed (rate limited) after transport
// failures while a session exists.
package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"golang.org/x/time/rate"

	"github.com/cosmicdeploy/cosmicdeploy-go/internal/api"
	"github.com/cosmicdeploy/cosmicdeploy-go/internal/model"
	"github.com/cosmicdeploy/cosmicdeploy-go/internal/store"
)

// Watcher owns the single updates socket. One socket per session: the
// desired token tracks the auth store through OnChange, and the run loop
// converges the connection onto it.
type Watcher struct {
	api      *api.Client
	websites *store.WebsiteStore
	logger   *slog.Logger
	limiter  *rate.Limiter

	wg      sync.WaitGroup
	done    chan struct{}
	wake    chan struct{}
	cancel  context.CancelFunc
	mu      sync.Mutex
	running bool
	token   string           // desired session token, "" means stay offline
	conn    *api.UpdatesConn // open connection, nil while disconnected
}

// New creates a Watcher feeding status pushes into websites. It subscribes
// to auth immediately; Start must still be called for frames to flow.
func New(client *api.Client, auth *store.AuthStore, websites *store.WebsiteStore, reconnect rate.Limit, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	w := &Watcher{
		api:      client,
		websites: websites,
		logger:   logger,
		limiter:  rate.NewLimiter(reconnect, 1),
		done:     make(chan struct{}),
		wake:     make(chan struct{}, 1),
	}
	auth.OnChange(w.onSessionChange)
	return w
}

// Start launches the connection loop. Safe to call once; a second call while
// running is a no-op.
func (w *Watcher) Start(ctx context.Context) {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	w.running = true
	ctx, w.cancel = context.WithCancel(ctx)
	w.mu.Unlock()

	w.logger.Info("starting updates watcher")
	w.wg.Add(1)
	go w.run(ctx)
}

// Stop closes the socket and waits for the loop to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	conn := w.conn
	w.conn = nil
	cancel := w.cancel
	w.mu.Unlock()

	w.logger.Info("stopping updates watcher")
	close(w.done)
	if cancel != nil {
		cancel()
	}
	if conn != nil {
		_ = conn.Close()
	}
	w.wg.Wait()
	w.logger.Info("updates watcher stopped")
}

// Connected reports whether a socket is currently open.
func (w *Watcher) Connected() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn != nil
}

// onSessionChange records the new desired token, closes any socket bound to
// the old session and nudges the run loop. Closing here unblocks Listen so
// a logout takes effect immediately, not on the next frame.
func (w *Watcher) onSessionChange(token string) {
	w.mu.Lock()
	w.token = token
	conn := w.conn
	w.conn = nil
	w.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *Watcher) run(ctx context.Context) {
	defer w.wg.Done()

	for {
		select {
		case <-w.done:
			return
		case <-ctx.Done():
			return
		default:
		}

		w.mu.Lock()
		token := w.token
		w.mu.Unlock()

		if token == "" {
			// No session: stay offline until the next login.
			select {
			case <-w.wake:
			case <-w.done:
				return
			case <-ctx.Done():
				return
			}
			continue
		}

		if err := w.limiter.Wait(ctx); err != nil {
			return
		}
		w.connect(ctx, token)
	}
}

// connect dials for one session token and listens until the socket drops.
func (w *Watcher) connect(ctx context.Context, token string) {
	conn, err := w.api.DialUpdates(token)
	if err != nil {
		w.logger.Warn("updates socket dial failed", "error", err)
		return
	}

	w.mu.Lock()
	if w.token != token || !w.running {
		// Session changed while dialing; this socket belongs to a dead
		// session and must not deliver frames.
		w.mu.Unlock()
		_ = conn.Close()
		return
	}
	w.conn = conn
	w.mu.Unlock()

	w.logger.Info("updates socket connected")
	if err := conn.Listen(w.handlers()); err != nil {
		w.logger.Warn("updates socket dropped", "error", err)
	}

	w.mu.Lock()
	if w.conn == conn {
		w.conn = nil
	}
	w.mu.Unlock()
	_ = conn.Close()
}

func (w *Watcher) handlers() map[string]api.MessageHandler {
	return map[string]api.MessageHandler{
		model.WSTypeStatusUpdate:  w.onStatusUpdate,
		model.WSTypeDeploymentLog: w.onDeploymentLog,
		model.WSTypeHeartbeat:     w.onHeartbeat,
		model.WSTypeError:         w.onError,
	}
}

func (w *Watcher) onStatusUpdate(msg model.WSMessage) {
	var update model.WSStatusUpdate
	if err := json.Unmarshal(msg.Data, &update); err != nil {
		w.logger.Warn("malformed status update payload", "error", err)
		return
	}
	w.logger.Debug("status update received",
		"website_id", update.WebsiteID,
		"status", update.Status)
	w.websites.ApplyRemoteStatusUpdate(update.WebsiteID, update.Status)
}

func (w *Watcher) onDeploymentLog(msg model.WSMessage) {
	var entry model.WSDeploymentLog
	if err := json.Unmarshal(msg.Data, &entry); err != nil {
		w.logger.Warn("malformed deployment log payload", "error", err)
		return
	}
	w.websites.ApplyRemoteDeploymentLog(entry.WebsiteID, entry.Log)
}

func (w *Watcher) onHeartbeat(msg model.WSMessage) {
	w.logger.Debug("heartbeat", "timestamp", msg.Timestamp)
}

func (w *Watcher) onError(msg model.WSMessage) {
	w.logger.Warn("backend pushed an error frame", "data", string(msg.Data))
}
