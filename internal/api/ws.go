// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/websocket"

	"github.com/cosmicdeploy/cosmicdeploy-go/internal/model"
)

// UpdatesPath is the websocket endpoint delivering deployment status pushes.
const UpdatesPath = "/websites/updates"

// MessageHandler consumes one decoded websocket frame.
type MessageHandler func(msg model.WSMessage)

// UpdatesConn is one open connection to the backend's updates socket.
type UpdatesConn struct {
	conn   *websocket.Conn
	logger *slog.Logger
}

// DialUpdates opens the updates socket, authenticating with the token as a
// query parameter. The caller owns the connection and must Close it; the auth
// lifecycle (one socket per session, closed on logout) is managed by the
// realtime watcher.
func (c *Client) DialUpdates(token string) (*UpdatesConn, error) {
	wsURL := "ws" + strings.TrimPrefix(c.baseURL, "http") +
		UpdatesPath + "?token=" + url.QueryEscape(token)

	conn, err := websocket.Dial(wsURL, "", c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("dialing updates socket: %w", err)
	}
	return &UpdatesConn{conn: conn, logger: c.logger}, nil
}

// Listen reads frames until the connection closes, dispatching each decoded
// message to the handler registered for its type. Malformed frames and
// unhandled types are logged and skipped; they never terminate the loop.
// Listen returns nil on a clean close and the receive error otherwise.
func (u *UpdatesConn) Listen(handlers map[string]MessageHandler) error {
	for {
		var raw string
		if err := websocket.Message.Receive(u.conn, &raw); err != nil {
			if isClosedError(err) {
				return nil
			}
			return fmt.Errorf("receiving frame: %w", err)
		}

		var msg model.WSMessage
		if err := json.Unmarshal([]byte(raw), &msg); err != nil {
			u.logger.Warn("skipping malformed updates frame", "error", err)
			continue
		}

		handler, ok := handlers[msg.Type]
		if !ok {
			u.logger.Debug("no handler for updates frame", "type", msg.Type)
			continue
		}
		handler(msg)
	}
}

// Close closes the underlying connection. Safe to call concurrently with
// Listen; the read loop unblocks with a close error.
func (u *UpdatesConn) Close() error {
	return u.conn.Close()
}

// isClosedError reports whether err marks the normal end of the connection.
func isClosedError(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, io.EOF) ||
		errors.Is(err, net.ErrClosed) ||
		strings.Contains(err.Error(), "connection reset by peer")
}
