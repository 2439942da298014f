// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import "encoding/json"

// Websocket message types pushed by the backend on /websites/updates.
const (
	WSTypeStatusUpdate  = "STATUS_UPDATE"
	WSTypeDeploymentLog = "DEPLOYMENT_LOG"
	WSTypeError         = "ERROR"
	WSTypeHeartbeat     = "HEARTBEAT"
)

// WSMessage is the envelope for every frame on the updates socket.
type WSMessage struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp string          `json:"timestamp"`
}

// WSStatusUpdate is the STATUS_UPDATE payload.
type WSStatusUpdate struct {
	WebsiteID int64         `json:"websiteId"`
	Status    WebsiteStatus `json:"status"`
	Message   string        `json:"message,omitempty"`
}

// WSDeploymentLog is the DEPLOYMENT_LOG payload.
type WSDeploymentLog struct {
	WebsiteID int64  `json:"websiteId"`
	Log       string `json:"log"`
	Level     string `json:"level"` // INFO, WARN or ERROR
}
