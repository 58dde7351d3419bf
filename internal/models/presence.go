package models

import (
	"time"

	"github.com/google/uuid"
)

// PresenceEntry is runtime-only state. It lives in Redis with a heartbeat
// TTL and is never written to the durable store.
type PresenceEntry struct {
	SessionID     uuid.UUID `json:"session_id"`
	UserID        uuid.UUID `json:"user_id"`
	LastHeartbeat time.Time `json:"last_heartbeat"`
}

type PresenceStatus string

const (
	StatusOnline  PresenceStatus = "online"
	StatusOffline PresenceStatus = "offline"
)
