package models

import (
	"time"

	"github.com/google/uuid"
)

type SessionStatus string

const (
	SessionWaiting SessionStatus = "waiting"
	SessionActive  SessionStatus = "active"
	SessionClosed  SessionStatus = "closed"
)

type Session struct {
	ID           uuid.UUID     `json:"id"`
	Code         string        `json:"code"`
	HostID       uuid.UUID     `json:"host_id"`
	Status       SessionStatus `json:"status"`
	PasscodeHash *string       `json:"-"`
	CreatedAt    time.Time     `json:"created_at"`
}

// Joinable reports whether a peer can still enter the session by code.
func (s *Session) Joinable() bool {
	return s.Status == SessionWaiting || s.Status == SessionActive
}
