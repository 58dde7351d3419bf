package models

import "time"

// CursorBroadcast is an ephemeral pointer-position message. It is published
// fire-and-forget on the session channel, never stored, and discarded by
// receivers once older than the freshness window.
type CursorBroadcast struct {
	X               float64   `json:"x"`
	Y               float64   `json:"y"`
	Color           string    `json:"color"`
	ClientTimestamp time.Time `json:"client_timestamp"`
}
