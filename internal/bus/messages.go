package bus

import (
	"time"

	"github.com/google/uuid"
	"github.com/prudhvinik1/sketchsync/internal/models"
)

type NotificationKind string

const (
	// KindStroke carries a committed stroke point, including its server
	// sequence.
	KindStroke NotificationKind = "stroke"
	// KindTruncate tells subscribers the session's stroke log was cleared
	// and their local surface must be wiped.
	KindTruncate NotificationKind = "truncate"
)

// StrokeNotification is the durable message class: one is published per
// confirmed stroke append, plus truncation events on clear.
type StrokeNotification struct {
	Kind  NotificationKind    `json:"kind"`
	Point *models.StrokePoint `json:"point,omitempty"`
}

// CursorMessage is the ephemeral message class. It is never buffered for
// replay and only reaches subscribers connected at send time.
type CursorMessage struct {
	AuthorID        uuid.UUID `json:"author_id"`
	X               float64   `json:"x"`
	Y               float64   `json:"y"`
	Color           string    `json:"color"`
	ClientTimestamp time.Time `json:"client_timestamp"`
}
