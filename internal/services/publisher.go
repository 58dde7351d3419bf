package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/prudhvinik1/sketchsync/internal/models"
)

// SyncPublisher is the outbound half of the session channel. Satisfied by
// bus.SyncChannel.
type SyncPublisher interface {
	PublishStroke(ctx context.Context, point *models.StrokePoint) error
	PublishTruncate(ctx context.Context, sessionID uuid.UUID) error
	PublishCursor(ctx context.Context, sessionID, authorID uuid.UUID, cursor *models.CursorBroadcast) error
}
