package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/prudhvinik1/sketchsync/internal/models"
)

type SessionRepository interface {
	Create(ctx context.Context, session *models.Session) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Session, error)
	GetByCode(ctx context.Context, code string) (*models.Session, error)
	Activate(ctx context.Context, id uuid.UUID) error
	Close(ctx context.Context, id uuid.UUID) error
}

type StrokeRepository interface {
	Append(ctx context.Context, point *models.StrokePoint) (int64, error)
	FetchHistory(ctx context.Context, sessionID uuid.UUID) ([]*models.StrokePoint, error)
	Clear(ctx context.Context, sessionID uuid.UUID) error
}

type PresenceRepository interface {
	Track(ctx context.Context, entry *models.PresenceEntry) error
	Untrack(ctx context.Context, sessionID, userID uuid.UUID) error
	ListParticipants(ctx context.Context, sessionID uuid.UUID) ([]*models.PresenceEntry, error)
}
