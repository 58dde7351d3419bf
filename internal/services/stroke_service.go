package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/prudhvinik1/sketchsync/internal/models"
	"github.com/prudhvinik1/sketchsync/internal/repositories"
)

// ErrAppendFailed marks a transient failure to durably record a stroke
// point. Clients retry; a retry after a timed-out-but-committed append can
// duplicate a point, which redraws the same segment and is visually
// harmless.
var ErrAppendFailed = errors.New("stroke append failed")

type StrokeService struct {
	strokes repositories.StrokeRepository
	channel SyncPublisher
}

func NewStrokeService(strokes repositories.StrokeRepository, channel SyncPublisher) *StrokeService {
	return &StrokeService{strokes: strokes, channel: channel}
}

// StrokeInput is the append payload. Session and author come from the
// calling context, the sequence from the log.
type StrokeInput struct {
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Color   string  `json:"color"`
	Size    float64 `json:"size"`
	IsStart bool    `json:"is_start"`
}

// Append durably records a point, then fans it out to subscribed peers. The
// publish happens only after the write is confirmed, so a notification never
// references a point that is missing from history.
func (s *StrokeService) Append(ctx context.Context, sessionID, authorID uuid.UUID, input StrokeInput) (*models.StrokePoint, error) {
	point := &models.StrokePoint{
		SessionID: sessionID,
		AuthorID:  authorID,
		X:         input.X,
		Y:         input.Y,
		Color:     input.Color,
		BrushSize: input.Size,
		IsStart:   input.IsStart,
	}

	if _, err := s.strokes.Append(ctx, point); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAppendFailed, err)
	}

	// The point is durable at this point. A failed fan-out is logged, not
	// returned: peers converge on their next history fetch.
	if err := s.channel.PublishStroke(ctx, point); err != nil {
		log.Printf("failed to publish stroke notification for session %s: %v", sessionID, err)
	}

	return point, nil
}

// History returns the full ordered stroke log for a session. Clients call it
// once, right after join, to seed replay.
func (s *StrokeService) History(ctx context.Context, sessionID uuid.UUID) ([]*models.StrokePoint, error) {
	return s.strokes.FetchHistory(ctx, sessionID)
}

// BroadcastCursor publishes a pointer position on the ephemeral channel.
// Nothing durable happens here.
func (s *StrokeService) BroadcastCursor(ctx context.Context, sessionID, authorID uuid.UUID, cursor *models.CursorBroadcast) error {
	return s.channel.PublishCursor(ctx, sessionID, authorID, cursor)
}
