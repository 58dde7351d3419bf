package replay

import (
	"context"

	"github.com/google/uuid"
	"github.com/prudhvinik1/sketchsync/internal/bus"
	"github.com/prudhvinik1/sketchsync/internal/models"
)

type HistoryFetcher interface {
	FetchHistory(ctx context.Context, sessionID uuid.UUID) ([]*models.StrokePoint, error)
}

// ChannelSource glues a history fetcher and a sync channel into a Source.
// The stroke repository satisfies HistoryFetcher directly.
type ChannelSource struct {
	History HistoryFetcher
	Channel *bus.SyncChannel
}

func (s *ChannelSource) FetchHistory(ctx context.Context, sessionID uuid.UUID) ([]*models.StrokePoint, error) {
	return s.History.FetchHistory(ctx, sessionID)
}

func (s *ChannelSource) Subscribe(ctx context.Context, sessionID, userID uuid.UUID) (Feed, error) {
	return s.Channel.Subscribe(ctx, sessionID, userID)
}
