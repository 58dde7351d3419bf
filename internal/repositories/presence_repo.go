package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prudhvinik1/sketchsync/internal/models"
	"github.com/redis/go-redis/v9"
)

const (
	presenceKeyPrefix      = "presence:"
	participantsKeyPattern = "session:%s:participants"

	// PresenceTTL is how long a participant stays online without a heartbeat.
	// Clients heartbeat at half this interval.
	PresenceTTL = 60 * time.Second
)

type RedisPresenceRepository struct {
	client *redis.Client
}

func NewRedisPresenceRepository(client *redis.Client) *RedisPresenceRepository {
	return &RedisPresenceRepository{client: client}
}

// Track marks a participant online, or refreshes their heartbeat TTL if they
// already are. Also maintains the session's participant index set.
func (r *RedisPresenceRepository) Track(ctx context.Context, entry *models.PresenceEntry) error {
	entry.LastHeartbeat = time.Now()

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal presence entry: %w", err)
	}

	key := presenceKey(entry.SessionID, entry.UserID)
	if err := r.client.Set(ctx, key, data, PresenceTTL).Err(); err != nil {
		return fmt.Errorf("failed to set presence: %w", err)
	}

	indexKey := participantsKey(entry.SessionID)
	if err := r.client.SAdd(ctx, indexKey, entry.UserID.String()).Err(); err != nil {
		return fmt.Errorf("failed to index participant: %w", err)
	}

	return nil
}

func (r *RedisPresenceRepository) Untrack(ctx context.Context, sessionID, userID uuid.UUID) error {
	if err := r.client.Del(ctx, presenceKey(sessionID, userID)).Err(); err != nil {
		return fmt.Errorf("failed to delete presence: %w", err)
	}

	if err := r.client.SRem(ctx, participantsKey(sessionID), userID.String()).Err(); err != nil {
		return fmt.Errorf("failed to remove participant from index: %w", err)
	}

	return nil
}

// ListParticipants returns the session's currently-online participants.
// Members whose heartbeat key expired are lazily pruned from the index.
func (r *RedisPresenceRepository) ListParticipants(ctx context.Context, sessionID uuid.UUID) ([]*models.PresenceEntry, error) {
	indexKey := participantsKey(sessionID)

	memberIDs, err := r.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get participant index: %w", err)
	}
	if len(memberIDs) == 0 {
		return nil, nil
	}

	keys := make([]string, 0, len(memberIDs))
	userIDs := make([]uuid.UUID, 0, len(memberIDs))
	for _, member := range memberIDs {
		userID, err := uuid.Parse(member)
		if err != nil {
			// Stale garbage in the index, drop it.
			r.client.SRem(ctx, indexKey, member)
			continue
		}
		keys = append(keys, presenceKey(sessionID, userID))
		userIDs = append(userIDs, userID)
	}

	results, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get bulk presence: %w", err)
	}

	var entries []*models.PresenceEntry
	var expired []interface{}

	for i, result := range results {
		if result == nil {
			// Heartbeat expired, participant is offline.
			expired = append(expired, userIDs[i].String())
			continue
		}

		data, ok := result.(string)
		if !ok {
			continue
		}

		var entry models.PresenceEntry
		if err := json.Unmarshal([]byte(data), &entry); err != nil {
			expired = append(expired, userIDs[i].String())
			continue
		}

		entries = append(entries, &entry)
	}

	if len(expired) > 0 {
		if err := r.client.SRem(ctx, indexKey, expired...).Err(); err != nil {
			return nil, fmt.Errorf("failed to prune expired participants: %w", err)
		}
	}

	return entries, nil
}

func presenceKey(sessionID, userID uuid.UUID) string {
	return fmt.Sprintf("%s%s:%s", presenceKeyPrefix, sessionID, userID)
}

func participantsKey(sessionID uuid.UUID) string {
	return fmt.Sprintf(participantsKeyPattern, sessionID)
}
