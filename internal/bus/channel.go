package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"
	"github.com/prudhvinik1/sketchsync/internal/models"
	"github.com/prudhvinik1/sketchsync/internal/repositories"
	"github.com/redis/go-redis/v9"
)

const (
	strokeTopicPattern = "session:%s:strokes"
	cursorTopicPattern = "session:%s:cursor"

	// Buffer sizes for the demuxed delivery channels. Stroke delivery is
	// backpressured on the subscriber; cursor delivery drops when full.
	strokeBuffer = 256
	cursorBuffer = 64
)

// SyncChannel is the per-session pub/sub bus. Durable stroke notifications
// and ephemeral cursor broadcasts travel as independent message classes on
// separate Redis topics scoped to the session.
type SyncChannel struct {
	client   *redis.Client
	presence repositories.PresenceRepository
}

func NewSyncChannel(client *redis.Client, presence repositories.PresenceRepository) *SyncChannel {
	return &SyncChannel{client: client, presence: presence}
}

// PublishStroke fans out a committed append to every subscribed peer.
// Callers publish only after the stroke log confirmed the write.
func (c *SyncChannel) PublishStroke(ctx context.Context, point *models.StrokePoint) error {
	notification := StrokeNotification{Kind: KindStroke, Point: point}

	data, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("failed to marshal stroke notification: %w", err)
	}

	if err := c.client.Publish(ctx, strokeTopic(point.SessionID), data).Err(); err != nil {
		return fmt.Errorf("failed to publish stroke notification: %w", err)
	}
	return nil
}

// PublishTruncate tells connected peers the stroke log was cleared. Peers
// that miss it still converge: they fetch the now-empty history on rejoin.
func (c *SyncChannel) PublishTruncate(ctx context.Context, sessionID uuid.UUID) error {
	data, err := json.Marshal(StrokeNotification{Kind: KindTruncate})
	if err != nil {
		return fmt.Errorf("failed to marshal truncate notification: %w", err)
	}

	if err := c.client.Publish(ctx, strokeTopic(sessionID), data).Err(); err != nil {
		return fmt.Errorf("failed to publish truncate notification: %w", err)
	}
	return nil
}

// PublishCursor broadcasts a pointer position, fire-and-forget. Nothing is
// stored; a subscriber that connects later never sees it.
func (c *SyncChannel) PublishCursor(ctx context.Context, sessionID, authorID uuid.UUID, cursor *models.CursorBroadcast) error {
	message := CursorMessage{
		AuthorID:        authorID,
		X:               cursor.X,
		Y:               cursor.Y,
		Color:           cursor.Color,
		ClientTimestamp: cursor.ClientTimestamp,
	}

	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal cursor message: %w", err)
	}

	if err := c.client.Publish(ctx, cursorTopic(sessionID), data).Err(); err != nil {
		return fmt.Errorf("failed to publish cursor message: %w", err)
	}
	return nil
}

// Subscribe opens both message streams for a session and marks the user
// online. The returned Subscription owns the Redis connection; callers must
// Unsubscribe when leaving the session.
func (c *SyncChannel) Subscribe(ctx context.Context, sessionID, userID uuid.UUID) (*Subscription, error) {
	pubsub := c.client.Subscribe(ctx, strokeTopic(sessionID), cursorTopic(sessionID))

	// Confirm the subscription before reporting success, so no stroke
	// published after Subscribe returns can be missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to session channel: %w", err)
	}

	entry := &models.PresenceEntry{SessionID: sessionID, UserID: userID}
	if err := c.presence.Track(ctx, entry); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to track presence: %w", err)
	}

	sub := &Subscription{
		sessionID: sessionID,
		userID:    userID,
		presence:  c.presence,
		pubsub:    pubsub,
		strokes:   make(chan StrokeNotification, strokeBuffer),
		cursors:   make(chan CursorMessage, cursorBuffer),
	}

	go sub.pump(strokeTopic(sessionID))

	return sub, nil
}

// Subscription is one client's attachment to a session channel. Strokes and
// Cursors are closed when the subscription ends, whether by Unsubscribe or
// by losing the underlying connection.
type Subscription struct {
	sessionID uuid.UUID
	userID    uuid.UUID
	presence  repositories.PresenceRepository
	pubsub    *redis.PubSub
	strokes   chan StrokeNotification
	cursors   chan CursorMessage
	closeOnce sync.Once
}

func (s *Subscription) Strokes() <-chan StrokeNotification {
	return s.strokes
}

func (s *Subscription) Cursors() <-chan CursorMessage {
	return s.cursors
}

// Heartbeat refreshes the subscriber's presence TTL.
func (s *Subscription) Heartbeat(ctx context.Context) error {
	entry := &models.PresenceEntry{SessionID: s.sessionID, UserID: s.userID}
	return s.presence.Track(ctx, entry)
}

// Unsubscribe detaches immediately. It closes the Redis subscription, which
// ends the pump goroutine without waiting on in-flight deliveries, and marks
// the user offline.
func (s *Subscription) Unsubscribe(ctx context.Context) error {
	var err error
	s.closeOnce.Do(func() {
		if closeErr := s.pubsub.Close(); closeErr != nil {
			err = fmt.Errorf("failed to close subscription: %w", closeErr)
		}
		if untrackErr := s.presence.Untrack(ctx, s.sessionID, s.userID); untrackErr != nil && err == nil {
			err = untrackErr
		}
	})
	return err
}

// pump demuxes raw Redis messages into the two typed streams. Stroke
// delivery blocks on the subscriber so committed notifications are not
// dropped; cursor delivery is lossy by design.
func (s *Subscription) pump(strokeChannel string) {
	defer close(s.strokes)
	defer close(s.cursors)

	for msg := range s.pubsub.Channel() {
		if msg.Channel == strokeChannel {
			var notification StrokeNotification
			if err := json.Unmarshal([]byte(msg.Payload), &notification); err != nil {
				log.Printf("dropping malformed stroke notification: %v", err)
				continue
			}
			s.strokes <- notification
			continue
		}

		var cursor CursorMessage
		if err := json.Unmarshal([]byte(msg.Payload), &cursor); err != nil {
			log.Printf("dropping malformed cursor message: %v", err)
			continue
		}
		select {
		case s.cursors <- cursor:
		default:
			// Receiver is behind; only the latest position matters.
		}
	}
}

func strokeTopic(sessionID uuid.UUID) string {
	return fmt.Sprintf(strokeTopicPattern, sessionID)
}

func cursorTopic(sessionID uuid.UUID) string {
	return fmt.Sprintf(cursorTopicPattern, sessionID)
}
