package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/prudhvinik1/sketchsync/internal/models"
	"github.com/prudhvinik1/sketchsync/internal/repositories"
	"github.com/prudhvinik1/sketchsync/internal/utils"
)

var (
	ErrUnauthorized  = errors.New("requester is not allowed to perform this action")
	ErrCodeExhausted = errors.New("could not allocate a unique session code")
)

// maxCodeAttempts bounds the regenerate-on-collision loop at creation time.
// With a 31-character alphabet and 6 positions, collisions are rare enough
// that hitting this limit means something else is wrong.
const maxCodeAttempts = 5

type SessionService struct {
	sessions repositories.SessionRepository
	strokes  repositories.StrokeRepository
	presence repositories.PresenceRepository
	channel  SyncPublisher
}

func NewSessionService(
	sessions repositories.SessionRepository,
	strokes repositories.StrokeRepository,
	presence repositories.PresenceRepository,
	channel SyncPublisher,
) *SessionService {
	return &SessionService{
		sessions: sessions,
		strokes:  strokes,
		presence: presence,
		channel:  channel,
	}
}

// CreateSession opens a new waiting session for the host and returns it with
// a freshly generated share code. Codes colliding with a session that is
// still waiting or active are regenerated.
func (s *SessionService) CreateSession(ctx context.Context, hostID uuid.UUID, passcode string) (*models.Session, error) {
	var passcodeHash *string
	if passcode != "" {
		hashed, err := utils.HashPasscode(passcode)
		if err != nil {
			return nil, fmt.Errorf("failed to hash passcode: %w", err)
		}
		passcodeHash = &hashed
	}

	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := utils.GenerateSessionCode()
		if err != nil {
			return nil, err
		}

		session := &models.Session{
			Code:         code,
			HostID:       hostID,
			PasscodeHash: passcodeHash,
		}

		err = s.sessions.Create(ctx, session)
		if errors.Is(err, repositories.ErrCodeTaken) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return session, nil
	}

	return nil, ErrCodeExhausted
}

// JoinSession resolves a share code for a peer. The first successful join
// flips the session from waiting to active.
func (s *SessionService) JoinSession(ctx context.Context, code, passcode string) (*models.Session, error) {
	session, err := s.sessions.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	if session.PasscodeHash != nil && !utils.CheckPasscode(*session.PasscodeHash, passcode) {
		return nil, ErrUnauthorized
	}

	if session.Status == models.SessionWaiting {
		if err := s.sessions.Activate(ctx, session.ID); err != nil {
			return nil, fmt.Errorf("failed to activate session: %w", err)
		}
		session.Status = models.SessionActive
	}

	return session, nil
}

// ClearSession wipes the session's stroke log. Host only. Deleting the rows
// is not enough on its own: connected peers never re-poll history, so a
// truncation notification goes out on the durable channel to make them blank
// their surfaces. A peer that misses it still converges, because it fetches
// the now-empty history on its next (re)join.
//
// A peer's append racing the clear can land after the deletion and survive
// it. That is last-writer-wins on the log and is expected behavior.
func (s *SessionService) ClearSession(ctx context.Context, sessionID, requesterID uuid.UUID) error {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return err
	}

	if session.HostID != requesterID {
		return ErrUnauthorized
	}

	if err := s.strokes.Clear(ctx, sessionID); err != nil {
		return err
	}

	if err := s.channel.PublishTruncate(ctx, sessionID); err != nil {
		return fmt.Errorf("cleared log but failed to notify peers: %w", err)
	}

	return nil
}

// CloseSession ends the session for everyone. The stroke log is retained
// until garbage-collected separately.
func (s *SessionService) CloseSession(ctx context.Context, sessionID uuid.UUID) error {
	return s.sessions.Close(ctx, sessionID)
}

func (s *SessionService) GetSession(ctx context.Context, sessionID uuid.UUID) (*models.Session, error) {
	return s.sessions.GetByID(ctx, sessionID)
}

// Participants lists who is currently online in the session.
func (s *SessionService) Participants(ctx context.Context, sessionID uuid.UUID) ([]*models.PresenceEntry, error) {
	return s.presence.ListParticipants(ctx, sessionID)
}
