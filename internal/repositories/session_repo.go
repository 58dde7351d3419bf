package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prudhvinik1/sketchsync/internal/models"
)

var ErrNotFound = errors.New("not found")

// ErrCodeTaken is returned when a generated session code collides with a
// session that is still waiting or active. Callers retry with a fresh code.
var ErrCodeTaken = errors.New("session code already in use")

const uniqueViolation = "23505"

type PostgresSessionRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresSessionRepository(pool *pgxpool.Pool) *PostgresSessionRepository {
	return &PostgresSessionRepository{pool: pool}
}

func (r *PostgresSessionRepository) Create(ctx context.Context, session *models.Session) error {
	query := `INSERT INTO sessions (code, host_id, status, passcode_hash)
              VALUES ($1, $2, $3, $4)
              RETURNING id, created_at`

	err := r.pool.QueryRow(ctx, query, session.Code, session.HostID, models.SessionWaiting, session.PasscodeHash).
		Scan(&session.ID, &session.CreatedAt)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrCodeTaken
	}
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	session.Status = models.SessionWaiting
	return nil
}

func (r *PostgresSessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	query := `SELECT id, code, host_id, status, passcode_hash, created_at FROM sessions WHERE id = $1`

	var session models.Session
	err := r.pool.QueryRow(ctx, query, id).
		Scan(&session.ID, &session.Code, &session.HostID, &session.Status, &session.PasscodeHash, &session.CreatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return &session, nil
}

// GetByCode resolves a join code. Codes are only unique among joinable
// sessions, so closed sessions never match.
func (r *PostgresSessionRepository) GetByCode(ctx context.Context, code string) (*models.Session, error) {
	query := `SELECT id, code, host_id, status, passcode_hash, created_at
	          FROM sessions
	          WHERE code = $1 AND status IN ($2, $3)`

	var session models.Session
	err := r.pool.QueryRow(ctx, query, code, models.SessionWaiting, models.SessionActive).
		Scan(&session.ID, &session.Code, &session.HostID, &session.Status, &session.PasscodeHash, &session.CreatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session by code: %w", err)
	}
	return &session, nil
}

// Activate flips a waiting session to active. Already-active sessions are
// left untouched so a second joiner's call is a no-op.
func (r *PostgresSessionRepository) Activate(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE sessions SET status = $1 WHERE id = $2 AND status IN ($1, $3)`

	result, err := r.pool.Exec(ctx, query, models.SessionActive, id, models.SessionWaiting)
	if err != nil {
		return fmt.Errorf("failed to activate session: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresSessionRepository) Close(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE sessions SET status = $1 WHERE id = $2`

	result, err := r.pool.Exec(ctx, query, models.SessionClosed, id)
	if err != nil {
		return fmt.Errorf("failed to close session: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
