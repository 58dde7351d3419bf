package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prudhvinik1/sketchsync/internal/models"
)

type PostgresStrokeRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresStrokeRepository(pool *pgxpool.Pool) *PostgresStrokeRepository {
	return &PostgresStrokeRepository{pool: pool}
}

// Append durably records a stroke point and returns its server sequence.
// The sequence counter and the point row commit in one transaction, so a
// confirmed append always appears in later FetchHistory calls and a failed
// append leaves no trace. Concurrent appends from different authors are
// serialized by the counter row.
func (r *PostgresStrokeRepository) Append(ctx context.Context, point *models.StrokePoint) (int64, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin append: %w", err)
	}
	defer tx.Rollback(ctx)

	seqQuery := `INSERT INTO session_sequences (session_id, last_seq)
	             VALUES ($1, 1)
	             ON CONFLICT (session_id)
	             DO UPDATE SET last_seq = session_sequences.last_seq + 1
	             RETURNING last_seq`

	var seq int64
	if err := tx.QueryRow(ctx, seqQuery, point.SessionID).Scan(&seq); err != nil {
		return 0, fmt.Errorf("failed to advance session sequence: %w", err)
	}

	insertQuery := `INSERT INTO stroke_points
	                (session_id, author_id, x, y, color, brush_size, is_start, server_sequence)
	                VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	                RETURNING created_at`

	err = tx.QueryRow(ctx, insertQuery,
		point.SessionID,
		point.AuthorID,
		point.X,
		point.Y,
		point.Color,
		point.BrushSize,
		point.IsStart,
		seq,
	).Scan(&point.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("failed to insert stroke point: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit append: %w", err)
	}

	point.ServerSequence = seq
	return seq, nil
}

// FetchHistory returns every point for the session in server_sequence order.
// Called once per client immediately after join to seed replay.
func (r *PostgresStrokeRepository) FetchHistory(ctx context.Context, sessionID uuid.UUID) ([]*models.StrokePoint, error) {
	query := `SELECT session_id, author_id, x, y, color, brush_size, is_start, server_sequence, created_at
	          FROM stroke_points
	          WHERE session_id = $1
	          ORDER BY server_sequence ASC`

	rows, err := r.pool.Query(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query stroke history: %w", err)
	}
	defer rows.Close()

	var points []*models.StrokePoint
	for rows.Next() {
		var point models.StrokePoint
		err := rows.Scan(
			&point.SessionID,
			&point.AuthorID,
			&point.X,
			&point.Y,
			&point.Color,
			&point.BrushSize,
			&point.IsStart,
			&point.ServerSequence,
			&point.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan stroke point: %w", err)
		}
		points = append(points, &point)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating stroke history: %w", err)
	}

	return points, nil
}

// Clear removes every point for the session in one statement. The sequence
// counter is deliberately left alone: a point appended after a clear still
// sorts after everything that was deleted, so late joiners converge.
func (r *PostgresStrokeRepository) Clear(ctx context.Context, sessionID uuid.UUID) error {
	query := `DELETE FROM stroke_points WHERE session_id = $1`

	if _, err := r.pool.Exec(ctx, query, sessionID); err != nil {
		return fmt.Errorf("failed to clear stroke points: %w", err)
	}
	return nil
}
