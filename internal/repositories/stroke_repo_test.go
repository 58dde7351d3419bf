package repositories

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/prudhvinik1/sketchsync/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestStrokeRepository_Append tests that sequences are assigned per session,
// monotonically
func TestStrokeRepository_Append(t *testing.T) {
	pool := getTestPool(t)
	repo := NewPostgresStrokeRepository(pool)
	sessionRepo := NewPostgresSessionRepository(pool)
	ctx := context.Background()

	session := &models.Session{Code: testCode(t), HostID: uuid.New()}
	defer cleanupTestSession(t, pool, ctx, session)
	require.NoError(t, sessionRepo.Create(ctx, session))

	authorID := uuid.New()

	// ACT: Append two points of one path
	first := &models.StrokePoint{
		SessionID: session.ID,
		AuthorID:  authorID,
		X:         10, Y: 10,
		Color:     "#ff0000",
		BrushSize: 4,
		IsStart:   true,
	}
	seq1, err := repo.Append(ctx, first)
	require.NoError(t, err)

	second := &models.StrokePoint{
		SessionID: session.ID,
		AuthorID:  authorID,
		X:         20, Y: 30,
		Color:     "#ff0000",
		BrushSize: 4,
	}
	seq2, err := repo.Append(ctx, second)
	require.NoError(t, err)

	// ASSERT: Sequences increase and are reflected on the points
	assert.Greater(t, seq2, seq1)
	assert.Equal(t, seq1, first.ServerSequence)
	assert.Equal(t, seq2, second.ServerSequence)
	assert.False(t, first.CreatedAt.IsZero(), "CreatedAt should be set")
}

// TestStrokeRepository_FetchHistory tests the total ordering guarantee
func TestStrokeRepository_FetchHistory(t *testing.T) {
	pool := getTestPool(t)
	repo := NewPostgresStrokeRepository(pool)
	sessionRepo := NewPostgresSessionRepository(pool)
	ctx := context.Background()

	session := &models.Session{Code: testCode(t), HostID: uuid.New()}
	defer cleanupTestSession(t, pool, ctx, session)
	require.NoError(t, sessionRepo.Create(ctx, session))

	// Two authors interleaving appends
	host, peer := uuid.New(), uuid.New()
	for i := 0; i < 3; i++ {
		for _, author := range []uuid.UUID{host, peer} {
			point := &models.StrokePoint{
				SessionID: session.ID,
				AuthorID:  author,
				X:         float64(i), Y: float64(i),
				Color:     "#00ff00",
				BrushSize: 2,
				IsStart:   i == 0,
			}
			_, err := repo.Append(ctx, point)
			require.NoError(t, err)
		}
	}

	// ACT: Fetch the full history
	points, err := repo.FetchHistory(ctx, session.ID)

	// ASSERT: Every point present, strictly ordered by server sequence
	require.NoError(t, err)
	require.Len(t, points, 6)
	for i := 1; i < len(points); i++ {
		assert.Greater(t, points[i].ServerSequence, points[i-1].ServerSequence,
			"history must be strictly ordered")
	}
}

// TestStrokeRepository_FetchHistory_Empty tests a fresh session
func TestStrokeRepository_FetchHistory_Empty(t *testing.T) {
	pool := getTestPool(t)
	repo := NewPostgresStrokeRepository(pool)
	sessionRepo := NewPostgresSessionRepository(pool)
	ctx := context.Background()

	session := &models.Session{Code: testCode(t), HostID: uuid.New()}
	defer cleanupTestSession(t, pool, ctx, session)
	require.NoError(t, sessionRepo.Create(ctx, session))

	points, err := repo.FetchHistory(ctx, session.ID)

	require.NoError(t, err)
	assert.Empty(t, points)
}

// TestStrokeRepository_Clear tests that clear empties history but keeps the
// sequence counter advancing
func TestStrokeRepository_Clear(t *testing.T) {
	pool := getTestPool(t)
	repo := NewPostgresStrokeRepository(pool)
	sessionRepo := NewPostgresSessionRepository(pool)
	ctx := context.Background()

	session := &models.Session{Code: testCode(t), HostID: uuid.New()}
	defer cleanupTestSession(t, pool, ctx, session)
	require.NoError(t, sessionRepo.Create(ctx, session))

	authorID := uuid.New()
	point := &models.StrokePoint{
		SessionID: session.ID, AuthorID: authorID,
		X: 1, Y: 1, Color: "#000000", BrushSize: 1, IsStart: true,
	}
	seqBefore, err := repo.Append(ctx, point)
	require.NoError(t, err)

	// ACT: Clear the session
	err = repo.Clear(ctx, session.ID)
	require.NoError(t, err)

	// ASSERT: History is empty
	points, err := repo.FetchHistory(ctx, session.ID)
	require.NoError(t, err)
	assert.Empty(t, points, "history should be empty after clear")

	// A point appended after the clear sorts after everything deleted
	after := &models.StrokePoint{
		SessionID: session.ID, AuthorID: authorID,
		X: 2, Y: 2, Color: "#000000", BrushSize: 1, IsStart: true,
	}
	seqAfter, err := repo.Append(ctx, after)
	require.NoError(t, err)
	assert.Greater(t, seqAfter, seqBefore, "sequence counter must survive a clear")
}
