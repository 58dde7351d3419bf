package replay

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prudhvinik1/sketchsync/internal/bus"
	"github.com/prudhvinik1/sketchsync/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	waitFor = 2 * time.Second
	tick    = 10 * time.Millisecond
)

// surfaceOp records one rendering call so tests can compare canvas state by
// the exact sequence of operations applied.
type surfaceOp struct {
	Kind   string // "begin" or "line"
	Author uuid.UUID
	X, Y   float64
}

type fakeSurface struct {
	mu     sync.Mutex
	ops    []surfaceOp
	clears int
}

func (s *fakeSurface) BeginPath(authorID uuid.UUID, x, y float64, color string, size float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ops = append(s.ops, surfaceOp{Kind: "begin", Author: authorID, X: x, Y: y})
}

func (s *fakeSurface) LineTo(authorID uuid.UUID, x, y float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ops = append(s.ops, surfaceOp{Kind: "line", Author: authorID, X: x, Y: y})
}

func (s *fakeSurface) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ops = nil
	s.clears++
}

func (s *fakeSurface) snapshot() []surfaceOp {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]surfaceOp(nil), s.ops...)
}

func (s *fakeSurface) clearCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clears
}

type fakeFeed struct {
	strokes chan bus.StrokeNotification
	cursors chan bus.CursorMessage
	once    sync.Once
}

func newFakeFeed() *fakeFeed {
	return &fakeFeed{
		strokes: make(chan bus.StrokeNotification, 16),
		cursors: make(chan bus.CursorMessage, 16),
	}
}

func (f *fakeFeed) Strokes() <-chan bus.StrokeNotification { return f.strokes }
func (f *fakeFeed) Cursors() <-chan bus.CursorMessage      { return f.cursors }

func (f *fakeFeed) Unsubscribe(ctx context.Context) error {
	f.drop()
	return nil
}

// drop ends the feed the way a lost connection would.
func (f *fakeFeed) drop() {
	f.once.Do(func() {
		close(f.strokes)
		close(f.cursors)
	})
}

type fakeSource struct {
	mu         sync.Mutex
	history    []*models.StrokePoint
	historyErr error
	// historyGate, when set, blocks FetchHistory until it is closed.
	historyGate chan struct{}
	fetches     int
	feeds       []*fakeFeed
	subscribes  int
}

func (s *fakeSource) FetchHistory(ctx context.Context, sessionID uuid.UUID) ([]*models.StrokePoint, error) {
	s.mu.Lock()
	s.fetches++
	gate := s.historyGate
	err := s.historyErr
	history := s.history
	s.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}
	return history, nil
}

func (s *fakeSource) Subscribe(ctx context.Context, sessionID, userID uuid.UUID) (Feed, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	feed := newFakeFeed()
	s.feeds = append(s.feeds, feed)
	s.subscribes++
	return feed, nil
}

func (s *fakeSource) currentFeed() *fakeFeed {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.feeds[len(s.feeds)-1]
}

func (s *fakeSource) subscribeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subscribes
}

func (s *fakeSource) fetchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetches
}

func point(sessionID, authorID uuid.UUID, x, y float64, isStart bool, seq int64) *models.StrokePoint {
	return &models.StrokePoint{
		SessionID:      sessionID,
		AuthorID:       authorID,
		X:              x,
		Y:              y,
		Color:          "#112233",
		BrushSize:      3,
		IsStart:        isStart,
		ServerSequence: seq,
	}
}

func strokeNotification(p *models.StrokePoint) bus.StrokeNotification {
	return bus.StrokeNotification{Kind: bus.KindStroke, Point: p}
}

func TestEngine_Join_ReplaysFullHistory(t *testing.T) {
	sessionID := uuid.New()
	localID, remoteID := uuid.New(), uuid.New()

	// History holds strokes by both authors; the local client is rejoining
	// a session it drew in earlier, so its own points must render too.
	source := &fakeSource{history: []*models.StrokePoint{
		point(sessionID, localID, 1, 1, true, 1),
		point(sessionID, remoteID, 5, 5, true, 2),
		point(sessionID, localID, 2, 2, false, 3),
		point(sessionID, remoteID, 6, 6, false, 4),
	}}
	surface := &fakeSurface{}
	engine := NewEngine(sessionID, localID, source, surface)
	defer engine.Leave(context.Background())

	require.NoError(t, engine.Join(context.Background()))

	assert.Equal(t, StateLive, engine.State())
	assert.True(t, engine.Synced())
	assert.Equal(t, []surfaceOp{
		{Kind: "begin", Author: localID, X: 1, Y: 1},
		{Kind: "begin", Author: remoteID, X: 5, Y: 5},
		{Kind: "line", Author: localID, X: 2, Y: 2},
		{Kind: "line", Author: remoteID, X: 6, Y: 6},
	}, surface.snapshot())
}

func TestEngine_Join_ConvergesAcrossClients(t *testing.T) {
	sessionID := uuid.New()
	host, peer := uuid.New(), uuid.New()

	history := []*models.StrokePoint{
		point(sessionID, host, 1, 1, true, 1),
		point(sessionID, peer, 9, 9, true, 2),
		point(sessionID, host, 2, 2, false, 3),
	}

	// Replaying the same log on either client yields the same ops,
	// regardless of which identity is local.
	var snapshots [][]surfaceOp
	for _, localID := range []uuid.UUID{host, peer} {
		source := &fakeSource{history: history}
		surface := &fakeSurface{}
		engine := NewEngine(sessionID, localID, source, surface)
		require.NoError(t, engine.Join(context.Background()))
		snapshots = append(snapshots, surface.snapshot())
		engine.Leave(context.Background())
	}

	assert.Equal(t, snapshots[0], snapshots[1])
}

func TestEngine_Join_HistoryFetchFailed(t *testing.T) {
	source := &fakeSource{historyErr: assert.AnError}
	surface := &fakeSurface{}
	engine := NewEngine(uuid.New(), uuid.New(), source, surface)

	err := engine.Join(context.Background())

	// Must not go live on a failed fetch; the error is retryable.
	assert.ErrorIs(t, err, ErrHistoryFetchFailed)
	assert.Equal(t, StateJoining, engine.State())
	assert.False(t, engine.Synced())
	assert.Zero(t, source.subscribeCount(), "must not subscribe before history is seeded")

	// Retry succeeds once the store recovers
	source.mu.Lock()
	source.historyErr = nil
	source.mu.Unlock()
	require.NoError(t, engine.Join(context.Background()))
	assert.Equal(t, StateLive, engine.State())
	engine.Leave(context.Background())
}

func TestEngine_Join_ConcurrentJoinRejected(t *testing.T) {
	gate := make(chan struct{})
	source := &fakeSource{historyGate: gate}
	surface := &fakeSurface{}
	engine := NewEngine(uuid.New(), uuid.New(), source, surface)
	defer engine.Leave(context.Background())

	errCh := make(chan error, 1)
	go func() { errCh <- engine.Join(context.Background()) }()

	// Wait until the first join is mid-fetch, then race a second one
	require.Eventually(t, func() bool {
		return source.fetchCount() == 1
	}, waitFor, tick)
	assert.ErrorIs(t, engine.Join(context.Background()), ErrJoinInProgress)

	close(gate)
	require.NoError(t, <-errCh)
	assert.Equal(t, StateLive, engine.State())
	assert.Equal(t, 1, source.subscribeCount(), "only the first join may subscribe")
}

func TestEngine_Live_FiltersOwnStrokes(t *testing.T) {
	sessionID := uuid.New()
	localID, remoteID := uuid.New(), uuid.New()

	source := &fakeSource{}
	surface := &fakeSurface{}
	engine := NewEngine(sessionID, localID, source, surface)
	defer engine.Leave(context.Background())
	require.NoError(t, engine.Join(context.Background()))

	feed := source.currentFeed()
	feed.strokes <- strokeNotification(point(sessionID, remoteID, 5, 5, true, 1))
	// The local author's own notification: already drawn optimistically
	feed.strokes <- strokeNotification(point(sessionID, localID, 1, 1, true, 2))
	feed.strokes <- strokeNotification(point(sessionID, remoteID, 6, 6, false, 3))

	require.Eventually(t, func() bool {
		return len(surface.snapshot()) == 2
	}, waitFor, tick, "exactly the two remote points should render")

	ops := surface.snapshot()
	for _, op := range ops {
		assert.Equal(t, remoteID, op.Author, "own live strokes must be suppressed")
	}
}

func TestEngine_Live_DuplicateDeliveryIsIdempotent(t *testing.T) {
	sessionID := uuid.New()
	localID, remoteID := uuid.New(), uuid.New()

	source := &fakeSource{}
	surface := &fakeSurface{}
	engine := NewEngine(sessionID, localID, source, surface)
	defer engine.Leave(context.Background())
	require.NoError(t, engine.Join(context.Background()))

	feed := source.currentFeed()
	feed.strokes <- strokeNotification(point(sessionID, remoteID, 5, 5, true, 1))
	// A client retry after a timed-out-but-committed append delivers the
	// same continuation point twice.
	feed.strokes <- strokeNotification(point(sessionID, remoteID, 6, 6, false, 2))
	feed.strokes <- strokeNotification(point(sessionID, remoteID, 6, 6, false, 3))

	require.Eventually(t, func() bool {
		return len(surface.snapshot()) == 3
	}, waitFor, tick)

	ops := surface.snapshot()
	// The duplicate redraws the identical segment: same op, same endpoint.
	assert.Equal(t, ops[1], ops[2], "duplicate delivery must not diverge the canvas")
}

func TestEngine_Live_SequenceGapTriggersResync(t *testing.T) {
	sessionID := uuid.New()
	localID, remoteID := uuid.New(), uuid.New()

	source := &fakeSource{history: []*models.StrokePoint{
		point(sessionID, remoteID, 50, 50, true, 1),
	}}
	surface := &fakeSurface{}
	engine := NewEngine(sessionID, localID, source, surface)
	defer engine.Leave(context.Background())
	require.NoError(t, engine.Join(context.Background()))

	// The log grew to three points, but the subscription silently missed
	// seq 2 — a path boundary. Without it, seq 3 would render as a line
	// anchored to the wrong path.
	source.mu.Lock()
	source.history = []*models.StrokePoint{
		point(sessionID, remoteID, 50, 50, true, 1),
		point(sessionID, remoteID, 60, 60, true, 2),
		point(sessionID, remoteID, 61, 61, false, 3),
	}
	source.mu.Unlock()

	source.currentFeed().strokes <- strokeNotification(point(sessionID, remoteID, 61, 61, false, 3))

	require.Eventually(t, func() bool {
		return source.subscribeCount() == 2 && engine.Synced()
	}, 5*time.Second, tick, "a sequence gap must force a resync")

	// The surface holds the full replayed history, never the continuation
	// point anchored without its boundary.
	assert.Equal(t, []surfaceOp{
		{Kind: "begin", Author: remoteID, X: 50, Y: 50},
		{Kind: "begin", Author: remoteID, X: 60, Y: 60},
		{Kind: "line", Author: remoteID, X: 61, Y: 61},
	}, surface.snapshot())
}

func TestEngine_Live_RedeliveredPointNotRedrawn(t *testing.T) {
	sessionID := uuid.New()
	localID, remoteID := uuid.New(), uuid.New()

	source := &fakeSource{}
	surface := &fakeSurface{}
	engine := NewEngine(sessionID, localID, source, surface)
	defer engine.Leave(context.Background())
	require.NoError(t, engine.Join(context.Background()))

	feed := source.currentFeed()
	feed.strokes <- strokeNotification(point(sessionID, remoteID, 5, 5, true, 1))
	feed.strokes <- strokeNotification(point(sessionID, remoteID, 6, 6, false, 2))
	// Transport-level redelivery of the same message: same server_sequence
	feed.strokes <- strokeNotification(point(sessionID, remoteID, 6, 6, false, 2))
	feed.strokes <- strokeNotification(point(sessionID, remoteID, 7, 7, false, 3))

	require.Eventually(t, func() bool {
		return len(surface.snapshot()) == 3
	}, waitFor, tick)

	assert.Equal(t, []surfaceOp{
		{Kind: "begin", Author: remoteID, X: 5, Y: 5},
		{Kind: "line", Author: remoteID, X: 6, Y: 6},
		{Kind: "line", Author: remoteID, X: 7, Y: 7},
	}, surface.snapshot(), "a redelivered point renders once")
	assert.Equal(t, 1, source.subscribeCount(), "redelivery is not a gap")
}

func TestEngine_Live_TruncateClearsSurface(t *testing.T) {
	sessionID := uuid.New()
	localID := uuid.New()

	source := &fakeSource{history: []*models.StrokePoint{
		point(sessionID, uuid.New(), 1, 1, true, 1),
	}}
	surface := &fakeSurface{}
	engine := NewEngine(sessionID, localID, source, surface)
	defer engine.Leave(context.Background())
	require.NoError(t, engine.Join(context.Background()))
	joinClears := surface.clearCount()

	source.currentFeed().strokes <- bus.StrokeNotification{Kind: bus.KindTruncate}

	require.Eventually(t, func() bool {
		return surface.clearCount() == joinClears+1
	}, waitFor, tick, "truncation must blank the surface")
	assert.Empty(t, surface.snapshot())
}

func TestEngine_Cursor_FreshnessWindow(t *testing.T) {
	sessionID := uuid.New()
	localID, remoteID := uuid.New(), uuid.New()

	source := &fakeSource{}
	surface := &fakeSurface{}
	engine := NewEngine(sessionID, localID, source, surface)
	defer engine.Leave(context.Background())
	require.NoError(t, engine.Join(context.Background()))

	feed := source.currentFeed()

	// Simulates 2500ms delivery delay against the 2000ms window
	feed.cursors <- bus.CursorMessage{
		AuthorID:        remoteID,
		X:               1, Y: 1,
		Color:           "#ff0000",
		ClientTimestamp: time.Now().Add(-2500 * time.Millisecond),
	}
	// A fresh one lands afterwards
	feed.cursors <- bus.CursorMessage{
		AuthorID:        remoteID,
		X:               8, Y: 9,
		Color:           "#ff0000",
		ClientTimestamp: time.Now(),
	}

	require.Eventually(t, func() bool {
		cursors := engine.Cursors()
		return len(cursors) == 1 && cursors[0].X == 8
	}, waitFor, tick, "only the fresh cursor may render")
}

func TestEngine_Cursor_OwnFiltered(t *testing.T) {
	sessionID := uuid.New()
	localID := uuid.New()

	source := &fakeSource{}
	surface := &fakeSurface{}
	engine := NewEngine(sessionID, localID, source, surface)
	defer engine.Leave(context.Background())
	require.NoError(t, engine.Join(context.Background()))

	source.currentFeed().cursors <- bus.CursorMessage{
		AuthorID:        localID,
		X:               1, Y: 1,
		ClientTimestamp: time.Now(),
	}

	// Give the run loop a moment, then confirm nothing showed up
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, engine.Cursors(), "the local cursor is not an overlay")
}

func TestEngine_SubscriptionLost_ResyncsFromScratch(t *testing.T) {
	sessionID := uuid.New()
	localID, remoteID := uuid.New(), uuid.New()

	source := &fakeSource{}
	surface := &fakeSurface{}
	engine := NewEngine(sessionID, localID, source, surface)
	defer engine.Leave(context.Background())
	require.NoError(t, engine.Join(context.Background()))

	// More history accumulated while we were attached
	source.mu.Lock()
	source.history = []*models.StrokePoint{
		point(sessionID, remoteID, 5, 5, true, 1),
		point(sessionID, remoteID, 6, 6, false, 2),
	}
	source.mu.Unlock()

	// ACT: The subscription drops
	source.currentFeed().drop()

	// ASSERT: Engine refetches the full history and goes back to synced
	require.Eventually(t, func() bool {
		return engine.Synced() && source.subscribeCount() == 2
	}, 5*time.Second, tick, "engine must resubscribe after a drop")
	assert.Equal(t, []surfaceOp{
		{Kind: "begin", Author: remoteID, X: 5, Y: 5},
		{Kind: "line", Author: remoteID, X: 6, Y: 6},
	}, surface.snapshot())

	// The new feed is live
	source.currentFeed().strokes <- strokeNotification(point(sessionID, remoteID, 7, 7, false, 3))
	require.Eventually(t, func() bool {
		return len(surface.snapshot()) == 3
	}, waitFor, tick)
}

func TestEngine_Leave(t *testing.T) {
	sessionID := uuid.New()
	localID := uuid.New()

	source := &fakeSource{}
	surface := &fakeSurface{}
	engine := NewEngine(sessionID, localID, source, surface)
	require.NoError(t, engine.Join(context.Background()))

	source.currentFeed().cursors <- bus.CursorMessage{
		AuthorID:        uuid.New(),
		X:               1, Y: 1,
		ClientTimestamp: time.Now(),
	}
	require.Eventually(t, func() bool {
		return len(engine.Cursors()) == 1
	}, waitFor, tick)

	// ACT: Leave the session
	require.NoError(t, engine.Leave(context.Background()))

	// ASSERT: Closed, transient state discarded, join no longer possible
	assert.Equal(t, StateClosed, engine.State())
	assert.False(t, engine.Synced())
	assert.Empty(t, engine.Cursors())
	assert.ErrorIs(t, engine.Join(context.Background()), ErrEngineClosed)

	// Leaving twice is safe
	assert.NoError(t, engine.Leave(context.Background()))
}
