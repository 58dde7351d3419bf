package replay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prudhvinik1/sketchsync/internal/bus"
	"github.com/prudhvinik1/sketchsync/internal/models"
)

var (
	// ErrHistoryFetchFailed blocks the transition to live. The client must
	// retry Join before trusting anything it draws from remote state.
	ErrHistoryFetchFailed = errors.New("history fetch failed")
	ErrSubscriptionLost   = errors.New("session subscription lost")
	ErrEngineClosed       = errors.New("replay engine is closed")
	ErrJoinInProgress     = errors.New("join already in progress")
)

type State string

const (
	StateJoining State = "joining"
	StateLive    State = "live"
	StateClosed  State = "closed"
)

// CursorFreshness is how old a cursor broadcast may be at receipt time and
// still be rendered.
const CursorFreshness = 2000 * time.Millisecond

// resyncBackoff paces resubscription attempts after a dropped subscription.
const resyncBackoff = time.Second

// Surface is the drawing renderer the engine replays onto. Implementations
// interpret BeginPath as a path break for that author.
type Surface interface {
	BeginPath(authorID uuid.UUID, x, y float64, color string, size float64)
	LineTo(authorID uuid.UUID, x, y float64)
	Clear()
}

// Feed is one live attachment to a session's sync channel. Both channels
// close when the attachment ends.
type Feed interface {
	Strokes() <-chan bus.StrokeNotification
	Cursors() <-chan bus.CursorMessage
	Unsubscribe(ctx context.Context) error
}

// Source supplies the two inputs replay needs: the ordered history and a
// live feed.
type Source interface {
	FetchHistory(ctx context.Context, sessionID uuid.UUID) ([]*models.StrokePoint, error)
	Subscribe(ctx context.Context, sessionID, userID uuid.UUID) (Feed, error)
}

// Cursor is a peer's transient pointer position, shown as an overlay.
type Cursor struct {
	AuthorID uuid.UUID
	X        float64
	Y        float64
	Color    string
	SentAt   time.Time
}

// Engine reconstructs canvas state for one client: full history replay on
// join, then incremental application of remote strokes and cursor overlays.
// The local author's live notifications are suppressed because the local
// input path already rendered them optimistically.
type Engine struct {
	sessionID uuid.UUID
	localID   uuid.UUID
	source    Source
	surface   Surface

	mu      sync.Mutex
	state   State
	joining bool
	feed    Feed
	overlay map[uuid.UUID]Cursor
	synced  bool
	lastSeq int64
	cancel  context.CancelFunc
}

func NewEngine(sessionID, localID uuid.UUID, source Source, surface Surface) *Engine {
	return &Engine{
		sessionID: sessionID,
		localID:   localID,
		source:    source,
		surface:   surface,
		state:     StateJoining,
		overlay:   make(map[uuid.UUID]Cursor),
	}
}

// Join runs the joining->live transition: fetch history once, replay it in
// server_sequence order, then attach to the live feed. On failure the engine
// stays in joining and the call may be retried.
//
// History replay does NOT skip the local author: on a rejoin the surface
// starts blank and the client's own earlier strokes must render too.
func (e *Engine) Join(ctx context.Context) error {
	e.mu.Lock()
	if e.state != StateJoining {
		e.mu.Unlock()
		return ErrEngineClosed
	}
	if e.joining {
		e.mu.Unlock()
		return ErrJoinInProgress
	}
	e.joining = true
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		e.joining = false
		e.mu.Unlock()
	}()

	points, err := e.source.FetchHistory(ctx, e.sessionID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrHistoryFetchFailed, err)
	}

	e.surface.Clear()
	for _, point := range points {
		e.apply(point)
	}

	var lastSeq int64
	if len(points) > 0 {
		lastSeq = points[len(points)-1].ServerSequence
	}

	feed, err := e.source.Subscribe(ctx, e.sessionID, e.localID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSubscriptionLost, err)
	}

	runCtx, cancel := context.WithCancel(context.Background())

	e.mu.Lock()
	if e.state == StateClosed {
		e.mu.Unlock()
		cancel()
		feed.Unsubscribe(ctx)
		return ErrEngineClosed
	}
	e.feed = feed
	e.state = StateLive
	e.synced = true
	e.lastSeq = lastSeq
	e.cancel = cancel
	e.mu.Unlock()

	go e.run(runCtx)
	return nil
}

// Leave tears the engine down: unsubscribe immediately and discard all
// transient state. Durably logged strokes are untouched.
func (e *Engine) Leave(ctx context.Context) error {
	e.mu.Lock()
	if e.state == StateClosed {
		e.mu.Unlock()
		return nil
	}
	e.state = StateClosed
	e.synced = false
	e.overlay = make(map[uuid.UUID]Cursor)
	feed := e.feed
	cancel := e.cancel
	e.feed = nil
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if feed != nil {
		return feed.Unsubscribe(ctx)
	}
	return nil
}

func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Synced reports whether remote changes are currently flowing. False means
// the UI should show a "not syncing" indicator; local drawing is unaffected.
func (e *Engine) Synced() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.synced
}

// Cursors returns the peer cursor overlay, pruned of entries older than the
// freshness window.
func (e *Engine) Cursors() []Cursor {
	e.mu.Lock()
	defer e.mu.Unlock()

	var cursors []Cursor
	for authorID, cursor := range e.overlay {
		if time.Since(cursor.SentAt) > CursorFreshness {
			delete(e.overlay, authorID)
			continue
		}
		cursors = append(cursors, cursor)
	}
	return cursors
}

// run consumes the live feed until the engine closes. A feed that ends
// without Leave being called, or one whose notifications skip a
// server_sequence, means deliveries were lost; the engine then resyncs by
// refetching the full history, which also repairs any path whose start
// boundary was missed during the gap.
func (e *Engine) run(ctx context.Context) {
	for {
		feed := e.currentFeed()
		if feed == nil {
			return
		}

		strokes := feed.Strokes()
		cursors := feed.Cursors()

	deliver:
		for {
			select {
			case <-ctx.Done():
				return
			case notification, ok := <-strokes:
				if !ok {
					break deliver
				}
				if !e.handleNotification(notification) {
					// The feed is still open but deliveries were lost;
					// detach it before repairing from history.
					feed.Unsubscribe(context.Background())
					break deliver
				}
			case cursor, ok := <-cursors:
				if !ok {
					cursors = nil
					continue
				}
				e.handleCursor(cursor)
			}
		}

		if e.State() == StateClosed {
			return
		}

		e.setSynced(false)
		if err := e.resync(ctx); err != nil {
			return
		}
	}
}

// resync recovers from a dropped subscription: full history refetch, replay
// from a blank surface, resubscribe. Simplicity over incremental catch-up;
// there is no cursor for resuming a durable subscription.
func (e *Engine) resync(ctx context.Context) error {
	for {
		points, err := e.source.FetchHistory(ctx, e.sessionID)
		if err == nil {
			e.surface.Clear()
			for _, point := range points {
				e.apply(point)
			}

			var lastSeq int64
			if len(points) > 0 {
				lastSeq = points[len(points)-1].ServerSequence
			}

			feed, subErr := e.source.Subscribe(ctx, e.sessionID, e.localID)
			if subErr == nil {
				e.mu.Lock()
				if e.state == StateClosed {
					e.mu.Unlock()
					feed.Unsubscribe(ctx)
					return ErrEngineClosed
				}
				e.feed = feed
				e.synced = true
				e.lastSeq = lastSeq
				e.mu.Unlock()
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(resyncBackoff):
		}
	}
}

// handleNotification applies one durable notification. It returns false when
// server_sequence numbering shows the subscription silently skipped messages
// (the pub/sub client reconnects after a network drop without closing its
// channels); the caller must then resync from history, since a missed
// is_start boundary corrupts every later point of that path.
func (e *Engine) handleNotification(notification bus.StrokeNotification) bool {
	switch notification.Kind {
	case bus.KindTruncate:
		e.surface.Clear()
	case bus.KindStroke:
		point := notification.Point
		if point == nil {
			return true
		}

		e.mu.Lock()
		last := e.lastSeq
		switch {
		case point.ServerSequence <= last:
			// Redelivery of a point already applied. Replaying it now would
			// draw from the author's current anchor, not the original one,
			// so it is skipped rather than redrawn.
			e.mu.Unlock()
			return true
		case point.ServerSequence > last+1:
			e.mu.Unlock()
			return false
		}
		e.lastSeq = point.ServerSequence
		e.mu.Unlock()

		// Our own live strokes were already drawn optimistically, but they
		// still advance the sequence: their slots are not a gap.
		if point.AuthorID == e.localID {
			return true
		}
		e.apply(point)
	}
	return true
}

func (e *Engine) handleCursor(cursor bus.CursorMessage) {
	if cursor.AuthorID == e.localID {
		return
	}
	// A broadcast that aged past the freshness window in transit is never
	// rendered.
	if time.Since(cursor.ClientTimestamp) > CursorFreshness {
		return
	}

	e.mu.Lock()
	e.overlay[cursor.AuthorID] = Cursor{
		AuthorID: cursor.AuthorID,
		X:        cursor.X,
		Y:        cursor.Y,
		Color:    cursor.Color,
		SentAt:   cursor.ClientTimestamp,
	}
	e.mu.Unlock()
}

func (e *Engine) apply(point *models.StrokePoint) {
	if point.IsStart {
		e.surface.BeginPath(point.AuthorID, point.X, point.Y, point.Color, point.BrushSize)
		return
	}
	e.surface.LineTo(point.AuthorID, point.X, point.Y)
}

func (e *Engine) currentFeed() Feed {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.feed
}

func (e *Engine) setSynced(synced bool) {
	e.mu.Lock()
	e.synced = synced
	e.mu.Unlock()
}
