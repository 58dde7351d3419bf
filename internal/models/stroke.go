package models

import (
	"time"

	"github.com/google/uuid"
)

// StrokePoint is one recorded sample of a drawn path. ServerSequence is
// assigned by the stroke log at append time and is the only ordering
// authority; client timestamps are never trusted for ordering.
type StrokePoint struct {
	SessionID      uuid.UUID `json:"session_id"`
	AuthorID       uuid.UUID `json:"author_id"`
	X              float64   `json:"x"`
	Y              float64   `json:"y"`
	Color          string    `json:"color"`
	BrushSize      float64   `json:"brush_size"`
	IsStart        bool      `json:"is_start"`
	ServerSequence int64     `json:"server_sequence"`
	CreatedAt      time.Time `json:"created_at"`
}
