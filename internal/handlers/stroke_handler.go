package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"regexp"

	"github.com/prudhvinik1/sketchsync/internal/models"
	"github.com/prudhvinik1/sketchsync/internal/services"
)

var hexColorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

type StrokeHandler struct {
	strokes *services.StrokeService
}

func NewStrokeHandler(strokes *services.StrokeService) *StrokeHandler {
	return &StrokeHandler{strokes: strokes}
}

// Append records one stroke point. The author comes from the verified
// identity, the sequence from the log; the response carries both so the
// client can correlate its optimistic render with the committed point.
func (h *StrokeHandler) Append(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionIDParam(w, r)
	if !ok {
		return
	}
	claims := identityFrom(r.Context())

	var input services.StrokeInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !hexColorPattern.MatchString(input.Color) {
		writeError(w, http.StatusBadRequest, "color must be a hex string like #1a2b3c")
		return
	}
	if input.Size <= 0 {
		writeError(w, http.StatusBadRequest, "size must be positive")
		return
	}

	point, err := h.strokes.Append(r.Context(), sessionID, claims.AuthorID, input)
	if errors.Is(err, services.ErrAppendFailed) {
		// Recoverable: the client retries, duplicates redraw harmlessly.
		writeError(w, http.StatusServiceUnavailable, "append failed, retry")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to append stroke")
		return
	}

	writeJSON(w, http.StatusCreated, point)
}

// History returns the session's full ordered stroke log.
func (h *StrokeHandler) History(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionIDParam(w, r)
	if !ok {
		return
	}

	points, err := h.strokes.History(r.Context(), sessionID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to fetch history")
		return
	}
	if points == nil {
		points = []*models.StrokePoint{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"points": points,
		"count":  len(points),
	})
}
