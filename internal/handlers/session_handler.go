package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prudhvinik1/sketchsync/internal/models"
	"github.com/prudhvinik1/sketchsync/internal/repositories"
	"github.com/prudhvinik1/sketchsync/internal/services"
)

type SessionHandler struct {
	sessions *services.SessionService
}

func NewSessionHandler(sessions *services.SessionService) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

type createSessionRequest struct {
	Passcode string `json:"passcode,omitempty"`
}

type joinSessionRequest struct {
	Code     string `json:"code"`
	Passcode string `json:"passcode,omitempty"`
}

type sessionResponse struct {
	ID     uuid.UUID            `json:"id"`
	Code   string               `json:"code"`
	HostID uuid.UUID            `json:"host_id"`
	Status models.SessionStatus `json:"status"`
}

func toSessionResponse(session *models.Session) sessionResponse {
	return sessionResponse{
		ID:     session.ID,
		Code:   session.Code,
		HostID: session.HostID,
		Status: session.Status,
	}
}

func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := identityFrom(r.Context())

	var req createSessionRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	session, err := h.sessions.CreateSession(r.Context(), claims.AuthorID, req.Passcode)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	writeJSON(w, http.StatusCreated, toSessionResponse(session))
}

func (h *SessionHandler) Join(w http.ResponseWriter, r *http.Request) {
	var req joinSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Code == "" {
		writeError(w, http.StatusBadRequest, "code is required")
		return
	}

	session, err := h.sessions.JoinSession(r.Context(), req.Code, req.Passcode)
	if errors.Is(err, repositories.ErrNotFound) {
		writeError(w, http.StatusNotFound, "no joinable session with that code")
		return
	}
	if errors.Is(err, services.ErrUnauthorized) {
		writeError(w, http.StatusUnauthorized, "wrong passcode")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to join session")
		return
	}

	writeJSON(w, http.StatusOK, toSessionResponse(session))
}

func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionIDParam(w, r)
	if !ok {
		return
	}

	session, err := h.sessions.GetSession(r.Context(), sessionID)
	if errors.Is(err, repositories.ErrNotFound) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get session")
		return
	}

	writeJSON(w, http.StatusOK, toSessionResponse(session))
}

func (h *SessionHandler) Participants(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionIDParam(w, r)
	if !ok {
		return
	}

	entries, err := h.sessions.Participants(r.Context(), sessionID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list participants")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":        len(entries),
		"participants": entries,
	})
}

func (h *SessionHandler) Clear(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionIDParam(w, r)
	if !ok {
		return
	}
	claims := identityFrom(r.Context())

	err := h.sessions.ClearSession(r.Context(), sessionID, claims.AuthorID)
	if errors.Is(err, repositories.ErrNotFound) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	if errors.Is(err, services.ErrUnauthorized) {
		writeError(w, http.StatusForbidden, "only the host can clear the session")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to clear session")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandler) Close(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionIDParam(w, r)
	if !ok {
		return
	}

	err := h.sessions.CloseSession(r.Context(), sessionID)
	if errors.Is(err, repositories.ErrNotFound) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to close session")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func sessionIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	sessionID, err := uuid.Parse(chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid session id")
		return uuid.Nil, false
	}
	return sessionID, true
}
