package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/prudhvinik1/sketchsync/internal/services"
)

type IdentityHandler struct {
	identity *services.IdentityService
}

func NewIdentityHandler(identity *services.IdentityService) *IdentityHandler {
	return &IdentityHandler{identity: identity}
}

type issueIdentityRequest struct {
	DisplayName string `json:"display_name"`
}

// Issue hands out a guest identity: a fresh author ID signed into a token.
func (h *IdentityHandler) Issue(w http.ResponseWriter, r *http.Request) {
	var req issueIdentityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.DisplayName == "" {
		writeError(w, http.StatusBadRequest, "display_name is required")
		return
	}

	guest, err := h.identity.IssueGuestIdentity(req.DisplayName)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to issue identity")
		return
	}

	writeJSON(w, http.StatusCreated, guest)
}
