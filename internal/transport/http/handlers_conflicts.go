package httptransport

import (
	"encoding/json"
	"net/http"
	"time"

	id "lexguard/pkg/domain"
	dErrors "lexguard/pkg/domainerrors"
	"lexguard/pkg/requestcontext"
)

type rescreenRequest struct {
	AttorneyID string `json:"attorney_id"`
	ClientID   string `json:"client_id"`
	Basis      string `json:"basis,omitempty"`
}

type rescreenResponse struct {
	CheckID   string    `json:"check_id"`
	Cleared   bool      `json:"cleared"`
	Basis     string    `json:"basis"`
	Timestamp time.Time `json:"timestamp"`
}

// handleRescreen is the administrative path for forcing a fresh conflict
// screen, used when facts change or a waiver is recorded.
func (h *Handler) handleRescreen(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req rescreenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}
	attorneyID, err := id.ParseAttorneyID(req.AttorneyID)
	if err != nil {
		writeError(w, err)
		return
	}
	clientID, err := id.ParseClientID(req.ClientID)
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := h.conflicts.Rescreen(ctx, attorneyID, clientID, req.Basis)
	if err != nil {
		h.logger.ErrorContext(ctx, "rescreen failed",
			"request_id", requestcontext.RequestID(ctx), "error", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rescreenResponse{
		CheckID:   result.CheckID.String(),
		Cleared:   result.Cleared,
		Basis:     result.Basis,
		Timestamp: result.Timestamp,
	})
}
