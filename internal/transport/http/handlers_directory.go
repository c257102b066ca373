package httptransport

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"lexguard/internal/directory"
	id "lexguard/pkg/domain"
	dErrors "lexguard/pkg/domainerrors"
	"lexguard/pkg/requestcontext"
	"lexguard/pkg/sentinel"
)

type intakeAttorneyRequest struct {
	Name string `json:"name"`
}

func (h *Handler) handleIntakeAttorney(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req intakeAttorneyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeError(w, dErrors.New(dErrors.CodeInvalidInput, "attorney name is required"))
		return
	}

	attorney := directory.Attorney{
		ID:        id.NewAttorneyID(),
		Name:      req.Name,
		Standing:  directory.StandingGood,
		Active:    true,
		CreatedAt: requestcontext.Now(ctx),
	}
	if err := h.attorneys.Save(ctx, attorney); err != nil {
		h.logger.ErrorContext(ctx, "attorney intake failed", "error", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"attorney_id": attorney.ID.String()})
}

type attorneyStatusRequest struct {
	Standing string `json:"standing"`
	Active   bool   `json:"active"`
}

// handleAttorneyStatus is the administrative toggle for bar standing and the
// active flag. Sessions created afterwards see the new state; existing
// sessions are unaffected until they expire or are revoked.
func (h *Handler) handleAttorneyStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	attorneyID, err := id.ParseAttorneyID(chi.URLParam(r, "attorneyID"))
	if err != nil {
		writeError(w, err)
		return
	}
	var req attorneyStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}
	standing := directory.BarStanding(req.Standing)
	switch standing {
	case directory.StandingGood, directory.StandingSuspended, directory.StandingDisbarred:
	default:
		writeError(w, dErrors.New(dErrors.CodeInvalidInput, "unknown bar standing"))
		return
	}

	if err := h.attorneys.SetStatus(ctx, attorneyID, standing, req.Active); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			writeError(w, dErrors.New(dErrors.CodeNotFound, "unknown attorney"))
			return
		}
		h.logger.ErrorContext(ctx, "attorney status update failed", "error", err)
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type intakeClientRequest struct {
	Name string `json:"name"`
}

func (h *Handler) handleIntakeClient(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req intakeClientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeError(w, dErrors.New(dErrors.CodeInvalidInput, "client name is required"))
		return
	}

	client := directory.Client{
		ID:        id.NewClientID(),
		Name:      req.Name,
		CreatedAt: requestcontext.Now(ctx),
	}
	if err := h.clients.Save(ctx, client); err != nil {
		h.logger.ErrorContext(ctx, "client intake failed", "error", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"client_id": client.ID.String()})
}

type intakeRelationshipRequest struct {
	AttorneyID     string   `json:"attorney_id"`
	ClientID       string   `json:"client_id"`
	Matter         string   `json:"matter"`
	AdverseParties []string `json:"adverse_parties,omitempty"`
}

func (h *Handler) handleIntakeRelationship(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req intakeRelationshipRequest
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
	if req.Matter == "" {
		writeError(w, dErrors.New(dErrors.CodeInvalidInput, "matter is required"))
		return
	}
	adverse := make([]id.ClientID, 0, len(req.AdverseParties))
	for _, raw := range req.AdverseParties {
		adverseID, err := id.ParseClientID(raw)
		if err != nil {
			writeError(w, err)
			return
		}
		adverse = append(adverse, adverseID)
	}

	if _, err := h.attorneys.FindByID(ctx, attorneyID); err != nil {
		writeError(w, dErrors.New(dErrors.CodeNotFound, "unknown attorney"))
		return
	}
	if _, err := h.clients.FindByID(ctx, clientID); err != nil {
		writeError(w, dErrors.New(dErrors.CodeNotFound, "unknown client"))
		return
	}

	rel := directory.Relationship{
		AttorneyID:     attorneyID,
		ClientID:       clientID,
		Matter:         req.Matter,
		AdverseParties: adverse,
		Active:         true,
		CreatedAt:      requestcontext.Now(ctx),
	}
	if err := h.relationships.Save(ctx, rel); err != nil {
		h.logger.ErrorContext(ctx, "relationship intake failed", "error", err)
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}
