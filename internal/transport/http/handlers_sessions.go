package httptransport

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"lexguard/internal/session"
	id "lexguard/pkg/domain"
	dErrors "lexguard/pkg/domainerrors"
	"lexguard/pkg/requestcontext"
)

type createSessionRequest struct {
	AttorneyID string `json:"attorney_id"`
	ClientID   string `json:"client_id,omitempty"`
	Scope      string `json:"scope"`
}

type createSessionResponse struct {
	SessionID string    `json:"session_id"`
	Token     string    `json:"token"`
	Scope     string    `json:"scope"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}

	attorneyID, err := id.ParseAttorneyID(req.AttorneyID)
	if err != nil {
		writeError(w, err)
		return
	}
	var clientID id.ClientID
	if req.ClientID != "" {
		if clientID, err = id.ParseClientID(req.ClientID); err != nil {
			writeError(w, err)
			return
		}
	}
	scope, err := session.ParseScope(req.Scope)
	if err != nil {
		writeError(w, err)
		return
	}

	sess, token, err := h.sessions.Create(ctx, attorneyID, clientID, scope)
	if err != nil {
		if !errors.Is(err, session.ErrInvalidSubject) {
			h.logger.ErrorContext(ctx, "failed to create session",
				"request_id", requestcontext.RequestID(ctx), "error", err)
		}
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, createSessionResponse{
		SessionID: sess.ID.String(),
		Token:     token,
		Scope:     string(sess.Scope),
		ExpiresAt: sess.ExpiresAt,
	})
}

type verifySessionRequest struct {
	SessionID string `json:"session_id"`
	Token     string `json:"token"`
}

type verifySessionResponse struct {
	Valid bool   `json:"valid"`
	Scope string `json:"scope,omitempty"`
}

func (h *Handler) handleVerifySession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req verifySessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}
	sessionID, err := id.ParseSessionID(req.SessionID)
	if err != nil {
		writeError(w, err)
		return
	}

	sess, err := h.sessions.Verify(ctx, sessionID, req.Token)
	if errors.Is(err, session.ErrSessionInvalid) {
		writeJSON(w, http.StatusOK, verifySessionResponse{Valid: false})
		return
	}
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to verify session",
			"request_id", requestcontext.RequestID(ctx), "error", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, verifySessionResponse{Valid: true, Scope: string(sess.Scope)})
}

func (h *Handler) handleRevokeSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sessionID, err := id.ParseSessionID(chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.sessions.Revoke(ctx, sessionID); err != nil {
		if errors.Is(err, session.ErrSessionInvalid) {
			writeError(w, dErrors.New(dErrors.CodeNotFound, "unknown session"))
			return
		}
		h.logger.ErrorContext(ctx, "failed to revoke session",
			"request_id", requestcontext.RequestID(ctx), "error", err)
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
