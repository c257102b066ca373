package httptransport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"lexguard/internal/guard"
	"lexguard/internal/session"
	id "lexguard/pkg/domain"
	dErrors "lexguard/pkg/domainerrors"
	"lexguard/pkg/requestcontext"
)

type writeCommunicationRequest struct {
	AttorneyID string `json:"attorney_id"`
	ClientID   string `json:"client_id"`
	// Payload is base64 per encoding/json []byte convention.
	Payload     []byte `json:"payload"`
	ContentType string `json:"content_type"`
	PriorID     string `json:"prior_id,omitempty"`
}

func (h *Handler) handleWriteCommunication(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sessionID, token, err := sessionCredentials(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req writeCommunicationRequest
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
	contentType, err := guard.ParseContentType(req.ContentType)
	if err != nil {
		writeError(w, err)
		return
	}
	if len(req.Payload) == 0 {
		writeError(w, dErrors.New(dErrors.CodeInvalidInput, "payload must not be empty"))
		return
	}
	var priorID id.RecordID
	if req.PriorID != "" {
		if priorID, err = id.ParseRecordID(req.PriorID); err != nil {
			writeError(w, err)
			return
		}
	}

	recordID, err := h.guard.Write(ctx, guard.WriteRequest{
		SessionID:   sessionID,
		Token:       token,
		AttorneyID:  attorneyID,
		ClientID:    clientID,
		Payload:     req.Payload,
		ContentType: contentType,
		PriorID:     priorID,
	})
	if err != nil {
		h.logGuardFailure(ctx, err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"record_id": recordID.String()})
}

type readCommunicationResponse struct {
	RecordID    string    `json:"record_id"`
	Payload     []byte    `json:"payload"`
	ContentType string    `json:"content_type"`
	CreatedAt   time.Time `json:"created_at"`
	PriorID     string    `json:"prior_id,omitempty"`
}

func (h *Handler) handleReadCommunication(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sessionID, token, err := sessionCredentials(r)
	if err != nil {
		writeError(w, err)
		return
	}
	recordID, err := id.ParseRecordID(chi.URLParam(r, "recordID"))
	if err != nil {
		writeError(w, err)
		return
	}

	comm, err := h.guard.Read(ctx, sessionID, token, recordID)
	if err != nil {
		h.logGuardFailure(ctx, err)
		writeError(w, err)
		return
	}

	resp := readCommunicationResponse{
		RecordID:    comm.RecordID.String(),
		Payload:     comm.Payload,
		ContentType: string(comm.ContentType),
		CreatedAt:   comm.CreatedAt,
	}
	if !comm.PriorID.IsNil() {
		resp.PriorID = comm.PriorID.String()
	}
	writeJSON(w, http.StatusOK, resp)
}

type communicationMetadata struct {
	RecordID    string    `json:"record_id"`
	ContentType string    `json:"content_type"`
	CreatedAt   time.Time `json:"created_at"`
	PriorID     string    `json:"prior_id,omitempty"`
}

func (h *Handler) handleListForClient(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sessionID, token, err := sessionCredentials(r)
	if err != nil {
		writeError(w, err)
		return
	}
	clientID, err := id.ParseClientID(chi.URLParam(r, "clientID"))
	if err != nil {
		writeError(w, err)
		return
	}

	metadata, err := h.guard.ListForClient(ctx, sessionID, token, clientID)
	if err != nil {
		h.logGuardFailure(ctx, err)
		writeError(w, err)
		return
	}

	out := make([]communicationMetadata, 0, len(metadata))
	for _, m := range metadata {
		item := communicationMetadata{
			RecordID:    m.ID.String(),
			ContentType: string(m.ContentType),
			CreatedAt:   m.CreatedAt,
		}
		if m.PriorID != nil {
			item.PriorID = m.PriorID.String()
		}
		out = append(out, item)
	}
	writeJSON(w, http.StatusOK, map[string]any{"communications": out})
}

// logGuardFailure logs unexpected guard failures; expected denials pass
// through silently since the ledger already recorded them.
func (h *Handler) logGuardFailure(ctx context.Context, err error) {
	if errors.Is(err, guard.ErrAccessDenied) ||
		errors.Is(err, guard.ErrConflictUnresolved) ||
		errors.Is(err, session.ErrSessionInvalid) {
		return
	}
	h.logger.ErrorContext(ctx, "guarded operation failed",
		"request_id", requestcontext.RequestID(ctx), "error", err)
}
