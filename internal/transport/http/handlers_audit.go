package httptransport

import (
	"errors"
	"net/http"
	"time"

	"lexguard/internal/ledger"
	dErrors "lexguard/pkg/domainerrors"
	"lexguard/pkg/requestcontext"
)

// handleAuditTrail serves compliance queries over the ledger. With
// report=true the matching window is summarized instead of listed. This
// endpoint is read-only and never feeds an access-control decision.
func (h *Handler) handleAuditTrail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	filter := ledger.Filter{
		Actor:   q.Get("actor"),
		Subject: q.Get("subject"),
		Action:  ledger.Action(q.Get("action")),
		Outcome: ledger.Outcome(q.Get("outcome")),
	}
	var err error
	if filter.From, err = parseTimeParam(q.Get("from")); err != nil {
		writeError(w, err)
		return
	}
	if filter.To, err = parseTimeParam(q.Get("to")); err != nil {
		writeError(w, err)
		return
	}

	entries, err := h.ledger.Query(ctx, filter)
	if err != nil {
		h.logger.ErrorContext(ctx, "audit query failed",
			"request_id", requestcontext.RequestID(ctx), "error", err)
		writeError(w, dErrors.Wrap(err, dErrors.CodeUnavailable, "audit trail unavailable"))
		return
	}

	if q.Get("report") == "true" {
		writeJSON(w, http.StatusOK, ledger.BuildReport(entries, filter.From, filter.To))
		return
	}
	if entries == nil {
		entries = []ledger.Entry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

// handleAuditVerify recomputes the hash chain over the full trail. A broken
// chain answers 409 so monitoring can alert on the status code alone.
func (h *Handler) handleAuditVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tail := h.ledger.TailSeq()
	if tail == 0 {
		writeJSON(w, http.StatusOK, map[string]any{"chain_intact": true, "tail_seq": 0})
		return
	}
	if err := h.ledger.VerifyChain(ctx, 1, tail); err != nil {
		if errors.Is(err, ledger.ErrTamperDetected) {
			h.logger.ErrorContext(ctx, "audit chain verification failed",
				"request_id", requestcontext.RequestID(ctx), "error", err)
			writeJSON(w, http.StatusConflict, map[string]any{
				"chain_intact": false,
				"error":        err.Error(),
			})
			return
		}
		writeError(w, dErrors.Wrap(err, dErrors.CodeUnavailable, "audit trail unavailable"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"chain_intact": true, "tail_seq": tail})
}

func parseTimeParam(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, dErrors.New(dErrors.CodeInvalidInput, "time bounds must be RFC3339")
	}
	return t, nil
}
