package httptransport

import (
	"encoding/json"
	"errors"
	"net/http"

	"lexguard/internal/conflict"
	"lexguard/internal/guard"
	"lexguard/internal/ledger"
	"lexguard/internal/session"
	id "lexguard/pkg/domain"
	dErrors "lexguard/pkg/domainerrors"
)

const sessionHeader = "X-Session-ID"

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError centralizes error translation. Denials are a uniform envelope:
// the body never says whether the record exists or why access failed.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, guard.ErrAccessDenied):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "access_denied"})
	case errors.Is(err, guard.ErrConflictUnresolved):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "conflict_unresolved"})
	case errors.Is(err, session.ErrSessionInvalid):
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "session_invalid"})
	case errors.Is(err, session.ErrInvalidSubject):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": "invalid_subject"})
	case errors.Is(err, ledger.ErrAppend):
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "audit_unavailable"})
	case errors.Is(err, conflict.ErrScreeningUnavailable):
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "screening_unavailable"})
	default:
		code := dErrors.CodeOf(err)
		writeJSON(w, statusForCode(code), map[string]string{"error": string(code)})
	}
}

func statusForCode(code dErrors.Code) int {
	switch code {
	case dErrors.CodeInvalidInput:
		return http.StatusBadRequest
	case dErrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case dErrors.CodeForbidden:
		return http.StatusForbidden
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeConflict:
		return http.StatusConflict
	case dErrors.CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// sessionCredentials extracts the session ID header and bearer token that
// guard operations require.
func sessionCredentials(r *http.Request) (id.SessionID, string, error) {
	sessionID, err := id.ParseSessionID(r.Header.Get(sessionHeader))
	if err != nil {
		return id.SessionID{}, "", dErrors.New(dErrors.CodeUnauthorized, "missing or invalid session header")
	}
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(auth) <= len(prefix) || auth[:len(prefix)] != prefix {
		return id.SessionID{}, "", dErrors.New(dErrors.CodeUnauthorized, "missing bearer token")
	}
	return sessionID, auth[len(prefix):], nil
}
