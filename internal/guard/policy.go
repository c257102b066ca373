package guard

import (
	"lexguard/internal/session"
	id "lexguard/pkg/domain"
)

// scopeAllows is the single policy-evaluation point for the closed scope
// enum. Every access decision in the guard funnels through it.
//
// attorney-full grants the attorney-of-record access to any pair they are a
// party to; client-own-only grants access only to the session's own pair;
// none grants nothing. Unknown scopes deny.
func scopeAllows(sess *session.Session, attorneyID id.AttorneyID, clientID id.ClientID) bool {
	switch sess.Scope {
	case session.ScopeAttorneyFull:
		return sess.AttorneyID == attorneyID
	case session.ScopeClientOwnOnly:
		return sess.AttorneyID == attorneyID && sess.ClientID == clientID
	default:
		return false
	}
}
