// Package httptransport is the thin HTTP layer over the privilege guard
// services. Handlers decode, delegate, and translate errors; no business
// logic lives here.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"lexguard/internal/conflict"
	"lexguard/internal/directory"
	"lexguard/internal/guard"
	"lexguard/internal/ledger"
	"lexguard/internal/platform/middleware"
	"lexguard/internal/session"
)

// HealthFunc reports whether the service's dependencies are usable.
type HealthFunc func(ctx context.Context) error

// Handler holds the services the routes delegate to.
type Handler struct {
	logger        *slog.Logger
	sessions      *session.Service
	guard         *guard.Service
	conflicts     *conflict.Service
	ledger        *ledger.Ledger
	attorneys     directory.AttorneyStore
	clients       directory.ClientStore
	relationships directory.RelationshipStore
	health        HealthFunc
}

func NewHandler(
	logger *slog.Logger,
	sessions *session.Service,
	guardSvc *guard.Service,
	conflicts *conflict.Service,
	auditLedger *ledger.Ledger,
	attorneys directory.AttorneyStore,
	clients directory.ClientStore,
	relationships directory.RelationshipStore,
	health HealthFunc,
) *Handler {
	return &Handler{
		logger:        logger,
		sessions:      sessions,
		guard:         guardSvc,
		conflicts:     conflicts,
		ledger:        auditLedger,
		attorneys:     attorneys,
		clients:       clients,
		relationships: relationships,
		health:        health,
	}
}

// NewRouter wires all endpoints behind the request-scoped middleware chain.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.ClientMetadata)

	r.Get("/healthz", h.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/sessions", h.handleCreateSession)
		r.Post("/sessions/verify", h.handleVerifySession)
		r.Delete("/sessions/{sessionID}", h.handleRevokeSession)

		r.Post("/communications", h.handleWriteCommunication)
		r.Get("/communications/{recordID}", h.handleReadCommunication)
		r.Get("/clients/{clientID}/communications", h.handleListForClient)

		r.Get("/audit", h.handleAuditTrail)
		r.Get("/audit/verify", h.handleAuditVerify)
		r.Post("/conflicts/rescreen", h.handleRescreen)

		r.Post("/directory/attorneys", h.handleIntakeAttorney)
		r.Patch("/directory/attorneys/{attorneyID}", h.handleAttorneyStatus)
		r.Post("/directory/clients", h.handleIntakeClient)
		r.Post("/directory/relationships", h.handleIntakeRelationship)
	})
	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		if err := h.health(r.Context()); err != nil {
			h.logger.ErrorContext(r.Context(), "health check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
