package httphandler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ericfisherdev/vaultdesk/internal/application"
	"github.com/ericfisherdev/vaultdesk/internal/domain/model"
	"github.com/ericfisherdev/vaultdesk/internal/domain/port/driven"
	"github.com/ericfisherdev/vaultdesk/internal/metrics"
)

// ActorHeader names the request header that identifies who is acting. The
// upstream gateway is responsible for authenticating it.
const ActorHeader = "X-Actor"

const (
	maxBodyBytes      = 64 << 10
	defaultAuditLimit = 100
	maxAuditLimit     = 1000
)

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler is the HTTP driving adapter that serves the REST API.
type Handler struct {
	vault  *application.VaultService
	pinger Pinger
	logger *slog.Logger
}

// NewHandler creates a Handler with all required dependencies. pinger may be
// nil when the store has nothing to check.
func NewHandler(vault *application.VaultService, pinger Pinger, logger *slog.Logger) *Handler {
	return &Handler{
		vault:  vault,
		pinger: pinger,
		logger: logger,
	}
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with logging and recovery middleware. When m is non-nil, /metrics is served
// and every request is counted.
func NewServeMux(h *Handler, logger *slog.Logger, m *metrics.Metrics) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/tenants/{tenant}/secrets", h.ListSecrets)
	mux.HandleFunc("POST /api/v1/tenants/{tenant}/secrets", h.StoreSecret)
	mux.HandleFunc("PATCH /api/v1/tenants/{tenant}/secrets/{id}", h.UpdateSecret)
	mux.HandleFunc("DELETE /api/v1/tenants/{tenant}/secrets/{id}", h.DeleteSecret)
	mux.HandleFunc("POST /api/v1/tenants/{tenant}/secrets/{id}/reveal", h.RevealSecret)
	mux.HandleFunc("GET /api/v1/tenants/{tenant}/audit", h.AuditTrail)
	mux.HandleFunc("GET /api/v1/health", h.Health)
	if m != nil {
		mux.Handle("GET /metrics", m.Handler())
	}

	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, mux)
	wrapped = loggingMiddleware(logger, m, wrapped)

	return wrapped
}

// ListSecrets returns metadata for every secret the tenant owns. Values are
// never decrypted here.
func (h *Handler) ListSecrets(w http.ResponseWriter, r *http.Request) {
	tenantID := r.PathValue("tenant")

	secrets, err := h.vault.ListSecrets(r.Context(), tenantID)
	if err != nil {
		h.writeVaultError(w, err, "failed to list secrets", "tenant_id", tenantID)
		return
	}

	resp := make([]SecretResponse, 0, len(secrets))
	for _, s := range secrets {
		resp = append(resp, toSecretResponse(s))
	}

	writeJSON(w, http.StatusOK, resp)
}

// StoreSecret encrypts and stores a new secret for the tenant.
func (h *Handler) StoreSecret(w http.ResponseWriter, r *http.Request) {
	tenantID := r.PathValue("tenant")

	var req StoreSecretRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	secret, err := h.vault.StoreSecret(r.Context(), application.SecretInput{
		TenantID:     tenantID,
		Title:        req.Title,
		Category:     model.Category(req.Category),
		Notes:        req.Notes,
		LinkedEntity: toLinkedEntity(req.LinkedEntity),
		Actor:        r.Header.Get(ActorHeader),
	}, req.Value)
	if err != nil {
		h.writeVaultError(w, err, "failed to store secret", "tenant_id", tenantID)
		return
	}

	writeJSON(w, http.StatusCreated, toSecretResponse(secret))
}

// UpdateSecret changes a secret's metadata and, when a value is supplied,
// re-encrypts it.
func (h *Handler) UpdateSecret(w http.ResponseWriter, r *http.Request) {
	tenantID := r.PathValue("tenant")
	id := r.PathValue("id")

	var req UpdateSecretRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	upd := application.SecretUpdate{
		Title:             req.Title,
		Value:             req.Value,
		Notes:             req.Notes,
		LinkedEntity:      toLinkedEntity(req.LinkedEntity),
		ClearLinkedEntity: req.ClearLinkedEntity,
	}
	if req.Category != nil {
		category := model.Category(*req.Category)
		upd.Category = &category
	}

	if err := h.vault.UpdateSecret(r.Context(), tenantID, id, upd, r.Header.Get(ActorHeader)); err != nil {
		h.writeVaultError(w, err, "failed to update secret", "tenant_id", tenantID, "secret_id", id)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// DeleteSecret permanently removes a secret.
func (h *Handler) DeleteSecret(w http.ResponseWriter, r *http.Request) {
	tenantID := r.PathValue("tenant")
	id := r.PathValue("id")

	if err := h.vault.DeleteSecret(r.Context(), tenantID, id, r.Header.Get(ActorHeader)); err != nil {
		h.writeVaultError(w, err, "failed to delete secret", "tenant_id", tenantID, "secret_id", id)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// RevealSecret decrypts a secret and returns its value. The response must not
// be cached by any intermediary.
func (h *Handler) RevealSecret(w http.ResponseWriter, r *http.Request) {
	tenantID := r.PathValue("tenant")
	id := r.PathValue("id")

	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")

	value, err := h.vault.RevealSecret(r.Context(), tenantID, id, r.Header.Get(ActorHeader))
	if err != nil {
		h.writeVaultError(w, err, "failed to reveal secret", "tenant_id", tenantID, "secret_id", id)
		return
	}

	writeJSON(w, http.StatusOK, RevealResponse{ID: id, Value: value})
}

// AuditTrail returns the tenant's recent audit events, newest first. The
// optional limit query parameter defaults to 100 and is capped at 1000.
func (h *Handler) AuditTrail(w http.ResponseWriter, r *http.Request) {
	tenantID := r.PathValue("tenant")

	limit := defaultAuditLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = min(parsed, maxAuditLimit)
	}

	events, err := h.vault.AuditTrail(r.Context(), tenantID, limit)
	if err != nil {
		h.writeVaultError(w, err, "failed to list audit events", "tenant_id", tenantID)
		return
	}

	resp := make([]AuditEventResponse, 0, len(events))
	for _, e := range events {
		resp = append(resp, toAuditEventResponse(e))
	}

	writeJSON(w, http.StatusOK, resp)
}

// Health reports whether the store is reachable and whether the vault has a key.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	vaultState := "ready"
	if !h.vault.Configured() {
		vaultState = "list_only"
	}

	resp := HealthResponse{
		Status: "ok",
		Vault:  vaultState,
		Time:   time.Now().UTC().Format(time.RFC3339),
	}

	if h.pinger != nil {
		if err := h.pinger.Ping(r.Context()); err != nil {
			h.logger.Error("health check failed", "error", err)
			resp.Status = "unavailable"
			writeJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// writeVaultError maps service errors to HTTP responses. Missing and foreign
// secrets share one response so callers cannot probe for other tenants' IDs.
func (h *Handler) writeVaultError(w http.ResponseWriter, err error, msg string, attrs ...any) {
	switch {
	case errors.Is(err, driven.ErrNotFoundOrForbidden):
		writeError(w, http.StatusNotFound, "secret not found")
	case errors.Is(err, application.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, application.ErrVaultNotConfigured):
		writeError(w, http.StatusServiceUnavailable, "vault encryption key is not configured")
	case errors.Is(err, application.ErrUnreadable):
		writeError(w, http.StatusInternalServerError, "unable to decrypt secret")
	default:
		h.logger.Error(msg, append(attrs, "error", err)...)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// decodeBody decodes a size-limited JSON request body into v.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(v)
}
