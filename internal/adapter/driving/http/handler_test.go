package httphandler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/vaultdesk/internal/adapter/driven/docrepo"
	"github.com/ericfisherdev/vaultdesk/internal/adapter/driven/memstore"
	httphandler "github.com/ericfisherdev/vaultdesk/internal/adapter/driving/http"
	"github.com/ericfisherdev/vaultdesk/internal/application"
	"github.com/ericfisherdev/vaultdesk/internal/envelope"
	"github.com/ericfisherdev/vaultdesk/internal/metrics"
)

// --- Mock implementations ---

type mockPinger struct {
	err error
}

func (m *mockPinger) Ping(_ context.Context) error { return m.err }

// --- Helper functions ---

type testServer struct {
	mux  http.Handler
	docs *memstore.Store
	logs *bytes.Buffer
}

func setupServer(t *testing.T, withKey bool, pinger httphandler.Pinger) *testServer {
	t.Helper()

	var key []byte
	if withKey {
		var err error
		key, err = envelope.GenerateKey()
		require.NoError(t, err)
	}

	logs := &bytes.Buffer{}
	logger := slog.New(slog.NewTextHandler(logs, nil))
	docs := memstore.New()
	vault := application.NewVaultService(docrepo.NewSecretRepo(docs), memstore.NewAuditLog(), key, logger, nil)
	h := httphandler.NewHandler(vault, pinger, logger)

	return &testServer{
		mux:  httphandler.NewServeMux(h, logger, metrics.New()),
		docs: docs,
		logs: logs,
	}
}

func (s *testServer) do(t *testing.T, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) storeDBRoot(t *testing.T, tenant string) httphandler.SecretResponse {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/v1/tenants/"+tenant+"/secrets",
		`{"title":"DB Root","category":"PASSWORD","value":"s3cr3t","notes":"**primary** cluster"}`,
		httphandler.ActorHeader, "alice")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp httphandler.SecretResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body["error"]
}

// --- Tests ---

func TestStoreSecret_Created(t *testing.T) {
	s := setupServer(t, true, nil)

	resp := s.storeDBRoot(t, "acme")

	assert.NotEmpty(t, resp.ID)
	assert.Equal(t, "acme", resp.TenantID)
	assert.Equal(t, "DB Root", resp.Title)
	assert.Equal(t, "PASSWORD", resp.Category)
	assert.Equal(t, "alice", resp.UpdatedBy)
	assert.Contains(t, resp.NotesHTML, "<strong>primary</strong>")
	assert.Nil(t, resp.LinkedEntity)
}

func TestStoreSecret_ResponseOmitsValueAndCiphertext(t *testing.T) {
	s := setupServer(t, true, nil)

	rec := s.do(t, http.MethodPost, "/api/v1/tenants/acme/secrets",
		`{"title":"DB Root","category":"PASSWORD","value":"s3cr3t"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	body := rec.Body.String()
	assert.NotContains(t, body, "s3cr3t")
	assert.NotContains(t, body, "ciphertext")
}

func TestStoreSecret_ValidationError(t *testing.T) {
	s := setupServer(t, true, nil)

	rec := s.do(t, http.MethodPost, "/api/v1/tenants/acme/secrets",
		`{"title":"DB Root","category":"CREDIT_CARD","value":"s3cr3t"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeError(t, rec), "CREDIT_CARD")
}

func TestStoreSecret_InvalidBody(t *testing.T) {
	s := setupServer(t, true, nil)

	rec := s.do(t, http.MethodPost, "/api/v1/tenants/acme/secrets", `{not json`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid request body", decodeError(t, rec))
}

func TestStoreSecret_NoKey(t *testing.T) {
	s := setupServer(t, false, nil)

	rec := s.do(t, http.MethodPost, "/api/v1/tenants/acme/secrets",
		`{"title":"DB Root","category":"PASSWORD","value":"s3cr3t"}`)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, 0, s.docs.Len(docrepo.Collection))
}

func TestListSecrets(t *testing.T) {
	s := setupServer(t, true, nil)
	s.storeDBRoot(t, "acme")
	s.storeDBRoot(t, "globex")

	rec := s.do(t, http.MethodGet, "/api/v1/tenants/acme/secrets", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp []httphandler.SecretResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp, 1)
	assert.Equal(t, "acme", resp[0].TenantID)
	assert.NotContains(t, rec.Body.String(), "s3cr3t")
}

func TestListSecrets_EmptyIsArray(t *testing.T) {
	s := setupServer(t, false, nil)

	rec := s.do(t, http.MethodGet, "/api/v1/tenants/acme/secrets", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestRevealSecret(t *testing.T) {
	s := setupServer(t, true, nil)
	stored := s.storeDBRoot(t, "acme")

	rec := s.do(t, http.MethodPost, "/api/v1/tenants/acme/secrets/"+stored.ID+"/reveal", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	var resp httphandler.RevealResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, stored.ID, resp.ID)
	assert.Equal(t, "s3cr3t", resp.Value)
}

func TestRevealSecret_ForeignAndMissingLookTheSame(t *testing.T) {
	s := setupServer(t, true, nil)
	stored := s.storeDBRoot(t, "acme")

	foreign := s.do(t, http.MethodPost, "/api/v1/tenants/other-tenant/secrets/"+stored.ID+"/reveal", "")
	missing := s.do(t, http.MethodPost, "/api/v1/tenants/other-tenant/secrets/no-such-id/reveal", "")

	assert.Equal(t, http.StatusNotFound, foreign.Code)
	assert.Equal(t, http.StatusNotFound, missing.Code)
	assert.Equal(t, missing.Body.String(), foreign.Body.String())
	assert.Equal(t, "secret not found", decodeError(t, foreign))
}

func TestRevealSecret_Unreadable(t *testing.T) {
	s := setupServer(t, true, nil)
	stored := s.storeDBRoot(t, "acme")

	require.NoError(t, s.docs.Merge(context.Background(), docrepo.Collection, stored.ID,
		map[string]any{"ciphertext": "00:00:00"}))

	rec := s.do(t, http.MethodPost, "/api/v1/tenants/acme/secrets/"+stored.ID+"/reveal", "")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "unable to decrypt secret", decodeError(t, rec))
}

func TestUpdateSecret(t *testing.T) {
	s := setupServer(t, true, nil)
	stored := s.storeDBRoot(t, "acme")

	rec := s.do(t, http.MethodPatch, "/api/v1/tenants/acme/secrets/"+stored.ID,
		`{"value":"n3w","category":"OTHER","linked_entity":{"entity_id":"asset-9","entity_type":"ASSET"}}`,
		httphandler.ActorHeader, "bob")
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	reveal := s.do(t, http.MethodPost, "/api/v1/tenants/acme/secrets/"+stored.ID+"/reveal", "")
	require.Equal(t, http.StatusOK, reveal.Code)
	assert.Contains(t, reveal.Body.String(), `"value":"n3w"`)

	list := s.do(t, http.MethodGet, "/api/v1/tenants/acme/secrets", "")
	var resp []httphandler.SecretResponse
	require.NoError(t, json.Unmarshal(list.Body.Bytes(), &resp))
	require.Len(t, resp, 1)
	assert.Equal(t, "OTHER", resp[0].Category)
	assert.Equal(t, "bob", resp[0].UpdatedBy)
	require.NotNil(t, resp[0].LinkedEntity)
	assert.Equal(t, "asset-9", resp[0].LinkedEntity.EntityID)
}

func TestUpdateSecret_OtherTenant(t *testing.T) {
	s := setupServer(t, true, nil)
	stored := s.storeDBRoot(t, "acme")

	rec := s.do(t, http.MethodPatch, "/api/v1/tenants/globex/secrets/"+stored.ID, `{"title":"mine now"}`)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteSecret(t *testing.T) {
	s := setupServer(t, true, nil)
	stored := s.storeDBRoot(t, "acme")

	foreign := s.do(t, http.MethodDelete, "/api/v1/tenants/globex/secrets/"+stored.ID, "")
	assert.Equal(t, http.StatusNotFound, foreign.Code)

	rec := s.do(t, http.MethodDelete, "/api/v1/tenants/acme/secrets/"+stored.ID, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	again := s.do(t, http.MethodPost, "/api/v1/tenants/acme/secrets/"+stored.ID+"/reveal", "")
	assert.Equal(t, http.StatusNotFound, again.Code)
}

func TestAuditTrail(t *testing.T) {
	s := setupServer(t, true, nil)
	stored := s.storeDBRoot(t, "acme")
	s.do(t, http.MethodPost, "/api/v1/tenants/acme/secrets/"+stored.ID+"/reveal", "", httphandler.ActorHeader, "carol")

	rec := s.do(t, http.MethodGet, "/api/v1/tenants/acme/audit?limit=1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp []httphandler.AuditEventResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp, 1)
	assert.Equal(t, "reveal", resp[0].Action)
	assert.Equal(t, "carol", resp[0].Actor)
	assert.True(t, resp[0].Success)
	assert.Equal(t, stored.ID, resp[0].SecretID)
}

func TestAuditTrail_InvalidLimit(t *testing.T) {
	s := setupServer(t, true, nil)

	rec := s.do(t, http.MethodGet, "/api/v1/tenants/acme/audit?limit=zero", "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealth(t *testing.T) {
	s := setupServer(t, false, &mockPinger{})

	rec := s.do(t, http.MethodGet, "/api/v1/health", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var resp httphandler.HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "list_only", resp.Vault)
	assert.NotEmpty(t, resp.Time)
}

func TestHealth_StoreUnavailable(t *testing.T) {
	s := setupServer(t, true, &mockPinger{err: errors.New("disk I/O error")})

	rec := s.do(t, http.MethodGet, "/api/v1/health", "")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var resp httphandler.HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "unavailable", resp.Status)
	assert.Equal(t, "ready", resp.Vault)
}

func TestMetricsEndpoint(t *testing.T) {
	s := setupServer(t, true, nil)
	s.do(t, http.MethodGet, "/api/v1/health", "")

	rec := s.do(t, http.MethodGet, "/metrics", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "vaultdesk_http_requests_total")
}

func TestLoggingNeverContainsSecretValue(t *testing.T) {
	s := setupServer(t, true, nil)
	stored := s.storeDBRoot(t, "acme")
	s.do(t, http.MethodPost, "/api/v1/tenants/acme/secrets/"+stored.ID+"/reveal", "")

	assert.Contains(t, s.logs.String(), "http request")
	assert.NotContains(t, s.logs.String(), "s3cr3t")
}
