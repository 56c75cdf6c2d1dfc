package httphandler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ericfisherdev/vaultdesk/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// LinkedEntityJSON is the wire form of a secret's optional link to an asset or user.
type LinkedEntityJSON struct {
	EntityID   string `json:"entity_id"`
	EntityType string `json:"entity_type"`
}

// SecretResponse is the JSON representation of a secret's metadata. It never
// carries the value or the ciphertext.
type SecretResponse struct {
	ID           string            `json:"id"`
	TenantID     string            `json:"tenant_id"`
	Title        string            `json:"title"`
	Category     string            `json:"category"`
	Notes        string            `json:"notes"`
	NotesHTML    string            `json:"notes_html"`
	LinkedEntity *LinkedEntityJSON `json:"linked_entity"`
	UpdatedBy    string            `json:"updated_by"`
	UpdatedAt    string            `json:"updated_at"`
}

// RevealResponse carries a decrypted secret value.
type RevealResponse struct {
	ID    string `json:"id"`
	Value string `json:"value"`
}

// AuditEventResponse is the JSON representation of an audit trail entry.
type AuditEventResponse struct {
	ID         string `json:"id"`
	SecretID   string `json:"secret_id"`
	Action     string `json:"action"`
	Actor      string `json:"actor"`
	Success    bool   `json:"success"`
	OccurredAt string `json:"occurred_at"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status string `json:"status"`
	Vault  string `json:"vault"`
	Time   string `json:"time"`
}

// StoreSecretRequest is the JSON body for the store secret endpoint.
type StoreSecretRequest struct {
	Title        string            `json:"title"`
	Category     string            `json:"category"`
	Value        string            `json:"value"`
	Notes        string            `json:"notes"`
	LinkedEntity *LinkedEntityJSON `json:"linked_entity"`
}

// UpdateSecretRequest is the JSON body for the update secret endpoint. Omitted
// fields are left unchanged.
type UpdateSecretRequest struct {
	Title             *string           `json:"title"`
	Category          *string           `json:"category"`
	Value             *string           `json:"value"`
	Notes             *string           `json:"notes"`
	LinkedEntity      *LinkedEntityJSON `json:"linked_entity"`
	ClearLinkedEntity bool              `json:"clear_linked_entity"`
}

// toSecretResponse converts a domain Secret to its JSON response representation.
func toSecretResponse(s model.Secret) SecretResponse {
	resp := SecretResponse{
		ID:        s.ID,
		TenantID:  s.TenantID,
		Title:     s.Title,
		Category:  string(s.Category),
		Notes:     s.Notes,
		NotesHTML: RenderNotes(s.Notes),
		UpdatedBy: s.UpdatedBy,
		UpdatedAt: s.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if s.LinkedEntity != nil {
		resp.LinkedEntity = &LinkedEntityJSON{
			EntityID:   s.LinkedEntity.EntityID,
			EntityType: string(s.LinkedEntity.EntityType),
		}
	}
	return resp
}

// toAuditEventResponse converts a domain AuditEvent to its JSON representation.
func toAuditEventResponse(e model.AuditEvent) AuditEventResponse {
	return AuditEventResponse{
		ID:         e.ID,
		SecretID:   e.SecretID,
		Action:     string(e.Action),
		Actor:      e.Actor,
		Success:    e.Success,
		OccurredAt: e.OccurredAt.UTC().Format(time.RFC3339Nano),
	}
}

func toLinkedEntity(le *LinkedEntityJSON) *model.LinkedEntity {
	if le == nil {
		return nil
	}
	return &model.LinkedEntity{
		EntityID:   le.EntityID,
		EntityType: model.EntityType(le.EntityType),
	}
}
