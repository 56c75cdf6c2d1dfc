// Package docrepo implements the SecretStore port on top of a generic
// DocumentStore, enforcing tenant ownership on every access path.
package docrepo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/ericfisherdev/vaultdesk/internal/domain/model"
	"github.com/ericfisherdev/vaultdesk/internal/domain/port/driven"
	"github.com/ericfisherdev/vaultdesk/internal/metrics"
)

// Collection is the document collection secrets are stored in.
const Collection = "vault"

// Compile-time interface satisfaction check.
var _ driven.SecretStore = (*SecretRepo)(nil)

// SecretRepo persists secrets as documents. It stores ciphertext verbatim and
// never handles plaintext.
type SecretRepo struct {
	docs    driven.DocumentStore
	now     func() time.Time
	newID   func() string
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures a SecretRepo.
type Option func(*SecretRepo)

// WithClock overrides the time source used for UpdatedAt.
func WithClock(now func() time.Time) Option {
	return func(r *SecretRepo) { r.now = now }
}

// WithIDGenerator overrides how new secret IDs are assigned.
func WithIDGenerator(newID func() string) Option {
	return func(r *SecretRepo) { r.newID = newID }
}

// WithLogger sets the logger used to report skipped records.
func WithLogger(logger *slog.Logger) Option {
	return func(r *SecretRepo) { r.logger = logger }
}

// WithMetrics counts skipped records in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *SecretRepo) { r.metrics = m }
}

// NewSecretRepo creates a SecretRepo over docs.
func NewSecretRepo(docs driven.DocumentStore, opts ...Option) *SecretRepo {
	r := &SecretRepo{
		docs:   docs,
		now:    time.Now,
		newID:  uuid.NewString,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ListByTenant returns the tenant's secrets ordered by title, then ID. A
// record that cannot be decoded is reported and skipped; the rest of the
// tenant's secrets are still returned.
func (r *SecretRepo) ListByTenant(ctx context.Context, tenantID string) ([]model.Secret, error) {
	if tenantID == "" {
		return []model.Secret{}, nil
	}

	docs, err := r.docs.QueryByField(ctx, Collection, fieldTenantID, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list secrets: %w", err)
	}

	secrets := make([]model.Secret, 0, len(docs))
	for _, doc := range docs {
		// The store filtered already; re-check so a misbehaving adapter cannot leak records.
		if tenantOf(doc.Fields) != tenantID {
			continue
		}
		s, err := fromFields(doc.ID, doc.Fields)
		if err != nil {
			r.metrics.IncCorruptRecord()
			r.logger.Warn("skipping unreadable secret record",
				"tenant_id", tenantID,
				"secret_id", doc.ID,
				"error", err,
			)
			continue
		}
		secrets = append(secrets, s)
	}

	sort.SliceStable(secrets, func(i, j int) bool {
		if secrets[i].Title != secrets[j].Title {
			return secrets[i].Title < secrets[j].Title
		}
		return secrets[i].ID < secrets[j].ID
	})

	return secrets, nil
}

// GetByID returns the secret if it exists and belongs to tenantID. A record
// owned by another tenant is reported exactly like a missing one.
func (r *SecretRepo) GetByID(ctx context.Context, tenantID, id string) (*model.Secret, error) {
	doc, err := r.ownedDocument(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	s, err := fromFields(doc.ID, doc.Fields)
	if err != nil {
		return nil, fmt.Errorf("decode secret %q: %w", id, err)
	}
	return &s, nil
}

// ownedDocument fetches the raw document and checks ownership before any
// decoding, so a corrupt foreign record is still reported as not found and a
// corrupt owned record can still be updated or deleted.
func (r *SecretRepo) ownedDocument(ctx context.Context, tenantID, id string) (driven.Document, error) {
	if tenantID == "" || id == "" {
		return driven.Document{}, driven.ErrNotFoundOrForbidden
	}

	doc, err := r.docs.Get(ctx, Collection, id)
	if errors.Is(err, driven.ErrDocumentNotFound) {
		return driven.Document{}, driven.ErrNotFoundOrForbidden
	}
	if err != nil {
		return driven.Document{}, fmt.Errorf("get secret: %w", err)
	}

	if tenantOf(doc.Fields) != tenantID {
		return driven.Document{}, driven.ErrNotFoundOrForbidden
	}
	return doc, nil
}

// Create assigns an ID and UpdatedAt and stores the secret.
func (r *SecretRepo) Create(ctx context.Context, in model.NewSecret) (model.Secret, error) {
	if in.TenantID == "" {
		return model.Secret{}, errors.New("create secret: empty tenant id")
	}
	if in.Ciphertext == "" {
		return model.Secret{}, errors.New("create secret: empty ciphertext")
	}

	s := model.Secret{
		ID:           r.newID(),
		TenantID:     in.TenantID,
		Title:        in.Title,
		Category:     in.Category,
		Ciphertext:   in.Ciphertext,
		Notes:        in.Notes,
		LinkedEntity: in.LinkedEntity,
		UpdatedBy:    in.UpdatedBy,
		UpdatedAt:    r.now().UTC(),
	}

	if err := r.docs.Put(ctx, Collection, driven.Document{ID: s.ID, Fields: toFields(s)}); err != nil {
		return model.Secret{}, fmt.Errorf("create secret: %w", err)
	}
	return s, nil
}

// Update verifies ownership and then applies patch atomically at the document level.
// Concurrent updates to the same secret are last-write-wins.
func (r *SecretRepo) Update(ctx context.Context, tenantID, id string, patch model.SecretPatch) error {
	if patch.Ciphertext != nil && *patch.Ciphertext == "" {
		return errors.New("update secret: empty ciphertext")
	}

	if _, err := r.ownedDocument(ctx, tenantID, id); err != nil {
		return err
	}

	err := r.docs.Merge(ctx, Collection, id, patchFields(patch, r.now()))
	if errors.Is(err, driven.ErrDocumentNotFound) {
		return driven.ErrNotFoundOrForbidden
	}
	if err != nil {
		return fmt.Errorf("update secret: %w", err)
	}
	return nil
}

// Delete verifies ownership and permanently removes the secret.
func (r *SecretRepo) Delete(ctx context.Context, tenantID, id string) error {
	if _, err := r.ownedDocument(ctx, tenantID, id); err != nil {
		return err
	}

	err := r.docs.Delete(ctx, Collection, id)
	if errors.Is(err, driven.ErrDocumentNotFound) {
		return driven.ErrNotFoundOrForbidden
	}
	if err != nil {
		return fmt.Errorf("delete secret: %w", err)
	}
	return nil
}
