// Package application holds the vault use cases that sit between the driving
// adapters and the driven ports.
package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/awnumar/memguard"
	"github.com/google/uuid"

	"github.com/ericfisherdev/vaultdesk/internal/domain/model"
	"github.com/ericfisherdev/vaultdesk/internal/domain/port/driven"
	"github.com/ericfisherdev/vaultdesk/internal/envelope"
	"github.com/ericfisherdev/vaultdesk/internal/metrics"
)

// SystemActor is recorded as the actor when the caller does not identify itself.
const SystemActor = "SYSTEM"

// Field limits enforced on non-secret metadata.
const (
	MaxTitleLength = 200
	MaxNotesLength = 2000
)

var (
	// ErrVaultNotConfigured is returned by operations that need the encryption
	// key when none was provided at startup. It matches envelope.ErrInvalidKey.
	ErrVaultNotConfigured = fmt.Errorf("vault not configured: %w", envelope.ErrInvalidKey)

	// ErrUnreadable is returned when a stored envelope cannot be decrypted,
	// whether it is malformed or fails authentication.
	ErrUnreadable = errors.New("unable to decrypt secret")

	// ErrInvalidInput is returned when caller-supplied metadata or values fail validation.
	ErrInvalidInput = errors.New("invalid input")
)

// SecretInput describes a secret to be stored. The value itself is passed
// separately to StoreSecret.
type SecretInput struct {
	TenantID     string
	Title        string
	Category     model.Category
	Notes        string
	LinkedEntity *model.LinkedEntity
	Actor        string
}

// SecretUpdate lists the fields to change on an existing secret. Nil fields
// are left untouched. A non-nil Value is re-encrypted with a fresh nonce.
type SecretUpdate struct {
	Title             *string
	Category          *model.Category
	Value             *string
	Notes             *string
	LinkedEntity      *model.LinkedEntity
	ClearLinkedEntity bool
}

// VaultService is the only component that handles secret plaintext. It
// encrypts values before they reach the SecretStore and decrypts them only on
// an explicit, audited reveal.
type VaultService struct {
	store   driven.SecretStore
	audit   driven.AuditStore
	key     *memguard.Enclave
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewVaultService creates a VaultService. The key is copied into a memguard
// enclave; the caller's slice is left untouched. A nil or empty key puts the
// vault in list-only mode where store, reveal, and value updates fail with
// ErrVaultNotConfigured. audit and m may be nil.
func NewVaultService(
	store driven.SecretStore,
	audit driven.AuditStore,
	key []byte,
	logger *slog.Logger,
	m *metrics.Metrics,
) *VaultService {
	if logger == nil {
		logger = slog.Default()
	}

	s := &VaultService{
		store:   store,
		audit:   audit,
		logger:  logger,
		metrics: m,
	}

	switch {
	case len(key) == 0:
		logger.Warn("no encryption key configured, vault is list-only")
	case len(key) != envelope.KeySize:
		logger.Warn("encryption key has wrong length, vault is list-only", "length", len(key))
	default:
		// NewEnclave wipes its source, so hand it a copy.
		keyCopy := make([]byte, len(key))
		copy(keyCopy, key)
		s.key = memguard.NewEnclave(keyCopy)
	}

	return s
}

// Configured reports whether an encryption key is available.
func (s *VaultService) Configured() bool {
	return s.key != nil
}

// StoreSecret encrypts plaintext and persists it with the given metadata.
func (s *VaultService) StoreSecret(ctx context.Context, in SecretInput, plaintext string) (_ model.Secret, err error) {
	start := time.Now()
	defer func() { s.metrics.ObserveOperation("store", outcomeOf(err), start) }()

	if s.key == nil {
		return model.Secret{}, ErrVaultNotConfigured
	}

	if in.TenantID == "" {
		return model.Secret{}, fmt.Errorf("%w: tenant id is required", ErrInvalidInput)
	}
	title, err := validateTitle(in.Title)
	if err != nil {
		return model.Secret{}, err
	}
	if _, err := model.ParseCategory(string(in.Category)); err != nil {
		return model.Secret{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err := validateNotes(in.Notes); err != nil {
		return model.Secret{}, err
	}
	if err := validateLinkedEntity(in.LinkedEntity); err != nil {
		return model.Secret{}, err
	}
	if plaintext == "" {
		return model.Secret{}, fmt.Errorf("%w: secret value is required", ErrInvalidInput)
	}

	ciphertext, err := s.encrypt(plaintext)
	if err != nil {
		return model.Secret{}, err
	}

	actor := actorOrSystem(in.Actor)
	secret, err := s.store.Create(ctx, model.NewSecret{
		TenantID:     in.TenantID,
		Title:        title,
		Category:     in.Category,
		Ciphertext:   ciphertext,
		Notes:        in.Notes,
		LinkedEntity: in.LinkedEntity,
		UpdatedBy:    actor,
	})
	if err != nil {
		return model.Secret{}, fmt.Errorf("store secret: %w", err)
	}

	s.record(ctx, in.TenantID, secret.ID, model.AuditActionStore, actor, true)
	s.logger.Info("secret stored",
		"tenant_id", in.TenantID,
		"secret_id", secret.ID,
		"category", string(secret.Category),
		"actor", actor,
	)

	return secret, nil
}

// RevealSecret decrypts and returns the value of a secret owned by tenantID.
// Every attempt, successful or not, is written to the audit trail.
func (s *VaultService) RevealSecret(ctx context.Context, tenantID, id, actor string) (_ string, err error) {
	start := time.Now()
	actor = actorOrSystem(actor)
	defer func() {
		s.metrics.ObserveOperation("reveal", outcomeOf(err), start)
		s.record(ctx, tenantID, id, model.AuditActionReveal, actor, err == nil)
	}()

	if s.key == nil {
		return "", ErrVaultNotConfigured
	}

	secret, err := s.store.GetByID(ctx, tenantID, id)
	if err != nil {
		if errors.Is(err, driven.ErrNotFoundOrForbidden) {
			s.logger.Warn("reveal denied", "tenant_id", tenantID, "secret_id", id, "actor", actor)
			return "", err
		}
		return "", fmt.Errorf("reveal secret: %w", err)
	}

	plaintext, err := s.decrypt(secret.Ciphertext)
	if err != nil {
		s.logger.Error("secret could not be decrypted",
			"tenant_id", tenantID,
			"secret_id", id,
			"error", err,
		)
		return "", err
	}

	s.logger.Info("secret revealed", "tenant_id", tenantID, "secret_id", id, "actor", actor)
	return plaintext, nil
}

// UpdateSecret changes metadata and optionally the value of a secret owned by
// tenantID. There is no version check: concurrent updates are last-write-wins.
// Attempts that reach the store are audited whether or not they succeed.
func (s *VaultService) UpdateSecret(ctx context.Context, tenantID, id string, upd SecretUpdate, actor string) (err error) {
	start := time.Now()
	actor = actorOrSystem(actor)
	defer func() { s.metrics.ObserveOperation("update", outcomeOf(err), start) }()

	patch := model.SecretPatch{
		Category:          upd.Category,
		Notes:             upd.Notes,
		LinkedEntity:      upd.LinkedEntity,
		ClearLinkedEntity: upd.ClearLinkedEntity,
		UpdatedBy:         actor,
	}

	if upd.Title == nil && upd.Category == nil && upd.Value == nil && upd.Notes == nil &&
		upd.LinkedEntity == nil && !upd.ClearLinkedEntity {
		return fmt.Errorf("%w: nothing to update", ErrInvalidInput)
	}
	if upd.Title != nil {
		title, err := validateTitle(*upd.Title)
		if err != nil {
			return err
		}
		patch.Title = &title
	}
	if upd.Category != nil {
		if _, err := model.ParseCategory(string(*upd.Category)); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
	}
	if upd.Notes != nil {
		if err := validateNotes(*upd.Notes); err != nil {
			return err
		}
	}
	if upd.LinkedEntity != nil && upd.ClearLinkedEntity {
		return fmt.Errorf("%w: cannot both set and clear the linked entity", ErrInvalidInput)
	}
	if err := validateLinkedEntity(upd.LinkedEntity); err != nil {
		return err
	}

	if upd.Value != nil {
		if s.key == nil {
			return ErrVaultNotConfigured
		}
		if *upd.Value == "" {
			return fmt.Errorf("%w: secret value is required", ErrInvalidInput)
		}
		ciphertext, err := s.encrypt(*upd.Value)
		if err != nil {
			return err
		}
		patch.Ciphertext = &ciphertext
	}

	if err := s.store.Update(ctx, tenantID, id, patch); err != nil {
		s.record(ctx, tenantID, id, model.AuditActionUpdate, actor, false)
		if errors.Is(err, driven.ErrNotFoundOrForbidden) {
			s.logger.Warn("update denied", "tenant_id", tenantID, "secret_id", id, "actor", actor)
			return err
		}
		return fmt.Errorf("update secret: %w", err)
	}

	s.record(ctx, tenantID, id, model.AuditActionUpdate, actor, true)
	s.logger.Info("secret updated",
		"tenant_id", tenantID,
		"secret_id", id,
		"value_changed", upd.Value != nil,
		"actor", actor,
	)
	return nil
}

// DeleteSecret permanently removes a secret owned by tenantID. Failed attempts
// are audited with Success=false.
func (s *VaultService) DeleteSecret(ctx context.Context, tenantID, id, actor string) (err error) {
	start := time.Now()
	actor = actorOrSystem(actor)
	defer func() { s.metrics.ObserveOperation("delete", outcomeOf(err), start) }()

	if err := s.store.Delete(ctx, tenantID, id); err != nil {
		s.record(ctx, tenantID, id, model.AuditActionDelete, actor, false)
		if errors.Is(err, driven.ErrNotFoundOrForbidden) {
			s.logger.Warn("delete denied", "tenant_id", tenantID, "secret_id", id, "actor", actor)
			return err
		}
		return fmt.Errorf("delete secret: %w", err)
	}

	s.record(ctx, tenantID, id, model.AuditActionDelete, actor, true)
	s.logger.Info("secret deleted", "tenant_id", tenantID, "secret_id", id, "actor", actor)
	return nil
}

// ListSecrets returns the tenant's secrets without decrypting anything. It
// works whether or not a key is configured.
func (s *VaultService) ListSecrets(ctx context.Context, tenantID string) (_ []model.Secret, err error) {
	start := time.Now()
	defer func() { s.metrics.ObserveOperation("list", outcomeOf(err), start) }()

	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenant id is required", ErrInvalidInput)
	}

	secrets, err := s.store.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list secrets: %w", err)
	}
	return secrets, nil
}

// AuditTrail returns the tenant's most recent audit events, newest first.
func (s *VaultService) AuditTrail(ctx context.Context, tenantID string, limit int) ([]model.AuditEvent, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenant id is required", ErrInvalidInput)
	}
	if s.audit == nil {
		return []model.AuditEvent{}, nil
	}

	events, err := s.audit.ListByTenant(ctx, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	return events, nil
}

// encrypt seals plaintext with the enclave key. The temporary byte copy of
// the plaintext is wiped before returning.
func (s *VaultService) encrypt(plaintext string) (string, error) {
	key, err := s.key.Open()
	if err != nil {
		return "", fmt.Errorf("open key enclave: %w", err)
	}
	defer key.Destroy()

	buf := []byte(plaintext)
	defer memguard.WipeBytes(buf)

	ciphertext, err := envelope.Encrypt(buf, key.Bytes())
	if err != nil {
		return "", fmt.Errorf("encrypt secret: %w", err)
	}
	return ciphertext, nil
}

// decrypt opens a stored envelope. Malformed and unauthenticated envelopes
// both surface as ErrUnreadable; there is no retry and no fallback.
func (s *VaultService) decrypt(ciphertext string) (string, error) {
	key, err := s.key.Open()
	if err != nil {
		return "", fmt.Errorf("open key enclave: %w", err)
	}
	defer key.Destroy()

	buf, err := envelope.Decrypt(ciphertext, key.Bytes())
	if err != nil {
		if errors.Is(err, envelope.ErrMalformedEnvelope) || errors.Is(err, envelope.ErrAuthentication) {
			return "", fmt.Errorf("%w: %w", ErrUnreadable, err)
		}
		return "", fmt.Errorf("decrypt secret: %w", err)
	}
	defer memguard.WipeBytes(buf)

	return string(buf), nil
}

// record writes an audit event. Failures are logged and counted but never
// change the outcome of the audited operation. The write ignores ctx
// cancellation so a reveal is still recorded after the caller goes away.
func (s *VaultService) record(ctx context.Context, tenantID, secretID string, action model.AuditAction, actor string, success bool) {
	if s.audit == nil {
		return
	}

	event := model.AuditEvent{
		ID:         uuid.NewString(),
		TenantID:   tenantID,
		SecretID:   secretID,
		Action:     action,
		Actor:      actor,
		Success:    success,
		OccurredAt: time.Now().UTC(),
	}
	if err := s.audit.Record(context.WithoutCancel(ctx), event); err != nil {
		s.metrics.IncAuditFailure(string(action))
		s.logger.Error("failed to record audit event",
			"tenant_id", tenantID,
			"secret_id", secretID,
			"action", string(action),
			"error", err,
		)
	}
}

func actorOrSystem(actor string) string {
	if actor = strings.TrimSpace(actor); actor == "" {
		return SystemActor
	}
	return actor
}

func validateTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return "", fmt.Errorf("%w: title exceeds %d characters", ErrInvalidInput, MaxTitleLength)
	}
	return title, nil
}

func validateNotes(notes string) error {
	if utf8.RuneCountInString(notes) > MaxNotesLength {
		return fmt.Errorf("%w: notes exceed %d characters", ErrInvalidInput, MaxNotesLength)
	}
	return nil
}

func validateLinkedEntity(le *model.LinkedEntity) error {
	if le == nil {
		return nil
	}
	if strings.TrimSpace(le.EntityID) == "" {
		return fmt.Errorf("%w: linked entity id is required", ErrInvalidInput)
	}
	if _, err := model.ParseEntityType(string(le.EntityType)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return nil
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case errors.Is(err, driven.ErrNotFoundOrForbidden):
		return metrics.OutcomeNotFound
	case errors.Is(err, ErrInvalidInput):
		return metrics.OutcomeInvalidInput
	case errors.Is(err, envelope.ErrInvalidKey):
		return metrics.OutcomeNoKey
	case errors.Is(err, ErrUnreadable):
		return metrics.OutcomeUnreadable
	default:
		return metrics.OutcomeError
	}
}
