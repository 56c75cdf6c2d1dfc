// Package driven defines secondary port interfaces for external adapters.
package driven

import (
	"context"
	"errors"

	"github.com/ericfisherdev/vaultdesk/internal/domain/model"
)

// ErrNotFoundOrForbidden is returned when a secret does not exist or belongs
// to another tenant. The two cases are deliberately indistinguishable.
var ErrNotFoundOrForbidden = errors.New("secret not found")

// SecretStore defines the driven port for tenant-scoped secret persistence.
// Implementations store Ciphertext verbatim and never see plaintext values.
// Every method taking a tenantID enforces ownership before reading or writing.
type SecretStore interface {
	// ListByTenant returns all secrets owned by tenantID with Ciphertext left opaque.
	ListByTenant(ctx context.Context, tenantID string) ([]model.Secret, error)

	// GetByID returns the secret when it exists and is owned by tenantID.
	// Returns ErrNotFoundOrForbidden otherwise.
	GetByID(ctx context.Context, tenantID, id string) (*model.Secret, error)

	// Create assigns ID and UpdatedAt and persists the secret.
	Create(ctx context.Context, secret model.NewSecret) (model.Secret, error)

	// Update applies patch after the same ownership check as GetByID.
	Update(ctx context.Context, tenantID, id string, patch model.SecretPatch) error

	// Delete permanently removes the secret after an ownership check.
	Delete(ctx context.Context, tenantID, id string) error
}
