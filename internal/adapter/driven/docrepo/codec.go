package docrepo

import (
	"errors"
	"fmt"
	"time"

	"github.com/ericfisherdev/vaultdesk/internal/domain/model"
)

// ErrCorruptRecord is returned when a stored document does not decode into a
// valid Secret, for example when it carries an unknown category.
var ErrCorruptRecord = errors.New("corrupt secret record")

// Document field names. These are the persisted contract and must not change
// without a data migration.
const (
	fieldTenantID     = "tenantId"
	fieldTitle        = "title"
	fieldCategory     = "category"
	fieldCiphertext   = "ciphertext"
	fieldNotes        = "notes"
	fieldLinkedEntity = "linkedEntity"
	fieldEntityID     = "entityId"
	fieldEntityType   = "entityType"
	fieldUpdatedBy    = "updatedBy"
	fieldUpdatedAt    = "updatedAt"
)

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// toFields encodes a secret into its document representation. The ID is the
// document key and is not duplicated into the fields.
func toFields(s model.Secret) map[string]any {
	fields := map[string]any{
		fieldTenantID:   s.TenantID,
		fieldTitle:      s.Title,
		fieldCategory:   string(s.Category),
		fieldCiphertext: s.Ciphertext,
		fieldUpdatedBy:  s.UpdatedBy,
		fieldUpdatedAt:  formatTime(s.UpdatedAt),
	}
	if s.Notes != "" {
		fields[fieldNotes] = s.Notes
	}
	if s.LinkedEntity != nil {
		fields[fieldLinkedEntity] = linkedEntityFields(*s.LinkedEntity)
	}
	return fields
}

func linkedEntityFields(le model.LinkedEntity) map[string]any {
	return map[string]any{
		fieldEntityID:   le.EntityID,
		fieldEntityType: string(le.EntityType),
	}
}

// patchFields encodes a SecretPatch as a merge patch. updatedBy and updatedAt
// are always written.
func patchFields(p model.SecretPatch, now time.Time) map[string]any {
	fields := map[string]any{
		fieldUpdatedBy: p.UpdatedBy,
		fieldUpdatedAt: formatTime(now),
	}
	if p.Title != nil {
		fields[fieldTitle] = *p.Title
	}
	if p.Category != nil {
		fields[fieldCategory] = string(*p.Category)
	}
	if p.Ciphertext != nil {
		fields[fieldCiphertext] = *p.Ciphertext
	}
	if p.Notes != nil {
		if *p.Notes == "" {
			fields[fieldNotes] = nil
		} else {
			fields[fieldNotes] = *p.Notes
		}
	}
	switch {
	case p.ClearLinkedEntity:
		fields[fieldLinkedEntity] = nil
	case p.LinkedEntity != nil:
		fields[fieldLinkedEntity] = linkedEntityFields(*p.LinkedEntity)
	}
	return fields
}

// tenantOf returns the owning tenant recorded in the fields, or "" when absent or not a string.
func tenantOf(fields map[string]any) string {
	v, _ := fields[fieldTenantID].(string)
	return v
}

// fromFields decodes a document into a Secret, rejecting unknown enum values
// and missing required fields.
func fromFields(id string, fields map[string]any) (model.Secret, error) {
	s := model.Secret{ID: id}

	var err error
	if s.TenantID, err = requiredString(fields, fieldTenantID); err != nil {
		return model.Secret{}, err
	}
	if s.Title, err = requiredString(fields, fieldTitle); err != nil {
		return model.Secret{}, err
	}
	if s.Ciphertext, err = requiredString(fields, fieldCiphertext); err != nil {
		return model.Secret{}, err
	}

	rawCategory, err := requiredString(fields, fieldCategory)
	if err != nil {
		return model.Secret{}, err
	}
	if s.Category, err = model.ParseCategory(rawCategory); err != nil {
		return model.Secret{}, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}

	if s.Notes, err = optionalString(fields, fieldNotes); err != nil {
		return model.Secret{}, err
	}
	if s.UpdatedBy, err = optionalString(fields, fieldUpdatedBy); err != nil {
		return model.Secret{}, err
	}

	rawUpdatedAt, err := requiredString(fields, fieldUpdatedAt)
	if err != nil {
		return model.Secret{}, err
	}
	if s.UpdatedAt, err = time.Parse(time.RFC3339Nano, rawUpdatedAt); err != nil {
		return model.Secret{}, fmt.Errorf("%w: %s is not a timestamp", ErrCorruptRecord, fieldUpdatedAt)
	}

	if raw, ok := fields[fieldLinkedEntity]; ok && raw != nil {
		m, ok := raw.(map[string]any)
		if !ok {
			return model.Secret{}, fmt.Errorf("%w: %s is not an object", ErrCorruptRecord, fieldLinkedEntity)
		}
		entityID, err := requiredString(m, fieldEntityID)
		if err != nil {
			return model.Secret{}, err
		}
		rawType, err := requiredString(m, fieldEntityType)
		if err != nil {
			return model.Secret{}, err
		}
		entityType, err := model.ParseEntityType(rawType)
		if err != nil {
			return model.Secret{}, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
		}
		s.LinkedEntity = &model.LinkedEntity{EntityID: entityID, EntityType: entityType}
	}

	return s, nil
}

func requiredString(fields map[string]any, key string) (string, error) {
	v, err := optionalString(fields, key)
	if err != nil {
		return "", err
	}
	if v == "" {
		return "", fmt.Errorf("%w: missing %s", ErrCorruptRecord, key)
	}
	return v, nil
}

func optionalString(fields map[string]any, key string) (string, error) {
	raw, ok := fields[key]
	if !ok || raw == nil {
		return "", nil
	}
	v, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s is %T, want string", ErrCorruptRecord, key, raw)
	}
	return v, nil
}
