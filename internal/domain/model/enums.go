package model

import "fmt"

// Category classifies what kind of credential a secret holds.
type Category string

const (
	CategoryPassword Category = "PASSWORD"
	CategorySSHKey   Category = "SSH_KEY"
	CategoryAPIToken Category = "API_TOKEN"
	CategoryOther    Category = "OTHER"
)

// ParseCategory converts a raw value into a Category, rejecting anything
// outside the closed set.
func ParseCategory(s string) (Category, error) {
	switch c := Category(s); c {
	case CategoryPassword, CategorySSHKey, CategoryAPIToken, CategoryOther:
		return c, nil
	default:
		return "", fmt.Errorf("unknown secret category %q", s)
	}
}

// EntityType identifies the kind of record a secret is linked to.
type EntityType string

const (
	EntityTypeAsset EntityType = "ASSET"
	EntityTypeUser  EntityType = "USER"
)

// ParseEntityType converts a raw value into an EntityType, rejecting unknown values.
func ParseEntityType(s string) (EntityType, error) {
	switch e := EntityType(s); e {
	case EntityTypeAsset, EntityTypeUser:
		return e, nil
	default:
		return "", fmt.Errorf("unknown linked entity type %q", s)
	}
}

// AuditAction names an operation recorded in the audit trail.
type AuditAction string

const (
	AuditActionStore  AuditAction = "store"
	AuditActionUpdate AuditAction = "update"
	AuditActionReveal AuditAction = "reveal"
	AuditActionDelete AuditAction = "delete"
)
