package shared

import (
	"fmt"
	"strconv"
	"strings"
)

// EntityType identifies the owner of ledger data.
type EntityType string

const (
	EntityAdmin  EntityType = "ADMIN"
	EntityVendor EntityType = "VENDOR"
)

// Valid reports whether the entity type is known.
func (t EntityType) Valid() bool {
	return t == EntityAdmin || t == EntityVendor
}

// Scope pins ledger records to the marketplace operator or one vendor.
type Scope struct {
	EntityType EntityType `json:"entityType"`
	EntityID   *int64     `json:"entityId,omitempty"`
}

// AdminScope returns the marketplace operator scope.
func AdminScope() Scope {
	return Scope{EntityType: EntityAdmin}
}

// VendorScope returns the scope for a single vendor.
func VendorScope(id int64) Scope {
	return Scope{EntityType: EntityVendor, EntityID: &id}
}

// Validate enforces entityId presence iff the scope is a vendor scope.
func (s Scope) Validate() error {
	switch s.EntityType {
	case EntityAdmin:
		if s.EntityID != nil {
			return NewValidationError("entityId", "must be empty for ADMIN")
		}
	case EntityVendor:
		if s.EntityID == nil || *s.EntityID <= 0 {
			return NewValidationError("entityId", "required for VENDOR")
		}
	case "":
		return NewValidationError("entityType", "required")
	default:
		return NewValidationError("entityType", fmt.Sprintf("unknown entity type %q", s.EntityType))
	}
	return nil
}

// Equal compares two scopes by value.
func (s Scope) Equal(other Scope) bool {
	if s.EntityType != other.EntityType {
		return false
	}
	if s.EntityID == nil || other.EntityID == nil {
		return s.EntityID == nil && other.EntityID == nil
	}
	return *s.EntityID == *other.EntityID
}

// String renders the scope for cache keys and logs.
func (s Scope) String() string {
	if s.EntityID == nil {
		return string(s.EntityType)
	}
	return string(s.EntityType) + ":" + strconv.FormatInt(*s.EntityID, 10)
}

// ParseScope reads entityType/entityId query values.
func ParseScope(entityType, entityID string) (Scope, error) {
	scope := Scope{EntityType: EntityType(strings.ToUpper(strings.TrimSpace(entityType)))}
	if raw := strings.TrimSpace(entityID); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return Scope{}, NewValidationError("entityId", "must be an integer")
		}
		scope.EntityID = &id
	}
	if err := scope.Validate(); err != nil {
		return Scope{}, err
	}
	return scope, nil
}
