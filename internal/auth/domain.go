// Package auth authenticates API clients by bearer key.
package auth

import (
	"fmt"
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// ErrInvalidCredentials is returned for unknown, inactive or mismatched keys.
var ErrInvalidCredentials = fmt.Errorf("%w: invalid credentials", shared.ErrUnauthorized)

// Client is an API client allowed to call the ledger.
type Client struct {
	ID          int64
	Name        string
	KeyID       string
	SecretHash  string
	Scope       shared.Scope
	Permissions []string
	IsActive    bool
	LastUsedAt  *time.Time
	CreatedAt   time.Time
}

// Actor converts the client into the request actor.
func (c Client) Actor() *shared.Actor {
	return &shared.Actor{ID: c.ID, Name: c.Name, Scope: c.Scope, Permissions: c.Permissions}
}

// CreateClientInput registers a new API client.
type CreateClientInput struct {
	Name        string
	Scope       shared.Scope
	Permissions []string
}

// Validate checks name, scope and permission names.
func (in CreateClientInput) Validate() error {
	verr := &shared.ValidationError{}
	if shared.NormalizeText(in.Name) == "" {
		verr.Add("name", "required")
	}
	verr.Merge("entityType", in.Scope.Validate())
	known := make(map[string]struct{})
	for _, p := range shared.LedgerScopes() {
		known[p] = struct{}{}
	}
	for _, p := range in.Permissions {
		if _, ok := known[p]; !ok {
			verr.Add("permissions", fmt.Sprintf("unknown permission %q", p))
		}
	}
	return verr.Err()
}
