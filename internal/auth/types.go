package auth

import (
	"errors"
	"fmt"
	"strings"
)

// Common errors returned by the authentication subsystem.
var (
	ErrDisabled         = errors.New("authentication disabled")
	ErrInvalidToken     = errors.New("invalid token")
	ErrMissingToken     = errors.New("missing bearer token")
	ErrPermissionDenied = errors.New("permission denied")
)

// Permissions understood by the HTTP API.
const (
	PermissionActionsRead    = "actions:read"
	PermissionActionsExecute = "actions:execute"
	PermissionWalletRead     = "wallet:read"
	PermissionJournalRead    = "journal:read"
)

// AllPermissions is granted to tokens that do not list any permissions.
var AllPermissions = []string{
	PermissionActionsRead,
	PermissionActionsExecute,
	PermissionWalletRead,
	PermissionJournalRead,
}

// Subject identifies the caller behind a bearer token and is passed to
// request handlers via context.
type Subject struct {
	Name        string
	Permissions []string

	permissionsSet map[string]struct{}
}

// normalise prepares the lookup set for permission checks.
func (s *Subject) normalise() {
	if s == nil {
		return
	}
	if s.permissionsSet == nil {
		s.permissionsSet = make(map[string]struct{}, len(s.Permissions))
		for _, perm := range s.Permissions {
			s.permissionsSet[strings.ToLower(strings.TrimSpace(perm))] = struct{}{}
		}
	}
}

// HasPermission reports whether the subject has the specified permission.
func (s *Subject) HasPermission(permission string) bool {
	if s == nil {
		return false
	}
	s.normalise()
	_, ok := s.permissionsSet[strings.ToLower(strings.TrimSpace(permission))]
	return ok
}

// Authorize ensures the subject has all required permissions.
func (s *Subject) Authorize(perms ...string) error {
	if s == nil {
		return ErrInvalidToken
	}
	for _, perm := range perms {
		if perm == "" {
			continue
		}
		if !s.HasPermission(perm) {
			return fmt.Errorf("%w: missing %s", ErrPermissionDenied, perm)
		}
	}
	return nil
}

// TokenConfig binds a static bearer token to a named caller.
type TokenConfig struct {
	Name        string   `json:"name"`
	Token       string   `json:"token"`
	Permissions []string `json:"permissions,omitempty"`
}

// Config configures the authentication service. No tokens means the API is
// open.
type Config struct {
	Tokens []TokenConfig `json:"tokens,omitempty"`
}
