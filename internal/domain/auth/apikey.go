// Package auth holds API key identities for the internal endpoints called by
// the order-finalization collaborator.
package auth

import "context"

// APIKeyInfo is the identity and permission data for a validated key.
type APIKeyInfo struct {
	ID      string
	KeyHash string
	Name    string
	Scopes  []string
}

// Repository provides lookup of active API keys by their HMAC-SHA256 hash.
type Repository interface {
	FindByHash(ctx context.Context, hash string) (*APIKeyInfo, error)
}
