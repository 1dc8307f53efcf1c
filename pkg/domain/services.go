package domain

import (
	"context"
)

// EncryptionService encrypts and decrypts opaque secret blobs. It has no
// knowledge of connectors; every encrypted field in this package is an
// envelope it produced.
type EncryptionService interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(envelope string) (string, error)
	EncryptCredentials(credentials any) (string, error)
	DecryptCredentials(envelope string, out any) error
}

// AuthorizationRequest is the outcome of starting an OAuth round-trip. The
// caller redirects the user to URL and later presents State back together
// with the provider's authorization code.
type AuthorizationRequest struct {
	URL   string `json:"url"`
	State string `json:"state"`
}

// ConnectionManager drives the personal OAuth lifecycle and the shared
// credential lifecycle, persisting only encrypted material.
type ConnectionManager interface {
	StartAuthorization(ctx context.Context, userID string, key ConnectorKey, redirectURI string) (AuthorizationRequest, error)
	CompleteAuthorization(ctx context.Context, code string, state string) (PersonalConnection, error)
	// GetAuthorizedToken returns the live access token for a connection,
	// refreshing it first when it is expired or about to expire. A failed
	// refresh invalidates the connection.
	GetAuthorizedToken(ctx context.Context, userID string, key ConnectorKey) (string, error)
	RevokeConnection(ctx context.Context, userID string, key ConnectorKey) error

	ConfigureSharedConnection(ctx context.Context, projectID string, key ConnectorKey, credential string) (SharedConnection, error)
	GetSharedCredential(ctx context.Context, projectID string, key ConnectorKey) (string, error)
	RemoveSharedConnection(ctx context.Context, projectID string, key ConnectorKey) error
}

// ResourceGateway is the provider-agnostic query surface. ScopeID is a user
// ID for personal connectors and a project ID for shared ones.
type ResourceGateway interface {
	QueryPersonalResources(ctx context.Context, userID string, key ConnectorKey, query ResourceQuery) (ResourcePage, error)
	QuerySharedResources(ctx context.Context, projectID string, key ConnectorKey, query ResourceQuery) (ResourcePage, error)
}
