package domain

import (
	"context"
	"time"
)

// PersonalConnection is one user's authorization with one personal
// connector. EncryptedToken is the base64 envelope produced by the
// encryption service; at most one connection exists per (user, connector)
// pair and a re-authorization overwrites the previous one.
type PersonalConnection struct {
	ID             string       `json:"id"`
	UserID         string       `json:"user_id"`
	ConnectorKey   ConnectorKey `json:"connector_key"`
	EncryptedToken string       `json:"encrypted_token"`
	ExpiresAt      time.Time    `json:"expires_at"`
	Scope          string       `json:"scope,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// SharedConnection is one project's service credential for a shared
// connector. Rotation is delete-and-recreate; there is no refresh cycle.
type SharedConnection struct {
	ID                  string       `json:"id"`
	ProjectID           string       `json:"project_id"`
	ConnectorKey        ConnectorKey `json:"connector_key"`
	EncryptedCredential string       `json:"encrypted_credential"`
	CreatedAt           time.Time    `json:"created_at"`
	UpdatedAt           time.Time    `json:"updated_at"`
}

// PendingAuthorization tracks an in-flight OAuth round-trip. It is keyed by
// the CSRF state token and expires shortly after creation.
type PendingAuthorization struct {
	State        string       `json:"state"`
	UserID       string       `json:"user_id"`
	ConnectorKey ConnectorKey `json:"connector_key"`
	RedirectURI  string       `json:"redirect_uri"`
	CreatedAt    time.Time    `json:"created_at"`
}

// ConnectionStore persists connection records addressed by composite key.
// Put is a full-record replace; partial updates do not exist at this
// boundary, which is what makes racing refreshes safe (last write wins).
type ConnectionStore interface {
	GetPersonalConnection(ctx context.Context, userID string, key ConnectorKey) (PersonalConnection, error)
	PutPersonalConnection(ctx context.Context, conn PersonalConnection) error
	DeletePersonalConnection(ctx context.Context, userID string, key ConnectorKey) error

	GetSharedConnection(ctx context.Context, projectID string, key ConnectorKey) (SharedConnection, error)
	PutSharedConnection(ctx context.Context, conn SharedConnection) error
	DeleteSharedConnection(ctx context.Context, projectID string, key ConnectorKey) error

	PutPendingAuthorization(ctx context.Context, auth PendingAuthorization, ttl time.Duration) error
	// TakePendingAuthorization retrieves and deletes the record in one
	// operation so a state token cannot be replayed.
	TakePendingAuthorization(ctx context.Context, state string) (PendingAuthorization, error)
}
