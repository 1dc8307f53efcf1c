package domain

import (
	"errors"
	"fmt"
)

var (
	ErrConnectorNotFound  = errors.New("connector not found")
	ErrDuplicateConnector = errors.New("connector already registered")
	ErrConnectionNotFound = errors.New("connection not found")
	ErrNotAuthorized      = errors.New("connection is not authorized")
	ErrInvalidState       = errors.New("invalid or expired authorization state")

	ErrEncryptionFailed = errors.New("encryption failed")
	ErrDecryptionFailed = errors.New("decryption failed")

	ErrMissingMasterKey = errors.New("master encryption key is not configured")
)

// TokenExchangeError reports a failed authorization code exchange. The
// connection stays unauthorized; nothing is persisted.
type TokenExchangeError struct {
	ConnectorKey ConnectorKey
	Err          error
}

func (e *TokenExchangeError) Error() string {
	return fmt.Sprintf("token exchange failed for connector %s: %v", e.ConnectorKey, e.Err)
}

func (e *TokenExchangeError) Unwrap() error {
	return e.Err
}

// TokenRefreshError reports a failed token refresh. The stored connection is
// invalidated and the user has to re-authorize.
type TokenRefreshError struct {
	ConnectorKey ConnectorKey
	Err          error
}

func (e *TokenRefreshError) Error() string {
	return fmt.Sprintf("token refresh failed for connector %s: %v", e.ConnectorKey, e.Err)
}

func (e *TokenRefreshError) Unwrap() error {
	return e.Err
}

// CredentialValidationError reports a shared credential the provider
// rejected. The credential is never persisted.
type CredentialValidationError struct {
	ConnectorKey ConnectorKey
	Err          error
}

func (e *CredentialValidationError) Error() string {
	return fmt.Sprintf("credential validation failed for connector %s: %v", e.ConnectorKey, e.Err)
}

func (e *CredentialValidationError) Unwrap() error {
	return e.Err
}

// ResourceQueryError wraps a provider transport or status failure during a
// resource query. StatusCode is zero when the failure happened before a
// response was received (timeout, connection error). An empty result page is
// never represented as a ResourceQueryError.
type ResourceQueryError struct {
	ConnectorKey ConnectorKey
	StatusCode   int
	Err          error
}

func (e *ResourceQueryError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("resource query failed for connector %s (status %d): %v", e.ConnectorKey, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("resource query failed for connector %s: %v", e.ConnectorKey, e.Err)
}

func (e *ResourceQueryError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether retrying the query might succeed.
func (e *ResourceQueryError) IsRetryable() bool {
	return e.StatusCode == 0 || e.StatusCode >= 500 || e.StatusCode == 429
}
