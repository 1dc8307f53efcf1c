package managers

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/appforge/connectorhub/pkg/domain"

	"github.com/rs/xid"
	"github.com/rs/zerolog/log"
)

const (
	// pendingAuthorizationTTL bounds how long a started OAuth round-trip
	// stays completable.
	pendingAuthorizationTTL = 10 * time.Minute

	// refreshSafetyMargin treats a token expiring within this window as
	// already expired so a query never races the provider's clock.
	refreshSafetyMargin = 60 * time.Second
)

type connectionManager struct {
	registry   domain.ConnectorRegistry
	store      domain.ConnectionStore
	encryption domain.EncryptionService
}

type ConnectionManagerDependencies struct {
	Registry          domain.ConnectorRegistry
	ConnectionStore   domain.ConnectionStore
	EncryptionService domain.EncryptionService
}

func NewConnectionManager(deps ConnectionManagerDependencies) domain.ConnectionManager {
	return &connectionManager{
		registry:   deps.Registry,
		store:      deps.ConnectionStore,
		encryption: deps.EncryptionService,
	}
}

func (m *connectionManager) StartAuthorization(ctx context.Context, userID string, key domain.ConnectorKey, redirectURI string) (domain.AuthorizationRequest, error) {
	connector, err := m.registry.GetPersonalConnector(key)
	if err != nil {
		return domain.AuthorizationRequest{}, err
	}

	state, err := generateStateToken()
	if err != nil {
		return domain.AuthorizationRequest{}, fmt.Errorf("failed to generate state token: %w", err)
	}

	authorizationURL, err := connector.BuildAuthorizationURL(domain.AuthorizationURLParams{
		RedirectURI: redirectURI,
		State:       state,
	})
	if err != nil {
		return domain.AuthorizationRequest{}, fmt.Errorf("failed to build authorization URL for %s: %w", key, err)
	}

	pending := domain.PendingAuthorization{
		State:        state,
		UserID:       userID,
		ConnectorKey: key,
		RedirectURI:  redirectURI,
		CreatedAt:    time.Now(),
	}

	if err := m.store.PutPendingAuthorization(ctx, pending, pendingAuthorizationTTL); err != nil {
		return domain.AuthorizationRequest{}, fmt.Errorf("failed to persist pending authorization: %w", err)
	}

	return domain.AuthorizationRequest{
		URL:   authorizationURL,
		State: state,
	}, nil
}

func (m *connectionManager) CompleteAuthorization(ctx context.Context, code string, state string) (domain.PersonalConnection, error) {
	pending, err := m.store.TakePendingAuthorization(ctx, state)
	if err != nil {
		return domain.PersonalConnection{}, fmt.Errorf("%w: %v", domain.ErrInvalidState, err)
	}

	connector, err := m.registry.GetPersonalConnector(pending.ConnectorKey)
	if err != nil {
		return domain.PersonalConnection{}, err
	}

	token, err := connector.ExchangeCode(ctx, code, pending.RedirectURI)
	if err != nil {
		// Exchange failures leave nothing behind; the user restarts the
		// flow from scratch.
		return domain.PersonalConnection{}, &domain.TokenExchangeError{
			ConnectorKey: pending.ConnectorKey,
			Err:          err,
		}
	}

	connection, err := m.persistPersonalConnection(ctx, pending.UserID, pending.ConnectorKey, token)
	if err != nil {
		return domain.PersonalConnection{}, err
	}

	log.Info().
		Str("user_id", pending.UserID).
		Str("connector", string(pending.ConnectorKey)).
		Msg("Personal connection authorized")

	return connection, nil
}

func (m *connectionManager) GetAuthorizedToken(ctx context.Context, userID string, key domain.ConnectorKey) (string, error) {
	connector, err := m.registry.GetPersonalConnector(key)
	if err != nil {
		return "", err
	}

	connection, err := m.store.GetPersonalConnection(ctx, userID, key)
	if err != nil {
		if errors.Is(err, domain.ErrConnectionNotFound) {
			return "", fmt.Errorf("%w: no connection for %s", domain.ErrNotAuthorized, key)
		}
		return "", fmt.Errorf("failed to load connection: %w", err)
	}

	var token domain.TokenResponse
	if err := m.encryption.DecryptCredentials(connection.EncryptedToken, &token); err != nil {
		return "", err
	}

	if time.Until(token.ExpiresAt) > refreshSafetyMargin {
		return token.AccessToken, nil
	}

	refreshed, err := connector.RefreshToken(ctx, token.RefreshToken)
	if err != nil {
		// A refresh token the provider rejects is almost always revoked
		// upstream; invalidate the connection instead of retrying.
		if deleteErr := m.store.DeletePersonalConnection(ctx, userID, key); deleteErr != nil {
			log.Error().Err(deleteErr).
				Str("user_id", userID).
				Str("connector", string(key)).
				Msg("Failed to delete connection after refresh failure")
		}

		return "", &domain.TokenRefreshError{ConnectorKey: key, Err: err}
	}

	if refreshed.RefreshToken == "" {
		refreshed.RefreshToken = token.RefreshToken
	}

	if _, err := m.persistPersonalConnection(ctx, userID, key, refreshed); err != nil {
		return "", err
	}

	log.Debug().
		Str("user_id", userID).
		Str("connector", string(key)).
		Time("expires_at", refreshed.ExpiresAt).
		Msg("Refreshed personal connection token")

	return refreshed.AccessToken, nil
}

func (m *connectionManager) RevokeConnection(ctx context.Context, userID string, key domain.ConnectorKey) error {
	if _, err := m.registry.GetPersonalConnector(key); err != nil {
		return err
	}

	if err := m.store.DeletePersonalConnection(ctx, userID, key); err != nil {
		return fmt.Errorf("failed to delete connection: %w", err)
	}

	return nil
}

func (m *connectionManager) ConfigureSharedConnection(ctx context.Context, projectID string, key domain.ConnectorKey, credential string) (domain.SharedConnection, error) {
	connector, err := m.registry.GetSharedConnector(key)
	if err != nil {
		return domain.SharedConnection{}, err
	}

	if err := connector.ValidateCredential(ctx, credential); err != nil {
		return domain.SharedConnection{}, &domain.CredentialValidationError{ConnectorKey: key, Err: err}
	}

	encrypted, err := m.encryption.Encrypt(credential)
	if err != nil {
		return domain.SharedConnection{}, err
	}

	now := time.Now()
	connection := domain.SharedConnection{
		ID:                  xid.New().String(),
		ProjectID:           projectID,
		ConnectorKey:        key,
		EncryptedCredential: encrypted,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	if existing, err := m.store.GetSharedConnection(ctx, projectID, key); err == nil {
		connection.ID = existing.ID
		connection.CreatedAt = existing.CreatedAt
	}

	if err := m.store.PutSharedConnection(ctx, connection); err != nil {
		return domain.SharedConnection{}, fmt.Errorf("failed to persist shared connection: %w", err)
	}

	log.Info().
		Str("project_id", projectID).
		Str("connector", string(key)).
		Msg("Shared connection configured")

	return connection, nil
}

func (m *connectionManager) GetSharedCredential(ctx context.Context, projectID string, key domain.ConnectorKey) (string, error) {
	if _, err := m.registry.GetSharedConnector(key); err != nil {
		return "", err
	}

	connection, err := m.store.GetSharedConnection(ctx, projectID, key)
	if err != nil {
		if errors.Is(err, domain.ErrConnectionNotFound) {
			return "", fmt.Errorf("%w: no shared connection for %s", domain.ErrNotAuthorized, key)
		}
		return "", fmt.Errorf("failed to load shared connection: %w", err)
	}

	return m.encryption.Decrypt(connection.EncryptedCredential)
}

func (m *connectionManager) RemoveSharedConnection(ctx context.Context, projectID string, key domain.ConnectorKey) error {
	if _, err := m.registry.GetSharedConnector(key); err != nil {
		return err
	}

	if err := m.store.DeleteSharedConnection(ctx, projectID, key); err != nil {
		return fmt.Errorf("failed to delete shared connection: %w", err)
	}

	return nil
}

func (m *connectionManager) persistPersonalConnection(ctx context.Context, userID string, key domain.ConnectorKey, token domain.TokenResponse) (domain.PersonalConnection, error) {
	encrypted, err := m.encryption.EncryptCredentials(token)
	if err != nil {
		return domain.PersonalConnection{}, err
	}

	now := time.Now()
	connection := domain.PersonalConnection{
		ID:             xid.New().String(),
		UserID:         userID,
		ConnectorKey:   key,
		EncryptedToken: encrypted,
		ExpiresAt:      token.ExpiresAt,
		Scope:          token.Scope,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if existing, err := m.store.GetPersonalConnection(ctx, userID, key); err == nil {
		connection.ID = existing.ID
		connection.CreatedAt = existing.CreatedAt
	}

	if err := m.store.PutPersonalConnection(ctx, connection); err != nil {
		return domain.PersonalConnection{}, fmt.Errorf("failed to persist connection: %w", err)
	}

	return connection, nil
}

func generateStateToken() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}

	return base64.RawURLEncoding.EncodeToString(raw), nil
}
