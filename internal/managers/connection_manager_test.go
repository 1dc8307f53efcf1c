package managers

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/appforge/connectorhub/internal/storage"
	"github.com/appforge/connectorhub/pkg/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePersonalConnector struct {
	key domain.ConnectorKey

	exchangeFunc func(ctx context.Context, code string, redirectURI string) (domain.TokenResponse, error)
	refreshFunc  func(ctx context.Context, refreshToken string) (domain.TokenResponse, error)
	listFunc     func(ctx context.Context, accessToken string, query domain.ResourceQuery) (domain.ResourcePage, error)
	queryFunc    func(ctx context.Context, accessToken string, query domain.ResourceQuery) (domain.ResourcePage, error)

	refreshCalls int
}

func (f *fakePersonalConnector) Descriptor() domain.ConnectorDescriptor {
	return domain.ConnectorDescriptor{Key: f.key, DisplayName: string(f.key)}
}

func (f *fakePersonalConnector) BuildAuthorizationURL(params domain.AuthorizationURLParams) (string, error) {
	return fmt.Sprintf("https://provider.example/authorize?state=%s&redirect_uri=%s", params.State, params.RedirectURI), nil
}

func (f *fakePersonalConnector) ExchangeCode(ctx context.Context, code string, redirectURI string) (domain.TokenResponse, error) {
	if f.exchangeFunc != nil {
		return f.exchangeFunc(ctx, code, redirectURI)
	}
	return domain.TokenResponse{AccessToken: "tok1", RefreshToken: "ref1", ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func (f *fakePersonalConnector) RefreshToken(ctx context.Context, refreshToken string) (domain.TokenResponse, error) {
	f.refreshCalls++
	if f.refreshFunc != nil {
		return f.refreshFunc(ctx, refreshToken)
	}
	return domain.TokenResponse{AccessToken: "tok2", RefreshToken: "ref2", ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func (f *fakePersonalConnector) ListResources(ctx context.Context, accessToken string, query domain.ResourceQuery) (domain.ResourcePage, error) {
	if f.listFunc != nil {
		return f.listFunc(ctx, accessToken, query)
	}
	return domain.ResourcePage{}, nil
}

func (f *fakePersonalConnector) QueryResources(ctx context.Context, accessToken string, query domain.ResourceQuery) (domain.ResourcePage, error) {
	if f.queryFunc != nil {
		return f.queryFunc(ctx, accessToken, query)
	}
	return domain.ResourcePage{}, nil
}

type fakeSharedConnector struct {
	key domain.ConnectorKey

	validateFunc func(ctx context.Context, credential string) error
	queryFunc    func(ctx context.Context, credential string, query domain.ResourceQuery) (domain.ResourcePage, error)
}

func (f *fakeSharedConnector) Descriptor() domain.ConnectorDescriptor {
	return domain.ConnectorDescriptor{Key: f.key, DisplayName: string(f.key)}
}

func (f *fakeSharedConnector) ValidateCredential(ctx context.Context, credential string) error {
	if f.validateFunc != nil {
		return f.validateFunc(ctx, credential)
	}
	return nil
}

func (f *fakeSharedConnector) QueryResources(ctx context.Context, credential string, query domain.ResourceQuery) (domain.ResourcePage, error) {
	if f.queryFunc != nil {
		return f.queryFunc(ctx, credential, query)
	}
	return domain.ResourcePage{}, nil
}

type managerFixture struct {
	registry   domain.ConnectorRegistry
	store      *storage.MemoryConnectionStore
	encryption domain.EncryptionService
	manager    domain.ConnectionManager
}

func newManagerFixture(t *testing.T, connectors ...any) managerFixture {
	t.Helper()

	registry := domain.NewConnectorRegistry()

	for _, connector := range connectors {
		switch c := connector.(type) {
		case domain.PersonalConnector:
			require.NoError(t, registry.RegisterPersonal(c))
		case domain.SharedConnector:
			require.NoError(t, registry.RegisterShared(c))
		default:
			t.Fatalf("unsupported connector type %T", connector)
		}
	}

	encryption, err := NewEncryptionService(testMasterKey)
	require.NoError(t, err)

	store := storage.NewMemoryConnectionStore()

	manager := NewConnectionManager(ConnectionManagerDependencies{
		Registry:          registry,
		ConnectionStore:   store,
		EncryptionService: encryption,
	})

	return managerFixture{
		registry:   registry,
		store:      store,
		encryption: encryption,
		manager:    manager,
	}
}

func TestConnectionManager_AuthorizationRoundTrip(t *testing.T) {
	ctx := context.Background()
	connector := &fakePersonalConnector{key: "NOTION"}
	fixture := newManagerFixture(t, connector)

	request, err := fixture.manager.StartAuthorization(ctx, "u1", "NOTION", "https://app.example/callback")
	require.NoError(t, err)
	assert.NotEmpty(t, request.State)
	assert.Contains(t, request.URL, request.State)

	connection, err := fixture.manager.CompleteAuthorization(ctx, "valid-code", request.State)
	require.NoError(t, err)
	assert.Equal(t, "u1", connection.UserID)
	assert.Equal(t, domain.ConnectorKey("NOTION"), connection.ConnectorKey)

	stored, err := fixture.store.GetPersonalConnection(ctx, "u1", "NOTION")
	require.NoError(t, err)

	var token domain.TokenResponse
	require.NoError(t, fixture.encryption.DecryptCredentials(stored.EncryptedToken, &token))
	assert.Equal(t, "tok1", token.AccessToken)
	assert.Equal(t, "ref1", token.RefreshToken)
}

func TestConnectionManager_StateTokenIsSingleUse(t *testing.T) {
	ctx := context.Background()
	connector := &fakePersonalConnector{key: "NOTION"}
	fixture := newManagerFixture(t, connector)

	request, err := fixture.manager.StartAuthorization(ctx, "u1", "NOTION", "https://app.example/callback")
	require.NoError(t, err)

	_, err = fixture.manager.CompleteAuthorization(ctx, "valid-code", request.State)
	require.NoError(t, err)

	_, err = fixture.manager.CompleteAuthorization(ctx, "valid-code", request.State)
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestConnectionManager_ExchangeFailurePersistsNothing(t *testing.T) {
	ctx := context.Background()
	connector := &fakePersonalConnector{
		key: "NOTION",
		exchangeFunc: func(ctx context.Context, code string, redirectURI string) (domain.TokenResponse, error) {
			return domain.TokenResponse{}, errors.New("invalid_grant")
		},
	}
	fixture := newManagerFixture(t, connector)

	request, err := fixture.manager.StartAuthorization(ctx, "u1", "NOTION", "https://app.example/callback")
	require.NoError(t, err)

	_, err = fixture.manager.CompleteAuthorization(ctx, "bad-code", request.State)

	var exchangeErr *domain.TokenExchangeError
	require.ErrorAs(t, err, &exchangeErr)
	assert.Equal(t, domain.ConnectorKey("NOTION"), exchangeErr.ConnectorKey)

	_, err = fixture.store.GetPersonalConnection(ctx, "u1", "NOTION")
	assert.ErrorIs(t, err, domain.ErrConnectionNotFound)
}

func TestConnectionManager_UnknownStateToken(t *testing.T) {
	fixture := newManagerFixture(t, &fakePersonalConnector{key: "NOTION"})

	_, err := fixture.manager.CompleteAuthorization(context.Background(), "code", "never-issued")
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestConnectionManager_GetAuthorizedToken_FreshTokenSkipsRefresh(t *testing.T) {
	ctx := context.Background()
	connector := &fakePersonalConnector{key: "NOTION"}
	fixture := newManagerFixture(t, connector)

	authorize(t, fixture, ctx, "u1", "NOTION")

	accessToken, err := fixture.manager.GetAuthorizedToken(ctx, "u1", "NOTION")
	require.NoError(t, err)
	assert.Equal(t, "tok1", accessToken)
	assert.Equal(t, 0, connector.refreshCalls)
}

func TestConnectionManager_GetAuthorizedToken_ExpiredTriggersSingleRefresh(t *testing.T) {
	ctx := context.Background()
	connector := &fakePersonalConnector{
		key: "NOTION",
		exchangeFunc: func(ctx context.Context, code string, redirectURI string) (domain.TokenResponse, error) {
			return domain.TokenResponse{
				AccessToken:  "tok1",
				RefreshToken: "ref1",
				ExpiresAt:    time.Now().Add(-time.Minute),
			}, nil
		},
	}
	fixture := newManagerFixture(t, connector)

	authorize(t, fixture, ctx, "u1", "NOTION")

	accessToken, err := fixture.manager.GetAuthorizedToken(ctx, "u1", "NOTION")
	require.NoError(t, err)
	assert.Equal(t, "tok2", accessToken)
	assert.Equal(t, 1, connector.refreshCalls)

	stored, err := fixture.store.GetPersonalConnection(ctx, "u1", "NOTION")
	require.NoError(t, err)

	var token domain.TokenResponse
	require.NoError(t, fixture.encryption.DecryptCredentials(stored.EncryptedToken, &token))
	assert.Equal(t, "tok2", token.AccessToken)
	assert.True(t, stored.ExpiresAt.After(time.Now()))
}

func TestConnectionManager_RefreshKeepsOldRefreshTokenWhenOmitted(t *testing.T) {
	ctx := context.Background()
	connector := &fakePersonalConnector{
		key: "NOTION",
		exchangeFunc: func(ctx context.Context, code string, redirectURI string) (domain.TokenResponse, error) {
			return domain.TokenResponse{
				AccessToken:  "tok1",
				RefreshToken: "ref1",
				ExpiresAt:    time.Now().Add(-time.Minute),
			}, nil
		},
		refreshFunc: func(ctx context.Context, refreshToken string) (domain.TokenResponse, error) {
			return domain.TokenResponse{AccessToken: "tok2", ExpiresAt: time.Now().Add(time.Hour)}, nil
		},
	}
	fixture := newManagerFixture(t, connector)

	authorize(t, fixture, ctx, "u1", "NOTION")

	_, err := fixture.manager.GetAuthorizedToken(ctx, "u1", "NOTION")
	require.NoError(t, err)

	stored, err := fixture.store.GetPersonalConnection(ctx, "u1", "NOTION")
	require.NoError(t, err)

	var token domain.TokenResponse
	require.NoError(t, fixture.encryption.DecryptCredentials(stored.EncryptedToken, &token))
	assert.Equal(t, "ref1", token.RefreshToken)
}

func TestConnectionManager_RefreshFailureInvalidatesConnection(t *testing.T) {
	ctx := context.Background()
	connector := &fakePersonalConnector{
		key: "NOTION",
		exchangeFunc: func(ctx context.Context, code string, redirectURI string) (domain.TokenResponse, error) {
			return domain.TokenResponse{
				AccessToken:  "tok1",
				RefreshToken: "ref1",
				ExpiresAt:    time.Now().Add(-time.Minute),
			}, nil
		},
		refreshFunc: func(ctx context.Context, refreshToken string) (domain.TokenResponse, error) {
			return domain.TokenResponse{}, errors.New("refresh token revoked")
		},
	}
	fixture := newManagerFixture(t, connector)

	authorize(t, fixture, ctx, "u1", "NOTION")

	_, err := fixture.manager.GetAuthorizedToken(ctx, "u1", "NOTION")

	var refreshErr *domain.TokenRefreshError
	require.ErrorAs(t, err, &refreshErr)
	assert.Equal(t, domain.ConnectorKey("NOTION"), refreshErr.ConnectorKey)

	_, err = fixture.store.GetPersonalConnection(ctx, "u1", "NOTION")
	assert.ErrorIs(t, err, domain.ErrConnectionNotFound)
}

func TestConnectionManager_GetAuthorizedToken_NoConnection(t *testing.T) {
	fixture := newManagerFixture(t, &fakePersonalConnector{key: "NOTION"})

	_, err := fixture.manager.GetAuthorizedToken(context.Background(), "u1", "NOTION")
	assert.ErrorIs(t, err, domain.ErrNotAuthorized)
}

func TestConnectionManager_ReauthorizationOverwrites(t *testing.T) {
	ctx := context.Background()
	exchangeCount := 0
	connector := &fakePersonalConnector{
		key: "NOTION",
		exchangeFunc: func(ctx context.Context, code string, redirectURI string) (domain.TokenResponse, error) {
			exchangeCount++
			return domain.TokenResponse{
				AccessToken: fmt.Sprintf("tok-%d", exchangeCount),
				ExpiresAt:   time.Now().Add(time.Hour),
			}, nil
		},
	}
	fixture := newManagerFixture(t, connector)

	authorize(t, fixture, ctx, "u1", "NOTION")
	first, err := fixture.store.GetPersonalConnection(ctx, "u1", "NOTION")
	require.NoError(t, err)

	authorize(t, fixture, ctx, "u1", "NOTION")
	second, err := fixture.store.GetPersonalConnection(ctx, "u1", "NOTION")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.NotEqual(t, first.EncryptedToken, second.EncryptedToken)

	accessToken, err := fixture.manager.GetAuthorizedToken(ctx, "u1", "NOTION")
	require.NoError(t, err)
	assert.Equal(t, "tok-2", accessToken)
}

func TestConnectionManager_RevokeDeletesConnection(t *testing.T) {
	ctx := context.Background()
	fixture := newManagerFixture(t, &fakePersonalConnector{key: "NOTION"})

	authorize(t, fixture, ctx, "u1", "NOTION")

	require.NoError(t, fixture.manager.RevokeConnection(ctx, "u1", "NOTION"))

	_, err := fixture.manager.GetAuthorizedToken(ctx, "u1", "NOTION")
	assert.ErrorIs(t, err, domain.ErrNotAuthorized)
}

func TestConnectionManager_SharedCredentialLifecycle(t *testing.T) {
	ctx := context.Background()
	connector := &fakeSharedConnector{key: "STRIPE"}
	fixture := newManagerFixture(t, connector)

	connection, err := fixture.manager.ConfigureSharedConnection(ctx, "p1", "STRIPE", "sk_test_123")
	require.NoError(t, err)
	assert.Equal(t, "p1", connection.ProjectID)
	assert.NotContains(t, connection.EncryptedCredential, "sk_test_123")

	credential, err := fixture.manager.GetSharedCredential(ctx, "p1", "STRIPE")
	require.NoError(t, err)
	assert.Equal(t, "sk_test_123", credential)

	require.NoError(t, fixture.manager.RemoveSharedConnection(ctx, "p1", "STRIPE"))

	_, err = fixture.manager.GetSharedCredential(ctx, "p1", "STRIPE")
	assert.ErrorIs(t, err, domain.ErrNotAuthorized)
}

func TestConnectionManager_RejectedSharedCredentialNeverPersisted(t *testing.T) {
	ctx := context.Background()
	connector := &fakeSharedConnector{
		key: "STRIPE",
		validateFunc: func(ctx context.Context, credential string) error {
			return errors.New("invalid api key")
		},
	}
	fixture := newManagerFixture(t, connector)

	_, err := fixture.manager.ConfigureSharedConnection(ctx, "p1", "STRIPE", "sk_bad")

	var validationErr *domain.CredentialValidationError
	require.ErrorAs(t, err, &validationErr)

	_, err = fixture.store.GetSharedConnection(ctx, "p1", "STRIPE")
	assert.ErrorIs(t, err, domain.ErrConnectionNotFound)
}

func TestConnectionManager_SharedRotationOverwrites(t *testing.T) {
	ctx := context.Background()
	fixture := newManagerFixture(t, &fakeSharedConnector{key: "STRIPE"})

	_, err := fixture.manager.ConfigureSharedConnection(ctx, "p1", "STRIPE", "sk_old")
	require.NoError(t, err)

	_, err = fixture.manager.ConfigureSharedConnection(ctx, "p1", "STRIPE", "sk_new")
	require.NoError(t, err)

	credential, err := fixture.manager.GetSharedCredential(ctx, "p1", "STRIPE")
	require.NoError(t, err)
	assert.Equal(t, "sk_new", credential)
}

func TestConnectionManager_UnknownConnector(t *testing.T) {
	ctx := context.Background()
	fixture := newManagerFixture(t)

	_, err := fixture.manager.StartAuthorization(ctx, "u1", "MISSING", "https://app.example/callback")
	assert.ErrorIs(t, err, domain.ErrConnectorNotFound)

	_, err = fixture.manager.ConfigureSharedConnection(ctx, "p1", "MISSING", "credential")
	assert.ErrorIs(t, err, domain.ErrConnectorNotFound)
}

func authorize(t *testing.T, fixture managerFixture, ctx context.Context, userID string, key domain.ConnectorKey) {
	t.Helper()

	request, err := fixture.manager.StartAuthorization(ctx, userID, key, "https://app.example/callback")
	require.NoError(t, err)

	_, err = fixture.manager.CompleteAuthorization(ctx, "valid-code", request.State)
	require.NoError(t, err)
}
