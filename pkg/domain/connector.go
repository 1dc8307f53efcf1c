package domain

import (
	"context"
	"time"
)

type ConnectorKey string

const (
	ConnectorKey_Notion    ConnectorKey = "NOTION"
	ConnectorKey_Linear    ConnectorKey = "LINEAR"
	ConnectorKey_Atlassian ConnectorKey = "ATLASSIAN"
	ConnectorKey_Stripe    ConnectorKey = "STRIPE"
	ConnectorKey_Resend    ConnectorKey = "RESEND"
	ConnectorKey_Supabase  ConnectorKey = "SUPABASE"
)

// ConnectorDescriptor is the presentation metadata of a connector. It carries
// nothing security relevant.
type ConnectorDescriptor struct {
	Key         ConnectorKey `json:"key"`
	DisplayName string       `json:"display_name"`
	Description string       `json:"description"`
}

// TokenResponse is the result of an OAuth code exchange or refresh. It is
// never persisted in clear form.
type TokenResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
	Scope        string    `json:"scope,omitempty"`
}

type AuthorizationURLParams struct {
	RedirectURI string
	State       string
}

// PersonalConnector is an integration a user authorizes individually through
// an OAuth round-trip. Token arguments are live decrypted material scoped to
// the current call.
type PersonalConnector interface {
	Descriptor() ConnectorDescriptor
	BuildAuthorizationURL(params AuthorizationURLParams) (string, error)
	ExchangeCode(ctx context.Context, code string, redirectURI string) (TokenResponse, error)
	RefreshToken(ctx context.Context, refreshToken string) (TokenResponse, error)
	ListResources(ctx context.Context, accessToken string, query ResourceQuery) (ResourcePage, error)
	QueryResources(ctx context.Context, accessToken string, query ResourceQuery) (ResourcePage, error)
}

// SharedConnector is an integration configured once per project with a
// service credential used on behalf of all of that project's users.
type SharedConnector interface {
	Descriptor() ConnectorDescriptor
	ValidateCredential(ctx context.Context, credential string) error
	QueryResources(ctx context.Context, credential string, query ResourceQuery) (ResourcePage, error)
}
