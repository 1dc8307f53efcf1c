package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/appforge/connectorhub/pkg/connectors/httputil"
	"github.com/appforge/connectorhub/pkg/connectors/oauthutil"
	"github.com/appforge/connectorhub/pkg/domain"

	"golang.org/x/oauth2"
)

const (
	NotionAPIVersion = "2022-06-28"
	NotionAPIBaseURL = "https://api.notion.com/v1"

	notionAuthURL  = "https://api.notion.com/v1/oauth/authorize"
	notionTokenURL = "https://api.notion.com/v1/oauth/token"

	defaultPageSize = 25
	maxPageSize     = 100
)

type Config struct {
	ClientID     string
	ClientSecret string
	BaseURL      string
	Retry        httputil.RetryConfig
}

// Connector is the Notion personal connector. Resources are the pages and
// databases the authorizing user shared with the integration.
type Connector struct {
	config     Config
	httpClient *http.Client
}

func NewConnector(cfg Config) (*Connector, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("notion connector requires client id and secret")
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = NotionAPIBaseURL
	}
	if cfg.Retry.Attempts == 0 {
		cfg.Retry = httputil.DefaultRetryConfig()
	}

	return &Connector{
		config:     cfg,
		httpClient: httputil.NewClient(),
	}, nil
}

func (c *Connector) Descriptor() domain.ConnectorDescriptor {
	return domain.ConnectorDescriptor{
		Key:         domain.ConnectorKey_Notion,
		DisplayName: "Notion",
		Description: "Search and list pages and databases from a Notion workspace",
	}
}

func (c *Connector) oauthConfig(redirectURI string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     c.config.ClientID,
		ClientSecret: c.config.ClientSecret,
		RedirectURL:  redirectURI,
		Endpoint: oauth2.Endpoint{
			AuthURL:   notionAuthURL,
			TokenURL:  notionTokenURL,
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}
}

func (c *Connector) BuildAuthorizationURL(params domain.AuthorizationURLParams) (string, error) {
	if params.State == "" {
		return "", fmt.Errorf("authorization state is required")
	}

	conf := c.oauthConfig(params.RedirectURI)

	return conf.AuthCodeURL(params.State, oauth2.SetAuthURLParam("owner", "user")), nil
}

func (c *Connector) ExchangeCode(ctx context.Context, code string, redirectURI string) (domain.TokenResponse, error) {
	conf := c.oauthConfig(redirectURI)

	token, err := conf.Exchange(ctx, code)
	if err != nil {
		return domain.TokenResponse{}, fmt.Errorf("notion code exchange failed: %w", err)
	}

	return oauthutil.TokenResponse(token), nil
}

func (c *Connector) RefreshToken(ctx context.Context, refreshToken string) (domain.TokenResponse, error) {
	conf := c.oauthConfig("")

	source := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})

	token, err := source.Token()
	if err != nil {
		return domain.TokenResponse{}, fmt.Errorf("notion token refresh failed: %w", err)
	}

	return oauthutil.TokenResponse(token), nil
}

func (c *Connector) ListResources(ctx context.Context, accessToken string, query domain.ResourceQuery) (domain.ResourcePage, error) {
	return c.search(ctx, accessToken, "", query)
}

func (c *Connector) QueryResources(ctx context.Context, accessToken string, query domain.ResourceQuery) (domain.ResourcePage, error) {
	return c.search(ctx, accessToken, query.Search, query)
}

type searchRequest struct {
	Query       string `json:"query,omitempty"`
	StartCursor string `json:"start_cursor,omitempty"`
	PageSize    int    `json:"page_size"`
}

type searchResponse struct {
	Results    []notionObject `json:"results"`
	HasMore    bool           `json:"has_more"`
	NextCursor string         `json:"next_cursor"`
}

type notionObject struct {
	Object     string                    `json:"object"`
	ID         string                    `json:"id"`
	URL        string                    `json:"url"`
	Title      []richText                `json:"title"`
	Properties map[string]notionProperty `json:"properties"`
}

type notionProperty struct {
	Type  string     `json:"type"`
	Title []richText `json:"title"`
}

type richText struct {
	PlainText string `json:"plain_text"`
}

func (c *Connector) search(ctx context.Context, accessToken string, search string, query domain.ResourceQuery) (domain.ResourcePage, error) {
	reqBody := searchRequest{
		Query:       search,
		StartCursor: query.Cursor,
		PageSize:    query.GetLimitWithMax(defaultPageSize, maxPageSize),
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return domain.ResourcePage{}, fmt.Errorf("failed to marshal search request: %w", err)
	}

	body, err := httputil.Do(ctx, c.httpClient, c.config.Retry, func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodPost, c.config.BaseURL+"/search", bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}

		req.Header.Set("Authorization", "Bearer "+accessToken)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Notion-Version", NotionAPIVersion)

		return req, nil
	})
	if err != nil {
		return domain.ResourcePage{}, queryError(err)
	}

	var result searchResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return domain.ResourcePage{}, fmt.Errorf("failed to parse search response: %w", err)
	}

	resources := make([]domain.Resource, 0, len(result.Results))
	for _, object := range result.Results {
		resources = append(resources, domain.Resource{
			ID:    object.ID,
			Title: object.title(),
			Type:  object.Object,
			URL:   object.URL,
			Metadata: map[string]any{
				"object": object.Object,
			},
		})
	}

	return domain.ResourcePage{
		Resources:  resources,
		NextCursor: result.NextCursor,
		HasMore:    result.HasMore,
	}, nil
}

// title extracts a display title from either shape Notion returns: databases
// carry a top-level title array, pages bury it in a title-typed property.
func (o notionObject) title() string {
	if len(o.Title) > 0 {
		return plainText(o.Title)
	}

	for _, property := range o.Properties {
		if property.Type == "title" && len(property.Title) > 0 {
			return plainText(property.Title)
		}
	}

	return "Untitled"
}

func plainText(parts []richText) string {
	text := ""
	for _, part := range parts {
		text += part.PlainText
	}

	return text
}

func queryError(err error) error {
	var statusErr *httputil.StatusError
	if errors.As(err, &statusErr) {
		return &domain.ResourceQueryError{
			ConnectorKey: domain.ConnectorKey_Notion,
			StatusCode:   statusErr.StatusCode,
			Err:          err,
		}
	}

	return &domain.ResourceQueryError{
		ConnectorKey: domain.ConnectorKey_Notion,
		Err:          err,
	}
}
