package atlassian

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/appforge/connectorhub/pkg/connectors/httputil"
	"github.com/appforge/connectorhub/pkg/connectors/oauthutil"
	"github.com/appforge/connectorhub/pkg/domain"

	jira "github.com/andygrunwald/go-jira"
	"golang.org/x/oauth2"
)

const (
	atlassianAuthURL       = "https://auth.atlassian.com/authorize"
	atlassianTokenURL      = "https://auth.atlassian.com/oauth/token"
	accessibleResourcesURL = "https://api.atlassian.com/oauth/token/accessible-resources"

	defaultPageSize = 25
	maxPageSize     = 100
)

type Config struct {
	ClientID     string
	ClientSecret string
	Retry        httputil.RetryConfig
}

// Connector is the Atlassian personal connector (OAuth 2.0 3LO).
// ListResources enumerates accessible Jira sites; QueryResources searches
// issues on a site, selected via the "site_id" filter or defaulting to the
// first accessible site.
type Connector struct {
	config     Config
	httpClient *http.Client
}

func NewConnector(cfg Config) (*Connector, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("atlassian connector requires client id and secret")
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
		Key:         domain.ConnectorKey_Atlassian,
		DisplayName: "Atlassian",
		Description: "List Jira sites and search issues across an Atlassian account",
	}
}

func (c *Connector) oauthConfig(redirectURI string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     c.config.ClientID,
		ClientSecret: c.config.ClientSecret,
		RedirectURL:  redirectURI,
		Scopes:       []string{"read:jira-work", "read:me", "offline_access"},
		Endpoint: oauth2.Endpoint{
			AuthURL:   atlassianAuthURL,
			TokenURL:  atlassianTokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

func (c *Connector) BuildAuthorizationURL(params domain.AuthorizationURLParams) (string, error) {
	if params.State == "" {
		return "", fmt.Errorf("authorization state is required")
	}

	return c.oauthConfig(params.RedirectURI).AuthCodeURL(params.State,
		oauth2.SetAuthURLParam("audience", "api.atlassian.com"),
		oauth2.SetAuthURLParam("prompt", "consent"),
	), nil
}

func (c *Connector) ExchangeCode(ctx context.Context, code string, redirectURI string) (domain.TokenResponse, error) {
	token, err := c.oauthConfig(redirectURI).Exchange(ctx, code)
	if err != nil {
		return domain.TokenResponse{}, fmt.Errorf("atlassian code exchange failed: %w", err)
	}

	return oauthutil.TokenResponse(token), nil
}

func (c *Connector) RefreshToken(ctx context.Context, refreshToken string) (domain.TokenResponse, error) {
	source := c.oauthConfig("").TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})

	token, err := source.Token()
	if err != nil {
		return domain.TokenResponse{}, fmt.Errorf("atlassian token refresh failed: %w", err)
	}

	return oauthutil.TokenResponse(token), nil
}

type accessibleResource struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	URL       string   `json:"url"`
	Scopes    []string `json:"scopes"`
	AvatarURL string   `json:"avatarUrl"`
}

func (c *Connector) ListResources(ctx context.Context, accessToken string, query domain.ResourceQuery) (domain.ResourcePage, error) {
	sites, err := c.accessibleResources(ctx, accessToken)
	if err != nil {
		return domain.ResourcePage{}, err
	}

	resources := make([]domain.Resource, 0, len(sites))
	for _, site := range sites {
		resources = append(resources, domain.Resource{
			ID:    site.ID,
			Title: site.Name,
			Type:  "site",
			URL:   site.URL,
			Metadata: map[string]any{
				"scopes": site.Scopes,
			},
		})
	}

	// The accessible-resources endpoint returns the full set in one shot.
	return domain.ResourcePage{Resources: resources}, nil
}

func (c *Connector) QueryResources(ctx context.Context, accessToken string, query domain.ResourceQuery) (domain.ResourcePage, error) {
	siteID, _ := query.Filters["site_id"].(string)
	if siteID == "" {
		sites, err := c.accessibleResources(ctx, accessToken)
		if err != nil {
			return domain.ResourcePage{}, err
		}

		if len(sites) == 0 {
			return domain.ResourcePage{}, c.queryError(0, fmt.Errorf("no accessible Jira sites"))
		}

		siteID = sites[0].ID
	}

	tokenSource := oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: accessToken,
		TokenType:   "Bearer",
	})

	// The 3LO gateway fronts the site's REST API; go-jira appends its paths
	// to this base.
	apiBaseURL := fmt.Sprintf("https://api.atlassian.com/ex/jira/%s", siteID)

	client, err := jira.NewClient(oauth2.NewClient(ctx, tokenSource), apiBaseURL)
	if err != nil {
		return domain.ResourcePage{}, fmt.Errorf("failed to create Jira client: %w", err)
	}

	jql := "ORDER BY updated DESC"
	if query.Search != "" {
		jql = fmt.Sprintf("text ~ %q ORDER BY updated DESC", query.Search)
	}

	startAt := 0
	if query.Cursor != "" {
		startAt, err = strconv.Atoi(query.Cursor)
		if err != nil {
			return domain.ResourcePage{}, fmt.Errorf("invalid cursor %q", query.Cursor)
		}
	}

	limit := query.GetLimitWithMax(defaultPageSize, maxPageSize)

	issues, resp, err := client.Issue.SearchWithContext(ctx, jql, &jira.SearchOptions{
		StartAt:    startAt,
		MaxResults: limit,
	})
	if err != nil {
		statusCode := 0
		if resp != nil {
			statusCode = resp.StatusCode
		}
		return domain.ResourcePage{}, c.queryError(statusCode, err)
	}

	resources := make([]domain.Resource, 0, len(issues))
	for _, issue := range issues {
		resources = append(resources, domain.Resource{
			ID:    issue.ID,
			Title: issue.Fields.Summary,
			Type:  "issue",
			URL:   fmt.Sprintf("%s/browse/%s", apiBaseURL, issue.Key),
			Metadata: map[string]any{
				"key":     issue.Key,
				"site_id": siteID,
			},
		})
	}

	page := domain.ResourcePage{Resources: resources}
	if resp != nil && resp.StartAt+len(issues) < resp.Total {
		page.NextCursor = strconv.Itoa(resp.StartAt + len(issues))
		page.HasMore = true
	}

	return page, nil
}

func (c *Connector) accessibleResources(ctx context.Context, accessToken string) ([]accessibleResource, error) {
	body, err := httputil.Do(ctx, c.httpClient, c.config.Retry, func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodGet, accessibleResourcesURL, nil)
		if err != nil {
			return nil, err
		}

		req.Header.Set("Authorization", "Bearer "+accessToken)
		req.Header.Set("Accept", "application/json")

		return req, nil
	})
	if err != nil {
		var statusErr *httputil.StatusError
		if errors.As(err, &statusErr) {
			return nil, c.queryError(statusErr.StatusCode, err)
		}
		return nil, c.queryError(0, err)
	}

	var sites []accessibleResource
	if err := json.Unmarshal(body, &sites); err != nil {
		return nil, fmt.Errorf("failed to parse accessible resources: %w", err)
	}

	return sites, nil
}

func (c *Connector) queryError(statusCode int, err error) error {
	return &domain.ResourceQueryError{
		ConnectorKey: domain.ConnectorKey_Atlassian,
		StatusCode:   statusCode,
		Err:          err,
	}
}
