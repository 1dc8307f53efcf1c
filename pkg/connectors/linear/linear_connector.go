package linear

import (
	"context"
	"fmt"
	"net/http"

	"github.com/appforge/connectorhub/pkg/connectors/oauthutil"
	"github.com/appforge/connectorhub/pkg/domain"

	"github.com/hasura/go-graphql-client"
	"golang.org/x/oauth2"
)

const (
	linearAuthURL    = "https://linear.app/oauth/authorize"
	linearTokenURL   = "https://api.linear.app/oauth/token"
	linearGraphQLURL = "https://api.linear.app/graphql"

	defaultPageSize = 25
	maxPageSize     = 100
)

const (
	teamsQuery = `
	query Teams($first: Int!, $after: String) {
		teams(first: $first, after: $after) {
			nodes {
				id
				name
				key
			}
			pageInfo {
				hasNextPage
				endCursor
			}
		}
	}`

	issueSearchQuery = `
	query Issues($first: Int!, $after: String, $filter: IssueFilter) {
		issues(first: $first, after: $after, filter: $filter) {
			nodes {
				id
				identifier
				title
				url
				state {
					name
				}
			}
			pageInfo {
				hasNextPage
				endCursor
			}
		}
	}`
)

type Config struct {
	ClientID     string
	ClientSecret string
}

// Connector is the Linear personal connector. ListResources enumerates
// teams; QueryResources searches issues by title.
type Connector struct {
	config Config
}

func NewConnector(cfg Config) (*Connector, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("linear connector requires client id and secret")
	}

	return &Connector{config: cfg}, nil
}

func (c *Connector) Descriptor() domain.ConnectorDescriptor {
	return domain.ConnectorDescriptor{
		Key:         domain.ConnectorKey_Linear,
		DisplayName: "Linear",
		Description: "List teams and search issues in a Linear workspace",
	}
}

func (c *Connector) oauthConfig(redirectURI string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     c.config.ClientID,
		ClientSecret: c.config.ClientSecret,
		RedirectURL:  redirectURI,
		Scopes:       []string{"read"},
		Endpoint: oauth2.Endpoint{
			AuthURL:   linearAuthURL,
			TokenURL:  linearTokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

func (c *Connector) BuildAuthorizationURL(params domain.AuthorizationURLParams) (string, error) {
	if params.State == "" {
		return "", fmt.Errorf("authorization state is required")
	}

	return c.oauthConfig(params.RedirectURI).AuthCodeURL(params.State), nil
}

func (c *Connector) ExchangeCode(ctx context.Context, code string, redirectURI string) (domain.TokenResponse, error) {
	token, err := c.oauthConfig(redirectURI).Exchange(ctx, code)
	if err != nil {
		return domain.TokenResponse{}, fmt.Errorf("linear code exchange failed: %w", err)
	}

	return oauthutil.TokenResponse(token), nil
}

func (c *Connector) RefreshToken(ctx context.Context, refreshToken string) (domain.TokenResponse, error) {
	source := c.oauthConfig("").TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})

	token, err := source.Token()
	if err != nil {
		return domain.TokenResponse{}, fmt.Errorf("linear token refresh failed: %w", err)
	}

	return oauthutil.TokenResponse(token), nil
}

type linearTransport struct {
	accessToken string
	transport   http.RoundTripper
}

func (t *linearTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set("Authorization", "Bearer "+t.accessToken)
	return t.transport.RoundTrip(req)
}

func (c *Connector) graphqlClient(accessToken string) *graphql.Client {
	httpClient := &http.Client{
		Transport: &linearTransport{
			accessToken: accessToken,
			transport:   http.DefaultTransport,
		},
	}

	return graphql.NewClient(linearGraphQLURL, httpClient)
}

type pageInfo struct {
	HasNextPage bool   `json:"hasNextPage"`
	EndCursor   string `json:"endCursor"`
}

func (c *Connector) ListResources(ctx context.Context, accessToken string, query domain.ResourceQuery) (domain.ResourcePage, error) {
	vars := map[string]any{
		"first": query.GetLimitWithMax(defaultPageSize, maxPageSize),
		"after": cursorOrNil(query.Cursor),
	}

	var response struct {
		Teams struct {
			Nodes []struct {
				ID   string `json:"id"`
				Name string `json:"name"`
				Key  string `json:"key"`
			} `json:"nodes"`
			PageInfo pageInfo `json:"pageInfo"`
		} `json:"teams"`
	}

	if err := c.graphqlClient(accessToken).Exec(ctx, teamsQuery, &response, vars); err != nil {
		return domain.ResourcePage{}, c.queryError(err)
	}

	resources := make([]domain.Resource, 0, len(response.Teams.Nodes))
	for _, team := range response.Teams.Nodes {
		resources = append(resources, domain.Resource{
			ID:    team.ID,
			Title: team.Name,
			Type:  "team",
			Metadata: map[string]any{
				"key": team.Key,
			},
		})
	}

	return domain.ResourcePage{
		Resources:  resources,
		NextCursor: response.Teams.PageInfo.EndCursor,
		HasMore:    response.Teams.PageInfo.HasNextPage,
	}, nil
}

func (c *Connector) QueryResources(ctx context.Context, accessToken string, query domain.ResourceQuery) (domain.ResourcePage, error) {
	vars := map[string]any{
		"first":  query.GetLimitWithMax(defaultPageSize, maxPageSize),
		"after":  cursorOrNil(query.Cursor),
		"filter": (map[string]any)(nil),
	}

	if query.Search != "" {
		vars["filter"] = map[string]any{
			"title": map[string]any{
				"containsIgnoreCase": query.Search,
			},
		}
	}

	var response struct {
		Issues struct {
			Nodes []struct {
				ID         string `json:"id"`
				Identifier string `json:"identifier"`
				Title      string `json:"title"`
				URL        string `json:"url"`
				State      struct {
					Name string `json:"name"`
				} `json:"state"`
			} `json:"nodes"`
			PageInfo pageInfo `json:"pageInfo"`
		} `json:"issues"`
	}

	if err := c.graphqlClient(accessToken).Exec(ctx, issueSearchQuery, &response, vars); err != nil {
		return domain.ResourcePage{}, c.queryError(err)
	}

	resources := make([]domain.Resource, 0, len(response.Issues.Nodes))
	for _, issue := range response.Issues.Nodes {
		resources = append(resources, domain.Resource{
			ID:    issue.ID,
			Title: issue.Title,
			Type:  "issue",
			URL:   issue.URL,
			Metadata: map[string]any{
				"identifier": issue.Identifier,
				"state":      issue.State.Name,
			},
		})
	}

	return domain.ResourcePage{
		Resources:  resources,
		NextCursor: response.Issues.PageInfo.EndCursor,
		HasMore:    response.Issues.PageInfo.HasNextPage,
	}, nil
}

func cursorOrNil(cursor string) any {
	if cursor == "" {
		return (*string)(nil)
	}

	return cursor
}

func (c *Connector) queryError(err error) error {
	return &domain.ResourceQueryError{
		ConnectorKey: domain.ConnectorKey_Linear,
		Err:          fmt.Errorf("linear GraphQL call failed: %w", err),
	}
}
