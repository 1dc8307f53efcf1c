package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/appforge/connectorhub/pkg/connectors/httputil"
	"github.com/appforge/connectorhub/pkg/domain"
)

const (
	SupabaseAPIBaseURL = "https://api.supabase.com/v1"
)

type Config struct {
	BaseURL string
	Retry   httputil.RetryConfig
}

// Connector is the Supabase shared connector, backed by the management API
// with a personal access token. Resources are the token's projects; the
// projects endpoint returns the full set, so search filters locally.
type Connector struct {
	config     Config
	httpClient *http.Client
}

func NewConnector(cfg Config) *Connector {
	if cfg.BaseURL == "" {
		cfg.BaseURL = SupabaseAPIBaseURL
	}
	if cfg.Retry.Attempts == 0 {
		cfg.Retry = httputil.DefaultRetryConfig()
	}

	return &Connector{
		config:     cfg,
		httpClient: httputil.NewClient(),
	}
}

func (c *Connector) Descriptor() domain.ConnectorDescriptor {
	return domain.ConnectorDescriptor{
		Key:         domain.ConnectorKey_Supabase,
		DisplayName: "Supabase",
		Description: "List Supabase projects reachable with a management token",
	}
}

func (c *Connector) ValidateCredential(ctx context.Context, credential string) error {
	if credential == "" {
		return fmt.Errorf("supabase access token is required")
	}

	if _, err := c.listProjects(ctx, credential); err != nil {
		return fmt.Errorf("supabase API rejected the token: %w", err)
	}

	return nil
}

type supabaseProject struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Region    string `json:"region"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
}

func (c *Connector) QueryResources(ctx context.Context, credential string, query domain.ResourceQuery) (domain.ResourcePage, error) {
	projects, err := c.listProjects(ctx, credential)
	if err != nil {
		var statusErr *httputil.StatusError
		if errors.As(err, &statusErr) {
			return domain.ResourcePage{}, &domain.ResourceQueryError{
				ConnectorKey: domain.ConnectorKey_Supabase,
				StatusCode:   statusErr.StatusCode,
				Err:          err,
			}
		}

		return domain.ResourcePage{}, &domain.ResourceQueryError{
			ConnectorKey: domain.ConnectorKey_Supabase,
			Err:          err,
		}
	}

	resources := []domain.Resource{}
	for _, project := range projects {
		if query.Search != "" && !strings.Contains(strings.ToLower(project.Name), strings.ToLower(query.Search)) {
			continue
		}

		resources = append(resources, domain.Resource{
			ID:    project.ID,
			Title: project.Name,
			Type:  "project",
			URL:   "https://supabase.com/dashboard/project/" + project.ID,
			Metadata: map[string]any{
				"region": project.Region,
				"status": project.Status,
			},
		})
	}

	return domain.ResourcePage{Resources: resources}, nil
}

func (c *Connector) listProjects(ctx context.Context, accessToken string) ([]supabaseProject, error) {
	body, err := httputil.Do(ctx, c.httpClient, c.config.Retry, func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodGet, c.config.BaseURL+"/projects", nil)
		if err != nil {
			return nil, err
		}

		req.Header.Set("Authorization", "Bearer "+accessToken)
		req.Header.Set("Accept", "application/json")

		return req, nil
	})
	if err != nil {
		return nil, err
	}

	var projects []supabaseProject
	if err := json.Unmarshal(body, &projects); err != nil {
		return nil, fmt.Errorf("failed to parse projects response: %w", err)
	}

	return projects, nil
}
