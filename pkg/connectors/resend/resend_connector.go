package resend

import (
	"context"
	"fmt"
	"strings"

	"github.com/appforge/connectorhub/pkg/domain"

	"github.com/resend/resend-go/v2"
)

// Connector is the Resend shared connector. A project configures it once
// with an API key; resources are the account's audiences. Resend's list API
// has no pagination or server-side search, so search filters locally and
// every page is the full set.
type Connector struct{}

func NewConnector() *Connector {
	return &Connector{}
}

func (c *Connector) Descriptor() domain.ConnectorDescriptor {
	return domain.ConnectorDescriptor{
		Key:         domain.ConnectorKey_Resend,
		DisplayName: "Resend",
		Description: "List audiences of a Resend account",
	}
}

func (c *Connector) ValidateCredential(ctx context.Context, credential string) error {
	if credential == "" {
		return fmt.Errorf("resend API key is required")
	}

	client := resend.NewClient(credential)

	if _, err := client.Audiences.ListWithContext(ctx); err != nil {
		return fmt.Errorf("resend API rejected the key: %w", err)
	}

	return nil
}

func (c *Connector) QueryResources(ctx context.Context, credential string, query domain.ResourceQuery) (domain.ResourcePage, error) {
	client := resend.NewClient(credential)

	response, err := client.Audiences.ListWithContext(ctx)
	if err != nil {
		return domain.ResourcePage{}, &domain.ResourceQueryError{
			ConnectorKey: domain.ConnectorKey_Resend,
			Err:          fmt.Errorf("failed to list audiences: %w", err),
		}
	}

	resources := []domain.Resource{}
	for _, audience := range response.Data {
		if query.Search != "" && !strings.Contains(strings.ToLower(audience.Name), strings.ToLower(query.Search)) {
			continue
		}

		resources = append(resources, domain.Resource{
			ID:    audience.Id,
			Title: audience.Name,
			Type:  "audience",
			Metadata: map[string]any{
				"created_at": audience.CreatedAt,
			},
		})
	}

	return domain.ResourcePage{Resources: resources}, nil
}
