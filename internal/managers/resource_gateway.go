package managers

import (
	"context"
	"errors"
	"fmt"

	"github.com/appforge/connectorhub/pkg/domain"

	"github.com/rs/zerolog/log"
)

// resourceGateway translates generic resource queries into provider calls.
// It resolves the connector and connection, ensures the credential is live,
// and wraps provider failures into ResourceQueryError so callers can tell
// "provider returned nothing" from "the call failed".
type resourceGateway struct {
	registry    domain.ConnectorRegistry
	connections domain.ConnectionManager
}

type ResourceGatewayDependencies struct {
	Registry          domain.ConnectorRegistry
	ConnectionManager domain.ConnectionManager
}

func NewResourceGateway(deps ResourceGatewayDependencies) domain.ResourceGateway {
	return &resourceGateway{
		registry:    deps.Registry,
		connections: deps.ConnectionManager,
	}
}

func (g *resourceGateway) QueryPersonalResources(ctx context.Context, userID string, key domain.ConnectorKey, query domain.ResourceQuery) (domain.ResourcePage, error) {
	connector, err := g.registry.GetPersonalConnector(key)
	if err != nil {
		return domain.ResourcePage{}, err
	}

	accessToken, err := g.connections.GetAuthorizedToken(ctx, userID, key)
	if err != nil {
		return domain.ResourcePage{}, err
	}

	var page domain.ResourcePage
	if query.Search == "" && len(query.Filters) == 0 {
		page, err = connector.ListResources(ctx, accessToken, query)
	} else {
		page, err = connector.QueryResources(ctx, accessToken, query)
	}

	if err != nil {
		return domain.ResourcePage{}, wrapQueryError(key, err)
	}

	log.Debug().
		Str("connector", string(key)).
		Int("count", len(page.Resources)).
		Bool("has_more", page.HasMore).
		Msg("Personal resource query completed")

	return page, nil
}

func (g *resourceGateway) QuerySharedResources(ctx context.Context, projectID string, key domain.ConnectorKey, query domain.ResourceQuery) (domain.ResourcePage, error) {
	connector, err := g.registry.GetSharedConnector(key)
	if err != nil {
		return domain.ResourcePage{}, err
	}

	credential, err := g.connections.GetSharedCredential(ctx, projectID, key)
	if err != nil {
		return domain.ResourcePage{}, err
	}

	page, err := connector.QueryResources(ctx, credential, query)
	if err != nil {
		return domain.ResourcePage{}, wrapQueryError(key, err)
	}

	log.Debug().
		Str("connector", string(key)).
		Int("count", len(page.Resources)).
		Bool("has_more", page.HasMore).
		Msg("Shared resource query completed")

	return page, nil
}

// wrapQueryError preserves an already-typed ResourceQueryError from the
// adapter, otherwise wraps the raw provider error.
func wrapQueryError(key domain.ConnectorKey, err error) error {
	var queryErr *domain.ResourceQueryError
	if errors.As(err, &queryErr) {
		return err
	}

	return &domain.ResourceQueryError{
		ConnectorKey: key,
		Err:          fmt.Errorf("provider call failed: %w", err),
	}
}
