package initialization

import (
	"github.com/appforge/connectorhub/pkg/connectors/atlassian"
	"github.com/appforge/connectorhub/pkg/connectors/linear"
	"github.com/appforge/connectorhub/pkg/connectors/notion"
	"github.com/appforge/connectorhub/pkg/connectors/resend"
	stripeconnector "github.com/appforge/connectorhub/pkg/connectors/stripe"
	"github.com/appforge/connectorhub/pkg/connectors/supabase"
	"github.com/appforge/connectorhub/pkg/domain"
)

type connectorRegisterParams struct {
	NewPersonal func(config Config) (domain.PersonalConnector, error)
	NewShared   func(config Config) (domain.SharedConnector, error)
}

var connectorRegisterParamsList = []connectorRegisterParams{
	{
		NewPersonal: func(config Config) (domain.PersonalConnector, error) {
			return notion.NewConnector(notion.Config{
				ClientID:     config.NotionClientID,
				ClientSecret: config.NotionClientSecret,
			})
		},
	},
	{
		NewPersonal: func(config Config) (domain.PersonalConnector, error) {
			return linear.NewConnector(linear.Config{
				ClientID:     config.LinearClientID,
				ClientSecret: config.LinearClientSecret,
			})
		},
	},
	{
		NewPersonal: func(config Config) (domain.PersonalConnector, error) {
			return atlassian.NewConnector(atlassian.Config{
				ClientID:     config.AtlassianClientID,
				ClientSecret: config.AtlassianClientSecret,
			})
		},
	},
	{
		NewShared: func(config Config) (domain.SharedConnector, error) {
			return stripeconnector.NewConnector(), nil
		},
	},
	{
		NewShared: func(config Config) (domain.SharedConnector, error) {
			return resend.NewConnector(), nil
		},
	},
	{
		NewShared: func(config Config) (domain.SharedConnector, error) {
			return supabase.NewConnector(supabase.Config{}), nil
		},
	},
}

func registerConnectors(registry domain.ConnectorRegistry, config Config) error {
	for _, params := range connectorRegisterParamsList {
		if params.NewPersonal != nil {
			connector, err := params.NewPersonal(config)
			if err != nil {
				return err
			}

			if err := registry.RegisterPersonal(connector); err != nil {
				return err
			}
		}

		if params.NewShared != nil {
			connector, err := params.NewShared(config)
			if err != nil {
				return err
			}

			if err := registry.RegisterShared(connector); err != nil {
				return err
			}
		}
	}

	return nil
}
