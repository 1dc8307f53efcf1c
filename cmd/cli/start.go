package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/appforge/connectorhub/internal/controllers"
	"github.com/appforge/connectorhub/internal/initialization"
	"github.com/appforge/connectorhub/internal/server"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func NewStartCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the connector registry HTTP service",
		RunE: func(cmd *cobra.Command, args []string) error {
			debug, _ := cmd.Flags().GetBool("debug")
			if debug {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			}

			return runStart()
		},
	}

	return cmd
}

func runStart() error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	config, err := LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	container, err := initialization.NewContainer(ctx, config)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize connector registry")
	}

	log.Info().
		Int("personal_connectors", len(container.Registry.ListPersonal())).
		Int("shared_connectors", len(container.Registry.ListShared())).
		Msg("Connector registry initialized")

	connectorController := controllers.NewConnectorController(controllers.ConnectorControllerDependencies{
		Registry:          container.Registry,
		ConnectionManager: container.ConnectionManager,
		ResourceGateway:   container.ResourceGateway,
	})

	app := server.NewHTTPServer(ctx, server.HTTPServerDependencies{
		ConnectorController: connectorController,
	})

	go func() {
		<-ctx.Done()
		log.Info().Msg("Shutting down HTTP server")

		if err := app.Shutdown(); err != nil {
			log.Error().Err(err).Msg("Failed to shut down HTTP server cleanly")
		}
	}()

	log.Info().Str("address", config.HTTPAddress).Msg("Starting HTTP server")

	if err := app.Listen(config.HTTPAddress); err != nil {
		return err
	}

	return nil
}
